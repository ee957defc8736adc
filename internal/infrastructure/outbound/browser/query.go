package browser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
)

// textXPath matches elements whose own normalized text equals text.
func textXPath(text string) string {
	return fmt.Sprintf("//*[normalize-space(text())=%s]", xpathLiteral(strings.TrimSpace(text)))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = "'" + p + "'"
	}
	return "concat(" + strings.Join(quoted, `, "'", `) + ")"
}

// queryLabel names a query for target descriptions.
func queryLabel(q flow.Query) string {
	if q.Text != "" {
		return "text=" + q.Text
	}
	return q.Selector
}

// targetsFor builds one target per matched node. Ref is the node's position
// within the query so that the element is looked up again when acted upon.
func targetsFor(q flow.Query, n int) []flow.Target {
	out := make([]flow.Target, n)
	for i := range n {
		out[i] = flow.Target{
			Ref:         strconv.Itoa(i),
			Selector:    q.Selector,
			Text:        q.Text,
			Description: fmt.Sprintf("%s[%d]", queryLabel(q), i),
		}
	}
	return out
}

// refIndex parses a target Ref; an empty Ref addresses the first match.
func refIndex(ref string) (int, error) {
	if ref == "" {
		return 0, nil
	}
	i, err := strconv.Atoi(ref)
	if err != nil || i < 0 {
		return 0, fmt.Errorf("invalid target ref %q", ref)
	}
	return i, nil
}

// capturedFrom converts a DevTools request event. now is used when the event
// carries no wall time.
func capturedFrom(ev *network.EventRequestWillBeSent, now time.Time) (ledger.CapturedRequest, bool) {
	if ev == nil || ev.Request == nil || ev.Request.URL == "" {
		return ledger.CapturedRequest{}, false
	}
	observed := now
	if ev.WallTime != nil {
		observed = ev.WallTime.Time()
	}
	return ledger.CapturedRequest{
		URL:          ev.Request.URL,
		ResourceKind: ledger.ParseResourceKind(string(ev.Type)),
		ObservedAt:   observed,
	}, true
}
