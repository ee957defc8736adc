//go:build e2e

package e2e_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sophialabs/payprobe/internal/app"
	"github.com/sophialabs/payprobe/internal/domain/flow"
)

// Three packages: a renewal, a one-off and a lifetime purchase. The buy
// button reports the selected package to the payment gateway.
const readerPage = `<!doctype html>
<html><body>
<div data-e2e="payment-pop-item-0" data-renew="1">monthly</div>
<div data-e2e="payment-pop-item-1" data-renew="0">single chapter</div>
<div data-e2e="payment-pop-item-2" data-renew="0">lifetime</div>
<button data-e2e="payment-pop-buy">buy</button>
<script>
var renew = "";
document.querySelectorAll('[data-e2e^="payment-pop-item"]').forEach(function (el) {
  el.addEventListener('click', function () { renew = el.dataset.renew; });
});
document.querySelector('[data-e2e="payment-pop-buy"]').addEventListener('click', function () {
  fetch('/v1/cartoon/pay?is_renew=' + renew + '&bookid=1');
});
fetch('/stat/lapp/page?channel=tt&bookid=1');
</script>
</body></html>`

const caseJSON = `[
  {
    "name": "tt reader page",
    "path": "lapp/page",
    "query": "bookid=1",
    "expectResult": {"shareParams": {"channel": "tt", "bookid": "1"}}
  }
]`

// site serves the reader page and counts gateway hits.
type site struct {
	mu   sync.Mutex
	hits map[string]int
}

func (s *site) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func startSite(t *testing.T) (*httptest.Server, *site) {
	t.Helper()
	s := &site{hits: make(map[string]int)}
	mux := http.NewServeMux()
	mux.HandleFunc("/tt/xingchen/lapp/page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, readerPage)
	})
	gateway := func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
	mux.HandleFunc("/stat/", gateway)
	mux.HandleFunc("/v1/cartoon/pay", gateway)

	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, s
}

func e2eConfig(t *testing.T, siteURL string) app.Config {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cases.json"), []byte(caseJSON), 0o644); err != nil {
		t.Fatalf("failed to write case file: %v", err)
	}

	cfg := app.DefaultConfig()
	cfg.Workspace = dir
	cfg.CaseFile = "cases.json"
	cfg.Prefix = siteURL + "/tt/xingchen"
	cfg.ReportURL = siteURL + "/stat"
	cfg.PayURL = siteURL + "/v1/cartoon/pay?"
	cfg.Headless = true
	cfg.ChromePath = os.Getenv("PAYPROBE_CHROME")
	cfg.LogMode = "console"
	cfg.LogLevel = "debug"
	cfg.ReportDir = filepath.Join(dir, "reports")
	cfg.Cooldown = time.Second
	cfg.Timings = flow.Timings{
		Settle:          200 * time.Millisecond,
		Confirm:         time.Second,
		NavigationCheck: 200 * time.Millisecond,
		BackSettle:      200 * time.Millisecond,
		AckSettle:       200 * time.Millisecond,
	}
	cfg.ActionRate = 20
	cfg.ActionBurst = 5
	return cfg
}
