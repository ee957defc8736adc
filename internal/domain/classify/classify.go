package classify

import (
	"errors"
	"net/url"
	"strings"
)

// ErrMissingEndpoint indicates a required endpoint substring was not configured.
var ErrMissingEndpoint = errors.New("report and pay endpoint substrings are required")

// Bucket is the coarse category of a captured request.
type Bucket string

const (
	BucketReport      Bucket = "report"
	BucketPayEntrance Bucket = "pay_entrance"
	BucketIgnored     Bucket = "ignored"
)

// EventPayEntrance is the event type assigned to payment entry requests.
const EventPayEntrance = "pay_entrance"

// EventUnknown is returned when no event type can be derived.
const EventUnknown = "unknown"

// Rules configures bucket assignment and event type derivation.
type Rules struct {
	ReportURL string
	PayURL    string

	// ReservedPrefix is prepended to each Reserved name when searching the path,
	// e.g. "lapp/" + "page".
	ReservedPrefix string
	Reserved       []string
	EventSegment   string
	EventParam     string
	PayPattern     string
}

// DefaultRules returns the path conventions of the analytics and payment
// gateways. Endpoint substrings are left empty and must be supplied.
func DefaultRules() Rules {
	return Rules{
		ReservedPrefix: "lapp/",
		Reserved:       []string{"bootstrap", "page", "fbuffer"},
		EventSegment:   "lapp/event",
		EventParam:     "event",
		PayPattern:     "cartoon/pay",
	}
}

// Result is the outcome of classifying one URL.
type Result struct {
	Bucket    Bucket
	EventType string
}

// Classifier assigns buckets and event types to request URLs.
type Classifier struct {
	rules Rules
}

// New creates a Classifier. Both endpoint substrings must be non-empty.
func New(rules Rules) (*Classifier, error) {
	if rules.ReportURL == "" || rules.PayURL == "" {
		return nil, ErrMissingEndpoint
	}
	return &Classifier{rules: rules}, nil
}

// Classify returns the bucket and event type for rawURL.
func (c *Classifier) Classify(rawURL string) Result {
	return Result{
		Bucket:    c.Bucket(rawURL),
		EventType: c.EventType(rawURL),
	}
}

// Bucket assigns the coarse category by endpoint substring. Report wins ties.
func (c *Classifier) Bucket(rawURL string) Bucket {
	switch {
	case strings.Contains(rawURL, c.rules.ReportURL):
		return BucketReport
	case strings.Contains(rawURL, c.rules.PayURL):
		return BucketPayEntrance
	default:
		return BucketIgnored
	}
}

// EventType derives the fine-grained label. Reserved segments outrank the
// event parameter, which outranks the payment pattern and the path tail.
func (c *Classifier) EventType(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return EventUnknown
	}
	path := u.Path

	for _, name := range c.rules.Reserved {
		if strings.Contains(path, c.rules.ReservedPrefix+name) {
			return name
		}
	}

	if c.rules.EventSegment != "" && strings.Contains(path, c.rules.EventSegment) {
		return u.Query().Get(c.rules.EventParam)
	}

	if c.rules.PayPattern != "" && strings.Contains(path, c.rules.PayPattern) {
		return EventPayEntrance
	}

	for _, seg := range reverse(strings.Split(path, "/")) {
		if seg != "" {
			return seg
		}
	}
	return EventUnknown
}

func reverse(parts []string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[len(parts)-1-i] = p
	}
	return out
}
