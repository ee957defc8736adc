package ledger

import (
	"sync"
	"time"

	"github.com/sophialabs/payprobe/internal/domain/classify"
	"github.com/sophialabs/payprobe/internal/domain/params"
)

// ResourceKind is the browser's resource type for a captured request.
type ResourceKind string

const (
	KindXHR   ResourceKind = "xhr"
	KindFetch ResourceKind = "fetch"
	KindOther ResourceKind = "other"
)

// ParseResourceKind maps a driver-reported resource type onto a ResourceKind.
func ParseResourceKind(s string) ResourceKind {
	switch s {
	case "xhr", "XHR":
		return KindXHR
	case "fetch", "Fetch":
		return KindFetch
	default:
		return KindOther
	}
}

// CapturedRequest is a network request surfaced by the browser driver.
type CapturedRequest struct {
	URL          string       `json:"url"`
	ResourceKind ResourceKind `json:"resource_kind"`
	ObservedAt   time.Time    `json:"observed_at"`
}

// LayerKind names one decoded parameter layer.
type LayerKind string

const (
	LayerQuery     LayerKind = "query"
	LayerEntrance  LayerKind = "entrance"
	LayerPromotion LayerKind = "promotion"
)

// Layer is one decoded parameter tree of a request.
type Layer struct {
	Kind   LayerKind
	Params params.Tree
}

// ClassifiedRequest is a captured request with its bucket and decoded layers.
// Layers are ordered query, entrance, promotion; the last two are optional.
type ClassifiedRequest struct {
	Raw       CapturedRequest
	Bucket    classify.Bucket
	EventType string
	Layers    []Layer
}

// Layer returns the decoded layer of the given kind.
func (r ClassifiedRequest) Layer(kind LayerKind) (params.Tree, bool) {
	for _, l := range r.Layers {
		if l.Kind == kind {
			return l.Params, true
		}
	}
	return nil, false
}

// Counts is a point-in-time view of the purchase counters.
type Counts struct {
	Renewal int `json:"renewal"`
	Normal  int `json:"normal"`
}

// Purchase is the kind of purchase a payment request represents.
type Purchase string

const (
	PurchaseNone    Purchase = ""
	PurchaseRenewal Purchase = "renewal"
	PurchaseNormal  Purchase = "normal"
)

// Ledger accumulates classified requests for one test case. It is safe for
// concurrent use by the event delivery path and the flow controller.
type Ledger struct {
	mu      sync.RWMutex
	buckets map[classify.Bucket][]ClassifiedRequest
	counts  Counts
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{buckets: make(map[classify.Bucket][]ClassifiedRequest)}
}

// Append stores a request in its bucket. Ignored requests are not kept.
func (l *Ledger) Append(r ClassifiedRequest) {
	if r.Bucket == classify.BucketIgnored {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets[r.Bucket] = append(l.buckets[r.Bucket], r)
}

// Record stores r and counts purchase under one lock, so a concurrent Reset
// never separates a request from its count. It returns the counters after
// the update.
func (l *Ledger) Record(r ClassifiedRequest, purchase Purchase) Counts {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.Bucket != classify.BucketIgnored {
		l.buckets[r.Bucket] = append(l.buckets[r.Bucket], r)
	}
	switch purchase {
	case PurchaseRenewal:
		l.counts.Renewal++
	case PurchaseNormal:
		l.counts.Normal++
	}
	return l.counts
}

// CountRenewal records a renewal purchase and returns the new total.
func (l *Ledger) CountRenewal() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts.Renewal++
	return l.counts.Renewal
}

// CountNormal records a one-time purchase and returns the new total.
func (l *Ledger) CountNormal() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts.Normal++
	return l.counts.Normal
}

// SnapshotCounts returns the current counters without side effects.
func (l *Ledger) SnapshotCounts() Counts {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.counts
}

// Requests returns a copy of the requests stored in bucket, in arrival order.
func (l *Ledger) Requests(bucket classify.Bucket) []ClassifiedRequest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	src := l.buckets[bucket]
	out := make([]ClassifiedRequest, len(src))
	copy(out, src)
	return out
}

// Len returns the number of requests stored in bucket.
func (l *Ledger) Len(bucket classify.Bucket) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.buckets[bucket])
}

// Reset clears every bucket and zeroes both counters.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buckets = make(map[classify.Bucket][]ClassifiedRequest)
	l.counts = Counts{}
}
