package services

import (
	"errors"
	"net/url"
	"strings"
	"sync"

	"github.com/sophialabs/payprobe/internal/domain/classify"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/domain/params"
	"github.com/sophialabs/payprobe/internal/domain/trace"
	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
)

// RenewalFlag identifies renewal purchases on pay_entrance requests.
type RenewalFlag struct {
	Key   string
	Value string
}

// DefaultRenewalFlag returns is_renew=1.
func DefaultRenewalFlag() RenewalFlag {
	return RenewalFlag{Key: "is_renew", Value: "1"}
}

// Recorder turns captured browser traffic into ledger entries.
type Recorder struct {
	classifier *classify.Classifier
	ledger     *ledger.Ledger
	trace      *trace.RingBuffer
	clock      ports.Clock
	logger     ports.Logger
	renewal    RenewalFlag

	mu          sync.RWMutex
	currentCase string
}

// NewRecorder creates a recorder writing to l and tb.
func NewRecorder(
	classifier *classify.Classifier,
	l *ledger.Ledger,
	tb *trace.RingBuffer,
	clock ports.Clock,
	logger ports.Logger,
	renewal RenewalFlag,
) *Recorder {
	if renewal.Key == "" {
		renewal = DefaultRenewalFlag()
	}
	return &Recorder{
		classifier: classifier,
		ledger:     l,
		trace:      tb,
		clock:      clock,
		logger:     logger,
		renewal:    renewal,
	}
}

// Ingest classifies and decodes req and appends it to the ledger. It reports
// false for requests that are not recorded: non xhr/fetch resources and
// ignored URLs. Safe for concurrent use.
func (r *Recorder) Ingest(req ledger.CapturedRequest) (ledger.ClassifiedRequest, bool) {
	if req.ResourceKind != ledger.KindXHR && req.ResourceKind != ledger.KindFetch {
		return ledger.ClassifiedRequest{}, false
	}
	if req.ObservedAt.IsZero() {
		req.ObservedAt = r.clock.Now()
	}

	res := r.classifier.Classify(req.URL)
	if res.Bucket == classify.BucketIgnored {
		return ledger.ClassifiedRequest{}, false
	}

	cr := ledger.ClassifiedRequest{
		Raw:       req,
		Bucket:    res.Bucket,
		EventType: res.EventType,
	}
	var decodeErrs []string
	query, err := params.DecodeQueryString(rawQuery(req.URL))
	if err != nil {
		decodeErrs = append(decodeErrs, r.decodeFailed(req, ledger.LayerQuery, err))
	}
	cr.Layers = append(cr.Layers, ledger.Layer{Kind: ledger.LayerQuery, Params: query})

	purchase := ledger.PurchaseNone
	if res.Bucket == classify.BucketPayEntrance {
		for _, kind := range []ledger.LayerKind{ledger.LayerEntrance, ledger.LayerPromotion} {
			if !query.Has(string(kind)) {
				continue
			}
			nested, err := params.DecodeNestedBlob(query.Get(string(kind)))
			if err != nil {
				decodeErrs = append(decodeErrs, r.decodeFailed(req, kind, err))
				continue
			}
			cr.Layers = append(cr.Layers, ledger.Layer{Kind: kind, Params: nested})
		}
	}

	if res.Bucket == classify.BucketPayEntrance {
		purchase = ledger.PurchaseNormal
		if query.Get(r.renewal.Key) == r.renewal.Value {
			purchase = ledger.PurchaseRenewal
		}
	}

	counts := r.ledger.Record(cr, purchase)
	switch purchase {
	case ledger.PurchaseRenewal:
		r.logger.Info("renewal purchase captured", "count", counts.Renewal, "url", req.URL)
	case ledger.PurchaseNormal:
		r.logger.Info("normal purchase captured", "count", counts.Normal, "url", req.URL)
	}

	r.record(cr, string(purchase), decodeErrs)
	return cr, true
}

func (r *Recorder) decodeFailed(req ledger.CapturedRequest, kind ledger.LayerKind, err error) string {
	var de *params.DecodeError
	stage := "unknown"
	if errors.As(err, &de) {
		stage = de.Stage
	}
	r.logger.Warn("parameter decode failed", "layer", kind, "stage", stage, "url", req.URL, "error", err)
	return string(kind) + ": " + err.Error()
}

func (r *Recorder) record(cr ledger.ClassifiedRequest, purchase string, decodeErrs []string) {
	layers := make([]string, len(cr.Layers))
	for i, l := range cr.Layers {
		layers[i] = string(l.Kind)
	}
	r.trace.Add(trace.Entry{
		Timestamp:    cr.Raw.ObservedAt,
		Case:         r.CurrentCase(),
		URL:          cr.Raw.URL,
		ResourceKind: string(cr.Raw.ResourceKind),
		Bucket:       string(cr.Bucket),
		EventType:    cr.EventType,
		Purchase:     purchase,
		Layers:       layers,
		DecodeErrors: decodeErrs,
	})
	r.logger.Debug("request captured", "bucket", cr.Bucket, "event", cr.EventType, "url", cr.Raw.URL)
}

// BeginCase resets the ledger and labels subsequent trace entries with name.
func (r *Recorder) BeginCase(name string) {
	r.mu.Lock()
	r.currentCase = name
	r.mu.Unlock()
	r.ledger.Reset()
}

// CurrentCase returns the label of the running case.
func (r *Recorder) CurrentCase() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentCase
}

// Reset clears the ledger. The trace buffer is kept.
func (r *Recorder) Reset() {
	r.ledger.Reset()
}

// SnapshotCounts returns the purchase counters of the current case.
func (r *Recorder) SnapshotCounts() ledger.Counts {
	return r.ledger.SnapshotCounts()
}

// Ledger returns the ledger of the current case.
func (r *Recorder) Ledger() *ledger.Ledger {
	return r.ledger
}

// Trace returns the cross-case trace buffer.
func (r *Recorder) Trace() *trace.RingBuffer {
	return r.trace
}

func rawQuery(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.RawQuery
	}
	_, q, _ := strings.Cut(rawURL, "?")
	if i := strings.IndexByte(q, '#'); i >= 0 {
		q = q[:i]
	}
	return q
}
