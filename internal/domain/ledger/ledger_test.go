package ledger_test

import (
	"sync"
	"testing"

	"github.com/sophialabs/payprobe/internal/domain/classify"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/domain/params"
)

func payRequest(url string) ledger.ClassifiedRequest {
	return ledger.ClassifiedRequest{
		Raw:       ledger.CapturedRequest{URL: url, ResourceKind: ledger.KindXHR},
		Bucket:    classify.BucketPayEntrance,
		EventType: classify.EventPayEntrance,
		Layers: []ledger.Layer{
			{Kind: ledger.LayerQuery, Params: params.Tree{"is_renew": params.Str("1")}},
		},
	}
}

func TestLedger_AppendAndRequests(t *testing.T) {
	l := ledger.New()
	l.Append(payRequest("/a"))
	l.Append(payRequest("/b"))
	l.Append(ledger.ClassifiedRequest{Bucket: classify.BucketIgnored})

	got := l.Requests(classify.BucketPayEntrance)
	if len(got) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(got))
	}
	if got[0].Raw.URL != "/a" || got[1].Raw.URL != "/b" {
		t.Errorf("unexpected order: %q, %q", got[0].Raw.URL, got[1].Raw.URL)
	}
	if l.Len(classify.BucketIgnored) != 0 {
		t.Error("ignored requests must not be stored")
	}

	// The returned slice is a copy.
	got[0].Raw.URL = "mutated"
	if l.Requests(classify.BucketPayEntrance)[0].Raw.URL != "/a" {
		t.Error("Requests must return a copy")
	}
}

func TestLedger_Counters(t *testing.T) {
	l := ledger.New()
	if c := l.SnapshotCounts(); c != (ledger.Counts{}) {
		t.Fatalf("expected zero counts, got %+v", c)
	}

	l.CountRenewal()
	l.CountNormal()
	l.CountNormal()

	want := ledger.Counts{Renewal: 1, Normal: 2}
	if c := l.SnapshotCounts(); c != want {
		t.Errorf("counts = %+v, want %+v", c, want)
	}
	// Snapshot has no side effect.
	if c := l.SnapshotCounts(); c != want {
		t.Errorf("second snapshot = %+v, want %+v", c, want)
	}
}

func TestLedger_Reset(t *testing.T) {
	l := ledger.New()
	l.Append(payRequest("/a"))
	l.Append(ledger.ClassifiedRequest{Bucket: classify.BucketReport})
	l.CountRenewal()
	l.CountNormal()

	l.Reset()

	if l.Len(classify.BucketPayEntrance) != 0 || l.Len(classify.BucketReport) != 0 {
		t.Error("expected all buckets empty after Reset")
	}
	if c := l.SnapshotCounts(); c != (ledger.Counts{}) {
		t.Errorf("expected zero counts after Reset, got %+v", c)
	}
}

func TestClassifiedRequest_Layer(t *testing.T) {
	r := payRequest("/a")
	if _, ok := r.Layer(ledger.LayerQuery); !ok {
		t.Error("expected query layer")
	}
	if _, ok := r.Layer(ledger.LayerPromotion); ok {
		t.Error("did not expect promotion layer")
	}
}

func TestParseResourceKind(t *testing.T) {
	tests := map[string]ledger.ResourceKind{
		"xhr":      ledger.KindXHR,
		"XHR":      ledger.KindXHR,
		"Fetch":    ledger.KindFetch,
		"Document": ledger.KindOther,
		"":         ledger.KindOther,
	}
	for in, want := range tests {
		if got := ledger.ParseResourceKind(in); got != want {
			t.Errorf("ParseResourceKind(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLedger_Concurrency(t *testing.T) {
	l := ledger.New()
	var wg sync.WaitGroup
	n := 50

	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Append(payRequest("/c"))
			l.CountRenewal()
		}()
	}
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.SnapshotCounts()
			_ = l.Requests(classify.BucketPayEntrance)
		}()
	}
	wg.Wait()

	if l.Len(classify.BucketPayEntrance) != n {
		t.Errorf("expected %d requests, got %d", n, l.Len(classify.BucketPayEntrance))
	}
	if c := l.SnapshotCounts(); c.Renewal != n {
		t.Errorf("expected renewal %d, got %d", n, c.Renewal)
	}
}

func TestLedger_Record(t *testing.T) {
	report := ledger.ClassifiedRequest{Bucket: classify.BucketReport, EventType: "page"}
	ignored := ledger.ClassifiedRequest{Bucket: classify.BucketIgnored}

	tests := []struct {
		name     string
		req      ledger.ClassifiedRequest
		purchase ledger.Purchase
		want     ledger.Counts
		bucket   classify.Bucket
	}{
		{"renewal", payRequest("/r"), ledger.PurchaseRenewal, ledger.Counts{Renewal: 1}, classify.BucketPayEntrance},
		{"normal", payRequest("/n"), ledger.PurchaseNormal, ledger.Counts{Normal: 1}, classify.BucketPayEntrance},
		{"report beacon", report, ledger.PurchaseNone, ledger.Counts{}, classify.BucketReport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := ledger.New()
			if got := l.Record(tt.req, tt.purchase); got != tt.want {
				t.Errorf("Record returned %+v, want %+v", got, tt.want)
			}
			if l.Len(tt.bucket) != 1 {
				t.Errorf("expected one request in %s, got %d", tt.bucket, l.Len(tt.bucket))
			}
		})
	}

	l := ledger.New()
	l.Record(ignored, ledger.PurchaseNone)
	if l.Len(classify.BucketIgnored) != 0 {
		t.Error("ignored requests should not be stored")
	}
}

func TestLedger_RecordAndResetStayPaired(t *testing.T) {
	l := ledger.New()
	var wg sync.WaitGroup

	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Record(payRequest("/p"), ledger.PurchaseRenewal)
		}()
	}
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Reset()
		}()
	}
	wg.Wait()

	if c, n := l.SnapshotCounts(), l.Len(classify.BucketPayEntrance); c.Renewal != n {
		t.Errorf("renewal count %d does not match %d stored requests", c.Renewal, n)
	}
}
