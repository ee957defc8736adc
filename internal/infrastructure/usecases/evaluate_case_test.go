package usecases_test

import (
	"testing"

	"github.com/sophialabs/payprobe/internal/domain/classify"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/domain/params"
	"github.com/sophialabs/payprobe/internal/domain/report"
	"github.com/sophialabs/payprobe/internal/domain/testcase"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/template"
	"github.com/sophialabs/payprobe/internal/infrastructure/services"
	"github.com/sophialabs/payprobe/internal/infrastructure/usecases"
	"github.com/sophialabs/payprobe/internal/testutil"
)

func compileCase(t *testing.T, tc *testcase.TestCase) *services.CompiledCase {
	t.Helper()
	cc, err := services.NewCompiler(template.NewRegistry()).CompileCase(tc)
	if err != nil {
		t.Fatalf("CompileCase: %v", err)
	}
	return cc
}

func reportRequest(q params.Tree) ledger.ClassifiedRequest {
	return ledger.ClassifiedRequest{
		Raw:       ledger.CapturedRequest{URL: "https://stat.example.com/lapp/page", ResourceKind: ledger.KindXHR},
		Bucket:    classify.BucketReport,
		EventType: "page",
		Layers:    []ledger.Layer{{Kind: ledger.LayerQuery, Params: q}},
	}
}

func payRequest(q, entrance, promotion params.Tree) ledger.ClassifiedRequest {
	layers := []ledger.Layer{{Kind: ledger.LayerQuery, Params: q}}
	if entrance != nil {
		layers = append(layers, ledger.Layer{Kind: ledger.LayerEntrance, Params: entrance})
	}
	if promotion != nil {
		layers = append(layers, ledger.Layer{Kind: ledger.LayerPromotion, Params: promotion})
	}
	return ledger.ClassifiedRequest{
		Raw:       ledger.CapturedRequest{URL: "https://pay.example.com/v1/cartoon/pay?x=1", ResourceKind: ledger.KindFetch},
		Bucket:    classify.BucketPayEntrance,
		EventType: "pay_entrance",
		Layers:    layers,
	}
}

func kinds(entries []report.Entry) []report.EntryKind {
	out := make([]report.EntryKind, len(entries))
	for i, e := range entries {
		out[i] = e.Kind
	}
	return out
}

func TestEvaluateCase_AllMatched(t *testing.T) {
	cc := compileCase(t, &testcase.TestCase{
		Name: "monthly",
		Path: "lapp/page",
		Expect: testcase.ExpectationSet{
			ShareParams:     params.Tree{"channel": params.Str("h5")},
			EntranceParams:  params.Tree{"a": params.Str("1")},
			PromotionParams: params.Tree{"id": params.Num("42")},
		},
	})
	l := ledger.New()
	l.Append(reportRequest(params.Tree{"channel": params.Str("h5"), "uid": params.Str("9")}))
	l.Append(payRequest(
		params.Tree{"is_renew": params.Str("0")},
		params.Tree{"a": params.Str("1"), "b": params.Str("2")},
		params.Tree{"id": params.Num("42")},
	))

	cr := usecases.NewEvaluateCaseUseCase(&testutil.NoopLogger{}).Execute(cc, l)

	if !cr.Passed {
		t.Fatalf("expected pass, failures: %+v", cr.Failures())
	}
	want := []report.EntryKind{report.KindReport, report.KindPayQuery, report.KindEntrance, report.KindPromotion}
	got := kinds(cr.Entries)
	if len(got) != len(want) {
		t.Fatalf("entry kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if cr.Captured["report"] != 1 || cr.Captured["pay_entrance"] != 1 {
		t.Errorf("captured = %v", cr.Captured)
	}
}

func TestEvaluateCase_Mismatches(t *testing.T) {
	cc := compileCase(t, &testcase.TestCase{
		Name: "monthly",
		Path: "lapp/page",
		Expect: testcase.ExpectationSet{
			ShareParams:     params.Tree{"channel": params.Str("h5")},
			PromotionParams: params.Tree{"id": params.Num("42")},
		},
	})
	l := ledger.New()
	l.Append(reportRequest(params.Tree{"channel": params.Str("h5")}))
	l.Append(reportRequest(params.Tree{"channel": params.Str("app")}))
	l.Append(payRequest(params.Tree{"is_renew": params.Str("1")}, nil, nil))
	logger := &testutil.RecordingLogger{}

	cr := usecases.NewEvaluateCaseUseCase(logger).Execute(cc, l)

	if cr.Passed {
		t.Fatal("expected failure")
	}
	failures := cr.Failures()
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", failures)
	}
	if failures[0].Kind != report.KindReport || len(failures[0].Mismatches) == 0 {
		t.Errorf("first failure = %+v", failures[0])
	}
	if failures[1].Kind != report.KindPromotion {
		t.Errorf("missing promotion layer should fail its expectation, got %+v", failures[1])
	}
	if logger.Count("ERROR") < 2 {
		t.Error("every mismatch should be logged")
	}
}

func TestEvaluateCase_NotCaptured(t *testing.T) {
	tests := []struct {
		name   string
		expect testcase.ExpectationSet
		passed bool
	}{
		{"no expectations", testcase.ExpectationSet{}, true},
		{"share expected", testcase.ExpectationSet{ShareParams: params.Tree{"a": params.Str("1")}}, false},
		{"pay expected", testcase.ExpectationSet{PayParams: params.Tree{"is_renew": params.Str("1")}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cc := compileCase(t, &testcase.TestCase{Name: "c", Path: "p", Expect: tt.expect})
			cr := usecases.NewEvaluateCaseUseCase(&testutil.NoopLogger{}).Execute(cc, ledger.New())

			if cr.Passed != tt.passed {
				t.Errorf("Passed = %v, want %v", cr.Passed, tt.passed)
			}
			if len(cr.Entries) != 2 {
				t.Fatalf("expected one not-captured entry per bucket, got %d", len(cr.Entries))
			}
			for _, e := range cr.Entries {
				if e.Captured {
					t.Errorf("entry %s should be marked not captured", e.Kind)
				}
			}
		})
	}
}

func TestEvaluateCase_Checks(t *testing.T) {
	cc := compileCase(t, &testcase.TestCase{
		Name: "c",
		Path: "p",
		Checks: []testcase.Check{
			{Name: "renewal", Bucket: "pay_entrance", Engine: "expr", Source: `query.is_renew == "1"`},
			{Name: "channel", Bucket: "report", Layer: "query", Path: "$.channel", Matcher: testcase.ParseStringMatcher("=h5")},
		},
	})
	l := ledger.New()
	l.Append(reportRequest(params.Tree{"channel": params.Str("h5")}))
	l.Append(payRequest(params.Tree{"is_renew": params.Str("0")}, nil, nil))

	cr := usecases.NewEvaluateCaseUseCase(&testutil.NoopLogger{}).Execute(cc, l)

	var checks []report.Entry
	for _, e := range cr.Entries {
		if e.Kind == report.KindCheck {
			checks = append(checks, e)
		}
	}
	if len(checks) != 2 {
		t.Fatalf("expected 2 check entries, got %+v", checks)
	}
	if checks[0].Name != "channel" || !checks[0].Matched {
		t.Errorf("report check = %+v", checks[0])
	}
	if checks[1].Name != "renewal" || checks[1].Matched || checks[1].Reason == "" {
		t.Errorf("pay check = %+v", checks[1])
	}
	if cr.Passed {
		t.Error("failed check should fail the case")
	}
}
