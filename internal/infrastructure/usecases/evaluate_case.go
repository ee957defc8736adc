package usecases

import (
	"github.com/sophialabs/payprobe/internal/domain/classify"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/domain/match"
	"github.com/sophialabs/payprobe/internal/domain/params"
	"github.com/sophialabs/payprobe/internal/domain/report"
	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
	"github.com/sophialabs/payprobe/internal/infrastructure/services"
)

// EvaluateCaseUseCase compares the captured traffic of one case with its
// expectations and checks.
type EvaluateCaseUseCase struct {
	logger ports.Logger
}

// NewEvaluateCaseUseCase creates a new use case.
func NewEvaluateCaseUseCase(logger ports.Logger) *EvaluateCaseUseCase {
	return &EvaluateCaseUseCase{logger: logger}
}

// Execute validates every request in l. A bucket without traffic yields one
// "not captured" entry that fails only when the bucket has expectations.
func (uc *EvaluateCaseUseCase) Execute(cc *services.CompiledCase, l *ledger.Ledger) report.CaseReport {
	exp := cc.Case.Expect
	cr := report.CaseReport{
		Name:     cc.Case.Name,
		Captured: map[string]int{},
	}

	reports := l.Requests(classify.BucketReport)
	cr.Captured[string(classify.BucketReport)] = len(reports)
	if len(reports) == 0 {
		cr.Entries = append(cr.Entries, uc.notCaptured(cc, report.KindReport, len(exp.ShareParams) == 0 && !hasChecks(cc, classify.BucketReport)))
	}
	for _, req := range reports {
		cr.Entries = append(cr.Entries, uc.compare(cc, req, report.KindReport, ledger.LayerQuery, exp.ShareParams))
		cr.Entries = append(cr.Entries, uc.runChecks(cc, req)...)
	}

	pays := l.Requests(classify.BucketPayEntrance)
	cr.Captured[string(classify.BucketPayEntrance)] = len(pays)
	if len(pays) == 0 {
		vacuous := len(exp.PayParams) == 0 && len(exp.EntranceParams) == 0 && len(exp.PromotionParams) == 0
		cr.Entries = append(cr.Entries, uc.notCaptured(cc, report.KindPayQuery, vacuous && !hasChecks(cc, classify.BucketPayEntrance)))
	}
	for _, req := range pays {
		cr.Entries = append(cr.Entries,
			uc.compare(cc, req, report.KindPayQuery, ledger.LayerQuery, exp.PayParams),
			uc.compare(cc, req, report.KindEntrance, ledger.LayerEntrance, exp.EntranceParams),
			uc.compare(cc, req, report.KindPromotion, ledger.LayerPromotion, exp.PromotionParams),
		)
		cr.Entries = append(cr.Entries, uc.runChecks(cc, req)...)
	}

	cr.Finalize()
	return cr
}

func (uc *EvaluateCaseUseCase) compare(cc *services.CompiledCase, req ledger.ClassifiedRequest, kind report.EntryKind, layer ledger.LayerKind, expected params.Tree) report.Entry {
	actual, _ := req.Layer(layer)
	res := match.Matches(actual, expected)
	e := report.Entry{
		Kind:       kind,
		EventType:  req.EventType,
		URL:        req.Raw.URL,
		Captured:   true,
		Matched:    res.Matched,
		Mismatches: res.Mismatches,
	}
	if res.Matched {
		uc.logger.Info("parameters matched", "case", cc.Case.Name, "kind", kind, "event", req.EventType, "url", req.Raw.URL)
		return e
	}
	for _, m := range res.Mismatches {
		uc.logger.Error("parameter mismatch",
			"case", cc.Case.Name,
			"bucket", req.Bucket,
			"kind", kind,
			"event", req.EventType,
			"url", req.Raw.URL,
			"path", m.Path,
			"reason", m.Reason,
			"expected", m.Expected,
			"actual", m.Actual,
		)
	}
	return e
}

func (uc *EvaluateCaseUseCase) runChecks(cc *services.CompiledCase, req ledger.ClassifiedRequest) []report.Entry {
	checks := cc.ChecksFor(string(req.Bucket))
	if len(checks) == 0 {
		return nil
	}
	subject := match.Subject{
		Bucket:    string(req.Bucket),
		EventType: req.EventType,
		URL:       req.Raw.URL,
		Layers:    make(map[string]params.Tree, len(req.Layers)),
	}
	for _, l := range req.Layers {
		subject.Layers[string(l.Kind)] = l.Params
	}

	entries := make([]report.Entry, 0, len(checks))
	for _, c := range checks {
		r := match.RunCheck(c, subject)
		if !r.Matched {
			uc.logger.Error("check failed", "case", cc.Case.Name, "check", r.Name, "bucket", req.Bucket, "event", req.EventType, "url", req.Raw.URL, "reason", r.Reason)
		}
		entries = append(entries, report.Entry{
			Kind:      report.KindCheck,
			Name:      r.Name,
			EventType: req.EventType,
			URL:       req.Raw.URL,
			Captured:  true,
			Matched:   r.Matched,
			Reason:    r.Reason,
		})
	}
	return entries
}

func (uc *EvaluateCaseUseCase) notCaptured(cc *services.CompiledCase, kind report.EntryKind, vacuous bool) report.Entry {
	if vacuous {
		uc.logger.Info("nothing captured", "case", cc.Case.Name, "kind", kind)
	} else {
		uc.logger.Error("nothing captured for expected traffic", "case", cc.Case.Name, "kind", kind)
	}
	e := report.Entry{Kind: kind, Captured: false, Matched: vacuous}
	if !vacuous {
		e.Reason = "not captured"
	}
	return e
}

func hasChecks(cc *services.CompiledCase, bucket classify.Bucket) bool {
	for _, c := range cc.Checks {
		if c.Bucket == string(bucket) {
			return true
		}
	}
	return false
}
