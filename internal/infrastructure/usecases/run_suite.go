package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/domain/report"
	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
	"github.com/sophialabs/payprobe/internal/infrastructure/services"
)

// URLBuilder renders the page URL of a test case.
type URLBuilder interface {
	Build(prefix, path, query string) (string, error)
}

// ReportWriter persists a finished run report.
type ReportWriter interface {
	WriteReport(r *report.RunReport) error
}

// SuiteSettings configures how cases are driven.
type SuiteSettings struct {
	Profile         string
	Prefix          string
	NavigateTimeout time.Duration
	WaitPolicy      flow.WaitPolicy
	CaseTimeout     time.Duration // 0 disables the per-case deadline
	Cooldown        time.Duration // wait after a failed navigation
	Plan            flow.Plan
	Timings         flow.Timings
}

// RunSuiteUseCase drives every case through the browser and evaluates the
// captured traffic.
type RunSuiteUseCase struct {
	driver   flow.Driver
	recorder *services.Recorder
	evaluate *EvaluateCaseUseCase
	urls     URLBuilder
	writer   ReportWriter // nil disables report files
	clock    ports.Clock
	logger   ports.Logger
	settings SuiteSettings

	mu   sync.RWMutex
	last *report.RunReport
	run  sync.Mutex
}

// NewRunSuiteUseCase creates a new use case. writer may be nil.
func NewRunSuiteUseCase(
	driver flow.Driver,
	recorder *services.Recorder,
	evaluate *EvaluateCaseUseCase,
	urls URLBuilder,
	writer ReportWriter,
	clock ports.Clock,
	logger ports.Logger,
	settings SuiteSettings,
) *RunSuiteUseCase {
	return &RunSuiteUseCase{
		driver:   driver,
		recorder: recorder,
		evaluate: evaluate,
		urls:     urls,
		writer:   writer,
		clock:    clock,
		logger:   logger,
		settings: settings,
	}
}

// Execute runs cases in order. Runs never overlap; a second call waits for
// the first. Case failures are reported, not returned; the error is non-nil
// only when ctx ends the run early or the report cannot be written.
func (uc *RunSuiteUseCase) Execute(ctx context.Context, cases []*services.CompiledCase) (*report.RunReport, error) {
	uc.run.Lock()
	defer uc.run.Unlock()

	rep := report.NewRunReport(uc.settings.Profile, uc.clock.Now())
	uc.logger.Info("run started", "run", rep.ID, "profile", rep.Profile, "cases", len(cases))

	unsubscribe := uc.driver.Subscribe(func(req ledger.CapturedRequest) {
		uc.recorder.Ingest(req)
	})
	defer unsubscribe()

	var runErr error
	for _, cc := range cases {
		if err := ctx.Err(); err != nil {
			runErr = fmt.Errorf("run interrupted: %w", err)
			break
		}
		rep.Cases = append(rep.Cases, uc.runCase(ctx, cc))
	}

	rep.FinishedAt = uc.clock.Now()
	uc.store(rep)

	s := rep.Summary()
	uc.logger.Info("run finished", "run", rep.ID, "total", s.Total, "passed", s.Passed, "failed", s.Failed)

	if uc.writer != nil {
		if err := uc.writer.WriteReport(rep); err != nil {
			uc.logger.Error("failed to write report", "run", rep.ID, "error", err)
			if runErr == nil {
				runErr = fmt.Errorf("failed to write report: %w", err)
			}
		}
	}
	return rep, runErr
}

func (uc *RunSuiteUseCase) runCase(ctx context.Context, cc *services.CompiledCase) report.CaseReport {
	tc := cc.Case
	started := uc.clock.Now()
	uc.recorder.BeginCase(tc.Name)
	uc.logger.Info("case started", "case", tc.Name)

	var (
		flowResult flow.Result
		caseErr    string
	)

	pageURL, err := uc.urls.Build(uc.settings.Prefix, tc.Path, tc.Query)
	if err != nil {
		caseErr = err.Error()
		uc.logger.Error("failed to build case url", "case", tc.Name, "error", err)
	} else {
		flowResult, caseErr = uc.drive(ctx, tc.Name, pageURL)
	}

	cr := uc.evaluate.Execute(cc, uc.recorder.Ledger())
	cr.URL = pageURL
	cr.StartedAt = started
	cr.FinishedAt = uc.clock.Now()
	cr.Flow = flowResult
	cr.Err = caseErr
	cr.Finalize()

	uc.logger.Info("case finished",
		"case", tc.Name,
		"passed", cr.Passed,
		"report_requests", cr.Captured["report"],
		"pay_requests", cr.Captured["pay_entrance"],
		"renewal", flowResult.Final.Renewal,
		"normal", flowResult.Final.Normal,
	)
	return cr
}

// drive opens the page and runs the purchase loop under the case deadline.
func (uc *RunSuiteUseCase) drive(ctx context.Context, name, pageURL string) (flow.Result, string) {
	caseCtx := ctx
	if uc.settings.CaseTimeout > 0 {
		var cancel context.CancelFunc
		caseCtx, cancel = context.WithTimeout(ctx, uc.settings.CaseTimeout)
		defer cancel()
	}

	opts := flow.NavigateOptions{Timeout: uc.settings.NavigateTimeout, WaitPolicy: uc.settings.WaitPolicy}
	if err := uc.driver.Navigate(caseCtx, pageURL, opts); err != nil {
		uc.logger.Error("navigation failed", "case", name, "url", pageURL, "error", err)
		uc.recoverBrowser(ctx, opts)
		return flow.Result{}, err.Error()
	}

	ctrl := flow.NewController(uc.driver, uc.recorder, uc.clock, uc.logger, uc.settings.Plan, uc.settings.Timings)
	res := ctrl.Run(caseCtx)
	if res.Err != "" && caseCtx.Err() != nil {
		return res, fmt.Sprintf("case timed out: %s", res.Err)
	}
	return res, ""
}

// recoverBrowser gives a stuck page time to settle and then parks the tab on
// a blank page so the next case starts clean.
func (uc *RunSuiteUseCase) recoverBrowser(ctx context.Context, opts flow.NavigateOptions) {
	if err := uc.clock.SleepContext(ctx, uc.settings.Cooldown); err != nil {
		return
	}
	if err := uc.driver.Navigate(ctx, "about:blank", opts); err != nil {
		uc.logger.Warn("failed to reset browser to a blank page", "error", err)
	}
}

func (uc *RunSuiteUseCase) store(r *report.RunReport) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.last = r
}

// LastReport returns the most recent run report, or nil before the first run.
func (uc *RunSuiteUseCase) LastReport() *report.RunReport {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	return uc.last
}
