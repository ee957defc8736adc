package wiring

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sophialabs/payprobe/internal/domain/classify"
	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/domain/trace"
	inboundhttp "github.com/sophialabs/payprobe/internal/infrastructure/inbound/http"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/clock"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/ratelimit"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/template"
	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
	"github.com/sophialabs/payprobe/internal/infrastructure/services"
	"github.com/sophialabs/payprobe/internal/infrastructure/usecases"
)

// Params holds the subset of configuration needed to construct infrastructure components.
type Params struct {
	Workspace string // root for case files and @root includes
	CaseFile  string // file or directory, relative to Workspace

	Rules       classify.Rules
	RenewalFlag services.RenewalFlag
	TraceSize   int
	URLTemplate string // "" uses the default page URL template
	ReportDir   string // "" disables report files

	Suite       usecases.SuiteSettings
	Pacing      ratelimit.Limit
	PacingKinds map[string]ratelimit.Limit

	Driver    flow.Driver
	Clock     ports.Clock // nil uses the system clock
	Logger    ports.Logger
	StartedAt time.Time
}

// Container owns the construction of all infrastructure components.
type Container struct {
	logger    ports.Logger
	repo      *filesystem.CaseRepository
	recorder  *services.Recorder
	driver    flow.Driver
	pacer     *ratelimit.Pacer
	loadUC    *usecases.LoadCasesUseCase
	runUC     *usecases.RunSuiteUseCase
	server    *inboundhttp.Server
	closers   []func() error
	closeOnce sync.Once
}

// New constructs all infrastructure components. Nothing is started.
func New(p Params) (*Container, error) {
	if p.Driver == nil {
		return nil, errors.New("a browser driver is required")
	}
	if p.Logger == nil {
		return nil, errors.New("a logger is required")
	}
	if _, err := os.Stat(p.Workspace); err != nil {
		return nil, fmt.Errorf("failed to access workspace: %w", err)
	}

	classifier, err := classify.New(p.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	repo, err := filesystem.NewCaseRepository(p.Workspace, p.CaseFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create case repository: %w", err)
	}

	urls, err := template.NewURLBuilder(p.URLTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to compile url template: %w", err)
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	renewal := p.RenewalFlag
	if renewal.Key == "" {
		renewal = services.DefaultRenewalFlag()
	}

	recorder := services.NewRecorder(classifier, ledger.New(), trace.NewRingBuffer(p.TraceSize), clk, p.Logger, renewal)

	pacer := ratelimit.NewPacer(p.Pacing, p.PacingKinds)
	driver := ratelimit.NewPacedDriver(p.Driver, pacer)

	compiler := services.NewCompiler(template.NewRegistry())
	loadUC := usecases.NewLoadCasesUseCase(repo, compiler, p.Logger)

	var writer usecases.ReportWriter
	if p.ReportDir != "" {
		writer = filesystem.NewReportWriter(p.ReportDir)
	}
	runUC := usecases.NewRunSuiteUseCase(
		driver, recorder, usecases.NewEvaluateCaseUseCase(p.Logger), urls, writer, clk, p.Logger, p.Suite,
	)

	server := inboundhttp.NewServer(recorder, runUC, p.Logger, p.StartedAt)

	return &Container{
		logger:   p.Logger,
		repo:     repo,
		recorder: recorder,
		driver:   driver,
		pacer:    pacer,
		loadUC:   loadUC,
		runUC:    runUC,
		server:   server,
	}, nil
}

// OnClose registers fn to run when the container closes, in reverse order.
func (c *Container) OnClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close runs the registered closers. It is idempotent.
func (c *Container) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		for i := len(c.closers) - 1; i >= 0; i-- {
			if err := c.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}

// Logger returns the logger passed at construction time.
func (c *Container) Logger() ports.Logger {
	return c.logger
}

// Repository returns the case repository.
func (c *Container) Repository() *filesystem.CaseRepository {
	return c.repo
}

// Recorder returns the traffic recorder.
func (c *Container) Recorder() *services.Recorder {
	return c.recorder
}

// Driver returns the paced browser driver.
func (c *Container) Driver() flow.Driver {
	return c.driver
}

// Pacer returns the action pacer.
func (c *Container) Pacer() *ratelimit.Pacer {
	return c.pacer
}

// LoadCasesUseCase returns the use case for loading and compiling cases.
func (c *Container) LoadCasesUseCase() *usecases.LoadCasesUseCase {
	return c.loadUC
}

// RunSuiteUseCase returns the use case that drives the cases.
func (c *Container) RunSuiteUseCase() *usecases.RunSuiteUseCase {
	return c.runUC
}

// Server returns the admin HTTP server.
func (c *Container) Server() *inboundhttp.Server {
	return c.server
}
