package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sophialabs/payprobe/internal/domain/classify"
	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/domain/report"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/browser"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/filesystem"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/logging"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/ratelimit"
	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
	"github.com/sophialabs/payprobe/internal/infrastructure/services"
	"github.com/sophialabs/payprobe/internal/infrastructure/usecases"
	"github.com/sophialabs/payprobe/internal/infrastructure/wiring"
)

// ErrCasesFailed is returned by Run when at least one case did not pass.
var ErrCasesFailed = errors.New("one or more cases failed")

// ErrLoadCases wraps failures to read or compile the case files.
var ErrLoadCases = errors.New("failed to load cases")

// App is the thin lifecycle manager that delegates dependency construction to wiring.Container.
type App struct {
	cfg        Config
	container  *wiring.Container
	httpServer *http.Server
}

// New validates cfg, sets up logging and launches the browser.
func New(cfg Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slogger, logCloser, err := logging.Setup(logging.Options{
		Mode:  cfg.LogMode,
		Dir:   cfg.LogDir,
		Level: cfg.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	logger := logging.New(slogger).With("profile", cfg.Profile)

	device, _ := browser.LookupDevice(cfg.Device)
	driver, err := browser.NewChromeDriver(browser.Options{
		Headless:      cfg.Headless,
		UserDataDir:   cfg.UserDataDir,
		ExecPath:      cfg.ChromePath,
		RemoteURL:     cfg.RemoteURL,
		Device:        device,
		ActionTimeout: cfg.ActionTimeout,
	}, logger)
	if err != nil {
		_ = logCloser.Close()
		return nil, err
	}

	a, err := build(cfg, driver, logger)
	if err != nil {
		_ = driver.Close()
		_ = logCloser.Close()
		return nil, err
	}
	a.container.OnClose(logCloser.Close)
	a.container.OnClose(driver.Close)
	return a, nil
}

// NewWithDriver builds the application around an existing driver and logger.
// The caller keeps ownership of both.
func NewWithDriver(cfg Config, driver flow.Driver, logger ports.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return build(cfg, driver, logger)
}

func build(cfg Config, driver flow.Driver, logger ports.Logger) (*App, error) {
	rules := classify.DefaultRules()
	rules.ReportURL = cfg.ReportURL
	rules.PayURL = cfg.PayURL

	container, err := wiring.New(wiring.Params{
		Workspace:   cfg.Workspace,
		CaseFile:    cfg.CaseFile,
		Rules:       rules,
		RenewalFlag: services.RenewalFlag{Key: cfg.RenewalKey, Value: cfg.RenewalValue},
		TraceSize:   cfg.TraceSize,
		URLTemplate: cfg.URLTemplate,
		ReportDir:   cfg.ReportDir,
		Suite: usecases.SuiteSettings{
			Profile:         cfg.Profile,
			Prefix:          cfg.Prefix,
			NavigateTimeout: cfg.NavigateTimeout,
			WaitPolicy:      flow.WaitPolicy(cfg.WaitPolicy),
			CaseTimeout:     cfg.CaseTimeout,
			Cooldown:        cfg.Cooldown,
			Plan:            cfg.Plan(),
			Timings:         cfg.Timings,
		},
		Pacing:    ratelimit.Limit{Rate: cfg.ActionRate, Burst: cfg.ActionBurst},
		Driver:    driver,
		Logger:    logger,
		StartedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to wire infrastructure: %w", err)
	}

	a := &App{cfg: cfg, container: container}
	if cfg.AdminPort > 0 {
		a.httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.AdminPort),
			Handler: container.Server(),
		}
	}
	return a, nil
}

// Run loads and runs the suite. Without watch mode it returns after one run,
// with ErrCasesFailed if any case failed. In watch mode the suite is rerun
// whenever case files change, until ctx ends or SIGINT/SIGTERM arrives.
// Case files that cannot be loaded on the first run are fatal in both modes;
// on later reruns they are logged and the previous report is kept.
func (a *App) Run(ctx context.Context) error {
	defer a.container.Close()
	logger := a.container.Logger()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := a.startAdmin()
	defer a.stopAdmin()

	var reload chan struct{}
	if a.cfg.Watch {
		reload = make(chan struct{}, 1)
		if w := a.setupWatcher(reload); w != nil {
			defer w.Stop()
		}
	}

	for first := true; ; first = false {
		rep, err := a.runOnce(ctx)
		if !a.cfg.Watch {
			if err != nil {
				return err
			}
			if !rep.Passed() {
				return ErrCasesFailed
			}
			return nil
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if first && (errors.Is(err, ErrLoadCases) || errors.Is(err, ErrInvalidConfig)) {
				return err
			}
			logger.Error("suite run failed", "error", err)
		}
		logger.Info("waiting for case file changes", "workspace", a.cfg.Workspace)

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case err := <-serverErr:
			return fmt.Errorf("admin server error: %w", err)
		case <-reload:
		}
	}
}

func (a *App) runOnce(ctx context.Context) (*report.RunReport, error) {
	idx, err := a.container.LoadCasesUseCase().Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadCases, err)
	}
	a.container.Server().SetCases(idx)

	cases, err := idx.Select(a.cfg.Cases)
	if err != nil {
		return nil, &ConfigError{Problems: []string{err.Error()}}
	}
	return a.container.RunSuiteUseCase().Execute(ctx, cases)
}

// LastReport returns the report of the most recent run.
func (a *App) LastReport() *report.RunReport {
	return a.container.RunSuiteUseCase().LastReport()
}

func (a *App) startAdmin() <-chan error {
	if a.httpServer == nil {
		return nil
	}
	logger := a.container.Logger()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("admin api listening", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("admin api stopped", "error", err)
			errCh <- err
		}
	}()
	return errCh
}

func (a *App) stopAdmin() {
	if a.httpServer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.container.Logger().Warn("admin api shutdown", "error", err)
	}
}

func (a *App) setupWatcher(reload chan<- struct{}) *filesystem.Watcher {
	logger := a.container.Logger()
	w, err := filesystem.NewWatcher(a.cfg.Workspace, a.cfg.WatcherDebounce, logger, func() {
		select {
		case reload <- struct{}{}:
		default:
		}
	})
	if err != nil {
		logger.Warn("file watcher not available", "error", err)
		return nil
	}
	w.Ignore(a.cfg.ReportDir, a.cfg.LogDir)
	w.Start()
	logger.Info("file watcher started", "workspace", a.cfg.Workspace)
	return w
}
