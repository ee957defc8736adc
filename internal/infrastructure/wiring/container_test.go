package wiring_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sophialabs/payprobe/internal/domain/classify"
	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/infrastructure/usecases"
	"github.com/sophialabs/payprobe/internal/infrastructure/wiring"
	"github.com/sophialabs/payprobe/internal/testutil"
)

const caseJSON = `[
  {
    "name": "tt reader page",
    "path": "lapp/page",
    "query": "bookid=1",
    "expectResult": {"shareParams": {"channel": "tt"}}
  }
]`

func validParams(t *testing.T) wiring.Params {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "cases.json"), []byte(caseJSON), 0o644); err != nil {
		t.Fatalf("failed to write case file: %v", err)
	}
	rules := classify.DefaultRules()
	rules.ReportURL = "https://stat.example.com"
	rules.PayURL = "https://pay.example.com/v1/cartoon/pay?"

	return wiring.Params{
		Workspace: dir,
		CaseFile:  "cases.json",
		Rules:     rules,
		TraceSize: 20,
		ReportDir: filepath.Join(dir, "reports"),
		Suite: usecases.SuiteSettings{
			Prefix:  "https://novel.example.com/tt/xingchen",
			Plan:    flow.DefaultPlan(),
			Timings: flow.DefaultTimings(),
		},
		Driver:    &testutil.ScriptedDriver{},
		Clock:     &testutil.FixedClock{T: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		Logger:    &testutil.NoopLogger{},
		StartedAt: time.Now(),
	}
}

func TestNew_ValidParams(t *testing.T) {
	c, err := wiring.New(validParams(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	for name, v := range map[string]any{
		"Logger":           c.Logger(),
		"Repository":       c.Repository(),
		"Recorder":         c.Recorder(),
		"Driver":           c.Driver(),
		"Pacer":            c.Pacer(),
		"LoadCasesUseCase": c.LoadCasesUseCase(),
		"RunSuiteUseCase":  c.RunSuiteUseCase(),
		"Server":           c.Server(),
	} {
		if v == nil {
			t.Errorf("%s() returned nil", name)
		}
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*wiring.Params)
	}{
		{"missing workspace", func(p *wiring.Params) { p.Workspace = filepath.Join(p.Workspace, "absent") }},
		{"missing endpoints", func(p *wiring.Params) { p.Rules.PayURL = "" }},
		{"bad url template", func(p *wiring.Params) { p.URLTemplate = "{{ prefix " }},
		{"no driver", func(p *wiring.Params) { p.Driver = nil }},
		{"no logger", func(p *wiring.Params) { p.Logger = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams(t)
			tt.mutate(&p)
			if _, err := wiring.New(p); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_MissingEndpointsIsConfigurationError(t *testing.T) {
	p := validParams(t)
	p.Rules.ReportURL = ""
	_, err := wiring.New(p)
	if !errors.Is(err, classify.ErrMissingEndpoint) {
		t.Errorf("expected ErrMissingEndpoint, got %v", err)
	}
}

func TestContainer_LoadAndRun(t *testing.T) {
	p := validParams(t)
	driver := p.Driver.(*testutil.ScriptedDriver)
	driver.OnNavigate = func(d *testutil.ScriptedDriver, url string) {
		d.Emit(ledger.CapturedRequest{URL: "https://stat.example.com/lapp/page?channel=tt", ResourceKind: ledger.KindXHR})
	}

	c, err := wiring.New(p)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	idx, err := c.LoadCasesUseCase().Execute(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	rep, err := c.RunSuiteUseCase().Execute(context.Background(), idx.All())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if s := rep.Summary(); s.Total != 1 || s.Passed != 1 {
		t.Errorf("summary = %+v, cases = %+v", s, rep.Cases)
	}

	reports, _ := os.ReadDir(p.ReportDir)
	if len(reports) != 1 {
		t.Errorf("expected one report file, got %d", len(reports))
	}
}

func TestContainer_CloseRunsClosersOnceInReverse(t *testing.T) {
	c, err := wiring.New(validParams(t))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var order []string
	c.OnClose(func() error { order = append(order, "browser"); return nil })
	c.OnClose(func() error { order = append(order, "log file"); return errors.New("sync failed") })

	if err := c.Close(); err == nil {
		t.Error("expected closer error to be returned")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if len(order) != 2 || order[0] != "log file" || order[1] != "browser" {
		t.Errorf("close order = %v", order)
	}
}
