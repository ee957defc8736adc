package report_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/sophialabs/payprobe/internal/domain/report"
)

func TestCaseReport_Finalize(t *testing.T) {
	tests := []struct {
		name string
		c    report.CaseReport
		want bool
	}{
		{"no entries", report.CaseReport{}, true},
		{"all matched", report.CaseReport{Entries: []report.Entry{{Matched: true}, {Matched: true}}}, true},
		{"one mismatch", report.CaseReport{Entries: []report.Entry{{Matched: true}, {Matched: false}}}, false},
		{"case error", report.CaseReport{Err: "navigation failed", Entries: []report.Entry{{Matched: true}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.c.Finalize()
			if tt.c.Passed != tt.want {
				t.Errorf("Passed = %v, want %v", tt.c.Passed, tt.want)
			}
		})
	}
}

func TestCaseReport_Failures(t *testing.T) {
	c := report.CaseReport{Entries: []report.Entry{
		{Kind: report.KindReport, Matched: true},
		{Kind: report.KindEntrance, Matched: false},
	}}
	f := c.Failures()
	if len(f) != 1 || f[0].Kind != report.KindEntrance {
		t.Errorf("Failures() = %+v", f)
	}
}

func TestRunReport_Summary(t *testing.T) {
	r := report.NewRunReport("tt", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if _, err := uuid.Parse(r.ID); err != nil {
		t.Errorf("ID %q is not a uuid: %v", r.ID, err)
	}
	if !r.Passed() {
		t.Error("empty run should pass")
	}

	r.Cases = append(r.Cases, report.CaseReport{Passed: true}, report.CaseReport{Passed: false})
	s := r.Summary()
	if s != (report.Summary{Total: 2, Passed: 1, Failed: 1}) {
		t.Errorf("Summary() = %+v", s)
	}
	if r.Passed() {
		t.Error("run with a failed case should not pass")
	}
}

func TestNewRunReport_UniqueIDs(t *testing.T) {
	a := report.NewRunReport("", time.Time{})
	b := report.NewRunReport("", time.Time{})
	if a.ID == b.ID {
		t.Error("run IDs should differ")
	}
}
