package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/domain/match"
)

// EntryKind names what an entry validated.
type EntryKind string

const (
	KindReport    EntryKind = "report"
	KindPayQuery  EntryKind = "pay_query"
	KindEntrance  EntryKind = "entrance"
	KindPromotion EntryKind = "promotion"
	KindCheck     EntryKind = "check"
)

// Entry is one validation outcome for one captured request, or a
// "not captured" marker when the bucket stayed empty.
type Entry struct {
	Kind       EntryKind        `json:"kind"`
	Name       string           `json:"name,omitempty"`
	EventType  string           `json:"event_type,omitempty"`
	URL        string           `json:"url,omitempty"`
	Captured   bool             `json:"captured"`
	Matched    bool             `json:"matched"`
	Mismatches []match.Mismatch `json:"mismatches,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}

// CaseReport is the outcome of one test case.
type CaseReport struct {
	Name       string         `json:"name"`
	URL        string         `json:"url"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Flow       flow.Result    `json:"flow"`
	Entries    []Entry        `json:"entries"`
	Captured   map[string]int `json:"captured"`
	Err        string         `json:"error,omitempty"`
	Passed     bool           `json:"passed"`
}

// Finalize derives Passed from the entries and the case error.
func (c *CaseReport) Finalize() {
	c.Passed = c.Err == ""
	for _, e := range c.Entries {
		if !e.Matched {
			c.Passed = false
			return
		}
	}
}

// Failures returns the entries that did not match.
func (c *CaseReport) Failures() []Entry {
	var out []Entry
	for _, e := range c.Entries {
		if !e.Matched {
			out = append(out, e)
		}
	}
	return out
}

// RunReport is the outcome of one suite run.
type RunReport struct {
	ID         string       `json:"id"`
	Profile    string       `json:"profile,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Cases      []CaseReport `json:"cases"`
}

// NewRunReport starts a report with a fresh run ID.
func NewRunReport(profile string, startedAt time.Time) *RunReport {
	return &RunReport{
		ID:        uuid.NewString(),
		Profile:   profile,
		StartedAt: startedAt,
		Cases:     []CaseReport{},
	}
}

// Summary counts passed and failed cases.
type Summary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// Summary tallies the case outcomes.
func (r *RunReport) Summary() Summary {
	s := Summary{Total: len(r.Cases)}
	for _, c := range r.Cases {
		if c.Passed {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}

// Passed reports whether every case passed.
func (r *RunReport) Passed() bool {
	return r.Summary().Failed == 0
}
