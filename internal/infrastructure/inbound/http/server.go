package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sophialabs/payprobe/internal/domain/classify"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/domain/report"
	"github.com/sophialabs/payprobe/internal/domain/trace"
	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
	"github.com/sophialabs/payprobe/internal/infrastructure/services"
)

const (
	maxBodySize       = 1 << 20
	defaultTraceLimit = 50
)

// ReportSource provides the most recent run report.
type ReportSource interface {
	LastReport() *report.RunReport
}

// Server exposes the recorder state and the last run report over HTTP.
type Server struct {
	router   *chi.Mux
	cases    atomic.Pointer[services.CaseIndex]
	recorder *services.Recorder
	reports  ReportSource
	logger   ports.Logger
	started  time.Time
}

// NewServer creates the admin server. reports may be nil.
func NewServer(recorder *services.Recorder, reports ReportSource, logger ports.Logger, started time.Time) *Server {
	s := &Server{
		recorder: recorder,
		reports:  reports,
		logger:   logger,
		started:  started,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/__admin", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/counts", s.handleCounts)
		r.Get("/trace", s.handleTrace)
		r.Get("/ledger/{bucket}", s.handleLedger)
		r.Get("/report", s.handleReport)
		r.Get("/cases", s.handleCases)
		r.Post("/events", s.handleEvents)
		r.Post("/reset", s.handleReset)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no_route", "no admin route for "+r.URL.Path)
	})
	return r
}

// SetCases publishes the loaded case index. Safe to call while serving.
func (s *Server) SetCases(idx *services.CaseIndex) {
	s.cases.Store(idx)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	cases := 0
	if idx := s.cases.Load(); idx != nil {
		cases = idx.Len()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"cases":        cases,
		"current_case": s.recorder.CurrentCase(),
	})
}

func (s *Server) handleCounts(w http.ResponseWriter, _ *http.Request) {
	l := s.recorder.Ledger()
	writeJSON(w, http.StatusOK, map[string]any{
		"case":     s.recorder.CurrentCase(),
		"purchase": s.recorder.SnapshotCounts(),
		"captured": map[string]int{
			string(classify.BucketReport):      l.Len(classify.BucketReport),
			string(classify.BucketPayEntrance): l.Len(classify.BucketPayEntrance),
		},
	})
}

// handleTrace returns the newest entries, oldest first. Optional filters:
// limit, bucket and case.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	n := defaultTraceLimit
	if raw := q.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		n = parsed
	}

	bucket, caseName := q.Get("bucket"), q.Get("case")
	var keep func(trace.Entry) bool
	if bucket != "" || caseName != "" {
		keep = func(e trace.Entry) bool {
			return (bucket == "" || e.Bucket == bucket) && (caseName == "" || e.Case == caseName)
		}
	}

	entries := s.recorder.Trace().Filter(n, keep)
	if entries == nil {
		entries = []trace.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	bucket := classify.Bucket(chi.URLParam(r, "bucket"))
	if bucket != classify.BucketReport && bucket != classify.BucketPayEntrance {
		writeError(w, http.StatusBadRequest, "unknown_bucket", "bucket must be report or pay_entrance")
		return
	}
	reqs := s.recorder.Ledger().Requests(bucket)
	out := make([]requestView, 0, len(reqs))
	for _, cr := range reqs {
		out = append(out, viewOf(cr))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	var last *report.RunReport
	if s.reports != nil {
		last = s.reports.LastReport()
	}
	if last == nil {
		writeError(w, http.StatusNotFound, "no_report", "no run has finished yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": last.Summary(),
		"report":  last,
	})
}

func (s *Server) handleCases(w http.ResponseWriter, r *http.Request) {
	var all []*services.CompiledCase
	if idx := s.cases.Load(); idx != nil {
		all = idx.All()
	}
	views := make([]caseView, 0, len(all))
	for _, cc := range all {
		views = append(views, caseView{
			Name:   cc.Case.Name,
			Path:   cc.Case.Path,
			Query:  cc.Case.Query,
			Checks: len(cc.Checks),
			Source: cc.Case.SourceFile,
		})
	}
	writeJSON(w, http.StatusOK, services.Paginate(views, services.ParsePageQuery(r.URL.Query())))
}

// eventPayload is one externally reported request.
type eventPayload struct {
	URL          string `json:"url"`
	ResourceKind string `json:"resourceKind"`
}

// handleEvents ingests one event object or a list of them, as if the browser
// had issued the requests.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read_failed", err.Error())
		return
	}
	if len(body) > maxBodySize {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "request body exceeds 1 MB")
		return
	}

	events, err := decodeEvents(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	recorded := make([]requestView, 0, len(events))
	for _, ev := range events {
		if ev.URL == "" {
			writeError(w, http.StatusBadRequest, "missing_url", "every event needs a url")
			return
		}
	}
	for _, ev := range events {
		kind := ledger.ParseResourceKind(ev.ResourceKind)
		if ev.ResourceKind == "" {
			kind = ledger.KindXHR
		}
		if cr, ok := s.recorder.Ingest(ledger.CapturedRequest{URL: ev.URL, ResourceKind: kind}); ok {
			recorded = append(recorded, viewOf(cr))
		}
	}
	s.logger.Debug("external events ingested", "received", len(events), "recorded", len(recorded))

	writeJSON(w, http.StatusAccepted, map[string]any{
		"received": len(events),
		"recorded": recorded,
		"purchase": s.recorder.SnapshotCounts(),
	})
}

func decodeEvents(body []byte) ([]eventPayload, error) {
	var list []eventPayload
	if err := json.Unmarshal(body, &list); err == nil {
		return list, nil
	}
	var one eventPayload
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, errors.New("body must be an event object or a list of events")
	}
	return []eventPayload{one}, nil
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	s.recorder.Reset()
	s.logger.Info("ledger reset via admin api")
	w.WriteHeader(http.StatusNoContent)
}

type requestView struct {
	URL          string         `json:"url"`
	ResourceKind string         `json:"resource_kind"`
	ObservedAt   time.Time      `json:"observed_at"`
	Bucket       string         `json:"bucket"`
	EventType    string         `json:"event_type"`
	Layers       map[string]any `json:"layers"`
}

func viewOf(cr ledger.ClassifiedRequest) requestView {
	layers := make(map[string]any, len(cr.Layers))
	for _, l := range cr.Layers {
		layers[string(l.Kind)] = l.Params.ToAny()
	}
	return requestView{
		URL:          cr.Raw.URL,
		ResourceKind: string(cr.Raw.ResourceKind),
		ObservedAt:   cr.Raw.ObservedAt,
		Bucket:       string(cr.Bucket),
		EventType:    cr.EventType,
		Layers:       layers,
	}
}

type caseView struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Query  string `json:"query,omitempty"`
	Checks int    `json:"checks"`
	Source string `json:"source,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}
