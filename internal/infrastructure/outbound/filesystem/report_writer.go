package filesystem

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sophialabs/payprobe/internal/domain/report"
)

// ReportWriter stores run reports as JSON files in a directory.
type ReportWriter struct {
	dir string
}

// NewReportWriter creates a writer for dir. The directory is created on the
// first write.
func NewReportWriter(dir string) *ReportWriter {
	return &ReportWriter{dir: dir}
}

// FileName returns the file name a report is written under.
func FileName(r *report.RunReport) string {
	id := r.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("report-%s-%s.json", r.StartedAt.Format("20060102-150405"), id)
}

// WriteReport writes r atomically.
func (w *ReportWriter) WriteReport(r *report.RunReport) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return atomicWriteFile(filepath.Join(w.dir, FileName(r)), append(data, '\n'))
}

// atomicWriteFile writes content to a temp file then renames it over target.
func atomicWriteFile(target string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".payprobe-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
