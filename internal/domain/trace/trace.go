package trace

import "time"

// Entry records one captured request as it passed through the recorder.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	Case         string    `json:"case,omitempty"`
	URL          string    `json:"url"`
	ResourceKind string    `json:"resource_kind"`
	Bucket       string    `json:"bucket"`
	EventType    string    `json:"event_type"`
	Purchase     string    `json:"purchase,omitempty"` // "renewal", "normal" or empty
	Layers       []string  `json:"layers,omitempty"`
	DecodeErrors []string  `json:"decode_errors,omitempty"`
}
