package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/desertthunder/muzictl/internal/shared"
)

// Status is the discriminator of a [ProgressEvent].
//
// Only the reserved sentinels below carry meaning; any other value, or none, is an ongoing tick.
type Status string

const (
	StatusConnected Status = "connected"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// IsTerminal reports whether no further events follow a message with this status.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ProgressEvent is one message pushed on a job's progress channel.
//
// Every field is optional; nil counters mean "absent", which is different from zero for
// CompletedPages vs CurrentPage precedence.
type ProgressEvent struct {
	Status         Status `json:"status,omitempty"`
	TotalPages     *int   `json:"total_pages,omitempty"`
	CompletedPages *int   `json:"completed_pages,omitempty"`
	CurrentPage    *int   `json:"current_page,omitempty"`
	TracksImported *int   `json:"tracks_imported,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ParseProgressEvent decodes a single frame. The frame must be a JSON object; unknown fields are
// ignored and negative counters are rejected.
func ParseProgressEvent(data []byte) (*ProgressEvent, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &shared.MalformedProgressError{Payload: string(data), Err: fmt.Errorf("expected a JSON object")}
	}

	var evt ProgressEvent
	if err := json.Unmarshal(trimmed, &evt); err != nil {
		return nil, &shared.MalformedProgressError{Payload: string(data), Err: err}
	}

	for name, v := range map[string]*int{
		"total_pages":     evt.TotalPages,
		"completed_pages": evt.CompletedPages,
		"current_page":    evt.CurrentPage,
		"tracks_imported": evt.TracksImported,
	} {
		if v != nil && *v < 0 {
			return nil, &shared.MalformedProgressError{Payload: string(data), Err: fmt.Errorf("%s is negative (%d)", name, *v)}
		}
	}

	return &evt, nil
}

// Numerator returns completed_pages when present, else current_page, else 0.
func (e ProgressEvent) Numerator() int {
	switch {
	case e.CompletedPages != nil:
		return *e.CompletedPages
	case e.CurrentPage != nil:
		return *e.CurrentPage
	default:
		return 0
	}
}

// Total returns total_pages, or 0 when absent.
func (e ProgressEvent) Total() int {
	if e.TotalPages == nil {
		return 0
	}
	return *e.TotalPages
}

// Percent returns the rounded completion percentage. ok is false when the total is unknown, in
// which case the panel must keep its previous percentage.
func (e ProgressEvent) Percent() (percent int, ok bool) {
	total := e.Total()
	if total <= 0 {
		return 0, false
	}
	p := int(math.Round(100 * float64(e.Numerator()) / float64(total)))
	return min(max(p, 0), 100), true
}

// Tracks returns tracks_imported and whether it was present.
func (e ProgressEvent) Tracks() (int, bool) {
	if e.TracksImported == nil {
		return 0, false
	}
	return *e.TracksImported, true
}

// Int is a helper for building events with optional counters.
func Int(v int) *int { return &v }
