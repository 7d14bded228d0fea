package models

import (
	"encoding/json"
	"fmt"

	"github.com/desertthunder/muzictl/internal/shared"
)

// JobHandle identifies one server-side import run. It is created once per submission and never mutated.
type JobHandle struct {
	JobID string `json:"job_id"`
	// Status is the optional acknowledgement the server sends alongside the id (e.g. "started").
	Status string `json:"status,omitempty"`
}

// ParseJobHandle decodes a submission response body.
//
// Fields other than job_id are ignored; a missing or empty job_id is an error.
func ParseJobHandle(body []byte) (*JobHandle, error) {
	var h JobHandle
	if err := json.Unmarshal(body, &h); err != nil {
		return nil, fmt.Errorf("%w: invalid job response: %v", shared.ErrInvalidInput, err)
	}
	if h.JobID == "" {
		return nil, fmt.Errorf("%w: job response has no job_id", shared.ErrInvalidInput)
	}
	return &h, nil
}
