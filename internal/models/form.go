package models

import (
	"io"
	"net/url"
	"sync"

	"github.com/desertthunder/muzictl/internal/shared"
)

// Upload is one file attached to a multipart submission.
type Upload struct {
	Field    string
	Filename string
	Content  io.Reader
}

// ImportForm holds the user-supplied fields for one provider's import.
//
// A form carries at most one open run: [ImportForm.Acquire] fails until the previous run reached a
// terminal state and called [ImportForm.Release] or [ImportForm.Reset].
type ImportForm struct {
	Fields url.Values
	Files  []Upload

	mu   sync.Mutex
	busy bool
}

// NewImportForm creates a form with the given fields.
func NewImportForm(fields url.Values, files ...Upload) *ImportForm {
	if fields == nil {
		fields = url.Values{}
	}
	return &ImportForm{Fields: fields, Files: files}
}

// Acquire marks the form as having an open submission.
func (f *ImportForm) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return shared.ErrSubmissionInProgress
	}
	f.busy = true
	return nil
}

// Release allows a new submission while keeping the entered values.
func (f *ImportForm) Release() {
	f.mu.Lock()
	f.busy = false
	f.mu.Unlock()
}

// Reset clears all fields and uploads and allows a fresh submission.
func (f *ImportForm) Reset() {
	f.mu.Lock()
	f.Fields = url.Values{}
	f.Files = nil
	f.busy = false
	f.mu.Unlock()
}

// Busy reports whether a submission is open.
func (f *ImportForm) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}
