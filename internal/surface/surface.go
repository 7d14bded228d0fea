// package surface defines the progress panel the import core writes to.
//
// A [Surface] is a set of named display regions (fill, percent text, status, tracks, error,
// success) plus a visibility toggle and a fill animation flag. Regions are addressed with a
// caller-supplied prefix so one subscriber implementation can drive a panel per provider.
package surface

import "fmt"

// Region names a display region within a progress panel.
type Region string

const (
	RegionPanel   Region = "progress"
	RegionFill    Region = "progress-fill"
	RegionPercent Region = "progress-text"
	RegionStatus  Region = "progress-status"
	RegionTracks  Region = "progress-tracks"
	RegionError   Region = "progress-error"
	RegionSuccess Region = "progress-success"
)

// Regions lists every region in render order.
var Regions = []Region{RegionPanel, RegionFill, RegionPercent, RegionStatus, RegionTracks, RegionError, RegionSuccess}

// RegionID returns the fully qualified identifier of a region, e.g. "lastfm-progress-fill".
func RegionID(prefix string, r Region) string {
	if prefix == "" {
		return string(r)
	}
	return prefix + "-" + string(r)
}

// StartingLabel is the status shown between reset and the first progress tick.
const StartingLabel = "Starting import..."

// Surface is written by exactly one owner at a time: the job initiator for the initial reset,
// then the progress subscriber until it reaches a terminal state.
type Surface interface {
	SetVisible(visible bool)
	SetAnimating(animating bool)
	SetFill(percent int)
	SetPercentText(text string)
	SetStatus(text string)
	SetTracks(text string)
	SetError(text string)
	SetSuccess(text string)
}

// Reset puts s back into its initial state: 0%, status "Starting import...", empty tracks, error
// and success text, fill animating and the panel visible.
func Reset(s Surface) {
	if s == nil {
		return
	}
	s.SetFill(0)
	s.SetAnimating(true)
	s.SetPercentText(PercentText(0))
	s.SetStatus(StartingLabel)
	s.SetTracks("")
	s.SetError("")
	s.SetSuccess("")
	s.SetVisible(true)
}

// PercentText formats a percentage the way the panel displays it.
func PercentText(p int) string {
	return fmt.Sprintf("%d%%", p)
}

// Discard is a [Surface] that drops every write.
var Discard Surface = discard{}

type discard struct{}

func (discard) SetVisible(bool)       {}
func (discard) SetAnimating(bool)     {}
func (discard) SetFill(int)           {}
func (discard) SetPercentText(string) {}
func (discard) SetStatus(string)      {}
func (discard) SetTracks(string)      {}
func (discard) SetError(string)       {}
func (discard) SetSuccess(string)     {}

// Multi fans every write out to each surface in order.
type Multi []Surface

func (m Multi) SetVisible(v bool) {
	for _, s := range m {
		s.SetVisible(v)
	}
}

func (m Multi) SetAnimating(a bool) {
	for _, s := range m {
		s.SetAnimating(a)
	}
}

func (m Multi) SetFill(p int) {
	for _, s := range m {
		s.SetFill(p)
	}
}

func (m Multi) SetPercentText(t string) {
	for _, s := range m {
		s.SetPercentText(t)
	}
}

func (m Multi) SetStatus(t string) {
	for _, s := range m {
		s.SetStatus(t)
	}
}

func (m Multi) SetTracks(t string) {
	for _, s := range m {
		s.SetTracks(t)
	}
}

func (m Multi) SetError(t string) {
	for _, s := range m {
		s.SetError(t)
	}
}

func (m Multi) SetSuccess(t string) {
	for _, s := range m {
		s.SetSuccess(t)
	}
}
