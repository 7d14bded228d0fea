package surface

import (
	"sync"
)

// Snapshot is a copy of a panel's regions at one point in time.
type Snapshot struct {
	Visible   bool
	Animating bool
	Fill      int
	Percent   string
	Status    string
	Tracks    string
	Error     string
	Success   string
}

// Text returns the text of a region, keyed by [Region]. The panel and fill regions render as
// their visibility and width respectively.
func (s Snapshot) Text(r Region) string {
	switch r {
	case RegionPanel:
		if s.Visible {
			return "block"
		}
		return "none"
	case RegionFill:
		return PercentText(s.Fill)
	case RegionPercent:
		return s.Percent
	case RegionStatus:
		return s.Status
	case RegionTracks:
		return s.Tracks
	case RegionError:
		return s.Error
	case RegionSuccess:
		return s.Success
	default:
		return ""
	}
}

// Panel is an in-memory [Surface], safe for concurrent use.
//
// OnChange, when set, is called with the new snapshot after every write that changed a region.
type Panel struct {
	Prefix   string
	OnChange func(Snapshot)

	mu    sync.Mutex
	state Snapshot
}

// NewPanel creates a hidden, empty panel.
func NewPanel(prefix string) *Panel {
	return &Panel{Prefix: prefix}
}

// Snapshot returns a copy of the current regions.
func (p *Panel) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// ID returns the prefixed identifier of a region on this panel.
func (p *Panel) ID(r Region) string { return RegionID(p.Prefix, r) }

func (p *Panel) update(fn func(*Snapshot)) {
	p.mu.Lock()
	before := p.state
	fn(&p.state)
	after := p.state
	onChange := p.OnChange
	p.mu.Unlock()

	if onChange != nil && before != after {
		onChange(after)
	}
}

func (p *Panel) SetVisible(v bool)       { p.update(func(s *Snapshot) { s.Visible = v }) }
func (p *Panel) SetAnimating(a bool)     { p.update(func(s *Snapshot) { s.Animating = a }) }
func (p *Panel) SetFill(pct int)         { p.update(func(s *Snapshot) { s.Fill = min(max(pct, 0), 100) }) }
func (p *Panel) SetPercentText(t string) { p.update(func(s *Snapshot) { s.Percent = t }) }
func (p *Panel) SetStatus(t string)      { p.update(func(s *Snapshot) { s.Status = t }) }
func (p *Panel) SetTracks(t string)      { p.update(func(s *Snapshot) { s.Tracks = t }) }
func (p *Panel) SetError(t string)       { p.update(func(s *Snapshot) { s.Error = t }) }
func (p *Panel) SetSuccess(t string)     { p.update(func(s *Snapshot) { s.Success = t }) }
