package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/muzictl/internal/surface"
)

var _ surface.Surface = (*ProgramSurface)(nil)

// ProgramSurface implements [surface.Surface] by sending each update into a running program, so
// the subscriber never touches model state from its own goroutine.
type ProgramSurface struct {
	send func(tea.Msg)
}

// NewProgramSurface wraps p.
func NewProgramSurface(p *tea.Program) *ProgramSurface {
	return &ProgramSurface{send: p.Send}
}

func (s *ProgramSurface) SetVisible(v bool)       { s.send(visibleMsg(v)) }
func (s *ProgramSurface) SetAnimating(a bool)     { s.send(animatingMsg(a)) }
func (s *ProgramSurface) SetFill(pct int)         { s.send(fillMsg(pct)) }
func (s *ProgramSurface) SetPercentText(t string) { s.send(textMsg(surface.RegionPercent, t)) }
func (s *ProgramSurface) SetStatus(t string)      { s.send(textMsg(surface.RegionStatus, t)) }
func (s *ProgramSurface) SetTracks(t string)      { s.send(textMsg(surface.RegionTracks, t)) }
func (s *ProgramSurface) SetError(t string)       { s.send(textMsg(surface.RegionError, t)) }
func (s *ProgramSurface) SetSuccess(t string)     { s.send(textMsg(surface.RegionSuccess, t)) }
