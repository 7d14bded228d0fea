package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/surface"
)

// MsgKind enumerates all message types in the progress view.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgVisible MsgKind = iota
	MsgAnimating
	MsgFill
	MsgText
	MsgFinished
)

type textUpdate struct {
	region surface.Region
	text   string
}

type finished struct {
	ui  models.ProgressUIState
	err error
}

// Kind reports which update the message carries.
func (m Msg) Kind() MsgKind { return m.kind }

func visibleMsg(v bool) Msg   { return Msg{kind: MsgVisible, data: v} }
func animatingMsg(a bool) Msg { return Msg{kind: MsgAnimating, data: a} }
func fillMsg(pct int) Msg     { return Msg{kind: MsgFill, data: pct} }

// textMsg is the constructor for [MsgText]
func textMsg(r surface.Region, text string) Msg {
	return Msg{kind: MsgText, data: textUpdate{region: r, text: text}}
}

// finishedMsg is the constructor for [MsgFinished]
func finishedMsg(ui models.ProgressUIState, err error) Msg {
	return Msg{kind: MsgFinished, data: finished{ui: ui, err: err}}
}
