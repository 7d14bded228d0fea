package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/surface"
)

const maxBarWidth = 60

// ImportFunc runs one import, drawing on s, and returns its final panel state.
type ImportFunc func(ctx context.Context, s surface.Surface) (models.ProgressUIState, error)

// ProgressModel renders one provider's progress panel.
type ProgressModel struct {
	title   string
	panel   *surface.Panel
	bar     progress.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap
	cancel  context.CancelFunc

	done   bool
	result models.ProgressUIState
	err    error
}

// NewProgressModel creates the view. cancel is called when the user quits before the import
// reached a terminal state; it may be nil.
func NewProgressModel(title, prefix string, cancel context.CancelFunc) *ProgressModel {
	if cancel == nil {
		cancel = func() {}
	}
	return &ProgressModel{
		title:   title,
		panel:   surface.NewPanel(prefix),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:    help.New(),
		keys:    newKeyMap(),
		cancel:  cancel,
	}
}

// Snapshot returns the regions as last drawn.
func (m *ProgressModel) Snapshot() surface.Snapshot { return m.panel.Snapshot() }

// Done reports whether the import has finished.
func (m *ProgressModel) Done() bool { return m.done }

// Result returns the import outcome carried by [MsgFinished].
func (m *ProgressModel) Result() (models.ProgressUIState, error) {
	return m.result, m.err
}

// Init implements [tea.Model].
func (m *ProgressModel) Init() tea.Cmd { return nil }

// Update handles incoming messages and updates the model state.
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(msg.Width-4, 10), maxBarWidth)
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			if !m.done {
				m.cancel()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case m.done:
			return m, tea.Quit
		}
		return m, nil

	case Msg:
		return m, m.apply(msg)

	case progress.FrameMsg:
		bar, cmd := m.bar.Update(msg)
		if b, ok := bar.(progress.Model); ok {
			m.bar = b
		}
		return m, cmd

	case spinner.TickMsg:
		if !m.panel.Snapshot().Animating {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *ProgressModel) apply(msg Msg) tea.Cmd {
	switch msg.kind {
	case MsgVisible:
		m.panel.SetVisible(msg.data.(bool))
	case MsgAnimating:
		animating := msg.data.(bool)
		wasAnimating := m.panel.Snapshot().Animating
		m.panel.SetAnimating(animating)
		if animating && !wasAnimating {
			return m.spinner.Tick
		}
	case MsgFill:
		m.panel.SetFill(msg.data.(int))
		return m.bar.SetPercent(float64(m.panel.Snapshot().Fill) / 100)
	case MsgText:
		u := msg.data.(textUpdate)
		switch u.region {
		case surface.RegionPercent:
			m.panel.SetPercentText(u.text)
		case surface.RegionStatus:
			m.panel.SetStatus(u.text)
		case surface.RegionTracks:
			m.panel.SetTracks(u.text)
		case surface.RegionError:
			m.panel.SetError(u.text)
		case surface.RegionSuccess:
			m.panel.SetSuccess(u.text)
		}
	case MsgFinished:
		f := msg.data.(finished)
		m.done = true
		m.result = f.ui
		m.err = f.err
	}
	return nil
}

// View renders the panel.
func (m *ProgressModel) View() string {
	snap := m.panel.Snapshot()

	var b strings.Builder
	b.WriteString(styles.title.Render(m.title))
	b.WriteString("\n")

	if snap.Visible {
		status := snap.Status
		if snap.Animating {
			status = m.spinner.View() + " " + status
		}
		b.WriteString(status + "\n\n")
		b.WriteString(m.bar.View() + " " + snap.Percent + "\n")
		if snap.Tracks != "" {
			b.WriteString(snap.Tracks + "\n")
		}
		if snap.Error != "" {
			b.WriteString("\n" + styles.Outcome(m.result.State).Render(snap.Error) + "\n")
		}
		if snap.Success != "" {
			b.WriteString("\n" + styles.ok.Render(snap.Success) + "\n")
		}
	}

	b.WriteString("\n")
	if m.done {
		b.WriteString(styles.help.Render("Press any key to exit"))
	} else {
		b.WriteString(m.help.View(m.keys))
	}
	return b.String()
}

// Run shows the progress view while fn runs and returns fn's result. Quitting early cancels the
// context passed to fn and waits for it to return.
func Run(ctx context.Context, title, prefix string, fn ImportFunc, opts ...tea.ProgramOption) (models.ProgressUIState, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := NewProgressModel(title, prefix, cancel)
	p := tea.NewProgram(m, opts...)
	s := NewProgramSurface(p)

	type outcome struct {
		ui  models.ProgressUIState
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		ui, err := fn(ctx, s)
		done <- outcome{ui, err}
		p.Send(finishedMsg(ui, err))
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return models.ProgressUIState{}, err
	}

	cancel()
	out := <-done
	return out.ui, out.err
}
