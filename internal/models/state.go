package models

// State is a position in the progress subscriber's lifecycle.
type State int

const (
	StateIdle State = iota
	StateSubscribing
	StateRunning
	StateCompleted
	StateFailed
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateDisconnected:
		return "disconnected"
	default:
		return ""
	}
}

// ParseState is the inverse of [State.String]; unknown names map to [StateIdle].
func ParseState(s string) State {
	for st := StateIdle; st <= StateDisconnected; st++ {
		if st.String() == s {
			return st
		}
	}
	return StateIdle
}

// IsTerminal reports whether no further progress events are expected in this state.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateDisconnected
}

// Terminal returns the panel's terminal flag for this state.
func (s State) Terminal() Terminal {
	switch s {
	case StateCompleted:
		return TerminalSuccess
	case StateFailed:
		return TerminalFailure
	case StateDisconnected:
		return TerminalTransportError
	default:
		return TerminalNone
	}
}

// Terminal is the terminal flag shown by the progress panel.
type Terminal int

const (
	TerminalNone Terminal = iota
	TerminalSuccess
	TerminalFailure
	TerminalTransportError
)

func (t Terminal) String() string {
	switch t {
	case TerminalSuccess:
		return "success"
	case TerminalFailure:
		return "failure"
	case TerminalTransportError:
		return "transport-error"
	default:
		return "none"
	}
}

// ProgressUIState is the panel state derived from the events seen so far. It is never persisted
// and is owned by the subscriber that produced it.
type ProgressUIState struct {
	State       State
	Percent     int
	PhaseLabel  string
	TracksLabel string
	Tracks      int
	ErrorLabel  string
	Success     string
	Terminal    Terminal
}
