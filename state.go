package privchat

import "go.uber.org/zap"

// ============================================================================
// Session State
// ============================================================================

// State is everything a renderer needs to draw the session: connection
// status, the dialog directory, the message store, presence sets, and the UI
// flags the protocol influences (selection, new chat popup, directory
// loading).
//
// State is a value. Reductions return a new State and never touch the old
// one; there is no shared session singleton.
type State struct {
	Conn       ConnState
	Self       UserInfo
	Dialogs    Directory
	Messages   MessageLog
	Presence   Presence
	SelectedID string
	PopupOpen  bool

	logger *zap.Logger
}

// NewState returns the initial session state. A nil logger disables reducer
// diagnostics.
func NewState(logger *zap.Logger) State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return State{
		Conn:     ConnClosed,
		Dialogs:  NewDirectory(),
		Messages: NewMessageLog(),
		Presence: NewPresence(),
		logger:   logger,
	}
}

// Selected returns the selected dialog, ok=false when nothing is selected.
func (s State) Selected() (Dialog, bool) {
	if s.SelectedID == "" {
		return Dialog{}, false
	}
	return s.Dialogs.Get(s.SelectedID)
}
