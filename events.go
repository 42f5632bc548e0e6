package privchat

// ============================================================================
// Events
// ============================================================================

// Event is a single input to the session reducer. Everything that can change
// session state arrives as an Event: decoded socket frames, connection state
// transitions, resolved fetches, and user intents. The set is closed; the
// reducer logs and ignores anything it does not recognize.
type Event interface {
	isEvent()
}

// ConnStateChanged reports a connection lifecycle transition.
type ConnStateChanged struct {
	State ConnState
}

// MessagesFetched is the resolution of a message backlog fetch.
type MessagesFetched struct {
	Msgs []Message
	Err  error
}

// DialogsFetched is the resolution of a dialog directory fetch. Gen is the
// request generation the fetch was issued under; responses from superseded
// generations are discarded.
type DialogsFetched struct {
	Dialogs []Dialog
	Gen     uint64
	Err     error
}

// SelfInfoFetched is the resolution of a self info fetch.
type SelfInfoFetched struct {
	User UserInfo
	Err  error
}

// DialogsFiltered carries new filter input for the dialog list. The filtered
// view is recomputed inside the reducer so it stays consistent when the
// underlying list changes later.
type DialogsFiltered struct {
	Query string
}

// TypingToggled reports a typing indicator change for a user.
type TypingToggled struct {
	UserID string
	Change Change
}

// PresenceToggled reports an online/offline change for a user.
type PresenceToggled struct {
	UserID string
	Change Change
}

// MessageAppended carries a message to add to the store: an incoming message
// from the socket, or an echo of one appended elsewhere.
type MessageAppended struct {
	Msg Message
}

// MessageReconciled swaps a pending outgoing message's identity for the
// server-assigned one.
type MessageReconciled struct {
	PendingID   string
	ConfirmedID string
}

// UnreadCountSet is an authoritative unread counter push for one dialog.
type UnreadCountSet struct {
	DialogID string
	Count    int
}

// MessageMarkedRead reports that a message was read.
type MessageMarkedRead struct {
	MessageID string
}

// SendIntent is the user's request to send Body to the selected dialog.
type SendIntent struct {
	Body string
}

// FileUploadIntent is the user's request to send files to the selected dialog.
type FileUploadIntent struct {
	Files []FileHandle
}

// NewChatPopupToggled shows or hides the new chat user picker.
type NewChatPopupToggled struct {
	Visible bool
}

// DialogSelected makes a dialog the active one, inserting it into the
// confirmed list when it came from the candidate directory.
type DialogSelected struct {
	Dialog Dialog
}

// DirectoryLoadRequested asks for a (re)load of the dialog candidate
// directory.
type DirectoryLoadRequested struct{}

// DirectoryLoadFailed is the failure resolution of a directory fetch.
type DirectoryLoadFailed struct {
	Reason string
	Gen    uint64
}

// ServerErrorReceived is an error frame pushed by the server. Surfaced to the
// user, never fatal.
type ServerErrorReceived struct {
	Code    int
	Message string
}

func (ConnStateChanged) isEvent()       {}
func (MessagesFetched) isEvent()        {}
func (DialogsFetched) isEvent()         {}
func (SelfInfoFetched) isEvent()        {}
func (DialogsFiltered) isEvent()        {}
func (TypingToggled) isEvent()          {}
func (PresenceToggled) isEvent()        {}
func (MessageAppended) isEvent()        {}
func (MessageReconciled) isEvent()      {}
func (UnreadCountSet) isEvent()         {}
func (MessageMarkedRead) isEvent()      {}
func (SendIntent) isEvent()             {}
func (FileUploadIntent) isEvent()       {}
func (NewChatPopupToggled) isEvent()    {}
func (DialogSelected) isEvent()         {}
func (DirectoryLoadRequested) isEvent() {}
func (DirectoryLoadFailed) isEvent()    {}
func (ServerErrorReceived) isEvent()    {}

// ============================================================================
// Commands
// ============================================================================

// Command is a side effect requested by the reducer and executed by the host.
// Fetch commands resolve back into the event queue; send failures are logged
// and never fault the session.
type Command interface {
	isCommand()
}

// FetchSelfCommand asks the host to fetch the session user's info.
type FetchSelfCommand struct{}

// FetchMessagesCommand asks the host to fetch the message backlog.
type FetchMessagesCommand struct{}

// FetchDirectoryCommand asks the host to fetch the dialog candidate
// directory under the given generation.
type FetchDirectoryCommand struct {
	Gen uint64
}

// SendFrameCommand asks the host to push a frame over the transport.
type SendFrameCommand struct {
	Frame Frame
}

// UploadFilesCommand asks the host to transfer files and send a file frame
// for each once stored.
type UploadFilesCommand struct {
	DialogID string
	Uploads  []PendingUpload
}

func (FetchSelfCommand) isCommand()      {}
func (FetchMessagesCommand) isCommand()  {}
func (FetchDirectoryCommand) isCommand() {}
func (SendFrameCommand) isCommand()      {}
func (UploadFilesCommand) isCommand()    {}
