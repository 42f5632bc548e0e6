package privchat

import "time"

// ============================================================================
// Connection State
// ============================================================================

// ConnState represents the lifecycle state of the chat connection.
type ConnState string

const (
	ConnConnecting ConnState = "connecting"
	ConnOpen       ConnState = "open"
	ConnClosing    ConnState = "closing"
	ConnClosed     ConnState = "closed"
)

// ============================================================================
// Membership Changes
// ============================================================================

// Change is a tagged membership delta carried by presence and typing events.
// The producer states the intended transition instead of leaving the consumer
// to infer it from current membership.
type Change string

const (
	ChangeAdded   Change = "added"
	ChangeRemoved Change = "removed"
)

// ============================================================================
// Domain Types
// ============================================================================

// MessageStatus tracks delivery acknowledgement of an outgoing message.
type MessageStatus string

const (
	StatusPending   MessageStatus = "pending"
	StatusConfirmed MessageStatus = "confirmed"
)

// UserInfo identifies a chat participant.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// FileRef describes a file stored on the server and attached to a message.
type FileRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// Message is a single chat message as held by the session.
//
// Outgoing messages start with a client-generated id ("local-" prefix) and
// StatusPending; acknowledgement swaps the id for the server one in place.
type Message struct {
	ID         string        `json:"id"`
	DialogID   string        `json:"dialogId"`
	Text       string        `json:"text"`
	File       *FileRef      `json:"file,omitempty"`
	SentAt     time.Time     `json:"sentAt"`
	Read       bool          `json:"read"`
	Out        bool          `json:"out"`
	Sender     string        `json:"sender"`
	SenderName string        `json:"senderName,omitempty"`
	Status     MessageStatus `json:"status"`
}

// Dialog is a 1:1 conversation with another user. The dialog id is the other
// participant's user id.
type Dialog struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastActivity time.Time `json:"lastActivity"`
	UnreadCount  int       `json:"unreadCount"`
	LastMessage  string    `json:"lastMessage,omitempty"`
}

// FileHandle references a local file the user intends to attach.
type FileHandle struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Path string `json:"path"`
}

// PendingUpload pairs a file handle with the pending message created for it,
// so the transfer result can be reconciled back onto the right record.
type PendingUpload struct {
	Handle    FileHandle `json:"handle"`
	PendingID string     `json:"pendingId"`
}
