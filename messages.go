package privchat

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// localIDPrefix marks client-generated message ids awaiting server identity.
const localIDPrefix = "local-"

func newPendingID() string {
	return localIDPrefix + uuid.NewString()
}

// IsPendingID reports whether id is a client-generated temporary id.
func IsPendingID(id string) bool {
	return strings.HasPrefix(id, localIDPrefix)
}

// ============================================================================
// Message Store
// ============================================================================

// MessageLog is the in-memory message store for one session. Messages keep
// their append order; a pending outgoing message holds its position when the
// server acknowledgement swaps its identity.
//
// MessageLog is a value; every mutation returns a new MessageLog. There is at
// most one live record per logical message.
type MessageLog struct {
	order []string
	byID  map[string]Message
}

// NewMessageLog returns an empty message store.
func NewMessageLog() MessageLog {
	return MessageLog{byID: map[string]Message{}}
}

// Len returns the number of stored messages.
func (l MessageLog) Len() int {
	return len(l.order)
}

// Get looks up a message by id.
func (l MessageLog) Get(id string) (Message, bool) {
	m, ok := l.byID[id]
	return m, ok
}

// AppendOutgoing creates a pending outgoing text message for the dialog and
// appends it. The record is immediately renderable; delivery happens
// elsewhere and never blocks the append.
func (l MessageLog) AppendOutgoing(dialogID, body string, sender UserInfo) (MessageLog, Message) {
	msg := Message{
		ID:         newPendingID(),
		DialogID:   dialogID,
		Text:       body,
		SentAt:     time.Now().UTC(),
		Out:        true,
		Sender:     sender.ID,
		SenderName: sender.Username,
		Status:     StatusPending,
	}
	return l.append(msg), msg
}

// AppendOutgoingFile creates a pending outgoing file message for a local file
// about to be transferred.
func (l MessageLog) AppendOutgoingFile(dialogID string, h FileHandle, sender UserInfo) (MessageLog, Message) {
	msg := Message{
		ID:         newPendingID(),
		DialogID:   dialogID,
		File:       &FileRef{Name: h.Name, Size: h.Size},
		SentAt:     time.Now().UTC(),
		Out:        true,
		Sender:     sender.ID,
		SenderName: sender.Username,
		Status:     StatusPending,
	}
	return l.append(msg), msg
}

// Append adds a message at the end. Ids already present are kept as is, so
// replays cannot duplicate a record.
func (l MessageLog) Append(m Message) MessageLog {
	if _, ok := l.byID[m.ID]; ok {
		return l
	}
	return l.append(m)
}

// Reconcile replaces a pending message's identity with the server-assigned
// one, in place: same position, new id, status confirmed. A missing pending
// id returns ok=false and leaves the store untouched.
func (l MessageLog) Reconcile(pendingID, confirmedID string) (MessageLog, bool) {
	m, ok := l.byID[pendingID]
	if !ok {
		return l, false
	}
	nl := l.clone()
	for i, id := range nl.order {
		if id == pendingID {
			nl.order[i] = confirmedID
			break
		}
	}
	delete(nl.byID, pendingID)
	m.ID = confirmedID
	m.Status = StatusConfirmed
	nl.byID[confirmedID] = m
	return nl, true
}

// MarkRead flips the message's read flag. Unknown ids return ok=false.
func (l MessageLog) MarkRead(id string) (MessageLog, Message, bool) {
	m, ok := l.byID[id]
	if !ok {
		return l, Message{}, false
	}
	if m.Read {
		return l, m, true
	}
	nl := l.clone()
	m.Read = true
	nl.byID[id] = m
	return nl, m, true
}

// ForDialog materializes the dialog's messages oldest first. Equal timestamps
// keep append order. The slice is fresh on every call; callers may hold or
// mutate it freely.
func (l MessageLog) ForDialog(dialogID string) []Message {
	out := make([]Message, 0, len(l.order))
	for _, id := range l.order {
		if m := l.byID[id]; m.DialogID == dialogID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SentAt.Before(out[j].SentAt)
	})
	return out
}

// All returns every message in append order.
func (l MessageLog) All() []Message {
	out := make([]Message, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

// UnreadIncoming returns the dialog's unread incoming messages in append
// order. Used to issue read receipts when the dialog is opened.
func (l MessageLog) UnreadIncoming(dialogID string) []Message {
	var out []Message
	for _, id := range l.order {
		m := l.byID[id]
		if m.DialogID == dialogID && !m.Out && !m.Read {
			out = append(out, m)
		}
	}
	return out
}

// UnreadByDialog counts unread incoming messages per dialog.
func (l MessageLog) UnreadByDialog() map[string]int {
	counts := map[string]int{}
	for _, id := range l.order {
		m := l.byID[id]
		if !m.Out && !m.Read {
			counts[m.DialogID]++
		}
	}
	return counts
}

// MergeSnapshot rebuilds the store from a fetched backlog while keeping
// still-pending outgoing messages, in their relative order, after it.
func (l MessageLog) MergeSnapshot(msgs []Message) MessageLog {
	nl := NewMessageLog()
	for _, m := range msgs {
		if _, ok := nl.byID[m.ID]; ok {
			continue
		}
		m.Status = StatusConfirmed
		nl.order = append(nl.order, m.ID)
		nl.byID[m.ID] = m
	}
	for _, id := range l.order {
		m := l.byID[id]
		if m.Status != StatusPending {
			continue
		}
		if _, ok := nl.byID[id]; ok {
			continue
		}
		nl.order = append(nl.order, id)
		nl.byID[id] = m
	}
	return nl
}

// ── internals ────────────────────────────────────────────

func (l MessageLog) append(m Message) MessageLog {
	nl := l.clone()
	nl.order = append(nl.order, m.ID)
	nl.byID[m.ID] = m
	return nl
}

func (l MessageLog) clone() MessageLog {
	nl := MessageLog{
		order: append([]string(nil), l.order...),
		byID:  make(map[string]Message, len(l.byID)+1),
	}
	for k, v := range l.byID {
		nl.byID[k] = v
	}
	return nl
}
