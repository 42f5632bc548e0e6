package privchat

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func testState(t *testing.T) State {
	t.Helper()
	return NewState(zaptest.NewLogger(t))
}

func incomingAt(id, dialogID, text, senderName string, at time.Time) Message {
	return Message{
		ID:         id,
		DialogID:   dialogID,
		Text:       text,
		SentAt:     at,
		Sender:     dialogID,
		SenderName: senderName,
		Status:     StatusConfirmed,
	}
}

// ============================================================================
// Connection transitions
// ============================================================================

func TestReduce_ConnOpenTriggersBootstrap(t *testing.T) {
	s := testState(t)
	require.Equal(t, ConnClosed, s.Conn)

	s, cmds := s.Reduce(ConnStateChanged{State: ConnConnecting})
	require.Equal(t, ConnConnecting, s.Conn)
	require.Empty(t, cmds)

	s, cmds = s.Reduce(ConnStateChanged{State: ConnOpen})
	require.Equal(t, ConnOpen, s.Conn)
	require.Equal(t, []Command{FetchSelfCommand{}, FetchMessagesCommand{}}, cmds)

	s, cmds = s.Reduce(ConnStateChanged{State: ConnClosed})
	require.Equal(t, ConnClosed, s.Conn)
	require.Empty(t, cmds)
}

func TestReduce_SelfInfo(t *testing.T) {
	s := testState(t)

	s, cmds := s.Reduce(SelfInfoFetched{User: UserInfo{ID: "me", Username: "Me"}})
	require.Empty(t, cmds)
	require.Equal(t, "me", s.Self.ID)

	// A failed refetch keeps the currently known identity.
	s, _ = s.Reduce(SelfInfoFetched{Err: errors.New("boom")})
	require.Equal(t, "me", s.Self.ID)
}

// ============================================================================
// Optimistic send and reconciliation
// ============================================================================

func TestReduce_OptimisticSendAndReconcile(t *testing.T) {
	s := testState(t)
	s, _ = s.Reduce(SelfInfoFetched{User: UserInfo{ID: "me", Username: "Me"}})
	s, _ = s.Reduce(DialogSelected{Dialog: Dialog{ID: "7", Title: "Grace"}})

	s, cmds := s.Reduce(SendIntent{Body: "  hello  "})
	require.Len(t, cmds, 1)
	sf, ok := cmds[0].(SendFrameCommand)
	require.True(t, ok)
	tf, ok := sf.Frame.(TextFrame)
	require.True(t, ok)
	require.Equal(t, "7", tf.To)
	require.Equal(t, "hello", tf.Body)
	require.True(t, IsPendingID(tf.RandomID))

	msgs := s.Messages.ForDialog("7")
	require.Len(t, msgs, 1)
	require.Equal(t, tf.RandomID, msgs[0].ID)
	require.Equal(t, StatusPending, msgs[0].Status)
	require.True(t, msgs[0].Out)

	// The dialog preview reflects the optimistic message right away.
	dlg, ok := s.Dialogs.Get("7")
	require.True(t, ok)
	require.Equal(t, "hello", dlg.LastMessage)

	// Server acknowledgement swaps the identity in place.
	s, cmds = s.Reduce(MessageReconciled{PendingID: tf.RandomID, ConfirmedID: "m-1"})
	require.Empty(t, cmds)
	msgs = s.Messages.ForDialog("7")
	require.Len(t, msgs, 1)
	require.Equal(t, "m-1", msgs[0].ID)
	require.Equal(t, StatusConfirmed, msgs[0].Status)
	require.Equal(t, "hello", msgs[0].Text)

	// The peer's read receipt lands on the confirmed id.
	s, _ = s.Reduce(MessageMarkedRead{MessageID: "m-1"})
	got, _ := s.Messages.Get("m-1")
	require.True(t, got.Read)
}

func TestReduce_SendIntentGuards(t *testing.T) {
	t.Run("blank body is dropped", func(t *testing.T) {
		s := testState(t)
		s, _ = s.Reduce(DialogSelected{Dialog: Dialog{ID: "7", Title: "Grace"}})
		next, cmds := s.Reduce(SendIntent{Body: "   "})
		require.Empty(t, cmds)
		require.Equal(t, 0, next.Messages.Len())
	})

	t.Run("no selection is dropped", func(t *testing.T) {
		s := testState(t)
		next, cmds := s.Reduce(SendIntent{Body: "hello"})
		require.Empty(t, cmds)
		require.Equal(t, 0, next.Messages.Len())
	})
}

func TestReduce_ReconciliationMiss(t *testing.T) {
	s := testState(t)
	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-1", "3", "hi", "Bob", time.Now())})

	next, cmds := s.Reduce(MessageReconciled{PendingID: "local-ghost", ConfirmedID: "m-2"})
	require.Empty(t, cmds)
	require.Equal(t, s.Messages.Len(), next.Messages.Len())
	_, ok := next.Messages.Get("m-2")
	require.False(t, ok)
}

// ============================================================================
// Incoming messages and unread tracking
// ============================================================================

func TestReduce_IncomingToUnselectedDialog(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := testState(t)
	s, _ = s.Reduce(DialogSelected{Dialog: Dialog{ID: "7", Title: "Grace"}})

	s, cmds := s.Reduce(MessageAppended{Msg: incomingAt("m-9", "3", "yo", "Bob", base)})
	require.Empty(t, cmds)
	require.Equal(t, 1, s.Dialogs.Unread("3"))

	dlg, ok := s.Dialogs.Get("3")
	require.True(t, ok)
	require.Equal(t, "Bob", dlg.Title)
	require.Equal(t, "yo", dlg.LastMessage)
	require.Equal(t, base, dlg.LastActivity)

	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-10", "3", "again", "Bob", base.Add(time.Second))})
	require.Equal(t, 2, s.Dialogs.Unread("3"))

	// A replayed frame must not double-count.
	next, cmds := s.Reduce(MessageAppended{Msg: incomingAt("m-9", "3", "yo", "Bob", base)})
	require.Empty(t, cmds)
	require.Equal(t, s.Messages.Len(), next.Messages.Len())
	require.Equal(t, 2, next.Dialogs.Unread("3"))
}

func TestReduce_IncomingToSelectedDialog(t *testing.T) {
	s := testState(t)
	s, _ = s.Reduce(DialogSelected{Dialog: Dialog{ID: "3", Title: "Bob"}})

	s, cmds := s.Reduce(MessageAppended{Msg: incomingAt("m-9", "3", "yo", "Bob", time.Now())})
	require.Equal(t, 0, s.Dialogs.Unread("3"))
	require.Len(t, cmds, 1)
	rf, ok := cmds[0].(SendFrameCommand).Frame.(ReadFrame)
	require.True(t, ok)
	require.Equal(t, "3", rf.To)
	require.Equal(t, "m-9", rf.MessageID)
}

func TestReduce_SelectIssuesReadReceipts(t *testing.T) {
	base := time.Now()
	s := testState(t)
	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-1", "3", "a", "Bob", base)})
	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-2", "3", "b", "Bob", base.Add(time.Second))})
	require.Equal(t, 2, s.Dialogs.Unread("3"))

	s, cmds := s.Reduce(DialogSelected{Dialog: Dialog{ID: "3", Title: "Bob"}})
	require.Equal(t, "3", s.SelectedID)
	require.Equal(t, 0, s.Dialogs.Unread("3"))
	require.Len(t, cmds, 2)
	first := cmds[0].(SendFrameCommand).Frame.(ReadFrame)
	second := cmds[1].(SendFrameCommand).Frame.(ReadFrame)
	require.Equal(t, "m-1", first.MessageID)
	require.Equal(t, "m-2", second.MessageID)
}

func TestReduce_UnreadCountPushIsAuthoritative(t *testing.T) {
	s := testState(t)
	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-1", "3", "a", "Bob", time.Now())})
	require.Equal(t, 1, s.Dialogs.Unread("3"))

	s, cmds := s.Reduce(UnreadCountSet{DialogID: "3", Count: 7})
	require.Empty(t, cmds)
	require.Equal(t, 7, s.Dialogs.Unread("3"))

	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-2", "3", "b", "Bob", time.Now())})
	require.Equal(t, 8, s.Dialogs.Unread("3"))
}

func TestReduce_ReadReceiptForUnknownMessage(t *testing.T) {
	s := testState(t)
	next, cmds := s.Reduce(MessageMarkedRead{MessageID: "ghost"})
	require.Empty(t, cmds)
	require.Equal(t, s.Messages.Len(), next.Messages.Len())
}

// ============================================================================
// Directory loads and filtering
// ============================================================================

func TestReduce_DirectoryGenerations(t *testing.T) {
	s := testState(t)

	s, cmds := s.Reduce(DirectoryLoadRequested{})
	require.Len(t, cmds, 1)
	gen1 := cmds[0].(FetchDirectoryCommand).Gen

	// A second load is requested before the first resolves.
	s, cmds = s.Reduce(DirectoryLoadRequested{})
	gen2 := cmds[0].(FetchDirectoryCommand).Gen
	require.Equal(t, gen1+1, gen2)

	// The superseded response arrives late and is discarded.
	s, _ = s.Reduce(DialogsFetched{Dialogs: []Dialog{{ID: "1", Title: "Old"}}, Gen: gen1})
	require.Empty(t, s.Dialogs.Candidates())
	require.True(t, s.Dialogs.Loading())

	// The current response replaces the candidates wholesale.
	s, _ = s.Reduce(DialogsFetched{Dialogs: []Dialog{{ID: "2", Title: "New"}}, Gen: gen2})
	candidates := s.Dialogs.Candidates()
	require.Len(t, candidates, 1)
	require.Equal(t, "New", candidates[0].Title)
	require.False(t, s.Dialogs.Loading())

	// A stale failure is ignored too.
	s, _ = s.Reduce(DirectoryLoadFailed{Reason: "late boom", Gen: gen1})
	require.Len(t, s.Dialogs.Candidates(), 1)
}

func TestReduce_DirectoryLoadFailureKeepsCandidates(t *testing.T) {
	s := testState(t)
	s, _ = s.Reduce(DialogsFetched{Dialogs: []Dialog{{ID: "1", Title: "Kept"}}, Gen: 0})

	s, cmds := s.Reduce(DirectoryLoadRequested{})
	gen := cmds[0].(FetchDirectoryCommand).Gen

	s, _ = s.Reduce(DirectoryLoadFailed{Reason: "boom", Gen: gen})
	require.False(t, s.Dialogs.Loading())
	candidates := s.Dialogs.Candidates()
	require.Len(t, candidates, 1)
	require.Equal(t, "Kept", candidates[0].Title)
}

func TestReduce_DirectoryErrorResponseKeepsCandidates(t *testing.T) {
	s := testState(t)
	s, cmds := s.Reduce(DirectoryLoadRequested{})
	gen := cmds[0].(FetchDirectoryCommand).Gen

	s, _ = s.Reduce(DialogsFetched{Err: errors.New("boom"), Gen: gen})
	require.False(t, s.Dialogs.Loading())
	require.Empty(t, s.Dialogs.Candidates())
}

func TestReduce_FilterWhileLoadInFlight(t *testing.T) {
	base := time.Now()
	s := testState(t)
	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-1", "3", "a", "Bob", base)})
	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-2", "5", "b", "Alice", base.Add(time.Second))})

	s, _ = s.Reduce(DirectoryLoadRequested{})
	s, cmds := s.Reduce(DialogsFiltered{Query: "ali"})
	require.Empty(t, cmds)
	require.True(t, s.Dialogs.Loading(), "filtering must not cancel the load")

	filtered := s.Dialogs.Filtered()
	require.Len(t, filtered, 1)
	require.Equal(t, "Alice", filtered[0].Title)
}

// ============================================================================
// Backlog fetches
// ============================================================================

func TestReduce_MessagesFetched(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := testState(t)
	s, _ = s.Reduce(DialogSelected{Dialog: Dialog{ID: "7", Title: "Grace"}})
	s, cmds := s.Reduce(SendIntent{Body: "in flight"})
	pendingID := cmds[0].(SendFrameCommand).Frame.(TextFrame).RandomID

	read := incomingAt("m-1", "7", "seen already", "Grace", base)
	read.Read = true
	snapshot := []Message{
		read,
		incomingAt("m-2", "3", "unread backlog", "Bob", base.Add(time.Minute)),
	}

	s, cmds = s.Reduce(MessagesFetched{Msgs: snapshot})
	require.Empty(t, cmds)

	// Snapshot plus the still-pending outgoing message.
	require.Equal(t, 3, s.Messages.Len())
	kept, ok := s.Messages.Get(pendingID)
	require.True(t, ok)
	require.Equal(t, StatusPending, kept.Status)

	// Unread counters rebuilt from the snapshot; the selected dialog stays 0.
	require.Equal(t, 1, s.Dialogs.Unread("3"))
	require.Equal(t, 0, s.Dialogs.Unread("7"))

	// Dialogs referenced by the backlog now exist.
	dlg, ok := s.Dialogs.Get("3")
	require.True(t, ok)
	require.Equal(t, "Bob", dlg.Title)
}

func TestReduce_MessagesFetchedError(t *testing.T) {
	s := testState(t)
	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-1", "3", "kept", "Bob", time.Now())})

	next, cmds := s.Reduce(MessagesFetched{Err: errors.New("boom")})
	require.Empty(t, cmds)
	require.Equal(t, s.Messages.Len(), next.Messages.Len())
	_, ok := next.Messages.Get("m-1")
	require.True(t, ok)
}

// ============================================================================
// Presence, popup, errors, unknown events
// ============================================================================

func TestReduce_PresenceAndTyping(t *testing.T) {
	s := testState(t)

	s, cmds := s.Reduce(PresenceToggled{UserID: "3", Change: ChangeAdded})
	require.Empty(t, cmds)
	require.True(t, s.Presence.IsOnline("3"))
	require.False(t, s.Presence.IsTyping("3"))

	s, _ = s.Reduce(TypingToggled{UserID: "3", Change: ChangeAdded})
	require.True(t, s.Presence.IsTyping("3"))

	s, _ = s.Reduce(TypingToggled{UserID: "3", Change: ChangeRemoved})
	require.False(t, s.Presence.IsTyping("3"))
	require.True(t, s.Presence.IsOnline("3"))

	s, _ = s.Reduce(PresenceToggled{UserID: "3", Change: ChangeRemoved})
	require.False(t, s.Presence.IsOnline("3"))
}

func TestReduce_PopupToggle(t *testing.T) {
	s := testState(t)
	s, _ = s.Reduce(NewChatPopupToggled{Visible: true})
	require.True(t, s.PopupOpen)

	// Selecting a dialog closes the picker.
	s, _ = s.Reduce(DialogSelected{Dialog: Dialog{ID: "1", Title: "Alice"}})
	require.False(t, s.PopupOpen)
}

func TestReduce_ServerErrorLeavesStateAlone(t *testing.T) {
	s := testState(t)
	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-1", "3", "hi", "Bob", time.Now())})

	next, cmds := s.Reduce(ServerErrorReceived{Code: 3, Message: "Invalid message_id"})
	require.Empty(t, cmds)
	require.Equal(t, s.Messages.Len(), next.Messages.Len())
	require.Equal(t, s.Dialogs.Len(), next.Dialogs.Len())
}

type bogusEvent struct{}

func (bogusEvent) isEvent() {}

func TestReduce_UnknownEventIsNoOp(t *testing.T) {
	s := testState(t)
	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-1", "3", "hi", "Bob", time.Now())})

	next, cmds := s.Reduce(bogusEvent{})
	require.Empty(t, cmds)
	require.Equal(t, s.Messages.Len(), next.Messages.Len())
	require.Equal(t, s.Conn, next.Conn)
}

func TestReduce_InputStateNotMutated(t *testing.T) {
	s := testState(t)
	s, _ = s.Reduce(SelfInfoFetched{User: UserInfo{ID: "me", Username: "Me"}})
	s, _ = s.Reduce(DialogSelected{Dialog: Dialog{ID: "7", Title: "Grace"}})
	s, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-1", "3", "hi", "Bob", time.Now())})

	msgCount := s.Messages.Len()
	dialogs := s.Dialogs.Dialogs()
	unread := s.Dialogs.Unread("3")

	_, _ = s.Reduce(SendIntent{Body: "mutation probe"})
	_, _ = s.Reduce(MessageAppended{Msg: incomingAt("m-2", "3", "more", "Bob", time.Now())})
	_, _ = s.Reduce(UnreadCountSet{DialogID: "3", Count: 99})
	_, _ = s.Reduce(DialogsFiltered{Query: "bob"})

	require.Equal(t, msgCount, s.Messages.Len())
	require.Equal(t, dialogs, s.Dialogs.Dialogs())
	require.Equal(t, unread, s.Dialogs.Unread("3"))
}
