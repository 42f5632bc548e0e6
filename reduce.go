package privchat

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ============================================================================
// Session Reducer
// ============================================================================

// Reduce applies one event and returns the next state plus the side effects
// the host must run. Reduce performs no I/O and never mutates its receiver;
// containers are copied before writing, so a State handed out earlier is
// never changed retroactively.
//
// The host applies events one at a time to completion. Unrecognized events
// are logged and leave the state unchanged.
func (s State) Reduce(ev Event) (State, []Command) {
	switch e := ev.(type) {
	case ConnStateChanged:
		s.Conn = e.State
		if e.State == ConnOpen {
			// Frames may have been missed while down; refetch self and backlog.
			return s, []Command{FetchSelfCommand{}, FetchMessagesCommand{}}
		}
		return s, nil

	case SelfInfoFetched:
		if e.Err != nil {
			s.logger.Warn("self info fetch failed", zap.Error(e.Err))
			return s, nil
		}
		s.Self = e.User
		return s, nil

	case MessagesFetched:
		return s.reduceMessagesFetched(e)

	case DialogsFetched:
		return s.reduceDialogsFetched(e)

	case DirectoryLoadRequested:
		var gen uint64
		s.Dialogs, gen = s.Dialogs.BeginLoad()
		return s, []Command{FetchDirectoryCommand{Gen: gen}}

	case DirectoryLoadFailed:
		if e.Gen != s.Dialogs.Gen() {
			s.logger.Debug("stale directory failure discarded", zap.Uint64("gen", e.Gen))
			return s, nil
		}
		s.logger.Warn("directory load failed", zap.String("reason", e.Reason))
		s.Dialogs = s.Dialogs.ClearLoading()
		return s, nil

	case DialogsFiltered:
		s.Dialogs = s.Dialogs.Filter(e.Query)
		return s, nil

	case TypingToggled:
		s.Presence = s.Presence.WithTyping(e.UserID, e.Change)
		return s, nil

	case PresenceToggled:
		s.Presence = s.Presence.WithOnline(e.UserID, e.Change)
		return s, nil

	case MessageAppended:
		return s.reduceMessageAppended(e)

	case MessageReconciled:
		next, ok := s.Messages.Reconcile(e.PendingID, e.ConfirmedID)
		if !ok {
			s.logger.Warn("reconciliation miss",
				zap.String("pending_id", e.PendingID),
				zap.String("confirmed_id", e.ConfirmedID))
			return s, nil
		}
		s.Messages = next
		return s, nil

	case UnreadCountSet:
		s.Dialogs = s.Dialogs.SetUnread(e.DialogID, e.Count)
		return s, nil

	case MessageMarkedRead:
		next, msg, ok := s.Messages.MarkRead(e.MessageID)
		if !ok {
			s.logger.Debug("read receipt for unknown message",
				zap.String("message_id", e.MessageID))
			return s, nil
		}
		s.Messages = next
		if s.SelectedID != "" && msg.DialogID == s.SelectedID {
			s.Dialogs = s.Dialogs.SetUnread(msg.DialogID, 0)
		}
		return s, nil

	case SendIntent:
		return s.reduceSendIntent(e)

	case FileUploadIntent:
		return s.reduceFileUploadIntent(e)

	case NewChatPopupToggled:
		s.PopupOpen = e.Visible
		return s, nil

	case DialogSelected:
		return s.reduceDialogSelected(e)

	case ServerErrorReceived:
		s.logger.Error("server error",
			zap.Int("code", e.Code), zap.String("message", e.Message))
		return s, nil

	default:
		s.logger.Warn("unhandled event", zap.String("type", fmt.Sprintf("%T", ev)))
		return s, nil
	}
}

// reduceMessagesFetched folds a fetched backlog in: confirmed records are
// replaced wholesale, pending outgoing ones survive, dialogs referenced by
// the snapshot are created, and unread counters are rebuilt from read flags.
func (s State) reduceMessagesFetched(e MessagesFetched) (State, []Command) {
	if e.Err != nil {
		s.logger.Warn("message fetch failed", zap.Error(e.Err))
		return s, nil
	}
	s.Messages = s.Messages.MergeSnapshot(e.Msgs)
	for _, m := range e.Msgs {
		s.Dialogs = s.Dialogs.Observe(m)
	}
	counts := s.Messages.UnreadByDialog()
	for _, dlg := range s.Dialogs.Dialogs() {
		n := counts[dlg.ID]
		if dlg.ID == s.SelectedID {
			n = 0
		}
		s.Dialogs = s.Dialogs.SetUnread(dlg.ID, n)
	}
	return s, nil
}

func (s State) reduceDialogsFetched(e DialogsFetched) (State, []Command) {
	if e.Gen != s.Dialogs.Gen() {
		s.logger.Debug("stale directory response discarded",
			zap.Uint64("gen", e.Gen), zap.Uint64("current", s.Dialogs.Gen()))
		return s, nil
	}
	if e.Err != nil {
		s.logger.Warn("directory load failed", zap.Error(e.Err))
		s.Dialogs = s.Dialogs.ClearLoading()
		return s, nil
	}
	s.Dialogs = s.Dialogs.WithCandidates(e.Dialogs)
	return s, nil
}

func (s State) reduceMessageAppended(e MessageAppended) (State, []Command) {
	if _, dup := s.Messages.Get(e.Msg.ID); dup {
		return s, nil
	}
	s.Messages = s.Messages.Append(e.Msg)
	s.Dialogs = s.Dialogs.Observe(e.Msg)

	if e.Msg.Out {
		return s, nil
	}
	if s.SelectedID != "" && e.Msg.DialogID == s.SelectedID {
		// Visible right away; acknowledge instead of counting it unread.
		return s, []Command{SendFrameCommand{Frame: ReadFrame{
			To:        e.Msg.DialogID,
			MessageID: e.Msg.ID,
		}}}
	}
	s.Dialogs = s.Dialogs.AddUnread(e.Msg.DialogID, 1)
	return s, nil
}

func (s State) reduceSendIntent(e SendIntent) (State, []Command) {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return s, nil
	}
	if s.SelectedID == "" {
		s.logger.Warn("send intent with no dialog selected")
		return s, nil
	}
	var msg Message
	s.Messages, msg = s.Messages.AppendOutgoing(s.SelectedID, body, s.Self)
	s.Dialogs = s.Dialogs.Observe(msg)
	return s, []Command{SendFrameCommand{Frame: TextFrame{
		To:       s.SelectedID,
		Body:     body,
		RandomID: msg.ID,
	}}}
}

func (s State) reduceFileUploadIntent(e FileUploadIntent) (State, []Command) {
	if len(e.Files) == 0 {
		return s, nil
	}
	if s.SelectedID == "" {
		s.logger.Warn("file upload intent with no dialog selected")
		return s, nil
	}
	uploads := make([]PendingUpload, 0, len(e.Files))
	for _, h := range e.Files {
		var msg Message
		s.Messages, msg = s.Messages.AppendOutgoingFile(s.SelectedID, h, s.Self)
		s.Dialogs = s.Dialogs.Observe(msg)
		uploads = append(uploads, PendingUpload{Handle: h, PendingID: msg.ID})
	}
	return s, []Command{UploadFilesCommand{DialogID: s.SelectedID, Uploads: uploads}}
}

func (s State) reduceDialogSelected(e DialogSelected) (State, []Command) {
	s.Dialogs = s.Dialogs.Select(e.Dialog)
	s.SelectedID = e.Dialog.ID
	s.PopupOpen = false

	// Opening the dialog reads its backlog; issue receipts for anything the
	// peer has not seen confirmed yet.
	var cmds []Command
	for _, m := range s.Messages.UnreadIncoming(e.Dialog.ID) {
		cmds = append(cmds, SendFrameCommand{Frame: ReadFrame{
			To:        e.Dialog.ID,
			MessageID: m.ID,
		}})
	}
	return s, cmds
}
