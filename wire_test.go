package privchat

import (
	"encoding/json"
	"testing"
	"time"
)

// ============================================================================
// DecodeFrame
// ============================================================================

func TestDecodeFrame(t *testing.T) {
	t.Run("text message", func(t *testing.T) {
		data := []byte(`{
			"msg_type": 3,
			"random_id": "local-abc",
			"text": "hello there",
			"sender": "42",
			"receiver": "7",
			"sender_username": "bob",
			"sent": 1700000000.5
		}`)
		ev, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ap, ok := ev.(MessageAppended)
		if !ok {
			t.Fatalf("expected MessageAppended, got %T", ev)
		}
		if ap.Msg.ID != "local-abc" {
			t.Fatalf("expected id local-abc, got %s", ap.Msg.ID)
		}
		if ap.Msg.DialogID != "42" {
			t.Fatalf("expected dialog 42, got %s", ap.Msg.DialogID)
		}
		if ap.Msg.Text != "hello there" {
			t.Fatalf("expected text, got %q", ap.Msg.Text)
		}
		if ap.Msg.SenderName != "bob" {
			t.Fatalf("expected sender_username bob, got %s", ap.Msg.SenderName)
		}
		if ap.Msg.Out {
			t.Fatal("inbound message must not be marked outgoing")
		}
		if ap.Msg.Status != StatusConfirmed {
			t.Fatalf("expected confirmed status, got %s", ap.Msg.Status)
		}
		want := time.Unix(1700000000, int64(500*time.Millisecond)).UTC()
		if !ap.Msg.SentAt.Equal(want) {
			t.Fatalf("expected sent %v, got %v", want, ap.Msg.SentAt)
		}
	})

	t.Run("text message with numeric ids", func(t *testing.T) {
		data := []byte(`{"msg_type": 3, "random_id": 99, "text": "x", "sender": 42, "receiver": 7}`)
		ev, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ap := ev.(MessageAppended)
		if ap.Msg.ID != "99" {
			t.Fatalf("expected id 99, got %s", ap.Msg.ID)
		}
		if ap.Msg.Sender != "42" {
			t.Fatalf("expected sender 42, got %s", ap.Msg.Sender)
		}
	})

	t.Run("text message without timestamp", func(t *testing.T) {
		data := []byte(`{"msg_type": 3, "random_id": "r", "text": "x", "sender": "s", "receiver": "me"}`)
		ev, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ap := ev.(MessageAppended)
		if ap.Msg.SentAt.IsZero() {
			t.Fatal("expected a fallback timestamp")
		}
	})

	t.Run("file message", func(t *testing.T) {
		data := []byte(`{
			"msg_type": 4,
			"db_id": "m-55",
			"file": {"id": "f-1", "url": "https://cdn/x.pdf", "name": "x.pdf", "size": 2048},
			"sender": "42",
			"receiver": "7",
			"sender_username": "bob",
			"sent": 1700000001
		}`)
		ev, err := DecodeFrame(data)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		ap, ok := ev.(MessageAppended)
		if !ok {
			t.Fatalf("expected MessageAppended, got %T", ev)
		}
		if ap.Msg.ID != "m-55" {
			t.Fatalf("expected id m-55, got %s", ap.Msg.ID)
		}
		if ap.Msg.File == nil {
			t.Fatal("expected file ref")
		}
		if ap.Msg.File.Name != "x.pdf" || ap.Msg.File.Size != 2048 {
			t.Fatalf("unexpected file ref: %+v", ap.Msg.File)
		}
		if ap.Msg.File.URL != "https://cdn/x.pdf" {
			t.Fatalf("unexpected file url: %s", ap.Msg.File.URL)
		}
	})

	t.Run("went online", func(t *testing.T) {
		ev, err := DecodeFrame([]byte(`{"msg_type": 1, "user_pk": "9"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		pt, ok := ev.(PresenceToggled)
		if !ok {
			t.Fatalf("expected PresenceToggled, got %T", ev)
		}
		if pt.UserID != "9" || pt.Change != ChangeAdded {
			t.Fatalf("unexpected event: %+v", pt)
		}
	})

	t.Run("went offline", func(t *testing.T) {
		ev, err := DecodeFrame([]byte(`{"msg_type": 2, "user_pk": 9}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		pt := ev.(PresenceToggled)
		if pt.UserID != "9" || pt.Change != ChangeRemoved {
			t.Fatalf("unexpected event: %+v", pt)
		}
	})

	t.Run("typing started and stopped", func(t *testing.T) {
		ev, err := DecodeFrame([]byte(`{"msg_type": 5, "user_pk": "3"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tt := ev.(TypingToggled)
		if tt.UserID != "3" || tt.Change != ChangeAdded {
			t.Fatalf("unexpected start event: %+v", tt)
		}

		ev, err = DecodeFrame([]byte(`{"msg_type": 10, "user_pk": "3"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		tt = ev.(TypingToggled)
		if tt.UserID != "3" || tt.Change != ChangeRemoved {
			t.Fatalf("unexpected stop event: %+v", tt)
		}
	})

	t.Run("message read", func(t *testing.T) {
		ev, err := DecodeFrame([]byte(`{"msg_type": 6, "message_id": "m-1", "sender": "s", "receiver": "r"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		mr, ok := ev.(MessageMarkedRead)
		if !ok {
			t.Fatalf("expected MessageMarkedRead, got %T", ev)
		}
		if mr.MessageID != "m-1" {
			t.Fatalf("expected message id m-1, got %s", mr.MessageID)
		}
	})

	t.Run("message id created", func(t *testing.T) {
		ev, err := DecodeFrame([]byte(`{"msg_type": 8, "random_id": "local-x", "db_id": "m-9"}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		rc, ok := ev.(MessageReconciled)
		if !ok {
			t.Fatalf("expected MessageReconciled, got %T", ev)
		}
		if rc.PendingID != "local-x" || rc.ConfirmedID != "m-9" {
			t.Fatalf("unexpected reconciliation: %+v", rc)
		}
	})

	t.Run("new unread count", func(t *testing.T) {
		ev, err := DecodeFrame([]byte(`{"msg_type": 9, "sender": "42", "unread_count": 5}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		uc, ok := ev.(UnreadCountSet)
		if !ok {
			t.Fatalf("expected UnreadCountSet, got %T", ev)
		}
		if uc.DialogID != "42" || uc.Count != 5 {
			t.Fatalf("unexpected unread event: %+v", uc)
		}
	})

	t.Run("error frame", func(t *testing.T) {
		ev, err := DecodeFrame([]byte(`{"msg_type": 7, "error": [3, "Invalid message_id"]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		se, ok := ev.(ServerErrorReceived)
		if !ok {
			t.Fatalf("expected ServerErrorReceived, got %T", ev)
		}
		if se.Code != 3 || se.Message != "Invalid message_id" {
			t.Fatalf("unexpected server error: %+v", se)
		}
	})

	t.Run("unknown msg_type", func(t *testing.T) {
		if _, err := DecodeFrame([]byte(`{"msg_type": 77}`)); err == nil {
			t.Fatal("expected error for unknown msg_type")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		if _, err := DecodeFrame([]byte(`{"msg_type":`)); err == nil {
			t.Fatal("expected error for malformed frame")
		}
	})
}

// ============================================================================
// EncodeFrame
// ============================================================================

func encodeToMap(t *testing.T, f Frame) map[string]any {
	t.Helper()
	data, err := EncodeFrame(f)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("encoded frame is not valid JSON: %v", err)
	}
	return m
}

func TestEncodeFrame(t *testing.T) {
	t.Run("text frame", func(t *testing.T) {
		m := encodeToMap(t, TextFrame{To: "7", Body: "hi", RandomID: "local-1"})
		if m["msg_type"] != float64(3) {
			t.Fatalf("expected msg_type 3, got %v", m["msg_type"])
		}
		if m["user_pk"] != "7" || m["text"] != "hi" || m["random_id"] != "local-1" {
			t.Fatalf("unexpected fields: %v", m)
		}
	})

	t.Run("file frame", func(t *testing.T) {
		m := encodeToMap(t, FileFrame{To: "7", FileID: "f-2", RandomID: "local-2"})
		if m["msg_type"] != float64(4) {
			t.Fatalf("expected msg_type 4, got %v", m["msg_type"])
		}
		if m["user_pk"] != "7" || m["file_id"] != "f-2" || m["random_id"] != "local-2" {
			t.Fatalf("unexpected fields: %v", m)
		}
	})

	t.Run("read frame", func(t *testing.T) {
		m := encodeToMap(t, ReadFrame{To: "7", MessageID: "m-3"})
		if m["msg_type"] != float64(6) {
			t.Fatalf("expected msg_type 6, got %v", m["msg_type"])
		}
		if m["user_pk"] != "7" || m["message_id"] != "m-3" {
			t.Fatalf("unexpected fields: %v", m)
		}
	})

	t.Run("typing frames", func(t *testing.T) {
		m := encodeToMap(t, TypingFrame{})
		if m["msg_type"] != float64(5) {
			t.Fatalf("expected msg_type 5, got %v", m["msg_type"])
		}
		m = encodeToMap(t, TypingFrame{Stopped: true})
		if m["msg_type"] != float64(10) {
			t.Fatalf("expected msg_type 10, got %v", m["msg_type"])
		}
	})
}
