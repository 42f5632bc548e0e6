package privchat

import (
	"encoding/json"
	"fmt"
	"time"
)

// ============================================================================
// Frame Kinds
// ============================================================================

// frameKind is the numeric msg_type discriminator every frame carries.
type frameKind int

const (
	kindWentOnline       frameKind = 1
	kindWentOffline      frameKind = 2
	kindTextMessage      frameKind = 3
	kindFileMessage      frameKind = 4
	kindIsTyping         frameKind = 5
	kindMessageRead      frameKind = 6
	kindErrorOccurred    frameKind = 7
	kindMessageIDCreated frameKind = 8
	kindNewUnreadCount   frameKind = 9
	kindTypingStopped    frameKind = 10
)

// ============================================================================
// Outbound Frames
// ============================================================================

// Frame is a client-to-server protocol frame.
type Frame interface {
	isFrame()
}

// TextFrame sends a text message to a user.
type TextFrame struct {
	To       string
	Body     string
	RandomID string
}

// FileFrame sends a previously uploaded file as a message.
type FileFrame struct {
	To       string
	FileID   string
	RandomID string
}

// ReadFrame acknowledges that a message was read.
type ReadFrame struct {
	To        string
	MessageID string
}

// TypingFrame signals that the session user started or stopped typing.
type TypingFrame struct {
	Stopped bool
}

func (TextFrame) isFrame()   {}
func (FileFrame) isFrame()   {}
func (ReadFrame) isFrame()   {}
func (TypingFrame) isFrame() {}

// EncodeFrame serializes an outbound frame into its wire form.
func EncodeFrame(f Frame) ([]byte, error) {
	switch fr := f.(type) {
	case TextFrame:
		return json.Marshal(struct {
			MsgType  frameKind `json:"msg_type"`
			Text     string    `json:"text"`
			UserPK   string    `json:"user_pk"`
			RandomID string    `json:"random_id"`
		}{kindTextMessage, fr.Body, fr.To, fr.RandomID})
	case FileFrame:
		return json.Marshal(struct {
			MsgType  frameKind `json:"msg_type"`
			FileID   string    `json:"file_id"`
			UserPK   string    `json:"user_pk"`
			RandomID string    `json:"random_id"`
		}{kindFileMessage, fr.FileID, fr.To, fr.RandomID})
	case ReadFrame:
		return json.Marshal(struct {
			MsgType   frameKind `json:"msg_type"`
			UserPK    string    `json:"user_pk"`
			MessageID string    `json:"message_id"`
		}{kindMessageRead, fr.To, fr.MessageID})
	case TypingFrame:
		kind := kindIsTyping
		if fr.Stopped {
			kind = kindTypingStopped
		}
		return json.Marshal(struct {
			MsgType frameKind `json:"msg_type"`
		}{kind})
	default:
		return nil, fmt.Errorf("unsupported frame type %T", f)
	}
}

// ============================================================================
// Inbound Decoding
// ============================================================================

// flexID tolerates servers that emit ids as JSON numbers.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type wireFile struct {
	ID   flexID `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// unixTime converts fractional unix seconds into a UTC timestamp.
func unixTime(v float64) time.Time {
	sec := int64(v)
	nsec := int64((v - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}

// DecodeFrame parses one inbound frame into the session event it represents.
// Frames the protocol does not define yield an error; the transport logs and
// skips them.
func DecodeFrame(data []byte) (Event, error) {
	var head struct {
		MsgType frameKind `json:"msg_type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch head.MsgType {
	case kindWentOnline, kindWentOffline:
		var p struct {
			UserPK flexID `json:"user_pk"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed presence frame: %w", err)
		}
		change := ChangeAdded
		if head.MsgType == kindWentOffline {
			change = ChangeRemoved
		}
		return PresenceToggled{UserID: string(p.UserPK), Change: change}, nil

	case kindIsTyping, kindTypingStopped:
		var p struct {
			UserPK flexID `json:"user_pk"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed typing frame: %w", err)
		}
		change := ChangeAdded
		if head.MsgType == kindTypingStopped {
			change = ChangeRemoved
		}
		return TypingToggled{UserID: string(p.UserPK), Change: change}, nil

	case kindTextMessage:
		var p struct {
			RandomID       flexID  `json:"random_id"`
			Text           string  `json:"text"`
			Sender         flexID  `json:"sender"`
			Receiver       flexID  `json:"receiver"`
			SenderUsername string  `json:"sender_username"`
			Sent           float64 `json:"sent"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed text frame: %w", err)
		}
		sentAt := time.Now().UTC()
		if p.Sent != 0 {
			sentAt = unixTime(p.Sent)
		}
		return MessageAppended{Msg: Message{
			ID:         string(p.RandomID),
			DialogID:   string(p.Sender),
			Text:       p.Text,
			SentAt:     sentAt,
			Out:        false,
			Sender:     string(p.Sender),
			SenderName: p.SenderUsername,
			Status:     StatusConfirmed,
		}}, nil

	case kindFileMessage:
		var p struct {
			DBID           flexID   `json:"db_id"`
			File           wireFile `json:"file"`
			Sender         flexID   `json:"sender"`
			Receiver       flexID   `json:"receiver"`
			SenderUsername string   `json:"sender_username"`
			Sent           float64  `json:"sent"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed file frame: %w", err)
		}
		sentAt := time.Now().UTC()
		if p.Sent != 0 {
			sentAt = unixTime(p.Sent)
		}
		return MessageAppended{Msg: Message{
			ID:       string(p.DBID),
			DialogID: string(p.Sender),
			File: &FileRef{
				ID:   string(p.File.ID),
				URL:  p.File.URL,
				Name: p.File.Name,
				Size: p.File.Size,
			},
			SentAt:     sentAt,
			Out:        false,
			Sender:     string(p.Sender),
			SenderName: p.SenderUsername,
			Status:     StatusConfirmed,
		}}, nil

	case kindMessageRead:
		var p struct {
			MessageID flexID `json:"message_id"`
			Sender    flexID `json:"sender"`
			Receiver  flexID `json:"receiver"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed read frame: %w", err)
		}
		return MessageMarkedRead{MessageID: string(p.MessageID)}, nil

	case kindMessageIDCreated:
		var p struct {
			RandomID flexID `json:"random_id"`
			DBID     flexID `json:"db_id"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed ack frame: %w", err)
		}
		return MessageReconciled{PendingID: string(p.RandomID), ConfirmedID: string(p.DBID)}, nil

	case kindNewUnreadCount:
		var p struct {
			Sender      flexID `json:"sender"`
			UnreadCount int    `json:"unread_count"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed unread frame: %w", err)
		}
		return UnreadCountSet{DialogID: string(p.Sender), Count: p.UnreadCount}, nil

	case kindErrorOccurred:
		var p struct {
			Error []json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("malformed error frame: %w", err)
		}
		var code int
		var msg string
		if len(p.Error) > 0 {
			json.Unmarshal(p.Error[0], &code)
		}
		if len(p.Error) > 1 {
			json.Unmarshal(p.Error[1], &msg)
		}
		return ServerErrorReceived{Code: code, Message: msg}, nil

	default:
		return nil, fmt.Errorf("unknown msg_type %d", head.MsgType)
	}
}
