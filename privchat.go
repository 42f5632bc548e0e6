// Package privchat implements the client side of a one-to-one chat service:
// a REST client for backlog and directory data, a websocket transport for
// live frames, and a session state machine that folds both into one
// evolving snapshot.
//
// Example:
//
//	api := privchat.NewClient("https://chat.example.com", privchat.WithToken(token))
//	sock := privchat.NewSocket("https://chat.example.com", &privchat.SocketConfig{
//		Token:         token,
//		AutoReconnect: true,
//	})
//	sess := privchat.NewSession(api, sock, logger)
//
//	go sess.Run(ctx)
//	sock.Connect(ctx)
//
//	sess.Dispatch(privchat.DialogSelected{Dialog: dlg})
//	sess.Dispatch(privchat.SendIntent{Body: "hello"})
package privchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const DefaultTimeout = 30 * time.Second

// ============================================================================
// Client
// ============================================================================

// Client is the REST client for the chat backend. It covers the endpoints
// the session bootstraps from: self info, message backlog, dialog list, and
// the user directory, plus file upload.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type ClientOption func(*Client)

// WithToken sets the bearer token attached to every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// SetToken sets or updates the bearer token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		reason := strings.TrimSpace(string(data))
		if reason == "" {
			reason = http.StatusText(resp.StatusCode)
		}
		return nil, &FetchError{
			Op:     method + " " + path,
			Status: resp.StatusCode,
			Reason: reason,
		}
	}

	return data, nil
}

func decodeJSON[T any](data []byte) (T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return result, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return result, nil
}

// ============================================================================
// Response payloads
// ============================================================================

type wireUser struct {
	PK       flexID `json:"pk"`
	Username string `json:"username"`
}

type wireMessage struct {
	ID             flexID    `json:"id"`
	Text           string    `json:"text"`
	Sent           float64   `json:"sent"`
	Read           bool      `json:"read"`
	File           *wireFile `json:"file"`
	Sender         flexID    `json:"sender"`
	Recipient      flexID    `json:"recipient"`
	Out            bool      `json:"out"`
	SenderUsername string    `json:"sender_username"`
}

type wireDialog struct {
	ID          flexID       `json:"id"`
	Created     float64      `json:"created"`
	Modified    float64      `json:"modified"`
	OtherUserID flexID       `json:"other_user_id"`
	UnreadCount int          `json:"unread_count"`
	Username    string       `json:"username"`
	LastMessage *wireMessage `json:"last_message"`
}

type pageOf[T any] struct {
	Data  []T `json:"data"`
	Page  int `json:"page"`
	Pages int `json:"pages"`
}

func (w wireMessage) toMessage() Message {
	// A dialog is keyed by the other participant.
	dialogID := string(w.Sender)
	if w.Out {
		dialogID = string(w.Recipient)
	}
	m := Message{
		ID:         string(w.ID),
		DialogID:   dialogID,
		Text:       w.Text,
		SentAt:     unixTime(w.Sent),
		Read:       w.Read,
		Out:        w.Out,
		Sender:     string(w.Sender),
		SenderName: w.SenderUsername,
		Status:     StatusConfirmed,
	}
	if w.File != nil {
		m.File = &FileRef{
			ID:   string(w.File.ID),
			URL:  w.File.URL,
			Name: w.File.Name,
			Size: w.File.Size,
		}
	}
	return m
}

func (w wireDialog) toDialog() Dialog {
	d := Dialog{
		ID:           string(w.OtherUserID),
		Title:        w.Username,
		LastActivity: unixTime(w.Modified),
		UnreadCount:  w.UnreadCount,
	}
	if w.LastMessage != nil {
		last := w.LastMessage.toMessage()
		d.LastMessage = previewFor(last)
		if !last.SentAt.IsZero() {
			d.LastActivity = last.SentAt
		}
	}
	return d
}

// ============================================================================
// API Methods
// ============================================================================

// FetchSelf returns the authenticated user.
func (c *Client) FetchSelf(ctx context.Context) (UserInfo, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/self/", nil, "")
	if err != nil {
		return UserInfo{}, err
	}
	w, err := decodeJSON[wireUser](data)
	if err != nil {
		return UserInfo{}, err
	}
	return UserInfo{ID: string(w.PK), Username: w.Username}, nil
}

// FetchMessages returns the message backlog in chronological order.
func (c *Client) FetchMessages(ctx context.Context) ([]Message, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/messages/", nil, "")
	if err != nil {
		return nil, err
	}
	page, err := decodeJSON[pageOf[wireMessage]](data)
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(page.Data))
	for _, w := range page.Data {
		msgs = append(msgs, w.toMessage())
	}
	// The endpoint pages newest first.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// FetchDialogs returns the server's dialog list, one entry per counterpart.
func (c *Client) FetchDialogs(ctx context.Context) ([]Dialog, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/dialogs/", nil, "")
	if err != nil {
		return nil, err
	}
	page, err := decodeJSON[pageOf[wireDialog]](data)
	if err != nil {
		return nil, err
	}
	dialogs := make([]Dialog, 0, len(page.Data))
	for _, w := range page.Data {
		dialogs = append(dialogs, w.toDialog())
	}
	return dialogs, nil
}

// FetchUsers returns every user available for starting a new dialog.
func (c *Client) FetchUsers(ctx context.Context) ([]UserInfo, error) {
	data, err := c.doRequest(ctx, http.MethodGet, "/users/", nil, "")
	if err != nil {
		return nil, err
	}
	list, err := decodeJSON[[]wireUser](data)
	if err != nil {
		return nil, err
	}
	users := make([]UserInfo, 0, len(list))
	for _, w := range list {
		users = append(users, UserInfo{ID: string(w.PK), Username: w.Username})
	}
	return users, nil
}

// UploadFile posts one file as multipart form data and returns the stored
// file's reference, ready to be sent in a FileFrame.
func (c *Client) UploadFile(ctx context.Context, path string) (FileRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileRef{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return FileRef{}, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return FileRef{}, fmt.Errorf("failed to write file data: %w", err)
	}
	if err := w.Close(); err != nil {
		return FileRef{}, fmt.Errorf("failed to finalize form: %w", err)
	}

	data, err := c.doRequest(ctx, http.MethodPost, "/upload/", &buf, w.FormDataContentType())
	if err != nil {
		return FileRef{}, err
	}
	stored, err := decodeJSON[wireFile](data)
	if err != nil {
		return FileRef{}, err
	}
	return FileRef{
		ID:   string(stored.ID),
		URL:  stored.URL,
		Name: stored.Name,
		Size: stored.Size,
	}, nil
}
