package privchat

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ============================================================================
// Session
// ============================================================================

// Session wires the HTTP client, the transport, and the reducer into a
// single event loop. Every event, whether dispatched locally or read from
// the transport, is reduced to completion on one goroutine before the next
// is taken, so state transitions never interleave. Commands returned by the
// reducer run concurrently and feed their results back in as events.
type Session struct {
	api    *Client
	sock   Transport
	logger *zap.Logger

	mu        sync.RWMutex
	state     State
	observers []func(State)

	queue chan Event
	done  chan struct{}
	once  sync.Once
}

// NewSession creates a session around an API client and a transport. A nil
// logger disables logging.
func NewSession(api *Client, tr Transport, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		api:    api,
		sock:   tr,
		logger: logger,
		state:  NewState(logger),
		queue:  make(chan Event, 128),
		done:   make(chan struct{}),
	}
}

// State returns a snapshot of the current session state. Snapshots are
// value copies; holding one never observes later transitions.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnChange registers fn to run after every state transition, on the session
// goroutine. Callbacks must return quickly; slow work belongs in a command.
func (s *Session) OnChange(fn func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Dispatch queues an event for the session loop. Events dispatched after
// the loop has stopped are dropped.
func (s *Session) Dispatch(ev Event) {
	select {
	case s.queue <- ev:
	case <-s.done:
	}
}

// Run drives the event loop until ctx is cancelled. It consumes both the
// local queue and the transport's event stream.
func (s *Session) Run(ctx context.Context) error {
	defer s.once.Do(func() { close(s.done) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.queue:
			s.apply(ctx, ev)
		case ev := <-s.sock.Events():
			s.apply(ctx, ev)
		}
	}
}

// ── internals ────────────────────────────────────────────

func (s *Session) apply(ctx context.Context, ev Event) {
	s.mu.Lock()
	next, cmds := s.state.Reduce(ev)
	s.state = next
	observers := make([]func(State), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(next)
	}
	for _, cmd := range cmds {
		go s.exec(ctx, cmd)
	}
}

func (s *Session) exec(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case FetchSelfCommand:
		user, err := s.api.FetchSelf(ctx)
		s.Dispatch(SelfInfoFetched{User: user, Err: err})

	case FetchMessagesCommand:
		msgs, err := s.api.FetchMessages(ctx)
		s.Dispatch(MessagesFetched{Msgs: msgs, Err: err})

	case FetchDirectoryCommand:
		users, err := s.api.FetchUsers(ctx)
		if err != nil {
			s.Dispatch(DirectoryLoadFailed{Reason: err.Error(), Gen: c.Gen})
			return
		}
		candidates := make([]Dialog, 0, len(users))
		for _, u := range users {
			candidates = append(candidates, Dialog{ID: u.ID, Title: u.Username})
		}
		s.Dispatch(DialogsFetched{Dialogs: candidates, Gen: c.Gen})

	case SendFrameCommand:
		if err := s.sock.Send(ctx, c.Frame); err != nil {
			s.logger.Warn("frame send failed", zap.Error(err))
		}

	case UploadFilesCommand:
		for _, up := range c.Uploads {
			ref, err := s.api.UploadFile(ctx, up.Handle.Path)
			if err != nil {
				s.logger.Warn("file upload failed",
					zap.String("file", up.Handle.Name), zap.Error(err))
				continue
			}
			frame := FileFrame{To: c.DialogID, FileID: ref.ID, RandomID: up.PendingID}
			if err := s.sock.Send(ctx, frame); err != nil {
				s.logger.Warn("file frame send failed",
					zap.String("file", up.Handle.Name), zap.Error(err))
			}
		}

	default:
		s.logger.Warn("unhandled command", zap.String("command", fmt.Sprintf("%T", cmd)))
	}
}
