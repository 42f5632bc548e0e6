package privchat

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// ============================================================================
// Transport
// ============================================================================

// Transport is the connection capability the session consumes: current
// state, frame submission, and a subscription to decoded events. Reconnect
// policy stays behind this interface; consumers only see the state
// transitions it produces.
type Transport interface {
	// State returns the current connection state.
	State() ConnState
	// Send pushes a frame to the server. It fails with ErrSendRejected
	// whenever the connection is not open.
	Send(ctx context.Context, f Frame) error
	// Events returns the stream of decoded inbound events plus
	// ConnStateChanged transitions, in arrival order.
	Events() <-chan Event
	// Close tears the connection down for good.
	Close() error
}

// ============================================================================
// Configuration
// ============================================================================

// SocketConfig configures the websocket transport.
type SocketConfig struct {
	Token                string
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	HeartbeatInterval    time.Duration
	Logger               *zap.Logger
}

func (c *SocketConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
}

// ============================================================================
// Reconnector
// ============================================================================

type reconnector struct {
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(config *SocketConfig) *reconnector {
	return &reconnector{
		baseDelay:   config.ReconnectBaseDelay,
		maxDelay:    config.ReconnectMaxDelay,
		maxAttempts: config.MaxReconnectAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	return r.maxAttempts == 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.connectedAt = time.Now()
}

func (r *reconnector) nextDelay() time.Duration {
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay
}

// ============================================================================
// Socket
// ============================================================================

// Socket is the websocket Transport with auto-reconnect and heartbeat. One
// Socket represents one logical connection: unexpected closures are retried
// with exponential backoff and surface only as state transitions on the
// event channel, never as errors.
type Socket struct {
	baseURL string
	config  *SocketConfig
	logger  *zap.Logger
	recon   *reconnector

	mu               sync.Mutex
	conn             *websocket.Conn
	state            ConnState
	intentionalClose bool
	cancelFn         context.CancelFunc

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
}

var _ Transport = (*Socket)(nil)

// NewSocket creates a Socket for the chat endpoint of baseURL. Call Connect
// to establish the connection.
func NewSocket(baseURL string, config *SocketConfig) *Socket {
	var cfg SocketConfig
	if config != nil {
		cfg = *config
	}
	cfg.defaults()
	return &Socket{
		baseURL: strings.TrimRight(baseURL, "/"),
		config:  &cfg,
		logger:  cfg.Logger,
		recon:   newReconnector(&cfg),
		state:   ConnClosed,
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
}

// State returns the current connection state.
func (s *Socket) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Events returns the inbound event stream. The channel is buffered; it is
// closed never, consumers stop via their own context.
func (s *Socket) Events() <-chan Event {
	return s.events
}

// Connect establishes the websocket connection. ctx bounds the dial only;
// the connection itself lives until Close or a terminal reconnect failure.
func (s *Socket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == ConnOpen || s.state == ConnConnecting {
		s.mu.Unlock()
		return nil
	}
	s.state = ConnConnecting
	s.intentionalClose = false
	s.mu.Unlock()
	s.emit(ConnStateChanged{State: ConnConnecting})

	wsURL := strings.Replace(s.baseURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL += "/chat_ws"
	if s.config.Token != "" {
		wsURL += "?token=" + s.config.Token
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		s.setState(ConnClosed)
		return fmt.Errorf("websocket dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.recon.markConnected()
	s.setState(ConnOpen)

	// The connection outlives the dial context.
	connCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancelFn = cancel
	s.mu.Unlock()

	go s.readLoop(connCtx, conn)
	go s.heartbeatLoop(connCtx, conn)

	return nil
}

// Send pushes one frame. Rejected unless the connection is open.
func (s *Socket) Send(ctx context.Context, f Frame) error {
	s.mu.Lock()
	conn, st := s.conn, s.state
	s.mu.Unlock()

	if st != ConnOpen || conn == nil {
		return fmt.Errorf("%w (state %s)", ErrSendRejected, st)
	}

	data, err := EncodeFrame(f)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Close gracefully shuts the connection down and stops any reconnect cycle.
// Safe to call more than once.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.intentionalClose {
		s.mu.Unlock()
		return nil
	}
	s.intentionalClose = true
	cancel := s.cancelFn
	s.cancelFn = nil
	conn := s.conn
	s.conn = nil
	wasClosed := s.state == ConnClosed
	s.state = ConnClosed
	s.mu.Unlock()

	// Best effort: the consumer may already be gone during shutdown.
	if !wasClosed {
		s.tryEmit(ConnStateChanged{State: ConnClosing})
	}
	if cancel != nil {
		cancel()
	}
	var err error
	if conn != nil {
		err = conn.Close(websocket.StatusNormalClosure, "client closed")
	}
	if !wasClosed {
		s.tryEmit(ConnStateChanged{State: ConnClosed})
	}
	s.closeOnce.Do(func() { close(s.done) })
	return err
}

// ── internals ────────────────────────────────────────────

func (s *Socket) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.mu.Lock()
			intentional := s.intentionalClose
			if s.conn == conn {
				s.conn = nil
			}
			s.mu.Unlock()
			if intentional {
				return
			}

			s.logger.Warn("connection lost", zap.Error(err))
			s.setState(ConnClosed)

			if s.config.AutoReconnect && s.recon.shouldReconnect() {
				go s.scheduleReconnect()
			}
			return
		}

		ev, err := DecodeFrame(data)
		if err != nil {
			s.logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		s.emit(ev)
	}
}

func (s *Socket) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				// Force the read loop to notice the dead connection.
				conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}

func (s *Socket) scheduleReconnect() {
	delay := s.recon.nextDelay()
	s.logger.Info("reconnecting",
		zap.Int("attempt", s.recon.attempt), zap.Duration("delay", delay))

	select {
	case <-time.After(delay):
	case <-s.done:
		return
	}

	if err := s.Connect(context.Background()); err != nil {
		if s.config.AutoReconnect && s.recon.shouldReconnect() {
			s.scheduleReconnect()
			return
		}
		s.logger.Error("reconnect attempts exhausted", zap.Error(err))
	}
}

func (s *Socket) setState(st ConnState) {
	s.mu.Lock()
	if s.state == st {
		s.mu.Unlock()
		return
	}
	s.state = st
	s.mu.Unlock()
	s.emit(ConnStateChanged{State: st})
}

// emit delivers an event to the consumer, blocking while the buffer is full
// unless the socket is shutting down.
func (s *Socket) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// tryEmit never blocks; shutdown transitions are delivered best effort.
func (s *Socket) tryEmit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}
