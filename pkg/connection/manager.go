package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/syncwire/pkg/ack"
	"github.com/bft-labs/syncwire/pkg/envelope"
	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/queue"
	"github.com/bft-labs/syncwire/pkg/router"
	"github.com/bft-labs/syncwire/pkg/transport"
)

// ConnectedData is the payload of the local CLIENT_CONNECTED envelope.
type ConnectedData struct {
	Queued      int  `json:"queued"`
	Reconnected bool `json:"reconnected"`
}

// DisconnectedData is the payload of the local CLIENT_DISCONNECTED envelope.
type DisconnectedData struct {
	Reason string `json:"reason"`
}

// Manager owns one transport connection. Create it with NewManager.
type Manager struct {
	dialer    transport.Dialer
	logger    log.Logger
	queue     *queue.Queue
	acks      *ack.Tracker
	router    *router.Router
	observers []StateObserver
	rand      func() float64

	sent     atomic.Uint64
	received atomic.Uint64

	mu      sync.Mutex
	cfg     Config
	backoff Backoff
	state   State
	// epoch increments whenever the current connection is abandoned so that
	// stale goroutines and timers can recognize themselves.
	epoch         uint64
	conn          transport.Conn
	cancelDial    context.CancelFunc
	stopIO        context.CancelFunc
	wake          chan struct{}
	attempts      int
	autoReconnect bool
	shutdown      bool
	pausedUntil   time.Time
	connectedOnce bool

	reconnectTimer    *time.Timer
	heartbeatTimer    *time.Timer
	heartbeatDeadline *time.Timer
	heartbeatSentAt   time.Time
	heartbeatFailures int

	stats Stats

	// deferred runs after mu is released, in order.
	deferred []func()
}

// NewManager validates cfg and returns a disconnected Manager.
func NewManager(cfg Config, dialer transport.Dialer, opts ...Option) (*Manager, error) {
	if dialer == nil {
		return nil, ErrNilDialer
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:           cfg,
		dialer:        dialer,
		logger:        log.NewNoopLogger(),
		state:         StateDisconnected,
		autoReconnect: cfg.AutoReconnect,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(log.Component("connection"))
	if m.queue == nil {
		m.queue = queue.New(nil, queue.Config{Capacity: cfg.QueueCapacity}, m.logger)
	}
	m.acks = ack.NewTracker(m.logger)
	m.router = router.New(m.logger)
	m.backoff = NewBackoff(cfg, m.rand)
	return m, nil
}

// Connect opens the transport unless a connection is already open or being
// opened. In the paused state it does nothing until the cooldown expires;
// after that it resets the attempt counter and connects.
func (m *Manager) Connect() {
	m.mu.Lock()
	defer m.unlock()
	m.autoReconnect = m.cfg.AutoReconnect
	m.connectLocked("connect requested")
}

// NotifyConnectivityRestored tells the manager the host's network is back.
// A pending reconnect is attempted immediately. It has no effect after
// Disconnect.
func (m *Manager) NotifyConnectivityRestored() {
	m.mu.Lock()
	defer m.unlock()
	if !m.autoReconnect {
		return
	}
	m.connectLocked("connectivity restored")
}

func (m *Manager) connectLocked(reason string) {
	if m.shutdown {
		return
	}
	switch m.state {
	case StateConnecting, StateConnected:
		return
	}
	if !m.pausedUntil.IsZero() {
		if time.Now().Before(m.pausedUntil) {
			m.logger.Debug("connect ignored while paused", log.String("paused_until", m.pausedUntil.Format(time.RFC3339)))
			return
		}
		m.pausedUntil = time.Time{}
		m.attempts = 0
		if m.state == StatePaused {
			m.transitionLocked(StateDisconnected, "cooldown expired")
		}
	}
	m.stopReconnectTimerLocked()
	m.openLocked(reason)
}

// Disconnect disables auto-reconnect, cancels every timer, closes the
// transport and moves to disconnected. Pending acknowledgments keep
// running until they resolve or time out.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.unlock()
	m.disconnectLocked("disconnect requested")
}

// Shutdown disconnects and fails every pending acknowledgment. The manager
// cannot be reconnected afterwards.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.shutdown = true
	m.disconnectLocked("shutdown")
	m.unlock()
	m.acks.Close()
}

func (m *Manager) disconnectLocked(reason string) {
	m.autoReconnect = false
	m.epoch++
	wasConnected := m.state == StateConnected
	m.teardownLocked()
	if m.state == StateDisconnected {
		return
	}
	m.transitionLocked(StateDisconnected, reason)
	if wasConnected {
		m.markDisconnectedLocked(reason)
	}
}

// Send hands env to the connection's writer, or queues it while offline,
// and never waits on the network or the queue store. For envelopes that
// require acknowledgment it returns a future; otherwise nil. Transport
// failures are never returned: the envelope stays queued and the connection
// is recycled. Local lifecycle types are refused.
func (m *Manager) Send(env envelope.Envelope) *ack.Future {
	if env.Type.Local() {
		m.logger.Warn("refusing to send local envelope type",
			log.String("id", env.ID),
			log.String("type", string(env.Type)),
		)
		if env.RequiresAck {
			return ack.Rejected(env.ID, ErrLocalEnvelope)
		}
		return nil
	}

	var fut *ack.Future
	if env.RequiresAck {
		timeout := env.AckTimeout()
		if timeout <= 0 {
			m.mu.Lock()
			timeout = m.cfg.DefaultAckTimeout
			m.mu.Unlock()
		}
		fut = m.acks.Register(env.ID, timeout)
	}

	m.mu.Lock()
	m.enqueueLocked(env)
	m.unlock()
	return fut
}

// SendWithAck sends env with RequiresAck set and returns a future that
// resolves with the acknowledgment payload or fails with an
// *ack.TimeoutError after timeout.
func (m *Manager) SendWithAck(env envelope.Envelope, timeout time.Duration) *ack.Future {
	return m.Send(env.WithAck(timeout))
}

// Subscribe registers h for inbound envelopes of type t and returns a
// function that removes this registration.
func (m *Manager) Subscribe(t envelope.Type, h router.Handler) func() {
	return m.router.Subscribe(t, h)
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsConnected reports whether the state is connected.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	s := m.stats
	s.State = m.state
	s.ReconnectAttempt = m.attempts
	s.PausedUntil = m.pausedUntil
	m.mu.Unlock()

	s.MessagesSent = m.sent.Load()
	s.MessagesReceived = m.received.Load()
	s.MessagesDropped += m.queue.Dropped()
	s.QueueLength = m.queue.Len()
	s.QueueCapacity = m.queue.Capacity()
	s.PendingAcks = m.acks.Pending()
	return s
}

// QueueLen returns the number of envelopes waiting for transmission.
func (m *Manager) QueueLen() int {
	return m.queue.Len()
}

// UpdateConfig swaps in new tunables. Timers already scheduled keep their
// delay; a changed endpoint recycles the current connection. The queue
// capacity is fixed at construction.
func (m *Manager) UpdateConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.unlock()

	endpointChanged := cfg.Endpoint != m.cfg.Endpoint
	m.cfg = cfg
	m.backoff = NewBackoff(cfg, m.rand)
	if m.autoReconnect {
		m.autoReconnect = cfg.AutoReconnect
	}
	m.logger.Info("connection config updated", log.Bool("endpoint_changed", endpointChanged))

	if endpointChanged && (m.state == StateConnected || m.state == StateConnecting) {
		m.handleCloseLocked(m.epoch, ErrEndpointChanged)
	}
	return nil
}

func (m *Manager) openLocked(reason string) {
	m.epoch++
	epoch := m.epoch
	m.transitionLocked(StateConnecting, reason)
	m.stats.ConnectionAttempts++

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.DialTimeout)
	m.cancelDial = cancel
	go m.dial(ctx, cancel, epoch, m.cfg.Endpoint)
}

func (m *Manager) dial(ctx context.Context, cancel context.CancelFunc, epoch uint64, endpoint string) {
	conn, err := m.dialer.Dial(ctx, endpoint)
	cancel()

	m.mu.Lock()
	if epoch != m.epoch {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	m.cancelDial = nil
	if err != nil {
		m.stats.FailedConnections++
		m.logger.Warn("dial failed",
			log.String("endpoint", endpoint),
			log.Int("attempt", m.attempts),
			log.Err(err),
		)
		m.handleCloseLocked(epoch, fmt.Errorf("dial: %w", err))
		m.unlock()
		return
	}

	ioCtx, stopIO := context.WithCancel(context.Background())
	wake := make(chan struct{}, 1)
	m.conn = conn
	m.stopIO = stopIO
	m.wake = wake
	m.attempts = 0
	m.stats.SuccessfulConnections++
	m.stats.LastConnectedAt = time.Now()
	reconnected := m.connectedOnce
	m.connectedOnce = true
	m.transitionLocked(StateConnected, "transport open")
	m.startHeartbeatLocked(epoch)

	connected := ConnectedData{Queued: m.queue.Len(), Reconnected: reconnected}
	m.logger.Info("connected",
		log.String("endpoint", endpoint),
		log.Int("queued", connected.Queued),
		log.Bool("reconnected", reconnected),
	)
	m.deferLocked(func() { m.dispatchLocal(envelope.TypeClientConnected, connected) })
	m.unlock()

	go m.readLoop(ioCtx, epoch, conn)
	m.writeLoop(ioCtx, epoch, conn, wake)
}

// writeLoop is the only writer of queued envelopes to conn. The head entry
// is popped only after conn accepted it, so a failed write or a crash leaves
// it queued. Every step re-checks epoch under mu; once the connection has
// been replaced the loop exits without touching the queue.
func (m *Manager) writeLoop(ctx context.Context, epoch uint64, conn transport.Conn, wake <-chan struct{}) {
	sent := 0
	backlog := true
	for {
		m.mu.Lock()
		if epoch != m.epoch {
			m.mu.Unlock()
			return
		}
		entry, ok := m.queue.Peek()
		timeout := m.cfg.WriteTimeout
		m.mu.Unlock()

		if !ok {
			if backlog && sent > 0 {
				m.logger.Info("outbound queue flushed", log.Int("sent", sent))
			}
			backlog = false
			select {
			case <-wake:
				continue
			case <-ctx.Done():
				return
			}
		}

		err := m.transmit(ctx, conn, entry.Envelope, timeout)

		m.mu.Lock()
		if epoch != m.epoch {
			m.mu.Unlock()
			return
		}
		if err != nil {
			m.logger.Warn("write failed, envelope stays queued",
				log.String("id", entry.Envelope.ID),
				log.String("type", string(entry.Envelope.Type)),
				log.Int("queued", m.queue.Len()),
				log.Err(err),
			)
			m.handleCloseLocked(epoch, err)
			m.unlock()
			return
		}
		m.queue.PopFront(entry.Envelope.ID)
		m.mu.Unlock()
		sent++
	}
}

func (m *Manager) transmit(ctx context.Context, conn transport.Conn, env envelope.Envelope, timeout time.Duration) error {
	frame, err := envelope.Marshal(env)
	if err != nil {
		m.logger.Error("dropping unencodable envelope", log.String("id", env.ID), log.Err(err))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := conn.Send(ctx, frame); err != nil {
		return err
	}
	m.sent.Add(1)
	return nil
}

// enqueueLocked appends env to the queue and wakes the writer. While offline
// with queueing disabled the envelope is dropped.
func (m *Manager) enqueueLocked(env envelope.Envelope) {
	online := m.state == StateConnected && m.wake != nil
	if !online && !m.cfg.EnableQueue {
		m.stats.MessagesDropped++
		m.logger.Warn("not connected and queueing disabled, dropping envelope",
			log.String("id", env.ID),
			log.String("type", string(env.Type)),
		)
		return
	}
	if !online {
		m.stats.MessagesQueued++
	}
	if evicted := m.queue.Enqueue(env); evicted > 0 {
		m.logger.Debug("outbound queue full, oldest envelopes evicted", log.Int("evicted", evicted))
	}
	if online {
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, epoch uint64, conn transport.Conn) {
	for {
		frame, err := conn.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.mu.Lock()
			m.handleCloseLocked(epoch, err)
			m.unlock()
			return
		}
		m.received.Add(1)
		env, ok := m.router.Parse(frame)
		if !ok {
			continue
		}
		if env.Type.Local() {
			m.logger.Warn("dropping inbound envelope with local type",
				log.String("id", env.ID),
				log.String("type", string(env.Type)),
			)
			continue
		}
		m.handleInbound(ctx, epoch, env)
	}
}

func (m *Manager) handleInbound(ctx context.Context, epoch uint64, env envelope.Envelope) {
	switch env.Type {
	case envelope.TypeHeartbeat:
		m.heartbeatObserved(epoch)
	case envelope.TypeAck:
		data, err := env.Ack()
		if err != nil {
			m.logger.Warn("dropping malformed ack", log.String("id", env.ID), log.Err(err))
			return
		}
		if rtt, ok := m.acks.Resolve(data.MessageID, data.Payload); ok {
			m.observeLatency(rtt)
		}
	case envelope.TypeError:
		m.logger.Warn("peer reported error", log.String("id", env.ID), log.String("data", string(env.Data)))
	}

	if env.RequiresAck && env.Type != envelope.TypeAck {
		m.mu.Lock()
		source := m.cfg.Source
		m.mu.Unlock()
		reply, err := envelope.NewAck(env.ID, nil, envelope.WithSource(source))
		if err != nil {
			m.logger.Error("build ack", log.String("id", env.ID), log.Err(err))
		} else {
			m.Send(reply)
		}
	}

	m.router.Dispatch(ctx, env)
}

// handleCloseLocked abandons the connection identified by epoch and, when
// auto-reconnect is on, schedules the next attempt or pauses.
func (m *Manager) handleCloseLocked(epoch uint64, cause error) {
	if epoch != m.epoch {
		return
	}
	m.epoch++
	wasConnected := m.state == StateConnected
	m.teardownLocked()

	reason := "transport closed"
	if cause != nil && !errors.Is(cause, transport.ErrClosed) {
		reason = cause.Error()
	}
	m.transitionLocked(StateDisconnected, reason)
	if wasConnected {
		m.markDisconnectedLocked(reason)
	}
	if m.autoReconnect && !m.shutdown {
		m.scheduleReconnectLocked()
	}
}

func (m *Manager) markDisconnectedLocked(reason string) {
	m.stats.Disconnects++
	m.stats.LastDisconnectedAt = time.Now()
	data := DisconnectedData{Reason: reason}
	m.deferLocked(func() { m.dispatchLocal(envelope.TypeClientDisconnected, data) })
}

func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.transitionLocked(StateReconnecting, "no attempts left")
		m.transitionLocked(StateFailed, fmt.Sprintf("%d reconnect attempts exhausted", m.attempts))
		m.pausedUntil = time.Now().Add(m.cfg.PauseCooldown)
		m.transitionLocked(StatePaused, "cooling down until "+m.pausedUntil.Format(time.RFC3339))
		return
	}

	m.attempts++
	delay := m.backoff.Delay(m.attempts)
	m.transitionLocked(StateReconnecting, fmt.Sprintf("attempt %d in %s", m.attempts, delay))
	m.stopReconnectTimerLocked()
	epoch := m.epoch
	m.reconnectTimer = time.AfterFunc(delay, func() { m.reconnect(epoch) })
}

func (m *Manager) reconnect(epoch uint64) {
	m.mu.Lock()
	defer m.unlock()
	if epoch != m.epoch || m.state != StateReconnecting {
		return
	}
	m.reconnectTimer = nil
	m.openLocked(fmt.Sprintf("reconnect attempt %d", m.attempts))
}

func (m *Manager) teardownLocked() {
	m.stopReconnectTimerLocked()
	m.stopHeartbeatLocked()
	if m.cancelDial != nil {
		m.cancelDial()
		m.cancelDial = nil
	}
	if m.stopIO != nil {
		m.stopIO()
		m.stopIO = nil
	}
	m.wake = nil
	if m.conn != nil {
		conn := m.conn
		m.conn = nil
		go func() {
			if err := conn.Close(); err != nil {
				m.logger.Debug("close transport", log.Err(err))
			}
		}()
	}
	if !m.cfg.EnableQueue {
		// Without queueing the buffer only feeds the writer of a live connection.
		if n := m.queue.Clear(); n > 0 {
			m.stats.MessagesDropped += uint64(n)
			m.logger.Warn("connection lost with queueing disabled, dropping unsent envelopes", log.Int("dropped", n))
		}
	}
}

func (m *Manager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) transitionLocked(next State, reason string) {
	prev := m.state
	if prev == next {
		return
	}
	if !CanTransition(prev, next) {
		m.logger.Error("illegal state transition",
			log.String("from", prev.String()),
			log.String("to", next.String()),
			log.String("reason", reason),
		)
		return
	}
	m.state = next
	m.logger.Info("state transition",
		log.String("from", prev.String()),
		log.String("to", next.String()),
		log.String("reason", reason),
	)
	for _, obs := range m.observers {
		obs := obs
		m.deferLocked(func() { obs(prev, next, reason) })
	}
}

func (m *Manager) dispatchLocal(t envelope.Type, data any) {
	m.mu.Lock()
	source := m.cfg.Source
	m.mu.Unlock()
	env, err := envelope.New(t, data, envelope.WithSource(source))
	if err != nil {
		m.logger.Error("build local envelope", log.String("type", string(t)), log.Err(err))
		return
	}
	m.router.Dispatch(context.Background(), env)
}

func (m *Manager) observeLatency(rtt time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats.Latency = smooth(m.stats.Latency, rtt)
}

func (m *Manager) deferLocked(fn func()) {
	m.deferred = append(m.deferred, fn)
}

// unlock releases mu and then runs the callbacks queued while it was held.
func (m *Manager) unlock() {
	pending := m.deferred
	m.deferred = nil
	m.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}
