// Package syncer is the synchronization layer between the host's local
// domain events and the real-time connection.
//
// Local EventEntityChanged events become outbound envelopes. Inbound domain
// envelopes are merged against the cached local copy with Resolve and, when
// the remote copy wins, re-emitted as EventEntityChanged with OriginRemote.
// Changes with OriginRemote are never sent back out. On every reconnect the
// syncer asks the server for a reconciliation pass with a SYNC_REQUEST.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/syncwire/pkg/ack"
	"github.com/bft-labs/syncwire/pkg/bus"
	"github.com/bft-labs/syncwire/pkg/connection"
	"github.com/bft-labs/syncwire/pkg/envelope"
	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/router"
	"github.com/bft-labs/syncwire/pkg/store"
)

// Local bus events.
const (
	// EventEntityChanged carries an EntityChange in both directions.
	EventEntityChanged = "entity.changed"
	// EventConflict carries a Conflict when an inbound copy lost to the local one.
	EventConflict      = "sync.conflict"
	EventNotification  = "sync.notification"
	EventServerError   = "sync.error"
	EventConnected     = "sync.connected"
	EventDisconnected  = "sync.disconnected"
)

var (
	ErrMissingID   = errors.New("syncer: record id is required")
	ErrUnknownKind = errors.New("syncer: unknown entity kind")
	ErrBadPayload  = errors.New("syncer: unexpected event payload")
)

// Connection is the part of connection.Manager the syncer drives.
type Connection interface {
	Send(env envelope.Envelope) *ack.Future
	Subscribe(t envelope.Type, h router.Handler) func()
}

// SyncRequestData is the payload of SYNC_REQUEST.
type SyncRequestData struct {
	QueuedOperations int   `json:"queuedOperations"`
	LastSyncMarker   int64 `json:"lastSyncMarker"`
	Reconnected      bool  `json:"reconnected"`
}

// Conflict describes an inbound update that lost to the cached copy.
type Conflict struct {
	Local  Record `json:"local"`
	Remote Record `json:"remote"`
	Winner Winner `json:"winner"`
}

type cacheKey struct {
	kind Kind
	id   string
}

// Syncer is safe for concurrent use.
type Syncer struct {
	conn   Connection
	bus    bus.Bus
	store  store.Store
	source string
	logger log.Logger

	mu     sync.Mutex
	cache  map[cacheKey]Record
	marker int64
	unsubs []func()
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithStore persists the sync marker in st.
func WithStore(st store.Store) Option {
	return func(s *Syncer) { s.store = st }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *Syncer) { s.logger = log.OrNoop(l) }
}

// WithSource sets the source label of outbound envelopes.
func WithSource(source string) Option {
	return func(s *Syncer) { s.source = source }
}

// New creates a Syncer. Call Start to wire it up.
func New(conn Connection, b bus.Bus, opts ...Option) *Syncer {
	s := &Syncer{
		conn:   conn,
		bus:    b,
		source: envelope.DefaultSource,
		logger: log.NewNoopLogger(),
		cache:  make(map[cacheKey]Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.Component("syncer"))
	return s
}

// Start loads the persisted marker and subscribes to the connection and the
// bus.
func (s *Syncer) Start(ctx context.Context) error {
	marker, err := loadMarker(ctx, s.store)
	if err != nil {
		return fmt.Errorf("load sync marker: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.marker = marker

	for _, t := range []envelope.Type{
		envelope.TypeOrderCreated,
		envelope.TypeOrderUpdated,
		envelope.TypeOrderStatusChanged,
		envelope.TypeInventoryUpdated,
		envelope.TypeStaffClockAction,
		envelope.TypeKitchenUpdate,
	} {
		s.unsubs = append(s.unsubs, s.conn.Subscribe(t, s.handleEntity))
	}
	s.unsubs = append(s.unsubs,
		s.conn.Subscribe(envelope.TypeNotification, s.handleNotification),
		s.conn.Subscribe(envelope.TypeError, s.handleServerError),
		s.conn.Subscribe(envelope.TypeClientConnected, s.handleConnected),
		s.conn.Subscribe(envelope.TypeClientDisconnected, s.handleDisconnected),
		s.bus.On(EventEntityChanged, s.handleLocalChange),
	)
	s.logger.Info("syncer started", log.Int64("marker", marker))
	return nil
}

// Stop removes every subscription made by Start.
func (s *Syncer) Stop() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()
	for _, off := range unsubs {
		off()
	}
}

// Marker returns the newest inbound envelope timestamp seen.
func (s *Syncer) Marker() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.marker
}

// Cached returns the authoritative copy of an entity, if one is known.
func (s *Syncer) Cached(kind Kind, id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.cache[cacheKey{kind: kind, id: id}]
	return r, ok
}

// RequestSync sends a SYNC_REQUEST carrying the number of queued
// operations and the current marker.
func (s *Syncer) RequestSync(queued int, reconnected bool) {
	data := SyncRequestData{
		QueuedOperations: queued,
		LastSyncMarker:   s.Marker(),
		Reconnected:      reconnected,
	}
	env, err := envelope.New(envelope.TypeSyncRequest, data,
		envelope.WithSource(s.source),
		envelope.WithPriority(envelope.PriorityHigh),
	)
	if err != nil {
		s.logger.Error("build sync request", log.Err(err))
		return
	}
	s.logger.Info("requesting reconciliation",
		log.Int("queued", queued),
		log.Int64("marker", data.LastSyncMarker),
	)
	s.conn.Send(env)
}

func (s *Syncer) handleLocalChange(_ context.Context, payload any) error {
	var change EntityChange
	switch p := payload.(type) {
	case EntityChange:
		change = p
	case *EntityChange:
		change = *p
	default:
		return fmt.Errorf("%w: %T", ErrBadPayload, payload)
	}
	if change.Origin == OriginRemote {
		return nil
	}

	rec := change.Record
	if rec.ID == "" {
		return ErrMissingID
	}
	t, ok := envelopeType(change)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, rec.Kind)
	}
	if rec.Timestamp == 0 {
		rec.Timestamp = time.Now().UnixMilli()
	}
	if rec.Kind != KindNotification {
		s.mu.Lock()
		s.cache[cacheKey{kind: rec.Kind, id: rec.ID}] = rec
		s.mu.Unlock()
	}

	env, err := envelope.New(t, rec,
		envelope.WithSource(s.source),
		envelope.WithPriority(priorityFor(rec.Kind)),
	)
	if err != nil {
		return fmt.Errorf("build %s envelope: %w", t, err)
	}
	s.conn.Send(env)
	return nil
}

func (s *Syncer) handleEntity(ctx context.Context, env envelope.Envelope) error {
	kind, action := kindOf(env.Type)
	var remote Record
	if err := env.Decode(&remote); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	if remote.ID == "" {
		return fmt.Errorf("%s %s: %w", env.Type, env.ID, ErrMissingID)
	}
	if remote.Kind == "" {
		remote.Kind = kind
	}
	if remote.Timestamp == 0 {
		remote.Timestamp = env.Timestamp
	}
	s.advanceMarker(ctx, env.Timestamp)

	key := cacheKey{kind: remote.Kind, id: remote.ID}
	s.mu.Lock()
	local, cached := s.cache[key]
	resolved, winner := remote, WinnerRemote
	if cached {
		resolved, winner = Resolve(local, remote)
	}
	s.cache[key] = resolved
	s.mu.Unlock()

	if winner == WinnerLocal {
		s.logger.Info("kept local copy over inbound update",
			log.String("kind", string(remote.Kind)),
			log.String("id", remote.ID),
			log.String("envelope_id", env.ID),
		)
		s.bus.Emit(ctx, EventConflict, Conflict{Local: local, Remote: remote, Winner: winner})
		return nil
	}

	s.bus.Emit(ctx, EventEntityChanged, EntityChange{
		Action: action,
		Record: resolved,
		Origin: OriginRemote,
	})
	return nil
}

func (s *Syncer) handleNotification(ctx context.Context, env envelope.Envelope) error {
	s.advanceMarker(ctx, env.Timestamp)
	s.bus.Emit(ctx, EventNotification, env.Data)
	return nil
}

func (s *Syncer) handleServerError(ctx context.Context, env envelope.Envelope) error {
	s.bus.Emit(ctx, EventServerError, env.Data)
	return nil
}

func (s *Syncer) handleConnected(ctx context.Context, env envelope.Envelope) error {
	var data connection.ConnectedData
	if err := env.Decode(&data); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	s.bus.Emit(ctx, EventConnected, data)
	if data.Reconnected || data.Queued > 0 || s.Marker() > 0 {
		s.RequestSync(data.Queued, data.Reconnected)
	}
	return nil
}

func (s *Syncer) handleDisconnected(ctx context.Context, env envelope.Envelope) error {
	var data connection.DisconnectedData
	if err := env.Decode(&data); err != nil {
		return fmt.Errorf("decode %s: %w", env.Type, err)
	}
	s.bus.Emit(ctx, EventDisconnected, data)
	return nil
}
