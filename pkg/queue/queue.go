// Package queue implements the bounded, durable outbound queue that holds
// envelopes while the connection is down.
//
// The queue is strict FIFO: when capacity is exceeded the oldest entry is
// dropped, regardless of priority. Entries leave the head one at a time with
// PopFront once they are on the wire, so a crash mid-flush loses nothing
// that was not sent. Every mutation schedules a snapshot write to the
// backing store; writes happen on a background goroutine and coalesce, so
// mutations never wait on the store.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/syncwire/pkg/envelope"
	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/store"
)

const (
	DefaultCapacity  = 100
	DefaultNamespace = "outbound"
	DefaultKey       = "queue"

	snapshotVersion = 1
	persistTimeout  = 5 * time.Second
)

// Entry is a queued envelope plus its enqueue time.
type Entry struct {
	Envelope   envelope.Envelope `json:"envelope" msgpack:"envelope"`
	EnqueuedAt int64             `json:"enqueuedAt" msgpack:"enqueuedAt"`
}

type snapshot struct {
	Version int     `json:"version" msgpack:"version"`
	Entries []Entry `json:"entries" msgpack:"entries"`
}

// Config controls capacity and where the snapshot is stored.
type Config struct {
	Capacity  int
	Namespace string
	Key       string
	Codec     Codec
}

// Queue is safe for concurrent use.
type Queue struct {
	mu         sync.Mutex
	entries    []Entry
	dropped    uint64
	dirty      bool
	persisting bool

	// writeMu serializes snapshot writes so a newer snapshot is never
	// overwritten by an older one.
	writeMu sync.Mutex

	capacity  int
	namespace string
	key       string
	codec     Codec
	store     store.Store
	logger    log.Logger
}

// New creates an empty queue. A nil store keeps the queue in memory only.
func New(st store.Store, cfg Config, logger log.Logger) *Queue {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.Codec == nil {
		cfg.Codec = JSONCodec
	}
	return &Queue{
		capacity:  cfg.Capacity,
		namespace: cfg.Namespace,
		key:       cfg.Key,
		codec:     cfg.Codec,
		store:     st,
		logger:    log.OrNoop(logger).With(log.Component("queue")),
	}
}

// Load restores the persisted snapshot, replacing the in-memory contents.
// An unreadable snapshot is discarded with a warning.
func (q *Queue) Load(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	data, err := q.store.Get(ctx, q.namespace, q.key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var snap snapshot
	if err := q.codec.Unmarshal(data, &snap); err != nil || snap.Version != snapshotVersion {
		q.logger.Warn("discarding unreadable queue snapshot",
			log.String("codec", q.codec.Name()),
			log.Int("version", snap.Version),
			log.Any("decode_error", err),
		)
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = snap.Entries
	q.trimLocked()
	q.logger.Info("restored outbound queue", log.Int("entries", len(q.entries)))
	return nil
}

// Enqueue appends env and returns the number of entries evicted to stay
// within capacity.
func (q *Queue) Enqueue(env envelope.Envelope) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, Entry{Envelope: env, EnqueuedAt: time.Now().UnixMilli()})
	evicted := q.trimLocked()
	q.persistLocked()
	return evicted
}

// Peek returns the head entry without removing it.
func (q *Queue) Peek() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return Entry{}, false
	}
	return q.entries[0], true
}

// PopFront removes the head entry if it carries envelope id. It reports
// false when the head is a different entry because that one was already
// removed or evicted.
func (q *Queue) PopFront(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 || q.entries[0].Envelope.ID != id {
		return false
	}
	q.entries[0] = Entry{}
	q.entries = q.entries[1:]
	q.persistLocked()
	return true
}

// Clear drops every entry and returns how many were removed.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.entries)
	if n == 0 {
		return 0
	}
	q.entries = nil
	q.persistLocked()
	return n
}

// Len returns the number of queued entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Dropped returns how many entries were evicted since the queue was created.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Capacity returns the configured bound.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Sync writes the current contents to the store and waits for the write.
// Use it before exit; background writes may still be pending otherwise.
func (q *Queue) Sync(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	return q.writeSnapshot(ctx)
}

func (q *Queue) trimLocked() int {
	over := len(q.entries) - q.capacity
	if over <= 0 {
		return 0
	}
	q.entries = append([]Entry(nil), q.entries[over:]...)
	q.dropped += uint64(over)
	q.logger.Debug("evicted oldest queued envelopes", log.Int("evicted", over))
	return over
}

// persistLocked marks the snapshot stale and makes sure a writer is running.
func (q *Queue) persistLocked() {
	if q.store == nil {
		return
	}
	q.dirty = true
	if q.persisting {
		return
	}
	q.persisting = true
	go q.persistLoop()
}

func (q *Queue) persistLoop() {
	for {
		q.mu.Lock()
		if !q.dirty {
			q.persisting = false
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		if err := q.writeSnapshot(ctx); err != nil {
			q.logger.Error("persist queue snapshot", log.Err(err))
		}
		cancel()
	}
}

func (q *Queue) writeSnapshot(ctx context.Context) error {
	q.writeMu.Lock()
	defer q.writeMu.Unlock()

	q.mu.Lock()
	entries := append([]Entry(nil), q.entries...)
	q.dirty = false
	q.mu.Unlock()

	data, err := q.codec.Marshal(snapshot{Version: snapshotVersion, Entries: entries})
	if err != nil {
		return fmt.Errorf("encode queue snapshot: %w", err)
	}
	if err := q.store.Set(ctx, q.namespace, q.key, data); err != nil {
		return fmt.Errorf("write queue snapshot (%d entries): %w", len(entries), err)
	}
	return nil
}
