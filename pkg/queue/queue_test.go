package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/syncwire/pkg/envelope"
	"github.com/bft-labs/syncwire/pkg/store"
)

func env(t *testing.T, n int) envelope.Envelope {
	t.Helper()
	return envelope.MustNew(envelope.TypeOrderUpdated, map[string]int{"n": n})
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Envelope.ID
	}
	return out
}

func contents(q *Queue) []Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Entry(nil), q.entries...)
}

func persisted(t *testing.T, st store.Store, cfg Config) []Entry {
	t.Helper()
	restored := New(st, cfg, nil)
	require.NoError(t, restored.Load(context.Background()))
	return contents(restored)
}

// gatedStore blocks every Set until the gate is opened.
type gatedStore struct {
	*store.MemoryStore
	gate chan struct{}
}

func (g *gatedStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	select {
	case <-g.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.MemoryStore.Set(ctx, namespace, key, value)
}

func TestQueue_EvictsOldestBeyondCapacity(t *testing.T) {
	const capacity, extra = 5, 3
	q := New(nil, Config{Capacity: capacity}, nil)

	var all []string
	evicted := 0
	for i := 0; i < capacity+extra; i++ {
		e := env(t, i)
		all = append(all, e.ID)
		evicted += q.Enqueue(e)
	}

	assert.Equal(t, extra, evicted)
	assert.Equal(t, uint64(extra), q.Dropped())
	assert.Equal(t, all[extra:], ids(contents(q)), "must keep the last capacity entries in order")
}

func TestQueue_PeekAndPopFrontInFIFOOrder(t *testing.T) {
	q := New(nil, Config{}, nil)
	var want []string
	for i := 0; i < 4; i++ {
		e := env(t, i)
		want = append(want, e.ID)
		q.Enqueue(e)
	}

	var got []string
	for {
		head, ok := q.Peek()
		if !ok {
			break
		}
		assert.Equal(t, len(want)-len(got), q.Len(), "peek must not remove")
		require.True(t, q.PopFront(head.Envelope.ID))
		got = append(got, head.Envelope.ID)
	}
	assert.Equal(t, want, got)
	assert.Zero(t, q.Len())
}

func TestQueue_PopFrontIgnoresStaleID(t *testing.T) {
	q := New(nil, Config{}, nil)
	a, b := env(t, 1), env(t, 2)
	q.Enqueue(a)
	q.Enqueue(b)

	require.True(t, q.PopFront(a.ID))
	assert.False(t, q.PopFront(a.ID), "a second pop for the same entry must not remove the next one")
	assert.Equal(t, []string{b.ID}, ids(contents(q)))
}

func TestQueue_Clear(t *testing.T) {
	q := New(nil, Config{}, nil)
	q.Enqueue(env(t, 1))
	q.Enqueue(env(t, 2))

	assert.Equal(t, 2, q.Clear())
	assert.Zero(t, q.Len())
	assert.Zero(t, q.Clear())
}

func TestQueue_PersistsEveryMutation(t *testing.T) {
	for _, codec := range []Codec{JSONCodec, MsgpackCodec} {
		t.Run(codec.Name(), func(t *testing.T) {
			ctx := context.Background()
			st := store.NewMemoryStore()
			cfg := Config{Capacity: 10, Codec: codec}

			q := New(st, cfg, nil)
			a, b := env(t, 1), env(t, 2)
			q.Enqueue(a)
			q.Enqueue(b)
			require.NoError(t, q.Sync(ctx))

			snap := persisted(t, st, cfg)
			require.Len(t, snap, 2)
			assert.Equal(t, []string{a.ID, b.ID}, ids(snap))
			assert.JSONEq(t, string(a.Data), string(snap[0].Envelope.Data))
			assert.NotZero(t, snap[0].EnqueuedAt)

			require.True(t, q.PopFront(a.ID))
			require.Eventually(t, func() bool { return len(persisted(t, st, cfg)) == 1 }, time.Second, 5*time.Millisecond)
			assert.Equal(t, []string{b.ID}, ids(persisted(t, st, cfg)))

			q.Clear()
			require.NoError(t, q.Sync(ctx))
			assert.Empty(t, persisted(t, st, cfg))
		})
	}
}

func TestQueue_MutationsDoNotWaitForStore(t *testing.T) {
	st := &gatedStore{MemoryStore: store.NewMemoryStore(), gate: make(chan struct{})}
	cfg := Config{Capacity: 10}
	q := New(st, cfg, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			q.Enqueue(env(t, i))
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a stalled store")
	}
	assert.Equal(t, 5, q.Len())

	close(st.gate)
	require.Eventually(t, func() bool { return len(persisted(t, st.MemoryStore, cfg)) == 5 }, time.Second, 5*time.Millisecond)
}

func TestQueue_LoadDiscardsUnreadableSnapshot(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	require.NoError(t, st.Set(ctx, DefaultNamespace, DefaultKey, []byte("not a snapshot")))

	q := New(st, Config{}, nil)
	require.NoError(t, q.Load(ctx))
	assert.Zero(t, q.Len())
}

func TestQueue_LoadTrimsToCapacity(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	big := New(st, Config{Capacity: 10}, nil)
	for i := 0; i < 10; i++ {
		big.Enqueue(env(t, i))
	}
	require.NoError(t, big.Sync(ctx))
	want := ids(contents(big))[6:]

	small := New(st, Config{Capacity: 4}, nil)
	require.NoError(t, small.Load(ctx))
	assert.Equal(t, want, ids(contents(small)))
}

func TestCodecByName(t *testing.T) {
	for _, name := range []string{"", "json", "msgpack"} {
		c, err := CodecByName(name)
		require.NoError(t, err, name)
		assert.NotNil(t, c)
	}
	_, err := CodecByName("gob")
	assert.Error(t, err)
}

func ExampleQueue() {
	q := New(nil, Config{Capacity: 2}, nil)
	for i := 0; i < 3; i++ {
		q.Enqueue(envelope.MustNew(envelope.TypeNotification, map[string]int{"n": i}))
	}
	fmt.Println(q.Len(), q.Dropped())
	// Output: 2 1
}
