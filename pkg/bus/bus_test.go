package bus

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemory_EmitInRegistrationOrder(t *testing.T) {
	b := NewMemory(nil)
	var got []string
	b.On("order.created", func(_ context.Context, p any) error {
		got = append(got, "first:"+p.(string))
		return nil
	})
	b.On("order.created", func(_ context.Context, p any) error {
		got = append(got, "second:"+p.(string))
		return nil
	})
	b.On("other", func(context.Context, any) error {
		got = append(got, "other")
		return nil
	})

	b.Emit(context.Background(), "order.created", "o-1")
	assert.Equal(t, []string{"first:o-1", "second:o-1"}, got)
}

func TestMemory_HandlerFailuresAreIsolated(t *testing.T) {
	b := NewMemory(nil)
	calls := 0
	b.On("e", func(context.Context, any) error { return errors.New("boom") })
	b.On("e", func(context.Context, any) error { panic("kaboom") })
	b.On("e", func(context.Context, any) error {
		calls++
		return nil
	})

	assert.NotPanics(t, func() { b.Emit(context.Background(), "e", nil) })
	assert.Equal(t, 1, calls)
}

func TestMemory_Unsubscribe(t *testing.T) {
	b := NewMemory(nil)
	calls := 0
	off := b.On("e", func(context.Context, any) error {
		calls++
		return nil
	})
	assert.Equal(t, 1, b.subscriberCount("e"))

	off()
	off()
	b.Emit(context.Background(), "e", nil)
	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, b.subscriberCount("e"))
}

func TestMemory_UnsubscribeDuringEmit(t *testing.T) {
	b := NewMemory(nil)
	calls := 0
	var off func()
	off = b.On("e", func(context.Context, any) error {
		off()
		return nil
	})
	b.On("e", func(context.Context, any) error {
		calls++
		return nil
	})

	b.Emit(context.Background(), "e", nil)
	b.Emit(context.Background(), "e", nil)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, b.subscriberCount("e"))
}
