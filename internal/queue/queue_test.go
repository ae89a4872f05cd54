package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	a := NewMessage("sms", []byte("hi"))
	b := NewMessage("sms", []byte("hi"))

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.EnqueuedAt.IsZero())
}

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	msgs, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, NewMessage("sms", []byte("one"))))
	require.NoError(t, q.Publish(ctx, NewMessage("sms", []byte("two"))))

	for _, want := range []string{"one", "two"} {
		select {
		case m := <-msgs:
			assert.Equal(t, want, string(m.Body))
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestInMemoryFull(t *testing.T) {
	q := NewInMemory(1)
	ctx := context.Background()

	require.NoError(t, q.Publish(ctx, NewMessage("sms", nil)))
	assert.ErrorIs(t, q.Publish(ctx, NewMessage("sms", nil)), ErrFull)
}

func TestInMemoryConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := NewInMemory(1).Consume(ctx)
	require.NoError(t, err)

	cancel()
	select {
	case _, ok := <-msgs:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}

func TestInMemoryPublishCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewInMemory(1).Publish(ctx, NewMessage("sms", nil)), context.Canceled)
}
