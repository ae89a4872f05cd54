package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolms/internal/logger"
	"schoolms/internal/queue"
)

type sent struct{ to, msg string }

type recorder struct {
	mu   sync.Mutex
	got  []sent
	fail error
	done chan struct{}
}

func newRecorder() *recorder { return &recorder{done: make(chan struct{}, 16)} }

func (r *recorder) Send(_ context.Context, to, msg string) error {
	r.mu.Lock()
	r.got = append(r.got, sent{to, msg})
	r.mu.Unlock()
	r.done <- struct{}{}
	return r.fail
}

func TestQueueNotifierPublishesPayload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(2)
	require.NoError(t, NewQueueNotifier(q).Send(ctx, "+2550001", "hello"))

	msgs, err := q.Consume(ctx)
	require.NoError(t, err)
	m := <-msgs

	assert.Equal(t, MessageType, m.Type)
	var p Payload
	require.NoError(t, json.Unmarshal(m.Body, &p))
	assert.Equal(t, Payload{To: "+2550001", Message: "hello"}, p)
}

func TestQueueNotifierFullQueue(t *testing.T) {
	q := queue.NewInMemory(1)
	n := NewQueueNotifier(q)
	require.NoError(t, n.Send(context.Background(), "a", "b"))
	assert.ErrorIs(t, n.Send(context.Background(), "a", "b"), queue.ErrFull)
}

func TestWorkerDeliversOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := queue.NewInMemory(4)
	rec := newRecorder()
	rec.fail = errors.New("gateway down")
	w := NewWorker(q, rec, logger.Discard())

	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	require.NoError(t, NewQueueNotifier(q).Send(ctx, "+2550001", "first"))
	require.NoError(t, q.Publish(ctx, queue.NewMessage("email", []byte("{}"))))
	require.NoError(t, NewQueueNotifier(q).Send(ctx, "+2550002", "second"))

	for i := 0; i < 2; i++ {
		select {
		case <-rec.done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker did not deliver")
		}
	}
	cancel()
	require.NoError(t, <-errc)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []sent{{"+2550001", "first"}, {"+2550002", "second"}}, rec.got)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logger.NewWithWriter(&buf, "info"))

	require.NoError(t, n.Send(context.Background(), "+2550001", "hello"))
	assert.Contains(t, buf.String(), "+2550001")
}
