// Package notify delivers short text notifications to guardians.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"schoolms/internal/metrics"
	"schoolms/internal/queue"
	"schoolms/internal/sms"
)

// MessageType tags queued SMS notifications.
const MessageType = "sms"

// Notifier sends a free-text message to one phone number.
type Notifier interface {
	Send(ctx context.Context, recipient, message string) error
}

// Payload is the queued form of a notification.
type Payload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// QueueNotifier hands notifications to a queue for a worker to deliver.
type QueueNotifier struct {
	q queue.Queue
}

// NewQueueNotifier wraps a queue.
func NewQueueNotifier(q queue.Queue) *QueueNotifier {
	return &QueueNotifier{q: q}
}

// Send enqueues the message and returns without waiting for delivery.
func (n *QueueNotifier) Send(ctx context.Context, recipient, message string) error {
	body, err := json.Marshal(Payload{To: recipient, Message: message})
	if err != nil {
		return err
	}
	if err := n.q.Publish(ctx, queue.NewMessage(MessageType, body)); err != nil {
		return fmt.Errorf("notify: enqueue: %w", err)
	}
	return nil
}

// SMSNotifier delivers straight through the SMS gateway.
type SMSNotifier struct {
	client *sms.Client
}

// NewSMSNotifier wraps a gateway client.
func NewSMSNotifier(client *sms.Client) *SMSNotifier {
	return &SMSNotifier{client: client}
}

// Send delivers the message.
func (n *SMSNotifier) Send(ctx context.Context, recipient, message string) error {
	_, err := n.client.Send(ctx, recipient, message)
	return err
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct {
	log *slog.Logger
}

// NewLogNotifier logs through l.
func NewLogNotifier(l *slog.Logger) *LogNotifier {
	return &LogNotifier{log: l}
}

// Send logs the message.
func (n *LogNotifier) Send(_ context.Context, recipient, message string) error {
	n.log.Info("notification", "to", recipient, "message", message)
	return nil
}

// Worker drains queued notifications and delivers each one once.
type Worker struct {
	q       queue.Queue
	sender  Notifier
	log     *slog.Logger
	timeout time.Duration
}

// NewWorker creates a worker delivering through sender.
func NewWorker(q queue.Queue, sender Notifier, l *slog.Logger) *Worker {
	return &Worker{q: q, sender: sender, log: l, timeout: 15 * time.Second}
}

// Run blocks until ctx is done or the queue closes.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("notify: consume: %w", err)
	}
	for msg := range messages {
		w.handle(ctx, msg)
	}
	return nil
}

func (w *Worker) handle(ctx context.Context, msg queue.Message) {
	if msg.Type != MessageType {
		w.log.Warn("skipping message of unknown type", "id", msg.ID, "type", msg.Type)
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return
	}
	var p Payload
	if err := json.Unmarshal(msg.Body, &p); err != nil {
		w.log.Error("undecodable notification", "id", msg.ID, "error", err)
		metrics.Notifications.WithLabelValues("failed").Inc()
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.sender.Send(sendCtx, p.To, p.Message); err != nil {
		// one attempt only; the message is dropped
		w.log.Error("notification delivery failed", "id", msg.ID, "to", p.To, "error", err)
		metrics.Notifications.WithLabelValues("failed").Inc()
		return
	}
	w.log.Info("notification delivered", "id", msg.ID, "to", p.To, "queued_for", time.Since(msg.EnqueuedAt).String())
	metrics.Notifications.WithLabelValues("sent").Inc()
}
