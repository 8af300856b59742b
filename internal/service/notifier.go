package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drivelink/drivelink-api/internal/messenger"
	"github.com/drivelink/drivelink-api/pkg/jobs"
)

const jobTypeWhatsApp = "whatsapp_message"

// sendTimeout bounds one Twilio API call inside the delivery workers.
const sendTimeout = 15 * time.Second

type outboundMessage struct {
	To   string
	Body string
}

// Notifier queues outbound WhatsApp messages so callers never block on the
// transport. Delivery failures retry with the queue's backoff.
type Notifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotifier constructs a Notifier backed by a worker pool.
func NewNotifier(sender messenger.Sender, workers int, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(outboundMessage)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", job.Payload)
		}
		return sender.SendWhatsApp(ctx, msg.To, msg.Body)
	}
	queue := jobs.NewQueue("outbound-whatsapp", handler, jobs.QueueConfig{
		Workers:    workers,
		JobTimeout: sendTimeout,
		Logger:     logger,
	})
	return &Notifier{queue: queue, logger: logger}
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains the delivery workers.
func (n *Notifier) Stop() {
	n.queue.Stop()
}

// Send queues one message for delivery.
func (n *Notifier) Send(to, body string) error {
	return n.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeWhatsApp,
		Payload: outboundMessage{To: to, Body: body},
	})
}
