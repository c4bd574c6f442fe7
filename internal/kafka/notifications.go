package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Domenick1991/flightmanager/internal/email"
	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type publisher interface {
	PublishWithRetry(ctx context.Context, topic, key string, payload any, maxRetries int) error
}

// QueueSender hands emails to the worker through the notifications topic.
type QueueSender struct {
	producer publisher
	topic    string
}

func NewQueueSender(producer *Producer, topic string) *QueueSender {
	return &QueueSender{producer: producer, topic: topic}
}

func (q *QueueSender) Send(ctx context.Context, msg email.Message) (string, error) {
	if msg.To == "" {
		return "", email.ErrNoRecipient
	}
	req := NotificationRequest{
		ID:      uuid.NewString(),
		To:      msg.To,
		ToName:  msg.ToName,
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	}
	if err := q.producer.PublishWithRetry(ctx, q.topic, req.To, req, 3); err != nil {
		return "", err
	}
	return req.ID, nil
}

var _ email.Sender = (*QueueSender)(nil)

// NotificationHandler decodes queued requests and delivers them with sender.
func NotificationHandler(sender email.Sender) func(context.Context, kafka.Message) error {
	return func(ctx context.Context, msg kafka.Message) error {
		var req NotificationRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			return fmt.Errorf("decode notification at offset %d: %w", msg.Offset, err)
		}
		id, err := sender.Send(ctx, email.Message{
			To:      req.To,
			ToName:  req.ToName,
			Subject: req.Subject,
			HTML:    req.HTML,
			Text:    req.Text,
		})
		if err != nil {
			return fmt.Errorf("send notification %s: %w", req.ID, err)
		}
		logger.InfoContext(ctx, "notification delivered", "request_id", req.ID, "message_id", id)
		return nil
	}
}
