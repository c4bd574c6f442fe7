package email

import (
	"context"
	"errors"
	"strings"

	"github.com/Domenick1991/flightmanager/internal/logger"
	"github.com/google/uuid"
)

var ErrNoRecipient = errors.New("email: empty recipient")

type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers one message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// DevSender only logs what would have been sent.
type DevSender struct{}

func NewDevSender() *DevSender {
	return &DevSender{}
}

func (s *DevSender) Send(ctx context.Context, msg Message) (string, error) {
	if strings.TrimSpace(msg.To) == "" {
		return "", ErrNoRecipient
	}
	id := "dev-" + uuid.NewString()
	logger.InfoContext(ctx, "[DEV MAIL] "+msg.Subject,
		"to", msg.To,
		"name", msg.ToName,
		"message_id", id,
		"text", msg.Text,
	)
	return id, nil
}
