package bootstrap

import (
	"github.com/Domenick1991/flightmanager/config"
	"github.com/Domenick1991/flightmanager/internal/email"
	"github.com/Domenick1991/flightmanager/internal/kafka"
)

// DirectSender is the transport that actually delivers mail.
func DirectSender(cfg config.EmailConfig) email.Sender {
	if cfg.Mode == config.EmailModeMailerSend {
		return email.NewMailerSendSender(cfg.APIKey, cfg.FromName, cfg.FromEmail)
	}
	return email.NewDevSender()
}

// ConfirmationSender queues messages on kafka for the worker when email.queue is set.
func ConfirmationSender(cfg *config.Config, producer *kafka.Producer) email.Sender {
	if cfg.Email.Queue && producer != nil {
		return kafka.NewQueueSender(producer, cfg.Kafka.NotificationsTopic)
	}
	return DirectSender(cfg.Email)
}
