package worker

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/service"
)

// LogSender writes outbound email to the log instead of a mail provider.
type LogSender struct {
	from   string
	logger *zap.Logger
}

func NewLogSender(from string, logger *zap.Logger) *LogSender {
	return &LogSender{from: from, logger: logger}
}

func (s *LogSender) Send(_ context.Context, d service.Delivery) error {
	subject := d.Message.MessageType
	if d.Message.Subject != nil && strings.TrimSpace(*d.Message.Subject) != "" {
		subject = *d.Message.Subject
	}
	template := ""
	if d.Message.TemplateName != nil {
		template = *d.Message.TemplateName
	}
	s.logger.Info("email sent",
		zap.String("from", s.from),
		zap.String("to", *d.Contact.Email),
		zap.String("contact", d.Contact.DisplayName()),
		zap.String("subject", subject),
		zap.String("template", template),
		zap.String("message_id", d.Message.ID.String()))
	return nil
}
