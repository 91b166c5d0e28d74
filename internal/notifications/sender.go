package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

// Message is one transactional email.
type Message struct {
	To      Recipient
	Subject string
	Text    string
	HTML    string
}

// Recipient addresses a member.
type Recipient struct {
	Email string
	Name  string
}

// Sender delivers a message. Implementations return delivery errors; the
// dispatcher decides they are never fatal.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the structured log instead of delivering them.
type LogSender struct {
	logg *logger.Logger
}

// NewLogSender is used when no email provider is configured.
func NewLogSender(logg *logger.Logger) *LogSender {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogSender{logg: logg}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"to":      msg.To.Email,
		"subject": msg.Subject,
	})
	s.logg.Info(ctx, "notification.logged")
	return nil
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To.Email) == "" {
		return fmt.Errorf("recipient email required")
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("subject required")
	}
	return nil
}
