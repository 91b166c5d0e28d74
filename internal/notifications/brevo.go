package notifications

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	brevo "github.com/getbrevo/brevo-go/lib"

	"github.com/angelmondragon/ummati-backend/pkg/config"
)

// transactionalAPI is the Brevo call used to deliver a single email.
type transactionalAPI interface {
	SendTransacEmail(ctx context.Context, email brevo.SendSmtpEmail) (brevo.CreateSmtpEmail, *http.Response, error)
}

// BrevoSender delivers messages through Brevo's transactional email API.
type BrevoSender struct {
	api         transactionalAPI
	senderName  string
	senderEmail string
}

// NewBrevoSender builds a sender from config. Callers should check cfg.Enabled first.
func NewBrevoSender(cfg config.BrevoConfig) (*BrevoSender, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("brevo api key and sender email are required")
	}
	brevoCfg := brevo.NewConfiguration()
	brevoCfg.AddDefaultHeader("api-key", strings.TrimSpace(cfg.APIKey))
	client := brevo.NewAPIClient(brevoCfg)
	return newBrevoSender(client.TransactionalEmailsApi, cfg), nil
}

func newBrevoSender(api transactionalAPI, cfg config.BrevoConfig) *BrevoSender {
	return &BrevoSender{
		api:         api,
		senderName:  strings.TrimSpace(cfg.SenderName),
		senderEmail: strings.TrimSpace(cfg.SenderMail),
	}
}

func (s *BrevoSender) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	email := brevo.SendSmtpEmail{
		Sender: &brevo.SendSmtpEmailSender{
			Name:  s.senderName,
			Email: s.senderEmail,
		},
		To: []brevo.SendSmtpEmailTo{{
			Email: msg.To.Email,
			Name:  msg.To.Name,
		}},
		Subject:     msg.Subject,
		TextContent: msg.Text,
		HtmlContent: msg.HTML,
	}
	_, resp, err := s.api.SendTransacEmail(ctx, email)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("brevo send: %w", err)
	}
	if resp != nil && resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("brevo send: status %d", resp.StatusCode)
	}
	return nil
}
