package notifications

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	brevo "github.com/getbrevo/brevo-go/lib"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ummati-backend/pkg/config"
)

type captureSender struct {
	msgs []Message
	err  error
}

func (c *captureSender) Send(ctx context.Context, msg Message) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected send deadline")
	}
	c.msgs = append(c.msgs, msg)
	return c.err
}

type stubTransactionalAPI struct {
	sent   brevo.SendSmtpEmail
	status int
	err    error
}

func (s *stubTransactionalAPI) SendTransacEmail(ctx context.Context, email brevo.SendSmtpEmail) (brevo.CreateSmtpEmail, *http.Response, error) {
	s.sent = email
	return brevo.CreateSmtpEmail{}, &http.Response{StatusCode: s.status}, s.err
}

func TestDispatcherRendersAndSends(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, nil)

	end := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	d.SubscriptionReceipt(context.Background(), Recipient{Email: "amina@example.com", Name: "Amina"}, "Premium", decimal.RequireFromString("9.99"), end)

	if len(sender.msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(sender.msgs))
	}
	msg := sender.msgs[0]
	if !strings.Contains(msg.Text, "$9.99") || !strings.Contains(msg.Text, "May 1, 2026") {
		t.Fatalf("unexpected text body %q", msg.Text)
	}
	if !strings.HasPrefix(msg.HTML, "<p>Hello Amina,</p>") {
		t.Fatalf("unexpected html body %q", msg.HTML)
	}
}

func TestDispatcherSwallowsSendErrors(t *testing.T) {
	sender := &captureSender{err: errors.New("smtp down")}
	d := NewDispatcher(sender, nil)

	d.PaymentFailed(context.Background(), Recipient{Email: "amina@example.com"}, 1, time.Now())
	if len(sender.msgs) != 1 {
		t.Fatalf("expected send attempt, got %d", len(sender.msgs))
	}
}

func TestDispatcherSurvivesCancelledContext(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Downgraded(ctx, Recipient{Email: "amina@example.com"}, "Free")
	if len(sender.msgs) != 1 {
		t.Fatal("expected message to be sent after request cancellation")
	}
}

func TestTemplatesEscapeHTML(t *testing.T) {
	msg := downgraded(Recipient{Email: "x@example.com", Name: "<b>Eve</b>"}, "Free")
	if strings.Contains(msg.HTML, "<b>Eve</b>") {
		t.Fatalf("expected escaped name, got %q", msg.HTML)
	}
	refund := refundProcessed(Recipient{Email: "x@example.com"}, decimal.NewFromInt(5), "requested_by_customer")
	if !strings.Contains(refund.Text, "requested by customer") {
		t.Fatalf("expected humanized reason, got %q", refund.Text)
	}
}

func TestBrevoSenderBuildsTransactionalEmail(t *testing.T) {
	api := &stubTransactionalAPI{status: http.StatusCreated}
	sender := newBrevoSender(api, config.BrevoConfig{SenderName: "Ummati", SenderMail: "noreply@ummati.org"})

	err := sender.Send(context.Background(), Message{
		To:      Recipient{Email: "amina@example.com", Name: "Amina"},
		Subject: "Payment received",
		Text:    "thanks",
		HTML:    "<p>thanks</p>",
	})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if api.sent.Sender.Email != "noreply@ummati.org" || api.sent.To[0].Email != "amina@example.com" {
		t.Fatalf("unexpected payload %+v", api.sent)
	}

	api.status = http.StatusBadRequest
	if err := sender.Send(context.Background(), Message{To: Recipient{Email: "a@b.c"}, Subject: "x"}); err == nil {
		t.Fatal("expected error on 4xx")
	}
	if err := sender.Send(context.Background(), Message{Subject: "x"}); err == nil {
		t.Fatal("expected validation error without recipient")
	}
}

func TestNewBrevoSenderRequiresConfig(t *testing.T) {
	if _, err := NewBrevoSender(config.BrevoConfig{}); err == nil {
		t.Fatal("expected error without api key")
	}
}
