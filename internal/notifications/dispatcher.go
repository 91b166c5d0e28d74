package notifications

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

const sendTimeout = 10 * time.Second

// Notifier emits member-facing emails on membership transitions. Methods never
// fail; delivery problems are logged.
type Notifier interface {
	SubscriptionReceipt(ctx context.Context, to Recipient, tierName string, amount decimal.Decimal, periodEnd time.Time)
	PaymentSucceeded(ctx context.Context, to Recipient, amount decimal.Decimal, periodEnd time.Time)
	PaymentFailed(ctx context.Context, to Recipient, attempts int, graceEnd time.Time)
	Downgraded(ctx context.Context, to Recipient, freeTierName string)
	CancellationScheduled(ctx context.Context, to Recipient, periodEnd time.Time)
	RefundProcessed(ctx context.Context, to Recipient, amount decimal.Decimal, reason string)
}

// Dispatcher renders templates and hands them to a Sender.
type Dispatcher struct {
	sender Sender
	logg   *logger.Logger
}

// NewDispatcher wires a dispatcher. A nil sender falls back to logging.
func NewDispatcher(sender Sender, logg *logger.Logger) *Dispatcher {
	if logg == nil {
		logg = logger.Nop()
	}
	if sender == nil {
		sender = NewLogSender(logg)
	}
	return &Dispatcher{sender: sender, logg: logg}
}

func (d *Dispatcher) SubscriptionReceipt(ctx context.Context, to Recipient, tierName string, amount decimal.Decimal, periodEnd time.Time) {
	d.dispatch(ctx, "subscription_receipt", subscriptionReceipt(to, tierName, amount, periodEnd))
}

func (d *Dispatcher) PaymentSucceeded(ctx context.Context, to Recipient, amount decimal.Decimal, periodEnd time.Time) {
	d.dispatch(ctx, "payment_succeeded", paymentSucceeded(to, amount, periodEnd))
}

func (d *Dispatcher) PaymentFailed(ctx context.Context, to Recipient, attempts int, graceEnd time.Time) {
	d.dispatch(ctx, "payment_failed", paymentFailed(to, attempts, graceEnd))
}

func (d *Dispatcher) Downgraded(ctx context.Context, to Recipient, freeTierName string) {
	d.dispatch(ctx, "downgraded", downgraded(to, freeTierName))
}

func (d *Dispatcher) CancellationScheduled(ctx context.Context, to Recipient, periodEnd time.Time) {
	d.dispatch(ctx, "cancellation_scheduled", cancellationScheduled(to, periodEnd))
}

func (d *Dispatcher) RefundProcessed(ctx context.Context, to Recipient, amount decimal.Decimal, reason string) {
	d.dispatch(ctx, "refund_processed", refundProcessed(to, amount, reason))
}

// dispatch sends with its own deadline so a cancelled request still delivers.
func (d *Dispatcher) dispatch(ctx context.Context, kind string, msg Message) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sendTimeout)
	defer cancel()

	logCtx := d.logg.WithFields(ctx, map[string]any{
		"notification": kind,
		"to":           msg.To.Email,
	})
	if err := d.sender.Send(sendCtx, msg); err != nil {
		d.logg.Error(logCtx, "notification.send_failed", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send notification"))
		return
	}
	d.logg.Debug(logCtx, "notification.sent")
}

// Nop discards every notification.
type Nop struct{}

func (Nop) SubscriptionReceipt(context.Context, Recipient, string, decimal.Decimal, time.Time) {}
func (Nop) PaymentSucceeded(context.Context, Recipient, decimal.Decimal, time.Time)            {}
func (Nop) PaymentFailed(context.Context, Recipient, int, time.Time)                           {}
func (Nop) Downgraded(context.Context, Recipient, string)                                      {}
func (Nop) CancellationScheduled(context.Context, Recipient, time.Time)                        {}
func (Nop) RefundProcessed(context.Context, Recipient, decimal.Decimal, string)                {}
