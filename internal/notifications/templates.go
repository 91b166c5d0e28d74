package notifications

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "January 2, 2006"

func subscriptionReceipt(to Recipient, tierName string, amount decimal.Decimal, periodEnd time.Time) Message {
	return render(to, "Your membership is active",
		fmt.Sprintf("Thank you for joining %s.", tierName),
		fmt.Sprintf("Amount: $%s", amount.StringFixed(2)),
		fmt.Sprintf("Your current period runs until %s.", periodEnd.Format(dateLayout)),
	)
}

func paymentSucceeded(to Recipient, amount decimal.Decimal, periodEnd time.Time) Message {
	return render(to, "Payment received",
		fmt.Sprintf("We received your membership payment of $%s.", amount.StringFixed(2)),
		fmt.Sprintf("Your membership renews on %s.", periodEnd.Format(dateLayout)),
	)
}

func paymentFailed(to Recipient, attempts int, graceEnd time.Time) Message {
	lines := []string{
		fmt.Sprintf("We could not process your membership payment (attempt %d).", attempts),
	}
	if !graceEnd.IsZero() {
		lines = append(lines, fmt.Sprintf("Your benefits stay active until %s. Please update your payment method before then.", graceEnd.Format(dateLayout)))
	}
	return render(to, "Payment failed", lines...)
}

func downgraded(to Recipient, freeTierName string) Message {
	return render(to, "Your membership has changed",
		fmt.Sprintf("Your paid membership has ended and you are now on the %s tier.", freeTierName),
		"You can subscribe again at any time from your account page.",
	)
}

func cancellationScheduled(to Recipient, periodEnd time.Time) Message {
	return render(to, "Cancellation scheduled",
		"Your membership will not renew.",
		fmt.Sprintf("You keep your benefits until %s.", periodEnd.Format(dateLayout)),
	)
}

func refundProcessed(to Recipient, amount decimal.Decimal, reason string) Message {
	return render(to, "Refund processed",
		fmt.Sprintf("A refund of $%s has been issued to your original payment method.", amount.StringFixed(2)),
		fmt.Sprintf("Reason: %s", strings.ReplaceAll(reason, "_", " ")),
	)
}

func render(to Recipient, subject string, lines ...string) Message {
	greeting := "Hello,"
	if name := strings.TrimSpace(to.Name); name != "" {
		greeting = fmt.Sprintf("Hello %s,", name)
	}

	text := strings.Builder{}
	text.WriteString(greeting + "\n\n")
	htmlBody := strings.Builder{}
	htmlBody.WriteString("<p>" + html.EscapeString(greeting) + "</p>")
	for _, line := range lines {
		text.WriteString(line + "\n")
		htmlBody.WriteString("<p>" + html.EscapeString(line) + "</p>")
	}
	text.WriteString("\nThe Ummati team\n")
	htmlBody.WriteString("<p>The Ummati team</p>")

	return Message{
		To:      to,
		Subject: subject,
		Text:    text.String(),
		HTML:    htmlBody.String(),
	}
}
