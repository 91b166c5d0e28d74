package enums

// PaymentStatus is the state recorded on a payment ledger row.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusDisputed  PaymentStatus = "disputed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
	PaymentStatusUpdated   PaymentStatus = "updated"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded,
	PaymentStatusDisputed, PaymentStatusCancelled, PaymentStatusUpdated,
}

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return member(p, paymentStatuses) }

func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parse("payment status", value, paymentStatuses)
}
