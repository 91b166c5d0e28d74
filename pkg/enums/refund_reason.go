package enums

// RefundReason mirrors the reasons the billing gateway accepts on a refund.
type RefundReason string

const (
	RefundReasonDuplicate           RefundReason = "duplicate"
	RefundReasonFraudulent          RefundReason = "fraudulent"
	RefundReasonRequestedByCustomer RefundReason = "requested_by_customer"
)

var refundReasons = []RefundReason{RefundReasonDuplicate, RefundReasonFraudulent, RefundReasonRequestedByCustomer}

func (r RefundReason) String() string { return string(r) }

func (r RefundReason) IsValid() bool { return member(r, refundReasons) }

func ParseRefundReason(value string) (RefundReason, error) {
	return parse("refund reason", value, refundReasons)
}
