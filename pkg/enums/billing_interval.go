package enums

// BillingInterval is the renewal cadence of a membership tier.
type BillingInterval string

const (
	BillingIntervalMonth BillingInterval = "month"
	BillingIntervalYear  BillingInterval = "year"
)

var billingIntervals = []BillingInterval{BillingIntervalMonth, BillingIntervalYear}

func (b BillingInterval) String() string { return string(b) }

func (b BillingInterval) IsValid() bool { return member(b, billingIntervals) }

func ParseBillingInterval(value string) (BillingInterval, error) {
	return parse("billing interval", value, billingIntervals)
}
