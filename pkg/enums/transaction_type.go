package enums

// TransactionType classifies a payment ledger row.
type TransactionType string

const (
	TransactionTypeOneTime      TransactionType = "one-time"
	TransactionTypeSubscription TransactionType = "subscription"
	TransactionTypeRefund       TransactionType = "refund"
	TransactionTypeDispute      TransactionType = "dispute"
)

var transactionTypes = []TransactionType{
	TransactionTypeOneTime, TransactionTypeSubscription, TransactionTypeRefund, TransactionTypeDispute,
}

func (t TransactionType) String() string { return string(t) }

func (t TransactionType) IsValid() bool { return member(t, transactionTypes) }
