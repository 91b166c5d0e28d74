package payments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Ledger records gateway money movements and answers per-user history queries.
type Ledger interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error)
	StatsByUser(ctx context.Context, userID uuid.UUID) (*Stats, error)
	UserForCharge(ctx context.Context, chargeRef string) (uuid.UUID, error)
}

// RecordInput captures one ledger row. Refund amounts are stored negated.
type RecordInput struct {
	UserID                  uuid.UUID
	Amount                  decimal.Decimal
	Date                    time.Time
	Description             string
	PaymentMethod           string
	Status                  enums.PaymentStatus
	TransactionType         enums.TransactionType
	ExternalChargeRef       string
	ExternalInvoiceRef      string
	ExternalSubscriptionRef string
}

// Stats summarises a user's ledger.
type Stats struct {
	TotalPayments  int64           `json:"total_payments"`
	TotalCollected decimal.Decimal `json:"total_collected"`
	TotalRefunded  decimal.Decimal `json:"total_refunded"`
	ByStatus       []StatusTotal   `json:"by_status"`
}

type service struct {
	repo Repository
}

// NewService wires a payment ledger with the provided repository.
func NewService(repo Repository) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends a ledger row inside tx (or standalone when tx is nil). A replayed
// gateway event maps onto an existing row and reports false without error.
func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (bool, error) {
	if input.UserID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.Status.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment status %q", input.Status))
	}
	if !input.TransactionType.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction type %q", input.TransactionType))
	}

	amount := input.Amount
	if input.Status == enums.PaymentStatusRefunded && amount.IsPositive() {
		amount = amount.Neg()
	}
	date := input.Date
	if date.IsZero() {
		date = time.Now()
	}
	method := strings.TrimSpace(input.PaymentMethod)
	if method == "" {
		method = "card"
	}

	row := &models.Payment{
		UserID:                  input.UserID,
		Amount:                  amount,
		Date:                    date.UTC(),
		Description:             strings.TrimSpace(input.Description),
		PaymentMethod:           method,
		Status:                  input.Status,
		TransactionType:         input.TransactionType,
		ExternalChargeRef:       optional(input.ExternalChargeRef),
		ExternalInvoiceRef:      optional(input.ExternalInvoiceRef),
		ExternalSubscriptionRef: optional(input.ExternalSubscriptionRef),
	}

	inserted, err := s.repo.WithTx(tx).Insert(ctx, row)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
	}
	return inserted, nil
}

func (s *service) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.Payment, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	rows, err := s.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payments")
	}
	return rows, nil
}

func (s *service) StatsByUser(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	totals, err := s.repo.StatsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "payment stats")
	}

	stats := &Stats{
		TotalCollected: decimal.Zero,
		TotalRefunded:  decimal.Zero,
		ByStatus:       totals,
	}
	for _, row := range totals {
		stats.TotalPayments += row.Count
		switch row.Status {
		case enums.PaymentStatusCompleted:
			stats.TotalCollected = stats.TotalCollected.Add(row.Total)
		case enums.PaymentStatusRefunded:
			stats.TotalRefunded = stats.TotalRefunded.Add(row.Total.Abs())
		}
	}
	return stats, nil
}

// UserForCharge resolves the owner of a previously recorded charge. It returns
// uuid.Nil when the charge has not been seen.
func (s *service) UserForCharge(ctx context.Context, chargeRef string) (uuid.UUID, error) {
	chargeRef = strings.TrimSpace(chargeRef)
	if chargeRef == "" {
		return uuid.Nil, nil
	}
	userID, err := s.repo.FindUserByChargeRef(ctx, chargeRef)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup charge owner")
	}
	return userID, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
