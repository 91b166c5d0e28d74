package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v84"
)

// ErrorDump is what gets logged for a failed request. Clients never see it.
type ErrorDump struct {
	Message  string          `json:"message"`
	Code     Code            `json:"code,omitempty"`
	Chain    []string        `json:"chain,omitempty"`
	Postgres *PostgresDetail `json:"postgres,omitempty"`
	Stripe   *StripeDetail   `json:"stripe,omitempty"`
}

type PostgresDetail struct {
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

type StripeDetail struct {
	Type      string `json:"type,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Status    int    `json:"status,omitempty"`
}

// Dump walks err's chain and pulls out driver and gateway specifics.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{Message: err.Error(), Postgres: postgresDetail(err)}
	if typed := As(err); typed != nil {
		d.Code = typed.Code()
	}
	for link := err; link != nil; link = errors.Unwrap(link) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", link, link))
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		d.Stripe = &StripeDetail{
			Type:      string(se.Type),
			Code:      string(se.Code),
			RequestID: se.RequestID,
			Status:    se.HTTPStatusCode,
		}
	}
	return d
}

// pgx and lib/pq surface different error types for the same server error.
func postgresDetail(err error) *PostgresDetail {
	if pgErr := (*pgconn.PgError)(nil); errors.As(err, &pgErr) {
		return &PostgresDetail{Code: pgErr.Code, Constraint: pgErr.ConstraintName, Table: pgErr.TableName, Detail: pgErr.Detail}
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		return &PostgresDetail{Code: string(pqErr.Code), Constraint: pqErr.Constraint, Table: pqErr.Table, Detail: pqErr.Detail}
	}
	return nil
}

// Fields flattens the dump for the structured logger.
func (d ErrorDump) Fields() map[string]any {
	out := map[string]any{
		"error":       d.Message,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	put := func(key, value string) {
		if value != "" {
			out[key] = value
		}
	}
	if pg := d.Postgres; pg != nil {
		put("pg_code", pg.Code)
		put("pg_constraint", pg.Constraint)
		put("pg_table", pg.Table)
		put("pg_detail", pg.Detail)
	}
	if s := d.Stripe; s != nil {
		put("stripe_type", s.Type)
		put("stripe_code", s.Code)
		put("stripe_request_id", s.RequestID)
		if s.Status != 0 {
			out["stripe_status"] = s.Status
		}
	}
	return out
}
