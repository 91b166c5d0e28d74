package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
)

func TestMetadataTable(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true},
		CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required"},
		CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied"},
		CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found"},
		CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true},
		CodeExpired:       {HTTPStatus: http.StatusGone, PublicMessage: "resource expired", DetailsAllowed: true},
		CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded"},
		CodeGateway:       {HTTPStatus: http.StatusBadGateway, PublicMessage: "payment provider error", Retryable: true},
		CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true},
	}
	for code, want := range cases {
		assert.Equal(t, want, MetadataFor(code), string(code))
	}
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("NOT_A_CODE"))
}

func TestWrapAndLookup(t *testing.T) {
	cause := stdErrors.New("card declined")
	err := Wrap(CodeGateway, cause, "create subscription")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "GATEWAY_ERROR: create subscription: card declined", err.Error())
	assert.True(t, IsCode(fmt.Errorf("outer: %w", err), CodeGateway))
	assert.Equal(t, CodeInternal, CodeOf(stdErrors.New("plain")))
	assert.Nil(t, As(nil))

	withDetails := New(CodeValidation, "bad input").WithDetails(map[string]string{"field": "email"})
	assert.Equal(t, map[string]string{"field": "email"}, withDetails.Details())
	assert.Equal(t, "bad input", withDetails.Message())

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Empty(t, nilErr.Error())
}

func TestDumpStripe(t *testing.T) {
	stripeErr := &stripe.Error{
		Type:           stripe.ErrorTypeCard,
		Code:           stripe.ErrorCodeCardDeclined,
		RequestID:      "req_123",
		HTTPStatusCode: http.StatusPaymentRequired,
		Msg:            "Your card was declined.",
	}
	dump := Dump(Wrap(CodeGateway, stripeErr, "create subscription"))

	assert.Equal(t, CodeGateway, dump.Code)
	assert.Len(t, dump.Chain, 2)
	assert.Nil(t, dump.Postgres)
	require.NotNil(t, dump.Stripe)
	assert.Equal(t, "req_123", dump.Stripe.RequestID)

	fields := dump.Fields()
	assert.Equal(t, "card_declined", fields["stripe_code"])
	assert.Equal(t, http.StatusPaymentRequired, fields["stripe_status"])
}

func TestDumpPostgres(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_memberships_one_current_paid", TableName: "memberships"}
	dump := Dump(Wrap(CodeConflict, fmt.Errorf("insert: %w", pgErr), "create membership"))

	require.NotNil(t, dump.Postgres)
	assert.Equal(t, "23505", dump.Postgres.Code)
	fields := dump.Fields()
	assert.Equal(t, "ux_memberships_one_current_paid", fields["pg_constraint"])
	assert.NotContains(t, fields, "pg_detail")
	assert.NotContains(t, fields, "stripe_code")

	assert.Empty(t, Dump(nil).Chain)
}
