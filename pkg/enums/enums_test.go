package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMembershipStatusGroups(t *testing.T) {
	for _, s := range []MembershipStatus{MembershipStatusActive, MembershipStatusPastDue, MembershipStatusUnpaid} {
		assert.True(t, s.IsCurrent(), s)
		assert.False(t, s.IsTerminal(), s)
	}
	for _, s := range []MembershipStatus{MembershipStatusCancelled, MembershipStatusExpired, MembershipStatusRefunded} {
		assert.False(t, s.IsCurrent(), s)
		assert.True(t, s.IsTerminal(), s)
	}
	assert.False(t, MembershipStatus("paused").IsValid())
	assert.False(t, MembershipStatus("paused").IsTerminal())
	assert.Len(t, CurrentMembershipStatuses, 3, "the full status list must not alias the current list")
}

func TestParseIsExact(t *testing.T) {
	reason, err := ParseRefundReason("requested_by_customer")
	require.NoError(t, err)
	assert.Equal(t, RefundReasonRequestedByCustomer, reason)

	_, err = ParseRefundReason("Duplicate")
	assert.EqualError(t, err, `invalid refund reason "Duplicate": must be one of duplicate, fraudulent, requested_by_customer`)

	interval, err := ParseBillingInterval("year")
	require.NoError(t, err)
	assert.Equal(t, BillingIntervalYear, interval)

	_, err = ParsePaymentStatus("")
	assert.Error(t, err)
	status, err := ParseMembershipStatus("past_due")
	require.NoError(t, err)
	assert.Equal(t, MembershipStatusPastDue, status)
}

func TestIsValid(t *testing.T) {
	assert.True(t, ScanStatusAlreadyUsed.IsValid())
	assert.False(t, ScanStatus("used").IsValid())
	assert.True(t, TransactionTypeOneTime.IsValid())
	assert.False(t, TransactionType("one_time").IsValid())
	assert.True(t, PaymentStatusDisputed.IsValid())
}
