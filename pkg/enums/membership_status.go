package enums

import "slices"

// MembershipStatus captures where a member's billing cycle stands.
type MembershipStatus string

const (
	MembershipStatusActive    MembershipStatus = "active"
	MembershipStatusPastDue   MembershipStatus = "past_due"
	MembershipStatusUnpaid    MembershipStatus = "unpaid"
	MembershipStatusCancelled MembershipStatus = "cancelled"
	MembershipStatusExpired   MembershipStatus = "expired"
	MembershipStatusRefunded  MembershipStatus = "refunded"
)

// CurrentMembershipStatuses still confer benefits. At most one paid and one
// free membership per user may sit in these statuses.
var CurrentMembershipStatuses = []MembershipStatus{
	MembershipStatusActive,
	MembershipStatusPastDue,
	MembershipStatusUnpaid,
}

var membershipStatuses = append(slices.Clone(CurrentMembershipStatuses),
	MembershipStatusCancelled, MembershipStatusExpired, MembershipStatusRefunded)

func (m MembershipStatus) String() string { return string(m) }

func (m MembershipStatus) IsValid() bool { return member(m, membershipStatuses) }

// IsCurrent reports whether a membership in this status is authoritative for benefits.
func (m MembershipStatus) IsCurrent() bool { return member(m, CurrentMembershipStatuses) }

// IsTerminal reports whether no further transition leaves this status.
func (m MembershipStatus) IsTerminal() bool { return m.IsValid() && !m.IsCurrent() }

func ParseMembershipStatus(value string) (MembershipStatus, error) {
	return parse("membership status", value, membershipStatuses)
}
