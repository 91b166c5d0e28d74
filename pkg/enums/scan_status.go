package enums

// ScanStatus is the outcome of verifying or redeeming a QR code.
type ScanStatus string

const (
	ScanStatusSuccess     ScanStatus = "success"
	ScanStatusExpired     ScanStatus = "expired"
	ScanStatusInvalid     ScanStatus = "invalid"
	ScanStatusAlreadyUsed ScanStatus = "already_used"
)

var scanStatuses = []ScanStatus{ScanStatusSuccess, ScanStatusExpired, ScanStatusInvalid, ScanStatusAlreadyUsed}

func (s ScanStatus) String() string { return string(s) }

func (s ScanStatus) IsValid() bool { return member(s, scanStatuses) }
