package qrcodes

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/angelmondragon/ummati-backend/pkg/db/models"
	"github.com/angelmondragon/ummati-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
	"github.com/angelmondragon/ummati-backend/pkg/metrics"
	"github.com/angelmondragon/ummati-backend/pkg/types"
)

const (
	tokenBytes       = 32
	imageSize        = 256
	defaultScanLimit = 50
	maxScanLimit     = 200
	maxStoreNameLen  = 200
)

// Service issues and redeems single-use member verification codes.
type Service interface {
	Generate(ctx context.Context, userID uuid.UUID) (*GeneratedCode, error)
	Verify(ctx context.Context, code string) (*VerifyResult, error)
	RecordScan(ctx context.Context, input ScanInput) (*ScanResult, error)
	CleanupExpiredCodes(ctx context.Context) (int64, error)
	ScanHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.QRScan, error)
}

// UserLookup loads code owners.
type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// MembershipLookup resolves a user's current membership joined with its tier.
type MembershipLookup interface {
	MembershipStatus(ctx context.Context, userID uuid.UUID) (*models.Membership, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Repo              Repository
	Users             UserLookup
	Memberships       MembershipLookup
	TransactionRunner txRunner
	FrontendURL       string
	TTL               time.Duration
	Metrics           *metrics.QRMetrics
	Logger            *logger.Logger
	Clock             func() time.Time
}

type service struct {
	repo        Repository
	users       UserLookup
	memberships MembershipLookup
	tx          txRunner
	frontendURL string
	ttl         time.Duration
	metrics     *metrics.QRMetrics
	logg        *logger.Logger
	clock       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("qr code repo required")
	case params.Users == nil:
		return nil, fmt.Errorf("user lookup required")
	case params.Memberships == nil:
		return nil, fmt.Errorf("membership lookup required")
	case params.TransactionRunner == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.TTL <= 0:
		return nil, fmt.Errorf("qr code ttl must be positive")
	}
	frontend := strings.TrimRight(strings.TrimSpace(params.FrontendURL), "/")
	if frontend == "" {
		return nil, fmt.Errorf("frontend url required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repo:        params.Repo,
		users:       params.Users,
		memberships: params.Memberships,
		tx:          params.TransactionRunner,
		frontendURL: frontend,
		ttl:         params.TTL,
		metrics:     params.Metrics,
		logg:        logg,
		clock:       clock,
	}, nil
}

func (s *service) now() time.Time {
	return s.clock().UTC()
}

// Generate creates a fresh code for the user. Outstanding codes are not revoked.
func (s *service) Generate(ctx context.Context, userID uuid.UUID) (*GeneratedCode, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	token, err := newToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate qr token")
	}
	displayURL := fmt.Sprintf("%s/qr/verify/%s", s.frontendURL, token)
	image, err := renderPNG(displayURL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render qr image")
	}

	row := &models.QRCode{
		UserID:     userID,
		Code:       token,
		DisplayURL: displayURL,
		ExpiresAt:  s.now().Add(s.ttl),
		IsActive:   true,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store qr code")
	}

	s.metrics.IncOutcome("generate", string(enums.ScanStatusSuccess))
	return &GeneratedCode{
		Code:        row.Code,
		DisplayURL:  row.DisplayURL,
		QRCodeImage: image,
		ExpiresAt:   row.ExpiresAt,
	}, nil
}

// Verify describes the code's owner without consuming the code. An expired
// code is deactivated on the way out.
func (s *service) Verify(ctx context.Context, code string) (*VerifyResult, error) {
	result, err := s.verify(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	s.metrics.IncOutcome("verify", string(result.Status))
	return result, nil
}

func (s *service) verify(ctx context.Context, code string) (*VerifyResult, error) {
	if code == "" {
		return invalid("Invalid QR code"), nil
	}
	row, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr code")
	}
	if row == nil || !row.IsActive {
		return invalid("Invalid QR code"), nil
	}
	if !s.now().Before(row.ExpiresAt) {
		if err := s.repo.Deactivate(ctx, row.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate expired qr code")
		}
		return &VerifyResult{Status: enums.ScanStatusExpired, Message: "QR code has expired"}, nil
	}

	user, err := s.users.FindByID(ctx, row.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return invalid("User not found"), nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr code owner")
	}

	view := &MemberView{
		Name:           user.DisplayName(),
		ProfilePicture: user.ProfilePicture,
	}
	membership, err := s.memberships.MembershipStatus(ctx, user.ID)
	switch {
	case err == nil && membership.Tier != nil:
		view.MembershipTier = &TierView{
			Name:     membership.Tier.Name,
			Price:    membership.Tier.Price,
			Benefits: append([]string{}, membership.Tier.Benefits...),
			Interval: membership.Tier.BillingInterval,
		}
		view.IsPaidMember = !membership.Tier.IsFree()
	case err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return nil, err
	}

	return &VerifyResult{
		Status:  enums.ScanStatusSuccess,
		Message: "QR code verified successfully",
		Member:  view,
	}, nil
}

// RecordScan redeems the code. Only the caller whose conditional update flips
// the code inactive writes the scan row and sees success.
func (s *service) RecordScan(ctx context.Context, input ScanInput) (*ScanResult, error) {
	storeName := strings.TrimSpace(input.StoreName)
	if storeName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store name is required")
	}
	if len(storeName) > maxStoreNameLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store name is too long")
	}
	scannedBy := strings.TrimSpace(input.ScannedBy)
	if scannedBy == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scanner identity is required")
	}
	if input.Location != nil {
		if err := input.Location.Validate(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid location")
		}
	}

	result, err := s.recordScan(ctx, strings.TrimSpace(input.Code), storeName, scannedBy, input.Location)
	if err != nil {
		return nil, err
	}
	s.metrics.IncOutcome("scan", string(result.Status))
	return result, nil
}

func (s *service) recordScan(ctx context.Context, code, storeName, scannedBy string, location *types.GeographyPoint) (*ScanResult, error) {
	if code == "" {
		return scanStatus(enums.ScanStatusInvalid), nil
	}
	row, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr code")
	}
	if row == nil {
		return scanStatus(enums.ScanStatusInvalid), nil
	}

	now := s.now()
	if !row.IsActive {
		used, err := s.repo.ScanExists(ctx, row.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load qr scan")
		}
		switch {
		case used:
			return scanStatus(enums.ScanStatusAlreadyUsed), nil
		case !now.Before(row.ExpiresAt):
			return scanStatus(enums.ScanStatusExpired), nil
		}
		return scanStatus(enums.ScanStatusInvalid), nil
	}
	if !now.Before(row.ExpiresAt) {
		if err := s.repo.Deactivate(ctx, row.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate expired qr code")
		}
		return scanStatus(enums.ScanStatusExpired), nil
	}

	var (
		won  bool
		scan *models.QRScan
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.Redeem(ctx, row.ID, now)
		if err != nil || !ok {
			return err
		}
		won = true
		scan = &models.QRScan{
			QRCodeID:  row.ID,
			UserID:    row.UserID,
			ScannedBy: scannedBy,
			StoreName: storeName,
			Location:  location,
			ScannedAt: now,
			Status:    enums.ScanStatusSuccess,
		}
		return repo.CreateScan(ctx, scan)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record qr scan")
	}
	if !won {
		s.logg.Info(s.logg.WithField(ctx, "qr_code_id", row.ID.String()), "qr.scan_lost_race")
		return scanStatus(enums.ScanStatusAlreadyUsed), nil
	}

	dto := ScanFromModel(*scan)
	res := scanStatus(enums.ScanStatusSuccess)
	res.Scan = &dto
	return res, nil
}

// CleanupExpiredCodes deactivates every active code past its expiry.
func (s *service) CleanupExpiredCodes(ctx context.Context) (int64, error) {
	n, err := s.repo.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate expired qr codes")
	}
	if n > 0 {
		s.logg.Info(s.logg.WithField(ctx, "deactivated", n), "qr.cleanup_expired")
	}
	return n, nil
}

func (s *service) ScanHistory(ctx context.Context, userID uuid.UUID, limit int) ([]models.QRScan, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	switch {
	case limit <= 0:
		limit = defaultScanLimit
	case limit > maxScanLimit:
		limit = maxScanLimit
	}
	rows, err := s.repo.ListScansByUser(ctx, userID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list qr scans")
	}
	return rows, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// renderPNG encodes content as a PNG data URL.
func renderPNG(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, imageSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func invalid(msg string) *VerifyResult {
	return &VerifyResult{Status: enums.ScanStatusInvalid, Message: msg}
}

var scanMessages = map[enums.ScanStatus]string{
	enums.ScanStatusSuccess:     "Scan recorded successfully",
	enums.ScanStatusExpired:     "QR code has expired",
	enums.ScanStatusInvalid:     "Invalid QR code",
	enums.ScanStatusAlreadyUsed: "QR code has already been used",
}

func scanStatus(status enums.ScanStatus) *ScanResult {
	return &ScanResult{Status: status, Message: scanMessages[status]}
}
