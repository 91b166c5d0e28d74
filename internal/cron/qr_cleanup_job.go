package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ummati-backend/pkg/logger"
)

type QRCleanupJobParams struct {
	Logger  *logger.Logger
	Cleaner qrCodeCleaner
}

type qrCodeCleaner interface {
	CleanupExpiredCodes(ctx context.Context) (int64, error)
}

// NewQRCleanupJob deactivates QR codes whose expiry has passed.
func NewQRCleanupJob(params QRCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Cleaner == nil {
		return nil, fmt.Errorf("qr code service required")
	}
	return &qrCleanupJob{logg: params.Logger, cleaner: params.Cleaner}, nil
}

type qrCleanupJob struct {
	logg    *logger.Logger
	cleaner qrCodeCleaner
}

func (j *qrCleanupJob) Name() string { return "qr-code-cleanup" }

func (j *qrCleanupJob) Run(ctx context.Context) error {
	n, err := j.cleaner.CleanupExpiredCodes(ctx)
	if err != nil {
		return fmt.Errorf("qr cleanup: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "codes_deactivated", n), "qr code cleanup complete")
	return nil
}
