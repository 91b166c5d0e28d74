package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/ummati-backend/pkg/errors"
	"github.com/angelmondragon/ummati-backend/pkg/logger"
	"github.com/angelmondragon/ummati-backend/pkg/types"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) types.ErrorBody {
	t.Helper()
	var envelope types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope.Error
}

func TestWriteSuccessWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, map[string]string{"name": "Premium"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"name":"Premium"}}`, rec.Body.String())
}

func TestWriteErrorRendering(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		wantDetails bool
	}{
		{
			name:        "validation keeps message and details",
			err:         pkgerrors.New(pkgerrors.CodeValidation, "store_name is required").WithDetails(map[string]string{"field": "store_name"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "store_name is required",
			wantDetails: true,
		},
		{
			name:    "expired code is a 410",
			err:     pkgerrors.New(pkgerrors.CodeExpired, "QR code has expired"),
			status:  http.StatusGone,
			code:    pkgerrors.CodeExpired,
			message: "QR code has expired",
		},
		{
			name:    "wrapped typed error keeps its code",
			err:     fmt.Errorf("handler: %w", pkgerrors.New(pkgerrors.CodeNotFound, "tier not found")),
			status:  http.StatusNotFound,
			code:    pkgerrors.CodeNotFound,
			message: "tier not found",
		},
		{
			name:    "untyped errors are internal and hidden",
			err:     errors.New("pq: connection reset"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		{
			name:    "gateway message is not exposed",
			err:     pkgerrors.New(pkgerrors.CodeGateway, "stripe: card_declined req_123"),
			status:  http.StatusBadGateway,
			code:    pkgerrors.CodeGateway,
			message: "payment provider error",
		},
		{
			name:    "unauthorized details are dropped",
			err:     pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid token").WithDetails("secret"),
			status:  http.StatusUnauthorized,
			code:    pkgerrors.CodeUnauthorized,
			message: "invalid token",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(context.Background(), nil, rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, string(tc.code), body.Code)
			assert.Equal(t, tc.message, body.Message)
			assert.Equal(t, tc.wantDetails, body.Details != nil)
		})
	}
}

func TestWriteErrorDependencySetsRetryAfter(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeDependency, "redis down"))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, dependencyRetryAfter, rec.Header().Get("Retry-After"))
	assert.NotEqual(t, "redis down", decodeError(t, rec).Message)

	rec = httptest.NewRecorder()
	rec.Header().Set("Retry-After", "30")
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeDependency, "redis down"))
	assert.Equal(t, "30", rec.Header().Get("Retry-After"), "caller supplied value wins")
}

func TestWriteErrorLogsChainAndStep(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	err := pkgerrors.Wrap(pkgerrors.CodeInternal, errors.New("disk full"), "insert payment").
		WithDetails(map[string]any{"step": "record_payment"})

	WriteError(context.Background(), logg, httptest.NewRecorder(), err)

	out := buf.String()
	assert.True(t, strings.Contains(out, `"step":"record_payment"`), out)
	assert.True(t, strings.Contains(out, "disk full"), out)
	assert.True(t, strings.Contains(out, `"error_code":"INTERNAL_ERROR"`), out)
}
