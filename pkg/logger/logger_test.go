package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestContextFieldsReachEveryEntry(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Level: "debug", Output: &buf})

	ctx := logg.WithRequestID(context.Background(), "req-123")
	ctx = logg.WithEvent(ctx, "evt_1", "invoice.payment_failed")
	ctx = logg.WithFields(ctx, map[string]any{"attempt": 2})
	logg.Error(ctx, "stripe.event_failed", errors.New("boom"))

	entry := lastEntry(t, &buf)
	assert.Equal(t, "api", entry["service"])
	assert.Equal(t, "req-123", entry["request_id"])
	assert.Equal(t, "evt_1", entry["event_id"])
	assert.Equal(t, "invoice.payment_failed", entry["event_type"])
	assert.EqualValues(t, 2, entry["attempt"])
	assert.Equal(t, "boom", entry["error"])
	assert.NotEmpty(t, entry["stack"])
}

func TestDerivedContextDoesNotLeakIntoParent(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "api", Output: &buf})
	parent := logg.WithUserID(context.Background(), "u-1")
	_ = logg.WithField(parent, "job", "qr-cleanup")

	logg.Info(parent, "parent")
	entry := lastEntry(t, &buf)
	assert.Equal(t, "u-1", entry["user_id"])
	assert.NotContains(t, entry, "job")
}

func TestWarnStackToggle(t *testing.T) {
	var buf bytes.Buffer
	New(Options{ServiceName: "t", Output: &buf}).Warn(context.Background(), "quiet")
	assert.NotContains(t, lastEntry(t, &buf), "stack")

	buf.Reset()
	New(Options{ServiceName: "t", Output: &buf, WarnStack: true}).Warn(context.Background(), "loud")
	assert.Contains(t, lastEntry(t, &buf), "stack")
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	New(Options{ServiceName: "t", Output: &buf}).Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}

func TestLevelFromOptions(t *testing.T) {
	cases := map[string]struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		"unset":   {level: "", wantInfo: true},
		"unknown": {level: "loud", wantInfo: true},
		"debug":   {level: "debug", wantDebug: true, wantInfo: true},
		"warn":    {level: "WARN"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			logg := New(Options{ServiceName: "t", Level: tc.level, Output: &buf})
			logg.Debug(context.Background(), "debug line")
			if got := buf.Len() > 0; got != tc.wantDebug {
				t.Fatalf("debug written = %v, want %v", got, tc.wantDebug)
			}
			buf.Reset()
			logg.Info(context.Background(), "info line")
			if got := buf.Len() > 0; got != tc.wantInfo {
				t.Fatalf("info written = %v, want %v", got, tc.wantInfo)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warn"))
}

func TestNopIsSilent(t *testing.T) {
	logg := Nop()
	ctx := logg.WithField(context.Background(), "k", "v")
	logg.Error(ctx, "nothing", errors.New("x"))
}
