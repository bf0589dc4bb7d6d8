package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizedEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"admin@transit.example.com", "a****@*******.*******.com"},
		{"a@b.co", "a@*.co"},
		{"no-at-sign", "[invalid-email]"},
		{"@example.com", "[invalid-email]"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizedEmail(tt.in), tt.in)
	}
}

func TestRedactedAttr(t *testing.T) {
	assert.Equal(t, "[REDACTED]", RedactedAttr("ip", "1.2.3.4", "production").Value.String())
	assert.Equal(t, "1.2.3.4", RedactedAttr("ip", "1.2.3.4", "development").Value.String())
}

func TestIsSensitiveQuery(t *testing.T) {
	assert.True(t, IsSensitiveQuery("token=abc"))
	assert.True(t, IsSensitiveQuery("Email=x@y.z"))
	assert.False(t, IsSensitiveQuery("vehicle=123&limit=10"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestAuditLogger_LogAuthAttempt(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAuthAttempt(context.Background(), AuditEvent{
		EventType:     EventAccountLocked,
		Email:         "driver@example.com",
		IPAddress:     "203.0.113.5",
		Success:       false,
		FailureReason: "too_many_failures",
		Metadata:      map[string]string{"minutes_remaining": "30"},
	})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "auth", record["audit_type"])
	assert.Equal(t, EventAccountLocked, record["event_type"])
	assert.Equal(t, "d*****@*******.com", record["email"])
	assert.Equal(t, "30", record["minutes_remaining"])
	assert.NotContains(t, buf.String(), "driver@example.com")
}

func TestAuditLogger_LogAccountAction(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.LogAccountAction(context.Background(), EventRoutesImported, "user-1", "", map[string]string{"created": "3"})

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "INFO", record["level"])
	assert.Equal(t, "user-1", record["user_id"])
	assert.Equal(t, "3", record["created"])
	_, hasIP := record["ip_address"]
	assert.False(t, hasIP)
}
