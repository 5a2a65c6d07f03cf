package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSettings(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"zero threshold", func(s *Settings) { s.Match.Threshold = 0 }, "threshold must be greater than 0"},
		{"negative teacher threshold", func(s *Settings) { s.Match.TeacherThreshold = -1 }, "teacherthreshold"},
		{"no attempts", func(s *Settings) { s.Auth.MaxAttempts = 0 }, "maxattempts must be at least 1"},
		{"no round images", func(s *Settings) { s.Capture.RoundImages = 0 }, "roundimages must be at least 1"},
		{"no instructions", func(s *Settings) { s.Capture.Instructions = nil }, "instructions must not be empty"},
		{"two databases", func(s *Settings) { s.Output.MySQL.Enabled = true }, "only one of sqlite and mysql"},
		{"no database", func(s *Settings) { s.Output.SQLite.Enabled = false }, "one of sqlite or mysql must be enabled"},
		{"mqtt without broker", func(s *Settings) {
			s.MQTT.Enabled = true
			s.MQTT.Broker = ""
		}, "broker is required"},
		{"bad telemetry listen", func(s *Settings) {
			s.Telemetry.Enabled = true
			s.Telemetry.Listen = "8090"
		}, "listen address must be host:port"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "dsn is required"},
		{"bad camera format", func(s *Settings) { s.Camera.Format = "gstreamer" }, "format"},
		{"zero dimension", func(s *Settings) { s.Biometric.Dimension = 0 }, "dimension must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultSettings(t)
			tt.mutate(s)

			err := ValidateSettings(s)
			require.Error(t, err)

			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Error(), tt.wantErr)
		})
	}
}

func TestValidateSettingsCollectsAllSections(t *testing.T) {
	s := defaultSettings(t)
	s.Match.Threshold = 0
	s.Auth.MaxAttempts = 0

	err := ValidateSettings(s)
	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Errors, 2)
}
