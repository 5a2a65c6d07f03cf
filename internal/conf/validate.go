// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) error{
		validateCameraSettings,
		validateBiometricSettings,
		validateCaptureSettings,
		validateMatchSettings,
		validateAuthSettings,
		validateOutputSettings,
		validateMQTTSettings,
		validateTelemetrySettings,
		validateSentrySettings,
	}

	for _, validate := range validators {
		if err := validate(settings); err != nil {
			ve.Errors = append(ve.Errors, err.Error())
		}
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// joinErrs folds a section's problems into one error.
func joinErrs(section string, errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s settings errors: %s", section, strings.Join(errs, ", "))
}

func validateCameraSettings(s *Settings) error {
	var errs []string

	if s.Camera.Device == "" {
		errs = append(errs, "device must not be empty")
	}
	if err := validateEnvCameraFormat(s.Camera.Format); err != nil {
		errs = append(errs, fmt.Sprintf("format: %v", err))
	}
	if s.Camera.Width <= 0 || s.Camera.Height <= 0 {
		errs = append(errs, fmt.Sprintf("resolution must be positive, got %dx%d", s.Camera.Width, s.Camera.Height))
	}
	if s.Camera.ReadTimeout <= 0 {
		errs = append(errs, "readtimeout must be positive")
	}

	return joinErrs("camera", errs)
}

func validateBiometricSettings(s *Settings) error {
	var errs []string

	if s.Biometric.ModelPath == "" {
		errs = append(errs, "modelpath must not be empty")
	}
	if s.Biometric.DetectorPath != "" && (s.Biometric.DetectorThreshold <= 0 || s.Biometric.DetectorThreshold > 1) {
		errs = append(errs, fmt.Sprintf("detectorthreshold must be in (0, 1], got %g", s.Biometric.DetectorThreshold))
	}
	if s.Biometric.Threads < 0 {
		errs = append(errs, fmt.Sprintf("threads must be non-negative, got %d", s.Biometric.Threads))
	}
	if s.Biometric.InputSize <= 0 {
		errs = append(errs, fmt.Sprintf("inputsize must be positive, got %d", s.Biometric.InputSize))
	}
	if s.Biometric.Dimension <= 0 {
		errs = append(errs, fmt.Sprintf("dimension must be positive, got %d", s.Biometric.Dimension))
	}

	return joinErrs("biometric", errs)
}

func validateCaptureSettings(s *Settings) error {
	var errs []string

	counts := map[string]int{
		"registrationimages": s.Capture.RegistrationImages,
		"authimages":         s.Capture.AuthImages,
		"roundimages":        s.Capture.RoundImages,
	}
	for _, key := range []string{"registrationimages", "authimages", "roundimages"} {
		if counts[key] < 1 {
			errs = append(errs, fmt.Sprintf("%s must be at least 1, got %d", key, counts[key]))
		}
	}
	if len(s.Capture.Instructions) == 0 {
		errs = append(errs, "instructions must not be empty")
	}

	return joinErrs("capture", errs)
}

func validateMatchSettings(s *Settings) error {
	var errs []string

	if s.Match.Threshold <= 0 {
		errs = append(errs, fmt.Sprintf("threshold must be greater than 0, got %g", s.Match.Threshold))
	}
	if s.Match.TeacherThreshold < 0 {
		errs = append(errs, fmt.Sprintf("teacherthreshold must not be negative, got %g", s.Match.TeacherThreshold))
	}
	if s.Match.StudentThreshold < 0 {
		errs = append(errs, fmt.Sprintf("studentthreshold must not be negative, got %g", s.Match.StudentThreshold))
	}

	return joinErrs("match", errs)
}

func validateAuthSettings(s *Settings) error {
	if s.Auth.MaxAttempts < 1 {
		return fmt.Errorf("auth settings errors: maxattempts must be at least 1, got %d", s.Auth.MaxAttempts)
	}
	return nil
}

func validateOutputSettings(s *Settings) error {
	var errs []string

	switch {
	case s.Output.SQLite.Enabled && s.Output.MySQL.Enabled:
		errs = append(errs, "only one of sqlite and mysql can be enabled")
	case !s.Output.SQLite.Enabled && !s.Output.MySQL.Enabled:
		errs = append(errs, "one of sqlite or mysql must be enabled")
	}

	if s.Output.SQLite.Enabled && s.Output.SQLite.Path == "" {
		errs = append(errs, "sqlite path must not be empty")
	}
	if s.Output.MySQL.Enabled {
		if s.Output.MySQL.Host == "" || s.Output.MySQL.Database == "" {
			errs = append(errs, "mysql host and database are required")
		}
		if err := validateEnvPort(s.Output.MySQL.Port); err != nil {
			errs = append(errs, fmt.Sprintf("mysql %v", err))
		}
	}

	return joinErrs("output", errs)
}

func validateMQTTSettings(s *Settings) error {
	if !s.MQTT.Enabled {
		return nil
	}

	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "broker is required when mqtt is enabled")
	} else if err := validateEnvBrokerURL(s.MQTT.Broker); err != nil {
		errs = append(errs, err.Error())
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "topic is required when mqtt is enabled")
	}

	return joinErrs("mqtt", errs)
}

func validateTelemetrySettings(s *Settings) error {
	if !s.Telemetry.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Telemetry.Listen); err != nil {
		return fmt.Errorf("telemetry settings errors: listen address must be host:port, got '%s'", s.Telemetry.Listen)
	}
	return nil
}

func validateSentrySettings(s *Settings) error {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return fmt.Errorf("sentry settings errors: dsn is required when sentry is enabled")
	}
	return nil
}
