// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable rollcall reads.
const EnvPrefix = "ROLLCALL"

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "ROLLCALL_DEBUG", validateEnvBool},

		// Camera
		{"camera.device", "ROLLCALL_CAMERA_DEVICE", nil},
		{"camera.format", "ROLLCALL_CAMERA_FORMAT", validateEnvCameraFormat},
		{"camera.ffmpegpath", "ROLLCALL_CAMERA_FFMPEGPATH", nil},
		{"camera.readtimeout", "ROLLCALL_CAMERA_READTIMEOUT", validateEnvDuration},

		// Models
		{"biometric.modelpath", "ROLLCALL_BIOMETRIC_MODELPATH", nil},
		{"biometric.detectorpath", "ROLLCALL_BIOMETRIC_DETECTORPATH", nil},
		{"biometric.threads", "ROLLCALL_BIOMETRIC_THREADS", validateEnvNonNegativeInt},
		{"biometric.usexnnpack", "ROLLCALL_BIOMETRIC_USEXNNPACK", validateEnvBool},

		// Matching and auth
		{"match.threshold", "ROLLCALL_MATCH_THRESHOLD", validateEnvPositiveFloat},
		{"auth.maxattempts", "ROLLCALL_AUTH_MAXATTEMPTS", validateEnvPositiveInt},

		// Database
		{"output.sqlite.enabled", "ROLLCALL_SQLITE_ENABLED", validateEnvBool},
		{"output.sqlite.path", "ROLLCALL_SQLITE_PATH", nil},
		{"output.mysql.enabled", "ROLLCALL_MYSQL_ENABLED", validateEnvBool},
		{"output.mysql.host", "ROLLCALL_MYSQL_HOST", nil},
		{"output.mysql.port", "ROLLCALL_MYSQL_PORT", validateEnvPort},
		{"output.mysql.username", "ROLLCALL_MYSQL_USERNAME", nil},
		{"output.mysql.password", "ROLLCALL_MYSQL_PASSWORD", nil},
		{"output.mysql.database", "ROLLCALL_MYSQL_DATABASE", nil},

		// Integrations
		{"mqtt.enabled", "ROLLCALL_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "ROLLCALL_MQTT_BROKER", validateEnvBrokerURL},
		{"mqtt.username", "ROLLCALL_MQTT_USERNAME", nil},
		{"mqtt.password", "ROLLCALL_MQTT_PASSWORD", nil},
		{"telemetry.enabled", "ROLLCALL_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.listen", "ROLLCALL_TELEMETRY_LISTEN", validateEnvListenAddr},
		{"sentry.enabled", "ROLLCALL_SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "ROLLCALL_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue, ok := os.LookupEnv(binding.EnvVar); ok {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// configureEnvironmentVariables sets up environment variable support for Viper
func configureEnvironmentVariables() error {
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return bindEnvVars()
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvPositiveFloat(value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f <= 0 {
		return fmt.Errorf("must be greater than 0, got %g", f)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 1 {
		return fmt.Errorf("must be at least 1, got %d", n)
	}
	return nil
}

func validateEnvNonNegativeInt(value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("must be non-negative, got %d", n)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	return nil
}

func validateEnvCameraFormat(value string) error {
	switch value {
	case "v4l2", "dshow", "avfoundation":
		return nil
	}
	return fmt.Errorf("must be one of: v4l2, dshow, avfoundation")
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got '%s'", value)
	}
	return nil
}

func validateEnvBrokerURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid broker URL: %w", err)
	}
	switch u.Scheme {
	case "tcp", "ssl", "tls", "ws", "wss", "mqtt", "mqtts":
	default:
		return fmt.Errorf("unsupported broker scheme '%s'", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("broker URL has no host")
	}
	return nil
}

func validateEnvListenAddr(value string) error {
	if _, _, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("listen address must be host:port: %w", err)
	}
	return nil
}
