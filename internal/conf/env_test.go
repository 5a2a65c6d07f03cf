package conf

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		validate func(string) error
		value    string
		wantErr  bool
	}{
		{"bool true", validateEnvBool, "true", false},
		{"bool padded", validateEnvBool, " 1 ", false},
		{"bool yes", validateEnvBool, "yes", true},
		{"threshold", validateEnvPositiveFloat, "0.6", false},
		{"threshold zero", validateEnvPositiveFloat, "0", true},
		{"threshold text", validateEnvPositiveFloat, "low", true},
		{"attempts", validateEnvPositiveInt, "3", false},
		{"attempts zero", validateEnvPositiveInt, "0", true},
		{"threads zero", validateEnvNonNegativeInt, "0", false},
		{"threads negative", validateEnvNonNegativeInt, "-2", true},
		{"duration", validateEnvDuration, "750ms", false},
		{"duration bare", validateEnvDuration, "5", true},
		{"format v4l2", validateEnvCameraFormat, "v4l2", false},
		{"format unknown", validateEnvCameraFormat, "x11grab", true},
		{"port", validateEnvPort, "3306", false},
		{"port range", validateEnvPort, "70000", true},
		{"broker tcp", validateEnvBrokerURL, "tcp://mqtt.local:1883", false},
		{"broker scheme", validateEnvBrokerURL, "http://mqtt.local", true},
		{"broker no host", validateEnvBrokerURL, "tcp://", true},
		{"listen", validateEnvListenAddr, ":8090", false},
		{"listen no port", validateEnvListenAddr, "localhost", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.validate(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBindEnvVarsReportsInvalidValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ROLLCALL_AUTH_MAXATTEMPTS", "zero")

	err := configureEnvironmentVariables()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ROLLCALL_AUTH_MAXATTEMPTS")
}

func TestBindEnvVarsAcceptsValidValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("ROLLCALL_MQTT_BROKER", "tcp://broker:1883")

	require.NoError(t, configureEnvironmentVariables())
	assert.Equal(t, "tcp://broker:1883", viper.GetString("mqtt.broker"))
}
