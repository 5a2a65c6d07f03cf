// config.go: settings struct for rollcall and functions to load and save it.
package conf

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/classroll/rollcall/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// CameraSettings describes the ffmpeg capture device.
type CameraSettings struct {
	Device      string        // e.g. /dev/video0, "video=Integrated Camera" on dshow
	Format      string        // ffmpeg input format: v4l2, dshow or avfoundation
	Width       int           // capture width in pixels
	Height      int           // capture height in pixels
	FfmpegPath  string        // explicit ffmpeg binary, empty to search PATH
	ReadTimeout time.Duration // max wait for one frame before the device is considered gone
}

// BiometricSettings configures the TensorFlow Lite models.
type BiometricSettings struct {
	ModelPath         string  // embedding model
	DetectorPath      string  // optional face detector, empty disables detection
	DetectorThreshold float64 // minimum detector score for a face to count
	Threads           int     // interpreter threads, 0 picks from the CPU model
	UseXNNPACK        bool    // accelerate inference with the XNNPACK delegate
	InputSize         int     // square model input edge in pixels
	Dimension         int     // expected feature vector length
	Normalize         bool    // scale embeddings to unit length
}

// CaptureSettings controls how many images each workflow aggregates.
type CaptureSettings struct {
	RegistrationImages int      // images per registration
	AuthImages         int      // images per teacher authentication
	RoundImages        int      // images per student capture round
	Instructions       []string // cycled pose instructions shown to the subject
}

// MatchSettings holds distance thresholds. Role thresholds of 0 inherit Threshold.
type MatchSettings struct {
	Threshold        float64
	TeacherThreshold float64
	StudentThreshold float64
}

// AuthSettings controls teacher authentication.
type AuthSettings struct {
	MaxAttempts int // authentication attempts before giving up
}

// SQLiteSettings contains settings for the SQLite database.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains settings for the MySQL database.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings selects the attendance database.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// CacheSettings controls the in-memory candidate pool cache.
type CacheSettings struct {
	TTL     time.Duration
	Cleanup time.Duration
}

// MQTTSettings contains settings for publishing attendance events.
type MQTTSettings struct {
	Enabled  bool
	Broker   string // tcp://host:1883
	ClientID string
	Username string
	Password string
	Topic    string // events go to <topic>/sessions and <topic>/attendance
	Retain   bool
}

// TelemetrySettings controls the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool
	Listen  string // host:port
}

// SentrySettings controls error reporting.
type SentrySettings struct {
	Enabled bool
	DSN     string
	Debug   bool
}

// Settings contains all configuration options for rollcall.
type Settings struct {
	Debug bool

	Main struct {
		Name string // instance name shown in events
	}

	Logging   logger.LoggingConfig
	Camera    CameraSettings
	Biometric BiometricSettings
	Capture   CaptureSettings
	Match     MatchSettings
	Auth      AuthSettings
	Output    OutputSettings
	Cache     CacheSettings
	MQTT      MQTTSettings
	Telemetry TelemetrySettings
	Sentry    SentrySettings
}

// TeacherThreshold returns the effective match threshold for teachers.
func (s *Settings) TeacherThreshold() float64 {
	if s.Match.TeacherThreshold > 0 {
		return s.Match.TeacherThreshold
	}
	return s.Match.Threshold
}

// StudentThreshold returns the effective match threshold for students.
func (s *Settings) StudentThreshold() float64 {
	if s.Match.StudentThreshold > 0 {
		return s.Match.StudentThreshold
	}
	return s.Match.Threshold
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
// An explicit configFile skips the default search paths.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper sets defaults, environment bindings and reads the config file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := configureEnvironmentVariables(); err != nil {
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
		return nil
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig(configPaths[0])
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes the embedded config.yaml into dir and reads it back.
func createDefaultConfig(dir string) error {
	configPath := filepath.Join(dir, "config.yaml")

	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o600); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	viper.SetConfigFile(configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("error reading embedded config: %w", err)
	}
	return data, nil
}

// GetSettings returns the settings loaded by the last successful Load, or nil.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath through a temp file and rename.
// Comments and ordering of an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}
