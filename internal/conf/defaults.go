// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"

	"github.com/classroll/rollcall/internal/logger"
)

// DefaultInstructions are the pose prompts cycled during capture.
var DefaultInstructions = []string{"Center", "Tilt Left", "Tilt Right", "Tilt Up", "Tilt Down"}

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)
	viper.SetDefault("main.name", "rollcall")

	viper.SetDefault("logging.default_level", logger.DefaultLogLevel)
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", logger.DefaultConsoleEnabled)
	viper.SetDefault("logging.console.level", logger.DefaultLogLevel)
	viper.SetDefault("logging.file_output.enabled", logger.DefaultFileEnabled)
	viper.SetDefault("logging.file_output.path", logger.DefaultLogPath)
	viper.SetDefault("logging.file_output.level", logger.DefaultLogLevel)

	viper.SetDefault("camera.device", defaultCameraDevice())
	viper.SetDefault("camera.format", defaultCameraFormat())
	viper.SetDefault("camera.width", 640)
	viper.SetDefault("camera.height", 480)
	viper.SetDefault("camera.ffmpegpath", "")
	viper.SetDefault("camera.readtimeout", 5*time.Second)

	viper.SetDefault("biometric.modelpath", "models/face_embedding.tflite")
	viper.SetDefault("biometric.detectorpath", "")
	viper.SetDefault("biometric.detectorthreshold", 0.5)
	viper.SetDefault("biometric.threads", 0)
	viper.SetDefault("biometric.usexnnpack", false)
	viper.SetDefault("biometric.inputsize", 112)
	viper.SetDefault("biometric.dimension", 128)
	viper.SetDefault("biometric.normalize", true)

	viper.SetDefault("capture.registrationimages", 10)
	viper.SetDefault("capture.authimages", 1)
	viper.SetDefault("capture.roundimages", 5)
	viper.SetDefault("capture.instructions", DefaultInstructions)

	viper.SetDefault("match.threshold", 0.6)
	viper.SetDefault("match.teacherthreshold", 0.0)
	viper.SetDefault("match.studentthreshold", 0.0)

	viper.SetDefault("auth.maxattempts", 3)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "rollcall.db")
	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "rollcall")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.database", "rollcall")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")

	viper.SetDefault("cache.ttl", 10*time.Minute)
	viper.SetDefault("cache.cleanup", 15*time.Minute)

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientid", "rollcall")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.topic", "rollcall")
	viper.SetDefault("mqtt.retain", false)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.debug", false)
}
