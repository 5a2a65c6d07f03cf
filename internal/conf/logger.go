package conf

import "github.com/classroll/rollcall/internal/logger"

// GetLogger returns the config package logger scoped to the config module.
// It is fetched from the global logger each time because configuration is
// loaded before the central logger is installed.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
