package capture

import (
	"sync"

	"github.com/classroll/rollcall/internal/logger"
)

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the capture package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("capture")
	})
	return pkgLogger
}
