package match

import (
	"sync"

	"github.com/classroll/rollcall/internal/logger"
)

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the match package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("match")
	})
	return pkgLogger
}
