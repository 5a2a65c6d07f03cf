package session

import (
	"sync"

	"github.com/classroll/rollcall/internal/logger"
)

var (
	pkgLogger  logger.Logger
	loggerOnce sync.Once
)

// GetLogger returns the session package logger.
func GetLogger() logger.Logger {
	loggerOnce.Do(func() {
		pkgLogger = logger.Global().Module("session")
	})
	return pkgLogger
}
