package extractor

import (
	"sync"

	"github.com/classroll/rollcall/internal/logger"
)

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the extractor package logger.
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("extractor")
	})
	return serviceLogger
}
