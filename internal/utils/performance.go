package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// OperationTimer provides a defer-friendly way to measure operation duration.
// Runs longer than slowAfter are logged at Warn, everything else at Debug.
//
// Usage:
//
//	defer utils.OperationTimer("train_bundle", 30*time.Second, log)()
func OperationTimer(operation string, slowAfter time.Duration, log zerolog.Logger) func() time.Duration {
	start := time.Now()

	return func() time.Duration {
		duration := time.Since(start)

		event := log.Debug()
		msg := "Operation completed"
		if slowAfter > 0 && duration > slowAfter {
			event = log.Warn()
			msg = "Slow operation detected"
		}
		event.
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg(msg)

		return duration
	}
}
