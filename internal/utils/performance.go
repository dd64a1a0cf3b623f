package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// OperationTimer measures one pipeline stage and logs the duration when the
// returned function runs. Stages that take longer than ten seconds log at
// warn level; an in-process calculation has no business being that slow.
//
// Usage:
//
//	defer utils.OperationTimer("build_risk_model", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()

	return func() {
		duration := time.Since(start)

		event := log.Debug()
		if duration > 10*time.Second {
			event = log.Warn()
		}
		event.
			Str("operation", operation).
			Dur("duration_ms", duration).
			Msg("Operation completed")
	}
}
