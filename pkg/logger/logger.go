// Package logger bridges slog to libraries that still expect a *log.Logger.
package logger

import (
	"log"
	"log/slog"
)

// New returns a stdlib logger whose lines are emitted through l at level,
// tagged with the component name.
func New(l *slog.Logger, component string, level slog.Level) *log.Logger {
	if l == nil {
		l = slog.Default()
	}
	return slog.NewLogLogger(l.With("component", component).Handler(), level)
}
