// Package logging is the structured logger the zrpc core calls into.
// It wraps a single *zap.Logger behind a package-level API so call
// sites use zap.String/zap.Error/zap.Uint32 fields directly.
package logging

import (
	"sync"

	"go.uber.org/zap"
)

var (
	mu  sync.RWMutex
	log *zap.Logger
)

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		l = zap.NewNop()
	}
	log = l
}

// SetLogger replaces the package-level logger. Tests commonly install a
// zap.NewDevelopment() or an observer-backed logger here.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Debug(msg string, fields ...zap.Field) { current().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { current().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { current().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { current().Error(msg, fields...) }

// Critical logs at zap's Error level with an explicit "critical" marker
// field, for frame-decode failures and unmatched responses — zap has
// no distinct level above Error, so the marker field carries the
// severity distinction instead.
func Critical(msg string, fields ...zap.Field) {
	current().Error(msg, append(fields, zap.Bool("critical", true))...)
}
