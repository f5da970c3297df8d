package client

import "github.com/rs/zerolog"

// RequestLogger is the interface used by [Client] for logging calls, failures
// and retries. It has the same shape as resty's logger, so the default fetcher
// hands it straight to resty. Supply an implementation via [WithRequestLogger].
type RequestLogger interface {
	Errorf(format string, v ...any)
	Warnf(format string, v ...any)
	Debugf(format string, v ...any)
}

// NoopLogger is a [RequestLogger] that silently discards all log messages.
// It is the default logger used when no logger is provided to [New].
type NoopLogger struct{}

func (l *NoopLogger) Errorf(_ string, _ ...any) {}
func (l *NoopLogger) Warnf(_ string, _ ...any)  {}
func (l *NoopLogger) Debugf(_ string, _ ...any) {}

// ZerologLogger adapts a zerolog.Logger to [RequestLogger].
type ZerologLogger struct {
	log zerolog.Logger
}

var _ RequestLogger = (*ZerologLogger)(nil)

func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	l := log.With().Str("component", "crudy-client").Logger()
	return &ZerologLogger{log: l}
}

func (l *ZerologLogger) Errorf(format string, v ...any) { l.log.Error().Msgf(format, v...) }
func (l *ZerologLogger) Warnf(format string, v ...any)  { l.log.Warn().Msgf(format, v...) }
func (l *ZerologLogger) Debugf(format string, v ...any) { l.log.Debug().Msgf(format, v...) }
