package shellinabox

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// retryLogger routes go-retryablehttp messages to the global zerolog
// logger. Failed attempts are logged at debug: the final failure reaches
// the caller as an error and the terminal may be in raw mode.
type retryLogger struct{}

func (retryLogger) Error(msg string, keysAndValues ...interface{}) {
	event(log.Debug(), keysAndValues).Msg(msg)
}

func (retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	event(log.Debug(), keysAndValues).Msg(msg)
}

func (retryLogger) Info(msg string, keysAndValues ...interface{}) {
	event(log.Debug(), keysAndValues).Msg(msg)
}

func (retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	event(log.Trace(), keysAndValues).Msg(msg)
}

func event(e *zerolog.Event, keysAndValues []interface{}) *zerolog.Event {
	return e.Str("component", "shellinabox").Fields(keysAndValues)
}
