package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New builds the process logger.  Outside production it writes a human
// readable console format at debug level; production gets JSON at info.
// The result is also installed as the zerolog global logger so packages
// that log through zerolog/log share its settings.
func New(environment string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if environment != "production" && environment != "prod" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	l := zerolog.New(out).With().
		Timestamp().
		Str("env", environment).
		Logger()
	log.Logger = l
	return l
}
