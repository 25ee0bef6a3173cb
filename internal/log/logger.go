package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger for one binary. Every line carries the
// component (api, worker) so interleaved output from both deepsight
// processes stays attributable.
func New(environment, component string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("service", "deepsight").
		Str("component", component).
		Str("env", environment).
		Logger()

	if environment != "production" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	return logger
}
