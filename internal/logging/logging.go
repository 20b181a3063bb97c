package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"taskmanager/internal/config"
)

// New builds the process logger for the given environment.
func New(env string, out io.Writer) (zerolog.Logger, error) {
	zerolog.TimestampFieldName = "timestamp"

	level := zerolog.InfoLevel
	w := out
	switch env {
	case config.EnvProd:
	case config.EnvDev:
		level = zerolog.DebugLevel
	case config.EnvLocal:
		level = zerolog.TraceLevel

		consoleWriter := zerolog.NewConsoleWriter()
		consoleWriter.TimeFormat = time.DateTime
		consoleWriter.Out = out
		w = consoleWriter
	default:
		return zerolog.Nop(), fmt.Errorf("unknown env: %s", env)
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Caller().
		Int("pid", os.Getpid()).
		Logger(), nil
}
