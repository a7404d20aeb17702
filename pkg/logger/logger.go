package logx

import (
	"io"
	"os"

	"github.com/Chative-core-poc-v1/assistant-core/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
	// Level overrides the environment default (debug, info, warn, error).
	Level string
	// Writer defaults to stderr.
	Writer io.Writer
}

func safe(opts ...LoggerOpts) *LoggerOpts {
	if len(opts) == 0 {
		return DefaultLoggerOpts
	}
	return &opts[0]
}

func Init(opts ...LoggerOpts) {
	o := safe(opts...)

	w := o.Writer
	if w == nil {
		w = os.Stderr
	}

	level, err := zerolog.ParseLevel(o.Level)
	if err != nil || o.Level == "" {
		level, _ = zerolog.ParseLevel(o.Environment.DefaultLogLevel())
	}

	if o.Environment.IsProduction() {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Caller().Logger()
	}
	log.Logger = log.Logger.Level(level)
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}
