package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
)

var Log zerolog.Logger

func init() {
	Log = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// Init configures the package logger. Outside production the output is a
// human readable console stream, in production it is JSON on stdout.
func Init(env string, debug bool) {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if env != "production" {
		Log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).With().Timestamp().Logger()
	} else {
		Log = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
}

// withFields attaches a series of key/value pairs to an event.
// Keys that are not strings are skipped.
func withFields(ctx *zerolog.Event, keyValues []interface{}) *zerolog.Event {
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, keyValues[i+1])
	}
	return ctx
}

// Debug logs a debug message.
func Debug(msg string, keyValues ...interface{}) {
	withFields(Log.Debug(), keyValues).Msg(msg)
}

// Info logs an info message.
func Info(msg string, keyValues ...interface{}) {
	// no one wants to check for errors on logging functions,
	// so instead of erroring on bad input we log the raw args
	// and users can fix bugs when they see the output looks wrong
	if len(keyValues)%2 != 0 {
		Log.Warn().Caller().Interface("Unknown Key", keyValues).Msgf("%s ([Wrong logger.Info usage] Provided args to logger.Info must be a series of key/value pairs)", msg)
		return
	}

	withFields(Log.Info(), keyValues).Msg(msg)
}

// Infof logs a formatted info message.
func Infof(format string, v ...interface{}) {
	Log.Info().Msgf(format, v...)
}

// Warn logs a warning message.
func Warn(msg string, keyValues ...interface{}) {
	withFields(Log.Warn(), keyValues).Msg(msg)
}

// Error logs an error message.
func Error(msg string, err error, keyValues ...interface{}) {
	if len(keyValues)%2 != 0 {
		panic("keyValues must be a list of key/value pairs")
	}

	withFields(Log.Error(), keyValues).Caller().Stack().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits the program.
func Fatal(msg string, err error) {
	Log.Fatal().Err(err).Msg(msg)
}
