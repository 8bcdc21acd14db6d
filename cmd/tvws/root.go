package main

import (
	"fmt"
	"log"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	tvstream "github.com/tvstream/tvstream-go"
	"github.com/tvstream/tvstream-go/internal/config"
	"github.com/tvstream/tvstream-go/middleware"
)

// debugFrames turns on wire-level frame tracing on stderr.
var debugFrames bool

var rootCmd = &cobra.Command{
	Use:           "tvws",
	Short:         "TradingView WebSocket market data client",
	Long:          "Stream live ticks and candles from TradingView's private WebSocket feed, or fetch recent candle history.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debugFrames, "debug", "d", false, "Log raw protocol frames to stderr")
}

// usageError marks an error caused by bad invocation rather than a runtime
// failure; the process exits 2 instead of 1.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// newLogger builds the CLI logger writing human-readable lines to stderr.
// The debug flag forces debug level regardless of TVWS_LOG_LEVEL.
func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	if debugFrames {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

// streamOptions maps the loaded configuration onto engine options. Auth
// discovery runs when the environment carries no explicit credentials.
func streamOptions(cfg config.Config, logger zerolog.Logger) []tvstream.Option {
	opts := []tvstream.Option{tvstream.WithLogger(logger)}

	if cfg.Endpoint != "" {
		opts = append(opts, tvstream.WithEndpoint(cfg.Endpoint))
	}
	if cfg.Origin != "" {
		opts = append(opts, tvstream.WithOrigin(cfg.Origin))
	}
	if cfg.InitialBars > 0 {
		opts = append(opts, tvstream.WithInitialBars(cfg.InitialBars))
	}
	if cfg.QueueCapacity > 0 {
		opts = append(opts, tvstream.WithQueueCapacity(cfg.QueueCapacity))
	}
	if cfg.AuthToken != "" || cfg.SessionID != "" {
		opts = append(opts,
			tvstream.WithToken(cfg.AuthToken),
			tvstream.WithSessionCookie(cfg.SessionID))
	} else {
		opts = append(opts, tvstream.WithDiscoveredAuth())
	}
	if debugFrames {
		frameLog := log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds)
		opts = append(opts, tvstream.WithMiddleware(middleware.Logging(frameLog)))
	}
	return opts
}
