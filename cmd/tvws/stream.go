package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	tvstream "github.com/tvstream/tvstream-go"
	"github.com/tvstream/tvstream-go/internal/config"
	"github.com/tvstream/tvstream-go/protocol"
)

var (
	streamSymbols  []string
	streamInterval string
	streamBars     int
)

// streamCmd streams decoded events as NDJSON on stdout, one object per line.
// Ctrl+C shuts the engine down cleanly.
// Usage: tvws stream -s BINANCE:BTCUSDT -s NASDAQ:AAPL -i 1m
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream live ticks and candles as NDJSON",
	Long:  "Stream live ticks and candles for one or more EXCHANGE:SYMBOL pairs. Events are written to stdout as newline-delimited JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(streamSymbols) == 0 {
			return usageErrorf("provide at least one symbol with --symbol")
		}
		if _, err := protocol.NormalizeInterval(streamInterval); err != nil {
			return usageErrorf("invalid interval %q", streamInterval)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		pairs := make([]tvstream.Pair, 0, len(streamSymbols))
		for _, sym := range streamSymbols {
			pairs = append(pairs, tvstream.Pair{Symbol: sym, Interval: streamInterval})
		}

		opts := streamOptions(cfg, logger)
		if streamBars > 0 {
			opts = append(opts, tvstream.WithInitialBars(streamBars))
		}

		streamer, err := tvstream.NewStreamer(pairs, opts...)
		if err != nil {
			return err
		}
		defer streamer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		events, cancel := streamer.SubscribeEvents()
		defer cancel()

		return writeNDJSON(ctx, events)
	},
}

// writeNDJSON serializes ticks and candles line by line until the context is
// cancelled or the event stream closes.
func writeNDJSON(ctx context.Context, events <-chan tvstream.Event) error {
	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "\nDisconnected.")
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.(type) {
			case tvstream.Tick, tvstream.Candle:
				if err := enc.Encode(ev); err != nil {
					return fmt.Errorf("write event: %w", err)
				}
			}
		}
	}
}

func init() {
	streamCmd.Flags().StringArrayVarP(&streamSymbols, "symbol", "s", nil, "EXCHANGE:SYMBOL pair (repeatable)")
	streamCmd.Flags().StringVarP(&streamInterval, "interval", "i", "1m", "Candle interval (1m, 5m, 1h, D, ...)")
	streamCmd.Flags().IntVarP(&streamBars, "init-bars", "n", 0, "Initial history bars requested per pair")
	rootCmd.AddCommand(streamCmd)
}
