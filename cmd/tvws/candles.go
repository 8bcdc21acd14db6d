package main

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	tvstream "github.com/tvstream/tvstream-go"
	"github.com/tvstream/tvstream-go/internal/config"
	"github.com/tvstream/tvstream-go/protocol"
)

var (
	candlesSymbol   string
	candlesInterval string
	candlesLimit    int
	candlesTimeout  time.Duration
)

// candlesCmd groups the candle-oriented subcommands.
var candlesCmd = &cobra.Command{
	Use:   "candles",
	Short: "Live and historic candle commands",
}

// candlesLiveCmd prints candles for one pair as they arrive, one table row
// per update.
// Usage: tvws candles live --symbol BINANCE:BTCUSDT --interval 5m
var candlesLiveCmd = &cobra.Command{
	Use:   "live",
	Short: "Stream live candles for one pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		if candlesSymbol == "" {
			return usageErrorf("provide a symbol with --symbol")
		}
		if _, err := protocol.NormalizeInterval(candlesInterval); err != nil {
			return usageErrorf("invalid interval %q", candlesInterval)
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		streamer, err := tvstream.NewStreamer(
			[]tvstream.Pair{{Symbol: candlesSymbol, Interval: candlesInterval}},
			streamOptions(cfg, logger)...)
		if err != nil {
			return err
		}
		defer streamer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		candles, cancel := streamer.Subscribe()
		defer cancel()

		w := newCandleTable()
		for {
			select {
			case <-ctx.Done():
				fmt.Fprintln(os.Stderr, "\nDisconnected.")
				return nil
			case c, ok := <-candles:
				if !ok {
					return nil
				}
				writeCandleRow(w, c)
				w.Flush()
			}
		}
	},
}

// candlesHistCmd fetches recent closed candles over a one-shot session and
// prints them oldest first.
// Usage: tvws candles hist --symbol BINANCE:BTCUSDT --interval 1h --limit 500
var candlesHistCmd = &cobra.Command{
	Use:   "hist",
	Short: "Fetch recent historic candles",
	RunE: func(cmd *cobra.Command, args []string) error {
		if candlesSymbol == "" {
			return usageErrorf("provide a symbol with --symbol")
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		_ = newLogger(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		candles, err := tvstream.GetHistoricCandles(ctx, candlesSymbol, candlesInterval, candlesLimit, candlesTimeout)
		if err != nil {
			return err
		}

		w := newCandleTable()
		for _, c := range candles {
			writeCandleRow(w, c)
		}
		w.Flush()
		fmt.Fprintf(os.Stderr, "%d candles\n", len(candles))
		return nil
	},
}

func newCandleTable() *tabwriter.Writer {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSYMBOL\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME\tCLOSED")
	fmt.Fprintln(w, "----\t------\t----\t----\t---\t-----\t------\t------")
	return w
}

func writeCandleRow(w *tabwriter.Writer, c tvstream.Candle) {
	volume := ""
	if c.Volume != nil {
		volume = fmt.Sprintf("%.2f", *c.Volume)
	}
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%t\n",
		c.TimeOpen.UTC().Format("2006-01-02 15:04:05"),
		c.Symbol, c.Open, c.High, c.Low, c.Close, volume, c.Closed)
}

func init() {
	candlesCmd.PersistentFlags().StringVar(&candlesSymbol, "symbol", "", "EXCHANGE:SYMBOL pair")
	candlesCmd.PersistentFlags().StringVar(&candlesInterval, "interval", "1m", "Candle interval (1m, 5m, 1h, D, ...)")
	candlesHistCmd.Flags().IntVar(&candlesLimit, "limit", 300, "Number of candles to fetch")
	candlesHistCmd.Flags().DurationVar(&candlesTimeout, "timeout", 10*time.Second, "Fetch deadline; partial results are printed on expiry")

	candlesCmd.AddCommand(candlesLiveCmd)
	candlesCmd.AddCommand(candlesHistCmd)
	rootCmd.AddCommand(candlesCmd)
}
