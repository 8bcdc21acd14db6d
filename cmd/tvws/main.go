// Command tvws streams TradingView market data to stdout and fetches recent
// candle history.
package main

import (
	"errors"
	"fmt"
	"os"

	tvstream "github.com/tvstream/tvstream-go"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)

		var usage *usageError
		if errors.As(err, &usage) || errors.Is(err, tvstream.ErrInvalidInterval) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
