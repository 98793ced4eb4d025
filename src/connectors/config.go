package connectors

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL   string `envconfig:"EXCHANGE_BASE_URL" default:"https://testnet.binance.vision"`
	WSBaseURL string `envconfig:"EXCHANGE_WS_BASE_URL" default:"wss://stream.binance.com:9443"`

	// Comma separated symbols to subscribe on the book ticker stream.
	// Empty disables the stream; prices fall back to REST lookups.
	StreamSymbols []string `envconfig:"PRICE_STREAM_SYMBOLS" default:""`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
