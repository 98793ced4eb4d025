package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

// bookTickerEvent is the best bid/ask push for one symbol.
type bookTickerEvent struct {
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	AskPrice string `json:"a"`
}

// PriceStream keeps an in-memory last-price cache fed by the combined
// book-ticker websocket stream. Lookups never block on the network; callers
// fall back to the REST ticker when a symbol has not been seen yet.
type PriceStream struct {
	wsBaseURL string
	symbols   []string

	mu     sync.RWMutex
	prices map[string]decimal.Decimal

	dialer *websocket.Dialer
}

func NewPriceStream(wsBaseURL string, symbols []string) *PriceStream {
	return &PriceStream{
		wsBaseURL: wsBaseURL,
		symbols:   symbols,
		prices:    make(map[string]decimal.Decimal),
		dialer: &websocket.Dialer{
			HandshakeTimeout:  15 * time.Second,
			EnableCompression: true,
			Proxy:             http.ProxyFromEnvironment,
		},
	}
}

// Run consumes the stream until ctx is canceled, reconnecting with a fixed
// backoff on read or dial failures.
func (p *PriceStream) Run(ctx context.Context) {
	const reconnectDelay = 5 * time.Second

	for {
		if err := p.consumeOnce(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Info("price stream stopped")
				return
			}
			logger.WithError(err).Warn("price stream disconnected, reconnecting")
		}

		select {
		case <-ctx.Done():
			logger.Info("price stream stopped")
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (p *PriceStream) consumeOnce(ctx context.Context) error {
	streams := make([]string, 0, len(p.symbols))
	for _, symbol := range p.symbols {
		streams = append(streams, strings.ToLower(symbol)+"@bookTicker")
	}

	wsURL := fmt.Sprintf("%s/stream?streams=%s", p.wsBaseURL, strings.Join(streams, "/"))

	conn, _, err := p.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("ws dial failed: %w", err)
	}
	defer conn.Close()

	logger.WithField("symbols", p.symbols).Info("price stream connected")

	// Close the connection when the context ends so ReadMessage unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("ws read failed: %w", err)
		}

		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(msg, &envelope); err != nil || len(envelope.Data) == 0 {
			continue
		}

		var event bookTickerEvent
		if err := json.Unmarshal(envelope.Data, &event); err != nil {
			logger.WithError(err).Debug("skipping malformed book ticker event")
			continue
		}

		p.store(event)
	}
}

func (p *PriceStream) store(event bookTickerEvent) {
	bid, errBid := decimal.NewFromString(event.BidPrice)
	ask, errAsk := decimal.NewFromString(event.AskPrice)
	if errBid != nil || errAsk != nil || event.Symbol == "" {
		return
	}

	// Mid price between best bid and best ask.
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))

	p.mu.Lock()
	p.prices[strings.ToUpper(event.Symbol)] = mid
	p.mu.Unlock()
}

// LastPrice returns the cached mid price for a symbol, if any.
func (p *PriceStream) LastPrice(symbol string) (decimal.Decimal, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	price, ok := p.prices[strings.ToUpper(symbol)]
	return price, ok
}
