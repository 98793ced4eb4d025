package engine

import (
	"fmt"
	"sync"

	logger "github.com/sirupsen/logrus"

	"tradeengine/src/connectors"
	"tradeengine/src/exchangeinfo"
	"tradeengine/src/executor"
	"tradeengine/src/model"
	"tradeengine/src/protect"
	"tradeengine/src/repository"
	"tradeengine/src/security"
	"tradeengine/src/validator"
)

// Factory builds one TradeExecutor per exchange account and caches it, so
// repeated signals for the same account reuse the connector and its
// constraint cache.
type Factory struct {
	baseURL string
	prices  *connectors.PriceStream

	mu        sync.Mutex
	executors map[uint]*executor.TradeExecutor
}

// NewFactory creates a factory. prices may be nil; executors then resolve
// prices over REST only.
func NewFactory(prices *connectors.PriceStream) *Factory {
	config := connectors.GetConfig()
	return &Factory{
		baseURL:   config.BaseURL,
		prices:    prices,
		executors: make(map[uint]*executor.TradeExecutor),
	}
}

// ForBot returns the executor for the bot's exchange account, building it on
// first use. Credentials are decrypted here and live only inside the
// connector.
func (f *Factory) ForBot(bot *model.Bot) (*executor.TradeExecutor, error) {
	account := bot.ExchangeAccount
	if account == nil {
		return nil, fmt.Errorf("bot %d has no exchange account", bot.ID)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if exec, ok := f.executors[account.ID]; ok {
		return exec, nil
	}

	apiKey, err := security.DecryptString(account.APIKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypting api key for account %d: %w", account.ID, err)
	}
	apiSecret, err := security.DecryptString(account.APISecretEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypting api secret for account %d: %w", account.ID, err)
	}

	connector := connectors.NewBinanceConnector(apiKey, apiSecret, f.baseURL)
	constraints := exchangeinfo.NewConstraintCache(connector, exchangeinfo.DefaultTTL)

	// Avoid handing a typed nil to the executor when no stream is running.
	var prices executor.PriceSource
	if f.prices != nil {
		prices = f.prices
	}

	exec := executor.New(
		connector,
		validator.New(connector, constraints),
		protect.NewManager(connector),
		repository.NewPositionRepository(),
		repository.NewStatsJobRepository(),
		prices,
	)
	f.executors[account.ID] = exec

	logger.WithFields(map[string]interface{}{
		"exchange_account_id": account.ID,
		"exchange":            account.Exchange,
	}).Info("Executor created for exchange account")

	return exec, nil
}
