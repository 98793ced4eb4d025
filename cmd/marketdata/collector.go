package marketdata

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"

	"tradeengine/src/model"
)

// Collector pulls minute candles for one symbol and upserts them into the
// ohlcv_1m table. Runs as its own command, outside the execution path.
type Collector struct {
	Log      *logger.Entry
	DB       *gorm.DB
	Config   *Config
	exchange goex.API
}

func (c *Collector) Start() error {
	c.Config = GetConfig()

	c.exchange = newBinanceInstance()

	if c.Config.AutoMode {
		if err := c.determineStartPoint(); err != nil {
			return err
		}
	}

	return c.fetchAndSave()
}

func newBinanceInstance() *binance.Binance {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return binance.NewWithConfig(apiConfig)
}

func (c *Collector) pairSymbol() string {
	return c.Config.Symbol + c.Config.Quote
}

func (c *Collector) fetchAndSave() error {
	series, err := c.fetchKlines()
	if err != nil {
		return err
	}

	for i := range series {
		kline := series[i]

		candle := &model.OHLCVCandle1m{
			Symbol:   c.pairSymbol(),
			Datetime: time.Unix(kline.Timestamp, 0).UTC(),
			Open:     decimal.NewFromFloat(kline.Open),
			High:     decimal.NewFromFloat(kline.High),
			Low:      decimal.NewFromFloat(kline.Low),
			Close:    decimal.NewFromFloat(kline.Close),
			Volume:   decimal.NewFromFloat(kline.Vol),
		}

		// Upsert on (symbol, datetime) so re-runs over the same window are safe.
		if err := c.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "datetime"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).Create(candle).Error; err != nil {
			c.Log.WithError(err).Error("fetchAndSave, Create")
			return err
		}
	}

	c.Log.WithFields(logger.Fields{
		"symbol":  c.pairSymbol(),
		"candles": len(series),
	}).Info("OHLCV candles inserted or updated in database")

	return nil
}

func (c *Collector) determineStartPoint() error {
	c.Config.StartDt = c.Config.StartDt.Add(-time.Minute)
	c.Config.EndDt = time.Now()

	var latestTime *sql.NullTime
	result := c.DB.Model(&model.OHLCVCandle1m{}).
		Select("MAX(datetime)").
		Where("symbol = ?", c.pairSymbol()).
		Take(&latestTime)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			c.Log.
				WithField("StartDt", c.Config.StartDt.String()).
				Info("no candles yet, starting from the configured StartDt")
			return nil
		}
		c.Log.WithError(result.Error).Error("Failed to query latest datetime")
		return result.Error
	}

	if latestTime != nil && latestTime.Valid {
		// Resume one interval before the last recorded candle.
		c.Config.StartDt = latestTime.Time.Add(-time.Minute)
		c.Log.
			WithField("StartDt", c.Config.StartDt.String()).
			WithField("EndDt", c.Config.EndDt.String()).
			Info("resuming from last stored candle")
	}

	return nil
}

func (c *Collector) fetchKlines() ([]goex.Kline, error) {
	targetSymbol := goex.NewCurrencyPair(
		goex.Currency{Symbol: c.Config.Symbol},
		goex.Currency{Symbol: c.Config.Quote},
	)

	const millis = 1000
	klines, err := c.exchange.GetKlineRecords(
		targetSymbol,
		goex.KLINE_PERIOD_1MIN,
		c.Config.Limit,
		goex.OptionalParameter{}.
			Optional("startTime", c.Config.StartDt.Unix()*millis).
			Optional("endTime", c.Config.EndDt.Unix()*millis),
	)
	if err != nil {
		return nil, err
	}

	return klines, nil
}
