package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"tradeengine/src/connectors"
	"tradeengine/src/database"
	"tradeengine/src/engine"
	"tradeengine/src/repository"
	"tradeengine/src/server"
)

var APP_NAME = os.Getenv("APP_NAME")

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	if err := database.InitMainDB(); err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectorsConfig := connectors.GetConfig()

	var prices *connectors.PriceStream
	if len(connectorsConfig.StreamSymbols) > 0 {
		prices = connectors.NewPriceStream(connectorsConfig.WSBaseURL, connectorsConfig.StreamSymbols)
		go prices.Run(ctx)
	}

	factory := engine.NewFactory(prices)

	server.StartServer(server.GetConfig().Port, factory)
}

func handlePanic() {
	if r := recover(); r != nil {
		err := fmt.Errorf("%+v", r)
		logger.WithError(err).Error(fmt.Sprintf("Application %s panic", APP_NAME))
		if database.MainDB != nil {
			repository.NewExceptionRepository().Capture(context.Background(), "main", "panic", err)
		}
	}
	//nolint
	time.Sleep(time.Second * 5)
}
