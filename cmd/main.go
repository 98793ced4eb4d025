package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"tradeengine/cmd/marketdata"
	"tradeengine/src/connectors"
	"tradeengine/src/database"
	"tradeengine/src/engine"
	"tradeengine/src/security"
	"tradeengine/src/server"
	"tradeengine/src/stats"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Tradeengine CMD"
	app.Usage = "The tradeengine command line interface"

	app.Commands = []cli.Command{
		serverCMD,
		statsWorkerCMD,
		marketDataCMD,
		encryptKeyCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run the signal webhook server",
		Action:      serverAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the HTTP server that receives signals and executes trades`,
	}
	statsWorkerCMD = cli.Command{
		Name:        "statsworker",
		Usage:       "run the stats worker",
		Action:      statsWorkerAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Drain the stats job queue and update bot aggregates`,
	}
	marketDataCMD = cli.Command{
		Name:        "marketdata",
		Usage:       "collect OHLCV candles",
		Action:      marketDataAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Fetch minute candles from the exchange into the database`,
	}
	encryptKeyCMD = cli.Command{
		Name:        "encryptkey",
		Usage:       "encrypt an exchange credential",
		Action:      encryptKeyAction,
		ArgsUsage:   "<plaintext>",
		Flags:       []cli.Flag{},
		Description: `Encrypt an API key or secret for storage on an exchange account`,
	}
)

func serverAction(_ *cli.Context) error {

	logrus.Info("Starting server CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connectorsConfig := connectors.GetConfig()

	var prices *connectors.PriceStream
	if len(connectorsConfig.StreamSymbols) > 0 {
		prices = connectors.NewPriceStream(connectorsConfig.WSBaseURL, connectorsConfig.StreamSymbols)
		go prices.Run(ctx)
	}

	server.StartServer(server.GetConfig().Port, engine.NewFactory(prices))

	return nil
}

func statsWorkerAction(_ *cli.Context) error {

	logrus.Info("Starting stats worker CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	worker := stats.NewWorker(database.MainDB, stats.GetConfig())
	worker.Run(ctx)

	return nil
}

func marketDataAction(_ *cli.Context) error {

	logrus.Info("Starting marketdata CMD")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	collector := &marketdata.Collector{
		Log: logrus.WithField("cmd", "marketdata"),
		DB:  database.MainDB,
	}

	if err := collector.Start(); err != nil {
		logrus.WithError(err).Error("Starting marketdata cmd")
		return err
	}

	return nil
}

func encryptKeyAction(c *cli.Context) error {
	plaintext := c.Args().First()
	if plaintext == "" {
		return fmt.Errorf("usage: encryptkey <plaintext>")
	}

	encrypted, err := security.EncryptString(plaintext)
	if err != nil {
		return err
	}

	fmt.Println(encrypted)
	return nil
}
