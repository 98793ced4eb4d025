package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	logger "github.com/sirupsen/logrus"

	"tradeengine/src/engine"
	"tradeengine/src/handler"
	"tradeengine/src/model"
	"tradeengine/src/repository"
)

// StartServer runs the HTTP boundary: the signal webhook, the position
// listing and the operational endpoints. Blocks until SIGINT/SIGTERM.
func StartServer(port string, factory *engine.Factory) {
	r := chi.NewRouter()

	// Public routes
	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.WithError(err).Error("/healthcheck error")
		}
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/signals", handler.SignalsHandler(
		repository.NewBotRepository(),
		repository.NewSignalRepository(),
		func(bot *model.Bot) (handler.SignalRunner, error) {
			return factory.ForBot(bot)
		},
	))
	r.Get("/positions", handler.DefaultSearchPositionsHandler())

	// Graceful server
	addr := ":" + port
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		logger.Infof("Listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Server crashed")
		}
	}()

	// Shutdown on SIGINT or SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Shutdown error")
	}
}
