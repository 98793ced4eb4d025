package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	logger "github.com/sirupsen/logrus"

	"tradeengine/src/executor"
	"tradeengine/src/model"
)

const maxWebhookBody = 1024

// SignalRunner executes one signal for one bot.
type SignalRunner interface {
	Execute(ctx context.Context, bot *model.Bot, signal *model.Signal) *executor.Result
}

// RunnerFor resolves the runner for a bot, typically from the engine factory.
type RunnerFor func(bot *model.Bot) (SignalRunner, error)

type botFinder interface {
	FindByID(ctx context.Context, id uint) (*model.Bot, error)
}

type signalStore interface {
	Create(ctx context.Context, signal *model.Signal) error
	MarkProcessed(ctx context.Context, id uint, execErr string) error
}

// ParseWebhook parses the fixed-format alert payload
// "botId|action|symbol[|price]" into its parts.
func ParseWebhook(payload string) (botID uint, action, symbol string, price *float64, err error) {
	parts := strings.Split(strings.TrimSpace(payload), "|")
	if len(parts) != 3 && len(parts) != 4 {
		return 0, "", "", nil, fmt.Errorf("expected botId|action|symbol[|price], got %d fields", len(parts))
	}

	id, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		return 0, "", "", nil, fmt.Errorf("invalid bot id %q", parts[0])
	}

	action = strings.ToUpper(strings.TrimSpace(parts[1]))
	switch action {
	case model.SignalActionEnterLong, model.SignalActionExitLong,
		model.SignalActionEnterShort, model.SignalActionExitShort:
	default:
		return 0, "", "", nil, fmt.Errorf("unknown action %q", parts[1])
	}

	symbol = strings.ToUpper(strings.TrimSpace(parts[2]))
	if symbol == "" {
		return 0, "", "", nil, fmt.Errorf("empty symbol")
	}

	if len(parts) == 4 {
		p, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || p <= 0 {
			return 0, "", "", nil, fmt.Errorf("invalid price %q", parts[3])
		}
		price = &p
	}

	return uint(id), action, symbol, price, nil
}

// SignalsHandler ingests one alert payload, persists it as a signal, runs it
// through the executor and returns the structured execution result. The
// signal row is marked processed regardless of outcome.
func SignalsHandler(bots botFinder, signals signalStore, runnerFor RunnerFor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		botID, action, symbol, price, err := ParseWebhook(string(body))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		bot, err := bots.FindByID(r.Context(), botID)
		if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if bot == nil {
			http.Error(w, "bot not found", http.StatusNotFound)
			return
		}

		signal := &model.Signal{
			BotID:  bot.ID,
			Action: action,
			Symbol: symbol,
			Price:  price,
		}
		if err := signals.Create(r.Context(), signal); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		runner, err := runnerFor(bot)
		if err != nil {
			logger.WithError(err).WithField("bot_id", bot.ID).Error("failed to build executor")
			if markErr := signals.MarkProcessed(r.Context(), signal.ID, err.Error()); markErr != nil {
				logger.WithError(markErr).Error("failed to mark signal processed")
			}
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		result := runner.Execute(r.Context(), bot, signal)

		if err := signals.MarkProcessed(r.Context(), signal.ID, result.Error); err != nil {
			logger.WithError(err).WithField("signal_id", signal.ID).
				Error("failed to mark signal processed")
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			logger.WithError(err).Error("failed to encode execution result")
		}
	}
}
