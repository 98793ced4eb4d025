package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"tradeengine/src/executor"
	"tradeengine/src/model"
)

type mockBotFinder struct {
	bot *model.Bot
	err error
}

func (m *mockBotFinder) FindByID(_ context.Context, id uint) (*model.Bot, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.bot != nil && m.bot.ID == id {
		return m.bot, nil
	}
	return nil, nil
}

type mockSignalStore struct {
	created   []*model.Signal
	processed map[uint]string
	nextID    uint
}

func (m *mockSignalStore) Create(_ context.Context, signal *model.Signal) error {
	m.nextID++
	signal.ID = m.nextID
	m.created = append(m.created, signal)
	return nil
}

func (m *mockSignalStore) MarkProcessed(_ context.Context, id uint, execErr string) error {
	if m.processed == nil {
		m.processed = make(map[uint]string)
	}
	m.processed[id] = execErr
	return nil
}

type mockRunner struct {
	result *executor.Result
	bot    *model.Bot
	signal *model.Signal
}

func (m *mockRunner) Execute(_ context.Context, bot *model.Bot, signal *model.Signal) *executor.Result {
	m.bot = bot
	m.signal = signal
	return m.result
}

func runnerFor(runner SignalRunner) RunnerFor {
	return func(*model.Bot) (SignalRunner, error) { return runner, nil }
}

func TestParseWebhook(t *testing.T) {
	botID, action, symbol, price, err := ParseWebhook("7|enter_long|btcusdt|50123.5")
	assert.NoError(t, err)
	assert.Equal(t, uint(7), botID)
	assert.Equal(t, model.SignalActionEnterLong, action)
	assert.Equal(t, "BTCUSDT", symbol)
	if assert.NotNil(t, price) {
		assert.Equal(t, 50123.5, *price)
	}
}

func TestParseWebhookWithoutPrice(t *testing.T) {
	_, action, symbol, price, err := ParseWebhook("7|EXIT_SHORT|ETHUSDT")
	assert.NoError(t, err)
	assert.Equal(t, model.SignalActionExitShort, action)
	assert.Equal(t, "ETHUSDT", symbol)
	assert.Nil(t, price)
}

func TestParseWebhookRejectsMalformedPayloads(t *testing.T) {
	cases := []string{
		"",
		"7",
		"7|ENTER_LONG",
		"x|ENTER_LONG|BTCUSDT",
		"7|HOLD|BTCUSDT",
		"7|ENTER_LONG|BTCUSDT|zero",
		"7|ENTER_LONG|BTCUSDT|-5",
		"7|ENTER_LONG|BTCUSDT|1|extra",
	}
	for _, payload := range cases {
		_, _, _, _, err := ParseWebhook(payload)
		assert.Error(t, err, "payload %q", payload)
	}
}

func TestSignalsHandlerExecutesAndMarksProcessed(t *testing.T) {
	bot := &model.Bot{ID: 7, Active: true}
	store := &mockSignalStore{}
	runner := &mockRunner{result: &executor.Result{Success: true, PositionID: 42}}

	handler := SignalsHandler(&mockBotFinder{bot: bot}, store, runnerFor(runner))

	req := httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader("7|ENTER_LONG|BTCUSDT"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var result executor.Result
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	assert.True(t, result.Success)
	assert.Equal(t, uint(42), result.PositionID)

	assert.Equal(t, bot, runner.bot)
	assert.Len(t, store.created, 1)
	assert.Equal(t, "", store.processed[1])
}

func TestSignalsHandlerRecordsExecutionError(t *testing.T) {
	bot := &model.Bot{ID: 7}
	store := &mockSignalStore{}
	runner := &mockRunner{result: &executor.Result{Error: "insufficient USDT balance"}}

	handler := SignalsHandler(&mockBotFinder{bot: bot}, store, runnerFor(runner))

	req := httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader("7|ENTER_LONG|BTCUSDT"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "insufficient USDT balance", store.processed[1])
}

func TestSignalsHandlerUnknownBot(t *testing.T) {
	handler := SignalsHandler(&mockBotFinder{}, &mockSignalStore{}, runnerFor(&mockRunner{}))

	req := httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader("99|ENTER_LONG|BTCUSDT"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestSignalsHandlerBadPayload(t *testing.T) {
	handler := SignalsHandler(&mockBotFinder{}, &mockSignalStore{}, runnerFor(&mockRunner{}))

	req := httptest.NewRequest(http.MethodPost, "/signals", strings.NewReader("not-a-webhook"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
