package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"polyradar/internal/config"
	"polyradar/internal/paper"
)

// Telegram delivers best-effort trade events through the Bot API. Delivery
// failures are logged and never surfaced to the ledger path.
type Telegram struct {
	Logger *zap.Logger
	Config config.NotifyConfig

	httpClient *http.Client
}

func NewTelegram(logger *zap.Logger, cfg config.NotifyConfig) *Telegram {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Telegram{
		Logger:     logger,
		Config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (t *Telegram) enabled() bool {
	return t != nil && t.Config.Enabled &&
		strings.TrimSpace(t.Config.BotToken) != "" &&
		strings.TrimSpace(t.Config.ChatID) != ""
}

func (t *Telegram) TradeExecuted(ctx context.Context, order paper.Order) {
	if !t.enabled() {
		return
	}
	emoji := "\U0001F7E2" // green circle
	if order.Side == paper.SideSell {
		emoji = "\U0001F534" // red circle
	}
	text := fmt.Sprintf("%s %s %s %s\n%s\nAmount: $%s @ %s (%s shares)",
		emoji, order.Side, order.Outcome, order.MarketID,
		order.MarketTitle,
		order.RequestedAmount.StringFixed(2), order.AvgPrice.StringFixed(4),
		order.Shares.StringFixed(2),
	)
	if order.Side == paper.SideSell {
		text += fmt.Sprintf("\nRealized PnL: $%s", order.RealizedPnL.StringFixed(2))
	}
	t.send(ctx, text)
}

func (t *Telegram) CopyStarted(ctx context.Context, walletAddress string, order paper.Order) {
	if !t.enabled() {
		return
	}
	text := fmt.Sprintf("\U0001F4CB Copied %s\n%s %s $%s @ %s\n%s",
		walletAddress,
		order.Side, order.Outcome,
		order.RequestedAmount.StringFixed(2), order.AvgPrice.StringFixed(4),
		order.MarketTitle,
	)
	t.send(ctx, text)
}

func (t *Telegram) send(ctx context.Context, text string) {
	base := strings.TrimRight(t.Config.APIBase, "/")
	if base == "" {
		base = "https://api.telegram.org"
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", base, t.Config.BotToken)

	payload, err := json.Marshal(map[string]string{
		"chat_id": t.Config.ChatID,
		"text":    text,
	})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if t.Logger != nil {
			t.Logger.Warn("telegram send failed", zap.Error(err))
		}
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if t.Logger != nil {
			t.Logger.Warn("telegram send rejected",
				zap.Int("status", resp.StatusCode),
				zap.String("body", string(body)),
			)
		}
	}
}
