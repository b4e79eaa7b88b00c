package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/internal/adapters/config"
	"github.com/selivandex/macro-sentinel/pkg/logger"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

// Notifier pushes override and safety-lock alerts to a Telegram chat.
// Decisions flow regardless of delivery; alerting is best-effort.
type Notifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier creates new Telegram notifier
func NewNotifier(cfg *config.TelegramConfig) (*Notifier, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	api.Debug = false

	logger.Info("telegram notifier authorized",
		zap.String("username", api.Self.UserName),
	)

	return &Notifier{
		api:    api,
		chatID: cfg.ChatID,
	}, nil
}

// NotifyOverride sends an alert for a forced decision.
func (n *Notifier) NotifyOverride(ctx context.Context, result *models.DecisionResult) error {
	msg := tgbotapi.NewMessage(n.chatID, formatOverrideAlert(result))
	msg.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send override alert: %w", err)
	}

	logger.Info("override alert sent",
		zap.String("ticker", result.Ticker),
		zap.String("action", string(result.Action)),
	)

	return nil
}

func formatOverrideAlert(result *models.DecisionResult) string {
	var b strings.Builder

	b.WriteString("🚨 *Decision Override*\n\n")
	if result.Ticker != "" {
		fmt.Fprintf(&b, "*Ticker:* %s\n", result.Ticker)
	}
	fmt.Fprintf(&b, "*Action:* %s\n", result.Action)
	fmt.Fprintf(&b, "*Regime:* %s\n", result.Regime)
	if result.Pattern != "" {
		fmt.Fprintf(&b, "*Pattern:* %s\n", result.Pattern)
	}
	fmt.Fprintf(&b, "*Status:* %s\n", result.MetaRAGStatus)
	fmt.Fprintf(&b, "*Risk:* %.1f (%s)\n", result.UnifiedRisk.Score, result.UnifiedRisk.Label)
	fmt.Fprintf(&b, "\n%s", result.Reason)
	if result.RiskExplanation != "" {
		fmt.Fprintf(&b, "\n\n%s", result.RiskExplanation)
	}

	return b.String()
}
