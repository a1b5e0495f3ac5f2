package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	ruleDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/domain"
	ruleService "github.com/reshetovitsme/tg-forwarder/internal/modules/rule/service"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/config"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/worker"
	"github.com/samber/lo"
)

// Intake accepts inbound messages for rule processing
type Intake interface {
	Submit(msg messageDomain.InboundMessage) error
	Stats() worker.PoolStats
}

// RuleStore is the part of the rule service operators can drive from chat
type RuleStore interface {
	Snapshot() *ruleService.Snapshot
	Reload() (*ruleService.Snapshot, error)
	Rules() ([]ruleDomain.ForwardingRule, error)
	SetEnabled(name string, enabled bool) error
}

// StatsSource reports queue statistics of a worker pool
type StatsSource interface {
	Stats() worker.PoolStats
}

var commands = []models.BotCommand{
	{Command: "start", Description: "Show help"},
	{Command: "help", Description: "Show help"},
	{Command: "rules", Description: "List forwarding rules"},
	{Command: "reload", Description: "Reload rules from storage"},
	{Command: "enable", Description: "Enable a rule: /enable <rule_name>"},
	{Command: "disable", Description: "Disable a rule: /disable <rule_name>"},
	{Command: "status", Description: "Show queue status"},
}

const helpText = `👋 Telegram forwarding bot

Channel posts are matched against forwarding rules and copied to the rule targets.

Available commands:
/help - Show this help message
/rules - List forwarding rules
/reload - Reload rules from storage
/enable <rule_name> - Enable a rule
/disable <rule_name> - Disable a rule
/status - Show queue status`

// Handler handles Telegram bot interactions
type Handler struct {
	cfg      *config.Config
	intake   Intake
	rules    RuleStore
	delivery StatsSource
	logger   *slog.Logger
}

// New creates a new Telegram handler
func New(cfg *config.Config, intake Intake, rules RuleStore, delivery StatsSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:      cfg,
		intake:   intake,
		rules:    rules,
		delivery: delivery,
		logger:   logger.With("component", "telegram-handler"),
	}
}

// RegisterCommands registers bot commands. They are only answered in private chats.
func (h *Handler) RegisterCommands(b *bot.Bot) {
	b.RegisterHandlerMatchFunc(matchCommand("/start"), h.handleHelp)
	b.RegisterHandlerMatchFunc(matchCommand("/help"), h.handleHelp)
	b.RegisterHandlerMatchFunc(matchCommand("/rules"), h.handleRules)
	b.RegisterHandlerMatchFunc(matchCommand("/reload"), h.handleReload)
	b.RegisterHandlerMatchFunc(matchCommand("/enable"), h.handleEnable)
	b.RegisterHandlerMatchFunc(matchCommand("/disable"), h.handleDisable)
	b.RegisterHandlerMatchFunc(matchCommand("/status"), h.handleStatus)
}

// PublishCommands sets the command menu shown by Telegram clients
func (h *Handler) PublishCommands(ctx context.Context, b *bot.Bot) error {
	_, err := b.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: commands})
	return err
}

// HandleUpdate processes incoming updates
func (h *Handler) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.ChannelPost != nil:
		h.submit(update.ChannelPost, false)
	case update.EditedChannelPost != nil:
		h.submit(update.EditedChannelPost, true)
	case update.Message != nil && isForwardable(update.Message.Chat):
		h.submit(update.Message, false)
	case update.EditedMessage != nil && isForwardable(update.EditedMessage.Chat):
		h.submit(update.EditedMessage, true)
	}
}

func (h *Handler) submit(msg *models.Message, edited bool) {
	in := Convert(msg, edited)
	if err := h.intake.Submit(in); err != nil {
		h.logger.Warn("Message not accepted", "error", err, "chat_id", in.ChatID, "message_id", in.MessageID)
		return
	}
	h.logger.Debug("Message accepted", "chat_id", in.ChatID, "message_id", in.MessageID, "type", in.Type, "edited", edited)
}

// isForwardable excludes private chats, where the bot only takes commands
func isForwardable(chat models.Chat) bool {
	return chat.Type != "private"
}

// matchCommand matches "/cmd", "/cmd args" and "/cmd@botname" in private chats
func matchCommand(command string) bot.MatchFunc {
	return func(update *models.Update) bool {
		if update.Message == nil || update.Message.Chat.Type != "private" {
			return false
		}
		fields := strings.Fields(update.Message.Text)
		if len(fields) == 0 {
			return false
		}
		name, _, _ := strings.Cut(fields[0], "@")
		return name == command
	}
}

func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}

func (h *Handler) reply(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		h.logger.Error("Failed to send reply", "error", err, "chat_id", chatID)
	}
}

// authorize replies on behalf of the caller when the sender is not an operator
func (h *Handler) authorize(ctx context.Context, b *bot.Bot, update *models.Update) bool {
	msg := update.Message
	if msg.From != nil && h.cfg.IsUserAllowed(msg.From.ID) {
		return true
	}
	h.reply(ctx, b, msg.Chat.ID, "❌ Unauthorized")
	return false
}

func (h *Handler) handleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update) {
		return
	}
	h.reply(ctx, b, update.Message.Chat.ID, helpText)
}

func (h *Handler) handleRules(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update) {
		return
	}
	chatID := update.Message.Chat.ID

	rules, err := h.rules.Rules()
	if err != nil {
		h.reply(ctx, b, chatID, fmt.Sprintf("❌ Failed to list rules: %v", err))
		return
	}
	if len(rules) == 0 {
		h.reply(ctx, b, chatID, "📭 No forwarding rules configured.")
		return
	}

	skipped := lo.SliceToMap(h.rules.Snapshot().Skipped, func(s ruleService.SkippedRule) (string, string) {
		return s.RuleName, s.Reason
	})

	var text strings.Builder
	text.WriteString("📋 Forwarding rules:\n\n")
	for i, rule := range rules {
		status := "✅"
		if !rule.IsEnabled {
			status = "⏸️"
		}
		if _, bad := skipped[rule.RuleName]; bad {
			status = "⚠️"
		}
		text.WriteString(fmt.Sprintf("%s %d. %s\n   %s\n", status, i+1, rule.RuleName, rule.Summary()))
		if reason, bad := skipped[rule.RuleName]; bad {
			text.WriteString(fmt.Sprintf("   skipped: %s\n", reason))
		}
		text.WriteString("\n")
	}

	h.reply(ctx, b, chatID, text.String())
}

func (h *Handler) handleReload(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update) {
		return
	}
	chatID := update.Message.Chat.ID

	snap, err := h.rules.Reload()
	if err != nil {
		h.reply(ctx, b, chatID, fmt.Sprintf("❌ Failed to reload rules: %v", err))
		return
	}
	h.reply(ctx, b, chatID, fmt.Sprintf("🔄 Rules reloaded: %d active, %d skipped", len(snap.Rules), len(snap.Skipped)))
}

func (h *Handler) handleEnable(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.toggle(ctx, b, update, true)
}

func (h *Handler) handleDisable(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.toggle(ctx, b, update, false)
}

func (h *Handler) toggle(ctx context.Context, b *bot.Bot, update *models.Update, enabled bool) {
	if !h.authorize(ctx, b, update) {
		return
	}
	chatID := update.Message.Chat.ID

	verb := lo.Ternary(enabled, "enable", "disable")
	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		h.reply(ctx, b, chatID, fmt.Sprintf("Usage: /%s <rule_name>", verb))
		return
	}

	if err := h.rules.SetEnabled(args[0], enabled); err != nil {
		h.reply(ctx, b, chatID, fmt.Sprintf("❌ Failed to %s rule %s: %v", verb, args[0], err))
		return
	}

	h.logger.Info("Rule toggled", "rule_name", args[0], "enabled", enabled, "user_id", update.Message.From.ID)
	h.reply(ctx, b, chatID, fmt.Sprintf("✅ Rule %s %sd", args[0], verb))
}

func (h *Handler) handleStatus(ctx context.Context, b *bot.Bot, update *models.Update) {
	if !h.authorize(ctx, b, update) {
		return
	}

	snap := h.rules.Snapshot()
	sources := lo.Map(snap.SourceChannels(), func(id int64, _ int) string {
		return fmt.Sprintf("%d", id)
	})

	text := fmt.Sprintf(`📊 Bot Status

Active rules: %d
Skipped rules: %d
Source channels: %s
Rules loaded: %s

%s
%s`,
		len(snap.Rules),
		len(snap.Skipped),
		lo.Ternary(len(sources) == 0, "none", strings.Join(sources, ", ")),
		snap.LoadedAt.Format("2006-01-02 15:04:05"),
		formatStats(h.intake.Stats()),
		formatStats(h.delivery.Stats()),
	)

	h.reply(ctx, b, update.Message.Chat.ID, text)
}

func formatStats(s worker.PoolStats) string {
	return fmt.Sprintf("%s: queued %d/%d, processed %d, failed %d, dropped %d",
		s.Name, s.QueueDepth, s.QueueSize, s.Processed, s.Failed, s.Dropped)
}
