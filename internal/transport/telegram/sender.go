package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	messageDomain "github.com/reshetovitsme/tg-forwarder/internal/modules/message/domain"
	"github.com/reshetovitsme/tg-forwarder/internal/shared/htmltext"
	"github.com/samber/oops"
)

// Limits caps the rendered text the sender hands to Telegram
type Limits struct {
	MaxTextLength    int
	MaxCaptionLength int
}

// Sender delivers dispatch requests through the Bot API
type Sender struct {
	bot    *bot.Bot
	limits Limits
	logger *slog.Logger
}

// NewSender creates a sender bound to a bot
func NewSender(b *bot.Bot, limits Limits, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	if limits.MaxTextLength <= 0 {
		limits.MaxTextLength = 4096
	}
	if limits.MaxCaptionLength <= 0 {
		limits.MaxCaptionLength = 1024
	}
	return &Sender{bot: b, limits: limits, logger: logger.With("component", "telegram-sender")}
}

// Send delivers one request and returns the id of the message created in the target chat.
// Errors that retrying cannot fix are marked permanent; rate limits carry the server's delay.
func (s *Sender) Send(ctx context.Context, req messageDomain.DispatchRequest) (int, error) {
	id, err := s.send(ctx, req)
	if err != nil {
		return 0, classify(err)
	}
	return id, nil
}

func (s *Sender) send(ctx context.Context, req messageDomain.DispatchRequest) (int, error) {
	msg := req.Message
	chatID := req.TargetChannelID
	protect := req.ProtectContent || msg.ProtectContent

	if msg.Media == nil {
		if msg.Type != messageDomain.MessageTypeText {
			return s.copyMessage(ctx, req, protect)
		}
		text := s.render(msg, s.limits.MaxTextLength)
		params := &bot.SendMessageParams{
			ChatID:         chatID,
			Text:           text,
			ParseMode:      models.ParseModeHTML,
			ProtectContent: protect,
		}
		if msg.DisableLinkPreview {
			params.LinkPreviewOptions = &models.LinkPreviewOptions{IsDisabled: bot.True()}
		}
		sent, err := s.bot.SendMessage(ctx, params)
		if err != nil {
			return 0, err
		}
		return sent.ID, nil
	}

	caption := s.render(msg, s.limits.MaxCaptionLength)
	file := &models.InputFileString{Data: msg.Media.FileID}

	var (
		sent *models.Message
		err  error
	)
	switch msg.Media.Type {
	case messageDomain.MessageTypePhoto:
		sent, err = s.bot.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID: chatID, Photo: file, Caption: caption, ParseMode: models.ParseModeHTML, ProtectContent: protect,
		})
	case messageDomain.MessageTypeVideo:
		sent, err = s.bot.SendVideo(ctx, &bot.SendVideoParams{
			ChatID: chatID, Video: file, Caption: caption, ParseMode: models.ParseModeHTML, ProtectContent: protect,
		})
	case messageDomain.MessageTypeDocument:
		sent, err = s.bot.SendDocument(ctx, &bot.SendDocumentParams{
			ChatID: chatID, Document: file, Caption: caption, ParseMode: models.ParseModeHTML, ProtectContent: protect,
		})
	case messageDomain.MessageTypeAudio:
		sent, err = s.bot.SendAudio(ctx, &bot.SendAudioParams{
			ChatID: chatID, Audio: file, Caption: caption, ParseMode: models.ParseModeHTML, ProtectContent: protect,
		})
	case messageDomain.MessageTypeAnimation:
		sent, err = s.bot.SendAnimation(ctx, &bot.SendAnimationParams{
			ChatID: chatID, Animation: file, Caption: caption, ParseMode: models.ParseModeHTML, ProtectContent: protect,
		})
	case messageDomain.MessageTypeVoice:
		sent, err = s.bot.SendVoice(ctx, &bot.SendVoiceParams{
			ChatID: chatID, Voice: file, Caption: caption, ParseMode: models.ParseModeHTML, ProtectContent: protect,
		})
	default:
		return s.copyMessage(ctx, req, protect)
	}
	if err != nil {
		return 0, err
	}
	return sent.ID, nil
}

// copyMessage covers the kinds that have no caption to rewrite (stickers, polls, locations, ...)
func (s *Sender) copyMessage(ctx context.Context, req messageDomain.DispatchRequest, protect bool) (int, error) {
	copied, err := s.bot.CopyMessage(ctx, &bot.CopyMessageParams{
		ChatID:         req.TargetChannelID,
		FromChatID:     req.Message.SourceChatID,
		MessageID:      req.Message.SourceMessageID,
		ProtectContent: protect,
	})
	if err != nil {
		return 0, err
	}
	return copied.ID, nil
}

// render adds the attribution header and signature line, then enforces the limit again.
func (s *Sender) render(msg messageDomain.OutboundMessage, limit int) string {
	text := msg.Text

	if origin := msg.ForwardOrigin; origin != nil && origin.Name != "" {
		header := fmt.Sprintf("Forwarded from <b>%s</b>", htmltext.Escape(origin.Name))
		text = joinBlocks(header, text)
	}
	if msg.AuthorSignature != "" {
		text = joinBlocks(text, "<i>"+htmltext.Escape(msg.AuthorSignature)+"</i>")
	}

	out, truncated := htmltext.Truncate(text, limit)
	if truncated {
		s.logger.Warn("rendered message truncated", "rule_name", msg.RuleName, "limit", limit)
	}
	return out
}

func joinBlocks(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	return a + "\n\n" + b
}

// classify maps Bot API failures onto the retry policy of the dispatcher.
func classify(err error) error {
	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return backoff.RetryAfter(tooMany.RetryAfter)
	}

	switch {
	case errors.Is(err, bot.ErrorBadRequest),
		errors.Is(err, bot.ErrorForbidden),
		errors.Is(err, bot.ErrorNotFound),
		errors.Is(err, bot.ErrorUnauthorized):
		return backoff.Permanent(oops.With("context", "rejected by telegram").Wrap(err))
	case errors.Is(err, context.Canceled):
		return backoff.Permanent(err)
	default:
		return err
	}
}
