package bot

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	sampleCallbackPrefix = "sample:"
	maxCallbackDataLen   = 64
	maxSampleButtons     = 50
)

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]models.InlineKeyboardButton,
) error {
	params := b.messageParams(ctx, chatID, text)

	// See https://core.telegram.org/bots/api#markdownv2-style.
	params.ParseMode = models.ParseModeMarkdown

	if len(keyboard) > 0 {
		params.ReplyMarkup = &models.InlineKeyboardMarkup{InlineKeyboard: keyboard}
	}

	return b.send(ctx, chatID, params)
}

func (b *Bot) sendPlainMessage(ctx context.Context, chatID int64, text string) error {
	return b.send(ctx, chatID, b.messageParams(ctx, chatID, text))
}

func (b *Bot) messageParams(ctx context.Context, chatID int64, text string) *bot.SendMessageParams {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	disabled := true

	return &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               normalizedText,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: &disabled},
	}
}

func (b *Bot) send(ctx context.Context, chatID int64, params *bot.SendMessageParams) error {
	return b.rateLimiter.Send(ctx, chatID, func(ctx context.Context) error {
		_, err := b.api.SendMessage(ctx, params)
		return err
	})
}

// getSamplesKeyboard returns one button per sample whose callback data fits
// Telegram's limit.
func getSamplesKeyboard(names []string) [][]models.InlineKeyboardButton {
	var keyboard [][]models.InlineKeyboardButton

	for _, name := range names {
		if len(keyboard) == maxSampleButtons {
			break
		}

		data := sampleCallbackPrefix + name
		if len(data) > maxCallbackDataLen {
			continue
		}

		keyboard = append(keyboard, []models.InlineKeyboardButton{
			{Text: name, CallbackData: data},
		})
	}

	return keyboard
}
