package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *models.CallbackQuery) error {
	chatID := callbackChatID(callback)
	if chatID == 0 {
		return b.errorCallbackAnswer(ctx, callback, errors.New("callback message is inaccessible"))
	}

	return b.withSpinner(ctx, chatID, func() error {
		data := strings.TrimSpace(callback.Data)

		if name, ok := strings.CutPrefix(data, sampleCallbackPrefix); ok {
			return b.withEmptyCallbackAnswer(ctx, callback, func() error {
				return b.handleSampleCommand(ctx, chatID, name)
			})
		}

		return b.errorCallbackAnswer(ctx, callback, fmt.Errorf("unknown callback data %q", data))
	})
}

func (b *Bot) withEmptyCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	fn func() error,
) error {
	var errs []error

	if _, err := b.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
	}); err != nil {
		errs = append(errs, fmt.Errorf("answer callback query: %w", err))
	}

	if err := fn(); err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(
	ctx context.Context,
	callback *models.CallbackQuery,
	err error,
) error {
	if _, sendErr := b.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
		Text:            "❌ Failed.",
	}); sendErr != nil {
		return errors.Join(err, fmt.Errorf("answer callback query: %w", sendErr))
	}

	return err
}
