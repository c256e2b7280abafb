package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"patientbrief/internal/analysis"
	"patientbrief/internal/catalog"
	"patientbrief/internal/markdown"
	"patientbrief/internal/record"
	"patientbrief/internal/summarizer"
)

const welcomeText = `🩺 *Welcome to Patient Brief\!*

I turn a FHIR patient bundle into a readable clinical report and a list of matching clinical trials\.

– Send a \.json bundle as a document to analyze it
– Get available samples with /samples
– Analyze a sample with /sample \<name\>`

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	return b.sendMessageWithKeyboard(ctx, chatID, welcomeText, nil)
}

func (b *Bot) handleSamplesCommand(ctx context.Context, chatID int64) error {
	names, err := b.samples.List()
	if err != nil || len(names) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("list samples: %w", err))
		}

		sendErr := b.sendMessageWithKeyboard(ctx, chatID, "✖️ Sample list is empty or there is a bug\\.", nil)
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("🔍 *Found %d samples:*\n\n", len(names)))

	for i, name := range names {
		line := fmt.Sprintf("%d\\. `%s`\n", i+1, markdown.EscapeV2(name))

		if message.Len()+len(line) > telegramMessageMaxLength {
			break
		}

		message.WriteString(line)
	}

	if err = b.sendMessageWithKeyboard(ctx, chatID, message.String(), getSamplesKeyboard(names)); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return nil
}

func (b *Bot) handleSampleCommand(ctx context.Context, chatID int64, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ Usage: /sample \\<name\\>\\.", nil)
	}

	data, err := b.samples.Open(name)
	if err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("open sample: %w", err))
	}

	return b.analyze(ctx, chatID, analysis.Source{Name: name, Data: data})
}

func (b *Bot) analyze(ctx context.Context, chatID int64, src analysis.Source) error {
	result, err := b.analyzer.Analyze(ctx, src)
	if err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("analyze: %w", err))
	}

	return b.sendAnalysis(ctx, chatID, result)
}

// sendFailure reports err to the chat and returns it joined with any send
// error.
func (b *Bot) sendFailure(ctx context.Context, chatID int64, err error) error {
	if sendErr := b.sendMessageWithKeyboard(ctx, chatID, failureText(err), nil); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send message with keyboard: %w", sendErr))
	}

	return err
}

func failureText(err error) string {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return "✖️ Sample is not found\\. See /samples\\."
	case errors.Is(err, record.ErrMalformedDocument):
		return "❌ The document is not a valid patient bundle\\."
	case errors.Is(err, summarizer.ErrExternalService):
		return "❌ The narrative service failed\\. Try again later\\."
	default:
		return "❌ Failed\\."
	}
}
