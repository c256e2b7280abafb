package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"patientbrief/internal/analysis"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// Telegram bots cannot download files larger than this.
const maxDocumentSize = 20 << 20

var errNotJSONDocument = errors.New("document is not a .json file")

func (b *Bot) handleMessage(ctx context.Context, message *models.Message) error {
	chatID := message.Chat.ID

	return b.withSpinner(ctx, chatID, func() error {
		if message.Document != nil {
			return b.handleDocument(ctx, chatID, message.Document)
		}

		command, args := parseCommand(message.Text)

		switch command {
		case "/start", "/help":
			return b.handleStartCommand(ctx, chatID)
		case "/samples":
			return b.handleSamplesCommand(ctx, chatID)
		case "/sample":
			return b.handleSampleCommand(ctx, chatID, args)
		default:
			return b.handleStartCommand(ctx, chatID)
		}
	})
}

func (b *Bot) handleDocument(ctx context.Context, chatID int64, document *models.Document) error {
	if !strings.HasSuffix(strings.ToLower(document.FileName), ".json") {
		sendErr := b.sendMessageWithKeyboard(ctx, chatID, "✖️ Send the bundle as a \\.json document\\.", nil)
		return errors.Join(
			fmt.Errorf("%w (fileName = %q)", errNotJSONDocument, document.FileName),
			sendErr,
		)
	}

	if document.FileSize > maxDocumentSize {
		return b.sendMessageWithKeyboard(ctx, chatID, "✖️ The document is too large\\.", nil)
	}

	body, err := b.downloadDocument(ctx, document.FileID)
	if err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("download document: %w", err))
	}
	defer body.Close()

	stored, data, err := b.samples.SaveUpload(document.FileName, io.LimitReader(body, maxDocumentSize))
	if err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("save upload: %w", err))
	}

	b.log.InfoContext(ctx, "Upload is stored",
		"chatID", chatID,
		"path", stored,
		"size", len(data))

	return b.analyze(ctx, chatID, analysis.Source{Name: document.FileName, Data: data})
}

func (b *Bot) downloadDocument(ctx context.Context, fileID string) (io.ReadCloser, error) {
	file, err := b.api.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.api.FileDownloadLink(file), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// parseCommand splits "/cmd@botname args" into "/cmd" and "args".
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	command, args, _ := strings.Cut(text, " ")
	command, _, _ = strings.Cut(command, "@")

	return strings.ToLower(command), strings.TrimSpace(args)
}
