package bot

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"patientbrief/internal/analysis"
	"patientbrief/internal/domain"
	"patientbrief/internal/ratelimiter"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

const (
	updateProcessingTimeout = 3 * time.Minute
	downloadTimeout         = 30 * time.Second
)

type Analyzer interface {
	Analyze(ctx context.Context, src analysis.Source) (*domain.Analysis, error)
}

type Samples interface {
	List() ([]string, error)
	Open(name string) ([]byte, error)
	SaveUpload(name string, r io.Reader) (string, []byte, error)
}

// telegramAPI is the part of *bot.Bot the handlers use.
type telegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

type Bot struct {
	tg           *bot.Bot
	api          telegramAPI
	rateLimiter  *ratelimiter.RateLimiter
	analyzer     Analyzer
	samples      Samples
	httpClient   *http.Client
	allowedUsers []int64
	log          *slog.Logger
}

func New(
	token string,
	analyzer Analyzer,
	samples Samples,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	b := newBot(nil, analyzer, samples, allowedUsers, log)

	tg, err := bot.New(strings.TrimSpace(token), bot.WithDefaultHandler(b.handleUpdate))
	if err != nil {
		b.rateLimiter.Stop()
		return nil, err
	}

	b.tg = tg
	b.api = tg

	return b, nil
}

func newBot(
	api telegramAPI,
	analyzer Analyzer,
	samples Samples,
	allowedUsers []int64,
	log *slog.Logger,
) *Bot {
	return &Bot{
		api:          api,
		rateLimiter:  ratelimiter.New(log),
		analyzer:     analyzer,
		samples:      samples,
		httpClient:   &http.Client{Timeout: downloadTimeout},
		allowedUsers: allowedUsers,
		log:          log,
	}
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	b.log.InfoContext(ctx, "Bot is started",
		"allowedUserCount", len(b.allowedUsers))

	b.tg.Start(ctx)

	b.log.InfoContext(ctx, "Bot context is done",
		"error", ctx.Err())
}

func (b *Bot) Stop() {
	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) handleUpdate(ctx context.Context, _ *bot.Bot, update *models.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := update.Message

		var userID int64
		var username string
		if message.From != nil {
			userID = message.From.ID
			username = message.From.Username
		}

		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", message.Chat.ID,
				"username", username,
				"chatType", message.Chat.Type)

			return
		}

		if err := b.handleMessage(updateCtx, message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", message.Chat.ID,
				"userID", userID,
				"chatType", message.Chat.Type,
				"messageID", message.ID)
		}

	case update.CallbackQuery != nil:
		callback := update.CallbackQuery
		chatID := callbackChatID(callback)

		if !b.userAllowed(callback.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", callback.From.ID,
				"chatID", chatID,
				"username", callback.From.Username,
				"data", callback.Data)

			return
		}

		if err := b.handleCallbackQuery(updateCtx, callback); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", callback.From.ID,
				"data", callback.Data)
		}
	}
}

// userAllowed reports whether userID may use the bot. An empty list allows
// everyone.
func (b *Bot) userAllowed(userID int64) bool {
	if len(b.allowedUsers) == 0 {
		return true
	}

	return slices.Contains(b.allowedUsers, userID)
}

func callbackChatID(cb *models.CallbackQuery) int64 {
	if cb != nil && cb.Message.Message != nil {
		return cb.Message.Message.Chat.ID
	}

	return 0
}
