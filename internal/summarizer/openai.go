package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const DefaultModel = "gpt-4o"

// OpenAICompleter calls OpenAI's Chat Completions API and returns the first choice.
type OpenAICompleter struct {
	client openai.Client
	model  string
}

// NewOpenAICompleter builds a completer for a fixed model. Retries are
// disabled: a failed request is reported to the caller as is.
func NewOpenAICompleter(apiKey string, model string, opts ...option.RequestOption) (*OpenAICompleter, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}

	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &OpenAICompleter{
		client: openai.NewClient(clientOpts...),
		model:  model,
	}, nil
}

func (c *OpenAICompleter) Complete(
	ctx context.Context,
	system string,
	prompt string,
) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("response has no choices (model = %s)", resp.Model)
	}

	return resp.Choices[0].Message.Content, nil
}
