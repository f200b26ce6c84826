package completion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

const defaultSystemPrompt = "You are a careful web developer. Follow the requested output format exactly."

// OpenAI talks to any OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	system string
}

// NewOpenAI builds a backend. An empty baseURL uses the public API.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, system: defaultSystemPrompt}
}

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", classifyOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", Transient(errors.New("openai: response had no choices"))
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", Transient(fmt.Errorf("openai: empty content (finish reason %q)", resp.Choices[0].FinishReason))
	}
	return content, nil
}

func classifyOpenAI(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyStatus(reqErr.HTTPStatusCode, err)
	}
	// Transport failures: refused connections, resets, deadlines.
	return Transient(fmt.Errorf("openai: %w", err))
}

func classifyStatus(code int, err error) error {
	wrapped := fmt.Errorf("openai: status %d: %w", code, err)
	switch {
	case code == http.StatusTooManyRequests, code >= 500:
		return Transient(wrapped)
	case code >= 400:
		return Fatal(wrapped)
	}
	return Transient(wrapped)
}
