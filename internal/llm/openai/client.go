// Package openai adapts the OpenAI SDK to the llm.Provider contract,
// trimmed from the donor's streaming/tool-calling/responses-API client down
// to a single non-streaming chat completion call.
package openai

import (
	"context"
	"net/http"
	"strings"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
)

// Client is a trimmed llm.Provider backed by OpenAI's chat completions API.
type Client struct {
	sdk sdk.Client
}

// New builds a Client. httpClient may be nil to use http.DefaultClient.
func New(apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		sdk: sdk.NewClient(
			option.WithAPIKey(strings.TrimSpace(apiKey)),
			option.WithHTTPClient(httpClient),
		),
	}
}

// Generate implements llm.Provider: a single non-streaming chat completion.
func (c *Client) Generate(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	var converted []sdk.ChatCompletionMessageParamUnion
	for _, m := range msgs {
		switch m.Role {
		case "system":
			converted = append(converted, sdk.SystemMessage(m.Content))
		case "assistant":
			converted = append(converted, sdk.AssistantMessage(m.Content))
		default:
			converted = append(converted, sdk.UserMessage(m.Content))
		}
	}

	resp, err := c.sdk.Chat.Completions.New(ctx, sdk.ChatCompletionNewParams{
		Model:    model,
		Messages: converted,
	})
	if err != nil {
		if isForbidden(err) {
			return "", &llm.ErrAccessDenied{Model: model}
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func isForbidden(err error) bool {
	var apiErr *sdk.Error
	if ae, ok := err.(*sdk.Error); ok {
		apiErr = ae
		return apiErr.StatusCode == http.StatusForbidden
	}
	return llm.Is403(err)
}
