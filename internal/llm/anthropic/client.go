// Package anthropic adapts the Anthropic SDK to the llm.Provider contract,
// trimmed from the donor's streaming/tool-calling chat client down to the
// single non-streaming structured-JSON call this domain needs.
package anthropic

import (
	"context"
	"net/http"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
)

const defaultMaxTokens = 2048

// Client is a trimmed llm.Provider backed by the Anthropic Messages API.
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

// Generate implements llm.Provider: a single non-streaming call against the
// named model, with every system-role message (if any) joined and split out
// as the Anthropic system prompt.
func (c *Client) Generate(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	var system string
	var converted []sdk.MessageParam
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		case "assistant":
			converted = append(converted, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Content)))
		default:
			converted = append(converted, sdk.NewUserMessage(sdk.NewTextBlock(m.Content)))
		}
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(model),
		MaxTokens: defaultMaxTokens,
		Messages:  converted,
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		if isForbidden(err) {
			return "", &llm.ErrAccessDenied{Model: model}
		}
		return "", err
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if text := block.Text; text != "" {
			out.WriteString(text)
		}
	}
	return out.String(), nil
}

func isForbidden(err error) bool {
	var apiErr *sdk.Error
	if ok := asAnthropicError(err, &apiErr); ok {
		return apiErr.StatusCode == http.StatusForbidden
	}
	return llm.Is403(err)
}

func asAnthropicError(err error, target **sdk.Error) bool {
	ae, ok := err.(*sdk.Error)
	if !ok {
		return false
	}
	*target = ae
	return true
}
