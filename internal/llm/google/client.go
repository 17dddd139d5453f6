// Package google adapts Google's genai SDK to the llm.Provider contract, as
// the third model in the §4.E fallback chain.
package google

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
)

// Client is a trimmed llm.Provider backed by the Gemini API.
type Client struct {
	sdk *genai.Client
}

// New builds a Client against the Gemini API using apiKey.
func New(ctx context.Context, apiKey string) (*Client, error) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  strings.TrimSpace(apiKey),
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &Client{sdk: c}, nil
}

// Generate implements llm.Provider: a single non-streaming generateContent
// call. System-role messages are concatenated ahead of the remaining
// content as there's no separate system-instruction channel wired here.
func (c *Client) Generate(ctx context.Context, model string, msgs []llm.Message) (string, error) {
	var sys strings.Builder
	var body strings.Builder
	for _, m := range msgs {
		if m.Role == "system" {
			sys.WriteString(m.Content)
			sys.WriteString("\n\n")
			continue
		}
		body.WriteString(m.Content)
		body.WriteString("\n")
	}

	prompt := sys.String() + body.String()

	resp, err := c.sdk.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		if llm.Is403(err) {
			return "", &llm.ErrAccessDenied{Model: model}
		}
		return "", err
	}
	return resp.Text(), nil
}
