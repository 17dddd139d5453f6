// Package llm declares the vendor-agnostic contract the gateway (§4.E) uses
// to reach the cheap and capable model tiers, plus the shared cache, cost
// tracker, and token-estimation helpers every vendor client and the gateway
// itself depend on.
package llm

import "context"

// Message is one turn in a structured-JSON completion request. The gateway
// only ever sends a system message (the extraction/classification contract)
// and a single user message (the article text); no tool-calling or
// streaming is needed for this domain.
type Message struct {
	Role    string // "system" | "user"
	Content string
}

// Provider is a single vendor's non-streaming JSON-mode completion call.
// Implementations live in internal/llm/anthropic, internal/llm/openai, and
// internal/llm/google.
type Provider interface {
	// Generate sends msgs to model and returns the raw text response. The
	// caller (internal/gateway) is responsible for JSON-parsing and
	// tolerating the vendor's markdown-fence/control-character quirks.
	Generate(ctx context.Context, model string, msgs []Message) (string, error)
}

// ErrAccessDenied is returned by a Provider when the vendor rejects the
// request with an HTTP 403 (model access denied for the configured key).
// The gateway catches this to advance to the next model in the fallback
// list per §4.E/§7.
type ErrAccessDenied struct {
	Model string
}

func (e *ErrAccessDenied) Error() string {
	return "llm: access denied for model " + e.Model
}
