package llm

import "strings"

// Is403 reports whether err looks like an HTTP 403 (access denied) response
// from a vendor SDK. The anthropic-sdk-go, openai-go, and genai clients each
// wrap transport errors in their own error types rather than a shared one,
// so this matches on the status code vendor SDKs embed in their error
// strings rather than asserting a concrete type per vendor.
func Is403(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "403") && (strings.Contains(strings.ToLower(msg), "forbidden") ||
		strings.Contains(strings.ToLower(msg), "permission") ||
		strings.Contains(strings.ToLower(msg), "access"))
}
