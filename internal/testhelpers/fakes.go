// Package testhelpers supplies fakes used across the aggregator's test
// suites: a scripted LLM provider, so enrichment, gateway, and narrative
// tests don't depend on real vendor calls, and a once-only WaitGroup helper.
package testhelpers

import (
	"context"
	"sync"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
)

// FakeProvider is a scripted llm.Provider for tests. Responses queues one
// response per call in order; once exhausted, Default is returned. Err, if
// set, is returned instead of a response on every call.
type FakeProvider struct {
	mu sync.Mutex

	Responses []string
	Default   string
	Err       error

	Calls []FakeCall
}

// FakeCall records one invocation of FakeProvider.Generate for assertions.
type FakeCall struct {
	Model string
	Msgs  []llm.Message
}

func (f *FakeProvider) Generate(_ context.Context, model string, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, FakeCall{Model: model, Msgs: msgs})

	if f.Err != nil {
		return "", f.Err
	}
	if len(f.Responses) > 0 {
		resp := f.Responses[0]
		f.Responses = f.Responses[1:]
		return resp, nil
	}
	return f.Default, nil
}

// CallCount returns how many times Generate has been invoked.
func (f *FakeProvider) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// WaitGroupDoneOnce returns a function that calls wg.Done() only once,
// useful for tests that might trigger completion from multiple goroutines.
func WaitGroupDoneOnce(wg *sync.WaitGroup) func() {
	once := sync.Once{}
	return func() { once.Do(wg.Done) }
}
