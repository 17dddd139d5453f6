package testhelpers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
)

func TestFakeProvider_Generate(t *testing.T) {
	fp := &FakeProvider{Responses: []string{`{"ok":true}`}, Default: `{}`}

	resp, err := fp.Generate(context.Background(), "cheap-model", []llm.Message{
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, resp)
	require.Equal(t, 1, fp.CallCount())

	resp, err = fp.Generate(context.Background(), "cheap-model", nil)
	require.NoError(t, err)
	require.Equal(t, `{}`, resp, "falls back to Default once Responses is exhausted")
}

func TestFakeProvider_Error(t *testing.T) {
	fp := &FakeProvider{Err: errors.New("boom")}
	_, err := fp.Generate(context.Background(), "m", nil)
	require.Error(t, err)
}

func TestWaitGroupDoneOnce(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	done := WaitGroupDoneOnce(&wg)
	done()
	done()
	wg.Wait()
}
