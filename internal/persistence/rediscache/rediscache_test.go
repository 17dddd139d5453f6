package rediscache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
)

func TestNewDisabledReturnsNil(t *testing.T) {
	store, err := New(t.Context(), config.RedisConfig{Enabled: false})
	require.NoError(t, err)
	require.Nil(t, store)
}
