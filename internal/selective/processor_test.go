package selective

import (
	"context"
	"testing"
)

func TestShouldUseLLM(t *testing.T) {
	if !ShouldUseLLM("CoinDesk", "Routine update") {
		t.Error("premium source should always use LLM")
	}
	if ShouldUseLLM("NewsBTC", "SEC sues Binance") {
		t.Error("skip-LLM source should never use LLM regardless of keywords")
	}
	if !ShouldUseLLM("SomeMidTier", "SEC moves to ban crypto exchange") {
		t.Error("mid-tier source with important keyword should use LLM")
	}
	if ShouldUseLLM("SomeMidTier", "Quiet Tuesday in the markets") {
		t.Error("mid-tier source with no keyword should not use LLM")
	}
}

func TestExtractEntitiesSimple(t *testing.T) {
	a := Article{ID: "1", Source: "cryptoslate", Title: "Bitcoin rallies as ETH lags", Text: "BTC price action continues"}
	entities := ExtractEntitiesSimple(a)
	if len(entities) != 2 {
		t.Fatalf("expected 2 entities, got %d: %+v", len(entities), entities)
	}
	foundPrimary := false
	for _, e := range entities {
		if e.Name == "Bitcoin" && e.Primary {
			foundPrimary = true
			if e.Confidence != 0.85 {
				t.Errorf("expected primary confidence 0.85, got %f", e.Confidence)
			}
		}
	}
	if !foundPrimary {
		t.Error("expected Bitcoin to be marked primary (first title match)")
	}
}

func TestExtractEntitiesSimplePrimaryIsPositionBasedNotMapOrder(t *testing.T) {
	a := Article{ID: "1", Source: "cryptoslate", Title: "Ethereum and Bitcoin rally together", Text: ""}
	for i := 0; i < 20; i++ {
		entities := ExtractEntitiesSimple(a)
		for _, e := range entities {
			if e.Primary && e.Name != "Ethereum" {
				t.Fatalf("expected Ethereum (first match in title) to be primary, got %s primary instead", e.Name)
			}
		}
	}
}

func TestBatchProcessRegexOnly(t *testing.T) {
	articles := []Article{
		{ID: "1", Source: "newsbtc", Title: "Routine update", Text: "Bitcoin holds steady"},
	}
	result, err := BatchProcess(context.Background(), articles, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.LLMProcessed != 0 || result.SimpleProcessed != 1 {
		t.Errorf("expected all-regex batch, got llm=%d simple=%d", result.LLMProcessed, result.SimpleProcessed)
	}
}
