package relevance

import "testing"

func TestClassifyTier1Regulatory(t *testing.T) {
	r := Classify("SEC sues major exchange over unregistered securities", "", "coindesk")
	if r.Tier != 1 {
		t.Errorf("expected tier 1, got %d (%s)", r.Tier, r.Reason)
	}
}

func TestClassifyTier2HistoricalSecurity(t *testing.T) {
	r := Classify("Hacker sentenced to prison for 2016 exchange breach", "", "")
	if r.Tier != 2 || r.Reason != "historical_security" {
		t.Errorf("expected demoted tier 2 historical_security, got tier %d reason %s", r.Tier, r.Reason)
	}
}

func TestClassifyTier3Speculation(t *testing.T) {
	r := Classify("Could Bitcoin Launch a 50% Rally This Week?", "", "")
	if r.Tier != 3 {
		t.Errorf("expected tier 3, got %d", r.Tier)
	}
}

func TestClassifyTier3NonCryptoStock(t *testing.T) {
	r := Classify("Investors sold NVDA ahead of earnings", "", "")
	if r.Tier != 3 {
		t.Errorf("expected tier 3 for stock-only article, got %d", r.Tier)
	}
}

func TestClassifyStockArticleWithCryptoContextNotDemoted(t *testing.T) {
	r := Classify("Bitcoin miner sold NVDA GPUs to fund expansion", "", "")
	if r.Tier == 3 {
		t.Errorf("expected crypto-context stock mention to not be tier 3, got %d", r.Tier)
	}
}

func TestClassifyDefaultTier2(t *testing.T) {
	r := Classify("Weekly roundup of altcoin market activity", "", "")
	if r.Tier != 2 || r.Reason != "default" {
		t.Errorf("expected default tier 2, got tier %d reason %s", r.Tier, r.Reason)
	}
}

func TestClassifyBodyFallback(t *testing.T) {
	r := Classify("Weekly update", "Exchange suffers major exploit draining user funds", "")
	if r.Tier != 1 || r.Reason != "high_signal_body" {
		t.Errorf("expected high_signal_body tier 1, got tier %d reason %s", r.Tier, r.Reason)
	}
}
