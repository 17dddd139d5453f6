// Package config loads process configuration from the environment (with an
// optional .env file) and an optional YAML overlay for structured settings
// that don't fit comfortably into flat env vars (source lists, pricing
// tables, fallback model lists).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// LLMConfig holds vendor credentials and the two-tier model routing.
type LLMConfig struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GeminiAPIKey    string

	CheapModel    string
	CapableModel  string
	FallbackModel []string

	RequestTimeout      time.Duration
	BatchRequestTimeout  time.Duration
	PricingPerMillion    map[string]ModelPrice `yaml:"pricing"`
	DefaultPricingModel  string
}

// ModelPrice is the per-million-token input/output price for a model.
type ModelPrice struct {
	InputUSD  float64 `yaml:"input_usd"`
	OutputUSD float64 `yaml:"output_usd"`
}

// CacheConfig controls the LLM response cache.
type CacheConfig struct {
	TTL           time.Duration
	MaxSize       int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisEnabled  bool
}

// DBConfig selects and configures the document store backend.
type DBConfig struct {
	Backend    string // "memory" or "postgres"
	DSN        string
	MaxConns   int32
	MinConns   int32
}

// RedisConfig configures the optional Redis-backed LLM response cache store.
type RedisConfig struct {
	Enabled               bool
	Addr                  string
	Password              string
	DB                    int
	TLSInsecureSkipVerify bool
}

// IngestConfig controls RSS ingestion.
type IngestConfig struct {
	Sources          []SourceConfig `yaml:"sources"`
	FullTextFetch    bool
	SourceBlacklist  []string
	FetchTimeout     time.Duration
}

// SourceConfig names one RSS feed.
type SourceConfig struct {
	Name            string `yaml:"name"`
	URL             string `yaml:"url"`
	RequiresHeadless bool  `yaml:"requires_headless"`
}

// NarrativeConfig exposes the tunables named in the external-interfaces table.
type NarrativeConfig struct {
	LookbackHours          int
	DormantDaysThreshold   int
	ReactivationWindowDays int
	ShallowMergeSimilarity float64
	LinkStrengthThreshold  float64
	CoreActorSalience      float64
	MinClusterSize         int
	EnableLegacyThemePath  bool
	NucleusBlacklist       []string
}

// EnrichmentConfig controls the enrichment worker.
type EnrichmentConfig struct {
	EntityExtractionBatchSize int
}

// EventsConfig controls the optional Kafka narrative-event publisher.
type EventsConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// AnalyticsConfig controls the optional ClickHouse signal-history sink.
type AnalyticsConfig struct {
	Enabled bool
	DSN     string
}

// ArchiveConfig controls the optional S3 raw-article snapshot store.
type ArchiveConfig struct {
	Enabled bool
	Bucket  string
	Region  string
	Prefix  string
}

// ObservabilityConfig controls logging level and otel export.
type ObservabilityConfig struct {
	LogLevel        string
	ServiceName     string
	OTelEndpoint    string
	OTelInsecure    bool
}

// AdminConfig protects the read-only query/admin HTTP surface.
type AdminConfig struct {
	APIKey string
}

// Config is the fully resolved process configuration.
type Config struct {
	LLM          LLMConfig
	Cache        CacheConfig
	DB           DBConfig
	Redis        RedisConfig
	Ingest       IngestConfig
	Narrative    NarrativeConfig
	Enrichment   EnrichmentConfig
	Events       EventsConfig
	Analytics    AnalyticsConfig
	Archive      ArchiveConfig
	Obs          ObservabilityConfig
	Admin        AdminConfig
}

// Load reads configuration from the environment (overlaying a local .env file
// when present) and an optional YAML file for structured settings, then
// applies defaults and validates required fields.
func Load() (*Config, error) {
	_ = godotenv.Overload()

	cfg := &Config{}
	loadFromEnv(cfg)

	if path := firstNonEmpty(os.Getenv("AGGREGATOR_CONFIG"), "config.yaml"); fileExists(path) {
		if err := loadYAMLOverlay(cfg, path); err != nil {
			return nil, fmt.Errorf("load yaml overlay %s: %w", path, err)
		}
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromEnv(cfg *Config) {
	cfg.LLM.AnthropicAPIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	cfg.LLM.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.LLM.GeminiAPIKey = strings.TrimSpace(os.Getenv("GOOGLE_GEMINI_API_KEY"))
	if v := strings.TrimSpace(os.Getenv("LLM_CHEAP_MODEL")); v != "" {
		cfg.LLM.CheapModel = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_CAPABLE_MODEL")); v != "" {
		cfg.LLM.CapableModel = v
	}
	if v := strings.TrimSpace(os.Getenv("LLM_FALLBACK_MODELS")); v != "" {
		cfg.LLM.FallbackModel = parseCommaSeparatedList(v)
	}

	if v := parseIntEnv("LLM_CACHE_TTL_HOURS"); v > 0 {
		cfg.Cache.TTL = time.Duration(v) * time.Hour
	}
	if v := parseIntEnv("LLM_CACHE_MAX_SIZE"); v > 0 {
		cfg.Cache.MaxSize = v
	}
	cfg.Cache.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.Cache.RedisEnabled = cfg.Cache.RedisAddr != ""

	cfg.DB.Backend = strings.TrimSpace(os.Getenv("DB_BACKEND"))
	cfg.DB.DSN = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	cfg.Redis.Addr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.Redis.Enabled = cfg.Redis.Addr != ""
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")

	if v := parseIntEnv("NARRATIVE_LOOKBACK_HOURS"); v > 0 {
		cfg.Narrative.LookbackHours = v
	}
	if v := parseIntEnv("DORMANT_DAYS_THRESHOLD"); v > 0 {
		cfg.Narrative.DormantDaysThreshold = v
	}
	if v := parseIntEnv("REACTIVATION_WINDOW_DAYS"); v > 0 {
		cfg.Narrative.ReactivationWindowDays = v
	}
	if v := parseFloatEnv("SHALLOW_MERGE_SIMILARITY"); v > 0 {
		cfg.Narrative.ShallowMergeSimilarity = v
	}
	if v := parseFloatEnv("LINK_STRENGTH_THRESHOLD"); v > 0 {
		cfg.Narrative.LinkStrengthThreshold = v
	}
	if v := parseFloatEnv("CORE_ACTOR_SALIENCE"); v > 0 {
		cfg.Narrative.CoreActorSalience = v
	}
	cfg.Narrative.EnableLegacyThemePath = strings.EqualFold(os.Getenv("NARRATIVE_ENABLE_LEGACY_THEME_PATH"), "true")
	if v := strings.TrimSpace(os.Getenv("NARRATIVE_NUCLEUS_BLACKLIST")); v != "" {
		cfg.Narrative.NucleusBlacklist = parseCommaSeparatedList(v)
	}

	if v := parseIntEnv("ENTITY_EXTRACTION_BATCH_SIZE"); v > 0 {
		cfg.Enrichment.EntityExtractionBatchSize = v
	}

	cfg.Events.Brokers = parseCommaSeparatedList(os.Getenv("KAFKA_BROKERS"))
	cfg.Events.Enabled = len(cfg.Events.Brokers) > 0
	cfg.Events.Topic = firstNonEmpty(os.Getenv("KAFKA_NARRATIVE_TOPIC"), "narrative.lifecycle")

	cfg.Analytics.DSN = strings.TrimSpace(os.Getenv("CLICKHOUSE_DSN"))
	cfg.Analytics.Enabled = cfg.Analytics.DSN != ""

	cfg.Archive.Bucket = strings.TrimSpace(os.Getenv("ARCHIVE_S3_BUCKET"))
	cfg.Archive.Region = os.Getenv("ARCHIVE_S3_REGION")
	cfg.Archive.Enabled = cfg.Archive.Bucket != ""

	cfg.Obs.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	cfg.Obs.OTelEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")

	cfg.Admin.APIKey = os.Getenv("ADMIN_API_KEY")
}

func loadYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var overlay struct {
		Ingest struct {
			Sources []SourceConfig `yaml:"sources"`
		} `yaml:"ingest"`
		Pricing map[string]ModelPrice `yaml:"pricing"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}
	if len(overlay.Ingest.Sources) > 0 {
		cfg.Ingest.Sources = overlay.Ingest.Sources
	}
	if len(overlay.Pricing) > 0 {
		cfg.LLM.PricingPerMillion = overlay.Pricing
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.CheapModel == "" {
		cfg.LLM.CheapModel = "claude-3-5-haiku-latest"
	}
	if cfg.LLM.CapableModel == "" {
		cfg.LLM.CapableModel = "claude-3-5-sonnet-latest"
	}
	if len(cfg.LLM.FallbackModel) == 0 {
		cfg.LLM.FallbackModel = []string{"gpt-4o-mini", "gemini-1.5-flash"}
	}
	if cfg.LLM.RequestTimeout <= 0 {
		cfg.LLM.RequestTimeout = 30 * time.Second
	}
	if cfg.LLM.BatchRequestTimeout <= 0 {
		cfg.LLM.BatchRequestTimeout = 60 * time.Second
	}
	if cfg.LLM.DefaultPricingModel == "" {
		cfg.LLM.DefaultPricingModel = "claude-3-5-haiku-latest"
	}
	if cfg.LLM.PricingPerMillion == nil {
		cfg.LLM.PricingPerMillion = defaultPricingTable()
	}

	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = 168 * time.Hour
	}
	if cfg.Cache.MaxSize <= 0 {
		cfg.Cache.MaxSize = 10000
	}

	if cfg.DB.Backend == "" {
		cfg.DB.Backend = "memory"
	}
	if cfg.DB.MaxConns <= 0 {
		cfg.DB.MaxConns = 8
	}

	if cfg.Narrative.LookbackHours <= 0 {
		cfg.Narrative.LookbackHours = 48
	}
	if cfg.Narrative.DormantDaysThreshold <= 0 {
		cfg.Narrative.DormantDaysThreshold = 7
	}
	if cfg.Narrative.ReactivationWindowDays <= 0 {
		cfg.Narrative.ReactivationWindowDays = 30
	}
	if cfg.Narrative.ShallowMergeSimilarity <= 0 {
		cfg.Narrative.ShallowMergeSimilarity = 0.5
	}
	if cfg.Narrative.LinkStrengthThreshold <= 0 {
		cfg.Narrative.LinkStrengthThreshold = 0.8
	}
	if cfg.Narrative.CoreActorSalience <= 0 {
		cfg.Narrative.CoreActorSalience = 4.5
	}
	if cfg.Narrative.MinClusterSize <= 0 {
		cfg.Narrative.MinClusterSize = 3
	}
	if len(cfg.Narrative.NucleusBlacklist) == 0 {
		cfg.Narrative.NucleusBlacklist = defaultNucleusBlacklist()
	}

	if cfg.Enrichment.EntityExtractionBatchSize <= 0 {
		cfg.Enrichment.EntityExtractionBatchSize = 25
	}

	if cfg.Obs.LogLevel == "" {
		cfg.Obs.LogLevel = "info"
	}
	if cfg.Obs.ServiceName == "" {
		cfg.Obs.ServiceName = "crypto-news-aggregator"
	}

	if len(cfg.Ingest.Sources) == 0 {
		cfg.Ingest.Sources = defaultSources()
	}
	if cfg.Ingest.FetchTimeout <= 0 {
		cfg.Ingest.FetchTimeout = 30 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.DB.Backend == "postgres" && cfg.DB.DSN == "" {
		return errors.New("DATABASE_URL is required when DB_BACKEND=postgres")
	}
	if cfg.LLM.AnthropicAPIKey == "" && cfg.LLM.OpenAIAPIKey == "" && cfg.LLM.GeminiAPIKey == "" {
		return errors.New("at least one of ANTHROPIC_API_KEY, OPENAI_API_KEY, GOOGLE_GEMINI_API_KEY is required")
	}
	return nil
}

func defaultPricingTable() map[string]ModelPrice {
	return map[string]ModelPrice{
		"claude-3-5-haiku-latest":  {InputUSD: 0.80, OutputUSD: 4.00},
		"claude-3-5-sonnet-latest": {InputUSD: 3.00, OutputUSD: 15.00},
		"gpt-4o-mini":              {InputUSD: 0.15, OutputUSD: 0.60},
		"gpt-4o":                   {InputUSD: 2.50, OutputUSD: 10.00},
		"gemini-1.5-flash":         {InputUSD: 0.075, OutputUSD: 0.30},
	}
}

// defaultNucleusBlacklist names promotional or non-entity labels that
// sometimes surface as a nucleus_entity from LLM extraction and should never
// seed or match a narrative (§4.M step 2).
func defaultNucleusBlacklist() []string {
	return []string{"sponsored content", "press release", "advertorial"}
}

func defaultSources() []SourceConfig {
	names := []string{
		"coindesk", "cointelegraph", "decrypt", "theblock", "bitcoinmagazine",
		"cryptoslate", "cryptopotato", "newsbtc", "bloomberg", "reuters", "cnbc",
		"beincrypto", "ambcrypto",
	}
	out := make([]SourceConfig, 0, len(names))
	for _, n := range names {
		out = append(out, SourceConfig{Name: n})
	}
	return out
}

func parseIntEnv(key string) int {
	v, _ := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	return v
}

func parseFloatEnv(key string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	return v
}

func parseCommaSeparatedList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func fileExists(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}
