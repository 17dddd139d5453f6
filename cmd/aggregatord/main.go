// Command aggregatord is the process entry point: it wires every store,
// the LLM gateway, the six recurring workers (§5), and the read-only HTTP
// query API (§6) into a single long-running daemon, then blocks until
// SIGINT/SIGTERM, draining in-flight work before exit.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/alerts"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/analytics"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/archive"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/config"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/enrichment"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/events"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/gateway"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/httpapi"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/ingest"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm/anthropic"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm/google"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/llm/openai"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/logging"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/narrative"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/observability"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence/databases"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/persistence/rediscache"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/signals"
	"github.com/mikechavez/crypto-news-aggregator-sub000/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Log.Fatal().Err(err).Msg("load_config_failed")
	}

	log := logging.New(cfg.Obs.ServiceName, cfg.Obs.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.InitOTel(ctx, cfg.Obs)
	if err != nil {
		log.Fatal().Err(err).Msg("init_otel_failed")
	}
	defer func() { _ = shutdownOTel(context.Background()) }()

	store, err := databases.NewManager(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("init_store_failed")
	}
	defer store.Close()

	httpClient := observability.NewHTTPClient(&http.Client{Timeout: cfg.LLM.RequestTimeout})

	providers := map[string]llm.Provider{}
	if cfg.LLM.AnthropicAPIKey != "" {
		providers[cfg.LLM.CheapModel] = anthropic.New(cfg.LLM.AnthropicAPIKey, httpClient)
		providers[cfg.LLM.CapableModel] = anthropic.New(cfg.LLM.AnthropicAPIKey, httpClient)
	}
	if cfg.LLM.OpenAIAPIKey != "" {
		oa := openai.New(cfg.LLM.OpenAIAPIKey, httpClient)
		for _, m := range cfg.LLM.FallbackModel {
			providers[m] = oa
		}
	}
	if cfg.LLM.GeminiAPIKey != "" {
		gc, err := google.New(ctx, cfg.LLM.GeminiAPIKey)
		if err != nil {
			log.Warn().Err(err).Msg("init_gemini_client_failed")
		} else {
			for _, m := range cfg.LLM.FallbackModel {
				providers[m] = gc
			}
		}
	}

	pricing := make(map[string]llm.ModelPrice, len(cfg.LLM.PricingPerMillion))
	for model, p := range cfg.LLM.PricingPerMillion {
		pricing[model] = llm.ModelPrice{InputUSD: p.InputUSD, OutputUSD: p.OutputUSD}
	}
	costTracker := llm.NewCostTracker(store.APICosts, pricing, cfg.LLM.DefaultPricingModel)

	var cacheStore persistence.LLMCacheStore = store.LLMCache
	redisStore, err := rediscache.New(ctx, cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("init_redis_cache_failed")
	}
	if redisStore != nil {
		cacheStore = redisStore
		defer redisStore.Close()
	}
	responseCache := llm.NewResponseCache(cacheStore, cfg.Cache.TTL)
	gw := gateway.New(providers, responseCache, costTracker, cfg.LLM.CheapModel, cfg.LLM.CapableModel, cfg.LLM.FallbackModel)

	enrichPipeline := enrichment.New(store.Articles, store.EntityMentions, gw, cfg.Enrichment.EntityExtractionBatchSize, cfg.Ingest.SourceBlacklist)
	scorer := signals.NewScorer(store.EntityMentions, store.SignalScores)
	detector := narrative.New(store.Articles, store.Narratives, gw, narrative.Config{
		LookbackHours:    cfg.Narrative.LookbackHours,
		MinClusterSize:   cfg.Narrative.MinClusterSize,
		NucleusBlacklist: cfg.Narrative.NucleusBlacklist,
	})
	alertWatcher := alerts.New(store.EntityMentions, store.SignalScores, store.EntityAlerts, log)

	textFetcher := ingest.NewReaderTextFetcher(cfg.Ingest.FetchTimeout, log)
	var fullText ingest.FullTextFetcher
	if cfg.Ingest.FullTextFetch {
		fullText = textFetcher
	}
	fetcher := ingest.New(store.Articles, cfg.Ingest, fullText, log)

	archiver, err := archive.New(ctx, cfg.Archive, log)
	if err != nil {
		log.Warn().Err(err).Msg("init_archive_failed")
	}
	if archiver != nil {
		fetcher.WithSnapshotter(archiver)
	}

	analyticsSink, err := analytics.New(ctx, cfg.Analytics, log)
	if err != nil {
		log.Warn().Err(err).Msg("init_analytics_failed")
	}
	defer analyticsSink.Close()

	eventPublisher, err := events.New(cfg.Events, log)
	if err != nil {
		log.Warn().Err(err).Msg("init_events_failed")
	}
	defer eventPublisher.Close()
	if eventPublisher != nil {
		detector.WithEventPublisher(eventPublisher)
	}

	sched := worker.New(log)
	mustAdd(sched, ctx, worker.Job{
		Name: "rss-fetch", Spec: "0 */5 * * * *",
		Run: func(ctx context.Context) error {
			fetcher.SyncAll(ctx)
			return nil
		},
	})
	mustAdd(sched, ctx, worker.Job{
		Name: "enrichment", Spec: "0 */2 * * * *",
		Run: func(ctx context.Context) error {
			_, err := enrichPipeline.Run(ctx)
			return err
		},
	})
	mustAdd(sched, ctx, worker.Job{
		Name: "signal-scoring", Spec: "0 */3 * * * *",
		Run: func(ctx context.Context) error {
			if err := scorer.RunCycle(ctx, ""); err != nil {
				return err
			}
			if analyticsSink != nil {
				recordedAt := time.Now().UTC()
				scores, terr := store.SignalScores.Trending(ctx, "24h", 1000, 0)
				if terr == nil {
					for _, sc := range scores {
						analyticsSink.RecordSnapshot(ctx, sc, recordedAt)
					}
				}
			}
			_, err := scorer.DeleteStaleBefore(ctx, time.Now().UTC())
			return err
		},
	})
	mustAdd(sched, ctx, worker.Job{
		Name: "narrative-detection", Spec: "0 */10 * * * *",
		Run: func(ctx context.Context) error {
			_, err := detector.Run(ctx)
			return err
		},
	})
	mustAdd(sched, ctx, worker.Job{
		Name: "consolidation", Spec: "0 0 * * * *",
		Run: func(ctx context.Context) error {
			_, err := detector.Consolidate(ctx)
			return err
		},
	})
	mustAdd(sched, ctx, worker.Job{
		Name: "entity-alerts", Spec: "0 */5 * * * *",
		Run: func(ctx context.Context) error {
			_, err := alertWatcher.Run(ctx)
			return err
		},
	})
	sched.Start()
	defer sched.Stop()

	apiServer := httpapi.NewServer(store, responseCache, costTracker, httpapi.Cycles{
		Enrichment: enrichPipeline,
		Scorer:     scorer,
		Detector:   detector,
	}, cfg.Admin.APIKey, log)

	httpSrv := &http.Server{Addr: ":8080", Handler: apiServer}
	go func() {
		log.Info().Str("addr", httpSrv.Addr).Msg("http_api_listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http_api_failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

func mustAdd(s *worker.Scheduler, ctx context.Context, job worker.Job) {
	if err := s.Add(ctx, job); err != nil {
		logging.Log.Fatal().Err(err).Str("job", job.Name).Msg("schedule_job_failed")
	}
}
