// cmd/advisor/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"car-advisor/internal/api"
	"car-advisor/internal/common/cache"
	"car-advisor/internal/common/camunda"
	"car-advisor/internal/common/config"
	"car-advisor/internal/common/database"
	"car-advisor/internal/common/logger"
	"car-advisor/internal/common/observability"
	"car-advisor/internal/common/prompts"
	"car-advisor/internal/conversation"
	"car-advisor/internal/imagesearch"
	"car-advisor/internal/llm"
	"car-advisor/internal/pipeline"
	"car-advisor/internal/stages/advise"
	"car-advisor/internal/stages/elaborate"
	"car-advisor/internal/stages/enrich"
	"car-advisor/internal/stages/intent"
	"car-advisor/internal/stages/suggest"
	"car-advisor/internal/stages/translate"
	findcars "car-advisor/internal/workers/car-search/find-cars"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting car advisor",
		zap.String("environment", cfg.App.Environment),
		zap.String("model", cfg.LLM.Model),
		zap.String("visionModel", cfg.LLM.VisionModel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	var tracer observability.Tracer = observability.NopTracer{}
	if cfg.Tracing.Enabled {
		provider, err := observability.NewTracerProvider(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint, cfg.Tracing.SampleRatio)
		if err != nil {
			zapLog.Fatal("tracer provider init failed", zap.Error(err))
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		}()
		tracer = observability.NewOTelTracer(provider, cfg.Tracing.ServiceName)
	}

	runMetrics, err := observability.NewMetrics(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel metrics disabled", zap.Error(err))
	}
	defer func() { _ = runMetrics.Shutdown(context.Background()) }()

	// --- Cache ---
	imageCache, closeCache := buildCache(ctx, cfg, zapLog)
	defer closeCache()

	// --- Backends ---
	llmClient := llm.NewClient(&llm.Config{
		BaseURL:           cfg.LLM.BaseURL,
		Model:             cfg.LLM.Model,
		VisionModel:       cfg.LLM.VisionModel,
		Temperature:       cfg.LLM.Temperature,
		MaxTokens:         cfg.LLM.MaxTokens,
		Timeout:           config.GetDuration(cfg.LLM.Timeout),
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		Burst:             cfg.LLM.Burst,
	}, log, llm.WithTracer(tracer))

	verifyCtx, cancelVerify := context.WithTimeout(ctx, 10*time.Second)
	if ok, err := llmClient.VerifyBackend(verifyCtx); err != nil {
		zapLog.Warn("model backend unreachable at startup", zap.Error(err))
	} else if !ok {
		zapLog.Warn("configured model not served by backend", zap.String("model", cfg.LLM.Model))
	}
	cancelVerify()

	imageSearch := imagesearch.NewClient(&imagesearch.Config{
		BaseURL:            cfg.ImageSearch.BaseURL,
		APIKey:             cfg.ImageSearch.APIKey,
		EngineID:           cfg.ImageSearch.EngineID,
		MaxResults:         cfg.ImageSearch.MaxResults,
		Timeout:            config.GetDuration(cfg.ImageSearch.Timeout),
		MaxRetries:         cfg.ImageSearch.MaxRetries,
		CacheTTL:           config.GetSeconds(cfg.ImageSearch.CacheTTL),
		BreakerMaxFailures: uint32(cfg.ImageSearch.Breaker.MaxFailures),
		BreakerOpenTimeout: config.GetDuration(cfg.ImageSearch.Breaker.OpenTimeout),
	}, imageCache, log)

	promptLoader := prompts.NewLoader(cfg.Prompts.Dir)
	if err := promptLoader.Preload(prompts.All...); err != nil {
		zapLog.Fatal("prompt templates missing", zap.String("dir", cfg.Prompts.Dir), zap.Error(err))
	}

	// --- Stages ---
	stages, err := buildStages(cfg, llmClient, imageSearch, promptLoader, tracer, log)
	if err != nil {
		zapLog.Fatal("stage config invalid", zap.Error(err))
	}

	store := conversation.NewMemoryStore(&conversation.Config{
		TTL:           config.GetSeconds(cfg.Conversation.TTL),
		SweepInterval: config.GetSeconds(cfg.Conversation.SweepInterval),
	}, log)
	store.Start(ctx)
	defer store.Close()

	orchestrator := pipeline.New(stages, store, log,
		pipeline.WithTracer(tracer),
		pipeline.WithRunMetrics(runMetrics),
	)

	// --- Zeebe workers ---
	if cfg.Camunda.Enabled {
		zeebeClient, workers := startWorkers(ctx, cfg, orchestrator, log, zapLog)
		defer func() {
			for _, w := range workers {
				w.Stop()
			}
			if err := zeebeClient.Close(); err != nil {
				zapLog.Error("error closing zeebe client", zap.Error(err))
			}
		}()
	}

	// --- HTTP API ---
	handler := api.NewHandler(orchestrator, llmClient, config.GetDuration(cfg.Server.RequestTimeout), log)
	server := &http.Server{
		Addr: cfg.Server.Address,
		Handler: api.NewRouter(handler, api.RouterConfig{
			CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
			RateLimitRequests:  cfg.Server.RateLimitRequests,
			RateLimitWindow:    config.GetSeconds(cfg.Server.RateLimitWindow),
		}, log),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("http server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zapLog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	zapLog.Info("car advisor stopped")
}

func buildCache(ctx context.Context, cfg *config.Config, zapLog *zap.Logger) (cache.Cache, func()) {
	if cfg.Cache.Backend == "redis" {
		redisClient, err := database.NewRedis(cfg.Database.Redis)
		if err != nil {
			zapLog.Fatal("redis init failed", zap.Error(err))
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := redisClient.Ping(pingCtx); err != nil {
			zapLog.Fatal("redis unreachable", zap.String("address", cfg.Database.Redis.Address), zap.Error(err))
		}
		zapLog.Info("using redis cache", zap.String("address", cfg.Database.Redis.Address))
		return cache.NewRedisCache(redisClient, cfg.Cache.KeyPrefix), func() { _ = redisClient.Close() }
	}

	memory := cache.NewMemoryCache()
	memory.Start(time.Minute)
	return memory, memory.Close
}

// stageConfigs maps the global config onto the stages that take tuning from it.
type stageConfigs struct {
	elaborate *elaborate.Config
	translate *translate.Config
	enrich    *enrich.Config
}

func buildStageConfigs(cfg *config.Config) (stageConfigs, error) {
	elaborateCfg := elaborate.DefaultConfig()
	elaborateCfg.Concurrency = cfg.Elaboration.Concurrency

	translateCfg := translate.DefaultConfig()
	translateCfg.Sequential = cfg.Translation.Sequential
	translateCfg.Concurrency = cfg.Translation.Concurrency
	translateCfg.SourceLanguage = cfg.Translation.SourceLanguage
	translateCfg.MinAnalysisLength = cfg.Translation.MinAnalysisLength

	enrichCfg := &enrich.Config{
		ModelThreshold: cfg.Enrichment.ModelThreshold,
		TextThreshold:  cfg.Enrichment.TextThreshold,
		FallbackImages: cfg.Enrichment.FallbackImages,
		MaxImages:      cfg.Enrichment.MaxImages,
		Concurrency:    cfg.Enrichment.Concurrency,
		FetchTimeout:   config.GetDuration(cfg.Enrichment.FetchTimeout),
		MaxImageBytes:  cfg.Enrichment.MaxImageBytes,
	}

	if err := elaborateCfg.Validate(); err != nil {
		return stageConfigs{}, err
	}
	if err := translateCfg.Validate(); err != nil {
		return stageConfigs{}, err
	}
	if err := enrichCfg.Validate(); err != nil {
		return stageConfigs{}, err
	}
	return stageConfigs{elaborate: elaborateCfg, translate: translateCfg, enrich: enrichCfg}, nil
}

func buildStages(
	cfg *config.Config,
	llmClient *llm.Client,
	imageSearch imagesearch.Searcher,
	source prompts.Source,
	tracer observability.Tracer,
	log logger.Logger,
) (pipeline.Stages, error) {
	sc, err := buildStageConfigs(cfg)
	if err != nil {
		return pipeline.Stages{}, err
	}
	fetcher := enrich.NewHTTPFetcher(sc.enrich.FetchTimeout, sc.enrich.MaxImageBytes)

	return pipeline.Stages{
		Intent:    intent.NewHandler(intent.DefaultConfig(), llmClient, source, tracer, log),
		Suggest:   suggest.NewHandler(suggest.DefaultConfig(), llmClient, source, tracer, log),
		Elaborate: elaborate.NewHandler(sc.elaborate, llmClient, source, tracer, log),
		Translate: translate.NewHandler(sc.translate, llmClient, source, tracer, log),
		Enrich:    enrich.NewHandler(sc.enrich, imageSearch, fetcher, llmClient, llmClient.VisionModel(), source, tracer, log),
		Advise:    advise.NewHandler(advise.DefaultConfig(), llmClient, source, tracer, log),
	}, nil
}

func startWorkers(
	ctx context.Context,
	cfg *config.Config,
	searcher findcars.Searcher,
	log logger.Logger,
	zapLog *zap.Logger,
) (*camunda.Client, []*camunda.CamundaWorker) {
	client, err := camunda.NewClientWithConfig(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		RetryConfig:            camunda.DefaultRetryConfig,
	})
	if err != nil {
		zapLog.Fatal("zeebe client init failed", zap.Error(err))
	}

	// Viper splits keys on dots, so workers are configured by the task type's last segment.
	taskTypes := map[string]string{
		"find-cars":     findcars.TaskTypeFindCars,
		"refine-search": findcars.TaskTypeRefineSearch,
	}

	var workers []*camunda.CamundaWorker
	for name, taskType := range taskTypes {
		if !config.IsWorkerEnabled(cfg, name) {
			zapLog.Info("worker disabled", zap.String("taskType", taskType))
			continue
		}
		wcfg := config.GetWorkerConfig(cfg, name)

		handlerCfg := findcars.DefaultConfig()
		handlerCfg.MaxJobsActive = wcfg.MaxJobsActive
		handlerCfg.Timeout = config.GetDuration(wcfg.Timeout)
		if err := handlerCfg.Validate(); err != nil {
			zapLog.Fatal("worker config invalid", zap.String("taskType", taskType), zap.Error(err))
		}

		handler := findcars.NewHandler(handlerCfg, searcher, log)
		workers = append(workers, camunda.NewWorker(client.GetClient(), camunda.WorkerConfig{
			TaskType:      taskType,
			MaxJobsActive: handlerCfg.MaxJobsActive,
			Timeout:       handlerCfg.Timeout + 30*time.Second,
		}, handler, log))
	}
	return client, workers
}
