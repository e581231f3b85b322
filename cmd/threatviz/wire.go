package main

import (
	"log/slog"

	"github.com/zero-day-ai/threatviz/internal/config"
	"github.com/zero-day-ai/threatviz/internal/cve"
	"github.com/zero-day-ai/threatviz/internal/knowledge"
	"github.com/zero-day-ai/threatviz/internal/knowledge/embedder"
	"github.com/zero-day-ai/threatviz/internal/llm/providers"
	"github.com/zero-day-ai/threatviz/internal/pipeline"
	"go.opentelemetry.io/otel"
)

const instrumentationName = "github.com/zero-day-ai/threatviz"

func sessionLogger() *slog.Logger {
	if current.logger != nil {
		return current.logger
	}
	return slog.Default()
}

// newStore builds the knowledge store described by cfg.
func newStore(cfg *config.Config) (*knowledge.Store, error) {
	logger := sessionLogger()

	emb, err := embedder.New(cfg.Knowledge.Embedder)
	if err != nil {
		return nil, err
	}

	ingester := knowledge.NewIngester(knowledge.IngesterConfig{
		UserAgent: cfg.Registry.UserAgent,
		Logger:    logger,
	})

	return knowledge.NewStore(knowledge.StoreConfig{
		Root:         cfg.Knowledge.IndexDir,
		Embedder:     emb,
		Ingester:     ingester,
		ChunkOptions: cfg.Knowledge.ChunkOptions(),
		Corpus:       cfg.Knowledge.Corpus().Sources(),
		Logger:       logger,
		Tracer:       otel.Tracer(instrumentationName),
	})
}

// newPipeline wires the registry client, the store's retriever and the
// provider resolver into a Pipeline.
func newPipeline(cfg *config.Config, store *knowledge.Store) (*pipeline.Pipeline, error) {
	logger := sessionLogger()
	tracer := otel.Tracer(instrumentationName)

	client := cve.NewClient(cve.Config{
		BaseURL:           cfg.Registry.BaseURL,
		UserAgent:         cfg.Registry.UserAgent,
		Timeout:           cfg.Registry.Timeout,
		RequestsPerSecond: cfg.Registry.RequestsPerSecond,
		Logger:            logger,
		Tracer:            tracer,
	})

	resolver := providers.NewResolver(providers.ResolverConfig{
		Providers: cfg.LLM.ProviderConfigs(),
		Timeout:   cfg.LLM.Timeout,
		MaxTokens: cfg.LLM.MaxTokens,
		Logger:    logger,
		Tracer:    tracer,
	})

	return pipeline.New(client, store.Retriever(cfg.Knowledge.IndexName), resolver,
		pipeline.WithTopK(cfg.Knowledge.TopK),
		pipeline.WithLogger(logger),
		pipeline.WithTracer(tracer),
		pipeline.WithMeter(otel.Meter(instrumentationName)),
	)
}
