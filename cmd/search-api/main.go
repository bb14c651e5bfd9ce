// cmd/search-api/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"semantic-search-api/internal/agents/executor"
	"semantic-search-api/internal/agents/intent"
	"semantic-search-api/internal/agents/planner"
	"semantic-search-api/internal/agents/resolver"
	"semantic-search-api/internal/agents/rewriter"
	"semantic-search-api/internal/agents/synthesizer"
	"semantic-search-api/internal/api"
	"semantic-search-api/internal/common/config"
	"semantic-search-api/internal/common/database"
	"semantic-search-api/internal/common/genai"
	"semantic-search-api/internal/common/logger"
	"semantic-search-api/internal/common/observability"
	"semantic-search-api/internal/memory"
	"semantic-search-api/internal/models"
	"semantic-search-api/internal/orchestrator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()
	log := logger.NewZapAdapter(zapLogger)

	log.Info("Starting search API", map[string]interface{}{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
		"backend":     cfg.Database.Type,
	})

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	llm := genai.NewClient(cfg.GenAI)
	extractor := intent.NewExtractor(llm, log, cfg.Pipeline.HistoryWindow)
	synth := synthesizer.New(llm, cfg.Pipeline.SummarySamples, log)

	dispatcher := executor.NewDispatcher(log)

	// Backend wiring. The company resolver and the rewriter only make
	// sense on the search backend; the relational path runs with inert
	// stand-ins.
	var (
		entityResolver orchestrator.EntityResolver = noopResolver{}
		queryRewriter  orchestrator.Rewriter       = noopRewriter{}
		queryPlanner   orchestrator.Planner
	)

	switch cfg.Database.Type {
	case "postgres":
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			log.Error("Postgres connection failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		defer pg.Close()
		if err := pingWithRetry(func() error { return pg.Ping(context.Background()) }, log); err != nil {
			log.Error("Postgres unreachable", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		dispatcher.Register(models.BackendPostgres, executor.NewSQLExecutor(pg.GetDB(), log))
		queryPlanner = planner.NewSQLPlanner(cfg.Pipeline.DefaultLimit)

	default: // elasticsearch
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			log.Error("Elasticsearch client creation failed", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		if err := pingWithRetry(es.Ping, log); err != nil {
			log.Error("Elasticsearch unreachable", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}

		companyResolver := resolver.NewCompanyResolver(
			es.Client,
			cfg.Database.Elasticsearch.CompanyIndex,
			cfg.Pipeline.ResolverLimit,
			log,
		)
		entityResolver = companyResolver
		queryRewriter = rewriter.NewRewriter(companyResolver.Resolve, log)
		queryPlanner = planner.NewElasticPlanner(cfg.Pipeline.DefaultLimit)
		dispatcher.Register(models.BackendElasticsearch,
			executor.NewElasticExecutor(es.Client, cfg.Database.Elasticsearch.DocumentIndex, log))
	}

	store, cleanup := buildSessionStore(cfg, log)
	defer cleanup()

	orch := orchestrator.New(
		store,
		extractor,
		entityResolver,
		queryPlanner,
		queryRewriter,
		dispatcher,
		synth,
		cfg.Pipeline.GetTurnTimeout(),
		obs,
		log,
	)

	mux := http.NewServeMux()
	api.NewHandler(orch, dispatcher, log).Register(mux)

	server := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: mux,
	}

	metricsServer := &http.Server{
		Addr:    cfg.Server.MetricsAddress,
		Handler: promhttp.Handler(),
	}

	go func() {
		log.Info("Metrics server listening", map[string]interface{}{"address": cfg.Server.MetricsAddress})
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Metrics server stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	go func() {
		log.Info("API server listening", map[string]interface{}{"address": cfg.Server.Address})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("API server stopped", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down", nil)
	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("API server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		log.Error("Metrics server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	log.Info("Shutdown complete", nil)
}

// buildSessionStore picks the configured session backend; the cleanup
// closes whatever the store holds open.
func buildSessionStore(cfg *config.Config, log logger.Logger) (memory.Store, func()) {
	if cfg.Memory.Backend == "redis" {
		rc, err := database.NewRedis(cfg.Database.Redis)
		if err == nil {
			err = rc.Ping(context.Background())
		}
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-process session store", map[string]interface{}{
				"error": err.Error(),
			})
			return memory.NewInMemoryStore(), func() {}
		}
		ttl := time.Duration(cfg.Memory.TTL) * time.Second
		return memory.NewRedisStore(rc.GetClient(), ttl), func() { rc.Close() }
	}
	return memory.NewInMemoryStore(), func() {}
}

// pingWithRetry gives a backend a few seconds to come up before the
// process gives up, for container orchestration ordering.
func pingWithRetry(ping func() error, log logger.Logger) error {
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		if err = ping(); err == nil {
			return nil
		}
		log.Warn("Backend ping failed, retrying", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})
		time.Sleep(time.Duration(attempt) * time.Second)
	}
	return err
}

// Inert stand-ins for the relational path, where entity resolution and
// query rewriting do not apply.
type noopResolver struct{}

func (noopResolver) ResolveMentions(context.Context, *models.Intent) models.ResolvedEntities {
	return models.ResolvedEntities{}
}

type noopRewriter struct{}

func (noopRewriter) Rewrite(_ context.Context, dsl string) string { return dsl }
