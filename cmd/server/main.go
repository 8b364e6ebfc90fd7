package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/agenthands/corpus/internal/allocate"
	"github.com/agenthands/corpus/internal/config"
	"github.com/agenthands/corpus/internal/crosswalk"
	"github.com/agenthands/corpus/internal/extract"
	"github.com/agenthands/corpus/internal/graph"
	"github.com/agenthands/corpus/internal/ingest"
	"github.com/agenthands/corpus/internal/llm"
	"github.com/agenthands/corpus/internal/logger"
	"github.com/agenthands/corpus/internal/query"
	"github.com/agenthands/corpus/internal/semantic"
	"github.com/agenthands/corpus/internal/server"
	"github.com/agenthands/corpus/internal/store"
	"github.com/agenthands/corpus/internal/validate"
)

const defaultFederalRegisterURL = "https://www.federalregister.gov/api/v1"

func main() {
	_ = godotenv.Load()

	cfg := loadConfig()
	lg, err := logger.New(cfg.Server.Mode)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer lg.Sync()

	ctx := context.Background()

	st, err := store.NewPostgres(ctx, cfg.Postgres.DSN, lg)
	if err != nil {
		lg.Fatal("postgres connection failed", "error", err)
	}
	defer st.Close()
	if err := st.Bootstrap(ctx); err != nil {
		lg.Fatal("postgres bootstrap failed", "error", err)
	}

	driver, err := graph.NewBoltDriver(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, lg)
	if err != nil {
		lg.Fatal("graph connection failed", "error", err)
	}
	defer driver.Close(ctx)
	gs := graph.NewStore(driver)
	if err := gs.Bootstrap(ctx); err != nil {
		lg.Warn("graph index creation failed", "error", err)
	}

	llmClient, embedder, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		// The pipeline degrades to rule-based extraction and extractive answers.
		lg.Warn("llm unavailable, running without a model", "error", err)
	}

	validator := validate.New()
	allocator := allocate.New(st, cfg.Allocator, lg)
	reconciler := crosswalk.NewReconciler(st, gs, cfg.Crosswalk, lg)
	traverser := crosswalk.NewTraverser(gs, cfg.Crosswalk.MaxTraversal)
	index := semantic.NewGraphIndex(embedder, gs, lg)
	extractor := extract.NewExtractor(llmClient, cfg.Prompts, lg)

	registry := ingest.NewRegistry()
	registry.Register(ingest.NewFederalRegisterSource(federalRegisterURL()))

	coordinator := ingest.NewCoordinator(
		registry, st, validator, allocator, reconciler, extractor, index, cfg.Ingest, lg)

	retrievers := []query.Retriever{
		&query.RelationalRetriever{Store: st, Limit: cfg.Retrieval.TopN},
		&query.GraphRetriever{Graph: gs, Traverser: traverser, Limit: cfg.Retrieval.TopN},
		&query.SemanticRetriever{Index: index, TopN: cfg.Retrieval.TopN},
	}
	var reranker query.Reranker
	if cfg.Retrieval.Rerank && llmClient != nil {
		reranker = llm.NewSimpleLLMReranker(llmClient)
	}
	orchestrator := query.NewOrchestrator(
		query.NewDecomposer(cfg.Retrieval, lg),
		retrievers,
		query.NewSynthesizer(llmClient, cfg.Prompts, lg),
		reranker, cfg.Retrieval, lg)

	srv := server.New(st, coordinator, reconciler, traverser, orchestrator, lg)
	r := srv.SetupRouter(cfg.Server.Mode)

	sweepCtx, stopSweep := context.WithCancel(ctx)
	go runSweeps(sweepCtx, reconciler, cfg.Crosswalk.SweepEvery(), lg)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port(cfg)),
		Handler: r,
	}
	go func() {
		lg.Info("server listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	lg.Info("shutting down")
	stopSweep()
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		lg.Error("shutdown failed", "error", err)
	}
	coordinator.Wait()
}

func loadConfig() *config.Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.toml"
	}

	var cfg *config.Config
	if _, err := os.Stat(path); err == nil {
		loaded, err := config.Load(path)
		if err != nil {
			log.Fatalf("Failed to load config %s: %v", path, err)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	// Environment overrides win over the file for deployment knobs.
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NEO4J_URI"); v != "" {
		cfg.Neo4j.URI = v
	}
	if v := os.Getenv("NEO4J_USER"); v != "" {
		cfg.Neo4j.User = v
	}
	if v := os.Getenv("NEO4J_PASSWORD"); v != "" {
		cfg.Neo4j.Password = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("LLM_EMBEDDING_MODEL"); v != "" {
		cfg.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	return cfg
}

func port(cfg *config.Config) int {
	if raw := os.Getenv("PORT"); raw != "" {
		if p, err := strconv.Atoi(raw); err == nil {
			return p
		}
	}
	return cfg.Server.Port
}

func federalRegisterURL() string {
	if v := os.Getenv("FEDERAL_REGISTER_URL"); v != "" {
		return v
	}
	return defaultFederalRegisterURL
}

// runSweeps reconciles the stores on a fixed interval until ctx is cancelled.
func runSweeps(ctx context.Context, r *crosswalk.Reconciler, every time.Duration, lg *logger.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				lg.Error("scheduled sweep failed", "error", err)
			}
		}
	}
}
