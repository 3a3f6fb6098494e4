package main

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/dschwartzAI/CoachingAI-sub001/internal/auth"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/cache"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/config"
	chatModels "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/models/chat"
	domainllm "github.com/dschwartzAI/CoachingAI-sub001/internal/domain/services/llm"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/handler"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/handler/sse"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/middleware"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/repository/postgres"
	postgresChat "github.com/dschwartzAI/CoachingAI-sub001/internal/repository/postgres/chat"
	serviceChat "github.com/dschwartzAI/CoachingAI-sub001/internal/service/chat"
	serviceLLM "github.com/dschwartzAI/CoachingAI-sub001/internal/service/llm"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/memory"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/progress"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/streaming"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/validation"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/service/workflow"
	"github.com/dschwartzAI/CoachingAI-sub001/internal/tools"
)

const (
	turnCleanupInterval = time.Minute
	turnRetention       = 10 * time.Minute
	shutdownTimeout     = 30 * time.Second
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	var logOut io.Writer = os.Stdout
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwtVerifier, err := auth.NewJWTVerifier(ctx, cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, pool, tables, cfg.TablePrefix, cfg.EmbeddingDimensions); err != nil {
			log.Fatalf("Failed to ensure schema: %v", err)
		}
		logger.Info("schema ensured")
	}

	// Repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	threadRepo := postgresChat.NewThreadRepository(repoConfig)
	messageRepo := postgresChat.NewMessageRepository(repoConfig)
	profileRepo := postgresChat.NewProfileRepository(repoConfig)
	memoryRepo := postgresChat.NewMemoryRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	catalog, err := tools.NewCatalog()
	if err != nil {
		log.Fatalf("Failed to load tool catalog: %v", err)
	}
	logger.Info("tool catalog loaded", "tools", len(catalog.List()))

	// Models: streaming providers for replies, an OpenAI-compatible client
	// for structured calls and embeddings.
	providerRegistry := serviceLLM.SetupProviders(cfg, logger)
	var (
		completer domainllm.StructuredCompleter
		embedder  domainllm.Embedder
	)
	if structured := serviceLLM.SetupStructured(cfg, logger); structured != nil {
		completer, embedder = structured, structured
	}

	validator := validation.NewValidator(catalog, completer, cfg.ValidationModel, logger)

	turnRegistry := streaming.NewRegistry(turnCleanupInterval, turnRetention)
	go turnRegistry.StartCleanup(ctx)

	deps := serviceChat.Deps{
		Threads:   threadRepo,
		Messages:  messageRepo,
		Profiles:  profileRepo,
		Tx:        txManager,
		Catalog:   catalog,
		Tracker:   progress.NewTracker(catalog),
		Validator: validator,
		Providers: providerRegistry,
		Turns:     turnRegistry,
		Logger:    logger,
	}

	// Memory needs both a classifier model and embeddings.
	var (
		dispatcher *memory.Dispatcher
		searcher   *memory.Searcher
	)
	if completer != nil && embedder != nil {
		classifier := memory.NewClassifier(completer, embedder, memoryRepo, cfg.ClassifierModel, logger)
		dispatcher = memory.NewDispatcher(classifier, cfg.MemoryWorkers, logger)
		searcher = memory.NewSearcher(embedder, memoryRepo)
		deps.Memory = dispatcher
		deps.Searcher = searcher
	}

	statuses := workflow.NewStatusTracker(cache.NewLRU[chatModels.WorkflowStatus](10_000, 24*time.Hour))
	deps.Statuses = statuses
	deps.Reconciler = workflow.NewReconciler(threadRepo, messageRepo, txManager, statuses, logger)
	if cfg.WorkflowURL != "" {
		mode, err := workflow.ParseMode(cfg.WorkflowMode)
		if err != nil {
			log.Fatalf("Invalid WORKFLOW_MODE: %v", err)
		}
		deps.Workflow = workflow.NewClient(cfg.WorkflowURL, mode, cfg.WorkflowTimeout, logger)
		logger.Info("document workflow configured", "mode", mode)
	} else {
		logger.Warn("WORKFLOW_URL not set - completed tools cannot be submitted")
	}

	chatService := serviceChat.NewService(deps, serviceChat.Options{
		Model:           cfg.DefaultModel,
		StallTimeout:    cfg.StreamStallTimeout,
		WorkflowTimeout: cfg.WorkflowTimeout,
	})

	// Handlers
	chatHandler := handler.NewChatHandler(chatService, chatService, turnRegistry, sse.DefaultConfig(), logger)
	threadHandler := handler.NewThreadHandler(chatService, logger)
	workflowHandler := handler.NewWorkflowHandler(chatService, cfg.WorkflowCallbackSecret, logger)
	toolHandler := handler.NewToolHandler(catalog)

	rateLimit := middleware.RateLimit(
		cache.NewLRU[*rate.Limiter](10_000, 0),
		cfg.RateLimitRPS,
		cfg.RateLimitBurst,
		logger,
	)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", handler.HealthCheck)
	mux.HandleFunc("GET /api/tools", toolHandler.ListTools)

	// Chat turns
	mux.Handle("POST /api/chat", rateLimit(http.HandlerFunc(chatHandler.SendMessage)))
	mux.HandleFunc("GET /api/turns/{id}/stream", chatHandler.StreamTurn)
	mux.HandleFunc("POST /api/turns/{id}/interrupt", chatHandler.InterruptTurn)

	// Threads
	mux.HandleFunc("GET /api/threads", threadHandler.ListThreads)
	mux.HandleFunc("GET /api/threads/{id}", threadHandler.GetThread)
	mux.HandleFunc("PATCH /api/threads/{id}", threadHandler.RenameThread)
	mux.HandleFunc("DELETE /api/threads/{id}", threadHandler.DeleteThread)

	// Workflow
	mux.HandleFunc("POST /api/workflow/results", workflowHandler.Results)
	mux.HandleFunc("GET /api/workflow/{chatId}/status", workflowHandler.Status)
	mux.HandleFunc("POST /api/workflow/{chatId}/submit", workflowHandler.Submit)

	// Memories
	if searcher != nil {
		memoryHandler := handler.NewMemoryHandler(searcher, logger)
		mux.HandleFunc("GET /api/memories/search", memoryHandler.Search)
		mux.HandleFunc("DELETE /api/memories", memoryHandler.Wipe)
	}

	// Order: CORS → Recovery → Auth → Routes
	var h http.Handler = mux
	h = middleware.AuthMiddleware(jwtVerifier, logger, "/health", "/api/workflow/results")(h)
	h = middleware.Recovery(logger)(h)

	// CORS must run before auth to answer preflights
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID", handler.WorkflowSecretHeader},
		ExposedHeaders:   []string{"X-Chat-Id", "X-Turn-Id"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Interrupt generation first so open streams end and Shutdown can drain them.
	turnRegistry.InterruptAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if dispatcher != nil {
		if err := dispatcher.Wait(shutdownCtx); err != nil {
			logger.Warn("memory classification still running at shutdown", "error", err)
		}
	}
	logger.Info("server stopped")
}
