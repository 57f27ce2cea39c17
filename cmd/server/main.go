package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"lumina/internal/auth"
	"lumina/internal/config"
	"lumina/internal/gateway"
	"lumina/internal/handler"
	"lumina/internal/httputil"
	"lumina/internal/middleware"
	"lumina/internal/repository/postgres"
	"lumina/internal/service/chat"
	"lumina/internal/service/tools/external"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	// Setup structured logging
	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	// JWT verifier for Supabase authentication
	jwtVerifier, err := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// pgx connection pool
	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	sessionRepo := postgres.NewSessionRepository(&postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	})

	// Admin prompt settings
	promptSettings, err := config.LoadPromptSettings(cfg.PromptsFile)
	if err != nil {
		log.Fatalf("Failed to load prompt settings: %v", err)
	}

	// Model gateway client
	gatewayClient := gateway.NewClient(cfg, logger)

	// Tool collaborators; nil collaborators simply disable their tool
	var searchClient external.SearchClient
	if cfg.TavilyAPIKey != "" {
		searchClient = external.NewTavilyClient(cfg.TavilyAPIKey)
	} else {
		logger.Warn("TAVILY_API_KEY not set; web_search disabled")
	}
	var fileGen external.FileGenerator
	if cfg.FileGenServiceURL != "" {
		fileGen = external.NewHTTPFileGenerator(cfg.FileGenServiceURL)
	} else {
		logger.Warn("FILEGEN_SERVICE_URL not set; generate_file disabled")
	}

	chatService := chat.NewService(gatewayClient, promptSettings, searchClient, fileGen, sessionRepo, logger)

	chatHandler := handler.NewChatHandler(chatService, logger)
	sessionHandler := handler.NewSessionHandler(sessionRepo, logger)
	voiceHandler := handler.NewVoiceHandler(cfg, searchClient, sessionRepo, sessionRepo, logger)

	logger.Info("services initialized")

	// HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Chat route
	mux.HandleFunc("POST /api/chat", chatHandler.Chat)

	// Session routes
	mux.HandleFunc("GET /api/sessions", sessionHandler.ListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", sessionHandler.GetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", sessionHandler.DeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/messages", sessionHandler.AppendMessages)
	mux.HandleFunc("PUT /api/sessions/{id}/canvas", sessionHandler.UpdateCanvas)

	// Voice route (websocket; auth via access_token query fallback)
	mux.HandleFunc("GET /api/voice", voiceHandler.Voice)

	// Build middleware chain
	// Order: CORS → Recovery → Auth → Routes
	var root http.Handler = mux
	root = middleware.AuthMiddleware(jwtVerifier)(root)
	root = middleware.Recovery(logger)(root)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams and websockets
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
