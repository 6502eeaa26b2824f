// In file: cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/meteo-chat/backend/internal/chat"
	"github.com/meteo-chat/backend/internal/llm"
	"github.com/meteo-chat/backend/internal/openmeteo"
	"github.com/meteo-chat/backend/internal/tools"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// main is the composition root: it loads configuration, initializes the
// inference client, the tool registry and the orchestrator, injects the
// dependencies, and starts the server.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	buildInfo := GetBuildInfo()
	log.Printf("🚀 Starting meteo chat backend | Build: %s", buildInfo)

	// 1. LOAD CONFIGURATION
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("❌ FATAL: Configuration Error: %v", err)
	}
	log.Printf("✅ Configuration loaded (model: %s)", cfg.Chat.Model)

	// 2. INITIALIZE SERVICES
	llmClient, err := initializeLLMClient(cfg)
	if err != nil {
		log.Fatalf("❌ FATAL: %v", err)
	}

	registry := initializeToolRegistry(cfg)

	var profiler *llm.Profiler
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Fatalf("❌ FATAL: Could not connect to Redis: %v", err)
		}
		profiler = llm.NewProfiler(rdb)
		go startHealthChecker(cfg.Chat.Model, llmClient, profiler)
	} else {
		log.Println("ℹ️ REDIS_ADDR not set; model telemetry disabled.")
	}

	orchestrator := chat.New(llmClient, registry, cfg.Chat)
	chatHandler := NewChatHandler(orchestrator, profiler, cfg.Chat.Model)
	log.Println("✅ All services initialized.")

	// 3. SETUP AND RUN THE WEB SERVER
	gin.SetMode(os.Getenv("GIN_MODE"))
	engine := gin.Default()
	engine.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type"},
		ExposeHeaders:   []string{"Content-Length"},
		MaxAge:          600 * time.Second,
	}))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"model":      cfg.Chat.Model,
			"version":    buildInfo.Version,
			"commit":     buildInfo.GitCommit,
			"build_date": buildInfo.BuildDate,
		})
	})
	engine.POST("/api/chat", chatHandler.HandleChat)

	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Port), Handler: engine}
	runServerWithGracefulShutdown(srv)
}

// initializeLLMClient picks the inference backend from the model identifier.
func initializeLLMClient(cfg *AppConfig) (llm.LLMClient, error) {
	switch {
	case strings.HasPrefix(cfg.Chat.Model, "@cf/"):
		client, err := llm.NewWorkersAIClient(cfg.CloudflareAccountID, cfg.CloudflareAPIToken)
		if err != nil {
			return nil, fmt.Errorf("failed to create Workers AI client: %w", err)
		}
		log.Println("✅ Workers AI client initialized.")
		return client, nil
	case strings.HasPrefix(cfg.Chat.Model, "gemini"):
		client, err := llm.NewGeminiClient(cfg.GeminiAPIKey, cfg.Chat.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		log.Println("✅ Gemini client initialized.")
		return client, nil
	default:
		return nil, fmt.Errorf("unknown model provider for %q", cfg.Chat.Model)
	}
}

// initializeToolRegistry registers the two lookup capabilities exposed to
// the model. The set is fixed for the process lifetime.
func initializeToolRegistry(cfg *AppConfig) *tools.Registry {
	meteo := openmeteo.NewClient(cfg.GeocodingLanguage)

	registry := tools.NewRegistry()
	registry.Register(tools.NewGeocodeTool(meteo))
	registry.Register(tools.NewForecastTool(meteo))

	log.Printf("✅ Tool registry initialized with %d tools.", registry.Count())
	return registry
}

// startHealthChecker proactively verifies the model every few minutes so the
// telemetry profile reflects outages even between user requests.
func startHealthChecker(modelID string, client llm.LLMClient, profiler *llm.Profiler) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	log.Println("🩺 Health checker started.")

	runCheck := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		config := &llm.GenerationConfig{Model: modelID, MaxTokens: 5}
		prompt := []llm.Message{{Role: llm.RoleUser, Content: "Che tempo fa?"}}

		_, err := client.Generate(ctx, prompt, config, nil)
		cancel()

		isHealthy := err == nil
		profiler.UpdateProfileOnHealthCheck(context.Background(), modelID, isHealthy)
		log.Printf("Health check for %s: Healthy = %v", modelID, isHealthy)
	}

	go runCheck()
	for range ticker.C {
		runCheck()
	}
}

// runServerWithGracefulShutdown handles the server lifecycle.
func runServerWithGracefulShutdown(srv *http.Server) {
	go func() {
		log.Printf("👂 Backend is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Listen error: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("❌ Server shutdown failed:", err)
	}

	log.Println("👋 Server exited gracefully.")
}
