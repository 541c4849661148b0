package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go.uber.org/zap"

	"github.com/Sunil-1234/Virtual-call-assistant/internal/api/handlers"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/ai"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/env"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/knowledge"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/logger"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/middleware"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/mongo"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/otel"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/session"
	"github.com/Sunil-1234/Virtual-call-assistant/pkg/transcript"
)

type Server struct {
	cfg         *env.Config
	redisClient *redis.Client
	mongoClient *mongo.Client
	handler     *handlers.Handler
}

func main() {
	cfg, err := env.Load(".env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.AppEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if cfg.OTELEnabled {
		shutdown, err := otel.InitTracing("call-assistant", "1.0.0", cfg.OTELEndpoint)
		if err != nil {
			logger.Log.Warn("Failed to initialize OpenTelemetry", zap.Error(err))
		} else {
			defer shutdown()
			logger.Log.Info("OpenTelemetry tracing enabled", zap.String("endpoint", cfg.OTELEndpoint))
		}
	}

	logger.Log.Info("Starting Virtual Call Assistant",
		zap.String("env", cfg.AppEnv),
		zap.String("port", cfg.AppPort),
	)

	// Redis is optional: without it, rate limiting and webhook dedupe are off.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Log.Fatal("Failed to parse Redis URL", zap.Error(err))
		}
		redisClient = redis.NewClient(opt)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		cancel()
	} else {
		logger.Log.Warn("REDIS_URL not set, rate limiting and webhook dedupe disabled")
	}

	// MongoDB is optional: without it, transcripts do not outlive sessions.
	var mongoClient *mongo.Client
	var archiver *transcript.Archiver
	if cfg.MongoURI != "" {
		mongoClient, err = mongo.NewClient(cfg.MongoURI, cfg.DBName)
		if err != nil {
			logger.Log.Fatal("Failed to connect to MongoDB", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mongoClient.Disconnect(ctx); err != nil {
				logger.Log.Warn("Failed to disconnect MongoDB", zap.Error(err))
			}
		}()
		archiver = transcript.NewArchiver(mongoClient, logger.Log)
		defer archiver.Close()
	} else {
		logger.Log.Warn("MONGO_URI not set, transcript archiving disabled")
	}

	// Build the knowledge index. The agent cannot answer without it, so any
	// failure here aborts startup.
	index, err := buildIndex(cfg)
	if err != nil {
		logger.Log.Fatal("Failed to build knowledge index", zap.Error(err))
	}
	logger.Log.Info("Knowledge index ready", zap.Int("passages", index.Size()))

	// Generation providers, in preference order.
	timeout := cfg.AITimeout()
	providers := []ai.Provider{}

	if cfg.GeminiApiKey != "" {
		geminiProvider := ai.NewGeminiProvider(cfg.GeminiApiKey, cfg.GeminiModel, timeout, logger.Log)
		if geminiProvider.IsAvailable() {
			providers = append(providers, geminiProvider)
			logger.Log.Info("Gemini provider initialized", zap.String("model", cfg.GeminiModel))
		}
	}

	openAIProvider := ai.NewOpenAIProvider(cfg.OpenAIApiKey, cfg.OpenAIChatModel, cfg.OpenAIMaxTokens, timeout, logger.Log)
	if openAIProvider.IsAvailable() {
		providers = append(providers, openAIProvider)
		logger.Log.Info("OpenAI provider initialized", zap.String("model", cfg.OpenAIChatModel))
	}

	if len(providers) == 0 {
		logger.Log.Fatal("No generation providers configured")
	}
	aiManager := ai.NewManager(providers, logger.Log)

	sessions := session.NewStore(cfg.SessionTTL(), logger.Log)
	reaperCtx, stopReaper := context.WithCancel(context.Background())
	defer stopReaper()
	sessions.StartReaper(reaperCtx, time.Minute)

	engine := ai.NewEngine(index, sessions, aiManager, cfg.RetrievalK, timeout, logger.Log)

	apiHandler := handlers.NewHandler(cfg, redisClient, mongoClient, engine, aiManager, sessions, index, archiver)

	server := &Server{
		cfg:         cfg,
		redisClient: redisClient,
		mongoClient: mongoClient,
		handler:     apiHandler,
	}
	router := server.setupRouter()

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Log.Info("Server exited")
}

// buildIndex loads the corpus, splits it, and embeds every chunk.
func buildIndex(cfg *env.Config) (*knowledge.Index, error) {
	loader := knowledge.NewLoader(logger.Log)

	var corpus string
	switch {
	case cfg.WebsiteURL != "":
		text, err := loader.LoadWebsite(cfg.WebsiteURL)
		if err != nil {
			return nil, fmt.Errorf("failed to load website corpus: %w", err)
		}
		corpus = text
	case cfg.CorpusPath != "":
		text, err := loader.LoadPath(cfg.CorpusPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load corpus files: %w", err)
		}
		corpus = text
	}

	splitter := knowledge.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	chunks := splitter.Split(corpus)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("corpus produced no chunks")
	}

	embedder := knowledge.NewOpenAIEmbedder(cfg.OpenAIApiKey, cfg.EmbeddingModel)
	index := knowledge.NewIndex(embedder, logger.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := index.Build(ctx, chunks); err != nil {
		return nil, err
	}
	return index, nil
}

func (s *Server) setupRouter() *gin.Engine {
	if s.cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.RequestSizeLimit(1 << 20)) // 1 MB limit

	if s.cfg.OTELEnabled {
		router.Use(otel.GinMiddleware())
	}

	router.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		return fmt.Sprintf("[%s] %s %s %d %s\n",
			param.TimeStamp.Format(time.RFC3339),
			param.Method,
			param.Path,
			param.StatusCode,
			param.Latency,
		)
	}))

	// CORS
	corsConfig := cors.DefaultConfig()
	if s.cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{s.cfg.CORSAllowedOrigins}
	}
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	rateLimiter := middleware.NewRateLimiter(s.redisClient, s.cfg.APIRateLimitRPM)

	// Health and metrics
	router.GET("/health", s.handler.HealthCheck)
	router.GET("/metrics", s.handler.GetMetrics)
	router.GET("/metrics/prometheus", s.handler.GetPrometheusMetrics)

	// Telephony webhooks. Signature verification first, then dedupe so a
	// redelivered webhook replays the original voice document.
	voice := router.Group("/")
	voice.Use(middleware.VerifyTransportSignature(s.cfg.TwilioAuthToken, s.cfg.PublicBaseURL, logger.Log))
	voice.Use(middleware.WebhookDedupe(s.redisClient))
	{
		voice.POST("/answer", s.handler.Answer)
		voice.POST("/handle-response", s.handler.HandleResponse)
		voice.POST("/call-status", s.handler.CallStatus)
	}

	// Operator API (protected)
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(s.cfg.JWTSecret))
	api.Use(rateLimiter.Middleware())
	{
		calls := api.Group("/calls")
		{
			calls.GET("", s.handler.ListCalls)
			calls.GET("/:call_sid", s.handler.GetCall)
			calls.DELETE("/:call_sid", s.handler.DeleteCall)
			calls.GET("/:call_sid/live", s.handler.LiveTranscript)
		}

		api.POST("/knowledge/search", s.handler.SearchKnowledge)
	}

	return router
}
