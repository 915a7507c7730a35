package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	arkmodel "github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/gin-gonic/gin"
	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/danskfisk/ragchatbot/internal/api"
	"github.com/danskfisk/ragchatbot/internal/embedding"
	"github.com/danskfisk/ragchatbot/internal/generator"
	"github.com/danskfisk/ragchatbot/internal/ingest"
	"github.com/danskfisk/ragchatbot/internal/rag"
	"github.com/danskfisk/ragchatbot/internal/session"
	"github.com/danskfisk/ragchatbot/internal/tools"
	"github.com/danskfisk/ragchatbot/internal/vector"
	"github.com/danskfisk/ragchatbot/pkg/config"
	"github.com/danskfisk/ragchatbot/pkg/logger"
	"github.com/danskfisk/ragchatbot/pkg/metrics"
	"github.com/danskfisk/ragchatbot/pkg/middleware"
	"github.com/danskfisk/ragchatbot/pkg/rabbitmq"
	"github.com/danskfisk/ragchatbot/pkg/tracing"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init()
	logger.Info(ctx, "Starting api service", "service", "ragchatbot-api", "environment", cfg.Server.Mode)

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.OTLPEndpoint)
		if err != nil {
			logger.Error(ctx, "Failed to init tracer", "error", err.Error())
			os.Exit(1)
		}
		defer func() {
			if err := shutdown(ctx); err != nil {
				logger.Error(ctx, "Failed to shutdown tracer", "error", err.Error())
			}
		}()
	}

	milvusClient, err := milvus.NewClient(ctx, milvus.Config{
		Address:  cfg.Milvus.Addr,
		Username: cfg.Milvus.Username,
		Password: cfg.Milvus.Password,
		DialOptions: []grpc.DialOption{
			grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		},
	})
	if err != nil {
		logger.Error(ctx, "Failed to connect to Milvus", "error", err.Error())
		os.Exit(1)
	}
	defer milvusClient.Close()

	embedder, err := embedding.NewArkEmbedder(cfg.Ark.APIKey, cfg.Ark.EmbeddingModel, cfg.Ark.BaseURL, cfg.Ark.Region)
	if err != nil {
		logger.Error(ctx, "Failed to initialize Ark embedder", "error", err.Error())
		os.Exit(1)
	}

	store, err := vector.NewStore(ctx, milvusClient, embedder, embedder.Raw(), vector.Config{
		CatalogCollection: cfg.Milvus.CatalogCollection,
		ContentCollection: cfg.Milvus.ContentCollection,
		VectorField:       cfg.Milvus.VectorField,
		VectorDim:         cfg.Milvus.VectorDim,
		MaxResults:        cfg.Search.MaxResults,
	})
	if err != nil {
		logger.Error(ctx, "Failed to initialize vector store", "error", err.Error())
		os.Exit(1)
	}

	maxTokens := cfg.Generation.MaxTokens
	temperature := float32(cfg.Generation.Temperature)
	chat, err := arkmodel.NewChatModel(ctx, &arkmodel.ChatModelConfig{
		APIKey:      cfg.Ark.APIKey,
		Model:       cfg.Ark.Model,
		BaseURL:     cfg.Ark.BaseURL,
		Region:      cfg.Ark.Region,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		logger.Error(ctx, "Failed to initialize Ark ChatModel", "error", err.Error())
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	bm := metrics.NewBusinessMetrics(metrics.DefaultRegistry(), "rag")
	manager := tools.NewManager(
		tools.NewCourseSearchTool(store),
		tools.NewCourseOutlineTool(store),
	)
	gen := generator.New(chat, temperature, maxTokens).WithMetrics(bm, "api")
	sessions := session.NewManager(cfg.Session.MaxHistory)
	processor := ingest.NewProcessor(cfg.Chunking.Size, cfg.Chunking.Overlap)
	system := rag.NewSystem(processor, store, manager, gen, sessions, rdb)

	// Load any documents shipped alongside the service; failures here must
	// not prevent startup.
	if cfg.Docs.Path != "" {
		if _, statErr := os.Stat(cfg.Docs.Path); statErr == nil {
			courses, chunks, loadErr := system.AddCourseFolder(ctx, cfg.Docs.Path, false)
			if loadErr != nil {
				logger.Warn(ctx, "startup document load failed", "path", cfg.Docs.Path, "error", loadErr.Error())
			} else {
				logger.Info(ctx, "startup documents loaded", "courses", courses, "chunks", chunks)
			}
		}
	}

	var publisher api.Publisher
	mq, err := rabbitmq.NewClient(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
	if err != nil {
		logger.Warn(ctx, "RabbitMQ unavailable, document ingest endpoint disabled", "error", err.Error())
	} else {
		defer mq.Close()
		publisher = mq
	}

	handler := api.NewHandler(system, sessions, publisher, bm)

	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(otelgin.Middleware("ragchatbot-api"))
	hm := metrics.NewHTTPMetrics(metrics.DefaultRegistry(), "rag", "api")
	router.Use(metrics.MetricsMiddleware("api", hm))
	router.GET("/metrics", gin.WrapH(metrics.MetricsHandler(metrics.DefaultRegistry())))

	handler.SetupRoutes(router)

	port := os.Getenv("RAG_API_PORT")
	if port == "" {
		port = cfg.Server.Port
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		logger.Info(ctx, "Starting HTTP server", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Failed to start server", "error", err.Error())
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info(ctx, "Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Server forced to shutdown", "error", err.Error())
	}
	logger.Info(ctx, "Server exited")
}
