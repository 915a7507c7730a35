package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	milvus "github.com/milvus-io/milvus-sdk-go/v2/client"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/danskfisk/ragchatbot/internal/embedding"
	"github.com/danskfisk/ragchatbot/internal/ingest"
	"github.com/danskfisk/ragchatbot/internal/rag"
	"github.com/danskfisk/ragchatbot/internal/tools"
	"github.com/danskfisk/ragchatbot/internal/vector"
	"github.com/danskfisk/ragchatbot/pkg/config"
	"github.com/danskfisk/ragchatbot/pkg/logger"
	"github.com/danskfisk/ragchatbot/pkg/metrics"
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
	logger.Info(ctx, "Starting ingest worker", "service", "ragchatbot-worker", "environment", cfg.Server.Mode)

	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(cfg.Tracing.ServiceName+"-worker", cfg.Tracing.OTLPEndpoint)
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

	processor := ingest.NewProcessor(cfg.Chunking.Size, cfg.Chunking.Overlap)
	system := rag.NewSystem(processor, store, tools.NewManager(), nil, nil, nil)

	mq, err := rabbitmq.NewClient(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue)
	if err != nil {
		logger.Error(ctx, "Failed to connect to RabbitMQ", "error", err.Error())
		os.Exit(1)
	}
	defer mq.Close()

	deliveries, err := mq.Consume(1)
	if err != nil {
		logger.Error(ctx, "Failed to start consumer", "error", err.Error())
		os.Exit(1)
	}

	bm := metrics.NewBusinessMetrics(metrics.DefaultRegistry(), "rag")
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	logger.Info(ctx, "Worker consuming ingest jobs", "queue", cfg.RabbitMQ.Queue)
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				logger.Warn(ctx, "delivery channel closed")
				return
			}
			handleDelivery(ctx, system, bm, d)
		case <-quit:
			logger.Info(ctx, "Worker shutting down")
			return
		}
	}
}

// handleDelivery runs one ingest job; failures are nacked without requeue
// so they land in the dead letter queue.
func handleDelivery(ctx context.Context, system *rag.System, bm *metrics.BusinessMetrics, d amqp.Delivery) {
	start := time.Now()

	job, err := rabbitmq.DecodeIngestJob(d.Body)
	if err != nil {
		logger.Error(ctx, "undecodable ingest job", "error", err.Error())
		_ = d.Nack(false, false)
		observeIngest(bm, "fail", start)
		return
	}

	if err := runIngestJob(ctx, system, job); err != nil {
		logger.Error(ctx, "ingest job failed", "path", job.Path, "error", err.Error())
		_ = d.Nack(false, false)
		observeIngest(bm, "fail", start)
		return
	}

	_ = d.Ack(false)
	observeIngest(bm, "success", start)
}

func runIngestJob(ctx context.Context, system *rag.System, job rabbitmq.IngestJob) error {
	info, err := os.Stat(job.Path)
	if err != nil {
		return fmt.Errorf("failed to stat ingest path: %w", err)
	}

	if info.IsDir() {
		courses, chunks, err := system.AddCourseFolder(ctx, job.Path, job.ClearExisting)
		if err != nil {
			return err
		}
		logger.Info(ctx, "ingest job done", "path", job.Path, "courses", courses, "chunks", chunks)
		return nil
	}

	course, chunks, err := system.AddCourseDocument(ctx, job.Path)
	if err != nil {
		return err
	}
	logger.Info(ctx, "ingest job done", "path", job.Path, "title", course.Title, "chunks", chunks)
	return nil
}

func observeIngest(bm *metrics.BusinessMetrics, status string, start time.Time) {
	bm.IngestTotal.WithLabelValues("worker", status).Inc()
	bm.IngestDuration.WithLabelValues("worker", status).Observe(time.Since(start).Seconds())
}
