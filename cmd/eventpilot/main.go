// Package main wires together the eventpilot service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/hackdesk/eventpilot/internal/api"
	"github.com/hackdesk/eventpilot/internal/chat"
	"github.com/hackdesk/eventpilot/internal/chunker"
	"github.com/hackdesk/eventpilot/internal/clock/system"
	"github.com/hackdesk/eventpilot/internal/config"
	"github.com/hackdesk/eventpilot/internal/crawler"
	"github.com/hackdesk/eventpilot/internal/embedding"
	"github.com/hackdesk/eventpilot/internal/hash/sha256"
	"github.com/hackdesk/eventpilot/internal/id/uuid"
	"github.com/hackdesk/eventpilot/internal/logging"
	"github.com/hackdesk/eventpilot/internal/pipeline"
	"github.com/hackdesk/eventpilot/internal/provider/aiml"
	"github.com/hackdesk/eventpilot/internal/provider/openai"
	memorypublisher "github.com/hackdesk/eventpilot/internal/publisher/memory"
	pubsubpublisher "github.com/hackdesk/eventpilot/internal/publisher/pubsub"
	"github.com/hackdesk/eventpilot/internal/retrieval"
	"github.com/hackdesk/eventpilot/internal/storage/gcs"
	memorystorage "github.com/hackdesk/eventpilot/internal/storage/memory"
	"github.com/hackdesk/eventpilot/internal/storage/postgres"
)

// stores groups the persistence interfaces so memory and Postgres backends
// swap as one unit.
type stores struct {
	events   pipeline.EventStore
	pages    pipeline.PageStore
	chunks   pipeline.ChunkStore
	messages pipeline.MessageStore
	close    func()
}

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.NewGenerator()
	hasher := sha256.New()

	db, err := buildStores(ctx, cfg, idGen, logger)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer db.close()

	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}
	publisher, stopPublisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		logger.Fatal("publisher init failed", zap.Error(err))
	}
	defer stopPublisher()

	aimlClient := aiml.NewClient(aiml.Config{
		BaseURL: cfg.Providers.AIML.BaseURL,
		APIKey:  cfg.Providers.AIML.APIKey,
		Timeout: time.Duration(cfg.Providers.AIML.TimeoutSeconds) * time.Second,
	})
	openaiClient := openai.NewClient(openai.Config{
		BaseURL: cfg.Providers.OpenAI.BaseURL,
		APIKey:  cfg.Providers.OpenAI.APIKey,
		Timeout: time.Duration(cfg.Providers.OpenAI.TimeoutSeconds) * time.Second,
	})

	embedder := embedding.New(logger.Named("embedding")).
		Add("aiml", cfg.Providers.EmbeddingPrimary, aimlClient)
	if cfg.Providers.OpenAI.APIKey != "" {
		embedder.Add("openai", cfg.Providers.EmbeddingSecondary, openaiClient)
	}

	fetcher := crawler.NewCollyFetcher(crawler.FetcherConfig{
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   time.Duration(cfg.Crawler.FetchTimeoutSec) * time.Second,
	})

	ingest := crawler.New(
		db.events,
		db.pages,
		db.chunks,
		fetcher,
		embedder,
		chunker.New(cfg.Chunker.MaxChunkSize, cfg.Chunker.MinChunkSize),
		blobs,
		publisher,
		hasher,
		clock,
		idGen,
		crawler.Config{
			MaxDepthDefault:    cfg.Crawler.MaxDepthDefault,
			MaxPagesDefault:    cfg.Crawler.MaxPagesDefault,
			EmbeddingBatchSize: cfg.Crawler.EmbeddingBatchSize,
			ArchivePrefix:      cfg.Archive.Prefix,
			ArchiveContentType: cfg.Archive.ContentType,
			CompletionTopic:    cfg.PubSub.TopicName,
		},
		logger.Named("crawler"),
	)

	retriever := retrieval.New(
		db.chunks,
		embedder,
		retrieval.Config{
			Limit:               cfg.Retrieval.Limit,
			SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		},
		logger.Named("retrieval"),
	)

	orchestrator := chat.New(
		db.events,
		db.messages,
		retriever,
		aimlClient,
		clock,
		chat.Config{
			Temperature: cfg.Chat.Temperature,
			MaxTokens:   cfg.Chat.MaxTokens,
		},
		logger.Named("chat"),
	)

	apiServer := api.NewServer(ingest, orchestrator, fetcher, api.Config{
		Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		AuthAPIKey: authKey(cfg),
	}, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func authKey(cfg config.Config) string {
	if cfg.Auth.Enabled {
		return cfg.Auth.APIKey
	}
	return ""
}

func buildStores(ctx context.Context, cfg config.Config, ids pipeline.IDGenerator, logger *zap.Logger) (stores, error) {
	if cfg.DB.DSN == "" {
		logger.Info("using in-memory stores")
		mem := memorystorage.NewStore(ids)
		return stores{
			events:   mem,
			pages:    mem,
			chunks:   mem,
			messages: mem,
			close:    func() {},
		}, nil
	}

	pg, err := postgres.NewStore(ctx, postgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        cfg.DB.MaxConns,
		MinConns:        cfg.DB.MinConns,
		MaxConnLifetime: time.Duration(cfg.DB.MaxConnLifeMs) * time.Millisecond,
	}, ids)
	if err != nil {
		return stores{}, err
	}
	logger.Info("using postgres stores")
	return stores{
		events:   pg,
		pages:    pg,
		chunks:   pg,
		messages: pg,
		close:    pg.Close,
	}, nil
}

func buildBlobStore(ctx context.Context, cfg config.Config) (pipeline.BlobStore, error) {
	if cfg.Archive.GCSBucket == "" {
		return memorystorage.NewBlobStore(), nil
	}
	client, err := gcsclient.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return gcs.New(client, gcs.Config{
		Bucket: cfg.Archive.GCSBucket,
		Prefix: cfg.Archive.Prefix,
	})
}

func buildPublisher(ctx context.Context, cfg config.Config) (pipeline.Publisher, func(), error) {
	if cfg.PubSub.ProjectID == "" {
		return memorypublisher.New(), func() {}, nil
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub client: %w", err)
	}
	pub, err := pubsubpublisher.New(client)
	if err != nil {
		return nil, nil, err
	}
	return pub, pub.Stop, nil
}
