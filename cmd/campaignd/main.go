// Command campaignd runs the ad campaign generation service.
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
	gcs "cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/adpage/campaign-generator/internal/api"
	"github.com/adpage/campaign-generator/internal/campaign"
	"github.com/adpage/campaign-generator/internal/clock/system"
	"github.com/adpage/campaign-generator/internal/completion/groq"
	"github.com/adpage/campaign-generator/internal/config"
	"github.com/adpage/campaign-generator/internal/generator"
	"github.com/adpage/campaign-generator/internal/hash/sha256"
	"github.com/adpage/campaign-generator/internal/logging"
	"github.com/adpage/campaign-generator/internal/metrics"
	publishermem "github.com/adpage/campaign-generator/internal/publisher/memory"
	publisherps "github.com/adpage/campaign-generator/internal/publisher/pubsub"
	"github.com/adpage/campaign-generator/internal/render"
	collyscraper "github.com/adpage/campaign-generator/internal/scraper/colly"
	gcsstore "github.com/adpage/campaign-generator/internal/storage/gcs"
	localstore "github.com/adpage/campaign-generator/internal/storage/local"
	"github.com/adpage/campaign-generator/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	// Local development keeps secrets in .env; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()

	store, err := postgres.NewCampaignStore(ctx, postgres.CampaignStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	}, clock)
	if err != nil {
		return fmt.Errorf("open campaign store: %w", err)
	}
	defer store.Close()

	if err := store.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	archive, err := buildArchive(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build snapshot archive: %w", err)
	}

	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build event publisher: %w", err)
	}

	scraper := collyscraper.New(collyscraper.Config{
		UserAgent:    cfg.Scraper.UserAgent,
		Timeout:      cfg.ScrapeTimeout(),
		ExcerptChars: cfg.Scraper.ExcerptChars,
	}, archive, logger.Named("scraper"))

	completer := groq.New(groq.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLMTimeout(),
	})

	gen := generator.New(scraper, completer, logger.Named("generator"))

	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	srv := api.NewServer(gen, store, renderer, logger.Named("api"), api.Options{
		Publisher:      publisher,
		Topic:          cfg.Events.Topic,
		RequestTimeout: cfg.RequestTimeout(),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}

func buildArchive(ctx context.Context, cfg config.Config) (*collyscraper.Archive, error) {
	var store campaign.BlobStore
	switch cfg.Archive.Backend {
	case config.BackendNone:
		return nil, nil
	case config.BackendLocal:
		s, err := localstore.New(localstore.Config{BaseDir: cfg.Archive.LocalDir})
		if err != nil {
			return nil, err
		}
		store = s
	case config.BackendGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("create gcs client: %w", err)
		}
		s, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			return nil, err
		}
		store = s
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}

	return &collyscraper.Archive{
		Store:       store,
		Hasher:      sha256.New(),
		Prefix:      cfg.Archive.Prefix,
		ContentType: cfg.Archive.ContentType,
	}, nil
}

func buildPublisher(ctx context.Context, cfg config.Config) (campaign.Publisher, error) {
	switch cfg.Events.Backend {
	case config.BackendMemory:
		return publishermem.New(), nil
	case config.BackendPubSub:
		client, err := gcppubsub.NewClient(ctx, cfg.Events.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("create pubsub client: %w", err)
		}
		return publisherps.New(client.Topic(cfg.Events.Topic)), nil
	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Events.Backend)
	}
}
