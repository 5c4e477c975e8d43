// Package main runs a screenshot capture batch.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/batch-screenshots/internal/api"
	"github.com/JakeFAU/batch-screenshots/internal/batch"
	"github.com/JakeFAU/batch-screenshots/internal/browserstack"
	"github.com/JakeFAU/batch-screenshots/internal/capture"
	"github.com/JakeFAU/batch-screenshots/internal/config"
	"github.com/JakeFAU/batch-screenshots/internal/events"
	"github.com/JakeFAU/batch-screenshots/internal/events/sinks"
	"github.com/JakeFAU/batch-screenshots/internal/logging"
	"github.com/JakeFAU/batch-screenshots/internal/metrics"
	memorypublisher "github.com/JakeFAU/batch-screenshots/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/batch-screenshots/internal/publisher/pubsub"
	"github.com/JakeFAU/batch-screenshots/internal/storage/gcs"
	"github.com/JakeFAU/batch-screenshots/internal/storage/memory"
	"github.com/JakeFAU/batch-screenshots/internal/storage/postgres"
	"github.com/JakeFAU/batch-screenshots/internal/storage/sqlite"
	"github.com/JakeFAU/batch-screenshots/internal/store"
	"github.com/JakeFAU/batch-screenshots/internal/telemetry"
)

const (
	shutdownTimeout = 15 * time.Second
	localTopic      = "local"
)

type flags struct {
	configPath   string
	envPath      string
	root         string
	tunnel       bool
	listBrowsers bool
	hold         bool
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.StringVar(&f.envPath, "env", ".env", "Path to a dotenv file with credentials")
	flag.StringVar(&f.root, "root", "", "Output directory for this batch (must not exist)")
	flag.BoolVar(&f.tunnel, "tunnel", false, "Ask the service to render through a local tunnel")
	flag.BoolVar(&f.listBrowsers, "list-browsers", false, "Print the available browsers and exit")
	flag.BoolVar(&f.hold, "hold", false, "Keep the status server running after the batch until interrupted")
	flag.Parse()

	if err := run(f); err != nil {
		fmt.Fprintf(os.Stderr, "screenshots: %v\n", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	if err := godotenv.Load(f.envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() {
		_ = logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
	}()
	zap.ReplaceGlobals(logger)
	telemetry.InitPropagation()
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := browserstack.New(browserstack.Config{
		BaseURL:              cfg.BrowserStack.BaseURL,
		Username:             cfg.BrowserStack.Username,
		AccessKey:            cfg.BrowserStack.AccessKey,
		AuthenticateStartJob: cfg.BrowserStack.AuthenticateStartJob,
		AuthenticateStatus:   cfg.BrowserStack.AuthenticateStatus,
		AuthenticateBrowsers: cfg.BrowserStack.AuthenticateBrowsers,
		AuthenticateDownload: cfg.BrowserStack.AuthenticateDownload,
		RequestsPerSecond:    cfg.BrowserStack.RequestsPerSecond,
		Burst:                cfg.BrowserStack.Burst,
		Timeout:              cfg.BrowserStack.Timeout(),
	}, browserstack.WithLogger(logger.Named("browserstack")))
	if err != nil {
		return fmt.Errorf("browserstack client: %w", err)
	}
	if !cfg.BrowserStack.Credentialed() {
		logger.Warn("browserstack credentials missing; authenticated endpoints will be rejected")
	}

	if f.listBrowsers {
		return listBrowsers(ctx, client)
	}
	if len(cfg.Jobs) == 0 {
		return errors.New("no jobs configured")
	}

	root := f.root
	if root == "" {
		root = cfg.Batch.OutputDir
	}
	if root == "" {
		root = "screenshots-" + time.Now().UTC().Format("20060102-150405")
	}

	history, closeHistory, err := openHistory(ctx, cfg.DB, logger)
	if err != nil {
		return err
	}
	defer closeHistory()

	eventSinks := []events.Sink{sinks.NewLogSink(logger.Named("events"))}
	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("prometheus sink: %w", err)
	}
	eventSinks = append(eventSinks, promSink, sinks.NewStoreSink(history, logger.Named("history")))

	var notifications *memorypublisher.Publisher
	if cfg.PubSub.TopicName != "" {
		psClient, err := pubsubpublisher.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return fmt.Errorf("pubsub client: %w", err)
		}
		defer psClient.Close() //nolint:errcheck // shutdown
		pub := pubsubpublisher.New(psClient, map[string]string{"source": "batch-screenshots"})
		defer pub.Close()
		eventSinks = append(eventSinks, sinks.NewPublishSink(pub, cfg.PubSub.TopicName, logger.Named("publish")))
	} else {
		notifications = memorypublisher.New(memorypublisher.DefaultCapacity)
		eventSinks = append(eventSinks, sinks.NewPublishSink(notifications, localTopic, logger.Named("publish")))
	}

	hub := events.NewHub(events.Config{
		BufferSize:     cfg.Events.BufferSize,
		MaxBatchEvents: cfg.Events.MaxBatchEvents,
		MaxBatchWait:   cfg.Events.MaxBatchWait,
		Logger:         logger.Named("events"),
	}, eventSinks...)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("event hub close failed", zap.Error(err))
		}
	}()

	opts := []batch.Option{batch.WithLogger(logger), batch.WithEmitter(hub)}
	if cfg.Storage.GCSBucket != "" {
		gcsClient, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client: %w", err)
		}
		defer gcsClient.Close() //nolint:errcheck // shutdown
		mirror, err := gcs.New(gcsClient, gcs.Config{
			Bucket: cfg.Storage.GCSBucket,
			Prefix: path.Join(cfg.Storage.Prefix, filepath.Base(root)),
		})
		if err != nil {
			return fmt.Errorf("gcs mirror: %w", err)
		}
		opts = append(opts, batch.WithMirror(mirror))
	}

	orch, err := batch.New(client, batch.Config{
		SessionLimit:      cfg.Batch.SessionLimit,
		CaptureThumbnails: cfg.Batch.CaptureThumbnails,
		PollInterval:      cfg.Batch.PollInterval,
		MaxPollErrors:     cfg.Batch.MaxPollErrors,
		AdmissionBackoff:  cfg.Batch.AdmissionBackoff,
		MaxBrowsersPerJob: cfg.Batch.MaxBrowsersPerJob,
	}, opts...)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	var srv *http.Server
	if cfg.Server.Enabled {
		apiOpts := api.Options{History: history, APIKey: cfg.Server.APIKey, Logger: logger}
		if notifications != nil {
			apiOpts.Notifications = notifications
		}
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewServer(orch, apiOpts).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("status server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("status server failed", zap.Error(err))
			}
		}()
	}

	useTunnel := f.tunnel || cfg.Batch.UseTunnel
	runErr := orch.RunBatch(ctx, root, useTunnel, cfg.Jobs...)
	var cfgErr *capture.ConfigurationError
	if errors.As(runErr, &cfgErr) {
		return runErr
	}
	if runErr != nil {
		logger.Warn("batch interrupted", zap.Error(runErr))
	}
	logger.Info("batch done",
		zap.String("root", root),
		zap.Int("jobs", len(orch.Jobs())),
		zap.Int("screenshots", len(orch.CompletedScreenshots())),
	)

	if srv != nil {
		if f.hold && ctx.Err() == nil {
			logger.Info("holding status server; interrupt to exit")
			<-ctx.Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown failed", zap.Error(err))
		}
	}
	return nil
}

// historyStore is both sides of the batch history repository.
type historyStore interface {
	store.BatchRepository
	store.BatchReader
}

// openHistory selects the batch history backend. Without a configured driver
// history is kept in memory for the status API only.
func openHistory(ctx context.Context, cfg config.DBConfig, logger *zap.Logger) (historyStore, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pg, err := postgres.NewBatchStore(ctx, postgres.Config{
			DSN:         cfg.DSN,
			TablePrefix: cfg.TablePrefix,
			MaxConns:    cfg.MaxConns,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("postgres history: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return pg, pg.Close, nil
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.DSN, logger.Named("sqlite"))
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite history: %w", err)
		}
		return db, func() {
			if err := db.Close(); err != nil {
				logger.Warn("sqlite close failed", zap.Error(err))
			}
		}, nil
	default:
		return memory.NewBatchStore(), func() {}, nil
	}
}

func listBrowsers(ctx context.Context, client capture.RemoteJobClient) error {
	browsers, err := client.Browsers(ctx)
	if err != nil {
		return fmt.Errorf("list browsers: %w", err)
	}
	for _, b := range browsers {
		fmt.Println(b.String())
	}
	return nil
}
