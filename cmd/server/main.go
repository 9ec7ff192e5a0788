package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"taskboard/internal/audit"
	"taskboard/internal/audit/kafka"
	blobservice "taskboard/internal/blobs/service"
	blobstore "taskboard/internal/blobs/store"
	"taskboard/internal/credential"
	docservice "taskboard/internal/documents/service"
	docstore "taskboard/internal/documents/store"
	idservice "taskboard/internal/identity/service"
	"taskboard/internal/identity/store/session"
	"taskboard/internal/identity/store/user"
	"taskboard/internal/identity/token"
	"taskboard/internal/platform/config"
	"taskboard/internal/platform/httpserver"
	"taskboard/internal/platform/logger"
	"taskboard/internal/platform/metrics"
	"taskboard/internal/platform/postgres"
	"taskboard/internal/platform/redis"
	httptransport "taskboard/internal/transport/http"
)

const (
	auditQueueSize = 1024
	drainTimeout   = 10 * time.Second
)

// main parses flags and exits non-zero when run fails. Business logic lives
// in the internal service packages.
func main() {
	configPath := pflag.StringP("config", "c", "", "YAML config file overlaid on environment defaults")
	addr := pflag.String("addr", "", "listen address, overrides TASKBOARD_ADDR")
	pflag.Parse()

	cfg := config.FromEnv()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// backends collects the stores chosen by configuration and their cleanup.
type backends struct {
	users    idservice.UserStore
	sessions idservice.SessionStore
	docs     docservice.DocumentStore
	blobs    blobservice.BlobStore
	health   map[string]httptransport.HealthCheck
	closers  []func() error
}

func (b *backends) close(log *slog.Logger) {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			log.Warn("failed to close backend", "error", err)
		}
	}
}

func openBackends(ctx context.Context, cfg config.Server, log *slog.Logger) (*backends, error) {
	b := &backends{health: map[string]httptransport.HealthCheck{}}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return b, err
		}
		b.closers = append(b.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			return b, err
		}
		b.users = user.NewPostgres(db)
		b.docs = docstore.NewPostgres(db, cfg.Database.DatabaseID)
		b.health["postgres"] = pingCheck(db)
		log.Info("using postgres document store", "database_id", cfg.Database.DatabaseID)
	} else {
		b.users = user.NewInMemoryUserStore()
		b.docs = docstore.NewInMemory(cfg.Database.DatabaseID)
		log.Warn("DATABASE_URL not set, documents and accounts are kept in memory")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return b, err
	}
	if rdb != nil {
		b.closers = append(b.closers, rdb.Close)
		b.sessions = session.NewRedis(rdb.Client)
		b.health["redis"] = rdb.Health
	} else {
		b.sessions = session.NewInMemorySessionStore()
	}

	if cfg.Blobs.SQLitePath != "" {
		files, err := blobstore.OpenSQLite(ctx, cfg.Blobs.SQLitePath)
		if err != nil {
			return b, err
		}
		b.closers = append(b.closers, files.Close)
		b.blobs = files
	} else {
		b.blobs = blobstore.NewInMemory()
	}
	return b, nil
}

func pingCheck(db *sql.DB) httptransport.HealthCheck {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// openAudit returns the publisher services emit through. With brokers set,
// events are queued and forwarded to Kafka by a background worker.
func openAudit(ctx context.Context, cfg config.Server, log *slog.Logger) (*audit.Publisher, func(), error) {
	if len(cfg.Audit.Brokers) == 0 {
		return audit.NewPublisher(audit.NewInMemoryStore()), func() {}, nil
	}
	sink, err := kafka.New(cfg.Audit.Brokers, cfg.Audit.Topic)
	if err != nil {
		return nil, nil, err
	}
	if err := sink.EnsureTopic(ctx, 3, 1); err != nil {
		sink.Close()
		return nil, nil, err
	}

	queue := audit.NewQueue(auditQueueSize, log)
	worker := audit.NewWorker(sink, queue, log)
	workerCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()
	shutdown := func() {
		cancel()
		<-done
		sink.Close()
	}
	return audit.NewPublisher(queue), shutdown, nil
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	b, err := openBackends(ctx, cfg, log)
	defer b.close(log)
	if err != nil {
		return err
	}

	publisher, stopAudit, err := openAudit(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stopAudit()

	m := metrics.New()
	signer := token.NewSigner(cfg.SigningKey, cfg.ProjectID)
	gateway := idservice.New(b.users, b.sessions, idservice.NewSignerAdapter(signer), cfg.AdminKey,
		idservice.WithLogger(log),
		idservice.WithAuditPublisher(publisher),
		idservice.WithMetrics(m),
		idservice.WithSessionTTL(cfg.Session.TTL),
	)
	docs := docservice.New(b.docs, gateway,
		docservice.Collections{
			Projects: cfg.Database.ProjectsCollectionID,
			Tasks:    cfg.Database.TasksCollectionID,
			Comments: cfg.Database.CommentsCollectionID,
		},
		docservice.WithLogger(log),
		docservice.WithAuditPublisher(publisher),
		docservice.WithMetrics(m),
	)
	files := blobservice.New(b.blobs, cfg.Blobs.BucketID,
		blobservice.Limits{MaxUploadBytes: cfg.Blobs.MaxUploadBytes, MaxBufferedBytes: cfg.Blobs.MaxBufferedBytes},
		blobservice.WithLogger(log),
		blobservice.WithAuditPublisher(publisher),
		blobservice.WithMetrics(m),
		blobservice.WithPreviewWidth(cfg.Blobs.PreviewWidth),
	)

	var cookieOpts []credential.Option
	if !cfg.IsProduction() {
		cookieOpts = append(cookieOpts, credential.WithInsecure())
	}

	router := httptransport.NewRouter(httptransport.Dependencies{
		Gateway:        gateway,
		Documents:      docs,
		Files:          files,
		Cookies:        credential.New(cfg.Session.CookieName, cookieOpts...),
		Logger:         log,
		Metrics:        promhttp.Handler(),
		Health:         b.health,
		PreviewFanout:  cfg.Blobs.PreviewFanout,
		MaxUploadBytes: cfg.Blobs.MaxUploadBytes,
	})

	return httpserver.Run(ctx, httpserver.New(cfg.Addr, router), log, drainTimeout)
}
