// Package server wires the receiptkeeper backend together: it opens the
// database, runs migrations, builds the services and serves the HTTP API
// until a termination signal arrives.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/receiptkeeper/internal/dbx"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/config"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/events"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/recognition"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/receiptkeeper/internal/server/services"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config    *config.Config
	logger    logging.Logger
	db        *sql.DB
	publisher events.Publisher
	server    *httpapi.Server
}

// Deps are the external collaborators of the services. NewApp builds the
// production ones; nil collaborators are built from the config.
type Deps struct {
	DB          *sql.DB
	Repos       repomanager.RepositoryManager
	Blobs       blobstore.Store
	Recognizer  recognition.Recognizer
	Publisher   events.Publisher
	SkipMigrate bool
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, logging.ParseLevel(c.LogLevel))

	db, err := dbx.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	deps := Deps{DB: db, Repos: repomanager.NewPostgresRepositoryManager()}
	app, err := buildApp(ctx, c, logger, deps)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func buildApp(ctx context.Context, c *config.Config, logger logging.Logger, deps Deps) (*App, error) {
	if !deps.SkipMigrate {
		if err := deps.Repos.RunMigrations(ctx, deps.DB); err != nil {
			return nil, fmt.Errorf("migration error: %w", err)
		}
	}

	var err error
	if deps.Blobs == nil {
		if deps.Blobs, err = blobstore.NewS3Store(ctx, c); err != nil {
			return nil, fmt.Errorf("blob store init error: %w", err)
		}
	}
	if deps.Recognizer == nil {
		if deps.Recognizer, err = recognition.NewGeminiRecognizer(ctx, c.AIAPIKey, c.AIModel, logger); err != nil {
			return nil, fmt.Errorf("recognizer init error: %w", err)
		}
	}
	if deps.Publisher == nil {
		if deps.Publisher, err = newPublisher(c, logger); err != nil {
			return nil, err
		}
	}

	users := services.NewUserService(deps.DB, deps.Repos, deps.Blobs, c, logger)
	if err := users.SeedRoles(ctx); err != nil {
		_ = deps.Publisher.Close()
		return nil, fmt.Errorf("seed roles: %w", err)
	}

	svc := httpapi.Services{
		Users:    users,
		Ingest:   services.NewIngestService(deps.DB, deps.Repos, deps.Blobs, deps.Recognizer, deps.Publisher, c, logger),
		Receipts: services.NewReceiptService(deps.DB, deps.Repos, deps.Blobs, c, logger),
		Markets:  services.NewMarketService(deps.DB, deps.Repos, c, logger),
		Stats:    services.NewStatsService(deps.DB, deps.Repos, c, logger),
	}

	return &App{
		config:    c,
		logger:    logger,
		db:        deps.DB,
		publisher: deps.Publisher,
		server:    httpapi.NewServer(c, logger, svc, deps.DB),
	}, nil
}

func newPublisher(c *config.Config, logger logging.Logger) (events.Publisher, error) {
	if c.AMQPURL == "" {
		logger.Info(context.Background(), "AMQP URL not set, receipt events are disabled")
		return events.Nop{}, nil
	}
	p, err := events.NewAMQPPublisher(c.AMQPURL, c.AMQPExchange, c.AMQPRoutingKey, logger)
	if err != nil {
		return nil, fmt.Errorf("amqp init error: %w", err)
	}
	return p, nil
}

// Run serves until SIGINT, SIGTERM or SIGQUIT, or until ctx is cancelled,
// then releases the publisher and the database pool.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.server.Run(gctx)
	})

	err := g.Wait()

	app.logger.Info(ctx, "Shutting down...")
	if cerr := app.publisher.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close publisher: %w", cerr))
	}
	if cerr := app.db.Close(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("close db: %w", cerr))
	}
	return err
}
