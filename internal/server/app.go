// Package server wires the BugHunt components together: database and
// migrations, image host, services and the HTTP API, and runs them until
// the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/bughunt/internal/filex"
	"github.com/dmitrijs2005/bughunt/internal/logging"
	"github.com/dmitrijs2005/bughunt/internal/server/config"
	"github.com/dmitrijs2005/bughunt/internal/server/imagehost"
	"github.com/dmitrijs2005/bughunt/internal/server/metrics"
	"github.com/dmitrijs2005/bughunt/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/bughunt/internal/server/rest"
	"github.com/dmitrijs2005/bughunt/internal/server/services"
	"github.com/prometheus/client_golang/prometheus"
)

// Seams for tests.
var (
	openDB = repomanager.OpenPostgres

	newRepositoryManager = repomanager.NewPostgresRepositoryManager

	newImageHost = func(ctx context.Context, c *config.Config) (imagehost.ImageHost, error) {
		return imagehost.NewS3Host(ctx, c)
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *rest.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stdout, c.Development())

	dir, err := filex.EnsureDir(c.UploadsDir)
	if err != nil {
		return nil, fmt.Errorf("uploads dir error: %w", err)
	}
	cfg := *c
	cfg.UploadsDir = dir

	db, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	host, err := newImageHost(ctx, &cfg)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("image host init error: %w", err)
	}

	us := services.NewUserService(db, rm, &cfg, logger)
	bs := services.NewBugService(db, rm, logger)
	ss := services.NewScreenshotService(db, rm, host, &cfg, logger)

	created, err := us.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap admin error: %w", err)
	}
	if created {
		logger.Info(ctx, "bootstrap admin created", "email", cfg.AdminEmail)
	}

	srv := rest.NewServer(&cfg, logger, us, bs, ss, db, metrics.New(prometheus.NewRegistry()))

	return &App{config: &cfg, logger: logger, db: db, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "env", app.config.Env)

	app.initSignalHandler(cancelFunc)

	err := app.server.Run(ctx)
	if err != nil {
		app.logger.Error(ctx, err.Error())
	}

	if cerr := app.db.Close(); cerr != nil {
		app.logger.Error(ctx, "db close error", "error", cerr.Error())
	}

	app.logger.Info(ctx, "App stopped")
	return err
}
