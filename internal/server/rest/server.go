// Package rest exposes the BugHunt services over a JSON/HTTP API routed with
// gorilla/mux.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/bughunt/internal/logging"
	"github.com/dmitrijs2005/bughunt/internal/server/config"
	"github.com/dmitrijs2005/bughunt/internal/server/metrics"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
	"github.com/dmitrijs2005/bughunt/internal/server/services"
)

type UserService interface {
	Register(ctx context.Context, in services.RegisterInput) (*models.User, error)
	CreateUser(ctx context.Context, in services.RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.LoginResult, error)
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

type BugService interface {
	Create(ctx context.Context, title, description, creatorID string) (*models.Bug, error)
	List(ctx context.Context) ([]*models.BugDetails, error)
	Get(ctx context.Context, id string) (*models.BugDetails, error)
	Edit(ctx context.Context, id string, patch models.BugPatch, caller *models.Identity) (*models.Bug, error)
	UpdateStatus(ctx context.Context, id, status string) (*models.Bug, error)
}

type ScreenshotService interface {
	Attach(ctx context.Context, bugID string, up *services.Upload) (*models.Screenshot, error)
}

// Pinger reports database liveness for /health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

const shutdownTimeout = 10 * time.Second

type Server struct {
	address     string
	uploadsDir  string
	maxUpload   int64
	development bool

	users       UserService
	bugs        BugService
	screenshots ScreenshotService
	db          Pinger
	metrics     *metrics.Metrics
	logger      logging.Logger
}

func NewServer(cfg *config.Config, l logging.Logger, us UserService, bs BugService, ss ScreenshotService, db Pinger, m *metrics.Metrics) *Server {
	return &Server{
		address:     cfg.EndpointAddrHTTP,
		uploadsDir:  cfg.UploadsDir,
		maxUpload:   cfg.MaxUploadSize,
		development: cfg.Development(),
		users:       us,
		bugs:        bs,
		screenshots: ss,
		db:          db,
		metrics:     m,
		logger:      l.With("module", "http_server"),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
