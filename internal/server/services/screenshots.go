package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/bughunt/internal/common"
	"github.com/dmitrijs2005/bughunt/internal/filex"
	"github.com/dmitrijs2005/bughunt/internal/logging"
	"github.com/dmitrijs2005/bughunt/internal/server/config"
	"github.com/dmitrijs2005/bughunt/internal/server/imagehost"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
	"github.com/dmitrijs2005/bughunt/internal/server/repositories/repomanager"
)

// Upload is an incoming screenshot file. File is nil when none was sent.
type Upload struct {
	File        io.Reader
	Filename    string
	ContentType string
}

// ScreenshotService attaches screenshots to bugs: the image goes to the
// image host first, then its URL is recorded.
type ScreenshotService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	host        imagehost.ImageHost
	uploadsDir  string
	maxSize     int64
	logger      logging.Logger
}

func NewScreenshotService(db *sql.DB, m repomanager.RepositoryManager, host imagehost.ImageHost, cfg *config.Config, l logging.Logger) *ScreenshotService {
	return &ScreenshotService{
		db:          db,
		repomanager: m,
		host:        host,
		uploadsDir:  cfg.UploadsDir,
		maxSize:     cfg.MaxUploadSize,
		logger:      l.With("module", "screenshot_service"),
	}
}

// Attach validates the upload, stores the image and records it against bugID.
// If the row cannot be written after a successful upload the remote image is
// left behind; its id is logged.
func (s *ScreenshotService) Attach(ctx context.Context, bugID string, up *Upload) (*models.Screenshot, error) {
	if bugID == "" {
		return nil, fmt.Errorf("%w: bug_id is required", common.ErrValidation)
	}

	if _, err := s.repomanager.Bugs(s.db).GetByID(ctx, bugID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errBugNotFound
		}
		return nil, err
	}

	if up == nil || up.File == nil {
		return nil, fmt.Errorf("%w: no file provided", common.ErrValidation)
	}
	if !strings.HasPrefix(up.ContentType, "image/") {
		return nil, fmt.Errorf("%w: only image files are allowed", common.ErrValidation)
	}

	f, _, cleanup, err := filex.Spool(s.uploadsDir, "screenshot-*", up.File, s.maxSize)
	defer cleanup()
	if err != nil {
		if errors.Is(err, filex.ErrTooLarge) {
			return nil, fmt.Errorf("%w: file too large, maximum %dMB", common.ErrPayloadTooLarge, s.maxSize>>20)
		}
		return nil, fmt.Errorf("error spooling upload: %w", err)
	}

	res, err := s.host.Upload(ctx, f, up.ContentType, imagehost.ScreenshotOptions)
	if err != nil {
		s.logger.Error(ctx, "image upload failed", "bug_id", bugID, "error", err.Error())
		if errors.Is(err, common.ErrUpload) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", common.ErrUpload, err)
	}

	shot, err := s.repomanager.Screenshots(s.db).Create(ctx, &models.Screenshot{BugID: bugID, URL: res.URL})
	if err != nil {
		s.logger.Error(ctx, "screenshot row not written, image orphaned",
			"bug_id", bugID, "storage_id", res.ID, "error", err.Error())
		return nil, fmt.Errorf("%w: error saving screenshot", common.ErrorInternal)
	}

	s.logger.Info(ctx, "screenshot attached", "bug_id", bugID, "screenshot_id", shot.ID, "storage_id", res.ID)
	return shot, nil
}
