package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bughunt/internal/common"
	"github.com/dmitrijs2005/bughunt/internal/logging"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
	"github.com/dmitrijs2005/bughunt/internal/server/repositories/repomanager"
)

var errBugNotFound = fmt.Errorf("%w: bug not found", common.ErrorNotFound)

// BugService implements the bug workflow.
type BugService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewBugService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *BugService {
	return &BugService{
		db:          db,
		repomanager: m,
		logger:      l.With("module", "bug_service"),
	}
}

// Create files a new bug as creatorID. Status always starts as open.
func (s *BugService) Create(ctx context.Context, title, description, creatorID string) (*models.Bug, error) {
	if title == "" || description == "" {
		return nil, fmt.Errorf("%w: title and description are required", common.ErrValidation)
	}

	bug, err := s.repomanager.Bugs(s.db).Create(ctx, &models.Bug{
		Title:       title,
		Description: description,
		CreatedBy:   creatorID,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating bug: %w", err)
	}

	s.logger.Info(ctx, "bug created", "bug_id", bug.ID, "creator", creatorID)
	return bug, nil
}

// List returns all bugs newest first, each with its screenshots oldest first.
func (s *BugService) List(ctx context.Context) ([]*models.BugDetails, error) {
	bugs, err := s.repomanager.Bugs(s.db).ListDetails(ctx)
	if err != nil {
		return nil, err
	}
	if len(bugs) == 0 {
		return bugs, nil
	}

	shots, err := s.repomanager.Screenshots(s.db).ListAll(ctx)
	if err != nil {
		return nil, err
	}

	byBug := make(map[string][]*models.Screenshot, len(bugs))
	for _, sh := range shots {
		byBug[sh.BugID] = append(byBug[sh.BugID], sh)
	}
	for _, b := range bugs {
		if list, ok := byBug[b.ID]; ok {
			b.Screenshots = list
		} else {
			b.Screenshots = []*models.Screenshot{}
		}
	}
	return bugs, nil
}

// Get returns one bug with its creator and screenshots.
func (s *BugService) Get(ctx context.Context, id string) (*models.BugDetails, error) {
	bug, err := s.repomanager.Bugs(s.db).GetDetails(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errBugNotFound
		}
		return nil, err
	}

	shots, err := s.repomanager.Screenshots(s.db).ListByBug(ctx, id)
	if err != nil {
		return nil, err
	}
	bug.Screenshots = shots
	return bug, nil
}

// Edit changes title and/or description. Only the creator or an admin may
// edit; the checks run in that order: fields, existence, permission.
func (s *BugService) Edit(ctx context.Context, id string, patch models.BugPatch, caller *models.Identity) (*models.Bug, error) {
	patch = models.BugPatch{Title: nonEmpty(patch.Title), Description: nonEmpty(patch.Description)}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: at least one of title or description is required", common.ErrValidation)
	}

	repo := s.repomanager.Bugs(s.db)

	bug, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errBugNotFound
		}
		return nil, err
	}

	if caller.Role != models.RoleAdmin && caller.ID != bug.CreatedBy {
		return nil, fmt.Errorf("%w: only the creator or an admin can edit this bug", common.ErrForbidden)
	}

	updated, err := repo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errBugNotFound
		}
		return nil, err
	}

	s.logger.Info(ctx, "bug edited", "bug_id", id, "by", caller.ID)
	return updated, nil
}

// UpdateStatus moves the bug to status. Any status may follow any other.
func (s *BugService) UpdateStatus(ctx context.Context, id, status string) (*models.Bug, error) {
	st, err := models.ParseBugStatus(status)
	if err != nil {
		return nil, err
	}

	bug, err := s.repomanager.Bugs(s.db).UpdateStatus(ctx, id, st)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errBugNotFound
		}
		return nil, err
	}

	s.logger.Info(ctx, "bug status changed", "bug_id", id, "status", string(st))
	return bug, nil
}
