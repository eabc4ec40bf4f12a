package bugs

import (
	"context"

	"github.com/dmitrijs2005/bughunt/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, bug *models.Bug) (*models.Bug, error)
	GetByID(ctx context.Context, id string) (*models.Bug, error)
	GetDetails(ctx context.Context, id string) (*models.BugDetails, error)
	ListDetails(ctx context.Context) ([]*models.BugDetails, error)
	Update(ctx context.Context, id string, patch models.BugPatch) (*models.Bug, error)
	UpdateStatus(ctx context.Context, id string, status models.BugStatus) (*models.Bug, error)
}
