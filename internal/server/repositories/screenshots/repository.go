package screenshots

import (
	"context"

	"github.com/dmitrijs2005/bughunt/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Screenshot) (*models.Screenshot, error)
	ListByBug(ctx context.Context, bugID string) ([]*models.Screenshot, error)
	ListAll(ctx context.Context) ([]*models.Screenshot, error)
}
