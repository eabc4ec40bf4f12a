package users

import (
	"context"

	"github.com/dmitrijs2005/bughunt/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	EmailTaken(ctx context.Context, email string, exceptID string) (bool, error)
	UpdateProfile(ctx context.Context, id string, patch models.ProfilePatch) (*models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}
