// Package services contains server-side business logic. This file implements
// UserService: registration, credential checks, bearer tokens and the
// caller's own profile.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/bughunt/internal/common"
	"github.com/dmitrijs2005/bughunt/internal/dbx"
	"github.com/dmitrijs2005/bughunt/internal/logging"
	"github.com/dmitrijs2005/bughunt/internal/server/auth"
	"github.com/dmitrijs2005/bughunt/internal/server/config"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
	"github.com/dmitrijs2005/bughunt/internal/server/repositories/repomanager"
)

// RegisterInput is the payload for creating an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// LoginResult is returned on successful login.
type LoginResult struct {
	User      *models.Identity `json:"user"`
	Token     string           `json:"token"`
	ExpiresIn string           `json:"expiresIn"`
}

// UserService provides account and authentication operations.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
	bcryptCost                  int
	logger                      logging.Logger
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, l logging.Logger) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
		bcryptCost:                  cfg.BcryptCost,
		logger:                      l.With("module", "user_service"),
	}
}

// Register is public self-registration. Any requested role is ignored and
// the account is created as a plain user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.create(ctx, in, models.RoleUser)
}

// CreateUser is the admin variant of Register and honours in.Role.
func (s *UserService) CreateUser(ctx context.Context, in RegisterInput) (*models.User, error) {
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, in, role)
}

func (s *UserService) create(ctx context.Context, in RegisterInput, role models.Role) (*models.User, error) {
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", common.ErrValidation)
	}
	if len(in.Password) < common.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, common.MinPasswordLength)
	}

	repo := s.repomanager.Users(s.db)

	taken, err := repo.EmailTaken(ctx, in.Email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: email already registered", common.ErrConflict)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := repo.Create(ctx, &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", common.ErrConflict)
		}
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	s.logger.Info(ctx, "user created", "user_id", user.ID, "role", string(user.Role))
	return user, nil
}

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", common.ErrAuthentication)

// VerifyCredentials returns the account for email if password matches. An
// unknown email and a wrong password produce the same error.
func (s *UserService) VerifyCredentials(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrValidation)
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if !auth.ComparePassword(password, user.PasswordHash) {
		return nil, errInvalidCredentials
	}
	return user, nil
}

// IssueToken signs a bearer token for user.
func (s *UserService) IssueToken(user *models.User) (string, error) {
	return auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
}

// DecodeToken verifies token and returns its subject id.
func (s *UserService) DecodeToken(token string) (string, error) {
	return auth.GetUserIDFromToken(token, s.jwtSecret)
}

func (s *UserService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, err := s.IssueToken(user)
	if err != nil {
		return nil, fmt.Errorf("error generating token: %w", err)
	}

	return &LoginResult{
		User:      user.Identity(),
		Token:     token,
		ExpiresIn: s.accessTokenValidityDuration.String(),
	}, nil
}

// Authenticate resolves a bearer token to the current state of its user.
// Token failures are returned as is; a subject that no longer exists yields
// common.ErrUnauthenticated.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	userID, err := s.DecodeToken(token)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: user not found", common.ErrUnauthenticated)
		}
		return nil, err
	}
	return user.Identity(), nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: user not found", common.ErrorNotFound)
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context) ([]*models.User, error) {
	return s.repomanager.Users(s.db).List(ctx)
}

// nonEmpty drops pointers to empty strings so they count as absent.
func nonEmpty(p *string) *string {
	if p == nil || strings.TrimSpace(*p) == "" {
		return nil
	}
	return p
}

// UpdateProfile changes the caller's own name and/or email. The uniqueness
// check and the update run in one transaction.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, patch models.ProfilePatch) (*models.User, error) {
	patch = models.ProfilePatch{Name: nonEmpty(patch.Name), Email: nonEmpty(patch.Email)}
	if patch.Empty() {
		return nil, fmt.Errorf("%w: at least one field (name or email) is required", common.ErrValidation)
	}

	var updated *models.User
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		if patch.Email != nil {
			taken, err := repo.EmailTaken(ctx, *patch.Email, userID)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: email already in use by another user", common.ErrConflict)
			}
		}

		u, err := repo.UpdateProfile(ctx, userID, patch)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrorNotFound):
				return fmt.Errorf("%w: user not found", common.ErrorNotFound)
			case errors.Is(err, common.ErrConflict):
				return fmt.Errorf("%w: email already in use by another user", common.ErrConflict)
			}
			return err
		}
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if current == "" || next == "" {
		return fmt.Errorf("%w: current and new password are required", common.ErrValidation)
	}
	if len(next) < common.MinPasswordLength {
		return fmt.Errorf("%w: new password must be at least %d characters", common.ErrValidation, common.MinPasswordLength)
	}

	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: user not found", common.ErrorNotFound)
		}
		return err
	}

	if !auth.ComparePassword(current, user.PasswordHash) {
		return fmt.Errorf("%w: current password is incorrect", common.ErrAuthentication)
	}

	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	if err := repo.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "user_id", userID)
	return nil
}

// EnsureAdmin creates an admin account for email unless one with that email
// already exists. An empty email disables it. It reports whether an account
// was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" {
		return false, nil
	}

	_, err := s.repomanager.Users(s.db).GetByEmail(ctx, email)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return false, err
	}

	if _, err := s.create(ctx, RegisterInput{Name: "Administrator", Email: email, Password: password}, models.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}
