// Package screenshots stores screenshot references in bug_screenshots.
package screenshots

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/bughunt/internal/dbx"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.Screenshot) (*models.Screenshot, error) {
	query :=
		`INSERT INTO bug_screenshots (bug_id, url)
		 VALUES ($1, $2)
		 RETURNING id, bug_id, url, created_at`

	out := &models.Screenshot{}
	err := r.db.QueryRowContext(ctx, query, s.BugID, s.URL).Scan(&out.ID, &out.BugID, &out.URL, &out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// ListByBug returns the bug's screenshots, oldest first.
func (r *PostgresRepository) ListByBug(ctx context.Context, bugID string) ([]*models.Screenshot, error) {
	if !dbx.IsSerialID(bugID) {
		return []*models.Screenshot{}, nil
	}
	query := `SELECT id, bug_id, url, created_at FROM bug_screenshots
		WHERE bug_id = $1
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query, bugID)
}

// ListAll returns every screenshot, oldest first. Listing all bugs uses it
// to avoid one query per bug.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Screenshot, error) {
	query := `SELECT id, bug_id, url, created_at FROM bug_screenshots
		ORDER BY created_at ASC, id ASC`
	return r.list(ctx, query)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Screenshot, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select screenshots: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Screenshot, 0)
	for rows.Next() {
		var s models.Screenshot
		if err := rows.Scan(&s.ID, &s.BugID, &s.URL, &s.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
