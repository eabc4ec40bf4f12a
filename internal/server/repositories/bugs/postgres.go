// Package bugs stores bug reports in the PostgreSQL bugs table.
package bugs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bughunt/internal/common"
	"github.com/dmitrijs2005/bughunt/internal/dbx"
	"github.com/dmitrijs2005/bughunt/internal/server/models"
)

const (
	bugColumns = `id, title, description, status, created_by, created_at, updated_at`

	detailsSelect = `SELECT b.id, b.title, b.description, b.status, b.created_by, b.created_at, b.updated_at,
		u.name, u.email
		FROM bugs b
		JOIN users u ON b.created_by = u.id`
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts bug; status always starts as open.
func (r *PostgresRepository) Create(ctx context.Context, bug *models.Bug) (*models.Bug, error) {
	query :=
		`INSERT INTO bugs (title, description, status, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING ` + bugColumns

	row := r.db.QueryRowContext(ctx, query, bug.Title, bug.Description, string(models.StatusOpen), bug.CreatedBy)
	created, err := scanBug(row)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Bug, error) {
	if !dbx.IsSerialID(id) {
		return nil, common.ErrorNotFound
	}
	query := `SELECT ` + bugColumns + ` FROM bugs WHERE id = $1`
	return oneBug(r.db.QueryRowContext(ctx, query, id))
}

// GetDetails returns the bug joined with its creator. Screenshots are left
// empty; the caller attaches them.
func (r *PostgresRepository) GetDetails(ctx context.Context, id string) (*models.BugDetails, error) {
	if !dbx.IsSerialID(id) {
		return nil, common.ErrorNotFound
	}
	d, err := scanDetails(r.db.QueryRowContext(ctx, detailsSelect+` WHERE b.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// ListDetails returns every bug joined with its creator, newest first.
func (r *PostgresRepository) ListDetails(ctx context.Context) ([]*models.BugDetails, error) {
	rows, err := r.db.QueryContext(ctx, detailsSelect+` ORDER BY b.created_at DESC, b.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make([]*models.BugDetails, 0)
	for rows.Next() {
		d, err := scanDetails(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

// Update applies the fields present in patch with a single UPDATE statement.
// Concurrent edits are last-write-wins.
func (r *PostgresRepository) Update(ctx context.Context, id string, patch models.BugPatch) (*models.Bug, error) {
	if patch.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", common.ErrValidation)
	}
	if !dbx.IsSerialID(id) {
		return nil, common.ErrorNotFound
	}

	var sets []string
	var args []any
	if patch.Title != nil {
		args = append(args, *patch.Title)
		sets = append(sets, fmt.Sprintf("title = $%d", len(args)))
	}
	if patch.Description != nil {
		args = append(args, *patch.Description)
		sets = append(sets, fmt.Sprintf("description = $%d", len(args)))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE bugs SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), bugColumns)

	return oneBug(r.db.QueryRowContext(ctx, query, args...))
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status models.BugStatus) (*models.Bug, error) {
	if !dbx.IsSerialID(id) {
		return nil, common.ErrorNotFound
	}
	query := `UPDATE bugs SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING ` + bugColumns
	return oneBug(r.db.QueryRowContext(ctx, query, string(status), id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBug(row rowScanner) (*models.Bug, error) {
	b := &models.Bug{}
	var status string
	if err := row.Scan(&b.ID, &b.Title, &b.Description, &status, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Status = models.BugStatus(status)
	return b, nil
}

func scanDetails(row rowScanner) (*models.BugDetails, error) {
	d := &models.BugDetails{Screenshots: []*models.Screenshot{}}
	var status string
	err := row.Scan(&d.ID, &d.Title, &d.Description, &status, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt,
		&d.CreatorName, &d.CreatorEmail)
	if err != nil {
		return nil, err
	}
	d.Status = models.BugStatus(status)
	return d, nil
}

func oneBug(row *sql.Row) (*models.Bug, error) {
	b, err := scanBug(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return b, nil
}
