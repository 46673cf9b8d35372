package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-engine/internal/domain"
)

// SavedViewRepository persists user-defined views.
type SavedViewRepository interface {
	Create(ctx context.Context, view *domain.SavedView) error
	GetByID(ctx context.Context, id string) (*domain.SavedView, error)
	// ListVisible returns views in orgID that are public, owned by userID or
	// scoped to one of teams.
	ListVisible(ctx context.Context, orgID, userID string, teams []string) ([]domain.SavedView, error)
	Delete(ctx context.Context, id string) error
}

type savedViewRepository struct {
	pool *pgxpool.Pool
}

// NewSavedViewRepository constructs repository.
func NewSavedViewRepository(pool *pgxpool.Pool) SavedViewRepository {
	return &savedViewRepository{pool: pool}
}

const savedViewColumns = `id, org_id, name, filters, team, user_id, is_public, created_by, created_at`

func (r *savedViewRepository) Create(ctx context.Context, view *domain.SavedView) error {
	filters, err := json.Marshal(view.Filters)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO saved_views (id, org_id, name, filters, team, user_id, is_public, created_by, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = r.pool.Exec(ctx, query,
		view.ID,
		view.OrgID,
		view.Name,
		filters,
		view.Team,
		view.UserID,
		view.IsPublic,
		view.CreatedBy,
		view.CreatedAt,
	)
	return err
}

func (r *savedViewRepository) GetByID(ctx context.Context, id string) (*domain.SavedView, error) {
	query := `SELECT ` + savedViewColumns + ` FROM saved_views WHERE id=$1`
	return scanSavedView(r.pool.QueryRow(ctx, query, id))
}

func (r *savedViewRepository) ListVisible(ctx context.Context, orgID, userID string, teams []string) ([]domain.SavedView, error) {
	query := `SELECT ` + savedViewColumns + ` FROM saved_views
        WHERE org_id=$1 AND (is_public OR user_id=$2 OR created_by=$2 OR team = ANY($3))
        ORDER BY name ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, orgID, userID, nonNilStrings(teams))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.SavedView{}
	for rows.Next() {
		view, err := scanSavedView(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *view)
	}
	return result, rows.Err()
}

func (r *savedViewRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM saved_views WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanSavedView(row pgx.Row) (*domain.SavedView, error) {
	var (
		view    domain.SavedView
		filters []byte
	)
	if err := row.Scan(
		&view.ID,
		&view.OrgID,
		&view.Name,
		&filters,
		&view.Team,
		&view.UserID,
		&view.IsPublic,
		&view.CreatedBy,
		&view.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(filters) > 0 {
		if err := json.Unmarshal(filters, &view.Filters); err != nil {
			return nil, err
		}
	}
	return &view, nil
}
