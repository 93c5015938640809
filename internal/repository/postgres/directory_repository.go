package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cassiomorais/notifications/internal/domain/directory"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DirectoryRepository reads the user and project read models.
type DirectoryRepository struct {
	pool *pgxpool.Pool
}

func NewDirectoryRepository(pool *pgxpool.Pool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool}
}

func (r *DirectoryRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *DirectoryRepository) GetUserByID(ctx context.Context, id string) (*directory.User, error) {
	return r.findUser(ctx, `SELECT id, email, full_name, username FROM directory_users WHERE id = $1`, id)
}

func (r *DirectoryRepository) FindByUsername(ctx context.Context, username string) (*directory.User, error) {
	return r.findUser(ctx,
		`SELECT id, email, full_name, username FROM directory_users WHERE LOWER(username) = LOWER($1)`, username)
}

func (r *DirectoryRepository) findUser(ctx context.Context, query, arg string) (*directory.User, error) {
	u := &directory.User{}
	err := r.db(ctx).QueryRow(ctx, query, arg).Scan(&u.ID, &u.Email, &u.FullName, &u.Username)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get directory user: %w", err)
	}
	return u, nil
}

func (r *DirectoryRepository) ProjectName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := r.db(ctx).QueryRow(ctx, `SELECT name FROM projects WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get project name: %w", err)
	}
	return name, nil
}
