package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tryswift/cfp-auth/internal/core/domain"
)

// PgxUserRepository implements domain.UserRepository using pgxpool.
type PgxUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PgxUserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PgxUserRepository {
	return &PgxUserRepository{pool: pool}
}

// Upsert inserts the user or refreshes an existing row keyed by GitHub ID.
// last_login is bumped on every call since Upsert only happens at login.
func (r *PgxUserRepository) Upsert(ctx context.Context, user domain.UserRow) (*domain.UserRow, error) {
	query := `
		INSERT INTO users (github_id, login, name, email, avatar_url, role, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		ON CONFLICT (github_id) DO UPDATE SET
			login = EXCLUDED.login,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			role = EXCLUDED.role,
			last_login = CURRENT_TIMESTAMP
		RETURNING id, github_id, login, name, email, avatar_url, role
	`

	var row domain.UserRow
	err := r.pool.QueryRow(ctx, query,
		user.GitHubID, user.Login, user.Name, user.Email, user.AvatarURL, user.Role,
	).Scan(
		&row.ID, &row.GitHubID, &row.Login, &row.Name, &row.Email, &row.AvatarURL, &row.Role,
	)
	if err != nil {
		return nil, err
	}

	return &row, nil
}

// GetByGitHubID returns the user with the given GitHub account ID.
// Returns (nil, nil) when no user is found.
func (r *PgxUserRepository) GetByGitHubID(ctx context.Context, githubID int64) (*domain.UserRow, error) {
	query := `SELECT id, github_id, login, name, email, avatar_url, role FROM users WHERE github_id = $1`

	var row domain.UserRow
	err := r.pool.QueryRow(ctx, query, githubID).Scan(
		&row.ID, &row.GitHubID, &row.Login, &row.Name, &row.Email, &row.AvatarURL, &row.Role,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &row, nil
}

// List returns all users ordered by login.
func (r *PgxUserRepository) List(ctx context.Context) ([]domain.UserRow, error) {
	query := `SELECT id, github_id, login, name, email, avatar_url, role FROM users ORDER BY login`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.UserRow
	for rows.Next() {
		var row domain.UserRow
		if err := rows.Scan(
			&row.ID, &row.GitHubID, &row.Login, &row.Name, &row.Email, &row.AvatarURL, &row.Role,
		); err != nil {
			return nil, err
		}
		users = append(users, row)
	}

	return users, rows.Err()
}
