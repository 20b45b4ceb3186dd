package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-engine/internal/domain"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates the Postgres user reader.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, name, email, role, active FROM users WHERE id=$1`
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Active,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListCandidates(ctx context.Context, tier *domain.Level) ([]domain.User, error) {
	roles := []string{string(domain.RoleL1), string(domain.RoleL2), string(domain.RoleL3)}
	if tier != nil {
		roles = []string{string(domain.RoleForLevel(*tier))}
	}
	const query = `
        SELECT id, name, email, role, active FROM users
        WHERE active = true AND role = ANY($1)
        ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, roles)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.Active); err != nil {
			return nil, err
		}
		result = append(result, user)
	}
	return result, rows.Err()
}
