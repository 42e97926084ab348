package repositories

import (
	"context"
	"fmt"

	"github.com/Dosada05/coding-league/models"
	"github.com/jmoiron/sqlx"
)

var ErrUserNotFound = fmt.Errorf("%w: user", ErrNotFound)

// UserRepository is read-only: accounts are managed by the identity provider.
type UserRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.User, error)
	// GetByIDForUpdate locks the user row until the surrounding transaction ends.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.User, error)
}

const selectUserSQL = `
	SELECT id, first_name, last_name, nickname, role, school_id, experience_points, created_at
	FROM users
	WHERE id = $1`

type postgresUserRepository struct {
	baseRepository
}

func NewPostgresUserRepository(db *sqlx.DB) UserRepository {
	return &postgresUserRepository{baseRepository{db: db}}
}

func (r *postgresUserRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.User, error) {
	var user models.User
	if err := getOne(ctx, r.getExecutor(exec), &user, ErrUserNotFound, selectUserSQL, id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *postgresUserRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.User, error) {
	var user models.User
	if err := getOne(ctx, r.getExecutor(exec), &user, ErrUserNotFound, selectUserSQL+` FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &user, nil
}
