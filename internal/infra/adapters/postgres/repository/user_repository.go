package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/SyncRoom/internal/domain"
	"github.com/qrave1/SyncRoom/internal/domain/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error)
}

type userRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) CreateUser(ctx context.Context, user *models.User) error {
	query := "INSERT INTO users (id, username, password, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)"

	res, err := r.db.ExecContext(ctx, query, user.ID, user.Username, user.Password, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrUsernameTaken
		}

		return fmt.Errorf("create user: %w", err)
	}

	if aff, err := res.RowsAffected(); aff == 0 || err != nil {
		return fmt.Errorf("create user no rows affected: %w", err)
	}

	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User

	query := "SELECT id, username, password, created_at, updated_at FROM users WHERE id = $1"

	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return &user, nil
}

func (r *userRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User

	query := "SELECT id, username, password, created_at, updated_at FROM users WHERE username = $1"

	err := r.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}

		return nil, fmt.Errorf("get user by username: %w", err)
	}

	return &user, nil
}

func (r *userRepo) GetUsersByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In("SELECT id, username, created_at, updated_at FROM users WHERE id IN (?) ORDER BY username", ids)
	if err != nil {
		return nil, fmt.Errorf("build users query: %w", err)
	}

	var users []*models.User

	if err = r.db.SelectContext(ctx, &users, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}

	return users, nil
}
