package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskman/internal/domain"
)

const userColumns = `SELECT id,username,email,display_name,role,password_hash,created_at,updated_at FROM users`

// UserDAO is the generic template bound to users, plus the lookups the
// login and CLI paths need.
type UserDAO struct {
	*DAO[*domain.User]
}

func NewUserDAO(db *sql.DB) *UserDAO {
	return &UserDAO{New(db, Hooks[*domain.User]{
		Table:     "users",
		SelectSQL: userColumns,
		InsertSQL: `INSERT INTO users(username,email,display_name,role,password_hash,created_at,updated_at) VALUES (?,?,?,?,?,?,?)`,
		UpdateSQL: `UPDATE users SET username=?, email=?, display_name=?, role=?, password_hash=?, updated_at=? WHERE id=?`,
		InsertArgs: func(u *domain.User) []any {
			return []any{u.Username, u.Email, u.DisplayName, string(u.Role), u.PasswordHash, formatTime(u.CreatedAt), formatTime(u.UpdatedAt)}
		},
		UpdateArgs: func(u *domain.User) []any {
			return []any{u.Username, u.Email, u.DisplayName, string(u.Role), u.PasswordHash, formatTime(u.UpdatedAt)}
		},
		ScanRow: scanUser,
	})}
}

func scanUser(s Scanner) (*domain.User, error) {
	var u domain.User
	var role, createdAt, updatedAt string
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.DisplayName, &role, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.Role = domain.Role(role)
	var err error
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("users.created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("users.updated_at: %w", err)
	}
	return &u, nil
}

func (d *UserDAO) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := d.db.QueryRowContext(ctx, userColumns+` WHERE username=?`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", username, err)
	}
	return u, nil
}

func (d *UserDAO) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := d.db.QueryRowContext(ctx, userColumns+` WHERE email=?`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return u, nil
}
