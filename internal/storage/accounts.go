package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Account is a registered user. PasswordHash is a bcrypt digest.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
}

// CreateAccount inserts a new account record.
func (s *DB) CreateAccount(ctx context.Context, email, passwordHash string) (*Account, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO accounts (email, password_hash) VALUES (?, ?)`,
		email,
		passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Account{ID: id, Email: email, PasswordHash: passwordHash}, nil
}

// AccountByEmail fetches an account, returning ErrNotFound when absent.
func (s *DB) AccountByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, email, password_hash FROM accounts WHERE email = ?`,
		email,
	)
	var account Account
	if err := row.Scan(&account.ID, &account.Email, &account.PasswordHash); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}
