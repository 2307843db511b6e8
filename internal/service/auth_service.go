package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/clipnote/api/internal/storage"
)

// ErrInvalidCredentials covers both unknown accounts and wrong passwords so
// callers cannot distinguish them.
var ErrInvalidCredentials = errors.New("incorrect username or password")

// ErrEmailTaken is returned when signing up with a registered email.
var ErrEmailTaken = errors.New("email already registered")

// AuthService owns account registration and credential checks. Token
// issuance lives in the auth middleware; this service only vouches for
// identities.
type AuthService struct {
	db *storage.DB
}

func NewAuthService(db *storage.DB) *AuthService {
	return &AuthService{db: db}
}

// Signup registers a new account with a bcrypt password hash.
func (s *AuthService) Signup(ctx context.Context, email, password string) error {
	if _, err := s.db.AccountByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.db.CreateAccount(ctx, email, string(hash)); err != nil {
		if strings.Contains(err.Error(), "constraint failed") {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// Login verifies credentials and returns the matched account.
func (s *AuthService) Login(ctx context.Context, email, password string) (*storage.Account, error) {
	account, err := s.db.AccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return account, nil
}
