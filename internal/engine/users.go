package engine

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/gameroom/backend/internal/apikey"
	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/models"
)

// NewUser registers an account with login credentials. The plaintext
// password is hashed immediately and never stored or logged.
func (e *Engine) NewUser(ctx context.Context, name, email, password string) (*models.User, error) {
	_, err := e.store.FindUserByEmail(ctx, email)
	if err == nil {
		return nil, errs.ErrEmailAlreadyTaken
	}
	if !errors.Is(err, errs.ErrNoSuchUser) {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.BCrypt(err)
	}
	u := &models.User{
		Name:         name,
		Email:        sql.NullString{String: email, Valid: true},
		PasswordHash: sql.NullString{String: string(hash), Valid: true},
		APIKeyHash:   apikey.New().Hash(),
	}
	if err := e.store.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// NewTmpUser registers an account whose only credential is its api key.
func (e *Engine) NewTmpUser(ctx context.Context, name string) (*models.User, error) {
	u := &models.User{
		Name:       name,
		APIKeyHash: apikey.New().Hash(),
	}
	if err := e.store.InsertUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// FindUser looks up a user by id.
func (e *Engine) FindUser(ctx context.Context, id models.UserID) (*models.User, error) {
	return e.store.FindUser(ctx, id)
}

// FindUserByAPIKey authenticates a presented key against stored hashes.
func (e *Engine) FindUserByAPIKey(ctx context.Context, key apikey.Key) (*models.User, error) {
	return e.store.FindUserByAPIKeyHash(ctx, key.Hash())
}

// FindUserByCredentials authenticates an email/password pair.
func (e *Engine) FindUserByCredentials(ctx context.Context, email, password string) (*models.User, error) {
	u, err := e.store.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !u.PasswordHash.Valid {
		return nil, errs.ErrIncorrectCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash.String), []byte(password)) != nil {
		return nil, errs.ErrIncorrectCredentials
	}
	return u, nil
}

// RenameUser sets a user's display name.
func (e *Engine) RenameUser(ctx context.Context, u *models.User, name string) error {
	u.Name = name
	return e.store.UpdateUser(ctx, u)
}

// SetPassword replaces a user's password hash.
func (e *Engine) SetPassword(ctx context.Context, u *models.User, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errs.BCrypt(err)
	}
	u.PasswordHash = sql.NullString{String: string(hash), Valid: true}
	return e.store.UpdateUser(ctx, u)
}

// RotateAPIKey generates a fresh api key, stores its hash, and returns the
// plaintext key for the one-time reply to the client.
func (e *Engine) RotateAPIKey(ctx context.Context, u *models.User) (apikey.Key, error) {
	key := apikey.New()
	u.APIKeyHash = key.Hash()
	if err := e.store.UpdateUser(ctx, u); err != nil {
		return apikey.Key{}, err
	}
	return key, nil
}

// OldestWaitingGame resolves the version 1 move command's target: the
// oldest game waiting on the user.
func (e *Engine) OldestWaitingGame(ctx context.Context, userID models.UserID) (models.GameID, bool, error) {
	return e.store.FindOldestWaitingGameID(ctx, userID)
}
