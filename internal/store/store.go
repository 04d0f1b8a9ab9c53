// Package store is the persistence layer. The relational database is the
// only durable state in the system; everything in memory is a derived view.
// Two implementations exist: SQL over Postgres, and Memory for tests and
// ephemeral servers.
package store

import (
	"context"

	"github.com/gameroom/backend/internal/models"
)

// Store exposes the typed row operations the engine and dispatcher need.
// Lookup misses surface as taxonomy errors (errs.ErrNoSuchUser,
// errs.ErrNoSuchGame, errs.ErrNotInGame, errs.ErrInvalidApiKey).
type Store interface {
	// Users
	FindUser(ctx context.Context, id models.UserID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByAPIKeyHash(ctx context.Context, hash string) (*models.User, error)
	// InsertUser assigns the new row's id to u.ID.
	InsertUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error

	// Games
	InsertGame(ctx context.Context, g *models.Game) error
	FindGame(ctx context.Context, id models.GameID) (*models.Game, error)
	// FindGameForUpdate locks the game row for the rest of the enclosing
	// transaction, serializing concurrent move attempts on the same game.
	FindGameForUpdate(ctx context.Context, id models.GameID) (*models.Game, error)
	UpdateGame(ctx context.Context, g *models.Game) error

	// Game players
	InsertGamePlayer(ctx context.Context, p *models.GamePlayer) error
	UpdateGamePlayer(ctx context.Context, p *models.GamePlayer) error
	DeleteGamePlayer(ctx context.Context, id models.GamePlayerID) error
	// FindGamePlayers returns a game's players in join (insertion) order.
	FindGamePlayers(ctx context.Context, gameID models.GameID) ([]models.GamePlayer, error)
	FindGamePlayer(ctx context.Context, gameID models.GameID, userID models.UserID) (*models.GamePlayer, error)
	// FindWaitingGameIDs returns ids of games waiting on the user to move,
	// oldest first.
	FindWaitingGameIDs(ctx context.Context, userID models.UserID) ([]models.GameID, error)
	FindOldestWaitingGameID(ctx context.Context, userID models.UserID) (models.GameID, bool, error)

	// Transact runs fn against a transactional view of the store. Writes
	// that span a game and its players go through here.
	Transact(ctx context.Context, fn func(Store) error) error
}
