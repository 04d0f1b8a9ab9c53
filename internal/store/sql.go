package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/models"
)

const (
	selectUser       = `SELECT id, email, name, is_admin, password_hash, api_key_hash FROM users`
	selectGame       = `SELECT id, owner_id, game_type, state, finished, winner, is_tie, dur_per_move_ms, dur_sudden_death_ms, current_move_start_ms, turn_id FROM games`
	selectGamePlayer = `SELECT id, game_id, user_id, score, waiting_for_move, time_ms FROM game_players`
)

// SQL is the Postgres-backed store.
type SQL struct {
	db *sqlx.DB
	q  sqlx.ExtContext
}

// NewSQL wraps a connection pool.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db, q: db}
}

func wrapDB(err error, miss error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return miss
	}
	return errs.DB(err)
}

// ---- Users ----

func (s *SQL) FindUser(ctx context.Context, id models.UserID) (*models.User, error) {
	var u models.User
	if err := sqlx.GetContext(ctx, s.q, &u, selectUser+` WHERE id=$1`, id); err != nil {
		return nil, wrapDB(err, errs.ErrNoSuchUser)
	}
	return &u, nil
}

func (s *SQL) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := sqlx.GetContext(ctx, s.q, &u, selectUser+` WHERE email=$1`, email); err != nil {
		return nil, wrapDB(err, errs.ErrNoSuchUser)
	}
	return &u, nil
}

func (s *SQL) FindUserByAPIKeyHash(ctx context.Context, hash string) (*models.User, error) {
	var u models.User
	if err := sqlx.GetContext(ctx, s.q, &u, selectUser+` WHERE api_key_hash=$1`, hash); err != nil {
		return nil, wrapDB(err, errs.ErrInvalidApiKey)
	}
	return &u, nil
}

func (s *SQL) InsertUser(ctx context.Context, u *models.User) error {
	err := sqlx.GetContext(ctx, s.q, &u.ID,
		`INSERT INTO users (email, name, is_admin, password_hash, api_key_hash)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.Email, u.Name, u.IsAdmin, u.PasswordHash, u.APIKeyHash)
	if err != nil {
		return errs.DB(err)
	}
	return nil
}

func (s *SQL) UpdateUser(ctx context.Context, u *models.User) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE users SET email=$1, name=$2, is_admin=$3, password_hash=$4, api_key_hash=$5 WHERE id=$6`,
		u.Email, u.Name, u.IsAdmin, u.PasswordHash, u.APIKeyHash, u.ID)
	if err != nil {
		return errs.DB(err)
	}
	return nil
}

// ---- Games ----

func (s *SQL) InsertGame(ctx context.Context, g *models.Game) error {
	err := sqlx.GetContext(ctx, s.q, &g.ID,
		`INSERT INTO games (owner_id, game_type, state, finished, winner, is_tie,
		                    dur_per_move_ms, dur_sudden_death_ms, current_move_start_ms, turn_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		g.OwnerID, g.GameType, g.State, g.Finished, g.Winner, g.IsTie,
		g.DurPerMoveMs, g.DurSuddenDeathMs, g.CurrentMoveStartMs, g.TurnID)
	if err != nil {
		return errs.DB(err)
	}
	return nil
}

func (s *SQL) findGame(ctx context.Context, id models.GameID, suffix string) (*models.Game, error) {
	var g models.Game
	if err := sqlx.GetContext(ctx, s.q, &g, selectGame+` WHERE id=$1`+suffix, id); err != nil {
		return nil, wrapDB(err, errs.ErrNoSuchGame)
	}
	return &g, nil
}

func (s *SQL) FindGame(ctx context.Context, id models.GameID) (*models.Game, error) {
	return s.findGame(ctx, id, ``)
}

func (s *SQL) FindGameForUpdate(ctx context.Context, id models.GameID) (*models.Game, error) {
	return s.findGame(ctx, id, ` FOR UPDATE`)
}

func (s *SQL) UpdateGame(ctx context.Context, g *models.Game) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE games SET owner_id=$1, game_type=$2, state=$3, finished=$4, winner=$5, is_tie=$6,
		                  dur_per_move_ms=$7, dur_sudden_death_ms=$8, current_move_start_ms=$9, turn_id=$10
		 WHERE id=$11`,
		g.OwnerID, g.GameType, g.State, g.Finished, g.Winner, g.IsTie,
		g.DurPerMoveMs, g.DurSuddenDeathMs, g.CurrentMoveStartMs, g.TurnID, g.ID)
	if err != nil {
		return errs.DB(err)
	}
	return nil
}

// ---- Game players ----

func (s *SQL) InsertGamePlayer(ctx context.Context, p *models.GamePlayer) error {
	err := sqlx.GetContext(ctx, s.q, &p.ID,
		`INSERT INTO game_players (game_id, user_id, score, waiting_for_move, time_ms)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		p.GameID, p.UserID, p.Score, p.WaitingForMove, p.TimeMs)
	if err != nil {
		return errs.DB(err)
	}
	return nil
}

func (s *SQL) UpdateGamePlayer(ctx context.Context, p *models.GamePlayer) error {
	_, err := s.q.ExecContext(ctx,
		`UPDATE game_players SET game_id=$1, user_id=$2, score=$3, waiting_for_move=$4, time_ms=$5 WHERE id=$6`,
		p.GameID, p.UserID, p.Score, p.WaitingForMove, p.TimeMs, p.ID)
	if err != nil {
		return errs.DB(err)
	}
	return nil
}

func (s *SQL) DeleteGamePlayer(ctx context.Context, id models.GamePlayerID) error {
	if _, err := s.q.ExecContext(ctx, `DELETE FROM game_players WHERE id=$1`, id); err != nil {
		return errs.DB(err)
	}
	return nil
}

func (s *SQL) FindGamePlayers(ctx context.Context, gameID models.GameID) ([]models.GamePlayer, error) {
	var players []models.GamePlayer
	err := sqlx.SelectContext(ctx, s.q, &players, selectGamePlayer+` WHERE game_id=$1 ORDER BY id ASC`, gameID)
	if err != nil {
		return nil, errs.DB(err)
	}
	return players, nil
}

func (s *SQL) FindGamePlayer(ctx context.Context, gameID models.GameID, userID models.UserID) (*models.GamePlayer, error) {
	var p models.GamePlayer
	err := sqlx.GetContext(ctx, s.q, &p, selectGamePlayer+` WHERE game_id=$1 AND user_id=$2`, gameID, userID)
	if err != nil {
		return nil, wrapDB(err, errs.ErrNotInGame)
	}
	return &p, nil
}

func (s *SQL) FindWaitingGameIDs(ctx context.Context, userID models.UserID) ([]models.GameID, error) {
	var ids []models.GameID
	err := sqlx.SelectContext(ctx, s.q, &ids,
		`SELECT game_id FROM game_players WHERE user_id=$1 AND waiting_for_move=true ORDER BY id ASC`, userID)
	if err != nil {
		return nil, errs.DB(err)
	}
	return ids, nil
}

func (s *SQL) FindOldestWaitingGameID(ctx context.Context, userID models.UserID) (models.GameID, bool, error) {
	var id models.GameID
	err := sqlx.GetContext(ctx, s.q, &id,
		`SELECT game_id FROM game_players WHERE user_id=$1 AND waiting_for_move=true ORDER BY id ASC LIMIT 1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errs.DB(err)
	}
	return id, true, nil
}

// ---- Transactions ----

// Transact begins a transaction and runs fn against a tx-backed view.
// Nested calls reuse the enclosing transaction.
func (s *SQL) Transact(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		// already inside a transaction
		return fn(s)
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errs.DB(err)
	}
	if err := fn(&SQL{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("[DB] rollback failed: %v", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errs.DB(fmt.Errorf("commit: %w", err))
	}
	return nil
}
