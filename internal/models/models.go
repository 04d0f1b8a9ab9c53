package models

import "database/sql"

type (
	UserID       = int32
	GameID       = int32
	GamePlayerID = int32
)

// User represents a registered or temporary account.
type User struct {
	ID           UserID         `db:"id"`
	Email        sql.NullString `db:"email"`
	Name         string         `db:"name"`
	IsAdmin      bool           `db:"is_admin"`
	PasswordHash sql.NullString `db:"password_hash"`
	APIKeyHash   string         `db:"api_key_hash"`
}

// Game is the durable game row. The serialized instance state lives in
// State; the deserialized runtime view is built by the engine on demand.
type Game struct {
	ID                 GameID         `db:"id"`
	OwnerID            UserID         `db:"owner_id"`
	GameType           string         `db:"game_type"`
	State              sql.NullString `db:"state"`
	Finished           bool           `db:"finished"`
	Winner             sql.NullInt32  `db:"winner"`
	IsTie              sql.NullBool   `db:"is_tie"`
	DurPerMoveMs       int64          `db:"dur_per_move_ms"`
	DurSuddenDeathMs   int64          `db:"dur_sudden_death_ms"`
	CurrentMoveStartMs sql.NullInt64  `db:"current_move_start_ms"`
	TurnID             sql.NullInt64  `db:"turn_id"`
}

// GamePlayer links a user to a game, with their score and remaining
// sudden-death time bank.
type GamePlayer struct {
	ID             GamePlayerID    `db:"id"`
	GameID         GameID          `db:"game_id"`
	UserID         UserID          `db:"user_id"`
	Score          sql.NullFloat64 `db:"score"`
	WaitingForMove bool            `db:"waiting_for_move"`
	TimeMs         int64           `db:"time_ms"`
}
