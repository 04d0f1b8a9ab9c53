package engine

import (
	"context"
	"database/sql"
	"time"

	"github.com/gameroom/backend/internal/games"
	"github.com/gameroom/backend/internal/models"
	"github.com/gameroom/backend/internal/protocol"
	"github.com/gameroom/backend/internal/store"
)

// liveGame is the runtime view of a game row: the row plus its deserialized
// instance and decoded clock fields. It lives only for the duration of one
// engine operation; the row is authoritative.
type liveGame struct {
	row       models.Game
	inst      games.Instance
	time      TimeControl
	moveStart *time.Time
	turnID    *int64
}

func (e *Engine) fromRow(row *models.Game, players []models.GamePlayer) *liveGame {
	lg := &liveGame{
		row: *row,
		time: TimeControl{
			PerMove:     time.Duration(row.DurPerMoveMs) * time.Millisecond,
			SuddenDeath: time.Duration(row.DurSuddenDeathMs) * time.Millisecond,
		},
	}
	if row.State.Valid {
		ids := make([]models.UserID, len(players))
		for i, p := range players {
			ids[i] = p.UserID
		}
		if t, ok := e.types[row.GameType]; ok {
			if inst, ok := t.Deserialize(row.State.String, ids); ok {
				lg.inst = inst
			}
		}
	}
	if row.CurrentMoveStartMs.Valid {
		t := time.UnixMilli(row.CurrentMoveStartMs.Int64)
		lg.moveStart = &t
	}
	if row.TurnID.Valid {
		id := row.TurnID.Int64
		lg.turnID = &id
	}
	return lg
}

// syncRow folds the instance and clock state back into the durable row.
// Finished games keep winner/is_tie consistent with the instance outcome;
// their clock columns are cleared so stale timers can never match.
func (lg *liveGame) syncRow() {
	lg.row.State = sql.NullString{}
	lg.row.Finished = false
	lg.row.Winner = sql.NullInt32{}
	lg.row.IsTie = sql.NullBool{}
	if lg.inst != nil {
		lg.row.State = sql.NullString{String: lg.inst.Serialize(), Valid: true}
		if lg.inst.Turn().Finished {
			lg.row.Finished = true
			switch end := lg.inst.EndState(); end.Kind {
			case games.Win:
				lg.row.Winner = sql.NullInt32{Int32: end.Winner, Valid: true}
				lg.row.IsTie = sql.NullBool{Bool: false, Valid: true}
			case games.Tie:
				lg.row.IsTie = sql.NullBool{Bool: true, Valid: true}
			}
			lg.moveStart = nil
			lg.turnID = nil
		}
	}
	lg.row.CurrentMoveStartMs = sql.NullInt64{}
	if lg.moveStart != nil {
		lg.row.CurrentMoveStartMs = sql.NullInt64{Int64: lg.moveStart.UnixMilli(), Valid: true}
	}
	lg.row.TurnID = sql.NullInt64{}
	if lg.turnID != nil {
		lg.row.TurnID = sql.NullInt64{Int64: *lg.turnID, Valid: true}
	}
}

func (lg *liveGame) started() bool { return lg.inst != nil }

// elapsed is the time spent on the current move, clamped at zero against
// clock skew (the start stamp is wall-clock for durability).
func (e *Engine) elapsed(lg *liveGame) time.Duration {
	if lg.moveStart == nil {
		return 0
	}
	d := e.now().Sub(*lg.moveStart)
	if d < 0 {
		return 0
	}
	return d
}

// elapsedSuddenDeath is how far the current move has eaten into the mover's
// bank: time past the per-move budget.
func (lg *liveGame) elapsedSuddenDeath(elapsed time.Duration) time.Duration {
	if elapsed <= lg.time.PerMove {
		return 0
	}
	return elapsed - lg.time.PerMove
}

// adjustPlayersTime charges the current mover for bank time spent this turn.
// Moves made within the per-move budget cost nothing.
func (e *Engine) adjustPlayersTime(lg *liveGame, players []models.GamePlayer, current models.UserID) {
	spent := lg.elapsedSuddenDeath(e.elapsed(lg))
	if spent <= 0 {
		return
	}
	for i := range players {
		if players[i].UserID == current {
			players[i].TimeMs -= spent.Milliseconds()
			if players[i].TimeMs < 0 {
				players[i].TimeMs = 0
			}
			break
		}
	}
}

// remainingTime derives the mover's clocks for a turn prompt: what is left
// of the per-move budget, and what will be left of the bank.
func (e *Engine) remainingTime(lg *liveGame, bank time.Duration) (perMove, suddenDeath time.Duration) {
	elapsed := e.elapsed(lg)
	perMove = lg.time.PerMove - elapsed
	if perMove < 0 {
		perMove = 0
	}
	suddenDeath = bank - lg.elapsedSuddenDeath(elapsed)
	if suddenDeath < 0 {
		suddenDeath = 0
	}
	return perMove, suddenDeath
}

// serializeGame renders a game update from the (already synced) row.
func serializeGame(row *models.Game, players []models.GamePlayer) protocol.GameUpdate {
	upd := protocol.GameUpdate{
		ID:       row.ID,
		GameType: row.GameType,
		Owner:    row.OwnerID,
		Started:  row.State.Valid,
		Finished: row.Finished,
		IsTie:    row.IsTie.Valid && row.IsTie.Bool,
		Players:  make([]protocol.PlayerScore, len(players)),
	}
	if row.Winner.Valid {
		id := row.Winner.Int32
		upd.Winner = &id
	}
	if row.State.Valid {
		state := row.State.String
		upd.State = &state
	}
	for i, p := range players {
		ps := protocol.PlayerScore{UserID: p.UserID}
		if p.Score.Valid {
			score := p.Score.Float64
			ps.Score = &score
		}
		upd.Players[i] = ps
	}
	return upd
}

func (e *Engine) loadGame(ctx context.Context, s store.Store, id models.GameID) (*liveGame, []models.GamePlayer, error) {
	row, err := s.FindGame(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	players, err := s.FindGamePlayers(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return e.fromRow(row, players), players, nil
}

func (e *Engine) loadGameForUpdate(ctx context.Context, s store.Store, id models.GameID) (*liveGame, []models.GamePlayer, error) {
	row, err := s.FindGameForUpdate(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	players, err := s.FindGamePlayers(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return e.fromRow(row, players), players, nil
}
