package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/games"
	"github.com/gameroom/backend/internal/models"
	"github.com/gameroom/backend/internal/protocol"
	"github.com/gameroom/backend/internal/router"
	"github.com/gameroom/backend/internal/store"
)

// NewGame creates an unstarted game owned by the given user.
func (e *Engine) NewGame(ctx context.Context, gameType string, owner models.UserID, tc TimeControl) (models.GameID, error) {
	if _, ok := e.types[gameType]; !ok {
		return 0, errs.NoSuchGameType(gameType)
	}
	row := &models.Game{
		OwnerID:          owner,
		GameType:         gameType,
		DurPerMoveMs:     tc.PerMove.Milliseconds(),
		DurSuddenDeathMs: tc.SuddenDeath.Milliseconds(),
	}
	if err := e.store.InsertGame(ctx, row); err != nil {
		return 0, err
	}
	return row.ID, nil
}

// GameState loads a game and renders its update command (the observe_game
// reply).
func (e *Engine) GameState(ctx context.Context, id models.GameID) (protocol.GameUpdate, error) {
	lg, players, err := e.loadGame(ctx, e.store, id)
	if err != nil {
		return protocol.GameUpdate{}, err
	}
	return serializeGame(&lg.row, players), nil
}

// JoinGame adds a user to an unstarted game. The new player's bank starts
// at the full sudden-death budget.
func (e *Engine) JoinGame(ctx context.Context, gameID models.GameID, userID models.UserID) error {
	var o outbox
	err := e.store.Transact(ctx, func(s store.Store) error {
		if _, err := s.FindGamePlayer(ctx, gameID, userID); err == nil {
			return errs.ErrAlreadyInGame
		} else if !errors.Is(err, errs.ErrNotInGame) {
			return err
		}
		lg, players, err := e.loadGameForUpdate(ctx, s, gameID)
		if err != nil {
			return err
		}
		if lg.started() {
			return errs.ErrGameAlreadyStarted
		}
		p := &models.GamePlayer{
			GameID: gameID,
			UserID: userID,
			TimeMs: lg.row.DurSuddenDeathMs,
		}
		if err := s.InsertGamePlayer(ctx, p); err != nil {
			return err
		}
		players = append(players, *p)
		o.publish(router.Game(gameID), serializeGame(&lg.row, players))
		return nil
	})
	if err != nil {
		return err
	}
	e.flush(&o)
	return nil
}

// LeaveGame removes a user from an unstarted game.
func (e *Engine) LeaveGame(ctx context.Context, gameID models.GameID, userID models.UserID) error {
	var o outbox
	err := e.store.Transact(ctx, func(s store.Store) error {
		p, err := s.FindGamePlayer(ctx, gameID, userID)
		if err != nil {
			return err
		}
		lg, players, err := e.loadGameForUpdate(ctx, s, gameID)
		if err != nil {
			return err
		}
		if lg.started() {
			return errs.ErrGameAlreadyStarted
		}
		if err := s.DeleteGamePlayer(ctx, p.ID); err != nil {
			return err
		}
		for i := range players {
			if players[i].UserID == userID {
				players = append(players[:i], players[i+1:]...)
				break
			}
		}
		o.publish(router.Game(gameID), serializeGame(&lg.row, players))
		return nil
	})
	if err != nil {
		return err
	}
	e.flush(&o)
	return nil
}

// StartGame constructs the game instance for the joined players and arms
// the clock for the first turn. Only the owner may start a game.
func (e *Engine) StartGame(ctx context.Context, gameID models.GameID, userID models.UserID) error {
	var o outbox
	err := e.store.Transact(ctx, func(s store.Store) error {
		lg, players, err := e.loadGameForUpdate(ctx, s, gameID)
		if err != nil {
			return err
		}
		if lg.row.OwnerID != userID {
			return errs.ErrDontOwnGame
		}
		if lg.started() {
			return errs.ErrGameAlreadyStarted
		}
		ids := make([]models.UserID, len(players))
		for i, p := range players {
			ids[i] = p.UserID
		}
		inst, ok := e.types[lg.row.GameType].New(ids)
		if !ok {
			return errs.ErrInvalidNumPlayers
		}
		lg.inst = inst
		e.armTimer(&o, lg, players)
		return e.saveGameAndPlayers(ctx, s, &o, lg, players)
	})
	if err != nil {
		return err
	}
	e.flush(&o)
	return nil
}

// MakeMove applies a move for the user whose turn it is, charges their
// clock, and arms the timer for the next turn (or finalizes the game).
func (e *Engine) MakeMove(ctx context.Context, gameID models.GameID, userID models.UserID, move string) error {
	var o outbox
	err := e.store.Transact(ctx, func(s store.Store) error {
		lg, players, err := e.loadGameForUpdate(ctx, s, gameID)
		if err != nil {
			return err
		}
		if lg.row.Finished || !lg.started() {
			return errs.ErrNotTurn
		}
		turn := lg.inst.Turn()
		if turn.Finished || turn.User != userID {
			return errs.ErrNotTurn
		}
		if err := lg.inst.MakeMove(userID, move); err != nil {
			return errs.InvalidMove(err.Error())
		}
		e.adjustPlayersTime(lg, players, userID)
		if !lg.inst.Turn().Finished {
			e.armTimer(&o, lg, players)
		} else {
			// syncRow clears the clock columns; any armed timer is fenced
			lg.moveStart = nil
			lg.turnID = nil
		}
		return e.saveGameAndPlayers(ctx, s, &o, lg, players)
	})
	if err != nil {
		return err
	}
	e.flush(&o)
	return nil
}

// endGame replaces the instance with a frozen ended wrapper and persists the
// final state. Used for time expiry (and any future early termination).
func (e *Engine) endGame(ctx context.Context, s store.Store, o *outbox, lg *liveGame, players []models.GamePlayer, winner *models.UserID, reason string) error {
	if lg.inst != nil {
		if turn := lg.inst.Turn(); !turn.Finished {
			e.adjustPlayersTime(lg, players, turn.User)
		}
	}
	ids := make([]models.UserID, len(players))
	for i, p := range players {
		ids[i] = p.UserID
	}
	lg.inst = games.EndGame(lg.inst, ids, winner, reason)
	return e.saveGameAndPlayers(ctx, s, o, lg, players)
}

// saveGameAndPlayers persists the game and its players, refreshes waiting
// flags and scores from the instance, and queues the broadcast plus the
// current mover's private turn prompt.
func (e *Engine) saveGameAndPlayers(ctx context.Context, s store.Store, o *outbox, lg *liveGame, players []models.GamePlayer) error {
	turn := lg.inst.Turn()
	for i := range players {
		players[i].WaitingForMove = !turn.Finished && players[i].UserID == turn.User
	}
	if scores, ok := lg.inst.Scores(); ok {
		for i := range players {
			if score, ok := scores[players[i].UserID]; ok {
				players[i].Score = sql.NullFloat64{Float64: score, Valid: true}
			}
		}
	}
	lg.syncRow()
	if err := s.UpdateGame(ctx, &lg.row); err != nil {
		return err
	}
	for i := range players {
		if err := s.UpdateGamePlayer(ctx, &players[i]); err != nil {
			return err
		}
	}

	o.publish(router.Game(lg.row.ID), serializeGame(&lg.row, players))
	if !turn.Finished {
		var bank time.Duration
		for _, p := range players {
			if p.UserID == turn.User {
				bank = time.Duration(p.TimeMs) * time.Millisecond
				break
			}
		}
		perMove, suddenDeath := e.remainingTime(lg, bank)
		o.publish(router.UserPrivate(turn.User), protocol.TurnPrompt{
			GameID:        lg.row.ID,
			GameType:      lg.row.GameType,
			PerMoveMs:     perMove.Milliseconds(),
			SuddenDeathMs: suddenDeath.Milliseconds(),
			State:         lg.inst.Serialize(),
		})
	}
	return nil
}
