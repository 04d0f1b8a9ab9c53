// Package engine implements the game lifecycle state machine and the
// per-turn chess clock. All durable state lives in the store; the engine
// holds only transient per-call state and publishes observable changes
// through the router.
package engine

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/games"
	"github.com/gameroom/backend/internal/models"
	"github.com/gameroom/backend/internal/protocol"
	"github.com/gameroom/backend/internal/router"
	"github.com/gameroom/backend/internal/store"
)

// Publisher fans server commands out to topic subscribers. Implemented by
// *router.ClientMap.
type Publisher interface {
	Publish(topic router.Topic, cmd protocol.ServerCommand)
}

// TimeControl is a game's clock configuration: a fresh per-move budget every
// turn, plus a sudden-death bank that drains once the per-move budget is
// spent within a turn.
type TimeControl struct {
	PerMove     time.Duration
	SuddenDeath time.Duration
}

// TimeExpiry reports that a player's clock may have run out. It is only
// acted on if the game is still on the same turn: any turn-ending event
// overwrites the game's turn id, turning stale expiries into no-ops.
type TimeExpiry struct {
	TurnID int64
	GameID models.GameID
	UserID models.UserID
}

// Engine coordinates game lifecycle, move application and time control.
type Engine struct {
	store  store.Store
	types  games.TypeMap
	pub    Publisher
	expiry chan TimeExpiry

	// injectable for tests
	now      func() time.Time
	schedule func(d time.Duration, fn func())
}

func New(s store.Store, types games.TypeMap, pub Publisher) *Engine {
	return &Engine{
		store:    s,
		types:    types,
		pub:      pub,
		expiry:   make(chan TimeExpiry, 64),
		now:      time.Now,
		schedule: func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
	}
}

// Run consumes the expiry queue until ctx is done. Expiries are produced by
// turn timers armed when a turn starts.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-e.expiry:
			if err := e.handleExpiry(ctx, ev); err != nil {
				log.Printf("[ENGINE] expiry for game %d: %v", ev.GameID, err)
			}
		}
	}
}

// outbox collects broadcasts and timer arms produced inside a transaction;
// they are flushed only after the transaction commits so observers never see
// state that was rolled back and timers never race their own commit.
type outbox struct {
	msgs   []outMsg
	timers []func()
}

type outMsg struct {
	topic router.Topic
	cmd   protocol.ServerCommand
}

func (o *outbox) publish(topic router.Topic, cmd protocol.ServerCommand) {
	o.msgs = append(o.msgs, outMsg{topic: topic, cmd: cmd})
}

func (e *Engine) flush(o *outbox) {
	for _, m := range o.msgs {
		e.pub.Publish(m.topic, m.cmd)
	}
	for _, arm := range o.timers {
		arm()
	}
}

// armTimer gives the game's next turn a fresh random id, stamps the move
// start, and queues a one-shot expiry for when the mover's per-move budget
// plus remaining bank will be gone.
func (e *Engine) armTimer(o *outbox, lg *liveGame, players []models.GamePlayer) {
	turnID := rand.Int63()
	lg.turnID = &turnID
	start := e.now()
	lg.moveStart = &start

	turn := lg.inst.Turn()
	if turn.Finished {
		return
	}
	var remaining time.Duration
	for _, p := range players {
		if p.UserID == turn.User {
			remaining = time.Duration(p.TimeMs) * time.Millisecond
			break
		}
	}
	ev := TimeExpiry{TurnID: turnID, GameID: lg.row.ID, UserID: turn.User}
	delay := lg.time.PerMove + remaining
	o.timers = append(o.timers, func() {
		e.schedule(delay, func() { e.expiry <- ev })
	})
}

// handleExpiry ends a game whose current player ran out of time. Stale
// events (the game moved on, ended, or disappeared) are discarded.
func (e *Engine) handleExpiry(ctx context.Context, ev TimeExpiry) error {
	var o outbox
	err := e.store.Transact(ctx, func(s store.Store) error {
		lg, players, err := e.loadGameForUpdate(ctx, s, ev.GameID)
		if err != nil {
			return err
		}
		if lg.turnID == nil || *lg.turnID != ev.TurnID {
			// fenced off: a move or termination superseded this timer
			return nil
		}
		var winner *models.UserID
		for _, p := range players {
			if p.UserID != ev.UserID {
				uid := p.UserID
				winner = &uid
				break
			}
		}
		log.Printf("[ENGINE] game %d: time expired for user %d", ev.GameID, ev.UserID)
		return e.endGame(ctx, s, &o, lg, players, winner, "time expired")
	})
	if errors.Is(err, errs.ErrNoSuchGame) {
		// game gone; the timer outlived it
		return nil
	}
	if err != nil {
		return err
	}
	e.flush(&o)
	return nil
}
