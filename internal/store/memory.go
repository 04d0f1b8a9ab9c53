package store

import (
	"context"
	"sort"
	"sync"

	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/models"
)

// Memory is an in-process store with the same semantics as SQL. It backs
// tests and can serve as an ephemeral backend; nothing survives a restart.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

func NewMemory() *Memory {
	return &Memory{data: &memData{
		users:       map[models.UserID]models.User{},
		games:       map[models.GameID]models.Game{},
		gamePlayers: map[models.GamePlayerID]models.GamePlayer{},
	}}
}

// memData holds the rows; it implements Store without locking so that
// Transact can hand out a view inside the held lock.
type memData struct {
	users       map[models.UserID]models.User
	games       map[models.GameID]models.Game
	gamePlayers map[models.GamePlayerID]models.GamePlayer

	nextUserID       models.UserID
	nextGameID       models.GameID
	nextGamePlayerID models.GamePlayerID
}

func (m *Memory) locked(fn func(*memData) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

// Transact holds the store lock for the duration of fn, giving the same
// mutual exclusion a row-locked transaction provides. There is no rollback;
// callers validate before mutating.
func (m *Memory) Transact(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m.data)
}

func (d *memData) Transact(ctx context.Context, fn func(Store) error) error {
	return fn(d)
}

// ---- Users ----

func (d *memData) FindUser(_ context.Context, id models.UserID) (*models.User, error) {
	if u, ok := d.users[id]; ok {
		return &u, nil
	}
	return nil, errs.ErrNoSuchUser
}

func (d *memData) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range d.users {
		if u.Email.Valid && u.Email.String == email {
			u := u
			return &u, nil
		}
	}
	return nil, errs.ErrNoSuchUser
}

func (d *memData) FindUserByAPIKeyHash(_ context.Context, hash string) (*models.User, error) {
	for _, u := range d.users {
		if u.APIKeyHash == hash {
			u := u
			return &u, nil
		}
	}
	return nil, errs.ErrInvalidApiKey
}

func (d *memData) InsertUser(_ context.Context, u *models.User) error {
	d.nextUserID++
	u.ID = d.nextUserID
	d.users[u.ID] = *u
	return nil
}

func (d *memData) UpdateUser(_ context.Context, u *models.User) error {
	if _, ok := d.users[u.ID]; !ok {
		return errs.ErrNoSuchUser
	}
	d.users[u.ID] = *u
	return nil
}

// ---- Games ----

func (d *memData) InsertGame(_ context.Context, g *models.Game) error {
	d.nextGameID++
	g.ID = d.nextGameID
	d.games[g.ID] = *g
	return nil
}

func (d *memData) FindGame(_ context.Context, id models.GameID) (*models.Game, error) {
	if g, ok := d.games[id]; ok {
		return &g, nil
	}
	return nil, errs.ErrNoSuchGame
}

func (d *memData) FindGameForUpdate(ctx context.Context, id models.GameID) (*models.Game, error) {
	return d.FindGame(ctx, id)
}

func (d *memData) UpdateGame(_ context.Context, g *models.Game) error {
	if _, ok := d.games[g.ID]; !ok {
		return errs.ErrNoSuchGame
	}
	d.games[g.ID] = *g
	return nil
}

// ---- Game players ----

func (d *memData) InsertGamePlayer(_ context.Context, p *models.GamePlayer) error {
	d.nextGamePlayerID++
	p.ID = d.nextGamePlayerID
	d.gamePlayers[p.ID] = *p
	return nil
}

func (d *memData) UpdateGamePlayer(_ context.Context, p *models.GamePlayer) error {
	if _, ok := d.gamePlayers[p.ID]; !ok {
		return errs.ErrNotInGame
	}
	d.gamePlayers[p.ID] = *p
	return nil
}

func (d *memData) DeleteGamePlayer(_ context.Context, id models.GamePlayerID) error {
	delete(d.gamePlayers, id)
	return nil
}

func (d *memData) FindGamePlayers(_ context.Context, gameID models.GameID) ([]models.GamePlayer, error) {
	var players []models.GamePlayer
	for _, p := range d.gamePlayers {
		if p.GameID == gameID {
			players = append(players, p)
		}
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	return players, nil
}

func (d *memData) FindGamePlayer(_ context.Context, gameID models.GameID, userID models.UserID) (*models.GamePlayer, error) {
	for _, p := range d.gamePlayers {
		if p.GameID == gameID && p.UserID == userID {
			p := p
			return &p, nil
		}
	}
	return nil, errs.ErrNotInGame
}

func (d *memData) waitingGameIDs(userID models.UserID) []models.GameID {
	var rows []models.GamePlayer
	for _, p := range d.gamePlayers {
		if p.UserID == userID && p.WaitingForMove {
			rows = append(rows, p)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	ids := make([]models.GameID, len(rows))
	for i, p := range rows {
		ids[i] = p.GameID
	}
	return ids
}

func (d *memData) FindWaitingGameIDs(_ context.Context, userID models.UserID) ([]models.GameID, error) {
	return d.waitingGameIDs(userID), nil
}

func (d *memData) FindOldestWaitingGameID(_ context.Context, userID models.UserID) (models.GameID, bool, error) {
	ids := d.waitingGameIDs(userID)
	if len(ids) == 0 {
		return 0, false, nil
	}
	return ids[0], true, nil
}

// Locked passthroughs so *Memory itself satisfies Store.

func (m *Memory) FindUser(ctx context.Context, id models.UserID) (u *models.User, err error) {
	err = m.locked(func(d *memData) error { u, err = d.FindUser(ctx, id); return err })
	return
}

func (m *Memory) FindUserByEmail(ctx context.Context, email string) (u *models.User, err error) {
	err = m.locked(func(d *memData) error { u, err = d.FindUserByEmail(ctx, email); return err })
	return
}

func (m *Memory) FindUserByAPIKeyHash(ctx context.Context, hash string) (u *models.User, err error) {
	err = m.locked(func(d *memData) error { u, err = d.FindUserByAPIKeyHash(ctx, hash); return err })
	return
}

func (m *Memory) InsertUser(ctx context.Context, u *models.User) error {
	return m.locked(func(d *memData) error { return d.InsertUser(ctx, u) })
}

func (m *Memory) UpdateUser(ctx context.Context, u *models.User) error {
	return m.locked(func(d *memData) error { return d.UpdateUser(ctx, u) })
}

func (m *Memory) InsertGame(ctx context.Context, g *models.Game) error {
	return m.locked(func(d *memData) error { return d.InsertGame(ctx, g) })
}

func (m *Memory) FindGame(ctx context.Context, id models.GameID) (g *models.Game, err error) {
	err = m.locked(func(d *memData) error { g, err = d.FindGame(ctx, id); return err })
	return
}

func (m *Memory) FindGameForUpdate(ctx context.Context, id models.GameID) (*models.Game, error) {
	return m.FindGame(ctx, id)
}

func (m *Memory) UpdateGame(ctx context.Context, g *models.Game) error {
	return m.locked(func(d *memData) error { return d.UpdateGame(ctx, g) })
}

func (m *Memory) InsertGamePlayer(ctx context.Context, p *models.GamePlayer) error {
	return m.locked(func(d *memData) error { return d.InsertGamePlayer(ctx, p) })
}

func (m *Memory) UpdateGamePlayer(ctx context.Context, p *models.GamePlayer) error {
	return m.locked(func(d *memData) error { return d.UpdateGamePlayer(ctx, p) })
}

func (m *Memory) DeleteGamePlayer(ctx context.Context, id models.GamePlayerID) error {
	return m.locked(func(d *memData) error { return d.DeleteGamePlayer(ctx, id) })
}

func (m *Memory) FindGamePlayers(ctx context.Context, gameID models.GameID) (ps []models.GamePlayer, err error) {
	err = m.locked(func(d *memData) error { ps, err = d.FindGamePlayers(ctx, gameID); return err })
	return
}

func (m *Memory) FindGamePlayer(ctx context.Context, gameID models.GameID, userID models.UserID) (p *models.GamePlayer, err error) {
	err = m.locked(func(d *memData) error { p, err = d.FindGamePlayer(ctx, gameID, userID); return err })
	return
}

func (m *Memory) FindWaitingGameIDs(ctx context.Context, userID models.UserID) (ids []models.GameID, err error) {
	err = m.locked(func(d *memData) error { ids, err = d.FindWaitingGameIDs(ctx, userID); return err })
	return
}

func (m *Memory) FindOldestWaitingGameID(ctx context.Context, userID models.UserID) (id models.GameID, ok bool, err error) {
	err = m.locked(func(d *memData) error { id, ok, err = d.FindOldestWaitingGameID(ctx, userID); return err })
	return
}
