package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/models"
)

// runSuite exercises the Store contract both backends must satisfy.
func runSuite(t *testing.T, s Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, s) })
	t.Run("Games", func(t *testing.T) { testGames(t, s) })
	t.Run("GamePlayers", func(t *testing.T) { testGamePlayers(t, s) })
	t.Run("WaitingGames", func(t *testing.T) { testWaitingGames(t, s) })
}

func TestMemoryStore(t *testing.T) {
	runSuite(t, NewMemory())
}

// TestSQLStore runs the suite against a real database. It needs a scratch
// Postgres with the schema migrated, e.g.
//
//	TEST_DATABASE_URL=postgres://localhost/gameroom_test?sslmode=disable go test ./internal/store
func TestSQLStore(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if _, err := db.Exec(`TRUNCATE users, games, game_players RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	s := NewSQL(db)
	runSuite(t, s)

	t.Run("Rollback", func(t *testing.T) {
		ctx := context.Background()
		boom := errors.New("boom")
		var id models.UserID
		err := s.Transact(ctx, func(tx Store) error {
			u := &models.User{Name: "ghost", APIKeyHash: "ghosthash"}
			if err := tx.InsertUser(ctx, u); err != nil {
				return err
			}
			id = u.ID
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("Transact err = %v", err)
		}
		if _, err := s.FindUser(ctx, id); !errors.Is(err, errs.ErrNoSuchUser) {
			t.Errorf("insert survived rollback: %v", err)
		}
	})
}

func testUsers(t *testing.T, s Store) {
	ctx := context.Background()

	u := &models.User{
		Name:       "Some Name",
		Email:      sql.NullString{String: "store-user@sample.com", Valid: true},
		APIKeyHash: "hash-store-user",
	}
	if err := s.InsertUser(ctx, u); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("InsertUser did not assign an id")
	}

	got, err := s.FindUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindUser: %v", err)
	}
	if got.Name != "Some Name" || !got.Email.Valid || got.Email.String != "store-user@sample.com" {
		t.Errorf("FindUser = %+v", got)
	}

	if got, err = s.FindUserByEmail(ctx, "store-user@sample.com"); err != nil || got.ID != u.ID {
		t.Errorf("FindUserByEmail = %+v, %v", got, err)
	}
	if got, err = s.FindUserByAPIKeyHash(ctx, "hash-store-user"); err != nil || got.ID != u.ID {
		t.Errorf("FindUserByAPIKeyHash = %+v, %v", got, err)
	}

	u.Name = "Renamed"
	u.IsAdmin = true
	if err := s.UpdateUser(ctx, u); err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got, _ = s.FindUser(ctx, u.ID); got.Name != "Renamed" || !got.IsAdmin {
		t.Errorf("update not persisted: %+v", got)
	}

	if _, err := s.FindUser(ctx, 99999); !errors.Is(err, errs.ErrNoSuchUser) {
		t.Errorf("missing user: %v", err)
	}
	if _, err := s.FindUserByEmail(ctx, "nobody@sample.com"); !errors.Is(err, errs.ErrNoSuchUser) {
		t.Errorf("missing email: %v", err)
	}
	if _, err := s.FindUserByAPIKeyHash(ctx, "no-such-hash"); !errors.Is(err, errs.ErrInvalidApiKey) {
		t.Errorf("missing key hash: %v", err)
	}
}

func testGames(t *testing.T, s Store) {
	ctx := context.Background()

	owner := &models.User{Name: "owner", APIKeyHash: "hash-game-owner"}
	if err := s.InsertUser(ctx, owner); err != nil {
		t.Fatal(err)
	}

	g := &models.Game{
		OwnerID:          owner.ID,
		GameType:         "chess",
		DurPerMoveMs:     60_000,
		DurSuddenDeathMs: 300_000,
	}
	if err := s.InsertGame(ctx, g); err != nil {
		t.Fatalf("InsertGame: %v", err)
	}
	if g.ID == 0 {
		t.Fatal("InsertGame did not assign an id")
	}

	got, err := s.FindGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("FindGame: %v", err)
	}
	if got.State.Valid || got.Finished || got.Winner.Valid || got.TurnID.Valid {
		t.Errorf("fresh game = %+v", got)
	}

	g.State = sql.NullString{String: "STATE", Valid: true}
	g.TurnID = sql.NullInt64{Int64: 42, Valid: true}
	g.CurrentMoveStartMs = sql.NullInt64{Int64: 1_700_000_000_000, Valid: true}
	if err := s.UpdateGame(ctx, g); err != nil {
		t.Fatalf("UpdateGame: %v", err)
	}
	got, err = s.FindGameForUpdate(ctx, g.ID)
	if err != nil {
		t.Fatalf("FindGameForUpdate: %v", err)
	}
	if !got.State.Valid || got.State.String != "STATE" || !got.TurnID.Valid || got.TurnID.Int64 != 42 {
		t.Errorf("updated game = %+v", got)
	}

	if _, err := s.FindGame(ctx, 99999); !errors.Is(err, errs.ErrNoSuchGame) {
		t.Errorf("missing game: %v", err)
	}
	if _, err := s.FindGameForUpdate(ctx, 99999); !errors.Is(err, errs.ErrNoSuchGame) {
		t.Errorf("missing game for update: %v", err)
	}
}

func testGamePlayers(t *testing.T, s Store) {
	ctx := context.Background()

	var users []*models.User
	for _, name := range []string{"p1", "p2", "p3"} {
		u := &models.User{Name: name, APIKeyHash: "hash-players-" + name}
		if err := s.InsertUser(ctx, u); err != nil {
			t.Fatal(err)
		}
		users = append(users, u)
	}
	g := &models.Game{OwnerID: users[0].ID, GameType: "chess"}
	if err := s.InsertGame(ctx, g); err != nil {
		t.Fatal(err)
	}

	for _, u := range users {
		p := &models.GamePlayer{GameID: g.ID, UserID: u.ID, TimeMs: 300_000}
		if err := s.InsertGamePlayer(ctx, p); err != nil {
			t.Fatalf("InsertGamePlayer: %v", err)
		}
	}

	players, err := s.FindGamePlayers(ctx, g.ID)
	if err != nil {
		t.Fatalf("FindGamePlayers: %v", err)
	}
	if len(players) != 3 {
		t.Fatalf("got %d players", len(players))
	}
	// join order
	for i, u := range users {
		if players[i].UserID != u.ID {
			t.Errorf("player %d = user %d, want %d", i, players[i].UserID, u.ID)
		}
	}

	p, err := s.FindGamePlayer(ctx, g.ID, users[1].ID)
	if err != nil {
		t.Fatalf("FindGamePlayer: %v", err)
	}
	p.Score = sql.NullFloat64{Float64: 0.5, Valid: true}
	p.WaitingForMove = true
	p.TimeMs = 123
	if err := s.UpdateGamePlayer(ctx, p); err != nil {
		t.Fatalf("UpdateGamePlayer: %v", err)
	}
	p, _ = s.FindGamePlayer(ctx, g.ID, users[1].ID)
	if !p.Score.Valid || p.Score.Float64 != 0.5 || !p.WaitingForMove || p.TimeMs != 123 {
		t.Errorf("update not persisted: %+v", p)
	}

	if err := s.DeleteGamePlayer(ctx, p.ID); err != nil {
		t.Fatalf("DeleteGamePlayer: %v", err)
	}
	if _, err := s.FindGamePlayer(ctx, g.ID, users[1].ID); !errors.Is(err, errs.ErrNotInGame) {
		t.Errorf("deleted player still found: %v", err)
	}
	if players, _ = s.FindGamePlayers(ctx, g.ID); len(players) != 2 {
		t.Errorf("%d players after delete", len(players))
	}
}

func testWaitingGames(t *testing.T, s Store) {
	ctx := context.Background()

	u := &models.User{Name: "waiter", APIKeyHash: "hash-waiter"}
	if err := s.InsertUser(ctx, u); err != nil {
		t.Fatal(err)
	}

	if _, ok, err := s.FindOldestWaitingGameID(ctx, u.ID); err != nil || ok {
		t.Fatalf("idle user: ok=%t err=%v", ok, err)
	}

	var gids []models.GameID
	for i := 0; i < 3; i++ {
		g := &models.Game{OwnerID: u.ID, GameType: "chess"}
		if err := s.InsertGame(ctx, g); err != nil {
			t.Fatal(err)
		}
		gids = append(gids, g.ID)
		p := &models.GamePlayer{GameID: g.ID, UserID: u.ID, WaitingForMove: i != 1}
		if err := s.InsertGamePlayer(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.FindWaitingGameIDs(ctx, u.ID)
	if err != nil {
		t.Fatalf("FindWaitingGameIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != gids[0] || ids[1] != gids[2] {
		t.Errorf("waiting ids = %v, want [%d %d]", ids, gids[0], gids[2])
	}

	id, ok, err := s.FindOldestWaitingGameID(ctx, u.ID)
	if err != nil || !ok || id != gids[0] {
		t.Errorf("oldest = %d (ok=%t, err=%v), want %d", id, ok, err, gids[0])
	}
}

func TestMemoryTransactReentrancy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.Transact(ctx, func(outer Store) error {
		u := &models.User{Name: "nested", APIKeyHash: "hash-nested"}
		if err := outer.InsertUser(ctx, u); err != nil {
			return err
		}
		// a nested transaction must not deadlock on the store lock
		return outer.Transact(ctx, func(inner Store) error {
			_, err := inner.FindUser(ctx, u.ID)
			return err
		})
	})
	if err != nil {
		t.Fatalf("nested transact: %v", err)
	}
}
