package ws

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gameroom/backend/internal/engine"
	"github.com/gameroom/backend/internal/games"
	"github.com/gameroom/backend/internal/router"
	"github.com/gameroom/backend/internal/store"
)

var testTC = engine.TimeControl{PerMove: time.Minute, SuddenDeath: 5 * time.Minute}

type harness struct {
	clients *router.ClientMap
	eng     *engine.Engine
}

func newHarness() *harness {
	clients := router.NewClientMap()
	eng := engine.New(store.NewMemory(), games.TypeMap{"chess": games.Chess()}, clients)
	return &harness{clients: clients, eng: eng}
}

type client struct {
	sess *Session
	ch   chan string
}

func (h *harness) connect(addr string) *client {
	ch := make(chan string, router.SendQueueSize)
	h.clients.InsertClient(addr, ch)
	return &client{
		sess: &Session{Addr: addr, Clients: h.clients, Engine: h.eng, TimeCtrl: testTC},
		ch:   ch,
	}
}

// cmd sends one frame, routes the reply the way the read pump does, and
// returns everything that arrived on this client's queue since the last
// drain (broadcasts first, then the reply).
func (c *client) cmd(t *testing.T, line string) []string {
	t.Helper()
	if reply, ok := c.sess.HandleFrame(context.Background(), line); ok {
		if err := c.sess.Clients.Send(c.sess.Addr, reply); err != nil {
			t.Fatalf("send reply: %v", err)
		}
	}
	return c.frames()
}

func (c *client) frames() []string {
	var out []string
	for {
		select {
		case msg := <-c.ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func expect(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d frames %q, want %q", len(got), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func expectPrefix(t *testing.T, got []string, prefixes ...string) {
	t.Helper()
	if len(got) != len(prefixes) {
		t.Fatalf("got %d frames %q, want prefixes %q", len(got), got, prefixes)
	}
	for i := range prefixes {
		if !strings.HasPrefix(got[i], prefixes[i]) {
			t.Errorf("frame %d = %q, want prefix %q", i, got[i], prefixes[i])
		}
	}
}

func TestVersionHandshake(t *testing.T) {
	h := newHarness()
	c := h.connect("c")

	// selecting version 1 is silent
	expect(t, c.cmd(t, "version 1"))
	expect(t, c.cmd(t, "version 2"), "okay")
	expect(t, c.cmd(t, "version 3"), "error invalid protocol version")
	// the failed selection did not change the negotiated version
	expect(t, c.cmd(t, "version 2"), "okay")
}

func TestUnknownAndMalformedCommands(t *testing.T) {
	h := newHarness()
	c := h.connect("c")

	expect(t, c.cmd(t, "frobnicate"), "error unrecognized command: frobnicate")
	expect(t, c.cmd(t, "login just_one_arg"),
		"error invalid number of arguments for command login - expected 2, found 1")
	expect(t, c.cmd(t, "join_game seven"), "error malformed id")
}

func TestTmpUserFlow(t *testing.T) {
	h := newHarness()
	c := h.connect("c")

	expect(t, c.cmd(t, "self_user_info"), "error you are not logged in")
	expect(t, c.cmd(t, "new_tmp_user visitor"), "okay")
	expect(t, c.cmd(t, "self_user_info"), "self_user_info 1, visitor, -")
	expect(t, c.cmd(t, "name Better Name"), "okay")
	expect(t, c.cmd(t, "self_user_info"), "self_user_info 1, Better Name, -")
	expect(t, c.cmd(t, "logout"), "okay")
	expect(t, c.cmd(t, "self_user_info"), "error you are not logged in")
}

func TestRegisterAndLogin(t *testing.T) {
	h := newHarness()
	c := h.connect("c")

	expect(t, c.cmd(t, "new_user Some Name, user@sample.com, hunter2"), "okay")
	expect(t, c.cmd(t, "self_user_info"), "self_user_info 1, Some Name, user@sample.com")
	expect(t, c.cmd(t, "new_user Other, user@sample.com, pw"), "error email is already taken")
	expect(t, c.cmd(t, "logout"), "okay")
	expect(t, c.cmd(t, "login user@sample.com, wrong"), "error incorrect login credentials")
	expect(t, c.cmd(t, "login user@sample.com, hunter2"), "okay")

	got := c.cmd(t, "gen_apikey")
	expectPrefix(t, got, "gen_apikey ")
	key := strings.TrimPrefix(got[0], "gen_apikey ")
	if len(key) != 32 {
		t.Fatalf("api key %q has length %d", key, len(key))
	}

	expect(t, c.cmd(t, "logout"), "okay")
	expect(t, c.cmd(t, "apikey "+key), "okay")
	expect(t, c.cmd(t, "self_user_info"), "self_user_info 1, Some Name, user@sample.com")
	expect(t, c.cmd(t, "apikey 00000000000000000000000000000000"), "error invalid api key")
}

func TestObserverSeesLobbyChanges(t *testing.T) {
	h := newHarness()
	alice := h.connect("alice")
	bob := h.connect("bob")
	obs := h.connect("obs")

	expect(t, alice.cmd(t, "new_tmp_user alice"), "okay")
	expect(t, bob.cmd(t, "new_tmp_user bob"), "okay")
	expect(t, alice.cmd(t, "new_game chess"), "new_game 1")

	expect(t, obs.cmd(t, "observe_game 1"), "game 1, chess, 1, false, false, -, [], -")
	expect(t, obs.cmd(t, "observe_game 2"), "error no such game")

	expect(t, alice.cmd(t, "join_game 1"), "okay")
	expect(t, obs.frames(), "game 1, chess, 1, false, false, -, [[1, 0]], -")

	expect(t, bob.cmd(t, "join_game 1"), "okay")
	expect(t, obs.frames(), "game 1, chess, 1, false, false, -, [[1, 0], [2, 0]], -")

	expect(t, bob.cmd(t, "leave_game 1"), "okay")
	expect(t, obs.frames(), "game 1, chess, 1, false, false, -, [[1, 0]], -")

	expect(t, alice.cmd(t, "leave_game 1"), "okay")
	expect(t, obs.frames(), "game 1, chess, 1, false, false, -, [], -")

	// after stop_observe_game nothing more arrives
	expect(t, obs.cmd(t, "stop_observe_game 1"), "okay")
	expect(t, bob.cmd(t, "join_game 1"), "okay")
	expect(t, obs.frames())
}

func TestFullGameToCheckmate(t *testing.T) {
	h := newHarness()
	white := h.connect("white")
	black := h.connect("black")
	obs := h.connect("obs")

	expect(t, white.cmd(t, "version 2"), "okay")
	expect(t, black.cmd(t, "version 2"), "okay")
	expect(t, white.cmd(t, "new_tmp_user w"), "okay")
	expect(t, black.cmd(t, "new_tmp_user b"), "okay")

	expect(t, white.cmd(t, "new_game chess"), "new_game 1")
	expect(t, white.cmd(t, "join_game 1"), "okay")
	expect(t, black.cmd(t, "join_game 1"), "okay")
	expect(t, obs.cmd(t, "observe_game 1"), "game 1, chess, 1, false, false, -, [[1, 0], [2, 0]], -")

	// only the owner may start
	expect(t, black.cmd(t, "start_game 1"), "error you aren't the owner of that game")

	const startState = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1,[]"
	// the start broadcast precedes white's okay; white gets their turn prompt
	expectPrefix(t, white.cmd(t, "start_game 1"), "go 1, chess, ", "okay")
	expect(t, obs.frames(), "game 1, chess, 1, true, false, -, [[1, 0], [2, 0]], "+startState)

	// out of turn and illegal moves are rejected
	expect(t, black.cmd(t, "play 1, e7e5"), "error it is not your turn")
	expectPrefix(t, white.cmd(t, "play 1, e5e6"), "error invalid move: ")

	moves := []struct {
		c    *client
		move string
	}{
		{white, "e2e4"}, {black, "f7f6"}, {white, "a2a3"}, {black, "g7g5"},
	}
	for _, m := range moves {
		// drain the turn prompt the opponent's last move queued for us
		for _, f := range m.c.frames() {
			if !strings.HasPrefix(f, "go 1, chess, ") {
				t.Fatalf("unexpected frame before %s: %q", m.move, f)
			}
		}
		expect(t, m.c.cmd(t, "play 1, "+m.move), "okay")
	}
	obs.frames() // move-by-move updates checked via the final one

	// white still holds the prompt from black's g7g5
	expectPrefix(t, white.cmd(t, "play 1, d1h5#"), "go 1, chess, ", "okay")
	got := obs.frames()
	const final = "game 1, chess, 1, true, true, 1, [[1, 1], [2, 0]], " +
		"rnbqkbnr/ppppp2p/5p2/6pQ/4P3/P7/1PPP1PPP/RNB1KBNR b KQkq - 1 3,[e2e4,f7f6,a2a3,g7g5,d1h5]"
	if len(got) != 1 || got[0] != final {
		t.Fatalf("final broadcast = %q, want %q", got, final)
	}
	if frames := white.frames(); len(frames) != 0 {
		t.Errorf("prompt after checkmate: %q", frames)
	}

	expect(t, black.cmd(t, "play 1, h7h6"), "error it is not your turn")
}

func TestVersionsCoexist(t *testing.T) {
	h := newHarness()
	v1 := h.connect("v1")
	v2 := h.connect("v2")

	expect(t, v2.cmd(t, "version 2"), "okay")
	expect(t, v1.cmd(t, "new_tmp_user legacy"), "okay")
	expect(t, v2.cmd(t, "new_tmp_user modern"), "okay")

	expect(t, v1.cmd(t, "new_game chess"), "new_game 1")
	expect(t, v1.cmd(t, "join_game 1"), "okay")
	expect(t, v2.cmd(t, "join_game 1"), "okay")

	// the version 1 client is white: bare board prompt, then okay
	const startState = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1,[]"
	expect(t, v1.cmd(t, "start_game 1"), "board "+startState, "okay")

	// play is a version 2 command
	expect(t, v1.cmd(t, "play 1, e2e4"),
		"error that command is only available in protocol version 2 (you are in version 1)")
	// move with no game waiting on the user
	expect(t, v2.cmd(t, "move e7e5"), "error it is not your turn")

	expect(t, v1.cmd(t, "move e2e4"), "okay")
	expectPrefix(t, v2.frames(), "go 1, chess, ")
	expect(t, v2.cmd(t, "play 1, e7e5"), "okay")
	expectPrefix(t, v1.frames(), "board ")
}
