package games

import (
	"strings"

	"github.com/notnil/chess"

	"github.com/gameroom/backend/internal/models"
)

// chessType hosts two-player chess over the notnil/chess move generator.
// The first player to have joined plays white.
type chessType struct{}

// Chess returns the chess game type for registration under the "chess" tag.
func Chess() Type { return chessType{} }

func (chessType) New(players []models.UserID) (Instance, bool) {
	if len(players) != 2 {
		return nil, false
	}
	return &chessInstance{
		game:  chess.NewGame(chess.UseNotation(chess.UCINotation{})),
		white: players[0],
		black: players[1],
	}, true
}

func (chessType) Deserialize(state string, players []models.UserID) (Instance, bool) {
	if len(players) != 2 {
		return nil, false
	}
	fen, moves, ok := splitState(state)
	if !ok {
		return nil, false
	}
	fenOpt, err := chess.FEN(fen)
	if err != nil {
		return nil, false
	}
	return &chessInstance{
		game:  chess.NewGame(fenOpt, chess.UseNotation(chess.UCINotation{})),
		white: players[0],
		black: players[1],
		moves: moves,
	}, true
}

// chessInstance serializes as `<fen>,[m1,m2,...]`: the current position in
// FEN followed by the move history in coordinate notation.
type chessInstance struct {
	game  *chess.Game
	white models.UserID
	black models.UserID
	moves []string
}

func splitState(state string) (fen string, moves []string, ok bool) {
	i := strings.LastIndex(state, ",[")
	if i < 0 || !strings.HasSuffix(state, "]") {
		return "", nil, false
	}
	fen = state[:i]
	list := state[i+2 : len(state)-1]
	if list != "" {
		moves = strings.Split(list, ",")
	}
	return fen, moves, true
}

func (c *chessInstance) Serialize() string {
	var b strings.Builder
	b.WriteString(c.game.Position().String())
	b.WriteString(",[")
	b.WriteString(strings.Join(c.moves, ","))
	b.WriteString("]")
	return b.String()
}

func (c *chessInstance) Turn() Turn {
	if c.game.Outcome() != chess.NoOutcome {
		return Finished()
	}
	if c.game.Position().Turn() == chess.White {
		return WaitingOn(c.white)
	}
	return WaitingOn(c.black)
}

func (c *chessInstance) EndState() EndState {
	switch c.game.Outcome() {
	case chess.WhiteWon:
		return WonBy(c.white)
	case chess.BlackWon:
		return WonBy(c.black)
	case chess.Draw:
		return EndState{Kind: Tie}
	}
	return EndState{Kind: InProgress}
}

func (c *chessInstance) MakeMove(user models.UserID, move string) error {
	// tolerate annotated input like d1h5#; history stores the bare move
	move = strings.TrimRight(move, "+#")
	if err := c.game.MoveStr(move); err != nil {
		return err
	}
	c.moves = append(c.moves, move)
	return nil
}

func (c *chessInstance) Scores() (map[models.UserID]float64, bool) {
	switch c.game.Outcome() {
	case chess.WhiteWon:
		return map[models.UserID]float64{c.white: 1, c.black: 0}, true
	case chess.BlackWon:
		return map[models.UserID]float64{c.white: 0, c.black: 1}, true
	case chess.Draw:
		return map[models.UserID]float64{c.white: 0.5, c.black: 0.5}, true
	}
	return nil, false
}
