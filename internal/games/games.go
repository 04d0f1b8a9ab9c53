// Package games defines the contract between the server core and individual
// game implementations. The engine treats instances as opaque: it asks whose
// turn it is, applies move text, and serializes state blobs for storage and
// broadcast without interpreting them.
package games

import "github.com/gameroom/backend/internal/models"

// Turn reports which player a game is waiting on, or that it is over.
type Turn struct {
	Finished bool
	User     models.UserID
}

func WaitingOn(user models.UserID) Turn { return Turn{User: user} }

func Finished() Turn { return Turn{Finished: true} }

// EndKind discriminates a game's end state.
type EndKind int

const (
	InProgress EndKind = iota
	Win
	Tie
)

// EndState is the outcome of a game: in progress, won by a user, or tied.
type EndState struct {
	Kind   EndKind
	Winner models.UserID
}

func WonBy(user models.UserID) EndState { return EndState{Kind: Win, Winner: user} }

// Instance is one running game's rules and position.
type Instance interface {
	// Serialize renders the full game state as an opaque text blob that
	// Type.Deserialize can restore.
	Serialize() string
	// Turn reports the player the game is waiting on.
	Turn() Turn
	// EndState reports the outcome once Turn().Finished is true.
	EndState() EndState
	// MakeMove applies move text for the given player. The returned error's
	// text is surfaced to clients as `invalid move: <text>`.
	MakeMove(user models.UserID, move string) error
	// Scores reports per-player scores, or false if no scores exist yet.
	Scores() (map[models.UserID]float64, bool)
}

// Type constructs and restores instances of one registered game type.
type Type interface {
	// New starts a fresh game, or reports false if the player count is not
	// supported.
	New(players []models.UserID) (Instance, bool)
	// Deserialize restores an instance from a stored state blob.
	Deserialize(state string, players []models.UserID) (Instance, bool)
}

// TypeMap is the registry of game type tags the server hosts.
type TypeMap map[string]Type
