package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gameroom/backend/internal/models"
)

// Absent optional strings serialize as a literal dash.
const dash = "-"

// ServerCommand is a message from the server to a client. Encode renders it
// for the given protocol version; ok=false means the message has no
// representation in that version and must not be sent.
type ServerCommand interface {
	Encode(version int) (msg string, ok bool)
}

// Okay acknowledges a successful command with no richer response.
type Okay struct{}

func (Okay) Encode(int) (string, bool) { return "okay", true }

// ErrorReply reports a failed command.
type ErrorReply struct{ Text string }

func (e ErrorReply) Encode(int) (string, bool) { return "error " + e.Text, true }

// GenApikeyReply carries a freshly rotated plaintext api key.
type GenApikeyReply struct{ Key string }

func (g GenApikeyReply) Encode(int) (string, bool) { return "gen_apikey " + g.Key, true }

// SelfUserInfoReply reports the authenticated user's own record.
type SelfUserInfoReply struct {
	ID    models.UserID
	Name  string
	Email *string
}

func (s SelfUserInfoReply) Encode(int) (string, bool) {
	email := dash
	if s.Email != nil {
		email = *s.Email
	}
	return fmt.Sprintf("self_user_info %d, %s, %s", s.ID, s.Name, email), true
}

// NewGameReply returns the id of a freshly created game.
type NewGameReply struct{ ID models.GameID }

func (n NewGameReply) Encode(int) (string, bool) { return fmt.Sprintf("new_game %d", n.ID), true }

// PlayerScore is one entry of a game update's player list, in join order.
type PlayerScore struct {
	UserID models.UserID
	Score  *float64
}

// GameUpdate reports a game's externally visible state. It is both the
// reply to observe_game and the broadcast sent on the game's topic after
// every observable mutation.
type GameUpdate struct {
	ID       models.GameID
	GameType string
	Owner    models.UserID
	Started  bool
	Finished bool
	Winner   *models.UserID
	IsTie    bool
	Players  []PlayerScore
	State    *string
}

func (g GameUpdate) Encode(int) (string, bool) {
	var b strings.Builder
	fmt.Fprintf(&b, "game %d, %s, %d, %t, %t, ", g.ID, g.GameType, g.Owner, g.Started, g.Finished)
	switch {
	case g.IsTie:
		b.WriteString("tie")
	case g.Winner != nil:
		fmt.Fprintf(&b, "%d", *g.Winner)
	default:
		b.WriteString(dash)
	}
	b.WriteString(", [")
	for i, p := range g.Players {
		score := 0.0
		if p.Score != nil {
			score = *p.Score
		}
		fmt.Fprintf(&b, "[%d, %s]", p.UserID, strconv.FormatFloat(score, 'f', -1, 64))
		if i < len(g.Players)-1 {
			b.WriteString(", ")
		}
	}
	b.WriteString("], ")
	if g.State != nil {
		b.WriteString(*g.State)
	} else {
		b.WriteString(dash)
	}
	return b.String(), true
}

// TurnPrompt is sent on a player's private topic when it becomes their turn.
// Version 2 clients receive the full clock-annotated prompt; version 1
// clients receive the bare board.
type TurnPrompt struct {
	GameID        models.GameID
	GameType      string
	PerMoveMs     int64
	SuddenDeathMs int64
	State         string
}

func (t TurnPrompt) Encode(version int) (string, bool) {
	if version >= V2 {
		return fmt.Sprintf("go %d, %s, %d, %d, %s", t.GameID, t.GameType, t.PerMoveMs, t.SuddenDeathMs, t.State), true
	}
	return "board " + t.State, true
}
