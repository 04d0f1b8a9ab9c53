// Package protocol implements the line-oriented wire protocol: one command
// per text frame, verb first, comma-separated arguments after the first
// whitespace run. Two protocol versions exist; version selection is sticky
// per connection and defaults to 1.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/gameroom/backend/internal/apikey"
	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/models"
)

const (
	V1 = 1
	V2 = 2
)

// ClientCommand is a parsed client request.
type ClientCommand interface {
	// Serialize renders the command back into its wire form.
	Serialize() string
}

type Version struct{ V int }

type NewUser struct {
	Name     string
	Email    string
	Password string
}

type NewTmpUser struct{ Name string }

type Apikey struct{ Key apikey.Key }

type Login struct {
	Email    string
	Password string
}

type Logout struct{}

type SetName struct{ Name string }

type SetPassword struct{ Password string }

type GenApikey struct{}

type SelfUserInfo struct{}

type NewGame struct{ GameType string }

type ObserveGame struct{ GameID models.GameID }

type StopObserveGame struct{ GameID models.GameID }

type JoinGame struct{ GameID models.GameID }

type LeaveGame struct{ GameID models.GameID }

type StartGame struct{ GameID models.GameID }

// Play is the version 2 move command, addressed to an explicit game.
type Play struct {
	GameID models.GameID
	Move   string
}

// Move is the version 1 move command; it targets the client's oldest game
// that is waiting on them.
type Move struct{ Move string }

func (c Version) Serialize() string    { return fmt.Sprintf("version %d", c.V) }
func (c NewUser) Serialize() string    { return fmt.Sprintf("new_user %s, %s, %s", c.Name, c.Email, c.Password) }
func (c NewTmpUser) Serialize() string { return "new_tmp_user " + c.Name }
func (c Apikey) Serialize() string     { return "apikey " + c.Key.String() }
func (c Login) Serialize() string      { return fmt.Sprintf("login %s, %s", c.Email, c.Password) }
func (c Logout) Serialize() string     { return "logout" }
func (c SetName) Serialize() string    { return "name " + c.Name }
func (c SetPassword) Serialize() string {
	return "password " + c.Password
}
func (c GenApikey) Serialize() string    { return "gen_apikey" }
func (c SelfUserInfo) Serialize() string { return "self_user_info" }
func (c NewGame) Serialize() string      { return "new_game " + c.GameType }
func (c ObserveGame) Serialize() string  { return fmt.Sprintf("observe_game %d", c.GameID) }
func (c StopObserveGame) Serialize() string {
	return fmt.Sprintf("stop_observe_game %d", c.GameID)
}
func (c JoinGame) Serialize() string  { return fmt.Sprintf("join_game %d", c.GameID) }
func (c LeaveGame) Serialize() string { return fmt.Sprintf("leave_game %d", c.GameID) }
func (c StartGame) Serialize() string { return fmt.Sprintf("start_game %d", c.GameID) }
func (c Play) Serialize() string      { return fmt.Sprintf("play %d, %s", c.GameID, c.Move) }
func (c Move) Serialize() string      { return "move " + c.Move }

// numArgs is the expected argument count per verb.
var numArgs = map[string]int{
	"version":           1,
	"new_user":          3,
	"new_tmp_user":      1,
	"apikey":            1,
	"login":             2,
	"logout":            0,
	"name":              1,
	"password":          1,
	"gen_apikey":        0,
	"self_user_info":    0,
	"new_game":          1,
	"observe_game":      1,
	"stop_observe_game": 1,
	"join_game":         1,
	"leave_game":        1,
	"start_game":        1,
	"play":              2,
	"move":              1,
}

// splitCmd separates the verb (longest non-whitespace prefix) from the
// comma-separated argument list. Arguments are trimmed of surrounding
// whitespace but may contain inner spaces.
func splitCmd(msg string) (string, []string) {
	i := strings.IndexFunc(msg, unicode.IsSpace)
	if i < 0 {
		return msg, nil
	}
	verb := msg[:i]
	parts := strings.Split(msg[i:], ",")
	args := make([]string, len(parts))
	for j, p := range parts {
		args[j] = strings.TrimSpace(p)
	}
	return verb, args
}

func parseID(s string) (models.GameID, error) {
	id, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, errs.ErrMalformedID
	}
	return models.GameID(id), nil
}

// Parse decodes a client frame into a command.
func Parse(message string) (ClientCommand, error) {
	verb, args := splitCmd(strings.TrimSpace(message))

	expected, ok := numArgs[verb]
	if !ok {
		return nil, errs.InvalidCommand(verb)
	}
	if len(args) != expected {
		return nil, errs.InvalidNumberOfArguments(verb, expected, len(args))
	}

	switch verb {
	case "version":
		switch args[0] {
		case "1":
			return Version{V: V1}, nil
		case "2":
			return Version{V: V2}, nil
		default:
			return nil, errs.ErrInvalidVersion
		}
	case "new_user":
		return NewUser{Name: args[0], Email: args[1], Password: args[2]}, nil
	case "new_tmp_user":
		return NewTmpUser{Name: args[0]}, nil
	case "apikey":
		key, err := apikey.Parse(args[0])
		if err != nil {
			return nil, err
		}
		return Apikey{Key: key}, nil
	case "login":
		return Login{Email: args[0], Password: args[1]}, nil
	case "logout":
		return Logout{}, nil
	case "name":
		return SetName{Name: args[0]}, nil
	case "password":
		return SetPassword{Password: args[0]}, nil
	case "gen_apikey":
		return GenApikey{}, nil
	case "self_user_info":
		return SelfUserInfo{}, nil
	case "new_game":
		return NewGame{GameType: args[0]}, nil
	case "observe_game":
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		return ObserveGame{GameID: id}, nil
	case "stop_observe_game":
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		return StopObserveGame{GameID: id}, nil
	case "join_game":
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		return JoinGame{GameID: id}, nil
	case "leave_game":
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		return LeaveGame{GameID: id}, nil
	case "start_game":
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		return StartGame{GameID: id}, nil
	case "play":
		id, err := parseID(args[0])
		if err != nil {
			return nil, err
		}
		return Play{GameID: id, Move: args[1]}, nil
	case "move":
		return Move{Move: args[0]}, nil
	}
	return nil, errs.InvalidCommand(verb)
}
