// Package errs defines the closed set of failures the server can report to
// clients. Every error that reaches the wire is one of these; the dispatcher
// serializes them as `error <text>` replies.
package errs

import (
	"errors"
	"fmt"
)

// Kind discriminates the failure categories.
type Kind int

const (
	KindDB Kind = iota
	KindBCrypt
	KindNoSuchUser
	KindMalformedApiKey
	KindInvalidApiKey
	KindIncorrectCredentials
	KindEmailAlreadyTaken
	KindInvalidCommand
	KindInvalidNumberOfArguments
	KindMalformedID
	KindNoSuchConnectedClient
	KindMessageParseError
	KindNotLoggedIn
	KindNoSuchGameType
	KindNoSuchGame
	KindAlreadyInGame
	KindNotInGame
	KindGameAlreadyStarted
	KindDontOwnGame
	KindInvalidNumberOfPlayers
	KindNotTurn
	KindInvalidMove
	KindWrongVersionForCommand
	KindInvalidProtocolVersion
)

// Error is a protocol-visible failure. Its Error() string is exactly the
// text sent on the wire after "error ".
type Error struct {
	Kind Kind
	text string
	err  error
}

func (e *Error) Error() string { return e.text }

func (e *Error) Unwrap() error { return e.err }

// Is matches by Kind so errors.Is works against the sentinel values below
// regardless of parameterized text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrNoSuchUser            = &Error{Kind: KindNoSuchUser, text: "no such user"}
	ErrMalformedApiKey       = &Error{Kind: KindMalformedApiKey, text: "malformed api key"}
	ErrInvalidApiKey         = &Error{Kind: KindInvalidApiKey, text: "invalid api key"}
	ErrIncorrectCredentials  = &Error{Kind: KindIncorrectCredentials, text: "incorrect login credentials"}
	ErrEmailAlreadyTaken     = &Error{Kind: KindEmailAlreadyTaken, text: "email is already taken"}
	ErrMalformedID           = &Error{Kind: KindMalformedID, text: "malformed id"}
	ErrNoSuchConnectedClient = &Error{Kind: KindNoSuchConnectedClient, text: "no such connected client"}
	ErrMessageParse          = &Error{Kind: KindMessageParseError, text: "couldn't parse client command as text (make sure to use utf-8 encoded messages)"}
	ErrNotLoggedIn           = &Error{Kind: KindNotLoggedIn, text: "you are not logged in"}
	ErrNoSuchGame            = &Error{Kind: KindNoSuchGame, text: "no such game"}
	ErrAlreadyInGame         = &Error{Kind: KindAlreadyInGame, text: "you are already in that game"}
	ErrNotInGame             = &Error{Kind: KindNotInGame, text: "you aren't in that game"}
	ErrGameAlreadyStarted    = &Error{Kind: KindGameAlreadyStarted, text: "that game has already started"}
	ErrDontOwnGame           = &Error{Kind: KindDontOwnGame, text: "you aren't the owner of that game"}
	ErrInvalidNumPlayers     = &Error{Kind: KindInvalidNumberOfPlayers, text: "invalid number of players"}
	ErrNotTurn               = &Error{Kind: KindNotTurn, text: "it is not your turn"}
	ErrWrongVersion          = &Error{Kind: KindWrongVersionForCommand, text: "that command is only available in protocol version 2 (you are in version 1)"}
	ErrInvalidVersion        = &Error{Kind: KindInvalidProtocolVersion, text: "invalid protocol version"}
)

// InvalidCommand reports an unrecognized verb.
func InvalidCommand(verb string) *Error {
	return &Error{Kind: KindInvalidCommand, text: fmt.Sprintf("unrecognized command: %s", verb)}
}

// InvalidNumberOfArguments reports an arity mismatch for a known verb.
func InvalidNumberOfArguments(verb string, expected, actual int) *Error {
	return &Error{
		Kind: KindInvalidNumberOfArguments,
		text: fmt.Sprintf("invalid number of arguments for command %s - expected %d, found %d", verb, expected, actual),
	}
}

// NoSuchGameType reports an unregistered game type tag.
func NoSuchGameType(tag string) *Error {
	return &Error{Kind: KindNoSuchGameType, text: fmt.Sprintf("no such game type: %s", tag)}
}

// InvalidMove wraps a rejection message from a game instance.
func InvalidMove(msg string) *Error {
	return &Error{Kind: KindInvalidMove, text: fmt.Sprintf("invalid move: %s", msg)}
}

// DB wraps a database failure. The cause is kept for logs but the wire text
// stays short.
func DB(err error) *Error {
	return &Error{Kind: KindDB, text: fmt.Sprintf("database error: %v", err), err: err}
}

// BCrypt wraps a password hashing failure.
func BCrypt(err error) *Error {
	return &Error{Kind: KindBCrypt, text: fmt.Sprintf("bcrypt error: %v", err), err: err}
}

// Wire returns the client-facing text for any error. Non-taxonomy errors are
// reported as database errors rather than leaking internals.
func Wire(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	return DB(err).Error()
}
