package ws

import (
	"context"

	"github.com/gameroom/backend/internal/engine"
	"github.com/gameroom/backend/internal/errs"
	"github.com/gameroom/backend/internal/models"
	"github.com/gameroom/backend/internal/protocol"
	"github.com/gameroom/backend/internal/router"
)

// Session dispatches parsed commands for one connection. Authentication
// state lives in the client map; the session itself is stateless between
// frames.
type Session struct {
	Addr     string
	Clients  *router.ClientMap
	Engine   *engine.Engine
	TimeCtrl engine.TimeControl
}

// HandleFrame parses and applies one inbound text frame. The returned
// command is the reply to queue; ok=false means the frame produced no reply
// (only selecting protocol version 1 is silent).
func (s *Session) HandleFrame(ctx context.Context, text string) (protocol.ServerCommand, bool) {
	cmd, err := protocol.Parse(text)
	if err != nil {
		return protocol.ErrorReply{Text: errs.Wire(err)}, true
	}
	reply, ok, err := s.dispatch(ctx, cmd)
	if err != nil {
		return protocol.ErrorReply{Text: errs.Wire(err)}, true
	}
	if !ok {
		return nil, false
	}
	if reply == nil {
		reply = protocol.Okay{}
	}
	return reply, true
}

// user resolves the connection's authenticated user.
func (s *Session) user(ctx context.Context) (*models.User, error) {
	id, ok := s.Clients.UserFor(s.Addr)
	if !ok {
		return nil, errs.ErrNotLoggedIn
	}
	return s.Engine.FindUser(ctx, id)
}

// dispatch applies a command. A nil reply with ok=true means plain `okay`.
func (s *Session) dispatch(ctx context.Context, cmd protocol.ClientCommand) (protocol.ServerCommand, bool, error) {
	switch c := cmd.(type) {
	case protocol.Version:
		s.Clients.SetVersion(s.Addr, c.V)
		// version 1 selection predates the version handshake; stay silent
		if c.V == protocol.V1 {
			return nil, false, nil
		}
		return nil, true, nil

	// --- authentication ---
	case protocol.NewUser:
		u, err := s.Engine.NewUser(ctx, c.Name, c.Email, c.Password)
		if err != nil {
			return nil, false, err
		}
		s.Clients.AddAsUser(u.ID, s.Addr)
		return nil, true, nil
	case protocol.NewTmpUser:
		u, err := s.Engine.NewTmpUser(ctx, c.Name)
		if err != nil {
			return nil, false, err
		}
		s.Clients.AddAsUser(u.ID, s.Addr)
		return nil, true, nil
	case protocol.Apikey:
		u, err := s.Engine.FindUserByAPIKey(ctx, c.Key)
		if err != nil {
			return nil, false, err
		}
		s.Clients.AddAsUser(u.ID, s.Addr)
		return nil, true, nil
	case protocol.Login:
		u, err := s.Engine.FindUserByCredentials(ctx, c.Email, c.Password)
		if err != nil {
			return nil, false, err
		}
		s.Clients.AddAsUser(u.ID, s.Addr)
		return nil, true, nil
	case protocol.Logout:
		s.Clients.RemoveAsUser(s.Addr)
		return nil, true, nil

	// --- user info / edit ---
	case protocol.SetName:
		u, err := s.user(ctx)
		if err != nil {
			return nil, false, err
		}
		return nil, true, s.Engine.RenameUser(ctx, u, c.Name)
	case protocol.SetPassword:
		u, err := s.user(ctx)
		if err != nil {
			return nil, false, err
		}
		return nil, true, s.Engine.SetPassword(ctx, u, c.Password)
	case protocol.GenApikey:
		u, err := s.user(ctx)
		if err != nil {
			return nil, false, err
		}
		key, err := s.Engine.RotateAPIKey(ctx, u)
		if err != nil {
			return nil, false, err
		}
		return protocol.GenApikeyReply{Key: key.String()}, true, nil
	case protocol.SelfUserInfo:
		u, err := s.user(ctx)
		if err != nil {
			return nil, false, err
		}
		reply := protocol.SelfUserInfoReply{ID: u.ID, Name: u.Name}
		if u.Email.Valid {
			email := u.Email.String
			reply.Email = &email
		}
		return reply, true, nil

	// --- game management ---
	case protocol.NewGame:
		u, err := s.user(ctx)
		if err != nil {
			return nil, false, err
		}
		id, err := s.Engine.NewGame(ctx, c.GameType, u.ID, s.TimeCtrl)
		if err != nil {
			return nil, false, err
		}
		return protocol.NewGameReply{ID: id}, true, nil
	case protocol.ObserveGame:
		state, err := s.Engine.GameState(ctx, c.GameID)
		if err != nil {
			return nil, false, err
		}
		s.Clients.AddToTopic(router.Game(c.GameID), s.Addr)
		return state, true, nil
	case protocol.StopObserveGame:
		s.Clients.RemoveFromTopic(router.Game(c.GameID), s.Addr)
		return nil, true, nil
	case protocol.JoinGame:
		u, err := s.user(ctx)
		if err != nil {
			return nil, false, err
		}
		return nil, true, s.Engine.JoinGame(ctx, c.GameID, u.ID)
	case protocol.LeaveGame:
		u, err := s.user(ctx)
		if err != nil {
			return nil, false, err
		}
		return nil, true, s.Engine.LeaveGame(ctx, c.GameID, u.ID)
	case protocol.StartGame:
		u, err := s.user(ctx)
		if err != nil {
			return nil, false, err
		}
		return nil, true, s.Engine.StartGame(ctx, c.GameID, u.ID)

	// --- moves ---
	case protocol.Play:
		if s.Clients.Version(s.Addr) < protocol.V2 {
			return nil, false, errs.ErrWrongVersion
		}
		u, err := s.user(ctx)
		if err != nil {
			return nil, false, err
		}
		return nil, true, s.Engine.MakeMove(ctx, c.GameID, u.ID, c.Move)
	case protocol.Move:
		u, err := s.user(ctx)
		if err != nil {
			return nil, false, err
		}
		gameID, ok, err := s.Engine.OldestWaitingGame(ctx, u.ID)
		if err != nil {
			return nil, false, err
		}
		if !ok {
			return nil, false, errs.ErrNotTurn
		}
		return nil, true, s.Engine.MakeMove(ctx, gameID, u.ID, c.Move)
	}
	return nil, false, errs.InvalidCommand(cmd.Serialize())
}
