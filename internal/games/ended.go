package games

import (
	"errors"

	"github.com/gameroom/backend/internal/models"
)

// EndedInstance replaces a live instance when a game is terminated early
// (time expiry, resignation). It freezes the final board and records the
// outcome and reason.
type EndedInstance struct {
	state   string
	winner  *models.UserID
	reason  string
	players []models.UserID
}

// EndGame wraps the final state of a (possibly nil) instance.
func EndGame(inst Instance, players []models.UserID, winner *models.UserID, reason string) *EndedInstance {
	state := ""
	if inst != nil {
		state = inst.Serialize()
	}
	return &EndedInstance{state: state, winner: winner, reason: reason, players: players}
}

func (e *EndedInstance) Serialize() string { return e.state }

func (e *EndedInstance) Turn() Turn { return Finished() }

func (e *EndedInstance) Reason() string { return e.reason }

func (e *EndedInstance) EndState() EndState {
	if e.winner != nil {
		return WonBy(*e.winner)
	}
	return EndState{Kind: Tie}
}

func (e *EndedInstance) MakeMove(models.UserID, string) error {
	return errors.New("the game has ended")
}

func (e *EndedInstance) Scores() (map[models.UserID]float64, bool) {
	scores := make(map[models.UserID]float64, len(e.players))
	for _, p := range e.players {
		switch {
		case e.winner != nil && *e.winner == p:
			scores[p] = 1
		case e.winner != nil:
			scores[p] = 0
		default:
			scores[p] = 0.5
		}
	}
	return scores, true
}
