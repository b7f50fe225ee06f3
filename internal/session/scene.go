package session

import (
	"context"
	"fmt"

	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/graph"
	"github.com/playperu/coopquest/internal/random"
)

// recordReaction appends voter's reaction on a sequential_broadcast node.
// The first reactor fixes the order; everyone else follows in shuffled order.
func (e *Engine) recordReaction(s *Session, voter *Participant, node *graph.Node, c *graph.Choice) error {
	b := s.State.Broadcast
	if b == nil || b.NodeID != node.ID {
		others := make([]int64, 0, len(s.Participants))
		for _, p := range s.Participants {
			if p.PlayerID != voter.PlayerID {
				others = append(others, p.PlayerID)
			}
		}
		random.Shuffle(e.rng, others)
		b = &Broadcast{NodeID: node.ID, Order: append([]int64{voter.PlayerID}, others...)}
		s.State.Broadcast = b
	}
	next, ok := b.Next()
	if !ok {
		return fmt.Errorf("%w: everyone has already reacted", coopquest.ErrInvalidState)
	}
	if next != voter.PlayerID {
		return fmt.Errorf("%w: not your turn", coopquest.ErrInvalidState)
	}
	b.Reactions = append(b.Reactions, Reaction{PlayerID: voter.PlayerID, ChoiceID: c.ID, Text: c.Text, At: e.now()})
	return nil
}

// AdvanceBroadcast resolves a sequential_broadcast node once every player
// has reacted. The most chosen reaction wins.
func (e *Engine) AdvanceBroadcast(ctx context.Context, code string, playerID int64) (RoomState, error) {
	sess, err := e.modify(ctx, code, func(s *Session) error {
		if _, ok := s.participant(playerID); !ok {
			return fmt.Errorf("%w: player %d is not in room %s", coopquest.ErrUnauthorized, playerID, code)
		}
		b := s.State.Broadcast
		if b == nil || b.NodeID != s.SceneID {
			return fmt.Errorf("%w: no broadcast on the current scene", coopquest.ErrInvalidState)
		}
		if !b.Complete() {
			return fmt.Errorf("%w: %d of %d players have reacted", coopquest.ErrPreconditionFailed, len(b.Reactions), len(b.Order))
		}
		node, err := e.content.Graph.RequireNode(b.NodeID)
		if err != nil {
			return err
		}
		votes := make([]Vote, 0, len(b.Reactions))
		for _, r := range b.Reactions {
			votes = append(votes, Vote{SceneID: node.ID, VoterID: r.PlayerID, ChoiceID: r.ChoiceID, CastAt: r.At})
		}
		winnerID, _ := random.Pick(e.rng, leadingChoices(tallyCounts(votes)))
		choice, ok := node.Choice(winnerID)
		if !ok {
			return fmt.Errorf("%w: choice %q on node %s", coopquest.ErrNotFound, winnerID, node.ID)
		}
		s.State.Broadcast = nil
		return e.resolveChoice(s, node, choice, votes)
	})
	if err != nil {
		return RoomState{}, err
	}
	e.logger.Info("broadcast advanced", "code", code, "scene", sess.SceneID)
	e.publish(sess)
	return e.buildRoomState(sess), nil
}

// EncounterReport is the external battle's final word.
type EncounterReport struct {
	Outcome string                 `json:"outcome"`
	Players map[int64]VitalsReport `json:"players"`
}

type VitalsReport struct {
	HP      int `json:"hp"`
	Morale  int `json:"morale"`
	Stamina int `json:"stamina"`
}

// ResolveEncounter writes back the battle's vitals, pays the reward on
// victory and leaves the battle scene.
func (e *Engine) ResolveEncounter(ctx context.Context, code string, hostID int64, rep EncounterReport) (RoomState, error) {
	if rep.Outcome != OutcomeVictory && rep.Outcome != OutcomeDefeat {
		return RoomState{}, fmt.Errorf("%w: outcome must be %s or %s", coopquest.ErrPreconditionFailed, OutcomeVictory, OutcomeDefeat)
	}
	var encID string
	sess, err := e.modify(ctx, code, func(s *Session) error {
		if s.HostID != hostID {
			return fmt.Errorf("%w: only the host can resolve battles", coopquest.ErrUnauthorized)
		}
		enc := s.State.Encounter
		if !enc.Active() {
			return fmt.Errorf("%w: no active battle", coopquest.ErrInvalidState)
		}
		encID = enc.ID
		for _, c := range enc.Combatants {
			p, ok := s.participant(c.PlayerID)
			if !ok {
				continue
			}
			if v, ok := rep.Players[c.PlayerID]; ok {
				p.Vitals.HP, p.Vitals.Morale, p.Vitals.Stamina = v.HP, v.Morale, v.Stamina
				p.Vitals.clamp()
			}
		}

		next := enc.ReturnNodeID
		if rep.Outcome == OutcomeVictory {
			if exp := s.State.Expedition; exp != nil {
				exp.ResearchPoints += enc.Reward
			} else {
				s.Camp.Credits += enc.Reward
			}
		} else if enc.DefeatNodeID != "" {
			next = enc.DefeatNodeID
		}
		now := e.now()
		enc.Status = EncounterResolved
		enc.Outcome = rep.Outcome
		enc.ResolvedAt = &now

		next = e.deliverDeadline(s, or(next, s.SceneID))
		if next != s.SceneID {
			e.moveScene(s, next)
		}
		return nil
	})
	if err != nil {
		return RoomState{}, err
	}
	e.logger.Info("encounter resolved", "code", code, "encounter", encID, "outcome", rep.Outcome, "scene", sess.SceneID)
	e.publish(sess)
	return e.buildRoomState(sess), nil
}

// ReachCheckpoint records that playerID reached nodeID on their own.
func (e *Engine) ReachCheckpoint(ctx context.Context, code string, playerID int64, nodeID string) (RoomState, error) {
	if _, err := e.content.Graph.RequireNode(nodeID); err != nil {
		return RoomState{}, err
	}
	sess, err := e.modify(ctx, code, func(s *Session) error {
		p, ok := s.participant(playerID)
		if !ok {
			return fmt.Errorf("%w: player %d is not in room %s", coopquest.ErrUnauthorized, playerID, code)
		}
		if s.Status != StatusActive {
			return fmt.Errorf("%w: session is not active", coopquest.ErrInvalidState)
		}
		p.Cursor = nodeID
		e.promoteCheckpoint(s)
		return nil
	})
	if err != nil {
		return RoomState{}, err
	}
	e.publish(sess)
	return e.buildRoomState(sess), nil
}

// promoteCheckpoint makes a node the shared scene once a majority of
// participants report it. Battles pin the scene.
func (e *Engine) promoteCheckpoint(s *Session) {
	if s.State.Encounter.Active() || len(s.Participants) == 0 {
		return
	}
	counts := make(map[string]int)
	for _, p := range s.Participants {
		if p.Cursor != "" && p.Cursor != s.SceneID {
			counts[p.Cursor]++
		}
	}
	need := len(s.Participants)/2 + 1
	for _, node := range leadingChoices(counts) {
		if counts[node] >= need {
			e.logger.Info("checkpoint promoted", "code", s.Code, "scene", node)
			e.moveScene(s, e.deliverDeadline(s, node))
			return
		}
	}
}

// ForceScene jumps the shared scene to nodeID. Debug only.
func (e *Engine) ForceScene(ctx context.Context, code string, nodeID string) (RoomState, error) {
	if _, err := e.content.Graph.RequireNode(nodeID); err != nil {
		return RoomState{}, err
	}
	sess, err := e.modify(ctx, code, func(s *Session) error {
		if s.Status != StatusActive {
			return fmt.Errorf("%w: session is not active", coopquest.ErrInvalidState)
		}
		e.moveScene(s, nodeID)
		return nil
	})
	if err != nil {
		return RoomState{}, err
	}
	e.logger.Warn("scene forced", "code", code, "scene", nodeID)
	e.publish(sess)
	return e.buildRoomState(sess), nil
}
