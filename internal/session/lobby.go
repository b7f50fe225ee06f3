package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/playperu/coopquest/internal/camp"
	"github.com/playperu/coopquest/internal/coopquest"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	codeAttempts = 5
)

func (e *Engine) newCode() string {
	var b strings.Builder
	for range codeLength {
		b.WriteByte(codeAlphabet[e.rng.IntN(len(codeAlphabet))])
	}
	return b.String()
}

func (e *Engine) newParticipant(id int64, name string, role coopquest.Role) Participant {
	return Participant{
		PlayerID:   id,
		Name:       name,
		Role:       role,
		Vitals:     defaultVitals(),
		Attributes: map[string]int{},
		Skills:     coopquest.DefaultSkills(role),
		Inventory:  map[string]int{},
		JoinedAt:   e.now(),
	}
}

// CreateRoom opens a waiting session hosted by hostID, who is seated at once.
func (e *Engine) CreateRoom(ctx context.Context, hostID int64, name string, role coopquest.Role) (RoomState, error) {
	if role != "" && !role.Valid() {
		return RoomState{}, fmt.Errorf("%w: unknown role %q", coopquest.ErrPreconditionFailed, role)
	}
	if role == "" {
		role = coopquest.Roles[0]
	}
	now := e.now()
	for range codeAttempts {
		s := &Session{
			Code:         e.newCode(),
			HostID:       hostID,
			Status:       StatusWaiting,
			Participants: []Participant{e.newParticipant(hostID, name, role)},
			State:        GraphState{Version: StateVersion},
			Camp:         camp.NewLedger(),
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		Normalize(s)
		err := e.store.Create(ctx, s)
		if errors.Is(err, coopquest.ErrConflict) {
			continue
		}
		if err != nil {
			return RoomState{}, err
		}
		e.logger.Info("room created", "code", s.Code, "host", hostID)
		return e.buildRoomState(s), nil
	}
	return RoomState{}, fmt.Errorf("%w: could not allocate a room code", coopquest.ErrConflict)
}

// Join seats playerID. Rejoining is idempotent; a rejoin while waiting may
// switch to another free role.
func (e *Engine) Join(ctx context.Context, code string, playerID int64, name string, role coopquest.Role) (RoomState, error) {
	if role != "" && !role.Valid() {
		return RoomState{}, fmt.Errorf("%w: unknown role %q", coopquest.ErrPreconditionFailed, role)
	}
	sess, err := e.modify(ctx, code, func(s *Session) error {
		if p, ok := s.participant(playerID); ok {
			if role == "" || role == p.Role {
				return nil
			}
			if s.Status != StatusWaiting {
				return fmt.Errorf("%w: roles are locked once the session starts", coopquest.ErrInvalidState)
			}
			if holder, taken := s.roleHolder(role); taken && holder.PlayerID != playerID {
				return fmt.Errorf("%w: role %s already taken", coopquest.ErrPreconditionFailed, role)
			}
			p.Role = role
			p.Skills = coopquest.DefaultSkills(role)
			p.Ready = false
			return nil
		}

		if s.Status != StatusWaiting {
			return fmt.Errorf("%w: session already started", coopquest.ErrInvalidState)
		}
		if len(s.Participants) >= e.content.MaxPlayers {
			return fmt.Errorf("%w: room is full", coopquest.ErrPreconditionFailed)
		}
		if role == "" {
			free, ok := s.freeRole()
			if !ok {
				return fmt.Errorf("%w: no free role", coopquest.ErrPreconditionFailed)
			}
			role = free
		} else if _, taken := s.roleHolder(role); taken {
			return fmt.Errorf("%w: role %s already taken", coopquest.ErrPreconditionFailed, role)
		}
		s.Participants = append(s.Participants, e.newParticipant(playerID, name, role))
		return nil
	})
	if err != nil {
		return RoomState{}, err
	}
	e.logger.Info("player joined", "code", code, "player", playerID)
	e.publish(sess)
	return e.buildRoomState(sess), nil
}

// Leave removes playerID with their votes. The host role passes on and an
// empty room is deleted. It reports whether the room was deleted.
func (e *Engine) Leave(ctx context.Context, code string, playerID int64) (bool, error) {
	sess, err := e.modify(ctx, code, func(s *Session) error {
		if _, ok := s.participant(playerID); !ok {
			return fmt.Errorf("%w: player %d is not in room %s", coopquest.ErrUnauthorized, playerID, code)
		}
		e.dropParticipant(s, playerID)
		return nil
	})
	if err != nil {
		return false, err
	}
	e.logger.Info("player left", "code", code, "player", playerID)

	if len(sess.Participants) == 0 {
		if err := e.store.Delete(ctx, code); err != nil {
			return false, err
		}
		e.logger.Info("room deleted", "code", code)
		return true, nil
	}

	// A smaller room can push the votes already cast over the threshold.
	var winner string
	tallied, err := e.modify(ctx, code, func(s *Session) error {
		var err error
		winner, err = e.tally(s)
		return err
	})
	if err != nil {
		e.logger.Warn("re-tally after leave failed", "code", code, "error", err)
		e.publish(sess)
		return false, nil
	}
	if winner != "" {
		e.logger.Info("scene resolved", "code", code, "choice", winner, "scene", tallied.SceneID)
	}
	e.publish(tallied)
	return false, nil
}

func (e *Engine) dropParticipant(s *Session, playerID int64) {
	kept := s.Votes[:0]
	for _, v := range s.Votes {
		if v.VoterID != playerID {
			kept = append(kept, v)
			continue
		}
		e.revertVoteFlags(s, v)
	}
	s.Votes = kept

	for i, p := range s.Participants {
		if p.PlayerID == playerID {
			s.Participants = append(s.Participants[:i], s.Participants[i+1:]...)
			break
		}
	}

	if b := s.State.Broadcast; b != nil {
		reacted := make(map[int64]bool, len(b.Reactions))
		for _, r := range b.Reactions {
			reacted[r.PlayerID] = true
		}
		order := b.Order[:0]
		for _, id := range b.Order {
			if id != playerID || reacted[id] {
				order = append(order, id)
			}
		}
		b.Order = order
	}

	if s.HostID == playerID && len(s.Participants) > 0 {
		s.HostID = s.Participants[0].PlayerID
		for _, p := range s.Participants {
			if !p.Bot {
				s.HostID = p.PlayerID
				break
			}
		}
	}
}

func (e *Engine) SetReady(ctx context.Context, code string, playerID int64, ready bool) (RoomState, error) {
	sess, err := e.modify(ctx, code, func(s *Session) error {
		p, ok := s.participant(playerID)
		if !ok {
			return fmt.Errorf("%w: player %d is not in room %s", coopquest.ErrUnauthorized, playerID, code)
		}
		if s.Status != StatusWaiting {
			return fmt.Errorf("%w: session already started", coopquest.ErrInvalidState)
		}
		p.Ready = ready
		return nil
	})
	if err != nil {
		return RoomState{}, err
	}
	e.publish(sess)
	return e.buildRoomState(sess), nil
}

// Start moves a waiting session to the configured start node. Every seated
// participant must be ready with a role.
func (e *Engine) Start(ctx context.Context, code string, playerID int64) (RoomState, error) {
	if _, err := e.content.Graph.RequireNode(e.content.StartNode); err != nil {
		return RoomState{}, err
	}
	sess, err := e.modify(ctx, code, func(s *Session) error {
		if s.HostID != playerID {
			return fmt.Errorf("%w: only the host can start", coopquest.ErrUnauthorized)
		}
		if s.Status != StatusWaiting {
			return fmt.Errorf("%w: session already started", coopquest.ErrInvalidState)
		}
		ready := 0
		for _, p := range s.Participants {
			if !p.Ready || p.Role == "" {
				return fmt.Errorf("%w: %s is not ready", coopquest.ErrPreconditionFailed, p.Name)
			}
			ready++
		}
		if ready < e.content.MinPlayers {
			return fmt.Errorf("%w: need %d ready players, have %d", coopquest.ErrPreconditionFailed, e.content.MinPlayers, ready)
		}
		s.Status = StatusActive
		e.moveScene(s, e.content.StartNode)
		return nil
	})
	if err != nil {
		return RoomState{}, err
	}
	e.logger.Info("session started", "code", code, "players", len(sess.Participants))
	e.publish(sess)
	return e.buildRoomState(sess), nil
}

// AddBot seats a ready bot the host can vote for. Bots get negative ids.
func (e *Engine) AddBot(ctx context.Context, code string, hostID int64, role coopquest.Role) (RoomState, error) {
	if role != "" && !role.Valid() {
		return RoomState{}, fmt.Errorf("%w: unknown role %q", coopquest.ErrPreconditionFailed, role)
	}
	sess, err := e.modify(ctx, code, func(s *Session) error {
		if s.HostID != hostID {
			return fmt.Errorf("%w: only the host can add bots", coopquest.ErrUnauthorized)
		}
		if len(s.Participants) >= e.content.MaxPlayers {
			return fmt.Errorf("%w: room is full", coopquest.ErrPreconditionFailed)
		}
		if role == "" {
			free, ok := s.freeRole()
			if !ok {
				return fmt.Errorf("%w: no free role", coopquest.ErrPreconditionFailed)
			}
			role = free
		} else if _, taken := s.roleHolder(role); taken {
			return fmt.Errorf("%w: role %s already taken", coopquest.ErrPreconditionFailed, role)
		}
		id := int64(-1)
		for _, p := range s.Participants {
			if p.PlayerID <= id {
				id = p.PlayerID - 1
			}
		}
		bot := e.newParticipant(id, fmt.Sprintf("Bot %s", role), role)
		bot.Bot = true
		bot.Ready = true
		bot.Cursor = s.SceneID
		s.Participants = append(s.Participants, bot)
		return nil
	})
	if err != nil {
		return RoomState{}, err
	}
	e.publish(sess)
	return e.buildRoomState(sess), nil
}

// PurchaseUpgrade spends camp credits on the next level of upgradeID.
func (e *Engine) PurchaseUpgrade(ctx context.Context, code string, playerID int64, upgradeID string) (RoomState, error) {
	var level int
	sess, err := e.modify(ctx, code, func(s *Session) error {
		if _, ok := s.participant(playerID); !ok {
			return fmt.Errorf("%w: player %d is not in room %s", coopquest.ErrUnauthorized, playerID, code)
		}
		var err error
		level, err = s.Camp.PurchaseUpgrade(e.content.Catalog, upgradeID)
		return err
	})
	if err != nil {
		return RoomState{}, err
	}
	e.logger.Info("upgrade purchased", "code", code, "upgrade", upgradeID, "level", level)
	e.publish(sess)
	return e.buildRoomState(sess), nil
}
