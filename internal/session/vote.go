package session

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/playperu/coopquest/internal/camp"
	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/graph"
	"github.com/playperu/coopquest/internal/random"
)

// VoteRequest is one cast. AsPlayerID lets the host act for a bot; NodeID
// targets the caller's own cursor on an individual node.
type VoteRequest struct {
	ChoiceID   string `json:"choiceId"`
	AsPlayerID int64  `json:"asPlayerId,omitempty"`
	NodeID     string `json:"nodeId,omitempty"`
}

// VoteResult reports what the cast did.
type VoteResult struct {
	Recorded bool   `json:"recorded"`
	Applied  bool   `json:"applied"`
	Advanced bool   `json:"advanced"`
	Winner   string `json:"winner,omitempty"`
	SceneID  string `json:"sceneId"`
}

// Vote validates and records a choice. Group modes commit in two steps: the
// vote is persisted first, then a fresh read re-tallies the full vote set.
// A tally failure leaves the vote recorded and the scene unchanged.
func (e *Engine) Vote(ctx context.Context, code string, callerID int64, req VoteRequest) (VoteResult, error) {
	var res VoteResult
	var mode graph.Mode
	sess, err := e.modify(ctx, code, func(s *Session) error {
		voter, err := e.resolveVoter(s, callerID, req.AsPlayerID)
		if err != nil {
			return err
		}
		if s.Status != StatusActive {
			return fmt.Errorf("%w: session is not active", coopquest.ErrInvalidState)
		}
		node, err := e.voteNode(s, req.NodeID)
		if err != nil {
			return err
		}
		choice, ok := node.Choice(req.ChoiceID)
		if !ok {
			return fmt.Errorf("%w: choice %q on node %s", coopquest.ErrNotFound, req.ChoiceID, node.ID)
		}
		if prev, done := voter.Resolved[node.ID]; done && node.Mode == graph.ModeIndividual {
			return fmt.Errorf("%w: player %d already chose %s on %s", coopquest.ErrInvalidState, voter.PlayerID, prev, node.ID)
		}
		if err := e.checkGates(s, voter, node, choice); err != nil {
			return err
		}

		mode = node.Mode
		switch node.Mode {
		case graph.ModeIndividual:
			e.applyIndividual(s, voter, node, choice)
			res.Applied = true
		case graph.ModeSequentialBroadcast:
			if err := e.recordReaction(s, voter, node, choice); err != nil {
				return err
			}
			res.Recorded = true
		default:
			e.upsertVote(s, voter.PlayerID, node.ID, choice)
			res.Recorded = true
		}
		return nil
	})
	if err != nil {
		return VoteResult{}, err
	}
	e.logger.Debug("vote cast", "code", code, "voter", callerID, "choice", req.ChoiceID, "mode", mode)

	if mode == graph.ModeIndividual || mode == graph.ModeSequentialBroadcast {
		res.SceneID = sess.SceneID
		e.publish(sess)
		return res, nil
	}

	tallied, err := e.modify(ctx, code, func(s *Session) error {
		winner, err := e.tally(s)
		if err != nil {
			return err
		}
		if winner != "" {
			res.Advanced = true
			res.Winner = winner
		}
		return nil
	})
	if err != nil {
		e.publish(sess)
		return res, err
	}
	res.SceneID = tallied.SceneID
	if res.Advanced {
		e.logger.Info("scene resolved", "code", code, "choice", res.Winner, "scene", tallied.SceneID)
	}
	e.publish(tallied)
	return res, nil
}

func (e *Engine) resolveVoter(s *Session, callerID, asID int64) (*Participant, error) {
	caller, ok := s.participant(callerID)
	if !ok {
		return nil, fmt.Errorf("%w: player %d is not in room %s", coopquest.ErrUnauthorized, callerID, s.Code)
	}
	if asID == 0 || asID == callerID {
		return caller, nil
	}
	if s.HostID != callerID {
		return nil, fmt.Errorf("%w: only the host can act for bots", coopquest.ErrUnauthorized)
	}
	bot, ok := s.participant(asID)
	if !ok || !bot.Bot {
		return nil, fmt.Errorf("%w: player %d is not a bot", coopquest.ErrUnauthorized, asID)
	}
	return bot, nil
}

// voteNode picks the node a vote targets. A node override is allowed only
// for individual nodes; group votes need the shared scene to be free.
func (e *Engine) voteNode(s *Session, override string) (*graph.Node, error) {
	if override != "" && override != s.SceneID {
		node, err := e.content.Graph.RequireNode(override)
		if err != nil {
			return nil, err
		}
		if node.Mode != graph.ModeIndividual {
			return nil, fmt.Errorf("%w: node override is only allowed on individual nodes", coopquest.ErrPreconditionFailed)
		}
		return node, nil
	}
	if s.State.Encounter.Active() {
		return nil, fmt.Errorf("%w: a battle is in progress", coopquest.ErrInvalidState)
	}
	return e.content.Graph.RequireNode(s.SceneID)
}

func (e *Engine) checkGates(s *Session, voter *Participant, node *graph.Node, c *graph.Choice) error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{coopquest.ErrPreconditionFailed}, args...)...)
	}
	if e.emptySlot(s, node, c) {
		return fail("mission slot %s is empty", c.ID)
	}
	if c.RequiredRole != "" && voter.Role != c.RequiredRole {
		return fail("choice %s requires role %s", c.ID, c.RequiredRole)
	}
	if c.RequiredItem != "" && voter.Inventory[c.RequiredItem] <= 0 && s.Camp.Inventory[c.RequiredItem] <= 0 {
		return fail("choice %s requires item %s", c.ID, c.RequiredItem)
	}
	if cost := c.ConsumableCost; cost != nil && cost.Qty > 0 {
		inv := s.Camp.Inventory
		if node.Mode == graph.ModeIndividual {
			inv = voter.Inventory
		}
		if inv[cost.Item] < cost.Qty {
			return fail("choice %s consumes %d %s", c.ID, cost.Qty, cost.Item)
		}
	}
	for stat, floor := range c.RequiredStats {
		if voter.Vitals.Get(stat) < floor {
			return fail("choice %s requires %s %d", c.ID, stat, floor)
		}
	}
	for attr, floor := range c.RequiredAttributes {
		have := voter.Attributes[attr]
		if sk, ok := voter.Skills[attr]; ok {
			have = max(have, sk)
		}
		if have < floor {
			return fail("choice %s requires %s %d", c.ID, attr, floor)
		}
	}
	for _, trait := range c.RequiredTraits {
		if !e.hasTrait(s, voter, trait) {
			return fail("choice %s requires trait %s", c.ID, trait)
		}
	}
	if x := c.Expedition; x != nil && x.Cost > 0 {
		exp := s.State.Expedition
		if exp == nil || exp.ResearchPoints < x.Cost {
			return fail("choice %s costs %d research points", c.ID, x.Cost)
		}
	}
	return nil
}

// emptySlot reports whether c is a hub mission slot with nothing in it.
func (e *Engine) emptySlot(s *Session, node *graph.Node, c *graph.Choice) bool {
	exp := s.State.Expedition
	if exp == nil || exp.HubNodeID != node.ID {
		return false
	}
	if _, ok := exp.Missions[c.ID]; ok {
		return false
	}
	pool, err := e.content.Scheduler.Pool(exp.PoolID)
	if err != nil {
		return false
	}
	stage, _ := pool.StageAt(exp.StageIndex)
	return stage != nil && slices.Contains(stage.Slots, c.ID)
}

func (e *Engine) hasTrait(s *Session, p *Participant, trait string) bool {
	if p.HasTrait(trait) {
		return true
	}
	if exp := s.State.Expedition; exp != nil {
		for _, t := range exp.Traits[p.PlayerID] {
			if t == trait {
				return true
			}
		}
	}
	return false
}

// upsertVote replaces the voter's prior vote on the scene, reverting the
// replaced choice's per-voter flags before applying the new ones.
func (e *Engine) upsertVote(s *Session, voterID int64, sceneID string, c *graph.Choice) {
	v := Vote{SceneID: sceneID, VoterID: voterID, ChoiceID: c.ID, CastAt: e.now()}
	for i := range s.Votes {
		if s.Votes[i].SceneID == sceneID && s.Votes[i].VoterID == voterID {
			e.revertVoteFlags(s, s.Votes[i])
			s.Votes[i] = v
			addVoteFlags(s.State.Flags, c.VoteFlags, 1)
			return
		}
	}
	s.Votes = append(s.Votes, v)
	addVoteFlags(s.State.Flags, c.VoteFlags, 1)
}

func (e *Engine) revertVoteFlags(s *Session, v Vote) {
	node, ok := e.content.Graph.Node(v.SceneID)
	if !ok {
		return
	}
	if c, ok := node.Choice(v.ChoiceID); ok {
		addVoteFlags(s.State.Flags, c.VoteFlags, -1)
	}
}

// threshold is the number of counted votes a node needs before it resolves.
func (e *Engine) threshold(s *Session, node *graph.Node) int {
	n := len(s.Participants)
	if node.Mode == graph.ModeContribute || node.RequireAllVotes || e.scoredStage(s, node) {
		return n
	}
	return n/2 + 1
}

func (e *Engine) scoredStage(s *Session, node *graph.Node) bool {
	return s.State.ActiveScore != nil && node.Scored()
}

// tally resolves the current scene once enough votes are in. It returns the
// winning choice id, or "" when the scene is still waiting.
func (e *Engine) tally(s *Session) (string, error) {
	if s.Status != StatusActive || s.State.Encounter.Active() {
		return "", nil
	}
	node, ok := e.content.Graph.Node(s.SceneID)
	if !ok || node.Mode == graph.ModeIndividual || node.Mode == graph.ModeSequentialBroadcast {
		return "", nil
	}
	votes := s.sceneVotes(node.ID)
	if len(votes) == 0 || len(votes) < e.threshold(s, node) {
		return "", nil
	}

	counts := tallyCounts(votes)
	leaders := leadingChoices(counts)
	winnerID, _ := random.Pick(e.rng, leaders)
	choice, ok := node.Choice(winnerID)
	if !ok {
		return "", fmt.Errorf("%w: choice %q on node %s", coopquest.ErrNotFound, winnerID, node.ID)
	}
	if err := e.resolveChoice(s, node, choice, votes); err != nil {
		return "", err
	}
	return winnerID, nil
}

func tallyCounts(votes []Vote) map[string]int {
	counts := make(map[string]int)
	for _, v := range votes {
		counts[v.ChoiceID]++
	}
	return counts
}

// leadingChoices returns every choice tied for the most votes, sorted so a
// seeded source picks reproducibly.
func leadingChoices(counts map[string]int) []string {
	best := 0
	var leaders []string
	for id, n := range counts {
		switch {
		case n > best:
			best = n
			leaders = []string{id}
		case n == best:
			leaders = append(leaders, id)
		}
	}
	sort.Strings(leaders)
	return leaders
}

// applyIndividual applies a choice to one participant at once. The shared
// scene never moves; the participant's cursor follows the choice and may
// trigger checkpoint promotion.
func (e *Engine) applyIndividual(s *Session, p *Participant, node *graph.Node, c *graph.Choice) {
	if p.Resolved == nil {
		p.Resolved = map[string]string{}
	}
	p.Resolved[node.ID] = c.ID
	mergeFlags(s.State.Flags, c.Flags)
	addVoteFlags(s.State.Flags, c.VoteFlags, 1)
	if cost := c.ConsumableCost; cost != nil {
		camp.TryConsumeInventory(p.Inventory, cost.Item, cost.Qty)
	}
	e.award(s, p.Inventory, c)
	if x := c.Expedition; x != nil && s.State.Expedition != nil {
		e.content.Scheduler.Spend(s.State.Expedition, x.Time, x.Cost, x.RewardRP)
	}
	if c.NextNodeID != "" {
		p.Cursor = c.NextNodeID
		e.promoteCheckpoint(s)
	}
}

// award grants a choice's loot into inv and its credits to the camp.
func (e *Engine) award(s *Session, inv map[string]int, c *graph.Choice) {
	if len(c.Loot) > 0 {
		grants := make([]camp.Grant, 0, len(c.Loot))
		for _, l := range c.Loot {
			grants = append(grants, camp.Grant{Item: l.Item, Qty: l.Qty})
		}
		for _, r := range e.content.Catalog.Award(inv, grants) {
			if !r.Awarded {
				e.logger.Warn("loot not awarded", "code", s.Code, "item", r.Item, "reason", r.Reason)
			}
		}
	}
	if c.Credits > 0 {
		s.Camp.Credits += c.Credits
	}
}
