package session

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/playperu/coopquest/internal/camp"
	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/expedition"
	"github.com/playperu/coopquest/internal/graph"
	"github.com/playperu/coopquest/internal/scoring"
)

// resolveChoice applies the winning choice of node and moves the scene.
// Votes are the counted votes of the stage.
func (e *Engine) resolveChoice(s *Session, node *graph.Node, c *graph.Choice, votes []Vote) error {
	st := &s.State
	mergeFlags(st.Flags, c.Flags)
	if cost := c.ConsumableCost; cost != nil && !camp.TryConsumeInventory(s.Camp.Inventory, cost.Item, cost.Qty) {
		e.logger.Warn("consumable short at resolution", "code", s.Code, "item", cost.Item, "qty", cost.Qty)
	}
	e.award(s, s.Camp.Inventory, c)

	if e.scoredStage(s, node) {
		e.scoreStage(s, node, c, votes)
	}
	e.applyEffects(s, c)

	next, extraTime, err := e.nextScene(s, node, c)
	if err != nil {
		return err
	}
	next = e.bookExpedition(s, c, extraTime, or(next, s.SceneID))
	// Counted votes are spent even when the scene holds or loops.
	s.Votes = nil
	e.moveScene(s, next)
	return nil
}

// nextScene resolves the destination: a generated mission in the slot wins,
// then a tagged action, then a branch rule, then the static next node.
// An empty result holds the scene.
func (e *Engine) nextScene(s *Session, node *graph.Node, c *graph.Choice) (string, int, error) {
	if m, ok := e.missionFor(s, node, c); ok {
		delete(s.State.Expedition.Missions, c.ID)
		switch m.Kind {
		case expedition.MissionSideQuest:
			next, err := e.startSideQuest(s, graph.StartSideQuest{QuestID: m.QuestID, EntryNodeID: m.EntryNodeID}, m.Buffs)
			return next, m.TimeCost, err
		default:
			return or(m.TargetNodeID, s.SceneID), m.TimeCost, nil
		}
	}

	if c.Action != nil {
		next, handled, err := e.applyAction(s, node, c)
		if err != nil || handled {
			return next, 0, err
		}
	}
	if rule, ok := branchRules[node.ID]; ok {
		if next, ok := rule(s, c); ok {
			return next, 0, nil
		}
	}
	return or(c.NextNodeID, s.SceneID), 0, nil
}

func or(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func (e *Engine) missionFor(s *Session, node *graph.Node, c *graph.Choice) (expedition.Mission, bool) {
	exp := s.State.Expedition
	if exp == nil || exp.HubNodeID != node.ID {
		return expedition.Mission{}, false
	}
	m, ok := exp.Missions[c.ID]
	return m, ok
}

// applyAction runs a tagged action. handled=false lets resolution fall
// through to branch rules and the static next node.
func (e *Engine) applyAction(s *Session, node *graph.Node, c *graph.Choice) (string, bool, error) {
	switch a := c.Action.(type) {
	case graph.StartSideQuest:
		next, err := e.startSideQuest(s, a, nil)
		return next, true, err
	case graph.Return:
		next, ok := e.returnFromSideQuest(s)
		if !ok {
			return "", false, nil
		}
		return or(next, c.NextNodeID), true, nil
	case graph.StartCoopBattle:
		return s.SceneID, true, e.startEncounter(s, node, c, a)
	case graph.StartExpedition:
		st, err := e.content.Scheduler.Start(a.PoolID, a.MaxTurns, e.takenQuests(s))
		if err != nil {
			return "", false, err
		}
		s.State.Expedition = st
		e.logger.Info("expedition started", "code", s.Code, "pool", a.PoolID)
		return or(st.HubNodeID, c.NextNodeID), true, nil
	case graph.AdvanceExpeditionStage:
		exp := s.State.Expedition
		if exp == nil {
			return "", false, fmt.Errorf("%w: no expedition in progress", coopquest.ErrInvalidState)
		}
		if err := e.content.Scheduler.Advance(exp, e.takenQuests(s)); err != nil {
			return "", false, err
		}
		return or(exp.HubNodeID, c.NextNodeID), true, nil
	case graph.ResolveExpeditionEvent:
		return e.resolveEvent(s, c, a)
	}
	return "", false, fmt.Errorf("%w: action %T", coopquest.ErrNotFound, c.Action)
}

func (e *Engine) takenQuests(s *Session) map[string]bool {
	taken := make(map[string]bool, len(s.State.SideQuests))
	for id := range s.State.SideQuests {
		taken[id] = true
	}
	return taken
}

// startSideQuest pushes the current scene and opens a fresh active score.
// Only one side quest can be scored at a time.
func (e *Engine) startSideQuest(s *Session, a graph.StartSideQuest, buffs map[string]float64) (string, error) {
	st := &s.State
	if st.ActiveQuestID != "" {
		return "", fmt.Errorf("%w: side quest %s already in progress", coopquest.ErrInvalidState, st.ActiveQuestID)
	}
	if a.QuestID == "" {
		return "", fmt.Errorf("%w: side quest without id", coopquest.ErrPreconditionFailed)
	}
	entry := a.EntryNodeID
	if entry == "" {
		ns, ok := e.content.Graph.Namespace(a.QuestID)
		if !ok {
			return "", fmt.Errorf("%w: side quest %s", coopquest.ErrNotFound, a.QuestID)
		}
		entry = ns.Entry
	}
	if _, err := e.content.Graph.RequireNode(entry); err != nil {
		return "", err
	}

	stages := a.Stages
	if stages <= 0 {
		stages = scoring.AutoStageCount(e.content.Graph, entry)
	}
	target := scoring.TargetTotal(a.BaseStageAvg, stages, len(s.Participants), a.Difficulty)

	st.Push(s.SceneID)
	st.ActiveQuestID = a.QuestID
	st.ActiveScore = &ActiveScore{
		QuestID:        a.QuestID,
		Target:         target,
		Stages:         stages,
		GlobalBuffs:    map[string]float64{},
		PlayerBuffs:    map[int64]map[string]float64{},
		GlobalStatuses: map[string]int{},
		PlayerStatuses: map[int64]map[string]int{},
		LastPerPlayer:  map[int64]int{},
	}
	for k, v := range buffs {
		st.ActiveScore.GlobalBuffs[k] = v
	}
	rec := st.SideQuests[a.QuestID]
	rec.StartedAt = e.now()
	rec.CompletedAt = nil
	rec.Success = nil
	rec.Target = target
	rec.Score = 0
	rec.Attempts++
	st.SideQuests[a.QuestID] = rec

	e.logger.Info("side quest started", "code", s.Code, "quest", a.QuestID, "target", target, "stages", stages)
	return entry, nil
}

// returnFromSideQuest pops the caller frame and settles the active quest.
// Without an active quest it is a no-op and reports false.
func (e *Engine) returnFromSideQuest(s *Session) (string, bool) {
	st := &s.State
	if st.ActiveQuestID == "" {
		return "", false
	}
	questID := st.ActiveQuestID
	score := st.ActiveScore
	caller, _ := st.Pop()

	now := e.now()
	success := score != nil && score.Current >= score.Target
	rec := st.SideQuests[questID]
	rec.CompletedAt = &now
	rec.Success = &success
	if score != nil {
		rec.Score = score.Current
		rec.Target = score.Target
	}
	st.SideQuests[questID] = rec
	st.Flags["quest:"+questID+":success"] = success

	st.ActiveQuestID = ""
	st.ActiveScore = nil
	e.logger.Info("side quest finished", "code", s.Code, "quest", questID, "success", success, "score", rec.Score, "target", rec.Target)
	return caller, true
}

// scoreStage runs the contribution pipeline over every counted vote.
func (e *Engine) scoreStage(s *Session, node *graph.Node, winner *graph.Choice, votes []Vote) {
	as := s.State.ActiveScore
	voters := make([]scoring.Voter, 0, len(votes))
	for _, v := range votes {
		p, ok := s.participant(v.VoterID)
		if !ok {
			continue
		}
		c, ok := node.Choice(v.ChoiceID)
		if !ok {
			continue
		}
		voters = append(voters, scoring.Voter{
			PlayerID:      p.PlayerID,
			Role:          p.Role,
			Choice:        c,
			ItemBonus:     float64(e.content.Catalog.Bonus(p.Inventory, camp.KindGear, c.Tags)),
			ArtifactBonus: float64(e.content.Catalog.Bonus(s.Camp.Inventory, camp.KindArtifact, c.Tags)),
		})
	}
	res := scoring.ScoreStage(scoring.StageInput{
		Voters:         voters,
		GlobalBuffs:    as.GlobalBuffs,
		PlayerBuffs:    as.PlayerBuffs,
		GlobalStatuses: as.GlobalStatuses,
		PlayerStatuses: as.PlayerStatuses,
	})

	as.Current += res.Total
	as.StagesPlayed++
	as.LastStageTotal = res.Total
	as.LastPerPlayer = res.PerPlayer
	as.History = append(as.History, StageRecord{NodeID: node.ID, ChoiceID: winner.ID, Total: res.Total, PerPlayer: res.PerPlayer})
	if len(as.History) > HistoryLimit {
		as.History = as.History[len(as.History)-HistoryLimit:]
	}

	scoring.Tick(as.GlobalStatuses)
	for _, m := range as.PlayerStatuses {
		scoring.Tick(m)
	}
	for _, v := range voters {
		if len(v.Choice.SelfBuffs) > 0 {
			if as.PlayerBuffs[v.PlayerID] == nil {
				as.PlayerBuffs[v.PlayerID] = map[string]float64{}
			}
			stackBuffs(as.PlayerBuffs[v.PlayerID], v.Choice.SelfBuffs)
		}
		if len(v.Choice.SelfStatuses) > 0 {
			if as.PlayerStatuses[v.PlayerID] == nil {
				as.PlayerStatuses[v.PlayerID] = map[string]int{}
			}
			e.extendStatuses(s, as.PlayerStatuses[v.PlayerID], v.Choice.SelfStatuses)
		}
	}
	e.logger.Debug("stage scored", "code", s.Code, "node", node.ID, "total", res.Total, "current", as.Current, "target", as.Target)
}

// applyEffects folds the winning choice's buffs and statuses into the
// active score. Buffs multiply; a status keeps its longer duration.
func (e *Engine) applyEffects(s *Session, c *graph.Choice) {
	as := s.State.ActiveScore
	if as == nil {
		return
	}
	stackBuffs(as.GlobalBuffs, c.Buffs)
	e.extendStatuses(s, as.GlobalStatuses, c.Statuses)
}

func stackBuffs(dst, src map[string]float64) {
	for k, v := range src {
		if cur, ok := dst[k]; ok {
			v *= cur
		}
		dst[k] = v
	}
}

func (e *Engine) extendStatuses(s *Session, dst, src map[string]int) {
	for id, turns := range src {
		if _, known := scoring.Statuses[id]; !known {
			e.logger.Warn("unknown status", "code", s.Code, "status", id)
			continue
		}
		dst[id] = max(dst[id], turns)
	}
}

func (e *Engine) startEncounter(s *Session, node *graph.Node, c *graph.Choice, a graph.StartCoopBattle) error {
	if s.State.Encounter.Active() {
		return fmt.Errorf("%w: a battle is already in progress", coopquest.ErrInvalidState)
	}
	enc := &Encounter{
		ID:           uuid.NewString(),
		Status:       EncounterActive,
		SceneID:      node.ID,
		ChoiceID:     c.ID,
		ScenarioID:   a.ScenarioID,
		Threat:       max(a.Threat, 0),
		ReturnNodeID: or(a.ReturnNodeID, or(c.NextNodeID, node.ID)),
		DefeatNodeID: a.DefeatNodeID,
		Reward:       max(a.Reward, 0),
		StartedAt:    e.now(),
	}
	for _, p := range s.Participants {
		enc.Combatants = append(enc.Combatants, CombatantSnapshot{
			PlayerID: p.PlayerID,
			Role:     p.Role,
			Vitals:   p.Vitals,
			Traits:   e.traitsOf(s, &p),
		})
	}
	s.State.Encounter = enc
	e.logger.Info("encounter started", "code", s.Code, "encounter", enc.ID, "threat", enc.Threat)
	return nil
}

func (e *Engine) traitsOf(s *Session, p *Participant) []string {
	out := append([]string(nil), p.Traits...)
	if exp := s.State.Expedition; exp != nil {
		out = append(out, exp.Traits[p.PlayerID]...)
	}
	return out
}

func snapshot(p *Participant) expedition.PlayerSnapshot {
	return expedition.PlayerSnapshot{
		PlayerID:    p.PlayerID,
		Role:        p.Role,
		HPRatio:     p.Vitals.HPRatio(),
		MoraleRatio: p.Vitals.MoraleRatio(),
		Skills:      p.Skills,
	}
}

// resolveEvent rolls an expedition event and branches on its outcome.
func (e *Engine) resolveEvent(s *Session, c *graph.Choice, a graph.ResolveExpeditionEvent) (string, bool, error) {
	exp := s.State.Expedition
	if exp == nil {
		return "", false, fmt.Errorf("%w: no expedition in progress", coopquest.ErrInvalidState)
	}
	r := e.content.Resolver

	var out expedition.Outcome
	switch a.Event {
	case expedition.EventPsiWave, expedition.EventInjuryRoll:
		snaps := make([]expedition.PlayerSnapshot, 0, len(s.Participants))
		for i := range s.Participants {
			snaps = append(snaps, snapshot(&s.Participants[i]))
		}
		if a.Event == expedition.EventPsiWave {
			out = r.PsiWave(snaps)
		} else {
			out = r.InjuryRoll(snaps)
		}
	case expedition.EventInjuryTreat:
		if exp.Injury == nil {
			return "", false, fmt.Errorf("%w: nobody needs treatment", coopquest.ErrPreconditionFailed)
		}
		actor, ok := s.roleHolder(coopquest.Role(a.ActorRole))
		if !ok {
			return "", false, fmt.Errorf("%w: no %s to treat the injury", coopquest.ErrPreconditionFailed, a.ActorRole)
		}
		var err error
		out, err = r.InjuryTreat(snapshot(actor), exp.Injury.PlayerID)
		if err != nil {
			return "", false, err
		}
	default:
		return "", false, fmt.Errorf("%w: expedition event %q", coopquest.ErrNotFound, a.Event)
	}

	e.applyOutcome(s, out)
	exp.LastEvent = &out
	e.logger.Info("expedition event resolved", "code", s.Code, "event", out.Kind, "success", out.Success)

	next := a.FailureNodeID
	if out.Success {
		next = a.SuccessNodeID
	}
	return or(next, c.NextNodeID), true, nil
}

func (e *Engine) applyOutcome(s *Session, out expedition.Outcome) {
	exp := s.State.Expedition
	for _, res := range out.Results {
		target := res.PlayerID
		p, ok := s.participant(target)
		if !ok {
			continue
		}
		p.Vitals.HP += res.HPDelta
		p.Vitals.Morale += res.MoraleDelta
		p.Vitals.clamp()
		if res.Trait != "" {
			exp.Traits[target] = appendUnique(exp.Traits[target], res.Trait)
		}
		switch {
		case out.Kind == expedition.EventInjuryTreat && out.Success:
			exp.Injury = nil
		case res.NeedsTreatment:
			if exp.Injury == nil || exp.Injury.PlayerID != target {
				exp.Injury = &expedition.Injury{PlayerID: target, NeedsTreatment: true}
			}
			exp.Injury.HPLost -= min(res.HPDelta, 0)
		}
	}
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

// bookExpedition books the choice's time and currency, then redirects to a
// pending deadline event when next lands in the main namespace.
func (e *Engine) bookExpedition(s *Session, c *graph.Choice, extraTime int, next string) string {
	exp := s.State.Expedition
	if exp == nil {
		return next
	}
	if c.Expedition != nil || extraTime > 0 {
		var turns, cost, reward int
		if x := c.Expedition; x != nil {
			turns, cost, reward = x.Time, x.Cost, x.RewardRP
		}
		if e.content.Scheduler.Spend(exp, turns+extraTime, cost, reward) {
			e.logger.Info("deadline event pending", "code", s.Code, "node", exp.Pending.NodeID)
		}
	}
	return e.deliverDeadline(s, next)
}

func (e *Engine) deliverDeadline(s *Session, next string) string {
	exp := s.State.Expedition
	if exp == nil || exp.Pending == nil || s.State.ActiveQuestID != "" || s.State.Encounter.Active() {
		return next
	}
	if e.content.Graph.NamespaceOf(next) != graph.MainNamespace {
		return next
	}
	ev, ok := e.content.Scheduler.Deliver(exp)
	if !ok {
		return next
	}
	e.logger.Info("deadline event delivered", "code", s.Code, "node", ev.NodeID, "kind", ev.Kind)
	return ev.NodeID
}

// moveScene sets the shared scene, purges votes of other scenes and brings
// every cursor along.
func (e *Engine) moveScene(s *Session, next string) {
	s.SceneID = next
	kept := s.Votes[:0]
	for _, v := range s.Votes {
		if v.SceneID == next {
			kept = append(kept, v)
		}
	}
	s.Votes = kept
	if b := s.State.Broadcast; b != nil && b.NodeID != next {
		s.State.Broadcast = nil
	}
	for i := range s.Participants {
		s.Participants[i].Cursor = next
	}
}
