package expedition

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/playperu/coopquest/internal/random"
)

// DefaultMaxTurns applies when neither the stage, the pool nor the
// starting action declares a turn budget.
const DefaultMaxTurns = 6

// Mission is a generated mission instance occupying a hub choice slot.
type Mission struct {
	InstanceID    string             `json:"instanceId"`
	TemplateID    string             `json:"templateId"`
	Kind          MissionKind        `json:"kind"`
	Slot          string             `json:"slot"`
	Title         string             `json:"title"`
	Threat        int                `json:"threat"`
	ModifierID    string             `json:"modifierId,omitempty"`
	ModifierLabel string             `json:"modifierLabel,omitempty"`
	Buffs         map[string]float64 `json:"buffs,omitempty"`
	TimeCost      int                `json:"timeCost"`
	QuestID       string             `json:"questId,omitempty"`
	EntryNodeID   string             `json:"entryNodeId,omitempty"`
	TargetNodeID  string             `json:"targetNodeId,omitempty"`
}

// State is the expedition sub-record of a session's graph state.
type State struct {
	TurnCount      int                `json:"turnCount"`
	MaxTurns       int                `json:"maxTurns"`
	ResearchPoints int                `json:"researchPoints"`
	DeadlinePool   []DeadlineEvent    `json:"deadlinePool,omitempty"`
	Pending        *DeadlineEvent     `json:"pending,omitempty"`
	PoolID         string             `json:"poolId"`
	StageIndex     int                `json:"stageIndex"`
	StageID        string             `json:"stageId"`
	HubNodeID      string             `json:"hubNodeId"`
	Missions       map[string]Mission `json:"missions"`
	Traits         map[int64][]string `json:"traits"`
	Injury         *Injury            `json:"injury,omitempty"`
	LastEvent      *Outcome           `json:"lastEvent,omitempty"`
}

// Injury is the in-progress injury of one player.
type Injury struct {
	PlayerID       int64 `json:"playerId"`
	NeedsTreatment bool  `json:"needsTreatment"`
	HPLost         int   `json:"hpLost"`
}

// StageOffer is the result of GenerateStage.
type StageOffer struct {
	Index    int
	Stage    *Stage
	Missions map[string]Mission
}

// Scheduler owns turn accounting and procedural generation. It holds no
// per-session state; every call works on the State it is given.
type Scheduler struct {
	catalog    *Catalog
	rng        random.Source
	waveNodeID string
	logger     *slog.Logger
}

func NewScheduler(catalog *Catalog, rng random.Source, waveNodeID string, logger *slog.Logger) *Scheduler {
	return &Scheduler{catalog: catalog, rng: rng, waveNodeID: waveNodeID, logger: logger}
}

// Pool exposes the scheduler's stage pool lookup.
func (s *Scheduler) Pool(id string) (*Pool, error) {
	return s.catalog.Pool(id)
}

// Start opens an expedition at the first stage of poolID.
func (s *Scheduler) Start(poolID string, maxTurns int, taken map[string]bool) (*State, error) {
	st := &State{
		PoolID:   poolID,
		Traits:   make(map[int64][]string),
		MaxTurns: max(maxTurns, 0),
	}
	if err := s.enterStage(st, 0, taken); err != nil {
		return nil, err
	}
	return st, nil
}

// Advance moves to the next stage (clamped at the last one) and re-rolls
// the mission slots.
func (s *Scheduler) Advance(st *State, taken map[string]bool) error {
	return s.enterStage(st, st.StageIndex+1, taken)
}

func (s *Scheduler) enterStage(st *State, index int, taken map[string]bool) error {
	offer, err := s.GenerateStage(st.PoolID, index, taken)
	if err != nil {
		return err
	}
	pool, _ := s.catalog.Pool(st.PoolID)

	st.StageIndex = offer.Index
	st.StageID = offer.Stage.ID
	st.HubNodeID = offer.Stage.HubNodeID
	st.Missions = offer.Missions

	st.DeadlinePool = offer.Stage.Deadline
	if len(st.DeadlinePool) == 0 {
		st.DeadlinePool = pool.Deadline
	}

	switch {
	case offer.Stage.MaxTurns > 0:
		st.MaxTurns = offer.Stage.MaxTurns
	case st.MaxTurns > 0:
	case pool.MaxTurns > 0:
		st.MaxTurns = pool.MaxTurns
	default:
		st.MaxTurns = DefaultMaxTurns
	}
	return nil
}

// GenerateStage fills the mission slots of a stage: unique missions first in
// authored order, then weighted random draws.
func (s *Scheduler) GenerateStage(poolID string, stageIndex int, taken map[string]bool) (StageOffer, error) {
	pool, err := s.catalog.Pool(poolID)
	if err != nil {
		return StageOffer{}, err
	}
	stage, index := pool.StageAt(stageIndex)
	if stage == nil {
		return StageOffer{}, fmt.Errorf("stage pool %q has no stages", poolID)
	}

	offer := StageOffer{Index: index, Stage: stage, Missions: make(map[string]Mission)}
	used := make(map[string]bool)
	slot := 0

	for _, tpl := range stage.Unique {
		if slot >= len(stage.Slots) {
			break
		}
		key := tpl.key()
		if taken[key] || used[key] {
			continue
		}
		used[key] = true
		offer.Missions[stage.Slots[slot]] = s.instantiate(pool, stage, tpl, stage.Slots[slot])
		slot++
	}

	for n := 0; n < stage.RandomCount && slot < len(stage.Slots); n++ {
		tpl, ok := s.drawTemplate(stage, taken, used)
		if !ok {
			s.logger.Debug("mission slot left empty", "pool", poolID, "stage", stage.ID, "slot", stage.Slots[slot])
			slot++
			continue
		}
		used[tpl.key()] = true
		offer.Missions[stage.Slots[slot]] = s.instantiate(pool, stage, tpl, stage.Slots[slot])
		slot++
	}
	return offer, nil
}

// drawTemplate retries once on a duplicate draw before giving up.
func (s *Scheduler) drawTemplate(stage *Stage, taken, used map[string]bool) (MissionTemplate, bool) {
	for attempt := 0; attempt < 2; attempt++ {
		tpl, ok := random.Weighted(s.rng, stage.Pool, func(t MissionTemplate) float64 { return t.Weight })
		if !ok {
			return MissionTemplate{}, false
		}
		if !taken[tpl.key()] && !used[tpl.key()] {
			return tpl, true
		}
	}
	return MissionTemplate{}, false
}

func (t MissionTemplate) key() string {
	if t.QuestID != "" {
		return t.QuestID
	}
	return t.ID
}

func (s *Scheduler) instantiate(pool *Pool, stage *Stage, tpl MissionTemplate, slot string) Mission {
	threat := tpl.Threat
	if threat <= 0 {
		threat = random.Between(s.rng, max(stage.Threat.Min, 1), max(stage.Threat.Max, 1))
	}

	modifiers := stage.Modifiers
	if len(modifiers) == 0 {
		modifiers = pool.Modifiers
	}
	mod, hasMod := random.Weighted(s.rng, modifiers, func(m Modifier) float64 { return m.Weight })

	m := Mission{
		InstanceID: uuid.NewString(),
		TemplateID: tpl.ID,
		Kind:       tpl.Kind,
		Slot:       slot,
		Threat:     threat,
		TimeCost:   max(tpl.TimeCost, 1),
	}
	if m.Kind == "" {
		m.Kind = MissionDirect
	}
	m.Title = fmt.Sprintf("%s [T%d]", tpl.Title, threat)
	if hasMod {
		m.ModifierID = mod.ID
		m.ModifierLabel = mod.Label
		m.Buffs = mod.Buffs
		m.TimeCost += mod.TimeCost
		m.Title = fmt.Sprintf("%s [T%d · %s]", tpl.Title, threat, mod.Label)
	}
	switch m.Kind {
	case MissionSideQuest:
		m.QuestID = tpl.QuestID
		m.EntryNodeID = tpl.EntryNodeID
	default:
		m.TargetNodeID = tpl.TargetNodeID
	}
	return m
}

// Spend books a resolved choice's time and research-point cost/reward. When
// the turn budget is exhausted and nothing is pending, one deadline event is
// drawn and held until Deliver. It reports whether an event was drawn.
func (s *Scheduler) Spend(st *State, turns, rpCost, rpReward int) bool {
	st.TurnCount += max(turns, 0)
	st.ResearchPoints = max(st.ResearchPoints-rpCost+rpReward, 0)

	if st.Pending != nil || st.MaxTurns <= 0 || st.TurnCount < st.MaxTurns {
		return false
	}

	ev, ok := random.Weighted(s.rng, st.DeadlinePool, func(e DeadlineEvent) float64 { return e.Weight })
	if !ok {
		ev = DeadlineEvent{NodeID: s.waveNodeID, Kind: EventEnemy, Weight: 1}
	}
	st.Pending = &ev
	return true
}

// Deliver hands out the pending deadline event and resets the turn counter.
// The caller decides whether the next scene lands in the main namespace.
func (s *Scheduler) Deliver(st *State) (DeadlineEvent, bool) {
	if st.Pending == nil {
		return DeadlineEvent{}, false
	}
	ev := *st.Pending
	st.Pending = nil
	st.TurnCount = 0
	return ev, true
}
