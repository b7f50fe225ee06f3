package session

import (
	"time"

	"github.com/playperu/coopquest/internal/camp"
	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/expedition"
)

// Status is the lifecycle stage of a session.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
)

// Vitals are a participant's pools. Ratios feed expedition event rolls.
type Vitals struct {
	HP         int `json:"hp"`
	MaxHP      int `json:"maxHp"`
	Morale     int `json:"morale"`
	MaxMorale  int `json:"maxMorale"`
	Stamina    int `json:"stamina"`
	MaxStamina int `json:"maxStamina"`
}

const defaultPool = 100

func defaultVitals() Vitals {
	return Vitals{
		HP: defaultPool, MaxHP: defaultPool,
		Morale: defaultPool, MaxMorale: defaultPool,
		Stamina: defaultPool, MaxStamina: defaultPool,
	}
}

// Get returns the named vital, or 0 for unknown names.
func (v Vitals) Get(stat string) int {
	switch stat {
	case coopquest.StatHP:
		return v.HP
	case coopquest.StatMorale:
		return v.Morale
	case coopquest.StatStamina:
		return v.Stamina
	}
	return 0
}

func ratio(cur, maxV int) float64 {
	if maxV <= 0 {
		return 0
	}
	return float64(cur) / float64(maxV)
}

func (v Vitals) HPRatio() float64     { return ratio(v.HP, v.MaxHP) }
func (v Vitals) MoraleRatio() float64 { return ratio(v.Morale, v.MaxMorale) }

func (v *Vitals) clamp() {
	if v.MaxHP <= 0 {
		v.MaxHP = defaultPool
	}
	if v.MaxMorale <= 0 {
		v.MaxMorale = defaultPool
	}
	if v.MaxStamina <= 0 {
		v.MaxStamina = defaultPool
	}
	v.HP = min(max(v.HP, 0), v.MaxHP)
	v.Morale = min(max(v.Morale, 0), v.MaxMorale)
	v.Stamina = min(max(v.Stamina, 0), v.MaxStamina)
}

// Participant is one player (or debug bot) seated in a session.
type Participant struct {
	PlayerID   int64          `json:"playerId"`
	Name       string         `json:"name"`
	Role       coopquest.Role `json:"role"`
	Ready      bool           `json:"ready"`
	Bot        bool           `json:"bot,omitempty"`
	Cursor     string         `json:"cursor,omitempty"`
	Vitals     Vitals         `json:"vitals"`
	Attributes map[string]int `json:"attributes"`
	Skills     map[string]int `json:"skills"`
	Traits     []string       `json:"traits,omitempty"`
	Inventory  map[string]int `json:"inventory"`
	// Resolved maps each individual node the player has acted on to the
	// choice taken there.
	Resolved map[string]string `json:"resolved,omitempty"`
	JoinedAt time.Time         `json:"joinedAt"`
}

func (p *Participant) HasTrait(trait string) bool {
	for _, t := range p.Traits {
		if t == trait {
			return true
		}
	}
	return false
}

// Vote is scoped to (SceneID, VoterID).
type Vote struct {
	SceneID  string    `json:"sceneId"`
	VoterID  int64     `json:"voterId"`
	ChoiceID string    `json:"choiceId"`
	CastAt   time.Time `json:"castAt"`
}

// Session is the single read-modify-written record of a play group.
type Session struct {
	Code         string        `json:"code"`
	HostID       int64         `json:"hostId"`
	Status       Status        `json:"status"`
	SceneID      string        `json:"sceneId"`
	Participants []Participant `json:"participants"`
	Votes        []Vote        `json:"votes,omitempty"`
	State        GraphState    `json:"state"`
	Camp         camp.Ledger   `json:"camp"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

func (s *Session) participant(id int64) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].PlayerID == id {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

func (s *Session) roleHolder(r coopquest.Role) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].Role == r {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

func (s *Session) freeRole() (coopquest.Role, bool) {
	for _, r := range coopquest.Roles {
		if _, taken := s.roleHolder(r); !taken {
			return r, true
		}
	}
	return "", false
}

// sceneVotes returns votes for scene cast by current participants.
func (s *Session) sceneVotes(scene string) []Vote {
	var out []Vote
	for _, v := range s.Votes {
		if v.SceneID != scene {
			continue
		}
		if _, ok := s.participant(v.VoterID); ok {
			out = append(out, v)
		}
	}
	return out
}

// GraphState is the session's mutable save data.
type GraphState struct {
	Version       int                        `json:"version"`
	Stack         []string                   `json:"stack"`
	SideQuests    map[string]SideQuestRecord `json:"sideQuests"`
	ActiveQuestID string                     `json:"activeQuestId,omitempty"`
	ActiveScore   *ActiveScore               `json:"activeScore,omitempty"`
	Expedition    *expedition.State          `json:"expedition,omitempty"`
	Encounter     *Encounter                 `json:"encounter,omitempty"`
	Broadcast     *Broadcast                 `json:"broadcast,omitempty"`
	Flags         map[string]any             `json:"flags"`

	repairs []string
}

// Push records the caller node of a side quest.
func (g *GraphState) Push(nodeID string) {
	g.Stack = append(g.Stack, nodeID)
}

// Pop removes and returns the top frame. Popping an empty stack is a no-op.
func (g *GraphState) Pop() (string, bool) {
	if len(g.Stack) == 0 {
		return "", false
	}
	top := g.Stack[len(g.Stack)-1]
	g.Stack = g.Stack[:len(g.Stack)-1]
	return top, true
}

func (g *GraphState) Top() (string, bool) {
	if len(g.Stack) == 0 {
		return "", false
	}
	return g.Stack[len(g.Stack)-1], true
}

// SideQuestRecord is the bookkeeping entry of one side quest.
type SideQuestRecord struct {
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Score       int        `json:"score"`
	Target      int        `json:"target"`
	Success     *bool      `json:"success,omitempty"`
	Attempts    int        `json:"attempts"`
}

// ActiveScore tracks the scored stages of the side quest in progress.
type ActiveScore struct {
	QuestID        string                       `json:"questId"`
	Current        int                          `json:"current"`
	Target         int                          `json:"target"`
	Stages         int                          `json:"stages"`
	StagesPlayed   int                          `json:"stagesPlayed"`
	History        []StageRecord                `json:"history"`
	GlobalBuffs    map[string]float64           `json:"globalBuffs"`
	PlayerBuffs    map[int64]map[string]float64 `json:"playerBuffs"`
	GlobalStatuses map[string]int               `json:"globalStatuses"`
	PlayerStatuses map[int64]map[string]int     `json:"playerStatuses"`
	LastStageTotal int                          `json:"lastStageTotal"`
	LastPerPlayer  map[int64]int                `json:"lastPerPlayer"`
}

// StageRecord is one entry of the rolling stage history.
type StageRecord struct {
	NodeID    string        `json:"nodeId"`
	ChoiceID  string        `json:"choiceId"`
	Total     int           `json:"total"`
	PerPlayer map[int64]int `json:"perPlayer"`
}

// EncounterStatus is active until the external battle reports back.
type EncounterStatus string

const (
	EncounterActive   EncounterStatus = "active"
	EncounterResolved EncounterStatus = "resolved"
)

const (
	OutcomeVictory = "victory"
	OutcomeDefeat  = "defeat"
)

// Encounter is the battle sub-state spawned by start_coop_battle.
type Encounter struct {
	ID           string              `json:"id"`
	Status       EncounterStatus     `json:"status"`
	SceneID      string              `json:"sceneId"`
	ChoiceID     string              `json:"choiceId"`
	ScenarioID   string              `json:"scenarioId,omitempty"`
	Threat       int                 `json:"threat"`
	ReturnNodeID string              `json:"returnNodeId"`
	DefeatNodeID string              `json:"defeatNodeId,omitempty"`
	Reward       int                 `json:"reward,omitempty"`
	Combatants   []CombatantSnapshot `json:"combatants"`
	Outcome      string              `json:"outcome,omitempty"`
	StartedAt    time.Time           `json:"startedAt"`
	ResolvedAt   *time.Time          `json:"resolvedAt,omitempty"`
}

func (e *Encounter) Active() bool {
	return e != nil && e.Status == EncounterActive
}

// CombatantSnapshot is a participant as seen at encounter spawn.
type CombatantSnapshot struct {
	PlayerID int64          `json:"playerId"`
	Role     coopquest.Role `json:"role"`
	Vitals   Vitals         `json:"vitals"`
	Traits   []string       `json:"traits,omitempty"`
}

// Broadcast is the turn-ordered reaction log of a sequential_broadcast node.
type Broadcast struct {
	NodeID    string     `json:"nodeId"`
	Order     []int64    `json:"order"`
	Reactions []Reaction `json:"reactions"`
}

func (b *Broadcast) Complete() bool {
	return b != nil && len(b.Order) > 0 && len(b.Reactions) >= len(b.Order)
}

// Next returns whose turn it is.
func (b *Broadcast) Next() (int64, bool) {
	if b == nil || len(b.Reactions) >= len(b.Order) {
		return 0, false
	}
	return b.Order[len(b.Reactions)], true
}

type Reaction struct {
	PlayerID int64     `json:"playerId"`
	ChoiceID string    `json:"choiceId"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}
