package session

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/expedition"
	"github.com/playperu/coopquest/internal/scoring"
)

// StateVersion is the current GraphState layout.
const StateVersion = 2

// HistoryLimit caps the rolling stage history of an active score.
const HistoryLimit = 10

// UnmarshalJSON decodes each sub-record on its own. A malformed sub-record
// is dropped and noted in Repairs instead of failing the whole session.
func (g *GraphState) UnmarshalJSON(b []byte) error {
	type plain GraphState
	var p plain
	if err := json.Unmarshal(b, &p); err == nil {
		*g = GraphState(p)
		return nil
	}

	var out GraphState
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		out.repairs = append(out.repairs, "graph state unreadable, reset")
		*g = out
		return nil
	}
	decodeField(fields, "version", &out.Version, &out.repairs)
	decodeField(fields, "stack", &out.Stack, &out.repairs)
	decodeField(fields, "sideQuests", &out.SideQuests, &out.repairs)
	decodeField(fields, "activeQuestId", &out.ActiveQuestID, &out.repairs)
	decodeField(fields, "activeScore", &out.ActiveScore, &out.repairs)
	decodeField(fields, "expedition", &out.Expedition, &out.repairs)
	decodeField(fields, "encounter", &out.Encounter, &out.repairs)
	decodeField(fields, "broadcast", &out.Broadcast, &out.repairs)
	decodeField(fields, "flags", &out.Flags, &out.repairs)
	*g = out
	return nil
}

func decodeField[T any](fields map[string]json.RawMessage, key string, dst *T, repairs *[]string) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		*repairs = append(*repairs, fmt.Sprintf("dropped malformed %s", key))
		return
	}
	*dst = v
}

// Repairs lists what decoding and normalization had to fix since load.
func (g *GraphState) Repairs() []string { return g.repairs }

func (g *GraphState) repaired(format string, args ...any) {
	g.repairs = append(g.repairs, fmt.Sprintf(format, args...))
}

// Normalize coerces a loaded session into a consistent shape. Malformed data
// degrades to sane defaults; it never fails.
func Normalize(s *Session) {
	if s.Status != StatusWaiting && s.Status != StatusActive {
		s.State.repaired("status %q reset to waiting", s.Status)
		s.Status = StatusWaiting
	}
	normalizeParticipants(s)
	s.Camp.Normalize()

	if _, ok := s.participant(s.HostID); !ok && len(s.Participants) > 0 {
		s.HostID = s.Participants[0].PlayerID
	}

	live := s.Votes[:0]
	for _, v := range s.Votes {
		if v.SceneID == s.SceneID && v.ChoiceID != "" {
			live = append(live, v)
		}
	}
	s.Votes = live

	s.State.normalize(len(s.Participants))
}

func normalizeParticipants(s *Session) {
	seen := make(map[coopquest.Role]bool, len(s.Participants))
	for i := range s.Participants {
		p := &s.Participants[i]
		p.Vitals.clamp()
		if p.Attributes == nil {
			p.Attributes = map[string]int{}
		}
		if p.Skills == nil {
			p.Skills = coopquest.DefaultSkills(p.Role)
		}
		if p.Inventory == nil {
			p.Inventory = map[string]int{}
		}
		if p.Role == "" {
			continue
		}
		if !p.Role.Valid() || seen[p.Role] {
			s.State.repaired("cleared role %q of player %d", p.Role, p.PlayerID)
			p.Role = ""
			p.Ready = false
			continue
		}
		seen[p.Role] = true
	}
}

func (g *GraphState) normalize(players int) {
	g.Version = StateVersion

	stack := g.Stack[:0]
	for _, id := range g.Stack {
		if id != "" {
			stack = append(stack, id)
		}
	}
	g.Stack = stack

	if g.SideQuests == nil {
		g.SideQuests = map[string]SideQuestRecord{}
	}
	if g.Flags == nil {
		g.Flags = map[string]any{}
	}
	normalizeFlags(g.Flags)

	switch {
	case g.ActiveScore != nil && g.ActiveQuestID == "":
		if g.ActiveScore.QuestID == "" {
			g.repaired("dropped orphan active score")
			g.ActiveScore = nil
		} else {
			g.ActiveQuestID = g.ActiveScore.QuestID
		}
	case g.ActiveScore == nil && g.ActiveQuestID != "":
		g.repaired("rebuilt missing active score for %s", g.ActiveQuestID)
		g.ActiveScore = &ActiveScore{
			QuestID: g.ActiveQuestID,
			Target:  scoring.TargetTotal(scoring.DefaultBaseStageAvg, 1, players, scoring.DefaultDifficulty),
			Stages:  1,
		}
	}
	if g.ActiveScore != nil {
		g.ActiveScore.QuestID = g.ActiveQuestID
		g.ActiveScore.normalize()
	}

	if g.Expedition != nil {
		normalizeExpedition(g.Expedition)
	}

	if e := g.Encounter; e != nil {
		if e.Status != EncounterActive && e.Status != EncounterResolved {
			e.Status = EncounterResolved
		}
		if e.Status == EncounterActive && e.Outcome != "" {
			e.Status = EncounterResolved
		}
		e.Threat = max(e.Threat, 0)
		e.Reward = max(e.Reward, 0)
	}

	if b := g.Broadcast; b != nil {
		if b.NodeID == "" {
			g.Broadcast = nil
		} else if len(b.Reactions) > len(b.Order) {
			b.Reactions = b.Reactions[:len(b.Order)]
		}
	}
}

func (a *ActiveScore) normalize() {
	a.Current = max(a.Current, 0)
	a.Target = max(a.Target, 1)
	a.Stages = max(a.Stages, 1)
	a.StagesPlayed = max(a.StagesPlayed, 0)
	if len(a.History) > HistoryLimit {
		a.History = a.History[len(a.History)-HistoryLimit:]
	}
	if a.GlobalBuffs == nil {
		a.GlobalBuffs = map[string]float64{}
	}
	if a.PlayerBuffs == nil {
		a.PlayerBuffs = map[int64]map[string]float64{}
	}
	if a.GlobalStatuses == nil {
		a.GlobalStatuses = map[string]int{}
	}
	if a.PlayerStatuses == nil {
		a.PlayerStatuses = map[int64]map[string]int{}
	}
	if a.LastPerPlayer == nil {
		a.LastPerPlayer = map[int64]int{}
	}
	dropBadBuffs(a.GlobalBuffs)
	for _, m := range a.PlayerBuffs {
		dropBadBuffs(m)
	}
	dropExpired(a.GlobalStatuses)
	for _, m := range a.PlayerStatuses {
		dropExpired(m)
	}
}

func dropBadBuffs(m map[string]float64) {
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			delete(m, k)
		}
	}
}

func dropExpired(m map[string]int) {
	for k, v := range m {
		if v <= 0 {
			delete(m, k)
		}
	}
}

func normalizeExpedition(st *expedition.State) {
	st.TurnCount = max(st.TurnCount, 0)
	if st.MaxTurns <= 0 {
		st.MaxTurns = expedition.DefaultMaxTurns
	}
	st.ResearchPoints = max(st.ResearchPoints, 0)
	st.StageIndex = max(st.StageIndex, 0)
	if st.Missions == nil {
		st.Missions = map[string]expedition.Mission{}
	}
	if st.Traits == nil {
		st.Traits = map[int64][]string{}
	}
	if st.Pending != nil && st.Pending.NodeID == "" {
		st.Pending = nil
	}
	if st.Injury != nil && !st.Injury.NeedsTreatment {
		st.Injury = nil
	}
}

// normalizeFlags stores every number as float64 so additive merges see one
// representation regardless of whether the value came from YAML or JSON.
func normalizeFlags(flags map[string]any) {
	for k, v := range flags {
		n, ok := number(v)
		if !ok {
			continue
		}
		if math.IsNaN(n) || math.IsInf(n, 0) {
			delete(flags, k)
			continue
		}
		flags[k] = n
	}
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// mergeFlags folds delta into flags: numbers add, everything else overwrites.
func mergeFlags(flags map[string]any, delta map[string]any) {
	for k, v := range delta {
		if d, ok := number(v); ok {
			cur, _ := number(flags[k])
			flags[k] = cur + d
			continue
		}
		flags[k] = v
	}
}

func addVoteFlags(flags map[string]any, delta map[string]float64, sign float64) {
	for k, d := range delta {
		cur, _ := number(flags[k])
		flags[k] = cur + sign*d
	}
}

func flagNumber(flags map[string]any, key string) float64 {
	n, _ := number(flags[key])
	return n
}

func flagSet(flags map[string]any, key string) bool {
	switch v := flags[key].(type) {
	case bool:
		return v
	case string:
		return v != ""
	case nil:
		return false
	}
	n, ok := number(flags[key])
	return ok && n != 0
}
