package session

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/expedition"
)

const malformed = `{
	"code": "ABCDEF",
	"hostId": 42,
	"status": "exploded",
	"sceneId": "camp_gate",
	"participants": [
		{"playerId": 1, "name": "a", "role": "valkyrie", "ready": true,
		 "vitals": {"hp": 500, "maxHp": 100, "morale": -4, "maxMorale": 0, "stamina": 10, "maxStamina": 50}},
		{"playerId": 2, "name": "b", "role": "valkyrie", "ready": true},
		{"playerId": 3, "name": "c", "role": "bard"}
	],
	"votes": [
		{"sceneId": "camp_gate", "voterId": 1, "choiceId": "rest"},
		{"sceneId": "start", "voterId": 2, "choiceId": "enter"},
		{"sceneId": "camp_gate", "voterId": 3, "choiceId": ""}
	],
	"state": {
		"version": 1,
		"stack": "oops",
		"activeQuestId": "archive",
		"flags": {"trust": 2, "name": "x"},
		"expedition": {"turnCount": -3, "maxTurns": 0, "researchPoints": -1,
			"pending": {"nodeId": ""}, "injury": {"playerId": 1, "needsTreatment": false}},
		"encounter": {"id": "e1", "status": "active", "outcome": "victory", "threat": -2}
	},
	"camp": {"inventory": {"scrap": -1, "pills": 2}, "credits": -5}
}`

func TestDecodeRepairsMalformedSession(t *testing.T) {
	s, err := Decode([]byte(malformed))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if s.Status != StatusWaiting {
		t.Errorf("status = %q", s.Status)
	}
	if s.HostID != 1 {
		t.Errorf("host = %d, want first participant", s.HostID)
	}

	v := s.Participants[0].Vitals
	if v.HP != 100 || v.Morale != 0 || v.MaxMorale != 100 || v.Stamina != 10 {
		t.Errorf("vitals = %+v", v)
	}
	if p := s.Participants[1]; p.Role != "" || p.Ready {
		t.Errorf("duplicate role kept: %+v", p)
	}
	if p := s.Participants[2]; p.Role != "" || p.Inventory == nil || p.Attributes == nil {
		t.Errorf("invalid role kept: %+v", p)
	}

	if len(s.Votes) != 1 || s.Votes[0].VoterID != 1 {
		t.Errorf("votes = %+v", s.Votes)
	}

	st := s.State
	if st.Version != StateVersion || len(st.Stack) != 0 {
		t.Errorf("version %d stack %v", st.Version, st.Stack)
	}
	if len(st.Repairs()) == 0 {
		t.Error("no repairs recorded")
	}
	if st.ActiveScore == nil || st.ActiveScore.QuestID != "archive" || st.ActiveScore.Target != 30 {
		t.Errorf("active score = %+v", st.ActiveScore)
	}
	if st.Flags["trust"] != 2.0 || st.Flags["name"] != "x" {
		t.Errorf("flags = %v", st.Flags)
	}

	exp := st.Expedition
	if exp.TurnCount != 0 || exp.MaxTurns != expedition.DefaultMaxTurns || exp.ResearchPoints != 0 {
		t.Errorf("expedition = %+v", exp)
	}
	if exp.Pending != nil || exp.Injury != nil || exp.Missions == nil || exp.Traits == nil {
		t.Errorf("expedition leftovers = %+v", exp)
	}
	if st.Encounter.Active() || st.Encounter.Threat != 0 {
		t.Errorf("encounter = %+v", st.Encounter)
	}

	if s.Camp.Credits != 0 || s.Camp.Inventory["pills"] != 2 {
		t.Errorf("camp = %+v", s.Camp)
	}
	if _, ok := s.Camp.Inventory["scrap"]; ok {
		t.Error("negative stash entry kept")
	}
}

func TestDecodeUnreadableState(t *testing.T) {
	s, err := Decode([]byte(`{"code":"X","state":[1,2,3]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.State.Version != StateVersion || s.State.Flags == nil || s.State.SideQuests == nil {
		t.Errorf("state = %+v", s.State)
	}
	if len(s.State.Repairs()) == 0 {
		t.Error("reset not recorded")
	}
}

func TestNormalizeActiveScore(t *testing.T) {
	s := &Session{
		SceneID: "x",
		State: GraphState{
			ActiveScore: &ActiveScore{
				QuestID:        "bunker",
				Current:        -5,
				GlobalBuffs:    map[string]float64{"focus": 1.2, "bad": math.NaN(), "zero": 0},
				GlobalStatuses: map[string]int{"inspired": 2, "exhausted": 0},
				History:        make([]StageRecord, HistoryLimit+3),
			},
		},
	}
	Normalize(s)

	as := s.State.ActiveScore
	if s.State.ActiveQuestID != "bunker" {
		t.Errorf("quest id not adopted from score: %q", s.State.ActiveQuestID)
	}
	if as.Current != 0 || as.Target != 1 || as.Stages != 1 {
		t.Errorf("score = %+v", as)
	}
	if len(as.GlobalBuffs) != 1 || as.GlobalBuffs["focus"] != 1.2 {
		t.Errorf("buffs = %v", as.GlobalBuffs)
	}
	if len(as.GlobalStatuses) != 1 {
		t.Errorf("statuses = %v", as.GlobalStatuses)
	}
	if len(as.History) != HistoryLimit {
		t.Errorf("history = %d", len(as.History))
	}

	s.State.ActiveQuestID = ""
	s.State.ActiveScore = &ActiveScore{}
	Normalize(s)
	if s.State.ActiveScore != nil {
		t.Error("orphan score kept")
	}
}

func TestMergeFlags(t *testing.T) {
	flags := map[string]any{"trust": 1.0, "seen": false}
	mergeFlags(flags, map[string]any{"trust": 2, "seen": true, "name": "envoy"})
	if flags["trust"] != 3.0 || flags["seen"] != true || flags["name"] != "envoy" {
		t.Errorf("flags = %v", flags)
	}
	addVoteFlags(flags, map[string]float64{"trust": 1}, -1)
	if flagNumber(flags, "trust") != 2 {
		t.Errorf("trust = %v", flags["trust"])
	}
	if !flagSet(flags, "seen") || flagSet(flags, "missing") {
		t.Error("flagSet")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	s := &Session{Code: "ROOM01", HostID: 1, Status: StatusWaiting}
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, s); !errors.Is(err, coopquest.ErrConflict) {
		t.Errorf("duplicate Create err = %v", err)
	}

	boom := errors.New("boom")
	_, err := store.Modify(ctx, "ROOM01", func(s *Session) error {
		s.SceneID = "changed"
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Modify err = %v", err)
	}
	got, _ := store.Get(ctx, "ROOM01")
	if got.SceneID != "" {
		t.Errorf("failed Modify was written: %q", got.SceneID)
	}

	// Mutating a returned copy never touches the stored record.
	got.HostID = 99
	again, _ := store.Get(ctx, "ROOM01")
	if again.HostID != 1 {
		t.Errorf("store shares memory with callers")
	}

	if _, err := store.Modify(ctx, "NOPE", func(*Session) error { return nil }); !errors.Is(err, coopquest.ErrNotFound) {
		t.Errorf("Modify missing err = %v", err)
	}
	if err := store.Delete(ctx, "ROOM01"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "ROOM01"); !errors.Is(err, coopquest.ErrNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}
