package session

import (
	"time"

	"github.com/playperu/coopquest/internal/camp"
	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/expedition"
	"github.com/playperu/coopquest/internal/graph"
)

// RoomState is the snapshot served to clients and pushed to subscribers.
type RoomState struct {
	Code          string                     `json:"code"`
	Status        Status                     `json:"status"`
	HostID        int64                      `json:"hostId"`
	SceneID       string                     `json:"sceneId"`
	Node          *NodeView                  `json:"node,omitempty"`
	Participants  []ParticipantView          `json:"participants"`
	Camp          camp.Ledger                `json:"camp"`
	Expedition    *ExpeditionView            `json:"expedition,omitempty"`
	Encounter     *Encounter                 `json:"encounter,omitempty"`
	ActiveQuestID string                     `json:"activeQuestId,omitempty"`
	ActiveScore   *ActiveScore               `json:"activeScore,omitempty"`
	Broadcast     *Broadcast                 `json:"broadcast,omitempty"`
	SideQuests    map[string]SideQuestRecord `json:"sideQuests"`
	Flags         map[string]any             `json:"flags"`
	Tally         map[string]int             `json:"tally"`
	VotesCast     int                        `json:"votesCast"`
	VotesNeeded   int                        `json:"votesNeeded"`
	UpdatedAt     time.Time                  `json:"updatedAt"`
}

type NodeView struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Text            string       `json:"text"`
	Mode            graph.Mode   `json:"mode"`
	RequireAllVotes bool         `json:"requireAllVotes,omitempty"`
	Choices         []ChoiceView `json:"choices"`
}

type ChoiceView struct {
	ID           string              `json:"id"`
	Text         string              `json:"text"`
	RequiredRole coopquest.Role      `json:"requiredRole,omitempty"`
	Action       graph.ActionKind    `json:"action,omitempty"`
	Tags         []string            `json:"tags,omitempty"`
	Mission      *expedition.Mission `json:"mission,omitempty"`
	Disabled     bool                `json:"disabled,omitempty"`
}

type ParticipantView struct {
	PlayerID  int64          `json:"playerId"`
	Name      string         `json:"name"`
	Role      coopquest.Role `json:"role"`
	Ready     bool           `json:"ready"`
	Bot       bool           `json:"bot,omitempty"`
	Host      bool           `json:"host,omitempty"`
	Cursor    string         `json:"cursor,omitempty"`
	Vitals    Vitals         `json:"vitals"`
	Traits    []string       `json:"traits,omitempty"`
	Inventory map[string]int `json:"inventory"`
	Voted     bool           `json:"voted"`
}

type ExpeditionView struct {
	*expedition.State
	StageTitle string `json:"stageTitle,omitempty"`
}

func (e *Engine) buildRoomState(s *Session) RoomState {
	votes := s.sceneVotes(s.SceneID)
	voted := make(map[int64]bool, len(votes))
	for _, v := range votes {
		voted[v.VoterID] = true
	}

	rs := RoomState{
		Code:          s.Code,
		Status:        s.Status,
		HostID:        s.HostID,
		SceneID:       s.SceneID,
		Camp:          s.Camp,
		Encounter:     s.State.Encounter,
		ActiveQuestID: s.State.ActiveQuestID,
		ActiveScore:   s.State.ActiveScore,
		Broadcast:     s.State.Broadcast,
		SideQuests:    s.State.SideQuests,
		Flags:         s.State.Flags,
		Tally:         tallyCounts(votes),
		VotesCast:     len(votes),
		UpdatedAt:     s.UpdatedAt,
	}
	for i := range s.Participants {
		p := &s.Participants[i]
		rs.Participants = append(rs.Participants, ParticipantView{
			PlayerID:  p.PlayerID,
			Name:      p.Name,
			Role:      p.Role,
			Ready:     p.Ready,
			Bot:       p.Bot,
			Host:      p.PlayerID == s.HostID,
			Cursor:    p.Cursor,
			Vitals:    p.Vitals,
			Traits:    e.traitsOf(s, p),
			Inventory: p.Inventory,
			Voted:     voted[p.PlayerID],
		})
	}

	var stage *expedition.Stage
	if exp := s.State.Expedition; exp != nil {
		rs.Expedition = &ExpeditionView{State: exp}
		if pool, err := e.content.Scheduler.Pool(exp.PoolID); err == nil {
			if stage, _ = pool.StageAt(exp.StageIndex); stage != nil {
				rs.Expedition.StageTitle = stage.Title
			}
		}
	}

	if node, ok := e.content.Graph.Node(s.SceneID); ok {
		rs.Node = e.nodeView(s, node, stage)
		rs.VotesNeeded = e.threshold(s, node)
	}
	return rs
}

// nodeView applies the expedition hub overlay: the stage title replaces the
// node title, and slot choices show their mission or are disabled when the
// slot is empty.
func (e *Engine) nodeView(s *Session, node *graph.Node, stage *expedition.Stage) *NodeView {
	v := &NodeView{
		ID:              node.ID,
		Title:           node.Title,
		Text:            node.Text,
		Mode:            node.Mode,
		RequireAllVotes: node.RequireAllVotes,
	}
	exp := s.State.Expedition
	hub := exp != nil && exp.HubNodeID == node.ID
	slots := map[string]bool{}
	if hub && stage != nil {
		if stage.Title != "" {
			v.Title = stage.Title
		}
		for _, id := range stage.Slots {
			slots[id] = true
		}
	}
	for _, c := range node.Choices {
		cv := ChoiceView{ID: c.ID, Text: c.Text, RequiredRole: c.RequiredRole, Tags: c.Tags}
		if c.Action != nil {
			cv.Action = c.Action.Kind()
		}
		if hub {
			if m, ok := exp.Missions[c.ID]; ok {
				cv.Text = m.Title
				cv.Mission = &m
			} else if slots[c.ID] {
				cv.Disabled = true
			}
		}
		v.Choices = append(v.Choices, cv)
	}
	return v
}
