package graph

import "github.com/playperu/coopquest/internal/coopquest"

// Mode is how a node's choices are resolved.
type Mode string

const (
	ModeVote                Mode = "vote"
	ModeIndividual          Mode = "individual"
	ModeSync                Mode = "sync"
	ModeContribute          Mode = "contribute"
	ModeSequentialBroadcast Mode = "sequential_broadcast"
)

func (m Mode) valid() bool {
	switch m {
	case ModeVote, ModeIndividual, ModeSync, ModeContribute, ModeSequentialBroadcast:
		return true
	}
	return false
}

// Node is one immutable scene of the quest graph.
type Node struct {
	ID              string   `yaml:"id"`
	Title           string   `yaml:"title"`
	Text            string   `yaml:"text"`
	Mode            Mode     `yaml:"mode"`
	RequireAllVotes bool     `yaml:"requireAllVotes"`
	Choices         []Choice `yaml:"choices"`
}

// Choice returns the choice with the given id.
func (n *Node) Choice(id string) (*Choice, bool) {
	for i := range n.Choices {
		if n.Choices[i].ID == id {
			return &n.Choices[i], true
		}
	}
	return nil, false
}

// Scored reports whether any choice carries a positive base score.
func (n *Node) Scored() bool {
	for i := range n.Choices {
		if n.Choices[i].BaseScore > 0 {
			return true
		}
	}
	return false
}

// Choice is an option on a node. Action is decoded from the tagged
// `action` mapping; see action.go.
type Choice struct {
	ID           string         `yaml:"id"`
	Text         string         `yaml:"text"`
	NextNodeID   string         `yaml:"next"`
	RequiredRole coopquest.Role `yaml:"requiredRole"`
	Action       Action         `yaml:"-"`

	RequiredItem       string         `yaml:"requiredItem"`
	ConsumableCost     *ItemCost      `yaml:"consumableCost"`
	RequiredStats      map[string]int `yaml:"requiredStats"`
	RequiredAttributes map[string]int `yaml:"requiredAttributes"`
	RequiredTraits     []string       `yaml:"requiredTraits"`

	BaseScore        float64                    `yaml:"baseScore"`
	ClassMultipliers map[coopquest.Role]float64 `yaml:"classMultipliers"`
	Tags             []string                   `yaml:"tags"`

	Flags     map[string]any     `yaml:"flags"`
	VoteFlags map[string]float64 `yaml:"voteFlags"`
	Buffs     map[string]float64 `yaml:"buffs"`
	Statuses  map[string]int     `yaml:"statuses"`
	// Self effects land on each voter who picked the choice on a scored
	// stage, whether or not it won.
	SelfBuffs    map[string]float64 `yaml:"selfBuffs"`
	SelfStatuses map[string]int     `yaml:"selfStatuses"`
	Loot      []ItemCost         `yaml:"loot"`
	Credits   int                `yaml:"credits"`

	Expedition *ExpeditionEffect `yaml:"expedition"`
}

// ItemCost names an item template and a quantity.
type ItemCost struct {
	Item string `yaml:"item"`
	Qty  int    `yaml:"qty"`
}

// ExpeditionEffect is the turn/currency bookkeeping a choice declares.
type ExpeditionEffect struct {
	Time     int `yaml:"time"`
	Cost     int `yaml:"rp"`
	RewardRP int `yaml:"rewardRp"`
}
