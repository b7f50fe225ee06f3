package session

import "github.com/playperu/coopquest/internal/graph"

// branchRule overrides a node's static routing from session flags.
type branchRule func(s *Session, c *graph.Choice) (string, bool)

// Trust thresholds of the negotiation table.
const (
	TrustAlliance = 3
	TrustTruce    = 0
)

var branchRules = map[string]branchRule{
	"negotiation_table": negotiationOutcome,
	"archive_vault":     vaultReveal,
}

// negotiationOutcome routes the closing choice by the accumulated trust
// meter. Trust is fed by voteFlags and flags on earlier negotiation choices.
func negotiationOutcome(s *Session, c *graph.Choice) (string, bool) {
	if c.ID != "conclude" {
		return "", false
	}
	switch trust := flagNumber(s.State.Flags, "trust"); {
	case trust >= TrustAlliance:
		return "negotiation_alliance", true
	case trust >= TrustTruce:
		return "negotiation_truce", true
	default:
		return "negotiation_hostile", true
	}
}

// vaultReveal opens the hidden ending once the ghost was sighted.
func vaultReveal(s *Session, c *graph.Choice) (string, bool) {
	if c.ID == "open_vault" && flagSet(s.State.Flags, "ghost_sighted") {
		return "vault_reveal", true
	}
	return "", false
}
