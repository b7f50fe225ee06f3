// Package graph holds the immutable quest graph: nodes merged from
// independently authored namespaces and validated once at load time.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/playperu/coopquest/internal/coopquest"
)

// MainNamespace is the namespace expedition deadline events are delivered into.
const MainNamespace = "main"

// Namespace is one independently authored node collection.
type Namespace struct {
	ID    string           `yaml:"id"`
	Entry string           `yaml:"entry"`
	Nodes map[string]*Node `yaml:"nodes"`
}

// Store is safe for concurrent reads; nothing mutates it after New.
type Store struct {
	nodes      map[string]*Node
	owner      map[string]string
	namespaces map[string]*Namespace
	// keys as authored, used by Validate to report id/key mismatches
	declared map[string]string
}

// New merges namespaces. Two namespaces defining the same node id is a
// fatal ErrConflict.
func New(namespaces ...*Namespace) (*Store, error) {
	s := &Store{
		nodes:      make(map[string]*Node),
		owner:      make(map[string]string),
		namespaces: make(map[string]*Namespace, len(namespaces)),
		declared:   make(map[string]string),
	}

	for _, ns := range namespaces {
		if ns == nil {
			continue
		}
		if _, dup := s.namespaces[ns.ID]; dup {
			return nil, fmt.Errorf("%w: namespace %q defined twice", coopquest.ErrConflict, ns.ID)
		}
		s.namespaces[ns.ID] = ns

		for key, n := range ns.Nodes {
			if n == nil {
				continue
			}
			if prev, dup := s.owner[key]; dup {
				return nil, fmt.Errorf("%w: node %q defined in both %q and %q",
					coopquest.ErrConflict, key, prev, ns.ID)
			}
			// the map key is the node's identity; a differing declared id
			// only surfaces as a Validate warning
			s.declared[key] = n.ID
			n.ID = key
			if n.Mode == "" {
				n.Mode = ModeVote
			}
			s.nodes[key] = n
			s.owner[key] = ns.ID
		}
	}
	return s, nil
}

// Node returns the node by id.
func (s *Store) Node(id string) (*Node, bool) {
	n, ok := s.nodes[id]
	return n, ok
}

// RequireNode is Node that fails with ErrNotFound.
func (s *Store) RequireNode(id string) (*Node, error) {
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: node %q", coopquest.ErrNotFound, id)
	}
	return n, nil
}

func (s *Store) Namespace(id string) (*Namespace, bool) {
	ns, ok := s.namespaces[id]
	return ns, ok
}

// NamespaceOf returns the namespace a node was loaded from.
func (s *Store) NamespaceOf(nodeID string) string {
	return s.owner[nodeID]
}

// NodeIDs returns every node id, sorted.
func (s *Store) NodeIDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Report is the outcome of Validate.
type Report struct {
	Warnings []string
	Errors   []error
}

// Err joins the fatal errors, or returns nil.
func (r Report) Err() error {
	return errors.Join(r.Errors...)
}

// Validate checks referential integrity. Dangling nextNodeId targets are
// fatal unless the choice carries a return action, whose destination comes
// from the call stack at runtime.
func (s *Store) Validate() Report {
	var rep Report

	nsIDs := make([]string, 0, len(s.namespaces))
	for id := range s.namespaces {
		nsIDs = append(nsIDs, id)
	}
	sort.Strings(nsIDs)
	for _, id := range nsIDs {
		ns := s.namespaces[id]
		if ns.Entry == "" {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("namespace %q declares no entry node", id))
		} else if s.owner[ns.Entry] != id {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("namespace %q entry %q is not one of its nodes", id, ns.Entry))
		}
	}

	for _, id := range s.NodeIDs() {
		n := s.nodes[id]
		if declared := s.declared[id]; declared != "" && declared != id {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("node %q declares id %q", id, declared))
		}
		if !n.Mode.valid() {
			rep.Errors = append(rep.Errors, fmt.Errorf("node %q: unknown mode %q", id, n.Mode))
		}
		seen := make(map[string]bool, len(n.Choices))
		for _, c := range n.Choices {
			if seen[c.ID] {
				rep.Errors = append(rep.Errors, fmt.Errorf("node %q: duplicate choice %q", id, c.ID))
			}
			seen[c.ID] = true
			if c.RequiredRole != "" && !c.RequiredRole.Valid() {
				rep.Errors = append(rep.Errors, fmt.Errorf("node %q choice %q: unknown role %q", id, c.ID, c.RequiredRole))
			}
			for _, target := range choiceTargets(c) {
				if _, ok := s.nodes[target]; !ok {
					rep.Errors = append(rep.Errors, fmt.Errorf("node %q choice %q: %w: %q",
						id, c.ID, coopquest.ErrNotFound, target))
				}
			}
		}
	}
	return rep
}

func choiceTargets(c Choice) []string {
	var out []string
	if _, isReturn := c.Action.(Return); c.NextNodeID != "" && !isReturn {
		out = append(out, c.NextNodeID)
	}
	switch a := c.Action.(type) {
	case StartSideQuest:
		out = append(out, a.EntryNodeID)
	case StartCoopBattle:
		out = append(out, a.ReturnNodeID, a.DefeatNodeID)
	case ResolveExpeditionEvent:
		out = append(out, a.SuccessNodeID, a.FailureNodeID)
	}
	targets := out[:0]
	for _, t := range out {
		if t != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

// Reachable walks nextNodeId edges breadth-first from entry without leaving
// entry's namespace.
func (s *Store) Reachable(entry string) []*Node {
	ns := s.owner[entry]
	if ns == "" {
		return nil
	}
	var out []*Node
	seen := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := s.nodes[id]
		out = append(out, n)
		for _, c := range n.Choices {
			next := c.NextNodeID
			if next == "" || seen[next] || s.owner[next] != ns {
				continue
			}
			seen[next] = true
			queue = append(queue, next)
		}
	}
	return out
}
