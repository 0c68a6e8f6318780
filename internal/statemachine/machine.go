// Package statemachine validates lifecycle transitions against a closed table.
package statemachine

import (
	"sort"

	"github.com/spec-kit/field-service/pkg/util"
)

// Machine is an immutable transition table for one entity type.
type Machine[S ~string] struct {
	entity string
	edges  map[S]map[S]struct{}
}

// New builds a machine from state -> allowed next states. States that only appear as
// targets are registered as terminal.
func New[S ~string](entity string, table map[S][]S) *Machine[S] {
	edges := make(map[S]map[S]struct{}, len(table))
	for from, targets := range table {
		if edges[from] == nil {
			edges[from] = map[S]struct{}{}
		}
		for _, to := range targets {
			edges[from][to] = struct{}{}
			if edges[to] == nil {
				edges[to] = map[S]struct{}{}
			}
		}
	}
	return &Machine[S]{entity: entity, edges: edges}
}

// Entity returns the entity name used in errors.
func (m *Machine[S]) Entity() string {
	return m.entity
}

// Known reports whether s belongs to the closed state set.
func (m *Machine[S]) Known(s S) bool {
	_, ok := m.edges[s]
	return ok
}

// Can reports whether from -> to is listed.
func (m *Machine[S]) Can(from, to S) bool {
	_, ok := m.edges[from][to]
	return ok
}

// IsTerminal reports whether s has no outgoing transition.
func (m *Machine[S]) IsTerminal(s S) bool {
	return m.Known(s) && len(m.edges[s]) == 0
}

// Validate returns an invalid transition error unless from -> to is listed.
func (m *Machine[S]) Validate(from, to S) error {
	if m.Can(from, to) {
		return nil
	}
	reason := ""
	switch {
	case !m.Known(to):
		reason = "unknown target state"
	case m.IsTerminal(from):
		reason = "source state is terminal"
	}
	return util.NewInvalidTransition(m.entity, string(from), string(to), reason)
}

// States returns every state in lexical order.
func (m *Machine[S]) States() []S {
	out := make([]S, 0, len(m.edges))
	for s := range m.edges {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
