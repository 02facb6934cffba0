package pat

import (
	"fmt"
	"strings"
)

// Hierarchy is the immutable scope table loaded once at process start.
// Levels are ordered strictly within a resource; no ordering exists across
// resources. Concurrent reads are safe because the table is never mutated.
type Hierarchy struct {
	levels map[string]int // scope name -> level
	scopes map[string]Scope
}

// NewHierarchy builds the lookup table from the seeded scope rows. Every row
// must satisfy name = resource + ":" + action, and names must be unique.
func NewHierarchy(scopes []Scope) (*Hierarchy, error) {
	h := &Hierarchy{
		levels: make(map[string]int, len(scopes)),
		scopes: make(map[string]Scope, len(scopes)),
	}
	for _, s := range scopes {
		if s.Name != s.Resource+":"+s.Action {
			return nil, fmt.Errorf("%w: scope %q does not match %q:%q",
				ErrInvalidInput, s.Name, s.Resource, s.Action)
		}
		if _, dup := h.scopes[s.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate scope %q", ErrInvalidInput, s.Name)
		}
		h.levels[s.Name] = s.Level
		h.scopes[s.Name] = s
	}
	return h, nil
}

// LevelOf returns the level of a scope name, or false if the scope is not
// part of the hierarchy.
func (h *Hierarchy) LevelOf(name string) (int, bool) {
	level, ok := h.levels[name]
	return level, ok
}

// Lookup returns the full scope row for a name.
func (h *Hierarchy) Lookup(name string) (Scope, bool) {
	s, ok := h.scopes[name]
	return s, ok
}

// Satisfies reports whether a granted scope covers a required scope: both
// must share a resource and the granted level must be at least the required
// level. Holding the highest level on one resource grants nothing on another.
func (h *Hierarchy) Satisfies(granted, required string) bool {
	g, ok := h.scopes[granted]
	if !ok {
		return false
	}
	r, ok := h.scopes[required]
	if !ok {
		return false
	}
	return g.Resource == r.Resource && g.Level >= r.Level
}

// Known reports whether every name refers to a seeded scope.
func (h *Hierarchy) Known(names []string) bool {
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if _, ok := h.scopes[name]; !ok {
			return false
		}
	}
	return true
}

// SplitName breaks a "resource:action" scope name into its parts.
func SplitName(name string) (resource, action string, err error) {
	parts := strings.SplitN(name, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: malformed scope name %q", ErrInvalidInput, name)
	}
	return parts[0], parts[1], nil
}
