package interval

import (
	"sort"

	"resledger/pkg/model"
)

// Tree is an adjacency view over the location hierarchy.
type Tree struct {
	parent   map[string]string
	children map[string][]string
}

// NewTree builds a Tree from a flat location list. Parent references to unknown
// locations are kept so ancestors can still be walked.
func NewTree(locations []model.Location) *Tree {
	t := &Tree{
		parent:   make(map[string]string, len(locations)),
		children: make(map[string][]string),
	}
	for _, loc := range locations {
		if loc.ParentID == "" || loc.ParentID == loc.ID {
			continue
		}
		t.parent[loc.ID] = loc.ParentID
		t.children[loc.ParentID] = append(t.children[loc.ParentID], loc.ID)
	}
	for id := range t.children {
		sort.Strings(t.children[id])
	}
	return t
}

// Children returns the direct children of location.
func (t *Tree) Children(location string) []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.children[location]))
	copy(out, t.children[location])
	return out
}

// Descendants returns every location below location, breadth first.
func (t *Tree) Descendants(location string) []string {
	if t == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{location: true}
	queue := []string{location}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range t.children[current] {
			if seen[child] {
				continue
			}
			seen[child] = true
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	return out
}

// Ancestors returns the chain of parents of location, nearest first.
func (t *Tree) Ancestors(location string) []string {
	if t == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{location: true}
	for current := t.parent[location]; current != ""; current = t.parent[current] {
		if seen[current] {
			break
		}
		seen[current] = true
		out = append(out, current)
	}
	return out
}

// Scope returns the locations occupied by booking location: the location itself
// and, when includeChildren is set, all of its descendants.
func Scope(t *Tree, location string, includeChildren bool) []string {
	if location == "" {
		return nil
	}
	out := []string{location}
	if includeChildren {
		out = append(out, t.Descendants(location)...)
	}
	return out
}

// ConflictScope returns the locations whose bookings collide with a booking of
// location: its Scope plus every ancestor, since booking a parent occupies all
// of its children.
func ConflictScope(t *Tree, location string, includeChildren bool) []string {
	out := Scope(t, location, includeChildren)
	if len(out) == 0 {
		return out
	}
	return append(out, t.Ancestors(location)...)
}
