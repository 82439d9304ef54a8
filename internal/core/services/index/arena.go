package index

import "github.com/custodia-labs/recall/internal/core/domain"

// arena owns every node of a build. Edges are IDs, never pointers, so the
// finished list can be handed to the caller as plain values.
type arena struct {
	nodes []domain.Node
	byID  map[string]int
}

func newArena() *arena {
	return &arena{byID: make(map[string]int)}
}

func (a *arena) add(n domain.Node) string {
	a.byID[n.ID] = len(a.nodes)
	a.nodes = append(a.nodes, n)
	return n.ID
}

func (a *arena) get(id string) *domain.Node {
	i, ok := a.byID[id]
	if !ok {
		return nil
	}
	return &a.nodes[i]
}

// link sets parent.ChildIDs and every child's ParentID together.
func (a *arena) link(parentID string, childIDs []string) {
	parent := a.get(parentID)
	parent.ChildIDs = append([]string(nil), childIDs...)
	for _, id := range childIDs {
		pid := parentID
		a.get(id).ParentID = &pid
	}
}

// release returns the nodes in insertion order and empties the arena.
func (a *arena) release() []domain.Node {
	out := a.nodes
	a.nodes = nil
	a.byID = make(map[string]int)
	return out
}
