// Package chain keeps the successor links of repetitive and never-ending
// tasks as an explicit adjacency map. Every edit is checked against the
// simple-path invariant: at most one predecessor and one successor per
// node, and no cycles.
package chain

import (
	"errors"
	"fmt"
)

// MaxDepth bounds every walk along a chain.
const MaxDepth = 10000

var (
	// ErrBranch is returned when a node would get a second successor.
	ErrBranch = errors.New("chain: node already has a successor")
	// ErrMerge is returned when a node would get a second predecessor.
	ErrMerge = errors.New("chain: node already has a predecessor")
	// ErrCycle is returned when a link would close a loop.
	ErrCycle = errors.New("chain: link would close a cycle")
	// ErrTooDeep is returned when a walk exceeds MaxDepth.
	ErrTooDeep = errors.New("chain: walk exceeded max depth")
)

// Graph is the adjacency map of one or more chains.
type Graph struct {
	prev map[uint]uint
	next map[uint]uint
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		prev: make(map[uint]uint),
		next: make(map[uint]uint),
	}
}

// Prev returns the predecessor of id.
func (g *Graph) Prev(id uint) (uint, bool) {
	p, ok := g.prev[id]
	return p, ok
}

// Next returns the successor of id.
func (g *Graph) Next(id uint) (uint, bool) {
	n, ok := g.next[id]
	return n, ok
}

// Link adds the edge prev → next.
func (g *Graph) Link(prev, next uint) error {
	if prev == next {
		return fmt.Errorf("%w: %d → %d", ErrCycle, prev, next)
	}
	if n, ok := g.next[prev]; ok {
		if n == next {
			return nil
		}
		return fmt.Errorf("%w: %d → %d", ErrBranch, prev, n)
	}
	if p, ok := g.prev[next]; ok {
		return fmt.Errorf("%w: %d → %d", ErrMerge, p, next)
	}
	// A cycle closes when prev is already reachable walking forward from next.
	cur, depth := next, 0
	for {
		n, ok := g.next[cur]
		if !ok {
			break
		}
		if n == prev {
			return fmt.Errorf("%w: %d → %d", ErrCycle, prev, next)
		}
		cur = n
		depth++
		if depth > MaxDepth {
			return ErrTooDeep
		}
	}
	g.prev[next] = prev
	g.next[prev] = next
	return nil
}

// Repair describes the link rewrite needed after a node is removed.
// Successor is nil when the removed node was the tail; otherwise the
// successor's predecessor becomes Prev (nil when the removed node was the
// head).
type Repair struct {
	Successor *uint
	Prev      *uint
}

// Remove deletes id from the graph. When id had both neighbours they are
// linked to each other so the chain stays continuous.
func (g *Graph) Remove(id uint) Repair {
	var r Repair
	p, hasPrev := g.prev[id]
	n, hasNext := g.next[id]

	if hasPrev {
		delete(g.next, p)
		delete(g.prev, id)
	}
	if hasNext {
		delete(g.prev, n)
		delete(g.next, id)
		r.Successor = &n
	}
	if hasPrev && hasNext {
		g.prev[n] = p
		g.next[p] = n
		r.Prev = &p
	}
	return r
}

// After returns the nodes following id, nearest first.
func (g *Graph) After(id uint) ([]uint, error) {
	return g.walk(id, g.next)
}

// Before returns the nodes preceding id, nearest first.
func (g *Graph) Before(id uint) ([]uint, error) {
	return g.walk(id, g.prev)
}

func (g *Graph) walk(id uint, edges map[uint]uint) ([]uint, error) {
	var out []uint
	seen := map[uint]bool{id: true}
	cur := id
	for {
		n, ok := edges[cur]
		if !ok {
			return out, nil
		}
		if seen[n] {
			return nil, fmt.Errorf("%w at %d", ErrCycle, n)
		}
		if len(out) >= MaxDepth {
			return nil, ErrTooDeep
		}
		seen[n] = true
		out = append(out, n)
		cur = n
	}
}

// Head returns the first node of the chain containing id.
func (g *Graph) Head(id uint) (uint, error) {
	before, err := g.Before(id)
	if err != nil {
		return 0, err
	}
	if len(before) == 0 {
		return id, nil
	}
	return before[len(before)-1], nil
}

// Validate checks that prev and next mirror each other and that no chain
// loops.
func (g *Graph) Validate() error {
	for p, n := range g.next {
		if g.prev[n] != p {
			return fmt.Errorf("chain: edge %d → %d has no matching back link", p, n)
		}
	}
	for n, p := range g.prev {
		if g.next[p] != n {
			return fmt.Errorf("chain: back link %d ← %d has no matching edge", n, p)
		}
	}
	for id := range g.next {
		if _, err := g.After(id); err != nil {
			return err
		}
	}
	return nil
}

// Len returns the number of edges.
func (g *Graph) Len() int {
	return len(g.next)
}
