// Package graph is a small directed graph of property names used to check a
// Handler's dirty-propagation edges for cycles before the owner goes live.
//
// An edge child -> parent means "when child turns dirty, parent turns dirty".
// A cycle in these edges would make SetDirty recurse forever.
package graph

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrCycle is wrapped by CycleError.
var ErrCycle = errors.New("graph: cycle detected")

// ErrSelfEdge is returned by AddEdge for child == parent.
var ErrSelfEdge = errors.New("graph: self-referential edge")

// CycleError carries the closed path of the first cycle found, e.g.
// [A B C A].
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("graph: cycle detected: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

type node struct {
	id      string
	parents []string
}

// Graph is not safe for concurrent use; it belongs to one Handler.
type Graph struct {
	nodes map[string]*node
	order []string
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*node)}
}

// AddNode adds id if it is not present yet.
func (g *Graph) AddNode(id string) {
	if _, ok := g.nodes[id]; ok {
		return
	}
	g.nodes[id] = &node{id: id}
	g.order = append(g.order, id)
}

// AddEdge records child -> parent, creating both nodes when missing.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(child, parent string) error {
	if child == parent {
		return fmt.Errorf("%w: %s -> %s", ErrSelfEdge, child, parent)
	}
	g.AddNode(child)
	g.AddNode(parent)

	n := g.nodes[child]
	if !slices.Contains(n.parents, parent) {
		n.parents = append(n.parents, parent)
	}
	return nil
}

// Parents returns the direct parents of id.
func (g *Graph) Parents(id string) []string {
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	return slices.Clone(n.parents)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// DetectCycles runs a depth-first search keeping the recursion stack. Nodes
// are visited in insertion order so the reported path is deterministic.
func (g *Graph) DetectCycles() error {
	done := make(map[string]bool, len(g.nodes))
	onStack := make(map[string]bool)
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		if done[id] {
			return nil
		}
		if onStack[id] {
			start := slices.Index(stack, id)
			path := append(slices.Clone(stack[start:]), id)
			return &CycleError{Path: path}
		}

		onStack[id] = true
		stack = append(stack, id)

		for _, parent := range g.nodes[id].parents {
			if err := visit(parent); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(onStack, id)
		done[id] = true
		return nil
	}

	for _, id := range g.order {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}
