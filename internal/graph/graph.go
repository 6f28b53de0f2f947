// Package graph holds a commit DAG as a flat arena addressed by index.
//
// Commits are stored once in a slice; parent links are index lists into the
// same slice, so reachability and ordering are plain integer walks with no
// object graph to own.
package graph

import (
	"container/heap"

	"github.com/masmgr/gitchanges/internal/vcs"
)

// Graph is an immutable arena of commits.
type Graph struct {
	commits []vcs.Commit
	index   map[vcs.Revision]int
	parents [][]int
}

// New builds a graph from commits. Duplicate revisions keep the first
// occurrence. Parents that are not part of the input are treated as the
// history boundary.
func New(commits []vcs.Commit) *Graph {
	g := &Graph{
		commits: make([]vcs.Commit, 0, len(commits)),
		index:   make(map[vcs.Revision]int, len(commits)),
	}
	for _, c := range commits {
		if _, ok := g.index[c.Revision]; ok {
			continue
		}
		g.index[c.Revision] = len(g.commits)
		g.commits = append(g.commits, c)
	}

	g.parents = make([][]int, len(g.commits))
	for i, c := range g.commits {
		for _, p := range c.Parents {
			pi, ok := g.index[p]
			if !ok || containsInt(g.parents[i], pi) {
				continue
			}
			g.parents[i] = append(g.parents[i], pi)
		}
	}
	return g
}

// Len returns the number of commits in the arena.
func (g *Graph) Len() int {
	return len(g.commits)
}

// Index returns the arena index of a revision.
func (g *Graph) Index(rev vcs.Revision) (int, bool) {
	i, ok := g.index[rev]
	return i, ok
}

// Contains reports whether the revision is in the arena.
func (g *Graph) Contains(rev vcs.Revision) bool {
	_, ok := g.index[rev]
	return ok
}

// Commit returns the commit stored at index i.
func (g *Graph) Commit(i int) vcs.Commit {
	return g.commits[i]
}

// Commits returns the commits at the given indices, in that order.
func (g *Graph) Commits(indices []int) []vcs.Commit {
	out := make([]vcs.Commit, len(indices))
	for i, idx := range indices {
		out[i] = g.commits[idx]
	}
	return out
}

// All returns every index of the arena.
func (g *Graph) All() []int {
	all := make([]int, len(g.commits))
	for i := range all {
		all[i] = i
	}
	return all
}

// Ancestors marks every commit reachable from rev, rev included.
// A revision not in the arena marks nothing.
func (g *Graph) Ancestors(rev vcs.Revision) []bool {
	seen := make([]bool, len(g.commits))
	start, ok := g.index[rev]
	if !ok {
		return seen
	}
	stack := []int{start}
	seen[start] = true
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range g.parents[n] {
			if !seen[p] {
				seen[p] = true
				stack = append(stack, p)
			}
		}
	}
	return seen
}

// IsAncestor reports whether ancestor is reachable from rev (or equal to it).
func (g *Graph) IsAncestor(ancestor, rev vcs.Revision) bool {
	a, ok := g.index[ancestor]
	if !ok {
		return false
	}
	return g.Ancestors(rev)[a]
}

// Exclusive returns the indices of commits reachable from `from` but not from
// `exclude`. An empty or unknown exclude excludes nothing.
func (g *Graph) Exclusive(from, exclude vcs.Revision) []int {
	reach := g.Ancestors(from)
	var excluded []bool
	if !exclude.IsZero() {
		excluded = g.Ancestors(exclude)
	}

	var out []int
	for i, ok := range reach {
		if ok && (excluded == nil || !excluded[i]) {
			out = append(out, i)
		}
	}
	return out
}

// Order sorts a set of commits so that every commit precedes all of its
// ancestors within the set. Commits unrelated by ancestry are ordered by
// committer time, most recent first, then by revision.
func (g *Graph) Order(set []int) []int {
	member := make(map[int]bool, len(set))
	for _, i := range set {
		member[i] = true
	}

	// pending children per commit, counted inside the set only
	children := make(map[int]int, len(set))
	for i := range member {
		for _, p := range g.parents[i] {
			if member[p] {
				children[p]++
			}
		}
	}

	ready := &readyQueue{g: g}
	for i := range member {
		if children[i] == 0 {
			ready.items = append(ready.items, i)
		}
	}
	heap.Init(ready)

	out := make([]int, 0, len(member))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, n)
		for _, p := range g.parents[n] {
			if !member[p] {
				continue
			}
			children[p]--
			if children[p] == 0 {
				heap.Push(ready, p)
			}
		}
	}
	return out
}

// readyQueue pops the most recent commit first.
type readyQueue struct {
	g     *Graph
	items []int
}

func (q *readyQueue) Len() int { return len(q.items) }

func (q *readyQueue) Less(i, j int) bool {
	a, b := q.g.commits[q.items[i]], q.g.commits[q.items[j]]
	if !a.When.Equal(b.When) {
		return a.When.After(b.When)
	}
	return a.Revision < b.Revision
}

func (q *readyQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *readyQueue) Push(x any) { q.items = append(q.items, x.(int)) }

func (q *readyQueue) Pop() any {
	n := len(q.items)
	x := q.items[n-1]
	q.items = q.items[:n-1]
	return x
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
