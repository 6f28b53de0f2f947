package git

import (
	"container/heap"
	"context"
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// walkSlop is how many extra commits are visited once only hidden commits
// remain queued, to absorb small committer clock skew.
const walkSlop = 5

// historyWalk finds the commits reachable from one tip and from none of the
// hidden tips. Commits are visited newest first by committer time and the
// walk stops once every queued commit is hidden, so the hidden history is
// only read down to where it meets the visible one.
type historyWalk struct {
	repo    *git.Repository
	states  map[plumbing.Hash]*walkState
	order   []*walkState
	queue   walkQueue
	visited int
}

type walkState struct {
	commit *object.Commit
	hidden bool
}

func newHistoryWalk(repo *git.Repository) *historyWalk {
	return &historyWalk{repo: repo, states: make(map[plumbing.Hash]*walkState)}
}

// push adds a tip. Tips must exist; parents missing behind a shallow
// boundary are skipped.
func (w *historyWalk) push(h plumbing.Hash, hidden bool) error {
	return w.mark(h, hidden, true)
}

func (w *historyWalk) mark(h plumbing.Hash, hidden, tip bool) error {
	if s, ok := w.states[h]; ok {
		if hidden && !s.hidden {
			s.hidden = true
			if s.commit != nil {
				// requeue so the mark reaches its parents
				heap.Push(&w.queue, s)
			}
		}
		return nil
	}

	c, err := w.repo.CommitObject(h)
	if errors.Is(err, plumbing.ErrObjectNotFound) && !tip {
		// shallow boundary
		w.states[h] = &walkState{hidden: hidden}
		return nil
	}
	if err != nil {
		return err
	}
	s := &walkState{commit: c, hidden: hidden}
	w.states[h] = s
	w.order = append(w.order, s)
	heap.Push(&w.queue, s)
	return nil
}

func (w *historyWalk) run(ctx context.Context) error {
	slop := walkSlop
	for w.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		s := heap.Pop(&w.queue).(*walkState)
		w.visited++
		for _, p := range s.commit.ParentHashes {
			if err := w.mark(p, s.hidden, false); err != nil {
				return err
			}
		}

		if !w.queue.onlyHidden() {
			slop = walkSlop
			continue
		}
		if slop == 0 {
			break
		}
		slop--
	}
	return nil
}

// visible returns the commits that are not hidden, in discovery order.
func (w *historyWalk) visible() []*object.Commit {
	var out []*object.Commit
	for _, s := range w.order {
		if !s.hidden {
			out = append(out, s.commit)
		}
	}
	return out
}

// walkQueue orders commits newest first, then by hash.
type walkQueue []*walkState

func (q walkQueue) Len() int { return len(q) }

func (q walkQueue) Less(i, j int) bool {
	a, b := q[i].commit, q[j].commit
	if !a.Committer.When.Equal(b.Committer.When) {
		return a.Committer.When.After(b.Committer.When)
	}
	return a.Hash.String() < b.Hash.String()
}

func (q walkQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *walkQueue) Push(x any) { *q = append(*q, x.(*walkState)) }

func (q *walkQueue) Pop() any {
	old := *q
	n := len(old)
	s := old[n-1]
	*q = old[:n-1]
	return s
}

func (q walkQueue) onlyHidden() bool {
	for _, s := range q {
		if !s.hidden {
			return false
		}
	}
	return true
}
