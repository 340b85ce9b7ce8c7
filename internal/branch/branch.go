// Package branch implements a movable cursor into the shared commit graph.
//
// This package provides:
// - Apply/Fork/RebaseOnto/Merge/Dispose with an Active -> Disposed lifecycle
// - Common-ancestor discovery by parent-pointer walk
// - Fast-forward detection so already-incorporated history costs no rebasing
// - Synchronous event delivery through an injected sink
//
// A branch owns one reference on its head commit; everything older is kept
// alive through the graph's child counts. Rebasing a branch onto a target
// with which it shares no ancestor means the two belong to different
// documents and panics.
package branch

import (
	"fmt"

	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/ident"
	"github.com/weftlab/weft/internal/rebase"
)

// Events is an injected sink of branch notifications. Funcs are invoked
// synchronously, in call order, and may be nil.
type Events[T any] struct {
	// Applied fires for every commit that becomes part of this branch
	// through Apply or Merge.
	Applied func(c graph.Commit[T])

	// Trimmed fires with the revisions of commits this branch no longer
	// references after a rebase. Consumers use it to release external
	// state tied to replaced revisions.
	Trimmed func(revisions []ident.RevisionTag)

	// Forked fires when Fork creates a child branch.
	Forked func(fork *Branch[T])
}

func (e *Events[T]) applied(c graph.Commit[T]) {
	if e.Applied != nil {
		e.Applied(c)
	}
}

func (e *Events[T]) trimmed(revs []ident.RevisionTag) {
	if e.Trimmed != nil && len(revs) > 0 {
		e.Trimmed(revs)
	}
}

// Branch is a mutable cursor into the commit graph.
type Branch[T any] struct {
	g        *graph.Graph[T]
	head     graph.CommitID
	session  ident.SessionID
	rebaser  rebase.Rebaser[T]
	events   Events[T]
	disposed bool
}

// New creates an active branch at the given head, retaining it. Commits
// applied through the branch are attributed to the given session.
func New[T any](g *graph.Graph[T], head graph.CommitID, session ident.SessionID, rebaser rebase.Rebaser[T], events Events[T]) *Branch[T] {
	g.Retain(head)
	return &Branch[T]{g: g, head: head, session: session, rebaser: rebaser, events: events}
}

// SetEvents replaces the branch's event sink.
func (b *Branch[T]) SetEvents(events Events[T]) {
	b.events = events
}

// Head returns the current head commit.
func (b *Branch[T]) Head() graph.Commit[T] {
	return b.g.Get(b.head)
}

// HeadID returns the current head commit id.
func (b *Branch[T]) HeadID() graph.CommitID {
	return b.head
}

// Disposed reports whether Dispose has been called.
func (b *Branch[T]) Disposed() bool {
	return b.disposed
}

// Apply builds a commit with the given change and revision on top of the
// current head and advances the head to it.
func (b *Branch[T]) Apply(change T, revision ident.RevisionTag) error {
	if b.disposed {
		return ErrDisposed
	}
	id := b.g.Add(b.head, revision, b.session, change)
	b.moveHead(id)
	b.events.applied(b.g.Get(id))
	return nil
}

// Fork returns a new active branch at this branch's current head. The fork
// shares history structurally; its future applies do not affect this branch.
func (b *Branch[T]) Fork() (*Branch[T], error) {
	if b.disposed {
		return nil, ErrDisposed
	}
	f := New(b.g, b.head, b.session, b.rebaser, Events[T]{})
	if b.events.Forked != nil {
		b.events.Forked(f)
	}
	return f, nil
}

// RebaseOnto rebases this branch's unique commits onto the target branch's
// head, per RebaseOntoCommit.
func (b *Branch[T]) RebaseOnto(target *Branch[T]) error {
	if b.disposed || target.disposed {
		return ErrDisposed
	}
	return b.RebaseOntoCommit(target.head)
}

// RebaseOntoCommit rebases this branch onto an arbitrary commit in the
// shared graph.
//
// Commits of this branch whose revisions already appear on the target path
// are treated as incorporated and dropped without rebasing. If nothing
// remains, the head fast-forwards with zero change-algebra calls. Otherwise
// the remaining commits are rebased, the head moves only after every
// algebra call has succeeded, and the revisions of the replaced originals
// are reported through the Trimmed event.
func (b *Branch[T]) RebaseOntoCommit(target graph.CommitID) error {
	if b.disposed {
		return ErrDisposed
	}
	if target == b.head {
		return nil
	}

	ancestor := b.commonAncestor(b.head, target)
	if ancestor == target {
		// The target is already part of this branch's history.
		return nil
	}
	src := b.pathAfter(ancestor, b.head)
	if len(src) == 0 {
		// Already at or behind the target: pure fast-forward.
		b.moveHead(target)
		return nil
	}
	tgt := b.pathAfter(ancestor, target)

	targetRevs := make(map[ident.RevisionTag]struct{}, len(tgt))
	for _, c := range tgt {
		targetRevs[c.Revision] = struct{}{}
	}

	// Commits already sequenced into the target path need no rebasing.
	incorporated := 0
	for incorporated < len(src) {
		if _, ok := targetRevs[src[incorporated].Revision]; !ok {
			break
		}
		incorporated++
	}
	remaining := src[incorporated:]

	trimmed := make([]ident.RevisionTag, 0, len(src))
	for _, c := range src {
		trimmed = append(trimmed, c.Revision)
	}

	if len(remaining) == 0 {
		b.moveHead(target)
		b.events.trimmed(trimmed)
		return nil
	}

	rebased, err := b.rebaseOver(remaining, src[:incorporated], tgt)
	if err != nil {
		return err
	}

	// All algebra succeeded; only now touch the graph.
	head := target
	for i, c := range remaining {
		head = b.g.Add(head, c.Revision, c.Session, rebased[i])
	}
	b.moveHead(head)
	b.events.trimmed(trimmed)
	return nil
}

// rebaseOver computes the rebased changes for the remaining commits. The
// change each commit is rebased across starts as the composition of the
// inverses of the incorporated prefix (newest to oldest) with the target
// path's changes (oldest to newest), and rolls forward one commit at a
// time: over' = compose(invert(c), over, rebased(c)).
func (b *Branch[T]) rebaseOver(remaining, incorporated, tgt []graph.Commit[T]) ([]T, error) {
	overParts := make([]T, 0, len(incorporated)+len(tgt))
	for i := len(incorporated) - 1; i >= 0; i-- {
		inv, err := b.rebaser.Invert(incorporated[i].Change)
		if err != nil {
			return nil, err
		}
		overParts = append(overParts, inv)
	}
	for _, c := range tgt {
		overParts = append(overParts, c.Change)
	}
	over, err := b.rebaser.Compose(overParts)
	if err != nil {
		return nil, err
	}

	rebased := make([]T, len(remaining))
	for i, c := range remaining {
		rebased[i], err = b.rebaser.Rebase(c.Change, over)
		if err != nil {
			return nil, err
		}
		if i == len(remaining)-1 {
			break
		}
		inv, err := b.rebaser.Invert(c.Change)
		if err != nil {
			return nil, err
		}
		over, err = b.rebaser.Compose([]T{inv, over, rebased[i]})
		if err != nil {
			return nil, err
		}
	}
	return rebased, nil
}

// Merge folds the source branch's unique commits into this branch by
// rebasing them onto this head, then optionally disposes the source.
func (b *Branch[T]) Merge(source *Branch[T], disposeSource bool) error {
	if b.disposed || source.disposed {
		return ErrDisposed
	}

	// Rebase on a scratch fork so a merge with disposeSource=false leaves
	// the source untouched.
	scratch, err := source.Fork()
	if err != nil {
		return err
	}
	if err := scratch.RebaseOntoCommit(b.head); err != nil {
		scratch.Dispose()
		return err
	}

	oldHead := b.head
	newCommits := b.pathAfter(oldHead, scratch.head)
	b.moveHead(scratch.head)
	scratch.Dispose()

	for _, c := range newCommits {
		b.events.applied(c)
	}
	if disposeSource {
		return source.Dispose()
	}
	return nil
}

// Dispose releases the branch's reference on its ancestry. Every later
// operation fails with ErrDisposed.
func (b *Branch[T]) Dispose() error {
	if b.disposed {
		return ErrDisposed
	}
	b.disposed = true
	b.g.Release(b.head)
	b.head = graph.None
	return nil
}

// CommitsAfter returns this branch's commits newer than ancestor, oldest
// first. Ancestor must be on the branch's parent chain.
func (b *Branch[T]) CommitsAfter(ancestor graph.CommitID) []graph.Commit[T] {
	return b.pathAfter(ancestor, b.head)
}

// moveHead retains the new head before releasing the old one so shared
// ancestry is never transiently unreferenced.
func (b *Branch[T]) moveHead(to graph.CommitID) {
	if to == b.head {
		return
	}
	b.g.Retain(to)
	b.g.Release(b.head)
	b.head = to
}

// pathAfter collects commits on the chain (ancestor, head], oldest first.
func (b *Branch[T]) pathAfter(ancestor, head graph.CommitID) []graph.Commit[T] {
	var out []graph.Commit[T]
	for id := head; id != ancestor; {
		if id == graph.None {
			panic(fmt.Sprintf("branch: commit %d is not an ancestor of %d", ancestor, head))
		}
		c := b.g.Get(id)
		out = append(out, c)
		id = c.Parent
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// commonAncestor finds the nearest commit reachable from both heads.
// Two heads with no shared ancestry belong to different documents, which is
// a fatal usage error.
func (b *Branch[T]) commonAncestor(a, c graph.CommitID) graph.CommitID {
	seen := make(map[graph.CommitID]struct{})
	for id := a; id != graph.None; id = b.g.Parent(id) {
		seen[id] = struct{}{}
	}
	for id := c; id != graph.None; id = b.g.Parent(id) {
		if _, ok := seen[id]; ok {
			return id
		}
	}
	panic("branch: no common ancestor; branches belong to different documents")
}
