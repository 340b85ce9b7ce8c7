// Package graph implements the shared commit graph for edit history.
//
// This package provides:
// - An arena of immutable commit nodes linked by parent ids
// - Reference counting of branch heads plus child counts for ancestry safety
// - Trunk base advancement, which is how evicted history is reclaimed
//
// The graph stores the *edit history* tree, not the document tree: each
// commit owns a change relative to its parent's resulting state. Nodes are
// never mutated after creation except for sealing a sequence number onto
// them when they land on the trunk. Any number of branches may reference the
// same node; an unsequenced node is reclaimed automatically once no branch
// retains it and it has no surviving children, while sequenced nodes are
// only reclaimed through AdvanceBase.
//
// Misuse (unknown ids, double-sealing, advancing over a node that is still
// referenced) panics: a corrupted history graph has no safe continuation.
package graph

import (
	"fmt"

	"github.com/weftlab/weft/internal/ident"
)

// CommitID identifies a commit node within one Graph.
type CommitID uint64

// None is the null commit id, used as the parent of the base node.
const None CommitID = 0

// SeqNumber is a position in the total order assigned by the sequencing
// service. The base node of a fresh graph sits at sequence number 0.
type SeqNumber int64

// Unsequenced marks a commit that has not been assigned a trunk position.
const Unsequenced SeqNumber = -1

// Commit is a read-only view of one node in the graph.
type Commit[T any] struct {
	ID             CommitID
	Parent         CommitID
	Revision       ident.RevisionTag
	Session        ident.SessionID
	Change         T
	SequenceNumber SeqNumber
}

type node[T any] struct {
	parent   CommitID
	revision ident.RevisionTag
	session  ident.SessionID
	change   T
	seq      SeqNumber
	refs     int // live branch heads retaining this node
	children int // nodes whose parent is this node
}

// Graph is an arena of commit nodes shared by every branch of one document.
type Graph[T any] struct {
	nodes map[CommitID]*node[T]
	next  CommitID
	base  CommitID
}

// New creates a graph containing only the zero-change base commit, tagged
// with the given revision and sealed at sequence number 0.
func New[T any](rootRevision ident.RevisionTag) *Graph[T] {
	g := &Graph[T]{
		nodes: make(map[CommitID]*node[T]),
		next:  1,
	}
	id := g.next
	g.next++
	g.nodes[id] = &node[T]{
		parent:   None,
		revision: rootRevision,
		seq:      0,
	}
	g.base = id
	return g
}

// Base returns the current base commit: the oldest retained point of
// history, representing the document state after everything evicted so far.
func (g *Graph[T]) Base() CommitID {
	return g.base
}

// Add appends an immutable commit with the given parent and returns its id.
func (g *Graph[T]) Add(parent CommitID, revision ident.RevisionTag, session ident.SessionID, change T) CommitID {
	p := g.mustNode(parent)
	id := g.next
	g.next++
	g.nodes[id] = &node[T]{
		parent:   parent,
		revision: revision,
		session:  session,
		change:   change,
		seq:      Unsequenced,
	}
	p.children++
	return id
}

// Get returns a read-only view of the commit.
func (g *Graph[T]) Get(id CommitID) Commit[T] {
	n := g.mustNode(id)
	return Commit[T]{
		ID:             id,
		Parent:         n.parent,
		Revision:       n.revision,
		Session:        n.session,
		Change:         n.change,
		SequenceNumber: n.seq,
	}
}

// Contains reports whether id is still present in the arena.
func (g *Graph[T]) Contains(id CommitID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Parent returns the parent id of a commit (None for the base node).
func (g *Graph[T]) Parent(id CommitID) CommitID {
	return g.mustNode(id).parent
}

// Seal assigns a trunk sequence number to a commit. A commit is sealed at
// most once.
func (g *Graph[T]) Seal(id CommitID, seq SeqNumber) {
	n := g.mustNode(id)
	if n.seq != Unsequenced {
		panic(fmt.Sprintf("graph: commit %d already sequenced at %d", id, n.seq))
	}
	n.seq = seq
}

// Retain records a branch head reference on the commit.
func (g *Graph[T]) Retain(id CommitID) {
	g.mustNode(id).refs++
}

// Release drops a branch head reference. Unsequenced commits with no
// remaining references and no children are reclaimed, cascading up the
// parent chain.
func (g *Graph[T]) Release(id CommitID) {
	n := g.mustNode(id)
	n.refs--
	if n.refs < 0 {
		panic(fmt.Sprintf("graph: commit %d released more times than retained", id))
	}
	g.collect(id)
}

// collect frees id if nothing keeps it alive, then retries its parent.
func (g *Graph[T]) collect(id CommitID) {
	for id != None {
		n, ok := g.nodes[id]
		if !ok {
			return
		}
		if n.refs > 0 || n.children > 0 || n.seq != Unsequenced {
			return
		}
		parent := n.parent
		delete(g.nodes, id)
		if parent != None {
			g.mustNode(parent).children--
		}
		id = parent
	}
}

// AdvanceBase promotes the given child of the current base to be the new
// base, freeing the old base node. The promoted node keeps its revision and
// sequence number but its change content is dropped: it is a context marker
// from then on, not a replayable commit.
//
// The caller must have established that no branch roots through the old
// base; violating that panics.
func (g *Graph[T]) AdvanceBase(to CommitID) {
	old := g.mustNode(g.base)
	n := g.mustNode(to)
	if n.parent != g.base {
		panic(fmt.Sprintf("graph: commit %d is not a child of the base", to))
	}
	if old.refs > 0 {
		panic(fmt.Sprintf("graph: base %d still retained by a branch", g.base))
	}
	if old.children != 1 {
		panic(fmt.Sprintf("graph: base %d still has %d children", g.base, old.children))
	}
	delete(g.nodes, g.base)
	n.parent = None
	var zero T
	n.change = zero
	g.base = to
}

// BaseBlocked reports whether the base node is pinned: a branch head sits
// on it, or something other than its single trunk successor descends from
// it. A blocked base stops eviction.
func (g *Graph[T]) BaseBlocked() bool {
	n := g.mustNode(g.base)
	return n.refs > 0 || n.children != 1
}

// ChildCount returns how many live nodes have id as their parent.
func (g *Graph[T]) ChildCount(id CommitID) int {
	return g.mustNode(id).children
}

// Len returns the number of live nodes, including the base.
func (g *Graph[T]) Len() int {
	return len(g.nodes)
}

func (g *Graph[T]) mustNode(id CommitID) *node[T] {
	n, ok := g.nodes[id]
	if !ok {
		panic(fmt.Sprintf("graph: unknown commit id %d", id))
	}
	return n
}
