// Package summary implements the persistence collaborator for the edit
// graph: snapshot types, a canonical binary codec, and a bbolt-backed
// snapshot store.
//
// A snapshot captures the retained trunk suffix and every tracked peer
// branch. Loading a snapshot into an edit manager followed by extracting
// one again reproduces an equivalent state.
package summary

import (
	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/ident"
)

// Commit is one serialized commit: the change plus its identity.
type Commit[T any] struct {
	Revision ident.RevisionTag
	Session  ident.SessionID
	Change   T
}

// TrunkCommit is a sequenced commit on the trunk.
type TrunkCommit[T any] struct {
	Commit[T]
	SequenceNumber graph.SeqNumber
}

// PeerBranch is the tracked unsequenced branch of one peer session.
// Base names the trunk commit the branch is rooted at (the trunk base
// marker's revision when the peer is rooted at the eviction floor).
type PeerBranch[T any] struct {
	Base    ident.RevisionTag
	Commits []Commit[T]
}

// Data is the snapshot shape exchanged with the edit manager.
type Data[T any] struct {
	// Base is the revision of the trunk base marker: the context every
	// retained trunk commit builds on.
	Base  ident.RevisionTag
	Trunk []TrunkCommit[T]
	Peers map[ident.SessionID]PeerBranch[T]
}
