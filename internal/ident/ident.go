// Package ident provides session and revision identifiers for the edit graph.
//
// This package provides:
// - SessionID: the transport-assigned identity of a collaborating client
// - RevisionTag: a globally unique tag stamped on every commit
// - Minter: deterministic per-session revision tag generation
//
// Tag generation is normally delegated to the transport's ID service; the
// Minter here derives tags from a BLAKE3 keyed stream so that any two
// sessions, and any two mints within a session, produce distinct tags.
package ident

import (
	"encoding/binary"
	"encoding/hex"

	"lukechampine.com/blake3"
)

// SessionID identifies one collaborating client session.
type SessionID string

// RevisionTag is a globally unique identifier for a single commit.
type RevisionTag [16]byte

// RootRevision tags the implicit zero-change root commit shared by all
// branches of a document.
var RootRevision = RevisionTag{'w', 'e', 'f', 't', '-', 'r', 'o', 'o', 't'}

// String returns the hexadecimal representation of the tag.
func (r RevisionTag) String() string {
	return hex.EncodeToString(r[:])
}

// Short returns the first 8 hex characters, for logs and CLI output.
func (r RevisionTag) Short() string {
	return hex.EncodeToString(r[:4])
}

// IsZero reports whether the tag is the zero value.
func (r RevisionTag) IsZero() bool {
	return r == RevisionTag{}
}

// Minter generates revision tags for one session.
// Tags are deterministic in (session, mint index), which keeps replayed
// scenarios reproducible in tests and the demo CLI.
type Minter struct {
	session SessionID
	next    uint64
}

// NewMinter creates a minter for the given session.
func NewMinter(session SessionID) *Minter {
	return &Minter{session: session}
}

// Mint returns the next revision tag for this session.
func (m *Minter) Mint() RevisionTag {
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], m.next)
	m.next++

	h := blake3.New(32, nil)
	h.Write([]byte(m.session))
	h.Write(seed[:])

	var tag RevisionTag
	copy(tag[:], h.Sum(nil))
	return tag
}

// Minted returns how many tags have been minted so far.
func (m *Minter) Minted() uint64 {
	return m.next
}
