// Package editmgr reconciles the sequenced trunk, this session's local
// edits, and every peer's in-flight edits into one consistent,
// memory-bounded history.
//
// This package provides:
// - Intake of sequenced changes in the transport's total order
// - Fast-forwarding of this session's own confirmed edits
// - Per-peer branch tracking rooted at reference sequence numbers
// - Trunk eviction driven by the advancing minimum sequence number
// - Snapshot load/extract for attach and resume
//
// Execution is single-threaded and synchronous: every operation runs to
// completion before returning, and external concurrency is resolved
// entirely through the rebase algebra. Contract violations that would
// corrupt the history graph (duplicate revisions, references below the
// eviction floor, non-monotonic sequence numbers) panic; change-algebra
// failures propagate to the caller unchanged.
package editmgr

import (
	"fmt"
	"sort"

	"github.com/weftlab/weft/internal/branch"
	"github.com/weftlab/weft/internal/graph"
	"github.com/weftlab/weft/internal/ident"
	"github.com/weftlab/weft/internal/rebase"
	"github.com/weftlab/weft/internal/summary"
)

// SequencedChange is one change confirmed by the sequencing service.
type SequencedChange[T any] struct {
	Revision ident.RevisionTag
	Change   T
}

// Events is the manager-level notification sink. Funcs are invoked
// synchronously in delivery order and may be nil.
type Events[T any] struct {
	// TrunkApplied fires for every commit appended to the trunk.
	TrunkApplied func(c graph.Commit[T], seq graph.SeqNumber)

	// TrunkTrimmed fires with the revisions evicted from the trunk, oldest
	// first. Consumers release any state tied to those revisions.
	TrunkTrimmed func(revisions []ident.RevisionTag)
}

type trunkEntry struct {
	id       graph.CommitID
	seq      graph.SeqNumber
	revision ident.RevisionTag
}

// EditManager owns the trunk, the local branch, and the tracked peer
// branches of one document.
type EditManager[T any] struct {
	g       *graph.Graph[T]
	rebaser rebase.Rebaser[T]
	session ident.SessionID
	events  Events[T]

	trunk *branch.Branch[T]
	local *branch.Branch[T]
	peers map[ident.SessionID]*branch.Branch[T]

	entries  []trunkEntry                             // retained trunk suffix, oldest first
	revs     map[ident.RevisionTag]graph.SeqNumber    // retained trunk revisions
	floorSeq graph.SeqNumber                          // position represented by the base marker
	minSeq   graph.SeqNumber                          // latest advanced minimum sequence number
	lastSeq  graph.SeqNumber                          // latest sequenced position seen
}

// New creates an edit manager for the given session over an empty document.
func New[T any](session ident.SessionID, rebaser rebase.Rebaser[T], events Events[T]) *EditManager[T] {
	g := graph.New[T](ident.RootRevision)
	return &EditManager[T]{
		g:       g,
		rebaser: rebaser,
		session: session,
		events:  events,
		trunk:   branch.New(g, g.Base(), session, rebaser, branch.Events[T]{}),
		local:   branch.New(g, g.Base(), session, rebaser, branch.Events[T]{}),
		peers:   make(map[ident.SessionID]*branch.Branch[T]),
		revs:    make(map[ident.RevisionTag]graph.SeqNumber),
	}
}

// SessionID returns this manager's own session id.
func (m *EditManager[T]) SessionID() ident.SessionID {
	return m.session
}

// LocalBranch returns the branch local edits are applied to. Forks taken
// from it share the graph and pin trunk history until disposed.
func (m *EditManager[T]) LocalBranch() *branch.Branch[T] {
	return m.local
}

// MinimumSequenceNumber returns the latest advanced floor.
func (m *EditManager[T]) MinimumSequenceNumber() graph.SeqNumber {
	return m.minSeq
}

// AddSequencedChanges accepts changes newly confirmed by the sequencing
// service. All changes in one call share the sending session, the assigned
// sequence number, and the sender's reference sequence number, and are
// appended to the trunk in call order.
func (m *EditManager[T]) AddSequencedChanges(changes []SequencedChange[T], session ident.SessionID, seq, refSeq graph.SeqNumber) error {
	if len(changes) == 0 {
		return nil
	}
	if seq < m.lastSeq {
		panic(fmt.Sprintf("editmgr: sequence number %d delivered after %d", seq, m.lastSeq))
	}
	if refSeq < m.floorSeq {
		panic(fmt.Sprintf("editmgr: reference sequence number %d is below the eviction floor %d", refSeq, m.floorSeq))
	}
	if refSeq > m.lastSeq {
		panic(fmt.Sprintf("editmgr: reference sequence number %d is ahead of the latest sequenced change %d", refSeq, m.lastSeq))
	}

	var err error
	if session == m.session {
		err = m.sequenceOwn(changes, seq)
	} else {
		err = m.sequencePeer(changes, session, seq, refSeq)
	}
	if err != nil {
		return err
	}
	m.lastSeq = seq

	// Local edits always continue from the latest known trunk state. With
	// no pending local edits this is a plain fast-forward.
	return m.local.RebaseOntoCommit(m.trunk.HeadID())
}

// sequenceOwn confirms previously applied local changes. The local branch
// is kept rebased onto the trunk tip, so confirmation is normally a pure
// fast-forward: the pending commit is sealed in place.
func (m *EditManager[T]) sequenceOwn(changes []SequencedChange[T], seq graph.SeqNumber) error {
	if err := m.local.RebaseOntoCommit(m.trunk.HeadID()); err != nil {
		return err
	}
	pending := m.localPending()
	if len(pending) < len(changes) {
		panic(fmt.Sprintf("editmgr: %d own changes sequenced but only %d local commits pending", len(changes), len(pending)))
	}
	for i, sc := range changes {
		c := pending[i]
		if c.Revision != sc.Revision {
			panic(fmt.Sprintf("editmgr: sequenced revision %s does not match pending local commit %s", sc.Revision.Short(), c.Revision.Short()))
		}
		m.sealTrunk(c.ID, c.Revision, seq)
		if err := m.trunk.RebaseOntoCommit(c.ID); err != nil {
			return err
		}
	}
	return nil
}

// sequencePeer folds a peer's change into the trunk via that peer's
// tracked branch.
func (m *EditManager[T]) sequencePeer(changes []SequencedChange[T], session ident.SessionID, seq, refSeq graph.SeqNumber) error {
	base := m.trunkAt(refSeq)
	pb, ok := m.peers[session]
	if !ok {
		pb = branch.New(m.g, base, session, m.rebaser, branch.Events[T]{})
		m.peers[session] = pb
	} else if err := pb.RebaseOntoCommit(base); err != nil {
		return err
	}

	for _, sc := range changes {
		if err := pb.Apply(sc.Change, sc.Revision); err != nil {
			return err
		}
	}

	// Rebase a scratch fork onto the trunk tip; the peer branch itself
	// stays rooted at the reference sequence number, since the peer may
	// still author edits against that context.
	scratch, err := pb.Fork()
	if err != nil {
		return err
	}
	if err := scratch.RebaseOntoCommit(m.trunk.HeadID()); err != nil {
		scratch.Dispose()
		return err
	}
	for _, c := range scratch.CommitsAfter(m.trunk.HeadID()) {
		m.sealTrunk(c.ID, c.Revision, seq)
		if err := m.trunk.RebaseOntoCommit(c.ID); err != nil {
			scratch.Dispose()
			return err
		}
	}
	return scratch.Dispose()
}

// sealTrunk records a commit as the next trunk position.
func (m *EditManager[T]) sealTrunk(id graph.CommitID, revision ident.RevisionTag, seq graph.SeqNumber) {
	if prev, dup := m.revs[revision]; dup {
		panic(fmt.Sprintf("editmgr: revision %s already sequenced at %d", revision.Short(), prev))
	}
	m.g.Seal(id, seq)
	m.entries = append(m.entries, trunkEntry{id: id, seq: seq, revision: revision})
	m.revs[revision] = seq
	if m.events.TrunkApplied != nil {
		m.events.TrunkApplied(m.g.Get(id), seq)
	}
}

// AdvanceMinimumSequenceNumber records the external guarantee that no
// future change will reference a trunk position at or below seq, and
// evicts the maximal trunk prefix that guarantee and live branches permit.
func (m *EditManager[T]) AdvanceMinimumSequenceNumber(seq graph.SeqNumber) error {
	if seq < m.minSeq {
		panic(fmt.Sprintf("editmgr: minimum sequence number went backwards: %d after %d", seq, m.minSeq))
	}
	if seq > m.lastSeq {
		panic(fmt.Sprintf("editmgr: minimum sequence number %d is ahead of the latest sequenced change %d", seq, m.lastSeq))
	}
	if seq == m.minSeq {
		return nil
	}
	m.minSeq = seq

	// Move peer branches up to the floor first; a peer with nothing left
	// to distinguish it from the trunk no longer needs tracking and is
	// recreated lazily from its next reference sequence number.
	floor := m.trunkAt(seq)
	for session, pb := range m.peers {
		if err := pb.RebaseOntoCommit(floor); err != nil {
			return err
		}
		if m.g.Get(pb.HeadID()).SequenceNumber != graph.Unsequenced {
			pb.Dispose()
			delete(m.peers, session)
		}
	}

	var trimmed []ident.RevisionTag
	for len(m.entries) > 0 && m.entries[0].seq <= m.minSeq {
		if m.g.BaseBlocked() {
			break
		}
		e := m.entries[0]
		divergent := m.g.ChildCount(e.id)
		if len(m.entries) > 1 {
			divergent-- // the next trunk commit
		}
		if divergent > 0 {
			// A branch forks off this commit; it stays retained even
			// though it is below the floor.
			break
		}
		m.g.AdvanceBase(e.id)
		delete(m.revs, e.revision)
		m.floorSeq = e.seq
		m.entries = m.entries[1:]
		trimmed = append(trimmed, e.revision)
	}
	if m.events.TrunkTrimmed != nil && len(trimmed) > 0 {
		m.events.TrunkTrimmed(trimmed)
	}
	return nil
}

// LoadSummaryData bulk-initializes trunk and peer state from a snapshot.
// The manager must not hold in-flight local edits. Afterwards the local
// branch sits at the new trunk head.
func (m *EditManager[T]) LoadSummaryData(d *summary.Data[T]) error {
	if len(m.localPending()) > 0 {
		panic("editmgr: cannot load summary data with in-flight local edits")
	}

	g := graph.New[T](d.Base)
	byRevision := map[ident.RevisionTag]graph.CommitID{d.Base: g.Base()}

	entries := make([]trunkEntry, 0, len(d.Trunk))
	revs := make(map[ident.RevisionTag]graph.SeqNumber, len(d.Trunk))
	head := g.Base()
	lastSeq := graph.SeqNumber(0)
	for i, tc := range d.Trunk {
		if tc.SequenceNumber < lastSeq {
			return fmt.Errorf("summary trunk commit %d out of order: %d after %d", i, tc.SequenceNumber, lastSeq)
		}
		if _, dup := revs[tc.Revision]; dup {
			return fmt.Errorf("summary trunk commit %d repeats revision %s", i, tc.Revision.Short())
		}
		id := g.Add(head, tc.Revision, tc.Session, tc.Change)
		g.Seal(id, tc.SequenceNumber)
		entries = append(entries, trunkEntry{id: id, seq: tc.SequenceNumber, revision: tc.Revision})
		revs[tc.Revision] = tc.SequenceNumber
		byRevision[tc.Revision] = id
		head = id
		lastSeq = tc.SequenceNumber
	}

	peers := make(map[ident.SessionID]*branch.Branch[T], len(d.Peers))
	for session, pb := range d.Peers {
		baseID, ok := byRevision[pb.Base]
		if !ok {
			return fmt.Errorf("peer %q is based on unknown revision %s", session, pb.Base.Short())
		}
		b := branch.New(g, baseID, session, m.rebaser, branch.Events[T]{})
		for _, pc := range pb.Commits {
			if err := b.Apply(pc.Change, pc.Revision); err != nil {
				return err
			}
		}
		peers[session] = b
	}

	floor := graph.SeqNumber(0)
	if len(entries) > 0 {
		floor = entries[0].seq - 1
	}

	m.g = g
	m.trunk = branch.New(g, head, m.session, m.rebaser, branch.Events[T]{})
	m.local = branch.New(g, g.Base(), m.session, m.rebaser, branch.Events[T]{})
	m.peers = peers
	m.entries = entries
	m.revs = revs
	m.floorSeq = floor
	m.minSeq = floor
	m.lastSeq = lastSeq
	return m.local.RebaseOntoCommit(head)
}

// ExtractSummary captures the retained trunk and peer branch state. The
// result round-trips through LoadSummaryData.
func (m *EditManager[T]) ExtractSummary() *summary.Data[T] {
	d := &summary.Data[T]{
		Base:  m.g.Get(m.g.Base()).Revision,
		Peers: make(map[ident.SessionID]summary.PeerBranch[T], len(m.peers)),
	}
	for _, e := range m.entries {
		c := m.g.Get(e.id)
		d.Trunk = append(d.Trunk, summary.TrunkCommit[T]{
			Commit:         summary.Commit[T]{Revision: c.Revision, Session: c.Session, Change: c.Change},
			SequenceNumber: e.seq,
		})
	}
	for session, pb := range m.peers {
		baseID, commits := m.unsequencedSuffix(pb)
		out := summary.PeerBranch[T]{Base: m.g.Get(baseID).Revision}
		for _, c := range commits {
			out.Commits = append(out.Commits, summary.Commit[T]{Revision: c.Revision, Session: c.Session, Change: c.Change})
		}
		d.Peers[session] = out
	}
	return d
}

// GetTrunkChanges returns the retained trunk changes, oldest first.
func (m *EditManager[T]) GetTrunkChanges() []T {
	out := make([]T, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, m.g.Get(e.id).Change)
	}
	return out
}

// GetTrunkCommits returns the retained trunk commits, oldest first.
func (m *EditManager[T]) GetTrunkCommits() []graph.Commit[T] {
	out := make([]graph.Commit[T], 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, m.g.Get(e.id))
	}
	return out
}

// GetLocalCommits returns this session's pending (unsequenced) commits,
// oldest first.
func (m *EditManager[T]) GetLocalCommits() []graph.Commit[T] {
	return m.localPending()
}

// GetLongestBranchLength returns the maximum number of commits between the
// oldest retained trunk commit and any branch tip. A growing value means a
// peer is lagging or the floor is not advancing.
func (m *EditManager[T]) GetLongestBranchLength() int {
	longest := 0
	consider := func(b *branch.Branch[T]) {
		baseID, divergent := m.unsequencedSuffix(b)
		n := len(divergent)
		for i, e := range m.entries {
			if e.id == baseID {
				n += i + 1
				break
			}
		}
		if n > longest {
			longest = n
		}
	}
	consider(m.local)
	for _, pb := range m.peers {
		consider(pb)
	}
	return longest
}

// unsequencedSuffix walks from the branch head to its nearest sequenced
// ancestor, returning that ancestor and the unsequenced commits above it,
// oldest first.
func (m *EditManager[T]) unsequencedSuffix(b *branch.Branch[T]) (graph.CommitID, []graph.Commit[T]) {
	var commits []graph.Commit[T]
	id := b.HeadID()
	for {
		c := m.g.Get(id)
		if c.SequenceNumber != graph.Unsequenced {
			break
		}
		commits = append(commits, c)
		id = c.Parent
	}
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return id, commits
}

func (m *EditManager[T]) localPending() []graph.Commit[T] {
	_, commits := m.unsequencedSuffix(m.local)
	return commits
}

// trunkAt returns the trunk commit representing the document state at the
// given sequence number: the newest retained trunk commit at or below it,
// or the base marker when everything at or below it has been evicted.
func (m *EditManager[T]) trunkAt(seq graph.SeqNumber) graph.CommitID {
	if seq < m.floorSeq {
		panic(fmt.Sprintf("editmgr: trunk position %d is below the eviction floor %d", seq, m.floorSeq))
	}
	i := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].seq > seq
	})
	if i == 0 {
		return m.g.Base()
	}
	return m.entries[i-1].id
}
