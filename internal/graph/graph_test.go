package graph

import (
	"testing"

	"github.com/weftlab/weft/internal/ident"
)

func rev(b byte) ident.RevisionTag {
	var r ident.RevisionTag
	r[0] = b
	return r
}

func mustPanic(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	fn()
}

func TestNewGraphHasSealedBase(t *testing.T) {
	g := New[string](rev(0))
	base := g.Get(g.Base())
	if base.SequenceNumber != 0 {
		t.Errorf("base sequence number = %d, want 0", base.SequenceNumber)
	}
	if base.Parent != None {
		t.Errorf("base parent = %d, want None", base.Parent)
	}
	if base.Revision != rev(0) {
		t.Errorf("base revision = %s, want %s", base.Revision, rev(0))
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
}

func TestAddAndGet(t *testing.T) {
	g := New[string](rev(0))
	id := g.Add(g.Base(), rev(1), "s", "hello")
	c := g.Get(id)
	if c.Parent != g.Base() || c.Revision != rev(1) || c.Session != "s" || c.Change != "hello" {
		t.Errorf("unexpected commit view: %+v", c)
	}
	if c.SequenceNumber != Unsequenced {
		t.Errorf("new commit sequence number = %d, want Unsequenced", c.SequenceNumber)
	}
	if g.ChildCount(g.Base()) != 1 {
		t.Errorf("base child count = %d, want 1", g.ChildCount(g.Base()))
	}
}

func TestReleaseReclaimsUnsequencedChain(t *testing.T) {
	g := New[string](rev(0))
	c1 := g.Add(g.Base(), rev(1), "s", "a")
	c2 := g.Add(c1, rev(2), "s", "b")
	g.Retain(c2)

	g.Release(c2)
	if g.Contains(c1) || g.Contains(c2) {
		t.Fatal("unsequenced chain should be reclaimed after its last release")
	}
	if g.Len() != 1 {
		t.Errorf("Len() = %d, want 1", g.Len())
	}
	if g.ChildCount(g.Base()) != 0 {
		t.Errorf("base child count = %d, want 0", g.ChildCount(g.Base()))
	}
}

func TestSequencedNodesSurviveRelease(t *testing.T) {
	g := New[string](rev(0))
	c1 := g.Add(g.Base(), rev(1), "s", "a")
	g.Seal(c1, 1)
	c2 := g.Add(c1, rev(2), "s", "b")
	g.Retain(c2)

	g.Release(c2)
	if g.Contains(c2) {
		t.Error("unsequenced tip should be reclaimed")
	}
	if !g.Contains(c1) {
		t.Error("sequenced commit must survive release")
	}
}

func TestRetainedChildKeepsAncestryAlive(t *testing.T) {
	g := New[string](rev(0))
	c1 := g.Add(g.Base(), rev(1), "s", "a")
	c2 := g.Add(c1, rev(2), "s", "b")
	g.Retain(c1)
	g.Retain(c2)

	g.Release(c1)
	if !g.Contains(c1) {
		t.Fatal("commit with a live child must not be reclaimed")
	}
	g.Release(c2)
	if g.Contains(c1) || g.Contains(c2) {
		t.Fatal("chain should be reclaimed once the last head is gone")
	}
}

func TestSealTwicePanics(t *testing.T) {
	g := New[string](rev(0))
	c1 := g.Add(g.Base(), rev(1), "s", "a")
	g.Seal(c1, 1)
	mustPanic(t, func() { g.Seal(c1, 2) })
}

func TestReleaseUnretainedPanics(t *testing.T) {
	g := New[string](rev(0))
	c1 := g.Add(g.Base(), rev(1), "s", "a")
	g.Seal(c1, 1)
	mustPanic(t, func() { g.Release(c1) })
}

func TestAdvanceBase(t *testing.T) {
	g := New[string](rev(0))
	oldBase := g.Base()
	c1 := g.Add(oldBase, rev(1), "s", "a")
	g.Seal(c1, 1)
	c2 := g.Add(c1, rev(2), "s", "b")
	g.Seal(c2, 2)
	g.Retain(c2)

	g.AdvanceBase(c1)
	if g.Base() != c1 {
		t.Fatalf("base = %d, want %d", g.Base(), c1)
	}
	if g.Contains(oldBase) {
		t.Error("old base should be freed")
	}
	promoted := g.Get(c1)
	if promoted.Parent != None {
		t.Errorf("promoted base parent = %d, want None", promoted.Parent)
	}
	if promoted.Change != "" {
		t.Errorf("promoted base change = %q, want dropped", promoted.Change)
	}
	if promoted.Revision != rev(1) || promoted.SequenceNumber != 1 {
		t.Errorf("promoted base lost identity: %+v", promoted)
	}
}

func TestAdvanceBaseRejectsNonChild(t *testing.T) {
	g := New[string](rev(0))
	c1 := g.Add(g.Base(), rev(1), "s", "a")
	g.Seal(c1, 1)
	c2 := g.Add(c1, rev(2), "s", "b")
	g.Seal(c2, 2)
	g.Retain(c2)
	mustPanic(t, func() { g.AdvanceBase(c2) })
}

func TestAdvanceBaseRejectsRetainedBase(t *testing.T) {
	g := New[string](rev(0))
	c1 := g.Add(g.Base(), rev(1), "s", "a")
	g.Seal(c1, 1)
	g.Retain(c1)
	g.Retain(g.Base())
	mustPanic(t, func() { g.AdvanceBase(c1) })
}

func TestBaseBlocked(t *testing.T) {
	g := New[string](rev(0))
	if !g.BaseBlocked() {
		t.Error("base with no successor should block advancement")
	}
	c1 := g.Add(g.Base(), rev(1), "s", "a")
	g.Seal(c1, 1)
	g.Retain(c1)
	if g.BaseBlocked() {
		t.Error("base with a single successor and no refs should not block")
	}
	fork := g.Add(g.Base(), rev(2), "other", "x")
	g.Retain(fork)
	if !g.BaseBlocked() {
		t.Error("base with a divergent child should block")
	}
}
