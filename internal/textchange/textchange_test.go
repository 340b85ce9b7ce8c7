package textchange

import (
	"reflect"
	"testing"
)

func mustApply(t *testing.T, doc string, change Change) string {
	t.Helper()
	out, err := Apply(doc, change)
	if err != nil {
		t.Fatalf("apply %v to %q: %v", change, doc, err)
	}
	return out
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		change Change
		want   string
	}{
		{"insert at start", "world", Insert(0, "hello "), "hello world"},
		{"insert at end", "hello", Insert(5, " world"), "hello world"},
		{"delete", "hello world", Delete(5, " world"), "hello"},
		{"multi op", "", Change{{Kind: OpInsert, Pos: 0, Text: "ab"}, {Kind: OpDelete, Pos: 1, Text: "b"}}, "a"},
		{"empty change", "doc", nil, "doc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mustApply(t, tt.doc, tt.change)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestApplyErrors(t *testing.T) {
	if _, err := Apply("abc", Insert(9, "x")); err == nil {
		t.Error("out-of-bounds insert should fail")
	}
	if _, err := Apply("abc", Delete(0, "zz")); err == nil {
		t.Error("delete of text not present should fail")
	}
	if _, err := Apply("abc", Delete(2, "cd")); err == nil {
		t.Error("delete past the end should fail")
	}
}

func TestInvertRoundTrip(t *testing.T) {
	f := Family{}
	docs := []struct {
		doc    string
		change Change
	}{
		{"hello", Insert(5, " world")},
		{"hello world", Delete(0, "hello ")},
		{"", Change{{Kind: OpInsert, Pos: 0, Text: "ab"}, {Kind: OpDelete, Pos: 0, Text: "a"}}},
	}
	for _, tt := range docs {
		after := mustApply(t, tt.doc, tt.change)
		inv, err := f.Invert(tt.change)
		if err != nil {
			t.Fatalf("invert: %v", err)
		}
		back := mustApply(t, after, inv)
		if back != tt.doc {
			t.Errorf("invert of %v: got %q back, want %q", tt.change, back, tt.doc)
		}
	}
}

func TestComposeMatchesSequentialApplication(t *testing.T) {
	f := Family{}
	c1 := Insert(0, "ab")
	c2 := Delete(1, "b")
	c3 := Insert(1, "xyz")

	composed, err := f.Compose([]Change{c1, c2, c3})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	step := mustApply(t, mustApply(t, mustApply(t, "", c1), c2), c3)
	all := mustApply(t, "", composed)
	if step != all {
		t.Errorf("composed application %q differs from sequential %q", all, step)
	}

	empty, err := f.Compose(nil)
	if err != nil {
		t.Fatalf("compose nil: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Compose(nil) = %v, want no-op change", empty)
	}
}

// rebaseCase checks the one direction the engine uses: over is sequenced
// first, change is transformed to apply after it. Both orders of authorship
// must land on the same document.
func rebaseCase(t *testing.T, doc string, change, over Change, want string) {
	t.Helper()
	f := Family{}
	rebased, err := f.Rebase(change, over)
	if err != nil {
		t.Fatalf("rebase %v over %v: %v", change, over, err)
	}
	got := mustApply(t, mustApply(t, doc, over), rebased)
	if got != want {
		t.Errorf("doc %q, %v rebased over %v: got %q, want %q", doc, change, over, got, want)
	}
}

func TestRebaseInsertOverInsert(t *testing.T) {
	// The sequenced insert wins position ties.
	rebaseCase(t, "", Insert(0, "A"), Insert(0, "B"), "BA")
	// Non-overlapping positions keep their relative order.
	rebaseCase(t, "xy", Insert(0, "A"), Insert(2, "B"), "AxyB")
	rebaseCase(t, "xy", Insert(2, "A"), Insert(0, "B"), "BxyA")
}

func TestRebaseInsertOverDelete(t *testing.T) {
	// Insert before the deleted range survives unmoved.
	rebaseCase(t, "abcd", Insert(0, "X"), Delete(1, "bc"), "Xad")
	// Insert after the deleted range shifts back.
	rebaseCase(t, "abcd", Insert(4, "X"), Delete(0, "ab"), "cdX")
	// Insert inside the deleted range collapses.
	f := Family{}
	rebased, err := f.Rebase(Insert(2, "X"), Delete(1, "bcd"))
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	if len(rebased) != 0 {
		t.Errorf("insert inside a deleted range should collapse, got %v", rebased)
	}
}

func TestRebaseDeleteOverInsert(t *testing.T) {
	// Insert lands inside the deleted range: the delete grows to cover it.
	f := Family{}
	rebased, err := f.Rebase(Delete(0, "ab"), Insert(1, "X"))
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	want := Delete(0, "aXb")
	if !reflect.DeepEqual(rebased, want) {
		t.Errorf("got %v, want %v", rebased, want)
	}
	rebaseCase(t, "abcd", Delete(0, "ab"), Insert(1, "X"), "cd")
}

func TestRebaseDeleteOverDelete(t *testing.T) {
	// Disjoint ranges shift.
	rebaseCase(t, "abcdef", Delete(4, "ef"), Delete(0, "ab"), "cd")
	rebaseCase(t, "abcdef", Delete(0, "ab"), Delete(4, "ef"), "cd")
	// Overlap: each side removes only what the other has not.
	rebaseCase(t, "abcdefg", Delete(2, "cde"), Delete(0, "abcd"), "fg")
	rebaseCase(t, "abcdefg", Delete(0, "abcd"), Delete(2, "cde"), "fg")
	// Identical deletes cancel out.
	f := Family{}
	rebased, err := f.Rebase(Delete(1, "bc"), Delete(1, "bc"))
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	if len(rebased) != 0 {
		t.Errorf("identical deletes should cancel, got %v", rebased)
	}
}

func TestRebaseOverEmpty(t *testing.T) {
	f := Family{}
	c := Insert(3, "x")
	rebased, err := f.Rebase(c, nil)
	if err != nil {
		t.Fatalf("rebase: %v", err)
	}
	if !reflect.DeepEqual(rebased, c) {
		t.Errorf("rebase over the no-op change altered %v to %v", c, rebased)
	}
}

func TestCodecRoundTrip(t *testing.T) {
	codec := Codec{}
	changes := []Change{
		nil,
		Insert(0, "hello"),
		Delete(2, "llo"),
		{{Kind: OpInsert, Pos: 0, Text: "a"}, {Kind: OpDelete, Pos: 0, Text: "a"}},
	}
	for _, c := range changes {
		data, err := codec.EncodeChange(c)
		if err != nil {
			t.Fatalf("encode %v: %v", c, err)
		}
		back, err := codec.DecodeChange(data)
		if err != nil {
			t.Fatalf("decode %v: %v", c, err)
		}
		if !reflect.DeepEqual(back, c) {
			t.Errorf("round trip of %v produced %v", c, back)
		}
	}
	if _, err := codec.DecodeChange([]byte("{broken")); err == nil {
		t.Error("malformed input should fail to decode")
	}
}
