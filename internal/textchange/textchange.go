// Package textchange implements a concrete change algebra over text:
// insert and delete operations with operational-transform rebasing.
//
// The engine's core is generic over any algebra satisfying the rebase
// contract; this one backs the demo CLI and the integration tests. Deletes
// carry the removed text so every change is invertible.
package textchange

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OpKind discriminates insert from delete.
type OpKind string

const (
	OpInsert OpKind = "ins"
	OpDelete OpKind = "del"
)

// Op is a single text operation.
type Op struct {
	Kind OpKind `json:"op"`
	Pos  int    `json:"pos"`
	Text string `json:"text"`
}

// Change is a sequence of operations applied in order.
type Change []Op

// Insert builds a single-op insertion change.
func Insert(pos int, text string) Change {
	return Change{{Kind: OpInsert, Pos: pos, Text: text}}
}

// Delete builds a single-op deletion change removing the given text.
func Delete(pos int, text string) Change {
	return Change{{Kind: OpDelete, Pos: pos, Text: text}}
}

// Apply applies the change to a document.
func Apply(doc string, change Change) (string, error) {
	for _, op := range change {
		if op.Text == "" {
			continue
		}
		switch op.Kind {
		case OpInsert:
			if op.Pos < 0 || op.Pos > len(doc) {
				return "", fmt.Errorf("insert at %d out of bounds (len %d)", op.Pos, len(doc))
			}
			doc = doc[:op.Pos] + op.Text + doc[op.Pos:]
		case OpDelete:
			end := op.Pos + len(op.Text)
			if op.Pos < 0 || end > len(doc) {
				return "", fmt.Errorf("delete at %d out of bounds (len %d)", op.Pos, len(doc))
			}
			if doc[op.Pos:end] != op.Text {
				return "", fmt.Errorf("delete mismatch at %d: document has %q, change removes %q", op.Pos, doc[op.Pos:end], op.Text)
			}
			doc = doc[:op.Pos] + doc[end:]
		default:
			return "", fmt.Errorf("unknown op kind %q", op.Kind)
		}
	}
	return doc, nil
}

// Family implements the rebase contract for text changes.
type Family struct{}

// Compose folds sequential changes into one by concatenation.
func (Family) Compose(changes []Change) (Change, error) {
	var out Change
	for _, c := range changes {
		out = append(out, c...)
	}
	return out, nil
}

// Invert reverses the change: ops in reverse order, each flipped.
func (Family) Invert(change Change) (Change, error) {
	out := make(Change, 0, len(change))
	for i := len(change) - 1; i >= 0; i-- {
		op := change[i]
		switch op.Kind {
		case OpInsert:
			out = append(out, Op{Kind: OpDelete, Pos: op.Pos, Text: op.Text})
		case OpDelete:
			out = append(out, Op{Kind: OpInsert, Pos: op.Pos, Text: op.Text})
		default:
			return nil, fmt.Errorf("unknown op kind %q", op.Kind)
		}
	}
	return out, nil
}

// Rebase transforms change so it applies after over, where both were
// authored against the same document state. The ops in over take priority
// on position ties, which keeps every replica's transform deterministic.
func (Family) Rebase(change, over Change) (Change, error) {
	if len(over) == 0 {
		return change, nil
	}
	base := make(Change, len(over))
	copy(base, over)

	out := make(Change, 0, len(change))
	for _, a := range change {
		for i := range base {
			a2, b2, err := transform(a, base[i])
			if err != nil {
				return nil, err
			}
			a, base[i] = a2, b2
		}
		if a.Text != "" {
			out = append(out, a)
		}
	}
	return out, nil
}

// transform derives the bottom two sides of the OT diamond for a single
// pair of ops authored against the same state, with b taking priority.
func transform(a, b Op) (Op, Op, error) {
	switch {
	case a.Kind == OpInsert && b.Kind == OpInsert:
		if a.Pos < b.Pos {
			b.Pos += len(a.Text)
		} else {
			a.Pos += len(b.Text)
		}
		return a, b, nil

	case a.Kind == OpInsert && b.Kind == OpDelete:
		return transformInsertDelete(a, b)

	case a.Kind == OpDelete && b.Kind == OpInsert:
		b2, a2, err := transformInsertDelete(b, a)
		return a2, b2, err

	case a.Kind == OpDelete && b.Kind == OpDelete:
		return transformDeleteDelete(a, b)
	}
	return Op{}, Op{}, errors.New("unknown op kind pair")
}

// transformInsertDelete handles an insert (ins) against a delete (del).
func transformInsertDelete(ins, del Op) (Op, Op, error) {
	delEnd := del.Pos + len(del.Text)
	switch {
	case ins.Pos <= del.Pos:
		// Insert before the deleted range; the delete shifts forward.
		del.Pos += len(ins.Text)
	case ins.Pos >= delEnd:
		// Insert after the deleted range; the insert shifts backward.
		ins.Pos -= len(del.Text)
	default:
		// Insert inside the deleted range: the delete expands to cover
		// the inserted text and the insert collapses.
		k := ins.Pos - del.Pos
		del.Text = del.Text[:k] + ins.Text + del.Text[k:]
		ins = Op{Kind: OpInsert, Pos: del.Pos, Text: ""}
	}
	return ins, del, nil
}

// transformDeleteDelete trims overlapping deletions so each side removes
// only what the other has not.
func transformDeleteDelete(a, b Op) (Op, Op, error) {
	aEnd := a.Pos + len(a.Text)
	bEnd := b.Pos + len(b.Text)
	switch {
	case aEnd <= b.Pos:
		b.Pos -= len(a.Text)
	case bEnd <= a.Pos:
		a.Pos -= len(b.Text)
	default:
		a2 := subtractRange(a, b.Pos, bEnd)
		b2 := subtractRange(b, a.Pos, aEnd)
		if a.Pos >= b.Pos {
			a2.Pos = b.Pos
		}
		if b.Pos >= a.Pos {
			b2.Pos = a.Pos
		}
		a, b = a2, b2
	}
	return a, b, nil
}

// subtractRange removes [from, to) from the span a delete covers.
func subtractRange(del Op, from, to int) Op {
	end := del.Pos + len(del.Text)
	var text string
	if del.Pos < from {
		text = del.Text[:from-del.Pos]
	}
	if end > to {
		text += del.Text[to-del.Pos:]
	}
	return Op{Kind: OpDelete, Pos: del.Pos, Text: text}
}

// Codec serializes changes as JSON for snapshots.
type Codec struct{}

// EncodeChange implements summary.ChangeCodec.
func (Codec) EncodeChange(change Change) ([]byte, error) {
	if len(change) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(change)
}

// DecodeChange implements summary.ChangeCodec.
func (Codec) DecodeChange(data []byte) (Change, error) {
	var change Change
	if err := json.Unmarshal(data, &change); err != nil {
		return nil, fmt.Errorf("decode change: %w", err)
	}
	if len(change) == 0 {
		return nil, nil
	}
	return change, nil
}
