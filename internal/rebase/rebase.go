// Package rebase defines the change-algebra contract the edit graph is
// generic over.
//
// A Rebaser supplies the three operations every concrete change type must
// implement:
// - Rebase(change, over): transform change to apply after over
// - Invert(change): a change that composes with the original to a no-op
// - Compose(changes): fold a sequence of changes into one
//
// The laws the implementation must obey: rebasing A over B then applying it
// after B reaches the same state as applying A in B's absence would have;
// Compose(nil) yields a no-op change; Invert is a two-sided inverse under
// Compose. The graph, branch and editmgr packages never inspect change
// contents and propagate algebra errors unchanged.
package rebase

// Rebaser is the contract a concrete change algebra satisfies.
type Rebaser[T any] interface {
	// Rebase transforms change so that it applies after over, where change
	// and over share the same input context.
	Rebase(change, over T) (T, error)

	// Invert produces the inverse of change.
	Invert(change T) (T, error)

	// Compose folds changes, applied oldest first, into a single change.
	// An empty input yields the no-op change.
	Compose(changes []T) (T, error)
}

// Stats counts algebra calls. Used to verify fast-forward paths perform no
// rebase math and to pin the cost of the incremental rebase.
type Stats struct {
	Rebases  int
	Inverts  int
	Composes int
}

// Total returns the total number of algebra calls.
func (s Stats) Total() int {
	return s.Rebases + s.Inverts + s.Composes
}

// Counting wraps a Rebaser and records how often each operation runs.
type Counting[T any] struct {
	Inner Rebaser[T]
	Stats Stats
}

// NewCounting wraps inner with call counting.
func NewCounting[T any](inner Rebaser[T]) *Counting[T] {
	return &Counting[T]{Inner: inner}
}

// Reset zeroes the recorded counts.
func (c *Counting[T]) Reset() {
	c.Stats = Stats{}
}

// Rebase implements Rebaser.Rebase.
func (c *Counting[T]) Rebase(change, over T) (T, error) {
	c.Stats.Rebases++
	return c.Inner.Rebase(change, over)
}

// Invert implements Rebaser.Invert.
func (c *Counting[T]) Invert(change T) (T, error) {
	c.Stats.Inverts++
	return c.Inner.Invert(change)
}

// Compose implements Rebaser.Compose.
func (c *Counting[T]) Compose(changes []T) (T, error) {
	c.Stats.Composes++
	return c.Inner.Compose(changes)
}
