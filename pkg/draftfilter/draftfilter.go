// Package draftfilter provides a small generic wrapper for "edit now, apply
// later" state: a draft value the user mutates freely and a committed value
// the rest of the system reads. Closing a picker either commits the draft or
// discards it, replacing the ad hoc parallel-variable pattern.
package draftfilter

// DraftFilter holds a draft and a committed value of the same type.
// The zero draft/committed distinction is the caller's concern; for slice and
// map types the caller should pass fresh values to SetDraft rather than
// mutating a value obtained from Draft.
type DraftFilter[T any] struct {
	draft     T
	committed T
}

// New creates a DraftFilter with both draft and committed set to initial.
func New[T any](initial T) *DraftFilter[T] {
	return &DraftFilter[T]{draft: initial, committed: initial}
}

// Draft returns the current draft value.
func (f *DraftFilter[T]) Draft() T {
	return f.draft
}

// SetDraft replaces the draft value without touching the committed one.
func (f *DraftFilter[T]) SetDraft(value T) {
	f.draft = value
}

// Update applies fn to the draft value.
func (f *DraftFilter[T]) Update(fn func(T) T) {
	f.draft = fn(f.draft)
}

// Committed returns the last committed value.
func (f *DraftFilter[T]) Committed() T {
	return f.committed
}

// Commit promotes the draft to the committed value.
func (f *DraftFilter[T]) Commit() {
	f.committed = f.draft
}

// Discard resets the draft back to the committed value.
func (f *DraftFilter[T]) Discard() {
	f.draft = f.committed
}

// Reset sets both draft and committed to value.
func (f *DraftFilter[T]) Reset(value T) {
	f.draft = value
	f.committed = value
}
