package draftfilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommitPromotesDraft(t *testing.T) {
	f := New([]string{"a"})

	f.SetDraft([]string{"a", "b"})
	assert.Equal(t, []string{"a"}, f.Committed(), "committed unchanged until Commit")

	f.Commit()
	assert.Equal(t, []string{"a", "b"}, f.Committed())
}

func TestDiscardRestoresCommitted(t *testing.T) {
	f := New("pending")

	f.SetDraft("processed")
	f.Discard()

	assert.Equal(t, "pending", f.Draft())
	assert.Equal(t, "pending", f.Committed())
}

func TestUpdateMutatesDraftOnly(t *testing.T) {
	f := New(2)

	f.Update(func(v int) int { return v * 10 })

	assert.Equal(t, 20, f.Draft())
	assert.Equal(t, 2, f.Committed())
}

func TestReset(t *testing.T) {
	f := New("x")
	f.SetDraft("y")
	f.Commit()

	f.Reset("")

	assert.Equal(t, "", f.Draft())
	assert.Equal(t, "", f.Committed())
}
