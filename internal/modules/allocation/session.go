package allocation

import (
	"errors"
	"sync"

	"github.com/ndewijer/investment-portfolio-manager/pkg/draftfilter"
)

// Mode is the state of an allocation session.
type Mode string

const (
	// ModeCreate - building a fresh allocation for one transaction
	ModeCreate Mode = "create"
	// ModeView - read-only display of persisted allocations, no row set
	ModeView Mode = "view"
	// ModeEdit - row set pre-seeded from persisted allocations
	ModeEdit Mode = "edit"
	// ModeBulk - one row set applied to a multi-transaction selection
	ModeBulk Mode = "bulk"
)

// ErrStaleResult is returned when an async result arrives for a session
// generation that has since been closed or reopened.
var ErrStaleResult = errors.New("allocation result is stale, session has changed")

// ExistingAllocation is one persisted allocation line, shown in view mode and
// converted to rows in edit mode.
type ExistingAllocation struct {
	PortfolioID   string  `json:"portfolioId"`
	PortfolioName string  `json:"portfolioName"`
	Percentage    float64 `json:"allocationPercentage"`
	Amount        float64 `json:"allocatedAmount"`
	Shares        float64 `json:"allocatedShares"`
	Commission    float64 `json:"allocatedCommission"`
}

// RowsFromExisting converts persisted allocation lines to editable rows.
func RowsFromExisting(existing []ExistingAllocation) RowSet {
	rows := make(RowSet, 0, len(existing))
	for _, alloc := range existing {
		rows = append(rows, Row{PortfolioID: alloc.PortfolioID, Percentage: alloc.Percentage})
	}
	return rows
}

// Session models one open allocation dialog: its mode, transient row set,
// cached persisted allocations, and (for bulk mode) the multi-transaction
// selection. All transitions are user-action driven.
//
// Every transition bumps a generation counter. Network results started under
// an older generation are rejected by Apply, which closes the stale-response
// race: there is no cancellation of in-flight eligibility checks, so a result
// can arrive after the dialog it belongs to was closed.
type Session struct {
	mu         sync.Mutex
	mode       Mode
	generation uint64
	rows       RowSet
	existing   []ExistingAllocation
	warnings   []string
	selection  *draftfilter.DraftFilter[[]string]
}

// NewSession creates a session in create mode with an empty selection.
func NewSession() *Session {
	return &Session{
		mode:      ModeCreate,
		selection: draftfilter.New[[]string](nil),
	}
}

// Mode returns the current session mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Generation returns the token async callers must present to Apply.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// BeginCreate opens the dialog for a fresh allocation with seeded rows.
func (s *Session) BeginCreate(rows RowSet, warnings ...string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.mode = ModeCreate
	s.rows = rows.Clone()
	s.existing = nil
	s.warnings = warnings
	return s.generation
}

// BeginView opens the dialog read-only over persisted allocations.
// No row set is constructed in view mode.
func (s *Session) BeginView(existing []ExistingAllocation) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.mode = ModeView
	s.rows = nil
	s.existing = existing
	s.warnings = nil
	return s.generation
}

// BeginEdit opens the dialog with rows pre-seeded from persisted allocations.
func (s *Session) BeginEdit(existing []ExistingAllocation) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.mode = ModeEdit
	s.existing = existing
	s.rows = RowsFromExisting(existing)
	s.warnings = nil
	return s.generation
}

// BeginBulk enters bulk mode over the committed selection and returns it.
// The selection draft is committed on entry; an empty selection is allowed
// and surfaces as a validation problem at submission time.
func (s *Session) BeginBulk(rows RowSet, warnings ...string) (uint64, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.mode = ModeBulk
	s.selection.Commit()
	s.rows = rows.Clone()
	s.existing = nil
	s.warnings = warnings
	return s.generation, s.selection.Committed()
}

// Close resets the session to create mode and clears the transient row set,
// the existing-allocations cache, and the bulk selection unless preserved.
func (s *Session) Close(preserveSelection bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.mode = ModeCreate
	s.rows = nil
	s.existing = nil
	s.warnings = nil
	if !preserveSelection {
		s.selection.Reset(nil)
	}
}

// Apply installs rows and warnings produced by an async eligibility check.
// Results from an older generation are discarded with ErrStaleResult.
func (s *Session) Apply(generation uint64, rows RowSet, warnings []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return ErrStaleResult
	}
	s.rows = rows.Clone()
	s.warnings = warnings
	return nil
}

// Rows returns a copy of the current row set.
func (s *Session) Rows() RowSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows.Clone()
}

// Existing returns the cached persisted allocations (view and edit modes).
func (s *Session) Existing() []ExistingAllocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ExistingAllocation, len(s.existing))
	copy(out, s.existing)
	return out
}

// Warnings returns the warning lines for the open dialog.
func (s *Session) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.warnings))
	copy(out, s.warnings)
	return out
}

// AddRow appends an empty row to the form.
func (s *Session) AddRow() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, Row{})
}

// RemoveRow deletes the row at index i; out-of-range indexes are ignored.
func (s *Session) RemoveRow(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.rows) {
		return
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
}

// SetRow updates the row at index i, clamping the percentage to [0, 100].
func (s *Session) SetRow(i int, portfolioID string, percentage float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.rows) {
		return
	}
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}
	s.rows[i] = Row{PortfolioID: portfolioID, Percentage: percentage}
}

// ApplyEqualDistribution runs the equal-split strategy over the current rows.
func (s *Session) ApplyEqualDistribution() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := DistributeEqually(s.rows)
	if err != nil {
		return err
	}
	s.rows = rows
	return nil
}

// ApplyDistributeRemaining runs the remainder strategy over the current rows.
func (s *Session) ApplyDistributeRemaining() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := DistributeRemaining(s.rows)
	if err != nil {
		return err
	}
	s.rows = rows
	return nil
}

// ToggleSelected adds or removes a transaction ID in the draft selection.
// The change only takes effect for bulk mode once BeginBulk commits it.
func (s *Session) ToggleSelected(transactionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Update(func(ids []string) []string {
		for i, id := range ids {
			if id == transactionID {
				return append(append([]string(nil), ids[:i]...), ids[i+1:]...)
			}
		}
		return append(append([]string(nil), ids...), transactionID)
	})
}

// DiscardSelection drops uncommitted selection changes.
func (s *Session) DiscardSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selection.Discard()
}

// Selection returns the draft selection.
func (s *Session) Selection() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.selection.Draft()...)
}
