package app

import (
	"strings"
	"sync"
	"time"

	"github.com/hylla/kalend/internal/domain"
)

// DragCreateState is the observable state of a drag-to-create gesture.
type DragCreateState struct {
	Active      bool
	Anchor      domain.Date
	Current     domain.Date
	ScopeUserID string
}

// Selection is a normalized date range chosen by a drag-to-create gesture.
type Selection struct {
	Start       domain.Date
	End         domain.Date
	ScopeUserID string
}

// Days returns the inclusive number of selected days.
func (s Selection) Days() int {
	return domain.DaysBetween(s.Start, s.End) + 1
}

// Contains reports whether day is inside the selection.
func (s Selection) Contains(day domain.Date) bool {
	return !day.Before(s.Start) && !day.After(s.End)
}

// DragCreate tracks a pointer-driven date range selection. It never touches the remote.
type DragCreate struct {
	gestures *gestureClock

	mu    sync.Mutex
	state DragCreateState
	token *gestureToken
}

func newDragCreate(clock Clock, timeout time.Duration) *DragCreate {
	return &DragCreate{gestures: &gestureClock{clock: clock, timeout: timeout}}
}

// Begin starts a selection at day; scopeUserID optionally pins it to one user's row.
func (d *DragCreate) Begin(day domain.Date, scopeUserID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
	d.state = DragCreateState{
		Active:      true,
		Anchor:      day,
		Current:     day,
		ScopeUserID: strings.TrimSpace(scopeUserID),
	}
	d.token = d.gestures.issue(d.expire)
}

// Extend moves the selection end to day. Events from another user's row are ignored
// when the selection is scoped. It reports whether the selection changed.
func (d *DragCreate) Extend(day domain.Date, rowUserID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.liveLocked() {
		return false
	}
	if d.state.ScopeUserID != "" && strings.TrimSpace(rowUserID) != d.state.ScopeUserID {
		return false
	}
	if d.state.Current.Equal(day) {
		return false
	}
	d.state.Current = day
	return true
}

// Commit ends the gesture and returns the normalized selection.
func (d *DragCreate) Commit() (Selection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.liveLocked() {
		return Selection{}, false
	}
	sel := d.selectionLocked()
	d.resetLocked()
	return sel, true
}

// Cancel discards the selection.
func (d *DragCreate) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

// State returns a snapshot of the gesture state.
func (d *DragCreate) State() DragCreateState {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.liveLocked()
	return d.state
}

// Active reports whether a selection is in progress.
func (d *DragCreate) Active() bool {
	return d.State().Active
}

// Selection returns the normalized in-progress selection.
func (d *DragCreate) Selection() (Selection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.liveLocked() {
		return Selection{}, false
	}
	return d.selectionLocked(), true
}

func (d *DragCreate) selectionLocked() Selection {
	return Selection{
		Start:       domain.MinDate(d.state.Anchor, d.state.Current),
		End:         domain.MaxDate(d.state.Anchor, d.state.Current),
		ScopeUserID: d.state.ScopeUserID,
	}
}

// liveLocked reports whether the gesture is active, cancelling it when its token expired.
func (d *DragCreate) liveLocked() bool {
	if !d.state.Active {
		return false
	}
	if d.token.expired(d.gestures.now()) {
		d.resetLocked()
		return false
	}
	return true
}

func (d *DragCreate) resetLocked() {
	d.token.stop()
	d.token = nil
	d.state = DragCreateState{}
}

func (d *DragCreate) expire(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.token != nil && d.token.id == id {
		d.resetLocked()
	}
}
