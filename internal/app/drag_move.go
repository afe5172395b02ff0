package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/hylla/kalend/internal/domain"
)

// DragMoveState is the observable state of a drag-to-move gesture.
type DragMoveState struct {
	Active    bool
	Task      domain.Task
	Anchor    domain.Date
	DayOffset int
}

// DragMove relocates one task by whole days through the store's override layer.
type DragMove struct {
	store    *Store
	gestures *gestureClock

	mu    sync.Mutex
	state DragMoveState
	token *gestureToken
}

func newDragMove(s *Store) *DragMove {
	return &DragMove{store: s, gestures: &gestureClock{clock: s.clock, timeout: s.gestureTimeout}}
}

// Begin snapshots the task under the pointer after checking the actor may update it.
func (d *DragMove) Begin(ctx context.Context, taskID string, day domain.Date) error {
	s := d.store
	task, ok := s.Task(taskID)
	if !ok {
		return fmt.Errorf("task %q: %w", taskID, ErrNotFound)
	}
	project, err := s.projectFor(task.ProjectID)
	if err != nil {
		return err
	}
	if err := Authorize(s.actorFor(ctx), ActionUpdate, TaskResource(project)); err != nil {
		s.logger.Debug("drag move refused", "task_id", taskID, "err", err)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
	d.state = DragMoveState{Active: true, Task: task, Anchor: day}
	d.token = d.gestures.issue(d.expire)
	return nil
}

// Update shifts the pending override so the task follows the pointer to day.
// It reports whether the offset changed.
func (d *DragMove) Update(day domain.Date) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.liveLocked() {
		return false
	}
	offset := domain.DaysBetween(d.state.Anchor, day)
	if offset == d.state.DayOffset {
		return false
	}
	d.state.DayOffset = offset
	if offset == 0 {
		d.store.dropOverride(d.state.Task.ID)
	} else {
		d.store.setOverride(d.state.Task.Shifted(offset))
	}
	return true
}

// End releases the gesture. A non-zero offset is committed through UpdateTask and
// End returns once the follow-up refresh has settled or ctx is done.
// On failure the override is dropped, tasks are refetched and the error is returned.
func (d *DragMove) End(ctx context.Context) error {
	d.mu.Lock()
	if !d.liveLocked() {
		d.mu.Unlock()
		return ErrNoGesture
	}
	snapshot, offset := d.state.Task, d.state.DayOffset
	d.resetLocked()
	d.mu.Unlock()

	s := d.store
	if offset == 0 {
		s.dropOverride(snapshot.ID)
		return nil
	}

	moved := snapshot.Shifted(offset)
	settled := make(chan struct{})
	updated, err := s.updateTask(ctx, snapshot.ID, ReschedulePatch(moved.StartDate, moved.EndDate), func() { close(settled) })
	d.releaseOverride(snapshot.ID)
	if err != nil {
		if refreshErr := s.RefreshTasks(ctx); refreshErr != nil {
			s.logger.Warn("rollback refresh failed", "task_id", snapshot.ID, "err", refreshErr)
		}
		s.pushNotice(NoticeError, "Could not move "+snapshot.Title+": "+err.Error())
		return err
	}
	s.pushNotice(NoticeSuccess, fmt.Sprintf("Moved %s to %s", updated.Title, updated.StartDate))
	select {
	case <-settled:
	case <-ctx.Done():
	}
	return nil
}

// releaseOverride drops the override for taskID unless a newer gesture now holds that task.
func (d *DragMove) releaseOverride(taskID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state.Active && d.state.Task.ID == taskID {
		return
	}
	d.store.dropOverride(taskID)
}

// Abort discards the gesture and its override without a remote call.
func (d *DragMove) Abort() {
	d.mu.Lock()
	taskID := d.state.Task.ID
	active := d.state.Active
	d.resetLocked()
	d.mu.Unlock()
	if active {
		d.store.dropOverride(taskID)
	}
}

// State returns a snapshot of the gesture state.
func (d *DragMove) State() DragMoveState {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.liveLocked()
	out := d.state
	out.Task = out.Task.Clone()
	return out
}

// Active reports whether a move is in progress.
func (d *DragMove) Active() bool {
	return d.State().Active
}

// liveLocked reports whether the gesture is active, aborting it when its token expired.
func (d *DragMove) liveLocked() bool {
	if !d.state.Active {
		return false
	}
	if d.token.expired(d.gestures.now()) {
		taskID := d.state.Task.ID
		d.resetLocked()
		d.store.dropOverride(taskID)
		return false
	}
	return true
}

func (d *DragMove) resetLocked() {
	d.token.stop()
	d.token = nil
	d.state = DragMoveState{}
}

func (d *DragMove) expire(id uint64) {
	d.mu.Lock()
	if d.token == nil || d.token.id != id {
		d.mu.Unlock()
		return
	}
	taskID := d.state.Task.ID
	d.resetLocked()
	d.mu.Unlock()
	d.store.logger.Debug("drag move expired", "task_id", taskID)
	d.store.dropOverride(taskID)
}

func (s *Store) setOverride(task domain.Task) {
	s.mu.Lock()
	s.overrides[task.ID] = task
	s.mu.Unlock()
}

func (s *Store) dropOverride(taskID string) {
	s.mu.Lock()
	delete(s.overrides, taskID)
	s.mu.Unlock()
}

// PendingOverrides returns the number of tasks with an uncommitted position.
func (s *Store) PendingOverrides() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.overrides)
}
