package app

import (
	"context"
)

// reconcileScope selects the slices refreshed after a committed mutation.
type reconcileScope uint8

const (
	reconcileTasks reconcileScope = 1 << iota
	reconcileProjects
	reconcileTeams

	reconcileAll = reconcileTasks | reconcileProjects | reconcileTeams
)

// reconcile refreshes scope in the background and runs after once the refresh finishes.
// Refresh failures are logged and never reported to the caller of the mutation.
func (s *Store) reconcile(ctx context.Context, m *mutation, scope reconcileScope, after func()) {
	m.enter(PhaseReconciling, nil)
	parent := context.WithoutCancel(ctx)
	s.background.Go(func() {
		rctx, cancel := context.WithTimeout(parent, s.reconcileTimeout)
		defer cancel()

		if scope&reconcileTeams != 0 {
			if err := s.RefreshTeams(rctx); err != nil {
				s.logger.Warn("reconcile refresh failed", "slice", "teams", "target_id", m.targetID, "err", err)
			}
		}
		if scope&reconcileProjects != 0 {
			if err := s.RefreshProjects(rctx); err != nil {
				s.logger.Warn("reconcile refresh failed", "slice", "projects", "target_id", m.targetID, "err", err)
			}
		}
		if scope&reconcileTasks != 0 {
			if err := s.RefreshTasks(rctx); err != nil {
				s.logger.Warn("reconcile refresh failed", "slice", "tasks", "target_id", m.targetID, "err", err)
			}
		}
		if after != nil {
			after()
		}
		m.enter(PhaseSettled, nil)
		if m.settled != nil {
			m.settled()
		}
	})
}
