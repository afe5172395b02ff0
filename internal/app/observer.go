package app

// MutationPhase is one step of a mutation's lifecycle.
type MutationPhase string

// MutationPhase values, in lifecycle order.
const (
	PhaseRequested         MutationPhase = "requested"
	PhasePermissionChecked MutationPhase = "permission_checked"
	PhaseDenied            MutationPhase = "denied"
	PhaseInFlight          MutationPhase = "in_flight"
	PhaseFailed            MutationPhase = "failed"
	PhaseCommitted         MutationPhase = "committed"
	PhaseReconciling       MutationPhase = "reconciling"
	PhaseSettled           MutationPhase = "settled"
)

// Terminal reports whether no further phase follows p.
func (p MutationPhase) Terminal() bool {
	return p == PhaseDenied || p == PhaseFailed || p == PhaseSettled
}

// MutationEvent reports a mutation entering a phase.
type MutationEvent struct {
	Action   Action
	Resource ResourceKind
	TargetID string
	Phase    MutationPhase
	Err      error
}

// MutationObserver receives mutation lifecycle events; it may be called from background goroutines.
type MutationObserver func(MutationEvent)

// mutation tracks one in-progress operation for observer and log reporting.
type mutation struct {
	store    *Store
	action   Action
	resource ResourceKind
	targetID string
	// settled runs after PhaseSettled has been observed.
	settled func()
}

func (s *Store) beginMutation(action Action, resource ResourceKind, targetID string) *mutation {
	m := &mutation{store: s, action: action, resource: resource, targetID: targetID}
	m.enter(PhaseRequested, nil)
	return m
}

func (m *mutation) enter(phase MutationPhase, err error) {
	keyvals := []any{"action", m.action, "resource", m.resource, "target_id", m.targetID, "phase", phase}
	switch phase {
	case PhaseDenied, PhaseFailed:
		m.store.logger.Warn("mutation rejected", append(keyvals, "err", err)...)
	default:
		m.store.logger.Debug("mutation phase", keyvals...)
	}
	if m.store.observer != nil {
		m.store.observer(MutationEvent{
			Action:   m.action,
			Resource: m.resource,
			TargetID: m.targetID,
			Phase:    phase,
			Err:      err,
		})
	}
}
