package simplereview

import (
	"fmt"
	"time"
)

// canApprove checks the pending -> published edge.
func canApprove(state State) error {
	switch state {
	case StatePending:
		return nil
	case StatePublished:
		return fmt.Errorf("%w: script is already published (state: %s)", ErrInvalidState, state)
	case StateRejected, StateAbandoned:
		return fmt.Errorf("%w: only pending scripts can be approved (state: %s)", ErrInvalidState, state)
	default:
		return fmt.Errorf("%w: unknown state %s", ErrInvalidState, state)
	}
}

// canReject checks the pending -> rejected edge.
func canReject(state State) error {
	switch state {
	case StatePending:
		return nil
	case StateRejected:
		return fmt.Errorf("%w: script is already rejected (state: %s)", ErrInvalidState, state)
	case StatePublished, StateAbandoned:
		return fmt.Errorf("%w: only pending scripts can be rejected (state: %s)", ErrInvalidState, state)
	default:
		return fmt.Errorf("%w: unknown state %s", ErrInvalidState, state)
	}
}

// canResubmit checks the rejected -> pending edge.
func canResubmit(state State) error {
	switch state {
	case StateRejected:
		return nil
	case StatePending:
		return fmt.Errorf("%w: script is already awaiting review (state: %s)", ErrInvalidState, state)
	case StatePublished, StateAbandoned:
		return fmt.Errorf("%w: only rejected scripts can be resubmitted (state: %s)", ErrInvalidState, state)
	default:
		return fmt.Errorf("%w: unknown state %s", ErrInvalidState, state)
	}
}

// canAbandon checks the {pending, published, rejected} -> abandoned edge.
func canAbandon(state State) error {
	switch state {
	case StatePending, StatePublished, StateRejected:
		return nil
	case StateAbandoned:
		return fmt.Errorf("%w: script is already deleted (state: %s)", ErrInvalidState, state)
	default:
		return fmt.Errorf("%w: unknown state %s", ErrInvalidState, state)
	}
}

// canRestore checks the abandoned -> {published, pending, rejected} edges.
// An invalid target is a caller error, not a state error.
func canRestore(state, target State) error {
	switch target {
	case StatePublished, StatePending, StateRejected:
	default:
		return fmt.Errorf("%w: cannot restore to state %q", ErrInvalidArgument, target)
	}
	if state != StateAbandoned {
		return fmt.Errorf("%w: only deleted scripts can be restored (state: %s)", ErrInvalidState, state)
	}
	return nil
}

// canAddVersion checks whether new document versions may be attached.
// Published scripts are immutable; changes go through a new submission.
func canAddVersion(state State) error {
	switch state {
	case StatePending, StateRejected:
		return nil
	case StatePublished, StateAbandoned:
		return fmt.Errorf("%w: versions can only be added while a script is pending or rejected (state: %s)", ErrInvalidState, state)
	default:
		return fmt.Errorf("%w: unknown state %s", ErrInvalidState, state)
	}
}

// applyState sets the state and keeps PublishedAt consistent with it.
func applyState(script *Script, target State, now time.Time) {
	script.State = target
	if target == StatePublished {
		script.PublishedAt = &now
	} else {
		script.PublishedAt = nil
	}
	script.UpdatedAt = now
}
