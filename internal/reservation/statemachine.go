package reservation

import (
	"fmt"

	"tablebook/internal/models"
)

type Action string

const (
	ActionApprove  Action = "approve"
	ActionDecline  Action = "decline"
	ActionCounter  Action = "counter"
	ActionArrive   Action = "arrive"
	ActionSeat     Action = "seat"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "noshow"
	ActionCancel   Action = "cancel"
)

// allowedSources lists every status an action may fire from. cancel is
// handled separately since it covers all non-terminal states.
var allowedSources = map[Action][]models.ReservationStatus{
	ActionApprove:  {models.ResPending, models.ResCounterOffered},
	ActionDecline:  {models.ResPending, models.ResCounterOffered},
	ActionCounter:  {models.ResPending},
	ActionArrive:   {models.ResApproved, models.ResConfirmed},
	ActionSeat:     {models.ResArrived, models.ResApproved, models.ResConfirmed},
	ActionComplete: {models.ResSeated},
	ActionNoShow:   {models.ResApproved, models.ResConfirmed, models.ResArrived},
}

// targetStatus maps each action to the status it lands in.
var targetStatus = map[Action]models.ReservationStatus{
	ActionApprove:  models.ResApproved,
	ActionDecline:  models.ResDeclined,
	ActionCounter:  models.ResCounterOffered,
	ActionArrive:   models.ResArrived,
	ActionSeat:     models.ResSeated,
	ActionComplete: models.ResCompleted,
	ActionNoShow:   models.ResNoShow,
	ActionCancel:   models.ResCancelled,
}

// InvalidTransitionError reports a guard violation: the attempted action
// and the status the reservation was in.
type InvalidTransitionError struct {
	Action  Action
	Current models.ReservationStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a reservation in status %q", e.Action, e.Current)
}

// ValidAction reports whether the action name is known.
func ValidAction(action Action) bool {
	_, ok := targetStatus[action]
	return ok
}

// CanTransition checks the guard for an action against a current status.
func CanTransition(action Action, current models.ReservationStatus) bool {
	if action == ActionCancel {
		// Any non-terminal state can cancel. completed/no_show/cancelled
		// are already excluded by being terminal.
		return !current.IsTerminal()
	}
	for _, allowed := range allowedSources[action] {
		if current == allowed {
			return true
		}
	}
	return false
}

// Target returns the status an action lands in.
func Target(action Action) models.ReservationStatus {
	return targetStatus[action]
}

// CheckTransition returns an InvalidTransitionError when the guard fails.
func CheckTransition(action Action, current models.ReservationStatus) error {
	if !ValidAction(action) {
		return &InvalidTransitionError{Action: action, Current: current}
	}
	if !CanTransition(action, current) {
		return &InvalidTransitionError{Action: action, Current: current}
	}
	return nil
}
