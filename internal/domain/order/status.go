package order

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions lists the permitted moves out of each status.
var transitions = map[Status][]Status{
	StatusDraft:   {StatusOngoing, StatusCancelled},
	StatusOngoing: {StatusCompleted, StatusCancelled},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusOngoing, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InvalidTransitionError reports a disallowed status change.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move order from %s to %s", e.From, e.To)
}

// transition moves the order to next and stamps the matching timestamp.
func (o *Order) transition(next Status, now time.Time) error {
	if !o.Status.CanTransition(next) {
		return &InvalidTransitionError{From: o.Status, To: next}
	}
	if next == StatusOngoing && len(o.Items) == 0 {
		return ErrEmptyItems
	}

	o.Status = next
	switch next {
	case StatusOngoing:
		o.StartedAt = &now
	case StatusCompleted:
		o.CompletedAt = &now
	case StatusCancelled:
		o.CancelledAt = &now
	}
	return nil
}
