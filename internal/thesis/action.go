package thesis

import (
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zhou-shi/pentama-app/internal/core"
)

// Action is an administrative operation on a document. The set of actions is
// closed: ReviewAction, ApproveAction, RejectAction, DeferAction and
// RescheduleAction.
type Action interface {
	validate() error
}

// ReviewAction moves a submitted document under review.
type ReviewAction struct{}

// ApproveAction approves a reviewed document whose personnel is assigned.
type ApproveAction struct{}

// RejectAction rejects a reviewed document.
type RejectAction struct {
	Reason string
}

// DeferAction postpones an in-progress session by Duration.
type DeferAction struct {
	Reason   string
	Duration time.Duration
}

// RescheduleAction moves a session to At, optionally in another room.
type RescheduleAction struct {
	At     time.Time
	RoomID primitive.ObjectID
}

func (ReviewAction) validate() error  { return nil }
func (ApproveAction) validate() error { return nil }

func (a RejectAction) validate() error {
	if a.Reason == "" {
		return core.NewValidationError(errors.New("rejection requires a reason"),
			core.FieldError{Field: "reason", Error: "this field is required"})
	}
	return nil
}

func (a DeferAction) validate() error {
	var flds []core.FieldError
	if a.Reason == "" {
		flds = append(flds, core.FieldError{Field: "reason", Error: "this field is required"})
	}
	if a.Duration <= 0 {
		flds = append(flds, core.FieldError{Field: "durationMinutes", Error: "must be greater than zero"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("defer requires a reason and a duration"), flds...)
	}
	return nil
}

func (a RescheduleAction) validate() error {
	if a.At.IsZero() {
		return core.NewValidationError(errors.New("reschedule requires a date"),
			core.FieldError{Field: "at", Error: "this field is required"})
	}
	return nil
}
