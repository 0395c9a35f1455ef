package thesis

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Update is a guarded partial write on one document. The store applies it
// only while the document still matches the guards, so replaying an update
// never double-applies it.
type Update struct {
	Kind      Kind
	ID        primitive.ObjectID
	StudentID primitive.ObjectID

	// ExpectStage guards on the current stage when set.
	ExpectStage Stage
	Stage       Stage

	Schedule        *Schedule
	RejectionReason string
	AdminNotes      string

	// Scores are only written into slots that are still empty.
	Scores   map[Slot]float64
	Feedback map[Slot]string

	// Outcome is only written onto documents not yet aggregated.
	Outcome *Outcome
}

// StageChanged reports whether the update moves the document to a new stage.
func (u Update) StageChanged() bool {
	return u.Stage != "" && u.Stage != u.ExpectStage
}
