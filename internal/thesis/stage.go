package thesis

import (
	"fmt"

	"github.com/zhou-shi/pentama-app/internal/core"
)

// Stage is the workflow status of one document.
type Stage string

const (
	StageSubmitted   Stage = "submitted"
	StageUnderReview Stage = "under-review"
	StageApproved    Stage = "approved"
	StageInProgress  Stage = "in-progress"
	StagePending     Stage = "pending"
	StageRevision    Stage = "revision"
	StageRejected    Stage = "rejected"
	StageCompleted   Stage = "completed"
)

// Trigger is the event that drives a stage transition.
type Trigger string

const (
	TriggerReview          Trigger = "review"
	TriggerApprove         Trigger = "approve"
	TriggerReject          Trigger = "reject"
	TriggerDefer           Trigger = "defer"
	TriggerScheduleElapsed Trigger = "schedule-elapsed"
	TriggerScored          Trigger = "scored"
)

// PassingAverage is the lowest proposal average that completes instead of
// sending the student to revision.
const PassingAverage = 70.0

type edge struct {
	from    Stage
	trigger Trigger
}

// transitions holds every legal move except TriggerScored, whose target
// depends on the document kind and average.
var transitions = map[edge]Stage{
	{StageSubmitted, TriggerReview}:         StageUnderReview,
	{StageUnderReview, TriggerApprove}:      StageApproved,
	{StageUnderReview, TriggerReject}:       StageRejected,
	{StageApproved, TriggerScheduleElapsed}: StageInProgress,
	{StagePending, TriggerScheduleElapsed}:  StageInProgress,
	{StageInProgress, TriggerDefer}:         StagePending,
}

// Transition returns the stage reached from `from` when trigger fires on a
// document of the given kind. average is only consulted for TriggerScored.
func Transition(kind Kind, from Stage, trigger Trigger, average float64) (Stage, error) {
	if trigger == TriggerScored {
		if from != StageInProgress {
			return "", illegal(kind, from, trigger)
		}
		if kind == KindProposal && average < PassingAverage {
			return StageRevision, nil
		}
		return StageCompleted, nil
	}
	to, ok := transitions[edge{from, trigger}]
	if !ok || !Supports(kind, to) {
		return "", illegal(kind, from, trigger)
	}
	return to, nil
}

// Supports reports whether documents of kind can ever be in stage.
func Supports(kind Kind, stage Stage) bool {
	switch stage {
	case StageSubmitted, StageUnderReview, StageApproved, StageInProgress,
		StagePending, StageRejected, StageCompleted:
		return true
	case StageRevision:
		return kind == KindProposal || kind == KindHasil
	}
	return false
}

// IsTerminal reports whether no further transition can leave stage.
func IsTerminal(stage Stage) bool {
	return stage == StageRejected || stage == StageCompleted
}

// Resubmittable reports whether a student may replace a document in stage
// with a fresh submission.
func Resubmittable(stage Stage) bool {
	return stage == StageRejected || stage == StageRevision
}

func illegal(kind Kind, from Stage, trigger Trigger) error {
	return core.NewConflictError(fmt.Sprintf("illegal transition: %s %s on %s", kind, from, trigger))
}

var progressTables = map[Kind]map[Stage]int{
	KindProposal: {
		StageSubmitted: 10, StageUnderReview: 30, StageApproved: 50, StageInProgress: 70,
		StagePending: 78, StageRevision: 85, StageCompleted: 100, StageRejected: 0,
	},
	KindHasil: {
		StageSubmitted: 10, StageUnderReview: 30, StageApproved: 55, StageInProgress: 80,
		StageRevision: 85, StageCompleted: 100, StageRejected: 0,
	},
	KindSidang: {
		StageSubmitted: 10, StageUnderReview: 30, StageApproved: 60, StageInProgress: 80,
		StageRevision: 85, StageCompleted: 100, StageRejected: 0,
	},
}

// Percent maps a document stage to its completion percentage. Results and
// defense documents deferred to pending keep their in-progress percentage.
func Percent(kind Kind, stage Stage) int {
	table, ok := progressTables[kind]
	if !ok {
		return 0
	}
	if pct, ok := table[stage]; ok {
		return pct
	}
	if stage == StagePending {
		return table[StageInProgress]
	}
	return 0
}
