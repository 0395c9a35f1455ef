package automation

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zhou-shi/pentama-app/internal/thesis"
)

// PenaltyFeedback is written next to a forced late-evaluation score.
const PenaltyFeedback = "Dosen tidak melakukan penilaian."

// Policy holds the tunables of one automation run.
type Policy struct {
	PenaltyScore float64
	Grace        time.Duration
}

// activeStages are the stages any pass can act on.
var activeStages = []thesis.Stage{
	thesis.StageSubmitted,
	thesis.StageUnderReview,
	thesis.StageApproved,
	thesis.StageInProgress,
	thesis.StagePending,
}

// Entry is one line of the per-document action trail.
type Entry struct {
	Kind    thesis.Kind `json:"kind"`
	ID      string      `json:"id"`
	Action  string      `json:"action"`
	Message string      `json:"message"`
}

const (
	ActionPromote   = "promote"
	ActionAggregate = "aggregate"
	ActionPenalize  = "penalize"
	ActionSkip      = "skip"
)

// Snapshot is the state one run plans against. ResultsAverages maps results
// document ids to their average score.
type Snapshot struct {
	Documents       map[thesis.Kind][]*thesis.Document
	ResultsAverages map[primitive.ObjectID]float64
}

// Plan is the batch a run wants to commit.
type Plan struct {
	Updates []thesis.Update
	Entries []Entry
	// Degraded lists defenses completed without a results average.
	Degraded []primitive.ObjectID
}

// Build runs the three passes over one snapshot. Every update is guarded on
// the state it was planned from, so committing the same plan twice changes
// nothing the second time.
func Build(now time.Time, snap Snapshot, policy Policy) Plan {
	var plan Plan
	for _, kind := range thesis.Kinds {
		docs := snap.Documents[kind]
		plan.promote(now, kind, docs)
		plan.aggregate(kind, docs, snap.ResultsAverages)
		plan.penalize(now, kind, docs, policy)
	}
	return plan
}

func (p *Plan) log(kind thesis.Kind, doc *thesis.Document, action, format string, args ...interface{}) {
	p.Entries = append(p.Entries, Entry{Kind: kind, ID: doc.ID.Hex(), Action: action, Message: fmt.Sprintf(format, args...)})
}

func (p *Plan) promote(now time.Time, kind thesis.Kind, docs []*thesis.Document) {
	for _, doc := range docs {
		if doc.Stage != thesis.StageApproved && doc.Stage != thesis.StagePending {
			continue
		}
		if doc.Schedule.At.IsZero() {
			p.log(kind, doc, ActionSkip, "no schedule on %s document", doc.Stage)
			continue
		}
		if !doc.Schedule.Due(now) {
			continue
		}
		to, err := thesis.Transition(kind, doc.Stage, thesis.TriggerScheduleElapsed, 0)
		if err != nil {
			continue
		}
		p.Updates = append(p.Updates, thesis.Update{
			Kind:        kind,
			ID:          doc.ID,
			StudentID:   doc.StudentID,
			ExpectStage: doc.Stage,
			Stage:       to,
		})
		p.log(kind, doc, ActionPromote, "%s -> %s, scheduled %s", doc.Stage, to, doc.Schedule.At.Format(time.RFC3339))
	}
}

func (p *Plan) aggregate(kind thesis.Kind, docs []*thesis.Document, resultsAverages map[primitive.ObjectID]float64) {
	for _, doc := range docs {
		if doc.Aggregated || !doc.Scores.Complete() {
			continue
		}
		var resultsAvg *float64
		if doc.ResultsID != nil {
			if avg, ok := resultsAverages[*doc.ResultsID]; ok {
				resultsAvg = &avg
			}
		}
		out, ok := thesis.Aggregate(doc, resultsAvg)
		if !ok {
			continue
		}
		outcome := out
		p.Updates = append(p.Updates, thesis.Update{
			Kind:        kind,
			ID:          doc.ID,
			StudentID:   doc.StudentID,
			ExpectStage: doc.Stage,
			Outcome:     &outcome,
		})
		if out.FinalScore != nil {
			p.log(kind, doc, ActionAggregate, "average %.2f, final %.2f, grade %s, %s", out.AverageScore, *out.FinalScore, out.Grade, out.Stage)
		} else {
			p.log(kind, doc, ActionAggregate, "average %.2f, grade %s, %s", out.AverageScore, out.Grade, out.Stage)
		}
		if out.Degraded {
			p.Degraded = append(p.Degraded, doc.ID)
		}
	}
}

func (p *Plan) penalize(now time.Time, kind thesis.Kind, docs []*thesis.Document, policy Policy) {
	for _, doc := range docs {
		if doc.Stage != thesis.StageInProgress {
			continue
		}
		if doc.Schedule.At.IsZero() {
			p.log(kind, doc, ActionSkip, "no schedule on in-progress document")
			continue
		}
		if now.Sub(doc.Schedule.At) <= policy.Grace {
			continue
		}
		missing := doc.Scores.Missing()
		if len(missing) == 0 {
			continue
		}
		u := thesis.Update{
			Kind:        kind,
			ID:          doc.ID,
			StudentID:   doc.StudentID,
			ExpectStage: thesis.StageInProgress,
			Scores:      map[thesis.Slot]float64{},
			Feedback:    map[thesis.Slot]string{},
		}
		for _, slot := range missing {
			u.Scores[slot] = policy.PenaltyScore
			u.Feedback[slot] = PenaltyFeedback
		}
		p.Updates = append(p.Updates, u)
		p.log(kind, doc, ActionPenalize, "forced %v to %.0f", missing, policy.PenaltyScore)
	}
}
