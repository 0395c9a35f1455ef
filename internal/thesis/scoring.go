package thesis

import "math"

const (
	resultsWeight = 0.4
	defenseWeight = 0.6
)

// Round2 rounds half away from zero to two decimals. The epsilon absorbs
// binary artefacts such as 86.00499999 for a decimal 86.005.
func Round2(v float64) float64 {
	const eps = 1e-9
	if v < 0 {
		return -math.Round(-v*100+eps) / 100
	}
	return math.Round(v*100+eps) / 100
}

// Average returns the rounded mean of the four scores. ok is false unless all
// four are present.
func Average(s Scores) (avg float64, ok bool) {
	if !s.Complete() {
		return 0, false
	}
	sum := *s.Supervisor1 + *s.Supervisor2 + *s.Examiner1 + *s.Examiner2
	return Round2(sum / 4), true
}

// Grade maps a score to a letter grade; a nil score yields "N/A".
func Grade(score *float64) string {
	if score == nil {
		return "N/A"
	}
	switch v := *score; {
	case v >= 85:
		return "A"
	case v >= 75:
		return "B"
	case v >= 65:
		return "C"
	case v >= 55:
		return "D"
	default:
		return "E"
	}
}

// FinalScore weights the results seminar average against the defense average.
func FinalScore(resultsAverage, defenseAverage float64) float64 {
	return Round2(resultsWeight*resultsAverage + defenseWeight*defenseAverage)
}

// Outcome is what aggregation writes onto a document.
type Outcome struct {
	Stage        Stage    `bson:"stage"`
	AverageScore float64  `bson:"average_score"`
	Grade        string   `bson:"grade"`
	FinalScore   *float64 `bson:"final_score,omitempty"`
	// Degraded is set when a defense completed without a linked results average.
	Degraded bool `bson:"-"`
}

// Aggregate computes the outcome for a fully scored document. It reports false,
// and changes nothing, when the document was already aggregated, is missing a
// score, or is not in a stage the scored trigger may leave.
//
// resultsAverage is only used for defense documents; nil keeps the
// defense-only grade.
func Aggregate(doc *Document, resultsAverage *float64) (Outcome, bool) {
	if doc.Aggregated {
		return Outcome{}, false
	}
	avg, ok := Average(doc.Scores)
	if !ok {
		return Outcome{}, false
	}
	stage, err := Transition(doc.Kind, doc.Stage, TriggerScored, avg)
	if err != nil {
		return Outcome{}, false
	}
	out := Outcome{Stage: stage, AverageScore: avg, Grade: Grade(&avg)}
	if doc.Kind == KindSidang && stage == StageCompleted {
		if resultsAverage == nil {
			out.Degraded = true
			return out, true
		}
		final := FinalScore(*resultsAverage, avg)
		out.FinalScore = &final
		out.Grade = Grade(&final)
	}
	return out, true
}
