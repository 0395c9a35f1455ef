package thesis

import (
	"fmt"
	"math"
)

const (
	StatusCompleted  = "completed"
	StatusBlocked    = "blocked"
	StatusInProgress = "in-progress"
)

// Breakdown is the per-document completion percentage.
type Breakdown struct {
	Proposal int `json:"proposal"`
	Hasil    int `json:"hasil"`
	Sidang   int `json:"sidang"`
}

// Progress summarises how far a student is through the lineage.
type Progress struct {
	Overall     int       `json:"overall"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Breakdown   Breakdown `json:"breakdown"`
	ActiveStage string    `json:"activeStage"`
	FinalScore  *float64  `json:"finalScore,omitempty"`
}

// CalcOverall derives the overall percentage from the current proposal,
// results and defense documents. Any of them may be nil.
func CalcOverall(proposal, hasil, sidang *Document) Progress {
	stageOf := func(d *Document) Stage {
		if d == nil {
			return ""
		}
		return d.Stage
	}
	p := Progress{
		Breakdown: Breakdown{
			Proposal: Percent(KindProposal, stageOf(proposal)),
			Hasil:    Percent(KindHasil, stageOf(hasil)),
			Sidang:   Percent(KindSidang, stageOf(sidang)),
		},
		Status: StatusInProgress,
	}

	switch {
	case sidang != nil:
		p.ActiveStage = string(KindSidang)
		p.FinalScore = sidang.FinalScore
	case hasil != nil:
		p.ActiveStage = string(KindHasil)
	case proposal != nil:
		p.ActiveStage = string(KindProposal)
	default:
		p.ActiveStage = "none"
	}

	rejected := func(d *Document) bool { return stageOf(d) == StageRejected }

	switch {
	case stageOf(sidang) == StageCompleted:
		p.Overall = 100
		p.Status = StatusCompleted
		p.Message = "Selamat, Anda telah lulus!"
		return p
	case rejected(proposal) || rejected(hasil) || rejected(sidang):
		var sum float64
		if !rejected(proposal) {
			sum += float64(p.Breakdown.Proposal) / 100 * 0.33
		}
		if !rejected(hasil) {
			sum += float64(p.Breakdown.Hasil) / 100 * 0.33
		}
		p.Overall = int(math.Round(sum * 100))
		p.Status = StatusBlocked
		p.Message = "Ada tahapan yang ditolak."
	default:
		sum := float64(p.Breakdown.Proposal)/100*0.33 +
			float64(p.Breakdown.Hasil)/100*0.33 +
			float64(p.Breakdown.Sidang)/100*0.34
		p.Overall = int(math.Round(sum * 100))
		p.Message = fmt.Sprintf("%d%% menuju kelulusan", 100-p.Overall)
	}
	if p.Overall > 99 {
		p.Overall = 99
	}
	return p
}
