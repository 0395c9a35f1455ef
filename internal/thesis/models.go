package thesis

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies one of the three sequential thesis documents.
type Kind string

const (
	KindProposal Kind = "proposal"
	KindHasil    Kind = "hasil"  // results seminar
	KindSidang   Kind = "sidang" // final defense
)

// Kinds lists the document kinds in lineage order.
var Kinds = []Kind{KindProposal, KindHasil, KindSidang}

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindProposal, KindHasil, KindSidang:
		return Kind(s), true
	}
	return "", false
}

// Collection is the mongo collection holding documents of this kind.
func (k Kind) Collection() string {
	switch k {
	case KindHasil:
		return "results"
	case KindSidang:
		return "defenses"
	default:
		return "proposals"
	}
}

// Previous returns the kind that must be completed before k can be submitted.
func (k Kind) Previous() (Kind, bool) {
	switch k {
	case KindHasil:
		return KindProposal, true
	case KindSidang:
		return KindHasil, true
	}
	return "", false
}

// Slot names one of the four evaluator positions on a document.
type Slot string

const (
	SlotSupervisor1 Slot = "supervisor1"
	SlotSupervisor2 Slot = "supervisor2"
	SlotExaminer1   Slot = "examiner1"
	SlotExaminer2   Slot = "examiner2"
)

var Slots = []Slot{SlotSupervisor1, SlotSupervisor2, SlotExaminer1, SlotExaminer2}

// File points at the uploaded artifact in the blob store.
type File struct {
	Name string `bson:"name" json:"name"`
	Key  string `bson:"key" json:"key"`
	URL  string `bson:"url" json:"url"`
}

type Supervisors struct {
	Supervisor1   string             `bson:"supervisor1" json:"supervisor1"`
	Supervisor2   string             `bson:"supervisor2" json:"supervisor2"`
	Supervisor1ID primitive.ObjectID `bson:"supervisor1_id" json:"supervisor1Id"`
	Supervisor2ID primitive.ObjectID `bson:"supervisor2_id" json:"supervisor2Id"`
}

type Examiners struct {
	Examiner1   string             `bson:"examiner1" json:"examiner1"`
	Examiner2   string             `bson:"examiner2" json:"examiner2"`
	Examiner1ID primitive.ObjectID `bson:"examiner1_id" json:"examiner1Id"`
	Examiner2ID primitive.ObjectID `bson:"examiner2_id" json:"examiner2Id"`
}

// Schedule stores the session instant in UTC. Time is derived for display only.
type Schedule struct {
	At       time.Time          `bson:"at" json:"at"`
	Time     string             `bson:"time" json:"time"`
	RoomName string             `bson:"room_name" json:"roomName"`
	RoomID   primitive.ObjectID `bson:"room_id,omitempty" json:"roomId,omitempty"`
}

// Due reports whether the schedule instant has been reached.
// A zero instant is never due.
func (s Schedule) Due(now time.Time) bool {
	return !s.At.IsZero() && !s.At.After(now)
}

// Scores holds the four evaluator scores; nil means not yet submitted.
type Scores struct {
	Supervisor1 *float64 `bson:"supervisor1" json:"supervisor1"`
	Supervisor2 *float64 `bson:"supervisor2" json:"supervisor2"`
	Examiner1   *float64 `bson:"examiner1" json:"examiner1"`
	Examiner2   *float64 `bson:"examiner2" json:"examiner2"`
}

func (s *Scores) ref(slot Slot) **float64 {
	switch slot {
	case SlotSupervisor1:
		return &s.Supervisor1
	case SlotSupervisor2:
		return &s.Supervisor2
	case SlotExaminer1:
		return &s.Examiner1
	case SlotExaminer2:
		return &s.Examiner2
	}
	return nil
}

func (s Scores) Get(slot Slot) *float64 {
	if p := s.ref(slot); p != nil {
		return *p
	}
	return nil
}

func (s *Scores) Set(slot Slot, v float64) {
	if p := s.ref(slot); p != nil {
		*p = &v
	}
}

// Complete reports whether all four evaluators have scored.
func (s Scores) Complete() bool {
	return s.Supervisor1 != nil && s.Supervisor2 != nil && s.Examiner1 != nil && s.Examiner2 != nil
}

// Missing returns the slots that are still empty, in slot order.
func (s Scores) Missing() []Slot {
	var out []Slot
	for _, slot := range Slots {
		if s.Get(slot) == nil {
			out = append(out, slot)
		}
	}
	return out
}

type Feedback struct {
	Supervisor1 string `bson:"supervisor1" json:"supervisor1"`
	Supervisor2 string `bson:"supervisor2" json:"supervisor2"`
	Examiner1   string `bson:"examiner1" json:"examiner1"`
	Examiner2   string `bson:"examiner2" json:"examiner2"`
}

func (f *Feedback) Set(slot Slot, text string) {
	switch slot {
	case SlotSupervisor1:
		f.Supervisor1 = text
	case SlotSupervisor2:
		f.Supervisor2 = text
	case SlotExaminer1:
		f.Examiner1 = text
	case SlotExaminer2:
		f.Examiner2 = text
	}
}

// Document is one stage artifact of a student's thesis: a proposal, a results
// seminar or a final defense.
type Document struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Kind            Kind                `bson:"kind" json:"kind"`
	StudentID       primitive.ObjectID  `bson:"student_id" json:"studentId"`
	StudentName     string              `bson:"student_name" json:"studentName"`
	Title           string              `bson:"title" json:"title"`
	ResearchField   string              `bson:"research_field" json:"researchField"`
	File            File                `bson:"file" json:"file"`
	Stage           Stage               `bson:"stage" json:"stage"`
	Supervisors     Supervisors         `bson:"supervisors" json:"supervisors"`
	Examiners       Examiners           `bson:"examiners" json:"examiners"`
	Schedule        Schedule            `bson:"schedule" json:"schedule"`
	Scores          Scores              `bson:"scores" json:"scores"`
	Feedback        Feedback            `bson:"feedback" json:"feedback"`
	AverageScore    *float64            `bson:"average_score" json:"averageScore"`
	Grade           string              `bson:"grade" json:"grade"`
	FinalScore      *float64            `bson:"final_score,omitempty" json:"finalScore,omitempty"`
	Aggregated      bool                `bson:"aggregated" json:"aggregated"`
	ProposalID      *primitive.ObjectID `bson:"proposal_id,omitempty" json:"proposalId,omitempty"`
	ResultsID       *primitive.ObjectID `bson:"results_id,omitempty" json:"resultsId,omitempty"`
	RejectionReason string              `bson:"rejection_reason,omitempty" json:"rejectionReason,omitempty"`
	AdminNotes      string              `bson:"admin_notes,omitempty" json:"adminNotes,omitempty"`
	SubmittedAt     time.Time           `bson:"submitted_at" json:"submittedAt"`
	UpdatedAt       time.Time           `bson:"updated_at" json:"updatedAt"`
}

// SlotOf returns the evaluator slot held by the given lecturer on this document.
func (d *Document) SlotOf(lecturerID primitive.ObjectID) (Slot, bool) {
	if lecturerID.IsZero() {
		return "", false
	}
	switch lecturerID {
	case d.Supervisors.Supervisor1ID:
		return SlotSupervisor1, true
	case d.Supervisors.Supervisor2ID:
		return SlotSupervisor2, true
	case d.Examiners.Examiner1ID:
		return SlotExaminer1, true
	case d.Examiners.Examiner2ID:
		return SlotExaminer2, true
	}
	return "", false
}

// PersonnelAssigned reports whether both supervisors and both examiners are set.
func (d *Document) PersonnelAssigned() bool {
	return !d.Supervisors.Supervisor1ID.IsZero() && !d.Supervisors.Supervisor2ID.IsZero() &&
		!d.Examiners.Examiner1ID.IsZero() && !d.Examiners.Examiner2ID.IsZero()
}

// Lecturer is a roster entry used for supervisor matching and examiner selection.
type Lecturer struct {
	ID             primitive.ObjectID `bson:"_id"`
	Name           string             `bson:"name"`
	AcademicTitle  string             `bson:"academic_title"`
	ExpertiseField string             `bson:"expertise_field"`
	ExaminerCount  int                `bson:"examiner_count"`
}

// DisplayName renders the lecturer the way it is stored on documents.
func (l Lecturer) DisplayName() string {
	return l.Name + ", " + l.AcademicTitle
}
