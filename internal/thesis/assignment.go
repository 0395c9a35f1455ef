package thesis

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zhou-shi/pentama-app/internal/core"
)

var (
	ErrSupervisorNotFound    = core.NewConflictError("supervisor names do not match any lecturer in the research field")
	ErrInsufficientExaminers = core.NewConflictError("not enough lecturers available as examiners")
	ErrSupervisorMismatch    = core.NewConflictError("supervisors do not match the proposal")
	ErrTopicMismatch         = core.NewConflictError("title and research field must match the proposal")
	ErrDuplicateSupervisor   = core.NewValidationError(errors.New("supervisors must be two different lecturers"), core.FieldError{Field: "supervisor2", Error: "supervisors must be two different lecturers"})
)

var nameReplacer = strings.NewReplacer(".", "", ",", "")

// NormalizeName builds the comparison key for a lecturer name: parts are
// joined with a space, lower-cased, stripped of periods and commas and
// whitespace-collapsed.
func NormalizeName(parts ...string) string {
	s := strings.ToLower(strings.Join(parts, " "))
	s = nameReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Assignment is the personnel chosen for a proposal.
type Assignment struct {
	Supervisors Supervisors
	Examiners   Examiners
}

// ExaminerIDs returns the two examiners whose load counters must be bumped.
func (a Assignment) ExaminerIDs() []primitive.ObjectID {
	return []primitive.ObjectID{a.Examiners.Examiner1ID, a.Examiners.Examiner2ID}
}

// AssignPersonnel matches the two supervisor names against roster and picks
// the two least-loaded remaining lecturers as examiners. The roster is expected
// to be filtered to the student's research field already.
func AssignPersonnel(supervisor1, supervisor2 string, roster []Lecturer) (Assignment, error) {
	s1, err := matchOne(supervisor1, roster)
	if err != nil {
		return Assignment{}, err
	}
	s2, err := matchOne(supervisor2, roster)
	if err != nil {
		return Assignment{}, err
	}
	if s1.ID == s2.ID {
		return Assignment{}, ErrDuplicateSupervisor
	}

	candidates := make([]Lecturer, 0, len(roster))
	for _, l := range roster {
		if l.ID != s1.ID && l.ID != s2.ID {
			candidates = append(candidates, l)
		}
	}
	if len(candidates) < 2 {
		return Assignment{}, ErrInsufficientExaminers
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].ExaminerCount < candidates[j].ExaminerCount
	})
	e1, e2 := candidates[0], candidates[1]

	return Assignment{
		Supervisors: Supervisors{
			Supervisor1:   s1.DisplayName(),
			Supervisor2:   s2.DisplayName(),
			Supervisor1ID: s1.ID,
			Supervisor2ID: s2.ID,
		},
		Examiners: Examiners{
			Examiner1:   e1.DisplayName(),
			Examiner2:   e2.DisplayName(),
			Examiner1ID: e1.ID,
			Examiner2ID: e2.ID,
		},
	}, nil
}

func matchOne(name string, roster []Lecturer) (Lecturer, error) {
	key := NormalizeName(name)
	if key == "" {
		return Lecturer{}, ErrSupervisorNotFound
	}
	var found []Lecturer
	for _, l := range roster {
		if NormalizeName(l.Name, l.AcademicTitle) == key {
			found = append(found, l)
		}
	}
	if len(found) != 1 {
		return Lecturer{}, ErrSupervisorNotFound
	}
	return found[0], nil
}

// ValidateSupervisors checks the supervisor names given for a results or
// defense submission against the ones recorded on the proposal.
func ValidateSupervisors(supervisor1, supervisor2 string, recorded Supervisors) error {
	if NormalizeName(supervisor1) != NormalizeName(recorded.Supervisor1) ||
		NormalizeName(supervisor2) != NormalizeName(recorded.Supervisor2) {
		return ErrSupervisorMismatch
	}
	return nil
}

// ValidateTopic checks that a results or defense submission keeps the title
// and research field of its proposal.
func ValidateTopic(title, researchField string, proposal *Document) error {
	if NormalizeName(title) != NormalizeName(proposal.Title) ||
		!strings.EqualFold(strings.TrimSpace(researchField), proposal.ResearchField) {
		return ErrTopicMismatch
	}
	return nil
}
