package thesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zhou-shi/pentama-app/internal/core"
)

func lecturer(name, title string, count int) Lecturer {
	return Lecturer{ID: primitive.NewObjectID(), Name: name, AcademicTitle: title, ExpertiseField: "NIC", ExaminerCount: count}
}

func TestNormalizeName(t *testing.T) {
	want := "dr budi santoso mkom"
	for _, in := range []string{"Dr. Budi Santoso, M.Kom.", " dr budi   santoso , m.kom ", "DR. BUDI SANTOSO, M.KOM."} {
		assert.Equal(t, want, NormalizeName(in), in)
	}
	assert.Equal(t, want, NormalizeName("Dr. Budi Santoso", "M.Kom."))
}

func TestAssignPersonnel_PicksLeastLoadedExaminers(t *testing.T) {
	a := lecturer("Dr. Andi", "M.T.", 0)
	b := lecturer("Budi Santoso", "M.Kom.", 0)
	c := lecturer("Citra", "Ph.D.", 2)
	d := lecturer("Dewi", "M.Sc.", 0)
	e := lecturer("Eko", "M.Kom.", 1)

	got, err := AssignPersonnel("dr andi, mt", "BUDI SANTOSO, M.KOM.", []Lecturer{a, b, c, d, e})
	require.NoError(t, err)

	assert.Equal(t, a.ID, got.Supervisors.Supervisor1ID)
	assert.Equal(t, b.ID, got.Supervisors.Supervisor2ID)
	assert.Equal(t, "Dr. Andi, M.T.", got.Supervisors.Supervisor1)
	assert.Equal(t, "Budi Santoso, M.Kom.", got.Supervisors.Supervisor2)
	assert.Equal(t, d.ID, got.Examiners.Examiner1ID)
	assert.Equal(t, e.ID, got.Examiners.Examiner2ID)
	assert.Equal(t, "Dewi, M.Sc.", got.Examiners.Examiner1)
	assert.Equal(t, []primitive.ObjectID{d.ID, e.ID}, got.ExaminerIDs())
}

func TestAssignPersonnel_Failures(t *testing.T) {
	a := lecturer("Andi", "M.T.", 0)
	b := lecturer("Budi", "M.Kom.", 0)
	c := lecturer("Citra", "Ph.D.", 0)

	_, err := AssignPersonnel("Andi, M.T.", "Nobody, S.Kom.", []Lecturer{a, b, c})
	assert.Equal(t, ErrSupervisorNotFound, err)

	_, err = AssignPersonnel("Andi, M.T.", "Budi, M.Kom.", []Lecturer{a, b, c})
	assert.Equal(t, ErrInsufficientExaminers, err)

	_, err = AssignPersonnel("Andi, M.T.", "andi mt", []Lecturer{a, b, c})
	assert.True(t, core.IsValidation(err))

	twin := lecturer("Andi", "M.T.", 0)
	_, err = AssignPersonnel("Andi, M.T.", "Budi, M.Kom.", []Lecturer{a, twin, b, c})
	assert.Equal(t, ErrSupervisorNotFound, err, "ambiguous names do not match")

	_, err = AssignPersonnel("", "Budi, M.Kom.", []Lecturer{a, b, c})
	assert.Equal(t, ErrSupervisorNotFound, err)
}

func TestValidateSupervisors(t *testing.T) {
	recorded := Supervisors{Supervisor1: "Andi, M.T.", Supervisor2: "Budi, M.Kom."}
	assert.NoError(t, ValidateSupervisors("andi mt", "BUDI, M.KOM", recorded))
	assert.Equal(t, ErrSupervisorMismatch, ValidateSupervisors("Budi, M.Kom.", "Andi, M.T.", recorded))
	assert.Equal(t, ErrSupervisorMismatch, ValidateSupervisors("Andi, M.T.", "Citra", recorded))
}

func TestValidateTopic(t *testing.T) {
	proposal := &Document{Title: "Deteksi Intrusi Jaringan", ResearchField: "NIC"}
	assert.NoError(t, ValidateTopic("deteksi intrusi  jaringan", "nic", proposal))
	assert.Equal(t, ErrTopicMismatch, ValidateTopic("Sistem Rekomendasi Film", "NIC", proposal))
	assert.Equal(t, ErrTopicMismatch, ValidateTopic("Deteksi Intrusi Jaringan", "AES", proposal))
}
