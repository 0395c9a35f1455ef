package auth

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/zhou-shi/pentama-app/internal/core"
)

// NIMInfo is the academic data encoded in a student number.
type NIMInfo struct {
	Faculty        string `bson:"faculty" json:"faculty"`
	EducationLevel string `bson:"education_level" json:"educationLevel"`
	StudyProgram   string `bson:"study_program" json:"studyProgram"`
	ProgramType    string `bson:"program_type" json:"programType"`
	EnrollmentYear int    `bson:"enrollment_year" json:"enrollmentYear"`
	Semester       int    `bson:"semester" json:"semester"`
}

var (
	facultyCodes = map[byte]string{'H': "FMIPA"}
	levelCodes   = map[byte]string{'0': "Diploma", '1': "S1", '2': "S2", '3': "S3"}
	programTypes = map[byte]string{'1': "Reguler", '2': "Non-Reguler"}
	semesterCode = map[byte]string{'1': "Ganjil", '2': "Genap"}
	fmipaProdi   = map[string]string{
		"01": "Matematika",
		"02": "Fisika",
		"03": "Kimia",
		"04": "Biologi",
		"05": "Rekayasa Sistem Komputer",
		"07": "Ilmu Kelautan",
		"08": "Geofisika",
		"09": "Statistika",
		"10": "Sistem Informasi",
	}
)

func invalidNIM(msg string) error {
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: "nim", Error: msg})
}

// ParseNIM decodes a 10 character student number laid out as
// faculty(1) level(1) program(2) type(1) year(2) semester(1) sequence(2).
// The current semester is counted from the enrollment year, with odd
// semesters starting in August and even ones in February.
func ParseNIM(nim string, now time.Time) (NIMInfo, error) {
	if len(nim) != 10 {
		return NIMInfo{}, invalidNIM("NIM harus terdiri dari 10 karakter")
	}
	faculty, ok := facultyCodes[nim[0]]
	if !ok {
		return NIMInfo{}, invalidNIM("Saat ini hanya mendukung fakultas FMIPA (kode H)")
	}
	level, ok1 := levelCodes[nim[1]]
	prodi, ok2 := fmipaProdi[nim[2:4]]
	ptype, ok3 := programTypes[nim[4]]
	_, ok4 := semesterCode[nim[7]]
	year, err := strconv.Atoi(nim[5:7])
	if !ok1 || !ok2 || !ok3 || !ok4 || err != nil {
		return NIMInfo{}, invalidNIM("Format NIM tidak valid")
	}
	enrollment := 2000 + year

	diff := now.Year() - enrollment
	var semester int
	switch month := int(now.Month()); {
	case month >= 8:
		semester = diff*2 + 1
	case month >= 2:
		semester = diff*2 + 2
	default:
		semester = (diff-1)*2 + 1
	}
	if semester < 1 {
		semester = 1
	}

	return NIMInfo{
		Faculty:        faculty,
		EducationLevel: level,
		StudyProgram:   prodi,
		ProgramType:    ptype,
		EnrollmentYear: enrollment,
		Semester:       semester,
	}, nil
}
