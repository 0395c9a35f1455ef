package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhou-shi/pentama-app/internal/core"
)

func TestParseNIM(t *testing.T) {
	tests := []struct {
		name         string
		nim          string
		now          time.Time
		wantProgram  string
		wantYear     int
		wantSemester int
	}{
		{"eleven characters", "H1051211001", time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC), "", 0, 0},
		{"even semester", "H105121101", time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC), "Rekayasa Sistem Komputer", 2021, 4},
		{"odd semester", "H105121101", time.Date(2023, 9, 1, 0, 0, 0, 0, time.UTC), "Rekayasa Sistem Komputer", 2021, 5},
		{"january belongs to previous odd semester", "H110122101", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "Sistem Informasi", 2022, 3},
		{"never below one", "H101125101", time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), "Matematika", 2025, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := ParseNIM(tt.nim, tt.now)
			if tt.wantProgram == "" {
				assert.True(t, core.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "FMIPA", info.Faculty)
			assert.Equal(t, "S1", info.EducationLevel)
			assert.Equal(t, "Reguler", info.ProgramType)
			assert.Equal(t, tt.wantProgram, info.StudyProgram)
			assert.Equal(t, tt.wantYear, info.EnrollmentYear)
			assert.Equal(t, tt.wantSemester, info.Semester)
		})
	}
}

func TestParseNIM_Rejects(t *testing.T) {
	now := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC)
	for _, nim := range []string{"", "G105121101", "H405121101", "H106121101", "H105321101", "H10512130X", "H1051A1101"} {
		_, err := ParseNIM(nim, now)
		assert.Error(t, err, nim)
	}
}
