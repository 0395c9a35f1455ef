package auth

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleStudent  = "student"
	RoleLecturer = "lecturer"
	RoleAdmin    = "admin"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	Name         string             `bson:"name" json:"name"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	GoogleID     string             `bson:"google_id,omitempty" json:"-"`
	Role         string             `bson:"role" json:"role"`        // student or lecturer
	IsAdmin      bool               `bson:"is_admin" json:"isAdmin"` // Only set directly in the database
	Student      *StudentProfile    `bson:"student,omitempty" json:"student,omitempty"`
	Lecturer     *LecturerProfile   `bson:"lecturer,omitempty" json:"lecturer,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updatedAt"`
}

type StudentProfile struct {
	NIM           string `bson:"nim" json:"nim"`
	ResearchField string `bson:"research_field" json:"researchField"`
	NIMInfo       `bson:",inline"`
}

type LecturerProfile struct {
	NIDN           string `bson:"nidn,omitempty" json:"nidn,omitempty"`
	Position       string `bson:"position" json:"position"`
	AcademicTitle  string `bson:"academic_title" json:"academicTitle"`
	ExpertiseField string `bson:"expertise_field" json:"expertiseField"`
	ExaminerCount  int    `bson:"examiner_count" json:"examinerCount"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=student lecturer"`

	NIM           string `json:"nim" validate:"required_if=Role student"`
	ResearchField string `json:"researchField" validate:"required_if=Role student,omitempty,research_field"`

	NIDN           string `json:"nidn"`
	Position       string `json:"position"`
	AcademicTitle  string `json:"academicTitle" validate:"required_if=Role lecturer"`
	ExpertiseField string `json:"expertiseField" validate:"required_if=Role lecturer,omitempty,research_field"`
}

// Credential identifies a user by email or, for students, by NIM.
type Credential struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

type GoogleLoginRequest struct {
	IDToken string `json:"idToken" validate:"required"`
}

// UpdateProfileRequest carries the fields a user may change. Empty fields are left as they are.
type UpdateProfileRequest struct {
	Name           string `json:"name"`
	ResearchField  string `json:"researchField" validate:"omitempty,research_field"`
	AcademicTitle  string `json:"academicTitle"`
	Position       string `json:"position"`
	ExpertiseField string `json:"expertiseField" validate:"omitempty,research_field"`
}

type EditPermissions struct {
	CanEditResearchField bool `json:"canEditResearchField"`
	CanEditExpertise     bool `json:"canEditExpertise"`
}
