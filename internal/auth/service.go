package auth

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/core"
)

var (
	ErrInvalidCredentials  = core.NewValidationError(errors.New("invalid credentials"))
	ErrResearchFieldLocked = core.NewForbiddenError("research field cannot be changed after the first submission")
	ErrExpertiseLocked     = core.NewForbiddenError("expertise field cannot be changed while supervising or examining an active document")
)

// Involvement reports a user's part in thesis documents. thesis.Service satisfies it.
type Involvement interface {
	HasSubmissions(ctx context.Context, studentID primitive.ObjectID) (bool, error)
	HasActiveAssignments(ctx context.Context, lecturerID primitive.ObjectID) (bool, error)
}

type UserService struct {
	repo        Users
	tokens      *TokenService
	google      GoogleVerifier
	involvement Involvement
	logger      *zap.Logger
	now         func() time.Time
}

func NewUserService(repo Users, tokens *TokenService, google GoogleVerifier, involvement Involvement, logger *zap.Logger) *UserService {
	return &UserService{repo: repo, tokens: tokens, google: google, involvement: involvement, logger: logger, now: time.Now}
}

// RegisterUser creates a student or lecturer account. Admin rights are never
// granted through registration.
func (s *UserService) RegisterUser(ctx context.Context, req RegisterRequest) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, ErrEmailRegistered
	} else if !core.IsNotFound(err) {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	now := s.now().UTC()
	user := &User{
		ID:           primitive.NewObjectID(),
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
		Role:         req.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	switch req.Role {
	case RoleStudent:
		nim := strings.ToUpper(strings.TrimSpace(req.NIM))
		info, err := ParseNIM(nim, s.now())
		if err != nil {
			return nil, err
		}
		if _, err := s.repo.FindByNIM(ctx, nim); err == nil {
			return nil, ErrNIMRegistered
		} else if !core.IsNotFound(err) {
			return nil, err
		}
		user.Student = &StudentProfile{NIM: nim, ResearchField: req.ResearchField, NIMInfo: info}
	case RoleLecturer:
		user.Lecturer = &LecturerProfile{
			NIDN:           req.NIDN,
			Position:       req.Position,
			AcademicTitle:  strings.TrimSpace(req.AcademicTitle),
			ExpertiseField: req.ExpertiseField,
		}
	default:
		return nil, core.NewValidationError(errors.Errorf("unknown role %q", req.Role),
			core.FieldError{Field: "role", Error: "role must be student or lecturer"})
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user", user.ID.Hex()), zap.String("role", user.Role))
	return user, nil
}

// AuthenticateUser checks a password login. The identifier is an email when it
// contains "@", otherwise a student NIM.
func (s *UserService) AuthenticateUser(ctx context.Context, cred Credential) (string, error) {
	var (
		user *User
		err  error
	)
	id := strings.TrimSpace(cred.Identifier)
	if strings.Contains(id, "@") {
		user, err = s.repo.FindByEmail(ctx, strings.ToLower(id))
	} else {
		user, err = s.repo.FindByNIM(ctx, strings.ToUpper(id))
	}
	if err != nil {
		if core.IsNotFound(err) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if user.PasswordHash == "" || !CheckPasswordHash(cred.Password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(user)
}

// AuthenticateGoogle signs in an already registered user with a Google ID
// token, linking the Google account on first use.
func (s *UserService) AuthenticateGoogle(ctx context.Context, idToken string) (string, error) {
	identity, err := s.google.VerifyIDToken(idToken)
	if err != nil {
		return "", err
	}
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(identity.Email))
	if err != nil {
		return "", err
	}
	if user.GoogleID == "" {
		if err := s.repo.LinkGoogleID(ctx, user.ID, identity.Subject); err != nil {
			return "", err
		}
		user.GoogleID = identity.Subject
	} else if user.GoogleID != identity.Subject {
		return "", ErrInvalidCredentials
	}
	return s.tokens.Issue(user)
}

func (s *UserService) Profile(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// EditPermissions tells the user which workflow-relevant profile fields they
// may change right now.
func (s *UserService) EditPermissions(ctx context.Context, id primitive.ObjectID) (EditPermissions, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return EditPermissions{}, err
	}
	return s.editPermissions(ctx, user)
}

func (s *UserService) editPermissions(ctx context.Context, user *User) (EditPermissions, error) {
	var perms EditPermissions
	switch user.Role {
	case RoleStudent:
		submitted, err := s.involvement.HasSubmissions(ctx, user.ID)
		if err != nil {
			return perms, err
		}
		perms.CanEditResearchField = !submitted
	case RoleLecturer:
		active, err := s.involvement.HasActiveAssignments(ctx, user.ID)
		if err != nil {
			return perms, err
		}
		perms.CanEditExpertise = !active
	}
	return perms, nil
}

// UpdateProfile changes the caller's own profile. A student's research field
// is fixed once they have submitted a document, and a lecturer's expertise is
// fixed while they take part in an active document.
func (s *UserService) UpdateProfile(ctx context.Context, id primitive.ObjectID, req UpdateProfileRequest) (*User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	perms, err := s.editPermissions(ctx, user)
	if err != nil {
		return nil, err
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	switch {
	case user.Student != nil:
		if req.ExpertiseField != "" || req.AcademicTitle != "" || req.Position != "" {
			return nil, core.NewValidationError(errors.New("lecturer fields on a student profile"),
				core.FieldError{Field: "expertiseField", Error: "only lecturers have an expertise field"})
		}
		if req.ResearchField != "" && req.ResearchField != user.Student.ResearchField {
			if !perms.CanEditResearchField {
				return nil, ErrResearchFieldLocked
			}
			user.Student.ResearchField = req.ResearchField
		}
	case user.Lecturer != nil:
		if req.ResearchField != "" {
			return nil, core.NewValidationError(errors.New("student fields on a lecturer profile"),
				core.FieldError{Field: "researchField", Error: "only students have a research field"})
		}
		if req.ExpertiseField != "" && req.ExpertiseField != user.Lecturer.ExpertiseField {
			if !perms.CanEditExpertise {
				return nil, ErrExpertiseLocked
			}
			user.Lecturer.ExpertiseField = req.ExpertiseField
		}
		if title := strings.TrimSpace(req.AcademicTitle); title != "" {
			user.Lecturer.AcademicTitle = title
		}
		if req.Position != "" {
			user.Lecturer.Position = req.Position
		}
	}

	user.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", zap.String("user", user.ID.Hex()))
	return user, nil
}
