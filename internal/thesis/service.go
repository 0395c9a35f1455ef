package thesis

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/config"
	"github.com/zhou-shi/pentama-app/internal/core"
	"github.com/zhou-shi/pentama-app/internal/room"
	"github.com/zhou-shi/pentama-app/internal/storage"
)

// Repository is the document store behind the workflow. Methods called with
// the context handed to WithTransaction's callback take part in that
// transaction.
type Repository interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, doc *Document) error
	Delete(ctx context.Context, kind Kind, id primitive.ObjectID) error
	FindByID(ctx context.Context, kind Kind, id primitive.ObjectID) (*Document, error)
	// FindLatest returns the student's most recent document of kind, or nil.
	FindLatest(ctx context.Context, kind Kind, studentID primitive.ObjectID) (*Document, error)
	List(ctx context.Context, kind Kind, filter ListFilter) ([]*Document, error)
	Apply(ctx context.Context, u Update) error
	Roster(ctx context.Context, researchField string) ([]Lecturer, error)
	IncrementExaminerCount(ctx context.Context, ids []primitive.ObjectID) error
}

// Rooms is the room store used at submission and rescheduling time.
type Rooms interface {
	LeastUsed(ctx context.Context) (*room.Room, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*room.Room, error)
	IncrementUsage(ctx context.Context, id primitive.ObjectID) error
}

// Notifier is told about stage changes. Failures are the notifier's concern.
type Notifier interface {
	StageChanged(ctx context.Context, doc *Document, to Stage)
}

// ListFilter narrows document listings. Zero fields do not filter.
type ListFilter struct {
	StudentID     primitive.ObjectID
	ParticipantID primitive.ObjectID
	Stage         Stage
}

// Submission is a student's upload with the fields extracted from the file.
type Submission struct {
	Kind          Kind               `json:"kind" validate:"required,thesis_kind"`
	StudentID     primitive.ObjectID `json:"-"`
	StudentName   string             `json:"-"`
	Title         string             `json:"title" validate:"required"`
	ResearchField string             `json:"researchField" validate:"required,research_field"`
	Supervisor1   string             `json:"supervisor1" validate:"required"`
	Supervisor2   string             `json:"supervisor2" validate:"required"`
	FileName      string             `json:"file" validate:"required"`
	ContentType   string             `json:"-"`
	Content       io.Reader          `json:"-"`
}

// Evaluation is a lecturer's score for their own slot.
type Evaluation struct {
	Kind       Kind               `json:"kind" validate:"required,thesis_kind"`
	DocumentID primitive.ObjectID `json:"-"`
	Score      *float64           `json:"score" validate:"required,gte=0,lte=100"`
	Feedback   string             `json:"feedback"`
}

type Validator interface {
	Validate(i interface{}) error
}

// Service runs submissions, evaluations and admin actions.
type Service struct {
	repo     Repository
	rooms    Rooms
	blobs    storage.Store
	notifier Notifier
	validate Validator
	calendar Calendar
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, rooms Rooms, blobs storage.Store, notifier Notifier, validate Validator, calendar Calendar, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		rooms:    rooms,
		blobs:    blobs,
		notifier: notifier,
		validate: validate,
		calendar: calendar,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewCalendar builds the session calendar from config.
func NewCalendar(cfg *config.AppConfig) Calendar {
	return Calendar{Location: cfg.Schedule.Location, LeadDays: cfg.Schedule.LeadDays, Hour: cfg.Schedule.Hour}
}

// Submit stores a new document for the student. A previous rejected or
// revision document of the same kind is replaced: deleted together with its
// file, never merged.
func (s *Service) Submit(ctx context.Context, sub Submission) (*Document, error) {
	if err := s.validate.Validate(sub); err != nil {
		return nil, err
	}
	if sub.Content == nil {
		return nil, core.NewValidationError(errors.New("file is required"), core.FieldError{Field: "file", Error: "this field is required"})
	}
	if current, err := s.repo.FindLatest(ctx, sub.Kind, sub.StudentID); err != nil {
		return nil, err
	} else if current != nil && !Resubmittable(current.Stage) {
		return nil, ErrAlreadySubmitted
	}

	key := storage.NewKey("theses/"+string(sub.Kind), sub.StudentID.Hex(), sub.FileName)
	obj, err := s.blobs.Upload(ctx, key, sub.Content, sub.ContentType)
	if err != nil {
		return nil, err
	}

	now := s.now()
	doc := &Document{
		ID:            primitive.NewObjectID(),
		Kind:          sub.Kind,
		StudentID:     sub.StudentID,
		StudentName:   sub.StudentName,
		Title:         sub.Title,
		ResearchField: sub.ResearchField,
		File:          File{Name: sub.FileName, Key: obj.Key, URL: obj.URL},
		Stage:         StageSubmitted,
		SubmittedAt:   now.UTC(),
		UpdatedAt:     now.UTC(),
	}

	var replaced *Document
	err = s.repo.WithTransaction(ctx, func(ctx context.Context) error {
		replaced = nil

		// reads
		rm, err := s.rooms.LeastUsed(ctx)
		if err != nil {
			return err
		}
		var assignment Assignment
		if sub.Kind == KindProposal {
			roster, err := s.repo.Roster(ctx, sub.ResearchField)
			if err != nil {
				return err
			}
			if assignment, err = AssignPersonnel(sub.Supervisor1, sub.Supervisor2, roster); err != nil {
				return err
			}
		} else {
			prevKind, _ := sub.Kind.Previous()
			prev, err := s.repo.FindLatest(ctx, prevKind, sub.StudentID)
			if err != nil {
				return err
			}
			if prev == nil || prev.Stage != StageCompleted {
				return ErrPreviousStageIncomplete
			}
			if err := ValidateSupervisors(sub.Supervisor1, sub.Supervisor2, prev.Supervisors); err != nil {
				return err
			}
			proposal := prev
			if sub.Kind == KindSidang && prev.ProposalID != nil {
				if proposal, err = s.repo.FindByID(ctx, KindProposal, *prev.ProposalID); err != nil {
					return err
				}
			}
			if err := ValidateTopic(sub.Title, sub.ResearchField, proposal); err != nil {
				return err
			}
			doc.Title, doc.ResearchField = proposal.Title, proposal.ResearchField
			assignment = Assignment{Supervisors: prev.Supervisors, Examiners: prev.Examiners}
			switch sub.Kind {
			case KindHasil:
				doc.ProposalID = &prev.ID
			case KindSidang:
				doc.ProposalID = prev.ProposalID
				doc.ResultsID = &prev.ID
			}
		}
		current, err := s.repo.FindLatest(ctx, sub.Kind, sub.StudentID)
		if err != nil {
			return err
		}
		if current != nil && !Resubmittable(current.Stage) {
			return ErrAlreadySubmitted
		}

		doc.Supervisors = assignment.Supervisors
		doc.Examiners = assignment.Examiners
		doc.Schedule = s.calendar.Schedule(s.calendar.Default(now), rm.Name, rm.ID)

		// writes
		if current != nil {
			if err := s.repo.Delete(ctx, sub.Kind, current.ID); err != nil {
				return err
			}
		}
		if err := s.repo.Insert(ctx, doc); err != nil {
			return err
		}
		if err := s.rooms.IncrementUsage(ctx, rm.ID); err != nil {
			return err
		}
		if sub.Kind == KindProposal {
			if err := s.repo.IncrementExaminerCount(ctx, assignment.ExaminerIDs()); err != nil {
				return err
			}
		}
		replaced = current
		return nil
	})
	if err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), obj.Key); delErr != nil {
			s.logger.Error("failed to remove orphaned upload", zap.String("key", obj.Key), zap.Error(delErr))
		}
		return nil, err
	}

	if replaced != nil {
		if err := s.blobs.Delete(ctx, replaced.File.Key); err != nil {
			s.logger.Warn("failed to delete replaced file", zap.String("key", replaced.File.Key), zap.Error(err))
		}
		s.logger.Info("document resubmitted",
			zap.String("kind", string(sub.Kind)), zap.String("old", replaced.ID.Hex()), zap.String("new", doc.ID.Hex()))
	} else {
		s.logger.Info("document submitted", zap.String("kind", string(sub.Kind)), zap.String("id", doc.ID.Hex()))
	}
	return doc, nil
}

// Evaluate records a lecturer's score and feedback in their own slot. Each
// slot is written at most once.
func (s *Service) Evaluate(ctx context.Context, lecturerID primitive.ObjectID, ev Evaluation) (*Document, error) {
	if err := s.validate.Validate(ev); err != nil {
		return nil, err
	}
	doc, err := s.repo.FindByID(ctx, ev.Kind, ev.DocumentID)
	if err != nil {
		return nil, err
	}
	slot, ok := doc.SlotOf(lecturerID)
	if !ok {
		return nil, ErrNotParticipant
	}
	if doc.Scores.Get(slot) != nil {
		return nil, ErrScoreAlreadySet
	}
	if doc.Stage != StageInProgress {
		return nil, ErrNotEvaluable
	}

	u := Update{
		Kind:        doc.Kind,
		ID:          doc.ID,
		StudentID:   doc.StudentID,
		ExpectStage: StageInProgress,
		Scores:      map[Slot]float64{slot: *ev.Score},
		Feedback:    map[Slot]string{slot: ev.Feedback},
	}
	if err := s.repo.Apply(ctx, u); err != nil {
		if !errors.Is(err, ErrStaleDocument) {
			return nil, err
		}
		if cur, ferr := s.repo.FindByID(ctx, doc.Kind, doc.ID); ferr == nil && cur.Scores.Get(slot) == nil {
			return nil, ErrNotEvaluable
		}
		return nil, ErrScoreAlreadySet
	}
	s.logger.Info("evaluation submitted",
		zap.String("kind", string(doc.Kind)), zap.String("id", doc.ID.Hex()), zap.String("slot", string(slot)))
	return s.repo.FindByID(ctx, doc.Kind, doc.ID)
}

// Apply runs an admin action against a document.
func (s *Service) Apply(ctx context.Context, kind Kind, id primitive.ObjectID, action Action) (*Document, error) {
	if action == nil {
		return nil, core.NewValidationError(errors.New("action is required"))
	}
	if err := action.validate(); err != nil {
		return nil, err
	}
	doc, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	u := Update{Kind: kind, ID: id, StudentID: doc.StudentID, ExpectStage: doc.Stage}

	switch a := action.(type) {
	case ReviewAction:
		u.Stage, err = Transition(kind, doc.Stage, TriggerReview, 0)
	case ApproveAction:
		if !doc.PersonnelAssigned() {
			return nil, ErrPersonnelIncomplete
		}
		u.Stage, err = Transition(kind, doc.Stage, TriggerApprove, 0)
	case RejectAction:
		u.Stage, err = Transition(kind, doc.Stage, TriggerReject, 0)
		u.RejectionReason = a.Reason
	case DeferAction:
		u.Stage, err = Transition(kind, doc.Stage, TriggerDefer, 0)
		sched := s.calendar.Schedule(now.Add(a.Duration), PendingRoomName, primitive.NilObjectID)
		u.Schedule = &sched
		u.AdminNotes = fmt.Sprintf("Ditunda pada %s. Alasan: %s. Durasi: %d menit.",
			now.In(s.calendar.location()).Format("02/01/2006 15:04 MST"), a.Reason, int(a.Duration.Minutes()))
	case RescheduleAction:
		if IsTerminal(doc.Stage) {
			return nil, ErrTerminalStage
		}
		sched := doc.Schedule
		if !a.RoomID.IsZero() {
			rm, err := s.rooms.FindByID(ctx, a.RoomID)
			if err != nil {
				return nil, err
			}
			sched.RoomName, sched.RoomID = rm.Name, rm.ID
		}
		sched = s.calendar.Schedule(a.At, sched.RoomName, sched.RoomID)
		u.Schedule = &sched
	default:
		return nil, core.NewValidationError(errors.Errorf("unsupported action %T", action))
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.Apply(ctx, u); err != nil {
		return nil, err
	}
	s.logger.Info("admin action applied",
		zap.String("kind", string(kind)), zap.String("id", id.Hex()),
		zap.String("action", fmt.Sprintf("%T", action)), zap.String("from", string(doc.Stage)), zap.String("to", string(u.Stage)))

	updated, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if u.StageChanged() && s.notifier != nil {
		s.notifier.StageChanged(ctx, updated, u.Stage)
	}
	return updated, nil
}

// Progress computes the student's overall completion from their latest documents.
func (s *Service) Progress(ctx context.Context, studentID primitive.ObjectID) (Progress, error) {
	var docs [3]*Document
	for i, kind := range Kinds {
		doc, err := s.repo.FindLatest(ctx, kind, studentID)
		if err != nil {
			return Progress{}, err
		}
		docs[i] = doc
	}
	return CalcOverall(docs[0], docs[1], docs[2]), nil
}

// HasSubmissions reports whether the student has any document of any kind.
func (s *Service) HasSubmissions(ctx context.Context, studentID primitive.ObjectID) (bool, error) {
	for _, kind := range Kinds {
		doc, err := s.repo.FindLatest(ctx, kind, studentID)
		if err != nil {
			return false, err
		}
		if doc != nil {
			return true, nil
		}
	}
	return false, nil
}

// HasActiveAssignments reports whether the lecturer supervises or examines a
// document that is not yet rejected or completed.
func (s *Service) HasActiveAssignments(ctx context.Context, lecturerID primitive.ObjectID) (bool, error) {
	for _, kind := range Kinds {
		docs, err := s.repo.List(ctx, kind, ListFilter{ParticipantID: lecturerID})
		if err != nil {
			return false, err
		}
		for _, doc := range docs {
			if !IsTerminal(doc.Stage) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Service) List(ctx context.Context, kind Kind, filter ListFilter) ([]*Document, error) {
	return s.repo.List(ctx, kind, filter)
}

// Get returns a document the caller may see: its owner, one of its evaluators
// or an admin.
func (s *Service) Get(ctx context.Context, kind Kind, id, viewer primitive.ObjectID, isAdmin bool) (*Document, error) {
	doc, err := s.repo.FindByID(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if isAdmin || doc.StudentID == viewer {
		return doc, nil
	}
	if _, ok := doc.SlotOf(viewer); ok {
		return doc, nil
	}
	return nil, ErrDocumentNotFound
}
