package notification

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/auth"
	"github.com/zhou-shi/pentama-app/internal/config"
	"github.com/zhou-shi/pentama-app/internal/core"
	"github.com/zhou-shi/pentama-app/internal/thesis"
)

// Store persists scheduled broadcasts. NotificationRepository satisfies it.
type Store interface {
	CreateNotification(ctx context.Context, n *Notification) error
	GetPendingNotifications(ctx context.Context, now time.Time) ([]*Notification, error)
	UpdateNotificationStatus(ctx context.Context, id primitive.ObjectID, status string, sentTo []string) error
	ListNotifications(ctx context.Context, role string) ([]*Notification, error)
	DeleteNotification(ctx context.Context, id primitive.ObjectID) error
}

// Recipients resolves who receives an email. auth.UserRepository satisfies it.
type Recipients interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*auth.User, error)
	FindByRoles(ctx context.Context, roles []string) ([]*auth.User, error)
}

// NotificationService sends scheduled broadcasts and stage-change emails.
type NotificationService struct {
	store  Store
	mailer config.Mailer
	users  Recipients
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

func NewNotificationService(store Store, mailer config.Mailer, users Recipients, cfg *config.AppConfig, logger *zap.Logger) *NotificationService {
	loc := cfg.Schedule.Location
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationService{store: store, mailer: mailer, users: users, loc: loc, logger: logger.Named("notification"), now: time.Now}
}

// ScheduleNotification saves a broadcast to be sent at its send time.
func (s *NotificationService) ScheduleNotification(ctx context.Context, req ScheduleRequest, createdBy primitive.ObjectID) (*Notification, error) {
	now := s.now()
	if !req.SendTime.After(now) {
		return nil, core.NewValidationError(errors.New("send time must be in the future"),
			core.FieldError{Field: "sendTime", Error: "send time must be in the future"})
	}
	n := &Notification{
		ID:        primitive.NewObjectID(),
		Subject:   req.Subject,
		Message:   req.Message,
		SendTime:  req.SendTime.UTC(),
		Roles:     req.Roles,
		Status:    StatusScheduled,
		CreatedBy: createdBy,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if err := s.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// SendDueNotifications sends every broadcast whose send time has passed.
func (s *NotificationService) SendDueNotifications(ctx context.Context) {
	notifications, err := s.store.GetPendingNotifications(ctx, s.now())
	if err != nil {
		s.logger.Error("failed to fetch pending notifications", zap.Error(err))
		return
	}
	for _, n := range notifications {
		status := StatusSent
		sentTo, err := s.send(ctx, n)
		if err != nil {
			s.logger.Error("failed to send notification", zap.String("id", n.ID.Hex()), zap.Error(err))
			status = StatusFailed
		}
		if err := s.store.UpdateNotificationStatus(ctx, n.ID, status, sentTo); err != nil {
			s.logger.Warn("failed to record notification status", zap.String("id", n.ID.Hex()), zap.Error(err))
			continue
		}
		s.logger.Info("notification processed",
			zap.String("id", n.ID.Hex()), zap.String("status", status), zap.Int("recipients", len(sentTo)))
	}
}

func (s *NotificationService) send(ctx context.Context, n *Notification) ([]string, error) {
	users, err := s.users.FindByRoles(ctx, n.Roles)
	if err != nil {
		return nil, err
	}
	sentTo := []string{}
	for _, user := range users {
		if err := s.mailer.SendEmail(ctx, user.Email, n.Subject, n.Message); err != nil {
			s.logger.Warn("email failed", zap.String("to", user.Email), zap.Error(err))
			continue
		}
		sentTo = append(sentTo, user.Email)
	}
	return sentTo, nil
}

func (s *NotificationService) ListNotifications(ctx context.Context, role string) ([]*Notification, error) {
	return s.store.ListNotifications(ctx, role)
}

func (s *NotificationService) DeleteNotification(ctx context.Context, id primitive.ObjectID) error {
	return s.store.DeleteNotification(ctx, id)
}

var kindTitles = map[thesis.Kind]string{
	thesis.KindProposal: "Seminar Proposal",
	thesis.KindHasil:    "Seminar Hasil",
	thesis.KindSidang:   "Sidang Akhir",
}

var stageLabels = map[thesis.Stage]string{
	thesis.StageUnderReview: "sedang ditinjau",
	thesis.StageApproved:    "disetujui",
	thesis.StageInProgress:  "sedang berlangsung",
	thesis.StagePending:     "ditunda",
	thesis.StageRevision:    "perlu revisi",
	thesis.StageRejected:    "ditolak",
	thesis.StageCompleted:   "selesai",
}

// StageChanged emails the student that their document moved to a new stage.
// Delivery failures are logged only.
func (s *NotificationService) StageChanged(ctx context.Context, doc *thesis.Document, to thesis.Stage) {
	student, err := s.users.FindByID(ctx, doc.StudentID)
	if err != nil {
		s.logger.Warn("stage notification skipped", zap.String("document", doc.ID.Hex()), zap.Error(err))
		return
	}
	subject, body := s.stageEmail(doc, to)
	if err := s.mailer.SendEmail(ctx, student.Email, subject, body); err != nil {
		s.logger.Warn("stage notification failed", zap.String("document", doc.ID.Hex()), zap.Error(err))
	}
}

func (s *NotificationService) stageEmail(doc *thesis.Document, to thesis.Stage) (string, string) {
	title := kindTitles[doc.Kind]
	label, ok := stageLabels[to]
	if !ok {
		label = string(to)
	}
	subject := fmt.Sprintf("%s: status %s", title, label)
	body := fmt.Sprintf("<p>Status %s untuk judul <strong>%s</strong> kini <strong>%s</strong>.</p>",
		title, html.EscapeString(doc.Title), label)

	switch to {
	case thesis.StageApproved, thesis.StagePending:
		body += fmt.Sprintf("<p>Jadwal: %s, %s di %s.</p>",
			doc.Schedule.At.In(s.loc).Format("02/01/2006"), doc.Schedule.Time, html.EscapeString(doc.Schedule.RoomName))
	case thesis.StageRejected:
		body += fmt.Sprintf("<p>Alasan: %s</p>", html.EscapeString(doc.RejectionReason))
	case thesis.StageCompleted, thesis.StageRevision:
		if doc.AverageScore != nil {
			body += fmt.Sprintf("<p>Nilai rata-rata: %.2f (%s).</p>", *doc.AverageScore, doc.Grade)
		}
		if doc.FinalScore != nil {
			body += fmt.Sprintf("<p>Nilai akhir: %.2f.</p>", *doc.FinalScore)
		}
	}
	return subject, body
}
