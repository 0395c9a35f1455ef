package notification

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/auth"
	"github.com/zhou-shi/pentama-app/internal/config"
	"github.com/zhou-shi/pentama-app/internal/core"
	"github.com/zhou-shi/pentama-app/internal/thesis"
)

var now = time.Date(2024, 9, 2, 3, 0, 0, 0, time.UTC)

type memStore struct {
	items map[primitive.ObjectID]*Notification
}

func (m *memStore) CreateNotification(_ context.Context, n *Notification) error {
	m.items[n.ID] = n
	return nil
}

func (m *memStore) GetPendingNotifications(_ context.Context, at time.Time) ([]*Notification, error) {
	var out []*Notification
	for _, n := range m.items {
		if n.Status == StatusScheduled && !n.SendTime.After(at) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *memStore) UpdateNotificationStatus(_ context.Context, id primitive.ObjectID, status string, sentTo []string) error {
	n, ok := m.items[id]
	if !ok || n.Status != StatusScheduled {
		return ErrNotificationNotFound
	}
	n.Status, n.SentTo = status, sentTo
	return nil
}

func (m *memStore) ListNotifications(context.Context, string) ([]*Notification, error) {
	return nil, nil
}

func (m *memStore) DeleteNotification(_ context.Context, id primitive.ObjectID) error {
	delete(m.items, id)
	return nil
}

type memUsers struct {
	users []*auth.User
}

func (m *memUsers) FindByID(_ context.Context, id primitive.ObjectID) (*auth.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) FindByRoles(_ context.Context, roles []string) ([]*auth.User, error) {
	var out []*auth.User
	for _, u := range m.users {
		for _, r := range roles {
			if u.Role == r || (r == auth.RoleAdmin && u.IsAdmin) {
				out = append(out, u)
				break
			}
		}
	}
	return out, nil
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
	fail map[string]bool
}

func (m *fakeMailer) SendEmail(_ context.Context, to, subject, body string) error {
	if m.fail[to] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func newTestService(t *testing.T, users ...*auth.User) (*NotificationService, *memStore, *fakeMailer) {
	t.Helper()
	store := &memStore{items: map[primitive.ObjectID]*Notification{}}
	mailer := &fakeMailer{fail: map[string]bool{}}
	wib, err := time.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	cfg := &config.AppConfig{Schedule: config.ScheduleConfig{Location: wib}}
	svc := NewNotificationService(store, mailer, &memUsers{users: users}, cfg, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, store, mailer
}

func TestScheduleAndSendDue(t *testing.T) {
	student := &auth.User{ID: primitive.NewObjectID(), Email: "siti@unhas.ac.id", Role: auth.RoleStudent}
	lecturer := &auth.User{ID: primitive.NewObjectID(), Email: "budi@unhas.ac.id", Role: auth.RoleLecturer}
	admin := &auth.User{ID: primitive.NewObjectID(), Email: "admin@unhas.ac.id", Role: auth.RoleLecturer, IsAdmin: true}
	svc, store, mailer := newTestService(t, student, lecturer, admin)
	ctx := context.Background()

	_, err := svc.ScheduleNotification(ctx, ScheduleRequest{Subject: "x", Message: "y", SendTime: now.Add(-time.Minute), Roles: []string{"student"}}, admin.ID)
	assert.True(t, core.IsValidation(err))

	n, err := svc.ScheduleNotification(ctx, ScheduleRequest{
		Subject: "Batas unggah", Message: "<p>Unggah proposal sebelum Jumat.</p>",
		SendTime: now.Add(time.Hour), Roles: []string{auth.RoleStudent, auth.RoleAdmin},
	}, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, n.Status)

	svc.SendDueNotifications(ctx)
	assert.Empty(t, mailer.sent, "not due yet")

	mailer.fail[admin.Email] = true
	svc.now = func() time.Time { return now.Add(2 * time.Hour) }
	svc.SendDueNotifications(ctx)

	got := store.items[n.ID]
	assert.Equal(t, StatusSent, got.Status)
	assert.Equal(t, []string{student.Email}, got.SentTo)
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "Batas unggah", mailer.sent[0].subject)

	svc.SendDueNotifications(ctx)
	assert.Len(t, mailer.sent, 1, "sent notifications are not resent")
}

func TestStageChanged(t *testing.T) {
	student := &auth.User{ID: primitive.NewObjectID(), Email: "siti@unhas.ac.id", Role: auth.RoleStudent}
	svc, _, mailer := newTestService(t, student)

	doc := &thesis.Document{
		ID:        primitive.NewObjectID(),
		Kind:      thesis.KindProposal,
		StudentID: student.ID,
		Title:     "Deteksi <Intrusi>",
		Schedule:  thesis.Schedule{At: time.Date(2024, 9, 9, 2, 0, 0, 0, time.UTC), Time: "09:00 WIB", RoomName: "Ruang Seminar 1"},
	}
	svc.StageChanged(context.Background(), doc, thesis.StageApproved)

	require.Len(t, mailer.sent, 1)
	mail := mailer.sent[0]
	assert.Equal(t, student.Email, mail.to)
	assert.Equal(t, "Seminar Proposal: status disetujui", mail.subject)
	assert.Contains(t, mail.body, "Deteksi &lt;Intrusi&gt;")
	assert.Contains(t, mail.body, "09/09/2024, 09:00 WIB di Ruang Seminar 1")

	doc.StudentID = primitive.NewObjectID()
	svc.StageChanged(context.Background(), doc, thesis.StageRejected)
	assert.Len(t, mailer.sent, 1, "unknown students are skipped")
}
