package thesis

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/zhou-shi/pentama-app/internal/core"
	"github.com/zhou-shi/pentama-app/internal/room"
)

var now = time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	repo     *memRepo
	rooms    *memRooms
	blobs    *memBlobs
	notifier *recordingNotifier
	a, b     Lecturer
	c, d, e  Lecturer
	student  primitive.ObjectID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		a:       lecturer("Dr. Andi", "M.T.", 0),
		b:       lecturer("Budi Santoso", "M.Kom.", 0),
		c:       lecturer("Citra", "Ph.D.", 2),
		d:       lecturer("Dewi", "M.Sc.", 0),
		e:       lecturer("Eko", "M.Kom.", 1),
		student: primitive.NewObjectID(),
	}
	fx.repo = newMemRepo(fx.a, fx.b, fx.c, fx.d, fx.e)
	fx.rooms = &memRooms{rooms: []*room.Room{
		{ID: primitive.NewObjectID(), Name: "Ruang Seminar 1", IsAvailable: true, UsageCount: 3},
		{ID: primitive.NewObjectID(), Name: "Ruang Seminar 2", IsAvailable: true, UsageCount: 1},
		{ID: primitive.NewObjectID(), Name: "Aula", IsAvailable: false},
	}}
	fx.blobs = newMemBlobs()
	fx.notifier = &recordingNotifier{}
	cal := Calendar{Location: time.UTC, LeadDays: 3, Hour: 9}
	fx.svc = NewService(fx.repo, fx.rooms, fx.blobs, fx.notifier, core.NewValidator(), cal, zap.NewNop(),
		WithClock(func() time.Time { return now }))
	return fx
}

func (fx *fixture) submission(kind Kind) Submission {
	return Submission{
		Kind:          kind,
		StudentID:     fx.student,
		StudentName:   "Siti",
		Title:         "Deteksi Intrusi Jaringan",
		ResearchField: "NIC",
		Supervisor1:   "Dr. Andi, M.T.",
		Supervisor2:   "Budi Santoso, M.Kom.",
		FileName:      "Proposal.PDF",
		ContentType:   "application/pdf",
		Content:       strings.NewReader("%PDF-1.4"),
	}
}

// completed stores a completed document of kind for the fixture student.
func (fx *fixture) completed(kind Kind, avg float64) *Document {
	doc := &Document{
		Kind:          kind,
		StudentID:     fx.student,
		Title:         "Deteksi Intrusi Jaringan",
		ResearchField: "NIC",
		Stage:         StageCompleted,
		SubmittedAt:   now.Add(-time.Hour),
		Supervisors:   Supervisors{Supervisor1: "Dr. Andi, M.T.", Supervisor2: "Budi Santoso, M.Kom.", Supervisor1ID: fx.a.ID, Supervisor2ID: fx.b.ID},
		Examiners:     Examiners{Examiner1: "Dewi, M.Sc.", Examiner2: "Eko, M.Kom.", Examiner1ID: fx.d.ID, Examiner2ID: fx.e.ID},
		AverageScore:  f(avg),
		Aggregated:    true,
	}
	return fx.repo.put(doc)
}

func TestService_SubmitProposal(t *testing.T) {
	fx := newFixture(t)

	doc, err := fx.svc.Submit(context.Background(), fx.submission(KindProposal))
	require.NoError(t, err)

	assert.Equal(t, StageSubmitted, doc.Stage)
	assert.Equal(t, fx.a.ID, doc.Supervisors.Supervisor1ID)
	assert.Equal(t, fx.b.ID, doc.Supervisors.Supervisor2ID)
	assert.Equal(t, fx.d.ID, doc.Examiners.Examiner1ID)
	assert.Equal(t, fx.e.ID, doc.Examiners.Examiner2ID)
	assert.Equal(t, "Ruang Seminar 2", doc.Schedule.RoomName)
	assert.Equal(t, time.Date(2024, 9, 5, 9, 0, 0, 0, time.UTC), doc.Schedule.At)
	assert.Equal(t, "09:00 UTC", doc.Schedule.Time)
	assert.True(t, strings.HasPrefix(doc.File.Key, "theses/proposal/"+fx.student.Hex()+"_"))
	assert.True(t, strings.HasSuffix(doc.File.Key, ".pdf"))

	assert.Equal(t, 2, fx.rooms.rooms[1].UsageCount)
	assert.Equal(t, 1, fx.repo.examinerCount(fx.d.ID))
	assert.Equal(t, 2, fx.repo.examinerCount(fx.e.ID))
	assert.Equal(t, 0, fx.repo.examinerCount(fx.a.ID), "supervisors are never counted")
	assert.NotNil(t, fx.repo.get(KindProposal, doc.ID))

	_, err = fx.svc.Submit(context.Background(), fx.submission(KindProposal))
	assert.Equal(t, ErrAlreadySubmitted, err)
	assert.Len(t, fx.blobs.objects, 1)
}

func TestService_SubmitProposal_UnknownSupervisor(t *testing.T) {
	fx := newFixture(t)
	sub := fx.submission(KindProposal)
	sub.Supervisor2 = "Prof. Nobody"

	_, err := fx.svc.Submit(context.Background(), sub)
	assert.Equal(t, ErrSupervisorNotFound, err)
	assert.Empty(t, fx.blobs.objects, "upload is removed when the transaction fails")
	assert.Empty(t, fx.repo.docs[KindProposal])
	assert.Equal(t, 1, fx.rooms.rooms[1].UsageCount)
}

func TestService_SubmitValidation(t *testing.T) {
	fx := newFixture(t)
	sub := fx.submission(KindProposal)
	sub.Title = ""
	sub.ResearchField = "XYZ"

	_, err := fx.svc.Submit(context.Background(), sub)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	fields := map[string]bool{}
	for _, fld := range vErr.Fields {
		fields[fld.Field] = true
	}
	assert.True(t, fields["title"])
	assert.True(t, fields["researchField"])
}

func TestService_ResubmissionReplacesRejected(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	first, err := fx.svc.Submit(ctx, fx.submission(KindProposal))
	require.NoError(t, err)
	fx.repo.docs[KindProposal][first.ID].Stage = StageRejected

	second, err := fx.svc.Submit(ctx, fx.submission(KindProposal))
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, StageSubmitted, second.Stage)
	assert.Nil(t, fx.repo.get(KindProposal, first.ID))
	assert.Len(t, fx.repo.docs[KindProposal], 1)
	assert.Contains(t, fx.blobs.deleted, first.File.Key)
	assert.NotContains(t, fx.blobs.objects, first.File.Key)

	// D and E were loaded by the first submission, so C (2) now ties with E (2)
	// behind D (1).
	assert.Equal(t, fx.d.ID, second.Examiners.Examiner1ID)
	assert.Equal(t, fx.c.ID, second.Examiners.Examiner2ID)
}

func TestService_SubmitHasil(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Submit(ctx, fx.submission(KindHasil))
	assert.Equal(t, ErrPreviousStageIncomplete, err)
	assert.Empty(t, fx.blobs.objects)

	proposal := fx.completed(KindProposal, 80)

	sub := fx.submission(KindHasil)
	sub.Supervisor1, sub.Supervisor2 = sub.Supervisor2, sub.Supervisor1
	_, err = fx.svc.Submit(ctx, sub)
	assert.Equal(t, ErrSupervisorMismatch, err)

	sub = fx.submission(KindHasil)
	sub.Title, sub.ResearchField = "Sistem Rekomendasi Film", "AES"
	_, err = fx.svc.Submit(ctx, sub)
	assert.Equal(t, ErrTopicMismatch, err)
	assert.Empty(t, fx.repo.docs[KindHasil])
	assert.Empty(t, fx.blobs.objects)

	sub = fx.submission(KindHasil)
	sub.Supervisor1 = "dr andi mt"
	sub.Title = "deteksi  intrusi jaringan"
	doc, err := fx.svc.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, "Deteksi Intrusi Jaringan", doc.Title)
	assert.Equal(t, "NIC", doc.ResearchField)
	require.NotNil(t, doc.ProposalID)
	assert.Equal(t, proposal.ID, *doc.ProposalID)
	assert.Equal(t, proposal.Examiners, doc.Examiners)
	assert.Equal(t, "Dr. Andi, M.T.", doc.Supervisors.Supervisor1)
	assert.Equal(t, 0, fx.repo.examinerCount(fx.d.ID), "examiner load only grows on proposals")
}

func TestService_SubmitSidangLinksLineage(t *testing.T) {
	fx := newFixture(t)
	proposal := fx.completed(KindProposal, 80)
	hasil := fx.completed(KindHasil, 82)
	hasil.ProposalID = &proposal.ID
	fx.repo.put(hasil)

	proposal.Title = "Deteksi Intrusi Jaringan Berbasis Anomali"
	fx.repo.put(proposal)
	_, err := fx.svc.Submit(context.Background(), fx.submission(KindSidang))
	assert.Equal(t, ErrTopicMismatch, err, "the proposal decides the topic, not the results document")

	sub := fx.submission(KindSidang)
	sub.Title = proposal.Title
	doc, err := fx.svc.Submit(context.Background(), sub)
	require.NoError(t, err)
	require.NotNil(t, doc.ResultsID)
	require.NotNil(t, doc.ProposalID)
	assert.Equal(t, hasil.ID, *doc.ResultsID)
	assert.Equal(t, proposal.ID, *doc.ProposalID)
}

func (fx *fixture) inProgress() *Document {
	return fx.repo.put(&Document{
		Kind:        KindProposal,
		StudentID:   fx.student,
		Stage:       StageInProgress,
		SubmittedAt: now.Add(-48 * time.Hour),
		Supervisors: Supervisors{Supervisor1ID: fx.a.ID, Supervisor2ID: fx.b.ID},
		Examiners:   Examiners{Examiner1ID: fx.d.ID, Examiner2ID: fx.e.ID},
		Schedule:    Schedule{At: now.Add(-time.Hour), RoomName: "Ruang Seminar 1"},
	})
}

func TestService_Evaluate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	doc := fx.inProgress()
	ev := Evaluation{Kind: KindProposal, DocumentID: doc.ID, Score: f(82.5), Feedback: "Bagus"}

	_, err := fx.svc.Evaluate(ctx, fx.c.ID, ev)
	assert.True(t, core.IsForbidden(err))

	updated, err := fx.svc.Evaluate(ctx, fx.d.ID, ev)
	require.NoError(t, err)
	assert.Equal(t, f(82.5), updated.Scores.Examiner1)
	assert.Equal(t, "Bagus", updated.Feedback.Examiner1)
	assert.Nil(t, updated.AverageScore)

	ev.Score = f(10)
	_, err = fx.svc.Evaluate(ctx, fx.d.ID, ev)
	assert.Equal(t, ErrScoreAlreadySet, err)
	assert.Equal(t, f(82.5), fx.repo.get(KindProposal, doc.ID).Scores.Examiner1)

	ev.Score = f(101)
	_, err = fx.svc.Evaluate(ctx, fx.a.ID, ev)
	assert.True(t, core.IsValidation(err))

	ev.Score = nil
	_, err = fx.svc.Evaluate(ctx, fx.a.ID, ev)
	assert.True(t, core.IsValidation(err))
}

func TestService_EvaluateOutsideSession(t *testing.T) {
	fx := newFixture(t)
	doc := fx.inProgress()
	fx.repo.docs[KindProposal][doc.ID].Stage = StageApproved

	_, err := fx.svc.Evaluate(context.Background(), fx.a.ID, Evaluation{Kind: KindProposal, DocumentID: doc.ID, Score: f(80)})
	assert.Equal(t, ErrNotEvaluable, err)
}

func TestService_ReviewApprove(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	doc, err := fx.svc.Submit(ctx, fx.submission(KindProposal))
	require.NoError(t, err)

	_, err = fx.svc.Apply(ctx, KindProposal, doc.ID, ApproveAction{})
	assert.True(t, core.IsConflict(err))

	got, err := fx.svc.Apply(ctx, KindProposal, doc.ID, ReviewAction{})
	require.NoError(t, err)
	assert.Equal(t, StageUnderReview, got.Stage)

	got, err = fx.svc.Apply(ctx, KindProposal, doc.ID, ApproveAction{})
	require.NoError(t, err)
	assert.Equal(t, StageApproved, got.Stage)

	assert.Equal(t, []stageEvent{{doc.ID, StageUnderReview}, {doc.ID, StageApproved}}, fx.notifier.events)
}

func TestService_ApproveRequiresPersonnel(t *testing.T) {
	fx := newFixture(t)
	doc := fx.repo.put(&Document{Kind: KindProposal, StudentID: fx.student, Stage: StageUnderReview,
		Supervisors: Supervisors{Supervisor1ID: fx.a.ID, Supervisor2ID: fx.b.ID}})

	_, err := fx.svc.Apply(context.Background(), KindProposal, doc.ID, ApproveAction{})
	assert.Equal(t, ErrPersonnelIncomplete, err)
}

func TestService_Reject(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	doc := fx.repo.put(&Document{Kind: KindHasil, StudentID: fx.student, Stage: StageUnderReview})

	_, err := fx.svc.Apply(ctx, KindHasil, doc.ID, RejectAction{})
	assert.True(t, core.IsValidation(err))

	got, err := fx.svc.Apply(ctx, KindHasil, doc.ID, RejectAction{Reason: "Format tidak sesuai"})
	require.NoError(t, err)
	assert.Equal(t, StageRejected, got.Stage)
	assert.Equal(t, "Format tidak sesuai", got.RejectionReason)
}

func TestService_Defer(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	doc := fx.inProgress()

	_, err := fx.svc.Apply(ctx, KindProposal, doc.ID, DeferAction{Reason: "Dosen berhalangan"})
	assert.True(t, core.IsValidation(err))

	got, err := fx.svc.Apply(ctx, KindProposal, doc.ID, DeferAction{Reason: "Dosen berhalangan", Duration: 90 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, StagePending, got.Stage)
	assert.Equal(t, now.Add(90*time.Minute), got.Schedule.At)
	assert.Equal(t, PendingRoomName, got.Schedule.RoomName)
	assert.True(t, got.Schedule.RoomID.IsZero())
	assert.Contains(t, got.AdminNotes, "Dosen berhalangan")
	assert.Contains(t, got.AdminNotes, "90 menit")

	_, err = fx.svc.Apply(ctx, KindProposal, doc.ID, DeferAction{Reason: "lagi", Duration: time.Hour})
	assert.True(t, core.IsConflict(err), "pending cannot be deferred again")
}

func TestService_Reschedule(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	doc := fx.inProgress()
	fx.repo.docs[KindProposal][doc.ID].Stage = StagePending
	target := fx.rooms.rooms[0]
	at := time.Date(2024, 9, 10, 2, 0, 0, 0, time.UTC)

	got, err := fx.svc.Apply(ctx, KindProposal, doc.ID, RescheduleAction{At: at, RoomID: target.ID})
	require.NoError(t, err)
	assert.Equal(t, StagePending, got.Stage)
	assert.Equal(t, at, got.Schedule.At)
	assert.Equal(t, target.Name, got.Schedule.RoomName)
	assert.Equal(t, target.ID, got.Schedule.RoomID)
	assert.Empty(t, fx.notifier.events)

	_, err = fx.svc.Apply(ctx, KindProposal, doc.ID, RescheduleAction{At: at, RoomID: primitive.NewObjectID()})
	assert.True(t, core.IsNotFound(err))

	fx.repo.docs[KindProposal][doc.ID].Stage = StageCompleted
	_, err = fx.svc.Apply(ctx, KindProposal, doc.ID, RescheduleAction{At: at})
	assert.Equal(t, ErrTerminalStage, err)
}

func TestService_ProgressAndVisibility(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	fx.completed(KindProposal, 80)
	hasil := fx.inProgress()
	hasil.Kind = KindHasil
	delete(fx.repo.docs[KindProposal], hasil.ID)
	fx.repo.put(hasil)

	p, err := fx.svc.Progress(ctx, fx.student)
	require.NoError(t, err)
	assert.Equal(t, "hasil", p.ActiveStage)
	assert.Equal(t, 59, p.Overall)

	_, err = fx.svc.Get(ctx, KindHasil, hasil.ID, fx.student, false)
	assert.NoError(t, err)
	_, err = fx.svc.Get(ctx, KindHasil, hasil.ID, fx.e.ID, false)
	assert.NoError(t, err)
	_, err = fx.svc.Get(ctx, KindHasil, hasil.ID, fx.c.ID, false)
	assert.Equal(t, ErrDocumentNotFound, err)
	_, err = fx.svc.Get(ctx, KindHasil, hasil.ID, fx.c.ID, true)
	assert.NoError(t, err)

	docs, err := fx.svc.List(ctx, KindHasil, ListFilter{ParticipantID: fx.a.ID})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	docs, err = fx.svc.List(ctx, KindHasil, ListFilter{ParticipantID: fx.c.ID})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestService_Involvement(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	submitted, err := fx.svc.HasSubmissions(ctx, fx.student)
	require.NoError(t, err)
	assert.False(t, submitted)

	fx.completed(KindProposal, 80)
	submitted, err = fx.svc.HasSubmissions(ctx, fx.student)
	require.NoError(t, err)
	assert.True(t, submitted)

	active, err := fx.svc.HasActiveAssignments(ctx, fx.d.ID)
	require.NoError(t, err)
	assert.False(t, active, "completed documents do not lock the examiner")

	hasil := fx.completed(KindHasil, 0)
	hasil.Stage, hasil.AverageScore, hasil.Aggregated = StageInProgress, nil, false
	fx.repo.put(hasil)

	active, err = fx.svc.HasActiveAssignments(ctx, fx.d.ID)
	require.NoError(t, err)
	assert.True(t, active)

	active, err = fx.svc.HasActiveAssignments(ctx, fx.c.ID)
	require.NoError(t, err)
	assert.False(t, active)
}
