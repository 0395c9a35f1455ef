package thesis

import (
	"bytes"
	"context"
	"io"
	"sort"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/zhou-shi/pentama-app/internal/room"
	"github.com/zhou-shi/pentama-app/internal/storage"
)

// memRepo mirrors the guarded-write semantics of MongoRepository in memory.
type memRepo struct {
	docs      map[Kind]map[primitive.ObjectID]*Document
	lecturers []Lecturer
}

func newMemRepo(lecturers ...Lecturer) *memRepo {
	return &memRepo{
		docs:      map[Kind]map[primitive.ObjectID]*Document{KindProposal: {}, KindHasil: {}, KindSidang: {}},
		lecturers: lecturers,
	}
}

func (m *memRepo) put(doc *Document) *Document {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	cp := *doc
	m.docs[doc.Kind][doc.ID] = &cp
	return doc
}

func (m *memRepo) get(kind Kind, id primitive.ObjectID) *Document {
	return m.docs[kind][id]
}

func (m *memRepo) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := map[Kind]map[primitive.ObjectID]Document{}
	for kind, docs := range m.docs {
		snapshot[kind] = map[primitive.ObjectID]Document{}
		for id, d := range docs {
			snapshot[kind][id] = *d
		}
	}
	lecturers := append([]Lecturer(nil), m.lecturers...)
	if err := fn(ctx); err != nil {
		for kind, docs := range snapshot {
			m.docs[kind] = map[primitive.ObjectID]*Document{}
			for id, d := range docs {
				d := d
				m.docs[kind][id] = &d
			}
		}
		m.lecturers = lecturers
		return err
	}
	return nil
}

func (m *memRepo) Insert(_ context.Context, doc *Document) error {
	m.put(doc)
	return nil
}

func (m *memRepo) Delete(_ context.Context, kind Kind, id primitive.ObjectID) error {
	if _, ok := m.docs[kind][id]; !ok {
		return ErrDocumentNotFound
	}
	delete(m.docs[kind], id)
	return nil
}

func (m *memRepo) FindByID(_ context.Context, kind Kind, id primitive.ObjectID) (*Document, error) {
	d, ok := m.docs[kind][id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memRepo) sorted(kind Kind, match func(*Document) bool) []*Document {
	out := []*Document{}
	for _, d := range m.docs[kind] {
		if match(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out
}

func (m *memRepo) FindLatest(_ context.Context, kind Kind, studentID primitive.ObjectID) (*Document, error) {
	docs := m.sorted(kind, func(d *Document) bool { return d.StudentID == studentID })
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (m *memRepo) List(_ context.Context, kind Kind, filter ListFilter) ([]*Document, error) {
	return m.sorted(kind, func(d *Document) bool {
		if !filter.StudentID.IsZero() && d.StudentID != filter.StudentID {
			return false
		}
		if !filter.ParticipantID.IsZero() {
			if _, ok := d.SlotOf(filter.ParticipantID); !ok {
				return false
			}
		}
		return filter.Stage == "" || d.Stage == filter.Stage
	}), nil
}

func (m *memRepo) Apply(_ context.Context, u Update) error {
	d, ok := m.docs[u.Kind][u.ID]
	if !ok {
		return ErrStaleDocument
	}
	if u.ExpectStage != "" && d.Stage != u.ExpectStage {
		return ErrStaleDocument
	}
	for slot := range u.Scores {
		if d.Scores.Get(slot) != nil {
			return ErrStaleDocument
		}
	}
	if u.Outcome != nil && d.Aggregated {
		return ErrStaleDocument
	}
	if u.Stage != "" {
		d.Stage = u.Stage
	}
	if u.Schedule != nil {
		d.Schedule = *u.Schedule
	}
	if u.RejectionReason != "" {
		d.RejectionReason = u.RejectionReason
	}
	if u.AdminNotes != "" {
		d.AdminNotes = u.AdminNotes
	}
	for slot, v := range u.Scores {
		d.Scores.Set(slot, v)
	}
	for slot, text := range u.Feedback {
		d.Feedback.Set(slot, text)
	}
	if o := u.Outcome; o != nil {
		avg := o.AverageScore
		d.Stage, d.AverageScore, d.Grade, d.Aggregated = o.Stage, &avg, o.Grade, true
		if o.FinalScore != nil {
			final := *o.FinalScore
			d.FinalScore = &final
		}
	}
	return nil
}

func (m *memRepo) Roster(_ context.Context, researchField string) ([]Lecturer, error) {
	out := []Lecturer{}
	for _, l := range m.lecturers {
		if l.ExpertiseField == researchField {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memRepo) IncrementExaminerCount(_ context.Context, ids []primitive.ObjectID) error {
	for _, id := range ids {
		for i := range m.lecturers {
			if m.lecturers[i].ID == id {
				m.lecturers[i].ExaminerCount++
			}
		}
	}
	return nil
}

func (m *memRepo) examinerCount(id primitive.ObjectID) int {
	for _, l := range m.lecturers {
		if l.ID == id {
			return l.ExaminerCount
		}
	}
	return -1
}

type memRooms struct {
	rooms []*room.Room
}

func (m *memRooms) LeastUsed(context.Context) (*room.Room, error) {
	var best *room.Room
	for _, r := range m.rooms {
		if r.IsAvailable && (best == nil || r.UsageCount < best.UsageCount) {
			best = r
		}
	}
	if best == nil {
		return nil, room.ErrNoRoomAvailable
	}
	cp := *best
	return &cp, nil
}

func (m *memRooms) FindByID(_ context.Context, id primitive.ObjectID) (*room.Room, error) {
	for _, r := range m.rooms {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, room.ErrRoomNotFound
}

func (m *memRooms) IncrementUsage(_ context.Context, id primitive.ObjectID) error {
	for _, r := range m.rooms {
		if r.ID == id {
			r.UsageCount++
			return nil
		}
	}
	return room.ErrRoomNotFound
}

type memBlobs struct {
	objects map[string][]byte
	deleted []string
}

func newMemBlobs() *memBlobs { return &memBlobs{objects: map[string][]byte{}} }

func (m *memBlobs) Upload(_ context.Context, key string, r io.Reader, _ string) (storage.Object, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return storage.Object{}, err
	}
	m.objects[key] = buf.Bytes()
	return storage.Object{Key: key, URL: "https://blobs.test/" + key}, nil
}

func (m *memBlobs) Delete(_ context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type stageEvent struct {
	ID primitive.ObjectID
	To Stage
}

type recordingNotifier struct {
	events []stageEvent
}

func (n *recordingNotifier) StageChanged(_ context.Context, doc *Document, to Stage) {
	n.events = append(n.events, stageEvent{ID: doc.ID, To: to})
}
