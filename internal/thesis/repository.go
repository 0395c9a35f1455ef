package thesis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zhou-shi/pentama-app/internal/config"
)

// MongoRepository stores each document kind in its own collection and reads
// the lecturer roster from users.
type MongoRepository struct {
	client *mongo.Client
	db     *mongo.Database
	users  *mongo.Collection
	now    func() time.Time
}

func NewMongoRepository(client *config.MongoDBClient) *MongoRepository {
	return &MongoRepository{
		client: client.Client,
		db:     client.Database,
		users:  client.GetCollection("users"),
		now:    time.Now,
	}
}

func (r *MongoRepository) collection(kind Kind) *mongo.Collection {
	return r.db.Collection(kind.Collection())
}

// WithTransaction runs fn inside a multi-document transaction. fn may be
// retried by the driver on transient errors.
func (r *MongoRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := r.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "start session")
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return nil, fn(sessCtx)
	})
	return err
}

func (r *MongoRepository) Insert(ctx context.Context, doc *Document) error {
	_, err := r.collection(doc.Kind).InsertOne(ctx, doc)
	return errors.Wrapf(err, "insert %s", doc.Kind)
}

func (r *MongoRepository) Delete(ctx context.Context, kind Kind, id primitive.ObjectID) error {
	res, err := r.collection(kind).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "delete %s", kind)
	}
	if res.DeletedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (r *MongoRepository) FindByID(ctx context.Context, kind Kind, id primitive.ObjectID) (*Document, error) {
	var doc Document
	err := r.collection(kind).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrDocumentNotFound
		}
		return nil, errors.Wrapf(err, "find %s", kind)
	}
	return &doc, nil
}

func (r *MongoRepository) FindLatest(ctx context.Context, kind Kind, studentID primitive.ObjectID) (*Document, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	var doc Document
	err := r.collection(kind).FindOne(ctx, bson.M{"student_id": studentID}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "find latest %s", kind)
	}
	return &doc, nil
}

func (r *MongoRepository) List(ctx context.Context, kind Kind, filter ListFilter) ([]*Document, error) {
	query := bson.M{}
	if !filter.StudentID.IsZero() {
		query["student_id"] = filter.StudentID
	}
	if !filter.ParticipantID.IsZero() {
		query["$or"] = bson.A{
			bson.M{"supervisors.supervisor1_id": filter.ParticipantID},
			bson.M{"supervisors.supervisor2_id": filter.ParticipantID},
			bson.M{"examiners.examiner1_id": filter.ParticipantID},
			bson.M{"examiners.examiner2_id": filter.ParticipantID},
		}
	}
	if filter.Stage != "" {
		query["stage"] = filter.Stage
	}
	return r.find(ctx, kind, query)
}

// FindByStages returns every document of kind currently in one of stages.
func (r *MongoRepository) FindByStages(ctx context.Context, kind Kind, stages ...Stage) ([]*Document, error) {
	return r.find(ctx, kind, bson.M{"stage": bson.M{"$in": stages}})
}

func (r *MongoRepository) find(ctx context.Context, kind Kind, query bson.M) ([]*Document, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cursor, err := r.collection(kind).Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", kind)
	}
	docs := []*Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrapf(err, "decode %s", kind)
	}
	return docs, nil
}

// Apply performs one guarded update. ErrStaleDocument means the guards no
// longer match.
func (r *MongoRepository) Apply(ctx context.Context, u Update) error {
	filter, update := r.build(u)
	res, err := r.collection(u.Kind).UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Wrapf(err, "update %s", u.Kind)
	}
	if res.MatchedCount == 0 {
		return ErrStaleDocument
	}
	return nil
}

// ApplyBatch applies updates atomically. If any guard fails the whole batch is
// rolled back and ErrStaleDocument is returned.
func (r *MongoRepository) ApplyBatch(ctx context.Context, updates []Update) error {
	if len(updates) == 0 {
		return nil
	}
	byKind := map[Kind][]mongo.WriteModel{}
	var order []Kind
	for _, u := range updates {
		filter, update := r.build(u)
		if _, ok := byKind[u.Kind]; !ok {
			order = append(order, u.Kind)
		}
		byKind[u.Kind] = append(byKind[u.Kind], mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(update))
	}
	return r.WithTransaction(ctx, func(ctx context.Context) error {
		for _, kind := range order {
			models := byKind[kind]
			res, err := r.collection(kind).BulkWrite(ctx, models, options.BulkWrite().SetOrdered(true))
			if err != nil {
				return errors.Wrapf(err, "bulk update %s", kind)
			}
			if res.MatchedCount < int64(len(models)) {
				return ErrStaleDocument
			}
		}
		return nil
	})
}

func (r *MongoRepository) build(u Update) (bson.M, bson.M) {
	filter := bson.M{"_id": u.ID}
	set := bson.M{"updated_at": r.now().UTC()}

	if u.ExpectStage != "" {
		filter["stage"] = u.ExpectStage
	}
	if u.Stage != "" {
		set["stage"] = u.Stage
	}
	if u.Schedule != nil {
		set["schedule"] = *u.Schedule
	}
	if u.RejectionReason != "" {
		set["rejection_reason"] = u.RejectionReason
	}
	if u.AdminNotes != "" {
		set["admin_notes"] = u.AdminNotes
	}
	for slot, score := range u.Scores {
		filter["scores."+string(slot)] = nil
		set["scores."+string(slot)] = score
	}
	for slot, text := range u.Feedback {
		set["feedback."+string(slot)] = text
	}
	if o := u.Outcome; o != nil {
		filter["aggregated"] = bson.M{"$ne": true}
		set["stage"] = o.Stage
		set["average_score"] = o.AverageScore
		set["grade"] = o.Grade
		set["aggregated"] = true
		if o.FinalScore != nil {
			set["final_score"] = *o.FinalScore
		}
	}
	return filter, bson.M{"$set": set}
}

// Roster returns the lecturers whose expertise matches researchField.
func (r *MongoRepository) Roster(ctx context.Context, researchField string) ([]Lecturer, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"role": "lecturer", "lecturer.expertise_field": researchField}}},
		{{Key: "$project", Value: bson.M{
			"name":            1,
			"academic_title":  "$lecturer.academic_title",
			"expertise_field": "$lecturer.expertise_field",
			"examiner_count":  bson.M{"$ifNull": bson.A{"$lecturer.examiner_count", 0}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	cursor, err := r.users.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate lecturer roster")
	}
	roster := []Lecturer{}
	if err := cursor.All(ctx, &roster); err != nil {
		return nil, errors.Wrap(err, "decode lecturer roster")
	}
	return roster, nil
}

func (r *MongoRepository) IncrementExaminerCount(ctx context.Context, ids []primitive.ObjectID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.users.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$inc": bson.M{"lecturer.examiner_count": 1}})
	return errors.Wrap(err, "increment examiner count")
}
