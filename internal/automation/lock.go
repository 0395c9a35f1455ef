package automation

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/zhou-shi/pentama-app/internal/core"
)

var (
	ErrLockHeld    = core.NewConflictError("automation is already activated by another admin")
	ErrLockNotHeld = core.NewConflictError("automation is not activated by you")
)

const lockID = "automation"

// LockState is the single activation record. A nil Owner means inactive.
type LockState struct {
	Owner      *primitive.ObjectID `bson:"owner" json:"owner"`
	OwnerName  string              `bson:"owner_name" json:"ownerName"`
	AcquiredAt time.Time           `bson:"acquired_at" json:"acquiredAt"`
}

// Lock lets one admin at a time activate automation.
type Lock interface {
	Acquire(ctx context.Context, owner primitive.ObjectID, name string) error
	Release(ctx context.Context, owner primitive.ObjectID) error
	CurrentOwner(ctx context.Context) (*LockState, error)
}

type MongoLock struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoLock(db *mongo.Database) *MongoLock {
	return &MongoLock{collection: db.Collection("automation_lock"), now: time.Now}
}

// Acquire takes the lock for owner. Re-acquiring an own lock succeeds.
func (l *MongoLock) Acquire(ctx context.Context, owner primitive.ObjectID, name string) error {
	filter := bson.M{
		"_id": lockID,
		"$or": bson.A{bson.M{"owner": nil}, bson.M{"owner": owner}},
	}
	update := bson.M{"$set": bson.M{"owner": owner, "owner_name": name, "acquired_at": l.now().UTC()}}
	_, err := l.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// the record exists but belongs to someone else
		return ErrLockHeld
	}
	return errors.Wrap(err, "acquire automation lock")
}

func (l *MongoLock) Release(ctx context.Context, owner primitive.ObjectID) error {
	res, err := l.collection.UpdateOne(ctx,
		bson.M{"_id": lockID, "owner": owner},
		bson.M{"$set": bson.M{"owner": nil, "owner_name": ""}})
	if err != nil {
		return errors.Wrap(err, "release automation lock")
	}
	if res.MatchedCount == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// CurrentOwner returns the lock record, or nil when automation is inactive.
func (l *MongoLock) CurrentOwner(ctx context.Context) (*LockState, error) {
	var state LockState
	err := l.collection.FindOne(ctx, bson.M{"_id": lockID}).Decode(&state)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read automation lock")
	}
	if state.Owner == nil {
		return nil, nil
	}
	return &state, nil
}
