package room

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
	ErrRoomNotFound    = core.NewNotFoundError("room not found")
	ErrNoRoomAvailable = core.NewConflictError("no room is available at the moment")
	ErrDuplicateRoom   = core.NewConflictError("a room with this name already exists")
)

// RoomRepository handles DB operations for rooms.
type RoomRepository struct {
	collection *mongo.Collection
}

// NewRoomRepository creates a new repository for rooms.
func NewRoomRepository(db *mongo.Database) *RoomRepository {
	return &RoomRepository{collection: db.Collection("rooms")}
}

func (r *RoomRepository) Create(ctx context.Context, room *Room) error {
	_, err := r.collection.InsertOne(ctx, room)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateRoom
	}
	return errors.Wrap(err, "insert room")
}

func (r *RoomRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*Room, error) {
	var room Room
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrRoomNotFound
		}
		return nil, errors.Wrap(err, "find room")
	}
	return &room, nil
}

func (r *RoomRepository) FindAll(ctx context.Context) ([]*Room, error) {
	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list rooms")
	}
	rooms := []*Room{}
	if err := cursor.All(ctx, &rooms); err != nil {
		return nil, errors.Wrap(err, "decode rooms")
	}
	return rooms, nil
}

func (r *RoomRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	return n, errors.Wrap(err, "count rooms")
}

func (r *RoomRepository) Update(ctx context.Context, id primitive.ObjectID, room *Room) error {
	update := bson.M{
		"$set": bson.M{
			"name":         room.Name,
			"building":     room.Building,
			"floor":        room.Floor,
			"type":         room.Type,
			"capacity":     room.Capacity,
			"facilities":   room.Facilities,
			"is_available": room.IsAvailable,
			"updated_at":   room.UpdatedAt,
		},
	}
	res, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return errors.Wrap(err, "update room")
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

func (r *RoomRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete room")
	}
	if res.DeletedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// LeastUsed returns the available room with the lowest usage count.
func (r *RoomRepository) LeastUsed(ctx context.Context) (*Room, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "usage_count", Value: 1}, {Key: "_id", Value: 1}})
	var room Room
	err := r.collection.FindOne(ctx, bson.M{"is_available": true}, opts).Decode(&room)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNoRoomAvailable
		}
		return nil, errors.Wrap(err, "find least used room")
	}
	return &room, nil
}

// IncrementUsage bumps the usage counter of a room by one.
func (r *RoomRepository) IncrementUsage(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$inc": bson.M{"usage_count": 1}, "$set": bson.M{"updated_at": time.Now().UTC()}}
	res, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return errors.Wrap(err, "increment room usage")
	}
	if res.MatchedCount == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// EnsureIndexes creates the unique name index and the index LeastUsed sorts on.
func (r *RoomRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "is_available", Value: 1}, {Key: "usage_count", Value: 1}}},
	})
	return errors.Wrap(err, "create room indexes")
}
