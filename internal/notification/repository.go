package notification

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

var ErrNotificationNotFound = core.NewNotFoundError("notification not found")

// NotificationRepository handles DB operations for notifications.
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new repository for notifications.
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{collection: db.Collection("notifications")}
}

func (r *NotificationRepository) CreateNotification(ctx context.Context, n *Notification) error {
	_, err := r.collection.InsertOne(ctx, n)
	return errors.Wrap(err, "insert notification")
}

// GetPendingNotifications fetches scheduled notifications whose send time has passed.
func (r *NotificationRepository) GetPendingNotifications(ctx context.Context, now time.Time) ([]*Notification, error) {
	filter := bson.M{"status": StatusScheduled, "send_time": bson.M{"$lte": now}}
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "find pending notifications")
	}
	var notifications []*Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, errors.Wrap(err, "decode notifications")
	}
	return notifications, nil
}

// UpdateNotificationStatus moves a scheduled notification to status. A
// notification already picked up by another tick is left alone.
func (r *NotificationRepository) UpdateNotificationStatus(ctx context.Context, id primitive.ObjectID, status string, sentTo []string) error {
	filter := bson.M{"_id": id, "status": StatusScheduled}
	update := bson.M{"$set": bson.M{"status": status, "sent_to": sentTo, "updated_at": time.Now().UTC()}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return errors.Wrap(err, "update notification status")
	}
	if res.MatchedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// ListNotifications returns notifications newest first, optionally those targeting role.
func (r *NotificationRepository) ListNotifications(ctx context.Context, role string) ([]*Notification, error) {
	filter := bson.M{}
	if role != "" {
		filter["roles"] = role
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "send_time", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	notifications := []*Notification{}
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, errors.Wrap(err, "decode notifications")
	}
	return notifications, nil
}

func (r *NotificationRepository) DeleteNotification(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrap(err, "delete notification")
	}
	if res.DeletedCount == 0 {
		return ErrNotificationNotFound
	}
	return nil
}
