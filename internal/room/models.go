package room

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Room represents a seminar room sessions are scheduled into.
type Room struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name" yaml:"name"`
	Building    string             `bson:"building" json:"building" yaml:"building"`
	Floor       int                `bson:"floor" json:"floor" yaml:"floor"`
	Type        string             `bson:"type" json:"type" yaml:"type"`
	Capacity    int                `bson:"capacity" json:"capacity" yaml:"capacity"`
	Facilities  []string           `bson:"facilities" json:"facilities" yaml:"facilities"`
	IsAvailable bool               `bson:"is_available" json:"isAvailable" yaml:"isAvailable"`
	UsageCount  int                `bson:"usage_count" json:"usageCount" yaml:"-"` // Incremented per submission, never decremented
	CreatedBy   primitive.ObjectID `bson:"created_by,omitempty" json:"createdBy,omitempty" yaml:"-"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updatedAt" yaml:"-"`
}

// RoomRequest is the admin payload for creating or updating a room.
type RoomRequest struct {
	Name        string   `json:"name" validate:"required"`
	Building    string   `json:"building" validate:"required"`
	Floor       int      `json:"floor" validate:"gte=0"`
	Type        string   `json:"type"`
	Capacity    int      `json:"capacity" validate:"gt=0"`
	Facilities  []string `json:"facilities"`
	IsAvailable *bool    `json:"isAvailable"`
}
