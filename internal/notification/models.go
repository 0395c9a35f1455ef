package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusScheduled = "scheduled"
	StatusSent      = "sent"
	StatusFailed    = "failed"
)

// Notification is an email broadcast scheduled by an admin.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Subject   string             `bson:"subject" json:"subject"`
	Message   string             `bson:"message" json:"message"`    // HTML body
	SendTime  time.Time          `bson:"send_time" json:"sendTime"` // When the email should be sent
	Roles     []string           `bson:"roles" json:"roles"`        // student, lecturer and/or admin
	Status    string             `bson:"status" json:"status"`
	CreatedBy primitive.ObjectID `bson:"created_by" json:"createdBy"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`
	SentTo    []string           `bson:"sent_to" json:"sentTo"` // Recipient emails, for audit
}

// ScheduleRequest is the admin payload for a broadcast.
type ScheduleRequest struct {
	Subject  string    `json:"subject" validate:"required"`
	Message  string    `json:"message" validate:"required"`
	SendTime time.Time `json:"sendTime" validate:"required"`
	Roles    []string  `json:"roles" validate:"required,min=1,dive,oneof=student lecturer admin"`
}
