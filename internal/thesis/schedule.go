package thesis

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PendingRoomName is shown while a deferred session waits for a new room.
const PendingRoomName = "Akan dijadwalkan"

// Calendar places sessions in the campus timezone.
type Calendar struct {
	Location *time.Location
	LeadDays int
	Hour     int
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Default returns the session instant for a submission made at now:
// LeadDays later at Hour:00 local time, in UTC.
func (c Calendar) Default(now time.Time) time.Time {
	local := now.In(c.location())
	at := time.Date(local.Year(), local.Month(), local.Day()+c.LeadDays, c.Hour, 0, 0, 0, c.location())
	return at.UTC()
}

// Display formats the local time of day, e.g. "09:00 WIB".
func (c Calendar) Display(t time.Time) string {
	return t.In(c.location()).Format("15:04 MST")
}

// Schedule builds a schedule at t in the given room.
func (c Calendar) Schedule(t time.Time, roomName string, roomID primitive.ObjectID) Schedule {
	return Schedule{At: t.UTC(), Time: c.Display(t), RoomName: roomName, RoomID: roomID}
}
