package dto

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationAnnounce = "announce"
	NotificationReminder = "reminder"
	NotificationFollowup = "followup"
)

// NotificationMessage is the queue payload for a single e-mail.
// UserID is uuid.Nil for messages not tied to an RSVP. RSVPUpdatedAt pins
// the RSVP revision the job was scheduled for; zero disables the check.
type NotificationMessage struct {
	Kind          string    `json:"kind"`
	MeetingID     uuid.UUID `json:"meeting_id"`
	UserID        uuid.UUID `json:"user_id"`
	Email         string    `json:"email"`
	DueAt         time.Time `json:"due_at"`
	RSVPUpdatedAt time.Time `json:"rsvp_updated_at"`
}
