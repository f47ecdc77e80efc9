package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateMeetingRequest struct {
	FilmTitle string    `json:"film_title" validate:"required,max=255"`
	StartsAt  time.Time `json:"starts_at_tz" validate:"required"`
	Timezone  string    `json:"timezone" validate:"required,tz"`
	URL       string    `json:"url" validate:"omitempty,url"`
	Capacity  *int      `json:"capacity" validate:"omitempty,gt=0"`
	AgeGroup  string    `json:"age_group" validate:"required,agegroup"`
}

type AnnounceRequest struct {
	To []string `json:"to" validate:"required,min=1,dive,email"`
}

type RSVPRequest struct {
	MeetingID string `json:"meeting_id" validate:"required,uuid"`
	Status    string `json:"status" validate:"required,rsvpstatus"`
}

type UpdateRSVPRequest struct {
	Status string `json:"status" validate:"required,rsvpstatus"`
}

type CreatePollOption struct {
	OptionText string `json:"option_text" validate:"required,max=255"`
	FilmTitle  string `json:"film_title" validate:"omitempty,max=255"`
}

type CreatePollRequest struct {
	ClubID   string             `json:"club_id" validate:"required,max=64"`
	Question string             `json:"question" validate:"required,max=500"`
	ClosesAt *time.Time         `json:"closes_at"`
	Options  []CreatePollOption `json:"options" validate:"required,min=2,dive"`
}

type VoteRequest struct {
	OptionID string `json:"option_id" validate:"required,uuid"`
}

// OptionUUID returns the parsed option id; callers validate first.
func (r VoteRequest) OptionUUID() uuid.UUID {
	id, _ := uuid.Parse(r.OptionID)
	return id
}

type ProfileRequest struct {
	FullName string `json:"full_name" validate:"required,max=255"`
	AgeGroup string `json:"age_group" validate:"required,agegroup"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

type PreviewMeeting struct {
	FilmTitle string     `json:"film_title" validate:"required"`
	Start     time.Time  `json:"start"`
	End       *time.Time `json:"end"`
	URL       string     `json:"url"`
}

type PreviewRequest struct {
	To      string          `json:"to" validate:"required,email"`
	Type    string          `json:"type" validate:"required"`
	Meeting *PreviewMeeting `json:"meeting"`
}
