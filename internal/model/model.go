package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	RSVPYes   = "yes"
	RSVPMaybe = "maybe"
	RSVPNo    = "no"

	DefaultCapacity = 100
)

var AgeGroups = []string{"15-17", "20-40", "55+"}

func IsAgeGroup(v string) bool {
	for _, g := range AgeGroups {
		if g == v {
			return true
		}
	}
	return false
}

func IsRSVPStatus(v string) bool {
	return v == RSVPYes || v == RSVPMaybe || v == RSVPNo
}

type Meeting struct {
	ID         uuid.UUID `db:"id" json:"id"`
	FilmTitle  string    `db:"film_title" json:"film_title"`
	StartsAt   time.Time `db:"starts_at_tz" json:"starts_at_tz"`
	Timezone   string    `db:"timezone" json:"timezone"`
	URL        string    `db:"url,omitempty" json:"url,omitempty"`
	Capacity   *int      `db:"capacity" json:"capacity,omitempty"`
	AgeGroup   string    `db:"age_group" json:"age_group"`
	IsCanceled bool      `db:"is_canceled" json:"is_canceled"`
	IsDeleted  bool      `db:"is_deleted" json:"is_deleted"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// EffectiveCapacity returns the configured capacity, or def when the meeting has none.
func (m *Meeting) EffectiveCapacity(def int) int {
	if m.Capacity == nil {
		return def
	}
	return *m.Capacity
}

// Location resolves the meeting's IANA timezone, falling back to UTC.
func (m *Meeting) Location() *time.Location {
	if m.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type MeetingStats struct {
	Seated     int `json:"seated"`
	Waitlisted int `json:"waitlisted"`
}

type RSVP struct {
	ID         uuid.UUID `db:"id" json:"id"`
	MeetingID  uuid.UUID `db:"meeting_id" json:"meeting_id"`
	UserID     uuid.UUID `db:"user_id" json:"user_id"`
	Status     string    `db:"status" json:"status"`
	Waitlisted bool      `db:"waitlisted" json:"waitlisted"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ShouldWaitlist decides whether an RSVP with the given status lands on the
// waitlist when seated attendees already hold that many of capacity seats.
// Only "yes" answers ever consume a seat.
func ShouldWaitlist(status string, capacity, seated int) bool {
	return status == RSVPYes && seated >= capacity
}

// UserRSVP is an RSVP joined with the meeting it belongs to.
type UserRSVP struct {
	RSVP
	FilmTitle string    `db:"film_title" json:"film_title"`
	StartsAt  time.Time `db:"starts_at_tz" json:"starts_at_tz"`
}

type Profile struct {
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	FullName  string    `db:"full_name" json:"full_name"`
	AgeGroup  string    `db:"age_group" json:"age_group"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Poll struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	ClubID    string       `db:"club_id" json:"club_id"`
	Question  string       `db:"question" json:"question"`
	IsActive  bool         `db:"is_active" json:"is_active"`
	ClosesAt  *time.Time   `db:"closes_at" json:"closes_at,omitempty"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	Options   []PollOption `db:"-" json:"options"`
}

type PollOption struct {
	ID         uuid.UUID `db:"id" json:"id"`
	PollID     uuid.UUID `db:"poll_id" json:"poll_id"`
	OptionText string    `db:"option_text" json:"option_text"`
	FilmTitle  *string   `db:"film_title" json:"film_title,omitempty"`
	Position   int       `db:"position" json:"position"`
}

type PollVote struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OptionID  uuid.UUID `db:"option_id" json:"option_id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type OptionTally struct {
	Option PollOption
	Votes  int
}
