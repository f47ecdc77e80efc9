package dto

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat       = "FIELD_BADFORMAT"
	FieldIncorrect       = "FIELD_INCORRECT"
	ServiceUnavailable   = "SERVICE_UNAVAILABLE"
	Unauthorized         = "UNAUTHORIZED"
	Forbidden            = "FORBIDDEN"
	ServerMisconfigured  = "SERVER_MISCONFIGURED"
	InternalError        = "Service is currently unavailable. Please try again later."
	MeetingNotFound      = "MEETING_NOT_FOUND"
	MeetingCanceled      = "MEETING_CANCELED"
	RSVPNotFound         = "RSVP_NOT_FOUND"
	PollNotFound         = "POLL_NOT_FOUND"
	PollClosed           = "POLL_CLOSED"
	OptionInvalid        = "OPTION_INVALID"
	ProfileNotFound      = "PROFILE_NOT_FOUND"
	NotificationRejected = "NOTIFICATION_REJECTED"
)

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type MeetingResponse struct {
	ID         uuid.UUID `json:"id"`
	FilmTitle  string    `json:"film_title"`
	StartsAt   time.Time `json:"starts_at_tz"`
	Timezone   string    `json:"timezone"`
	URL        string    `json:"url,omitempty"`
	AgeGroup   string    `json:"age_group"`
	Capacity   int       `json:"capacity"`
	IsCanceled bool      `json:"is_canceled"`
	CreatedAt  time.Time `json:"created_at"`
}

type MeetingDetailResponse struct {
	MeetingResponse
	Seated         int `json:"seated"`
	Waitlisted     int `json:"waitlisted"`
	AvailableSeats int `json:"available_seats"`
}

type RSVPResponse struct {
	OK         bool   `json:"ok"`
	Status     string `json:"status"`
	Waitlisted bool   `json:"waitlisted"`
}

type RSVPMeeting struct {
	ID        uuid.UUID `json:"id"`
	FilmTitle string    `json:"film_title"`
	StartsAt  time.Time `json:"starts_at_tz"`
}

type UserRSVPResponse struct {
	ID         uuid.UUID   `json:"id"`
	MeetingID  uuid.UUID   `json:"meeting_id"`
	Status     string      `json:"status"`
	Waitlisted bool        `json:"waitlisted"`
	Meeting    RSVPMeeting `json:"meetings"`
}

type PollOptionResponse struct {
	ID         uuid.UUID `json:"id"`
	OptionText string    `json:"option_text"`
	FilmTitle  *string   `json:"film_title"`
}

type PollResponse struct {
	ID       uuid.UUID            `json:"id"`
	Question string               `json:"question"`
	Options  []PollOptionResponse `json:"options"`
}

type EmptyPollResponse struct {
	Poll *PollResponse `json:"poll"`
}

type VoteBody struct {
	ID        uuid.UUID `json:"id"`
	OptionID  uuid.UUID `json:"option_id"`
	UserID    uuid.UUID `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

type VoteResponse struct {
	OK   bool     `json:"ok"`
	Vote VoteBody `json:"vote"`
}

type OptionResult struct {
	ID         uuid.UUID `json:"id"`
	OptionText string    `json:"option_text"`
	FilmTitle  *string   `json:"film_title"`
	Votes      int       `json:"votes"`
}

type PollResultsResponse struct {
	PollID   uuid.UUID      `json:"poll_id"`
	Question string         `json:"question"`
	IsActive bool           `json:"is_active"`
	Total    int            `json:"total"`
	Options  []OptionResult `json:"options"`
}

type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email,omitempty"`
	Role  string    `json:"role,omitempty"`
}

type MeResponse struct {
	User *UserResponse `json:"user"`
}

type ProfileResponse struct {
	UserID    uuid.UUID `json:"user_id"`
	FullName  string    `json:"full_name"`
	AgeGroup  string    `json:"age_group"`
	Phone     *string   `json:"phone"`
	UpdatedAt time.Time `json:"updated_at"`
}

type AnnounceResponse struct {
	OK     bool `json:"ok"`
	Queued int  `json:"queued"`
}

type DatabaseReport struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Count *int   `json:"count,omitempty"`
}

type HealthResponse struct {
	Env      map[string]bool `json:"env"`
	Database DatabaseReport  `json:"database"`
}

func ErrorResponse(c *ginext.Context, httpStatus int, code, desc string) {
	c.AbortWithStatusJSON(httpStatus, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func BadResponseError(c *ginext.Context, code, desc string) {
	ErrorResponse(c, http.StatusBadRequest, code, desc)
}

// InternalServerError passes the upstream message through to the caller.
func InternalServerError(c *ginext.Context, err error) {
	desc := InternalError
	if err != nil {
		desc = err.Error()
	}
	ErrorResponse(c, http.StatusInternalServerError, ServiceUnavailable, desc)
}

func FieldBadFormatError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldBadFormat, "Field '"+fieldName+"' has bad format")
}

func FieldIncorrectError(c *ginext.Context, fieldName string) {
	BadResponseError(c, FieldIncorrect, "Field '"+fieldName+"' is incorrect")
}

func UnauthorizedError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusUnauthorized, Unauthorized, desc)
}

func ForbiddenError(c *ginext.Context, desc string) {
	ErrorResponse(c, http.StatusForbidden, Forbidden, desc)
}

func MeetingNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, MeetingNotFound, "Meeting not found")
}

func MeetingCanceledError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, MeetingCanceled, "Meeting was canceled")
}

func RSVPNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, RSVPNotFound, "RSVP not found")
}

func PollNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, PollNotFound, "Poll not found")
}

func PollClosedError(c *ginext.Context) {
	ErrorResponse(c, http.StatusConflict, PollClosed, "Poll is closed")
}

func OptionInvalidError(c *ginext.Context) {
	BadResponseError(c, OptionInvalid, "Invalid option for this poll")
}

func ProfileNotFoundError(c *ginext.Context) {
	ErrorResponse(c, http.StatusNotFound, ProfileNotFound, "Profile not found")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// NoStore marks a response as uncacheable.
func NoStore(c *ginext.Context) {
	c.Header("Cache-Control", "no-store")
}
