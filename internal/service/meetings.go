package service

import (
	"errors"
	"net/http"
	"time"

	"github.com/wb-go/wbf/ginext"

	"filmclub/internal/dto"
	"filmclub/internal/model"
	"filmclub/internal/repo"
)

// ListMeetings never fails: backend errors yield [] and an unknown age
// group filter is ignored.
func (s *service) ListMeetings(ctx *ginext.Context) {
	dto.NoStore(ctx)
	resp := make([]dto.MeetingResponse, 0)

	ageGroup := ctx.Query("age_group")
	if ageGroup != "" && !model.IsAgeGroup(ageGroup) {
		s.log.Warn().Str("age_group", ageGroup).Msg("unknown age group filter, listing all meetings")
		ageGroup = ""
	}

	meetings, err := s.repo.ListMeetings(ctx.Request.Context(), ageGroup)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list meetings, returning empty list")
		dto.SuccessResponse(ctx, resp)
		return
	}

	for i := range meetings {
		resp = append(resp, s.toMeetingResponse(&meetings[i]))
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) GetMeeting(ctx *ginext.Context) {
	id, ok := parseUUID(ctx, "id", ctx.Param("id"))
	if !ok {
		return
	}

	meeting, err := s.repo.GetMeetingByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrMeetingNotFound) {
			dto.MeetingNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to get meeting")
		dto.InternalServerError(ctx, err)
		return
	}

	stats, err := s.repo.GetMeetingStats(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to count rsvps")
		dto.InternalServerError(ctx, err)
		return
	}

	capacity := meeting.EffectiveCapacity(s.opts.DefaultCapacity)
	dto.SuccessResponse(ctx, dto.MeetingDetailResponse{
		MeetingResponse: s.toMeetingResponse(meeting),
		Seated:          stats.Seated,
		Waitlisted:      stats.Waitlisted,
		AvailableSeats:  max(capacity-stats.Seated, 0),
	})
}

func (s *service) CreateMeeting(ctx *ginext.Context) {
	var req dto.CreateMeetingRequest
	if !s.bindJSON(ctx, &req) {
		return
	}

	meeting := &model.Meeting{
		FilmTitle: req.FilmTitle,
		StartsAt:  req.StartsAt,
		Timezone:  req.Timezone,
		URL:       req.URL,
		Capacity:  req.Capacity,
		AgeGroup:  req.AgeGroup,
	}

	if err := s.repo.CreateMeeting(ctx.Request.Context(), meeting); err != nil {
		s.log.Error().Err(err).Msg("failed to create meeting in DB")
		dto.InternalServerError(ctx, err)
		return
	}

	s.log.Info().Str("meeting_id", meeting.ID.String()).Msg("meeting created successfully")
	dto.SuccessCreatedResponse(ctx, s.toMeetingResponse(meeting))
}

func (s *service) DeleteMeeting(ctx *ginext.Context) {
	id, ok := parseUUID(ctx, "id", ctx.Query("id"))
	if !ok {
		return
	}

	if err := s.repo.SoftDeleteMeeting(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, repo.ErrMeetingNotFound) {
			dto.MeetingNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to delete meeting")
		dto.InternalServerError(ctx, err)
		return
	}

	s.log.Info().Str("meeting_id", id.String()).Msg("meeting deleted")
	dto.SuccessResponse(ctx, dto.OKResponse{OK: true})
}

func (s *service) CancelMeeting(ctx *ginext.Context) {
	id, ok := parseUUID(ctx, "id", ctx.Param("id"))
	if !ok {
		return
	}

	if err := s.repo.CancelMeeting(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, repo.ErrMeetingNotFound) {
			dto.MeetingNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to cancel meeting")
		dto.InternalServerError(ctx, err)
		return
	}

	s.log.Info().Str("meeting_id", id.String()).Msg("meeting canceled")
	dto.SuccessResponse(ctx, dto.OKResponse{OK: true})
}

// AnnounceMeeting queues one announcement e-mail per recipient.
func (s *service) AnnounceMeeting(ctx *ginext.Context) {
	id, ok := parseUUID(ctx, "id", ctx.Param("id"))
	if !ok {
		return
	}

	var req dto.AnnounceRequest
	if !s.bindJSON(ctx, &req) {
		return
	}

	meeting, err := s.repo.GetMeetingByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrMeetingNotFound) {
			dto.MeetingNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to get meeting for announcement")
		dto.InternalServerError(ctx, err)
		return
	}
	if meeting.IsCanceled {
		dto.MeetingCanceledError(ctx)
		return
	}

	queued := 0
	for _, email := range req.To {
		if err := s.notifier.Enqueue(ctx.Request.Context(), dto.NotificationMessage{
			Kind:      dto.NotificationAnnounce,
			MeetingID: meeting.ID,
			Email:     email,
			DueAt:     time.Now(),
		}); err != nil {
			s.log.Error().Err(err).Str("email", email).Msg("failed to queue announcement")
			continue
		}
		queued++
	}

	if queued == 0 {
		dto.ErrorResponse(ctx, http.StatusInternalServerError, dto.NotificationRejected, "No announcements could be queued")
		return
	}

	ctx.JSON(http.StatusAccepted, dto.AnnounceResponse{OK: true, Queued: queued})
}
