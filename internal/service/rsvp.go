package service

import (
	"errors"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"

	"filmclub/internal/auth"
	"filmclub/internal/dto"
	"filmclub/internal/model"
	"filmclub/internal/repo"
)

// SubmitRSVP seats or waitlists the caller. Callers without a verified token
// get a fresh anonymous id, so their answers are never deduplicated.
func (s *service) SubmitRSVP(ctx *ginext.Context) {
	var req dto.RSVPRequest
	if !s.bindJSON(ctx, &req) {
		return
	}
	meetingID, ok := parseUUID(ctx, "meeting_id", req.MeetingID)
	if !ok {
		return
	}

	caller := auth.CurrentUser(ctx)
	userID := uuid.New()
	if caller != nil {
		userID = caller.ID
	} else if !s.opts.AllowAnonymous {
		dto.UnauthorizedError(ctx, ErrAnonymousDisabled.Error())
		return
	}

	rsvp := &model.RSVP{MeetingID: meetingID, UserID: userID, Status: req.Status}
	meeting, ok := s.saveRSVP(ctx, rsvp, caller != nil)
	if !ok {
		return
	}

	if caller != nil && caller.Email != "" {
		s.notifier.ScheduleRSVP(ctx.Request.Context(), meeting, rsvp, caller.Email)
	}

	dto.SuccessResponse(ctx, dto.RSVPResponse{OK: true, Status: rsvp.Status, Waitlisted: rsvp.Waitlisted})
}

func (s *service) ListMyRSVPs(ctx *ginext.Context) {
	caller := auth.CurrentUser(ctx)
	if caller == nil {
		dto.UnauthorizedError(ctx, "Missing bearer token")
		return
	}

	rsvps, err := s.repo.ListRSVPsByUser(ctx.Request.Context(), caller.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list rsvps")
		dto.InternalServerError(ctx, err)
		return
	}

	resp := make([]dto.UserRSVPResponse, 0, len(rsvps))
	for _, r := range rsvps {
		resp = append(resp, dto.UserRSVPResponse{
			ID:         r.ID,
			MeetingID:  r.MeetingID,
			Status:     r.Status,
			Waitlisted: r.Waitlisted,
			Meeting: dto.RSVPMeeting{
				ID:        r.MeetingID,
				FilmTitle: r.FilmTitle,
				StartsAt:  r.StartsAt,
			},
		})
	}

	dto.NoStore(ctx)
	dto.SuccessResponse(ctx, resp)
}

// UpdateRSVP changes the status of one of the caller's RSVPs, running the
// same seating decision as a new submission.
func (s *service) UpdateRSVP(ctx *ginext.Context) {
	caller := auth.CurrentUser(ctx)
	if caller == nil {
		dto.UnauthorizedError(ctx, "Missing bearer token")
		return
	}

	id, ok := parseUUID(ctx, "id", ctx.Param("id"))
	if !ok {
		return
	}

	var req dto.UpdateRSVPRequest
	if !s.bindJSON(ctx, &req) {
		return
	}

	existing, err := s.repo.GetRSVPByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrRSVPNotFound) {
			dto.RSVPNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to get rsvp")
		dto.InternalServerError(ctx, err)
		return
	}
	if existing.UserID != caller.ID {
		dto.RSVPNotFoundError(ctx)
		return
	}

	rsvp := &model.RSVP{MeetingID: existing.MeetingID, UserID: caller.ID, Status: req.Status}
	meeting, ok := s.saveRSVP(ctx, rsvp, true)
	if !ok {
		return
	}

	if caller.Email != "" {
		s.notifier.ScheduleRSVP(ctx.Request.Context(), meeting, rsvp, caller.Email)
	}

	dto.SuccessResponse(ctx, dto.RSVPResponse{OK: true, Status: rsvp.Status, Waitlisted: rsvp.Waitlisted})
}

func (s *service) saveRSVP(ctx *ginext.Context, rsvp *model.RSVP, authenticated bool) (*model.Meeting, bool) {
	meeting, err := s.repo.SaveRSVPTx(ctx.Request.Context(), rsvp, s.opts.DefaultCapacity)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrMeetingNotFound):
			dto.MeetingNotFoundError(ctx)
		case errors.Is(err, repo.ErrMeetingCanceled):
			dto.MeetingCanceledError(ctx)
		default:
			s.log.Error().Err(err).Msg("failed to save rsvp")
			dto.InternalServerError(ctx, err)
		}
		return nil, false
	}

	s.log.Info().
		Str("meeting_id", rsvp.MeetingID.String()).
		Str("user_id", rsvp.UserID.String()).
		Bool("authenticated", authenticated).
		Str("status", rsvp.Status).
		Bool("waitlisted", rsvp.Waitlisted).
		Msg("rsvp saved")
	return meeting, true
}
