package service

import (
	"errors"

	"github.com/wb-go/wbf/ginext"

	"filmclub/internal/auth"
	"filmclub/internal/dto"
	"filmclub/internal/model"
	"filmclub/internal/repo"
)

// ActivePoll answers {"poll": null} when there is no active poll or the
// lookup fails.
func (s *service) ActivePoll(ctx *ginext.Context) {
	dto.NoStore(ctx)

	poll, err := s.repo.GetActivePoll(ctx.Request.Context(), ctx.Query("club_id"))
	if err != nil {
		if !errors.Is(err, repo.ErrPollNotFound) {
			s.log.Error().Err(err).Msg("failed to get active poll, returning none")
		}
		dto.SuccessResponse(ctx, dto.EmptyPollResponse{})
		return
	}

	dto.SuccessResponse(ctx, toPollResponse(poll))
}

func (s *service) CreatePoll(ctx *ginext.Context) {
	var req dto.CreatePollRequest
	if !s.bindJSON(ctx, &req) {
		return
	}

	poll := &model.Poll{
		ClubID:   req.ClubID,
		Question: req.Question,
		ClosesAt: req.ClosesAt,
	}
	for _, o := range req.Options {
		opt := model.PollOption{OptionText: o.OptionText}
		if o.FilmTitle != "" {
			title := o.FilmTitle
			opt.FilmTitle = &title
		}
		poll.Options = append(poll.Options, opt)
	}

	if err := s.repo.CreatePollTx(ctx.Request.Context(), poll); err != nil {
		s.log.Error().Err(err).Msg("failed to create poll")
		dto.InternalServerError(ctx, err)
		return
	}

	s.log.Info().Str("poll_id", poll.ID.String()).Int("options", len(poll.Options)).Msg("poll created")
	dto.SuccessCreatedResponse(ctx, toPollResponse(poll))
}

func (s *service) ClosePoll(ctx *ginext.Context) {
	id, ok := parseUUID(ctx, "id", ctx.Param("id"))
	if !ok {
		return
	}

	if err := s.repo.ClosePoll(ctx.Request.Context(), id); err != nil {
		if errors.Is(err, repo.ErrPollNotFound) {
			dto.PollNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to close poll")
		dto.InternalServerError(ctx, err)
		return
	}

	dto.SuccessResponse(ctx, dto.OKResponse{OK: true})
}

// Vote replaces any earlier vote the caller cast in the poll.
func (s *service) Vote(ctx *ginext.Context) {
	caller := auth.CurrentUser(ctx)
	if caller == nil {
		dto.UnauthorizedError(ctx, "Missing bearer token")
		return
	}

	pollID, ok := parseUUID(ctx, "id", ctx.Param("id"))
	if !ok {
		return
	}

	var req dto.VoteRequest
	if !s.bindJSON(ctx, &req) {
		return
	}

	vote, err := s.repo.ReplaceVoteTx(ctx.Request.Context(), pollID, req.OptionUUID(), caller.ID)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrOptionNotInPoll):
			dto.OptionInvalidError(ctx)
		case errors.Is(err, repo.ErrPollNotFound):
			dto.PollNotFoundError(ctx)
		case errors.Is(err, repo.ErrPollClosed):
			dto.PollClosedError(ctx)
		default:
			s.log.Error().Err(err).Msg("failed to record vote")
			dto.InternalServerError(ctx, err)
		}
		return
	}

	s.log.Info().
		Str("poll_id", pollID.String()).
		Str("user_id", caller.ID.String()).
		Msg("vote recorded")

	dto.SuccessResponse(ctx, dto.VoteResponse{
		OK: true,
		Vote: dto.VoteBody{
			ID:        vote.ID,
			OptionID:  vote.OptionID,
			UserID:    vote.UserID,
			CreatedAt: vote.CreatedAt,
		},
	})
}

func (s *service) PollResults(ctx *ginext.Context) {
	id, ok := parseUUID(ctx, "id", ctx.Param("id"))
	if !ok {
		return
	}

	poll, err := s.repo.GetPollByID(ctx.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repo.ErrPollNotFound) {
			dto.PollNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to get poll")
		dto.InternalServerError(ctx, err)
		return
	}

	tallies, err := s.repo.GetPollResults(ctx.Request.Context(), id)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get poll results")
		dto.InternalServerError(ctx, err)
		return
	}

	resp := dto.PollResultsResponse{
		PollID:   poll.ID,
		Question: poll.Question,
		IsActive: poll.IsActive,
		Options:  make([]dto.OptionResult, 0, len(tallies)),
	}
	for _, t := range tallies {
		resp.Total += t.Votes
		resp.Options = append(resp.Options, dto.OptionResult{
			ID:         t.Option.ID,
			OptionText: t.Option.OptionText,
			FilmTitle:  t.Option.FilmTitle,
			Votes:      t.Votes,
		})
	}

	dto.NoStore(ctx)
	dto.SuccessResponse(ctx, resp)
}
