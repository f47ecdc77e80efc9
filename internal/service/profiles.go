package service

import (
	"errors"

	"github.com/wb-go/wbf/ginext"

	"filmclub/internal/auth"
	"filmclub/internal/dto"
	"filmclub/internal/model"
	"filmclub/internal/repo"
)

func (s *service) Me(ctx *ginext.Context) {
	caller := auth.CurrentUser(ctx)
	if caller == nil {
		dto.UnauthorizedError(ctx, "Missing bearer token")
		return
	}

	dto.NoStore(ctx)
	dto.SuccessResponse(ctx, dto.MeResponse{User: &dto.UserResponse{
		ID:    caller.ID,
		Email: caller.Email,
		Role:  caller.Role,
	}})
}

func (s *service) GetProfile(ctx *ginext.Context) {
	caller := auth.CurrentUser(ctx)
	if caller == nil {
		dto.UnauthorizedError(ctx, "Missing bearer token")
		return
	}

	profile, err := s.repo.GetProfile(ctx.Request.Context(), caller.ID)
	if err != nil {
		if errors.Is(err, repo.ErrProfileNotFound) {
			dto.ProfileNotFoundError(ctx)
			return
		}
		s.log.Error().Err(err).Msg("failed to get profile")
		dto.InternalServerError(ctx, err)
		return
	}

	dto.NoStore(ctx)
	dto.SuccessResponse(ctx, toProfileResponse(profile))
}

func (s *service) SaveProfile(ctx *ginext.Context) {
	caller := auth.CurrentUser(ctx)
	if caller == nil {
		dto.UnauthorizedError(ctx, "Missing bearer token")
		return
	}

	var req dto.ProfileRequest
	if !s.bindJSON(ctx, &req) {
		return
	}

	profile := &model.Profile{
		UserID:   caller.ID,
		FullName: req.FullName,
		AgeGroup: req.AgeGroup,
	}
	if req.Phone != "" {
		phone := req.Phone
		profile.Phone = &phone
	}

	if err := s.repo.UpsertProfile(ctx.Request.Context(), profile); err != nil {
		s.log.Error().Err(err).Msg("failed to save profile")
		dto.InternalServerError(ctx, err)
		return
	}

	dto.SuccessResponse(ctx, toProfileResponse(profile))
}

func toProfileResponse(p *model.Profile) dto.ProfileResponse {
	return dto.ProfileResponse{
		UserID:    p.UserID,
		FullName:  p.FullName,
		AgeGroup:  p.AgeGroup,
		Phone:     p.Phone,
		UpdatedAt: p.UpdatedAt,
	}
}
