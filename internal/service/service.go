package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"filmclub/internal/dto"
	"filmclub/internal/model"
	"filmclub/internal/repo"
	"filmclub/pkg/validator"
)

var ErrAnonymousDisabled = errors.New("anonymous rsvps are disabled")

type Service interface {
	Health(ctx *ginext.Context)

	ListMeetings(ctx *ginext.Context)
	GetMeeting(ctx *ginext.Context)
	CreateMeeting(ctx *ginext.Context)
	DeleteMeeting(ctx *ginext.Context)
	CancelMeeting(ctx *ginext.Context)
	AnnounceMeeting(ctx *ginext.Context)

	SubmitRSVP(ctx *ginext.Context)
	ListMyRSVPs(ctx *ginext.Context)
	UpdateRSVP(ctx *ginext.Context)

	ActivePoll(ctx *ginext.Context)
	CreatePoll(ctx *ginext.Context)
	ClosePoll(ctx *ginext.Context)
	Vote(ctx *ginext.Context)
	PollResults(ctx *ginext.Context)

	Me(ctx *ginext.Context)
	GetProfile(ctx *ginext.Context)
	SaveProfile(ctx *ginext.Context)

	PreviewNotification(ctx *ginext.Context)
}

type Options struct {
	// DefaultCapacity applies to meetings stored without a capacity.
	DefaultCapacity int
	// AllowAnonymous lets unauthenticated callers RSVP under a fresh id.
	AllowAnonymous bool
	// EnvReport lists which secrets were present at startup.
	EnvReport map[string]bool
}

type service struct {
	repo     repo.Repository
	log      *zerolog.Logger
	notifier *Notifier
	opts     Options
}

func NewService(repo repo.Repository, logger *zerolog.Logger, notifier *Notifier, opts Options) Service {
	if opts.DefaultCapacity <= 0 {
		opts.DefaultCapacity = model.DefaultCapacity
	}
	return &service{
		repo:     repo,
		log:      logger,
		notifier: notifier,
		opts:     opts,
	}
}

func (s *service) bindJSON(ctx *ginext.Context, req any) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		s.log.Error().Err(err).Str("path", ctx.FullPath()).Msg("failed to parse request body")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return false
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		s.log.Error().Msgf("validation failed: %v", verr)
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return false
	}
	return true
}

func parseUUID(ctx *ginext.Context, field, raw string) (uuid.UUID, bool) {
	if raw == "" {
		dto.FieldIncorrectError(ctx, field)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		dto.FieldBadFormatError(ctx, field)
		return uuid.Nil, false
	}
	return id, true
}

func (s *service) toMeetingResponse(m *model.Meeting) dto.MeetingResponse {
	return dto.MeetingResponse{
		ID:         m.ID,
		FilmTitle:  m.FilmTitle,
		StartsAt:   m.StartsAt,
		Timezone:   m.Timezone,
		URL:        m.URL,
		AgeGroup:   m.AgeGroup,
		Capacity:   m.EffectiveCapacity(s.opts.DefaultCapacity),
		IsCanceled: m.IsCanceled,
		CreatedAt:  m.CreatedAt,
	}
}

func toPollResponse(p *model.Poll) dto.PollResponse {
	options := make([]dto.PollOptionResponse, 0, len(p.Options))
	for _, o := range p.Options {
		options = append(options, dto.PollOptionResponse{
			ID:         o.ID,
			OptionText: o.OptionText,
			FilmTitle:  o.FilmTitle,
		})
	}
	return dto.PollResponse{ID: p.ID, Question: p.Question, Options: options}
}
