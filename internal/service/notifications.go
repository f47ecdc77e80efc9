package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"

	"filmclub/internal/dto"
	"filmclub/internal/ics"
	"filmclub/internal/mailer"
	"filmclub/internal/model"
	"filmclub/internal/rabbit"
	"filmclub/internal/repo"
)

var (
	ErrQueueDisabled       = errors.New("notification queue is disabled")
	ErrUnknownNotification = errors.New("invalid notification type")
	ErrMeetingRequired     = errors.New("meeting details required")
)

// earlyTolerance absorbs clock skew between publisher and consumer.
const earlyTolerance = time.Second

type NotifierConfig struct {
	SiteURL        string
	ReminderBefore time.Duration
	FollowupAfter  time.Duration
}

// Notifier schedules notification jobs on the queue and delivers them when
// they come due. A nil publisher makes immediate jobs synchronous and drops
// scheduled ones.
type Notifier struct {
	repo      repo.Repository
	publisher rabbit.Publisher
	sender    mailer.Sender
	log       *zerolog.Logger
	cfg       NotifierConfig
	now       func() time.Time
}

func NewNotifier(repo repo.Repository, publisher rabbit.Publisher, sender mailer.Sender, log *zerolog.Logger, cfg NotifierConfig) *Notifier {
	return &Notifier{
		repo:      repo,
		publisher: publisher,
		sender:    sender,
		log:       log,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (n *Notifier) Enqueue(ctx context.Context, msg dto.NotificationMessage) error {
	delay := msg.DueAt.Sub(n.now())

	// Without a queue, due jobs are sent inline and their errors surface.
	if n.publisher == nil {
		if delay > earlyTolerance {
			return ErrQueueDisabled
		}
		return n.deliver(ctx, msg)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	seconds := 0
	if delay > 0 {
		seconds = int(math.Ceil(delay.Seconds()))
	}
	return n.publisher.Publish(ctx, payload, seconds)
}

// ScheduleRSVP queues the reminder and follow-up for a seated "yes".
// Failures are logged and never surface to the caller.
func (n *Notifier) ScheduleRSVP(ctx context.Context, meeting *model.Meeting, rsvp *model.RSVP, email string) {
	if meeting == nil || rsvp.Status != model.RSVPYes || rsvp.Waitlisted || email == "" {
		return
	}

	now := n.now()
	jobs := make([]dto.NotificationMessage, 0, 2)
	if n.cfg.ReminderBefore > 0 {
		if due := meeting.StartsAt.Add(-n.cfg.ReminderBefore); due.After(now) {
			jobs = append(jobs, dto.NotificationMessage{Kind: dto.NotificationReminder, DueAt: due})
		}
	}
	if n.cfg.FollowupAfter > 0 {
		if due := meeting.StartsAt.Add(n.cfg.FollowupAfter); due.After(now) {
			jobs = append(jobs, dto.NotificationMessage{Kind: dto.NotificationFollowup, DueAt: due})
		}
	}

	for _, job := range jobs {
		job.MeetingID = meeting.ID
		job.UserID = rsvp.UserID
		job.Email = email
		job.RSVPUpdatedAt = rsvp.UpdatedAt
		if err := n.Enqueue(ctx, job); err != nil {
			n.log.Warn().
				Err(err).
				Str("kind", job.Kind).
				Str("meeting_id", meeting.ID.String()).
				Msg("failed to schedule notification")
		}
	}
}

// Deliver sends one notification. Jobs that arrive before they are due are
// published again for the remaining delay. Jobs whose meeting is gone or
// canceled, or whose RSVP is no longer a seated "yes" or was saved again
// after scheduling, are dropped. Only a failed re-publish is returned as an
// error; mail failures are logged and the job is acknowledged.
func (n *Notifier) Deliver(ctx context.Context, msg dto.NotificationMessage) error {
	if msg.DueAt.Sub(n.now()) > earlyTolerance && n.publisher != nil {
		n.log.Debug().
			Str("kind", msg.Kind).
			Time("due_at", msg.DueAt).
			Msg("notification not due yet, re-queueing")
		return n.Enqueue(ctx, msg)
	}

	if err := n.deliver(ctx, msg); err != nil {
		n.log.Warn().
			Err(err).
			Str("kind", msg.Kind).
			Str("meeting_id", msg.MeetingID.String()).
			Msg("failed to deliver notification")
	}
	return nil
}

// deliver returns nil for jobs it drops on purpose.
func (n *Notifier) deliver(ctx context.Context, msg dto.NotificationMessage) error {
	logger := n.log.With().
		Str("kind", msg.Kind).
		Str("meeting_id", msg.MeetingID.String()).
		Str("email", msg.Email).
		Logger()

	meeting, err := n.repo.GetMeetingByID(ctx, msg.MeetingID)
	if err != nil {
		if errors.Is(err, repo.ErrMeetingNotFound) {
			logger.Info().Msg("meeting no longer exists, skipping notification")
			return nil
		}
		return fmt.Errorf("load meeting: %w", err)
	}
	if meeting.IsCanceled {
		logger.Info().Msg("meeting canceled, skipping notification")
		return nil
	}

	if msg.UserID != uuid.Nil {
		rsvp, err := n.repo.GetRSVP(ctx, msg.MeetingID, msg.UserID)
		if err != nil {
			if errors.Is(err, repo.ErrRSVPNotFound) {
				return nil
			}
			return fmt.Errorf("load rsvp: %w", err)
		}
		if rsvp.Status != model.RSVPYes || rsvp.Waitlisted {
			logger.Info().Str("status", rsvp.Status).Msg("rsvp no longer seated, skipping notification")
			return nil
		}
		// Every save reschedules, so only jobs from the latest save are sent.
		if !msg.RSVPUpdatedAt.IsZero() && !rsvp.UpdatedAt.Equal(msg.RSVPUpdatedAt) {
			logger.Info().Msg("rsvp changed since scheduling, skipping notification")
			return nil
		}
	}

	view := mailer.MeetingView{
		FilmTitle: meeting.FilmTitle,
		StartsAt:  meeting.StartsAt,
		Location:  meeting.Location(),
		URL:       n.meetingURL(meeting),
	}
	event := ics.Event{
		Title:    meeting.FilmTitle,
		StartsAt: meeting.StartsAt,
		URL:      view.URL,
	}
	if meeting.URL != "" {
		event.Description = "Join: " + meeting.URL
	}

	if err := n.send(ctx, msg.Kind, msg.Email, view, event); err != nil {
		return err
	}

	logger.Info().Msg("notification delivered")
	return nil
}

// Preview renders and sends a notification built from ad-hoc meeting
// details. Any type starting with "reminder" renders the reminder template.
func (n *Notifier) Preview(ctx context.Context, req dto.PreviewRequest) error {
	kind := req.Type
	if strings.HasPrefix(kind, dto.NotificationReminder) {
		kind = dto.NotificationReminder
	}
	if kind != dto.NotificationAnnounce && kind != dto.NotificationReminder && kind != dto.NotificationFollowup {
		return ErrUnknownNotification
	}
	if req.Meeting == nil {
		return fmt.Errorf("%w for %s", ErrMeetingRequired, kind)
	}

	m := req.Meeting
	event := ics.Event{Title: m.FilmTitle, StartsAt: m.Start, URL: m.URL}
	if m.End != nil && m.End.After(m.Start) {
		event.Duration = m.End.Sub(m.Start)
	}

	view := mailer.MeetingView{FilmTitle: m.FilmTitle, StartsAt: m.Start, URL: m.URL}
	return n.send(ctx, kind, req.To, view, event)
}

func (n *Notifier) send(ctx context.Context, kind, to string, view mailer.MeetingView, event ics.Event) error {
	subject, html, err := mailer.Render(kind, view)
	if err != nil {
		return err
	}

	msg := mailer.Message{To: to, Subject: subject, HTML: html}
	if mailer.HasInvite(kind) {
		msg.ICS = ics.Build(event, n.now())
	}
	return n.sender.Send(ctx, msg)
}

func (n *Notifier) meetingURL(m *model.Meeting) string {
	if n.cfg.SiteURL == "" {
		return m.URL
	}
	return strings.TrimRight(n.cfg.SiteURL, "/") + "/meetings/" + m.ID.String()
}

func (s *service) PreviewNotification(ctx *ginext.Context) {
	var req dto.PreviewRequest
	if !s.bindJSON(ctx, &req) {
		return
	}

	if err := s.notifier.Preview(ctx.Request.Context(), req); err != nil {
		switch {
		case errors.Is(err, ErrUnknownNotification), errors.Is(err, ErrMeetingRequired):
			dto.BadResponseError(ctx, dto.NotificationRejected, err.Error())
		case errors.Is(err, mailer.ErrNotConfigured):
			dto.ErrorResponse(ctx, http.StatusInternalServerError, dto.ServerMisconfigured, err.Error())
		default:
			s.log.Error().Err(err).Msg("failed to send preview notification")
			dto.InternalServerError(ctx, err)
		}
		return
	}

	dto.SuccessResponse(ctx, dto.OKResponse{OK: true})
}
