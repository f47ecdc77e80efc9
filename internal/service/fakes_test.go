package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"filmclub/internal/mailer"
	"filmclub/internal/model"
	"filmclub/internal/repo"
)

// fakeRepo is an in-memory repo.Repository.
type fakeRepo struct {
	mu       sync.Mutex
	meetings map[uuid.UUID]*model.Meeting
	rsvps    []*model.RSVP
	polls    map[uuid.UUID]*model.Poll
	votes    []*model.PollVote
	profiles map[uuid.UUID]*model.Profile

	failWith error
	writes   int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		meetings: map[uuid.UUID]*model.Meeting{},
		polls:    map[uuid.UUID]*model.Poll{},
		profiles: map[uuid.UUID]*model.Profile{},
	}
}

func (f *fakeRepo) addMeeting(capacity *int) *model.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := &model.Meeting{
		ID:        uuid.New(),
		FilmTitle: "Cinema Paradiso",
		StartsAt:  time.Now().Add(72 * time.Hour),
		Timezone:  "UTC",
		Capacity:  capacity,
		AgeGroup:  "55+",
		CreatedAt: time.Now(),
	}
	f.meetings[m.ID] = m
	return m
}

func (f *fakeRepo) addPoll(clubID string, options ...string) *model.Poll {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &model.Poll{ID: uuid.New(), ClubID: clubID, Question: "Next film?", IsActive: true}
	for i, o := range options {
		p.Options = append(p.Options, model.PollOption{ID: uuid.New(), PollID: p.ID, OptionText: o, Position: i})
	}
	f.polls[p.ID] = p
	return p
}

func (f *fakeRepo) CreateMeeting(_ context.Context, m *model.Meeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.writes++
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.UpdatedAt = m.CreatedAt
	cp := *m
	f.meetings[m.ID] = &cp
	return nil
}

func (f *fakeRepo) GetMeetingByID(_ context.Context, id uuid.UUID) (*model.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	m, ok := f.meetings[id]
	if !ok || m.IsDeleted {
		return nil, repo.ErrMeetingNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeRepo) ListMeetings(_ context.Context, ageGroup string) ([]model.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var out []model.Meeting
	for _, m := range f.meetings {
		if m.IsDeleted || (ageGroup != "" && m.AgeGroup != ageGroup) {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (f *fakeRepo) SoftDeleteMeeting(_ context.Context, id uuid.UUID) error {
	return f.updateMeeting(id, func(m *model.Meeting) { m.IsDeleted = true })
}

func (f *fakeRepo) CancelMeeting(_ context.Context, id uuid.UUID) error {
	return f.updateMeeting(id, func(m *model.Meeting) { m.IsCanceled = true })
}

func (f *fakeRepo) updateMeeting(id uuid.UUID, fn func(*model.Meeting)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	m, ok := f.meetings[id]
	if !ok || m.IsDeleted {
		return repo.ErrMeetingNotFound
	}
	f.writes++
	fn(m)
	return nil
}

func (f *fakeRepo) CountMeetings(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	return len(f.meetings), nil
}

func (f *fakeRepo) GetMeetingStats(_ context.Context, id uuid.UUID) (model.MeetingStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var stats model.MeetingStats
	for _, r := range f.rsvps {
		if r.MeetingID != id || r.Status != model.RSVPYes {
			continue
		}
		if r.Waitlisted {
			stats.Waitlisted++
		} else {
			stats.Seated++
		}
	}
	return stats, nil
}

func (f *fakeRepo) SaveRSVPTx(_ context.Context, rsvp *model.RSVP, defaultCapacity int) (*model.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	m, ok := f.meetings[rsvp.MeetingID]
	if !ok || m.IsDeleted {
		return nil, repo.ErrMeetingNotFound
	}
	if m.IsCanceled {
		return nil, repo.ErrMeetingCanceled
	}

	seated := 0
	for _, r := range f.rsvps {
		if r.MeetingID == rsvp.MeetingID && r.Status == model.RSVPYes && !r.Waitlisted {
			seated++
		}
	}
	rsvp.Waitlisted = model.ShouldWaitlist(rsvp.Status, m.EffectiveCapacity(defaultCapacity), seated)
	f.writes++

	for _, r := range f.rsvps {
		if r.MeetingID == rsvp.MeetingID && r.UserID == rsvp.UserID {
			r.Status = rsvp.Status
			r.Waitlisted = rsvp.Waitlisted
			r.UpdatedAt = bump(r.UpdatedAt)
			*rsvp = *r
			cp := *m
			return &cp, nil
		}
	}

	rsvp.ID = uuid.New()
	rsvp.CreatedAt = time.Now()
	rsvp.UpdatedAt = rsvp.CreatedAt
	cp := *rsvp
	f.rsvps = append(f.rsvps, &cp)
	mc := *m
	return &mc, nil
}

func (f *fakeRepo) GetRSVPByID(_ context.Context, id uuid.UUID) (*model.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rsvps {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repo.ErrRSVPNotFound
}

func (f *fakeRepo) GetRSVP(_ context.Context, meetingID, userID uuid.UUID) (*model.RSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rsvps {
		if r.MeetingID == meetingID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repo.ErrRSVPNotFound
}

func (f *fakeRepo) ListRSVPsByUser(_ context.Context, userID uuid.UUID) ([]model.UserRSVP, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UserRSVP
	for _, r := range f.rsvps {
		m := f.meetings[r.MeetingID]
		if r.UserID != userID || m == nil || m.IsDeleted {
			continue
		}
		out = append(out, model.UserRSVP{RSVP: *r, FilmTitle: m.FilmTitle, StartsAt: m.StartsAt})
	}
	return out, nil
}

func (f *fakeRepo) CreatePollTx(_ context.Context, p *model.Poll) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.writes++
	p.ID = uuid.New()
	p.IsActive = true
	p.CreatedAt = time.Now()
	for i := range p.Options {
		p.Options[i].ID = uuid.New()
		p.Options[i].PollID = p.ID
		p.Options[i].Position = i
	}
	cp := *p
	f.polls[p.ID] = &cp
	return nil
}

func (f *fakeRepo) GetActivePoll(_ context.Context, clubID string) (*model.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, p := range f.polls {
		if p.IsActive && (clubID == "" || p.ClubID == clubID) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repo.ErrPollNotFound
}

func (f *fakeRepo) GetPollByID(_ context.Context, id uuid.UUID) (*model.Poll, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.polls[id]
	if !ok {
		return nil, repo.ErrPollNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) ClosePoll(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.polls[id]
	if !ok {
		return repo.ErrPollNotFound
	}
	f.writes++
	p.IsActive = false
	return nil
}

func (f *fakeRepo) optionPoll(optionID uuid.UUID) uuid.UUID {
	for _, p := range f.polls {
		for _, o := range p.Options {
			if o.ID == optionID {
				return p.ID
			}
		}
	}
	return uuid.Nil
}

func (f *fakeRepo) ReplaceVoteTx(_ context.Context, pollID, optionID, userID uuid.UUID) (*model.PollVote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.polls[pollID]
	if !ok {
		return nil, repo.ErrPollNotFound
	}
	if !p.IsActive {
		return nil, repo.ErrPollClosed
	}
	if f.optionPoll(optionID) != pollID {
		return nil, repo.ErrOptionNotInPoll
	}

	kept := f.votes[:0]
	for _, v := range f.votes {
		if v.UserID == userID && f.optionPoll(v.OptionID) == pollID {
			continue
		}
		kept = append(kept, v)
	}
	f.votes = kept

	f.writes++
	vote := &model.PollVote{ID: uuid.New(), OptionID: optionID, UserID: userID, CreatedAt: time.Now()}
	f.votes = append(f.votes, vote)
	cp := *vote
	return &cp, nil
}

func (f *fakeRepo) GetPollResults(_ context.Context, pollID uuid.UUID) ([]model.OptionTally, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.polls[pollID]
	if !ok {
		return nil, repo.ErrPollNotFound
	}
	var out []model.OptionTally
	for _, o := range p.Options {
		t := model.OptionTally{Option: o}
		for _, v := range f.votes {
			if v.OptionID == o.ID {
				t.Votes++
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeRepo) votesBy(pollID, userID uuid.UUID) []*model.PollVote {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.PollVote
	for _, v := range f.votes {
		if v.UserID == userID && f.optionPoll(v.OptionID) == pollID {
			out = append(out, v)
		}
	}
	return out
}

func (f *fakeRepo) GetProfile(_ context.Context, userID uuid.UUID) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, repo.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) UpsertProfile(_ context.Context, p *model.Profile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	p.UpdatedAt = time.Now()
	cp := *p
	f.profiles[p.UserID] = &cp
	return nil
}

func (f *fakeRepo) MigrateUp(string) error   { return nil }
func (f *fakeRepo) MigrateDown(string) error { return nil }

type published struct {
	body  []byte
	delay int
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, body []byte, delaySeconds int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{body: body, delay: delaySeconds})
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (s *fakeSender) Send(_ context.Context, msg mailer.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

var errBackendDown = errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")

// bump returns a timestamp strictly after prev, like a fresh NOW() would be.
func bump(prev time.Time) time.Time {
	now := time.Now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
