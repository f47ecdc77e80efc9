package repo

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"filmclub/internal/model"
)

const migrationsDir = "../../migrations/postgres"

// setupTestRepo connects to the database named by FILMCLUB_TEST_DSN and
// recreates the schema. Tests are skipped when the variable is unset.
func setupTestRepo(t *testing.T) (*repository, *sql.DB) {
	t.Helper()

	dsn := os.Getenv("FILMCLUB_TEST_DSN")
	if dsn == "" {
		t.Skip("FILMCLUB_TEST_DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}

	log := zerolog.Nop()
	r := newRepository(db, db, &log)
	if err := r.MigrateDown(migrationsDir); err != nil {
		t.Fatalf("Failed to clean database: %v", err)
	}
	if err := r.MigrateUp(migrationsDir); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		_ = r.MigrateDown(migrationsDir)
		_ = db.Close()
	})
	return r, db
}

func createTestMeeting(t *testing.T, r *repository, capacity *int) *model.Meeting {
	t.Helper()

	m := &model.Meeting{
		FilmTitle: "Cinema Paradiso",
		StartsAt:  time.Now().Add(72 * time.Hour).UTC().Truncate(time.Second),
		Timezone:  "UTC",
		Capacity:  capacity,
		AgeGroup:  "55+",
	}
	if err := r.CreateMeeting(context.Background(), m); err != nil {
		t.Fatalf("Failed to create test meeting: %v", err)
	}
	return m
}

func TestSaveRSVPTxWaitlistsOverCapacity(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()

	capacity := 2
	m := createTestMeeting(t, r, &capacity)

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	want := []bool{false, false, true}

	for i, u := range users {
		rsvp := &model.RSVP{MeetingID: m.ID, UserID: u, Status: model.RSVPYes}
		if _, err := r.SaveRSVPTx(ctx, rsvp, 100); err != nil {
			t.Fatalf("SaveRSVPTx(U%d) error = %v", i+1, err)
		}
		if rsvp.Waitlisted != want[i] {
			t.Errorf("U%d waitlisted = %v, want %v", i+1, rsvp.Waitlisted, want[i])
		}
	}

	stats, err := r.GetMeetingStats(ctx, m.ID)
	if err != nil {
		t.Fatalf("GetMeetingStats() error = %v", err)
	}
	if stats.Seated != 2 || stats.Waitlisted != 1 {
		t.Errorf("stats = %+v, want seated=2 waitlisted=1", stats)
	}
}

func TestSaveRSVPTxUpsertsSamePair(t *testing.T) {
	r, db := setupTestRepo(t)
	ctx := context.Background()

	m := createTestMeeting(t, r, nil)
	user := uuid.New()

	var stamps []time.Time
	for _, status := range []string{model.RSVPYes, model.RSVPYes, model.RSVPMaybe} {
		rsvp := &model.RSVP{MeetingID: m.ID, UserID: user, Status: status}
		if _, err := r.SaveRSVPTx(ctx, rsvp, 100); err != nil {
			t.Fatalf("SaveRSVPTx(%s) error = %v", status, err)
		}
		stamps = append(stamps, rsvp.UpdatedAt)
	}
	for i := 1; i < len(stamps); i++ {
		if !stamps[i].After(stamps[i-1]) {
			t.Errorf("updated_at did not advance on save %d: %v -> %v", i, stamps[i-1], stamps[i])
		}
	}

	var count int
	var status string
	err := db.QueryRow(`SELECT COUNT(*), MAX(status) FROM rsvps WHERE meeting_id = $1 AND user_id = $2`, m.ID, user).
		Scan(&count, &status)
	if err != nil {
		t.Fatalf("Failed to query rsvps: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d rows, want 1", count)
	}
	if status != model.RSVPMaybe {
		t.Errorf("status = %q, want %q", status, model.RSVPMaybe)
	}
}

func TestSaveRSVPTxMeetingState(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()

	_, err := r.SaveRSVPTx(ctx, &model.RSVP{MeetingID: uuid.New(), UserID: uuid.New(), Status: model.RSVPYes}, 100)
	if !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("unknown meeting: got %v, want ErrMeetingNotFound", err)
	}

	canceled := createTestMeeting(t, r, nil)
	if err := r.CancelMeeting(ctx, canceled.ID); err != nil {
		t.Fatalf("CancelMeeting() error = %v", err)
	}
	_, err = r.SaveRSVPTx(ctx, &model.RSVP{MeetingID: canceled.ID, UserID: uuid.New(), Status: model.RSVPYes}, 100)
	if !errors.Is(err, ErrMeetingCanceled) {
		t.Errorf("canceled meeting: got %v, want ErrMeetingCanceled", err)
	}

	deleted := createTestMeeting(t, r, nil)
	if err := r.SoftDeleteMeeting(ctx, deleted.ID); err != nil {
		t.Fatalf("SoftDeleteMeeting() error = %v", err)
	}
	if _, err := r.GetMeetingByID(ctx, deleted.ID); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("deleted meeting still visible: %v", err)
	}
	if err := r.SoftDeleteMeeting(ctx, deleted.ID); !errors.Is(err, ErrMeetingNotFound) {
		t.Errorf("second delete: got %v, want ErrMeetingNotFound", err)
	}
}

func TestListMeetingsFiltersByAgeGroup(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()

	createTestMeeting(t, r, nil)
	young := &model.Meeting{
		FilmTitle: "Spirited Away",
		StartsAt:  time.Now().Add(24 * time.Hour),
		Timezone:  "UTC",
		AgeGroup:  "15-17",
	}
	if err := r.CreateMeeting(ctx, young); err != nil {
		t.Fatalf("CreateMeeting() error = %v", err)
	}

	all, err := r.ListMeetings(ctx, "")
	if err != nil {
		t.Fatalf("ListMeetings() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d meetings, want 2", len(all))
	}
	if all[0].ID != young.ID {
		t.Error("meetings should be ordered by start time")
	}

	filtered, err := r.ListMeetings(ctx, "15-17")
	if err != nil {
		t.Fatalf("ListMeetings() error = %v", err)
	}
	if len(filtered) != 1 || filtered[0].FilmTitle != "Spirited Away" {
		t.Errorf("filtered = %+v", filtered)
	}
}

func createTestPoll(t *testing.T, r *repository, clubID string, options ...string) *model.Poll {
	t.Helper()

	p := &model.Poll{ClubID: clubID, Question: "Next film?"}
	for _, o := range options {
		p.Options = append(p.Options, model.PollOption{OptionText: o})
	}
	if err := r.CreatePollTx(context.Background(), p); err != nil {
		t.Fatalf("Failed to create test poll: %v", err)
	}
	return p
}

func TestReplaceVoteTxKeepsOneVotePerPoll(t *testing.T) {
	r, db := setupTestRepo(t)
	ctx := context.Background()

	p := createTestPoll(t, r, "20-40", "Stalker", "Solaris")
	user := uuid.New()

	for _, opt := range []uuid.UUID{p.Options[0].ID, p.Options[1].ID, p.Options[1].ID} {
		if _, err := r.ReplaceVoteTx(ctx, p.ID, opt, user); err != nil {
			t.Fatalf("ReplaceVoteTx() error = %v", err)
		}
	}

	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM poll_votes v
		JOIN poll_options o ON o.id = v.option_id
		WHERE o.poll_id = $1 AND v.user_id = $2
	`, p.ID, user).Scan(&count)
	if err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	if count != 1 {
		t.Errorf("got %d votes, want 1", count)
	}

	tallies, err := r.GetPollResults(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPollResults() error = %v", err)
	}
	if len(tallies) != 2 || tallies[0].Votes != 0 || tallies[1].Votes != 1 {
		t.Errorf("tallies = %+v", tallies)
	}
}

func TestReplaceVoteTxRejectsForeignOption(t *testing.T) {
	r, db := setupTestRepo(t)
	ctx := context.Background()

	p := createTestPoll(t, r, "20-40", "Stalker", "Solaris")
	other := createTestPoll(t, r, "55+", "Amelie", "Roma")

	_, err := r.ReplaceVoteTx(ctx, p.ID, other.Options[0].ID, uuid.New())
	if !errors.Is(err, ErrOptionNotInPoll) {
		t.Fatalf("got %v, want ErrOptionNotInPoll", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM poll_votes`).Scan(&count); err != nil {
		t.Fatalf("Failed to count votes: %v", err)
	}
	if count != 0 {
		t.Errorf("got %d votes written, want 0", count)
	}

	if err := r.ClosePoll(ctx, p.ID); err != nil {
		t.Fatalf("ClosePoll() error = %v", err)
	}
	if _, err := r.ReplaceVoteTx(ctx, p.ID, p.Options[0].ID, uuid.New()); !errors.Is(err, ErrPollClosed) {
		t.Errorf("closed poll: got %v, want ErrPollClosed", err)
	}
}

func TestGetActivePoll(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()

	if _, err := r.GetActivePoll(ctx, "20-40"); !errors.Is(err, ErrPollNotFound) {
		t.Fatalf("empty db: got %v, want ErrPollNotFound", err)
	}

	createTestPoll(t, r, "20-40", "Stalker", "Solaris")
	p, err := r.GetActivePoll(ctx, "20-40")
	if err != nil {
		t.Fatalf("GetActivePoll() error = %v", err)
	}
	if len(p.Options) != 2 || p.Options[0].OptionText != "Stalker" {
		t.Errorf("options = %+v", p.Options)
	}
	if _, err := r.GetActivePoll(ctx, "55+"); !errors.Is(err, ErrPollNotFound) {
		t.Errorf("other club: got %v, want ErrPollNotFound", err)
	}
}

func TestProfileUpsert(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()

	user := uuid.New()
	if _, err := r.GetProfile(ctx, user); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("got %v, want ErrProfileNotFound", err)
	}

	p := &model.Profile{UserID: user, FullName: "Dana", AgeGroup: "20-40"}
	if err := r.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}
	phone := "+972500000000"
	p.Phone = &phone
	p.FullName = "Dana L."
	if err := r.UpsertProfile(ctx, p); err != nil {
		t.Fatalf("UpsertProfile() error = %v", err)
	}

	got, err := r.GetProfile(ctx, user)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if got.FullName != "Dana L." || got.Phone == nil || *got.Phone != phone {
		t.Errorf("profile = %+v", got)
	}
}

func TestCountMeetings(t *testing.T) {
	r, _ := setupTestRepo(t)
	ctx := context.Background()

	createTestMeeting(t, r, nil)
	n, err := r.CountMeetings(ctx)
	if err != nil {
		t.Fatalf("CountMeetings() error = %v", err)
	}
	if n != 1 {
		t.Errorf("got %d, want 1", n)
	}

	if err := r.MigrateDown(migrationsDir); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if _, err := r.CountMeetings(ctx); !errors.Is(err, ErrSchemaMissing) {
		t.Errorf("got %v, want ErrSchemaMissing", err)
	}
}
