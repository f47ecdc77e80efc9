package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"filmclub/internal/model"
)

var (
	ErrMeetingNotFound = errors.New("meeting not found")
	ErrMeetingCanceled = errors.New("meeting was canceled")
	ErrRSVPNotFound    = errors.New("rsvp not found")
	ErrPollNotFound    = errors.New("poll not found")
	ErrPollClosed      = errors.New("poll is closed")
	ErrOptionNotInPoll = errors.New("option does not belong to poll")
	ErrProfileNotFound = errors.New("profile not found")
	ErrSchemaMissing   = errors.New(`table "meetings" not found`)
)

// undefined_table
const pqUndefinedTable = "42P01"

type Repository interface {
	CreateMeeting(ctx context.Context, m *model.Meeting) error
	GetMeetingByID(ctx context.Context, id uuid.UUID) (*model.Meeting, error)
	ListMeetings(ctx context.Context, ageGroup string) ([]model.Meeting, error)
	SoftDeleteMeeting(ctx context.Context, id uuid.UUID) error
	CancelMeeting(ctx context.Context, id uuid.UUID) error
	CountMeetings(ctx context.Context) (int, error)
	GetMeetingStats(ctx context.Context, id uuid.UUID) (model.MeetingStats, error)

	SaveRSVPTx(ctx context.Context, rsvp *model.RSVP, defaultCapacity int) (*model.Meeting, error)
	GetRSVPByID(ctx context.Context, id uuid.UUID) (*model.RSVP, error)
	GetRSVP(ctx context.Context, meetingID, userID uuid.UUID) (*model.RSVP, error)
	ListRSVPsByUser(ctx context.Context, userID uuid.UUID) ([]model.UserRSVP, error)

	CreatePollTx(ctx context.Context, p *model.Poll) error
	GetActivePoll(ctx context.Context, clubID string) (*model.Poll, error)
	GetPollByID(ctx context.Context, id uuid.UUID) (*model.Poll, error)
	ClosePoll(ctx context.Context, id uuid.UUID) error
	ReplaceVoteTx(ctx context.Context, pollID, optionID, userID uuid.UUID) (*model.PollVote, error)
	GetPollResults(ctx context.Context, pollID uuid.UUID) ([]model.OptionTally, error)

	GetProfile(ctx context.Context, userID uuid.UUID) (*model.Profile, error)
	UpsertProfile(ctx context.Context, p *model.Profile) error

	MigrateUp(migrationsDir string) error
	MigrateDown(migrationsDir string) error
}

// querier is satisfied by both *dbpg.DB and *sql.DB.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

type repository struct {
	db     querier
	master *sql.DB
	log    *zerolog.Logger
}

func NewRepository(db *dbpg.DB, log *zerolog.Logger) (Repository, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if err := db.Master.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	return newRepository(db, db.Master, log), nil
}

func newRepository(db querier, master *sql.DB, log *zerolog.Logger) *repository {
	return &repository{db: db, master: master, log: log}
}

func (r *repository) MigrateUp(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}
	sort.Strings(files)

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations applied successfully from %s", migrationsDir)
	return nil
}

func (r *repository) MigrateDown(migrationsDir string) error {
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.down.sql"))
	if err != nil {
		return fmt.Errorf("failed to read rollback files: %w", err)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	for _, file := range files {
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read rollback file %s: %w", file, err)
		}

		if _, err := r.db.ExecContext(context.Background(), string(sqlBytes)); err != nil {
			return fmt.Errorf("failed to rollback migration %s: %w", file, err)
		}
	}

	r.log.Info().Msgf("Migrations rolled back successfully from %s", migrationsDir)
	return nil
}

// begin opens a transaction on the master connection.
func (r *repository) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.master.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUndefinedTable
}

func nullString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
