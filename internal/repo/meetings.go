package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"filmclub/internal/model"
)

const meetingColumns = `
	id, film_title, starts_at_tz, timezone, COALESCE(url, ''), capacity,
	age_group, is_canceled, is_deleted, created_at, updated_at`

func scanMeeting(row rowScanner) (*model.Meeting, error) {
	var (
		m        model.Meeting
		capacity sql.NullInt64
	)
	if err := row.Scan(
		&m.ID, &m.FilmTitle, &m.StartsAt, &m.Timezone, &m.URL, &capacity,
		&m.AgeGroup, &m.IsCanceled, &m.IsDeleted, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if capacity.Valid {
		c := int(capacity.Int64)
		m.Capacity = &c
	}
	return &m, nil
}

func (r *repository) CreateMeeting(ctx context.Context, m *model.Meeting) error {
	query := `
		INSERT INTO meetings (film_title, starts_at_tz, timezone, url, capacity, age_group)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowContext(ctx, query,
		m.FilmTitle, m.StartsAt, m.Timezone, m.URL, m.Capacity, m.AgeGroup,
	)
	if err := row.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert meeting: %w", err)
	}
	return nil
}

func (r *repository) GetMeetingByID(ctx context.Context, id uuid.UUID) (*model.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1 AND NOT is_deleted`

	m, err := scanMeeting(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMeetingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get meeting: %w", err)
	}
	return m, nil
}

// ListMeetings returns live meetings ordered by start time. An empty
// ageGroup disables the filter.
func (r *repository) ListMeetings(ctx context.Context, ageGroup string) ([]model.Meeting, error) {
	query := `SELECT ` + meetingColumns + `
		FROM meetings
		WHERE NOT is_deleted AND ($1 = '' OR age_group = $1)
		ORDER BY starts_at_tz ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ageGroup)
	if err != nil {
		return nil, fmt.Errorf("failed to get meetings: %w", err)
	}
	defer rows.Close()

	var meetings []model.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meetings: %w", err)
	}

	return meetings, nil
}

func (r *repository) SoftDeleteMeeting(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE meetings
		SET is_deleted = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`
	return r.execMeetingUpdate(ctx, query, id, "delete")
}

func (r *repository) CancelMeeting(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE meetings
		SET is_canceled = TRUE, updated_at = NOW()
		WHERE id = $1 AND NOT is_deleted
	`
	return r.execMeetingUpdate(ctx, query, id, "cancel")
}

func (r *repository) execMeetingUpdate(ctx context.Context, query string, id uuid.UUID, op string) error {
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to %s meeting: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to %s meeting: %w", op, err)
	}
	if n == 0 {
		return ErrMeetingNotFound
	}
	return nil
}

// CountMeetings doubles as the connectivity probe for the health endpoint.
func (r *repository) CountMeetings(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM meetings`).Scan(&count); err != nil {
		if isUndefinedTable(err) {
			return 0, ErrSchemaMissing
		}
		return 0, fmt.Errorf("failed to count meetings: %w", err)
	}
	return count, nil
}

func (r *repository) GetMeetingStats(ctx context.Context, id uuid.UUID) (model.MeetingStats, error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE status = 'yes' AND NOT waitlisted),
			COUNT(*) FILTER (WHERE status = 'yes' AND waitlisted)
		FROM rsvps
		WHERE meeting_id = $1
	`

	var stats model.MeetingStats
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&stats.Seated, &stats.Waitlisted); err != nil {
		return model.MeetingStats{}, fmt.Errorf("failed to count rsvps: %w", err)
	}
	return stats, nil
}
