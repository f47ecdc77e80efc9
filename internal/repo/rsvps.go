package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"filmclub/internal/model"
)

const rsvpColumns = `id, meeting_id, user_id, status, waitlisted, created_at, updated_at`

func scanRSVP(row rowScanner) (*model.RSVP, error) {
	var rsvp model.RSVP
	if err := row.Scan(
		&rsvp.ID,
		&rsvp.MeetingID,
		&rsvp.UserID,
		&rsvp.Status,
		&rsvp.Waitlisted,
		&rsvp.CreatedAt,
		&rsvp.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rsvp, nil
}

// SaveRSVPTx seats or waitlists rsvp and upserts it keyed by (meeting, user).
// The meeting row is locked for the whole count-then-upsert sequence, so
// concurrent "yes" answers for the same meeting are decided one at a time and
// cannot overbook it. rsvp.Waitlisted and the row metadata are filled in.
func (r *repository) SaveRSVPTx(ctx context.Context, rsvp *model.RSVP, defaultCapacity int) (*model.Meeting, error) {
	tx, err := r.begin(ctx)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	meeting, err := scanMeeting(tx.QueryRowContext(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		WHERE id = $1 AND NOT is_deleted
		FOR UPDATE
	`, rsvp.MeetingID))
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMeetingNotFound
		}
		return nil, fmt.Errorf("failed to lock meeting: %w", err)
	}

	if meeting.IsCanceled {
		_ = tx.Rollback()
		return nil, ErrMeetingCanceled
	}

	var seated int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM rsvps
		WHERE meeting_id = $1 AND status = 'yes' AND NOT waitlisted
	`, rsvp.MeetingID).Scan(&seated)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to count rsvps: %w", err)
	}

	rsvp.Waitlisted = model.ShouldWaitlist(rsvp.Status, meeting.EffectiveCapacity(defaultCapacity), seated)

	saved, err := scanRSVP(tx.QueryRowContext(ctx, `
		INSERT INTO rsvps (meeting_id, user_id, status, waitlisted)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (meeting_id, user_id) DO UPDATE SET
			status = EXCLUDED.status,
			waitlisted = EXCLUDED.waitlisted,
			updated_at = NOW()
		RETURNING `+rsvpColumns,
		rsvp.MeetingID, rsvp.UserID, rsvp.Status, rsvp.Waitlisted,
	))
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to upsert rsvp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	*rsvp = *saved
	return meeting, nil
}

func (r *repository) GetRSVPByID(ctx context.Context, id uuid.UUID) (*model.RSVP, error) {
	query := `SELECT ` + rsvpColumns + ` FROM rsvps WHERE id = $1`

	rsvp, err := scanRSVP(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRSVPNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rsvp: %w", err)
	}
	return rsvp, nil
}

func (r *repository) GetRSVP(ctx context.Context, meetingID, userID uuid.UUID) (*model.RSVP, error) {
	query := `SELECT ` + rsvpColumns + ` FROM rsvps WHERE meeting_id = $1 AND user_id = $2`

	rsvp, err := scanRSVP(r.db.QueryRowContext(ctx, query, meetingID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRSVPNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rsvp: %w", err)
	}
	return rsvp, nil
}

func (r *repository) ListRSVPsByUser(ctx context.Context, userID uuid.UUID) ([]model.UserRSVP, error) {
	query := `
		SELECT r.id, r.meeting_id, r.user_id, r.status, r.waitlisted, r.created_at, r.updated_at,
		       m.film_title, m.starts_at_tz
		FROM rsvps r
		JOIN meetings m ON m.id = r.meeting_id
		WHERE r.user_id = $1 AND NOT m.is_deleted
		ORDER BY m.starts_at_tz ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rsvps: %w", err)
	}
	defer rows.Close()

	var out []model.UserRSVP
	for rows.Next() {
		var ur model.UserRSVP
		if err := rows.Scan(
			&ur.ID,
			&ur.MeetingID,
			&ur.UserID,
			&ur.Status,
			&ur.Waitlisted,
			&ur.CreatedAt,
			&ur.UpdatedAt,
			&ur.FilmTitle,
			&ur.StartsAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rsvp: %w", err)
		}
		out = append(out, ur)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rsvps: %w", err)
	}

	return out, nil
}
