package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"filmclub/internal/model"
)

const pollColumns = `id, club_id, question, is_active, closes_at, created_at`

func scanPoll(row rowScanner) (*model.Poll, error) {
	var (
		p        model.Poll
		closesAt sql.NullTime
	)
	if err := row.Scan(&p.ID, &p.ClubID, &p.Question, &p.IsActive, &closesAt, &p.CreatedAt); err != nil {
		return nil, err
	}
	if closesAt.Valid {
		t := closesAt.Time
		p.ClosesAt = &t
	}
	return &p, nil
}

func scanOption(row rowScanner) (*model.PollOption, error) {
	var (
		o         model.PollOption
		filmTitle sql.NullString
	)
	if err := row.Scan(&o.ID, &o.PollID, &o.OptionText, &filmTitle, &o.Position); err != nil {
		return nil, err
	}
	o.FilmTitle = stringPtr(filmTitle)
	return &o, nil
}

func (r *repository) CreatePollTx(ctx context.Context, p *model.Poll) error {
	tx, err := r.begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO polls (club_id, question, is_active, closes_at)
		VALUES ($1, $2, TRUE, $3)
		RETURNING id, is_active, created_at
	`, p.ClubID, p.Question, p.ClosesAt).Scan(&p.ID, &p.IsActive, &p.CreatedAt)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("failed to insert poll: %w", err)
	}

	for i := range p.Options {
		opt := &p.Options[i]
		opt.PollID = p.ID
		opt.Position = i
		err = tx.QueryRowContext(ctx, `
			INSERT INTO poll_options (poll_id, option_text, film_title, position)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, opt.PollID, opt.OptionText, nullString(opt.FilmTitle), opt.Position).Scan(&opt.ID)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert poll option: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetActivePoll returns the active poll closing soonest, with its options.
// An empty clubID matches any club.
func (r *repository) GetActivePoll(ctx context.Context, clubID string) (*model.Poll, error) {
	query := `SELECT ` + pollColumns + `
		FROM polls
		WHERE is_active AND ($1 = '' OR club_id = $1)
		ORDER BY closes_at ASC NULLS LAST, created_at DESC
		LIMIT 1
	`

	p, err := scanPoll(r.db.QueryRowContext(ctx, query, clubID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active poll: %w", err)
	}

	if p.Options, err = r.listOptions(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) GetPollByID(ctx context.Context, id uuid.UUID) (*model.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`

	p, err := scanPoll(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPollNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get poll: %w", err)
	}

	if p.Options, err = r.listOptions(ctx, p.ID); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repository) listOptions(ctx context.Context, pollID uuid.UUID) ([]model.PollOption, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, poll_id, option_text, film_title, position
		FROM poll_options
		WHERE poll_id = $1
		ORDER BY position ASC
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll options: %w", err)
	}
	defer rows.Close()

	var options []model.PollOption
	for rows.Next() {
		o, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll option: %w", err)
		}
		options = append(options, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate poll options: %w", err)
	}
	return options, nil
}

func (r *repository) ClosePoll(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE polls SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to close poll: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to close poll: %w", err)
	}
	if n == 0 {
		return ErrPollNotFound
	}
	return nil
}

// ReplaceVoteTx removes every vote userID holds across the poll's options and
// records a single vote for optionID. The poll row is locked so two ballots
// from the same user cannot interleave between the delete and the insert.
func (r *repository) ReplaceVoteTx(ctx context.Context, pollID, optionID, userID uuid.UUID) (*model.PollVote, error) {
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

	var active bool
	err = tx.QueryRowContext(ctx, `SELECT is_active FROM polls WHERE id = $1 FOR UPDATE`, pollID).Scan(&active)
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPollNotFound
		}
		return nil, fmt.Errorf("failed to lock poll: %w", err)
	}
	if !active {
		_ = tx.Rollback()
		return nil, ErrPollClosed
	}

	var owner uuid.UUID
	err = tx.QueryRowContext(ctx, `SELECT poll_id FROM poll_options WHERE id = $1`, optionID).Scan(&owner)
	if err != nil || owner != pollID {
		_ = tx.Rollback()
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check poll option: %w", err)
		}
		return nil, ErrOptionNotInPoll
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM poll_votes
		WHERE user_id = $1
		  AND option_id IN (SELECT id FROM poll_options WHERE poll_id = $2)
	`, userID, pollID)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to delete previous votes: %w", err)
	}

	vote := model.PollVote{OptionID: optionID, UserID: userID}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO poll_votes (option_id, user_id)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, optionID, userID).Scan(&vote.ID, &vote.CreatedAt)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("failed to insert vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &vote, nil
}

func (r *repository) GetPollResults(ctx context.Context, pollID uuid.UUID) ([]model.OptionTally, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT o.id, o.poll_id, o.option_text, o.film_title, o.position, COUNT(v.id)
		FROM poll_options o
		LEFT JOIN poll_votes v ON v.option_id = o.id
		WHERE o.poll_id = $1
		GROUP BY o.id, o.poll_id, o.option_text, o.film_title, o.position
		ORDER BY o.position ASC
	`, pollID)
	if err != nil {
		return nil, fmt.Errorf("failed to get poll results: %w", err)
	}
	defer rows.Close()

	var tallies []model.OptionTally
	for rows.Next() {
		var (
			t         model.OptionTally
			filmTitle sql.NullString
		)
		if err := rows.Scan(
			&t.Option.ID, &t.Option.PollID, &t.Option.OptionText, &filmTitle, &t.Option.Position, &t.Votes,
		); err != nil {
			return nil, fmt.Errorf("failed to scan poll result: %w", err)
		}
		t.Option.FilmTitle = stringPtr(filmTitle)
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate poll results: %w", err)
	}
	return tallies, nil
}
