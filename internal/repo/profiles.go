package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"filmclub/internal/model"
)

func (r *repository) GetProfile(ctx context.Context, userID uuid.UUID) (*model.Profile, error) {
	var (
		p     model.Profile
		phone sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, full_name, age_group, phone, updated_at
		FROM profiles
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.FullName, &p.AgeGroup, &phone, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	p.Phone = stringPtr(phone)
	return &p, nil
}

func (r *repository) UpsertProfile(ctx context.Context, p *model.Profile) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO profiles (user_id, full_name, age_group, phone)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			age_group = EXCLUDED.age_group,
			phone = EXCLUDED.phone,
			updated_at = NOW()
		RETURNING updated_at
	`, p.UserID, p.FullName, p.AgeGroup, nullString(p.Phone)).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}
