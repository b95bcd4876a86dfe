package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const profileColumns = `id, name, email, form_data, created_at, updated_at`

// CreateProfile inserts a profile and returns the stored row.
func (db *DB) CreateProfile(ctx context.Context, in ProfileInput) (*Profile, error) {
	formJSON, err := json.Marshal(in.FormData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal form data: %w", err)
	}

	p, err := scanProfile(db.pool.QueryRow(ctx,
		`INSERT INTO profiles (name, email, form_data)
		 VALUES ($1, $2, $3)
		 RETURNING `+profileColumns,
		in.Name, in.Email, formJSON,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return p, nil
}

// GetProfile retrieves a profile by ID. It returns nil, nil when absent.
func (db *DB) GetProfile(ctx context.Context, id uuid.UUID) (*Profile, error) {
	p, err := scanProfile(db.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

// UpdateProfile replaces the writable fields of a profile.
func (db *DB) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*Profile, error) {
	formJSON, err := json.Marshal(in.FormData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal form data: %w", err)
	}

	p, err := scanProfile(db.pool.QueryRow(ctx,
		`UPDATE profiles SET name = $1, email = $2, form_data = $3, updated_at = NOW()
		 WHERE id = $4
		 RETURNING `+profileColumns,
		in.Name, in.Email, formJSON, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

// DeleteProfile deletes a profile and its resumes (via cascade).
func (db *DB) DeleteProfile(ctx context.Context, id uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	var formJSON []byte
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &formJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(formJSON, &p.FormData); err != nil {
		return nil, fmt.Errorf("failed to decode form data: %w", err)
	}
	return &p, nil
}
