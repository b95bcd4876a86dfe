package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const resumeColumns = `id, profile_id, title, template_id, form_data, is_public, created_at, updated_at`

// CreateResume inserts a resume under a profile. It returns ErrNotFound
// when the profile does not exist.
func (db *DB) CreateResume(ctx context.Context, profileID uuid.UUID, in ResumeInput) (*Resume, error) {
	formJSON, err := json.Marshal(in.FormData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal form data: %w", err)
	}

	r, err := scanResume(db.pool.QueryRow(ctx,
		`INSERT INTO resumes (profile_id, title, template_id, form_data)
		 SELECT id, $2, $3, $4 FROM profiles WHERE id = $1
		 RETURNING `+resumeColumns,
		profileID, in.Title, in.TemplateID, formJSON,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to create resume: %w", err)
	}
	return r, nil
}

// GetResume retrieves a resume by ID. It returns nil, nil when absent.
func (db *DB) GetResume(ctx context.Context, id uuid.UUID) (*Resume, error) {
	r, err := scanResume(db.pool.QueryRow(ctx,
		`SELECT `+resumeColumns+` FROM resumes WHERE id = $1`, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get resume: %w", err)
	}
	return r, nil
}

// ListResumes retrieves a profile's resumes, most recently updated first.
func (db *DB) ListResumes(ctx context.Context, profileID uuid.UUID) ([]Resume, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+resumeColumns+` FROM resumes
		 WHERE profile_id = $1 ORDER BY updated_at DESC`,
		profileID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	defer rows.Close()

	resumes := []Resume{}
	for rows.Next() {
		r, err := scanResume(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resume: %w", err)
		}
		resumes = append(resumes, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list resumes: %w", err)
	}
	return resumes, nil
}

// UpdateResume replaces the writable fields of a resume.
func (db *DB) UpdateResume(ctx context.Context, id uuid.UUID, in ResumeInput) (*Resume, error) {
	formJSON, err := json.Marshal(in.FormData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal form data: %w", err)
	}

	r, err := scanResume(db.pool.QueryRow(ctx,
		`UPDATE resumes SET title = $1, template_id = $2, form_data = $3, updated_at = NOW()
		 WHERE id = $4
		 RETURNING `+resumeColumns,
		in.Title, in.TemplateID, formJSON, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update resume: %w", err)
	}
	return r, nil
}

// SetResumePublic toggles whether a resume may be served through share links.
func (db *DB) SetResumePublic(ctx context.Context, id uuid.UUID, public bool) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE resumes SET is_public = $1, updated_at = NOW() WHERE id = $2`,
		public, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update resume visibility: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteResume deletes a resume.
func (db *DB) DeleteResume(ctx context.Context, id uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM resumes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete resume: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanResume(row pgx.Row) (*Resume, error) {
	var r Resume
	var formJSON []byte
	if err := row.Scan(&r.ID, &r.ProfileID, &r.Title, &r.TemplateID, &formJSON, &r.IsPublic, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(formJSON, &r.FormData); err != nil {
		return nil, fmt.Errorf("failed to decode form data: %w", err)
	}
	return &r, nil
}
