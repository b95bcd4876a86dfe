package db

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/resume-builder/internal/types"
)

// Profile is a person's reusable resume data.
type Profile struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Email     string         `json:"email"`
	FormData  types.FormData `json:"formData"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// ProfileInput carries the writable fields of a profile.
type ProfileInput struct {
	Name     string         `json:"name" validate:"required,max=200"`
	Email    string         `json:"email" validate:"required,email"`
	FormData types.FormData `json:"formData"`
}

// Resume is a saved, template-bound copy of a profile's data.
type Resume struct {
	ID         uuid.UUID      `json:"id"`
	ProfileID  uuid.UUID      `json:"profileId"`
	Title      string         `json:"title"`
	TemplateID string         `json:"templateId"`
	FormData   types.FormData `json:"formData"`
	IsPublic   bool           `json:"isPublic"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// ResumeInput carries the writable fields of a resume.
type ResumeInput struct {
	Title      string         `json:"title" validate:"required,max=200"`
	TemplateID string         `json:"templateId" validate:"required"`
	FormData   types.FormData `json:"formData"`
}

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the required profile fields.
func (in *ProfileInput) Validate() error {
	return validate.Struct(in)
}

// Validate checks the required resume fields.
func (in *ResumeInput) Validate() error {
	return validate.Struct(in)
}
