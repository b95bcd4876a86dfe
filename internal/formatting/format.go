// Package formatting converts edit-time form data into the shape the
// typesetting compiler consumes.
package formatting

import (
	"github.com/go-playground/validator/v10"
	"github.com/jonathan/resume-builder/internal/types"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// IsComplete reports whether an education, experience or project entry has
// every field the compiler needs. Required fields are declared with
// `validate:"required"` tags on the entry types.
func IsComplete(entry any) bool {
	return validate.Struct(entry) == nil
}

// Format converts every date in data to a "YYYY-MM-DD" string. Absent dates
// stay absent and every other field is copied unchanged. Nil lists become
// empty lists so the compiler never sees null where it expects an array.
func Format(data types.FormData) types.FormattedData {
	out := types.FormattedData{
		PersonalInfo: data.PersonalInfo,
		Education:    make([]types.FormattedEducation, 0, len(data.Education)),
		Experience:   make([]types.FormattedExperience, 0, len(data.Experience)),
		Projects:     make([]types.FormattedProject, 0, len(data.Projects)),
		Skills:       data.Skills,
		Achievements: data.Achievements,
	}

	for _, e := range data.Education {
		out.Education = append(out.Education, types.FormattedEducation{
			School:     e.School,
			Degree:     e.Degree,
			Field:      e.Field,
			Location:   e.Location,
			GPA:        e.GPA,
			StartDate:  isoDate(e.StartDate),
			EndDate:    isoDate(e.EndDate),
			Highlights: e.Highlights,
		})
	}

	for _, e := range data.Experience {
		out.Experience = append(out.Experience, types.FormattedExperience{
			Company:    e.Company,
			Position:   e.Position,
			Location:   e.Location,
			StartDate:  isoDate(e.StartDate),
			EndDate:    isoDate(e.EndDate),
			Current:    e.Current,
			Highlights: e.Highlights,
		})
	}

	for _, p := range data.Projects {
		out.Projects = append(out.Projects, types.FormattedProject{
			Name:         p.Name,
			Description:  p.Description,
			URL:          p.URL,
			Technologies: p.Technologies,
			StartDate:    isoDate(p.StartDate),
			EndDate:      isoDate(p.EndDate),
			Highlights:   p.Highlights,
		})
	}

	return out
}

// FormatComplete drops incomplete education, experience and project entries
// before formatting. Dropped entries are not reported; the remaining entries
// keep their original order.
func FormatComplete(data types.FormData) types.FormattedData {
	filtered := data
	filtered.Education = completeOnly(data.Education)
	filtered.Experience = completeOnly(data.Experience)
	filtered.Projects = completeOnly(data.Projects)
	return Format(filtered)
}

func completeOnly[T any](entries []T) []T {
	kept := make([]T, 0, len(entries))
	for i := range entries {
		if IsComplete(&entries[i]) {
			kept = append(kept, entries[i])
		}
	}
	return kept
}

func isoDate(d *types.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.ISO()
}
