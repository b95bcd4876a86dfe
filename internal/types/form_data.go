// Package types provides type definitions for structured data used throughout the resume-builder system.
//
//nolint:revive // types is a standard Go package name pattern
package types

// FormData is the edit-time shape of a resume: what the multi-step profile
// forms produce. Dates are native values; optional dates are nil.
type FormData struct {
	PersonalInfo PersonalInfo `json:"personalInfo"`
	Education    []Education  `json:"education"`
	Experience   []Experience `json:"experience"`
	Projects     []Project    `json:"projects"`
	Skills       Skills       `json:"skills"`
	Achievements []string     `json:"achievements,omitempty"`
}

// PersonalInfo holds the contact header of a resume.
type PersonalInfo struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Location  string `json:"location,omitempty"`
	Website   string `json:"website,omitempty"`
	LinkedIn  string `json:"linkedin,omitempty"`
	GitHub    string `json:"github,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// Education represents an education entry. School and Degree are required
// for the entry to be handed to the compiler.
type Education struct {
	School     string   `json:"school" validate:"required"`
	Degree     string   `json:"degree" validate:"required"`
	Field      string   `json:"field,omitempty"`
	Location   string   `json:"location,omitempty"`
	GPA        string   `json:"gpa,omitempty"`
	StartDate  *Date    `json:"startDate,omitempty"`
	EndDate    *Date    `json:"endDate,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// Experience represents an employment history entry. A nil EndDate means
// the position is current.
type Experience struct {
	Company    string   `json:"company" validate:"required"`
	Position   string   `json:"position" validate:"required"`
	Location   string   `json:"location,omitempty"`
	StartDate  *Date    `json:"startDate,omitempty"`
	EndDate    *Date    `json:"endDate,omitempty"`
	Current    bool     `json:"current,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// Project represents a personal or professional project.
type Project struct {
	Name         string   `json:"name" validate:"required"`
	Description  string   `json:"description,omitempty"`
	URL          string   `json:"url,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	StartDate    *Date    `json:"startDate,omitempty"`
	EndDate      *Date    `json:"endDate,omitempty"`
	Highlights   []string `json:"highlights,omitempty"`
}

// Skills groups skill keywords by kind.
type Skills struct {
	Languages  []string `json:"languages,omitempty"`
	Frameworks []string `json:"frameworks,omitempty"`
	Tools      []string `json:"tools,omitempty"`
	Other      []string `json:"other,omitempty"`
}
