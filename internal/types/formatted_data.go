package types

// FormattedData is the compiler-ready shape of FormData. It mirrors FormData
// field for field, except that every date is an ISO "YYYY-MM-DD" string and
// absent dates are omitted from the JSON payload.
type FormattedData struct {
	PersonalInfo PersonalInfo          `json:"personalInfo"`
	Education    []FormattedEducation  `json:"education"`
	Experience   []FormattedExperience `json:"experience"`
	Projects     []FormattedProject    `json:"projects"`
	Skills       Skills                `json:"skills"`
	Achievements []string              `json:"achievements,omitempty"`
}

// FormattedEducation is Education with string dates.
type FormattedEducation struct {
	School     string   `json:"school"`
	Degree     string   `json:"degree"`
	Field      string   `json:"field,omitempty"`
	Location   string   `json:"location,omitempty"`
	GPA        string   `json:"gpa,omitempty"`
	StartDate  string   `json:"startDate,omitempty"`
	EndDate    string   `json:"endDate,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// FormattedExperience is Experience with string dates.
type FormattedExperience struct {
	Company    string   `json:"company"`
	Position   string   `json:"position"`
	Location   string   `json:"location,omitempty"`
	StartDate  string   `json:"startDate,omitempty"`
	EndDate    string   `json:"endDate,omitempty"`
	Current    bool     `json:"current,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}

// FormattedProject is Project with string dates.
type FormattedProject struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	URL          string   `json:"url,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
	StartDate    string   `json:"startDate,omitempty"`
	EndDate      string   `json:"endDate,omitempty"`
	Highlights   []string `json:"highlights,omitempty"`
}
