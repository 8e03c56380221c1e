package services

import "strings"

// Citizen is a registered player, keyed by email.
type Citizen struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Plot            string `json:"plot"`
	UserID          string `json:"user_id"`
	SpaceID         string `json:"space_id"`
	House           string `json:"house"`
	Occupation      string `json:"occupation"`
	OccupationLevel int    `json:"occupation_level"`
	Gold            int    `json:"gold"`
}

// Salary holds an occupation's pay range plus the per-level salary steps.
// Steps are indexed by occupation level, 1-based.
type Salary struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Steps []int   `json:"steps"`
}

// At returns the salary step for the given level, clamped to the table.
func (s Salary) At(level int) int {
	if len(s.Steps) == 0 {
		return 0
	}
	if level < 1 {
		level = 1
	}
	if level > len(s.Steps) {
		level = len(s.Steps)
	}
	return s.Steps[level-1]
}

// Occupation is read-only reference data describing a player role.
type Occupation struct {
	Name        string   `json:"name"`
	Icon        string   `json:"icon"`
	Description string   `json:"description"`
	Subjects    []string `json:"subjects"`
	Education   float64  `json:"education"`
	Health      float64  `json:"health"`
	Happiness   float64  `json:"happiness"`
	ImageURL    string   `json:"image_url"`
	Salary      Salary   `json:"salary"`
}

// NormalizeOccupationName lowercases and joins an occupation name so
// "Software Developer" and "software_developer" address the same record.
func NormalizeOccupationName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

// Village is an aggregate scored cohort, consumed for display only.
type Village struct {
	Name       string  `json:"name"`
	Population int     `json:"population"`
	Gold       int     `json:"gold"`
	Education  float64 `json:"education"`
	Health     float64 `json:"health"`
	Happiness  float64 `json:"happiness"`
	TaxRate    float64 `json:"tax_rate"`
	Prosperity float64 `json:"prosperity"`
}

// Question is a quiz bank entry. Answer is the 1-based option index, as a
// string, of the correct choice.
type Question struct {
	ID      string   `json:"id"`
	Subject string   `json:"subject"`
	Level   int      `json:"level"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
	Answer  string   `json:"answer"`
}

// VoteOption is one ordinance choice offered in a given week.
type VoteOption struct {
	Week        int    `json:"week"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// WeekEntry is one row of the game calendar: the week number, its start
// date in DD/MM/YYYY form, the time of day notifications go out, and the
// announcement copy for the week transition.
type WeekEntry struct {
	Week       int    `json:"week"`
	StartDate  string `json:"start_date"`
	NotifyTime string `json:"notify_time"`
	Message    string `json:"message"`
}
