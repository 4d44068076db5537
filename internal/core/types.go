package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the only accepted date-of-birth format.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time zone. It marshals as YYYY-MM-DD.
type Date struct {
	time.Time
}

// NewDate returns the Date for the given calendar day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a strict YYYY-MM-DD value.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Equal reports whether both values name the same calendar day.
func (d Date) Equal(o Date) bool {
	return d.Year() == o.Year() && d.YearDay() == o.YearDay()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	*d = parsed
	return nil
}

// AthleteFields holds the mutable profile of a competitor.
// Empty strings and nil pointers mean the value is absent.
type AthleteFields struct {
	LastName    string   `json:"lastName"`
	FirstName   string   `json:"firstName"`
	DOB         Date     `json:"dob"`
	Gender      string   `json:"gender"`
	Nationality string   `json:"nationality,omitempty"`
	Stance      string   `json:"stance,omitempty"`
	FISNum      string   `json:"fisNum,omitempty"`
	FISHPPoints *float64 `json:"fisHpPoints,omitempty"`
	FISSSPoints *float64 `json:"fisSsPoints,omitempty"`
	FISBAPoints *float64 `json:"fisBaPoints,omitempty"`
	WSPLPoints  *float64 `json:"wsplPoints,omitempty"`
}

// FullName returns "First Last".
func (f AthleteFields) FullName() string {
	return strings.TrimSpace(f.FirstName + " " + f.LastName)
}

// NaturalKey returns the fallback identity of the profile.
func (f AthleteFields) NaturalKey() NaturalKey {
	return NaturalKey{LastName: f.LastName, FirstName: f.FirstName, DOB: f.DOB}
}

// Athlete is a canonical athlete record as stored.
type Athlete struct {
	ID int64 `json:"id"`
	AthleteFields
}

// ImportRow is a validated input record. Only the row validator produces one.
type ImportRow struct {
	RowIndex int `json:"rowIndex"`
	AthleteFields
	BibNum *int32 `json:"bibNum,omitempty"`
}

// RawRecord is one untyped input record keyed by normalized column name.
type RawRecord map[string]string

// Get returns the cleaned value for a column, or "" when absent.
func (r RawRecord) Get(name string) string {
	return CleanCell(r[name])
}

// MatchStatus classifies one reconciled row.
type MatchStatus string

const (
	StatusNew      MatchStatus = "new"
	StatusMatched  MatchStatus = "matched"
	StatusConflict MatchStatus = "conflict"
	StatusError    MatchStatus = "error"
)

// Division is a catalog division.
type Division struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// MatchResult tags one input row with exactly one status.
type MatchResult struct {
	RowIndex int         `json:"rowIndex"`
	Status   MatchStatus `json:"status"`

	// Row is set for every status except error.
	Row *ImportRow `json:"row,omitempty"`

	// Raw and Errors are set for error rows so the reviewer can fix and resubmit.
	Raw     RawRecord         `json:"raw,omitempty"`
	Errors  []ValidationError `json:"errors,omitempty"`
	Message string            `json:"message,omitempty"`

	// Athlete is a read-only snapshot of the matched or conflicting record.
	Athlete *Athlete `json:"athlete,omitempty"`

	// Mismatches lists the identity fields that disagree on a conflict.
	Mismatches []string `json:"mismatches,omitempty"`

	SuggestedDivision *Division `json:"suggestedDivision,omitempty"`
}

// ReconcileSummary counts rows per status.
type ReconcileSummary struct {
	Total    int `json:"total"`
	New      int `json:"new"`
	Matched  int `json:"matched"`
	Conflict int `json:"conflict"`
	Error    int `json:"error"`
}

// ReconcileReport is the single structured result handed to the review stage.
type ReconcileReport struct {
	RunID     string           `json:"runId"`
	EventID   int64            `json:"eventId"`
	Rows      []MatchResult    `json:"rows"`
	Divisions []Division       `json:"divisions"`
	Summary   ReconcileSummary `json:"summary"`
}

// CommitRow is one operator-approved row submitted for commit.
type CommitRow struct {
	RowIndex    int         `json:"rowIndex"`
	Status      MatchStatus `json:"status"`
	DivisionID  *int64      `json:"divisionId,omitempty"`
	AthleteID   *int64      `json:"athleteId,omitempty"`
	IsOverwrite bool        `json:"isOverwrite,omitempty"`
	Fields      RawRecord   `json:"fields"`
}

// CommitRequest is an approved batch for one event.
type CommitRequest struct {
	EventID int64       `json:"eventId"`
	Rows    []CommitRow `json:"rows"`
}

// AthleteOutcome describes what a commit did to the athlete record.
type AthleteOutcome string

const (
	AthleteCreated   AthleteOutcome = "created"
	AthleteUpdated   AthleteOutcome = "updated"
	AthleteUnchanged AthleteOutcome = "unchanged"
)

// RegistrationOutcome describes what a commit did to the registration link.
type RegistrationOutcome string

const (
	Registered        RegistrationOutcome = "registered"
	AlreadyRegistered RegistrationOutcome = "already-registered"
	DivisionChanged   RegistrationOutcome = "division-changed"
)

// OutcomeFailed is the summary outcome of every row in an aborted batch.
const OutcomeFailed = "failed"

// CommitDetail is the per-row outcome of a commit.
type CommitDetail struct {
	RowIndex            int                 `json:"rowIndex"`
	Name                string              `json:"name"`
	Outcome             string              `json:"outcome"`
	AthleteOutcome      AthleteOutcome      `json:"athleteOutcome,omitempty"`
	RegistrationOutcome RegistrationOutcome `json:"registrationOutcome,omitempty"`
	AthleteID           int64               `json:"athleteId,omitempty"`
	DivisionID          int64               `json:"divisionId,omitempty"`
	Error               string              `json:"error,omitempty"`
}

// CommitCounts aggregates commit outcomes. Athlete and registration outcomes
// are counted independently, so one row can add to both Created and Registered.
type CommitCounts struct {
	Created           int `json:"created"`
	Updated           int `json:"updated"`
	Registered        int `json:"registered"`
	AlreadyRegistered int `json:"alreadyRegistered"`
	DivisionChanged   int `json:"divisionChanged"`
	Failed            int `json:"failed"`
}

// CommitReport is the output of one commit call. It is not persisted.
type CommitReport struct {
	RunID           string         `json:"runId"`
	EventID         int64          `json:"eventId"`
	Success         bool           `json:"success"`
	RegisteredCount int            `json:"registeredCount"`
	Counts          CommitCounts   `json:"counts"`
	Details         []CommitDetail `json:"details"`
}
