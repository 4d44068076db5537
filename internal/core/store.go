package core

import "context"

// NaturalKey is the (surname, given name, date of birth) fallback identity.
type NaturalKey struct {
	LastName  string
	FirstName string
	DOB       Date
}

// AthleteFinder performs the two batched identity lookups used by reconciliation.
type AthleteFinder interface {
	// FindAthletesByFISNums returns every athlete whose fis_num is in fisNums.
	FindAthletesByFISNums(ctx context.Context, fisNums []string) ([]Athlete, error)

	// FindAthletesByNaturalKeys returns every athlete whose natural key matches
	// one of keys, comparing names case-insensitively. Results are ordered by id.
	FindAthletesByNaturalKeys(ctx context.Context, keys []NaturalKey) ([]Athlete, error)
}

// Store is the canonical athlete store plus the event/division reference data.
type Store interface {
	AthleteFinder

	// EventDivisions lists the divisions linked to an event, ordered by id.
	EventDivisions(ctx context.Context, eventID int64) ([]Division, error)

	// InTx runs fn in one transaction. If fn returns an error every write
	// made through tx is discarded.
	InTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error
}

// RegistrationParams identifies one registration link write.
type RegistrationParams struct {
	EventID    int64
	AthleteID  int64
	DivisionID int64
	BibNum     *int32
}

// StoreTx is the set of operations available inside a transaction.
type StoreTx interface {
	// LockEvent serializes division bootstrap for one event.
	LockEvent(ctx context.Context, eventID int64) error
	EventDivisions(ctx context.Context, eventID int64) ([]Division, error)

	// CatalogDivisions returns catalog divisions whose DivisionKey is in names.
	CatalogDivisions(ctx context.Context, names []string) ([]Division, error)
	LinkEventDivision(ctx context.Context, eventID, divisionID int64) error

	// FindAthleteIDByNaturalKey returns the lowest id matching key.
	FindAthleteIDByNaturalKey(ctx context.Context, key NaturalKey) (int64, bool, error)
	AthleteExists(ctx context.Context, id int64) (bool, error)
	InsertAthlete(ctx context.Context, f AthleteFields) (int64, error)

	// UpsertAthleteByFISNum inserts, or updates the record already holding
	// f.FISNum. inserted reports which happened.
	UpsertAthleteByFISNum(ctx context.Context, f AthleteFields) (id int64, inserted bool, err error)

	// UpdateAthlete overwrites the mutable fields of id. An empty FISNum keeps
	// the stored one. Returns ErrAthleteNotFound when id does not exist and
	// ErrDuplicateExternalID when the fis_num belongs to someone else.
	UpdateAthlete(ctx context.Context, id int64, f AthleteFields) error

	// UpsertRegistration creates or re-points the (event, athlete) link and
	// returns the division it pointed at before, or nil if it did not exist.
	// A nil BibNum keeps the stored bib.
	UpsertRegistration(ctx context.Context, p RegistrationParams) (previousDivisionID *int64, err error)
}
