package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	db "github.com/JonMunkholm/rosterimport/internal/database"
)

// pgUniqueViolation is the SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// PostgresStore is the Store backed by a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    *db.Queries
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store on pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: db.New(pool)}
}

// Ping checks that the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return storeErr("ping", err)
	}
	return nil
}

func (s *PostgresStore) FindAthletesByFISNums(ctx context.Context, fisNums []string) ([]Athlete, error) {
	rows, err := s.q.GetAthletesByFISNums(ctx, fisNums)
	if err != nil {
		return nil, storeErr("find athletes by fis_num", err)
	}
	return athletesFromDB(rows), nil
}

func (s *PostgresStore) FindAthletesByNaturalKeys(ctx context.Context, keys []NaturalKey) ([]Athlete, error) {
	arg := db.GetAthletesByNaturalKeysParams{
		LastNames:  make([]string, len(keys)),
		FirstNames: make([]string, len(keys)),
		Dobs:       make([]pgtype.Date, len(keys)),
	}
	for i, k := range keys {
		arg.LastNames[i] = k.LastName
		arg.FirstNames[i] = k.FirstName
		arg.Dobs[i] = ToPgDate(k.DOB)
	}
	rows, err := s.q.GetAthletesByNaturalKeys(ctx, arg)
	if err != nil {
		return nil, storeErr("find athletes by natural key", err)
	}
	return athletesFromDB(rows), nil
}

func (s *PostgresStore) EventDivisions(ctx context.Context, eventID int64) ([]Division, error) {
	return listEventDivisions(ctx, s.q, eventID)
}

// InTx runs fn in a transaction, committing only if fn returns nil.
func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx StoreTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return storeErr("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgStoreTx{q: s.q.WithTx(tx)}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storeErr("commit transaction", err)
	}
	return nil
}

type pgStoreTx struct {
	q *db.Queries
}

func (t *pgStoreTx) LockEvent(ctx context.Context, eventID int64) error {
	if err := t.q.LockEventDivisions(ctx, eventID); err != nil {
		return storeErr("lock event", err)
	}
	return nil
}

func (t *pgStoreTx) EventDivisions(ctx context.Context, eventID int64) ([]Division, error) {
	return listEventDivisions(ctx, t.q, eventID)
}

func (t *pgStoreTx) CatalogDivisions(ctx context.Context, names []string) ([]Division, error) {
	rows, err := t.q.GetDivisionsByNames(ctx, names)
	if err != nil {
		return nil, storeErr("load catalog divisions", err)
	}
	return divisionsFromDB(rows), nil
}

func (t *pgStoreTx) LinkEventDivision(ctx context.Context, eventID, divisionID int64) error {
	err := t.q.LinkEventDivision(ctx, db.LinkEventDivisionParams{EventID: eventID, DivisionID: divisionID})
	if err != nil {
		return storeErr("link event division", err)
	}
	return nil
}

func (t *pgStoreTx) FindAthleteIDByNaturalKey(ctx context.Context, key NaturalKey) (int64, bool, error) {
	id, err := t.q.GetAthleteIDByNaturalKey(ctx, db.GetAthleteIDByNaturalKeyParams{
		LastName:  key.LastName,
		FirstName: key.FirstName,
		Dob:       ToPgDate(key.DOB),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, storeErr("find athlete by natural key", err)
	}
	return id, true, nil
}

func (t *pgStoreTx) AthleteExists(ctx context.Context, id int64) (bool, error) {
	ok, err := t.q.AthleteExists(ctx, id)
	if err != nil {
		return false, storeErr("check athlete", err)
	}
	return ok, nil
}

func (t *pgStoreTx) InsertAthlete(ctx context.Context, f AthleteFields) (int64, error) {
	id, err := t.q.InsertAthlete(ctx, athleteParams(f))
	if err != nil {
		return 0, storeErr("insert athlete", err)
	}
	return id, nil
}

func (t *pgStoreTx) UpsertAthleteByFISNum(ctx context.Context, f AthleteFields) (int64, bool, error) {
	row, err := t.q.UpsertAthleteByFISNum(ctx, athleteParams(f))
	if err != nil {
		return 0, false, storeErr("upsert athlete", err)
	}
	return row.ID, row.Inserted, nil
}

func (t *pgStoreTx) UpdateAthlete(ctx context.Context, id int64, f AthleteFields) error {
	n, err := t.q.UpdateAthlete(ctx, db.UpdateAthleteParams{ID: id, AthleteParams: athleteParams(f)})
	if err != nil {
		return storeErr("update athlete", err)
	}
	if n == 0 {
		return fmt.Errorf("athlete %d: %w", id, ErrAthleteNotFound)
	}
	return nil
}

func (t *pgStoreTx) UpsertRegistration(ctx context.Context, p RegistrationParams) (*int64, error) {
	row, err := t.q.UpsertRegistration(ctx, db.UpsertRegistrationParams{
		EventID:    p.EventID,
		AthleteID:  p.AthleteID,
		DivisionID: p.DivisionID,
		BibNum:     ToPgInt4(p.BibNum),
	})
	if err != nil {
		return nil, storeErr("upsert registration", err)
	}
	if !row.PreviousDivisionID.Valid {
		return nil, nil
	}
	prev := row.PreviousDivisionID.Int64
	return &prev, nil
}

func listEventDivisions(ctx context.Context, q *db.Queries, eventID int64) ([]Division, error) {
	rows, err := q.ListEventDivisions(ctx, eventID)
	if err != nil {
		return nil, storeErr("list event divisions", err)
	}
	return divisionsFromDB(rows), nil
}

// storeErr classifies a database error. Errors reported by the server about a
// statement keep their cause; everything else (connection loss, timeouts) is
// a TransientStoreError.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == "athletes_fis_num_key" {
			return fmt.Errorf("%s: %w", op, ErrDuplicateExternalID)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &TransientStoreError{Op: op, Err: err}
}

func athleteParams(f AthleteFields) db.AthleteParams {
	return db.AthleteParams{
		LastName:    f.LastName,
		FirstName:   f.FirstName,
		Dob:         ToPgDate(f.DOB),
		Gender:      f.Gender,
		Nationality: ToPgText(f.Nationality),
		Stance:      ToPgText(f.Stance),
		FisNum:      ToPgText(f.FISNum),
		FisHpPoints: ToPgFloat8(f.FISHPPoints),
		FisSsPoints: ToPgFloat8(f.FISSSPoints),
		FisBaPoints: ToPgFloat8(f.FISBAPoints),
		WsplPoints:  ToPgFloat8(f.WSPLPoints),
	}
}

func athletesFromDB(rows []db.Athlete) []Athlete {
	out := make([]Athlete, len(rows))
	for i, r := range rows {
		out[i] = Athlete{
			ID: r.ID,
			AthleteFields: AthleteFields{
				LastName:    r.LastName,
				FirstName:   r.FirstName,
				DOB:         FromPgDate(r.Dob),
				Gender:      r.Gender,
				Nationality: FromPgText(r.Nationality),
				Stance:      FromPgText(r.Stance),
				FISNum:      FromPgText(r.FisNum),
				FISHPPoints: FromPgFloat8(r.FisHpPoints),
				FISSSPoints: FromPgFloat8(r.FisSsPoints),
				FISBAPoints: FromPgFloat8(r.FisBaPoints),
				WSPLPoints:  FromPgFloat8(r.WsplPoints),
			},
		}
	}
	return out
}

func divisionsFromDB(rows []db.Division) []Division {
	out := make([]Division, len(rows))
	for i, r := range rows {
		out[i] = Division{ID: r.ID, Name: r.Name}
	}
	return out
}
