package core

// registrar.go commits an operator-approved batch as athlete records and
// registration links in a single transaction.
//
// The batch is all-or-nothing. Every row is checked before the transaction
// opens, and any row that cannot be resolved to an athlete and a division
// inside it rolls the whole batch back. Nothing is retried.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/rosterimport/internal/logging"
)

// Registrar performs batch commits against a Store.
type Registrar struct {
	store     Store
	validator *RowValidator
}

// NewRegistrar creates a registrar. The validator re-checks every row's fields.
func NewRegistrar(store Store, validator *RowValidator) *Registrar {
	return &Registrar{store: store, validator: validator}
}

// preparedRow is an approved row whose fields and assignments passed pre-flight.
type preparedRow struct {
	input      CommitRow
	row        ImportRow
	divisionID int64
}

// Commit writes the batch. On success the report lists each row's outcome.
// On failure it returns a report with every row failed together with the
// error, which is a *CommitAbortError naming the row that stopped the batch.
func (r *Registrar) Commit(ctx context.Context, eventID int64, rows []CommitRow) (*CommitReport, error) {
	prepared, err := r.prepare(rows)
	if err != nil {
		return r.abort(ctx, eventID, rows, err)
	}

	details := make([]CommitDetail, len(prepared))
	err = r.store.InTx(ctx, func(ctx context.Context, tx StoreTx) error {
		linked, err := tx.EventDivisions(ctx, eventID)
		if err != nil {
			return &CommitAbortError{RowIndex: prepared[0].input.RowIndex, Reason: "load event divisions", Err: err}
		}
		allowed := make(map[int64]bool, len(linked))
		for _, d := range linked {
			allowed[d.ID] = true
		}

		for i, p := range prepared {
			if !allowed[p.divisionID] {
				return &CommitAbortError{
					RowIndex: p.input.RowIndex,
					Reason:   fmt.Sprintf("division %d is not linked to event %d", p.divisionID, eventID),
				}
			}
			d, err := commitRow(ctx, tx, eventID, p)
			if err != nil {
				return &CommitAbortError{RowIndex: p.input.RowIndex, Reason: err.Error(), Err: err}
			}
			details[i] = d
		}
		return nil
	})
	if err != nil {
		return r.abort(ctx, eventID, rows, err)
	}

	report := &CommitReport{EventID: eventID, Success: true, Details: details}
	for _, d := range details {
		switch d.AthleteOutcome {
		case AthleteCreated:
			report.Counts.Created++
		case AthleteUpdated:
			report.Counts.Updated++
		}
		switch d.RegistrationOutcome {
		case Registered:
			report.Counts.Registered++
		case AlreadyRegistered:
			report.Counts.AlreadyRegistered++
		case DivisionChanged:
			report.Counts.DivisionChanged++
		}
	}
	report.RegisteredCount = len(details)
	return report, nil
}

// prepare validates every row before any write happens.
func (r *Registrar) prepare(rows []CommitRow) ([]preparedRow, error) {
	if len(rows) == 0 {
		return nil, &CommitAbortError{RowIndex: -1, Reason: "no rows approved"}
	}

	prepared := make([]preparedRow, 0, len(rows))
	for _, in := range rows {
		switch in.Status {
		case StatusNew, StatusMatched:
		default:
			return nil, &CommitAbortError{
				RowIndex: in.RowIndex,
				Reason:   fmt.Sprintf("row with status %q cannot be committed", in.Status),
			}
		}
		if in.DivisionID == nil {
			return nil, &CommitAbortError{RowIndex: in.RowIndex, Reason: "division assignment missing"}
		}
		if in.Status == StatusMatched && in.AthleteID == nil {
			return nil, &CommitAbortError{RowIndex: in.RowIndex, Reason: "matched row has no athlete id"}
		}

		res := r.validator.Validate(in.RowIndex, in.Fields)
		if !res.OK() {
			return nil, &CommitAbortError{RowIndex: in.RowIndex, Reason: res.Errors.Error(), Err: res.Errors}
		}

		prepared = append(prepared, preparedRow{input: in, row: *res.Row, divisionID: *in.DivisionID})
	}
	return prepared, nil
}

// commitRow resolves one row to an athlete id and upserts its registration.
func commitRow(ctx context.Context, tx StoreTx, eventID int64, p preparedRow) (CommitDetail, error) {
	d := CommitDetail{
		RowIndex:   p.input.RowIndex,
		Name:       p.row.FullName(),
		DivisionID: p.divisionID,
	}

	var athleteID int64
	switch p.input.Status {
	case StatusNew:
		if p.row.FISNum != "" {
			// A concurrent writer may have created this fis_num since
			// reconciliation; the upsert turns that into an update.
			id, inserted, err := tx.UpsertAthleteByFISNum(ctx, p.row.AthleteFields)
			if err != nil {
				return d, err
			}
			athleteID = id
			d.AthleteOutcome = AthleteUpdated
			if inserted {
				d.AthleteOutcome = AthleteCreated
			}
			break
		}

		id, found, err := tx.FindAthleteIDByNaturalKey(ctx, p.row.NaturalKey())
		if err != nil {
			return d, err
		}
		if found {
			if err := tx.UpdateAthlete(ctx, id, p.row.AthleteFields); err != nil {
				return d, err
			}
			athleteID = id
			d.AthleteOutcome = AthleteUpdated
			break
		}

		id, err = tx.InsertAthlete(ctx, p.row.AthleteFields)
		if err != nil {
			return d, err
		}
		athleteID = id
		d.AthleteOutcome = AthleteCreated

	case StatusMatched:
		athleteID = *p.input.AthleteID
		if p.input.IsOverwrite {
			if err := tx.UpdateAthlete(ctx, athleteID, p.row.AthleteFields); err != nil {
				return d, err
			}
			d.AthleteOutcome = AthleteUpdated
			break
		}
		ok, err := tx.AthleteExists(ctx, athleteID)
		if err != nil {
			return d, err
		}
		if !ok {
			return d, fmt.Errorf("athlete %d: %w", athleteID, ErrAthleteNotFound)
		}
		d.AthleteOutcome = AthleteUnchanged
	}
	d.AthleteID = athleteID

	prev, err := tx.UpsertRegistration(ctx, RegistrationParams{
		EventID:    eventID,
		AthleteID:  athleteID,
		DivisionID: p.divisionID,
		BibNum:     p.row.BibNum,
	})
	if err != nil {
		return d, err
	}
	switch {
	case prev == nil:
		d.RegistrationOutcome = Registered
	case *prev == p.divisionID:
		d.RegistrationOutcome = AlreadyRegistered
	default:
		d.RegistrationOutcome = DivisionChanged
	}

	d.Outcome = summaryOutcome(d)
	return d, nil
}

// summaryOutcome reports the athlete change when there is one, otherwise the link change.
func summaryOutcome(d CommitDetail) string {
	switch d.AthleteOutcome {
	case AthleteCreated, AthleteUpdated:
		return string(d.AthleteOutcome)
	}
	return string(d.RegistrationOutcome)
}

// abort builds the all-failed report for a rolled-back batch.
func (r *Registrar) abort(ctx context.Context, eventID int64, rows []CommitRow, err error) (*CommitReport, error) {
	var abortErr *CommitAbortError
	if !errors.As(err, &abortErr) {
		abortErr = &CommitAbortError{RowIndex: -1, Reason: err.Error(), Err: err}
	}

	log := logging.FromContext(ctx)
	if errors.Is(err, ErrTransientStore) {
		log.Error("commit aborted: store unavailable",
			slog.Int64("event_id", eventID),
			slog.Int("row_index", abortErr.RowIndex),
			slog.String("error", err.Error()),
		)
	} else {
		log.Warn("commit aborted",
			slog.Int64("event_id", eventID),
			slog.Int("row_index", abortErr.RowIndex),
			slog.String("reason", abortErr.Reason),
		)
	}

	report := &CommitReport{EventID: eventID, Details: make([]CommitDetail, len(rows))}
	for i, in := range rows {
		d := CommitDetail{
			RowIndex: in.RowIndex,
			Name:     AthleteFields{FirstName: in.Fields.Get(ColFirstName), LastName: in.Fields.Get(ColLastName)}.FullName(),
			Outcome:  OutcomeFailed,
		}
		if in.RowIndex == abortErr.RowIndex {
			d.Error = abortErr.Reason
		} else {
			d.Error = fmt.Sprintf("not committed: batch aborted at row %d", abortErr.RowIndex)
		}
		report.Details[i] = d
	}
	report.Counts.Failed = len(rows)
	return report, abortErr
}
