package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const upsertRegistration = `-- name: UpsertRegistration :one
WITH prev AS (
    SELECT division_id
    FROM registrations
    WHERE event_id = $1 AND athlete_id = $2
)
INSERT INTO registrations (event_id, athlete_id, division_id, bib_num)
VALUES ($1, $2, $3, $4)
ON CONFLICT (event_id, athlete_id) DO UPDATE SET
    division_id = EXCLUDED.division_id,
    bib_num     = COALESCE(EXCLUDED.bib_num, registrations.bib_num),
    updated_at  = now()
RETURNING id, (SELECT division_id FROM prev) AS previous_division_id
`

type UpsertRegistrationParams struct {
	EventID    int64       `json:"event_id"`
	AthleteID  int64       `json:"athlete_id"`
	DivisionID int64       `json:"division_id"`
	BibNum     pgtype.Int4 `json:"bib_num"`
}

type UpsertRegistrationRow struct {
	ID                 int64       `json:"id"`
	PreviousDivisionID pgtype.Int8 `json:"previous_division_id"`
}

func (q *Queries) UpsertRegistration(ctx context.Context, arg UpsertRegistrationParams) (UpsertRegistrationRow, error) {
	row := q.db.QueryRow(ctx, upsertRegistration,
		arg.EventID,
		arg.AthleteID,
		arg.DivisionID,
		arg.BibNum,
	)
	var i UpsertRegistrationRow
	err := row.Scan(&i.ID, &i.PreviousDivisionID)
	return i, err
}
