package database

import (
	"context"

	"github.com/jackc/pgx/v5"
)

func collectDivisions(rows pgx.Rows) ([]Division, error) {
	defer rows.Close()
	var items []Division
	for rows.Next() {
		var i Division
		if err := rows.Scan(&i.ID, &i.Name); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listEventDivisions = `-- name: ListEventDivisions :many
SELECT d.id, d.name
FROM divisions d
JOIN event_divisions ed ON ed.division_id = d.id
WHERE ed.event_id = $1
ORDER BY d.id
`

func (q *Queries) ListEventDivisions(ctx context.Context, eventID int64) ([]Division, error) {
	rows, err := q.db.Query(ctx, listEventDivisions, eventID)
	if err != nil {
		return nil, err
	}
	return collectDivisions(rows)
}

const getDivisionsByNames = `-- name: GetDivisionsByNames :many
SELECT id, name
FROM divisions
WHERE upper(btrim(name)) = ANY($1::text[])
ORDER BY id
`

func (q *Queries) GetDivisionsByNames(ctx context.Context, names []string) ([]Division, error) {
	rows, err := q.db.Query(ctx, getDivisionsByNames, names)
	if err != nil {
		return nil, err
	}
	return collectDivisions(rows)
}

const linkEventDivision = `-- name: LinkEventDivision :exec
INSERT INTO event_divisions (event_id, division_id)
VALUES ($1, $2)
ON CONFLICT (event_id, division_id) DO NOTHING
`

type LinkEventDivisionParams struct {
	EventID    int64 `json:"event_id"`
	DivisionID int64 `json:"division_id"`
}

func (q *Queries) LinkEventDivision(ctx context.Context, arg LinkEventDivisionParams) error {
	_, err := q.db.Exec(ctx, linkEventDivision, arg.EventID, arg.DivisionID)
	return err
}

const lockEventDivisions = `-- name: LockEventDivisions :exec
SELECT pg_advisory_xact_lock($1)
`

// LockEventDivisions serializes division bootstrap for one event until the
// enclosing transaction ends.
func (q *Queries) LockEventDivisions(ctx context.Context, eventID int64) error {
	_, err := q.db.Exec(ctx, lockEventDivisions, eventID)
	return err
}
