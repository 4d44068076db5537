package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const athleteColumns = `id, last_name, first_name, dob, gender, nationality, stance, fis_num,
    fis_hp_points, fis_ss_points, fis_ba_points, wspl_points, created_at, updated_at`

func scanAthlete(row pgx.Row) (Athlete, error) {
	var i Athlete
	err := row.Scan(
		&i.ID,
		&i.LastName,
		&i.FirstName,
		&i.Dob,
		&i.Gender,
		&i.Nationality,
		&i.Stance,
		&i.FisNum,
		&i.FisHpPoints,
		&i.FisSsPoints,
		&i.FisBaPoints,
		&i.WsplPoints,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func collectAthletes(rows pgx.Rows) ([]Athlete, error) {
	defer rows.Close()
	var items []Athlete
	for rows.Next() {
		i, err := scanAthlete(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getAthletesByFISNums = `-- name: GetAthletesByFISNums :many
SELECT ` + athleteColumns + `
FROM athletes
WHERE fis_num = ANY($1::text[])
ORDER BY id
`

func (q *Queries) GetAthletesByFISNums(ctx context.Context, fisNums []string) ([]Athlete, error) {
	rows, err := q.db.Query(ctx, getAthletesByFISNums, fisNums)
	if err != nil {
		return nil, err
	}
	return collectAthletes(rows)
}

const getAthletesByNaturalKeys = `-- name: GetAthletesByNaturalKeys :many
SELECT ` + athleteColumns + `
FROM athletes a
WHERE EXISTS (
    SELECT 1
    FROM unnest($1::text[], $2::text[], $3::date[]) AS k(last_name, first_name, dob)
    WHERE lower(a.last_name) = lower(k.last_name)
      AND lower(a.first_name) = lower(k.first_name)
      AND a.dob = k.dob
)
ORDER BY a.id
`

type GetAthletesByNaturalKeysParams struct {
	LastNames  []string      `json:"last_names"`
	FirstNames []string      `json:"first_names"`
	Dobs       []pgtype.Date `json:"dobs"`
}

func (q *Queries) GetAthletesByNaturalKeys(ctx context.Context, arg GetAthletesByNaturalKeysParams) ([]Athlete, error) {
	rows, err := q.db.Query(ctx, getAthletesByNaturalKeys, arg.LastNames, arg.FirstNames, arg.Dobs)
	if err != nil {
		return nil, err
	}
	return collectAthletes(rows)
}

const getAthleteIDByNaturalKey = `-- name: GetAthleteIDByNaturalKey :one
SELECT id
FROM athletes
WHERE lower(last_name) = lower($1)
  AND lower(first_name) = lower($2)
  AND dob = $3
ORDER BY id
LIMIT 1
FOR UPDATE
`

type GetAthleteIDByNaturalKeyParams struct {
	LastName  string      `json:"last_name"`
	FirstName string      `json:"first_name"`
	Dob       pgtype.Date `json:"dob"`
}

func (q *Queries) GetAthleteIDByNaturalKey(ctx context.Context, arg GetAthleteIDByNaturalKeyParams) (int64, error) {
	row := q.db.QueryRow(ctx, getAthleteIDByNaturalKey, arg.LastName, arg.FirstName, arg.Dob)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const athleteExists = `-- name: AthleteExists :one
SELECT EXISTS (SELECT 1 FROM athletes WHERE id = $1)
`

func (q *Queries) AthleteExists(ctx context.Context, id int64) (bool, error) {
	row := q.db.QueryRow(ctx, athleteExists, id)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

// AthleteParams carries the mutable profile fields shared by the insert,
// upsert and update queries.
type AthleteParams struct {
	LastName    string        `json:"last_name"`
	FirstName   string        `json:"first_name"`
	Dob         pgtype.Date   `json:"dob"`
	Gender      string        `json:"gender"`
	Nationality pgtype.Text   `json:"nationality"`
	Stance      pgtype.Text   `json:"stance"`
	FisNum      pgtype.Text   `json:"fis_num"`
	FisHpPoints pgtype.Float8 `json:"fis_hp_points"`
	FisSsPoints pgtype.Float8 `json:"fis_ss_points"`
	FisBaPoints pgtype.Float8 `json:"fis_ba_points"`
	WsplPoints  pgtype.Float8 `json:"wspl_points"`
}

const insertAthlete = `-- name: InsertAthlete :one
INSERT INTO athletes (
    last_name, first_name, dob, gender, nationality, stance, fis_num,
    fis_hp_points, fis_ss_points, fis_ba_points, wspl_points
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id
`

func (q *Queries) InsertAthlete(ctx context.Context, arg AthleteParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertAthlete,
		arg.LastName,
		arg.FirstName,
		arg.Dob,
		arg.Gender,
		arg.Nationality,
		arg.Stance,
		arg.FisNum,
		arg.FisHpPoints,
		arg.FisSsPoints,
		arg.FisBaPoints,
		arg.WsplPoints,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const upsertAthleteByFISNum = `-- name: UpsertAthleteByFISNum :one
INSERT INTO athletes (
    last_name, first_name, dob, gender, nationality, stance, fis_num,
    fis_hp_points, fis_ss_points, fis_ba_points, wspl_points
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (fis_num) DO UPDATE SET
    last_name     = EXCLUDED.last_name,
    first_name    = EXCLUDED.first_name,
    dob           = EXCLUDED.dob,
    gender        = EXCLUDED.gender,
    nationality   = EXCLUDED.nationality,
    stance        = EXCLUDED.stance,
    fis_hp_points = EXCLUDED.fis_hp_points,
    fis_ss_points = EXCLUDED.fis_ss_points,
    fis_ba_points = EXCLUDED.fis_ba_points,
    wspl_points   = EXCLUDED.wspl_points,
    updated_at    = now()
RETURNING id, (xmax = 0) AS inserted
`

type UpsertAthleteByFISNumRow struct {
	ID       int64 `json:"id"`
	Inserted bool  `json:"inserted"`
}

func (q *Queries) UpsertAthleteByFISNum(ctx context.Context, arg AthleteParams) (UpsertAthleteByFISNumRow, error) {
	row := q.db.QueryRow(ctx, upsertAthleteByFISNum,
		arg.LastName,
		arg.FirstName,
		arg.Dob,
		arg.Gender,
		arg.Nationality,
		arg.Stance,
		arg.FisNum,
		arg.FisHpPoints,
		arg.FisSsPoints,
		arg.FisBaPoints,
		arg.WsplPoints,
	)
	var i UpsertAthleteByFISNumRow
	err := row.Scan(&i.ID, &i.Inserted)
	return i, err
}

const updateAthlete = `-- name: UpdateAthlete :execrows
UPDATE athletes SET
    last_name     = $2,
    first_name    = $3,
    dob           = $4,
    gender        = $5,
    nationality   = $6,
    stance        = $7,
    fis_num       = COALESCE($8, fis_num),
    fis_hp_points = $9,
    fis_ss_points = $10,
    fis_ba_points = $11,
    wspl_points   = $12,
    updated_at    = now()
WHERE id = $1
`

type UpdateAthleteParams struct {
	ID int64 `json:"id"`
	AthleteParams
}

func (q *Queries) UpdateAthlete(ctx context.Context, arg UpdateAthleteParams) (int64, error) {
	result, err := q.db.Exec(ctx, updateAthlete,
		arg.ID,
		arg.LastName,
		arg.FirstName,
		arg.Dob,
		arg.Gender,
		arg.Nationality,
		arg.Stance,
		arg.FisNum,
		arg.FisHpPoints,
		arg.FisSsPoints,
		arg.FisBaPoints,
		arg.WsplPoints,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
