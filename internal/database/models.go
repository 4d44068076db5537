package database

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Athlete struct {
	ID           int64              `json:"id"`
	LastName     string             `json:"last_name"`
	FirstName    string             `json:"first_name"`
	Dob          pgtype.Date        `json:"dob"`
	Gender       string             `json:"gender"`
	Nationality  pgtype.Text        `json:"nationality"`
	Stance       pgtype.Text        `json:"stance"`
	FisNum       pgtype.Text        `json:"fis_num"`
	FisHpPoints  pgtype.Float8      `json:"fis_hp_points"`
	FisSsPoints  pgtype.Float8      `json:"fis_ss_points"`
	FisBaPoints  pgtype.Float8      `json:"fis_ba_points"`
	WsplPoints   pgtype.Float8      `json:"wspl_points"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	UpdatedAt    pgtype.Timestamptz `json:"updated_at"`
}

type Division struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Event struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type EventDivision struct {
	EventID    int64 `json:"event_id"`
	DivisionID int64 `json:"division_id"`
}

type Registration struct {
	ID         int64              `json:"id"`
	EventID    int64              `json:"event_id"`
	AthleteID  int64              `json:"athlete_id"`
	DivisionID int64              `json:"division_id"`
	BibNum     pgtype.Int4        `json:"bib_num"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
	UpdatedAt  pgtype.Timestamptz `json:"updated_at"`
}
