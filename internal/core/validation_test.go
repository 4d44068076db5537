package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validRecord() RawRecord {
	return RawRecord{
		ColLastName:  "Doe",
		ColFirstName: "Jane",
		ColDOB:       "2000-01-01",
		ColGender:    "F",
	}
}

func with(rec RawRecord, kv ...string) RawRecord {
	out := make(RawRecord, len(rec)+len(kv)/2)
	for k, v := range rec {
		out[k] = v
	}
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = kv[i+1]
	}
	return out
}

func without(rec RawRecord, key string) RawRecord {
	out := with(rec)
	delete(out, key)
	return out
}

func TestRowValidator_Validate(t *testing.T) {
	v := NewRowValidator(false)

	tests := []struct {
		name       string
		rec        RawRecord
		wantFields []string // fields expected in errors; nil means valid
	}{
		{name: "minimal valid row", rec: validRecord()},
		{name: "missing dob", rec: without(validRecord(), ColDOB), wantFields: []string{ColDOB}},
		{name: "blank surname", rec: with(validRecord(), ColLastName, "   "), wantFields: []string{ColLastName}},
		{name: "unparseable dob", rec: with(validRecord(), ColDOB, "2000-02-30"), wantFields: []string{ColDOB}},
		{name: "non iso dob", rec: with(validRecord(), ColDOB, "01/02/2000"), wantFields: []string{ColDOB}},
		{name: "missing gender", rec: without(validRecord(), ColGender), wantFields: []string{ColGender}},
		{name: "nationality too long", rec: with(validRecord(), ColNationality, "CANA"), wantFields: []string{ColNationality}},
		{name: "nationality with digits", rec: with(validRecord(), ColNationality, "C4N"), wantFields: []string{ColNationality}},
		{name: "unknown stance", rec: with(validRecord(), ColStance, "switch"), wantFields: []string{ColStance}},
		{name: "six digit fis_num", rec: with(validRecord(), ColFISNum, "123456"), wantFields: []string{ColFISNum}},
		{name: "alpha fis_num", rec: with(validRecord(), ColFISNum, "12345a7"), wantFields: []string{ColFISNum}},
		{name: "bad points", rec: with(validRecord(), ColWSPLPoints, "lots"), wantFields: []string{ColWSPLPoints}},
		{name: "comma decimal points", rec: with(validRecord(), ColFISHPPoints, "12,5"), wantFields: []string{ColFISHPPoints}},
		{name: "misplaced grouping comma", rec: with(validRecord(), ColFISSSPoints, "1,00"), wantFields: []string{ColFISSSPoints}},
		{
			name:       "every problem reported",
			rec:        RawRecord{ColFISNum: "1"},
			wantFields: []string{ColLastName, ColFirstName, ColDOB, ColGender, ColFISNum},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(3, tt.rec)
			if tt.wantFields == nil {
				if !res.OK() {
					t.Fatalf("Validate() errors = %v, want none", res.Errors)
				}
				if res.Row.RowIndex != 3 {
					t.Errorf("RowIndex = %d, want 3", res.Row.RowIndex)
				}
				return
			}
			if res.OK() {
				t.Fatal("Validate() expected errors")
			}
			if res.Row != nil {
				t.Error("Row should be nil when validation fails")
			}
			if len(res.Errors) != len(tt.wantFields) {
				t.Fatalf("errors = %v, want fields %v", res.Errors, tt.wantFields)
			}
			for i, f := range tt.wantFields {
				if res.Errors[i].Field != f {
					t.Errorf("Errors[%d].Field = %q, want %q", i, res.Errors[i].Field, f)
				}
			}
			if !strings.Contains(res.Errors.Error(), tt.wantFields[0]+":") {
				t.Errorf("message %q should be field-tagged", res.Errors.Error())
			}
			if !errors.Is(res.Errors, ErrValidation) {
				t.Error("FieldErrors should match ErrValidation")
			}
		})
	}
}

func TestRowValidator_KeepsNamesAndPointsIntact(t *testing.T) {
	res := NewRowValidator(false).Validate(0, with(validRecord(),
		ColLastName, "'t Hart",
		ColFirstName, `"Anne-Marie"`,
		ColFISHPPoints, "1,234.5",
	))
	if !res.OK() {
		t.Fatalf("Validate() errors = %v", res.Errors)
	}
	r := res.Row
	if r.LastName != "'t Hart" {
		t.Errorf("LastName = %q, want leading apostrophe kept", r.LastName)
	}
	if r.FirstName != "Anne-Marie" {
		t.Errorf("FirstName = %q, want quotes removed", r.FirstName)
	}
	if r.FISHPPoints == nil || *r.FISHPPoints != 1234.5 {
		t.Errorf("FISHPPoints = %v, want 1234.5", r.FISHPPoints)
	}
}

func TestRowValidator_OptionalFields(t *testing.T) {
	v := NewRowValidator(false)

	t.Run("empty optional values are absent", func(t *testing.T) {
		rec := with(validRecord(),
			ColNationality, "",
			ColStance, " ",
			ColFISNum, "",
			ColFISHPPoints, "",
			ColFISSSPoints, "",
			ColFISBAPoints, "",
			ColWSPLPoints, "",
		)
		res := v.Validate(0, rec)
		if !res.OK() {
			t.Fatalf("Validate() errors = %v", res.Errors)
		}
		r := res.Row
		if r.Nationality != "" || r.Stance != "" || r.FISNum != "" {
			t.Errorf("optional strings should be empty: %+v", r.AthleteFields)
		}
		if r.FISHPPoints != nil || r.FISSSPoints != nil || r.FISBAPoints != nil || r.WSPLPoints != nil {
			t.Error("empty points should be nil, not zero")
		}
	})

	t.Run("values are canonicalized", func(t *testing.T) {
		rec := with(validRecord(),
			ColNationality, "can",
			ColStance, "GOOFY",
			ColFISNum, "0123456",
			ColFISHPPoints, "0",
			ColWSPLPoints, "1,234.5",
			ColGender, "f",
		)
		res := v.Validate(0, rec)
		if !res.OK() {
			t.Fatalf("Validate() errors = %v", res.Errors)
		}
		r := res.Row
		if r.Nationality != "CAN" {
			t.Errorf("Nationality = %q, want CAN", r.Nationality)
		}
		if r.Stance != "Goofy" {
			t.Errorf("Stance = %q, want Goofy", r.Stance)
		}
		if r.FISNum != "0123456" {
			t.Errorf("FISNum = %q, want 0123456", r.FISNum)
		}
		if r.Gender != "F" {
			t.Errorf("Gender = %q, want F", r.Gender)
		}
		if r.FISHPPoints == nil || *r.FISHPPoints != 0 {
			t.Errorf("FISHPPoints = %v, want 0", r.FISHPPoints)
		}
		if r.WSPLPoints == nil || *r.WSPLPoints != 1234.5 {
			t.Errorf("WSPLPoints = %v, want 1234.5", r.WSPLPoints)
		}
		if !r.DOB.Equal(NewDate(2000, time.January, 1)) {
			t.Errorf("DOB = %v, want 2000-01-01", r.DOB)
		}
	})
}

func TestRowValidator_BibNum(t *testing.T) {
	rec := with(validRecord(), ColBibNum, "42")

	res := NewRowValidator(false).Validate(0, rec)
	if !res.OK() {
		t.Fatalf("Validate() errors = %v", res.Errors)
	}
	if res.Row.BibNum != nil {
		t.Error("bib_num should be ignored when not accepted")
	}

	res = NewRowValidator(true).Validate(0, rec)
	if !res.OK() {
		t.Fatalf("Validate() errors = %v", res.Errors)
	}
	if res.Row.BibNum == nil || *res.Row.BibNum != 42 {
		t.Errorf("BibNum = %v, want 42", res.Row.BibNum)
	}

	res = NewRowValidator(true).Validate(0, with(rec, ColBibNum, "-1"))
	if res.OK() || res.Errors[0].Field != ColBibNum {
		t.Errorf("negative bib should fail, got %v", res.Errors)
	}
}

func TestValidateHeaders(t *testing.T) {
	tests := []struct {
		name        string
		headers     []string
		wantMissing []string
	}{
		{name: "all required", headers: []string{"last_name", "first_name", "dob", "gender"}},
		{name: "normalized spelling", headers: []string{"Last Name", " FIRST_NAME", "DOB", "Gender", "fis_num"}},
		{name: "missing two", headers: []string{"last_name", "first_name"}, wantMissing: []string{"dob", "gender"}},
		{name: "none", headers: nil, wantMissing: []string{"last_name", "first_name", "dob", "gender"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeaders(tt.headers)
			if tt.wantMissing == nil {
				if err != nil {
					t.Fatalf("ValidateHeaders() error = %v", err)
				}
				return
			}
			var he *HeaderError
			if !errors.As(err, &he) {
				t.Fatalf("ValidateHeaders() error = %v, want *HeaderError", err)
			}
			if strings.Join(he.Missing, ",") != strings.Join(tt.wantMissing, ",") {
				t.Errorf("Missing = %v, want %v", he.Missing, tt.wantMissing)
			}
			if !errors.Is(err, ErrMissingHeaders) {
				t.Error("HeaderError should match ErrMissingHeaders")
			}
		})
	}
}
