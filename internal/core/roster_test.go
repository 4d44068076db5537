package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseRoster(t *testing.T) {
	t.Run("bom and normalized headers", func(t *testing.T) {
		in := "\xEF\xBB\xBFLast Name,First Name,DOB,Gender,FIS Num\nDoe,Jane,2000-01-01,F,\n"
		f, err := ParseRoster(strings.NewReader(in), ParseOptions{})
		if err != nil {
			t.Fatalf("ParseRoster() error = %v", err)
		}
		want := []string{"last_name", "first_name", "dob", "gender", "fis_num"}
		if strings.Join(f.Headers, ",") != strings.Join(want, ",") {
			t.Errorf("Headers = %v, want %v", f.Headers, want)
		}
		if len(f.Records) != 1 {
			t.Fatalf("Records = %d, want 1", len(f.Records))
		}
		if got := f.Records[0].Get(ColLastName); got != "Doe" {
			t.Errorf("last_name = %q, want Doe", got)
		}
	})

	t.Run("blank rows skipped", func(t *testing.T) {
		in := "last_name,first_name,dob,gender\nA,B,2000-01-01,M\n,,,\n\nC,D,2001-01-01,F\n"
		f, err := ParseRoster(strings.NewReader(in), ParseOptions{})
		if err != nil {
			t.Fatalf("ParseRoster() error = %v", err)
		}
		if len(f.Records) != 2 {
			t.Fatalf("Records = %d, want 2", len(f.Records))
		}
		if got := f.Records[1].Get(ColLastName); got != "C" {
			t.Errorf("second record last_name = %q, want C", got)
		}
	})

	t.Run("short rows leave trailing columns absent", func(t *testing.T) {
		in := "last_name,first_name,dob,gender,nationality\nA,B,2000-01-01,M\n"
		f, err := ParseRoster(strings.NewReader(in), ParseOptions{})
		if err != nil {
			t.Fatalf("ParseRoster() error = %v", err)
		}
		if _, ok := f.Records[0][ColNationality]; ok {
			t.Error("nationality should be absent")
		}
	})

	t.Run("bib_num dropped unless accepted", func(t *testing.T) {
		in := "last_name,first_name,dob,gender,bib_num\nA,B,2000-01-01,M,7\n"
		f, err := ParseRoster(strings.NewReader(in), ParseOptions{})
		if err != nil {
			t.Fatalf("ParseRoster() error = %v", err)
		}
		if _, ok := f.Records[0][ColBibNum]; ok {
			t.Error("bib_num should be dropped")
		}

		f, err = ParseRoster(strings.NewReader(in), ParseOptions{AcceptBibNum: true})
		if err != nil {
			t.Fatalf("ParseRoster() error = %v", err)
		}
		if got := f.Records[0].Get(ColBibNum); got != "7" {
			t.Errorf("bib_num = %q, want 7", got)
		}
	})

	t.Run("invalid utf8 replaced", func(t *testing.T) {
		in := "last_name,first_name,dob,gender\nM\xFFller,Ann,2000-01-01,F\n"
		f, err := ParseRoster(strings.NewReader(in), ParseOptions{})
		if err != nil {
			t.Fatalf("ParseRoster() error = %v", err)
		}
		if got := f.Records[0].Get(ColLastName); got != "M\uFFFDller" {
			t.Errorf("last_name = %q", got)
		}
	})
}

func TestParseRoster_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		opts    ParseOptions
		wantErr error
	}{
		{"empty file", "", ParseOptions{}, ErrEmptyFile},
		{"missing headers", "last_name,first_name\nA,B\n", ParseOptions{}, ErrMissingHeaders},
		{"too many rows", "last_name,first_name,dob,gender\nA,B,2000-01-01,M\nC,D,2000-01-01,F\n", ParseOptions{MaxRows: 1}, ErrTooManyRows},
		{"unterminated quote", "last_name,first_name,dob,gender\n\"A,B,2000-01-01,M\n", ParseOptions{}, ErrInvalidCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRoster(strings.NewReader(tt.input), tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseRoster() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeRecord(t *testing.T) {
	rec := NormalizeRecord(map[string]string{"Last Name": "Doe", "BIB_NUM": "3"}, false)
	if rec[ColLastName] != "Doe" {
		t.Errorf("last_name = %q, want Doe", rec[ColLastName])
	}
	if _, ok := rec[ColBibNum]; ok {
		t.Error("bib_num should be dropped")
	}
}
