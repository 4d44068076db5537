package core

// validation.go turns untyped roster records into typed ImportRows.
//
// Validation happens at two levels:
//  1. Header validation: the required columns must be present before any row is read
//  2. Row validation: each cell is checked against its FieldSpec
//
// Row validation never stops at the first problem. A row result carries either
// a typed ImportRow or every field-level error found, so one bad row never
// aborts the rest of the batch.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Column names recognized in roster input.
const (
	ColLastName    = "last_name"
	ColFirstName   = "first_name"
	ColDOB         = "dob"
	ColGender      = "gender"
	ColNationality = "nationality"
	ColStance      = "stance"
	ColFISNum      = "fis_num"
	ColFISHPPoints = "fis_hp_points"
	ColFISSSPoints = "fis_ss_points"
	ColFISBAPoints = "fis_ba_points"
	ColWSPLPoints  = "wspl_points"
	ColBibNum      = "bib_num"
)

// FieldType represents the expected data type for a roster column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldInteger
	FieldCountry
	FieldExternalID
)

// FieldSpec defines validation rules for a single roster column.
type FieldSpec struct {
	Name       string              // Normalized column name
	Type       FieldType           // Expected data type
	Required   bool                // Column must be present and non-empty
	EnumValues []string            // Canonical values for FieldEnum
	Normalizer func(string) string // Optional transformation applied before type checks
}

var (
	countryRegex    = regexp.MustCompile(`^[A-Z]{3}$`)
	externalIDRegex = regexp.MustCompile(`^[0-9]{7}$`)
)

// StanceValues are the accepted stance values in canonical spelling.
var StanceValues = []string{"Regular", "Goofy"}

var baseFieldSpecs = []FieldSpec{
	{Name: ColLastName, Type: FieldText, Required: true},
	{Name: ColFirstName, Type: FieldText, Required: true},
	{Name: ColDOB, Type: FieldDate, Required: true},
	{Name: ColGender, Type: FieldText, Required: true, Normalizer: strings.ToUpper},
	{Name: ColNationality, Type: FieldCountry, Normalizer: strings.ToUpper},
	{Name: ColStance, Type: FieldEnum, EnumValues: StanceValues},
	{Name: ColFISNum, Type: FieldExternalID},
	{Name: ColFISHPPoints, Type: FieldNumeric},
	{Name: ColFISSSPoints, Type: FieldNumeric},
	{Name: ColFISBAPoints, Type: FieldNumeric},
	{Name: ColWSPLPoints, Type: FieldNumeric},
}

var bibFieldSpec = FieldSpec{Name: ColBibNum, Type: FieldInteger}

// RosterFieldSpecs returns the column rules. bib_num is only recognized when
// acceptBibNum is set.
func RosterFieldSpecs(acceptBibNum bool) []FieldSpec {
	specs := make([]FieldSpec, len(baseFieldSpecs), len(baseFieldSpecs)+1)
	copy(specs, baseFieldSpecs)
	if acceptBibNum {
		specs = append(specs, bibFieldSpec)
	}
	return specs
}

// RequiredColumns returns the columns every roster must carry.
func RequiredColumns() []string {
	var cols []string
	for _, spec := range baseFieldSpecs {
		if spec.Required {
			cols = append(cols, spec.Name)
		}
	}
	return cols
}

// ValidationError represents a single validation error for a field.
type ValidationError struct {
	Field   string `json:"field"`           // Column name
	Value   string `json:"value,omitempty"` // The invalid value
	Message string `json:"message"`         // Human-readable error message
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// FieldErrors is every problem found in one row.
type FieldErrors []ValidationError

func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Error()
	}
	return strings.Join(msgs, "; ")
}

// Is lets callers match any row failure with errors.Is(err, ErrValidation).
func (e FieldErrors) Is(target error) bool {
	return target == ErrValidation
}

// RowResult is either a typed row or the errors that prevented one.
type RowResult struct {
	Row    *ImportRow
	Errors FieldErrors
}

// OK reports whether the row validated.
func (r RowResult) OK() bool {
	return len(r.Errors) == 0 && r.Row != nil
}

// RowValidator validates roster records against the roster field specs.
type RowValidator struct {
	specs []FieldSpec
}

// NewRowValidator creates a validator. See RosterFieldSpecs for acceptBibNum.
func NewRowValidator(acceptBibNum bool) *RowValidator {
	return &RowValidator{specs: RosterFieldSpecs(acceptBibNum)}
}

// Specs returns the column rules in use.
func (v *RowValidator) Specs() []FieldSpec {
	return v.specs
}

// Validate checks one record and returns all validation errors.
// Empty optional values are absent, never zero.
func (v *RowValidator) Validate(rowIndex int, rec RawRecord) RowResult {
	row := &ImportRow{RowIndex: rowIndex}
	var errs FieldErrors

	for _, spec := range v.specs {
		raw := rec.Get(spec.Name)

		if raw == "" {
			if spec.Required {
				errs = append(errs, ValidationError{
					Field:   spec.Name,
					Message: "required field is empty",
				})
			}
			continue
		}

		if spec.Normalizer != nil {
			raw = spec.Normalizer(raw)
		}

		value, err := ValidateCell(raw, spec)
		if err != nil {
			errs = append(errs, ValidationError{
				Field:   spec.Name,
				Value:   raw,
				Message: err.Error(),
			})
			continue
		}

		if err := assign(row, spec.Name, value); err != nil {
			errs = append(errs, ValidationError{Field: spec.Name, Value: raw, Message: err.Error()})
		}
	}

	if len(errs) > 0 {
		return RowResult{Errors: errs}
	}
	return RowResult{Row: row}
}

// ValidateCell checks a non-empty value against a field specification and
// returns it in canonical form: a string, Date, float64 or int32.
func ValidateCell(value string, spec FieldSpec) (any, error) {
	switch spec.Type {
	case FieldDate:
		d, err := ParseDate(value)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD)")
		}
		return d, nil
	case FieldNumeric:
		f, ok := ParsePoints(value)
		if !ok {
			return nil, fmt.Errorf("invalid number format")
		}
		return f, nil
	case FieldInteger:
		n, err := strconv.ParseInt(value, 10, 32)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("must be a non-negative whole number")
		}
		return int32(n), nil
	case FieldCountry:
		if !countryRegex.MatchString(value) {
			return nil, fmt.Errorf("must be a 3-letter country code")
		}
		return value, nil
	case FieldExternalID:
		if !externalIDRegex.MatchString(value) {
			return nil, fmt.Errorf("must be exactly 7 digits")
		}
		return value, nil
	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, value) {
				return ev, nil
			}
		}
		return nil, fmt.Errorf("value must be one of: %s", strings.Join(spec.EnumValues, ", "))
	default:
		return value, nil
	}
}

// assign stores a canonical value on the row.
func assign(row *ImportRow, name string, value any) error {
	switch name {
	case ColLastName:
		row.LastName = value.(string)
	case ColFirstName:
		row.FirstName = value.(string)
	case ColDOB:
		row.DOB = value.(Date)
	case ColGender:
		row.Gender = value.(string)
	case ColNationality:
		row.Nationality = value.(string)
	case ColStance:
		row.Stance = value.(string)
	case ColFISNum:
		row.FISNum = value.(string)
	case ColFISHPPoints:
		row.FISHPPoints = floatPtr(value.(float64))
	case ColFISSSPoints:
		row.FISSSPoints = floatPtr(value.(float64))
	case ColFISBAPoints:
		row.FISBAPoints = floatPtr(value.(float64))
	case ColWSPLPoints:
		row.WSPLPoints = floatPtr(value.(float64))
	case ColBibNum:
		n := value.(int32)
		row.BibNum = &n
	default:
		return fmt.Errorf("unknown column")
	}
	return nil
}

func floatPtr(f float64) *float64 {
	return &f
}

// ValidateHeaders checks that all required columns exist in the headers.
// Headers are compared after normalization. Returns a *HeaderError listing
// every missing column.
func ValidateHeaders(headers []string) error {
	present := make(map[string]bool, len(headers))
	for _, h := range headers {
		present[NormalizeHeader(h)] = true
	}

	var missing []string
	for _, col := range RequiredColumns() {
		if !present[col] {
			missing = append(missing, col)
		}
	}

	if len(missing) > 0 {
		return &HeaderError{Missing: missing}
	}
	return nil
}
