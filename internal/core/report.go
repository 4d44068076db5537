package core

import "sort"

// BuildReport assembles reconciled and rejected rows into one report ordered
// by row index, together with the divisions available to the event.
func BuildReport(runID string, eventID int64, results []MatchResult, divisions []Division) *ReconcileReport {
	rows := make([]MatchResult, len(results))
	copy(rows, results)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].RowIndex < rows[j].RowIndex
	})

	if divisions == nil {
		divisions = []Division{}
	}

	report := &ReconcileReport{
		RunID:     runID,
		EventID:   eventID,
		Rows:      rows,
		Divisions: divisions,
	}
	for _, r := range rows {
		report.Summary.Total++
		switch r.Status {
		case StatusNew:
			report.Summary.New++
		case StatusMatched:
			report.Summary.Matched++
		case StatusConflict:
			report.Summary.Conflict++
		case StatusError:
			report.Summary.Error++
		}
	}
	return report
}

// errorResult turns a failed validation into an error row.
func errorResult(rowIndex int, raw RawRecord, errs FieldErrors) MatchResult {
	return MatchResult{
		RowIndex: rowIndex,
		Status:   StatusError,
		Raw:      raw,
		Errors:   errs,
		Message:  errs.Error(),
	}
}
