package core

// resolver.go matches validated rows against the canonical athlete store.
//
// Rows carrying a fis_num are matched by fis_num only; the identifier is
// authoritative and such rows never fall back to the natural key. Rows
// without one are matched by (last name, first name, dob) with names compared
// case-insensitively. Both lookups are batched and run concurrently, so a
// reconciliation costs at most two store reads regardless of row count.

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/rosterimport/internal/logging"
)

// FoldName is the case-insensitive form of a name used for natural-key
// comparison. It lowercases rune by rune like Postgres lower(), so the
// resolver, the in-memory store and the natural-key queries agree on which
// names are equal. Full case folding (ß to ss) is not applied; lower() does
// not apply it either.
func FoldName(s string) string {
	return strings.ToLower(s)
}

// keyString is the comparable form of a natural key.
func keyString(k NaturalKey) string {
	return FoldName(k.LastName) + "\x00" + FoldName(k.FirstName) + "\x00" + k.DOB.String()
}

// Resolver classifies rows as new, matched or conflict.
type Resolver struct {
	finder AthleteFinder
}

// NewResolver creates a resolver reading from finder.
func NewResolver(finder AthleteFinder) *Resolver {
	return &Resolver{finder: finder}
}

// Resolve returns one MatchResult per row, in input order.
func (r *Resolver) Resolve(ctx context.Context, rows []ImportRow) ([]MatchResult, error) {
	var fisNums []string
	var keys []NaturalKey
	seenFIS := make(map[string]bool)
	seenKey := make(map[string]bool)

	for _, row := range rows {
		if row.FISNum != "" {
			if !seenFIS[row.FISNum] {
				seenFIS[row.FISNum] = true
				fisNums = append(fisNums, row.FISNum)
			}
			continue
		}
		k := row.NaturalKey()
		if ks := keyString(k); !seenKey[ks] {
			seenKey[ks] = true
			keys = append(keys, k)
		}
	}

	var byFIS, byKey []Athlete
	g, gctx := errgroup.WithContext(ctx)
	if len(fisNums) > 0 {
		g.Go(func() error {
			var err error
			byFIS, err = r.finder.FindAthletesByFISNums(gctx, fisNums)
			return err
		})
	}
	if len(keys) > 0 {
		g.Go(func() error {
			var err error
			byKey, err = r.finder.FindAthletesByNaturalKeys(gctx, keys)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fisIndex := make(map[string]Athlete, len(byFIS))
	for _, a := range byFIS {
		fisIndex[a.FISNum] = a
	}

	keyIndex := make(map[string][]Athlete, len(byKey))
	for _, a := range byKey {
		ks := keyString(a.NaturalKey())
		keyIndex[ks] = append(keyIndex[ks], a)
	}

	results := make([]MatchResult, len(rows))
	for i := range rows {
		row := rows[i]
		res := MatchResult{RowIndex: row.RowIndex, Status: StatusNew, Row: &row}

		if row.FISNum != "" {
			if a, ok := fisIndex[row.FISNum]; ok {
				res.Athlete = &a
				if mm := identityMismatches(row.AthleteFields, a.AthleteFields); len(mm) > 0 {
					res.Status = StatusConflict
					res.Mismatches = mm
				} else {
					res.Status = StatusMatched
				}
			}
			results[i] = res
			continue
		}

		if candidates := keyIndex[keyString(row.NaturalKey())]; len(candidates) > 0 {
			a := lowestID(candidates)
			if len(candidates) > 1 {
				logging.FromContext(ctx).Warn("ambiguous natural key, using lowest id",
					slog.Int("row_index", row.RowIndex),
					slog.Int("candidates", len(candidates)),
					slog.Int64("athlete_id", a.ID),
				)
			}
			res.Status = StatusMatched
			res.Athlete = &a
		}
		results[i] = res
	}

	return results, nil
}

// identityMismatches lists the natural-key fields on which row and stored disagree.
func identityMismatches(row, stored AthleteFields) []string {
	var mm []string
	if FoldName(row.LastName) != FoldName(stored.LastName) {
		mm = append(mm, ColLastName)
	}
	if FoldName(row.FirstName) != FoldName(stored.FirstName) {
		mm = append(mm, ColFirstName)
	}
	if !row.DOB.Equal(stored.DOB) {
		mm = append(mm, ColDOB)
	}
	return mm
}

func lowestID(as []Athlete) Athlete {
	best := as[0]
	for _, a := range as[1:] {
		if a.ID < best.ID {
			best = a
		}
	}
	return best
}
