package core

// divisions.go infers a default division from a gender token and links the
// catalog's standard divisions to an event that has none yet.

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/JonMunkholm/rosterimport/internal/logging"
)

// Bucket is a normalized gender category.
type Bucket string

const (
	BucketMale   Bucket = "MALE"
	BucketFemale Bucket = "FEMALE"
)

var genderTokens = map[string]Bucket{
	"M":      BucketMale,
	"MALE":   BucketMale,
	"MEN":    BucketMale,
	"F":      BucketFemale,
	"FEMALE": BucketFemale,
	"WOMEN":  BucketFemale,
	"W":      BucketFemale,
}

// bucketDivisionNames lists division names for each bucket, most preferred first.
var bucketDivisionNames = map[Bucket][]string{
	BucketMale:   {"MALE", "MEN"},
	BucketFemale: {"FEMALE", "WOMEN"},
}

// DivisionKey is the form catalog and event division names are compared in:
// trimmed and upper-cased, the same as upper(btrim(name)) in the database.
func DivisionKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// NormalizeGender folds a gender token into a bucket.
func NormalizeGender(token string) (Bucket, bool) {
	b, ok := genderTokens[strings.ToUpper(strings.TrimSpace(token))]
	return b, ok
}

// NeededBuckets returns the distinct known buckets among genders, in a stable order.
func NeededBuckets(genders []string) []Bucket {
	seen := make(map[Bucket]bool, 2)
	var out []Bucket
	for _, g := range genders {
		if b, ok := NormalizeGender(g); ok && !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	slices.Sort(out)
	return out
}

// SuggestDivision picks the division for a gender token among the divisions
// linked to the event. Returns nil if the token is unknown or no linked
// division fits its bucket.
func SuggestDivision(gender string, divisions []Division) *Division {
	b, ok := NormalizeGender(gender)
	if !ok {
		return nil
	}
	return preferredDivision(b, divisions)
}

func preferredDivision(b Bucket, divisions []Division) *Division {
	for _, name := range bucketDivisionNames[b] {
		for i := range divisions {
			if DivisionKey(divisions[i].Name) == name {
				d := divisions[i]
				return &d
			}
		}
	}
	return nil
}

// ensureEventDivisions links the standard division of every needed bucket to
// an event that has no divisions. An event that already has divisions is left
// alone. If the catalog lacks any needed division, nothing is linked and a
// *DivisionBootstrapError is returned. Must run inside a transaction.
func ensureEventDivisions(ctx context.Context, tx StoreTx, eventID int64, buckets []Bucket) ([]Division, int, error) {
	if err := tx.LockEvent(ctx, eventID); err != nil {
		return nil, 0, err
	}

	linked, err := tx.EventDivisions(ctx, eventID)
	if err != nil {
		return nil, 0, err
	}
	if len(linked) > 0 || len(buckets) == 0 {
		return linked, 0, nil
	}

	var names []string
	for _, b := range buckets {
		names = append(names, bucketDivisionNames[b]...)
	}
	catalog, err := tx.CatalogDivisions(ctx, names)
	if err != nil {
		return nil, 0, err
	}

	var picked []Division
	var missing []string
	for _, b := range buckets {
		d := preferredDivision(b, catalog)
		if d == nil {
			missing = append(missing, string(b))
			continue
		}
		picked = append(picked, *d)
	}
	if len(missing) > 0 {
		return nil, 0, &DivisionBootstrapError{EventID: eventID, Missing: missing}
	}

	for _, d := range picked {
		if err := tx.LinkEventDivision(ctx, eventID, d.ID); err != nil {
			return nil, 0, err
		}
	}

	logging.FromContext(ctx).Info("divisions bootstrapped",
		slog.Int64("event_id", eventID),
		slog.Int("linked", len(picked)),
	)

	linked, err = tx.EventDivisions(ctx, eventID)
	if err != nil {
		return nil, 0, err
	}
	return linked, len(picked), nil
}
