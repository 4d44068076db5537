// Package memstore is an in-memory core.Store. Transactions run against a
// copy of the state that replaces the live state only when the transaction
// function succeeds, so a failed batch leaves no trace.
package memstore

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

// Registration is a stored (event, athlete) link.
type Registration struct {
	EventID    int64
	AthleteID  int64
	DivisionID int64
	BibNum     *int32
}

type regKey struct {
	eventID   int64
	athleteID int64
}

type state struct {
	athletes       map[int64]core.Athlete
	divisions      map[int64]core.Division
	eventDivisions map[int64]map[int64]bool
	registrations  map[regKey]Registration
	nextAthleteID  int64
	nextDivisionID int64
}

func newState() state {
	return state{
		athletes:       map[int64]core.Athlete{},
		divisions:      map[int64]core.Division{},
		eventDivisions: map[int64]map[int64]bool{},
		registrations:  map[regKey]Registration{},
		nextAthleteID:  1,
		nextDivisionID: 1,
	}
}

func (s state) clone() state {
	c := state{
		athletes:       maps.Clone(s.athletes),
		divisions:      maps.Clone(s.divisions),
		eventDivisions: make(map[int64]map[int64]bool, len(s.eventDivisions)),
		registrations:  maps.Clone(s.registrations),
		nextAthleteID:  s.nextAthleteID,
		nextDivisionID: s.nextDivisionID,
	}
	for k, v := range s.eventDivisions {
		c.eventDivisions[k] = maps.Clone(v)
	}
	return c
}

// Store is a concurrency-safe in-memory store. Transactions are serialized.
type Store struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	state state

	// FailOn, when set, is consulted before every write inside a transaction.
	// A non-nil return aborts that write with the error.
	FailOn func(op string) error
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{state: newState()}
}

// Ping always succeeds unless ctx is done.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

// AddAthlete stores a if it has an id, or assigns the next id. Returns the id.
func (s *Store) AddAthlete(a core.Athlete) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		a.ID = s.state.nextAthleteID
	}
	if a.ID >= s.state.nextAthleteID {
		s.state.nextAthleteID = a.ID + 1
	}
	s.state.athletes[a.ID] = a
	return a.ID
}

// AddDivision adds a catalog division and returns its id.
func (s *Store) AddDivision(name string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.state.nextDivisionID
	s.state.nextDivisionID++
	s.state.divisions[id] = core.Division{ID: id, Name: name}
	return id
}

// LinkDivision links a catalog division to an event.
func (s *Store) LinkDivision(eventID, divisionID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	linkLocked(&s.state, eventID, divisionID)
}

func linkLocked(st *state, eventID, divisionID int64) {
	if st.eventDivisions[eventID] == nil {
		st.eventDivisions[eventID] = map[int64]bool{}
	}
	st.eventDivisions[eventID][divisionID] = true
}

// Athletes returns every athlete ordered by id.
func (s *Store) Athletes() []core.Athlete {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Collect(maps.Values(s.state.athletes))
	slices.SortFunc(out, func(a, b core.Athlete) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Athlete returns one athlete.
func (s *Store) Athlete(id int64) (core.Athlete, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.athletes[id]
	return a, ok
}

// Registrations returns the links for an event ordered by athlete id.
func (s *Store) Registrations(eventID int64) []Registration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Registration
	for k, r := range s.state.registrations {
		if k.eventID == eventID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Registration) int { return cmp.Compare(a.AthleteID, b.AthleteID) })
	return out
}

func (s *Store) FindAthletesByFISNums(ctx context.Context, fisNums []string) ([]core.Athlete, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(fisNums))
	for _, f := range fisNums {
		want[f] = true
	}
	var out []core.Athlete
	for _, a := range s.Athletes() {
		if a.FISNum != "" && want[a.FISNum] {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) FindAthletesByNaturalKeys(ctx context.Context, keys []core.NaturalKey) ([]core.Athlete, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []core.Athlete
	for _, a := range s.Athletes() {
		for _, k := range keys {
			if sameKey(a.NaturalKey(), k) {
				out = append(out, a)
				break
			}
		}
	}
	return out, nil
}

func (s *Store) EventDivisions(ctx context.Context, eventID int64) ([]core.Division, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return eventDivisions(&s.state, eventID), nil
}

// InTx runs fn against a copy of the state and keeps the copy only if fn
// returns nil.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.StoreTx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	work := s.state.clone()
	s.mu.RUnlock()

	if err := fn(ctx, &tx{st: &work, failOn: s.FailOn}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = work
	s.mu.Unlock()
	return nil
}

type tx struct {
	st     *state
	failOn func(op string) error
}

func (t *tx) fail(op string) error {
	if t.failOn == nil {
		return nil
	}
	return t.failOn(op)
}

func (t *tx) LockEvent(ctx context.Context, eventID int64) error {
	return ctx.Err()
}

func (t *tx) EventDivisions(ctx context.Context, eventID int64) ([]core.Division, error) {
	return eventDivisions(t.st, eventID), ctx.Err()
}

func (t *tx) CatalogDivisions(ctx context.Context, names []string) ([]core.Division, error) {
	var out []core.Division
	for _, d := range t.st.divisions {
		if slices.Contains(names, core.DivisionKey(d.Name)) {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(a, b core.Division) int { return cmp.Compare(a.ID, b.ID) })
	return out, ctx.Err()
}

func (t *tx) LinkEventDivision(ctx context.Context, eventID, divisionID int64) error {
	if err := t.fail("link_event_division"); err != nil {
		return err
	}
	if _, ok := t.st.divisions[divisionID]; !ok {
		return fmt.Errorf("division %d: violates foreign key", divisionID)
	}
	linkLocked(t.st, eventID, divisionID)
	return nil
}

func (t *tx) FindAthleteIDByNaturalKey(ctx context.Context, key core.NaturalKey) (int64, bool, error) {
	var best int64
	for id, a := range t.st.athletes {
		if sameKey(a.NaturalKey(), key) && (best == 0 || id < best) {
			best = id
		}
	}
	return best, best != 0, ctx.Err()
}

func (t *tx) AthleteExists(ctx context.Context, id int64) (bool, error) {
	_, ok := t.st.athletes[id]
	return ok, ctx.Err()
}

func (t *tx) InsertAthlete(ctx context.Context, f core.AthleteFields) (int64, error) {
	if err := t.fail("insert_athlete"); err != nil {
		return 0, err
	}
	if f.FISNum != "" {
		if _, taken := t.byFIS(f.FISNum); taken {
			return 0, core.ErrDuplicateExternalID
		}
	}
	id := t.st.nextAthleteID
	t.st.nextAthleteID++
	t.st.athletes[id] = core.Athlete{ID: id, AthleteFields: f}
	return id, nil
}

func (t *tx) UpsertAthleteByFISNum(ctx context.Context, f core.AthleteFields) (int64, bool, error) {
	if err := t.fail("upsert_athlete"); err != nil {
		return 0, false, err
	}
	if id, ok := t.byFIS(f.FISNum); ok {
		t.st.athletes[id] = core.Athlete{ID: id, AthleteFields: f}
		return id, false, nil
	}
	id, err := t.InsertAthlete(ctx, f)
	return id, true, err
}

func (t *tx) UpdateAthlete(ctx context.Context, id int64, f core.AthleteFields) error {
	if err := t.fail("update_athlete"); err != nil {
		return err
	}
	cur, ok := t.st.athletes[id]
	if !ok {
		return fmt.Errorf("athlete %d: %w", id, core.ErrAthleteNotFound)
	}
	if f.FISNum == "" {
		f.FISNum = cur.FISNum
	} else if other, taken := t.byFIS(f.FISNum); taken && other != id {
		return core.ErrDuplicateExternalID
	}
	t.st.athletes[id] = core.Athlete{ID: id, AthleteFields: f}
	return nil
}

func (t *tx) UpsertRegistration(ctx context.Context, p core.RegistrationParams) (*int64, error) {
	if err := t.fail("upsert_registration"); err != nil {
		return nil, err
	}
	if _, ok := t.st.athletes[p.AthleteID]; !ok {
		return nil, fmt.Errorf("athlete %d: violates foreign key", p.AthleteID)
	}
	k := regKey{eventID: p.EventID, athleteID: p.AthleteID}
	next := Registration{EventID: p.EventID, AthleteID: p.AthleteID, DivisionID: p.DivisionID, BibNum: p.BibNum}

	prev, existed := t.st.registrations[k]
	if existed && next.BibNum == nil {
		next.BibNum = prev.BibNum
	}
	t.st.registrations[k] = next
	if !existed {
		return nil, nil
	}
	d := prev.DivisionID
	return &d, nil
}

func (t *tx) byFIS(fis string) (int64, bool) {
	for id, a := range t.st.athletes {
		if a.FISNum == fis {
			return id, true
		}
	}
	return 0, false
}

func eventDivisions(st *state, eventID int64) []core.Division {
	var out []core.Division
	for id := range st.eventDivisions[eventID] {
		out = append(out, st.divisions[id])
	}
	slices.SortFunc(out, func(a, b core.Division) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func sameKey(a, b core.NaturalKey) bool {
	return core.FoldName(a.LastName) == core.FoldName(b.LastName) &&
		core.FoldName(a.FirstName) == core.FoldName(b.FirstName) &&
		a.DOB.Equal(b.DOB)
}
