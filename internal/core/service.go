package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/rosterimport/internal/config"
	"github.com/JonMunkholm/rosterimport/internal/logging"
)

// DefaultAllowedRoles may reconcile and commit when no allow-list is configured.
var DefaultAllowedRoles = []string{"admin", "event_admin"}

// Options configures a Service.
type Options struct {
	MaxRows          int
	AcceptBibNum     bool
	AllowedRoles     []string
	MaxConcurrent    int
	MaxWait          time.Duration
	ReconcileTimeout time.Duration
	CommitTimeout    time.Duration
}

// OptionsFromConfig maps the import and security settings onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		MaxRows:          cfg.Import.MaxRows,
		AcceptBibNum:     cfg.Import.AcceptBibNum,
		AllowedRoles:     cfg.Security.AllowedRoles,
		MaxConcurrent:    cfg.Import.MaxConcurrent,
		MaxWait:          cfg.Import.MaxWaitTime,
		ReconcileTimeout: cfg.Import.ReconcileTimeout,
		CommitTimeout:    cfg.Import.CommitTimeout,
	}
}

// Recorder receives operation outcomes for metrics.
type Recorder interface {
	ObserveReconcile(report *ReconcileReport, elapsed time.Duration, err error)
	ObserveCommit(report *CommitReport, elapsed time.Duration, err error)
	ObserveBootstrap(eventID int64, linked int, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveReconcile(*ReconcileReport, time.Duration, error) {}
func (nopRecorder) ObserveCommit(*CommitReport, time.Duration, error)       {}
func (nopRecorder) ObserveBootstrap(int64, int, error)                      {}

// Service provides the reconciliation and registration operations.
type Service struct {
	store     Store
	opts      Options
	validator *RowValidator
	resolver  *Resolver
	registrar *Registrar
	limiter   *ImportLimiter
	rec       Recorder
}

// NewService creates a Service. A nil Recorder disables metrics.
func NewService(store Store, opts Options, rec Recorder) *Service {
	if len(opts.AllowedRoles) == 0 {
		opts.AllowedRoles = DefaultAllowedRoles
	}
	if rec == nil {
		rec = nopRecorder{}
	}
	validator := NewRowValidator(opts.AcceptBibNum)
	return &Service{
		store:     store,
		opts:      opts,
		validator: validator,
		resolver:  NewResolver(store),
		registrar: NewRegistrar(store, validator),
		limiter:   NewImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		rec:       rec,
	}
}

// ParseOptions returns the roster parsing options this service enforces.
func (s *Service) ParseOptions() ParseOptions {
	return ParseOptions{MaxRows: s.opts.MaxRows, AcceptBibNum: s.opts.AcceptBibNum}
}

// Validate checks one record without touching the store.
func (s *Service) Validate(rowIndex int, rec RawRecord) RowResult {
	return s.validator.Validate(rowIndex, rec)
}

// ReconcileRequest is a roster to reconcile against one event.
type ReconcileRequest struct {
	EventID int64
	Headers []string
	Records []RawRecord
}

// Reconcile classifies every record. Rows failing validation are reported as
// error rows and skipped. A missing required header, a failed authorization or
// a division bootstrap failure stops the request with no rows classified.
func (s *Service) Reconcile(ctx context.Context, req ReconcileRequest) (report *ReconcileReport, err error) {
	start := time.Now()
	defer func() { s.rec.ObserveReconcile(report, time.Since(start), err) }()

	actor, err := Authorize(ctx, s.opts.AllowedRoles)
	if err != nil {
		return nil, err
	}
	if err := ValidateHeaders(req.Headers); err != nil {
		return nil, err
	}
	if s.opts.MaxRows > 0 && len(req.Records) > s.opts.MaxRows {
		return nil, ErrTooManyRows
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.opts.ReconcileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ReconcileTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	ctx = logging.ContextWithLogger(ctx, logging.WithFields(ctx,
		slog.String("run_id", runID),
		slog.Int64("event_id", req.EventID),
		slog.String("actor", actor.ID),
	))
	log := logging.FromContext(ctx)

	var results []MatchResult
	var valid []ImportRow
	var genders []string
	for i, rec := range req.Records {
		res := s.validator.Validate(i, rec)
		if !res.OK() {
			results = append(results, errorResult(i, rec, res.Errors))
			continue
		}
		valid = append(valid, *res.Row)
		genders = append(genders, res.Row.Gender)
	}

	divisions, err := s.ensureDivisions(ctx, req.EventID, NeededBuckets(genders))
	if err != nil {
		log.Error("reconcile stopped: divisions unavailable", slog.String("error", err.Error()))
		return nil, err
	}

	matched, err := s.resolver.Resolve(ctx, valid)
	if err != nil {
		log.Error("reconcile failed", slog.String("error", err.Error()))
		return nil, err
	}
	for i := range matched {
		matched[i].SuggestedDivision = SuggestDivision(matched[i].Row.Gender, divisions)
	}
	results = append(results, matched...)

	report = BuildReport(runID, req.EventID, results, divisions)
	log.Info("roster reconciled",
		slog.Int("rows", report.Summary.Total),
		slog.Int("new", report.Summary.New),
		slog.Int("matched", report.Summary.Matched),
		slog.Int("conflict", report.Summary.Conflict),
		slog.Int("error", report.Summary.Error),
	)
	return report, nil
}

// EnsureDivisions links the standard divisions for the given gender tokens to
// an event that has none. It is idempotent: an event with divisions is left
// unchanged. Returns the event's divisions afterwards.
func (s *Service) EnsureDivisions(ctx context.Context, eventID int64, genders []string) ([]Division, error) {
	if _, err := Authorize(ctx, s.opts.AllowedRoles); err != nil {
		return nil, err
	}
	return s.ensureDivisions(ctx, eventID, NeededBuckets(genders))
}

func (s *Service) ensureDivisions(ctx context.Context, eventID int64, buckets []Bucket) ([]Division, error) {
	var divisions []Division
	var linked int
	err := s.store.InTx(ctx, func(ctx context.Context, tx StoreTx) error {
		var err error
		divisions, linked, err = ensureEventDivisions(ctx, tx, eventID, buckets)
		return err
	})
	if linked > 0 || err != nil {
		s.rec.ObserveBootstrap(eventID, linked, err)
	}
	if err != nil {
		return nil, err
	}
	return divisions, nil
}

// EventDivisions lists the divisions linked to an event.
func (s *Service) EventDivisions(ctx context.Context, eventID int64) ([]Division, error) {
	if _, err := Authorize(ctx, s.opts.AllowedRoles); err != nil {
		return nil, err
	}
	return s.store.EventDivisions(ctx, eventID)
}

// Commit writes an approved batch atomically. On abort the returned report
// marks every row failed and err describes the row that stopped the batch.
func (s *Service) Commit(ctx context.Context, req CommitRequest) (report *CommitReport, err error) {
	start := time.Now()
	defer func() { s.rec.ObserveCommit(report, time.Since(start), err) }()

	actor, err := Authorize(ctx, s.opts.AllowedRoles)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	if s.opts.CommitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.CommitTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	ctx = logging.ContextWithLogger(ctx, logging.WithFields(ctx,
		slog.String("run_id", runID),
		slog.Int64("event_id", req.EventID),
		slog.String("actor", actor.ID),
	))

	report, err = s.registrar.Commit(ctx, req.EventID, req.Rows)
	if report != nil {
		report.RunID = runID
	}
	if err != nil {
		return report, err
	}

	logging.FromContext(ctx).Info("roster committed",
		slog.Int("rows", len(report.Details)),
		slog.Int("created", report.Counts.Created),
		slog.Int("updated", report.Counts.Updated),
		slog.Int("registered", report.Counts.Registered),
		slog.Int("already_registered", report.Counts.AlreadyRegistered),
		slog.Int("division_changed", report.Counts.DivisionChanged),
	)
	return report, nil
}

// LimiterStatus returns the import limiter state.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// WaitForImports blocks until running imports finish or ctx ends.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
