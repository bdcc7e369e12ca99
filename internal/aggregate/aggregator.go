// Package aggregate orchestrates the per-ISRC metadata lookup: fan out to
// the catalog source adapters, absorb per-source failures, and hand the
// collected contributions to the reconciler.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/quizzicalbeats/quizzicalbeats/internal/reconcile"
	"github.com/quizzicalbeats/quizzicalbeats/internal/song"
	"github.com/quizzicalbeats/quizzicalbeats/internal/source"
)

// Whole-lookup failures. Individual source failures never surface directly;
// they are absorbed into the per-source outcomes.
var (
	ErrInvalidISRC = errors.New("malformed ISRC")
	ErrTimeout     = errors.New("aggregation deadline exceeded")
)

const retryBackoff = 250 * time.Millisecond

// Status classifies a single source's outcome within one lookup.
type Status string

// Outcome statuses.
const (
	StatusOK          Status = "ok"
	StatusNotFound    Status = "not_found"
	StatusUnavailable Status = "unavailable"
	StatusDisabled    Status = "disabled"
)

// Outcome records how a single source fared during one lookup.
type Outcome struct {
	Source source.Name `json:"source"`
	Status Status      `json:"status"`
	Err    string      `json:"error,omitempty"`
}

// Result is a successful aggregation: the canonical record plus the
// per-source outcomes for logging and bulk import reports.
type Result struct {
	Record   *song.Record `json:"record"`
	Outcomes []Outcome    `json:"outcomes"`
}

// Aggregator coordinates source lookups for one ISRC at a time.
type Aggregator struct {
	registry      *source.Registry
	reconciler    *reconcile.Reconciler
	logger        *slog.Logger
	sourceTimeout time.Duration
	clock         func() time.Time
}

// New creates an Aggregator. sourceTimeout bounds each adapter call; zero
// selects the 10 second default.
func New(registry *source.Registry, reconciler *reconcile.Reconciler, logger *slog.Logger, sourceTimeout time.Duration) *Aggregator {
	if sourceTimeout <= 0 {
		sourceTimeout = 10 * time.Second
	}
	return &Aggregator{
		registry:      registry,
		reconciler:    reconciler,
		logger:        logger.With(slog.String("component", "aggregator")),
		sourceTimeout: sourceTimeout,
		clock:         time.Now,
	}
}

// Aggregate looks up one recording across all configured sources and
// reconciles the contributions into a canonical record.
//
// The lookup runs in two phases: the ISRC-capable sources are queried
// concurrently first; if a tentative title and artist emerge, the name-only
// sources are queried with that pair. Transient failures are retried once;
// auth failures disable the source for the remainder of the lookup.
func (a *Aggregator) Aggregate(ctx context.Context, isrc string) (*Result, error) {
	isrc = song.NormalizeISRC(isrc)
	if !song.ValidISRC(isrc) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidISRC, isrc)
	}

	// Overall deadline: one concurrent phase bounded by the per-source
	// timeout, doubled for the single retry, per phase.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 4*a.sourceTimeout)
		defer cancel()
	}

	start := a.clock()
	state := &lookupState{}

	a.fanOut(ctx, a.registry.ISRCCapable(), state, func(ad source.Adapter, callCtx context.Context) (*source.PartialRecord, error) {
		return ad.(source.ISRCLookup).LookupByISRC(callCtx, isrc)
	})
	if ctx.Err() != nil {
		return nil, ErrTimeout
	}

	title, artist := reconcile.Tentative(state.inputs)
	if title == "" && artist == "" {
		a.logger.Info("no identifying metadata from id sources",
			slog.String("isrc", isrc),
			slog.Int("sources_queried", len(state.outcomes)))
		return nil, reconcile.ErrInsufficientData
	}

	if title != "" && artist != "" {
		a.fanOut(ctx, a.registry.NameOnly(), state, func(ad source.Adapter, callCtx context.Context) (*source.PartialRecord, error) {
			return ad.(source.NameLookup).LookupByName(callCtx, artist, title)
		})
		if ctx.Err() != nil {
			return nil, ErrTimeout
		}
	}

	rec, err := a.reconciler.Reconcile(isrc, state.inputs)
	if err != nil {
		return nil, err
	}
	rec.ImportedAt = a.clock().UTC()

	a.logger.Info("aggregation complete",
		slog.String("isrc", isrc),
		slog.String("title", rec.Title),
		slog.String("artist", rec.ArtistName),
		slog.Int("contributing_sources", len(rec.Sources)),
		slog.Duration("elapsed", a.clock().Sub(start)))

	return &Result{Record: rec, Outcomes: state.outcomes}, nil
}

// lookupState accumulates contributions and outcomes across both phases.
type lookupState struct {
	mu       sync.Mutex
	inputs   []reconcile.Input
	outcomes []Outcome
	disabled map[source.Name]bool
}

func (s *lookupState) isDisabled(n source.Name) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disabled[n]
}

func (s *lookupState) disable(n source.Name) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disabled == nil {
		s.disabled = make(map[source.Name]bool)
	}
	s.disabled[n] = true
}

func (s *lookupState) record(in *reconcile.Input, out Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if in != nil {
		s.inputs = append(s.inputs, *in)
	}
	s.outcomes = append(s.outcomes, out)
}

// fanOut queries the given adapters concurrently, retrying transient
// failures once. No adapter failure aborts the group.
func (a *Aggregator) fanOut(ctx context.Context, adapters []source.Adapter, state *lookupState, call func(source.Adapter, context.Context) (*source.PartialRecord, error)) {
	g, gctx := errgroup.WithContext(ctx)
	for _, ad := range adapters {
		if state.isDisabled(ad.Name()) {
			state.record(nil, Outcome{Source: ad.Name(), Status: StatusDisabled})
			continue
		}
		g.Go(func() error {
			rec, err := a.callWithRetry(gctx, ad, call)
			a.settle(state, ad.Name(), rec, err)
			return nil
		})
	}
	_ = g.Wait()
}

// callWithRetry invokes the adapter with the per-source timeout, retrying
// exactly once when the failure is transient.
func (a *Aggregator) callWithRetry(ctx context.Context, ad source.Adapter, call func(source.Adapter, context.Context) (*source.PartialRecord, error)) (*source.PartialRecord, error) {
	var rec *source.PartialRecord
	err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(retryBackoff)), func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
		defer cancel()

		var callErr error
		rec, callErr = call(ad, callCtx)

		var unavailable *source.ErrUnavailable
		if errors.As(callErr, &unavailable) {
			return retry.RetryableError(callErr)
		}
		return callErr
	})
	return rec, err
}

// settle classifies one adapter outcome and stores the contribution.
func (a *Aggregator) settle(state *lookupState, name source.Name, rec *source.PartialRecord, err error) {
	switch {
	case err == nil:
		state.record(&reconcile.Input{Source: name, Record: rec}, Outcome{Source: name, Status: StatusOK})

	case isNotFound(err):
		state.record(nil, Outcome{Source: name, Status: StatusNotFound, Err: err.Error()})

	case isAuthFailure(err):
		state.disable(name)
		state.record(nil, Outcome{Source: name, Status: StatusDisabled, Err: err.Error()})
		a.logger.Warn("source disabled for lookup", slog.String("source", string(name)), slog.String("error", err.Error()))

	default:
		state.record(nil, Outcome{Source: name, Status: StatusUnavailable, Err: err.Error()})
		a.logger.Debug("source unavailable", slog.String("source", string(name)), slog.String("error", err.Error()))
	}
}

func isNotFound(err error) bool {
	var nf *source.ErrNotFound
	return errors.As(err, &nf)
}

func isAuthFailure(err error) bool {
	var auth *source.ErrAuthRequired
	return errors.As(err, &auth)
}
