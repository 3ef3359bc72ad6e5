// Package verdict merges pass findings into stored verdicts. Every pass owns one
// reason per session; writes never touch another pass's reason.
package verdict

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// ErrUnknownPass is returned for a pass that has no reason slot.
var ErrUnknownPass = errors.New("verdict: unknown pass")

// Store persists reasons keyed by (session, pass).
type Store interface {
	// ReasonsForPass returns the current reason of pass for those ids that have one.
	ReasonsForPass(ctx context.Context, pass models.Pass, ids []string) (map[string]string, error)
	// UpsertReasons inserts or overwrites the reason of pass for ids atomically.
	UpsertReasons(ctx context.Context, pass models.Pass, reason string, ids []string) error
	// PruneReasons deletes the reasons of pass on sessions not in keep and
	// returns how many were deleted.
	PruneReasons(ctx context.Context, pass models.Pass, keep []string) (int, error)
}

// Result counts what an upsert did.
type Result struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// Written is the number of rows actually written.
func (r Result) Written() int {
	return r.Inserted + r.Updated
}

func (r *Result) add(o Result) {
	r.Inserted += o.Inserted
	r.Updated += o.Updated
	r.Unchanged += o.Unchanged
	r.Removed += o.Removed
}

type passLocks struct {
	mu map[models.Pass]*sync.Mutex
}

// Aggregator applies findings to a Store. Calls for the same pass are serialized,
// calls for different passes proceed in parallel.
type Aggregator struct {
	store  Store
	locks  *passLocks
	logger *zap.Logger
}

// NewAggregator returns an aggregator writing to store.
func NewAggregator(store Store, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	locks := &passLocks{mu: make(map[models.Pass]*sync.Mutex, len(models.AllPasses))}
	for _, p := range models.AllPasses {
		locks.mu[p] = &sync.Mutex{}
	}
	return &Aggregator{store: store, locks: locks, logger: logger}
}

// With returns an aggregator writing to store that shares the per-pass locks,
// typically bound to a transaction.
func (a *Aggregator) With(store Store) *Aggregator {
	return &Aggregator{store: store, locks: a.locks, logger: a.logger}
}

// Upsert records reason for every id under pass. Ids already carrying the same
// reason are left untouched, so repeating a call writes nothing.
func (a *Aggregator) Upsert(ctx context.Context, pass models.Pass, reason string, ids []string) (Result, error) {
	lock, ok := a.locks.mu[pass]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownPass, pass)
	}

	ids = dedupe(ids)
	if len(ids) == 0 {
		return Result{}, nil
	}

	lock.Lock()
	defer lock.Unlock()

	existing, err := a.store.ReasonsForPass(ctx, pass, ids)
	if err != nil {
		return Result{}, fmt.Errorf("verdict: read %s: %w", pass, err)
	}

	var res Result
	toWrite := make([]string, 0, len(ids))
	for _, id := range ids {
		current, found := existing[id]
		switch {
		case !found:
			res.Inserted++
		case current == reason:
			res.Unchanged++
			continue
		default:
			res.Updated++
		}
		toWrite = append(toWrite, id)
	}

	if len(toWrite) > 0 {
		if err := a.store.UpsertReasons(ctx, pass, reason, toWrite); err != nil {
			return Result{}, fmt.Errorf("verdict: write %s: %w", pass, err)
		}
	}

	a.logger.Debug("verdict upsert",
		zap.String("pass", string(pass)),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
	)
	return res, nil
}

// Apply groups findings by reason text and upserts each group.
func (a *Aggregator) Apply(ctx context.Context, pass models.Pass, findings []models.Finding) (Result, error) {
	var order []string
	groups := make(map[string][]string)
	for _, f := range findings {
		if _, ok := groups[f.Reason]; !ok {
			order = append(order, f.Reason)
		}
		groups[f.Reason] = append(groups[f.Reason], f.SessionID)
	}

	var total Result
	for _, reason := range order {
		res, err := a.Upsert(ctx, pass, reason, groups[reason])
		if err != nil {
			return total, err
		}
		total.add(res)
	}
	return total, nil
}

// Replace makes findings the complete set of reasons for pass: it applies them
// and deletes the pass's reasons on every other session.
func (a *Aggregator) Replace(ctx context.Context, pass models.Pass, findings []models.Finding) (Result, error) {
	res, err := a.Apply(ctx, pass, findings)
	if err != nil {
		return res, err
	}
	lock, ok := a.locks.mu[pass]
	if !ok {
		return res, fmt.Errorf("%w: %q", ErrUnknownPass, pass)
	}

	keep := make([]string, 0, len(findings))
	for _, f := range findings {
		keep = append(keep, f.SessionID)
	}
	keep = dedupe(keep)

	lock.Lock()
	defer lock.Unlock()
	removed, err := a.store.PruneReasons(ctx, pass, keep)
	if err != nil {
		return res, fmt.Errorf("verdict: prune %s: %w", pass, err)
	}
	res.Removed = removed
	if removed > 0 {
		a.logger.Debug("verdict prune", zap.String("pass", string(pass)), zap.Int("removed", removed))
	}
	return res, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
