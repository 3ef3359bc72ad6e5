package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// MemoryStore is an in-process record store for tests and local runs.
// Transactions work on a copy of the state that replaces it on commit. Writes
// outside a transaction wait until an open one finishes, reads see the last
// committed state.
type MemoryStore struct {
	txMu   sync.Mutex
	mu     sync.RWMutex
	state  *memState
	faults map[string]error
}

type reasonKey struct {
	session string
	pass    models.Pass
}

type memState struct {
	sessions     map[string]models.ChargeSession
	locations    map[string]models.Location
	attempts     map[string]models.GeocodeAttempt
	reasons      map[reasonKey]string
	thresholds   map[string]float64
	tableReady   bool
	decisions    []models.Decision
	reasonWrites int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memState{
			sessions:   make(map[string]models.ChargeSession),
			locations:  make(map[string]models.Location),
			attempts:   make(map[string]models.GeocodeAttempt),
			reasons:    make(map[reasonKey]string),
			thresholds: make(map[string]float64),
		},
		faults: make(map[string]error),
	}
}

// FailOn makes the named operation return err until cleared with a nil err.
// Operation names match the method names, e.g. "UpsertReasons".
func (s *MemoryStore) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// ReasonWrites counts reason rows written since creation.
func (s *MemoryStore) ReasonWrites() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.reasonWrites
}

func (s *MemoryStore) fault(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.faults[op]
}

func (s *MemoryStore) read(op string, fn func(*memState) error) error {
	if err := s.fault(op); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// write must not be called from inside an InTx callback.
func (s *MemoryStore) write(op string, fn func(*memState) error) error {
	if err := s.fault(op); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

// InTx runs fn on a private copy of the state and publishes it if fn succeeds.
func (s *MemoryStore) InTx(ctx context.Context, fn func(Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := s.fault("InTx"); err != nil {
		return err
	}
	s.mu.RLock()
	draft := s.state.clone()
	s.mu.RUnlock()

	if err := fn(&memTx{store: s, state: draft}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = draft
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return s.fault("Ping") }

func (s *MemoryStore) InsertSessions(_ context.Context, sessions []models.ChargeSession) error {
	return s.write("InsertSessions", func(st *memState) error {
		for _, sess := range sessions {
			st.sessions[sess.ID] = sess
		}
		return nil
	})
}

func (s *MemoryStore) ListSessions(_ context.Context, filter models.SessionFilter) ([]models.ChargeSession, error) {
	var out []models.ChargeSession
	err := s.read("ListSessions", func(st *memState) error {
		out = st.listSessions(filter)
		return nil
	})
	return out, err
}

func (s *MemoryStore) GetSession(_ context.Context, id string) (*models.ChargeSession, error) {
	var out *models.ChargeSession
	err := s.read("GetSession", func(st *memState) error {
		sess, ok := st.sessions[id]
		if !ok {
			return models.ErrSessionNotFound
		}
		sess = st.withLocation(sess)
		out = &sess
		return nil
	})
	return out, err
}

func (s *MemoryStore) ApplyCorrections(_ context.Context, corrections []models.Correction) error {
	return s.write("ApplyCorrections", func(st *memState) error {
		st.applyCorrections(corrections)
		return nil
	})
}

func (s *MemoryStore) ListLocations(context.Context) (map[string]models.Location, error) {
	out := make(map[string]models.Location)
	err := s.read("ListLocations", func(st *memState) error {
		for k, v := range st.locations {
			out[k] = v
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) UpsertLocation(_ context.Context, loc models.Location) error {
	return s.write("UpsertLocation", func(st *memState) error {
		st.locations[loc.ChargePointID] = loc
		return nil
	})
}

func (s *MemoryStore) PendingChargePoints(_ context.Context, limit int, retryBefore time.Time) ([]models.ChargePointAddress, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []models.ChargePointAddress
	err := s.read("PendingChargePoints", func(st *memState) error {
		seen := make(map[string]struct{})
		for _, sess := range st.listSessions(models.SessionFilter{}) {
			addr := models.ChargePointAddress{
				ChargePointID: strings.TrimSpace(sess.ChargePointID),
				Address:       strings.TrimSpace(sess.Address),
				ZIP:           strings.TrimSpace(sess.ZIP),
				City:          strings.TrimSpace(sess.City),
				Country:       strings.TrimSpace(sess.Country),
			}
			if addr.ChargePointID == "" || addr.Address == "" || addr.ZIP == "" || addr.City == "" || addr.Country == "" {
				continue
			}
			if _, ok := st.locations[addr.ChargePointID]; ok {
				continue
			}
			if a, ok := st.attempts[addr.ChargePointID]; ok && !a.LastAttemptedAt.Before(retryBefore) {
				continue
			}
			if _, ok := seen[addr.ChargePointID]; ok {
				continue
			}
			seen[addr.ChargePointID] = struct{}{}
			out = append(out, addr)
		}
		sort.Slice(out, func(i, j int) bool {
			ai, iok := st.attempts[out[i].ChargePointID]
			aj, jok := st.attempts[out[j].ChargePointID]
			if iok != jok {
				return !iok
			}
			if iok && !ai.LastAttemptedAt.Equal(aj.LastAttemptedAt) {
				return ai.LastAttemptedAt.Before(aj.LastAttemptedAt)
			}
			return out[i].ChargePointID < out[j].ChargePointID
		})
		if len(out) > limit {
			out = out[:limit]
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) RecordGeocodeAttempt(_ context.Context, chargePointID, result string, at time.Time) error {
	return s.write("RecordGeocodeAttempt", func(st *memState) error {
		a := st.attempts[chargePointID]
		a.ChargePointID = chargePointID
		a.Attempts++
		a.LastResult = result
		a.LastAttemptedAt = at
		st.attempts[chargePointID] = a
		return nil
	})
}

func (s *MemoryStore) GeocodeAttempts(context.Context) ([]models.GeocodeAttempt, error) {
	var out []models.GeocodeAttempt
	err := s.read("GeocodeAttempts", func(st *memState) error {
		for _, a := range st.attempts {
			out = append(out, a)
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].LastAttemptedAt.Equal(out[j].LastAttemptedAt) {
				return out[i].LastAttemptedAt.After(out[j].LastAttemptedAt)
			}
			return out[i].ChargePointID < out[j].ChargePointID
		})
		return nil
	})
	return out, err
}

func (s *MemoryStore) ReasonsForPass(_ context.Context, pass models.Pass, ids []string) (map[string]string, error) {
	var out map[string]string
	err := s.read("ReasonsForPass", func(st *memState) error {
		out = st.reasonsForPass(pass, ids)
		return nil
	})
	return out, err
}

func (s *MemoryStore) UpsertReasons(_ context.Context, pass models.Pass, reason string, ids []string) error {
	return s.write("UpsertReasons", func(st *memState) error {
		st.upsertReasons(pass, reason, ids)
		return nil
	})
}

func (s *MemoryStore) PruneReasons(_ context.Context, pass models.Pass, keep []string) (int, error) {
	var removed int
	err := s.write("PruneReasons", func(st *memState) error {
		removed = st.pruneReasons(pass, keep)
		return nil
	})
	return removed, err
}

func (s *MemoryStore) AccountReasons(_ context.Context, passes []models.Pass) ([]models.AccountReason, error) {
	var out []models.AccountReason
	err := s.read("AccountReasons", func(st *memState) error {
		out = st.accountReasons(passes)
		return nil
	})
	return out, err
}

func (s *MemoryStore) FlaggedSessions(_ context.Context, passes []models.Pass) ([]models.FlaggedSession, error) {
	var out []models.FlaggedSession
	err := s.read("FlaggedSessions", func(st *memState) error {
		wanted := make(map[models.Pass]struct{}, len(passes))
		for _, p := range passes {
			wanted[p] = struct{}{}
		}
		byID := make(map[string]*models.FlaggedSession)
		for k, reason := range st.reasons {
			if _, ok := wanted[k.pass]; !ok {
				continue
			}
			sess, ok := st.sessions[k.session]
			if !ok {
				continue
			}
			f := byID[k.session]
			if f == nil {
				f = &models.FlaggedSession{ChargeSession: st.withLocation(sess), Reasons: make(map[models.Pass]string)}
				byID[k.session] = f
			}
			f.Reasons[k.pass] = reason
		}
		for _, f := range byID {
			out = append(out, *f)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return nil
	})
	return out, err
}

func (s *MemoryStore) GetVerdict(_ context.Context, sessionID string) (models.Verdict, error) {
	v := models.Verdict{SessionID: sessionID, Reasons: make(map[models.Pass]string)}
	err := s.read("GetVerdict", func(st *memState) error {
		for k, reason := range st.reasons {
			if k.session == sessionID {
				v.Reasons[k.pass] = reason
			}
		}
		return nil
	})
	return v, err
}

func (s *MemoryStore) ReasonStats(context.Context) (models.ReasonStats, error) {
	var stats models.ReasonStats
	err := s.read("ReasonStats", func(st *memState) error {
		sessions := make(map[string]struct{})
		counts := make(map[models.Pass]int)
		for k := range st.reasons {
			sessions[k.session] = struct{}{}
			counts[k.pass]++
		}
		stats.TotalFlagged = len(sessions)
		stats.Reasons = reasonCounts(counts, stats.TotalFlagged)
		return nil
	})
	return stats, err
}

func (s *MemoryStore) EnsureThresholdTable(context.Context) error {
	return s.write("EnsureThresholdTable", func(st *memState) error {
		st.tableReady = true
		return nil
	})
}

func (s *MemoryStore) SeedThresholds(_ context.Context, defaults map[string]float64) error {
	return s.write("SeedThresholds", func(st *memState) error {
		for name, v := range defaults {
			if _, ok := st.thresholds[name]; !ok {
				st.thresholds[name] = v
			}
		}
		return nil
	})
}

func (s *MemoryStore) Thresholds(context.Context) (map[string]float64, error) {
	out := make(map[string]float64)
	err := s.read("Thresholds", func(st *memState) error {
		for k, v := range st.thresholds {
			out[k] = v
		}
		return nil
	})
	return out, err
}

func (s *MemoryStore) UpsertThresholds(_ context.Context, values map[string]float64) error {
	return s.write("UpsertThresholds", func(st *memState) error {
		for k, v := range values {
			st.thresholds[k] = v
		}
		return nil
	})
}

func (s *MemoryStore) AddDecision(_ context.Context, d models.Decision) error {
	return s.write("AddDecision", func(st *memState) error {
		st.decisions = append(st.decisions, d)
		return nil
	})
}

func (s *MemoryStore) ListDecisions(_ context.Context, sessionID string) ([]models.Decision, error) {
	var out []models.Decision
	err := s.read("ListDecisions", func(st *memState) error {
		for _, d := range st.decisions {
			if d.SessionID == sessionID {
				out = append(out, d)
			}
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].DecidedAt.After(out[j].DecidedAt) })
		return nil
	})
	return out, err
}

// memTx is the transactional view handed to InTx callbacks.
type memTx struct {
	store *MemoryStore
	mu    sync.Mutex
	state *memState
}

func (t *memTx) do(op string, fn func(*memState)) error {
	if err := t.store.fault(op); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(t.state)
	return nil
}

func (t *memTx) ReasonsForPass(_ context.Context, pass models.Pass, ids []string) (map[string]string, error) {
	var out map[string]string
	err := t.do("ReasonsForPass", func(st *memState) { out = st.reasonsForPass(pass, ids) })
	return out, err
}

func (t *memTx) UpsertReasons(_ context.Context, pass models.Pass, reason string, ids []string) error {
	return t.do("UpsertReasons", func(st *memState) { st.upsertReasons(pass, reason, ids) })
}

func (t *memTx) PruneReasons(_ context.Context, pass models.Pass, keep []string) (int, error) {
	var removed int
	err := t.do("PruneReasons", func(st *memState) { removed = st.pruneReasons(pass, keep) })
	return removed, err
}

func (t *memTx) AccountReasons(_ context.Context, passes []models.Pass) ([]models.AccountReason, error) {
	var out []models.AccountReason
	err := t.do("AccountReasons", func(st *memState) { out = st.accountReasons(passes) })
	return out, err
}

func (t *memTx) ApplyCorrections(_ context.Context, corrections []models.Correction) error {
	return t.do("ApplyCorrections", func(st *memState) { st.applyCorrections(corrections) })
}

func (st *memState) clone() *memState {
	out := &memState{
		sessions:     make(map[string]models.ChargeSession, len(st.sessions)),
		locations:    make(map[string]models.Location, len(st.locations)),
		attempts:     make(map[string]models.GeocodeAttempt, len(st.attempts)),
		reasons:      make(map[reasonKey]string, len(st.reasons)),
		thresholds:   make(map[string]float64, len(st.thresholds)),
		tableReady:   st.tableReady,
		decisions:    append([]models.Decision(nil), st.decisions...),
		reasonWrites: st.reasonWrites,
	}
	for k, v := range st.sessions {
		out.sessions[k] = v
	}
	for k, v := range st.locations {
		out.locations[k] = v
	}
	for k, v := range st.attempts {
		out.attempts[k] = v
	}
	for k, v := range st.reasons {
		out.reasons[k] = v
	}
	for k, v := range st.thresholds {
		out.thresholds[k] = v
	}
	return out
}

func (st *memState) withLocation(s models.ChargeSession) models.ChargeSession {
	if loc, ok := st.locations[strings.TrimSpace(s.ChargePointID)]; ok {
		lat, lng := loc.Latitude, loc.Longitude
		s.Latitude, s.Longitude = &lat, &lng
	}
	return s
}

func (st *memState) listSessions(filter models.SessionFilter) []models.ChargeSession {
	out := make([]models.ChargeSession, 0, len(st.sessions))
	for _, s := range st.sessions {
		if filter.AccountID != "" && strings.TrimSpace(s.AccountID) != filter.AccountID {
			continue
		}
		if !filter.From.IsZero() && s.End.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !s.Start.Before(filter.To) {
			continue
		}
		out = append(out, st.withLocation(s))
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Start.IsZero() != b.Start.IsZero() {
			return b.Start.IsZero()
		}
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.ID < b.ID
	})
	return out
}

func (st *memState) applyCorrections(corrections []models.Correction) {
	for _, c := range corrections {
		s, ok := st.sessions[c.SessionID]
		if !ok {
			continue
		}
		if c.AccountID != nil {
			s.AccountID = *c.AccountID
		}
		if c.ChargePointID != nil {
			s.ChargePointID = *c.ChargePointID
		}
		st.sessions[c.SessionID] = s
	}
}

func (st *memState) reasonsForPass(pass models.Pass, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		if r, ok := st.reasons[reasonKey{id, pass}]; ok {
			out[id] = r
		}
	}
	return out
}

func (st *memState) upsertReasons(pass models.Pass, reason string, ids []string) {
	for _, id := range ids {
		k := reasonKey{id, pass}
		if current, ok := st.reasons[k]; ok && current == reason {
			continue
		}
		st.reasons[k] = reason
		st.reasonWrites++
	}
}

func (st *memState) pruneReasons(pass models.Pass, keep []string) int {
	kept := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		kept[id] = struct{}{}
	}
	removed := 0
	for k := range st.reasons {
		if k.pass != pass {
			continue
		}
		if _, ok := kept[k.session]; !ok {
			delete(st.reasons, k)
			removed++
		}
	}
	return removed
}

func (st *memState) accountReasons(passes []models.Pass) []models.AccountReason {
	wanted := make(map[models.Pass]struct{}, len(passes))
	for _, p := range passes {
		wanted[p] = struct{}{}
	}
	var out []models.AccountReason
	for k, reason := range st.reasons {
		if _, ok := wanted[k.pass]; !ok {
			continue
		}
		s, ok := st.sessions[k.session]
		if !ok {
			continue
		}
		out = append(out, models.AccountReason{
			AccountID: strings.TrimSpace(s.AccountID),
			SessionID: k.session,
			Pass:      k.pass,
			Reason:    reason,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SessionID != out[j].SessionID {
			return out[i].SessionID < out[j].SessionID
		}
		return out[i].Pass.Slot() < out[j].Pass.Slot()
	})
	return out
}
