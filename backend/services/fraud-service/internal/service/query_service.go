package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"chargeguard/backend/services/fraud-service/internal/models"
	"chargeguard/backend/services/fraud-service/internal/overlap"
)

// QueryService answers read-only questions about sessions, overlaps and verdicts.
type QueryService struct {
	store  QueryStore
	leeway time.Duration
	logger *zap.Logger
}

// NewQueryService builds service.
func NewQueryService(store QueryStore, logger *zap.Logger) *QueryService {
	return &QueryService{store: store, leeway: overlap.DefaultLeeway, logger: logger}
}

func (s *QueryService) graph(ctx context.Context, filter models.SessionFilter) (*overlap.Graph, error) {
	sessions, err := s.store.ListSessions(ctx, filter)
	if err != nil {
		return nil, storageErr("query: list sessions", err)
	}
	return overlap.NewGraph(sessions, overlap.WithLeeway(s.leeway)), nil
}

// ClusterFrom returns every session transitively overlapping the given one,
// the session itself included, ordered by start time.
func (s *QueryService) ClusterFrom(ctx context.Context, sessionID string) ([]models.ChargeSession, error) {
	seed, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	account := overlap.AccountKey(*seed)
	if account == "" {
		return []models.ChargeSession{*seed}, nil
	}

	g, err := s.graph(ctx, models.SessionFilter{AccountID: account})
	if err != nil {
		return nil, err
	}
	cluster, err := g.Cluster(seed.ID)
	if errors.Is(err, models.ErrSessionNotFound) {
		// No usable interval, so it overlaps nothing.
		return []models.ChargeSession{*seed}, nil
	}
	return cluster, err
}

// Clusters returns all overlap clusters of two or more sessions.
func (s *QueryService) Clusters(ctx context.Context, account string) ([][]models.ChargeSession, error) {
	g, err := s.graph(ctx, models.SessionFilter{AccountID: strings.TrimSpace(account)})
	if err != nil {
		return nil, err
	}
	return g.Clusters(), nil
}

// StatsByAccount aggregates overlapping sessions per account.
func (s *QueryService) StatsByAccount(ctx context.Context) ([]models.AccountStats, error) {
	g, err := s.graph(ctx, models.SessionFilter{})
	if err != nil {
		return nil, err
	}
	stats := g.StatsByAccount()
	if stats == nil {
		stats = []models.AccountStats{}
	}
	return stats, nil
}

// OverlappingSessions lists overlapping sessions, optionally for one account.
func (s *QueryService) OverlappingSessions(ctx context.Context, account string) ([]models.OverlappingSession, error) {
	account = strings.TrimSpace(account)
	g, err := s.graph(ctx, models.SessionFilter{AccountID: account})
	if err != nil {
		return nil, err
	}
	out := g.OverlappingSessions(account)
	if out == nil {
		out = []models.OverlappingSession{}
	}
	return out, nil
}

// SessionDetails returns a session with its stored verdict and decisions.
func (s *QueryService) SessionDetails(ctx context.Context, sessionID string) (*models.SessionDetails, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	v, err := s.store.GetVerdict(ctx, sess.ID)
	if err != nil {
		return nil, storageErr("query: get verdict", err)
	}
	decisions, err := s.store.ListDecisions(ctx, sess.ID)
	if err != nil {
		return nil, storageErr("query: list decisions", err)
	}
	if decisions == nil {
		decisions = []models.Decision{}
	}
	return &models.SessionDetails{
		Session:   *sess,
		Verdict:   v,
		Legacy:    v.LegacyView(),
		Decisions: decisions,
	}, nil
}

// ReasonStats counts stored reasons per pass.
func (s *QueryService) ReasonStats(ctx context.Context) (models.ReasonStats, error) {
	stats, err := s.store.ReasonStats(ctx)
	if err != nil {
		return models.ReasonStats{}, storageErr("query: reason stats", err)
	}
	return stats, nil
}

func (s *QueryService) session(ctx context.Context, id string) (*models.ChargeSession, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.ErrSessionNotFound
	}
	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, models.ErrSessionNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storageErr("query: get session", err)
	}
	return sess, nil
}
