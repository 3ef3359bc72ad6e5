package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"chargeguard/backend/services/fraud-service/internal/models"
)

type totals struct {
	sessions int
	flagged  int
	volume   decimal.Decimal
	cost     decimal.Decimal
}

func (t *totals) add(s models.ChargeSession, flagged bool) {
	t.sessions++
	if flagged {
		t.flagged++
	}
	if v, ok := s.VolumeKWh(); ok {
		t.volume = t.volume.Add(decimal.NewFromFloat(v))
	}
	if s.Cost != nil {
		t.cost = t.cost.Add(decimal.NewFromFloat(*s.Cost))
	}
}

func (t *totals) export() models.FraudTotals {
	return models.FraudTotals{
		Sessions:    t.sessions,
		Flagged:     t.flagged,
		TotalVolume: t.volume.Round(3).InexactFloat64(),
		TotalCost:   t.cost.Round(2).InexactFloat64(),
	}
}

// flagged returns the flagged sessions of passes keyed by id.
func (s *QueryService) flagged(ctx context.Context, passes []models.Pass) (map[string]models.FlaggedSession, error) {
	rows, err := s.store.FlaggedSessions(ctx, passes)
	if err != nil {
		return nil, storageErr("query: flagged sessions", err)
	}
	out := make(map[string]models.FlaggedSession, len(rows))
	for _, f := range rows {
		out[f.ID] = f
	}
	return out, nil
}

// FraudByAccount totals all sessions of every account with at least one
// flagged session. Sessions without an account are not attributed.
func (s *QueryService) FraudByAccount(ctx context.Context) ([]models.AccountFraudStats, error) {
	flagged, err := s.flagged(ctx, models.AllPasses)
	if err != nil {
		return nil, err
	}
	accounts := make(map[string]*totals)
	for _, f := range flagged {
		if account := strings.TrimSpace(f.AccountID); account != "" {
			accounts[account] = &totals{}
		}
	}
	if len(accounts) == 0 {
		return []models.AccountFraudStats{}, nil
	}

	sessions, err := s.store.ListSessions(ctx, models.SessionFilter{})
	if err != nil {
		return nil, storageErr("query: list sessions", err)
	}
	for _, sess := range sessions {
		if t, ok := accounts[strings.TrimSpace(sess.AccountID)]; ok {
			_, hit := flagged[sess.ID]
			t.add(sess, hit)
		}
	}

	out := make([]models.AccountFraudStats, 0, len(accounts))
	for account, t := range accounts {
		out = append(out, models.AccountFraudStats{AccountID: account, FraudTotals: t.export()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

// FraudByChargePoint totals all sessions of every charge point with at least
// one flagged session, grouped by charge point and country. A non-empty reason
// ("3" or "Reason3") only counts sessions flagged by that pass.
func (s *QueryService) FraudByChargePoint(ctx context.Context, reason string) ([]models.ChargePointFraudStats, error) {
	passes := models.AllPasses
	if strings.TrimSpace(reason) != "" {
		pass, ok := models.ParseSlot(reason)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownReason, reason)
		}
		passes = []models.Pass{pass}
	}
	flagged, err := s.flagged(ctx, passes)
	if err != nil {
		return nil, err
	}
	chargePoints := make(map[string]struct{})
	for _, f := range flagged {
		if cp := strings.TrimSpace(f.ChargePointID); cp != "" {
			chargePoints[cp] = struct{}{}
		}
	}
	if len(chargePoints) == 0 {
		return []models.ChargePointFraudStats{}, nil
	}

	sessions, err := s.store.ListSessions(ctx, models.SessionFilter{})
	if err != nil {
		return nil, storageErr("query: list sessions", err)
	}
	type groupKey struct{ chargePoint, country string }
	groups := make(map[groupKey]*totals)
	for _, sess := range sessions {
		cp := strings.TrimSpace(sess.ChargePointID)
		if _, ok := chargePoints[cp]; !ok {
			continue
		}
		key := groupKey{chargePoint: cp, country: strings.TrimSpace(sess.Country)}
		if groups[key] == nil {
			groups[key] = &totals{}
		}
		_, hit := flagged[sess.ID]
		groups[key].add(sess, hit)
	}

	out := make([]models.ChargePointFraudStats, 0, len(groups))
	for key, t := range groups {
		out = append(out, models.ChargePointFraudStats{
			ChargePointID: key.chargePoint,
			Country:       key.country,
			FraudTotals:   t.export(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChargePointID != out[j].ChargePointID {
			return out[i].ChargePointID < out[j].ChargePointID
		}
		return out[i].Country < out[j].Country
	})
	return out, nil
}

// FraudLocations groups flagged sessions by geocoded charge point, busiest first.
// Charge points without coordinates are left out.
func (s *QueryService) FraudLocations(ctx context.Context) ([]models.FraudLocation, error) {
	rows, err := s.store.FlaggedSessions(ctx, models.AllPasses)
	if err != nil {
		return nil, storageErr("query: flagged sessions", err)
	}

	byChargePoint := make(map[string]*models.FraudLocation)
	seen := make(map[string]map[string]struct{})
	for _, f := range rows {
		cp := strings.TrimSpace(f.ChargePointID)
		lat, lng, ok := f.Coordinates()
		if cp == "" || !ok {
			continue
		}
		loc := byChargePoint[cp]
		if loc == nil {
			loc = &models.FraudLocation{
				ChargePointID: cp,
				Latitude:      lat,
				Longitude:     lng,
				Address:       f.Address,
				ZIP:           f.ZIP,
				City:          f.City,
				Country:       f.Country,
				Reasons:       []string{},
			}
			byChargePoint[cp] = loc
			seen[cp] = make(map[string]struct{})
		}
		loc.FraudCount++
		if f.Start.After(loc.LastDetected) {
			loc.LastDetected = f.Start
		}
		for _, pass := range models.AllPasses {
			text, ok := f.Reasons[pass]
			if !ok {
				continue
			}
			if _, dup := seen[cp][text]; !dup {
				seen[cp][text] = struct{}{}
				loc.Reasons = append(loc.Reasons, text)
			}
		}
	}

	out := make([]models.FraudLocation, 0, len(byChargePoint))
	for _, loc := range byChargePoint {
		out = append(out, *loc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FraudCount != out[j].FraudCount {
			return out[i].FraudCount > out[j].FraudCount
		}
		return out[i].ChargePointID < out[j].ChargePointID
	})
	return out, nil
}

// AccountSessions lists every session of one account ordered by start time.
func (s *QueryService) AccountSessions(ctx context.Context, account string) ([]models.ChargeSession, error) {
	account = strings.TrimSpace(account)
	if account == "" {
		return []models.ChargeSession{}, nil
	}
	sessions, err := s.store.ListSessions(ctx, models.SessionFilter{AccountID: account})
	if err != nil {
		return nil, storageErr("query: list sessions", err)
	}
	if sessions == nil {
		sessions = []models.ChargeSession{}
	}
	return sessions, nil
}
