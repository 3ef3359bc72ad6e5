package overlap

import (
	"sort"
	"time"

	"chargeguard/backend/services/fraud-service/internal/models"
)

// Graph indexes sessions by id and by account. Edges are not stored; neighbors
// are derived from the predicate when asked for, so cycles cannot be built.
type Graph struct {
	leeway    time.Duration
	nodes     map[string]models.ChargeSession
	byAccount map[string][]string
	accounts  []string
}

// Option configures a Graph.
type Option func(*Graph)

// WithLeeway overrides DefaultLeeway.
func WithLeeway(d time.Duration) Option {
	return func(g *Graph) {
		if d >= 0 {
			g.leeway = d
		}
	}
}

// NewGraph builds the arena. The first occurrence of a duplicated id wins and
// sessions with a blank id are ignored.
func NewGraph(sessions []models.ChargeSession, opts ...Option) *Graph {
	g := &Graph{
		leeway:    DefaultLeeway,
		nodes:     make(map[string]models.ChargeSession, len(sessions)),
		byAccount: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(g)
	}

	for _, s := range sessions {
		if s.ID == "" {
			continue
		}
		if _, dup := g.nodes[s.ID]; dup {
			continue
		}
		g.nodes[s.ID] = s
		account := AccountKey(s)
		if account == "" || !s.HasInterval() {
			continue
		}
		if _, seen := g.byAccount[account]; !seen {
			g.accounts = append(g.accounts, account)
		}
		g.byAccount[account] = append(g.byAccount[account], s.ID)
	}

	for _, ids := range g.byAccount {
		sort.SliceStable(ids, func(i, j int) bool {
			return startOrder(g.nodes[ids[i]], g.nodes[ids[j]])
		})
	}
	sort.Strings(g.accounts)
	return g
}

// Session returns a session by id.
func (g *Graph) Session(id string) (models.ChargeSession, bool) {
	s, ok := g.nodes[id]
	return s, ok
}

// Len is the number of indexed sessions.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Neighbors returns every session overlapping id, ordered by start time.
func (g *Graph) Neighbors(id string) []models.ChargeSession {
	cur, ok := g.nodes[id]
	if !ok {
		return nil
	}
	var out []models.ChargeSession
	limit := cur.End.Add(-g.leeway)
	for _, otherID := range g.byAccount[AccountKey(cur)] {
		other := g.nodes[otherID]
		// Partition is sorted by start; nothing starting at or after limit can overlap.
		if !other.Start.Before(limit) {
			break
		}
		if Overlaps(cur, other, g.leeway) {
			out = append(out, other)
		}
	}
	return out
}

// Cluster returns the connected component reachable from seed, seed included
// exactly once, ordered by start time. A session without overlaps is a cluster of one.
func (g *Graph) Cluster(seed string) ([]models.ChargeSession, error) {
	if _, ok := g.nodes[seed]; !ok {
		return nil, models.ErrSessionNotFound
	}

	visited := map[string]struct{}{seed: {}}
	queue := []string{seed}
	var cluster []models.ChargeSession

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		cluster = append(cluster, g.nodes[id])

		for _, n := range g.Neighbors(id) {
			if _, seen := visited[n.ID]; seen {
				continue
			}
			visited[n.ID] = struct{}{}
			queue = append(queue, n.ID)
		}
	}

	sortByStart(cluster)
	return cluster, nil
}

// Clusters returns every connected component with at least two sessions,
// ordered by account and then by the start of the earliest member.
func (g *Graph) Clusters() [][]models.ChargeSession {
	visited := make(map[string]struct{})
	var out [][]models.ChargeSession
	for _, account := range g.accounts {
		for _, id := range g.byAccount[account] {
			if _, seen := visited[id]; seen {
				continue
			}
			cluster, _ := g.Cluster(id)
			for _, s := range cluster {
				visited[s.ID] = struct{}{}
			}
			if len(cluster) > 1 {
				out = append(out, cluster)
			}
		}
	}
	return out
}

// OverlappingSessions lists sessions with at least one overlap together with
// their overlap count. An empty account means all accounts.
func (g *Graph) OverlappingSessions(account string) []models.OverlappingSession {
	var out []models.OverlappingSession
	for _, acc := range g.accounts {
		if account != "" && acc != account {
			continue
		}
		for _, id := range g.byAccount[acc] {
			n := len(g.Neighbors(id))
			if n == 0 {
				continue
			}
			out = append(out, models.OverlappingSession{ChargeSession: g.nodes[id], OverlapCount: n})
		}
	}
	return out
}

// StatsByAccount aggregates, per account with at least one overlapping pair,
// the distinct overlapping sessions and their summed volume and cost.
// Unparseable volumes and missing costs count as zero.
func (g *Graph) StatsByAccount() []models.AccountStats {
	var out []models.AccountStats
	for _, acc := range g.accounts {
		stats := models.AccountStats{AccountID: acc}
		for _, id := range g.byAccount[acc] {
			if len(g.Neighbors(id)) == 0 {
				continue
			}
			s := g.nodes[id]
			stats.ClusterCount++
			if v, ok := s.VolumeKWh(); ok {
				stats.TotalVolume += v
			}
			if s.Cost != nil {
				stats.TotalCost += *s.Cost
			}
		}
		if stats.ClusterCount > 0 {
			out = append(out, stats)
		}
	}
	return out
}

func startOrder(a, b models.ChargeSession) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	return a.ID < b.ID
}

func sortByStart(sessions []models.ChargeSession) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return startOrder(sessions[i], sessions[j])
	})
}
