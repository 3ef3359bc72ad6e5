package overlap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chargeguard/backend/services/fraud-service/internal/models"
)

var day = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		panic(err)
	}
	return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute)
}

func session(id, account, from, to, volume string, cost float64) models.ChargeSession {
	c := cost
	return models.ChargeSession{
		ID:            id,
		AccountID:     account,
		ChargePointID: "cp-" + id,
		Start:         at(from),
		End:           at(to),
		Volume:        volume,
		Cost:          &c,
	}
}

func ids(sessions []models.ChargeSession) []string {
	out := make([]string, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.ID)
	}
	return out
}

func TestOverlapsPredicate(t *testing.T) {
	a := session("a", "acc", "10:00", "11:00", "1", 0)
	b := session("b", "acc", "10:30", "11:30", "1", 0)
	touching := session("t", "acc", "11:00", "12:00", "1", 0)
	other := session("o", "other", "10:30", "11:30", "1", 0)

	assert.True(t, Overlaps(a, b, DefaultLeeway))
	assert.True(t, Overlaps(b, a, DefaultLeeway))
	assert.False(t, Overlaps(a, touching, DefaultLeeway))
	assert.False(t, Overlaps(a, other, DefaultLeeway))
	assert.False(t, Overlaps(a, a, DefaultLeeway))

	// One second of overlap is absorbed by the leeway.
	edge := touching
	edge.Start = a.End.Add(-time.Second)
	assert.False(t, Overlaps(a, edge, DefaultLeeway))
	assert.True(t, Overlaps(a, edge, 0))

	missing := b
	missing.End = time.Time{}
	assert.False(t, Overlaps(a, missing, DefaultLeeway))
}

func TestGraphScenario(t *testing.T) {
	a := session("A", "acc", "10:00", "11:00", "10", 5)
	b := session("B", "acc", "10:30", "11:30", "12,5", 7)
	c := session("C", "acc", "12:00", "13:00", "4", 2)
	g := NewGraph([]models.ChargeSession{c, b, a})

	assert.Equal(t, []string{"B"}, ids(g.Neighbors("A")))
	assert.Equal(t, []string{"A"}, ids(g.Neighbors("B")))
	assert.Empty(t, g.Neighbors("C"))

	stats := g.StatsByAccount()
	require.Len(t, stats, 1)
	assert.Equal(t, "acc", stats[0].AccountID)
	assert.Equal(t, 2, stats[0].ClusterCount)
	assert.InDelta(t, 22.5, stats[0].TotalVolume, 1e-9)
	assert.InDelta(t, 12.0, stats[0].TotalCost, 1e-9)

	isolated, err := g.Cluster("C")
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, ids(isolated))

	cluster, err := g.Cluster("B")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ids(cluster))
}

func TestClusterTransitiveAndSymmetric(t *testing.T) {
	sessions := []models.ChargeSession{
		session("A", "acc", "10:00", "11:00", "1", 0),
		session("B", "acc", "10:30", "11:30", "1", 0),
		session("C", "acc", "11:15", "12:00", "1", 0),
		session("D", "acc", "11:50", "12:30", "1", 0),
		session("E", "acc", "15:00", "16:00", "1", 0),
		session("F", "acc", "15:30", "15:45", "1", 0),
		session("X", "other", "10:00", "13:00", "1", 0),
	}
	g := NewGraph(sessions)

	assert.False(t, Overlaps(sessions[0], sessions[2], DefaultLeeway))

	for _, s := range sessions {
		cluster, err := g.Cluster(s.ID)
		require.NoError(t, err)
		members := ids(cluster)
		assert.Contains(t, members, s.ID)
		for _, m := range members {
			back, err := g.Cluster(m)
			require.NoError(t, err)
			assert.ElementsMatch(t, members, ids(back), "cluster of %s vs %s", s.ID, m)
		}
	}

	cluster, err := g.Cluster("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids(cluster))

	all := g.Clusters()
	require.Len(t, all, 2)
	assert.Equal(t, []string{"A", "B", "C", "D"}, ids(all[0]))
	assert.Equal(t, []string{"E", "F"}, ids(all[1]))
}

func TestClusterCyclicGraphTerminates(t *testing.T) {
	// Every pair overlaps: a complete graph with plenty of cycles.
	var sessions []models.ChargeSession
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		sessions = append(sessions, session(id, "acc", "09:00", "18:00", "1", 0))
	}
	g := NewGraph(sessions)

	cluster, err := g.Cluster("3")
	require.NoError(t, err)
	assert.Len(t, cluster, 5)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(cluster))
}

func TestClusterUnknownSession(t *testing.T) {
	g := NewGraph(nil)
	_, err := g.Cluster("missing")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}

func TestGraphIgnoresDuplicatesAndBadRows(t *testing.T) {
	a := session("A", "acc", "10:00", "11:00", "1", 0)
	dup := session("A", "acc", "10:10", "10:20", "1", 0)
	blank := session("", "acc", "10:00", "11:00", "1", 0)
	noAccount := session("N", "  ", "10:00", "11:00", "1", 0)
	reversed := session("R", "acc", "10:45", "10:15", "bad", 0)

	g := NewGraph([]models.ChargeSession{a, dup, blank, noAccount, reversed})
	assert.Equal(t, 3, g.Len())

	got, ok := g.Session("A")
	require.True(t, ok)
	assert.Equal(t, at("10:00"), got.Start)

	cluster, err := g.Cluster("N")
	require.NoError(t, err)
	assert.Equal(t, []string{"N"}, ids(cluster))

	// An end before start is tolerated and evaluated by the same predicate.
	assert.NotPanics(t, func() { g.Clusters() })
}

func TestOverlappingSessions(t *testing.T) {
	g := NewGraph([]models.ChargeSession{
		session("A", "acc", "10:00", "11:00", "1", 0),
		session("B", "acc", "10:30", "11:30", "1", 0),
		session("C", "acc", "10:45", "10:50", "1", 0),
		session("D", "zed", "10:00", "11:00", "1", 0),
		session("E", "zed", "10:10", "10:20", "1", 0),
	})

	all := g.OverlappingSessions("")
	require.Len(t, all, 5)
	counts := map[string]int{}
	for _, s := range all {
		counts[s.ID] = s.OverlapCount
	}
	assert.Equal(t, map[string]int{"A": 2, "B": 2, "C": 2, "D": 1, "E": 1}, counts)

	zed := g.OverlappingSessions("zed")
	assert.Len(t, zed, 2)
}
