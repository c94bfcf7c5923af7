package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"order-agent/internal/domain"
)

var menu = []domain.CatalogEntry{
	{Code: "PZ-01", Name: "Pizza Calabresa", UnitPriceCents: 4500},
	{Code: "PZ-02", Name: "Pizza Quatro Queijos", UnitPriceCents: 4900},
	{Code: "BD-01", Name: "Refrigerante Lata", UnitPriceCents: 600},
	{Code: "BD-02", Name: "Soda", UnitPriceCents: 500},
	{Code: "LN-01", Name: "Pastel de Queijo", UnitPriceCents: 900},
}

func TestResolveExactIsReflexive(t *testing.T) {
	// resolving a catalog entry's own name always returns it with score 1000
	for _, e := range menu {
		m, ok := Resolve(e.Name, menu)
		require.True(t, ok, "entry %q", e.Name)
		require.Equal(t, e.Code, m.Entry.Code)
		require.Equal(t, 1000, m.Score)
	}
}

func TestResolveSubstring(t *testing.T) {
	m, ok := Resolve("calabresa", menu)
	require.True(t, ok)
	require.Equal(t, "PZ-01", m.Entry.Code)
	require.Greater(t, m.Score, 800)
	require.Less(t, m.Score, 1000)
}

func TestResolveSingularizedOverlap(t *testing.T) {
	m, ok := Resolve("pasteis de queijo", menu)
	require.True(t, ok)
	require.Equal(t, "LN-01", m.Entry.Code)
}

func TestResolveFuzzy(t *testing.T) {
	m, ok := Resolve("pizza calabreza", menu)
	require.True(t, ok)
	require.Equal(t, "PZ-01", m.Entry.Code)
}

func TestResolveBelowThreshold(t *testing.T) {
	_, ok := Resolve("sushi", menu)
	require.False(t, ok)
	_, ok = Resolve("", menu)
	require.False(t, ok)
}

func TestResolveDeterministic(t *testing.T) {
	a, okA := Resolve("pizza", menu)
	b, okB := Resolve("pizza", menu)
	require.Equal(t, okA, okB)
	require.Equal(t, a, b)
}

func TestResolveBatch(t *testing.T) {
	res := ResolveBatch([]domain.Item{
		{Name: "pizza calabresa", Quantity: 1},
		{Name: "2 sodas", Quantity: 2},
		{Name: "sushi", Quantity: 1},
	}, menu)
	require.Len(t, res.Resolved, 2)
	require.Equal(t, []string{"sushi"}, res.Unresolved)
	require.Equal(t, "PZ-01", res.Resolved[0].CatalogCode)
	require.Equal(t, 4500, res.Resolved[0].UnitPriceCents)
	require.Equal(t, 1, res.Resolved[0].Quantity)
}
