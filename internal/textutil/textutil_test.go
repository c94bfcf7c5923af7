package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Olá, TUDO bem?! ", "ola tudo bem"},
		{"Pão de Queijo", "pao de queijo"},
		{"2 refri   gelados", "2 refrigerante gelados"},
		{"entrega c/ troco", "entrega com troco"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Normalize(tc.in), "input %q", tc.in)
	}
}

func TestTokenize(t *testing.T) {
	require.Equal(t, []string{"1", "pizza", "e", "2", "sodas"}, Tokenize("1 Pizza e 2 Sodas!"))
	require.Empty(t, Tokenize("   "))
}

func TestSingularize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"paes", "pao"},       // -ães → -ão (diacritics pre-stripped)
		{"portoes", "portao"}, // -ões → -ão
		{"funis", "funil"},    // -is → -il
		{"sabores", "sabor"},  // -res
		{"pizzas", "pizza"},   // generic -s
		{"sodas", "soda"},     // generic -s
		{"gas", "gas"},        // below the -s minimum length
		{"mes", "mes"},        // below the -es minimum length
		{"dois", "dois"},      // below the -is minimum length
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Singularize(tc.in), "input %q", tc.in)
	}
}

func TestEditDistance(t *testing.T) {
	require.Equal(t, 0, EditDistance("pizza", "pizza"))
	require.Equal(t, 1, EditDistance("pizza", "pizzas"))
	require.Equal(t, 2, EditDistance("calabresa", "calabrse"))
	require.Equal(t, 5, EditDistance("", "pizza"))
}

func TestIsNearMatch(t *testing.T) {
	// length-proportional budget: short tokens allow one edit at most
	require.True(t, IsNearMatch("pizza", "pizzas"))
	require.True(t, IsNearMatch("calabresa", "calabreza"))
	require.False(t, IsNearMatch("pao", "pizza"))
	// length gap above 1 is rejected outright
	require.False(t, IsNearMatch("pizza", "pizzaria"))
	// distance 2 on a short token exceeds the budget
	require.False(t, IsNearMatch("suco", "soco2"))
}
