package tenant

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sampleRegistry = `
tenants:
  - id: pizzaria-central
    name: Pizzaria Central
    providerUrl: https://pos.example.com/api
    fallbackProviderUrl: https://pos-backup.example.com/api
    pixKey: chave@pizzaria.example.com
    debounceSeconds: 8
    model: gpt-4o-mini
  - id: lanchonete-do-ze
    providerUrl: https://ze.example.com/api
`

func TestParseRegistry(t *testing.T) {
	r, err := Parse([]byte(sampleRegistry))
	require.NoError(t, err)

	tn, ok := r.Get("pizzaria-central")
	require.True(t, ok)
	require.Equal(t, "https://pos.example.com/api", tn.ProviderURL)
	require.Equal(t, 8*time.Second, tn.DebounceWindow())
	require.Equal(t, "gpt-4o-mini", tn.Model)

	tn, ok = r.Get("lanchonete-do-ze")
	require.True(t, ok)
	require.Zero(t, tn.DebounceWindow())
	require.Empty(t, tn.Model)

	_, ok = r.Get("nope")
	require.False(t, ok)
	require.Len(t, r.IDs(), 2)
}

func TestLoadRegistryFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tenants.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRegistry), 0o600))

	r, err := Load(path)
	require.NoError(t, err)
	_, ok := r.Get("pizzaria-central")
	require.True(t, ok)
}

func TestParseRegistryRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"empty":         "tenants: []",
		"missing id":    "tenants:\n  - providerUrl: https://x.example.com\n",
		"missing url":   "tenants:\n  - id: a\n",
		"duplicate ids": "tenants:\n  - id: a\n    providerUrl: https://x\n  - id: a\n    providerUrl: https://y\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			require.Error(t, err)
		})
	}
}
