package tenant

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Tenant is one restaurant's configuration.
type Tenant struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// ProviderURL is the order provider's base URL; FallbackProviderURL is
	// tried when it fails.
	ProviderURL         string `yaml:"providerUrl"`
	FallbackProviderURL string `yaml:"fallbackProviderUrl,omitempty"`
	// ProviderTokenParam is the SSM parameter holding the provider API
	// token.
	ProviderTokenParam string `yaml:"providerTokenParam,omitempty"`

	// PixKey is shown to the customer when they pick pix.
	PixKey string `yaml:"pixKey,omitempty"`

	// DebounceSeconds overrides the message-grouping window; 0 keeps the
	// service default.
	DebounceSeconds int `yaml:"debounceSeconds,omitempty"`

	// Model selects the LLM used for classification, extraction fallback
	// and reply phrasing. Empty disables the LLM path for this tenant.
	Model string `yaml:"model,omitempty"`
}

// DebounceWindow returns the tenant's grouping window, or 0 for the default.
func (t Tenant) DebounceWindow() time.Duration {
	return time.Duration(t.DebounceSeconds) * time.Second
}

type registryFile struct {
	Tenants []Tenant `yaml:"tenants"`
}

// Registry is the immutable set of configured tenants, loaded once at boot.
type Registry struct {
	byID map[string]Tenant
}

// Load reads and validates the YAML registry at path.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tenant: read registry: %w", err)
	}
	return Parse(raw)
}

// Parse builds a Registry from raw YAML.
func Parse(raw []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("tenant: parse registry: %w", err)
	}
	if len(file.Tenants) == 0 {
		return nil, errors.New("tenant: registry has no tenants")
	}

	byID := make(map[string]Tenant, len(file.Tenants))
	for _, t := range file.Tenants {
		t.ID = strings.TrimSpace(t.ID)
		if t.ID == "" {
			return nil, errors.New("tenant: entry missing id")
		}
		if strings.TrimSpace(t.ProviderURL) == "" {
			return nil, fmt.Errorf("tenant: %s missing providerUrl", t.ID)
		}
		if _, dup := byID[t.ID]; dup {
			return nil, fmt.Errorf("tenant: duplicate id %s", t.ID)
		}
		byID[t.ID] = t
	}
	return &Registry{byID: byID}, nil
}

// Get returns the tenant with the given id.
func (r *Registry) Get(id string) (Tenant, bool) {
	t, ok := r.byID[id]
	return t, ok
}

// IDs returns every configured tenant id.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}
