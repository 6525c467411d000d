// Package service loads provider policy registries and enforces them through the
// operation gate.
package service

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	policyDomain "github.com/allisson/channelvault/internal/policy/domain"
)

//go:embed registries/*.json
var embeddedRegistries embed.FS

// LoadProviderPolicies reads one registry document per provider. Documents come from
// dir when it is set, otherwise from the registries compiled into the binary. A
// provider without a document fails with ErrRegistryNotFound.
func LoadProviderPolicies(dir string, providers []string) ([]*policyDomain.ProviderPolicy, error) {
	var fsys fs.FS
	if strings.TrimSpace(dir) != "" {
		fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embeddedRegistries, "registries")
		if err != nil {
			return nil, err
		}
		fsys = sub
	}

	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", policyDomain.ErrRegistryNotFound)
	}

	policies := make([]*policyDomain.ProviderPolicy, 0, len(providers))
	for _, provider := range providers {
		policy, err := LoadProviderPolicy(fsys, provider)
		if err != nil {
			return nil, err
		}
		policies = append(policies, policy)
	}
	return policies, nil
}

// LoadProviderPolicy reads and validates <provider>.json from fsys.
func LoadProviderPolicy(fsys fs.FS, provider string) (*policyDomain.ProviderPolicy, error) {
	provider = strings.ToLower(strings.TrimSpace(provider))

	data, err := fs.ReadFile(fsys, provider+".json")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", policyDomain.ErrRegistryNotFound, provider)
		}
		return nil, fmt.Errorf("failed to read %s registry: %w", provider, err)
	}

	var policy policyDomain.ProviderPolicy
	if err := json.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", policyDomain.ErrInvalidRegistry, provider, err)
	}
	if policy.Provider != provider {
		return nil, fmt.Errorf(
			"%w: %s.json declares provider '%s'",
			policyDomain.ErrInvalidRegistry,
			provider,
			policy.Provider,
		)
	}
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &policy, nil
}
