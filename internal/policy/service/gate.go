package service

import (
	"fmt"
	"strings"

	policyDomain "github.com/allisson/channelvault/internal/policy/domain"
)

// Gate is the default-deny operation gate built from every provider in use. The
// merged registry answers role checks; each provider's operation table answers scope
// checks. A Gate is immutable after construction.
type Gate struct {
	registry  *policyDomain.Registry
	providers map[string]*policyDomain.ProviderPolicy
}

// NewGate merges the registries of policies into a single gate.
func NewGate(policies ...*policyDomain.ProviderPolicy) (*Gate, error) {
	if len(policies) == 0 {
		return nil, fmt.Errorf("%w: no provider policies", policyDomain.ErrRegistryNotFound)
	}

	gate := &Gate{
		registry:  &policyDomain.Registry{Roles: map[string]policyDomain.RoleCapabilities{}},
		providers: make(map[string]*policyDomain.ProviderPolicy, len(policies)),
	}
	for _, policy := range policies {
		if policy == nil {
			continue
		}
		if _, dup := gate.providers[policy.Provider]; dup {
			return nil, fmt.Errorf("%w: duplicate provider %s", policyDomain.ErrInvalidRegistry, policy.Provider)
		}
		gate.providers[policy.Provider] = policy
		gate.registry = policyDomain.MergeRegistries(gate.registry, &policy.Registry)
	}
	return gate, nil
}

// AssertAllowed returns a PermissionError unless role's allow-list contains operation.
func (g *Gate) AssertAllowed(role, operation string) error {
	if g.registry.Allows(role, operation) {
		return nil
	}
	return &policyDomain.PermissionError{
		Role:      policyDomain.NormalizeRole(role),
		Operation: operation,
	}
}

// CheckScopes verifies granted scope keys cover operation on provider. Operations
// missing from the provider's table are denied.
func (g *Gate) CheckScopes(provider, operation string, granted []string) error {
	policy, err := g.Provider(provider)
	if err != nil {
		return err
	}

	required, ok := policy.RequiredScopes(operation)
	if !ok {
		return &policyDomain.PermissionError{Provider: policy.Provider, Operation: operation}
	}
	if missing := policyDomain.MissingScopes(required, granted); len(missing) > 0 {
		return &policyDomain.PermissionError{
			Provider:      policy.Provider,
			Operation:     operation,
			MissingScopes: missing,
		}
	}
	return nil
}

// Provider returns the policy for provider, or ErrRegistryNotFound.
func (g *Gate) Provider(provider string) (*policyDomain.ProviderPolicy, error) {
	policy, ok := g.providers[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", policyDomain.ErrRegistryNotFound, provider)
	}
	return policy, nil
}

// MapScopes converts raw OAuth scopes for provider into scope keys.
func (g *Gate) MapScopes(provider string, raw []string) ([]string, error) {
	policy, err := g.Provider(provider)
	if err != nil {
		return nil, err
	}
	return policy.MapScopes(raw), nil
}

// ResolveOperation returns operation when set, else the provider's default.
func (g *Gate) ResolveOperation(provider, operation string) (string, error) {
	policy, err := g.Provider(provider)
	if err != nil {
		return "", err
	}
	if operation == "" {
		operation = policy.DefaultOperation
	}
	if _, ok := policy.RequiredScopes(operation); !ok {
		return "", fmt.Errorf("%w: %s has no operation '%s'", policyDomain.ErrUnknownOperation, policy.Provider, operation)
	}
	return operation, nil
}

// Registry returns the merged registry.
func (g *Gate) Registry() *policyDomain.Registry {
	return g.registry
}

// Providers lists the provider names the gate was built with.
func (g *Gate) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	return names
}
