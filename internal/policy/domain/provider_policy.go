package domain

import (
	"fmt"
	"strings"

	validation "github.com/jellydator/validation"

	appValidation "github.com/allisson/channelvault/internal/validation"
)

// ScopeRule maps a raw provider scope string to scope keys. A rule matches when the
// raw scope contains Contains or ends with Suffix; rules are tried in order and the
// first match wins. Broad scopes list every key they imply.
type ScopeRule struct {
	Contains  string   `json:"contains,omitempty"`
	Suffix    string   `json:"suffix,omitempty"`
	ScopeKeys []string `json:"scope_keys"`
}

func (r ScopeRule) matches(scope string) bool {
	if r.Contains != "" && strings.Contains(scope, r.Contains) {
		return true
	}
	return r.Suffix != "" && strings.HasSuffix(scope, r.Suffix)
}

// ProviderPolicy is one provider's registry document: its roles, the scope keys each
// operation needs, the raw-scope rules and the operation jobs run by default.
type ProviderPolicy struct {
	Provider         string              `json:"provider"`
	Version          string              `json:"version"`
	DefaultOperation string              `json:"default_operation"`
	Registry         Registry            `json:"registry"`
	Operations       map[string][]string `json:"operations"`
	ScopeRules       []ScopeRule         `json:"scope_rules"`
}

// Validate checks the document is internally consistent: every allowed operation
// has a scope table entry and the default operation exists.
func (p *ProviderPolicy) Validate() error {
	if err := validation.Validate(p.Provider, validation.Required, appValidation.ProviderName); err != nil {
		return fmt.Errorf("%w: provider name %q %v", ErrInvalidRegistry, p.Provider, err)
	}
	if len(p.Registry.Roles) == 0 {
		return fmt.Errorf("%w: %s has no roles", ErrInvalidRegistry, p.Provider)
	}
	for role, caps := range p.Registry.Roles {
		for _, op := range caps.Allows {
			if _, ok := p.Operations[op]; !ok {
				return fmt.Errorf(
					"%w: %s role '%s' allows unknown operation '%s'",
					ErrInvalidRegistry,
					p.Provider,
					role,
					op,
				)
			}
		}
	}
	if p.DefaultOperation != "" {
		if _, ok := p.Operations[p.DefaultOperation]; !ok {
			return fmt.Errorf(
				"%w: %s default operation '%s' is not defined",
				ErrInvalidRegistry,
				p.Provider,
				p.DefaultOperation,
			)
		}
	}
	return nil
}

// RequiredScopes returns the scope keys operation needs, and whether the operation
// is known to this provider.
func (p *ProviderPolicy) RequiredScopes(operation string) ([]string, bool) {
	scopes, ok := p.Operations[operation]
	return scopes, ok
}

// MapScopes converts raw OAuth scopes into scope keys. Scopes matching no rule grant
// nothing. The result has no duplicates and keeps first-seen order.
func (p *ProviderPolicy) MapScopes(raw []string) []string {
	keys := make([]string, 0, len(raw))
	for _, scope := range raw {
		scope = strings.TrimSpace(scope)
		if scope == "" {
			continue
		}
		for _, rule := range p.ScopeRules {
			if rule.matches(scope) {
				keys = union(keys, rule.ScopeKeys)
				break
			}
		}
	}
	return keys
}

// MissingScopes returns the required scope keys absent from granted.
func MissingScopes(required, granted []string) []string {
	have := make(map[string]struct{}, len(granted))
	for _, key := range granted {
		have[key] = struct{}{}
	}
	var missing []string
	for _, key := range required {
		if _, ok := have[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}
