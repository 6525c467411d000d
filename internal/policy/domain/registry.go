// Package domain holds the capability model: per-provider registries mapping roles to
// allowed operations and scope keys, and the rules that turn raw OAuth scopes into
// scope keys.
package domain

import (
	"sort"
	"strings"
)

// RoleCapabilities lists what one role may do.
type RoleCapabilities struct {
	Allows []string `json:"allows"`
	Scopes []string `json:"scopes"`
}

// Registry maps role names to their capabilities.
type Registry struct {
	Roles map[string]RoleCapabilities `json:"roles"`
}

// MergeRegistries returns a new registry whose roles are the union of both inputs.
// A role present in both gets the union of their allow-lists and scope-lists, without
// duplicates, in first-seen order. Neither input is modified.
func MergeRegistries(a, b *Registry) *Registry {
	merged := &Registry{Roles: make(map[string]RoleCapabilities)}
	for _, src := range []*Registry{a, b} {
		if src == nil {
			continue
		}
		for role, caps := range src.Roles {
			name := NormalizeRole(role)
			current := merged.Roles[name]
			merged.Roles[name] = RoleCapabilities{
				Allows: union(current.Allows, caps.Allows),
				Scopes: union(current.Scopes, caps.Scopes),
			}
		}
	}
	return merged
}

// Allows reports whether role may perform operation. Unknown roles allow nothing.
func (r *Registry) Allows(role, operation string) bool {
	if r == nil {
		return false
	}
	caps, ok := r.Roles[NormalizeRole(role)]
	if !ok {
		return false
	}
	for _, allowed := range caps.Allows {
		if allowed == operation {
			return true
		}
	}
	return false
}

// RoleNames returns the registered roles in sorted order.
func (r *Registry) RoleNames() []string {
	names := make([]string, 0, len(r.Roles))
	for name := range r.Roles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NormalizeRole lower-cases and trims a role name.
func NormalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func union(dst, src []string) []string {
	seen := make(map[string]struct{}, len(dst)+len(src))
	out := make([]string, 0, len(dst)+len(src))
	for _, list := range [][]string{dst, src} {
		for _, item := range list {
			if _, ok := seen[item]; ok {
				continue
			}
			seen[item] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
