package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func youtubeLikePolicy() *ProviderPolicy {
	return &ProviderPolicy{
		Provider:         "youtube",
		DefaultOperation: "videos_update",
		Registry: Registry{Roles: map[string]RoleCapabilities{
			"viewer": {Allows: []string{"channels_list_mine"}},
		}},
		Operations: map[string][]string{
			"channels_list_mine": {"read_only"},
			"videos_update":      {"manage"},
		},
		ScopeRules: []ScopeRule{
			{Contains: "youtube.readonly", ScopeKeys: []string{"read_only"}},
			{Contains: "upload", ScopeKeys: []string{"upload"}},
			{Suffix: "/auth/youtube", ScopeKeys: []string{"manage", "upload", "read_only"}},
		},
	}
}

func TestProviderPolicy_MapScopes(t *testing.T) {
	policy := youtubeLikePolicy()

	tests := []struct {
		name string
		raw  []string
		want []string
	}{
		{"substring match", []string{"https://www.googleapis.com/auth/youtube.upload"}, []string{"upload"}},
		{"suffix match expands", []string{"https://www.googleapis.com/auth/youtube"}, []string{"manage", "upload", "read_only"}},
		{"deduplicates", []string{"x.upload", "y.upload", " "}, []string{"upload"}},
		{"unmatched grants nothing", []string{"https://example.com/novel.scope"}, []string{}},
		{"first rule wins", []string{"youtube.readonly.upload"}, []string{"read_only"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.MapScopes(tt.raw))
		})
	}
}

func TestProviderPolicy_Validate(t *testing.T) {
	assert.NoError(t, youtubeLikePolicy().Validate())

	unknownOp := youtubeLikePolicy()
	unknownOp.Registry.Roles["viewer"] = RoleCapabilities{Allows: []string{"teleport"}}
	assert.ErrorIs(t, unknownOp.Validate(), ErrInvalidRegistry)

	badDefault := youtubeLikePolicy()
	badDefault.DefaultOperation = "missing"
	assert.ErrorIs(t, badDefault.Validate(), ErrInvalidRegistry)

	noRoles := youtubeLikePolicy()
	noRoles.Registry.Roles = nil
	assert.ErrorIs(t, noRoles.Validate(), ErrInvalidRegistry)

	noName := youtubeLikePolicy()
	noName.Provider = ""
	assert.ErrorIs(t, noName.Validate(), ErrInvalidRegistry)

	upperName := youtubeLikePolicy()
	upperName.Provider = "YouTube"
	assert.ErrorIs(t, upperName.Validate(), ErrInvalidRegistry)
}

func TestMissingScopes(t *testing.T) {
	assert.Nil(t, MissingScopes([]string{"manage"}, []string{"read_only", "manage"}))
	assert.Equal(t, []string{"upload"}, MissingScopes([]string{"upload", "manage"}, []string{"manage"}))
}
