package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/allisson/channelvault/internal/errors"
)

const (
	maxResponseBodyBytes = 1 << 20

	// DefaultPublishTimeout bounds one publish call.
	DefaultPublishTimeout = 45 * time.Second
)

// Config describes one provider's OAuth client and content endpoint.
type Config struct {
	Name         string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	AuthURL      string
	TokenURL     string
	ProfileURL   string
	PublishURL   string
	Scopes       []string
}

// Validate checks the fields every adapter needs.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(c.ClientID) == "" {
		missing = append(missing, "client id")
	}
	if strings.TrimSpace(c.TokenURL) == "" {
		missing = append(missing, "token url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: provider %q is missing %s", errors.ErrConfiguration, c.Name, strings.Join(missing, ", "))
	}
	return nil
}

// Defaults returns the public endpoints of the built-in providers. Credentials and
// redirect URLs always come from configuration.
func Defaults(name string) Config {
	switch strings.ToLower(name) {
	case "youtube":
		return Config{
			Name:       "youtube",
			AuthURL:    "https://accounts.google.com/o/oauth2/v2/auth",
			TokenURL:   "https://oauth2.googleapis.com/token",
			ProfileURL: "https://www.googleapis.com/youtube/v3/channels?part=snippet&mine=true",
			PublishURL: "https://www.googleapis.com/youtube/v3/videos?part=snippet,status",
			Scopes: []string{
				"https://www.googleapis.com/auth/youtube.upload",
				"https://www.googleapis.com/auth/youtube.readonly",
			},
		}
	case "linkedin":
		return Config{
			Name:       "linkedin",
			AuthURL:    "https://www.linkedin.com/oauth/v2/authorization",
			TokenURL:   "https://www.linkedin.com/oauth/v2/accessToken",
			ProfileURL: "https://api.linkedin.com/v2/userinfo",
			PublishURL: "https://api.linkedin.com/rest/posts",
			Scopes:     []string{"openid", "profile", "email", "w_member_social"},
		}
	default:
		return Config{Name: strings.ToLower(name)}
	}
}
