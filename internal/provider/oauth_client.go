// Package provider adapts the external collaborators of the vault and the scheduler:
// each provider's OAuth token endpoint and its content publishing API. Every outbound
// call is rate limited per provider and failures are classified as transient or
// rejected.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	"github.com/allisson/channelvault/internal/errors"
)

// Profile is the identity behind an access token.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// OAuthClient performs the authorization code exchange, token refresh and profile
// lookup for one provider.
type OAuthClient struct {
	name       string
	config     *oauth2.Config
	profileURL string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewOAuthClient creates an OAuthClient. A nil httpClient uses http.DefaultClient;
// callers bound each call through the context instead.
func NewOAuthClient(cfg Config, httpClient *http.Client, limiter *rate.Limiter) (*OAuthClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OAuthClient{
		name: cfg.Name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
		},
		profileURL: cfg.ProfileURL,
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

// Name returns the provider name.
func (c *OAuthClient) Name() string {
	return c.name
}

// AuthCodeURL builds the consent URL with a PKCE S256 challenge for verifier.
func (c *OAuthClient) AuthCodeURL(state, verifier string) string {
	return c.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
}

// ExchangeCode trades an authorization code and its PKCE verifier for tokens.
func (c *OAuthClient) ExchangeCode(ctx context.Context, code, verifier string) (*cryptoDomain.TokenPayload, error) {
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := c.config.Exchange(c.clientContext(ctx), code, opts...)
	if err != nil {
		return nil, c.classify(err)
	}
	return c.toPayload(token)
}

// Refresh trades a refresh token for a new access token. The returned payload may
// lack a refresh token when the provider does not rotate it.
func (c *OAuthClient) Refresh(ctx context.Context, refreshToken string) (*cryptoDomain.TokenPayload, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: refresh token is required", ErrRejected)
	}
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}

	source := c.config.TokenSource(c.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, c.classify(err)
	}

	payload, err := c.toPayload(token)
	if err != nil {
		return nil, err
	}
	if token.RefreshToken == refreshToken {
		// x/oauth2 echoes the old refresh token when none was returned.
		payload.RefreshToken = ""
	}
	return payload, nil
}

// FetchProfile returns the identity behind accessToken.
func (c *OAuthClient) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	if c.profileURL == "" {
		return nil, fmt.Errorf("%w: provider %q has no profile url", errors.ErrConfiguration, c.name)
	}
	if err := wait(ctx, c.limiter); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.profileURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(c.name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, classifyTransport(c.name, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Provider: c.name, StatusCode: resp.StatusCode, Message: summarize(body)}
	}

	var doc struct {
		Sub   string `json:"sub"`
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
		Items []struct {
			ID      string `json:"id"`
			Snippet struct {
				Title string `json:"title"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s profile: %v", ErrInvalidResponse, c.name, err)
	}

	profile := &Profile{ID: doc.Sub, Name: doc.Name, Email: doc.Email}
	if profile.ID == "" {
		profile.ID = doc.ID
	}
	if profile.ID == "" && len(doc.Items) > 0 {
		profile.ID = doc.Items[0].ID
		profile.Name = doc.Items[0].Snippet.Title
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: %s profile has no id", ErrInvalidResponse, c.name)
	}
	return profile, nil
}

func (c *OAuthClient) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *OAuthClient) classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		message := retrieveErr.ErrorCode
		if retrieveErr.ErrorDescription != "" {
			message = strings.TrimSpace(message + " " + retrieveErr.ErrorDescription)
		}
		if message == "" {
			message = summarize(retrieveErr.Body)
		}
		return &StatusError{Provider: c.name, StatusCode: retrieveErr.Response.StatusCode, Message: message}
	}
	return classifyTransport(c.name, err)
}

func (c *OAuthClient) toPayload(token *oauth2.Token) (*cryptoDomain.TokenPayload, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("%w: %s token response has no access token", ErrInvalidResponse, c.name)
	}

	payload := &cryptoDomain.TokenPayload{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.Type(),
	}
	if !token.Expiry.IsZero() {
		payload.ExpiresAt = token.Expiry.Unix()
	}
	if scope, ok := token.Extra("scope").(string); ok {
		payload.Scopes = splitScopes(scope)
	}
	return payload, nil
}

// splitScopes accepts both space and comma separated scope strings.
func splitScopes(scope string) []string {
	fields := strings.FieldsFunc(scope, func(r rune) bool { return r == ' ' || r == ',' })
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func summarize(body []byte) string {
	const limit = 256
	text := strings.TrimSpace(string(body))
	if len(text) > limit {
		text = text[:limit]
	}
	return text
}
