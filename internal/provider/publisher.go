package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	"github.com/allisson/channelvault/internal/errors"
	schedulerDomain "github.com/allisson/channelvault/internal/scheduler/domain"
)

// HTTPPublisher sends job payloads to a provider's content API with the connection's
// bearer token.
type HTTPPublisher struct {
	name       string
	publishURL string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewHTTPPublisher creates an HTTPPublisher for cfg.PublishURL.
func NewHTTPPublisher(cfg Config, httpClient *http.Client, limiter *rate.Limiter) (*HTTPPublisher, error) {
	if strings.TrimSpace(cfg.PublishURL) == "" {
		return nil, errors.Wrap(errors.ErrConfiguration, "provider "+cfg.Name+" has no publish url")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPPublisher{
		name:       cfg.Name,
		publishURL: cfg.PublishURL,
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

// Publish sends job.Payload and returns the provider's response as the job result.
// The job id travels as an idempotency key so a retried publish is not duplicated by
// providers that honor it.
func (p *HTTPPublisher) Publish(
	ctx context.Context,
	credentials *cryptoDomain.TokenPayload,
	job *schedulerDomain.ScheduledJob,
) (json.RawMessage, error) {
	if err := wait(ctx, p.limiter); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, methodFor(job.Operation), p.publishURL, bytes.NewReader(job.Payload))
	if err != nil {
		return nil, err
	}
	tokenType := credentials.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	req.Header.Set("Authorization", tokenType+" "+credentials.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", job.ID.String())
	req.Header.Set("X-Operation", job.Operation)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(p.name, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return nil, classifyTransport(p.name, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Provider: p.name, StatusCode: resp.StatusCode, Message: summarize(body)}
	}

	return summarizeResponse(resp, body)
}

// methodFor picks the HTTP method from the operation's verb suffix.
func methodFor(operation string) string {
	switch {
	case strings.HasSuffix(operation, "_delete"):
		return http.MethodDelete
	case strings.HasSuffix(operation, "_update"):
		return http.MethodPut
	default:
		return http.MethodPost
	}
}

// summarizeResponse keeps JSON bodies as they are and records the status and
// resource location otherwise.
func summarizeResponse(resp *http.Response, body []byte) (json.RawMessage, error) {
	if len(bytes.TrimSpace(body)) > 0 && json.Valid(body) {
		return json.RawMessage(body), nil
	}
	summary := map[string]any{"status": resp.StatusCode}
	if id := resp.Header.Get("X-RestLi-Id"); id != "" {
		summary["id"] = id
	}
	if location := resp.Header.Get("Location"); location != "" {
		summary["location"] = location
	}
	return json.Marshal(summary)
}
