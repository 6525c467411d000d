package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertMetricLine matches a sample line, tolerating the scope labels the exporter adds.
func assertMetricLine(t *testing.T, output, name, labels, value string) {
	t.Helper()
	assert.Regexp(t, `(?m)^`+name+`\{[^}]*`+labels+`[^}]*\} `+value+`(?:\s|$)`, output)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusSuccess, StatusOf(nil))
	assert.Equal(t, StatusError, StatusOf(errors.New("decryption failed")))
}

func TestBusinessMetrics(t *testing.T) {
	ctx := context.Background()

	t.Run("counts operations by domain and outcome", func(t *testing.T) {
		p := newTestProvider(t, "vault")
		bm, err := NewBusinessMetrics(p)
		require.NoError(t, err)

		bm.RecordOperation(ctx, DomainConnections, "connection_credentials", StatusSuccess)
		bm.RecordOperation(ctx, DomainConnections, "connection_credentials", StatusSuccess)
		bm.RecordOperation(ctx, DomainConnections, "connection_credentials", StatusError)
		bm.RecordOperation(ctx, DomainScheduler, "job_claim_expired", "retryable")

		output := scrape(t, p)
		assertMetricLine(t, output, `vault_operations_total`,
			`domain="connections".*operation="connection_credentials".*status="success"`, `2`)
		assertMetricLine(t, output, `vault_operations_total`,
			`domain="connections".*operation="connection_credentials".*status="error"`, `1`)
		assertMetricLine(t, output, `vault_operations_total`,
			`domain="scheduler".*operation="job_claim_expired".*status="retryable"`, `1`)
	})

	t.Run("observes durations in publish sized buckets", func(t *testing.T) {
		p := newTestProvider(t, "vault")
		bm, err := NewBusinessMetrics(p)
		require.NoError(t, err)

		bm.RecordDuration(ctx, DomainScheduler, "job_publish", 45*time.Second, StatusSuccess)
		bm.RecordDuration(ctx, DomainScheduler, "job_publish", 2*time.Millisecond, StatusSuccess)

		output := scrape(t, p)
		assertMetricLine(t, output, `vault_operation_duration_seconds_count`,
			`domain="scheduler".*operation="job_publish".*status="success"`, `2`)
		assertMetricLine(t, output, `vault_operation_duration_seconds_bucket`,
			`le="30"`, `1`)
		assertMetricLine(t, output, `vault_operation_duration_seconds_bucket`,
			`le="60"`, `2`)
	})

	t.Run("empty namespace leaves names unprefixed", func(t *testing.T) {
		p := newTestProvider(t, "")
		bm, err := NewBusinessMetrics(p)
		require.NoError(t, err)

		bm.RecordOperation(ctx, DomainConnections, "connection_revoke", StatusSuccess)

		assert.Regexp(t, `(?m)^operations_total\{`, scrape(t, p))
	})
}

func TestNewNoOpBusinessMetrics(t *testing.T) {
	bm := NewNoOpBusinessMetrics()
	require.NotNil(t, bm)

	assert.NotPanics(t, func() {
		bm.RecordOperation(context.Background(), DomainConnections, "connection_create", StatusSuccess)
		bm.RecordDuration(context.Background(), DomainScheduler, "job_publish", time.Second, StatusError)
	})
}
