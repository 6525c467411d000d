package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	"github.com/allisson/channelvault/internal/metrics"
)

// connectionUseCaseWithMetrics decorates ConnectionUseCase with metrics instrumentation.
type connectionUseCaseWithMetrics struct {
	next    ConnectionUseCase
	metrics metrics.BusinessMetrics
}

// NewConnectionUseCaseWithMetrics wraps a ConnectionUseCase with metrics recording.
func NewConnectionUseCaseWithMetrics(useCase ConnectionUseCase, m metrics.BusinessMetrics) ConnectionUseCase {
	return &connectionUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (c *connectionUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := metrics.StatusOf(err)
	c.metrics.RecordOperation(ctx, metrics.DomainConnections, operation, status)
	c.metrics.RecordDuration(ctx, metrics.DomainConnections, operation, time.Since(start), status)
}

// Create records metrics for connection creation.
func (c *connectionUseCaseWithMetrics) Create(
	ctx context.Context,
	input *connectionDomain.CreateConnectionInput,
) (*connectionDomain.Connection, error) {
	start := time.Now()
	conn, err := c.next.Create(ctx, input)
	c.record(ctx, "connection_create", start, err)
	return conn, err
}

// List records metrics for connection listing.
func (c *connectionUseCaseWithMetrics) List(
	ctx context.Context,
	brandID, userID string,
) ([]*connectionDomain.ConnectionSummary, error) {
	start := time.Now()
	summaries, err := c.next.List(ctx, brandID, userID)
	c.record(ctx, "connection_list", start, err)
	return summaries, err
}

// Revoke records metrics for connection revocation.
func (c *connectionUseCaseWithMetrics) Revoke(ctx context.Context, connectionID uuid.UUID) (bool, error) {
	start := time.Now()
	revoked, err := c.next.Revoke(ctx, connectionID)
	c.record(ctx, "connection_revoke", start, err)
	return revoked, err
}

// Get records metrics for connection lookups.
func (c *connectionUseCaseWithMetrics) Get(
	ctx context.Context,
	connectionID uuid.UUID,
) (*connectionDomain.Connection, error) {
	start := time.Now()
	conn, err := c.next.Get(ctx, connectionID)
	c.record(ctx, "connection_get", start, err)
	return conn, err
}

// Role is not instrumented.
func (c *connectionUseCaseWithMetrics) Role(ctx context.Context, conn *connectionDomain.Connection) (string, error) {
	return c.next.Role(ctx, conn)
}

// Credentials records metrics for credential decryption, including any refresh.
func (c *connectionUseCaseWithMetrics) Credentials(
	ctx context.Context,
	conn *connectionDomain.Connection,
) (*cryptoDomain.TokenPayload, error) {
	start := time.Now()
	payload, err := c.next.Credentials(ctx, conn)
	c.record(ctx, "connection_credentials", start, err)
	return payload, err
}

// AddMember records metrics for membership changes.
func (c *connectionUseCaseWithMetrics) AddMember(ctx context.Context, brandID, userID, role string) error {
	start := time.Now()
	err := c.next.AddMember(ctx, brandID, userID, role)
	c.record(ctx, "member_add", start, err)
	return err
}
