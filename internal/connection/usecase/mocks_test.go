package usecase

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	cryptoService "github.com/allisson/channelvault/internal/crypto/service"
	policyService "github.com/allisson/channelvault/internal/policy/service"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	return fn(ctx)
}

// MockConnectionRepository is a mock implementation of ConnectionRepository
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) Create(ctx context.Context, conn *connectionDomain.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockConnectionRepository) Get(
	ctx context.Context,
	connectionID uuid.UUID,
) (*connectionDomain.Connection, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connectionDomain.Connection), args.Error(1)
}

func (m *MockConnectionRepository) ListActive(
	ctx context.Context,
	brandID, userID string,
) ([]*connectionDomain.ConnectionSummary, error) {
	args := m.Called(ctx, brandID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*connectionDomain.ConnectionSummary), args.Error(1)
}

func (m *MockConnectionRepository) Revoke(
	ctx context.Context,
	connectionID uuid.UUID,
	revokedAt time.Time,
) (bool, error) {
	args := m.Called(ctx, connectionID, revokedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockConnectionRepository) RevokeByAccount(
	ctx context.Context,
	brandID, userID, provider, oauthAccountID string,
	revokedAt time.Time,
) (int64, error) {
	args := m.Called(ctx, brandID, userID, provider, oauthAccountID, revokedAt)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConnectionRepository) UpdateToken(ctx context.Context, conn *connectionDomain.Connection) error {
	args := m.Called(ctx, conn)
	return args.Error(0)
}

func (m *MockConnectionRepository) TouchLastUsed(
	ctx context.Context,
	connectionID uuid.UUID,
	usedAt time.Time,
) error {
	args := m.Called(ctx, connectionID, usedAt)
	return args.Error(0)
}

// MockMembershipRepository is a mock implementation of MembershipRepository
type MockMembershipRepository struct {
	mock.Mock
}

func (m *MockMembershipRepository) GetRole(ctx context.Context, brandID, userID string) (string, error) {
	args := m.Called(ctx, brandID, userID)
	return args.String(0), args.Error(1)
}

func (m *MockMembershipRepository) Upsert(ctx context.Context, brandID, userID, role string) error {
	args := m.Called(ctx, brandID, userID, role)
	return args.Error(0)
}

// MockOAuthRefresher is a mock implementation of OAuthRefresher
type MockOAuthRefresher struct {
	mock.Mock
}

func (m *MockOAuthRefresher) Refresh(ctx context.Context, refreshToken string) (*cryptoDomain.TokenPayload, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.TokenPayload), args.Error(1)
}

// MockConnectionUseCase is a mock implementation of ConnectionUseCase
type MockConnectionUseCase struct {
	mock.Mock
}

func (m *MockConnectionUseCase) Create(
	ctx context.Context,
	input *connectionDomain.CreateConnectionInput,
) (*connectionDomain.Connection, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connectionDomain.Connection), args.Error(1)
}

func (m *MockConnectionUseCase) List(
	ctx context.Context,
	brandID, userID string,
) ([]*connectionDomain.ConnectionSummary, error) {
	args := m.Called(ctx, brandID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*connectionDomain.ConnectionSummary), args.Error(1)
}

func (m *MockConnectionUseCase) Revoke(ctx context.Context, connectionID uuid.UUID) (bool, error) {
	args := m.Called(ctx, connectionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockConnectionUseCase) Get(
	ctx context.Context,
	connectionID uuid.UUID,
) (*connectionDomain.Connection, error) {
	args := m.Called(ctx, connectionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*connectionDomain.Connection), args.Error(1)
}

func (m *MockConnectionUseCase) Role(ctx context.Context, conn *connectionDomain.Connection) (string, error) {
	args := m.Called(ctx, conn)
	return args.String(0), args.Error(1)
}

func (m *MockConnectionUseCase) Credentials(
	ctx context.Context,
	conn *connectionDomain.Connection,
) (*cryptoDomain.TokenPayload, error) {
	args := m.Called(ctx, conn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptoDomain.TokenPayload), args.Error(1)
}

func (m *MockConnectionUseCase) AddMember(ctx context.Context, brandID, userID, role string) error {
	args := m.Called(ctx, brandID, userID, role)
	return args.Error(0)
}

// mockBusinessMetrics is a mock implementation of metrics.BusinessMetrics
type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func newTestCipher(t *testing.T) *cryptoService.EnvelopeCipherService {
	t.Helper()
	secret, err := cryptoDomain.NewRootSecret(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	deriver, err := cryptoService.NewKeyDeriver(secret)
	require.NoError(t, err)
	return cryptoService.NewEnvelopeCipher(deriver, cryptoService.NewAEADManager(), cryptoDomain.AESGCM)
}

func newTestGate(t *testing.T) *policyService.Gate {
	t.Helper()
	policies, err := policyService.LoadProviderPolicies("", []string{"youtube", "linkedin"})
	require.NoError(t, err)
	gate, err := policyService.NewGate(policies...)
	require.NoError(t, err)
	return gate
}

// newStoredConnection builds a usable connection whose token is sealed with cipher.
func newStoredConnection(
	t *testing.T,
	cipher cryptoService.EnvelopeCipher,
	payload *cryptoDomain.TokenPayload,
) *connectionDomain.Connection {
	t.Helper()
	blob, err := cipher.Encrypt(payload)
	require.NoError(t, err)
	return &connectionDomain.Connection{
		ID:             uuid.Must(uuid.NewV7()),
		BrandID:        "brand-1",
		UserID:         "user-1",
		OAuthAccountID: "UC123",
		Provider:       "youtube",
		Scopes:         payload.Scopes,
		ScopeKeys:      []string{"upload"},
		EncryptedToken: *blob,
		IsActive:       true,
		Version:        1,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
}
