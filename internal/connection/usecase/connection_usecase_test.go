package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	apperrors "github.com/allisson/channelvault/internal/errors"
)

type connectionFixture struct {
	txManager      *MockTxManager
	connectionRepo *MockConnectionRepository
	membershipRepo *MockMembershipRepository
	oauth          *MockOAuthRefresher
	useCase        *connectionUseCase
}

func newConnectionFixture(t *testing.T) *connectionFixture {
	t.Helper()
	f := &connectionFixture{
		txManager:      &MockTxManager{},
		connectionRepo: &MockConnectionRepository{},
		membershipRepo: &MockMembershipRepository{},
		oauth:          &MockOAuthRefresher{},
	}
	cipher := newTestCipher(t)
	gate := newTestGate(t)
	refresher := NewTokenRefresher(
		RefreshConfig{Threshold: 120 * time.Second, Timeout: time.Second},
		f.connectionRepo,
		cipher,
		gate,
		map[string]OAuthRefresher{"youtube": f.oauth},
		nil,
	)
	f.useCase = NewConnectionUseCase(
		f.txManager,
		f.connectionRepo,
		f.membershipRepo,
		cipher,
		gate,
		refresher,
		nil,
	).(*connectionUseCase)
	return f
}

func validCreateInput() *connectionDomain.CreateConnectionInput {
	return &connectionDomain.CreateConnectionInput{
		BrandID:        "brand-1",
		UserID:         "user-1",
		OAuthAccountID: "UC123",
		Provider:       "YouTube",
		Token: &cryptoDomain.TokenPayload{
			AccessToken:  "ya29.access",
			RefreshToken: "1//refresh",
			ExpiresAt:    time.Now().Add(time.Hour).Unix(),
		},
		Scopes: []string{
			"https://www.googleapis.com/auth/youtube.upload",
			"https://www.googleapis.com/auth/userinfo.email",
		},
	}
}

func TestConnectionUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newConnectionFixture(t)
		input := validCreateInput()

		f.txManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		f.connectionRepo.On("RevokeByAccount", ctx, "brand-1", "user-1", "youtube", "UC123", mock.AnythingOfType("time.Time")).
			Return(int64(1), nil).
			Once()
		f.connectionRepo.On("Create", ctx, mock.AnythingOfType("*domain.Connection")).Return(nil).Once()

		conn, err := f.useCase.Create(ctx, input)
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, conn.ID)
		assert.Equal(t, "youtube", conn.Provider)
		assert.Equal(t, input.Scopes, conn.Scopes)
		assert.Equal(t, []string{"upload"}, conn.ScopeKeys)
		assert.True(t, conn.IsActive)
		assert.Equal(t, 1, conn.Version)

		decrypted, err := f.useCase.envelopeCipher.Decrypt(&conn.EncryptedToken)
		require.NoError(t, err)
		assert.Equal(t, input.Token, decrypted)

		f.txManager.AssertExpectations(t)
		f.connectionRepo.AssertExpectations(t)
	})

	t.Run("scopes fall back to the token scopes", func(t *testing.T) {
		f := newConnectionFixture(t)
		input := validCreateInput()
		input.Scopes = nil
		input.Token.Scopes = []string{"https://www.googleapis.com/auth/youtube.readonly"}

		f.txManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		f.connectionRepo.On("RevokeByAccount", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(int64(0), nil).
			Once()
		f.connectionRepo.On("Create", ctx, mock.Anything).Return(nil).Once()

		conn, err := f.useCase.Create(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, []string{"read_only"}, conn.ScopeKeys)
	})

	t.Run("no scopes at all", func(t *testing.T) {
		f := newConnectionFixture(t)
		input := validCreateInput()
		input.Scopes = nil

		f.txManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		f.connectionRepo.On("RevokeByAccount", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(int64(0), nil).
			Once()
		f.connectionRepo.On("Create", ctx, mock.Anything).Return(nil).Once()

		conn, err := f.useCase.Create(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, []string{}, conn.Scopes)
		assert.Empty(t, conn.ScopeKeys)
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newConnectionFixture(t)
		input := validCreateInput()
		input.BrandID = ""

		conn, err := f.useCase.Create(ctx, input)
		assert.Nil(t, conn)
		assert.ErrorIs(t, err, connectionDomain.ErrInvalidConnection)
		f.connectionRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unsupported provider", func(t *testing.T) {
		f := newConnectionFixture(t)
		input := validCreateInput()
		input.Provider = "myspace"

		_, err := f.useCase.Create(ctx, input)
		assert.ErrorIs(t, err, connectionDomain.ErrInvalidConnection)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("create failure rolls back", func(t *testing.T) {
		f := newConnectionFixture(t)
		dbErr := errors.New("unique violation")

		f.txManager.On("WithTx", ctx, mock.Anything).Return(nil).Once()
		f.connectionRepo.On("RevokeByAccount", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(int64(0), nil).
			Once()
		f.connectionRepo.On("Create", ctx, mock.Anything).Return(dbErr).Once()

		conn, err := f.useCase.Create(ctx, validCreateInput())
		assert.Nil(t, conn)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestConnectionUseCase_List(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the joined member role", func(t *testing.T) {
		f := newConnectionFixture(t)
		payload := &cryptoDomain.TokenPayload{AccessToken: "at"}
		conn := newStoredConnection(t, f.useCase.envelopeCipher, payload)

		f.connectionRepo.On("ListActive", ctx, "brand-1", "user-1").
			Return([]*connectionDomain.ConnectionSummary{conn.Summary("Editor")}, nil).
			Once()

		summaries, err := f.useCase.List(ctx, "brand-1", "user-1")
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, conn.ID, summaries[0].ID)
		assert.Equal(t, "editor", summaries[0].Role)
		f.membershipRepo.AssertNotCalled(t, "GetRole", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("nil result becomes an empty list", func(t *testing.T) {
		f := newConnectionFixture(t)
		f.connectionRepo.On("ListActive", ctx, "brand-1", "user-1").
			Return(nil, nil).
			Once()

		summaries, err := f.useCase.List(ctx, "brand-1", "user-1")
		require.NoError(t, err)
		require.NotNil(t, summaries)
		assert.Empty(t, summaries)
	})

	t.Run("non member keeps an empty role", func(t *testing.T) {
		f := newConnectionFixture(t)
		conn := newStoredConnection(t, f.useCase.envelopeCipher, &cryptoDomain.TokenPayload{AccessToken: "at"})

		f.connectionRepo.On("ListActive", ctx, "brand-1", "user-1").
			Return([]*connectionDomain.ConnectionSummary{conn.Summary("")}, nil).
			Once()

		summaries, err := f.useCase.List(ctx, "brand-1", "user-1")
		require.NoError(t, err)
		require.Len(t, summaries, 1)
		assert.Equal(t, "", summaries[0].Role)
	})

	t.Run("repository error", func(t *testing.T) {
		f := newConnectionFixture(t)
		f.connectionRepo.On("ListActive", ctx, "brand-1", "user-1").
			Return(nil, assert.AnError).
			Once()

		_, err := f.useCase.List(ctx, "brand-1", "user-1")
		assert.ErrorIs(t, err, assert.AnError)
	})
}

func TestConnectionUseCase_Revoke(t *testing.T) {
	ctx := context.Background()
	f := newConnectionFixture(t)
	id := uuid.Must(uuid.NewV7())

	f.connectionRepo.On("Revoke", ctx, id, mock.AnythingOfType("time.Time")).Return(true, nil).Once()
	f.connectionRepo.On("Revoke", ctx, id, mock.AnythingOfType("time.Time")).Return(false, nil).Once()

	revoked, err := f.useCase.Revoke(ctx, id)
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = f.useCase.Revoke(ctx, id)
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestConnectionUseCase_Get(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	tests := []struct {
		name    string
		mutate  func(c *connectionDomain.Connection)
		repoErr error
		wantErr error
	}{
		{"usable", func(c *connectionDomain.Connection) {}, nil, nil},
		{"inactive", func(c *connectionDomain.Connection) { c.IsActive = false }, nil, connectionDomain.ErrConnectionNotFound},
		{"revoked", func(c *connectionDomain.Connection) { c.RevokedAt = &now }, nil, connectionDomain.ErrConnectionNotFound},
		{"missing", nil, connectionDomain.ErrConnectionNotFound, connectionDomain.ErrConnectionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConnectionFixture(t)
			conn := newStoredConnection(t, f.useCase.envelopeCipher, &cryptoDomain.TokenPayload{AccessToken: "at"})
			if tt.repoErr != nil {
				f.connectionRepo.On("Get", ctx, conn.ID).Return(nil, tt.repoErr).Once()
			} else {
				tt.mutate(conn)
				f.connectionRepo.On("Get", ctx, conn.ID).Return(conn, nil).Once()
			}

			got, err := f.useCase.Get(ctx, conn.ID)
			if tt.wantErr != nil {
				assert.Nil(t, got)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, conn, got)
		})
	}
}

func TestConnectionUseCase_Role(t *testing.T) {
	ctx := context.Background()
	f := newConnectionFixture(t)
	conn := newStoredConnection(t, f.useCase.envelopeCipher, &cryptoDomain.TokenPayload{AccessToken: "at"})
	dbErr := errors.New("db down")

	f.membershipRepo.On("GetRole", ctx, "brand-1", "user-1").Return(" Admin ", nil).Once()
	role, err := f.useCase.Role(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, "admin", role)

	f.membershipRepo.On("GetRole", ctx, "brand-1", "user-1").Return("", dbErr).Once()
	_, err = f.useCase.Role(ctx, conn)
	assert.ErrorIs(t, err, dbErr)
}

func TestConnectionUseCase_Credentials(t *testing.T) {
	ctx := context.Background()

	t.Run("fresh token", func(t *testing.T) {
		f := newConnectionFixture(t)
		payload := &cryptoDomain.TokenPayload{
			AccessToken: "at",
			ExpiresAt:   time.Now().Add(time.Hour).Unix(),
		}
		conn := newStoredConnection(t, f.useCase.envelopeCipher, payload)

		f.connectionRepo.On("TouchLastUsed", ctx, conn.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

		got, err := f.useCase.Credentials(ctx, conn)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
		f.connectionRepo.AssertExpectations(t)
	})

	t.Run("expiring token is refreshed before it is handed out", func(t *testing.T) {
		f := newConnectionFixture(t)
		payload := &cryptoDomain.TokenPayload{
			AccessToken:  "old",
			RefreshToken: "rt",
			ExpiresAt:    time.Now().Add(60 * time.Second).Unix(),
		}
		conn := newStoredConnection(t, f.useCase.envelopeCipher, payload)
		original := conn.EncryptedToken

		f.oauth.On("Refresh", mock.Anything, "rt").
			Return(&cryptoDomain.TokenPayload{AccessToken: "new", ExpiresAt: time.Now().Add(time.Hour).Unix()}, nil).
			Once()
		f.connectionRepo.On("UpdateToken", ctx, mock.Anything).Return(nil).Once()
		f.connectionRepo.On("TouchLastUsed", ctx, conn.ID, mock.AnythingOfType("time.Time")).Return(nil).Once()

		got, err := f.useCase.Credentials(ctx, conn)
		require.NoError(t, err)
		assert.Equal(t, "new", got.AccessToken)
		assert.False(t, original.Equal(&conn.EncryptedToken))
	})

	t.Run("tampered blob", func(t *testing.T) {
		f := newConnectionFixture(t)
		conn := newStoredConnection(t, f.useCase.envelopeCipher, &cryptoDomain.TokenPayload{AccessToken: "at"})
		conn.EncryptedToken.Ciphertext[0] ^= 0xff

		got, err := f.useCase.Credentials(ctx, conn)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
		f.connectionRepo.AssertNotCalled(t, "TouchLastUsed", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("touch failure does not fail the call", func(t *testing.T) {
		f := newConnectionFixture(t)
		conn := newStoredConnection(t, f.useCase.envelopeCipher, &cryptoDomain.TokenPayload{AccessToken: "at"})

		f.connectionRepo.On("TouchLastUsed", ctx, conn.ID, mock.Anything).Return(errors.New("db down")).Once()

		got, err := f.useCase.Credentials(ctx, conn)
		require.NoError(t, err)
		assert.Equal(t, "at", got.AccessToken)
	})
}

func TestConnectionUseCase_AddMember(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes the role", func(t *testing.T) {
		f := newConnectionFixture(t)
		f.membershipRepo.On("Upsert", ctx, "brand-1", "user-1", "owner").Return(nil).Once()

		require.NoError(t, f.useCase.AddMember(ctx, "brand-1", "user-1", " OWNER "))
		f.membershipRepo.AssertExpectations(t)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newConnectionFixture(t)
		err := f.useCase.AddMember(ctx, "brand-1", "", "owner")
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}
