package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
)

func expectMetrics(m *mockBusinessMetrics, ctx context.Context, operation, status string) {
	m.On("RecordOperation", ctx, "connections", operation, status).Return().Once()
	m.On("RecordDuration", ctx, "connections", operation, mock.AnythingOfType("time.Duration"), status).
		Return().
		Once()
}

func TestConnectionUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	conn := &connectionDomain.Connection{ID: id}

	t.Run("Create success", func(t *testing.T) {
		next := &MockConnectionUseCase{}
		m := &mockBusinessMetrics{}
		uc := NewConnectionUseCaseWithMetrics(next, m)
		input := &connectionDomain.CreateConnectionInput{BrandID: "brand-1"}

		next.On("Create", ctx, input).Return(conn, nil).Once()
		expectMetrics(m, ctx, "connection_create", "success")

		got, err := uc.Create(ctx, input)
		assert.NoError(t, err)
		assert.Equal(t, conn, got)
		next.AssertExpectations(t)
		m.AssertExpectations(t)
	})

	t.Run("Create error", func(t *testing.T) {
		next := &MockConnectionUseCase{}
		m := &mockBusinessMetrics{}
		uc := NewConnectionUseCaseWithMetrics(next, m)
		input := &connectionDomain.CreateConnectionInput{}
		expectedErr := errors.New("error")

		next.On("Create", ctx, input).Return(nil, expectedErr).Once()
		expectMetrics(m, ctx, "connection_create", "error")

		got, err := uc.Create(ctx, input)
		assert.Equal(t, expectedErr, err)
		assert.Nil(t, got)
		m.AssertExpectations(t)
	})

	t.Run("List", func(t *testing.T) {
		next := &MockConnectionUseCase{}
		m := &mockBusinessMetrics{}
		uc := NewConnectionUseCaseWithMetrics(next, m)
		summaries := []*connectionDomain.ConnectionSummary{{ID: id}}

		next.On("List", ctx, "brand-1", "user-1").Return(summaries, nil).Once()
		expectMetrics(m, ctx, "connection_list", "success")

		got, err := uc.List(ctx, "brand-1", "user-1")
		assert.NoError(t, err)
		assert.Equal(t, summaries, got)
		m.AssertExpectations(t)
	})

	t.Run("Revoke", func(t *testing.T) {
		next := &MockConnectionUseCase{}
		m := &mockBusinessMetrics{}
		uc := NewConnectionUseCaseWithMetrics(next, m)

		next.On("Revoke", ctx, id).Return(true, nil).Once()
		expectMetrics(m, ctx, "connection_revoke", "success")

		revoked, err := uc.Revoke(ctx, id)
		assert.NoError(t, err)
		assert.True(t, revoked)
		m.AssertExpectations(t)
	})

	t.Run("Get error", func(t *testing.T) {
		next := &MockConnectionUseCase{}
		m := &mockBusinessMetrics{}
		uc := NewConnectionUseCaseWithMetrics(next, m)

		next.On("Get", ctx, id).Return(nil, connectionDomain.ErrConnectionNotFound).Once()
		expectMetrics(m, ctx, "connection_get", "error")

		_, err := uc.Get(ctx, id)
		assert.ErrorIs(t, err, connectionDomain.ErrConnectionNotFound)
		m.AssertExpectations(t)
	})

	t.Run("Role is passed through", func(t *testing.T) {
		next := &MockConnectionUseCase{}
		m := &mockBusinessMetrics{}
		uc := NewConnectionUseCaseWithMetrics(next, m)

		next.On("Role", ctx, conn).Return("admin", nil).Once()

		role, err := uc.Role(ctx, conn)
		assert.NoError(t, err)
		assert.Equal(t, "admin", role)
		m.AssertNotCalled(t, "RecordOperation", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Credentials", func(t *testing.T) {
		next := &MockConnectionUseCase{}
		m := &mockBusinessMetrics{}
		uc := NewConnectionUseCaseWithMetrics(next, m)
		payload := &cryptoDomain.TokenPayload{AccessToken: "at"}

		next.On("Credentials", ctx, conn).Return(payload, nil).Once()
		expectMetrics(m, ctx, "connection_credentials", "success")

		got, err := uc.Credentials(ctx, conn)
		assert.NoError(t, err)
		assert.Equal(t, payload, got)
		m.AssertExpectations(t)
	})

	t.Run("AddMember", func(t *testing.T) {
		next := &MockConnectionUseCase{}
		m := &mockBusinessMetrics{}
		uc := NewConnectionUseCaseWithMetrics(next, m)

		next.On("AddMember", ctx, "brand-1", "user-1", "owner").Return(nil).Once()
		expectMetrics(m, ctx, "member_add", "success")

		assert.NoError(t, uc.AddMember(ctx, "brand-1", "user-1", "owner"))
		m.AssertExpectations(t)
	})
}
