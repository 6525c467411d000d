package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	schedulerDomain "github.com/allisson/channelvault/internal/scheduler/domain"
)

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
	return m.Called(ctx, brandID, userID, role).Error(0)
}

type MockSchedulerUseCase struct {
	mock.Mock
}

func (m *MockSchedulerUseCase) ScheduleJob(
	ctx context.Context,
	input *schedulerDomain.ScheduleJobInput,
) (*schedulerDomain.ScheduledJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedulerDomain.ScheduledJob), args.Error(1)
}

func (m *MockSchedulerUseCase) CancelJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	args := m.Called(ctx, jobID)
	return args.Bool(0), args.Error(1)
}

func (m *MockSchedulerUseCase) GetJobStatus(
	ctx context.Context,
	jobID uuid.UUID,
) (*schedulerDomain.ScheduledJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schedulerDomain.ScheduledJob), args.Error(1)
}

func (m *MockSchedulerUseCase) PollDue(ctx context.Context) ([]*schedulerDomain.ScheduledJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*schedulerDomain.ScheduledJob), args.Error(1)
}

func (m *MockSchedulerUseCase) Publish(ctx context.Context, job *schedulerDomain.ScheduledJob) error {
	return m.Called(ctx, job).Error(0)
}

func (m *MockSchedulerUseCase) ProcessDue(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSchedulerUseCase) RetryPass(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockSchedulerUseCase) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
