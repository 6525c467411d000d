package usecase

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	policyService "github.com/allisson/channelvault/internal/policy/service"
	schedulerDomain "github.com/allisson/channelvault/internal/scheduler/domain"
)

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fakeJobRepository keeps jobs in memory. Conditional transitions are atomic under mu,
// like the guarded UPDATE statements of the SQL repositories.
type fakeJobRepository struct {
	mu          sync.Mutex
	jobs        map[uuid.UUID]*schedulerDomain.ScheduledJob
	completeErr error
}

func newFakeJobRepository() *fakeJobRepository {
	return &fakeJobRepository{jobs: make(map[uuid.UUID]*schedulerDomain.ScheduledJob)}
}

func copyJob(job *schedulerDomain.ScheduledJob) *schedulerDomain.ScheduledJob {
	c := *job
	return &c
}

func (r *fakeJobRepository) Create(_ context.Context, job *schedulerDomain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = copyJob(job)
	return nil
}

func (r *fakeJobRepository) Get(_ context.Context, jobID uuid.UUID) (*schedulerDomain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, schedulerDomain.ErrJobNotFound
	}
	return copyJob(job), nil
}

func (r *fakeJobRepository) sorted(keep func(*schedulerDomain.ScheduledJob) bool, limit int) []*schedulerDomain.ScheduledJob {
	var out []*schedulerDomain.ScheduledJob
	for _, job := range r.jobs {
		if keep(job) {
			out = append(out, copyJob(job))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledTime.Before(out[j].ScheduledTime) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *fakeJobRepository) ListDue(
	_ context.Context,
	now time.Time,
	limit int,
) ([]*schedulerDomain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(j *schedulerDomain.ScheduledJob) bool { return j.IsDue(now) }, limit), nil
}

func (r *fakeJobRepository) ListExpired(
	_ context.Context,
	claimedBefore time.Time,
	limit int,
) ([]*schedulerDomain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(j *schedulerDomain.ScheduledJob) bool {
		return j.Status == schedulerDomain.JobStatusInProgress && j.ClaimedAt != nil && !j.ClaimedAt.After(claimedBefore)
	}, limit), nil
}

func (r *fakeJobRepository) ListRetryable(_ context.Context, limit int) ([]*schedulerDomain.ScheduledJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(j *schedulerDomain.ScheduledJob) bool { return j.CanRetry() }, limit), nil
}

func (r *fakeJobRepository) transition(
	jobID uuid.UUID,
	now time.Time,
	allowed func(*schedulerDomain.ScheduledJob) bool,
	to schedulerDomain.JobStatus,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || !allowed(job) {
		return false, nil
	}
	job.Status = to
	job.UpdatedAt = now
	if to == schedulerDomain.JobStatusInProgress {
		job.ClaimedAt = &now
	}
	if to == schedulerDomain.JobStatusScheduled {
		job.ErrorMessage = nil
	}
	return true, nil
}

func (r *fakeJobRepository) Claim(_ context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	return r.transition(jobID, now, func(j *schedulerDomain.ScheduledJob) bool {
		return j.Status == schedulerDomain.JobStatusScheduled
	}, schedulerDomain.JobStatusInProgress)
}

func (r *fakeJobRepository) Cancel(_ context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	return r.transition(jobID, now, (*schedulerDomain.ScheduledJob).CanCancel, schedulerDomain.JobStatusCancelled)
}

func (r *fakeJobRepository) Requeue(_ context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	return r.transition(jobID, now, (*schedulerDomain.ScheduledJob).CanRetry, schedulerDomain.JobStatusScheduled)
}

func (r *fakeJobRepository) Complete(_ context.Context, job *schedulerDomain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return r.completeErr
	}
	stored, ok := r.jobs[job.ID]
	if !ok || stored.Status != schedulerDomain.JobStatusInProgress || !sameClaim(stored.ClaimedAt, job.ClaimedAt) {
		return schedulerDomain.ErrJobNotClaimed
	}
	r.jobs[job.ID] = copyJob(job)
	return nil
}

func sameClaim(a, b *time.Time) bool {
	return a != nil && b != nil && a.Equal(*b)
}

// age moves a job's claim into the past.
func (r *fakeJobRepository) age(jobID uuid.UUID, by time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok && job.ClaimedAt != nil {
		claimedAt := job.ClaimedAt.Add(-by)
		job.ClaimedAt = &claimedAt
	}
}

func (r *fakeJobRepository) setCompleteErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeErr = err
}

// fakeConnectionStore serves connections, roles and plaintext credentials.
type fakeConnectionStore struct {
	mu              sync.Mutex
	connections     map[uuid.UUID]*connectionDomain.Connection
	roles           map[uuid.UUID]string
	credentialsErr  error
	credentialCalls int
}

func newFakeConnectionStore() *fakeConnectionStore {
	return &fakeConnectionStore{
		connections: make(map[uuid.UUID]*connectionDomain.Connection),
		roles:       make(map[uuid.UUID]string),
	}
}

func (s *fakeConnectionStore) add(provider, role string, scopeKeys ...string) *connectionDomain.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn := &connectionDomain.Connection{
		ID:             uuid.Must(uuid.NewV7()),
		BrandID:        "brand-1",
		UserID:         "user-1",
		OAuthAccountID: "acct-1",
		Provider:       provider,
		ScopeKeys:      scopeKeys,
		IsActive:       true,
		Version:        1,
	}
	s.connections[conn.ID] = conn
	s.roles[conn.ID] = role
	return conn
}

func (s *fakeConnectionStore) Get(_ context.Context, connectionID uuid.UUID) (*connectionDomain.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conn, ok := s.connections[connectionID]
	if !ok || !conn.IsUsable() {
		return nil, connectionDomain.ErrConnectionNotFound
	}
	c := *conn
	return &c, nil
}

func (s *fakeConnectionStore) Role(_ context.Context, conn *connectionDomain.Connection) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roles[conn.ID], nil
}

func (s *fakeConnectionStore) Credentials(
	_ context.Context,
	conn *connectionDomain.Connection,
) (*cryptoDomain.TokenPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentialCalls++
	if s.credentialsErr != nil {
		return nil, s.credentialsErr
	}
	return &cryptoDomain.TokenPayload{AccessToken: "access-" + conn.ID.String(), TokenType: "Bearer"}, nil
}

func (s *fakeConnectionStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credentialCalls
}

// fakePublisher returns err when set, otherwise a small result document.
type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published []uuid.UUID
}

func (p *fakePublisher) Publish(
	_ context.Context,
	credentials *cryptoDomain.TokenPayload,
	job *schedulerDomain.ScheduledJob,
) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, job.ID)
	if p.err != nil {
		return nil, p.err
	}
	return json.RawMessage(`{"id":"remote-1","status":200}`), nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

type schedulerFixture struct {
	uc          *SchedulerUseCase
	jobs        *fakeJobRepository
	connections *fakeConnectionStore
	publisher   *fakePublisher
}

func newSchedulerFixture(t *testing.T, config Config) *schedulerFixture {
	t.Helper()
	policies, err := policyService.LoadProviderPolicies("", []string{"youtube", "linkedin"})
	require.NoError(t, err)
	gate, err := policyService.NewGate(policies...)
	require.NoError(t, err)

	f := &schedulerFixture{
		jobs:        newFakeJobRepository(),
		connections: newFakeConnectionStore(),
		publisher:   &fakePublisher{},
	}
	f.uc = NewSchedulerUseCase(
		config,
		fakeTxManager{},
		f.jobs,
		f.connections,
		gate,
		map[string]Publisher{"youtube": f.publisher},
		nil,
		nil,
	)
	return f
}

// seed stores a due job directly, bypassing ScheduleJob.
func (f *schedulerFixture) seed(
	t *testing.T,
	conn *connectionDomain.Connection,
	operation string,
	maxRetries int,
) *schedulerDomain.ScheduledJob {
	t.Helper()
	now := time.Now().UTC()
	job := &schedulerDomain.ScheduledJob{
		ID:            uuid.Must(uuid.NewV7()),
		Platform:      conn.Provider,
		ConnectionID:  conn.ID,
		Operation:     operation,
		Payload:       json.RawMessage(`{"title":"launch"}`),
		ScheduledTime: now.Add(-time.Minute),
		Status:        schedulerDomain.JobStatusScheduled,
		MaxRetries:    maxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.jobs.Create(context.Background(), job))
	return job
}

func (f *schedulerFixture) stored(t *testing.T, id uuid.UUID) *schedulerDomain.ScheduledJob {
	t.Helper()
	job, err := f.jobs.Get(context.Background(), id)
	require.NoError(t, err)
	return job
}
