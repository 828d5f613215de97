package grouping

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/brightline/composer/internal/model"
	"github.com/brightline/composer/internal/store"
	"github.com/brightline/composer/pkg/anthropic"
)

type mockStore struct {
	mock.Mock
}

var _ store.Store = (*mockStore)(nil)

func (m *mockStore) CreatePool(ctx context.Context, pool *model.KeywordPool) error {
	return m.Called(ctx, pool).Error(0)
}

func (m *mockStore) GetPool(ctx context.Context, orgID, poolID string) (*model.KeywordPool, error) {
	args := m.Called(ctx, orgID, poolID)
	pool, _ := args.Get(0).(*model.KeywordPool)
	return pool, args.Error(1)
}

func (m *mockStore) FindPool(ctx context.Context, orgID, projectID string, poolType model.PoolType, groupID *string) (*model.KeywordPool, error) {
	args := m.Called(ctx, orgID, projectID, poolType, groupID)
	pool, _ := args.Get(0).(*model.KeywordPool)
	return pool, args.Error(1)
}

func (m *mockStore) UpdatePool(ctx context.Context, pool *model.KeywordPool) error {
	return m.Called(ctx, pool).Error(0)
}

func (m *mockStore) ListPools(ctx context.Context, filter store.PoolFilter) ([]model.KeywordPool, error) {
	args := m.Called(ctx, filter)
	pools, _ := args.Get(0).([]model.KeywordPool)
	return pools, args.Error(1)
}

func (m *mockStore) ReplaceGroups(ctx context.Context, pool *model.KeywordPool, groups []model.KeywordGroup) error {
	return m.Called(ctx, pool, groups).Error(0)
}

func (m *mockStore) ListGroups(ctx context.Context, orgID, poolID string) ([]model.KeywordGroup, error) {
	args := m.Called(ctx, orgID, poolID)
	groups, _ := args.Get(0).([]model.KeywordGroup)
	return groups, args.Error(1)
}

func (m *mockStore) DeleteGroups(ctx context.Context, orgID, poolID string) (int, error) {
	args := m.Called(ctx, orgID, poolID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) InsertOverride(ctx context.Context, ov *model.GroupOverride) error {
	return m.Called(ctx, ov).Error(0)
}

func (m *mockStore) ListOverrides(ctx context.Context, orgID, poolID string) ([]model.GroupOverride, error) {
	args := m.Called(ctx, orgID, poolID)
	overrides, _ := args.Get(0).([]model.GroupOverride)
	return overrides, args.Error(1)
}

func (m *mockStore) DeleteOverrides(ctx context.Context, orgID, poolID string) (int, error) {
	args := m.Called(ctx, orgID, poolID)
	return args.Int(0), args.Error(1)
}

func (m *mockStore) InsertUsageEvent(ctx context.Context, ev *model.UsageEvent) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *mockStore) Migrate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockStore) Close() error {
	return m.Called().Error(0)
}

type mockAnthropicClient struct {
	mock.Mock
}

var _ anthropic.Client = (*mockAnthropicClient)(nil)

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*anthropic.MessageResponse)
	return resp, args.Error(1)
}

// stubGenerator returns a canned plan or error without touching the API.
type stubGenerator struct {
	result *PlanResult
	err    error
	calls  int
}

var _ Generator = (*stubGenerator)(nil)

func (s *stubGenerator) GeneratePlan(ctx context.Context, req PlanRequest) (*PlanResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func (s *stubGenerator) Model() string { return "stub-model" }
