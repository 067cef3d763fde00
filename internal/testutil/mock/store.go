package mock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bulksend/bulksend/internal/model"
	"github.com/bulksend/bulksend/internal/store"
)

// MockStore mocks the store.Store interface.
type MockStore struct{ mock.Mock }

func (m *MockStore) InsertBatch(ctx context.Context, fromAddress string, items []store.BatchItem) ([]uuid.UUID, [][]uuid.UUID, error) {
	args := m.Called(ctx, fromAddress, items)
	var contentIDs []uuid.UUID
	if args.Get(0) != nil {
		contentIDs = args.Get(0).([]uuid.UUID)
	}
	var requestIDs [][]uuid.UUID
	if args.Get(1) != nil {
		requestIDs = args.Get(1).([][]uuid.UUID)
	}
	return contentIDs, requestIDs, args.Error(2)
}

func (m *MockStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]model.ClaimedRequest, error) {
	args := m.Called(ctx, now, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ClaimedRequest), args.Error(1)
}

func (m *MockStore) GetContent(ctx context.Context, id uuid.UUID) (*model.EmailContent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.EmailContent), args.Error(1)
}

func (m *MockStore) FinalizeBatch(ctx context.Context, outcomes []store.Outcome) error {
	return m.Called(ctx, outcomes).Error(0)
}

func (m *MockStore) StopTopic(ctx context.Context, topicID uuid.UUID) (int64, error) {
	args := m.Called(ctx, topicID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) CountsByTopic(ctx context.Context, topicID uuid.UUID) (*model.TopicCounts, error) {
	args := m.Called(ctx, topicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.TopicCounts), args.Error(1)
}

func (m *MockStore) SentCount(ctx context.Context, window time.Duration) (int64, error) {
	args := m.Called(ctx, window)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) AppendResult(ctx context.Context, requestID uuid.UUID, eventType, payload string) error {
	return m.Called(ctx, requestID, eventType, payload).Error(0)
}

func (m *MockStore) RequestIDForMessageID(ctx context.Context, messageID string) (uuid.UUID, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockStore) SweepStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
