package mocks

import (
	"context"

	"galleryapi/internal/model"
	"galleryapi/internal/repository"
	"github.com/stretchr/testify/mock"
)

type MockMediaRepository struct {
	mock.Mock
}

func (m *MockMediaRepository) Create(ctx context.Context, item *model.MediaItem) (*model.MediaItem, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MediaItem), args.Error(1)
}

func (m *MockMediaRepository) FindByID(ctx context.Context, id string) (*model.MediaItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MediaItem), args.Error(1)
}

func (m *MockMediaRepository) FindActiveByIDs(ctx context.Context, ids []string) ([]model.MediaItem, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.MediaItem), args.Error(1)
}

func (m *MockMediaRepository) List(ctx context.Context, f repository.MediaFilter, pq repository.PageQuery) (*repository.PageResult[model.MediaItem], error) {
	args := m.Called(ctx, f, pq)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.MediaItem]), args.Error(1)
}

func (m *MockMediaRepository) Update(ctx context.Context, item *model.MediaItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *MockMediaRepository) SoftDelete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMediaRepository) IncrementDownloadCount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMediaRepository) IncrementViewCount(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockMediaRepository) ToggleLike(ctx context.Context, id, userID string) (*model.MediaItem, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MediaItem), args.Error(1)
}
