package mocks

import (
	"context"

	"galleryapi/internal/model"
	"galleryapi/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockMediaService struct {
	mock.Mock
}

var _ service.MediaService = (*MockMediaService)(nil)

func (m *MockMediaService) Upload(ctx context.Context, file service.UploadFile, meta service.UploadMeta, owner *model.Identity) (*service.MediaView, error) {
	args := m.Called(ctx, file, meta, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MediaView), args.Error(1)
}

func (m *MockMediaService) UploadMany(ctx context.Context, files []service.UploadFile, meta service.UploadMeta, owner *model.Identity) ([]service.MediaView, error) {
	args := m.Called(ctx, files, meta, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.MediaView), args.Error(1)
}

func (m *MockMediaService) List(ctx context.Context, q service.ListQuery, requester *model.Identity) (*service.MediaListResult, error) {
	args := m.Called(ctx, q, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MediaListResult), args.Error(1)
}

func (m *MockMediaService) Popular(ctx context.Context, limit int) ([]service.MediaView, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.MediaView), args.Error(1)
}

func (m *MockMediaService) Recent(ctx context.Context, limit int) ([]service.MediaView, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.MediaView), args.Error(1)
}

func (m *MockMediaService) ListByUser(ctx context.Context, userID string, page, limit int, requester *model.Identity) (*service.MediaListResult, error) {
	args := m.Called(ctx, userID, page, limit, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MediaListResult), args.Error(1)
}

func (m *MockMediaService) Get(ctx context.Context, id string, requester *model.Identity) (*service.MediaView, error) {
	args := m.Called(ctx, id, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MediaView), args.Error(1)
}

func (m *MockMediaService) Update(ctx context.Context, id string, in service.UpdateInput, requester *model.Identity) (*service.MediaView, error) {
	args := m.Called(ctx, id, in, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MediaView), args.Error(1)
}

func (m *MockMediaService) Delete(ctx context.Context, id string, requester *model.Identity) error {
	args := m.Called(ctx, id, requester)
	return args.Error(0)
}

func (m *MockMediaService) ToggleLike(ctx context.Context, id string, requester *model.Identity) (*service.MediaView, error) {
	args := m.Called(ctx, id, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.MediaView), args.Error(1)
}

func (m *MockMediaService) Download(ctx context.Context, id string, requester *model.Identity) (*service.Download, error) {
	args := m.Called(ctx, id, requester)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Download), args.Error(1)
}
