package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"galleryapi/internal/config"
	"galleryapi/internal/export"
	"galleryapi/internal/http/middleware"
	"galleryapi/internal/model"
	repoMocks "galleryapi/internal/repository/mocks"
	"galleryapi/internal/service"
	serviceMocks "galleryapi/internal/service/mocks"
	"galleryapi/internal/storage"
)

type stubVerifier struct{}

func (stubVerifier) Verify(token string) (*model.Identity, error) {
	switch token {
	case "user":
		return &model.Identity{UserID: "u1", Role: model.RoleUser}, nil
	case "other":
		return &model.Identity{UserID: "u2", Role: model.RoleUser}, nil
	case "admin":
		return &model.Identity{UserID: "a1", Role: model.RoleAdmin}, nil
	}
	return nil, errors.New("bad token")
}

var user1 = &model.Identity{UserID: "u1", Role: model.RoleUser}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Use(middleware.RequestID())
	return app
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	app := newApp()
	app.Get("/health", HealthCheck(db))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decodeError(t, resp)
		assert.False(t, body.Success)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Code)
		assert.NotEmpty(t, body.RequestID)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListMedia(t *testing.T) {
	mockSvc := new(serviceMocks.MockMediaService)
	app := newApp()
	app.Get("/api/media", middleware.OptionalAuth(stubVerifier{}), ListMedia(mockSvc))

	t.Run("success", func(t *testing.T) {
		res := &service.MediaListResult{
			Items:      []service.MediaView{{MediaItem: model.MediaItem{ID: uuid.NewString(), Title: "sea"}}},
			Pagination: service.Pagination{CurrentPage: 2, TotalPages: 2, TotalItems: 13, ItemsPerPage: 12},
		}
		mockSvc.On("List", mock.Anything, service.ListQuery{
			Page: 2, Search: "sea", Tags: []string{"a", "b"}, SortBy: "viewCount", SortOrder: "asc",
		}, user1).Return(res, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/api/media?page=2&search=sea&tags=a,b&sortBy=viewCount&sortOrder=asc", nil)
		req.Header.Set("Authorization", "Bearer user")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Success bool                    `json:"success"`
			Data    service.MediaListResult `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.True(t, body.Success)
		assert.Len(t, body.Data.Items, 1)
		assert.Equal(t, 13, body.Data.Pagination.TotalItems)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/media?limit=abc", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("List", mock.Anything, mock.Anything, (*model.Identity)(nil)).Return(nil, errors.New("db down")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/media", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "INTERNAL_ERROR", body.Code)
		assert.NotContains(t, body.Message, "db down")
		mockSvc.AssertExpectations(t)
	})
}

func multipartBody(t *testing.T, field string, names ...string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, n := range names {
		part, err := w.CreateFormFile(field, n)
		require.NoError(t, err)
		part.Write([]byte("fake image bytes"))
	}
	require.NoError(t, w.WriteField("title", "Holiday"))
	require.NoError(t, w.WriteField("tags", "sea,sun"))
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestUploadMedia(t *testing.T) {
	mockSvc := new(serviceMocks.MockMediaService)
	app := newApp()
	app.Post("/upload", middleware.RequireAuth(stubVerifier{}), UploadMedia(mockSvc))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "image", "beach.png")
		id := uuid.NewString()
		mockSvc.On("Upload", mock.Anything, mock.MatchedBy(func(f service.UploadFile) bool {
			return f.Filename == "beach.png" && f.Size == 16
		}), service.UploadMeta{Title: "Holiday", Tags: "sea,sun"}, user1).
			Return(&service.MediaView{MediaItem: model.MediaItem{ID: id}}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer user")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		var res struct {
			Data service.MediaView `json:"data"`
		}
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, id, res.Data.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		body, ct := multipartBody(t, "image", "beach.png")
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		body2 := decodeError(t, resp)
		assert.Equal(t, "UNAUTHORIZED", body2.Code)
		assert.Equal(t, "Access token required", body2.Message)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", nil)
		req.Header.Set("Authorization", "Bearer user")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "FILE_REQUIRED", decodeError(t, resp).Code)
	})

	t.Run("unsupported type", func(t *testing.T) {
		body, ct := multipartBody(t, "image", "notes.txt")
		mockSvc.On("Upload", mock.Anything, mock.Anything, mock.Anything, user1).
			Return(nil, service.ErrUnsupportedType).Once()

		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer user")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "UNSUPPORTED_TYPE", decodeError(t, resp).Code)
	})
}

func TestUploadMultipleMedia(t *testing.T) {
	mockSvc := new(serviceMocks.MockMediaService)
	app := newApp()
	app.Post("/upload-multiple", middleware.RequireAuth(stubVerifier{}), UploadMultipleMedia(mockSvc))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "images", "a.png", "b.png")
		mockSvc.On("UploadMany", mock.Anything, mock.MatchedBy(func(fs []service.UploadFile) bool {
			return len(fs) == 2 && fs[0].Filename == "a.png" && fs[1].Filename == "b.png"
		}), mock.Anything, user1).Return([]service.MediaView{{}, {}}, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/upload-multiple", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer user")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("too many files", func(t *testing.T) {
		names := make([]string, service.MaxUploadFiles+1)
		for i := range names {
			names[i] = "x.png"
		}
		body, ct := multipartBody(t, "images", names...)

		req := httptest.NewRequest(http.MethodPost, "/upload-multiple", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer user")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "TOO_MANY_FILES", decodeError(t, resp).Code)
	})
}

func TestGetMedia(t *testing.T) {
	mockSvc := new(serviceMocks.MockMediaService)
	app := newApp()
	app.Get("/api/media/:id", middleware.OptionalAuth(stubVerifier{}), GetMedia(mockSvc))

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "success", wantStatus: http.StatusOK},
		{name: "not found", err: service.ErrNotFound, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "forbidden", err: service.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "service error", err: errors.New("db error"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := uuid.NewString()
			if tt.err != nil {
				mockSvc.On("Get", mock.Anything, id, (*model.Identity)(nil)).Return(nil, tt.err).Once()
			} else {
				mockSvc.On("Get", mock.Anything, id, (*model.Identity)(nil)).
					Return(&service.MediaView{MediaItem: model.MediaItem{ID: id}}, nil).Once()
			}

			resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/media/"+id, nil))

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, resp).Code)
			}
			mockSvc.AssertExpectations(t)
		})
	}

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/media/invalid-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Code)
	})
}

func TestUpdateMedia(t *testing.T) {
	mockSvc := new(serviceMocks.MockMediaService)
	app := newApp()
	app.Put("/api/media/:id", middleware.RequireAuth(stubVerifier{}), UpdateMedia(mockSvc))
	id := uuid.NewString()

	mockSvc.On("Update", mock.Anything, id, mock.MatchedBy(func(in service.UpdateInput) bool {
		return in.Title != nil && *in.Title == "New" && in.Visibility != nil && *in.Visibility == model.VisibilityPrivate
	}), mock.Anything).Return(&service.MediaView{MediaItem: model.MediaItem{ID: id, Title: "New"}}, nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/api/media/"+id, strings.NewReader(`{"title":"New","visibility":"private"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer admin")
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	mockSvc.AssertExpectations(t)

	t.Run("validation error", func(t *testing.T) {
		mockSvc.On("Update", mock.Anything, id, mock.Anything, mock.Anything).
			Return(nil, errors.Join(service.ErrInvalidInput, errors.New("title too long"))).Once()

		req := httptest.NewRequest(http.MethodPut, "/api/media/"+id, strings.NewReader(`{"title":"x"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer user")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", decodeError(t, resp).Code)
	})
}

func TestDeleteMedia(t *testing.T) {
	mockSvc := new(serviceMocks.MockMediaService)
	app := newApp()
	app.Delete("/api/media/:id", middleware.RequireAuth(stubVerifier{}), DeleteMedia(mockSvc))

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "success", wantStatus: http.StatusNoContent},
		{name: "not found", err: service.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "forbidden", err: service.ErrForbidden, wantStatus: http.StatusForbidden},
		{name: "service error", err: errors.New("delete error"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := uuid.NewString()
			mockSvc.On("Delete", mock.Anything, id, user1).Return(tt.err).Once()

			req := httptest.NewRequest(http.MethodDelete, "/api/media/"+id, nil)
			req.Header.Set("Authorization", "Bearer user")
			resp, _ := app.Test(req)

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			mockSvc.AssertExpectations(t)
		})
	}
}

func TestToggleLike(t *testing.T) {
	mockSvc := new(serviceMocks.MockMediaService)
	app := newApp()
	app.Post("/api/media/:id/like", middleware.RequireAuth(stubVerifier{}), ToggleLike(mockSvc))
	id := uuid.NewString()

	mockSvc.On("ToggleLike", mock.Anything, id, user1).
		Return(&service.MediaView{MediaItem: model.MediaItem{ID: id, Likes: []string{"u1"}}, LikeCount: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/media/"+id+"/like", nil)
	req.Header.Set("Authorization", "Bearer user")
	resp, _ := app.Test(req)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data struct {
			Liked     bool `json:"liked"`
			LikeCount int  `json:"likeCount"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Data.Liked)
	assert.Equal(t, 1, body.Data.LikeCount)
}

func TestDownloadMedia(t *testing.T) {
	mockSvc := new(serviceMocks.MockMediaService)
	app := newApp()
	app.Get("/api/media/:id/download", DownloadMedia(mockSvc))

	t.Run("streams file", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Download", mock.Anything, id, (*model.Identity)(nil)).Return(&service.Download{
			Item:     &model.MediaItem{ID: id, MimeType: "image/png"},
			Body:     io.NopCloser(strings.NewReader("pngdata")),
			Filename: "Sunset.png",
			Size:     7,
		}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/media/"+id+"/download", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
		assert.Equal(t, `attachment; filename="Sunset.png"`, resp.Header.Get("Content-Disposition"))
		data, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "pngdata", string(data))
	})

	t.Run("file missing", func(t *testing.T) {
		id := uuid.NewString()
		mockSvc.On("Download", mock.Anything, id, (*model.Identity)(nil)).Return(nil, service.ErrFileMissing).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/media/"+id+"/download", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "FILE_NOT_FOUND", decodeError(t, resp).Code)
	})
}

// exportFixture wires a real export coordinator over on-disk storage.
type exportFixture struct {
	repo    *repoMocks.MockMediaRepository
	store   *storage.LocalStorage
	counter *export.UsageCounter
	coord   *export.Coordinator
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)
	repo := new(repoMocks.MockMediaRepository)
	counter := export.NewUsageCounter(repo, zap.NewNop(), time.Second)
	coord := export.NewCoordinator(repo, store, counter, zap.NewNop(), export.Options{MaxItems: 5})
	return &exportFixture{repo: repo, store: store, counter: counter, coord: coord}
}

func (f *exportFixture) add(t *testing.T, title string, vis model.Visibility, withFile bool) model.MediaItem {
	t.Helper()
	id := uuid.NewString()
	item := model.MediaItem{
		ID:         id,
		Title:      title,
		StorageKey: "media/" + id + ".png",
		OwnerID:    "u1",
		Visibility: vis,
		Lifecycle:  model.LifecycleActive,
	}
	if withFile {
		_, err := f.store.Put(context.Background(), item.StorageKey, strings.NewReader("bytes of "+title), storage.PutObjectOptions{})
		require.NoError(t, err)
	}
	return item
}

func postZip(app *fiber.App, body, token string) (*http.Response, error) {
	req := httptest.NewRequest(http.MethodPost, "/api/media/download-zip", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return app.Test(req, -1)
}

func idsBody(ids ...string) string {
	b, _ := json.Marshal(downloadZipRequest{MediaIDs: ids})
	return string(b)
}

func TestDownloadZip(t *testing.T) {
	t.Run("streams archive in request order", func(t *testing.T) {
		f := newExportFixture(t)
		a := f.add(t, "Sunset", model.VisibilityPublic, true)
		b := f.add(t, "Sunset", model.VisibilityPublic, true)
		gone := f.add(t, "Gone", model.VisibilityPublic, false)
		f.repo.On("FindActiveByIDs", mock.Anything, []string{b.ID, a.ID, gone.ID}).Return([]model.MediaItem{a, gone, b}, nil)
		f.repo.On("IncrementDownloadCount", mock.Anything, mock.Anything).Return(nil)

		app := newApp()
		app.Post("/api/media/download-zip", middleware.OptionalAuth(stubVerifier{}), DownloadZip(f.coord, zap.NewNop()))

		resp, err := postZip(app, idsBody(b.ID, a.ID, gone.ID), "")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/zip", resp.Header.Get("Content-Type"))
		assert.Regexp(t, `^attachment; filename="media-gallery-\d+\.zip"$`, resp.Header.Get("Content-Disposition"))

		data, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		require.Len(t, zr.File, 2)
		assert.Equal(t, "Sunset.jpg", zr.File[0].Name)
		assert.Equal(t, "Sunset_"+a.ID+".jpg", zr.File[1].Name)

		f.counter.Wait()
		f.repo.AssertCalled(t, "IncrementDownloadCount", mock.Anything, a.ID)
		f.repo.AssertCalled(t, "IncrementDownloadCount", mock.Anything, b.ID)
		f.repo.AssertNotCalled(t, "IncrementDownloadCount", mock.Anything, gone.ID)
	})

	t.Run("errors before streaming", func(t *testing.T) {
		f := newExportFixture(t)
		private := f.add(t, "Secret", model.VisibilityPrivate, true)
		missing := f.add(t, "Missing", model.VisibilityPublic, false)
		unknown := uuid.NewString()
		f.repo.On("FindActiveByIDs", mock.Anything, []string{private.ID}).Return([]model.MediaItem{private}, nil)
		f.repo.On("FindActiveByIDs", mock.Anything, []string{missing.ID}).Return([]model.MediaItem{missing}, nil)
		f.repo.On("FindActiveByIDs", mock.Anything, []string{unknown}).Return([]model.MediaItem{}, nil)

		app := newApp()
		app.Post("/api/media/download-zip", middleware.OptionalAuth(stubVerifier{}), DownloadZip(f.coord, zap.NewNop()))

		tests := []struct {
			name       string
			body       string
			token      string
			wantStatus int
			wantCode   string
		}{
			{name: "empty list", body: `{"mediaIds":[]}`, wantStatus: 400, wantCode: "INVALID_REQUEST"},
			{name: "missing field", body: `{}`, wantStatus: 400, wantCode: "INVALID_REQUEST"},
			{name: "malformed body", body: `{"mediaIds":`, wantStatus: 400, wantCode: "INVALID_REQUEST"},
			{name: "malformed id", body: idsBody("nope"), wantStatus: 400, wantCode: "INVALID_REQUEST"},
			{name: "over limit", body: idsBody(uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString(), uuid.NewString()), wantStatus: 400, wantCode: "INVALID_REQUEST"},
			{name: "unknown ids", body: idsBody(unknown), wantStatus: 404, wantCode: "NOT_FOUND"},
			{name: "private for anonymous", body: idsBody(private.ID), wantStatus: 403, wantCode: "ACCESS_DENIED"},
			{name: "private for other user", body: idsBody(private.ID), token: "other", wantStatus: 403, wantCode: "ACCESS_DENIED"},
			{name: "no files", body: idsBody(missing.ID), wantStatus: 404, wantCode: "NO_CONTENT"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp, err := postZip(app, tt.body, tt.token)
				require.NoError(t, err)

				assert.Equal(t, tt.wantStatus, resp.StatusCode)
				assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")
				assert.Empty(t, resp.Header.Get("Content-Disposition"))
				body := decodeError(t, resp)
				assert.Equal(t, tt.wantCode, body.Code)
				assert.NotEmpty(t, body.Message)
			})
		}
	})

	t.Run("owner exports own private item", func(t *testing.T) {
		f := newExportFixture(t)
		private := f.add(t, "Mine", model.VisibilityPrivate, true)
		f.repo.On("FindActiveByIDs", mock.Anything, []string{private.ID}).Return([]model.MediaItem{private}, nil)
		f.repo.On("IncrementDownloadCount", mock.Anything, private.ID).Return(nil)

		app := newApp()
		app.Post("/api/media/download-zip", middleware.OptionalAuth(stubVerifier{}), DownloadZip(f.coord, zap.NewNop()))

		resp, err := postZip(app, idsBody(strings.ToUpper(private.ID)), "user")
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		data, _ := io.ReadAll(resp.Body)
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, "Mine.jpg", zr.File[0].Name)
		f.counter.Wait()
	})
}

func configFor(limit int) config.RateLimitConfig {
	return config.RateLimitConfig{ExportLimit: limit, Window: time.Minute}
}

type fakeCounter struct{ hits int64 }

func (f *fakeCounter) Hit(context.Context, string, time.Duration) (int64, time.Duration, error) {
	f.hits++
	return f.hits, 30 * time.Second, nil
}

func TestRouting(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mockSvc := new(serviceMocks.MockMediaService)
	app := newApp()
	RegisterRoutes(app, Dependencies{
		DB:       db,
		Media:    mockSvc,
		Exporter: newExportFixture(t).coord,
		Tokens:   stubVerifier{},
		Limiter:  &fakeCounter{},
		Gatherer: prometheus.NewRegistry(),
		Log:      zap.NewNop(),
	})

	t.Run("not found route", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/non-existent", nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Code)
	})

	t.Run("method not allowed", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/health", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		assert.Equal(t, "METHOD_NOT_ALLOWED", decodeError(t, resp).Code)
	})

	t.Run("popular is not taken for an id", func(t *testing.T) {
		mockSvc.On("Popular", mock.Anything, 0).Return([]service.MediaView{}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/media/popular", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("upload requires auth", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodPost, "/api/media/upload", nil))

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "UNAUTHORIZED", decodeError(t, resp).Code)
	})

	t.Run("export is rate limited", func(t *testing.T) {
		limited := newApp()
		RegisterRoutes(limited, Dependencies{
			DB:        db,
			Media:     mockSvc,
			Exporter:  newExportFixture(t).coord,
			Tokens:    stubVerifier{},
			Limiter:   &fakeCounter{hits: 5},
			RateLimit: configFor(5),
			Log:       zap.NewNop(),
		})

		resp, err := postZip(limited, `{"mediaIds":[]}`, "")
		require.NoError(t, err)

		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		assert.Equal(t, "30", resp.Header.Get("Retry-After"))
		assert.Equal(t, "TOO_MANY_REQUESTS", decodeError(t, resp).Code)
	})

	t.Run("metrics exposed", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}
