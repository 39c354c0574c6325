package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"galleryapi/internal/http/middleware"
	"galleryapi/internal/model"
	"galleryapi/internal/service"
)

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

func writeData(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(dataResponse{Success: true, Data: data})
}

// writeServiceError translates service errors into the JSON error envelope.
func writeServiceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrIDRequired):
		return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "id is required")
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "Media not found")
	case errors.Is(err, service.ErrForbidden):
		return writeError(c, fiber.StatusForbidden, "FORBIDDEN", "Access denied")
	case errors.Is(err, service.ErrUnauthenticated):
		return writeError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", "Access token required")
	case errors.Is(err, service.ErrFileMissing):
		return writeError(c, fiber.StatusNotFound, "FILE_NOT_FOUND", "File not found on server")
	case errors.Is(err, service.ErrNoFile):
		return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "No image file provided")
	case errors.Is(err, service.ErrTooManyFiles):
		return writeError(c, fiber.StatusBadRequest, "TOO_MANY_FILES", fmt.Sprintf("At most %d files per upload", service.MaxUploadFiles))
	case errors.Is(err, service.ErrFileTooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large")
	case errors.Is(err, service.ErrUnsupportedType):
		return writeError(c, fiber.StatusBadRequest, "UNSUPPORTED_TYPE", service.ErrUnsupportedType.Error())
	case errors.Is(err, service.ErrInvalidInput):
		return writeError(c, fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		return writeInternal(c, err)
	}
}

func mediaID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return strings.ToLower(id), true
}

func queryInt(c *fiber.Ctx, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// ListMedia godoc
// @Summary List media
// @Description Public items for everyone; administrators also see private items.
// @Tags media
// @Produce json
// @Param page query int false "Page, 1-based"
// @Param limit query int false "Items per page (max 100)"
// @Param search query string false "Matches title, description and tags"
// @Param tags query string false "Comma separated tags, any of"
// @Param owner query string false "Owner user id"
// @Param sortBy query string false "createdAt, viewCount, downloadCount or title"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} dataResponse{data=service.MediaListResult}
// @Failure 400 {object} errorPayload
// @Router /api/media [get]
func ListMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := queryInt(c, "page")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
		}
		limit, err := queryInt(c, "limit")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}

		res, err := svc.List(c.UserContext(), service.ListQuery{
			Page:      page,
			Limit:     limit,
			Search:    c.Query("search"),
			Tags:      splitCSV(c.Query("tags")),
			OwnerID:   c.Query("owner"),
			SortBy:    c.Query("sortBy"),
			SortOrder: c.Query("sortOrder"),
		}, middleware.IdentityFrom(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return writeData(c, fiber.StatusOK, res)
	}
}

// PopularMedia godoc
// @Summary Most viewed public media
// @Tags media
// @Produce json
// @Param limit query int false "Number of items"
// @Success 200 {object} dataResponse{data=[]service.MediaView}
// @Router /api/media/popular [get]
func PopularMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := queryInt(c, "limit")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		items, err := svc.Popular(c.UserContext(), limit)
		if err != nil {
			return writeServiceError(c, err)
		}
		return writeData(c, fiber.StatusOK, fiber.Map{"media": items})
	}
}

// RecentMedia godoc
// @Summary Newest public media
// @Tags media
// @Produce json
// @Param limit query int false "Number of items"
// @Success 200 {object} dataResponse{data=[]service.MediaView}
// @Router /api/media/recent [get]
func RecentMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := queryInt(c, "limit")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		items, err := svc.Recent(c.UserContext(), limit)
		if err != nil {
			return writeServiceError(c, err)
		}
		return writeData(c, fiber.StatusOK, fiber.Map{"media": items})
	}
}

// UserMedia godoc
// @Summary Media uploaded by one user
// @Tags media
// @Produce json
// @Param userId path string true "Owner user id"
// @Param page query int false "Page, 1-based"
// @Param limit query int false "Items per page"
// @Success 200 {object} dataResponse{data=service.MediaListResult}
// @Router /api/media/user/{userId} [get]
func UserMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := queryInt(c, "page")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid page")
		}
		limit, err := queryInt(c, "limit")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		res, err := svc.ListByUser(c.UserContext(), c.Params("userId"), page, limit, middleware.IdentityFrom(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return writeData(c, fiber.StatusOK, res)
	}
}

func uploadMeta(c *fiber.Ctx) service.UploadMeta {
	return service.UploadMeta{
		Title:       c.FormValue("title"),
		Description: c.FormValue("description"),
		Tags:        c.FormValue("tags"),
	}
}

// UploadMedia godoc
// @Summary Upload one image
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "JPEG, PNG or WebP image"
// @Param title formData string false "Title, defaults to the file name"
// @Param description formData string false "Description"
// @Param tags formData string false "Comma separated tags"
// @Success 201 {object} dataResponse{data=service.MediaView}
// @Failure 400 {object} errorPayload
// @Failure 401 {object} errorPayload
// @Router /api/media/upload [post]
func UploadMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("image")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "No image file provided")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		v, err := svc.Upload(c.UserContext(), service.UploadFile{
			Filename: fh.Filename,
			Size:     fh.Size,
			Content:  f,
		}, uploadMeta(c), middleware.IdentityFrom(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return writeData(c, fiber.StatusCreated, v)
	}
}

// UploadMultipleMedia godoc
// @Summary Upload several images
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param images formData file true "Up to 10 images"
// @Param title formData string false "Shared title"
// @Param description formData string false "Shared description"
// @Param tags formData string false "Comma separated tags"
// @Success 201 {object} dataResponse{data=[]service.MediaView}
// @Failure 400 {object} errorPayload
// @Router /api/media/upload-multiple [post]
func UploadMultipleMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		form, err := c.MultipartForm()
		if err != nil || len(form.File["images"]) == 0 {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "No image files provided")
		}
		headers := form.File["images"]
		if len(headers) > service.MaxUploadFiles {
			return writeServiceError(c, service.ErrTooManyFiles)
		}

		files := make([]service.UploadFile, 0, len(headers))
		opened := make([]multipart.File, 0, len(headers))
		defer func() {
			for _, f := range opened {
				f.Close()
			}
		}()
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			opened = append(opened, f)
			files = append(files, service.UploadFile{Filename: fh.Filename, Size: fh.Size, Content: f})
		}

		views, err := svc.UploadMany(c.UserContext(), files, uploadMeta(c), middleware.IdentityFrom(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return writeData(c, fiber.StatusCreated, fiber.Map{"media": views})
	}
}

// GetMedia godoc
// @Summary Media detail
// @Description Counts a view.
// @Tags media
// @Produce json
// @Param id path string true "Media ID (UUID)"
// @Success 200 {object} dataResponse{data=service.MediaView}
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/media/{id} [get]
func GetMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, valid := mediaID(c)
		if !valid {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		v, err := svc.Get(c.UserContext(), id, middleware.IdentityFrom(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return writeData(c, fiber.StatusOK, v)
	}
}

type updateRequest struct {
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	Tags        []string          `json:"tags"`
	Visibility  *model.Visibility `json:"visibility"`
}

// UpdateMedia godoc
// @Summary Edit media metadata
// @Description Owner or administrator. Visibility changes are applied for administrators only.
// @Tags media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID (UUID)"
// @Param body body updateRequest true "Fields to change"
// @Success 200 {object} dataResponse{data=service.MediaView}
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Router /api/media/{id} [put]
func UpdateMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, valid := mediaID(c)
		if !valid {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		var req updateRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		v, err := svc.Update(c.UserContext(), id, service.UpdateInput{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			Visibility:  req.Visibility,
		}, middleware.IdentityFrom(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		return writeData(c, fiber.StatusOK, v)
	}
}

// DeleteMedia godoc
// @Summary Delete media
// @Tags media
// @Security BearerAuth
// @Param id path string true "Media ID (UUID)"
// @Success 204
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/media/{id} [delete]
func DeleteMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, valid := mediaID(c)
		if !valid {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id, middleware.IdentityFrom(c)); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ToggleLike godoc
// @Summary Like or unlike media
// @Tags media
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID (UUID)"
// @Success 200 {object} dataResponse
// @Failure 404 {object} errorPayload
// @Router /api/media/{id}/like [post]
func ToggleLike(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, valid := mediaID(c)
		if !valid {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		who := middleware.IdentityFrom(c)
		v, err := svc.ToggleLike(c.UserContext(), id, who)
		if err != nil {
			return writeServiceError(c, err)
		}
		return writeData(c, fiber.StatusOK, fiber.Map{
			"liked":     v.LikedBy(who.UserID),
			"likeCount": v.LikeCount,
		})
	}
}

// DownloadMedia godoc
// @Summary Download the original file
// @Description Counts a download.
// @Tags media
// @Produce octet-stream
// @Param id path string true "Media ID (UUID)"
// @Success 200 {file} file
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /api/media/{id}/download [get]
func DownloadMedia(svc service.MediaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, valid := mediaID(c)
		if !valid {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		d, err := svc.Download(c.UserContext(), id, middleware.IdentityFrom(c))
		if err != nil {
			return writeServiceError(c, err)
		}
		c.Set(fiber.HeaderContentType, d.Item.MimeType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, d.Filename))
		return c.SendStream(d.Body, int(d.Size))
	}
}
