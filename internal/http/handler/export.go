package handler

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"galleryapi/internal/export"
	"galleryapi/internal/http/middleware"
	"galleryapi/internal/model"
)

// Exporter is the bulk export pipeline. Prepare reports every expected
// failure before anything is written; Stream only runs once headers are out.
type Exporter interface {
	Prepare(ctx context.Context, ids []string, requester *model.Identity) (*export.Plan, error)
	Stream(ctx context.Context, plan *export.Plan, sink io.Writer) (export.Outcome, error)
}

type downloadZipRequest struct {
	MediaIDs []string `json:"mediaIds"`
}

var exportCodes = map[export.Kind]string{
	export.KindInvalidRequest:     "INVALID_REQUEST",
	export.KindNotFound:           "NOT_FOUND",
	export.KindAccessDenied:       "ACCESS_DENIED",
	export.KindNoContentAvailable: "NO_CONTENT",
	export.KindInternal:           "INTERNAL_ERROR",
}

func writeExportError(c *fiber.Ctx, err error) error {
	if export.KindOf(err) == export.KindInternal {
		c.Locals(middleware.ErrorLocalKey, err)
	}
	return writeError(c, export.StatusCode(err), exportCodes[export.KindOf(err)], export.Message(err))
}

// DownloadZip godoc
// @Summary Download several images as one ZIP archive
// @Description Anonymous callers may export public items; owners and administrators may also export private ones.
// @Description Entries keep the request order. Items whose file is missing are left out.
// @Tags media
// @Accept json
// @Produce application/zip
// @Param body body downloadZipRequest true "Media IDs to export"
// @Success 200 {file} file
// @Failure 400 {object} errorPayload
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Failure 429 {object} errorPayload
// @Router /api/media/download-zip [post]
func DownloadZip(exp Exporter, log *zap.Logger) fiber.Handler {
	log = log.Named("export")

	return func(c *fiber.Ctx) error {
		var req downloadZipRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_REQUEST", "Please provide valid image IDs")
		}

		ctx := c.UserContext()
		plan, err := exp.Prepare(ctx, req.MediaIDs, middleware.IdentityFrom(c))
		if err != nil {
			return writeExportError(c, err)
		}

		c.Set(fiber.HeaderContentType, "application/zip")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, plan.Filename))
		c.Status(fiber.StatusOK)

		// The writer runs after this handler returns, so it must not touch c.
		rid := middleware.RequestIDFrom(c)
		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			if _, err := exp.Stream(ctx, plan, w); err != nil {
				log.Debug("export stream ended early", zap.String("request_id", rid), zap.Error(err))
			}
		})
		return nil
	}
}
