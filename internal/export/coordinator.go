package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"galleryapi/internal/model"
	"galleryapi/internal/storage"
)

// MediaLookup finds active media by id.
type MediaLookup interface {
	FindActiveByIDs(ctx context.Context, ids []string) ([]model.MediaItem, error)
}

// Store is the part of storage.Storage an export reads from.
type Store interface {
	ObjectReader
	Stat(ctx context.Context, key string) (storage.ObjectInfo, error)
}

// Recorder receives one call per archived item.
type Recorder interface {
	Record(ctx context.Context, id string)
}

// Plan is a validated export ready to stream. Building it touches no sink,
// so every expected failure is known before a response is committed.
type Plan struct {
	Filename  string
	Entries   []Entry
	Requested int
	Denied    int
	Skipped   []string
}

// Outcome summarises a finished export.
type Outcome struct {
	Filename  string
	Requested int
	Archived  int
	Skipped   int
	Denied    int
}

// Options tunes a Coordinator.
type Options struct {
	// MaxItems caps the number of distinct ids per request. Zero means no cap.
	MaxItems int
	Metrics  *Metrics
}

// Coordinator runs the export pipeline: lookup, access check, naming,
// archiving and usage counting.
type Coordinator struct {
	repo     MediaLookup
	store    Store
	builder  *Builder
	counter  Recorder
	log      *zap.Logger
	metrics  *Metrics
	maxItems int
	tracer   trace.Tracer
	now      func() time.Time
}

// NewCoordinator creates a Coordinator. Metrics in opts may be nil.
func NewCoordinator(repo MediaLookup, store Store, counter Recorder, log *zap.Logger, opts Options) *Coordinator {
	log = log.Named("export")
	return &Coordinator{
		repo:     repo,
		store:    store,
		builder:  NewBuilder(store, log),
		counter:  counter,
		log:      log,
		metrics:  opts.Metrics,
		maxItems: opts.MaxItems,
		tracer:   otel.Tracer("galleryapi/internal/export"),
		now:      time.Now,
	}
}

// Export prepares and streams in one call.
func (c *Coordinator) Export(ctx context.Context, ids []string, requester *model.Identity, sink io.Writer) (Outcome, error) {
	plan, err := c.Prepare(ctx, ids, requester)
	if err != nil {
		return Outcome{}, err
	}
	return c.Stream(ctx, plan, sink)
}

// normalizeIDs rejects empty or malformed input and removes duplicates,
// keeping the first occurrence.
func (c *Coordinator) normalizeIDs(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, invalid("Please provide valid image IDs")
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil, invalid("Please provide valid image IDs")
		}
		u, err := uuid.Parse(raw)
		if err != nil {
			return nil, invalid("Invalid image ID: %s", raw)
		}
		id := u.String()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if c.maxItems > 0 && len(out) > c.maxItems {
		return nil, invalid("At most %d images can be downloaded at once", c.maxItems)
	}
	return out, nil
}

// Prepare resolves ids into an ordered list of archive entries whose
// sources exist. It returns ErrInvalidRequest, ErrNotFound, ErrAccessDenied
// or ErrNoContentAvailable for the expected failures.
func (c *Coordinator) Prepare(ctx context.Context, ids []string, requester *model.Identity) (plan *Plan, err error) {
	ctx, span := c.tracer.Start(ctx, "export.Prepare", trace.WithAttributes(attribute.Int("export.requested_raw", len(ids))))
	defer func() {
		c.endSpan(span, err)
		if err != nil {
			c.metrics.request(KindOf(err).String())
		}
	}()

	ids, err = c.normalizeIDs(ids)
	if err != nil {
		return nil, err
	}

	found, err := c.repo.FindActiveByIDs(ctx, ids)
	if err != nil {
		return nil, internal("lookup media", err)
	}
	if len(found) == 0 {
		return nil, &Error{Kind: KindNotFound, Message: "No media found"}
	}

	permitted := Permitted(inRequestOrder(ids, found), requester)
	denied := len(found) - len(permitted)
	c.metrics.entry("denied", denied)
	if len(permitted) == 0 {
		return nil, &Error{Kind: KindAccessDenied, Message: "Access denied to the requested images"}
	}

	entries := AssignNames(permitted)
	present := make([]Entry, 0, len(entries))
	skipped := make([]string, 0)
	for _, e := range entries {
		if _, err := c.store.Stat(ctx, e.Item.StorageKey); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				skipped = append(skipped, e.Item.ID)
				continue
			}
			return nil, internal("stat source "+e.Item.ID, err)
		}
		present = append(present, e)
	}
	if len(present) == 0 {
		c.metrics.entry("skipped", len(skipped))
		return nil, &Error{Kind: KindNoContentAvailable, Message: "No files found to download"}
	}

	span.SetAttributes(
		attribute.Int("export.requested", len(ids)),
		attribute.Int("export.denied", denied),
		attribute.Int("export.entries", len(present)),
	)
	return &Plan{
		Filename:  fmt.Sprintf("media-gallery-%d.zip", c.now().UnixMilli()),
		Entries:   present,
		Requested: len(ids),
		Denied:    denied,
		Skipped:   skipped,
	}, nil
}

func inRequestOrder(ids []string, items []model.MediaItem) []model.MediaItem {
	byID := make(map[string]model.MediaItem, len(items))
	for _, it := range items {
		byID[strings.ToLower(it.ID)] = it
	}
	out := make([]model.MediaItem, 0, len(items))
	for _, id := range ids {
		if it, ok := byID[id]; ok {
			out = append(out, it)
		}
	}
	return out
}

// Stream writes the planned archive to sink and records a download for each
// archived entry. Once bytes have reached sink a failure can only end the
// stream; the caller must not try to write an error response.
func (c *Coordinator) Stream(ctx context.Context, plan *Plan, sink io.Writer) (out Outcome, err error) {
	ctx, span := c.tracer.Start(ctx, "export.Stream", trace.WithAttributes(attribute.Int("export.entries", len(plan.Entries))))
	defer func() {
		c.endSpan(span, err)
		switch {
		case err == nil:
			c.metrics.request("success")
		case errors.Is(err, ErrSinkClosed) || errors.Is(err, context.Canceled):
			c.metrics.request("client_disconnected")
		default:
			c.metrics.request(KindOf(err).String())
		}
	}()

	res, err := c.builder.Build(ctx, plan.Entries, sink, func(e Entry) {
		c.counter.Record(ctx, e.Item.ID)
	})

	skipped := len(plan.Skipped) + len(res.Skipped)
	c.metrics.entry("archived", len(res.Archived))
	c.metrics.entry("skipped", skipped)

	out = Outcome{
		Filename:  plan.Filename,
		Requested: plan.Requested,
		Archived:  len(res.Archived),
		Skipped:   skipped,
		Denied:    plan.Denied,
	}

	if err != nil {
		fields := []zap.Field{
			zap.String("filename", plan.Filename),
			zap.Int("archived", out.Archived),
			zap.Error(err),
		}
		if errors.Is(err, ErrSinkClosed) || errors.Is(err, context.Canceled) {
			c.log.Info("export aborted by client", fields...)
		} else {
			c.log.Error("export failed", fields...)
		}
		return out, err
	}

	if skipped > 0 {
		c.log.Warn("export completed with missing files",
			zap.String("filename", plan.Filename),
			zap.Int("archived", out.Archived),
			zap.Int("skipped", skipped),
			zap.Strings("skipped_ids", append(plan.Skipped, res.Skipped...)),
		)
	} else {
		c.log.Info("export completed",
			zap.String("filename", plan.Filename),
			zap.Int("archived", out.Archived),
		)
	}
	return out, nil
}

func (c *Coordinator) endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	span.End()
}
