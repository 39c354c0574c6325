package mongo

import (
	"context"
	"errors"
	"regexp"
	"time"

	"galleryapi/internal/model"
	"galleryapi/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MediaMongo is a MongoDB implementation of repository.MediaRepository.
// Documents use the item UUID as a string _id.
type MediaMongo struct {
	coll *mongo.Collection
}

// NewMediaMongo wraps an existing collection.
func NewMediaMongo(coll *mongo.Collection) *MediaMongo {
	return &MediaMongo{coll: coll}
}

var _ repository.MediaRepository = (*MediaMongo)(nil)

// Indexes returns the index set the media collection is expected to carry.
func Indexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "ownerId", Value: 1}}, Options: options.Index().SetName("owner_idx")},
		{Keys: bson.D{{Key: "tags", Value: 1}}, Options: options.Index().SetName("tags_idx")},
		{Keys: bson.D{{Key: "visibility", Value: 1}}, Options: options.Index().SetName("visibility_idx")},
		{Keys: bson.D{{Key: "lifecycle", Value: 1}}, Options: options.Index().SetName("lifecycle_idx")},
		{Keys: bson.D{{Key: "createdAt", Value: -1}}, Options: options.Index().SetName("created_at_idx")},
		{
			Keys: bson.D{
				{Key: "title", Value: "text"},
				{Key: "description", Value: "text"},
				{Key: "tags", Value: "text"},
			},
			Options: options.Index().SetName("text_idx"),
		},
	}
}

// EnsureIndexes creates the media indexes. It is idempotent.
func (r *MediaMongo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, Indexes())
	return err
}

func activeByID(id string) bson.M {
	return bson.M{"_id": id, "lifecycle": model.LifecycleActive}
}

func (r *MediaMongo) Create(ctx context.Context, item *model.MediaItem) (*model.MediaItem, error) {
	if _, err := r.coll.InsertOne(ctx, item); err != nil {
		return nil, err
	}
	out := *item
	return &out, nil
}

func (r *MediaMongo) FindByID(ctx context.Context, id string) (*model.MediaItem, error) {
	var m model.MediaItem
	if err := r.coll.FindOne(ctx, activeByID(id)).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MediaMongo) FindActiveByIDs(ctx context.Context, ids []string) ([]model.MediaItem, error) {
	if len(ids) == 0 {
		return []model.MediaItem{}, nil
	}
	filter := bson.M{"_id": bson.M{"$in": ids}, "lifecycle": model.LifecycleActive}
	cur, err := r.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	return decodeAll(ctx, cur)
}

func decodeAll(ctx context.Context, cur *mongo.Cursor) ([]model.MediaItem, error) {
	defer cur.Close(ctx)
	items := make([]model.MediaItem, 0)
	for cur.Next(ctx) {
		var m model.MediaItem
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// BuildFilter translates a MediaFilter into a query document. Search input is
// matched literally: regex metacharacters are escaped.
func BuildFilter(f repository.MediaFilter) bson.M {
	q := bson.M{"lifecycle": model.LifecycleActive}
	if f.Search != "" {
		re := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		q["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"description": re},
			bson.M{"tags": re},
		}
	}
	if len(f.Tags) > 0 {
		q["tags"] = bson.M{"$in": f.Tags}
	}
	if f.OwnerID != "" {
		q["ownerId"] = f.OwnerID
	}
	if f.PublicOnly {
		q["visibility"] = model.VisibilityPublic
	}
	return q
}

// BuildSort orders by the requested field with _id as a stable tie breaker.
// Popular listings sort on viewCount and fall back to downloadCount.
func BuildSort(f repository.MediaFilter) bson.D {
	dir := 1
	if f.SortDesc {
		dir = -1
	}
	var field string
	switch f.SortBy {
	case repository.SortViewCount:
		return bson.D{{Key: "viewCount", Value: dir}, {Key: "downloadCount", Value: dir}, {Key: "_id", Value: dir}}
	case repository.SortDownloadCount:
		field = "downloadCount"
	case repository.SortTitle:
		field = "title"
	default:
		field = "createdAt"
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}

func (r *MediaMongo) List(ctx context.Context, f repository.MediaFilter, pq repository.PageQuery) (*repository.PageResult[model.MediaItem], error) {
	filter := BuildFilter(f)

	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(BuildSort(f)).
		SetSkip(int64(pq.Offset)).
		SetLimit(int64(pq.Limit))
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	items, err := decodeAll(ctx, cur)
	if err != nil {
		return nil, err
	}
	return &repository.PageResult[model.MediaItem]{Items: items, Total: int(total)}, nil
}

func (r *MediaMongo) Update(ctx context.Context, item *model.MediaItem) error {
	res, err := r.coll.UpdateOne(ctx, activeByID(item.ID), bson.M{"$set": bson.M{
		"title":       item.Title,
		"description": item.Description,
		"tags":        item.Tags,
		"visibility":  item.Visibility,
		"updatedAt":   item.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	return expectMatched(res)
}

func (r *MediaMongo) SoftDelete(ctx context.Context, id string) error {
	res, err := r.coll.UpdateOne(ctx, activeByID(id), bson.M{"$set": bson.M{
		"lifecycle": model.LifecycleDeleted,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	return expectMatched(res)
}

func (r *MediaMongo) IncrementDownloadCount(ctx context.Context, id string) error {
	return r.inc(ctx, id, "downloadCount")
}

func (r *MediaMongo) IncrementViewCount(ctx context.Context, id string) error {
	return r.inc(ctx, id, "viewCount")
}

// inc uses a single $inc so concurrent callers never overwrite each other.
func (r *MediaMongo) inc(ctx context.Context, id, field string) error {
	res, err := r.coll.UpdateOne(ctx, activeByID(id), bson.M{"$inc": bson.M{field: 1}})
	if err != nil {
		return err
	}
	return expectMatched(res)
}

// ToggleLike flips membership with a pipeline update so the read and the
// write happen in one server-side operation.
func (r *MediaMongo) ToggleLike(ctx context.Context, id, userID string) (*model.MediaItem, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"likes":     ToggleExpr(userID),
			"updatedAt": time.Now().UTC(),
		}}},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m model.MediaItem
	if err := r.coll.FindOneAndUpdate(ctx, activeByID(id), update, opts).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// ToggleExpr is the aggregation expression that removes userID from likes
// when present and appends it otherwise.
func ToggleExpr(userID string) bson.M {
	likes := bson.M{"$ifNull": bson.A{"$likes", bson.A{}}}
	return bson.M{"$cond": bson.A{
		bson.M{"$in": bson.A{userID, likes}},
		bson.M{"$setDifference": bson.A{likes, bson.A{userID}}},
		bson.M{"$concatArrays": bson.A{likes, bson.A{userID}}},
	}}
}

func expectMatched(res *mongo.UpdateResult) error {
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
