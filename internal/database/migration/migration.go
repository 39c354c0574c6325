package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type step struct {
	Name string
	SQL  string
}

var steps = []step{
	{
		Name: "create_table_media_items",
		SQL: `CREATE TABLE IF NOT EXISTS media_items (
  id             UUID        PRIMARY KEY,
  title          TEXT        NOT NULL,
  description    TEXT        NOT NULL DEFAULT '',
  tags           JSONB       NOT NULL DEFAULT '[]'::jsonb,
  storage_key    TEXT        NOT NULL UNIQUE,
  thumbnail_key  TEXT        NOT NULL DEFAULT '',
  size           BIGINT      NOT NULL CHECK (size >= 0),
  mime_type      TEXT        NOT NULL,
  width          INTEGER     NOT NULL DEFAULT 0,
  height         INTEGER     NOT NULL DEFAULT 0,
  owner_id       TEXT        NOT NULL DEFAULT '',
  visibility     TEXT        NOT NULL DEFAULT 'public' CHECK (visibility IN ('public', 'private')),
  lifecycle      TEXT        NOT NULL DEFAULT 'active' CHECK (lifecycle IN ('active', 'deleted')),
  view_count     BIGINT      NOT NULL DEFAULT 0 CHECK (view_count >= 0),
  download_count BIGINT      NOT NULL DEFAULT 0 CHECK (download_count >= 0),
  likes          JSONB       NOT NULL DEFAULT '[]'::jsonb,
  created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_media_owner",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_media_items_owner_id ON media_items (owner_id);`,
	},
	{
		Name: "create_index_media_tags",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_media_items_tags ON media_items USING GIN (tags);`,
	},
	{
		Name: "create_index_media_visibility_lifecycle",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_media_items_visibility_lifecycle ON media_items (visibility, lifecycle);`,
	},
	{
		Name: "create_index_media_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_media_items_created_at ON media_items (created_at DESC);`,
	},
	{
		Name: "create_index_media_popular",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_media_items_popular ON media_items (view_count DESC, download_count DESC);`,
	},
}

// EnsureMigrated creates the media schema unless the media_items table
// already exists. Each step is logged with its duration.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *zap.Logger) error {
	log = log.Named("migration")
	start := time.Now()

	var exists bool
	if err := db.QueryRowContext(ctx, "SELECT to_regclass('public.media_items') IS NOT NULL").Scan(&exists); err != nil {
		log.Error("db_migration_failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return fmt.Errorf("check sentinel table: %w", err)
	}
	if exists {
		log.Info("db_migration_skip", zap.String("reason", "schema already exists"))
		return nil
	}

	log.Info("db_migration_start", zap.Int("steps", len(steps)))
	for _, s := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, s.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("migration_step", s.Name),
				zap.Error(err),
				zap.Duration("step_duration", time.Since(stepStart)),
			)
			return fmt.Errorf("migration step %s failed: %w", s.Name, err)
		}
		log.Info("db_migration_step",
			zap.String("migration_step", s.Name),
			zap.Duration("step_duration", time.Since(stepStart)),
		)
	}

	log.Info("db_migration_success", zap.Duration("duration", time.Since(start)))
	return nil
}
