package export

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"galleryapi/internal/model"
)

func TestUsageCounter_OutlivesRequestContext(t *testing.T) {
	it := mediaItem("a", model.VisibilityPublic, "")
	repo := newMemRepo(it)
	c := NewUsageCounter(repo, zap.NewNop(), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Record(ctx, it.ID)
	c.Wait()

	assert.Equal(t, int64(1), repo.downloads(it.ID))
}

func TestUsageCounter_LogsFailures(t *testing.T) {
	it := mediaItem("a", model.VisibilityPublic, "")
	repo := newMemRepo(it)
	repo.incrementFn = func(string) error { return errors.New("db down") }
	core, logs := observer.New(zap.WarnLevel)
	c := NewUsageCounter(repo, zap.New(core), time.Second)

	c.Record(context.Background(), it.ID)
	c.Wait()

	assert.Equal(t, int64(0), repo.downloads(it.ID))
	entries := logs.FilterMessage("download count increment failed").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, it.ID, entries[0].ContextMap()["media_id"])
	}
}

func TestUsageCounter_RecordDoesNotBlock(t *testing.T) {
	it := mediaItem("a", model.VisibilityPublic, "")
	repo := newMemRepo(it)
	release := make(chan struct{})
	repo.incrementFn = func(string) error {
		<-release
		return nil
	}
	c := NewUsageCounter(repo, zap.NewNop(), time.Second)

	done := make(chan struct{})
	go func() {
		c.Record(context.Background(), it.ID)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on the repository")
	}
	close(release)
	c.Wait()
	assert.Equal(t, int64(1), repo.downloads(it.ID))
}
