package thread

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/lmsforum/internal/entity"
	"anoa.com/lmsforum/pkg/apperror"
	"anoa.com/lmsforum/pkg/docstore"
	"anoa.com/lmsforum/pkg/logger"
)

type Repository interface {
	NewID() string
	FindByID(ctx context.Context, id string) (*entity.Thread, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Thread, error)
	FindByForum(ctx context.Context, forumID string) ([]*entity.Thread, error)
	// Apply writes absolute paths in one atomic update. When a required path
	// is gone by then nothing is written and the error wraps apperror.ErrNotFound.
	Apply(ctx context.Context, writes map[string]any, required ...string) error
}

type repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) Repository {
	return &repository{store: store}
}

func (r *repository) NewID() string {
	return r.store.NewKey()
}

func (r *repository) FindByID(ctx context.Context, id string) (*entity.Thread, error) {
	if !docstore.ValidKey(id) {
		return nil, fmt.Errorf("invalid thread id: %w", apperror.ErrBadRequest)
	}
	snap, err := r.store.Get(ctx, entity.ThreadPath(id))
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		return nil, fmt.Errorf("thread not found: %w", apperror.ErrNotFound)
	}
	return decode(snap)
}

// FindByIDs skips ids that do not exist or cannot be decoded.
func (r *repository) FindByIDs(ctx context.Context, ids []string) (map[string]*entity.Thread, error) {
	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		if docstore.ValidKey(id) {
			paths = append(paths, entity.ThreadPath(id))
		}
	}
	snaps, err := r.store.GetMany(ctx, paths)
	if err != nil {
		return nil, err
	}

	out := make(map[string]*entity.Thread, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		t, err := decode(snap)
		if err != nil {
			logger.L().Warnw("skipping unreadable thread", "thread_id", snap.Key(), "error", err)
			continue
		}
		out[t.ID] = t
	}
	return out, nil
}

func (r *repository) FindByForum(ctx context.Context, forumID string) ([]*entity.Thread, error) {
	if !docstore.ValidKey(forumID) {
		return nil, fmt.Errorf("invalid forum id: %w", apperror.ErrBadRequest)
	}
	index, err := r.store.Get(ctx, entity.ForumThreadsPath(forumID))
	if err != nil {
		return nil, err
	}

	byID, err := r.FindByIDs(ctx, index.Keys())
	if err != nil {
		return nil, err
	}
	threads := make([]*entity.Thread, 0, len(byID))
	for _, id := range index.Keys() {
		if t, ok := byID[id]; ok {
			threads = append(threads, t)
		}
	}
	return threads, nil
}

func (r *repository) Apply(ctx context.Context, writes map[string]any, required ...string) error {
	err := r.store.UpdateIf(ctx, required, "", writes)
	if errors.Is(err, docstore.ErrMissingPath) {
		return fmt.Errorf("%w: %w", apperror.ErrNotFound, err)
	}
	return err
}

func decode(snap docstore.Snapshot) (*entity.Thread, error) {
	var t entity.Thread
	if err := snap.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode thread %s: %w", snap.Key(), err)
	}
	t.ID = snap.Key()
	return &t, nil
}
