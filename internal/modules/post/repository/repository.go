package repository

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/lmsforum/internal/entity"
	"anoa.com/lmsforum/pkg/apperror"
	"anoa.com/lmsforum/pkg/docstore"
	"anoa.com/lmsforum/pkg/logger"
)

type PostRepository interface {
	NewID() string
	FindByID(ctx context.Context, id string) (*entity.Post, error)
	// FindByThread reads every post in the thread's post index in one batch.
	FindByThread(ctx context.Context, thread *entity.Thread) ([]*entity.Post, error)
	FindAll(ctx context.Context) ([]*entity.Post, error)
	// Apply writes absolute paths in one atomic update. When a required path
	// is gone by then nothing is written and the error wraps apperror.ErrNotFound.
	Apply(ctx context.Context, writes map[string]any, required ...string) error
}

type postRepository struct {
	store docstore.Store
}

func NewPostRepository(store docstore.Store) PostRepository {
	return &postRepository{store: store}
}

func (r *postRepository) NewID() string {
	return r.store.NewKey()
}

func (r *postRepository) FindByID(ctx context.Context, id string) (*entity.Post, error) {
	if !docstore.ValidKey(id) {
		return nil, fmt.Errorf("invalid post id: %w", apperror.ErrBadRequest)
	}
	snap, err := r.store.Get(ctx, entity.PostPath(id))
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		return nil, fmt.Errorf("post not found: %w", apperror.ErrNotFound)
	}
	return decode(snap)
}

func (r *postRepository) FindByThread(ctx context.Context, thread *entity.Thread) ([]*entity.Post, error) {
	paths := make([]string, 0, len(thread.PostIDs))
	for id := range thread.PostIDs {
		if docstore.ValidKey(id) {
			paths = append(paths, entity.PostPath(id))
		}
	}

	snaps, err := r.store.GetMany(ctx, paths)
	if err != nil {
		return nil, err
	}

	posts := make([]*entity.Post, 0, len(snaps))
	for _, snap := range snaps {
		if !snap.Exists() {
			continue
		}
		p, err := decode(snap)
		if err != nil {
			logger.L().Warnw("skipping unreadable post", "post_id", snap.Key(), "error", err)
			continue
		}
		if p.ThreadID != thread.ID {
			logger.L().Warnw("post index entry points at a post of another thread",
				"thread_id", thread.ID, "post_id", p.ID, "post_thread_id", p.ThreadID)
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (r *postRepository) FindAll(ctx context.Context) ([]*entity.Post, error) {
	snap, err := r.store.Get(ctx, entity.CollectionPosts)
	if err != nil {
		return nil, err
	}

	children := snap.Children()
	posts := make([]*entity.Post, 0, len(children))
	for _, child := range children {
		p, err := decode(child)
		if err != nil {
			logger.L().Warnw("skipping unreadable post", "post_id", child.Key(), "error", err)
			continue
		}
		posts = append(posts, p)
	}
	return posts, nil
}

func (r *postRepository) Apply(ctx context.Context, writes map[string]any, required ...string) error {
	err := r.store.UpdateIf(ctx, required, "", writes)
	if errors.Is(err, docstore.ErrMissingPath) {
		return fmt.Errorf("%w: %w", apperror.ErrNotFound, err)
	}
	return err
}

func decode(snap docstore.Snapshot) (*entity.Post, error) {
	var p entity.Post
	if err := snap.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", snap.Key(), err)
	}
	p.ID = snap.Key()
	return &p, nil
}
