package bootstrap

import (
	"context"
	"time"

	"anoa.com/lmsforum/internal/entity"
	userRepo "anoa.com/lmsforum/internal/modules/user/repository"
	"anoa.com/lmsforum/pkg/crypto"
	"anoa.com/lmsforum/pkg/docstore"
	"anoa.com/lmsforum/pkg/logger"
)

var seedAuthor = crypto.User{Name: "Forum Admin", Email: "admin@example.com"}

// SeedWelcomeThread creates a welcome thread in an empty forum. It is only
// run in development and does nothing when the forum already has threads.
func SeedWelcomeThread(ctx context.Context, store docstore.Store, cipher *crypto.Cipher, forumID string) error {
	index, err := store.Get(ctx, entity.ForumThreadsPath(forumID))
	if err != nil {
		return err
	}
	if index.Exists() {
		logger.L().Infow("forum already has threads, skipping seed", "forum_id", forumID)
		return nil
	}

	authorID, userWrites, err := userRepo.NewUserRepository(store, cipher).Ensure(ctx, seedAuthor)
	if err != nil {
		return err
	}
	writes := map[string]any{}
	for p, v := range userWrites {
		writes[p] = v
	}

	now := time.Now().UnixMilli()
	id := store.NewKey()
	writes[entity.ThreadPath(id)] = &entity.Thread{
		Title:     "Welcome to the forum",
		AuthorID:  authorID,
		ForumID:   forumID,
		CreatedAt: now,
		SortOrder: float64(now),
	}
	writes[entity.ForumIndexPath(forumID, id)] = true

	if err := store.Update(ctx, "", writes); err != nil {
		return err
	}

	logger.L().Infow("welcome thread seeded", "forum_id", forumID, "thread_id", id)
	return nil
}
