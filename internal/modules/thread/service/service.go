package thread

import (
	"context"
	"fmt"
	"strings"
	"time"

	"anoa.com/lmsforum/internal/entity"
	realtime "anoa.com/lmsforum/internal/modules/realtime/service"
	search "anoa.com/lmsforum/internal/modules/search/service"
	threadDto "anoa.com/lmsforum/internal/modules/thread/dto"
	repo "anoa.com/lmsforum/internal/modules/thread/repository"
	userRepo "anoa.com/lmsforum/internal/modules/user/repository"
	"anoa.com/lmsforum/pkg/apperror"
	"anoa.com/lmsforum/pkg/docstore"
	"anoa.com/lmsforum/pkg/logger"
	"anoa.com/lmsforum/pkg/ratelimiter"
	"github.com/redis/go-redis/v9"
)

const defaultSearchLimit = 20

type Service interface {
	CreateThread(ctx context.Context, req threadDto.CreateThreadRequest) (string, error)
	UpdateThread(ctx context.Context, req threadDto.UpdateThreadRequest) error
	DeleteThread(ctx context.Context, id string) error
	GetThreads(ctx context.Context, filter threadDto.ThreadFilter) ([]threadDto.ThreadResponse, error)
	GetThread(ctx context.Context, id, currentUser string) (*threadDto.ThreadResponse, error)
	ToggleSubscription(ctx context.Context, req threadDto.ToggleSubscriptionRequest) (*threadDto.SubscriptionResponse, error)
	UpdateSortOrder(ctx context.Context, updates map[string]float64) error
	SearchThreads(ctx context.Context, filter threadDto.SearchFilter) ([]search.ThreadHit, error)
}

type service struct {
	threadRepo  repo.Repository
	userRepo    userRepo.UserRepository
	redisClient *redis.Client
	realtime    realtime.RealtimeService
	meili       search.MeiliSearchService
	threadLimit time.Duration
}

// NewService wires the thread service. redisClient and meili may be nil.
func NewService(threadRepo repo.Repository, userRepo userRepo.UserRepository, redisClient *redis.Client, realtimeSvc realtime.RealtimeService, meili search.MeiliSearchService, threadLimit time.Duration) Service {
	return &service{
		threadRepo:  threadRepo,
		userRepo:    userRepo,
		redisClient: redisClient,
		realtime:    realtimeSvc,
		meili:       meili,
		threadLimit: threadLimit,
	}
}

func (s *service) CreateThread(ctx context.Context, req threadDto.CreateThreadRequest) (string, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return "", fmt.Errorf("title is required: %w", apperror.ErrBadRequest)
	}
	forumID := req.Forum()
	if !docstore.ValidKey(forumID) {
		return "", fmt.Errorf("invalid forum id: %w", apperror.ErrBadRequest)
	}

	authorID, userWrites, err := s.userRepo.Ensure(ctx, userRepo.ParseAuthor(req.Author))
	if err != nil {
		return "", err
	}

	release, err := ratelimiter.Acquire(ctx, s.redisClient, authorID, ratelimiter.ScopeThread, s.threadLimit)
	if err != nil {
		return "", err
	}
	creationFailed := true
	defer func() {
		if creationFailed {
			release()
		}
	}()

	now := time.Now().UnixMilli()
	thread := &entity.Thread{
		ID:        s.threadRepo.NewID(),
		Title:     title,
		AuthorID:  authorID,
		ForumID:   forumID,
		CreatedAt: now,
		UpdatedAt: now,
		SortOrder: float64(now),
	}

	writes := map[string]any{
		entity.ThreadPath(thread.ID):              thread,
		entity.ForumIndexPath(forumID, thread.ID): true,
	}
	for p, v := range userWrites {
		writes[p] = v
	}
	if err := s.threadRepo.Apply(ctx, writes); err != nil {
		return "", err
	}
	creationFailed = false

	s.realtime.PublishThread(ctx, realtime.NewEvent(realtime.EventThreadCreated, thread.ID, ""))
	s.index(thread)

	return thread.ID, nil
}

func (s *service) UpdateThread(ctx context.Context, req threadDto.UpdateThreadRequest) error {
	if req.Empty() {
		return fmt.Errorf("one of title, readOnly or forumId is required: %w", apperror.ErrBadRequest)
	}

	thread, err := s.threadRepo.FindByID(ctx, req.ID)
	if err != nil {
		return err
	}

	base := entity.ThreadPath(thread.ID)
	writes := map[string]any{}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return fmt.Errorf("title must not be empty: %w", apperror.ErrBadRequest)
		}
		thread.Title = title
		writes[base+"/title"] = title
	}
	if req.ReadOnly != nil {
		thread.ReadOnly = *req.ReadOnly
		writes[base+"/readOnly"] = *req.ReadOnly
	}
	if req.ForumID != nil && *req.ForumID != thread.ForumID {
		if !docstore.ValidKey(*req.ForumID) {
			return fmt.Errorf("invalid forum id: %w", apperror.ErrBadRequest)
		}
		// both index entries move in the same update as the thread itself
		if docstore.ValidKey(thread.ForumID) {
			writes[entity.ForumIndexPath(thread.ForumID, thread.ID)] = nil
		}
		writes[entity.ForumIndexPath(*req.ForumID, thread.ID)] = true
		writes[base+"/forumId"] = *req.ForumID
		thread.ForumID = *req.ForumID
	}
	writes[base+"/updatedAt"] = time.Now().UnixMilli()

	if err := s.threadRepo.Apply(ctx, writes, base); err != nil {
		return err
	}

	s.realtime.PublishThread(ctx, realtime.NewEvent(realtime.EventThreadUpdated, thread.ID, ""))
	s.index(thread)
	return nil
}

// DeleteThread removes the thread, its forum index entry and every post in
// its post index in one update.
func (s *service) DeleteThread(ctx context.Context, id string) error {
	thread, err := s.threadRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	writes := map[string]any{entity.ThreadPath(thread.ID): nil}
	if docstore.ValidKey(thread.ForumID) {
		writes[entity.ForumIndexPath(thread.ForumID, thread.ID)] = nil
	}
	for postID := range thread.PostIDs {
		if docstore.ValidKey(postID) {
			writes[entity.PostPath(postID)] = nil
		}
	}

	if err := s.threadRepo.Apply(ctx, writes); err != nil {
		return err
	}

	s.realtime.PublishThread(ctx, realtime.NewEvent(realtime.EventThreadDeleted, thread.ID, ""))
	if s.meili != nil {
		if err := s.meili.DeleteThread(thread.ID); err != nil {
			logger.L().Warnw("failed to remove thread from search index", "thread_id", thread.ID, "error", err)
		}
	}
	return nil
}

func (s *service) GetThreads(ctx context.Context, filter threadDto.ThreadFilter) ([]threadDto.ThreadResponse, error) {
	forumID := filter.Forum()
	if forumID == "" {
		return nil, fmt.Errorf("forumId is required: %w", apperror.ErrBadRequest)
	}

	threads, err := s.threadRepo.FindByForum(ctx, forumID)
	if err != nil {
		return nil, err
	}

	visible := threads[:0]
	for _, t := range threads {
		if !t.Deleted {
			visible = append(visible, t)
		}
	}
	sortThreads(visible)

	return s.mapToResponses(ctx, visible, filter.CurrentUser)
}

func (s *service) GetThread(ctx context.Context, id, currentUser string) (*threadDto.ThreadResponse, error) {
	thread, err := s.threadRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	responses, err := s.mapToResponses(ctx, []*entity.Thread{thread}, currentUser)
	if err != nil {
		return nil, err
	}
	return &responses[0], nil
}

func (s *service) ToggleSubscription(ctx context.Context, req threadDto.ToggleSubscriptionRequest) (*threadDto.SubscriptionResponse, error) {
	thread, err := s.threadRepo.FindByID(ctx, req.ThreadID)
	if err != nil {
		return nil, err
	}

	userID := s.userRepo.ID(req.UserEmail)
	subscribed := !thread.IsSubscribed(userID)

	var value any
	count := len(thread.Subscribers)
	if subscribed {
		value = true
		count++
	} else {
		count--
	}

	if err := s.threadRepo.Apply(ctx, map[string]any{
		entity.ThreadSubscriberPath(thread.ID, userID): value,
	}, entity.ThreadPath(thread.ID)); err != nil {
		return nil, err
	}

	return &threadDto.SubscriptionResponse{IsSubscribed: subscribed, Subscribers: count}, nil
}

func (s *service) UpdateSortOrder(ctx context.Context, updates map[string]float64) error {
	ids := make([]string, 0, len(updates))
	for id := range updates {
		if !docstore.ValidKey(id) {
			return fmt.Errorf("invalid thread id %q: %w", id, apperror.ErrBadRequest)
		}
		ids = append(ids, id)
	}

	existing, err := s.threadRepo.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}

	writes := make(map[string]any, len(updates))
	required := make([]string, 0, len(updates))
	for id, order := range updates {
		if _, ok := existing[id]; !ok {
			return fmt.Errorf("thread %s not found: %w", id, apperror.ErrNotFound)
		}
		writes[entity.ThreadPath(id)+"/sortOrder"] = order
		required = append(required, entity.ThreadPath(id))
	}
	return s.threadRepo.Apply(ctx, writes, required...)
}

func (s *service) SearchThreads(ctx context.Context, filter threadDto.SearchFilter) ([]search.ThreadHit, error) {
	if s.meili == nil {
		return nil, fmt.Errorf("search is not configured: %w", apperror.ErrBadRequest)
	}
	limit := filter.Limit
	if limit == 0 {
		limit = defaultSearchLimit
	}
	return s.meili.SearchThreads(filter.ForumID, filter.Query, limit)
}

func (s *service) index(thread *entity.Thread) {
	if s.meili == nil {
		return
	}
	if err := s.meili.IndexThread(thread); err != nil {
		logger.L().Warnw("failed to index thread", "thread_id", thread.ID, "error", err)
	}
}
