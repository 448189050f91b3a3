package post

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"anoa.com/lmsforum/internal/entity"
	postDto "anoa.com/lmsforum/internal/modules/post/dto"
	postRepo "anoa.com/lmsforum/internal/modules/post/repository"
	realtime "anoa.com/lmsforum/internal/modules/realtime/service"
	threadRepo "anoa.com/lmsforum/internal/modules/thread/repository"
	userRepo "anoa.com/lmsforum/internal/modules/user/repository"
	"anoa.com/lmsforum/pkg/apperror"
	"anoa.com/lmsforum/pkg/crypto"
	"anoa.com/lmsforum/pkg/ratelimiter"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
)

// DeletedContent replaces the content of soft-deleted posts in responses.
const DeletedContent = "[deleted]"

type PostService interface {
	CreatePost(ctx context.Context, req postDto.CreatePostRequest) (string, error)
	GetPosts(ctx context.Context, filter postDto.PostFilter) ([]postDto.PostResponse, error)
	GetAllPosts(ctx context.Context, filter postDto.AllPostsFilter) ([]postDto.PostResponse, error)
	UpdatePost(ctx context.Context, req postDto.UpdatePostRequest) error
	SoftDeletePost(ctx context.Context, postID string) error
	RestorePost(ctx context.Context, postID string) error
	LikePost(ctx context.Context, req postDto.LikePostRequest) (*postDto.LikeResponse, error)
	AdminDeletePost(ctx context.Context, postID string) ([]string, error)
}

type postService struct {
	postRepo    postRepo.PostRepository
	threadRepo  threadRepo.Repository
	userRepo    userRepo.UserRepository
	cipher      *crypto.Cipher
	redisClient *redis.Client
	realtime    realtime.RealtimeService
	sanitizer   *bluemonday.Policy
	postLimit   time.Duration
}

// NewPostService wires the post service. redisClient may be nil.
func NewPostService(postRepo postRepo.PostRepository, threadRepo threadRepo.Repository, userRepo userRepo.UserRepository, cipher *crypto.Cipher, redisClient *redis.Client, realtimeSvc realtime.RealtimeService, postLimit time.Duration) PostService {
	return &postService{
		postRepo:    postRepo,
		threadRepo:  threadRepo,
		userRepo:    userRepo,
		cipher:      cipher,
		redisClient: redisClient,
		realtime:    realtimeSvc,
		sanitizer:   bluemonday.UGCPolicy(),
		postLimit:   postLimit,
	}
}

func (s *postService) CreatePost(ctx context.Context, req postDto.CreatePostRequest) (string, error) {
	content := s.sanitize(req.Content)
	if content == "" {
		return "", fmt.Errorf("content is required: %w", apperror.ErrBadRequest)
	}

	authorID, userWrites, err := s.userRepo.Ensure(ctx, userRepo.ParseAuthor(req.Author))
	if err != nil {
		return "", err
	}

	release, err := ratelimiter.Acquire(ctx, s.redisClient, authorID, ratelimiter.ScopePost, s.postLimit)
	if err != nil {
		return "", err
	}
	creationFailed := true
	defer func() {
		if creationFailed {
			release()
		}
	}()

	thread, err := s.threadRepo.FindByID(ctx, req.ThreadID)
	if err != nil {
		return "", err
	}
	if thread.ReadOnly {
		return "", fmt.Errorf("thread is read-only: %w", apperror.ErrForbidden)
	}

	var parentID *string
	if req.ParentID != nil && *req.ParentID != "" {
		parent, err := s.postRepo.FindByID(ctx, *req.ParentID)
		if err != nil {
			return "", fmt.Errorf("parent post: %w", err)
		}
		if parent.ThreadID != thread.ID {
			return "", fmt.Errorf("parent post belongs to another thread: %w", apperror.ErrBadRequest)
		}
		parentID = &parent.ID
	}

	encrypted, err := s.cipher.Encrypt(content)
	if err != nil {
		return "", err
	}

	now := time.Now().UnixMilli()
	post := &entity.Post{
		ID:        s.postRepo.NewID(),
		ThreadID:  thread.ID,
		ParentID:  parentID,
		Content:   encrypted,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	writes := map[string]any{
		entity.PostPath(post.ID):                       post,
		entity.ThreadPostIndexPath(thread.ID, post.ID): true,
	}
	for p, v := range userWrites {
		writes[p] = v
	}
	required := []string{entity.ThreadPath(thread.ID)}
	if parentID != nil {
		required = append(required, entity.PostPath(*parentID))
	}
	if err := s.postRepo.Apply(ctx, writes, required...); err != nil {
		return "", err
	}
	creationFailed = false

	s.realtime.PublishThread(ctx, realtime.NewEvent(realtime.EventPostCreated, thread.ID, post.ID))
	var notify []string
	for uid, on := range thread.Subscribers {
		if on && uid != authorID {
			notify = append(notify, uid)
		}
	}
	s.realtime.NotifyUsers(ctx, notify, realtime.NewEvent(realtime.EventNewPost, thread.ID, post.ID))

	return post.ID, nil
}

// GetPosts lists the thread's posts oldest first.
func (s *postService) GetPosts(ctx context.Context, filter postDto.PostFilter) ([]postDto.PostResponse, error) {
	thread, err := s.threadRepo.FindByID(ctx, filter.ThreadID)
	if err != nil {
		return nil, err
	}

	posts, err := s.postRepo.FindByThread(ctx, thread)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(posts)

	return s.mapToResponses(ctx, posts, filter.CurrentUser)
}

// GetAllPosts lists every stored post, whatever its thread, oldest first.
func (s *postService) GetAllPosts(ctx context.Context, filter postDto.AllPostsFilter) ([]postDto.PostResponse, error) {
	posts, err := s.postRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(posts)

	return s.mapToResponses(ctx, posts, filter.CurrentUser)
}

func sortOldestFirst(posts []*entity.Post) {
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt != posts[j].CreatedAt {
			return posts[i].CreatedAt < posts[j].CreatedAt
		}
		return posts[i].ID < posts[j].ID
	})
}

func (s *postService) UpdatePost(ctx context.Context, req postDto.UpdatePostRequest) error {
	post, err := s.postRepo.FindByID(ctx, req.PostID)
	if err != nil {
		return err
	}
	if post.Deleted {
		return fmt.Errorf("restore the post before editing it: %w", apperror.ErrBadRequest)
	}

	content := s.sanitize(req.Content)
	if content == "" {
		return fmt.Errorf("content is required: %w", apperror.ErrBadRequest)
	}
	encrypted, err := s.cipher.Encrypt(content)
	if err != nil {
		return err
	}

	base := entity.PostPath(post.ID)
	if err := s.postRepo.Apply(ctx, map[string]any{
		base + "/content":   encrypted,
		base + "/updatedAt": time.Now().UnixMilli(),
	}, base); err != nil {
		return err
	}

	s.realtime.PublishThread(ctx, realtime.NewEvent(realtime.EventPostUpdated, post.ThreadID, post.ID))
	return nil
}

// SoftDeletePost keeps the content as originalContent so the post can be
// restored. Deleting an already deleted post changes nothing.
func (s *postService) SoftDeletePost(ctx context.Context, postID string) error {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return err
	}
	if post.Deleted {
		return nil
	}

	base := entity.PostPath(post.ID)
	writes := map[string]any{
		base + "/deleted":   true,
		base + "/deletedAt": time.Now().UnixMilli(),
		base + "/content":   nil,
	}
	if post.Content != "" {
		writes[base+"/originalContent"] = post.Content
	}
	if err := s.postRepo.Apply(ctx, writes, base); err != nil {
		return err
	}

	s.realtime.PublishThread(ctx, realtime.NewEvent(realtime.EventPostDeleted, post.ThreadID, post.ID))
	return nil
}

func (s *postService) RestorePost(ctx context.Context, postID string) error {
	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return err
	}

	base := entity.PostPath(post.ID)
	writes := map[string]any{
		base + "/deleted":   nil,
		base + "/deletedAt": nil,
	}
	if post.OriginalContent != "" {
		writes[base+"/content"] = post.OriginalContent
		writes[base+"/originalContent"] = nil
	}
	if err := s.postRepo.Apply(ctx, writes, base); err != nil {
		return err
	}

	s.realtime.PublishThread(ctx, realtime.NewEvent(realtime.EventPostRestored, post.ThreadID, post.ID))
	return nil
}

// LikePost toggles the user in likedBy. likes is rewritten from the size of
// the resulting set.
func (s *postService) LikePost(ctx context.Context, req postDto.LikePostRequest) (*postDto.LikeResponse, error) {
	post, err := s.postRepo.FindByID(ctx, req.PostID)
	if err != nil {
		return nil, err
	}

	userID := s.userRepo.ID(req.UserEmail)
	likedBy := make(map[string]bool, len(post.LikedBy)+1)
	for uid, on := range post.LikedBy {
		if on {
			likedBy[uid] = true
		}
	}

	var value any
	if likedBy[userID] {
		delete(likedBy, userID)
	} else {
		likedBy[userID] = true
		value = true
	}

	if err := s.postRepo.Apply(ctx, map[string]any{
		entity.PostLikePath(post.ID, userID): value,
		entity.PostPath(post.ID) + "/likes":  len(likedBy),
	}, entity.PostPath(post.ID)); err != nil {
		return nil, err
	}

	s.realtime.PublishThread(ctx, realtime.NewEvent(realtime.EventPostLiked, post.ThreadID, post.ID))
	return &postDto.LikeResponse{Success: true, Likes: len(likedBy), LikedBy: sortedKeys(likedBy)}, nil
}

func (s *postService) sanitize(content string) string {
	return strings.TrimSpace(s.sanitizer.Sanitize(content))
}
