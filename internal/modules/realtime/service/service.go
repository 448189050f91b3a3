package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"anoa.com/lmsforum/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	EventThreadCreated = "thread-created"
	EventThreadUpdated = "thread-updated"
	EventThreadDeleted = "thread-deleted"
	EventPostCreated   = "post-created"
	EventPostUpdated   = "post-updated"
	EventPostDeleted   = "post-deleted"
	EventPostRestored  = "post-restored"
	EventPostLiked     = "post-liked"
	EventNewPost       = "new-post"
)

type Event struct {
	Type     string `json:"type"`
	ThreadID string `json:"threadId"`
	PostID   string `json:"postId,omitempty"`
	At       int64  `json:"at"`
}

func NewEvent(typ, threadID, postID string) Event {
	return Event{Type: typ, ThreadID: threadID, PostID: postID, At: time.Now().UnixMilli()}
}

func ThreadChannel(threadID string) string {
	return fmt.Sprintf("forum:thread:%s", threadID)
}

func UserChannel(userID string) string {
	return fmt.Sprintf("forum:user:%s", userID)
}

// RealtimeService fans change events out over redis pub/sub. Without redis
// every publish is a no-op. Publishing happens after the write committed, so
// failures are logged and never returned.
type RealtimeService interface {
	Enabled() bool
	PublishThread(ctx context.Context, ev Event)
	NotifyUsers(ctx context.Context, userIDs []string, ev Event)
	SubscribeThread(ctx context.Context, threadID string) (*redis.PubSub, error)
}

type realtimeService struct {
	redisClient *redis.Client
}

func NewRealtimeService(redisClient *redis.Client) RealtimeService {
	return &realtimeService{redisClient: redisClient}
}

func (s *realtimeService) Enabled() bool {
	return s.redisClient != nil
}

func (s *realtimeService) PublishThread(ctx context.Context, ev Event) {
	s.publish(ctx, ThreadChannel(ev.ThreadID), ev)
}

func (s *realtimeService) NotifyUsers(ctx context.Context, userIDs []string, ev Event) {
	for _, id := range userIDs {
		s.publish(ctx, UserChannel(id), ev)
	}
}

func (s *realtimeService) publish(ctx context.Context, channel string, ev Event) {
	if s.redisClient == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.redisClient.Publish(ctx, channel, payload).Err(); err != nil {
		logger.L().Warnw("failed to publish realtime event", "channel", channel, "type", ev.Type, "error", err)
	}
}

// SubscribeThread returns a confirmed subscription to a thread's channel.
func (s *realtimeService) SubscribeThread(ctx context.Context, threadID string) (*redis.PubSub, error) {
	if s.redisClient == nil {
		return nil, fmt.Errorf("realtime is not configured")
	}
	pubsub := s.redisClient.Subscribe(ctx, ThreadChannel(threadID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe to thread channel: %w", err)
	}
	return pubsub, nil
}
