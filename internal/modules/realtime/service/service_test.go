package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannels(t *testing.T) {
	assert.Equal(t, "forum:thread:t1", ThreadChannel("t1"))
	assert.Equal(t, "forum:user:u1", UserChannel("u1"))
}

func TestDisabledWithoutRedis(t *testing.T) {
	svc := NewRealtimeService(nil)
	assert.False(t, svc.Enabled())

	assert.NotPanics(t, func() {
		svc.PublishThread(context.Background(), NewEvent(EventPostCreated, "t1", "p1"))
		svc.NotifyUsers(context.Background(), []string{"u1"}, NewEvent(EventNewPost, "t1", "p1"))
	})

	_, err := svc.SubscribeThread(context.Background(), "t1")
	assert.Error(t, err)
}

func TestPublishOverRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := NewRealtimeService(rdb)
	require.True(t, svc.Enabled())

	threadSub, err := svc.SubscribeThread(ctx, "t1")
	require.NoError(t, err)
	defer threadSub.Close()

	userSub := rdb.Subscribe(ctx, UserChannel("u1"))
	_, err = userSub.Receive(ctx)
	require.NoError(t, err)
	defer userSub.Close()

	svc.PublishThread(ctx, NewEvent(EventPostLiked, "t1", "p1"))
	svc.NotifyUsers(ctx, []string{"u1"}, NewEvent(EventNewPost, "t1", "p2"))

	for _, tc := range []struct {
		sub  *redis.PubSub
		want Event
	}{
		{threadSub, Event{Type: EventPostLiked, ThreadID: "t1", PostID: "p1"}},
		{userSub, Event{Type: EventNewPost, ThreadID: "t1", PostID: "p2"}},
	} {
		select {
		case msg := <-tc.sub.Channel():
			var ev Event
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
			assert.Equal(t, tc.want.Type, ev.Type)
			assert.Equal(t, tc.want.ThreadID, ev.ThreadID)
			assert.Equal(t, tc.want.PostID, ev.PostID)
			assert.NotZero(t, ev.At)
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s event", tc.want.Type)
		}
	}
}
