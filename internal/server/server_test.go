package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"anoa.com/lmsforum/internal/config"
	"anoa.com/lmsforum/pkg/crypto"
	"anoa.com/lmsforum/pkg/docstore/docstoretest"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const origin = "http://localhost:3000"

func newTestServer(t *testing.T, adminSecret string) http.Handler {
	t.Helper()
	return newServerWithRedis(t, adminSecret, nil)
}

func newServerWithRedis(t *testing.T, adminSecret string, rdb *redis.Client) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cipher, err := crypto.New("s3cret")
	require.NoError(t, err)

	srv := NewServer(Deps{
		Config: &config.Config{
			AllowedOrigins:  []string{origin},
			AdminJWTSecret:  adminSecret,
			RateLimitPost:   time.Minute,
			RateLimitThread: time.Minute,
		},
		Store:       docstoretest.New(t),
		Cipher:      cipher,
		RedisClient: rdb,
	})
	return srv.Handler()
}

func call(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", origin)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

var author = map[string]string{"name": "A", "email": "a@x.com"}

func createThread(t *testing.T, h http.Handler) string {
	t.Helper()
	w := call(t, h, http.MethodPost, "/forum?action=create-thread", map[string]any{
		"title": "Intro", "author": author, "forumId": "g1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	id := decodeBody[map[string]string](t, w)["id"]
	require.NotEmpty(t, id)
	return id
}

func createPost(t *testing.T, h http.Handler, threadID string, parentID *string, content string) string {
	t.Helper()
	w := call(t, h, http.MethodPost, "/posts?action=create-post", map[string]any{
		"threadId": threadID, "parentId": parentID, "content": content, "author": author,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeBody[map[string]string](t, w)["id"]
}

func TestCreateThreadThenList(t *testing.T) {
	h := newTestServer(t, "")
	id := createThread(t, h)

	w := call(t, h, http.MethodGet, "/forum?action=get-threads&groupId=g1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	threads := decodeBody[[]map[string]any](t, w)
	require.Len(t, threads, 1)
	assert.Equal(t, id, threads[0]["id"])
	assert.Equal(t, "Intro", threads[0]["title"])
	assert.Equal(t, "g1", threads[0]["forumId"])
}

func TestAdminDeleteWithReplies(t *testing.T) {
	h := newTestServer(t, "")
	threadID := createThread(t, h)
	root := createPost(t, h, threadID, nil, "hello")
	createPost(t, h, threadID, &root, "first reply")
	createPost(t, h, threadID, &root, "second reply")

	w := call(t, h, http.MethodGet, "/posts?action=get-posts&threadId="+threadID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	posts := decodeBody[[]map[string]any](t, w)
	require.Len(t, posts, 3)
	assert.Nil(t, posts[0]["parentId"])
	assert.Equal(t, "hello", posts[0]["content"])

	w = call(t, h, http.MethodPost, "/posts?action=admin-delete-post", map[string]string{"postId": root})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decodeBody[struct {
		Success bool     `json:"success"`
		Deleted []string `json:"deleted"`
	}](t, w)
	assert.True(t, resp.Success)
	assert.Len(t, resp.Deleted, 3)

	w = call(t, h, http.MethodGet, "/posts?action=get-posts&threadId="+threadID, nil)
	assert.Equal(t, "[]", w.Body.String())
}

func TestLikeTwice(t *testing.T) {
	h := newTestServer(t, "")
	threadID := createThread(t, h)
	postID := createPost(t, h, threadID, nil, "hello")

	like := func() map[string]any {
		w := call(t, h, http.MethodPost, "/posts?action=like-post", map[string]string{
			"postId": postID, "userEmail": "b@x.com",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decodeBody[map[string]any](t, w)
	}

	assert.EqualValues(t, 1, like()["likes"])
	assert.EqualValues(t, 0, like()["likes"])
}

func TestDispatchErrors(t *testing.T) {
	h := newTestServer(t, "")

	w := call(t, h, http.MethodGet, "/forum?action=nope", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Contains(t, decodeBody[map[string]string](t, w)["error"], "bad request")

	w = call(t, h, http.MethodGet, "/forum?action=create-thread", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
	assert.Contains(t, decodeBody[map[string]string](t, w)["error"], "method not allowed")

	w = call(t, h, http.MethodPost, "/posts?action=get-posts", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = call(t, h, http.MethodPost, "/forum?action=create-thread", map[string]any{"author": author, "forumId": "g1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, h, http.MethodGet, "/forum?action=get-thread&threadId=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRejectsForeignOrigin(t *testing.T) {
	h := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/forum?action=get-threads&forumId=g1", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminActionsNeedToken(t *testing.T) {
	h := newTestServer(t, "adm1n")
	threadID := createThread(t, h)

	w := call(t, h, http.MethodPost, "/forum?action=delete-thread", map[string]string{"id": threadID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(t, h, http.MethodGet, "/forum?action=get-thread&threadId="+threadID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPing(t *testing.T) {
	h := newTestServer(t, "")

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestCreatePostCooldown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	h := newServerWithRedis(t, "", rdb)

	threadID := createThread(t, h)
	createPost(t, h, threadID, nil, "first")

	w := call(t, h, http.MethodPost, "/posts?action=create-post", map[string]any{
		"threadId": threadID, "content": "second", "author": author,
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retryAfter, 0)
	assert.LessOrEqual(t, retryAfter, 60)

	mr.FastForward(time.Minute + time.Second)
	createPost(t, h, threadID, nil, "third")
}

func TestGetAllPosts(t *testing.T) {
	h := newTestServer(t, "")
	first := createThread(t, h)
	second := createThread(t, h)
	p1 := createPost(t, h, first, nil, "one")
	p2 := createPost(t, h, second, nil, "two")

	w := call(t, h, http.MethodGet, "/posts?action=get-all-posts", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	posts := decodeBody[[]map[string]any](t, w)
	require.Len(t, posts, 2)
	assert.Equal(t, p1, posts[0]["id"])
	assert.Equal(t, first, posts[0]["threadId"])
	assert.Equal(t, p2, posts[1]["id"])
	assert.Equal(t, "two", posts[1]["content"])

	w = call(t, h, http.MethodPost, "/posts?action=get-all-posts", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
