package post

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"anoa.com/lmsforum/internal/entity"
	postDto "anoa.com/lmsforum/internal/modules/post/dto"
	postRepo "anoa.com/lmsforum/internal/modules/post/repository"
	realtime "anoa.com/lmsforum/internal/modules/realtime/service"
	threadRepo "anoa.com/lmsforum/internal/modules/thread/repository"
	userRepo "anoa.com/lmsforum/internal/modules/user/repository"
	"anoa.com/lmsforum/pkg/apperror"
	"anoa.com/lmsforum/pkg/crypto"
	"anoa.com/lmsforum/pkg/docstore"
	"anoa.com/lmsforum/pkg/docstore/docstoretest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc    PostService
	store  docstore.Store
	cipher *crypto.Cipher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	return newFixtureWithRedis(t, nil)
}

func newFixtureWithRedis(t *testing.T, rdb *redis.Client) fixture {
	t.Helper()
	store := docstoretest.New(t)
	cipher, err := crypto.New("s3cret")
	require.NoError(t, err)
	svc := NewPostService(
		postRepo.NewPostRepository(store),
		threadRepo.NewRepository(store),
		userRepo.NewUserRepository(store, cipher),
		cipher,
		rdb,
		realtime.NewRealtimeService(rdb),
		time.Minute,
	)
	return fixture{svc: svc, store: store, cipher: cipher}
}

func (f fixture) thread(t *testing.T, id string, readOnly bool) {
	t.Helper()
	require.NoError(t, f.store.Update(context.Background(), "", map[string]any{
		entity.ThreadPath(id):           &entity.Thread{Title: "T", ForumID: "g1", ReadOnly: readOnly, CreatedAt: 1},
		entity.ForumIndexPath("g1", id): true,
	}))
}

func (f fixture) post(t *testing.T, threadID, parentID, content string) string {
	t.Helper()
	req := postDto.CreatePostRequest{
		ThreadID: threadID,
		Content:  content,
		Author:   json.RawMessage(`{"name":"A","email":"a@x.com"}`),
	}
	if parentID != "" {
		req.ParentID = &parentID
	}
	id, err := f.svc.CreatePost(context.Background(), req)
	require.NoError(t, err)
	return id
}

func (f fixture) list(t *testing.T, threadID, currentUser string) []postDto.PostResponse {
	t.Helper()
	posts, err := f.svc.GetPosts(context.Background(), postDto.PostFilter{ThreadID: threadID, CurrentUser: currentUser})
	require.NoError(t, err)
	return posts
}

func TestCreateAndListPosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.thread(t, "t1", false)

	root := f.post(t, "t1", "", "hello")
	reply := f.post(t, "t1", root, "<b>hi</b><script>alert(1)</script>")

	posts := f.list(t, "t1", "")
	require.Len(t, posts, 2)

	assert.Equal(t, root, posts[0].ID)
	assert.Nil(t, posts[0].ParentID)
	assert.Equal(t, "hello", posts[0].Content)
	assert.Equal(t, crypto.User{Name: "A", Email: "a@x.com"}, posts[0].Author)
	assert.Equal(t, 0, posts[0].Likes)
	assert.Empty(t, posts[0].LikedBy)

	assert.Equal(t, reply, posts[1].ID)
	require.NotNil(t, posts[1].ParentID)
	assert.Equal(t, root, *posts[1].ParentID)
	assert.Equal(t, "<b>hi</b>", posts[1].Content)

	stored, err := f.store.Get(ctx, entity.PostPath(root)+"/content")
	require.NoError(t, err)
	assert.NotEqual(t, "hello", stored.Value())
}

func TestCreatePostValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.thread(t, "t1", false)
	f.thread(t, "t2", false)
	f.thread(t, "locked", true)
	other := f.post(t, "t2", "", "elsewhere")

	create := func(threadID, parentID, content string) error {
		req := postDto.CreatePostRequest{
			ThreadID: threadID,
			Content:  content,
			Author:   json.RawMessage(`{"name":"A","email":"a@x.com"}`),
		}
		if parentID != "" {
			req.ParentID = &parentID
		}
		_, err := f.svc.CreatePost(ctx, req)
		return err
	}

	assert.ErrorIs(t, create("missing", "", "x"), apperror.ErrNotFound)
	assert.ErrorIs(t, create("locked", "", "x"), apperror.ErrForbidden)
	assert.ErrorIs(t, create("t1", "nope", "x"), apperror.ErrNotFound)
	assert.ErrorIs(t, create("t1", other, "x"), apperror.ErrBadRequest)
	assert.ErrorIs(t, create("t1", "", "<script>only</script>"), apperror.ErrBadRequest)

	assert.Empty(t, f.list(t, "t1", ""))
}

func TestLikeToggle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.thread(t, "t1", false)
	id := f.post(t, "t1", "", "hello")

	first, err := f.svc.LikePost(ctx, postDto.LikePostRequest{PostID: id, UserEmail: "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Likes)
	assert.Len(t, first.LikedBy, first.Likes)

	other, err := f.svc.LikePost(ctx, postDto.LikePostRequest{PostID: id, UserEmail: "c@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 2, other.Likes)

	posts := f.list(t, "t1", "B@X.com")
	assert.True(t, posts[0].HasLiked)
	assert.Equal(t, 2, posts[0].Likes)

	second, err := f.svc.LikePost(ctx, postDto.LikePostRequest{PostID: id, UserEmail: "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Likes)
	assert.Len(t, second.LikedBy, second.Likes)

	third, err := f.svc.LikePost(ctx, postDto.LikePostRequest{PostID: id, UserEmail: "c@x.com"})
	require.NoError(t, err)
	assert.Equal(t, 0, third.Likes)
	assert.Empty(t, third.LikedBy)

	likes, err := f.store.Get(ctx, entity.PostPath(id)+"/likes")
	require.NoError(t, err)
	assert.Equal(t, json.Number("0"), likes.Value())

	_, err = f.svc.LikePost(ctx, postDto.LikePostRequest{PostID: "missing", UserEmail: "b@x.com"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestSoftDeleteAndRestore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.thread(t, "t1", false)
	id := f.post(t, "t1", "", "hello")

	require.NoError(t, f.svc.SoftDeletePost(ctx, id))
	posts := f.list(t, "t1", "")
	assert.True(t, posts[0].Deleted)
	assert.NotZero(t, posts[0].DeletedAt)
	assert.Equal(t, DeletedContent, posts[0].Content)

	// a second soft delete must not clobber the backup
	require.NoError(t, f.svc.SoftDeletePost(ctx, id))

	err := f.svc.UpdatePost(ctx, postDto.UpdatePostRequest{PostID: id, Content: "edit"})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	require.NoError(t, f.svc.RestorePost(ctx, id))
	posts = f.list(t, "t1", "")
	assert.False(t, posts[0].Deleted)
	assert.Zero(t, posts[0].DeletedAt)
	assert.Equal(t, "hello", posts[0].Content)

	backup, err := f.store.Get(ctx, entity.PostPath(id)+"/originalContent")
	require.NoError(t, err)
	assert.False(t, backup.Exists())
}

func TestUpdatePost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.thread(t, "t1", false)
	id := f.post(t, "t1", "", "hello")

	require.NoError(t, f.svc.UpdatePost(ctx, postDto.UpdatePostRequest{PostID: id, Content: "edited"}))
	posts := f.list(t, "t1", "")
	assert.Equal(t, "edited", posts[0].Content)
	assert.GreaterOrEqual(t, posts[0].UpdatedAt, posts[0].CreatedAt)

	err := f.svc.UpdatePost(ctx, postDto.UpdatePostRequest{PostID: "missing", Content: "x"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAdminDeleteRemovesReplies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.thread(t, "t1", false)

	root := f.post(t, "t1", "", "hello")
	r1 := f.post(t, "t1", root, "reply one")
	r2 := f.post(t, "t1", root, "reply two")
	keep := f.post(t, "t1", "", "unrelated")

	deleted, err := f.svc.AdminDeletePost(ctx, root)
	require.NoError(t, err)
	assert.Len(t, deleted, 3)
	assert.Equal(t, root, deleted[0])
	assert.ElementsMatch(t, []string{root, r1, r2}, deleted)

	for _, id := range deleted {
		snap, err := f.store.Get(ctx, entity.PostPath(id))
		require.NoError(t, err)
		assert.False(t, snap.Exists(), id)

		index, err := f.store.Get(ctx, entity.ThreadPostIndexPath("t1", id))
		require.NoError(t, err)
		assert.False(t, index.Exists(), id)
	}

	posts := f.list(t, "t1", "")
	require.Len(t, posts, 1)
	assert.Equal(t, keep, posts[0].ID)
}

func TestAdminDeleteRejectsCycles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.thread(t, "t1", false)

	require.NoError(t, f.store.Update(ctx, "", map[string]any{
		entity.PostPath("a"):                  map[string]any{"threadId": "t1", "parentId": "b", "content": "x"},
		entity.PostPath("b"):                  map[string]any{"threadId": "t1", "parentId": "a", "content": "y"},
		entity.ThreadPostIndexPath("t1", "a"): true,
		entity.ThreadPostIndexPath("t1", "b"): true,
	}))

	_, err := f.svc.AdminDeletePost(ctx, "a")
	assert.ErrorIs(t, err, apperror.ErrDataIntegrity)

	for _, id := range []string{"a", "b"} {
		snap, err := f.store.Get(ctx, entity.PostPath(id))
		require.NoError(t, err)
		assert.True(t, snap.Exists(), id)
	}
}

func TestCollectSubtree(t *testing.T) {
	parent := func(id string) *string { return &id }

	posts := map[string]*entity.Post{
		"root": {ID: "root"},
		"a":    {ID: "a", ParentID: parent("root")},
		"b":    {ID: "b", ParentID: parent("root")},
		"a1":   {ID: "a1", ParentID: parent("a")},
		"x":    {ID: "x"},
		"x1":   {ID: "x1", ParentID: parent("x")},
	}
	ids, err := collectSubtree("root", posts)
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "a", "b", "a1"}, ids)

	selfRef := map[string]*entity.Post{"s": {ID: "s", ParentID: parent("s")}}
	_, err = collectSubtree("s", selfRef)
	assert.ErrorIs(t, err, apperror.ErrDataIntegrity)
}

func TestGetAllPosts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.thread(t, "t1", false)
	f.thread(t, "t2", false)

	first := f.post(t, "t1", "", "one")
	second := f.post(t, "t2", "", "two")
	third := f.post(t, "t1", first, "three")
	require.NoError(t, f.svc.SoftDeletePost(ctx, second))

	posts, err := f.svc.GetAllPosts(ctx, postDto.AllPostsFilter{})
	require.NoError(t, err)
	require.Len(t, posts, 3)

	assert.Equal(t, []string{first, second, third}, []string{posts[0].ID, posts[1].ID, posts[2].ID})
	assert.Equal(t, "t1", posts[0].ThreadID)
	assert.Equal(t, "one", posts[0].Content)
	assert.Equal(t, "t2", posts[1].ThreadID)
	assert.True(t, posts[1].Deleted)
	assert.Equal(t, DeletedContent, posts[1].Content)
	assert.Equal(t, crypto.User{Name: "A", Email: "a@x.com"}, posts[2].Author)
}

func TestGetAllPostsEmpty(t *testing.T) {
	f := newFixture(t)
	posts, err := f.svc.GetAllPosts(context.Background(), postDto.AllPostsFilter{})
	require.NoError(t, err)
	assert.Empty(t, posts)
}

// staleThreads serves a thread that was already deleted from the store.
type staleThreads struct {
	threadRepo.Repository
	thread *entity.Thread
}

func (s staleThreads) FindByID(ctx context.Context, id string) (*entity.Thread, error) {
	return s.thread, nil
}

func TestCreatePostOnDeletedThread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.thread(t, "t1", false)
	parent := f.post(t, "t1", "", "parent")

	svc := NewPostService(
		postRepo.NewPostRepository(f.store),
		staleThreads{Repository: threadRepo.NewRepository(f.store), thread: &entity.Thread{ID: "gone", Title: "T"}},
		userRepo.NewUserRepository(f.store, f.cipher),
		f.cipher,
		nil,
		realtime.NewRealtimeService(nil),
		time.Minute,
	)

	_, err := svc.CreatePost(ctx, createReq("gone", "z@x.com", "late reply"))
	require.ErrorIs(t, err, apperror.ErrNotFound)

	snap, err := f.store.Get(ctx, entity.ThreadPath("gone"))
	require.NoError(t, err)
	assert.False(t, snap.Exists())

	posts, err := f.store.Get(ctx, entity.CollectionPosts)
	require.NoError(t, err)
	assert.Equal(t, []string{parent}, posts.Keys())

	users, err := f.store.Get(ctx, entity.UserPath(f.cipher.DeriveUserID("z@x.com")))
	require.NoError(t, err)
	assert.False(t, users.Exists())
}

// stalePosts serves a post read before it was removed from the store.
type stalePosts struct {
	postRepo.PostRepository
	post *entity.Post
}

func (s stalePosts) FindByID(ctx context.Context, id string) (*entity.Post, error) {
	return s.post, nil
}

func TestMutationsOnRemovedPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.thread(t, "t1", false)
	id := f.post(t, "t1", "", "hello")

	repo := postRepo.NewPostRepository(f.store)
	stale, err := repo.FindByID(ctx, id)
	require.NoError(t, err)
	_, err = f.svc.AdminDeletePost(ctx, id)
	require.NoError(t, err)

	svc := NewPostService(
		stalePosts{PostRepository: repo, post: stale},
		threadRepo.NewRepository(f.store),
		userRepo.NewUserRepository(f.store, f.cipher),
		f.cipher,
		nil,
		realtime.NewRealtimeService(nil),
		time.Minute,
	)

	require.ErrorIs(t, svc.UpdatePost(ctx, postDto.UpdatePostRequest{PostID: id, Content: "x"}), apperror.ErrNotFound)
	require.ErrorIs(t, svc.SoftDeletePost(ctx, id), apperror.ErrNotFound)
	require.ErrorIs(t, svc.RestorePost(ctx, id), apperror.ErrNotFound)
	_, err = svc.LikePost(ctx, postDto.LikePostRequest{PostID: id, UserEmail: "b@x.com"})
	require.ErrorIs(t, err, apperror.ErrNotFound)

	// a reply to the removed parent is refused as well
	req := createReq("t1", "b@x.com", "reply")
	req.ParentID = &id
	_, err = svc.CreatePost(ctx, req)
	require.ErrorIs(t, err, apperror.ErrNotFound)

	snap, err := f.store.Get(ctx, entity.PostPath(id))
	require.NoError(t, err)
	assert.False(t, snap.Exists())
	thread, err := f.store.Get(ctx, entity.ThreadPath("t1"))
	require.NoError(t, err)
	assert.Empty(t, thread.Child("postIds").Keys())
}
