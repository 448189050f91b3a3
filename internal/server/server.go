package server

import (
	"fmt"
	"net/http"

	"anoa.com/lmsforum/internal/config"
	"anoa.com/lmsforum/internal/middleware"
	"anoa.com/lmsforum/pkg/apperror"
	"anoa.com/lmsforum/pkg/crypto"
	"anoa.com/lmsforum/pkg/docstore"
	"anoa.com/lmsforum/pkg/logger"
	"anoa.com/lmsforum/pkg/response"

	postHttp "anoa.com/lmsforum/internal/modules/post/delivery/http"
	postRepo "anoa.com/lmsforum/internal/modules/post/repository"
	postService "anoa.com/lmsforum/internal/modules/post/service"

	realtimeHttp "anoa.com/lmsforum/internal/modules/realtime/delivery/http"
	realtimeService "anoa.com/lmsforum/internal/modules/realtime/service"

	searchService "anoa.com/lmsforum/internal/modules/search/service"

	threadHttp "anoa.com/lmsforum/internal/modules/thread/delivery/http"
	threadRepo "anoa.com/lmsforum/internal/modules/thread/repository"
	threadService "anoa.com/lmsforum/internal/modules/thread/service"

	userRepo "anoa.com/lmsforum/internal/modules/user/repository"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Deps are the process-wide handles the server is built from. RedisClient and
// Search are optional.
type Deps struct {
	Config      *config.Config
	Store       docstore.Store
	Cipher      *crypto.Cipher
	RedisClient *redis.Client
	Search      searchService.MeiliSearchService
	Limiter     *middleware.IPRateLimiter
}

type Server struct {
	engine *gin.Engine
}

// action is one entry of an action table: the method it accepts, whether it
// needs an admin token, and its handler.
type action struct {
	method  string
	admin   bool
	handler gin.HandlerFunc
}

func NewServer(deps Deps) *Server {
	cfg := deps.Config

	userRepo := userRepo.NewUserRepository(deps.Store, deps.Cipher)
	threadRepo := threadRepo.NewRepository(deps.Store)
	postRepo := postRepo.NewPostRepository(deps.Store)

	realtimeSvc := realtimeService.NewRealtimeService(deps.RedisClient)
	realtimeHandler := realtimeHttp.NewRealtimeHandler(realtimeSvc, cfg.AllowedOrigins)

	threadSvc := threadService.NewService(threadRepo, userRepo, deps.RedisClient, realtimeSvc, deps.Search, cfg.RateLimitThread)
	threadHandler := threadHttp.NewThreadHandler(threadSvc)

	postSvc := postService.NewPostService(postRepo, threadRepo, userRepo, deps.Cipher, deps.RedisClient, realtimeSvc, cfg.RateLimitPost)
	postHandler := postHttp.NewPostHandler(postSvc)

	adminGuard := middleware.NewAdminGuard(cfg.AdminJWTSecret)

	log := logger.L()
	router := gin.New()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log, "/ping"))
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.RateLimit(deps.Limiter))

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/forum/ws", realtimeHandler.HandleWebSocket)

	router.Any("/forum", dispatch(adminGuard, map[string]action{
		"get-threads":         {method: http.MethodGet, handler: threadHandler.GetThreads},
		"get-thread":          {method: http.MethodGet, handler: threadHandler.GetThread},
		"search-threads":      {method: http.MethodGet, handler: threadHandler.SearchThreads},
		"create-thread":       {method: http.MethodPost, handler: threadHandler.CreateThread},
		"update-thread":       {method: http.MethodPost, handler: threadHandler.UpdateThread},
		"delete-thread":       {method: http.MethodPost, admin: true, handler: threadHandler.DeleteThread},
		"update-sort-order":   {method: http.MethodPost, admin: true, handler: threadHandler.UpdateSortOrder},
		"toggle-subscription": {method: http.MethodPost, handler: threadHandler.ToggleSubscription},
	}))

	router.Any("/posts", dispatch(adminGuard, map[string]action{
		"get-posts":         {method: http.MethodGet, handler: postHandler.GetPosts},
		"get-all-posts":     {method: http.MethodGet, handler: postHandler.GetAllPosts},
		"create-post":       {method: http.MethodPost, handler: postHandler.CreatePost},
		"update-post":       {method: http.MethodPost, handler: postHandler.UpdatePost},
		"soft-delete-post":  {method: http.MethodPost, handler: postHandler.SoftDeletePost},
		"restore-post":      {method: http.MethodPost, handler: postHandler.RestorePost},
		"like-post":         {method: http.MethodPost, handler: postHandler.LikePost},
		"admin-delete-post": {method: http.MethodPost, admin: true, handler: postHandler.AdminDeletePost},
	}))

	return &Server{engine: router}
}

// dispatch routes on the action query parameter: unknown actions are 400, a
// known action called with the wrong method is 405.
func dispatch(guard *middleware.AdminGuard, actions map[string]action) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Query("action")
		a, ok := actions[name]
		if !ok {
			response.ResponseError(c, fmt.Errorf("unknown action %q: %w", name, apperror.ErrBadRequest))
			return
		}
		if c.Request.Method != a.method {
			c.Header("Allow", a.method)
			response.ResponseError(c, fmt.Errorf("%s requires %s: %w", name, a.method, apperror.ErrMethodNotAllowed))
			return
		}
		if a.admin && !guard.Authorize(c) {
			return
		}
		a.handler(c)
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}
