package handler

import (
	"net/http"

	postDto "anoa.com/lmsforum/internal/modules/post/dto"
	post "anoa.com/lmsforum/internal/modules/post/service"
	"anoa.com/lmsforum/pkg/response"
	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	service post.PostService
}

func NewPostHandler(service post.PostService) *PostHandler {
	return &PostHandler{service: service}
}

func (h *PostHandler) GetPosts(c *gin.Context) {
	var filter postDto.PostFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BindError(c, err)
		return
	}

	posts, err := h.service.GetPosts(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) GetAllPosts(c *gin.Context) {
	var filter postDto.AllPostsFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BindError(c, err)
		return
	}

	posts, err := h.service.GetAllPosts(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, posts)
}

func (h *PostHandler) CreatePost(c *gin.Context) {
	var req postDto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	id, err := h.service.CreatePost(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *PostHandler) UpdatePost(c *gin.Context) {
	var req postDto.UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.UpdatePost(c.Request.Context(), req); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, nil)
}

func (h *PostHandler) SoftDeletePost(c *gin.Context) {
	var req postDto.PostIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.SoftDeletePost(c.Request.Context(), req.PostID); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, nil)
}

func (h *PostHandler) RestorePost(c *gin.Context) {
	var req postDto.PostIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.RestorePost(c.Request.Context(), req.PostID); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, nil)
}

func (h *PostHandler) LikePost(c *gin.Context) {
	var req postDto.LikePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.LikePost(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *PostHandler) AdminDeletePost(c *gin.Context) {
	var req postDto.PostIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	deleted, err := h.service.AdminDeletePost(c.Request.Context(), req.PostID)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, postDto.AdminDeleteResponse{Success: true, Deleted: deleted})
}
