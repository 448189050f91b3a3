package handler

import (
	"net/http"

	threadDto "anoa.com/lmsforum/internal/modules/thread/dto"
	thread "anoa.com/lmsforum/internal/modules/thread/service"
	"anoa.com/lmsforum/pkg/response"
	"github.com/gin-gonic/gin"
)

type ThreadHandler struct {
	service thread.Service
}

func NewThreadHandler(service thread.Service) *ThreadHandler {
	return &ThreadHandler{service: service}
}

func (h *ThreadHandler) GetThreads(c *gin.Context) {
	var filter threadDto.ThreadFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BindError(c, err)
		return
	}

	threads, err := h.service.GetThreads(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, threads)
}

func (h *ThreadHandler) GetThread(c *gin.Context) {
	threadID := c.Query("threadId")
	if threadID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "threadId is required"})
		return
	}

	thread, err := h.service.GetThread(c.Request.Context(), threadID, c.Query("currentUser"))
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) SearchThreads(c *gin.Context) {
	var filter threadDto.SearchFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BindError(c, err)
		return
	}

	hits, err := h.service.SearchThreads(c.Request.Context(), filter)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, hits)
}

func (h *ThreadHandler) CreateThread(c *gin.Context) {
	var req threadDto.CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	id, err := h.service.CreateThread(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (h *ThreadHandler) UpdateThread(c *gin.Context) {
	var req threadDto.UpdateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.UpdateThread(c.Request.Context(), req); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, nil)
}

func (h *ThreadHandler) DeleteThread(c *gin.Context) {
	var req threadDto.DeleteThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.DeleteThread(c.Request.Context(), req.ID); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, nil)
}

func (h *ThreadHandler) UpdateSortOrder(c *gin.Context) {
	var req threadDto.UpdateSortOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	if err := h.service.UpdateSortOrder(c.Request.Context(), req.Updates); err != nil {
		response.ResponseError(c, err)
		return
	}

	response.Success(c, nil)
}

func (h *ThreadHandler) ToggleSubscription(c *gin.Context) {
	var req threadDto.ToggleSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := h.service.ToggleSubscription(c.Request.Context(), req)
	if err != nil {
		response.ResponseError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
