package dto

import (
	"encoding/json"

	"anoa.com/lmsforum/pkg/crypto"
)

type CreateThreadRequest struct {
	Title   string          `json:"title" binding:"required,max=200"`
	Author  json.RawMessage `json:"author" binding:"required"`
	ForumID string          `json:"forumId" binding:"required_without=GroupID"`
	GroupID string          `json:"groupId"`
}

// Forum returns forumId, falling back to its legacy alias groupId.
func (r CreateThreadRequest) Forum() string {
	if r.ForumID != "" {
		return r.ForumID
	}
	return r.GroupID
}

type UpdateThreadRequest struct {
	ID       string  `json:"id" binding:"required"`
	Title    *string `json:"title" binding:"omitempty,min=1,max=200"`
	ReadOnly *bool   `json:"readOnly"`
	ForumID  *string `json:"forumId" binding:"omitempty,min=1"`
}

func (r UpdateThreadRequest) Empty() bool {
	return r.Title == nil && r.ReadOnly == nil && r.ForumID == nil
}

type DeleteThreadRequest struct {
	ID string `json:"id" binding:"required"`
}

type ToggleSubscriptionRequest struct {
	ThreadID  string `json:"threadId" binding:"required"`
	UserEmail string `json:"userEmail" binding:"required"`
}

type UpdateSortOrderRequest struct {
	Updates map[string]float64 `json:"updates" binding:"required,min=1"`
}

type ThreadFilter struct {
	ForumID     string `form:"forumId"`
	GroupID     string `form:"groupId"`
	CurrentUser string `form:"currentUser"`
}

func (f ThreadFilter) Forum() string {
	if f.ForumID != "" {
		return f.ForumID
	}
	return f.GroupID
}

type SearchFilter struct {
	ForumID string `form:"forumId"`
	Query   string `form:"q" binding:"required"`
	Limit   int64  `form:"limit" binding:"omitempty,min=1,max=100"`
}

type ThreadResponse struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Author       crypto.User   `json:"author"`
	AuthorID     string        `json:"authorId"`
	ForumID      string        `json:"forumId"`
	CreatedAt    int64         `json:"createdAt"`
	UpdatedAt    int64         `json:"updatedAt,omitempty"`
	SortOrder    float64       `json:"sortOrder"`
	ReadOnly     bool          `json:"readOnly"`
	Deleted      bool          `json:"deleted"`
	Subscribers  []crypto.User `json:"subscribers"`
	PostCount    int           `json:"postCount"`
	IsSubscribed bool          `json:"isSubscribed"`
}

type SubscriptionResponse struct {
	IsSubscribed bool `json:"isSubscribed"`
	Subscribers  int  `json:"subscribers"`
}
