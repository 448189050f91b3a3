package dto

import (
	"encoding/json"

	"anoa.com/lmsforum/pkg/crypto"
)

type CreatePostRequest struct {
	ThreadID string          `json:"threadId" binding:"required"`
	ParentID *string         `json:"parentId"`
	Content  string          `json:"content" binding:"required,max=20000"`
	Author   json.RawMessage `json:"author" binding:"required"`
}

type UpdatePostRequest struct {
	PostID  string `json:"postId" binding:"required"`
	Content string `json:"content" binding:"required,max=20000"`
}

// PostIDRequest is the body of soft-delete, restore and admin-delete.
type PostIDRequest struct {
	PostID string `json:"postId" binding:"required"`
}

type LikePostRequest struct {
	PostID    string `json:"postId" binding:"required"`
	UserEmail string `json:"userEmail" binding:"required"`
}

type PostFilter struct {
	ThreadID    string `form:"threadId" binding:"required"`
	CurrentUser string `form:"currentUser"`
}

// AllPostsFilter lists posts across every thread.
type AllPostsFilter struct {
	CurrentUser string `form:"currentUser"`
}

type PostResponse struct {
	ID        string      `json:"id"`
	ThreadID  string      `json:"threadId"`
	ParentID  *string     `json:"parentId"`
	Content   string      `json:"content"`
	Author    crypto.User `json:"author"`
	AuthorID  string      `json:"authorId"`
	CreatedAt int64       `json:"createdAt"`
	UpdatedAt int64       `json:"updatedAt,omitempty"`
	Likes     int         `json:"likes"`
	LikedBy   []string    `json:"likedBy"`
	HasLiked  bool        `json:"hasLiked"`
	Deleted   bool        `json:"deleted"`
	DeletedAt int64       `json:"deletedAt,omitempty"`
}

type LikeResponse struct {
	Success bool     `json:"success"`
	Likes   int      `json:"likes"`
	LikedBy []string `json:"likedBy"`
}

type AdminDeleteResponse struct {
	Success bool     `json:"success"`
	Deleted []string `json:"deleted"`
}
