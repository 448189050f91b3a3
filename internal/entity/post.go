package entity

import "anoa.com/lmsforum/pkg/docstore"

const CollectionPosts = "posts"

// Post is stored at posts/{id}. Content and OriginalContent are encrypted.
// Likes always equals len(LikedBy).
type Post struct {
	ID              string          `json:"-"`
	ThreadID        string          `json:"threadId"`
	ParentID        *string         `json:"parentId,omitempty"`
	Content         string          `json:"content"`
	AuthorID        string          `json:"authorId"`
	CreatedAt       int64           `json:"createdAt"`
	UpdatedAt       int64           `json:"updatedAt,omitempty"`
	Likes           int             `json:"likes"`
	LikedBy         map[string]bool `json:"likedBy,omitempty"`
	Deleted         bool            `json:"deleted,omitempty"`
	DeletedAt       int64           `json:"deletedAt,omitempty"`
	OriginalContent string          `json:"originalContent,omitempty"`
}

func (p *Post) IsTopLevel() bool {
	return p.ParentID == nil || *p.ParentID == ""
}

func PostPath(id string) string {
	return docstore.Join(CollectionPosts, id)
}

func PostLikePath(postID, userID string) string {
	return docstore.Join(CollectionPosts, postID, "likedBy", userID)
}
