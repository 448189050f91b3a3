package entity

import "anoa.com/lmsforum/pkg/docstore"

const (
	CollectionThreads = "threads"
	CollectionForums  = "forums"
)

// Thread is stored at threads/{id}. Timestamps are milliseconds since epoch.
type Thread struct {
	ID          string          `json:"-"`
	Title       string          `json:"title"`
	AuthorID    string          `json:"authorId"`
	ForumID     string          `json:"forumId"`
	CreatedAt   int64           `json:"createdAt"`
	UpdatedAt   int64           `json:"updatedAt,omitempty"`
	SortOrder   float64         `json:"sortOrder"`
	ReadOnly    bool            `json:"readOnly"`
	Subscribers map[string]bool `json:"subscribers,omitempty"`
	PostIDs     map[string]bool `json:"postIds,omitempty"`
	Deleted     bool            `json:"deleted,omitempty"`
}

func (t *Thread) IsSubscribed(userID string) bool {
	return t.Subscribers[userID]
}

func ThreadPath(id string) string {
	return docstore.Join(CollectionThreads, id)
}

// ThreadPostIndexPath is the membership entry of a post in its thread.
func ThreadPostIndexPath(threadID, postID string) string {
	return docstore.Join(CollectionThreads, threadID, "postIds", postID)
}

func ThreadSubscriberPath(threadID, userID string) string {
	return docstore.Join(CollectionThreads, threadID, "subscribers", userID)
}

// ForumThreadsPath holds the set of thread ids of a forum.
func ForumThreadsPath(forumID string) string {
	return docstore.Join(CollectionForums, forumID, "threadIds")
}

func ForumIndexPath(forumID, threadID string) string {
	return docstore.Join(ForumThreadsPath(forumID), threadID)
}
