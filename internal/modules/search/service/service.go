package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"anoa.com/lmsforum/internal/entity"
	"anoa.com/lmsforum/pkg/logger"
	"github.com/meilisearch/meilisearch-go"
)

const threadsIndex = "threads"

// ThreadHit is one search result. Only titles are indexed: post content is
// encrypted at rest and never leaves the store in plaintext.
type ThreadHit struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	ForumID   string `json:"forumId"`
	CreatedAt int64  `json:"createdAt"`
}

type MeiliSearchService interface {
	IndexThread(thread *entity.Thread) error
	DeleteThread(id string) error
	SearchThreads(forumID, query string, limit int64) ([]ThreadHit, error)
}

type meiliSearchService struct {
	client meilisearch.ServiceManager
}

func NewMeiliSearchService(client meilisearch.ServiceManager) MeiliSearchService {
	s := &meiliSearchService{client: client}
	s.initIndexes()
	return s
}

func (s *meiliSearchService) initIndexes() {
	filterable := []any{"forumId"}
	if _, err := s.client.Index(threadsIndex).UpdateFilterableAttributes(&filterable); err != nil {
		logger.L().Warnw("failed to update threads filterable attributes", "error", err)
	}

	sortable := []string{"createdAt"}
	if _, err := s.client.Index(threadsIndex).UpdateSortableAttributes(&sortable); err != nil {
		logger.L().Warnw("failed to update threads sortable attributes", "error", err)
	}
}

func toDoc(thread *entity.Thread) ThreadHit {
	return ThreadHit{
		ID:        thread.ID,
		Title:     thread.Title,
		ForumID:   thread.ForumID,
		CreatedAt: thread.CreatedAt,
	}
}

func (s *meiliSearchService) IndexThread(thread *entity.Thread) error {
	task, err := s.client.Index(threadsIndex).AddDocuments([]ThreadHit{toDoc(thread)}, strPtr("id"))
	if err != nil {
		return err
	}
	logger.L().Debugw("indexed thread", "thread_id", thread.ID, "task_uid", task.TaskUID)
	return nil
}

func (s *meiliSearchService) DeleteThread(id string) error {
	_, err := s.client.Index(threadsIndex).DeleteDocument(id)
	return err
}

func (s *meiliSearchService) SearchThreads(forumID, query string, limit int64) ([]ThreadHit, error) {
	req := &meilisearch.SearchRequest{Limit: limit}
	if forumID != "" {
		req.Filter = forumFilter(forumID)
	}

	raw, err := s.client.Index(threadsIndex).SearchRaw(query, req)
	if err != nil {
		return nil, fmt.Errorf("search threads: %w", err)
	}

	var resp struct {
		Hits []ThreadHit `json:"hits"`
	}
	if err := json.Unmarshal(*raw, &resp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	if resp.Hits == nil {
		resp.Hits = []ThreadHit{}
	}
	return resp.Hits, nil
}

func forumFilter(forumID string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(forumID)
	return fmt.Sprintf(`forumId = "%s"`, escaped)
}

func strPtr(s string) *string {
	return &s
}
