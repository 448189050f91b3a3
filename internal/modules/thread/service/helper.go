package thread

import (
	"context"
	"sort"

	"anoa.com/lmsforum/internal/entity"
	threadDto "anoa.com/lmsforum/internal/modules/thread/dto"
	"anoa.com/lmsforum/pkg/crypto"
)

// sortThreads orders by sortOrder, then createdAt.
func sortThreads(threads []*entity.Thread) {
	sort.SliceStable(threads, func(i, j int) bool {
		if threads[i].SortOrder != threads[j].SortOrder {
			return threads[i].SortOrder < threads[j].SortOrder
		}
		return threads[i].CreatedAt < threads[j].CreatedAt
	})
}

func (s *service) mapToResponses(ctx context.Context, threads []*entity.Thread, currentUser string) ([]threadDto.ThreadResponse, error) {
	var ids []string
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, t := range threads {
		add(t.AuthorID)
		for _, uid := range sortedKeys(t.Subscribers) {
			add(uid)
		}
	}

	users, err := s.userRepo.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	lookup := func(id string) crypto.User {
		if u, ok := users[id]; ok {
			return u
		}
		return crypto.PlaceholderUser
	}

	var currentID string
	if currentUser != "" {
		currentID = s.userRepo.ID(currentUser)
	}

	out := make([]threadDto.ThreadResponse, 0, len(threads))
	for _, t := range threads {
		subscribers := make([]crypto.User, 0, len(t.Subscribers))
		for _, uid := range sortedKeys(t.Subscribers) {
			subscribers = append(subscribers, lookup(uid))
		}
		out = append(out, threadDto.ThreadResponse{
			ID:           t.ID,
			Title:        t.Title,
			Author:       lookup(t.AuthorID),
			AuthorID:     t.AuthorID,
			ForumID:      t.ForumID,
			CreatedAt:    t.CreatedAt,
			UpdatedAt:    t.UpdatedAt,
			SortOrder:    t.SortOrder,
			ReadOnly:     t.ReadOnly,
			Deleted:      t.Deleted,
			Subscribers:  subscribers,
			PostCount:    len(t.PostIDs),
			IsSubscribed: currentID != "" && t.IsSubscribed(currentID),
		})
	}
	return out, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k, v := range set {
		if v {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
