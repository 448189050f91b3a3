package post

import (
	"context"
	"sort"

	"anoa.com/lmsforum/internal/entity"
	postDto "anoa.com/lmsforum/internal/modules/post/dto"
	"anoa.com/lmsforum/pkg/crypto"
)

func (s *postService) mapToResponses(ctx context.Context, posts []*entity.Post, currentUser string) ([]postDto.PostResponse, error) {
	var authorIDs []string
	seen := map[string]bool{}
	for _, p := range posts {
		if p.AuthorID != "" && !seen[p.AuthorID] {
			seen[p.AuthorID] = true
			authorIDs = append(authorIDs, p.AuthorID)
		}
	}
	authors, err := s.userRepo.Resolve(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	var currentID string
	if currentUser != "" {
		currentID = s.userRepo.ID(currentUser)
	}

	out := make([]postDto.PostResponse, 0, len(posts))
	for _, p := range posts {
		author, ok := authors[p.AuthorID]
		if !ok {
			author = crypto.PlaceholderUser
		}

		content := DeletedContent
		if !p.Deleted {
			content = s.cipher.Decrypt(p.Content)
		}

		var parentID *string
		if !p.IsTopLevel() {
			parentID = p.ParentID
		}

		likedBy := sortedKeys(p.LikedBy)
		out = append(out, postDto.PostResponse{
			ID:        p.ID,
			ThreadID:  p.ThreadID,
			ParentID:  parentID,
			Content:   content,
			Author:    author,
			AuthorID:  p.AuthorID,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
			Likes:     len(likedBy),
			LikedBy:   likedBy,
			HasLiked:  currentID != "" && p.LikedBy[currentID],
			Deleted:   p.Deleted,
			DeletedAt: p.DeletedAt,
		})
	}
	return out, nil
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k, on := range set {
		if on {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
