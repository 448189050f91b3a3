package post

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"anoa.com/lmsforum/internal/entity"
	realtime "anoa.com/lmsforum/internal/modules/realtime/service"
	"anoa.com/lmsforum/pkg/apperror"
	"anoa.com/lmsforum/pkg/docstore"
)

// AdminDeletePost permanently removes a post and every transitive reply,
// together with their thread index entries, in one update. It returns the
// removed ids, root first.
func (s *postService) AdminDeletePost(ctx context.Context, postID string) ([]string, error) {
	root, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}

	posts := map[string]*entity.Post{root.ID: root}
	thread, err := s.threadRepo.FindByID(ctx, root.ThreadID)
	switch {
	case err == nil:
		siblings, err := s.postRepo.FindByThread(ctx, thread)
		if err != nil {
			return nil, err
		}
		for _, p := range siblings {
			posts[p.ID] = p
		}
	case errors.Is(err, apperror.ErrNotFound), errors.Is(err, apperror.ErrBadRequest):
		// orphaned post: nothing else can reply to it through a thread
	default:
		return nil, err
	}

	ids, err := collectSubtree(root.ID, posts)
	if err != nil {
		return nil, err
	}

	writes := make(map[string]any, 2*len(ids))
	for _, id := range ids {
		writes[entity.PostPath(id)] = nil
		if threadID := posts[id].ThreadID; docstore.ValidKey(threadID) {
			writes[entity.ThreadPostIndexPath(threadID, id)] = nil
		}
	}
	if err := s.postRepo.Apply(ctx, writes); err != nil {
		return nil, err
	}

	s.realtime.PublishThread(ctx, realtime.NewEvent(realtime.EventPostDeleted, root.ThreadID, root.ID))
	return ids, nil
}

// collectSubtree expands {root} ∪ {p : p.parentId in the set} breadth first
// over a parentId → children map. In a forest every post is reached once, so
// reaching one twice means the replies form a cycle.
func collectSubtree(rootID string, posts map[string]*entity.Post) ([]string, error) {
	children := make(map[string][]string)
	for id, p := range posts {
		if !p.IsTopLevel() {
			children[*p.ParentID] = append(children[*p.ParentID], id)
		}
	}
	for _, c := range children {
		sort.Strings(c)
	}

	visited := map[string]bool{rootID: true}
	order := []string{rootID}
	for queue := []string{rootID}; len(queue) > 0; queue = queue[1:] {
		for _, child := range children[queue[0]] {
			if visited[child] {
				return nil, fmt.Errorf("reply cycle through post %s: %w", child, apperror.ErrDataIntegrity)
			}
			visited[child] = true
			order = append(order, child)
			queue = append(queue, child)
		}
	}
	return order, nil
}
