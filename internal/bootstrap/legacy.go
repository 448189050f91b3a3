package bootstrap

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"anoa.com/lmsforum/internal/entity"
	userRepo "anoa.com/lmsforum/internal/modules/user/repository"
	"anoa.com/lmsforum/pkg/crypto"
	"anoa.com/lmsforum/pkg/docstore"
	"anoa.com/lmsforum/pkg/logger"
)

// UpgradeReport counts the records rewritten by UpgradeLegacySchema.
type UpgradeReport struct {
	Threads int
	Posts   int
	Users   int
}

// UpgradeLegacySchema rewrites records written by older revisions of the
// forum into the current schema:
//
//   - likedBy and subscribers stored as arrays of emails become sets keyed by user id
//   - embedded author objects, JSON strings or encrypted blobs become authorId plus a users record
//   - group and groupId become forumId
//   - plaintext content is encrypted
//   - missing forum and thread membership indexes are rebuilt and likes is recomputed
//
// All rewrites are applied in one update. Running it on current data writes nothing.
func UpgradeLegacySchema(ctx context.Context, store docstore.Store, cipher *crypto.Cipher) (*UpgradeReport, error) {
	u := &upgrader{
		store:  store,
		cipher: cipher,
		users:  userRepo.NewUserRepository(store, cipher),
		writes: map[string]any{},
		report: &UpgradeReport{},
	}

	threads, err := store.Get(ctx, entity.CollectionThreads)
	if err != nil {
		return nil, err
	}
	existing := map[string]bool{}
	for _, t := range threads.Children() {
		existing[t.Key()] = true
		if err := u.thread(ctx, t); err != nil {
			return nil, fmt.Errorf("thread %s: %w", t.Key(), err)
		}
	}

	posts, err := store.Get(ctx, entity.CollectionPosts)
	if err != nil {
		return nil, err
	}
	for _, p := range posts.Children() {
		if err := u.post(ctx, p, existing); err != nil {
			return nil, fmt.Errorf("post %s: %w", p.Key(), err)
		}
	}

	if len(u.writes) == 0 {
		return u.report, nil
	}
	if err := store.Update(ctx, "", u.writes); err != nil {
		return nil, err
	}

	logger.L().Infow("legacy schema upgraded",
		"threads", u.report.Threads,
		"posts", u.report.Posts,
		"users", u.report.Users,
	)
	return u.report, nil
}

type upgrader struct {
	store  docstore.Store
	cipher *crypto.Cipher
	users  userRepo.UserRepository
	writes map[string]any
	report *UpgradeReport
}

func (u *upgrader) thread(ctx context.Context, snap docstore.Snapshot) error {
	doc, ok := snap.Value().(map[string]any)
	if !ok {
		logger.L().Warnw("skipping malformed thread", "thread_id", snap.Key())
		return nil
	}
	base := entity.ThreadPath(snap.Key())
	before := len(u.writes)

	forumID, _ := doc["forumId"].(string)
	if forumID == "" {
		for _, legacy := range []string{"groupId", "group"} {
			if v, ok := doc[legacy].(string); ok && v != "" {
				forumID = v
				break
			}
		}
		if forumID != "" {
			u.writes[base+"/forumId"] = forumID
		}
	}
	for _, legacy := range []string{"groupId", "group"} {
		if _, ok := doc[legacy]; ok {
			u.writes[base+"/"+legacy] = nil
		}
	}
	if docstore.ValidKey(forumID) {
		index, err := u.readIndex(ctx, entity.ForumIndexPath(forumID, snap.Key()))
		if err != nil {
			return fmt.Errorf("forum index: %w", err)
		}
		if !index {
			u.writes[entity.ForumIndexPath(forumID, snap.Key())] = true
		}
	}

	if err := u.author(ctx, base, doc); err != nil {
		return err
	}

	if set, changed, err := u.userSet(ctx, doc["subscribers"]); err != nil {
		return err
	} else if changed {
		u.writes[base+"/subscribers"] = set
	}

	if _, ok := doc["sortOrder"]; !ok {
		if created, ok := doc["createdAt"]; ok {
			u.writes[base+"/sortOrder"] = created
		}
	}

	if len(u.writes) > before {
		u.report.Threads++
	}
	return nil
}

func (u *upgrader) post(ctx context.Context, snap docstore.Snapshot, threads map[string]bool) error {
	doc, ok := snap.Value().(map[string]any)
	if !ok {
		logger.L().Warnw("skipping malformed post", "post_id", snap.Key())
		return nil
	}
	base := entity.PostPath(snap.Key())
	before := len(u.writes)

	if err := u.author(ctx, base, doc); err != nil {
		return err
	}

	for _, field := range []string{"content", "originalContent"} {
		text, ok := doc[field].(string)
		if !ok || text == "" || u.cipher.Decrypt(text) != crypto.DecryptionFailed {
			continue
		}
		encrypted, err := u.cipher.Encrypt(text)
		if err != nil {
			return err
		}
		u.writes[base+"/"+field] = encrypted
	}

	set, changed, err := u.userSet(ctx, doc["likedBy"])
	if err != nil {
		return err
	}
	if changed {
		u.writes[base+"/likedBy"] = set
	}
	if likes, _ := doc["likes"].(json.Number); likes.String() != fmt.Sprint(len(set)) {
		u.writes[base+"/likes"] = len(set)
	}

	// legacy posts carried deleted:false and parentId:null explicitly
	if deleted, ok := doc["deleted"].(bool); ok && !deleted {
		u.writes[base+"/deleted"] = nil
	}

	threadID, _ := doc["threadId"].(string)
	if threads[threadID] {
		index, err := u.readIndex(ctx, entity.ThreadPostIndexPath(threadID, snap.Key()))
		if err != nil {
			return fmt.Errorf("thread index: %w", err)
		}
		if !index {
			u.writes[entity.ThreadPostIndexPath(threadID, snap.Key())] = true
		}
	}

	if len(u.writes) > before {
		u.report.Posts++
	}
	return nil
}

// author replaces an embedded author with an authorId reference.
func (u *upgrader) author(ctx context.Context, base string, doc map[string]any) error {
	raw, ok := doc["author"]
	if !ok {
		return nil
	}
	u.writes[base+"/author"] = nil
	if id, _ := doc["authorId"].(string); id != "" {
		return nil
	}

	id, err := u.ensure(ctx, u.parseAuthor(raw))
	if err != nil {
		return err
	}
	u.writes[base+"/authorId"] = id
	return nil
}

func (u *upgrader) parseAuthor(raw any) crypto.User {
	if s, ok := raw.(string); ok {
		if user := u.cipher.DecryptUser(s); user != crypto.PlaceholderUser {
			return user
		}
	}
	encoded, err := json.Marshal(raw)
	if err != nil {
		return crypto.PlaceholderUser
	}
	return userRepo.ParseAuthor(encoded)
}

// userSet converts a list of emails (stored as an index-keyed object) into a
// set of user ids. It reports whether the stored value must be rewritten.
func (u *upgrader) userSet(ctx context.Context, raw any) (map[string]any, bool, error) {
	stored, _ := raw.(map[string]any)
	set := make(map[string]any, len(stored))
	changed := false
	for key, v := range stored {
		switch v := v.(type) {
		case bool:
			if v {
				set[key] = true
			} else {
				changed = true
			}
		case string:
			email := strings.TrimSpace(v)
			if email == "" {
				changed = true
				continue
			}
			id, err := u.ensure(ctx, crypto.User{Name: email, Email: email})
			if err != nil {
				return nil, false, err
			}
			set[id] = true
			changed = true
		default:
			changed = true
		}
	}
	return set, changed, nil
}

func (u *upgrader) ensure(ctx context.Context, user crypto.User) (string, error) {
	id, writes, err := u.users.Ensure(ctx, user)
	if err != nil {
		return "", err
	}
	for p, v := range writes {
		if _, seen := u.writes[p]; !seen {
			u.report.Users++
		}
		u.writes[p] = v
	}
	return id, nil
}

func (u *upgrader) readIndex(ctx context.Context, path string) (bool, error) {
	snap, err := u.store.Get(ctx, path)
	if err != nil {
		return false, err
	}
	on, _ := snap.Value().(bool)
	return on, nil
}
