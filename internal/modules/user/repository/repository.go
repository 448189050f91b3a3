package user

import (
	"context"
	"encoding/json"
	"strings"

	"anoa.com/lmsforum/internal/entity"
	"anoa.com/lmsforum/pkg/crypto"
	"anoa.com/lmsforum/pkg/docstore"
	"anoa.com/lmsforum/pkg/logger"
)

type UserRepository interface {
	// ID derives the store key of the user with the given email.
	ID(email string) string
	// Ensure returns the user's id and, when users/{id} does not exist yet,
	// the write that creates it. Callers fold the write into their own update.
	Ensure(ctx context.Context, u crypto.User) (string, map[string]any, error)
	// Resolve reads and decrypts the given users. Missing or unreadable
	// records resolve to crypto.PlaceholderUser.
	Resolve(ctx context.Context, ids []string) (map[string]crypto.User, error)
}

type userRepository struct {
	store  docstore.Store
	cipher *crypto.Cipher
}

func NewUserRepository(store docstore.Store, cipher *crypto.Cipher) UserRepository {
	return &userRepository{store: store, cipher: cipher}
}

func (r *userRepository) ID(email string) string {
	return r.cipher.DeriveUserID(email)
}

func (r *userRepository) Ensure(ctx context.Context, u crypto.User) (string, map[string]any, error) {
	u.Email = strings.TrimSpace(u.Email)
	id := r.ID(u.Email)

	snap, err := r.store.Get(ctx, entity.UserPath(id))
	if err != nil {
		return "", nil, err
	}
	if snap.Exists() {
		return id, nil, nil
	}

	blob, err := r.cipher.EncryptUser(u)
	if err != nil {
		return "", nil, err
	}
	return id, map[string]any{entity.UserPath(id): blob}, nil
}

func (r *userRepository) Resolve(ctx context.Context, ids []string) (map[string]crypto.User, error) {
	out := make(map[string]crypto.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	paths := make([]string, 0, len(ids))
	for _, id := range ids {
		if !docstore.ValidKey(id) {
			out[id] = crypto.PlaceholderUser
			continue
		}
		paths = append(paths, entity.UserPath(id))
	}

	snaps, err := r.store.GetMany(ctx, paths)
	if err != nil {
		return nil, err
	}
	for _, snap := range snaps {
		blob, ok := snap.Value().(string)
		if !ok {
			if snap.Exists() {
				logger.L().Warnw("user record is not an encrypted blob", "user_id", snap.Key())
			}
			out[snap.Key()] = crypto.PlaceholderUser
			continue
		}
		out[snap.Key()] = r.cipher.DecryptUser(blob)
	}
	return out, nil
}

// ParseAuthor accepts an author given either as an object or as a
// JSON-encoded string. Anything unusable becomes the placeholder user.
func ParseAuthor(raw json.RawMessage) crypto.User {
	var u crypto.User
	if err := json.Unmarshal(raw, &u); err != nil {
		var encoded string
		if json.Unmarshal(raw, &encoded) != nil || json.Unmarshal([]byte(encoded), &u) != nil {
			return crypto.PlaceholderUser
		}
	}
	if strings.TrimSpace(u.Email) == "" {
		return crypto.PlaceholderUser
	}
	return u
}
