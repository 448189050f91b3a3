package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is a hierarchical, path-addressed document store. Paths look like
// "threads/<id>/title". Writing null removes a path.
type Store interface {
	Get(ctx context.Context, path string) (Snapshot, error)
	// GetMany reads whole documents ("collection/key" paths) in one round trip.
	GetMany(ctx context.Context, paths []string) (map[string]Snapshot, error)
	Set(ctx context.Context, path string, value any) error
	// Update writes every base-relative path in values atomically.
	Update(ctx context.Context, base string, values map[string]any) error
	// UpdateIf is Update guarded by required: when any required path holds
	// no value inside the transaction, nothing is written and the error
	// wraps ErrMissingPath.
	UpdateIf(ctx context.Context, required []string, base string, values map[string]any) error
	Push(ctx context.Context, path string, value any) (string, error)
	Remove(ctx context.Context, path string) error
	NewKey() string
}

// Node is one stored leaf.
type Node struct {
	Path      string    `gorm:"primaryKey;size:512"`
	Doc       string    `gorm:"size:512;index;not null"`
	Value     LeafJSON  `gorm:"not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Node) TableName() string {
	return "nodes"
}

const batchSize = 400

type gormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// Migrate creates the nodes table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&Node{})
}

// NewKey returns a time-ordered unique key.
func (s *gormStore) NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}

func (s *gormStore) Get(ctx context.Context, path string) (Snapshot, error) {
	segs, err := splitPath(path)
	if err != nil {
		return Snapshot{}, err
	}
	root := Join(segs...)

	rows, err := subtreeRows(s.db.WithContext(ctx), segs)
	if err != nil {
		return Snapshot{}, err
	}

	value, err := assemble(root, rows)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{path: root, value: value}, nil
}

func (s *gormStore) GetMany(ctx context.Context, paths []string) (map[string]Snapshot, error) {
	docs := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		segs, err := splitPath(p)
		if err != nil {
			return nil, err
		}
		if len(segs) != 2 {
			return nil, fmt.Errorf("%w: GetMany expects collection/key paths, got %q", ErrInvalidPath, p)
		}
		if d := Join(segs...); !seen[d] {
			seen[d] = true
			docs = append(docs, d)
		}
	}

	byDoc := make(map[string][]Node, len(docs))
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		var rows []Node
		if err := s.db.WithContext(ctx).Where("doc IN ?", docs[start:end]).Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, r := range rows {
			byDoc[r.Doc] = append(byDoc[r.Doc], r)
		}
	}

	out := make(map[string]Snapshot, len(docs))
	for _, d := range docs {
		value, err := assemble(d, byDoc[d])
		if err != nil {
			return nil, err
		}
		out[d] = Snapshot{path: d, value: value}
	}
	return out, nil
}

func (s *gormStore) Set(ctx context.Context, path string, value any) error {
	return s.Update(ctx, "", map[string]any{path: value})
}

func (s *gormStore) Remove(ctx context.Context, path string) error {
	return s.Set(ctx, path, nil)
}

func (s *gormStore) Push(ctx context.Context, path string, value any) (string, error) {
	key := s.NewKey()
	if err := s.Set(ctx, Join(path, key), value); err != nil {
		return "", err
	}
	return key, nil
}

type write struct {
	segs   []string
	leaves []Node
}

func (s *gormStore) Update(ctx context.Context, base string, values map[string]any) error {
	return s.UpdateIf(ctx, nil, base, values)
}

func (s *gormStore) UpdateIf(ctx context.Context, required []string, base string, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}

	guards := make([][]string, 0, len(required))
	for _, r := range required {
		segs, err := splitPath(r)
		if err != nil {
			return err
		}
		guards = append(guards, segs)
	}

	writes := make([]write, 0, len(values))
	targets := make(map[string]bool, len(values))
	for rel, v := range values {
		full := rel
		if base != "" {
			full = base + "/" + rel
		}
		segs, err := splitPath(full)
		if err != nil {
			return err
		}
		p := Join(segs...)
		if targets[p] {
			return fmt.Errorf("%w: %q given twice", ErrOverlappingPaths, p)
		}
		targets[p] = true

		leaves, err := flatten(segs, v)
		if err != nil {
			return err
		}
		writes = append(writes, write{segs: segs, leaves: leaves})
	}
	for _, w := range writes {
		for _, a := range ancestors(w.segs) {
			if targets[a] {
				return fmt.Errorf("%w: %q contains %q", ErrOverlappingPaths, a, Join(w.segs...))
			}
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, segs := range guards {
			// FOR SHARE holds off a concurrent delete until commit; sqlite drops the clause
			rows, err := subtreeRows(tx.Clauses(clause.Locking{Strength: "SHARE"}).Select("path", "doc"), segs)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("%w: %q", ErrMissingPath, Join(segs...))
			}
		}
		for _, w := range writes {
			if err := replace(tx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// replace drops everything at and below the target, any scalar stored at an
// ancestor, then inserts the new leaves.
func replace(tx *gorm.DB, w write) error {
	rows, err := subtreeRows(tx.Select("path", "doc"), w.segs)
	if err != nil {
		return err
	}
	doomed := ancestors(w.segs)
	for _, r := range rows {
		doomed = append(doomed, r.Path)
	}
	for start := 0; start < len(doomed); start += batchSize {
		end := min(start+batchSize, len(doomed))
		if err := tx.Where("path IN ?", doomed[start:end]).Delete(&Node{}).Error; err != nil {
			return err
		}
	}
	if len(w.leaves) == 0 {
		return nil
	}
	return tx.CreateInBatches(w.leaves, batchSize).Error
}

// subtreeRows loads the rows at or below segs. Whole documents are fetched by
// their doc column; top-level collections are narrowed with LIKE and filtered
// exactly here because LIKE is case-insensitive on sqlite.
func subtreeRows(q *gorm.DB, segs []string) ([]Node, error) {
	root := Join(segs...)
	var rows []Node
	var err error
	if len(segs) >= 2 {
		err = q.Where("doc = ?", docKey(segs)).Find(&rows).Error
	} else {
		err = q.Where(`path = ? OR doc LIKE ? ESCAPE '\'`, root, escapeLike(root)+"/%").Find(&rows).Error
	}
	if err != nil {
		return nil, err
	}

	out := rows[:0]
	for _, r := range rows {
		if within(r.Path, root) {
			out = append(out, r)
		}
	}
	return out, nil
}

// flatten turns a value into leaf rows under segs.
func flatten(segs []string, value any) ([]Node, error) {
	if value == nil {
		return nil, nil
	}
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("docstore: value at %q is not JSON encodable: %w", Join(segs...), err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}

	var leaves []Node
	var walk func(path string, v any) error
	walk = func(path string, v any) error {
		switch t := v.(type) {
		case nil:
			return nil
		case map[string]any:
			for k, child := range t {
				if !ValidKey(k) {
					return fmt.Errorf("%w: key %q under %q", ErrInvalidPath, k, path)
				}
				if err := walk(path+"/"+k, child); err != nil {
					return err
				}
			}
			return nil
		case []any:
			for i, child := range t {
				if err := walk(path+"/"+strconv.Itoa(i), child); err != nil {
					return err
				}
			}
			return nil
		default:
			raw, err := json.Marshal(t)
			if err != nil {
				return err
			}
			leaves = append(leaves, Node{Path: path, Doc: docOfPath(path), Value: LeafJSON(raw)})
			return nil
		}
	}
	if err := walk(Join(segs...), tree); err != nil {
		return nil, err
	}
	return leaves, nil
}

func docOfPath(path string) string {
	i := strings.IndexByte(path, '/')
	if i < 0 {
		return path
	}
	j := strings.IndexByte(path[i+1:], '/')
	if j < 0 {
		return path
	}
	return path[:i+1+j]
}
