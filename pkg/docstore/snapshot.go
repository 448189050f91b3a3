package docstore

import (
	"encoding/json"
	"sort"
	"strings"
)

// Snapshot is the value stored under a path at read time.
type Snapshot struct {
	path  string
	value any
}

func (s Snapshot) Path() string { return s.path }

// Key is the last segment of the path.
func (s Snapshot) Key() string {
	if i := strings.LastIndex(s.path, "/"); i >= 0 {
		return s.path[i+1:]
	}
	return s.path
}

func (s Snapshot) Exists() bool { return s.value != nil }

// Value returns the raw tree: map[string]any for objects, or a scalar
// (string, bool, json.Number).
func (s Snapshot) Value() any { return s.value }

// Decode unmarshals the stored tree into v. It is a no-op when nothing is stored.
func (s Snapshot) Decode(v any) error {
	if s.value == nil {
		return nil
	}
	b, err := json.Marshal(s.value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func (s Snapshot) Child(name string) Snapshot {
	child := Snapshot{path: s.path + "/" + name}
	if m, ok := s.value.(map[string]any); ok {
		child.value = m[name]
	}
	return child
}

// Keys lists the child keys in ascending order.
func (s Snapshot) Keys() []string {
	m, ok := s.value.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Children returns one snapshot per child key in ascending key order.
func (s Snapshot) Children() []Snapshot {
	keys := s.Keys()
	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.Child(k))
	}
	return out
}

// assemble rebuilds the subtree rooted at root from leaf rows.
func assemble(root string, rows []Node) (any, error) {
	var tree any
	for _, n := range rows {
		if !within(n.Path, root) {
			continue
		}
		leaf, err := decodeLeaf(n.Value)
		if err != nil {
			return nil, err
		}
		if n.Path == root {
			tree = leaf
			continue
		}
		rel := strings.Split(strings.TrimPrefix(n.Path, root+"/"), "/")
		m, ok := tree.(map[string]any)
		if !ok {
			m = map[string]any{}
			tree = m
		}
		for i, seg := range rel {
			if i == len(rel)-1 {
				m[seg] = leaf
				break
			}
			next, ok := m[seg].(map[string]any)
			if !ok {
				next = map[string]any{}
				m[seg] = next
			}
			m = next
		}
	}
	return tree, nil
}

func decodeLeaf(raw []byte) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
