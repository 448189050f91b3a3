package docstore

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var (
	ErrInvalidPath      = errors.New("invalid store path")
	ErrOverlappingPaths = errors.New("update paths overlap")
	ErrMissingPath      = errors.New("required path holds no value")
)

// Join builds a path from segments.
func Join(segs ...string) string {
	return strings.Join(segs, "/")
}

// ValidKey reports whether s can be used as a single path segment.
func ValidKey(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch r {
		case '/', '.', '#', '$', '[', ']':
			return false
		}
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

func splitPath(p string) ([]string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(p, "/")
	for _, s := range segs {
		if !ValidKey(s) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	return segs, nil
}

// docKey is the document a path belongs to: its first two segments.
func docKey(segs []string) string {
	if len(segs) < 2 {
		return segs[0]
	}
	return segs[0] + "/" + segs[1]
}

func ancestors(segs []string) []string {
	out := make([]string, 0, len(segs)-1)
	for i := 1; i < len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "/"))
	}
	return out
}

func within(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
