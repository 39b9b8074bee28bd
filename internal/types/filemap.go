package types

import (
	"bytes"
	"sort"
	"strings"
)

// FileMap is a set of workspace files keyed by slash-separated relative path.
// Path order is not significant; keys are unique by construction.
type FileMap map[string][]byte

// NewFileMap creates an empty FileMap.
func NewFileMap() FileMap {
	return make(FileMap)
}

// Clone returns a deep copy of the FileMap. Byte contents are copied,
// so mutations of the clone never affect the original.
func (f FileMap) Clone() FileMap {
	if f == nil {
		return nil
	}
	out := make(FileMap, len(f))
	for path, content := range f {
		c := make([]byte, len(content))
		copy(c, content)
		out[path] = c
	}
	return out
}

// Merge returns a new FileMap containing all entries of f overlaid with
// all entries of other. On path collision the entry from other wins.
func (f FileMap) Merge(other FileMap) FileMap {
	out := f.Clone()
	if out == nil {
		out = make(FileMap, len(other))
	}
	for path, content := range other {
		c := make([]byte, len(content))
		copy(c, content)
		out[path] = c
	}
	return out
}

// WithPrefix returns a new FileMap with every path nested under prefix.
// A trailing slash on the prefix is optional.
func (f FileMap) WithPrefix(prefix string) FileMap {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	out := make(FileMap, len(f))
	for path, content := range f {
		c := make([]byte, len(content))
		copy(c, content)
		out[prefix+path] = c
	}
	return out
}

// Equal reports whether two FileMaps contain the same paths with the
// same byte content.
func (f FileMap) Equal(other FileMap) bool {
	if len(f) != len(other) {
		return false
	}
	for path, content := range f {
		oc, ok := other[path]
		if !ok || !bytes.Equal(content, oc) {
			return false
		}
	}
	return true
}

// Paths returns the sorted list of paths in the FileMap.
func (f FileMap) Paths() []string {
	paths := make([]string, 0, len(f))
	for path := range f {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
