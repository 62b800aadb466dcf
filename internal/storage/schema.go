package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// keySeparator joins the parts of a compound index key.
const keySeparator = "\x1f"

// Schema declares a versioned store and the collections it must contain.
type Schema struct {
	Name        string
	Version     int
	Collections []CollectionSpec
}

// CollectionSpec declares one object collection. Objects are JSON documents
// keyed by an int64 primary key.
type CollectionSpec struct {
	Name    string
	Indexes []IndexSpec
}

// IndexSpec declares a secondary index over top-level document fields. A
// KeyPath with more than one field builds a compound key. Documents with a
// missing or null field on the path are left out of the index.
type IndexSpec struct {
	Name    string   `json:"name"`
	KeyPath []string `json:"keyPath"`
	Unique  bool     `json:"unique"`
}

func (s Schema) validate() error {
	if s.Name == "" {
		return fmt.Errorf("%w: store name is required", ErrInvalidSchema)
	}
	if s.Version < 1 {
		return fmt.Errorf("%w: version must be positive", ErrInvalidSchema)
	}
	seen := make(map[string]bool, len(s.Collections))
	for _, c := range s.Collections {
		if c.Name == "" {
			return fmt.Errorf("%w: collection name is required", ErrInvalidSchema)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate collection %q", ErrInvalidSchema, c.Name)
		}
		seen[c.Name] = true

		indexes := make(map[string]bool, len(c.Indexes))
		for _, idx := range c.Indexes {
			if idx.Name == "" || len(idx.KeyPath) == 0 {
				return fmt.Errorf("%w: index on %q needs a name and a key path", ErrInvalidSchema, c.Name)
			}
			if indexes[idx.Name] {
				return fmt.Errorf("%w: duplicate index %q on %q", ErrInvalidSchema, idx.Name, c.Name)
			}
			indexes[idx.Name] = true
		}
	}
	return nil
}

func (c CollectionSpec) index(name string) (IndexSpec, bool) {
	for _, idx := range c.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexSpec{}, false
}

func (i IndexSpec) equal(other IndexSpec) bool {
	return i.Name == other.Name && i.Unique == other.Unique && slices.Equal(i.KeyPath, other.KeyPath)
}

type indexEntry struct {
	index  string
	key    string
	unique bool
}

// indexEntries computes the index keys a document contributes.
func (c CollectionSpec) indexEntries(body []byte) ([]indexEntry, error) {
	if len(c.Indexes) == 0 {
		return nil, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}

	entries := make([]indexEntry, 0, len(c.Indexes))
	for _, idx := range c.Indexes {
		key, ok := idx.keyFrom(fields)
		if !ok {
			continue
		}
		entries = append(entries, indexEntry{index: idx.Name, key: key, unique: idx.Unique})
	}
	return entries, nil
}

func (i IndexSpec) keyFrom(fields map[string]json.RawMessage) (string, bool) {
	parts := make([]string, 0, len(i.KeyPath))
	for _, path := range i.KeyPath {
		raw, ok := fields[path]
		if !ok {
			return "", false
		}
		part, ok := encodeKeyPart(raw)
		if !ok {
			return "", false
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, keySeparator), true
}

// encodeKeyPart turns a JSON scalar into an index key part. The type prefix
// keeps the string "1" and the number 1 apart.
func encodeKeyPart(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return "s:" + s, true
	case 't', 'f':
		return "b:" + string(raw), true
	case 'n', '{', '[':
		return "", false
	default:
		f, err := strconv.ParseFloat(string(raw), 64)
		if err != nil {
			return "", false
		}
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64), true
	}
}

// KeyOf encodes Go values the same way document fields are encoded, so it
// can be matched against an index with the same number of key path parts.
func KeyOf(values ...any) (string, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		part, ok := encodeKeyPart(raw)
		if !ok {
			return "", fmt.Errorf("%w: %T", ErrInvalidKey, v)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, keySeparator), nil
}
