// Package properties implements the ordered key/value record that backs
// every entity extracted from an export package. A bag is built during
// the single ingestion pass, optionally merged with an earlier on-disk
// copy, and flushed to a backing file exactly once per logical write.
package properties

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// DateLayout is the fixed textual date-time pattern used throughout an
// export package (e.g. 2012-03-07 17:16:48.158). All timestamps are UTC.
const DateLayout = "2006-01-02 15:04:05.000"

// Bag is an ordered mapping of property key to Value. Keys are unique;
// setting an existing key replaces its value in place without moving it.
type Bag struct {
	keys   []string
	values map[string]Value
	path   string
}

// New creates an empty, unbacked bag.
func New() *Bag {
	return &Bag{values: make(map[string]Value)}
}

// NewFile creates an empty bag backed by the given file. The file is not
// read; use Load for that.
func NewFile(path string) *Bag {
	b := New()
	b.path = path
	return b
}

// Path returns the backing file path, empty for unbacked bags.
func (b *Bag) Path() string { return b.path }

// Len returns the number of keys in the bag.
func (b *Bag) Len() int { return len(b.keys) }

// Keys returns the keys in insertion order.
func (b *Bag) Keys() []string {
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Set stores a value under key, preserving the key's original position
// when it already exists.
func (b *Bag) Set(key string, v Value) {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = v
}

// Get returns the raw value for key.
func (b *Bag) Get(key string) (Value, bool) {
	v, ok := b.values[key]
	return v, ok
}

// GetString returns the string form of the value under key, or def when
// the key is absent or the value has no string form.
func (b *Bag) GetString(key, def string) string {
	v, ok := b.values[key]
	if !ok {
		return def
	}
	s, ok := v.AsString()
	if !ok {
		return def
	}
	return s
}

// GetLong returns the integer under key, or def when the key is absent
// or the value cannot be coerced. Coercion failures never abort a pass.
func (b *Bag) GetLong(key string, def int64) int64 {
	v, ok := b.values[key]
	if !ok {
		return def
	}
	n, ok := v.AsLong()
	if !ok {
		return def
	}
	return n
}

// GetInt is GetLong narrowed to int.
func (b *Bag) GetInt(key string, def int) int {
	return int(b.GetLong(key, int64(def)))
}

// GetBool returns the boolean under key, or def.
func (b *Bag) GetBool(key string, def bool) bool {
	v, ok := b.values[key]
	if !ok {
		return def
	}
	f, ok := v.AsBool()
	if !ok {
		return def
	}
	return f
}

// GetList returns the elements of the list or set under key, or def.
func (b *Bag) GetList(key string, def []Value) []Value {
	v, ok := b.values[key]
	if !ok {
		return def
	}
	elems, ok := v.AsList()
	if !ok {
		return def
	}
	return elems
}

// GetLongList coerces the list under key to integers. Elements that do
// not parse are skipped with a debug log entry; a scalar value under the
// key is treated as a one-element list.
func (b *Bag) GetLongList(key string, def []int64) []int64 {
	v, ok := b.values[key]
	if !ok {
		return def
	}
	elems, ok := v.AsList()
	if !ok {
		if n, isScalar := v.AsLong(); isScalar {
			return []int64{n}
		}
		return def
	}
	out := make([]int64, 0, len(elems))
	for _, e := range elems {
		n, ok := e.AsLong()
		if !ok {
			slog.Debug("skipping non-numeric list element",
				slog.String("key", key))
			continue
		}
		out = append(out, n)
	}
	return out
}

// GetDate parses the property under key with DateLayout in UTC. An
// absent or nil value yields the zero time with no error; a non-empty
// malformed value is a parse error.
func (b *Bag) GetDate(key string) (time.Time, error) {
	v, ok := b.values[key]
	if !ok || v.IsNil() {
		return time.Time{}, nil
	}
	s, ok := v.AsString()
	if !ok || s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Copy merges every key of other into b, overwriting existing keys while
// keeping their original positions.
func (b *Bag) Copy(other *Bag) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		b.Set(k, other.values[k])
	}
}

// wireEntry is one persisted key/value pair.
type wireEntry struct {
	Key   string    `json:"k"`
	Value wireValue `json:"v"`
}

func (b *Bag) wireEntries() []wireEntry {
	entries := make([]wireEntry, 0, len(b.keys))
	for _, k := range b.keys {
		entries = append(entries, wireEntry{Key: k, Value: toWire(b.values[k])})
	}
	return entries
}

func (b *Bag) applyWireEntries(entries []wireEntry) error {
	for _, e := range entries {
		v, err := fromWire(e.Value)
		if err != nil {
			return fmt.Errorf("property %q: %w", e.Key, err)
		}
		b.Set(e.Key, v)
	}
	return nil
}

// Save writes the bag to its backing file, creating parent directories
// as needed. Key order survives a save/load round trip.
func (b *Bag) Save() error {
	if b.path == "" {
		return fmt.Errorf("bag has no backing file")
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create bag directory: %w", err)
	}
	data, err := json.Marshal(b.wireEntries())
	if err != nil {
		return fmt.Errorf("encode bag: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write bag %s: %w", b.path, err)
	}
	return nil
}

// Load replaces the bag's content with its backing file. A missing file
// leaves the bag empty and is not an error; every lookup contract treats
// an absent backing file as an absent entity.
func (b *Bag) Load() error {
	if b.path == "" {
		return fmt.Errorf("bag has no backing file")
	}
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read bag %s: %w", b.path, err)
	}
	var entries []wireEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("decode bag %s: %w", b.path, err)
	}
	b.keys = nil
	b.values = make(map[string]Value)
	return b.applyWireEntries(entries)
}
