package pattern

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Number of shards for table locking (power of 2 for fast modulo)
const tableShardCount = 64
const tableShardMask = tableShardCount - 1

type tableShard struct {
	mu      sync.RWMutex
	entries map[Key]LineEval
}

// Table is the default evaluation memo. Entries are insert-or-ignore and the
// table only grows, so concurrent searches can share it.
type Table struct {
	shards [tableShardCount]tableShard
}

// NewTable creates an empty memo table.
func NewTable() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i].entries = make(map[Key]LineEval)
	}
	return t
}

func (t *Table) shard(k Key) *tableShard {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(k))
	return &t.shards[xxhash.Sum64(buf[:])&tableShardMask]
}

// Get returns the cached evaluation for k.
func (t *Table) Get(k Key) (LineEval, bool) {
	s := t.shard(k)
	s.mu.RLock()
	e, ok := s.entries[k]
	s.mu.RUnlock()
	return e, ok
}

// Put stores e under k unless k is already present.
func (t *Table) Put(k Key, e LineEval) {
	s := t.shard(k)
	s.mu.Lock()
	if _, ok := s.entries[k]; !ok {
		s.entries[k] = e
	}
	s.mu.Unlock()
}

// Len returns the number of entries.
func (t *Table) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Range calls fn for every entry until fn returns false. Each shard is
// read-locked while it is visited; fn must not write to the table.
func (t *Table) Range(fn func(Key, LineEval) bool) {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		for k, e := range s.entries {
			if !fn(k, e) {
				s.mu.RUnlock()
				return
			}
		}
		s.mu.RUnlock()
	}
}

// Merge copies every entry of other into t, keeping existing entries.
func (t *Table) Merge(other *Table) {
	other.Range(func(k Key, e LineEval) bool {
		t.Put(k, e)
		return true
	})
}

// Clear removes all entries.
func (t *Table) Clear() {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		s.entries = make(map[Key]LineEval)
		s.mu.Unlock()
	}
}
