package engine

import (
	"sync/atomic"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// TTEntry represents an entry in the transposition table.
type TTEntry struct {
	Score int64  // Score (bounded by flag), White positive
	Depth int8   // Search depth
	Flag  TTFlag // Type of bound
}

// approximate bytes per entry including cache bookkeeping
const ttEntryCost = 64

// TranspositionTable stores search results keyed by position hash, so a
// position reached through different move orders is searched once.
// It is bounded by a ristretto cache, safe for concurrent use.
type TranspositionTable struct {
	cache *ristretto.Cache[uint64, TTEntry]

	// Statistics (atomic for thread-safety)
	hits   atomic.Uint64
	lookups atomic.Uint64
	stores atomic.Uint64
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) (*TranspositionTable, error) {
	if sizeMB <= 0 {
		sizeMB = 1
	}
	entries := int64(sizeMB) * 1024 * 1024 / ttEntryCost
	cache, err := ristretto.NewCache(&ristretto.Config[uint64, TTEntry]{
		NumCounters: entries * 10,
		MaxCost:     entries,
		BufferItems: 64,

		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "transposition table")
	}
	return &TranspositionTable{cache: cache}, nil
}

// Lookup finds a position in the transposition table.
// Returns the entry and true if found, otherwise returns empty entry and false.
func (tt *TranspositionTable) Lookup(hash uint64) (TTEntry, bool) {
	tt.lookups.Add(1)
	entry, ok := tt.cache.Get(hash)
	if ok {
		tt.hits.Add(1)
	}
	return entry, ok
}

// Store saves a search result. A deeper entry for the same position is
// kept.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int64, flag TTFlag) {
	if old, ok := tt.cache.Get(hash); ok && int(old.Depth) > depth {
		return
	}
	tt.stores.Add(1)
	tt.cache.Set(hash, TTEntry{Score: score, Depth: int8(depth), Flag: flag}, 1)
}

// Wait blocks until pending stores are visible to Lookup.
func (tt *TranspositionTable) Wait() {
	tt.cache.Wait()
}

// Clear clears the transposition table.
func (tt *TranspositionTable) Clear() {
	tt.cache.Clear()
	tt.hits.Store(0)
	tt.lookups.Store(0)
	tt.stores.Store(0)
}

// Close releases the cache goroutines.
func (tt *TranspositionTable) Close() {
	tt.cache.Close()
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	lookups := tt.lookups.Load()
	if lookups == 0 {
		return 0
	}
	return float64(tt.hits.Load()) / float64(lookups) * 100
}

// Stores returns the number of accepted stores since the last Clear.
func (tt *TranspositionTable) Stores() uint64 {
	return tt.stores.Load()
}
