package state

import (
	"context"
	"sync"

	"github.com/goliatone/go-bitstate"
)

// MemoryStore is an in-memory Store for tests and examples. It keys records
// by Ref.Identifier() and keeps the raw words, as a real backend would.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]memoryRecord
}

type memoryRecord struct {
	words [4]uint64
	meta  Meta
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]memoryRecord{}}
}

func (s *MemoryStore) Load(_ context.Context, ref Ref) (bitstate.State, Meta, bool, error) {
	key, err := ref.Identifier()
	if err != nil {
		return bitstate.State{}, Meta{}, false, err
	}

	s.mu.RLock()
	record, ok := s.records[key]
	s.mu.RUnlock()
	if !ok {
		return bitstate.State{}, Meta{}, false, nil
	}
	return bitstate.StateFromWords(record.words), cloneMeta(record.meta), true, nil
}

func (s *MemoryStore) Save(_ context.Context, ref Ref, snapshot bitstate.State, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	s.records[key] = memoryRecord{words: snapshot.Words(), meta: cloneMeta(meta)}
	s.mu.Unlock()
	return cloneMeta(meta), nil
}

// Len returns the number of stored registers.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cloneMeta(meta Meta) Meta {
	out := meta
	out.Extra = cloneExtra(meta.Extra)
	return out
}
