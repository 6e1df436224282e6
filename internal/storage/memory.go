package storage

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore holds the marshaled blob in memory. Round-tripping through JSON
// keeps its load/save semantics identical to the real backends, which is what
// tests want.
type MemoryStore struct {
	mu   sync.Mutex
	blob []byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Load(ctx context.Context) (*Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blob == nil {
		return NewData(), nil
	}
	d := NewData()
	if err := json.Unmarshal(s.blob, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *MemoryStore) Save(ctx context.Context, d *Data) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.blob = raw
	s.mu.Unlock()
	return nil
}

// Seed overwrites the stored blob with raw JSON, bypassing the typed model.
// Tests use it to plant legacy-shaped records.
func (s *MemoryStore) Seed(raw []byte) {
	s.mu.Lock()
	s.blob = append([]byte(nil), raw...)
	s.mu.Unlock()
}
