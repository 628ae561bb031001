package job

import "sync"

// Store maps job IDs to records. The store's lock protects only the shape
// of the map; record contents are guarded by each record's own lock, so
// status updates on one job never serialize behind reads of another.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Record
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Record)}
}

// Put inserts a record. IDs are generated uniquely upstream.
func (s *Store) Put(rec *Record) {
	s.mu.Lock()
	s.jobs[rec.ID] = rec
	s.mu.Unlock()
}

// Get returns the record for id, or false when it is unknown. An evicted
// job is indistinguishable from one that never existed.
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.jobs[id]
	return rec, ok
}

// Remove deletes the record for id if present.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Records returns a point-in-time slice of all stored records, in no
// particular order. The reaper iterates over this copy so its per-record
// work never holds the store lock.
func (s *Store) Records() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*Record, 0, len(s.jobs))
	for _, rec := range s.jobs {
		recs = append(recs, rec)
	}
	return recs
}
