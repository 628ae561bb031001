package job

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestStorePutGetRemove(t *testing.T) {
	store := NewStore()

	if _, ok := store.Get("missing"); ok {
		t.Fatal("empty store returned a record")
	}

	rec := NewRecord()
	store.Put(rec)

	got, ok := store.Get(rec.ID)
	if !ok || got != rec {
		t.Fatalf("Get(%q) = %v, %v", rec.ID, got, ok)
	}
	if store.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", store.Len())
	}

	store.Remove(rec.ID)
	if _, ok := store.Get(rec.ID); ok {
		t.Error("record still present after Remove")
	}

	// Removing an unknown id is a no-op.
	store.Remove(rec.ID)
}

func TestStoreRecordsIsACopy(t *testing.T) {
	store := NewStore()
	for i := 0; i < 3; i++ {
		store.Put(NewRecord())
	}

	recs := store.Records()
	if len(recs) != 3 {
		t.Fatalf("Records() = %d entries, want 3", len(recs))
	}

	// Mutating the store afterwards must not affect the snapshot slice.
	store.Remove(recs[0].ID)
	if len(store.Records()) != 2 {
		t.Fatalf("store should have 2 records left")
	}
	if len(recs) != 3 {
		t.Error("snapshot slice changed after Remove")
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				rec := newRecord(fmt.Sprintf("job-%d-%d", g, i), testClock(time.Unix(1000, 0)))
				store.Put(rec)
				if _, ok := store.Get(rec.ID); !ok {
					t.Errorf("record %s vanished between Put and Get", rec.ID)
					return
				}
				store.Records()
				if i%2 == 0 {
					store.Remove(rec.ID)
				}
			}
		}(g)
	}
	wg.Wait()

	if store.Len() != 8*50 {
		t.Errorf("Len() = %d, want %d", store.Len(), 8*50)
	}
}
