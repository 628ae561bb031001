// Package job implements the in-memory job registry: the mutation-guarded
// per-job record, the concurrent store, and the TTL reaper that evicts
// finished jobs.
package job

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status represents the state of a transcription job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether a job in this status can still change state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// State holds the mutable fields of one job. It is only ever read or
// written while the owning Record's lock is held.
type State struct {
	Status      Status
	Message     string
	TotalFiles  int
	DoneFiles   int
	CurrentFile string
	Error       string
	Bundle      []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
	FinishedAt  time.Time // zero until the first terminal transition
}

// Snapshot is a consistent copy of a record taken under its lock.
type Snapshot struct {
	ID string
	State
}

// Record is one submitted batch. The store, the worker, the boundary
// handlers and the reaper all share the same *Record; its fields are only
// reachable through Update and Snapshot, so every read observes a whole
// mutation or none of it.
type Record struct {
	ID string

	mu    sync.Mutex
	state State

	now func() time.Time // test hook
}

// NewID generates an opaque job identifier (dashless UUID).
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NewRecord creates a queued record with a fresh identifier.
func NewRecord() *Record {
	return newRecord(NewID(), time.Now)
}

// NewRecordWithID creates a queued record for an identifier generated
// upstream (the submission handler names the working area after it
// before the record exists).
func NewRecordWithID(id string) *Record {
	return newRecord(id, time.Now)
}

func newRecord(id string, now func() time.Time) *Record {
	t := now()
	return &Record{
		ID: id,
		state: State{
			Status:    StatusQueued,
			Message:   "queued",
			CreatedAt: t,
			UpdatedAt: t,
		},
		now: now,
	}
}

// Update applies fn to the record's state as one atomic mutation. It
// stamps UpdatedAt, and stamps FinishedAt the first time the status
// becomes terminal. A record that has already reached a terminal status
// keeps it: later mutations may not change Status, Error or Bundle, so a
// completed job can never lose its bundle and a failed job its error.
func (r *Record) Update(fn func(*State)) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.state
	fn(&r.state)

	if prev.Status.Terminal() {
		r.state.Status = prev.Status
		r.state.Error = prev.Error
		r.state.Bundle = prev.Bundle
	}

	r.state.CreatedAt = prev.CreatedAt
	r.state.UpdatedAt = r.now()
	r.state.FinishedAt = prev.FinishedAt
	if r.state.FinishedAt.IsZero() && r.state.Status.Terminal() {
		r.state.FinishedAt = r.state.UpdatedAt
	}

	return Snapshot{ID: r.ID, State: r.state}
}

// Snapshot returns a consistent copy of the record's state.
func (r *Record) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{ID: r.ID, State: r.state}
}
