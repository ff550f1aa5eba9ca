package storage

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/cuongbtq/video-gen-service/internal/tracker/domain"
	"github.com/hashicorp/go-memdb"
)

const jobsTable = "jobs"

// DefaultMaxSize is the default number of jobs kept after eviction
const DefaultMaxSize = 50

// jobRow is the unit stored in memdb. Rows are never modified after insert;
// every write inserts a fresh copy so readers only see committed records.
type jobRow struct {
	ID      string
	Created int64
	Seq     uint64
	Job     domain.Job
}

func jobsTableSchema() *memdb.TableSchema {
	return &memdb.TableSchema{
		Name: jobsTable,
		Indexes: map[string]*memdb.IndexSchema{
			"id": {
				Name:         "id",
				AllowMissing: false,
				Unique:       true,
				Indexer: &memdb.StringFieldIndex{
					Field: "ID",
				},
			},
			"created": {
				Name:         "created",
				AllowMissing: false,
				Unique:       false,
				Indexer: &memdb.CompoundIndex{
					Indexes: []memdb.Indexer{
						&memdb.IntFieldIndex{Field: "Created"},
						&memdb.UintFieldIndex{Field: "Seq"},
					},
				},
			},
		},
	}
}

// Store is an in-memory, concurrency-safe job table
type Store struct {
	db     *memdb.MemDB
	seq    atomic.Uint64
	logger *slog.Logger
}

// NewStore creates a new Store instance
func NewStore(logger *slog.Logger) (*Store, error) {
	schema := &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			jobsTable: jobsTableSchema(),
		},
	}

	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create job store: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger,
	}, nil
}

// Put inserts a job, replacing any job with the same id
func (s *Store) Put(job *domain.Job) error {
	tx := s.db.Txn(true)
	defer tx.Abort()

	row := &jobRow{
		ID:      job.ID,
		Created: job.CreatedAt.UnixNano(),
		Seq:     s.seq.Add(1),
		Job:     *job,
	}

	if err := tx.Insert(jobsTable, row); err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	tx.Commit()
	return nil
}

// Get returns a snapshot of the job with the given id
func (s *Store) Get(id string) (domain.Job, bool) {
	tx := s.db.Txn(false)
	defer tx.Abort()

	raw, err := tx.First(jobsTable, "id", id)
	if err != nil || raw == nil {
		return domain.Job{}, false
	}

	return raw.(*jobRow).Job, true
}

// Update applies fn to a copy of the job and commits the result atomically.
// Terminal jobs cannot be updated and the state may only move forward.
func (s *Store) Update(id string, fn func(job *domain.Job) error) (domain.Job, error) {
	tx := s.db.Txn(true)
	defer tx.Abort()

	raw, err := tx.First(jobsTable, "id", id)
	if err != nil {
		return domain.Job{}, fmt.Errorf("failed to lookup job: %w", err)
	}
	if raw == nil {
		return domain.Job{}, domain.ErrJobNotFound
	}

	existing := raw.(*jobRow)
	if existing.Job.State.IsTerminal() {
		return existing.Job, domain.ErrJobTerminal
	}

	updated := existing.Job
	if err := fn(&updated); err != nil {
		return existing.Job, err
	}

	if updated.ID != existing.ID {
		return existing.Job, fmt.Errorf("job id is immutable: %s", existing.ID)
	}
	if updated.State != existing.Job.State && !existing.Job.State.CanTransition(updated.State) {
		return existing.Job, fmt.Errorf("invalid transition %s -> %s for job %s", existing.Job.State, updated.State, id)
	}
	if updated.Progress < existing.Job.Progress {
		return existing.Job, fmt.Errorf("progress cannot decrease for job %s", id)
	}

	row := &jobRow{
		ID:      existing.ID,
		Created: existing.Created,
		Seq:     existing.Seq,
		Job:     updated,
	}
	if err := tx.Insert(jobsTable, row); err != nil {
		return existing.Job, fmt.Errorf("failed to update job: %w", err)
	}

	tx.Commit()
	return updated, nil
}

// Delete removes a job. Missing jobs are ignored.
func (s *Store) Delete(id string) error {
	tx := s.db.Txn(true)
	defer tx.Abort()

	if _, err := tx.DeleteAll(jobsTable, "id", id); err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	tx.Commit()
	return nil
}

// Len returns the number of stored jobs
func (s *Store) Len() int {
	tx := s.db.Txn(false)
	defer tx.Abort()

	iter, err := tx.Get(jobsTable, "id")
	if err != nil {
		return 0
	}

	n := 0
	for next := iter.Next(); next != nil; next = iter.Next() {
		n++
	}
	return n
}

// List returns all jobs, newest first
func (s *Store) List() []domain.Job {
	tx := s.db.Txn(false)
	defer tx.Abort()

	iter, err := tx.Get(jobsTable, "created")
	if err != nil {
		return nil
	}

	var jobs []domain.Job
	for next := iter.Next(); next != nil; next = iter.Next() {
		jobs = append(jobs, next.(*jobRow).Job)
	}

	for i, j := 0, len(jobs)-1; i < j; i, j = i+1, j-1 {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	}
	return jobs
}

// Evict removes the oldest finished jobs until at most maxSize remain.
// Jobs that are still pending or processing are never evicted, so the
// store can stay above maxSize while many jobs are in flight.
func (s *Store) Evict(maxSize int) (int, error) {
	if maxSize < 0 {
		maxSize = 0
	}

	tx := s.db.Txn(true)
	defer tx.Abort()

	iter, err := tx.Get(jobsTable, "created")
	if err != nil {
		return 0, fmt.Errorf("failed to scan jobs: %w", err)
	}

	var rows []*jobRow
	for next := iter.Next(); next != nil; next = iter.Next() {
		rows = append(rows, next.(*jobRow))
	}

	excess := len(rows) - maxSize
	if excess <= 0 {
		return 0, nil
	}

	removed := 0
	skipped := 0
	for _, row := range rows {
		if removed == excess {
			break
		}
		if !row.Job.State.IsTerminal() {
			skipped++
			continue
		}
		if err := tx.Delete(jobsTable, row); err != nil {
			return 0, fmt.Errorf("failed to evict job %s: %w", row.ID, err)
		}
		removed++
	}

	tx.Commit()

	if skipped > 0 {
		s.logger.Debug("Eviction kept active jobs",
			slog.Int("active_kept", skipped),
			slog.Int("removed", removed),
		)
	}

	return removed, nil
}
