package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/srand/capataz/pkg/future"
	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/utils"
)

// Stable storage for job records.
type recordStore interface {
	Read(id job.ID) (*job.Job, error)
	Write(j *job.Job) error
	Close() error
}

var _ Store = (*PersistentStore)(nil)

// A store which keeps only ids and handles in memory.
// Records are read and written through a recordStore on every operation
// and remain there after settlement.
type PersistentStore struct {
	mu       sync.Mutex
	ledger   ledger
	resident resident
	records  recordStore
}

func newPersistentStore(records recordStore, config *Config, opts ...Option) *PersistentStore {
	return &PersistentStore{
		ledger:   newLedger(config.MaxScheduled, opts...),
		resident: newResident(),
		records:  records,
	}
}

func (s *PersistentStore) read(e *entry) (*job.Job, error) {
	j, err := s.records.Read(e.id)
	if err != nil {
		return nil, fmt.Errorf("read job %d: %w", e.id, err)
	}
	j.Handle = e.handle
	return j, nil
}

func (s *PersistentStore) Store(spec job.Spec) (*job.Job, error) {
	s.mu.Lock()
	j, sequence, err := s.ledger.create(spec, s.resident.pendingCount())
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := s.records.Write(j); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("write job %d: %w", j.ID, err)
	}
	s.resident.push(&entry{id: j.ID, sequence: sequence, handle: j.Handle})
	s.mu.Unlock()

	id := j.ID
	j.Handle.OnSettle(func(value json.RawMessage, err error) {
		s.settle(id, j.Handle, value, err)
	})

	return j, nil
}

// A job whose record could not be handed out.
type brokenEntry struct {
	handle *job.Handle
	err    error
}

// Entries whose record cannot be read or written are dropped from the
// store and their handles rejected. An error is returned only if no job
// could be handed out because of them.
func (s *PersistentStore) Task(amount int) ([]*job.Job, error) {
	if amount <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	jobs, broken := s.task(amount)
	s.mu.Unlock()

	errs := make([]error, 0, len(broken))
	for _, b := range broken {
		b.handle.Reject(b.err)
		errs = append(errs, b.err)
	}

	if len(jobs) == 0 {
		return jobs, errors.Join(errs...)
	}
	return jobs, nil
}

func (s *PersistentStore) task(amount int) ([]*job.Job, []brokenEntry) {
	now := s.ledger.now()
	jobs := make([]*job.Job, 0, amount)
	var broken []brokenEntry

	fail := func(e *entry, err error) {
		s.ledger.logger.Errorf("Dropping job %d: %v", e.id, err)
		s.resident.drop(e)
		broken = append(broken, brokenEntry{handle: e.handle, err: err})
	}

	for len(jobs) < amount {
		e, ok := s.resident.pop()
		if !ok {
			break
		}

		j, err := s.read(e)
		if err != nil {
			fail(e, err)
			continue
		}
		j.Assign(now)
		if err := s.records.Write(j); err != nil {
			fail(e, fmt.Errorf("write job %d: %w", j.ID, err))
			continue
		}

		s.resident.markAssigned(e)
		jobs = append(jobs, j)
	}
	if len(jobs) > 0 {
		return jobs, broken
	}

	for _, e := range s.resident.reoffer(amount) {
		j, err := s.read(e)
		if err != nil {
			fail(e, err)
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, broken
}

func (s *PersistentStore) Assigned(id job.ID) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.resident.isAssigned(id)
	if !ok {
		return nil, fmt.Errorf("%w: job %d is not assigned", utils.ErrNotFound, id)
	}
	return s.read(e)
}

// The record of an evicted job stays in storage.
func (s *PersistentStore) Evict(id job.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.resident.remove(id)
	return ok
}

func (s *PersistentStore) Capacity() int {
	return s.ledger.capacity()
}

func (s *PersistentStore) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		Count:    s.ledger.count(),
		Pending:  s.resident.pendingIDs(),
		Assigned: s.resident.assignedIDs(),
	}
}

// Returns a record from storage in whatever state it is.
func (s *PersistentStore) Record(id job.ID) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, err := s.records.Read(id)
	if err != nil {
		return nil, fmt.Errorf("%w: job %d: %v", utils.ErrNotFound, id, err)
	}
	return j, nil
}

func (s *PersistentStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Close()
}

func (s *PersistentStore) settle(id job.ID, handle *job.Handle, value json.RawMessage, err error) {
	if handle.State() == future.Cancelled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.resident.isAssigned(id)
	if !ok || e.handle != handle {
		s.ledger.logger.Debugf("Ignoring settlement of job %d, it is not assigned", id)
		return
	}
	s.resident.remove(id)

	j, rerr := s.read(e)
	if rerr != nil {
		s.ledger.logger.Errorf("Failed to settle job %d: %v", id, rerr)
		return
	}

	now := s.ledger.now()
	if err != nil {
		j.Reject(job.ReasonOf(err), now)
	} else {
		j.Resolve(value, now)
	}

	if werr := s.records.Write(j); werr != nil {
		s.ledger.logger.Errorf("Failed to settle job %d: %v", id, werr)
	}
}
