package store

import (
	"cmp"
	"slices"

	"github.com/srand/capataz/pkg/job"
	"github.com/srand/capataz/pkg/utils"
)

// A job kept in memory by a store.
type entry struct {
	id       job.ID
	sequence uint64
	handle   *job.Handle

	// The full record, if the store keeps it in memory.
	job *job.Job
}

// The pending and assigned jobs of a store.
type resident struct {
	pending  *utils.PriorityQueue[*entry]
	byID     map[job.ID]*entry
	assigned map[job.ID]*entry
}

func newResident() resident {
	return resident{
		pending: utils.NewPriorityQueue(
			func(a, b *entry) int { return cmp.Compare(a.sequence, b.sequence) },
			func(a, b *entry) bool { return a == b },
		),
		byID:     map[job.ID]*entry{},
		assigned: map[job.ID]*entry{},
	}
}

func (r *resident) push(e *entry) {
	r.pending.Push(e)
	r.byID[e.id] = e
}

// Moves up to amount pending entries to assigned, oldest first.
func (r *resident) assign(amount int) []*entry {
	entries := r.pending.PopN(amount)
	for _, e := range entries {
		r.assigned[e.id] = e
	}
	return entries
}

// Pops the oldest pending entry without assigning it.
func (r *resident) pop() (*entry, bool) {
	if r.pending.Len() == 0 {
		return nil, false
	}
	return r.pending.Pop(), true
}

func (r *resident) markAssigned(e *entry) {
	r.assigned[e.id] = e
}

// Forgets a popped or assigned entry.
func (r *resident) drop(e *entry) {
	delete(r.byID, e.id)
	delete(r.assigned, e.id)
}

// Returns up to amount assigned entries, oldest first.
func (r *resident) reoffer(amount int) []*entry {
	if amount <= 0 || len(r.assigned) == 0 {
		return nil
	}

	entries := make([]*entry, 0, len(r.assigned))
	for _, e := range r.assigned {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b *entry) int { return cmp.Compare(a.sequence, b.sequence) })

	if len(entries) > amount {
		entries = entries[:amount]
	}
	return entries
}

func (r *resident) isAssigned(id job.ID) (*entry, bool) {
	e, ok := r.assigned[id]
	return e, ok
}

// Removes a settled or evicted entry.
func (r *resident) remove(id job.ID) (*entry, bool) {
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	delete(r.byID, id)
	if _, assigned := r.assigned[id]; assigned {
		delete(r.assigned, id)
	} else {
		r.pending.Remove(e)
	}
	return e, true
}

func (r *resident) pendingCount() int {
	return r.pending.Len()
}

func (r *resident) pendingIDs() []job.ID {
	items := slices.Clone(r.pending.Items())
	slices.SortFunc(items, func(a, b *entry) int { return cmp.Compare(a.sequence, b.sequence) })
	return entryIDs(items)
}

func (r *resident) assignedIDs() []job.ID {
	return entryIDs(r.reoffer(len(r.assigned)))
}

func entryIDs(entries []*entry) []job.ID {
	ids := make([]job.ID, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids
}

func sortedIDs(m map[job.ID]*job.Job) []job.ID {
	ids := make([]job.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
