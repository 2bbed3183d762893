package stats

import (
	"encoding/json"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default minimum time between two memory samples.
const MemorySampleInterval = time.Second

// A set of statistics indexed by key-set. Safe for concurrent use.
type Statistics struct {
	mu     sync.RWMutex
	stats  map[string]*Statistic
	memory *rate.Sometimes
}

func New() *Statistics {
	return &Statistics{
		stats:  map[string]*Statistic{},
		memory: &rate.Sometimes{Interval: MemorySampleInterval},
	}
}

// Sets the minimum time between two memory samples, zero samples on
// every call. Not safe for concurrent use with AccountMemory.
func (s *Statistics) SetMemoryInterval(interval time.Duration) {
	if interval <= 0 {
		s.memory = &rate.Sometimes{Every: 1}
		return
	}
	s.memory = &rate.Sometimes{Interval: interval}
}

// Must hold the write lock.
func (s *Statistics) stat(keys Keys) *Statistic {
	id := keys.ID()
	stat, ok := s.stats[id]
	if !ok {
		stat = NewStatistic(keys.With(nil))
		s.stats[id] = stat
	}
	return stat
}

func (s *Statistics) Add(keys Keys, value float64, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stat(keys).Add(value, data)
}

func (s *Statistics) Gain(keys Keys, value, factor float64, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stat(keys).Gain(value, factor, data)
}

// Returns a copy of the statistic with exactly the given keys.
// A statistic without values is returned if none was recorded.
func (s *Statistics) Stat(keys Keys) *Statistic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if stat, ok := s.stats[keys.ID()]; ok {
		return stat.Clone()
	}
	return NewStatistic(keys.With(nil))
}

// Returns copies of all statistics whose keys include the given ones,
// ordered by key-set.
func (s *Statistics) Filter(keys Keys) []*Statistic {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.stats))
	for id, stat := range s.stats {
		if stat.Keys.Applies(keys) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	result := make([]*Statistic, len(ids))
	for i, id := range ids {
		result[i] = s.stats[id].Clone()
	}
	return result
}

// Returns copies of all statistics.
func (s *Statistics) Snapshot() []*Statistic {
	return s.Filter(nil)
}

// Merges all statistics whose keys include the given ones.
func (s *Statistics) Accumulation(keys Keys) *Statistic {
	acc := NewStatistic(keys.With(nil))
	for _, stat := range s.Filter(keys) {
		acc.AddStatistic(stat)
	}
	return acc
}

// Removes all statistics whose keys include the given ones.
func (s *Statistics) Reset(keys Keys) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, stat := range s.stats {
		if stat.Keys.Applies(keys) {
			delete(s.stats, id)
		}
	}
}

func (s *Statistics) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stats)
}

func (s *Statistics) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Snapshot())
}

// Records the memory usage of the process under the "memory" key.
// Reading memory statistics stops the world, so calls within the
// sample interval of the previous sample are dropped.
func (s *Statistics) AccountMemory() {
	s.memory.Do(s.sampleMemory)
}

func (s *Statistics) sampleMemory() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	for kind, value := range map[string]uint64{
		"heap_alloc": m.HeapAlloc,
		"heap_inuse": m.HeapInuse,
		"heap_sys":   m.HeapSys,
		"sys":        m.Sys,
	} {
		s.Add(Keys{"key": "memory", "type": kind}, float64(value), nil)
	}
}
