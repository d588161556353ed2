package agenda

import "sync"

type partitionKey struct {
	doctorID int64
	fecha    string
}

// partitionLocks serializes mutations per (doctor, fecha) partition.
// Entries are never reclaimed; the map is bounded by partitions touched
// during the process lifetime, which is small for a clinic day.
type partitionLocks struct {
	mu    sync.Mutex
	locks map[partitionKey]*sync.Mutex
}

func newPartitionLocks() *partitionLocks {
	return &partitionLocks{locks: make(map[partitionKey]*sync.Mutex)}
}

// acquire locks the partition and returns its unlock function.
func (p *partitionLocks) acquire(doctorID int64, fecha string) func() {
	key := partitionKey{doctorID: doctorID, fecha: fecha}

	p.mu.Lock()
	lock, ok := p.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[key] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
