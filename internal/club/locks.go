// internal/club/locks.go
package club

import "sync"

// memberLocks hands out one mutex per member number so that mutations on
// the same member are linearized while different members proceed in
// parallel. Entries are never removed; numbers are never reused, so a
// stale entry can only belong to a deleted member.
type memberLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newMemberLocks() *memberLocks {
	return &memberLocks{locks: make(map[int64]*sync.Mutex)}
}

func (ml *memberLocks) get(number int64) *sync.Mutex {
	ml.mu.Lock()
	defer ml.mu.Unlock()
	l, ok := ml.locks[number]
	if !ok {
		l = &sync.Mutex{}
		ml.locks[number] = l
	}
	return l
}
