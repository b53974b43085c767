// internal/store/memstore.go
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"clubledger/internal/domain"
)

// ErrClosed is returned by any access to a store after Close.
var ErrClosed = errors.New("store is closed")

// state is one committed snapshot of all record sets. Snapshots are never
// mutated after commit; readers can hold one for as long as they like.
type state struct {
	nextNumber  int64
	members     map[int64]domain.Member
	memberships map[int64][]domain.Membership
	deposits    []domain.Deposit
}

func newState() *state {
	return &state{
		nextNumber:  1,
		members:     make(map[int64]domain.Member),
		memberships: make(map[int64][]domain.Membership),
	}
}

func (s *state) clone() *state {
	c := &state{
		nextNumber:  s.nextNumber,
		members:     make(map[int64]domain.Member, len(s.members)),
		memberships: make(map[int64][]domain.Membership, len(s.memberships)),
		deposits:    make([]domain.Deposit, len(s.deposits)),
	}
	for n, m := range s.members {
		c.members[n] = m
	}
	for n, list := range s.memberships {
		cp := make([]domain.Membership, len(list))
		copy(cp, list)
		c.memberships[n] = cp
	}
	copy(c.deposits, s.deposits)
	return c
}

// MemoryStore keeps all records in memory. Update stages a copy of the
// current snapshot and swaps it in on commit, so View always observes a
// fully committed state and two reads of unchanged state are identical.
type MemoryStore struct {
	mu      sync.RWMutex // guards current and closed
	writeMu sync.Mutex   // serializes Update
	current *state
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{current: newState()}
}

func (ms *MemoryStore) View(ctx context.Context, fn func(ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.mu.RLock()
	if ms.closed {
		ms.mu.RUnlock()
		return ErrClosed
	}
	snap := ms.current
	ms.mu.RUnlock()
	return fn(&memTx{state: snap})
}

func (ms *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ms.writeMu.Lock()
	defer ms.writeMu.Unlock()

	ms.mu.RLock()
	if ms.closed {
		ms.mu.RUnlock()
		return ErrClosed
	}
	staged := ms.current.clone()
	ms.mu.RUnlock()

	if err := fn(&memTx{state: staged}); err != nil {
		return err
	}

	ms.mu.Lock()
	ms.current = staged
	ms.mu.Unlock()
	return nil
}

func (ms *MemoryStore) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.closed = true
	return nil
}

// memTx serves both View (against a committed snapshot) and Update
// (against a staged copy).
type memTx struct {
	state *state
}

func (tx *memTx) Member(number int64) (*domain.Member, error) {
	m, ok := tx.state.members[number]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (tx *memTx) MemberByLastName(lastName string) (*domain.Member, error) {
	for _, m := range tx.state.members {
		if m.LastName == lastName {
			return &m, nil
		}
	}
	return nil, nil
}

func (tx *memTx) Members() ([]domain.Member, error) {
	out := make([]domain.Member, 0, len(tx.state.members))
	for _, m := range tx.state.members {
		out = append(out, m)
	}
	return out, nil
}

func (tx *memTx) OpenMembership(number int64) (*domain.Membership, error) {
	for _, ms := range tx.state.memberships[number] {
		if ms.Open() {
			return &ms, nil
		}
	}
	return nil, nil
}

func (tx *memTx) Memberships(number int64) ([]domain.Membership, error) {
	list := tx.state.memberships[number]
	out := make([]domain.Membership, len(list))
	copy(out, list)
	return out, nil
}

func (tx *memTx) Deposits() ([]domain.Deposit, error) {
	out := make([]domain.Deposit, len(tx.state.deposits))
	copy(out, tx.state.deposits)
	return out, nil
}

func (tx *memTx) NextMemberNumber() (int64, error) {
	n := tx.state.nextNumber
	tx.state.nextNumber++
	return n, nil
}

func (tx *memTx) InsertMember(m domain.Member) error {
	if _, ok := tx.state.members[m.Number]; ok {
		return fmt.Errorf("member %d already exists", m.Number)
	}
	for _, existing := range tx.state.members {
		if existing.LastName == m.LastName {
			return domain.ErrDuplicateName
		}
	}
	tx.state.members[m.Number] = m
	return nil
}

func (tx *memTx) DeleteMember(number int64) error {
	if _, ok := tx.state.members[number]; !ok {
		return fmt.Errorf("member %d not found", number)
	}
	delete(tx.state.members, number)
	delete(tx.state.memberships, number)
	kept := tx.state.deposits[:0:0]
	for _, d := range tx.state.deposits {
		if d.MemberNumber != number {
			kept = append(kept, d)
		}
	}
	tx.state.deposits = kept
	return nil
}

func (tx *memTx) InsertMembership(ms domain.Membership) error {
	if _, ok := tx.state.members[ms.MemberNumber]; !ok {
		return fmt.Errorf("member %d not found", ms.MemberNumber)
	}
	tx.state.memberships[ms.MemberNumber] = append(tx.state.memberships[ms.MemberNumber], ms)
	return nil
}

func (tx *memTx) CloseMembership(id uuid.UUID, end time.Time) error {
	for number, list := range tx.state.memberships {
		for i := range list {
			if list[i].ID == id {
				e := end
				list[i].End = &e
				tx.state.memberships[number] = list
				return nil
			}
		}
	}
	return fmt.Errorf("membership %s not found", id)
}

func (tx *memTx) InsertDeposit(d domain.Deposit) error {
	if _, ok := tx.state.members[d.MemberNumber]; !ok {
		return fmt.Errorf("member %d not found", d.MemberNumber)
	}
	tx.state.deposits = append(tx.state.deposits, d)
	return nil
}
