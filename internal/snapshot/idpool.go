package snapshot

import (
	"errors"
	"time"

	"arenaserver/internal/metrics"
)

// Quarantine is the cool-off period a freed id sits in before it can
// be handed out again, §3/§4.E/§8 scenario 6.
const Quarantine = 5 * time.Second

type idState int

const (
	idFree idState = iota
	idInUse
	idTimed
)

const noNext = -1

type idCell struct {
	state   idState
	next    int32 // index of the next cell in whichever intrusive list this cell belongs to
	timeout time.Time
}

// IDPool hands out item ids 0..MaxIDs-1 with a quarantine period on
// free, §3/§4.E. It is a process-wide singleton by contract, but the
// type itself holds no global state — main wires up exactly one
// instance and passes it to the tick loop. Per §5 it must only ever be
// touched from the tick-loop goroutine; callers don't get a mutex
// because there is deliberately none.
//
// Two intrusive singly linked lists are threaded through idCell.next,
// per the Design Notes' "indexed arena, not raw pointers" guidance:
// a free-list (firstFree) and a FIFO timed-out list (firstTimed /
// lastTimed).
type IDPool struct {
	cells       []idCell
	firstFree   int32
	firstTimed  int32
	lastTimed   int32
	inUseCount  int
	timedCount  int
	now         func() time.Time
}

// ErrExhausted is returned by NewID when both the free list and the
// timed list (after expiring what it can) are empty — a Logic-class
// condition per §7 that the caller should treat as a programming bug,
// not a recoverable network error.
var ErrExhausted = errors.New("snapshot: id pool exhausted")

// NewIDPool builds a pool of n ids, all initially free.
func NewIDPool(n int) *IDPool {
	p := &IDPool{
		cells:      make([]idCell, n),
		firstFree:  0,
		firstTimed: noNext,
		lastTimed:  noNext,
		now:        time.Now,
	}
	for i := range p.cells {
		next := int32(i + 1)
		if i == len(p.cells)-1 {
			next = noNext
		}
		p.cells[i] = idCell{state: idFree, next: next}
	}
	return p
}

// SetClock overrides the time source, used by tests to emulate the
// 5-second quarantine window (§8 scenario 6) without sleeping.
func (p *IDPool) SetClock(now func() time.Time) {
	p.now = now
}

// NewID expires any timed-out heads whose quarantine has elapsed, then
// pops the head of the free list.
func (p *IDPool) NewID() (int32, error) {
	p.expireReady()

	if p.firstFree == noNext {
		metrics.IDPoolExhaustedTotal.Inc()
		return 0, ErrExhausted
	}

	id := p.firstFree
	p.firstFree = p.cells[id].next
	p.cells[id] = idCell{state: idInUse, next: noNext}
	p.inUseCount++
	return id, nil
}

// FreeID returns id to quarantine. It asserts id was INUSE — calling
// it on a non-INUSE id is a Logic-class bug per §7.
func (p *IDPool) FreeID(id int32) error {
	if id < 0 || int(id) >= len(p.cells) {
		return errors.New("snapshot: id out of range")
	}
	if p.cells[id].state != idInUse {
		return errors.New("snapshot: FreeID on an id that was not in use")
	}

	p.inUseCount--
	p.cells[id] = idCell{
		state:   idTimed,
		next:    noNext,
		timeout: p.now().Add(Quarantine),
	}
	p.timedCount++

	if p.lastTimed == noNext {
		p.firstTimed = id
		p.lastTimed = id
	} else {
		p.cells[p.lastTimed].next = id
		p.lastTimed = id
	}
	return nil
}

// TimeoutIDs drains the entire timed list back to free immediately,
// regardless of quarantine expiry — used on map reload (§4.E) where
// every in-flight id becomes meaningless at once.
func (p *IDPool) TimeoutIDs() {
	for p.firstTimed != noNext {
		id := p.firstTimed
		p.firstTimed = p.cells[id].next
		p.releaseToFree(id)
	}
	p.lastTimed = noNext
}

func (p *IDPool) expireReady() {
	now := p.now()
	for p.firstTimed != noNext && !p.cells[p.firstTimed].timeout.After(now) {
		id := p.firstTimed
		p.firstTimed = p.cells[id].next
		if p.firstTimed == noNext {
			p.lastTimed = noNext
		}
		p.releaseToFree(id)
	}
}

func (p *IDPool) releaseToFree(id int32) {
	p.timedCount--
	p.cells[id] = idCell{state: idFree, next: p.firstFree}
	p.firstFree = id
}

// Stats reports the three population counts; the invariant
// freeCount + timedCount + inUseCount == MaxIDs must always hold (§8).
type Stats struct {
	Free   int
	Timed  int
	InUse  int
}

// Stats computes the current population split. It's O(free-list
// length) for Free since the free count isn't tracked incrementally —
// acceptable because it's only called from tests and diagnostics, never
// the hot path.
func (p *IDPool) Stats() Stats {
	free := 0
	for i := p.firstFree; i != noNext; i = p.cells[i].next {
		free++
	}
	return Stats{Free: free, Timed: p.timedCount, InUse: p.inUseCount}
}

// Len returns the pool's total capacity (MaxIDs).
func (p *IDPool) Len() int { return len(p.cells) }
