// Package runqueue implements the per-priority ready queues and the
// bitmap of non-empty levels.
//
// Each level is a FIFO kept as a doubly linked list over thread handles.
// Bit p of the bitmap is set iff level p is non-empty. The store is not
// safe for concurrent use; the scheduler lock serializes every call.
package runqueue

import (
	"fmt"
	"math/bits"

	"github.com/me/ksched/internal/thread"
	"github.com/me/ksched/pkg/model"
)

type link struct {
	prev, next thread.ID
}

type level struct {
	head, tail thread.ID
	n          int
}

// Store holds one FIFO per priority level plus the idle thread of every CPU.
type Store struct {
	threads *thread.Table
	levels  [model.NumPriorities]level
	links   []link
	bitmap  uint32
	count   int
	idle    []thread.ID
}

// New returns an initialized, empty store over tb.
func New(tb *thread.Table) *Store {
	s := &Store{threads: tb}
	s.Init()
	return s
}

// Init empties every level and clears the bitmap. Idle registrations are kept.
func (s *Store) Init() {
	for p := range s.levels {
		s.levels[p] = level{head: thread.None, tail: thread.None}
	}
	s.bitmap = 0
	s.count = 0
	for i := range s.links {
		s.links[i] = link{prev: thread.None, next: thread.None}
	}
}

// SetIdle registers the idle thread returned for cpu when nothing else fits.
func (s *Store) SetIdle(cpu model.CPUNum, id thread.ID) {
	if !cpu.Valid() {
		panic(fmt.Sprintf("runqueue: invalid cpu %d", cpu))
	}
	for len(s.idle) <= int(cpu) {
		s.idle = append(s.idle, thread.None)
	}
	s.idle[cpu] = id
}

// Idle returns the idle thread registered for cpu.
func (s *Store) Idle(cpu model.CPUNum) thread.ID {
	if !cpu.Valid() || int(cpu) >= len(s.idle) || s.idle[cpu] == thread.None {
		panic(fmt.Sprintf("runqueue: no idle thread for cpu %d", cpu))
	}
	return s.idle[cpu]
}

// InsertHead queues id ahead of its peers at its effective priority.
func (s *Store) InsertHead(id thread.ID) {
	s.insert(id, true)
}

// InsertTail queues id behind its peers at its effective priority.
func (s *Store) InsertTail(id thread.ID) {
	s.insert(id, false)
}

func (s *Store) insert(id thread.ID, head bool) {
	t := s.threads.Get(id)
	if t.Queued() {
		panic(fmt.Sprintf("runqueue: %s already queued at level %d", t, t.RunQueue))
	}
	if t.Idle {
		panic(fmt.Sprintf("runqueue: idle thread %s cannot be queued", t))
	}
	s.grow(id)

	p := t.Effective()
	lv := &s.levels[p]
	l := &s.links[id]
	switch {
	case lv.n == 0:
		l.prev, l.next = thread.None, thread.None
		lv.head, lv.tail = id, id
	case head:
		l.prev, l.next = thread.None, lv.head
		s.links[lv.head].prev = id
		lv.head = id
	default:
		l.prev, l.next = lv.tail, thread.None
		s.links[lv.tail].next = id
		lv.tail = id
	}
	lv.n++
	s.count++
	t.RunQueue = p
	s.bitmap |= 1 << uint(p)
}

// SelectAndRemove dequeues the first thread eligible for cpu from the
// highest non-empty level. Levels with no eligible thread are skipped
// without touching the bitmap. When nothing fits, cpu's idle thread is
// returned.
func (s *Store) SelectAndRemove(cpu model.CPUNum) thread.ID {
	id := s.find(cpu)
	if id == thread.None {
		return s.Idle(cpu)
	}
	s.unlink(id)
	return id
}

// Peek returns the thread SelectAndRemove would dequeue for cpu without
// removing it. It reports false when only the idle thread fits.
func (s *Store) Peek(cpu model.CPUNum) (thread.ID, bool) {
	id := s.find(cpu)
	return id, id != thread.None
}

func (s *Store) find(cpu model.CPUNum) thread.ID {
	pending := s.bitmap
	for pending != 0 {
		p := bits.Len32(pending) - 1
		for id := s.levels[p].head; id != thread.None; id = s.links[id].next {
			if s.threads.Get(id).CanRunOn(cpu) {
				return id
			}
		}
		pending &^= 1 << uint(p)
	}
	return thread.None
}

func (s *Store) unlink(id thread.ID) {
	t := s.threads.Get(id)
	p := t.RunQueue
	lv := &s.levels[p]
	l := &s.links[id]

	if l.prev != thread.None {
		s.links[l.prev].next = l.next
	} else {
		lv.head = l.next
	}
	if l.next != thread.None {
		s.links[l.next].prev = l.prev
	} else {
		lv.tail = l.prev
	}
	l.prev, l.next = thread.None, thread.None

	lv.n--
	s.count--
	t.RunQueue = thread.NotQueued
	if lv.n == 0 {
		s.bitmap &^= 1 << uint(p)
	}
}

func (s *Store) grow(id thread.ID) {
	for len(s.links) <= int(id) {
		s.links = append(s.links, link{prev: thread.None, next: thread.None})
	}
}

// Bitmap returns the non-empty level bitmap.
func (s *Store) Bitmap() uint32 {
	return s.bitmap
}

// Len returns the number of queued threads.
func (s *Store) Len() int {
	return s.count
}

// LevelLen returns the number of threads queued at priority p.
func (s *Store) LevelLen(p int) int {
	return s.levels[p].n
}

// Level lists the threads at priority p from head to tail.
func (s *Store) Level(p int) []thread.ID {
	out := make([]thread.ID, 0, s.levels[p].n)
	for id := s.levels[p].head; id != thread.None; id = s.links[id].next {
		out = append(out, id)
	}
	return out
}

// Snapshot returns the non-empty levels, each listed from head to tail.
func (s *Store) Snapshot() map[int][]thread.ID {
	out := make(map[int][]thread.ID)
	for p := range s.levels {
		if s.levels[p].n > 0 {
			out[p] = s.Level(p)
		}
	}
	return out
}
