package room

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/mcoot/chathub/internal/model"
)

// room holds one chat room's occupancy and history.
// count is only changed through CAS so it stays within [0, capacity].
type room struct {
	id       model.RoomID
	capacity int32
	count    atomic.Int32

	mu      sync.Mutex
	lastID  int64
	history []model.Message
}

func newRoom(id model.RoomID, capacity int) *room {
	return &room{id: id, capacity: int32(capacity)}
}

func (r *room) users() int {
	return int(r.count.Load())
}

func (r *room) hasSpace() bool {
	return r.count.Load() < r.capacity
}

func (r *room) tryEnter() bool {
	for {
		n := r.count.Load()
		if n >= r.capacity {
			return false
		}
		if r.count.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (r *room) leave() bool {
	for {
		n := r.count.Load()
		if n <= 0 {
			return false
		}
		if r.count.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

// append stores msg with the next sequence id, then evicts the oldest entries
// (at most maxEvict) while the history is longer than limit.
func (r *room) append(msg model.Message, limit, maxEvict int) model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastID++
	msg.ID = r.lastID
	r.history = append(r.history, msg)

	evict := len(r.history) - limit
	if evict > maxEvict {
		evict = maxEvict
	}
	if evict > 0 {
		r.history = slices.Delete(r.history, 0, evict)
	}
	return msg
}

// since returns every buffered message with id > lastReadID in ascending order
func (r *room) since(lastReadID int64) []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	start, _ := slices.BinarySearchFunc(r.history, lastReadID+1, func(m model.Message, id int64) int {
		switch {
		case m.ID < id:
			return -1
		case m.ID > id:
			return 1
		default:
			return 0
		}
	})
	return slices.Clone(r.history[start:])
}

func (r *room) historyLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.history)
}
