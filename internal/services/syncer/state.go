package syncer

import (
	"sync"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateError
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateRefreshing:
		return "refreshing"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is what a controller publishes to its subscribers.
type Snapshot[T any] struct {
	Data       T         `json:"data"`
	State      State     `json:"state"`
	Loading    bool      `json:"loading"`
	Refreshing bool      `json:"refreshing"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  ErrorKind `json:"errorKind,omitempty"`
}

// hub fans snapshots out to subscribers. Each subscriber channel holds only the latest snapshot,
// so publishing never blocks.
type hub[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Snapshot[T]
}

func newHub[T any]() *hub[T] {
	return &hub[T]{subs: map[int]chan Snapshot[T]{}}
}

func (h *hub[T]) subscribe(current Snapshot[T]) (<-chan Snapshot[T], func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan Snapshot[T], 1)
	ch <- current
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
}

func (h *hub[T]) publish(s Snapshot[T]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}
