package call

import (
	"sync"

	"github.com/dkeye/Chorus/internal/domain"
)

// Observer receives the full participant list of a room after every change.
type Observer func(room domain.RoomID, participants []Participant)

type snapshot struct {
	room         domain.RoomID
	participants []Participant
}

// dispatcher delivers snapshots in order on its own goroutine, so observers
// may call back into the controller.
type dispatcher struct {
	mu        sync.Mutex
	queue     []snapshot
	observers map[int]Observer
	nextID    int

	wake chan struct{}
	quit chan struct{}
	done chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		observers: make(map[int]Observer),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *dispatcher) subscribe(fn Observer) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.observers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.observers, id)
		d.mu.Unlock()
	}
}

func (d *dispatcher) push(s snapshot) {
	d.mu.Lock()
	d.queue = append(d.queue, s)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case <-d.quit:
			return
		case <-d.wake:
		}

		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		observers := make([]Observer, 0, len(d.observers))
		for i := 0; i < d.nextID; i++ {
			if fn, ok := d.observers[i]; ok {
				observers = append(observers, fn)
			}
		}
		d.mu.Unlock()

		for _, s := range batch {
			for _, fn := range observers {
				fn(s.room, s.participants)
			}
		}
	}
}

// stop ends delivery without waiting, so it is safe to call from an observer.
func (d *dispatcher) stop() {
	close(d.quit)
}
