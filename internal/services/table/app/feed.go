package app

import (
	"sync"

	"github.com/louisbranch/tablesync/internal/services/table/domain/state"
)

// feed hands the latest GameState to every subscriber. Each subscriber holds
// at most one undelivered snapshot, and a newer one replaces it, so a slow
// reader always wakes up to the current state.
type feed struct {
	mu     sync.Mutex
	subs   map[<-chan state.GameState]chan state.GameState
	latest *state.GameState
}

func newFeed() *feed {
	return &feed{subs: make(map[<-chan state.GameState]chan state.GameState)}
}

// subscribe returns a channel primed with the latest snapshot, if any.
func (f *feed) subscribe() <-chan state.GameState {
	ch := make(chan state.GameState, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latest != nil {
		ch <- *f.latest
	}
	f.subs[ch] = ch
	return ch
}

// unsubscribe closes a subscriber's channel. Unknown channels are ignored.
func (f *feed) unsubscribe(ch <-chan state.GameState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if w, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(w)
	}
}

func (f *feed) publish(s state.GameState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = &s
	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		// publish is the only sender and holds mu, so the slot is free.
		ch <- s
	}
}
