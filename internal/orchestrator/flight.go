package orchestrator

import (
	"context"
	"sync"
)

// flights counts the callers waiting on each key and cancels the running
// upstream call for a key once none are left.
type flights struct {
	mu      sync.Mutex
	waiting map[string]int
	running map[string]*flight
}

type flight struct{ cancel context.CancelFunc }

func newFlights() *flights {
	return &flights{waiting: map[string]int{}, running: map[string]*flight{}}
}

func (f *flights) enter(key string) {
	f.mu.Lock()
	f.waiting[key]++
	f.mu.Unlock()
}

func (f *flights) leave(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waiting[key]--
	if f.waiting[key] > 0 {
		return
	}
	delete(f.waiting, key)
	if fl := f.running[key]; fl != nil {
		fl.cancel()
	}
}

// start derives the upstream context of a new call for key. It survives the
// cancellation of any single caller but not of all of them. end must be
// called when the call returns.
func (f *flights) start(parent context.Context, key string) (ctx context.Context, end func()) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	fl := &flight{cancel: cancel}

	f.mu.Lock()
	f.running[key] = fl
	if f.waiting[key] == 0 {
		cancel()
	}
	f.mu.Unlock()

	return ctx, func() {
		f.mu.Lock()
		if f.running[key] == fl {
			delete(f.running, key)
		}
		f.mu.Unlock()
		cancel()
	}
}
