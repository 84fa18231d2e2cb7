package audit

import "sync"

// watchers fans the events of a shared run out to every caller waiting on it
type watchers struct {
	mu     sync.Mutex
	nextID int
	byKey  map[string]map[int]func(Event)
}

func newWatchers() *watchers {
	return &watchers{byKey: make(map[string]map[int]func(Event))}
}

// add registers fn for key and returns the function that removes it
func (w *watchers) add(key string, fn func(Event)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextID
	w.nextID++
	if w.byKey[key] == nil {
		w.byKey[key] = make(map[int]func(Event))
	}
	w.byKey[key][id] = fn

	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		delete(w.byKey[key], id)
		if len(w.byKey[key]) == 0 {
			delete(w.byKey, key)
		}
	}
}

func (w *watchers) broadcast(key string, e Event) {
	w.mu.Lock()
	fns := make([]func(Event), 0, len(w.byKey[key]))
	for _, fn := range w.byKey[key] {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
