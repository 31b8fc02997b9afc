package engine

import (
	"fmt"
	"sort"
	"sync"
)

// #region registry

// slot is one arena cell. mu serializes every turn for the session it holds.
type slot struct {
	mu    sync.Mutex
	id    string
	live  bool
	state State
}

// Registry is the session arena plus a session-id index. The registry lock
// only guards the index; each session's state is guarded by its own slot
// lock, so different sessions proceed in parallel.
type Registry struct {
	mu    sync.RWMutex
	index map[string]int
	arena []*slot
	free  []int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// #endregion registry

// #region lifecycle

// Put stores st under id, replacing any existing state for that id.
func (r *Registry) Put(id string, st State) {
	for {
		r.mu.Lock()
		i, ok := r.index[id]
		if !ok {
			r.insert(id, st)
			r.mu.Unlock()
			return
		}
		s := r.arena[i]
		r.mu.Unlock()
		if s.replace(id, st) {
			return
		}
		// The slot was freed and possibly reused between the index read and
		// the slot lock; look id up again.
	}
}

// replace overwrites the slot's state if it still holds id.
func (s *slot) replace(id string, st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live || s.id != id {
		return false
	}
	s.state = st.Clone()
	return true
}

// PutIfAbsent stores st under id unless id is already live. It reports
// whether st was stored.
func (r *Registry) PutIfAbsent(id string, st State) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[id]; ok {
		return false
	}
	r.insert(id, st)
	return true
}

// insert places a new session in a free slot. r.mu must be held.
func (r *Registry) insert(id string, st State) {
	var i int
	if n := len(r.free); n > 0 {
		i, r.free = r.free[n-1], r.free[:n-1]
	} else {
		r.arena = append(r.arena, &slot{})
		i = len(r.arena) - 1
	}
	s := r.arena[i]
	s.mu.Lock()
	s.id, s.live, s.state = id, true, st.Clone()
	s.mu.Unlock()
	r.index[id] = i
}

// Remove drops id and returns its final state.
func (r *Registry) Remove(id string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[id]
	if !ok {
		return State{}, fmt.Errorf("remove %s: %w", id, ErrSessionNotFound)
	}
	s := r.arena[i]
	s.mu.Lock()
	final := s.state
	s.id, s.live, s.state = "", false, State{}
	s.mu.Unlock()
	delete(r.index, id)
	r.free = append(r.free, i)
	return final, nil
}

// #endregion lifecycle

// #region access

// lookup returns the locked slot for id. The caller must unlock it.
func (r *Registry) lookup(id string) (*slot, error) {
	r.mu.RLock()
	i, ok := r.index[id]
	var s *slot
	if ok {
		s = r.arena[i]
	}
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.mu.Lock()
	// The slot may have been recycled between the index read and the lock.
	if !s.live || s.id != id {
		s.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Update runs fn with exclusive access to the session's state. The state fn
// returns replaces the stored one when err is nil.
func (r *Registry) Update(id string, fn func(State) (State, error)) error {
	s, err := r.lookup(id)
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	defer s.mu.Unlock()
	next, err := fn(s.state)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// Get returns a copy of the session's state.
func (r *Registry) Get(id string) (State, error) {
	s, err := r.lookup(id)
	if err != nil {
		return State{}, fmt.Errorf("get %s: %w", id, err)
	}
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

// IDs returns the live session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.index))
	for id := range r.index {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.index)
}

// #endregion access
