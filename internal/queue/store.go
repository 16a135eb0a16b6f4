package queue

import (
	"sync"

	"github.com/matheus3301/modq/internal/bus"
	"github.com/matheus3301/modq/internal/filter"
)

// Store is the canonical in-memory view of the queue and the current
// selection. It is the only shared mutable state in the dashboard; all
// writers go through its methods and all readers receive copies.
type Store struct {
	mu       sync.RWMutex
	tab      filter.Tab
	messages []Message
	index    map[int64]int
	total    int
	unscored int
	selected map[int64]struct{}
	bus      *bus.Bus
}

// NewStore creates an empty store showing the pending tab.
func NewStore(b *bus.Bus) *Store {
	return &Store{
		tab:      filter.DefaultTab,
		index:    make(map[int64]int),
		selected: make(map[int64]struct{}),
		bus:      b,
	}
}

// ReplaceSnapshot installs a new view. Switching tabs clears the selection;
// otherwise selected ids missing from the new view are dropped.
func (s *Store) ReplaceSnapshot(tab filter.Tab, snap Snapshot) {
	s.mu.Lock()
	msgs := make([]Message, len(snap.Messages))
	for i, m := range snap.Messages {
		msgs[i] = cloneMessage(m)
	}
	s.messages = msgs
	s.reindex()
	s.total = max(snap.TotalCount, 0)
	s.unscored = max(snap.UnscoredCount, 0)

	if tab != s.tab {
		clear(s.selected)
	} else {
		for id := range s.selected {
			if _, ok := s.index[id]; !ok {
				delete(s.selected, id)
			}
		}
	}
	s.tab = tab
	s.mu.Unlock()

	s.changed("replace")
}

// PatchByID merges p into the message with the given id. An id outside the
// current view is not an error; it returns false and changes nothing.
func (s *Store) PatchByID(id int64, p Patch) bool {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	wasScored := s.messages[i].IsScored()
	p.apply(&s.messages[i])
	if !wasScored && s.messages[i].IsScored() {
		s.unscored = max(s.unscored-1, 0)
	}
	s.mu.Unlock()

	s.changed("patch")
	return true
}

// RemoveByIDs deletes matching messages, drops them from the selection and
// decrements the total by the number actually removed.
func (s *Store) RemoveByIDs(ids []int64) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	removed := 0
	unscoredRemoved := 0
	kept := s.messages[:0]
	for _, m := range s.messages {
		if _, ok := drop[m.ID]; ok {
			removed++
			if !m.IsScored() {
				unscoredRemoved++
			}
			delete(s.selected, m.ID)
			continue
		}
		kept = append(kept, m)
	}
	s.messages = kept
	s.reindex()
	s.total = max(s.total-removed, 0)
	s.unscored = max(s.unscored-unscoredRemoved, 0)
	s.mu.Unlock()

	if removed > 0 {
		s.changed("remove")
	}
	return removed
}

// SetUnscoredCount overrides the unscored indicator, clamped at zero.
func (s *Store) SetUnscoredCount(n int) {
	s.mu.Lock()
	s.unscored = max(n, 0)
	s.mu.Unlock()
	s.changed("unscored")
}

// Select adds id to the selection if it is visible. Returns whether it was added.
func (s *Store) Select(id int64) bool {
	s.mu.Lock()
	_, visible := s.index[id]
	if visible {
		s.selected[id] = struct{}{}
	}
	s.mu.Unlock()
	if visible {
		s.changed("select")
	}
	return visible
}

// Deselect removes id from the selection.
func (s *Store) Deselect(id int64) {
	s.mu.Lock()
	_, had := s.selected[id]
	delete(s.selected, id)
	s.mu.Unlock()
	if had {
		s.changed("select")
	}
}

// SelectAll selects every visible id among ids and returns how many are selected afterwards.
func (s *Store) SelectAll(ids []int64) int {
	s.mu.Lock()
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			s.selected[id] = struct{}{}
		}
	}
	n := len(s.selected)
	s.mu.Unlock()
	s.changed("select")
	return n
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	clear(s.selected)
	s.mu.Unlock()
	s.changed("select")
}

// IsSelected reports whether id is selected.
func (s *Store) IsSelected(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.selected[id]
	return ok
}

// Selected returns the selected ids in display order.
func (s *Store) Selected() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.selected))
	for _, m := range s.messages {
		if _, ok := s.selected[m.ID]; ok {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// Messages returns a copy of the visible messages in server order.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = cloneMessage(m)
	}
	return out
}

// IDs returns the visible ids in server order.
func (s *Store) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, len(s.messages))
	for i, m := range s.messages {
		ids[i] = m.ID
	}
	return ids
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id int64) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return Message{}, false
	}
	return cloneMessage(s.messages[i]), true
}

// Counts returns the derived counters.
func (s *Store) Counts() Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Counts{
		Total:    s.total,
		Unscored: s.unscored,
		Visible:  len(s.messages),
		Selected: len(s.selected),
	}
}

// Tab returns the tab the current view belongs to.
func (s *Store) Tab() filter.Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tab
}

// reindex must be called with mu held.
func (s *Store) reindex() {
	clear(s.index)
	for i, m := range s.messages {
		s.index[m.ID] = i
	}
}

func (s *Store) changed(op string) {
	s.bus.Emit(bus.KindQueueChanged, op)
}
