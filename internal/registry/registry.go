// Package registry keeps the authoritative set of active notification records.
package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/jmylchreest/quickpanel/internal/model"
	"github.com/jmylchreest/quickpanel/internal/render"
)

// Entry is one active notification.
type Entry struct {
	ID     int
	Record *model.Record
	View   render.ViewHandle // Owned by the animation scheduler while set
}

// Registry maps notification ids to entries and caches per-category counts.
//
// The engine mutates it from the loop only; the lock exists so status readers
// on other goroutines (metrics, terminal renderer) see consistent counts.
type Registry struct {
	mu     sync.RWMutex
	logger *slog.Logger

	entries map[int]*Entry
	counts  map[model.Category]int
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		entries: make(map[int]*Entry),
		counts:  make(map[model.Category]int),
	}
}

// Add stores a clone of rec under id. It returns nil if rec is nil, its
// category is unknown, or id is already present.
func (r *Registry) Add(id int, rec *model.Record, view render.ViewHandle) *Entry {
	if rec == nil || !rec.Category.Valid() {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		r.logger.Debug("registry add rejected: duplicate id", "id", id)
		return nil
	}

	entry := &Entry{
		ID:     id,
		Record: rec.Clone(),
		View:   view,
	}
	r.entries[id] = entry
	r.counts[entry.Record.Category]++

	return entry
}

// Get returns the entry for id, or nil.
func (r *Registry) Get(id int) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

// Update swaps the stored record for a clone of rec, moving the entry between
// category counters when the category changed. It returns the previous
// category and false if id is unknown or rec is unusable.
func (r *Registry) Update(id int, rec *model.Record) (model.Category, bool) {
	if rec == nil || !rec.Category.Valid() {
		return model.CategoryNormal, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[id]
	if !exists {
		return model.CategoryNormal, false
	}

	old := entry.Record.Category
	entry.Record = rec.Clone()
	if old != entry.Record.Category {
		r.counts[old]--
		r.counts[entry.Record.Category]++
	}
	return old, true
}

// SetView changes the view associated with id.
func (r *Registry) SetView(id int, view render.ViewHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, exists := r.entries[id]; exists {
		entry.View = view
	}
}

// Remove drops the entry for id. Unknown ids are ignored.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[id]
	if !exists {
		return
	}
	r.counts[entry.Record.Category]--
	entry.Record = nil
	entry.View = render.NoView
	delete(r.entries, id)
}

// RemoveAll clears every entry and zeroes the counters.
func (r *Registry) RemoveAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, entry := range r.entries {
		entry.Record = nil
		entry.View = render.NoView
		delete(r.entries, id)
	}
	r.counts = make(map[model.Category]int)
}

// Count returns the number of entries in category, or all entries for model.CategoryAll.
func (r *Registry) Count(category model.Category) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if category == model.CategoryAll {
		return r.counts[model.CategoryNormal] + r.counts[model.CategoryOngoing]
	}
	return r.counts[category]
}

// IDs returns all ids in ascending order.
func (r *Registry) IDs() []int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
