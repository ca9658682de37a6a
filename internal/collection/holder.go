package collection

import (
	"cmp"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vecora/vecora/model"
	"github.com/vecora/vecora/segment"
)

// Entry is a segment registered in the holder, together with its identity
// and appendability. Entries are reference counted: readers borrowing an
// entry through a snapshot keep the segment alive until they release it,
// even after the holder has dropped the entry in a swap.
type Entry struct {
	id         model.SegmentID
	seg        segment.Segment
	appendable bool

	refs atomic.Int64
}

func newEntry(id model.SegmentID, seg segment.Segment, appendable bool) *Entry {
	e := &Entry{id: id, seg: seg, appendable: appendable}
	e.refs.Store(1)
	return e
}

// ID returns the segment's identifier.
func (e *Entry) ID() model.SegmentID { return e.id }

// Segment returns the underlying segment.
func (e *Entry) Segment() segment.Segment { return e.seg }

// Appendable reports whether the segment is a write target.
func (e *Entry) Appendable() bool { return e.appendable }

func (e *Entry) acquire() {
	e.refs.Add(1)
}

func (e *Entry) release() {
	if e.refs.Add(-1) == 0 {
		_ = e.seg.Close()
	}
}

// Snapshot is a consistent, point-in-time view of the active segments,
// ordered by ascending segment id. Callers must Release it when done.
type Snapshot struct {
	entries []*Entry
}

// Entries returns all segments in the snapshot.
func (s *Snapshot) Entries() []*Entry { return s.entries }

// Appendable returns the subset of entries accepting writes.
func (s *Snapshot) Appendable() []*Entry {
	var out []*Entry
	for _, e := range s.entries {
		if e.appendable {
			out = append(out, e)
		}
	}
	return out
}

// Release returns the borrowed references. The snapshot must not be used
// afterwards.
func (s *Snapshot) Release() {
	for _, e := range s.entries {
		e.release()
	}
	s.entries = nil
}

// Holder owns the set of active segments of a collection.
//
// Structural mutation (Add, Remove, Swap) takes the exclusive lock for the
// duration of the map update only; slow work such as merge builds happens
// entirely outside, against private scratch state. Update dispatch runs
// under the shared lock (see View) so that a swap's reconcile step can rely
// on quiesced writers.
type Holder struct {
	mu      sync.RWMutex
	nextID  atomic.Uint64
	entries map[model.SegmentID]*Entry
	sorted  []*Entry
}

// NewHolder creates an empty holder.
func NewHolder() *Holder {
	return &Holder{entries: make(map[model.SegmentID]*Entry)}
}

// Add registers a segment and returns its freshly issued id.
// Ids are monotonically issued and never reused for the holder's lifetime.
func (h *Holder) Add(seg segment.Segment, appendable bool) model.SegmentID {
	id := model.SegmentID(h.nextID.Add(1))

	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[id] = newEntry(id, seg, appendable)
	h.rebuildSorted()
	return id
}

// Remove drops the given entries. Missing ids are ignored.
// Returns the ids actually removed.
func (h *Holder) Remove(ids ...model.SegmentID) []model.SegmentID {
	h.mu.Lock()
	defer h.mu.Unlock()

	var removed []model.SegmentID
	for _, id := range ids {
		if e, ok := h.entries[id]; ok {
			delete(h.entries, id)
			e.release()
			removed = append(removed, id)
		}
	}
	if removed != nil {
		h.rebuildSorted()
	}
	return removed
}

// Len returns the number of active segments.
func (h *Holder) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Snapshot borrows a consistent view for iteration. It never reflects a
// partially applied swap: callers observe either all sources of a merge or
// the merged result, never a mixture.
func (h *Holder) Snapshot() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := make([]*Entry, len(h.sorted))
	copy(entries, h.sorted)
	for _, e := range entries {
		e.acquire()
	}
	return &Snapshot{entries: entries}
}

// View runs fn under the shared lock against the current entries.
// Per-segment mutation dispatched inside fn is thereby serialized against
// structural mutation: a Swap cannot begin while fn is in flight.
func (h *Holder) View(fn func(entries []*Entry) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return fn(h.sorted)
}

// Swap inserts the new segment and removes all replaced entries as a single
// indivisible step. Before publishing, reconcile (if non-nil) runs inside
// the exclusive section with writers quiesced, giving the caller a last
// chance to fold in mutations that raced its build. If any replaced id is
// missing, or reconcile fails, the holder is left untouched.
func (h *Holder) Swap(seg segment.Segment, appendable bool, replaces []model.SegmentID, reconcile func() error) (model.SegmentID, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, id := range replaces {
		if _, ok := h.entries[id]; !ok {
			return 0, fmt.Errorf("swap aborted: segment %d no longer active", id)
		}
	}

	if reconcile != nil {
		if err := reconcile(); err != nil {
			return 0, err
		}
	}

	id := model.SegmentID(h.nextID.Add(1))
	h.entries[id] = newEntry(id, seg, appendable)
	for _, rid := range replaces {
		e := h.entries[rid]
		delete(h.entries, rid)
		e.release()
	}
	h.rebuildSorted()
	return id, nil
}

// Close releases every entry. Borrowed snapshots keep their segments alive
// until released.
func (h *Holder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, e := range h.entries {
		delete(h.entries, id)
		e.release()
	}
	h.sorted = nil
}

// rebuildSorted refreshes the deterministic iteration order.
// Callers must hold the exclusive lock.
func (h *Holder) rebuildSorted() {
	h.sorted = make([]*Entry, 0, len(h.entries))
	for _, e := range h.entries {
		h.sorted = append(h.sorted, e)
	}
	slices.SortFunc(h.sorted, func(a, b *Entry) int {
		return cmp.Compare(a.id, b.id)
	})
}
