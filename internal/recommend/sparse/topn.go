// Basketry - Product Recommendation Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/basketry

package sparse

// Scored is a scored candidate held by a TopN heap.
type Scored struct {
	// ID is the candidate's product identifier.
	ID string

	// Score is the candidate's score; higher is better.
	Score float64
}

// TopN is a bounded min-heap that retains the N largest-scored items seen.
// Ties on score are broken on the identifier: the lexicographically larger
// id wins, so results are deterministic regardless of push order.
//
// TopN is not safe for concurrent use; the similarity engine owns one heap
// per product for the duration of a batch.
type TopN struct {
	capacity int
	items    []Scored
}

// NewTopN creates a heap that retains at most capacity items.
func NewTopN(capacity int) *TopN {
	if capacity < 1 {
		capacity = 1
	}
	return &TopN{
		capacity: capacity,
		items:    make([]Scored, 0, capacity),
	}
}

// less orders items for retention: the "smallest" item is the one evicted
// first, meaning lowest score, then lexicographically smallest id.
func less(a, b Scored) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.ID < b.ID
}

// Push offers an item to the heap. When the heap is full, the item replaces
// the current minimum only if it outranks it.
func (h *TopN) Push(item Scored) {
	if len(h.items) < h.capacity {
		h.items = append(h.items, item)
		h.up(len(h.items) - 1)
		return
	}

	if !less(h.items[0], item) {
		return
	}
	h.items[0] = item
	h.down(0)
}

// Len returns the number of retained items.
func (h *TopN) Len() int {
	return len(h.items)
}

// Drain empties the heap and returns its items ordered by descending score,
// ties broken by descending id. The heap is reusable afterwards.
func (h *TopN) Drain() []Scored {
	out := make([]Scored, len(h.items))
	for i := len(h.items) - 1; i >= 0; i-- {
		out[i] = h.pop()
	}
	return out
}

// pop removes and returns the minimum item.
func (h *TopN) pop() Scored {
	n := len(h.items) - 1
	min := h.items[0]
	h.items[0] = h.items[n]
	h.items = h.items[:n]
	if n > 0 {
		h.down(0)
	}
	return min
}

func (h *TopN) up(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !less(h.items[i], h.items[parent]) {
			break
		}
		h.items[i], h.items[parent] = h.items[parent], h.items[i]
		i = parent
	}
}

func (h *TopN) down(i int) {
	n := len(h.items)
	for {
		smallest := i
		if l := 2*i + 1; l < n && less(h.items[l], h.items[smallest]) {
			smallest = l
		}
		if r := 2*i + 2; r < n && less(h.items[r], h.items[smallest]) {
			smallest = r
		}
		if smallest == i {
			return
		}
		h.items[i], h.items[smallest] = h.items[smallest], h.items[i]
		i = smallest
	}
}
