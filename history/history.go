// Package history keeps linear undo/redo over whole-document snapshots.
package history

import (
	"design-studio/document"

	"github.com/sirupsen/logrus"
)

// DefaultLimit is the number of snapshots kept before the oldest is evicted.
const DefaultLimit = 50

// History is a bounded list of document snapshots and a cursor into it.
// Every stored snapshot is a deep copy owned by the history; every returned
// document is a fresh copy owned by the caller.
type History struct {
	entries  []*document.Document
	position int
	limit    int
}

// New starts a history whose only entry is initial.
func New(limit int, initial *document.Document) *History {
	if limit < 1 {
		limit = DefaultLimit
	}
	h := &History{limit: limit}
	h.Reset(initial)
	return h
}

// Reset drops every snapshot and starts over from d. Use it when a different
// design is loaded so history never spans two documents.
func (h *History) Reset(d *document.Document) {
	h.entries = []*document.Document{d.Clone()}
	h.position = 0
}

// Commit records d as the newest state. Any redo branch is discarded and the
// oldest entries are evicted beyond the limit.
func (h *History) Commit(d *document.Document) {
	h.entries = append(h.entries[:h.position+1], d.Clone())
	h.position = len(h.entries) - 1

	if evict := len(h.entries) - h.limit; evict > 0 {
		logrus.WithFields(logrus.Fields{
			"evicted": evict,
			"limit":   h.limit,
		}).Debug("History limit reached, evicting oldest snapshots")
		h.entries = append([]*document.Document(nil), h.entries[evict:]...)
		h.position -= evict
	}
}

// Undo steps back one entry. At the first entry it does nothing and reports
// false.
func (h *History) Undo() (*document.Document, bool) {
	if h.position == 0 {
		return nil, false
	}
	h.position--
	return h.entries[h.position].Clone(), true
}

// Redo steps forward one entry. At the newest entry it does nothing and
// reports false.
func (h *History) Redo() (*document.Document, bool) {
	if h.position >= len(h.entries)-1 {
		return nil, false
	}
	h.position++
	return h.entries[h.position].Clone(), true
}

// Current returns a copy of the snapshot at the cursor.
func (h *History) Current() *document.Document {
	return h.entries[h.position].Clone()
}

func (h *History) CanUndo() bool {
	return h.position > 0
}

func (h *History) CanRedo() bool {
	return h.position < len(h.entries)-1
}

func (h *History) Len() int {
	return len(h.entries)
}

func (h *History) Position() int {
	return h.position
}

func (h *History) Limit() int {
	return h.limit
}
