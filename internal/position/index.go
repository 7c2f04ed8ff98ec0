// Package position derives the 1..N numbering shown to users from a fresh
// draft listing. Positions are not stable across mutations, so an Index must
// be rebuilt from the store every time the user supplies a number.
package position

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"channel-assistant/internal/domain"
)

var (
	ErrNotANumber = errors.New("position: not a number")
	ErrOutOfRange = errors.New("position: out of range")
)

// Entry is a draft together with its current position.
type Entry struct {
	Position int
	Draft    domain.Draft
}

// Index is a snapshot of a user's drafts in listing order.
type Index struct {
	drafts []domain.Draft
}

// New sorts a copy of drafts by creation time, then by id.
func New(drafts []domain.Draft) Index {
	sorted := make([]domain.Draft, len(drafts))
	copy(sorted, drafts)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.Less(b.ID)
	})
	return Index{drafts: sorted}
}

// Count returns the number of drafts in the snapshot.
func (ix Index) Count() int {
	return len(ix.drafts)
}

// Resolve maps a 1-based position to the draft currently holding it.
func (ix Index) Resolve(pos int) (domain.Draft, error) {
	if pos < 1 || pos > len(ix.drafts) {
		return domain.Draft{}, ErrOutOfRange
	}
	return ix.drafts[pos-1], nil
}

// PositionOf returns the current position of a durable id.
func (ix Index) PositionOf(id domain.DraftID) (int, bool) {
	for i, d := range ix.drafts {
		if d.ID == id {
			return i + 1, true
		}
	}
	return 0, false
}

// Entries returns the snapshot with positions attached.
func (ix Index) Entries() []Entry {
	out := make([]Entry, len(ix.drafts))
	for i, d := range ix.drafts {
		out[i] = Entry{Position: i + 1, Draft: d}
	}
	return out
}

// Parse reads a position typed by the user.
func Parse(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrNotANumber
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, ErrNotANumber
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, ErrOutOfRange
	}
	return n, nil
}
