package models

import (
	"errors"
	"unicode/utf8"
)

// MaxTitleLength is the longest title the shells accept.
const MaxTitleLength = 200

// Item represents a single to-do entry.
// An ID of zero means the item has not been persisted yet.
type Item struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// IsNew reports whether the item still needs an ID from the store.
func (i Item) IsNew() bool {
	return i.ID == 0
}

// Toggled returns a copy of the item with its completion flag flipped.
func (i Item) Toggled() Item {
	i.Completed = !i.Completed
	return i
}

// Validate checks the item against the limits enforced by the input shells.
// The store itself accepts any title, including an empty one.
func (i Item) Validate() error {
	if utf8.RuneCountInString(i.Title) > MaxTitleLength {
		return errors.New("title must be 200 characters or fewer")
	}
	if i.ID < 0 {
		return errors.New("id must not be negative")
	}
	return nil
}

// Stats counts completed and pending items.
func Stats(items []Item) (done, pending int) {
	for _, it := range items {
		if it.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}
