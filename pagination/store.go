/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package pagination

import (
	"sync"
)

// Store keeps, per query identity, the continuation cursor needed to fetch
// each page. Position p holds the cursor returned by page p, which is the
// cursor page p+1 needs.
//
// Entries live as long as the Store; nothing is evicted. A changed filter is
// a different identity and simply starts a new sequence.
type Store struct {
	mu    sync.Mutex
	pages map[string]map[int]*string
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		pages: make(map[string]map[int]*string),
	}
}

// Cursor returns the cursor needed to fetch page of id.
//
// Page 1 never needs a cursor: it returns (nil, true). For later pages ok is
// false when the previous page was never fetched; callers must treat that as
// "page out of range" and stop, not as an error to retry. A nil cursor with
// ok true means the previous page reported no successor.
func (s *Store) Cursor(id Identity, page int) (cursor *string, ok bool) {
	if page == 1 {
		return nil, true
	}
	if page < 1 {
		return nil, false
	}

	key, err := id.Key()
	if err != nil {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, exists := s.pages[key]
	if !exists {
		return nil, false
	}
	c, recorded := seq[page-1]
	if !recorded {
		return nil, false
	}
	return copyCursor(c), true
}

// SaveCursor records the cursor returned when fetching page of id. A nil
// cursor means there are no further pages. Pages below 1 are ignored.
func (s *Store) SaveCursor(cursor *string, id Identity, page int) {
	if page < 1 {
		return
	}
	key, err := id.Key()
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seq, exists := s.pages[key]
	if !exists {
		seq = make(map[int]*string)
		s.pages[key] = seq
	}
	seq[page] = copyCursor(cursor)
}

// Len returns the number of identities seen so far.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

func copyCursor(c *string) *string {
	if c == nil {
		return nil
	}
	v := *c
	return &v
}
