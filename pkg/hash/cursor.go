package hash

import (
	"errors"

	"hashdb/pkg/cursor"
	"hashdb/pkg/entry"
)

// HashCursor walks every entry in a HashIndex. Unlike a B+Tree leaf chain, a
// hash table's buckets aren't linked in any order a cursor could follow
// page-by-page - a bucket's neighbors in hash-index space bear no relation
// to its neighbors in page-number space. So HashCursor takes a full
// AllEntries snapshot up front and walks that instead; the read latches used
// to build the snapshot are all released again before the cursor is handed
// back, same as after a single Select call.
type HashCursor struct {
	entries []Entry[int64, int64]
	pos     int
}

// CursorAtStart returns a cursor positioned at the first entry in the index.
func (index *HashIndex) CursorAtStart() (cursor.Cursor, error) {
	entries, err := index.table.AllEntries()
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.New("all buckets are empty")
	}
	return &HashCursor{entries: entries, pos: 0}, nil
}

// Next moves the cursor ahead by one entry. Returns true once the cursor has
// been advanced past the last entry.
func (c *HashCursor) Next() bool {
	if c.pos+1 >= len(c.entries) {
		c.pos = len(c.entries)
		return true
	}
	c.pos++
	return false
}

// GetEntry returns the entry currently pointed to by the cursor.
func (c *HashCursor) GetEntry() (entry.Entry, error) {
	if c.pos >= len(c.entries) {
		return entry.Entry{}, errors.New("getEntry: cursor is not pointing at a valid entry")
	}
	e := c.entries[c.pos]
	return entry.New(e.Key, e.Value), nil
}

// Close releases the cursor. HashCursor holds no pinned pages - its
// snapshot was taken and released up front - so there's nothing to do.
func (c *HashCursor) Close() {}
