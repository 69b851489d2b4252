package hash

import (
	"fmt"
	"io"
	"path/filepath"

	"hashdb/pkg/entry"
	"hashdb/pkg/pager"
)

// Default fan-out parameters for a HashIndex's DiskExtendibleHashTable.
// header depth 2 gives 4 top-level directory slots - enough to exercise the
// header page's own fan-out in tests without wasting pages on an index that
// will only ever hold a handful of keys. directory depth 8 is exactly this
// page size's directory capacity and bucket size 128 is under the bucket
// capacity of 204 int64 pairs (see
// HeaderMaxDepthCapacity/DirectoryMaxDepthCapacity/BucketMaxSizeCapacity in
// constants.go), so a directory can keep doubling as buckets split up to
// the largest size a page holds.
const (
	defaultHeaderMaxDepth    uint32 = 2
	defaultDirectoryMaxDepth uint32 = 8
	defaultBucketMaxSize     uint32 = 128
)

// headerRootPN is the page number of a HashIndex's header page. A fresh
// pager always hands out page 0 for the first NewPageGuarded call, so the
// header page id never needs to be persisted anywhere out of band.
const headerRootPN int64 = 0

// HashIndex is a database.Index backed by a DiskExtendibleHashTable of
// int64 keys to int64 values/RIDs.
type HashIndex struct {
	table *DiskExtendibleHashTable[int64, int64]
	pager *pager.Pager
}

// OpenTable opens (or creates, if filename doesn't yet exist) a HashIndex
// backed by a file at filename, using the default xxhash-based hash
// function. OpenTableWithHasher lets callers pick a different one.
func OpenTable(filename string) (*HashIndex, error) {
	return OpenTableWithHasher(filename, XxHasher)
}

// OpenTableWithHasher is OpenTable with an explicit HashFunc[int64],
// demonstrating that the table core never hardcodes a particular hash
// function - it's a construction-time parameter, same as in the original
// DiskExtendibleHashTable<K,V,KC> template.
func OpenTableWithHasher(filename string, hashFn HashFunc[int64]) (*HashIndex, error) {
	p, err := pager.New(filename)
	if err != nil {
		return nil, err
	}

	var table *DiskExtendibleHashTable[int64, int64]
	if p.GetNumPages() == 0 {
		table, err = NewDiskExtendibleHashTable[int64, int64](
			p, hashFn, Int64Comparator, Int64Codec, Int64Codec,
			defaultHeaderMaxDepth, defaultDirectoryMaxDepth, defaultBucketMaxSize,
		)
	} else {
		table, err = OpenDiskExtendibleHashTable[int64, int64](
			p, headerRootPN, hashFn, Int64Comparator, Int64Codec, Int64Codec,
			defaultDirectoryMaxDepth, defaultBucketMaxSize,
		)
	}
	if err != nil {
		return nil, err
	}
	return &HashIndex{table: table, pager: p}, nil
}

// GetName returns the base file name of the file backing this index's pager.
func (index *HashIndex) GetName() string {
	return filepath.Base(index.pager.GetFileName())
}

// GetPager returns the pager backing this index.
func (index *HashIndex) GetPager() *pager.Pager {
	return index.pager
}

// GetTable returns the DiskExtendibleHashTable backing this index, for use
// by tests and by the invariant checks in verify.go.
func (index *HashIndex) GetTable() *DiskExtendibleHashTable[int64, int64] {
	return index.table
}

// Close flushes every dirty page to disk and closes the backing file. The
// header page id is always the first page ever allocated (page 0), so
// reopening the file needs no separate metadata - unlike the original
// single-level table, there is nothing else to persist out of band.
func (index *HashIndex) Close() error {
	return index.pager.Close()
}

// Find looks up key, returning its (key, value) entry.
func (index *HashIndex) Find(key int64) (entry.Entry, error) {
	val, found := index.table.Get(key)
	if !found {
		return entry.Entry{}, errKeyNotFound(key)
	}
	return entry.New(key, val), nil
}

// Insert adds (key, value) to the index.
func (index *HashIndex) Insert(key int64, value int64) error {
	ok, err := index.table.Insert(key, value)
	if err != nil {
		return err
	}
	if !ok {
		return errDuplicateOrFull(key)
	}
	return nil
}

// Update overwrites the value stored for key.
func (index *HashIndex) Update(key int64, value int64) error {
	ok, err := index.table.Update(key, value)
	if err != nil {
		return err
	}
	if !ok {
		return errKeyNotFound(key)
	}
	return nil
}

// Delete removes key from the index.
func (index *HashIndex) Delete(key int64) error {
	ok, err := index.table.Remove(key)
	if err != nil {
		return err
	}
	if !ok {
		return errKeyNotFound(key)
	}
	return nil
}

// Select returns every entry in the index.
func (index *HashIndex) Select() ([]entry.Entry, error) {
	entries, err := index.table.AllEntries()
	if err != nil {
		return nil, err
	}
	result := make([]entry.Entry, len(entries))
	for i, e := range entries {
		result[i] = entry.New(e.Key, e.Value)
	}
	return result, nil
}

// Print writes every entry in the index to w.
func (index *HashIndex) Print(w io.Writer) {
	entries, err := index.Select()
	if err != nil {
		return
	}
	for _, e := range entries {
		e.Print(w)
	}
	io.WriteString(w, "\n")
}

// PrintPN writes the contents of page pn to w. The header page prints its
// directory slot map; every other page is assumed to be a bucket page, by
// far the most common page in the file, and printed as one.
func (index *HashIndex) PrintPN(pn int, w io.Writer) {
	page, err := index.pager.GetPage(int64(pn))
	if err != nil {
		io.WriteString(w, err.Error()+"\n")
		return
	}
	defer index.pager.PutPage(page)

	if int64(pn) == index.table.HeaderPageID() {
		h := AsHeaderPage(page)
		fmt.Fprintf(w, "header page: max depth %d\n", h.MaxDepth())
		for i := uint32(0); i < h.Size(); i++ {
			if id := h.GetDirectoryPageID(i); id != InvalidPageID {
				fmt.Fprintf(w, "  slot %d -> directory page %d\n", i, id)
			}
		}
		return
	}

	bucket := index.table.bucket(page)
	fmt.Fprintf(w, "bucket page %d (%d entries):\n", pn, bucket.Size())
	for _, e := range bucket.All() {
		fmt.Fprintf(w, "  (%d, %d)\n", e.Key, e.Value)
	}
}
