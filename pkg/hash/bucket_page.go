package hash

import (
	"encoding/binary"

	"hashdb/pkg/pager"
)

// BucketPage is a fixed-capacity, unordered array of (K,V) entries: the leaf
// level of the index. Lookup/Insert/Remove all do a linear scan, same as the
// original single-level hash bucket - buckets are sized small enough that
// this beats the bookkeeping of a sorted or hashed in-page layout.
type BucketPage[K any, V any] struct {
	page     *pager.Page
	maxSize  uint32
	size     uint32
	keyCodec Codec[K]
	valCodec Codec[V]
	cmp      Comparator[K]
}

// AsBucketPage constructs a BucketPage view over an already-initialized page.
func AsBucketPage[K any, V any](page *pager.Page, maxSize uint32, keyCodec Codec[K], valCodec Codec[V], cmp Comparator[K]) *BucketPage[K, V] {
	size, _ := binary.Varint(page.GetData()[bucketSizeOffset : bucketSizeOffset+slotWidth])
	return &BucketPage[K, V]{
		page:     page,
		maxSize:  maxSize,
		size:     uint32(size),
		keyCodec: keyCodec,
		valCodec: valCodec,
		cmp:      cmp,
	}
}

// Init zeroes out a freshly allocated page into an empty bucket.
func (b *BucketPage[K, V]) Init(maxSize uint32) {
	b.maxSize = maxSize
	b.setSize(0)
}

func (b *BucketPage[K, V]) setSize(size uint32) {
	b.size = size
	buf := make([]byte, slotWidth)
	binary.PutVarint(buf, int64(size))
	b.page.Update(buf, bucketSizeOffset, slotWidth)
}

// Size returns the number of entries currently stored in the bucket.
func (b *BucketPage[K, V]) Size() uint32 {
	return b.size
}

// MaxSize returns the bucket's fixed entry capacity.
func (b *BucketPage[K, V]) MaxSize() uint32 {
	return b.maxSize
}

// IsFull reports whether the bucket has no room for another entry.
func (b *BucketPage[K, V]) IsFull() bool {
	return b.size >= b.maxSize
}

// IsEmpty reports whether the bucket holds no entries.
func (b *BucketPage[K, V]) IsEmpty() bool {
	return b.size == 0
}

func (b *BucketPage[K, V]) entryWidth() int64 {
	return b.keyCodec.Width + b.valCodec.Width
}

func (b *BucketPage[K, V]) entryOffset(i uint32) int64 {
	return bucketEntriesOffset + int64(i)*b.entryWidth()
}

// KeyAt returns the key stored at slot i.
func (b *BucketPage[K, V]) KeyAt(i uint32) K {
	off := b.entryOffset(i)
	return b.keyCodec.Unmarshal(b.page.GetData()[off : off+b.keyCodec.Width])
}

// ValueAt returns the value stored at slot i.
func (b *BucketPage[K, V]) ValueAt(i uint32) V {
	off := b.entryOffset(i) + b.keyCodec.Width
	return b.valCodec.Unmarshal(b.page.GetData()[off : off+b.valCodec.Width])
}

// EntryAt returns the (key, value) pair stored at slot i.
func (b *BucketPage[K, V]) EntryAt(i uint32) (K, V) {
	return b.KeyAt(i), b.ValueAt(i)
}

func (b *BucketPage[K, V]) setEntryAt(i uint32, key K, val V) {
	off := b.entryOffset(i)
	b.page.Update(b.keyCodec.Marshal(key), off, b.keyCodec.Width)
	b.page.Update(b.valCodec.Marshal(val), off+b.keyCodec.Width, b.valCodec.Width)
}

// Lookup scans the bucket for key, returning its value and true if found.
func (b *BucketPage[K, V]) Lookup(key K) (val V, found bool) {
	for i := uint32(0); i < b.size; i++ {
		if b.cmp(b.KeyAt(i), key) == 0 {
			return b.ValueAt(i), true
		}
	}
	var zero V
	return zero, false
}

// UpdateValue overwrites the value stored for key in place, without
// disturbing the bucket's size or slot order. Returns false if key isn't
// present.
func (b *BucketPage[K, V]) UpdateValue(key K, val V) bool {
	for i := uint32(0); i < b.size; i++ {
		if b.cmp(b.KeyAt(i), key) == 0 {
			off := b.entryOffset(i) + b.keyCodec.Width
			b.page.Update(b.valCodec.Marshal(val), off, b.valCodec.Width)
			return true
		}
	}
	return false
}

// Insert appends (key, val) to the bucket. Returns false without modifying
// the bucket if key is already present or the bucket is full; callers are
// expected to check IsFull/Lookup themselves when that distinction matters
// (e.g. to trigger a split rather than report a duplicate-key error).
func (b *BucketPage[K, V]) Insert(key K, val V) bool {
	if _, found := b.Lookup(key); found {
		return false
	}
	if b.IsFull() {
		return false
	}
	b.setEntryAt(b.size, key, val)
	b.setSize(b.size + 1)
	return true
}

// Remove deletes the entry for key, if present, compacting the slot array by
// moving the last entry into the removed slot's place (order is never
// meaningful in a bucket). Returns whether an entry was removed.
func (b *BucketPage[K, V]) Remove(key K) bool {
	for i := uint32(0); i < b.size; i++ {
		if b.cmp(b.KeyAt(i), key) == 0 {
			b.RemoveAt(i)
			return true
		}
	}
	return false
}

// RemoveAt deletes the entry at slot i by swapping in the last entry.
func (b *BucketPage[K, V]) RemoveAt(i uint32) {
	last := b.size - 1
	if i != last {
		k, v := b.EntryAt(last)
		b.setEntryAt(i, k, v)
	}
	b.setSize(last)
}

// Clear empties the bucket, used when a bucket is recycled as the split
// target for another bucket's overflow.
func (b *BucketPage[K, V]) Clear() {
	b.setSize(0)
}

// All returns every (key, value) pair in the bucket, for use by split
// redistribution and by cursors scanning the index in bucket order.
func (b *BucketPage[K, V]) All() []Entry[K, V] {
	entries := make([]Entry[K, V], b.size)
	for i := uint32(0); i < b.size; i++ {
		entries[i].Key, entries[i].Value = b.EntryAt(i)
	}
	return entries
}

// Entry is a single (key, value) pair, returned by BucketPage.All.
type Entry[K any, V any] struct {
	Key   K
	Value V
}
