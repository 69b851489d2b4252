package hash

import (
	"encoding/binary"

	"hashdb/pkg/pager"
)

/////////////////////////////////////////////////////////////////////////////
////////////////////////// Low-level Constants //////////////////////////////
/////////////////////////////////////////////////////////////////////////////

// InvalidPageID marks an empty header/directory slot, mirroring pager.NoPage.
const InvalidPageID int64 = pager.NoPage

const PAGESIZE int64 = pager.Pagesize

// slotWidth is the fixed width, in bytes, of a single varint-encoded cell.
// Values are written with binary.PutVarint into a cell of exactly this many
// bytes; binary.Varint stops reading as soon as it sees a complete varint, so
// padding a short value out to slotWidth with zero bytes is harmless. This is
// the same trick the original hash bucket used for its depth/numKeys cells.
const slotWidth int64 = binary.MaxVarintLen64

// Header page layout: [ maxDepth | directoryPageIds[0..2^maxDepth) ]
const headerMaxDepthOffset int64 = 0
const headerDirectoryIdsOffset int64 = headerMaxDepthOffset + slotWidth

// HeaderMaxDepthCapacity is the largest header_max_depth that fits in a page.
func HeaderMaxDepthCapacity() uint32 {
	slots := (PAGESIZE - slotWidth) / slotWidth
	return log2Floor(slots)
}

// Directory page layout:
// [ globalDepth | bucketPageIds[0..2^directoryMaxDepth) | localDepths[0..2^directoryMaxDepth) ]
const directoryGlobalDepthOffset int64 = 0
const directoryBucketIdsOffset int64 = directoryGlobalDepthOffset + slotWidth

// localDepthWidth is one byte: local depths never exceed directory_max_depth,
// which itself is bounded well under 256 by DirectoryMaxDepthCapacity.
const localDepthWidth int64 = 1

// DirectoryMaxDepthCapacity is the largest directory_max_depth that fits in a page.
func DirectoryMaxDepthCapacity() uint32 {
	// slots*(slotWidth+localDepthWidth) + slotWidth <= PAGESIZE
	slots := (PAGESIZE - slotWidth) / (slotWidth + localDepthWidth)
	return log2Floor(slots)
}

// Bucket page layout: [ size | entries[0..bucketMaxSize) ]
const bucketSizeOffset int64 = 0
const bucketEntriesOffset int64 = bucketSizeOffset + slotWidth

// BucketMaxSizeCapacity is the largest bucket_max_size that fits in a page
// given the combined width of one marshaled key and one marshaled value.
func BucketMaxSizeCapacity(keyWidth, valWidth int64) uint32 {
	capacity := (PAGESIZE - slotWidth) / (keyWidth + valWidth)
	if capacity > 1<<31 {
		capacity = 1 << 31
	}
	return uint32(capacity)
}

// log2Floor returns floor(log2(n)) for n >= 1.
func log2Floor(n int64) uint32 {
	depth := uint32(0)
	for (int64(1) << (depth + 1)) <= n {
		depth++
	}
	return depth
}
