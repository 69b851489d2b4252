package hash

import (
	"encoding/binary"

	"hashdb/pkg/pager"
)

// DirectoryPage maps a key's low `global_depth` hash bits to a bucket page
// id, with each slot further carrying the local depth of the bucket it
// points to. Multiple adjacent slots can point to the same bucket page id
// when that bucket's local depth is less than the directory's global depth;
// see the LocalDepthMask/GetSplitImageIndex/CanShrink helpers below.
type DirectoryPage struct {
	page        *pager.Page
	maxDepth    uint32
	globalDepth uint32
}

// AsDirectoryPage constructs a DirectoryPage view over an already-initialized
// page. maxDepth is a construction-time constant recorded by the owning
// table, not stored on the page itself (only globalDepth, which changes, is).
func AsDirectoryPage(page *pager.Page, maxDepth uint32) *DirectoryPage {
	gd, _ := binary.Varint(page.GetData()[directoryGlobalDepthOffset : directoryGlobalDepthOffset+slotWidth])
	return &DirectoryPage{page: page, maxDepth: maxDepth, globalDepth: uint32(gd)}
}

// Init zeroes out a freshly allocated page into an empty directory: global
// depth 0, a single bucket slot (InvalidPageID, local depth 0). The
// directory's slot array is sized for the full 1<<maxDepth capacity up
// front; slots beyond the current global depth are simply unused until
// IncrGlobalDepth brings them into play.
func (d *DirectoryPage) Init(maxDepth uint32) {
	d.maxDepth = maxDepth
	d.setGlobalDepth(0)
	d.SetBucketPageID(0, InvalidPageID)
	d.SetLocalDepth(0, 0)
}

// MaxDepth returns directory_max_depth, the configured ceiling on GlobalDepth.
func (d *DirectoryPage) MaxDepth() uint32 {
	return d.maxDepth
}

// GlobalDepth returns the number of low hash bits currently used to index
// this directory's bucket slots.
func (d *DirectoryPage) GlobalDepth() uint32 {
	return d.globalDepth
}

func (d *DirectoryPage) setGlobalDepth(depth uint32) {
	d.globalDepth = depth
	buf := make([]byte, slotWidth)
	binary.PutVarint(buf, int64(depth))
	d.page.Update(buf, directoryGlobalDepthOffset, slotWidth)
}

// Size returns the number of bucket slots currently in play, 1<<GlobalDepth.
func (d *DirectoryPage) Size() uint32 {
	return uint32(1) << d.globalDepth
}

// HashToBucketIndex returns the bucket slot a 32-bit hash selects: its low
// GlobalDepth bits.
func (d *DirectoryPage) HashToBucketIndex(hash uint32) uint32 {
	return hash & d.GlobalDepthMask()
}

// GlobalDepthMask returns (1<<GlobalDepth)-1.
func (d *DirectoryPage) GlobalDepthMask() uint32 {
	return depthMask(d.globalDepth)
}

// LocalDepthMask returns (1<<LocalDepth(i))-1.
func (d *DirectoryPage) LocalDepthMask(i uint32) uint32 {
	return depthMask(uint32(d.LocalDepth(i)))
}

func (d *DirectoryPage) bucketIDOffset(i uint32) int64 {
	return directoryBucketIdsOffset + int64(i)*slotWidth
}

func (d *DirectoryPage) localDepthOffset(i uint32) int64 {
	return directoryBucketIdsOffset + int64(1<<d.maxDepth)*slotWidth + int64(i)*localDepthWidth
}

// GetBucketPageID returns the bucket page id at slot i.
func (d *DirectoryPage) GetBucketPageID(i uint32) int64 {
	off := d.bucketIDOffset(i)
	id, _ := binary.Varint(d.page.GetData()[off : off+slotWidth])
	return id
}

// SetBucketPageID points slot i at the given bucket page id.
func (d *DirectoryPage) SetBucketPageID(i uint32, id int64) {
	buf := make([]byte, slotWidth)
	binary.PutVarint(buf, id)
	d.page.Update(buf, d.bucketIDOffset(i), slotWidth)
}

// LocalDepth returns the local depth recorded at slot i.
func (d *DirectoryPage) LocalDepth(i uint32) uint8 {
	return d.page.GetData()[d.localDepthOffset(i)]
}

// SetLocalDepth records the local depth at slot i.
func (d *DirectoryPage) SetLocalDepth(i uint32, depth uint8) {
	d.page.Update([]byte{depth}, d.localDepthOffset(i), localDepthWidth)
}

// IncrLocalDepth increments slot i's local depth by one.
func (d *DirectoryPage) IncrLocalDepth(i uint32) {
	d.SetLocalDepth(i, d.LocalDepth(i)+1)
}

// DecrLocalDepth decrements slot i's local depth by one.
func (d *DirectoryPage) DecrLocalDepth(i uint32) {
	d.SetLocalDepth(i, d.LocalDepth(i)-1)
}

// GetSplitImageIndex returns the slot that becomes slot i's sibling once it
// splits: i with its (about-to-be-used) new high bit flipped.
func (d *DirectoryPage) GetSplitImageIndex(i uint32) uint32 {
	return i ^ (uint32(1) << d.LocalDepth(i))
}

// IncrGlobalDepth doubles the directory: every new slot j in
// [oldSize, newSize) copies slot j-oldSize's bucket page id and local depth,
// per invariant 2 (slots sharing low bits down to their local depth share a
// bucket).
func (d *DirectoryPage) IncrGlobalDepth() {
	oldSize := d.Size()
	d.setGlobalDepth(d.globalDepth + 1)
	for j := oldSize; j < d.Size(); j++ {
		src := j - oldSize
		d.SetBucketPageID(j, d.GetBucketPageID(src))
		d.SetLocalDepth(j, d.LocalDepth(src))
	}
}

// CanShrink reports whether every in-use slot's local depth is strictly less
// than the global depth, i.e. no bucket actually needs the extra addressing
// bit the directory currently carries.
func (d *DirectoryPage) CanShrink() bool {
	if d.globalDepth == 0 {
		return false
	}
	for i := uint32(0); i < d.Size(); i++ {
		if d.LocalDepth(i) >= uint8(d.globalDepth) {
			return false
		}
	}
	return true
}

// DecrGlobalDepth halves the directory. Only called when CanShrink holds.
func (d *DirectoryPage) DecrGlobalDepth() {
	d.setGlobalDepth(d.globalDepth - 1)
}

// RetargetSlots rewrites every slot in the step-sized group starting at
// baseIdx to newLocalDepth, and repoints the slots shouldAssign accepts at
// pageID. Both a bucket split (which repoints half the old group at a new
// split image and bumps every slot's depth) and a bucket merge (which
// repoints the whole group at the surviving bucket and drops every slot's
// depth) are one pass of this shape over the directory; see hash_table.go's
// Insert/Remove. Grounded on bustub's
// DiskExtendibleHashTable::UpdateDirectoryMapping.
func (d *DirectoryPage) RetargetSlots(baseIdx, step uint32, newLocalDepth uint8, pageID int64, shouldAssign func(i uint32) bool) {
	for i := baseIdx; i < d.Size(); i += step {
		if shouldAssign(i) {
			d.SetBucketPageID(i, pageID)
		}
		d.SetLocalDepth(i, newLocalDepth)
	}
}
