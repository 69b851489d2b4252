package hash

import (
	"hashdb/pkg/pager"
)

// DiskExtendibleHashTable is the three-level on-disk extendible hash index:
// a header page fans out to directory pages by the top bits of a key's
// hash, each directory page fans out to bucket pages by its low
// global-depth bits, and buckets hold the actual (K,V) entries. Growth is
// local - only the directory (and bucket) actually receiving an overflowing
// insert doubles, never the whole table.
type DiskExtendibleHashTable[K any, V any] struct {
	pager *pager.Pager

	headerPageID int64

	hashFn HashFunc[K]
	cmp    Comparator[K]

	keyCodec Codec[K]
	valCodec Codec[V]

	headerMaxDepth    uint32
	directoryMaxDepth uint32
	bucketMaxSize     uint32
}

// NewDiskExtendibleHashTable allocates a brand-new header page and returns a
// table backed by it. headerMaxDepth/directoryMaxDepth/bucketMaxSize bound
// how large each level's fan-out can grow; see constants.go's *Capacity
// helpers for the per-page ceilings these must respect.
func NewDiskExtendibleHashTable[K any, V any](
	p *pager.Pager,
	hashFn HashFunc[K],
	cmp Comparator[K],
	keyCodec Codec[K],
	valCodec Codec[V],
	headerMaxDepth, directoryMaxDepth, bucketMaxSize uint32,
) (*DiskExtendibleHashTable[K, V], error) {
	guard, id := p.NewPageGuarded()
	if guard.IsEmpty() {
		return nil, pager.ErrRanOutOfPages
	}
	wg := guard.UpgradeWrite()
	defer wg.Drop()
	AsHeaderPage(wg.Page()).Init(headerMaxDepth)

	return &DiskExtendibleHashTable[K, V]{
		pager:             p,
		headerPageID:      id,
		hashFn:            hashFn,
		cmp:               cmp,
		keyCodec:          keyCodec,
		valCodec:          valCodec,
		headerMaxDepth:    headerMaxDepth,
		directoryMaxDepth: directoryMaxDepth,
		bucketMaxSize:     bucketMaxSize,
	}, nil
}

// OpenDiskExtendibleHashTable builds a table view over an already-existing
// header page, for re-opening a database file across process restarts.
func OpenDiskExtendibleHashTable[K any, V any](
	p *pager.Pager,
	headerPageID int64,
	hashFn HashFunc[K],
	cmp Comparator[K],
	keyCodec Codec[K],
	valCodec Codec[V],
	directoryMaxDepth, bucketMaxSize uint32,
) (*DiskExtendibleHashTable[K, V], error) {
	rg, err := p.FetchPageRead(headerPageID)
	if err != nil {
		return nil, err
	}
	headerMaxDepth := AsHeaderPage(rg.Page()).MaxDepth()
	rg.Drop()

	return &DiskExtendibleHashTable[K, V]{
		pager:             p,
		headerPageID:      headerPageID,
		hashFn:            hashFn,
		cmp:               cmp,
		keyCodec:          keyCodec,
		valCodec:          valCodec,
		headerMaxDepth:    headerMaxDepth,
		directoryMaxDepth: directoryMaxDepth,
		bucketMaxSize:     bucketMaxSize,
	}, nil
}

// HeaderPageID returns the page number of the table's root header page.
func (t *DiskExtendibleHashTable[K, V]) HeaderPageID() int64 {
	return t.headerPageID
}

func (t *DiskExtendibleHashTable[K, V]) hash(key K) uint32 {
	return t.hashFn(key)
}

func (t *DiskExtendibleHashTable[K, V]) directory(page *pager.Page) *DirectoryPage {
	return AsDirectoryPage(page, t.directoryMaxDepth)
}

func (t *DiskExtendibleHashTable[K, V]) bucket(page *pager.Page) *BucketPage[K, V] {
	return AsBucketPage[K, V](page, t.bucketMaxSize, t.keyCodec, t.valCodec, t.cmp)
}

// Get looks up key, returning its value and whether it was found. It walks
// header -> directory -> bucket, releasing each read latch before acquiring
// the next (the "release-then-acquire" descent): at no point does Get hold
// more than one page latched, so a concurrent Insert/Remove elsewhere in the
// table can never deadlock against it.
func (t *DiskExtendibleHashTable[K, V]) Get(key K) (val V, found bool) {
	hash := t.hash(key)

	hg, err := t.pager.FetchPageRead(t.headerPageID)
	if err != nil {
		var zero V
		return zero, false
	}
	dIdx := AsHeaderPage(hg.Page()).HashToDirectoryIndex(hash)
	dPageID := AsHeaderPage(hg.Page()).GetDirectoryPageID(dIdx)
	hg.Drop()
	if dPageID == InvalidPageID {
		var zero V
		return zero, false
	}

	dg, err := t.pager.FetchPageRead(dPageID)
	if err != nil {
		var zero V
		return zero, false
	}
	bIdx := t.directory(dg.Page()).HashToBucketIndex(hash)
	bPageID := t.directory(dg.Page()).GetBucketPageID(bIdx)
	dg.Drop()
	if bPageID == InvalidPageID {
		var zero V
		return zero, false
	}

	bg, err := t.pager.FetchPageRead(bPageID)
	if err != nil {
		var zero V
		return zero, false
	}
	defer bg.Drop()
	return t.bucket(bg.Page()).Lookup(key)
}

// Update overwrites the value stored for key in place. Like Get, it only
// ever needs one page write-latched at a time (the target bucket) since an
// update never changes a bucket's size or a directory's shape. Returns
// false if key isn't present.
func (t *DiskExtendibleHashTable[K, V]) Update(key K, value V) (bool, error) {
	hash := t.hash(key)

	hg, err := t.pager.FetchPageRead(t.headerPageID)
	if err != nil {
		return false, err
	}
	dIdx := AsHeaderPage(hg.Page()).HashToDirectoryIndex(hash)
	dPageID := AsHeaderPage(hg.Page()).GetDirectoryPageID(dIdx)
	hg.Drop()
	if dPageID == InvalidPageID {
		return false, nil
	}

	dg, err := t.pager.FetchPageRead(dPageID)
	if err != nil {
		return false, err
	}
	bIdx := t.directory(dg.Page()).HashToBucketIndex(hash)
	bPageID := t.directory(dg.Page()).GetBucketPageID(bIdx)
	dg.Drop()
	if bPageID == InvalidPageID {
		return false, nil
	}

	bwg, err := t.pager.FetchPageWrite(bPageID)
	if err != nil {
		return false, err
	}
	defer bwg.Drop()
	return t.bucket(bwg.Page()).UpdateValue(key, value), nil
}

// Insert adds (key, value) to the table, splitting buckets (and growing
// their directory, up to directoryMaxDepth) as many times as needed to make
// room. Returns false if key is already present, or if the table is already
// at capacity (directory at directoryMaxDepth and its bucket still full
// after a split attempt).
//
// Insert holds the directory's write latch for the table's entire
// descent/split sequence: unlike Get, a split mutates the directory's
// bucket-id/local-depth slots, so no other operation can be allowed to
// observe it half-updated.
func (t *DiskExtendibleHashTable[K, V]) Insert(key K, value V) (bool, error) {
	hash := t.hash(key)

	hwg, err := t.pager.FetchPageWrite(t.headerPageID)
	if err != nil {
		return false, err
	}
	header := AsHeaderPage(hwg.Page())
	dIdx := header.HashToDirectoryIndex(hash)
	dPageID := header.GetDirectoryPageID(dIdx)

	if dPageID == InvalidPageID {
		ok, err := t.insertToNewDirectory(header, dIdx, key, value)
		hwg.Drop()
		return ok, err
	}
	hwg.Drop()

	dwg, err := t.pager.FetchPageWrite(dPageID)
	if err != nil {
		return false, err
	}
	defer dwg.Drop()
	directory := t.directory(dwg.Page())

	bIdx := directory.HashToBucketIndex(hash)
	bPageID := directory.GetBucketPageID(bIdx)
	if bPageID == InvalidPageID {
		return t.insertToNewBucket(directory, bIdx, key, value)
	}

	bwg, err := t.pager.FetchPageWrite(bPageID)
	if err != nil {
		return false, err
	}
	bucket := t.bucket(bwg.Page())

	if _, found := bucket.Lookup(key); found {
		bwg.Drop()
		return false, nil
	}
	if bucket.Insert(key, value) {
		bwg.Drop()
		return true, nil
	}

	// Bucket is full: split, possibly repeatedly, until key finds room.
	for {
		if directory.GlobalDepth() == uint32(directory.LocalDepth(bIdx)) {
			if directory.GlobalDepth() >= t.directoryMaxDepth {
				bwg.Drop()
				return false, nil
			}
			directory.IncrGlobalDepth()
		}

		imgGuard, imgPageID := t.pager.NewPageGuarded()
		if imgGuard.IsEmpty() {
			bwg.Drop()
			return false, pager.ErrRanOutOfPages
		}
		imgWG := imgGuard.UpgradeWrite()
		imgBucket := t.bucket(imgWG.Page())
		imgBucket.Init(t.bucketMaxSize)

		localDepth := uint32(directory.LocalDepth(bIdx))
		localDepthMask := directory.LocalDepthMask(bIdx)
		highBit := uint32(1) << localDepth
		imgIdx := directory.GetSplitImageIndex(bIdx)
		directory.RetargetSlots(bIdx&localDepthMask, highBit, uint8(localDepth+1), imgPageID,
			func(i uint32) bool { return i&highBit == imgIdx&highBit })

		// Mask-based migration: a key's membership in the old bucket vs.
		// its new split image is decided directly by the one hash bit the
		// split just made significant (highBit), not by re-consulting the
		// directory per entry - the directory was only just retargeted
		// above for this exact purpose.
		entries := bucket.All()
		bucket.Clear()
		for _, e := range entries {
			if t.hash(e.Key)&highBit == imgIdx&highBit {
				imgBucket.Insert(e.Key, e.Value)
			} else {
				bucket.Insert(e.Key, e.Value)
			}
		}

		imgWG.Drop()
		bwg.Drop()

		bIdx = directory.HashToBucketIndex(hash)
		bPageID = directory.GetBucketPageID(bIdx)
		bwg, err = t.pager.FetchPageWrite(bPageID)
		if err != nil {
			return false, err
		}
		bucket = t.bucket(bwg.Page())
		if bucket.Insert(key, value) {
			bwg.Drop()
			return true, nil
		}
		if !bucket.IsFull() {
			// Key still doesn't fit (shouldn't happen for a non-full
			// bucket unless key is somehow a duplicate snuck in by a
			// racing writer outside the directory's latch - but Insert
			// holds that latch for this whole sequence, so this is
			// unreachable in practice).
			bwg.Drop()
			return false, nil
		}
	}
}

func (t *DiskExtendibleHashTable[K, V]) insertToNewDirectory(header *HeaderPage, dIdx uint32, key K, value V) (bool, error) {
	guard, dPageID := t.pager.NewPageGuarded()
	if guard.IsEmpty() {
		return false, pager.ErrRanOutOfPages
	}
	wg := guard.UpgradeWrite()
	directory := t.directory(wg.Page())
	directory.Init(t.directoryMaxDepth)

	bIdx := t.hash(key) & directory.GlobalDepthMask()
	ok, err := t.insertToNewBucket(directory, bIdx, key, value)
	wg.Drop()
	if err != nil || !ok {
		_ = t.pager.DeletePage(dPageID)
		return false, err
	}
	header.SetDirectoryPageID(dIdx, dPageID)
	return true, nil
}

func (t *DiskExtendibleHashTable[K, V]) insertToNewBucket(directory *DirectoryPage, bIdx uint32, key K, value V) (bool, error) {
	guard, bPageID := t.pager.NewPageGuarded()
	if guard.IsEmpty() {
		return false, pager.ErrRanOutOfPages
	}
	wg := guard.UpgradeWrite()
	bucket := t.bucket(wg.Page())
	bucket.Init(t.bucketMaxSize)
	bucket.Insert(key, value)
	wg.Drop()

	directory.SetBucketPageID(bIdx, bPageID)
	directory.SetLocalDepth(bIdx, 0)
	return true, nil
}

// Remove deletes key from the table, returning whether it was present.
// Whenever removal leaves a bucket empty, Remove merges it with its split
// image repeatedly (as long as the image has a matching local depth and at
// least one of the pair is empty), then shrinks the directory as far as
// CanShrink allows. The directory's write latch is held across this entire
// merge/shrink sequence for the same reason Insert holds it across split.
func (t *DiskExtendibleHashTable[K, V]) Remove(key K) (bool, error) {
	hash := t.hash(key)

	hg, err := t.pager.FetchPageRead(t.headerPageID)
	if err != nil {
		return false, err
	}
	header := AsHeaderPage(hg.Page())
	dIdx := header.HashToDirectoryIndex(hash)
	dPageID := header.GetDirectoryPageID(dIdx)
	hg.Drop()
	if dPageID == InvalidPageID {
		return false, nil
	}

	dwg, err := t.pager.FetchPageWrite(dPageID)
	if err != nil {
		return false, err
	}
	defer dwg.Drop()
	directory := t.directory(dwg.Page())

	bIdx := directory.HashToBucketIndex(hash)
	bPageID := directory.GetBucketPageID(bIdx)
	if bPageID == InvalidPageID {
		return false, nil
	}

	bwg, err := t.pager.FetchPageWrite(bPageID)
	if err != nil {
		return false, err
	}
	bucket := t.bucket(bwg.Page())

	if !bucket.Remove(key) {
		bwg.Drop()
		return false, nil
	}

	if bucket.IsEmpty() {
		for {
			if directory.LocalDepth(bIdx) == 0 {
				break
			}
			imgIdx := bIdx ^ (uint32(1) << (directory.LocalDepth(bIdx) - 1))
			if directory.LocalDepth(bIdx) != directory.LocalDepth(imgIdx) {
				break
			}
			imgPageID := directory.GetBucketPageID(imgIdx)
			imgWG, err := t.pager.FetchPageWrite(imgPageID)
			if err != nil {
				bwg.Drop()
				return true, err
			}
			imgBucket := t.bucket(imgWG.Page())
			if !imgBucket.IsEmpty() && !bucket.IsEmpty() {
				imgWG.Drop()
				break
			}
			// b_page always survives the merge by page id; its sibling's
			// (possibly zero) entries migrate in, then the sibling page
			// is freed and every slot pointing at either one retargets
			// to the survivor at one less local depth.
			for _, e := range imgBucket.All() {
				bucket.Insert(e.Key, e.Value)
			}
			imgBucket.Clear()
			imgWG.Drop()
			_ = t.pager.DeletePage(imgPageID)

			newLocalDepth := directory.LocalDepth(bIdx) - 1
			newLocalDepthMask := directory.LocalDepthMask(bIdx) >> 1
			newHighBit := uint32(1) << newLocalDepth
			directory.RetargetSlots(bIdx&newLocalDepthMask, newHighBit, newLocalDepth, bPageID,
				func(i uint32) bool { return true })
		}
		for directory.CanShrink() {
			directory.DecrGlobalDepth()
		}
	}

	bwg.Drop()
	return true, nil
}

// AllEntries returns every (key, value) pair in the table, walking header ->
// directories -> buckets and visiting each distinct page exactly once even
// though several directory/bucket slots can point at the same page. Used by
// Select, Print, and by HashCursor's snapshot-based iteration.
func (t *DiskExtendibleHashTable[K, V]) AllEntries() ([]Entry[K, V], error) {
	var all []Entry[K, V]

	hg, err := t.pager.FetchPageRead(t.headerPageID)
	if err != nil {
		return nil, err
	}
	header := AsHeaderPage(hg.Page())
	directoryIDs := make([]int64, 0, header.Size())
	for i := uint32(0); i < header.Size(); i++ {
		if id := header.GetDirectoryPageID(i); id != InvalidPageID {
			directoryIDs = append(directoryIDs, id)
		}
	}
	hg.Drop()

	seenDirectories := make(map[int64]bool)
	for _, dID := range directoryIDs {
		if seenDirectories[dID] {
			continue
		}
		seenDirectories[dID] = true

		dg, err := t.pager.FetchPageRead(dID)
		if err != nil {
			return nil, err
		}
		directory := t.directory(dg.Page())
		bucketIDs := make([]int64, 0, directory.Size())
		for i := uint32(0); i < directory.Size(); i++ {
			if id := directory.GetBucketPageID(i); id != InvalidPageID {
				bucketIDs = append(bucketIDs, id)
			}
		}
		dg.Drop()

		seenBuckets := make(map[int64]bool)
		for _, bID := range bucketIDs {
			if seenBuckets[bID] {
				continue
			}
			seenBuckets[bID] = true

			bg, err := t.pager.FetchPageRead(bID)
			if err != nil {
				return nil, err
			}
			all = append(all, t.bucket(bg.Page()).All()...)
			bg.Drop()
		}
	}

	return all, nil
}
