package hash

import (
	"encoding/binary"

	"hashdb/pkg/pager"
)

// HeaderPage is the root of the index: a fixed-size array of directory page
// ids selected by the top bits of a key's hash. It's allocated once at
// construction and its slot count never changes afterward, though individual
// slots go from InvalidPageID to a real directory page id as directories are
// lazily allocated.
type HeaderPage struct {
	page     *pager.Page
	maxDepth uint32
}

// AsHeaderPage constructs a HeaderPage view over an already-initialized page.
func AsHeaderPage(page *pager.Page) *HeaderPage {
	maxDepth, _ := binary.Varint(page.GetData()[headerMaxDepthOffset : headerMaxDepthOffset+slotWidth])
	return &HeaderPage{page: page, maxDepth: uint32(maxDepth)}
}

// Init zeroes out a freshly allocated page into an empty header with the
// given max depth, marking every directory slot invalid.
func (h *HeaderPage) Init(maxDepth uint32) {
	h.maxDepth = maxDepth
	buf := make([]byte, slotWidth)
	binary.PutVarint(buf, int64(maxDepth))
	h.page.Update(buf, headerMaxDepthOffset, slotWidth)
	for i := uint32(0); i < h.Size(); i++ {
		h.SetDirectoryPageID(i, InvalidPageID)
	}
}

// MaxDepth returns the number of top hash bits used to index this header.
func (h *HeaderPage) MaxDepth() uint32 {
	return h.maxDepth
}

// Size returns the number of directory slots, 1<<MaxDepth.
func (h *HeaderPage) Size() uint32 {
	return uint32(1) << h.maxDepth
}

// HashToDirectoryIndex returns the directory slot a 32-bit hash selects: its
// top MaxDepth bits.
func (h *HeaderPage) HashToDirectoryIndex(hash uint32) uint32 {
	return hash >> (32 - h.maxDepth)
}

func (h *HeaderPage) slotOffset(i uint32) int64 {
	return headerDirectoryIdsOffset + int64(i)*slotWidth
}

// GetDirectoryPageID returns the directory page id at slot i, or InvalidPageID.
func (h *HeaderPage) GetDirectoryPageID(i uint32) int64 {
	off := h.slotOffset(i)
	id, _ := binary.Varint(h.page.GetData()[off : off+slotWidth])
	return id
}

// SetDirectoryPageID points slot i at the given directory page id.
func (h *HeaderPage) SetDirectoryPageID(i uint32, id int64) {
	buf := make([]byte, slotWidth)
	binary.PutVarint(buf, id)
	h.page.Update(buf, h.slotOffset(i), slotWidth)
}
