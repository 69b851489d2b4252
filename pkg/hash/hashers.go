package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash"
	"github.com/spaolacci/murmur3"
)

// HashFunc computes the 32-bit hash of a key. The top bits of the result
// index a header's directory slots; the low `global_depth` bits of the
// chosen directory index its bucket slots (see DirectoryPage.HashToBucketIndex
// and HeaderPage.HashToDirectoryIndex).
type HashFunc[K any] func(K) uint32

// Int64Hasher builds a HashFunc[int64] from a []byte hasher, keeping 32 bits
// of the hasher's 64-bit sum. This matches the varint-then-hash convention
// the original single-level hash table used.
func Int64Hasher(hasher func([]byte) uint64) HashFunc[int64] {
	return func(key int64) uint32 {
		buf := make([]byte, binary.MaxVarintLen64)
		binary.PutVarint(buf, key)
		return uint32(hasher(buf))
	}
}

// XxHasher is the default HashFunc[int64], backing HashIndex.
var XxHasher = Int64Hasher(xxhash.Sum64)

// MurmurHasher is an alternate HashFunc[int64] that OpenTableWithHasher can
// be configured with, proving the hash function is truly a construction-time
// parameter and not hardcoded into the table core.
var MurmurHasher = Int64Hasher(murmur3.Sum64)

// Hasher computes the hash of key and keeps only its low `depth` bits - the
// directory-level bucket index a key occupies once a directory has reached
// that global depth. Exposed for tests that need to predict which bucket a
// key will land in without reaching into table internals.
func Hasher(key int64, depth int64) int64 {
	return int64(XxHasher(key) & depthMask(uint32(depth)))
}

// depthMask returns (1<<depth)-1, the mask that keeps a hash's low `depth` bits.
func depthMask(depth uint32) uint32 {
	if depth >= 32 {
		return 0xFFFFFFFF
	}
	return (uint32(1) << depth) - 1
}
