package hash

import "encoding/binary"

// Codec marshals and unmarshals values of type T into fixed-width byte
// cells, so that a BucketPage can lay out an array of them at a constant
// stride without ever needing to know what T actually is.
type Codec[T any] struct {
	// Width is the number of bytes each marshaled value occupies.
	Width int64
	// Marshal encodes a value into a byte slice of exactly Width bytes.
	Marshal func(T) []byte
	// Unmarshal decodes a value from a byte slice of exactly Width bytes.
	Unmarshal func([]byte) T
}

// Int64Codec is the fixed-width varint codec used by HashIndex, the same
// encoding the original HashBucket used for its (key, value) entries.
var Int64Codec = Codec[int64]{
	Width: slotWidth,
	Marshal: func(v int64) []byte {
		buf := make([]byte, slotWidth)
		binary.PutVarint(buf, v)
		return buf
	},
	Unmarshal: func(b []byte) int64 {
		v, _ := binary.Varint(b)
		return v
	},
}

// Comparator orders two keys the C++-template way: negative if a < b, zero if
// equal, positive if a > b. Bucket lookups only ever need the zero case;
// the three-way shape is kept because it's what a key's natural ordering
// looks like, and it costs nothing extra to express.
type Comparator[K any] func(a, b K) int

// Int64Comparator orders int64 keys numerically.
func Int64Comparator(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
