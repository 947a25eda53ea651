// Package keyvec implements segmented byte-vector keys.
//
// A Key is a fixed number of ordered byte segments compared as if their
// contents were concatenated into a single byte string. Index structures
// build keys out of parts that live in separate buffers (a type byte here,
// an inode number there, a name somewhere else) and need to order and
// range-compare them without gluing the parts together first.
//
// Ordering: byte-wise across segment boundaries; when one key is a strict
// prefix of the other, the shorter key sorts first.
//
// Keys come in two flavors. A view references buffers owned by someone else
// (see Make, Clone) and must not outlive them. An owned key (AllocKey,
// DupFlatten) carries its own storage. Release drops segment references
// either way and is a no-op on a null key.
//
// All operations are allocation-free except DupFlatten and AllocKey.
// Nothing here locks: callers own their Key instances and must not mutate
// one concurrently from two goroutines.
package keyvec

import (
	"bytes"
	"encoding/hex"
	"strings"
)

const (
	// NumSegments is the fixed segment arity. The richest index key has
	// four parts; unused trailing segments stay empty.
	NumSegments = 4

	// MaxKeySize bounds the total length of any key stored on disk.
	MaxKeySize = 1024
)

// maxSentinel is the key type byte greater than every key type in use.
const maxSentinel = 0xff

// Key is a fixed-arity sequence of segment views. The zero value is the
// null key: no segments, length 0, sorts before everything.
type Key struct {
	segs  [NumSegments][]byte
	owned bool
}

// Make builds a view key out of the given segments. The segments are
// referenced, not copied. Passing more than NumSegments segments is a
// programming error.
func Make(segs ...[]byte) Key {
	if len(segs) > NumSegments {
		panic("keyvec: too many segments")
	}
	var k Key
	copy(k.segs[:], segs)
	return k
}

// AllocKey returns an owned key with a single MaxKeySize segment,
// zero-filled. Callers narrow it with CopyTruncate and re-widen it with
// Reset.
func AllocKey() Key {
	return Key{
		segs:  [NumSegments][]byte{0: make([]byte, MaxKeySize)},
		owned: true,
	}
}

// Len returns the total key length, the sum of all segment lengths.
func (k *Key) Len() int {
	var n int
	for _, seg := range k.segs {
		n += len(seg)
	}
	return n
}

// IsNull reports whether k is the null key.
func (k *Key) IsNull() bool {
	return k.Len() == 0
}

// Owned reports whether k owns its segment storage.
func (k *Key) Owned() bool {
	return k.owned
}

// Release drops all segment references and returns k to the null state.
// Safe to call on an already-null key.
func (k *Key) Release() {
	*k = Key{}
}

// Reset re-widens the first segment of a key built by AllocKey back to
// MaxKeySize, undoing any earlier CopyTruncate.
func (k *Key) Reset() {
	if k.segs[0] == nil {
		return
	}
	k.segs[0] = k.segs[0][0:MaxKeySize:MaxKeySize]
	for i := 1; i < NumSegments; i++ {
		k.segs[i] = nil
	}
}

// SetMax collapses k to the single-byte key that sorts after every key any
// index can produce. k's first segment must have capacity for one byte.
func (k *Key) SetMax() {
	seg := k.segs[0][:1]
	seg[0] = maxSentinel
	owned := k.owned
	*k = Key{segs: [NumSegments][]byte{0: seg}, owned: owned}
}

// String formats the key as hex segments joined with '|'.
func (k *Key) String() string {
	var buf strings.Builder
	for i, seg := range k.segs {
		if i > 0 && seg == nil {
			break
		}
		if i > 0 {
			buf.WriteByte('|')
		}
		buf.WriteString(hex.EncodeToString(seg))
	}
	return buf.String()
}

// iter is a cursor over a key's concatenated bytes. It tracks the current
// segment, the offset into it, and the total bytes remaining, and steps
// across segment boundaries as offsets exhaust.
type iter struct {
	k     *Key
	seg   int
	off   int
	count int
}

func (it *iter) init(k *Key) {
	it.k = k
	it.seg = 0
	it.off = 0
	it.count = k.Len()
	it.advance(0)
}

func (it *iter) advance(n int) {
	it.off += n
	it.count -= n
	for it.seg < NumSegments && it.off >= len(it.k.segs[it.seg]) {
		it.off -= len(it.k.segs[it.seg])
		it.seg++
	}
}

// contig returns how many contiguous bytes remain in the current segment.
func (it *iter) contig() int {
	if it.seg < NumSegments {
		return len(it.k.segs[it.seg]) - it.off
	}
	return 0
}

func (it *iter) chunk(n int) []byte {
	return it.k.segs[it.seg][it.off : it.off+n]
}

// Compare orders a and b by their concatenated bytes. If one key runs out
// before a mismatch, the shorter key sorts first. Never allocates.
func Compare(a, b *Key) int {
	var ai, bi iter
	ai.init(a)
	bi.init(b)

	for {
		n := min(ai.contig(), bi.contig())
		if n == 0 {
			break
		}
		if c := bytes.Compare(ai.chunk(n), bi.chunk(n)); c != 0 {
			return c
		}
		ai.advance(n)
		bi.advance(n)
	}

	switch {
	case ai.contig() > 0:
		return 1
	case bi.contig() > 0:
		return -1
	default:
		return 0
	}
}

// RangeOrder is the relative position of one key range against another.
type RangeOrder int

const (
	RangeLeft    RangeOrder = -1 // first range entirely before the second
	RangeOverlap RangeOrder = 0  // ranges intersect
	RangeRight   RangeOrder = 1  // first range entirely after the second
)

// CompareRanges positions the closed range [aLo, aHi] against [bLo, bHi].
func CompareRanges(aLo, aHi, bLo, bHi *Key) RangeOrder {
	if Compare(aHi, bLo) < 0 {
		return RangeLeft
	}
	if Compare(aLo, bHi) > 0 {
		return RangeRight
	}
	return RangeOverlap
}

// Copy copies min(dst length, src length) bytes from src's segments into
// dst's segment buffers, crossing segment boundaries on both sides. Neither
// key's segment descriptors change; only the bytes dst points at do.
// Returns the number of bytes copied.
func Copy(dst, src *Key) int {
	var di, si iter
	di.init(dst)
	si.init(src)

	var copied int
	for {
		n := min(di.contig(), si.contig())
		if n == 0 {
			break
		}
		copy(di.chunk(n), si.chunk(n))
		copied += n
		di.advance(n)
		si.advance(n)
	}
	return copied
}

// CopyTruncate copies like Copy and then, if src held fewer bytes than dst
// had room for, narrows dst's segment lengths to cover exactly the copied
// bytes. Segments past the copied amount end up with length 0; no segment's
// base changes.
func CopyTruncate(dst, src *Key) int {
	copied := Copy(dst, src)

	if copied < dst.Len() {
		rem := copied
		for i := range dst.segs {
			n := min(len(dst.segs[i]), rem)
			if dst.segs[i] != nil {
				dst.segs[i] = dst.segs[i][:n]
			}
			rem -= n
		}
	}
	return copied
}

// DupFlatten returns an owned copy of src flattened into a single
// freshly-allocated segment.
func DupFlatten(src *Key) Key {
	dst := Key{
		segs:  [NumSegments][]byte{0: make([]byte, src.Len())},
		owned: true,
	}
	Copy(&dst, src)
	return dst
}

// Clone makes dst a view of src's segments. No bytes are copied and no
// ownership is taken: src's buffers must outlive dst's use, and releasing
// dst never touches them.
func Clone(dst, src *Key) {
	dst.segs = src.segs
	dst.owned = false
}

// CloneIfLess clones src into dst if dst is the null key or src sorts
// strictly before dst. Tracks a running minimum across a scan without
// allocating.
func CloneIfLess(dst, src *Key) {
	if dst.Len() == 0 || Compare(src, dst) < 0 {
		Clone(dst, src)
	}
}

// Swap exchanges the two keys' descriptors.
func Swap(a, b *Key) {
	*a, *b = *b, *a
}

// IncBE increments the key treated as one big-endian unsigned integer,
// carrying leftward across byte and segment boundaries. An all-0xff key
// wraps silently to all zeros.
func (k *Key) IncBE() {
	for i := NumSegments - 1; i >= 0; i-- {
		seg := k.segs[i]
		for b := len(seg) - 1; b >= 0; b-- {
			seg[b]++
			if seg[b] != 0 {
				return
			}
		}
	}
}

// DecBE decrements the key treated as one big-endian unsigned integer,
// borrowing leftward across byte and segment boundaries. An all-zero key
// wraps silently to all 0xff.
func (k *Key) DecBE() {
	for i := NumSegments - 1; i >= 0; i-- {
		seg := k.segs[i]
		for b := len(seg) - 1; b >= 0; b-- {
			seg[b]--
			if seg[b] != 0xff {
				return
			}
		}
	}
}
