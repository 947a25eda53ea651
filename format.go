package shalefs

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/shalefs/shalefs/block"
)

const (
	// SuperMagic identifies a superblock slot written by this filesystem.
	SuperMagic = 0x315346454c414853 // "SHALEFS1" as little-endian uint64

	// SuperBlkno is the block number of the first ring slot.
	SuperBlkno = 16

	// SuperSlots is the number of redundant slots in the superblock ring.
	//
	// A crash mid-write can destroy at most the one slot being written;
	// the previous sequence's slot stays intact and wins the next mount
	// scan. Two slots would suffice for that; a few extra keep older
	// generations around for forensics.
	SuperSlots = 4
)

// superSize is the encoded size of a Super record. The record is written
// into the first superSize bytes of a zero-padded block.
const superSize = 16 * 8

var (
	errBadMagic    = fmt.Errorf("bad superblock magic")
	errBadChecksum = fmt.Errorf("superblock checksum mismatch")
	errWrongSlot   = fmt.Errorf("superblock written for a different slot")
)

// Super is the filesystem's root metadata record, one fixed-layout block
// per ring slot. Field order and widths are the on-disk little-endian
// layout; the trailing checksum covers every preceding byte of the record.
type Super struct {
	Magic       uint64
	Seq         uint64 // monotonically increasing commit sequence
	Blkno       uint64 // the ring slot this record was written to
	Flags       uint64
	UUID        uuid.UUID
	TotalBlocks uint64
	FreeBlocks  uint64
	NextIno     uint64
	RootBlkno   uint64 // item btree root
	RootSeq     uint64
	RootHeight  uint8
	_           [7]byte
	_           [3]uint64
	Checksum    uint64
}

// FSID derives the reported filesystem id from the UUID: the xor of its
// first two and second two little-endian u32s. Unlike the per-write
// sequence state, it is constant for the life of the volume.
func (s *Super) FSID() uint64 {
	u := s.UUID
	lo := binary.LittleEndian.Uint32(u[0:4]) ^ binary.LittleEndian.Uint32(u[4:8])
	hi := binary.LittleEndian.Uint32(u[8:12]) ^ binary.LittleEndian.Uint32(u[12:16])
	return uint64(hi)<<32 | uint64(lo)
}

// encodeBlock fills buf (a full block) with the encoded record, zero
// padding, and a freshly computed checksum. s.Checksum is updated to match.
func (s *Super) encodeBlock(buf []byte) {
	if len(buf) != block.Size {
		panic("shalefs: superblock buffer must be one block")
	}
	clear(buf)

	n, err := binary.Encode(buf[:superSize], binary.LittleEndian, s)
	if err != nil {
		panic(err)
	}
	if n != superSize {
		panic("internal size mismatch")
	}

	s.Checksum = xxhash.Sum64(buf[:superSize-8])
	binary.LittleEndian.PutUint64(buf[superSize-8:superSize], s.Checksum)
}

// decodeSuperBlock decodes and validates one ring slot. A slot is valid
// only if the magic matches and the checksum verifies over the full record.
func decodeSuperBlock(buf []byte) (Super, error) {
	var s Super
	n, err := binary.Decode(buf[:superSize], binary.LittleEndian, &s)
	if err != nil {
		panic(err)
	}
	if n != superSize {
		panic("internal size mismatch")
	}

	if s.Magic != SuperMagic {
		return Super{}, fmt.Errorf("%w: %#x", errBadMagic, s.Magic)
	}
	if sum := xxhash.Sum64(buf[:superSize-8]); sum != s.Checksum {
		return Super{}, fmt.Errorf("%w: stored %#x, computed %#x", errBadChecksum, s.Checksum, sum)
	}
	return s, nil
}
