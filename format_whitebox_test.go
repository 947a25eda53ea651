package shalefs

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/shalefs/shalefs/block"
)

func testSuper(seq, blkno uint64) Super {
	return Super{
		Magic:       SuperMagic,
		Seq:         seq,
		Blkno:       blkno,
		UUID:        uuid.MustParse("01020304-0506-0708-090a-0b0c0d0e0f10"),
		TotalBlocks: 1000,
		FreeBlocks:  900,
		NextIno:     17,
		RootBlkno:   42,
		RootSeq:     seq,
		RootHeight:  3,
	}
}

func TestSuperEncodeDecode(t *testing.T) {
	s := testSuper(7, SuperBlkno+1)
	buf := make([]byte, block.Size)
	s.encodeBlock(buf)

	// encodeBlock backfills the checksum it wrote
	require.NotZero(t, s.Checksum)

	decoded, err := decodeSuperBlock(buf)
	require.NoError(t, err)
	require.Equal(t, s, decoded)

	// padding beyond the record is zero
	for _, b := range buf[superSize:] {
		require.Zero(t, b)
	}
}

func TestSuperChecksumDetectsCorruption(t *testing.T) {
	s := testSuper(7, SuperBlkno)
	buf := make([]byte, block.Size)
	s.encodeBlock(buf)

	// every byte of the record is covered
	for off := 0; off < superSize-8; off += 7 {
		buf[off] ^= 0x01
		_, err := decodeSuperBlock(buf)
		require.Error(t, err, "corruption at offset %d went undetected", off)
		buf[off] ^= 0x01
	}

	_, err := decodeSuperBlock(buf)
	require.NoError(t, err)
}

func TestSuperBadMagic(t *testing.T) {
	s := testSuper(1, SuperBlkno)
	s.Magic = 0x6261646d61676963
	buf := make([]byte, block.Size)
	s.encodeBlock(buf)

	_, err := decodeSuperBlock(buf)
	require.ErrorIs(t, err, errBadMagic)
}

func TestSuperZeroBlockInvalid(t *testing.T) {
	_, err := decodeSuperBlock(make([]byte, block.Size))
	require.ErrorIs(t, err, errBadMagic)
}

func TestFSID(t *testing.T) {
	s := testSuper(1, SuperBlkno)
	require.NotZero(t, s.FSID())

	// constant while the UUID is constant, regardless of write state
	s2 := s
	s2.Seq = 99
	s2.Blkno = SuperBlkno + 3
	require.Equal(t, s.FSID(), s2.FSID())

	// and different for a different UUID
	s2.UUID = uuid.MustParse("10000000-0000-0000-0000-000000000001")
	require.NotEqual(t, s.FSID(), s2.FSID())
}
