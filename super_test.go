package shalefs_test

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/shalefs/shalefs"
	"github.com/shalefs/shalefs/block"
)

const testVolBlocks = 64

func newVolume(t *testing.T) (*block.MemDevice, shalefs.Super) {
	t.Helper()
	dev := block.NewMemDevice(testVolBlocks)
	s, err := shalefs.Format(dev, shalefs.FormatOptions{})
	require.NoError(t, err)
	return dev, s
}

func mount(t *testing.T, dev block.Device) *shalefs.Ring {
	t.Helper()
	ring, err := shalefs.Mount(dev, shalefs.Options{Logger: testLogger(t), Verbose: true})
	require.NoError(t, err)
	return ring
}

func commit(t *testing.T, ring *shalefs.Ring) {
	t.Helper()
	ring.BeginCommit()
	require.NoError(t, ring.Publish())
}

func TestFormatMountRoundTrip(t *testing.T) {
	dev, formatted := newVolume(t)
	ring := mount(t, dev)

	stable := ring.StableSnapshot()
	require.Equal(t, uint64(1), stable.Seq)
	require.Equal(t, uint64(shalefs.SuperBlkno), stable.Blkno)
	require.Equal(t, formatted.UUID, stable.UUID)
	require.Equal(t, uint64(testVolBlocks), stable.TotalBlocks)
	require.Equal(t, formatted.FSID(), stable.FSID())
}

func TestFormatTooSmall(t *testing.T) {
	dev := block.NewMemDevice(shalefs.SuperBlkno + shalefs.SuperSlots)
	_, err := shalefs.Format(dev, shalefs.FormatOptions{})
	require.Error(t, err)
}

func TestMountEmptyDevice(t *testing.T) {
	dev := block.NewMemDevice(testVolBlocks)
	_, err := shalefs.Mount(dev, shalefs.Options{Logger: testLogger(t)})
	require.ErrorIs(t, err, shalefs.ErrCorruptMetadata)
}

func TestMountSelectsHighestSeq(t *testing.T) {
	dev, _ := newVolume(t)
	ring := mount(t, dev)

	// leave seq 1 in slot 0, seq 2 in slot 1, seq 3 in slot 2;
	// slot 3 has never been written
	commit(t, ring)
	commit(t, ring)

	ring = mount(t, dev)
	stable := ring.StableSnapshot()
	require.Equal(t, uint64(3), stable.Seq)
	require.Equal(t, uint64(shalefs.SuperBlkno+2), stable.Blkno)
}

func TestCommitAdvancesSeqAndSlot(t *testing.T) {
	dev, _ := newVolume(t)
	ring := mount(t, dev)

	prev := ring.StableSnapshot()
	commit(t, ring)

	stable := ring.StableSnapshot()
	require.Equal(t, prev.Seq+1, stable.Seq)
	require.Equal(t, prev.Blkno+1, stable.Blkno)
}

func TestRingWrapsAround(t *testing.T) {
	dev, _ := newVolume(t)
	ring := mount(t, dev)

	// more commits than slots: the ring must wrap and a remount must
	// still find the newest record
	for i := 0; i < shalefs.SuperSlots+2; i++ {
		commit(t, ring)
	}

	stable := ring.StableSnapshot()
	require.Equal(t, uint64(1+shalefs.SuperSlots+2), stable.Seq)
	wantSlot := uint64(shalefs.SuperBlkno + (shalefs.SuperSlots+2)%shalefs.SuperSlots)
	require.Equal(t, wantSlot, stable.Blkno)

	ring = mount(t, dev)
	require.Equal(t, stable, ring.StableSnapshot())
}

func TestMountFallsBackPastCorruptSlot(t *testing.T) {
	dev, _ := newVolume(t)
	ring := mount(t, dev)
	commit(t, ring) // seq 2 in slot 1
	commit(t, ring) // seq 3 in slot 2

	// a crash mid-write trashes the newest slot; the previous sequence
	// must win the next scan
	dev.Corrupt(shalefs.SuperBlkno+2, 50)

	ring = mount(t, dev)
	stable := ring.StableSnapshot()
	require.Equal(t, uint64(2), stable.Seq)
	require.Equal(t, uint64(shalefs.SuperBlkno+1), stable.Blkno)
}

func TestPublishWriteFailure(t *testing.T) {
	dev, _ := newVolume(t)
	ring := mount(t, dev)
	before := ring.StableSnapshot()

	boom := errors.New("dead disk")
	dev.FailNextWrite = boom

	ring.BeginCommit()
	err := ring.Publish()
	require.ErrorIs(t, err, shalefs.ErrCommitFailed)
	require.ErrorIs(t, err, boom)

	// stable is untouched, the working record stays advanced
	require.Equal(t, before, ring.StableSnapshot())
	require.Equal(t, before.Seq+1, ring.Working().Seq)

	// the retry goes through BeginCommit and targets a fresh slot
	commit(t, ring)
	stable := ring.StableSnapshot()
	require.Equal(t, before.Seq+2, stable.Seq)
	require.Equal(t, before.Blkno+2, stable.Blkno)
}

func TestPublishFlushFailure(t *testing.T) {
	dev, _ := newVolume(t)
	ring := mount(t, dev)
	before := ring.StableSnapshot()

	dev.FailNextFlush = errors.New("cache lost")

	ring.BeginCommit()
	require.ErrorIs(t, ring.Publish(), shalefs.ErrCommitFailed)
	require.Equal(t, before, ring.StableSnapshot())
}

func TestWorkingMutationSurvivesRemount(t *testing.T) {
	dev, _ := newVolume(t)
	ring := mount(t, dev)

	ring.BeginCommit()
	w := ring.Working()
	w.RootBlkno = 123
	w.RootSeq = w.Seq
	w.RootHeight = 2
	w.FreeBlocks -= 4
	require.NoError(t, ring.Publish())

	ring = mount(t, dev)
	stable := ring.StableSnapshot()
	require.Equal(t, uint64(123), stable.RootBlkno)
	require.Equal(t, stable.Seq, stable.RootSeq)
	require.Equal(t, uint8(2), stable.RootHeight)
	require.Equal(t, uint64(testVolBlocks-shalefs.SuperBlkno-shalefs.SuperSlots-4), stable.FreeBlocks)
}

func TestWorkingMutationInvisibleBeforePublish(t *testing.T) {
	dev, _ := newVolume(t)
	ring := mount(t, dev)

	ring.BeginCommit()
	ring.Working().RootBlkno = 999

	stable := ring.StableSnapshot()
	require.Zero(t, stable.RootBlkno)
	require.Equal(t, uint64(1), stable.Seq)
}

func TestMountExpectedFSID(t *testing.T) {
	id := uuid.MustParse("5cf1a96e-2b3e-4d07-bd11-93e6e4c3a001")
	dev := block.NewMemDevice(testVolBlocks)
	s, err := shalefs.Format(dev, shalefs.FormatOptions{UUID: id})
	require.NoError(t, err)

	ring, err := shalefs.Mount(dev, shalefs.Options{Logger: testLogger(t), ExpectedFSID: s.FSID()})
	require.NoError(t, err)
	require.Equal(t, id, ring.StableSnapshot().UUID)

	_, err = shalefs.Mount(dev, shalefs.Options{Logger: testLogger(t), ExpectedFSID: s.FSID() + 1})
	require.ErrorIs(t, err, shalefs.ErrCorruptMetadata)
}

func TestFormatClearsPreviousLife(t *testing.T) {
	dev, _ := newVolume(t)
	ring := mount(t, dev)
	for i := 0; i < shalefs.SuperSlots; i++ {
		commit(t, ring) // fill every slot with high sequence numbers
	}

	// reformat: the old generation must not win the scan
	reformatted, err := shalefs.Format(dev, shalefs.FormatOptions{})
	require.NoError(t, err)

	ring = mount(t, dev)
	stable := ring.StableSnapshot()
	require.Equal(t, uint64(1), stable.Seq)
	require.Equal(t, reformatted.UUID, stable.UUID)
}

func testLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(&logWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type logWriter struct {
	t testing.TB
}

func (w *logWriter) Write(b []byte) (int, error) {
	w.t.Logf("%s", b)
	return len(b), nil
}
