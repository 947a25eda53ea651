package shalefs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/shalefs/shalefs/block"
)

var (
	// ErrCorruptMetadata means no ring slot held a valid superblock at
	// mount. There is no recovery path; the volume is unusable.
	ErrCorruptMetadata = fmt.Errorf("no valid superblock in any ring slot")

	// ErrCommitFailed means the durable write of an advanced superblock
	// could not be confirmed. The caller must treat the volume as
	// compromised (force read-only or unmount).
	ErrCommitFailed = fmt.Errorf("superblock commit failed")
)

type Options struct {
	Context      context.Context
	DebugName    string
	ExpectedFSID uint64 // if nonzero, reject volumes with a different FSID

	Logger  *slog.Logger
	Verbose bool
}

// Ring owns the superblock ring of a mounted volume: the stable record
// (last one confirmed durable) and the working record (mutated in memory
// between commits).
//
// The caller's transaction subsystem must serialize Working mutation,
// BeginCommit and Publish behind a single writer. StableSnapshot is safe to
// call concurrently with all of them: the stable record is only ever
// replaced wholesale after a successful durable write, never mutated in
// place.
type Ring struct {
	dev       block.Device
	context   context.Context
	debugName string
	logger    *slog.Logger
	verbose   bool

	stable  atomic.Pointer[Super]
	working Super
	buf     []byte
}

// Mount scans every ring slot and selects the valid record with the
// strictly highest sequence number as both the stable and working record.
// Unreadable and invalid slots are logged and skipped; if no slot is valid,
// Mount fails with ErrCorruptMetadata.
func Mount(dev block.Device, o Options) (*Ring, error) {
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.DebugName == "" {
		o.DebugName = "super"
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	r := &Ring{
		dev:       dev,
		context:   o.Context,
		debugName: o.DebugName,
		logger:    o.Logger,
		verbose:   o.Verbose,
		buf:       make([]byte, block.Size),
	}

	found := -1
	var best Super
	for i := 0; i < SuperSlots; i++ {
		blkno := uint64(SuperBlkno + i)

		err := dev.ReadBlock(blkno, r.buf)
		if err == nil {
			var s Super
			s, err = decodeSuperBlock(r.buf)
			if err == nil && s.Blkno != blkno {
				err = fmt.Errorf("%w: records %d", errWrongSlot, s.Blkno)
			}
			if err == nil && o.ExpectedFSID != 0 && s.FSID() != o.ExpectedFSID {
				err = fmt.Errorf("fsid %#x does not match expected %#x", s.FSID(), o.ExpectedFSID)
			}
			if err == nil {
				if found < 0 || s.Seq > best.Seq {
					best = s
					found = i
				}
				continue
			}
		}
		r.logger.LogAttrs(r.context, slog.LevelWarn, "super: skipping ring slot",
			slog.String("fs", r.debugName), slog.Int("slot", i), slog.Any("err", err))
	}

	if found < 0 {
		r.logger.LogAttrs(r.context, slog.LevelError, "super: unable to read valid superblock",
			slog.String("fs", r.debugName))
		return nil, ErrCorruptMetadata
	}

	r.logger.LogAttrs(r.context, slog.LevelInfo, "super: mounted",
		slog.String("fs", r.debugName), slog.Int("slot", found),
		slog.Uint64("seq", best.Seq), slog.String("uuid", best.UUID.String()))

	r.working = best
	stable := best
	r.stable.Store(&stable)
	return r, nil
}

// Working returns the in-memory record mutated between commits. The
// returned pointer stays valid for the life of the ring; access follows the
// single-writer contract above.
func (r *Ring) Working() *Super {
	return &r.working
}

// BeginCommit advances the working record to the next sequence number and
// the next ring slot, wrapping to the first slot after the last. Purely
// in-memory; storage is not touched until Publish.
func (r *Ring) BeginCommit() {
	r.working.Seq++
	r.working.Blkno++
	if r.working.Blkno == SuperBlkno+SuperSlots {
		r.working.Blkno = SuperBlkno
	}

	if r.verbose {
		r.logger.LogAttrs(r.context, slog.LevelDebug, "super: commit begun",
			slog.String("fs", r.debugName), slog.Uint64("seq", r.working.Seq))
	}
}

// Publish checksums the working record, writes it to its ring slot and
// flushes it durable. On success the stable record is replaced with a copy
// of what was written. On failure the working record keeps its advanced
// slot and sequence, so a retrying caller goes through BeginCommit and
// targets a fresh slot instead of rewriting a possibly-bad one.
func (r *Ring) Publish() error {
	r.working.encodeBlock(r.buf)

	if err := r.dev.WriteBlock(r.working.Blkno, r.buf); err != nil {
		return r.fail("write", err)
	}
	if err := r.dev.Flush(); err != nil {
		return r.fail("flush", err)
	}

	stable := r.working
	r.stable.Store(&stable)

	if r.verbose {
		r.logger.LogAttrs(r.context, slog.LevelDebug, "super: published",
			slog.String("fs", r.debugName), slog.Uint64("seq", stable.Seq),
			slog.Uint64("blkno", stable.Blkno))
	}
	return nil
}

// StableSnapshot returns a copy of the last durably published record.
// Recovery and consistency checks go through this, never through Working:
// the stable record can never reflect an unpublished commit.
func (r *Ring) StableSnapshot() Super {
	return *r.stable.Load()
}

func (r *Ring) fail(op string, err error) error {
	r.logger.LogAttrs(r.context, slog.LevelError, "super: commit failed",
		slog.String("fs", r.debugName), slog.String("op", op),
		slog.Uint64("seq", r.working.Seq), slog.Any("err", err))
	return fmt.Errorf("%w: %s: %w", ErrCommitFailed, op, err)
}

type FormatOptions struct {
	TotalBlocks uint64    // defaults to the device capacity
	UUID        uuid.UUID // defaults to a fresh random UUID
}

// Format initializes a fresh volume: every ring slot is overwritten (so no
// stale superblock from a previous life can win a mount scan) and an
// initial sequence-1 record lands in the first slot, durably. The written
// record is returned.
func Format(dev block.Device, o FormatOptions) (Super, error) {
	if o.TotalBlocks == 0 {
		o.TotalBlocks = dev.BlockCount()
	}
	if o.TotalBlocks < SuperBlkno+SuperSlots+1 {
		return Super{}, fmt.Errorf("volume too small: %d blocks", o.TotalBlocks)
	}
	if o.UUID == uuid.Nil {
		o.UUID = uuid.New()
	}

	buf := make([]byte, block.Size)
	for i := 1; i < SuperSlots; i++ {
		if err := dev.WriteBlock(uint64(SuperBlkno+i), buf); err != nil {
			return Super{}, err
		}
	}

	s := Super{
		Magic:       SuperMagic,
		Seq:         1,
		Blkno:       SuperBlkno,
		UUID:        o.UUID,
		TotalBlocks: o.TotalBlocks,
		FreeBlocks:  o.TotalBlocks - (SuperBlkno + SuperSlots),
		NextIno:     1,
	}
	s.encodeBlock(buf)
	if err := dev.WriteBlock(s.Blkno, buf); err != nil {
		return Super{}, err
	}
	if err := dev.Flush(); err != nil {
		return Super{}, err
	}
	return s, nil
}
