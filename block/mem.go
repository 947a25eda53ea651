package block

import (
	"fmt"
	"sync"
)

// MemDevice is a transient in-memory Device implementation intended for
// tests. Blocks read back zero-filled until written.
//
// FailNextWrite and FailNextFlush inject a one-shot error into the next
// WriteBlock or Flush call, for exercising commit failure paths.
type MemDevice struct {
	mu     sync.Mutex
	blocks map[uint64][]byte
	count  uint64
	closed bool

	FailNextWrite error
	FailNextFlush error
	Writes        int // WriteBlock calls, successful or not
	Flushes       int // Flush calls that reached the device
}

var _ Device = (*MemDevice)(nil)

// NewMemDevice returns an in-memory device with the given capacity.
func NewMemDevice(blocks uint64) *MemDevice {
	return &MemDevice{
		blocks: make(map[uint64][]byte),
		count:  blocks,
	}
}

func (d *MemDevice) ReadBlock(blkno uint64, buf []byte) error {
	checkBuf(buf)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("block: device closed")
	}
	if blkno >= d.count {
		return fmt.Errorf("%w: %d (device has %d blocks)", ErrOutOfRange, blkno, d.count)
	}
	if b := d.blocks[blkno]; b != nil {
		copy(buf, b)
	} else {
		clear(buf)
	}
	return nil
}

func (d *MemDevice) WriteBlock(blkno uint64, buf []byte) error {
	checkBuf(buf)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("block: device closed")
	}
	d.Writes++
	if err := d.FailNextWrite; err != nil {
		d.FailNextWrite = nil
		return err
	}
	if blkno >= d.count {
		return fmt.Errorf("%w: %d (device has %d blocks)", ErrOutOfRange, blkno, d.count)
	}
	b := d.blocks[blkno]
	if b == nil {
		b = make([]byte, Size)
		d.blocks[blkno] = b
	}
	copy(b, buf)
	return nil
}

func (d *MemDevice) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Flushes++
	if err := d.FailNextFlush; err != nil {
		d.FailNextFlush = nil
		return err
	}
	return nil
}

func (d *MemDevice) BlockCount() uint64 {
	return d.count
}

func (d *MemDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.blocks = nil
	return nil
}

// Corrupt flips a byte inside the stored copy of a block, for tests that
// need a checksum mismatch. Corrupting an unwritten block writes it first.
func (d *MemDevice) Corrupt(blkno uint64, off int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b := d.blocks[blkno]
	if b == nil {
		b = make([]byte, Size)
		d.blocks[blkno] = b
	}
	b[off] ^= 0xff
}
