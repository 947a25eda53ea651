package block

import (
	"fmt"
	"os"
)

// FileDevice is a Device backed by a regular file or a raw block device
// node. Reads and writes go straight through with positioned I/O; Flush
// uses the fastest fdatasync-like call the platform offers.
type FileDevice struct {
	f      *os.File
	blocks uint64
}

var _ Device = (*FileDevice)(nil)

// OpenFile opens the file at path for block I/O. The file's current size
// determines BlockCount and must be a multiple of Size.
func OpenFile(path string) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	size := st.Size()
	if size&(Size-1) != 0 {
		f.Close()
		return nil, fmt.Errorf("block: %v: size %d is not a multiple of %d", path, size, Size)
	}

	return &FileDevice{f: f, blocks: uint64(size) >> Shift}, nil
}

// CreateFile creates (or truncates) a file sized to the given number of
// blocks and opens it as a device.
func CreateFile(path string, blocks uint64) (*FileDevice, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(blocks) << Shift); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return &FileDevice{f: f, blocks: blocks}, nil
}

func (d *FileDevice) ReadBlock(blkno uint64, buf []byte) error {
	checkBuf(buf)
	if blkno >= d.blocks {
		return fmt.Errorf("%w: %d (device has %d blocks)", ErrOutOfRange, blkno, d.blocks)
	}
	_, err := d.f.ReadAt(buf, int64(blkno)<<Shift)
	return err
}

func (d *FileDevice) WriteBlock(blkno uint64, buf []byte) error {
	checkBuf(buf)
	if blkno >= d.blocks {
		return fmt.Errorf("%w: %d (device has %d blocks)", ErrOutOfRange, blkno, d.blocks)
	}
	_, err := d.f.WriteAt(buf, int64(blkno)<<Shift)
	return err
}

func (d *FileDevice) Flush() error {
	return fdatasync(d.f)
}

func (d *FileDevice) BlockCount() uint64 {
	return d.blocks
}

func (d *FileDevice) Close() error {
	return d.f.Close()
}
