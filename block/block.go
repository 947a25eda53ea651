// Package block provides fixed-size block I/O on stable storage for the
// superblock ring: positioned reads and writes of whole blocks plus a flush
// primitive that blocks until everything written so far is durable on media.
package block

import (
	"errors"
	"fmt"
)

const (
	// Shift is log2 of the block size.
	Shift = 12

	// Size is the fixed block size, in bytes.
	Size = 1 << Shift
)

var ErrOutOfRange = errors.New("block number out of range")

// Device reads and writes Size-byte blocks at absolute block numbers.
//
// Implementations perform no caching of their own: WriteBlock hands the
// block to the OS, and Flush does not return until every preceding write is
// durable. Callers serialize writes to any single block themselves.
type Device interface {
	// ReadBlock fills buf (which must be Size bytes) with block blkno.
	ReadBlock(blkno uint64, buf []byte) error

	// WriteBlock writes buf (which must be Size bytes) as block blkno.
	WriteBlock(blkno uint64, buf []byte) error

	// Flush blocks until all previously written blocks are on media.
	//
	// A Flush error is not recoverable: the OS may have dropped the dirty
	// pages, and rereading proves nothing about what is on disk.
	Flush() error

	// BlockCount returns the device capacity in blocks.
	BlockCount() uint64

	// Close releases the device. Buffered data is not flushed.
	Close() error
}

func checkBuf(buf []byte) {
	if len(buf) != Size {
		panic(fmt.Sprintf("block: buffer is %d bytes, must be %d", len(buf), Size))
	}
}
