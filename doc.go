/*
Package shalefs is the on-disk consistency core of a block filesystem:
the superblock ring that durably publishes the volume's root metadata, and
(in the keyvec subpackage) the segmented key engine that orders entries in
the on-disk index structures built above it.

# Superblock ring

The volume keeps SuperSlots redundant copies of the Super record in a
wrap-around ring of blocks starting at SuperBlkno. Every commit advances to
the next slot and sequence number, so a crash mid-write can only ever hit a
slot whose predecessor is still intact. Mount scans the whole ring and
selects the record with the strictly highest sequence number whose magic
and checksum verify; which physical slot holds it does not matter, which is
what makes the wrap-around safe.

Two records are live per mounted volume: the stable record, the last one
confirmed durable and the only safe input for recovery, and the working
record, mutated in memory between commits. Publish writes and flushes the
working record and only then replaces the stable one.

The ring does not schedule commits, retry failures, or take locks; the
surrounding transaction subsystem decides when to publish, serializes the
writer, and reacts to ErrCommitFailed. Storage is reached through the
narrow block.Device interface.

# Typical flow

	dev, err := block.OpenFile("/dev/vg0/vol")
	...
	ring, err := shalefs.Mount(dev, shalefs.Options{})
	...
	// per transaction commit:
	ring.BeginCommit()
	ring.Working().RootBlkno = newRoot
	ring.Working().RootSeq = ring.Working().Seq
	if err := ring.Publish(); err != nil {
		// demote to read-only; durability of the new root is unknown
	}
*/
package shalefs
