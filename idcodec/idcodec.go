// Package idcodec implements the identifier codec (spec.md §4.1): the
// 64-bit folder/message id split, change-number allocation plumbing,
// XID construction and Predecessor Change List bookkeeping.
//
// Grounded on oxcfold.cpp's rop_util_get_replid/rop_util_get_gc_value/
// common_util_xid_to_binary/common_util_pcl_append (original_source).
package idcodec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ReplicaID is the 16-bit prefix of a folder/message id identifying the
// hosting replica. ReplicaLocal (1) denotes the current mailbox.
type ReplicaID uint16

const ReplicaLocal ReplicaID = 1

// FolderID and MessageID are 64-bit object ids: a 16-bit replica id
// followed by a 48-bit global counter.
type FolderID uint64
type MessageID uint64

// ChangeNumber is a per-mailbox monotonic counter allocated by the
// store driver (C3).
type ChangeNumber uint64

// MakeID packs a replica id and 48-bit counter into a 64-bit object id.
// counter values above 2^48-1 are truncated, mirroring the C layout this
// is ported from (callers are expected to pass driver-issued counters,
// which never exceed 48 bits).
func MakeID(replica ReplicaID, counter uint64) uint64 {
	return uint64(replica)<<48 | (counter & 0xFFFFFFFFFFFF)
}

// Split decodes a 64-bit object id into its replica id and 48-bit
// global counter.
func Split(id uint64) (replica ReplicaID, counter uint64) {
	return ReplicaID(id >> 48), id & 0xFFFFFFFFFFFF
}

// Replica returns the replica id of a folder id.
func (f FolderID) Replica() ReplicaID { r, _ := Split(uint64(f)); return r }

// Counter returns the 48-bit global counter of a folder id.
func (f FolderID) Counter() uint64 { _, c := Split(uint64(f)); return c }

// IsLocal reports whether f belongs to the current mailbox's replica.
func (f FolderID) IsLocal() bool { return f.Replica() == ReplicaLocal }

// Replica returns the replica id of a message id.
func (m MessageID) Replica() ReplicaID { r, _ := Split(uint64(m)); return r }

// Counter returns the 48-bit global counter of a message id.
func (m MessageID) Counter() uint64 { _, c := Split(uint64(m)); return c }

// XID is the portable identity used inside Change Keys: a mailbox GUID
// plus a 6-byte local id derived from a change number.
type XID struct {
	GUID    uuid.UUID
	LocalID [6]byte
}

// MakeXID encodes a change number's 48 low bits into a 6-byte local id
// and pairs it with the mailbox GUID.
func MakeXID(mailboxGUID uuid.UUID, cn ChangeNumber) XID {
	var local [6]byte
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(cn))
	copy(local[:], buf[2:8])
	return XID{GUID: mailboxGUID, LocalID: local}
}

// ChangeKeySize is the encoded size of a change key: a 16-byte GUID
// followed by the 6-byte local id (spec.md §6.3).
const ChangeKeySize = 22

// ChangeKey encodes x as the opaque 22-byte binary blob clients and the
// driver treat as a change key.
func (x XID) ChangeKey() []byte {
	buf := make([]byte, ChangeKeySize)
	guidBytes, _ := x.GUID.MarshalBinary()
	copy(buf[0:16], guidBytes)
	copy(buf[16:22], x.LocalID[:])
	return buf
}

// ParseChangeKey decodes a 22-byte change-key blob back into an XID.
func ParseChangeKey(b []byte) (XID, error) {
	if len(b) != ChangeKeySize {
		return XID{}, fmt.Errorf("idcodec: change key has %d bytes, want %d", len(b), ChangeKeySize)
	}
	var x XID
	if err := x.GUID.UnmarshalBinary(b[0:16]); err != nil {
		return XID{}, fmt.Errorf("idcodec: change key guid: %w", err)
	}
	copy(x.LocalID[:], b[16:22])
	return x, nil
}

// ErrServerOOM names an allocation failure while building a predecessor
// change list (spec.md §4.1). PCLAppend allocates with make and always
// returns a nil error, so it never returns ErrServerOOM.
var ErrServerOOM = errors.New("idcodec: allocation failure building predecessor change list")

// PCL is an ordered Predecessor Change List: a sequence of change-key
// blobs, serialized as a single opaque binary (spec.md §3, §6.3).
type PCL []byte

// PCLAppend appends xid's change key to pcl, returning a new PCL value.
// If pcl already ends in an XID sharing xid's GUID, the prior entry for
// that GUID is left in place and the new one is appended after it; this
// mirrors common_util_pcl_append's append-only behavior (gromox merges
// per-GUID runs at a higher layer during conflict resolution, which is
// out of scope here — spec.md §1 excludes replication logic).
func PCLAppend(pcl PCL, xid XID) (PCL, error) {
	key := xid.ChangeKey()
	out := make(PCL, 0, len(pcl)+len(key))
	out = append(out, pcl...)
	out = append(out, key...)
	return out, nil
}

// Entries decodes a PCL into its constituent XIDs.
func (p PCL) Entries() ([]XID, error) {
	if len(p)%ChangeKeySize != 0 {
		return nil, fmt.Errorf("idcodec: pcl length %d is not a multiple of %d", len(p), ChangeKeySize)
	}
	n := len(p) / ChangeKeySize
	out := make([]XID, n)
	for i := 0; i < n; i++ {
		x, err := ParseChangeKey(p[i*ChangeKeySize : (i+1)*ChangeKeySize])
		if err != nil {
			return nil, err
		}
		out[i] = x
	}
	return out, nil
}

// Contains reports whether key (a 22-byte change key) already appears
// in p.
func (p PCL) Contains(key []byte) bool {
	if len(key) != ChangeKeySize {
		return false
	}
	for i := 0; i+ChangeKeySize <= len(p); i += ChangeKeySize {
		match := true
		for j := 0; j < ChangeKeySize; j++ {
			if p[i+j] != key[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
