// Package permission implements the permission evaluator (spec.md §4.2,
// component C2): given a folder and a principal, resolve the effective
// rights mask.
//
// Grounded on oxcfold.cpp's rop_openfolder (the Visible-promotion rule)
// and the owner-mode shortcut repeated at the top of every verb in
// oxcfold.cpp/oxcperm.cpp. The evaluator is a pure function: no locking,
// matching spec.md §5's "permission evaluator is lock-free (reads only)".
package permission

import (
	"context"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
)

// WellKnown identifies the mailbox-root-like folders that are promoted
// to Visible when the driver reports no rights at all (spec.md §4.2
// rule 3).
type WellKnown struct {
	PrivateRoot       uint64
	PrivateIPMSubtree uint64
	PublicRoot        uint64
}

// Evaluate resolves the effective rights for principal on fid, per the
// ordered rules in spec.md §4.2:
//  1. owner-mode logons get full owner rights without consulting the
//     driver;
//  2. otherwise the driver's reported ACL is authoritative;
//  3. a "no rights" result is promoted to Visible on the mailbox
//     root/IPM-subtree (private) or public root;
//  4. the (possibly promoted) rights are returned verbatim.
func Evaluate(ctx context.Context, store exmdb.Store, dir string, fid uint64, principal string, isOwner, private bool, wk WellKnown) (exmdb.Rights, error) {
	if isOwner {
		return Owner(), nil
	}
	rights, err := store.CheckFolderPermission(ctx, dir, fid, principal)
	if err != nil {
		return 0, err
	}
	if rights == exmdb.RightNone {
		if private {
			if fid == wk.PrivateRoot || fid == wk.PrivateIPMSubtree {
				rights = exmdb.RightVisible
			}
		} else if fid == wk.PublicRoot {
			rights = exmdb.RightVisible
		}
	}
	return rights, nil
}

// Owner returns the full rights mask granted unconditionally to an
// owner-mode logon (spec.md §4.2 rule 1).
func Owner() exmdb.Rights {
	return exmdb.RightOwner | exmdb.RightReadAny | exmdb.RightCreate |
		exmdb.RightCreateSubfolder | exmdb.RightDeleteAny |
		exmdb.RightDeleteOwned | exmdb.RightVisible | exmdb.RightFolderVisible
}

// CanOpen reports whether rights permit OpenFolder to succeed
// (spec.md §4.7.1 step 5: the intersection with ReadAny|Visible|Owner
// must be non-empty).
func CanOpen(rights exmdb.Rights) bool {
	return rights&(exmdb.RightReadAny|exmdb.RightVisible|exmdb.RightOwner) != 0
}

// Has reports whether rights contains every bit in want.
func Has(rights, want exmdb.Rights) bool {
	return rights&want == want
}

// HasAny reports whether rights contains any bit in want.
func HasAny(rights, want exmdb.Rights) bool {
	return rights&want != 0
}
