package rop_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
	"github.com/obsidiangroup/gromox-sub002/exmdb/exmdbtest"
	"github.com/obsidiangroup/gromox-sub002/folder"
	"github.com/obsidiangroup/gromox-sub002/handle"
	"github.com/obsidiangroup/gromox-sub002/idcodec"
	"github.com/obsidiangroup/gromox-sub002/logon"
	"github.com/obsidiangroup/gromox-sub002/mapierr"
	"github.com/obsidiangroup/gromox-sub002/rop"
)

var (
	privateRoot   = idcodec.MakeID(idcodec.ReplicaLocal, 1)
	ipmSubtree    = idcodec.MakeID(idcodec.ReplicaLocal, 2)
	privateCustom = idcodec.MakeID(idcodec.ReplicaLocal, 3)
)

func newFixture() (*exmdbtest.Store, *rop.Session) {
	st := exmdbtest.New()
	st.SeedFolder(privateRoot, 0, exmdb.FolderGeneric, "Root")
	st.SeedFolder(ipmSubtree, privateRoot, exmdb.FolderGeneric, "Top of Information Store")

	lg := logon.New(logon.Private, "alice", true, 1, "dir1", uuid.New())
	lg.PrivateRoot = privateRoot
	lg.PrivateIPMSubtree = ipmSubtree
	lg.PrivateCustom = privateCustom

	return st, rop.NewSession(lg, st, nil)
}

func TestOpenFolderInstallsHandle(t *testing.T) {
	_, s := newFixture()
	ctx := context.Background()

	code, out := s.OpenFolder(ctx, handle.LogonHandle, ipmSubtree, 0)
	if code != mapierr.Success {
		t.Fatalf("OpenFolder = %v", code)
	}
	if out.Handle == handle.LogonHandle {
		t.Fatalf("OpenFolder returned the reserved logon handle")
	}
	if s.Handles.Count() != 2 {
		t.Fatalf("Count = %d, want 2", s.Handles.Count())
	}
}

func TestOpenFolderRejectsUnknownHandle(t *testing.T) {
	_, s := newFixture()
	ctx := context.Background()

	code, _ := s.OpenFolder(ctx, 999, ipmSubtree, 0)
	if code != mapierr.NullObject {
		t.Fatalf("OpenFolder on unknown handle = %v, want NullObject", code)
	}
}

func TestCreateFolderThenDeleteFolder(t *testing.T) {
	_, s := newFixture()
	ctx := context.Background()

	code, created := s.CreateFolder(ctx, handle.LogonHandle, folder.CreateFolderInput{
		ParentFID: ipmSubtree,
		Type:      exmdb.FolderGeneric,
		Name:      "Inbox",
	})
	if code != mapierr.Success {
		t.Fatalf("CreateFolder = %v", code)
	}

	code, openOut := s.OpenFolder(ctx, handle.LogonHandle, ipmSubtree, 0)
	if code != mapierr.Success {
		t.Fatalf("OpenFolder(parent) = %v", code)
	}

	delCode, partial := s.DeleteFolder(ctx, openOut.Handle, created.FolderID, folder.DelFolders)
	if delCode != mapierr.Success || partial {
		t.Fatalf("DeleteFolder = %v, partial=%v", delCode, partial)
	}
}

func TestMoveFolderAcrossParentHandles(t *testing.T) {
	_, s := newFixture()
	ctx := context.Background()

	code, src := s.CreateFolder(ctx, handle.LogonHandle, folder.CreateFolderInput{
		ParentFID: ipmSubtree,
		Type:      exmdb.FolderGeneric,
		Name:      "Src",
	})
	if code != mapierr.Success {
		t.Fatalf("CreateFolder(src) = %v", code)
	}
	code, dst := s.CreateFolder(ctx, handle.LogonHandle, folder.CreateFolderInput{
		ParentFID: ipmSubtree,
		Type:      exmdb.FolderGeneric,
		Name:      "Dst",
	})
	if code != mapierr.Success {
		t.Fatalf("CreateFolder(dst) = %v", code)
	}
	code, child := s.CreateFolder(ctx, handle.LogonHandle, folder.CreateFolderInput{
		ParentFID: src.FolderID,
		Type:      exmdb.FolderGeneric,
		Name:      "Child",
	})
	if code != mapierr.Success {
		t.Fatalf("CreateFolder(child) = %v", code)
	}

	code, hsrc := s.OpenFolder(ctx, handle.LogonHandle, src.FolderID, 0)
	if code != mapierr.Success {
		t.Fatalf("OpenFolder(src) = %v", code)
	}
	code, hdst := s.OpenFolder(ctx, handle.LogonHandle, dst.FolderID, 0)
	if code != mapierr.Success {
		t.Fatalf("OpenFolder(dst) = %v", code)
	}

	mvCode, res := s.MoveFolder(ctx, hsrc.Handle, hdst.Handle, child.FolderID, "Child")
	if mvCode != mapierr.Success || res.Partial {
		t.Fatalf("MoveFolder = %v, %+v", mvCode, res)
	}
}

func TestGetHierarchyAndContentsTableInstallHandles(t *testing.T) {
	st, s := newFixture()
	ctx := context.Background()

	code, sub := s.CreateFolder(ctx, handle.LogonHandle, folder.CreateFolderInput{
		ParentFID: ipmSubtree,
		Type:      exmdb.FolderGeneric,
		Name:      "Sub",
	})
	if code != mapierr.Success {
		t.Fatalf("CreateFolder = %v", code)
	}
	st.SeedMessage(1, sub.FolderID, "alice")

	code, openOut := s.OpenFolder(ctx, handle.LogonHandle, sub.FolderID, 0)
	if code != mapierr.Success {
		t.Fatalf("OpenFolder = %v", code)
	}

	hCode, hOut := s.GetHierarchyTable(ctx, openOut.Handle, false)
	if hCode != mapierr.Success || hOut.Handle == handle.LogonHandle {
		t.Fatalf("GetHierarchyTable = %v, %+v", hCode, hOut)
	}

	cCode, cOut := s.GetContentsTable(ctx, openOut.Handle, 0)
	if cCode != mapierr.Success || cOut.RowCount != 1 {
		t.Fatalf("GetContentsTable = %v, %+v", cCode, cOut)
	}
}

func TestHardDeleteVerbsAliasTheSoftOnes(t *testing.T) {
	st, s := newFixture()
	ctx := context.Background()

	code, sub := s.CreateFolder(ctx, handle.LogonHandle, folder.CreateFolderInput{
		ParentFID: ipmSubtree,
		Type:      exmdb.FolderGeneric,
		Name:      "Sub",
	})
	if code != mapierr.Success {
		t.Fatalf("CreateFolder = %v", code)
	}
	st.SeedMessage(1, sub.FolderID, "alice")

	code, openOut := s.OpenFolder(ctx, handle.LogonHandle, sub.FolderID, 0)
	if code != mapierr.Success {
		t.Fatalf("OpenFolder = %v", code)
	}

	delCode, out := s.HardDeleteMessages(ctx, openOut.Handle, []uint64{1}, false)
	if delCode != mapierr.Success || out.Partial {
		t.Fatalf("HardDeleteMessages = %v, %+v", delCode, out)
	}

	emptyCode, partial := s.HardDeleteMessagesAndSubfolders(ctx, openOut.Handle)
	if emptyCode != mapierr.Success || partial {
		t.Fatalf("HardDeleteMessagesAndSubfolders = %v, partial=%v", emptyCode, partial)
	}
}

func TestReleaseCascadesToChildTable(t *testing.T) {
	_, s := newFixture()
	ctx := context.Background()

	code, openOut := s.OpenFolder(ctx, handle.LogonHandle, ipmSubtree, 0)
	if code != mapierr.Success {
		t.Fatalf("OpenFolder = %v", code)
	}
	tCode, tOut := s.GetHierarchyTable(ctx, openOut.Handle, false)
	if tCode != mapierr.Success {
		t.Fatalf("GetHierarchyTable = %v", tCode)
	}

	before := s.Handles.Count()
	s.Release(openOut.Handle)
	after := s.Handles.Count()
	if after != before-2 {
		t.Fatalf("Count after release = %d, want %d", after, before-2)
	}
	if _, err := s.Handles.Get(tOut.Handle, handle.TypeTable); err != handle.ErrNotFound {
		t.Fatalf("table handle survived release: err=%v", err)
	}
}
