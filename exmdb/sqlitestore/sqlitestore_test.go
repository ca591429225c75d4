package sqlitestore_test

import (
	"context"
	"testing"
	"time"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
	"github.com/obsidiangroup/gromox-sub002/exmdb/sqlitestore"
	"github.com/obsidiangroup/gromox-sub002/idcodec"
)

func openStore(t *testing.T) *sqlitestore.Store {
	t.Helper()
	st := sqlitestore.Open(t.TempDir())
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return st
}

// seedRoot creates a root folder (no parent) the way the core's own
// CreateFolder verb would, returning its id.
func seedRoot(t *testing.T, ctx context.Context, st *sqlitestore.Store, dir, name string) uint64 {
	t.Helper()
	fid, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: uint64(0)},
		{Tag: exmdb.PropTagFolderType, Value: exmdb.FolderGeneric},
		{Tag: exmdb.PropTagDisplayName, Value: name},
		{Tag: exmdb.PropTagCreationTime, Value: time.Now()},
	})
	if err != nil {
		t.Fatalf("seedRoot %s: %v", name, err)
	}
	return fid
}

func TestCreateOpenDeleteFolder(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	const dir = "mbox1"

	root := seedRoot(t, ctx, st, dir, "Root")
	replica, counter := idcodec.Split(root)
	if replica != idcodec.ReplicaLocal || counter != 1 {
		t.Fatalf("root id = replica %d counter %d, want local/1", replica, counter)
	}

	child, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: root},
		{Tag: exmdb.PropTagFolderType, Value: exmdb.FolderGeneric},
		{Tag: exmdb.PropTagDisplayName, Value: "Inbox"},
	})
	if err != nil {
		t.Fatalf("CreateFolderByProperties: %v", err)
	}

	exists, err := st.CheckFolderID(ctx, dir, child)
	if err != nil || !exists {
		t.Fatalf("CheckFolderID = %v, %v, want true, nil", exists, err)
	}

	found, err := st.GetFolderByName(ctx, dir, root, "Inbox")
	if err != nil || found != child {
		t.Fatalf("GetFolderByName = %d, %v, want %d, nil", found, err, child)
	}

	ftypeVal, err := st.GetFolderProperty(ctx, dir, 0, child, exmdb.PropTagFolderType)
	if err != nil {
		t.Fatalf("GetFolderProperty: %v", err)
	}
	if ftypeVal.(exmdb.FolderType) != exmdb.FolderGeneric {
		t.Errorf("FolderType = %v, want FolderGeneric", ftypeVal)
	}

	done, err := st.DeleteFolder(ctx, dir, 0, child, true)
	if err != nil || !done {
		t.Fatalf("DeleteFolder = %v, %v, want true, nil", done, err)
	}
	exists, err = st.CheckFolderID(ctx, dir, child)
	if err != nil || exists {
		t.Fatalf("CheckFolderID after delete = %v, %v, want false, nil", exists, err)
	}
}

func TestSetFolderPropertiesKnownAndExtra(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	const dir = "mbox2"

	root := seedRoot(t, ctx, st, dir, "Root")

	const customTag exmdb.PropTag = 0x7C060003
	if _, err := st.SetFolderProperties(ctx, dir, 0, root, exmdb.PropVals{
		{Tag: exmdb.PropTagComment, Value: "updated comment"},
		{Tag: customTag, Value: float64(42)},
	}); err != nil {
		t.Fatalf("SetFolderProperties: %v", err)
	}

	commentVal, err := st.GetFolderProperty(ctx, dir, 0, root, exmdb.PropTagComment)
	if err != nil || commentVal != "updated comment" {
		t.Fatalf("Comment = %v, %v, want %q, nil", commentVal, err, "updated comment")
	}

	customVal, err := st.GetFolderProperty(ctx, dir, 0, root, customTag)
	if err != nil {
		t.Fatalf("GetFolderProperty(custom): %v", err)
	}
	if customVal.(float64) != 42 {
		t.Errorf("custom prop = %v, want 42", customVal)
	}
}

func TestAllocateCNMonotonic(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	const dir = "mbox3"

	first, err := st.AllocateCN(ctx, dir)
	if err != nil {
		t.Fatalf("AllocateCN: %v", err)
	}
	second, err := st.AllocateCN(ctx, dir)
	if err != nil {
		t.Fatalf("AllocateCN: %v", err)
	}
	if second != first+1 {
		t.Errorf("AllocateCN sequence = %d, %d, want monotonic +1", first, second)
	}
}

func TestCheckFolderCycle(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	const dir = "mbox4"

	root := seedRoot(t, ctx, st, dir, "Root")
	child, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: root},
		{Tag: exmdb.PropTagDisplayName, Value: "Child"},
	})
	if err != nil {
		t.Fatalf("CreateFolderByProperties: %v", err)
	}

	cycle, err := st.CheckFolderCycle(ctx, dir, root, child)
	if err != nil || !cycle {
		t.Fatalf("CheckFolderCycle(root, child) = %v, %v, want true, nil", cycle, err)
	}
	noCycle, err := st.CheckFolderCycle(ctx, dir, child, root)
	if err != nil || noCycle {
		t.Fatalf("CheckFolderCycle(child, root) = %v, %v, want false, nil", noCycle, err)
	}
}

func TestMoveCopyFolder(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	const dir = "mbox5"

	root := seedRoot(t, ctx, st, dir, "Root")
	a, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: root},
		{Tag: exmdb.PropTagDisplayName, Value: "A"},
	})
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	b, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: root},
		{Tag: exmdb.PropTagDisplayName, Value: "B"},
	})
	if err != nil {
		t.Fatalf("create B: %v", err)
	}
	leaf, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: a},
		{Tag: exmdb.PropTagDisplayName, Value: "Leaf"},
	})
	if err != nil {
		t.Fatalf("create Leaf: %v", err)
	}

	res, err := st.MoveCopyFolder(ctx, dir, 1, 0, false, "alice", a, leaf, b, "Leaf", false)
	if err != nil || res.DestinationExisted {
		t.Fatalf("MoveCopyFolder = %+v, %v, want success", res, err)
	}
	found, err := st.GetFolderByName(ctx, dir, b, "Leaf")
	if err != nil || found != leaf {
		t.Fatalf("GetFolderByName after move = %d, %v, want %d, nil", found, err, leaf)
	}

	res2, err := st.MoveCopyFolder(ctx, dir, 1, 0, false, "alice", b, leaf, a, "LeafCopy", true)
	if err != nil || res2.DestinationExisted {
		t.Fatalf("MoveCopyFolder copy = %+v, %v, want success", res2, err)
	}
	copied, err := st.GetFolderByName(ctx, dir, a, "LeafCopy")
	if err != nil || copied == 0 || copied == leaf {
		t.Fatalf("GetFolderByName(copy) = %d, %v, want a fresh id", copied, err)
	}
}

func TestSumHierarchyDirectAndDepth(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	const dir = "mbox6"

	root := seedRoot(t, ctx, st, dir, "Root")
	a, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: root},
		{Tag: exmdb.PropTagDisplayName, Value: "A"},
	})
	if err != nil {
		t.Fatalf("create A: %v", err)
	}
	if _, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: root},
		{Tag: exmdb.PropTagDisplayName, Value: "B"},
	}); err != nil {
		t.Fatalf("create B: %v", err)
	}
	if _, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: a},
		{Tag: exmdb.PropTagDisplayName, Value: "Leaf"},
	}); err != nil {
		t.Fatalf("create Leaf: %v", err)
	}

	direct, err := st.SumHierarchy(ctx, dir, root, "", false)
	if err != nil || direct != 2 {
		t.Fatalf("SumHierarchy(direct) = %d, %v, want 2, nil", direct, err)
	}
	deep, err := st.SumHierarchy(ctx, dir, root, "", true)
	if err != nil || deep != 3 {
		t.Fatalf("SumHierarchy(depth) = %d, %v, want 3, nil", deep, err)
	}
}

func TestHierarchyAndContentTables(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	const dir = "mbox7"

	root := seedRoot(t, ctx, st, dir, "Root")
	a, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: root},
		{Tag: exmdb.PropTagDisplayName, Value: "A"},
	})
	if err != nil {
		t.Fatalf("create A: %v", err)
	}

	rows, err := st.OpenHierarchyTable(ctx, dir, root, "", false)
	if err != nil {
		t.Fatalf("OpenHierarchyTable: %v", err)
	}
	total, err := rows.Total(ctx)
	if err != nil || total != 1 {
		t.Fatalf("hierarchy Total = %d, %v, want 1, nil", total, err)
	}
	fetched, err := rows.FetchRows(ctx, 0, 10)
	if err != nil || len(fetched) != 1 || fetched[0] != a {
		t.Fatalf("hierarchy FetchRows = %v, %v, want [%d]", fetched, err, a)
	}

	msg1, err := st.CreateMessageForTest(ctx, dir, root, "alice", false, "Hello", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateMessageForTest: %v", err)
	}
	content, err := st.OpenContentTable(ctx, dir, root, "", false, false, false)
	if err != nil {
		t.Fatalf("OpenContentTable: %v", err)
	}
	cTotal, err := content.Total(ctx)
	if err != nil || cTotal != 1 {
		t.Fatalf("content Total = %d, %v, want 1, nil", cTotal, err)
	}
	idx, found, err := content.MatchRow(ctx, 0, true, msg1)
	if err != nil || !found || idx != 0 {
		t.Fatalf("content MatchRow = %d, %v, %v, want 0, true, nil", idx, found, err)
	}
}

func TestMessageLifecycle(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	const dir = "mbox8"

	root := seedRoot(t, ctx, st, dir, "Root")
	dst, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: root},
		{Tag: exmdb.PropTagDisplayName, Value: "Dst"},
	})
	if err != nil {
		t.Fatalf("create Dst: %v", err)
	}

	msg, err := st.CreateMessageForTest(ctx, dir, root, "alice", false, "Hi", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateMessageForTest: %v", err)
	}

	owned, err := st.CheckMessageOwner(ctx, dir, msg, "alice")
	if err != nil || !owned {
		t.Fatalf("CheckMessageOwner = %v, %v, want true, nil", owned, err)
	}

	brief, err := st.GetMessageBrief(ctx, dir, 0, msg)
	if err != nil || brief == nil || brief.Subject != "Hi" {
		t.Fatalf("GetMessageBrief = %+v, %v", brief, err)
	}

	partial, err := st.MoveCopyMessages(ctx, dir, 1, 0, false, "alice", root, dst, false, []uint64{msg})
	if err != nil || partial {
		t.Fatalf("MoveCopyMessages = %v, %v, want false, nil", partial, err)
	}
	owned, err = st.CheckMessageOwner(ctx, dir, msg, "alice")
	if err != nil || !owned {
		t.Fatalf("CheckMessageOwner after move = %v, %v", owned, err)
	}

	partial, err = st.DeleteMessages(ctx, dir, 1, 0, "alice", dst, []uint64{msg}, true)
	if err != nil || partial {
		t.Fatalf("DeleteMessages = %v, %v, want false, nil", partial, err)
	}
	owned, err = st.CheckMessageOwner(ctx, dir, msg, "alice")
	if err != nil || owned {
		t.Fatalf("CheckMessageOwner after delete = %v, %v, want false, nil", owned, err)
	}
}

func TestPermissionRoundTrip(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	const dir = "mbox9"

	root := seedRoot(t, ctx, st, dir, "Root")

	if err := st.UpdateFolderPermission(ctx, dir, root, false, []exmdb.PermissionRow{
		{Add: true, MemberID: 7, EntryID: []byte("bob"), Rights: exmdb.RightReadAny | exmdb.RightVisible},
	}); err != nil {
		t.Fatalf("UpdateFolderPermission: %v", err)
	}

	rights, err := st.CheckFolderPermission(ctx, dir, root, "bob")
	if err != nil || rights != exmdb.RightReadAny|exmdb.RightVisible {
		t.Fatalf("CheckFolderPermission = %v, %v, want ReadAny|Visible, nil", rights, err)
	}

	rows, err := st.GetPermissionRows(ctx, dir, root)
	if err != nil || len(rows) != 1 || rows[0].MemberID != 7 {
		t.Fatalf("GetPermissionRows = %+v, %v", rows, err)
	}

	if err := st.EmptyFolderPermission(ctx, dir, root); err != nil {
		t.Fatalf("EmptyFolderPermission: %v", err)
	}
	rows, err = st.GetPermissionRows(ctx, dir, root)
	if err != nil || len(rows) != 0 {
		t.Fatalf("GetPermissionRows after empty = %+v, %v, want none", rows, err)
	}
}

func TestSearchCriteriaRoundTrip(t *testing.T) {
	st := openStore(t)
	ctx := context.Background()
	const dir = "mbox10"

	root := seedRoot(t, ctx, st, dir, "Root")
	scope, err := st.CreateFolderByProperties(ctx, dir, 0, exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: root},
		{Tag: exmdb.PropTagDisplayName, Value: "Scope"},
	})
	if err != nil {
		t.Fatalf("create Scope: %v", err)
	}

	ok, err := st.SetSearchCriteria(ctx, dir, 0, root, exmdb.SearchCriteria{
		Flags:       0x2,
		Restriction: map[string]interface{}{"op": "content", "value": "invoice"},
		ScopeFolder: []uint64{scope},
	})
	if err != nil || !ok {
		t.Fatalf("SetSearchCriteria = %v, %v, want true, nil", ok, err)
	}

	sc, err := st.GetSearchCriteria(ctx, dir, root)
	if err != nil {
		t.Fatalf("GetSearchCriteria: %v", err)
	}
	if sc.Status != exmdb.SearchStatusRunning {
		t.Errorf("Status = %v, want Running (restart flag set)", sc.Status)
	}
	if len(sc.ScopeFolder) != 1 || sc.ScopeFolder[0] != scope {
		t.Errorf("ScopeFolder = %v, want [%d]", sc.ScopeFolder, scope)
	}
}
