// Package rop implements the RPC surface (spec.md §6.2, component "RPC
// surface"): one Session per inbound logon, exposing a method for every
// rop_* folder/message/table verb, wiring the handle map, logon
// identity, and store driver together.
//
// Grounded on oxcfold.cpp/oxcperm.cpp (original_source): each method
// below reproduces that file's rop_* control flow — fetch+type-check
// the input handle via rop_processor_get_object, then delegate to the
// folder/table core — but the permission/business logic itself already
// lives in package folder, so these methods are thin. Every method
// returns a mapierr.Code, never a Go error, for protocol-level failure
// (spec.md §7); error is reserved for process-level faults such as a
// nil Session.
package rop

import (
	"context"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
	"github.com/obsidiangroup/gromox-sub002/folder"
	"github.com/obsidiangroup/gromox-sub002/handle"
	"github.com/obsidiangroup/gromox-sub002/logon"
	"github.com/obsidiangroup/gromox-sub002/mapierr"
	"github.com/obsidiangroup/gromox-sub002/table"
)

// Session is a single authenticated logon's RPC-visible state: its
// identity, its handle table, and the store driver it talks to.
type Session struct {
	Logon      *logon.Logon
	Handles    *handle.Map
	Store      exmdb.Store
	Dispatcher exmdb.ReceiptDispatcher
}

// NewSession constructs a Session with the logon object installed at
// handle 0 (spec.md §3).
func NewSession(lg *logon.Logon, store exmdb.Store, dispatcher exmdb.ReceiptDispatcher) *Session {
	return &Session{
		Logon:      lg,
		Handles:    handle.New(lg),
		Store:      store,
		Dispatcher: dispatcher,
	}
}

// codeForHandleErr maps a handle-map error to the mapierr.Code a caller
// sees (spec.md §7 "Resource": ServerOOM is handle.ErrExhausted).
func codeForHandleErr(err error) mapierr.Code {
	switch err {
	case handle.ErrNotFound:
		return mapierr.NullObject
	case handle.ErrWrongType:
		return mapierr.NotSupported
	case handle.ErrExhausted:
		return mapierr.ServerOOM
	default:
		return mapierr.Error
	}
}

// requireOpen validates hin names a live Logon or Folder object in this
// session (rop_processor_get_object's OBJECT_TYPE_LOGON/OBJECT_TYPE_FOLDER
// check). The target folder/message ids the verbs below operate on are
// explicit parameters, not derived from hin: in oxcfold.cpp hin is only
// ever the caller's currently-open input object, used to validate the
// call is well-formed in this session.
func (s *Session) requireOpen(hin uint32) error {
	_, typ, err := s.Handles.GetAny(hin)
	if err != nil {
		return err
	}
	if typ != handle.TypeLogon && typ != handle.TypeFolder {
		return handle.ErrWrongType
	}
	return nil
}

// requireFolder resolves hin to its *folder.Folder, the form every
// single-handle folder verb below (EmptyFolder, DeleteMessages,
// SetSearchCriteria, ...) needs: those rop_* functions take no separate
// folder_id parameter, operating directly on the object behind hin.
func (s *Session) requireFolder(hin uint32) (*folder.Folder, error) {
	obj, err := s.Handles.Get(hin, handle.TypeFolder)
	if err != nil {
		return nil, err
	}
	return obj.(*folder.Folder), nil
}

// OpenFolderOutput is OpenFolder's result.
type OpenFolderOutput struct {
	Handle   uint32
	Type     exmdb.FolderType
	HasRules bool
}

// OpenFolder implements rop_openfolder.
func (s *Session) OpenFolder(ctx context.Context, hin uint32, fid uint64, flags folder.OpenFlag) (mapierr.Code, OpenFolderOutput) {
	if err := s.requireOpen(hin); err != nil {
		return codeForHandleErr(err), OpenFolderOutput{}
	}
	code, f := folder.OpenFolder(ctx, s.Store, s.Logon, fid, flags)
	if !code.Ok() {
		return code, OpenFolderOutput{}
	}
	h, err := s.Handles.Add(hin, handle.TypeFolder, f)
	if err != nil {
		return codeForHandleErr(err), OpenFolderOutput{}
	}
	return mapierr.Success, OpenFolderOutput{Handle: h, Type: f.Type, HasRules: f.HasRules}
}

// CreateFolderOutput is CreateFolder's result.
type CreateFolderOutput struct {
	Handle     uint32
	FolderID   uint64
	IsExisting bool
}

// CreateFolder implements rop_createfolder.
func (s *Session) CreateFolder(ctx context.Context, hin uint32, in folder.CreateFolderInput) (mapierr.Code, CreateFolderOutput) {
	if err := s.requireOpen(hin); err != nil {
		return codeForHandleErr(err), CreateFolderOutput{}
	}
	code, out := folder.CreateFolder(ctx, s.Store, s.Logon, in)
	if !code.Ok() {
		return code, CreateFolderOutput{}
	}
	f := &folder.Folder{FolderID: out.FolderID, Type: in.Type, Access: out.Access}
	h, err := s.Handles.Add(hin, handle.TypeFolder, f)
	if err != nil {
		return codeForHandleErr(err), CreateFolderOutput{}
	}
	return mapierr.Success, CreateFolderOutput{Handle: h, FolderID: out.FolderID, IsExisting: out.IsExisting}
}

// DeleteFolder implements rop_deletefolder. hin is the handle of the
// parent folder object the delete is invoked on; fid names the child
// being deleted.
func (s *Session) DeleteFolder(ctx context.Context, hin uint32, fid uint64, flags folder.DeleteFlag) (mapierr.Code, bool) {
	if _, err := s.requireFolder(hin); err != nil {
		return codeForHandleErr(err), false
	}
	return folder.DeleteFolder(ctx, s.Store, s.Logon, fid, flags)
}

// MoveFolder implements rop_movefolder. hsrc/hdst are the source and
// destination parent folder handles; src is the folder being moved.
func (s *Session) MoveFolder(ctx context.Context, hsrc, hdst uint32, src uint64, newName string) (mapierr.Code, folder.MoveCopyResult) {
	srcParent, err := s.requireFolder(hsrc)
	if err != nil {
		return codeForHandleErr(err), folder.MoveCopyResult{}
	}
	dst, err := s.requireFolder(hdst)
	if err != nil {
		return codeForHandleErr(err), folder.MoveCopyResult{}
	}
	return folder.MoveFolder(ctx, s.Store, s.Logon, srcParent.FolderID, src, dst.FolderID, newName)
}

// CopyFolder implements rop_copyfolder.
func (s *Session) CopyFolder(ctx context.Context, hsrc, hdst uint32, src uint64, newName string) (mapierr.Code, folder.MoveCopyResult) {
	srcParent, err := s.requireFolder(hsrc)
	if err != nil {
		return codeForHandleErr(err), folder.MoveCopyResult{}
	}
	dst, err := s.requireFolder(hdst)
	if err != nil {
		return codeForHandleErr(err), folder.MoveCopyResult{}
	}
	return folder.CopyFolder(ctx, s.Store, s.Logon, srcParent.FolderID, src, dst.FolderID, newName)
}

// MoveMessages implements rop_movecopymessages, isCopy=false. hsrc/hdst
// are the source and destination folder handles.
func (s *Session) MoveMessages(ctx context.Context, hsrc, hdst uint32, ids []uint64) (mapierr.Code, bool) {
	src, err := s.requireFolder(hsrc)
	if err != nil {
		return codeForHandleErr(err), false
	}
	dst, err := s.requireFolder(hdst)
	if err != nil {
		return codeForHandleErr(err), false
	}
	return folder.MoveMessages(ctx, s.Store, s.Logon, src.FolderID, dst.FolderID, ids)
}

// CopyMessages implements rop_movecopymessages, isCopy=true.
func (s *Session) CopyMessages(ctx context.Context, hsrc, hdst uint32, ids []uint64) (mapierr.Code, bool) {
	src, err := s.requireFolder(hsrc)
	if err != nil {
		return codeForHandleErr(err), false
	}
	dst, err := s.requireFolder(hdst)
	if err != nil {
		return codeForHandleErr(err), false
	}
	return folder.CopyMessages(ctx, s.Store, s.Logon, src.FolderID, dst.FolderID, ids)
}

// EmptyFolder implements rop_emptyfolder (hard=false) and
// rop_harddeletemessagesandsubfolders (hard=true); both share
// folder.EmptyFolder, differing only in the hard flag.
func (s *Session) EmptyFolder(ctx context.Context, hin uint32, hard bool) (mapierr.Code, bool) {
	f, err := s.requireFolder(hin)
	if err != nil {
		return codeForHandleErr(err), false
	}
	return folder.EmptyFolder(ctx, s.Store, s.Logon, f.FolderID, hard)
}

// DeleteMessages implements rop_deletemessages (hard=false) and
// rop_harddeletemessages (hard=true).
func (s *Session) DeleteMessages(ctx context.Context, hin uint32, ids []uint64, notifyNonRead, hard bool) (mapierr.Code, folder.DeleteMessagesOutput) {
	f, err := s.requireFolder(hin)
	if err != nil {
		return codeForHandleErr(err), folder.DeleteMessagesOutput{}
	}
	return folder.DeleteMessages(ctx, s.Store, s.Dispatcher, s.Logon, f.FolderID, ids, notifyNonRead, hard)
}

// HardDeleteMessagesAndSubfolders implements
// rop_harddeletemessagesandsubfolders, a named alias over EmptyFolder
// with hard=true.
func (s *Session) HardDeleteMessagesAndSubfolders(ctx context.Context, hin uint32) (mapierr.Code, bool) {
	return s.EmptyFolder(ctx, hin, true)
}

// HardDeleteMessages implements rop_harddeletemessages, a named alias
// over DeleteMessages with hard=true.
func (s *Session) HardDeleteMessages(ctx context.Context, hin uint32, ids []uint64, notifyNonRead bool) (mapierr.Code, folder.DeleteMessagesOutput) {
	return s.DeleteMessages(ctx, hin, ids, notifyNonRead, true)
}

// SetSearchCriteria implements rop_setsearchcriteria.
func (s *Session) SetSearchCriteria(ctx context.Context, hin uint32, in folder.SetSearchCriteriaInput) mapierr.Code {
	f, err := s.requireFolder(hin)
	if err != nil {
		return codeForHandleErr(err)
	}
	return folder.SetSearchCriteria(ctx, s.Store, s.Logon, f.FolderID, in)
}

// GetSearchCriteria implements rop_getsearchcriteria.
func (s *Session) GetSearchCriteria(ctx context.Context, hin uint32) (mapierr.Code, exmdb.SearchCriteria) {
	f, err := s.requireFolder(hin)
	if err != nil {
		return codeForHandleErr(err), exmdb.SearchCriteria{}
	}
	return folder.GetSearchCriteria(ctx, s.Store, s.Logon, f.FolderID)
}

// ModifyPermissions implements rop_modifypermissions (oxcperm.cpp).
func (s *Session) ModifyPermissions(ctx context.Context, hin uint32, replaceRows, includeFreebusy bool, rows []exmdb.PermissionRow) mapierr.Code {
	f, err := s.requireFolder(hin)
	if err != nil {
		return codeForHandleErr(err)
	}
	return folder.ModifyPermissions(ctx, s.Store, s.Logon, f.FolderID, replaceRows, includeFreebusy, rows)
}

// GetPermissionsTableOutput is GetPermissionsTable's result.
type GetPermissionsTableOutput struct {
	Handle uint32
}

// GetPermissionsTable implements rop_getpermissionstable.
func (s *Session) GetPermissionsTable(ctx context.Context, hin uint32) (mapierr.Code, GetPermissionsTableOutput) {
	f, err := s.requireFolder(hin)
	if err != nil {
		return codeForHandleErr(err), GetPermissionsTableOutput{}
	}
	code, t := folder.GetPermissionsTable(ctx, s.Store, s.Logon, f.FolderID)
	if !code.Ok() {
		return code, GetPermissionsTableOutput{}
	}
	h, err := s.installTable(hin, t)
	if err != nil {
		return codeForHandleErr(err), GetPermissionsTableOutput{}
	}
	return mapierr.Success, GetPermissionsTableOutput{Handle: h}
}

// GetHierarchyTableOutput is GetHierarchyTable's result.
type GetHierarchyTableOutput struct {
	Handle   uint32
	RowCount int
}

// GetHierarchyTable implements rop_gethierarchytable.
func (s *Session) GetHierarchyTable(ctx context.Context, hin uint32, depth bool) (mapierr.Code, GetHierarchyTableOutput) {
	f, err := s.requireFolder(hin)
	if err != nil {
		return codeForHandleErr(err), GetHierarchyTableOutput{}
	}
	code, t := folder.GetHierarchyTable(ctx, s.Store, s.Logon, f.FolderID, depth)
	if !code.Ok() {
		return code, GetHierarchyTableOutput{}
	}
	h, err := s.installTable(hin, t)
	if err != nil {
		return codeForHandleErr(err), GetHierarchyTableOutput{}
	}
	n, _ := t.GetTotal(ctx)
	return mapierr.Success, GetHierarchyTableOutput{Handle: h, RowCount: n}
}

// GetContentsTableOutput is GetContentsTable's result.
type GetContentsTableOutput struct {
	Handle   uint32
	RowCount int
}

// GetContentsTable implements rop_getcontentstable.
func (s *Session) GetContentsTable(ctx context.Context, hin uint32, flags folder.ContentTableFlag) (mapierr.Code, GetContentsTableOutput) {
	f, err := s.requireFolder(hin)
	if err != nil {
		return codeForHandleErr(err), GetContentsTableOutput{}
	}
	code, t := folder.GetContentsTable(ctx, s.Store, s.Logon, f.FolderID, flags)
	if !code.Ok() {
		return code, GetContentsTableOutput{}
	}
	h, err := s.installTable(hin, t)
	if err != nil {
		return codeForHandleErr(err), GetContentsTableOutput{}
	}
	n, _ := t.GetTotal(ctx)
	return mapierr.Success, GetContentsTableOutput{Handle: h, RowCount: n}
}

func (s *Session) installTable(parent uint32, t *table.Table) (uint32, error) {
	return s.Handles.Add(parent, handle.TypeTable, t)
}

// Release implements rop_release: it drops hin and every handle in its
// descendant subtree, running any Releaser cleanup (spec.md §3
// "Lifecycle summary").
func (s *Session) Release(hin uint32) {
	s.Handles.Release(hin)
}
