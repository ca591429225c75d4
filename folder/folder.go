// Package folder implements the folder object (spec.md §4.4, component
// C6) and the folder operations — the rop_* verbs (spec.md §4.7,
// component C9), described there as "the heart of the core".
//
// Every verb here is grounded on the matching rop_* function in
// oxcfold.cpp/oxcperm.cpp (original_source): the control flow,
// ordering of checks, and the "NotFound not AccessDenied" visibility
// rule are all carried over from that source, re-expressed against
// exmdb.Store instead of a raw C driver call.
package folder

import (
	"context"
	"time"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
	"github.com/obsidiangroup/gromox-sub002/idcodec"
	"github.com/obsidiangroup/gromox-sub002/logon"
	"github.com/obsidiangroup/gromox-sub002/mapierr"
	"github.com/obsidiangroup/gromox-sub002/permission"
	"github.com/obsidiangroup/gromox-sub002/table"
)

// AccessMask is the effective-access bitmask frozen on a Folder at open
// time (spec.md §3 "ACCESS_MODIFY/READ/DELETE/HIERARCHY/CONTENTS/
// FAI_CONTENTS").
type AccessMask uint32

const (
	AccessModify AccessMask = 1 << iota
	AccessRead
	AccessDelete
	AccessHierarchy
	AccessContents
	AccessFAIContents
)

// FullAccess is the mask an owner, or a freshly created folder,
// always reports (spec.md §4.7.2 step 9).
const FullAccess = AccessModify | AccessRead | AccessDelete | AccessHierarchy | AccessContents | AccessFAIContents

// computeAccessMask maps a rights bitmask to the access mask a non-owner
// session sees (spec.md §4.2, §4.7.1 step 5). Owner-mode logons and
// freshly created folders bypass this and get FullAccess directly.
func computeAccessMask(rights exmdb.Rights) AccessMask {
	var m AccessMask
	if rights&(exmdb.RightReadAny|exmdb.RightVisible|exmdb.RightOwner) != 0 {
		m |= AccessRead
	}
	if rights&exmdb.RightCreate != 0 {
		m |= AccessContents
	}
	if rights&exmdb.RightCreateSubfolder != 0 {
		m |= AccessHierarchy
	}
	if rights&(exmdb.RightDeleteAny|exmdb.RightDeleteOwned) != 0 {
		m |= AccessDelete
	}
	return m
}

// Folder is the in-core folder object (spec.md §4.4). It is
// constructed once by OpenFolder or CreateFolder; Type and Access are
// frozen at construction and never re-evaluated.
type Folder struct {
	FolderID uint64
	Type     exmdb.FolderType
	Access   AccessMask
	HasRules bool
}

const (
	maxNameLen    = 256
	maxCommentLen = 1024
)

func folderType(v interface{}) exmdb.FolderType {
	switch t := v.(type) {
	case exmdb.FolderType:
		return t
	case uint32:
		return exmdb.FolderType(t)
	default:
		return 0
	}
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func wellKnown(lg *logon.Logon) permission.WellKnown {
	return permission.WellKnown{
		PrivateRoot:       lg.PrivateRoot,
		PrivateIPMSubtree: lg.PrivateIPMSubtree,
		PublicRoot:        lg.PublicRoot,
	}
}

// evaluate is the permission.Evaluate call shared by every non-owner
// check below, bound to this logon's identity and well-known folders.
func evaluate(ctx context.Context, store exmdb.Store, lg *logon.Logon, fid uint64) (exmdb.Rights, error) {
	return permission.Evaluate(ctx, store, lg.Dir, fid, lg.Principal, lg.Owner, lg.IsPrivate(), wellKnown(lg))
}

// OpenFlag is the bitmask of OpenFolder input flags (spec.md §4.7.1).
type OpenFlag uint32

const OpenSoftDeleted OpenFlag = 1 << 0

// OpenFolder implements spec.md §4.7.1.
func OpenFolder(ctx context.Context, store exmdb.Store, lg *logon.Logon, fid uint64, flags OpenFlag) (mapierr.Code, *Folder) {
	replica, _ := idcodec.Split(fid)
	if lg.IsPrivate() {
		if replica != idcodec.ReplicaLocal {
			return mapierr.InvalidParam, nil
		}
	} else if replica != idcodec.ReplicaLocal {
		// Ghost-folder referral to the owning replica is an external
		// collaborator's job (spec.md §1 wire protocol is out of
		// scope); the core reports it as NotSupported rather than
		// fabricate a referral payload.
		return mapierr.NotSupported, nil
	}

	exists, err := store.CheckFolderID(ctx, lg.Dir, fid)
	if err != nil {
		return mapierr.Error, nil
	}
	if !exists {
		return mapierr.NotFound, nil
	}

	if !lg.IsPrivate() {
		softDeleted, err := store.CheckFolderDeleted(ctx, lg.Dir, fid)
		if err != nil {
			return mapierr.Error, nil
		}
		if softDeleted && flags&OpenSoftDeleted == 0 {
			return mapierr.NotFound, nil
		}
	}

	ftVal, err := store.GetFolderProperty(ctx, lg.Dir, 0, fid, exmdb.PropTagFolderType)
	if err != nil {
		return mapierr.Error, nil
	}
	ft := folderType(ftVal)

	var access AccessMask
	if lg.Owner {
		access = FullAccess
	} else {
		rights, err := evaluate(ctx, store, lg, fid)
		if err != nil {
			return mapierr.Error, nil
		}
		if !permission.CanOpen(rights) {
			// Intentionally NotFound, not AccessDenied (spec.md §4.7.1
			// step 5, matching Exchange 2013's invisibility behavior).
			return mapierr.NotFound, nil
		}
		access = computeAccessMask(rights)
	}

	hasRulesVal, err := store.GetFolderProperty(ctx, lg.Dir, 0, fid, exmdb.PropTagHasRules)
	if err != nil {
		return mapierr.Error, nil
	}

	return mapierr.Success, &Folder{FolderID: fid, Type: ft, Access: access, HasRules: asBool(hasRulesVal)}
}

// CreateFolderInput is the input bundle for CreateFolder (spec.md §4.7.2).
type CreateFolderInput struct {
	ParentFID    uint64
	Type         exmdb.FolderType
	OpenExisting bool
	Name         string
	Comment      string
}

// CreateFolderOutput is CreateFolder's result. IsExisting is always
// false: Exchange 2010+ convention is to report a freshly returned
// folder as not pre-existing even when it was opened via OpenExisting
// (spec.md §4.7.2 step 9).
type CreateFolderOutput struct {
	FolderID   uint64
	IsExisting bool
	Access     AccessMask
}

// CreateFolder implements spec.md §4.7.2.
func CreateFolder(ctx context.Context, store exmdb.Store, lg *logon.Logon, in CreateFolderInput) (mapierr.Code, *CreateFolderOutput) {
	if in.Type != exmdb.FolderGeneric && in.Type != exmdb.FolderSearch {
		return mapierr.InvalidParam, nil
	}
	if replica, _ := idcodec.Split(in.ParentFID); replica != idcodec.ReplicaLocal {
		return mapierr.AccessDenied, nil
	}
	if in.Type == exmdb.FolderSearch && !lg.IsPrivate() {
		return mapierr.NotSupported, nil
	}

	parentTypeVal, err := store.GetFolderProperty(ctx, lg.Dir, 0, in.ParentFID, exmdb.PropTagFolderType)
	if err != nil {
		return mapierr.Error, nil
	}
	if folderType(parentTypeVal) == exmdb.FolderSearch {
		return mapierr.NotSupported, nil
	}

	if len(in.Name) > maxNameLen || len(in.Comment) > maxCommentLen {
		return mapierr.InvalidParam, nil
	}

	if !lg.Owner {
		rights, err := evaluate(ctx, store, lg, in.ParentFID)
		if err != nil {
			return mapierr.Error, nil
		}
		if !permission.HasAny(rights, exmdb.RightOwner|exmdb.RightCreateSubfolder) {
			return mapierr.AccessDenied, nil
		}
	}

	existingFID, err := store.GetFolderByName(ctx, lg.Dir, in.ParentFID, in.Name)
	if err != nil {
		return mapierr.Error, nil
	}
	if existingFID != 0 {
		if !in.OpenExisting {
			return mapierr.DuplicateName, nil
		}
		existingTypeVal, err := store.GetFolderProperty(ctx, lg.Dir, 0, existingFID, exmdb.PropTagFolderType)
		if err != nil {
			return mapierr.Error, nil
		}
		if folderType(existingTypeVal) != in.Type {
			return mapierr.DuplicateName, nil
		}
		return mapierr.Success, &CreateFolderOutput{FolderID: existingFID, Access: FullAccess}
	}

	cn, err := store.AllocateCN(ctx, lg.Dir)
	if err != nil {
		return mapierr.Error, nil
	}
	xid := idcodec.MakeXID(lg.MailboxGUID, idcodec.ChangeNumber(cn))
	changeKey := xid.ChangeKey()
	pcl, err := idcodec.PCLAppend(nil, xid)
	if err != nil {
		return mapierr.ServerOOM, nil
	}

	now := time.Now()
	vals := exmdb.PropVals{
		{Tag: exmdb.PropTagParentFolderID, Value: in.ParentFID},
		{Tag: exmdb.PropTagFolderType, Value: in.Type},
		{Tag: exmdb.PropTagDisplayName, Value: in.Name},
		{Tag: exmdb.PropTagComment, Value: in.Comment},
		{Tag: exmdb.PropTagCreationTime, Value: now},
		{Tag: exmdb.PropTagLastModificationTime, Value: now},
		{Tag: exmdb.PropTagChangeNumber, Value: cn},
		{Tag: exmdb.PropTagChangeKey, Value: changeKey},
		{Tag: exmdb.PropTagPredecessorChangeList, Value: []byte(pcl)},
	}
	newFID, err := store.CreateFolderByProperties(ctx, lg.Dir, 0, vals)
	if err != nil {
		return mapierr.Error, nil
	}
	if newFID == 0 {
		return mapierr.Error, nil
	}

	if !lg.Owner {
		row := exmdb.PermissionRow{Add: true, MemberID: lg.AccountID, Rights: permission.Owner()}
		if err := store.UpdateFolderPermission(ctx, lg.Dir, newFID, false, []exmdb.PermissionRow{row}); err != nil {
			return mapierr.Error, nil
		}
	}

	return mapierr.Success, &CreateFolderOutput{FolderID: newFID, Access: FullAccess}
}

// DeleteFlag is the bitmask of DeleteFolder input flags (spec.md §4.7.3).
type DeleteFlag uint32

const (
	DelMessages     DeleteFlag = 1 << 0
	DelFolders      DeleteFlag = 1 << 1
	DelHardDelete   DeleteFlag = 1 << 2
)

// DeleteFolder implements spec.md §4.7.3. The returned bool is the
// partial-completion flag.
func DeleteFolder(ctx context.Context, store exmdb.Store, lg *logon.Logon, fid uint64, flags DeleteFlag) (mapierr.Code, bool) {
	if fid < lg.CustomFolderThreshold() {
		return mapierr.AccessDenied, false
	}
	if !lg.Owner {
		rights, err := evaluate(ctx, store, lg, fid)
		if err != nil {
			return mapierr.Error, false
		}
		if !permission.Has(rights, exmdb.RightOwner) {
			return mapierr.AccessDenied, false
		}
	}

	exists, err := store.CheckFolderID(ctx, lg.Dir, fid)
	if err != nil {
		return mapierr.Error, false
	}
	if !exists {
		return mapierr.Success, false
	}

	ftVal, err := store.GetFolderProperty(ctx, lg.Dir, 0, fid, exmdb.PropTagFolderType)
	if err != nil {
		return mapierr.Error, false
	}
	isSearch := folderType(ftVal) == exmdb.FolderSearch
	hard := flags&DelHardDelete != 0

	if !(lg.IsPrivate() && isSearch) && flags&(DelMessages|DelFolders) != 0 {
		partial, err := store.EmptyFolder(ctx, lg.Dir, 0, lg.Principal, fid, hard, flags&DelMessages != 0, false, flags&DelFolders != 0)
		if err != nil {
			return mapierr.Error, false
		}
		if partial {
			return mapierr.Success, true
		}
	}

	done, err := store.DeleteFolder(ctx, lg.Dir, 0, fid, hard)
	if err != nil {
		return mapierr.Error, false
	}
	return mapierr.Success, !done
}

// MoveCopyResult reports the outcome of a folder or message move/copy
// (spec.md §4.7.4).
type MoveCopyResult struct {
	Partial bool
}

// MoveFolder implements spec.md §4.7.4 for folders, isCopy=false.
func MoveFolder(ctx context.Context, store exmdb.Store, lg *logon.Logon, srcParent, src, dst uint64, newName string) (mapierr.Code, MoveCopyResult) {
	return moveCopyFolder(ctx, store, lg, srcParent, src, dst, newName, false)
}

// CopyFolder implements spec.md §4.7.4 for folders, isCopy=true.
func CopyFolder(ctx context.Context, store exmdb.Store, lg *logon.Logon, srcParent, src, dst uint64, newName string) (mapierr.Code, MoveCopyResult) {
	return moveCopyFolder(ctx, store, lg, srcParent, src, dst, newName, true)
}

func moveCopyFolder(ctx context.Context, store exmdb.Store, lg *logon.Logon, srcParent, src, dst uint64, newName string, isCopy bool) (mapierr.Code, MoveCopyResult) {
	if src < lg.CustomFolderThreshold() {
		return mapierr.AccessDenied, MoveCopyResult{}
	}

	dstTypeVal, err := store.GetFolderProperty(ctx, lg.Dir, 0, dst, exmdb.PropTagFolderType)
	if err != nil {
		return mapierr.Error, MoveCopyResult{}
	}
	if folderType(dstTypeVal) == exmdb.FolderSearch {
		return mapierr.NotSupported, MoveCopyResult{}
	}

	if len(newName) > maxNameLen {
		return mapierr.InvalidParam, MoveCopyResult{}
	}

	if !lg.Owner {
		srcRights, err := evaluate(ctx, store, lg, src)
		if err != nil {
			return mapierr.Error, MoveCopyResult{}
		}
		if isCopy {
			if !permission.HasAny(srcRights, exmdb.RightReadAny|exmdb.RightOwner) {
				return mapierr.AccessDenied, MoveCopyResult{}
			}
		} else if !permission.Has(srcRights, exmdb.RightOwner) {
			return mapierr.AccessDenied, MoveCopyResult{}
		}

		dstRights, err := evaluate(ctx, store, lg, dst)
		if err != nil {
			return mapierr.Error, MoveCopyResult{}
		}
		if !permission.HasAny(dstRights, exmdb.RightOwner|exmdb.RightCreateSubfolder) {
			return mapierr.AccessDenied, MoveCopyResult{}
		}
	}

	cyclic, err := store.CheckFolderCycle(ctx, lg.Dir, src, dst)
	if err != nil {
		return mapierr.Error, MoveCopyResult{}
	}
	if cyclic {
		return mapierr.FolderCycle, MoveCopyResult{}
	}

	var cn uint64
	var changeKey []byte
	var newPCL idcodec.PCL
	if !isCopy {
		cn, err = store.AllocateCN(ctx, lg.Dir)
		if err != nil {
			return mapierr.Error, MoveCopyResult{}
		}
		xid := idcodec.MakeXID(lg.MailboxGUID, idcodec.ChangeNumber(cn))
		changeKey = xid.ChangeKey()

		pclVal, err := store.GetFolderProperty(ctx, lg.Dir, 0, src, exmdb.PropTagPredecessorChangeList)
		if err != nil {
			return mapierr.Error, MoveCopyResult{}
		}
		existingPCL, _ := pclVal.([]byte)
		newPCL, err = idcodec.PCLAppend(idcodec.PCL(existingPCL), xid)
		if err != nil {
			return mapierr.ServerOOM, MoveCopyResult{}
		}
	}

	result, err := store.MoveCopyFolder(ctx, lg.Dir, lg.AccountID, 0, !lg.Owner, lg.Principal, srcParent, src, dst, newName, isCopy)
	if err != nil {
		return mapierr.Error, MoveCopyResult{}
	}
	if result.DestinationExisted {
		return mapierr.DuplicateName, MoveCopyResult{}
	}

	if !isCopy {
		_, err := store.SetFolderProperties(ctx, lg.Dir, 0, src, exmdb.PropVals{
			{Tag: exmdb.PropTagChangeNumber, Value: cn},
			{Tag: exmdb.PropTagChangeKey, Value: changeKey},
			{Tag: exmdb.PropTagPredecessorChangeList, Value: []byte(newPCL)},
			{Tag: exmdb.PropTagLastModificationTime, Value: time.Now()},
		})
		if err != nil {
			return mapierr.Error, MoveCopyResult{}
		}
	}

	return mapierr.Success, MoveCopyResult{Partial: result.Partial}
}

// MoveMessages implements spec.md §4.7.4 for messages, isCopy=false.
func MoveMessages(ctx context.Context, store exmdb.Store, lg *logon.Logon, src, dst uint64, ids []uint64) (mapierr.Code, bool) {
	return moveCopyMessages(ctx, store, lg, src, dst, ids, false)
}

// CopyMessages implements spec.md §4.7.4 for messages, isCopy=true.
func CopyMessages(ctx context.Context, store exmdb.Store, lg *logon.Logon, src, dst uint64, ids []uint64) (mapierr.Code, bool) {
	return moveCopyMessages(ctx, store, lg, src, dst, ids, true)
}

func moveCopyMessages(ctx context.Context, store exmdb.Store, lg *logon.Logon, src, dst uint64, ids []uint64, isCopy bool) (mapierr.Code, bool) {
	if !lg.Owner {
		dstRights, err := evaluate(ctx, store, lg, dst)
		if err != nil {
			return mapierr.Error, false
		}
		if !permission.Has(dstRights, exmdb.RightCreate) {
			return mapierr.AccessDenied, false
		}
	}
	partial, err := store.MoveCopyMessages(ctx, lg.Dir, lg.AccountID, 0, !lg.Owner, lg.Principal, src, dst, isCopy, ids)
	if err != nil {
		return mapierr.Error, false
	}
	return mapierr.Success, partial
}

// EmptyFolder implements spec.md §4.7.5. hard selects
// HardDeleteMessagesAndSubfolders over the soft variant; both rop_*
// verbs share this logic, differing only in the hard flag the caller
// supplies.
func EmptyFolder(ctx context.Context, store exmdb.Store, lg *logon.Logon, fid uint64, hard bool) (mapierr.Code, bool) {
	if !lg.IsPrivate() {
		return mapierr.NotSupported, false
	}
	if fid == lg.PrivateRoot || fid == lg.PrivateIPMSubtree {
		return mapierr.AccessDenied, false
	}
	if !lg.Owner {
		rights, err := evaluate(ctx, store, lg, fid)
		if err != nil {
			return mapierr.Error, false
		}
		if !permission.HasAny(rights, exmdb.RightDeleteAny|exmdb.RightDeleteOwned) {
			return mapierr.AccessDenied, false
		}
	}
	partial, err := store.EmptyFolder(ctx, lg.Dir, 0, lg.Principal, fid, hard, true, true, true)
	if err != nil {
		return mapierr.Error, false
	}
	return mapierr.Success, partial
}

// DeleteMessagesOutput is DeleteMessages' result (spec.md §4.7.6).
type DeleteMessagesOutput struct {
	Partial bool
}

// DeleteMessages implements spec.md §4.7.6. hard selects
// HardDeleteMessages; both rop_* verbs share this logic.
func DeleteMessages(ctx context.Context, store exmdb.Store, dispatcher exmdb.ReceiptDispatcher, lg *logon.Logon, fid uint64, ids []uint64, notifyNonRead, hard bool) (mapierr.Code, DeleteMessagesOutput) {
	var rights exmdb.Rights
	if !lg.Owner {
		var err error
		rights, err = evaluate(ctx, store, lg, fid)
		if err != nil {
			return mapierr.Error, DeleteMessagesOutput{}
		}
		if !permission.HasAny(rights, exmdb.RightDeleteAny|exmdb.RightDeleteOwned) {
			return mapierr.AccessDenied, DeleteMessagesOutput{}
		}
	}
	restrictToOwned := !lg.Owner && !permission.Has(rights, exmdb.RightDeleteAny)

	candidates := ids
	if restrictToOwned {
		var owned []uint64
		for _, mid := range ids {
			isOwner, err := store.CheckMessageOwner(ctx, lg.Dir, mid, lg.Principal)
			if err != nil {
				return mapierr.Error, DeleteMessagesOutput{}
			}
			if isOwner {
				owned = append(owned, mid)
			}
		}
		candidates = owned
	}

	if !notifyNonRead {
		partial, err := store.DeleteMessages(ctx, lg.Dir, lg.AccountID, 0, lg.Principal, fid, candidates, hard)
		if err != nil {
			return mapierr.Error, DeleteMessagesOutput{}
		}
		return mapierr.Success, DeleteMessagesOutput{Partial: partial}
	}

	partial := false
	var toDelete []uint64
	for _, mid := range candidates {
		vals, err := store.GetMessageProperties(ctx, lg.Dir, mid, []exmdb.PropTag{exmdb.PropTagNonReceiptNotificationRequest, exmdb.PropTagRead})
		if err != nil {
			partial = true
			continue
		}
		notifyReq, _ := vals.Get(exmdb.PropTagNonReceiptNotificationRequest)
		readVal, _ := vals.Get(exmdb.PropTagRead)
		if asBool(notifyReq) && !asBool(readVal) {
			brief, err := store.GetMessageBrief(ctx, lg.Dir, 0, mid)
			if err != nil {
				partial = true
				continue
			}
			if dispatcher != nil {
				if err := dispatcher.DispatchNonReadReceipt(ctx, lg.Dir, brief); err != nil {
					partial = true
				}
			}
		}
		toDelete = append(toDelete, mid)
	}

	if len(toDelete) > 0 {
		p, err := store.DeleteMessages(ctx, lg.Dir, lg.AccountID, 0, lg.Principal, fid, toDelete, hard)
		if err != nil {
			return mapierr.Error, DeleteMessagesOutput{}
		}
		if p {
			partial = true
		}
	}
	return mapierr.Success, DeleteMessagesOutput{Partial: partial}
}

// Search criteria flag bits (spec.md §4.7.7).
const (
	SearchFlagStop      uint32 = 1 << 0
	SearchFlagRestart   uint32 = 1 << 1
	SearchFlagRecursive uint32 = 1 << 2
	SearchFlagShallow   uint32 = 1 << 3
)

// SetSearchCriteriaInput is SetSearchCriteria's input (spec.md §4.7.7).
type SetSearchCriteriaInput struct {
	Flags       uint32
	Restriction interface{}
	ScopeFolder []uint64
}

// SetSearchCriteria implements spec.md §4.7.7.
func SetSearchCriteria(ctx context.Context, store exmdb.Store, lg *logon.Logon, fid uint64, in SetSearchCriteriaInput) mapierr.Code {
	if !lg.IsPrivate() {
		return mapierr.NotSupported
	}
	ftVal, err := store.GetFolderProperty(ctx, lg.Dir, 0, fid, exmdb.PropTagFolderType)
	if err != nil {
		return mapierr.Error
	}
	if folderType(ftVal) != exmdb.FolderSearch {
		return mapierr.NotSearchFolder
	}

	if !lg.Owner {
		rights, err := evaluate(ctx, store, lg, fid)
		if err != nil {
			return mapierr.Error
		}
		if !permission.Has(rights, exmdb.RightOwner) {
			return mapierr.AccessDenied
		}
		for _, scope := range in.ScopeFolder {
			scopeRights, err := evaluate(ctx, store, lg, scope)
			if err != nil {
				return mapierr.Error
			}
			if !permission.HasAny(scopeRights, exmdb.RightOwner|exmdb.RightReadAny) {
				return mapierr.AccessDenied
			}
		}
	}

	for _, scope := range in.ScopeFolder {
		if replica, _ := idcodec.Split(scope); replica != idcodec.ReplicaLocal {
			return mapierr.SearchFolderScopeViolation
		}
	}

	flags := in.Flags
	if flags&(SearchFlagStop|SearchFlagRestart) == 0 {
		flags |= SearchFlagStop
	}
	if flags&(SearchFlagRecursive|SearchFlagShallow) == 0 {
		flags |= SearchFlagShallow
	}

	if in.Restriction == nil && len(in.ScopeFolder) == 0 && flags&SearchFlagRestart == 0 {
		return mapierr.Success
	}

	sc := exmdb.SearchCriteria{Flags: flags, Restriction: in.Restriction, ScopeFolder: in.ScopeFolder}
	ok, err := store.SetSearchCriteria(ctx, lg.Dir, 0, fid, sc)
	if err != nil {
		return mapierr.Error
	}
	if !ok {
		return mapierr.Error
	}
	return mapierr.Success
}

// GetSearchCriteria implements spec.md §4.7.7.
func GetSearchCriteria(ctx context.Context, store exmdb.Store, lg *logon.Logon, fid uint64) (mapierr.Code, exmdb.SearchCriteria) {
	if !lg.IsPrivate() {
		return mapierr.NotSupported, exmdb.SearchCriteria{}
	}
	ftVal, err := store.GetFolderProperty(ctx, lg.Dir, 0, fid, exmdb.PropTagFolderType)
	if err != nil {
		return mapierr.Error, exmdb.SearchCriteria{}
	}
	if folderType(ftVal) != exmdb.FolderSearch {
		return mapierr.NotSearchFolder, exmdb.SearchCriteria{}
	}
	sc, err := store.GetSearchCriteria(ctx, lg.Dir, fid)
	if err != nil {
		return mapierr.Error, exmdb.SearchCriteria{}
	}
	return mapierr.Success, sc
}

// ModifyPermissions implements spec.md §4.7.8.
func ModifyPermissions(ctx context.Context, store exmdb.Store, lg *logon.Logon, fid uint64, replaceRows, includeFreebusy bool, rows []exmdb.PermissionRow) mapierr.Code {
	if !lg.Owner {
		rights, err := evaluate(ctx, store, lg, fid)
		if err != nil {
			return mapierr.Error
		}
		if !permission.Has(rights, exmdb.RightOwner) {
			return mapierr.AccessDenied
		}
	}

	freebusy := includeFreebusy && fid == lg.PrivateCalendar

	if replaceRows {
		if err := store.EmptyFolderPermission(ctx, lg.Dir, fid); err != nil {
			return mapierr.Error
		}
		if len(rows) == 0 {
			return mapierr.Success
		}
	}

	if err := store.UpdateFolderPermission(ctx, lg.Dir, fid, freebusy, rows); err != nil {
		return mapierr.Error
	}
	return mapierr.Success
}

// GetPermissionsTable implements spec.md §4.7.8's read side, returning a
// table.Table view over the folder's ACL rows.
func GetPermissionsTable(ctx context.Context, store exmdb.Store, lg *logon.Logon, fid uint64) (mapierr.Code, *table.Table) {
	rows, err := store.GetPermissionRows(ctx, lg.Dir, fid)
	if err != nil {
		return mapierr.Error, nil
	}
	ids := make([]uint64, len(rows))
	for i, r := range rows {
		ids[i] = uint64(r.MemberID)
	}
	return mapierr.Success, table.New(table.Permission, 0, &sliceRows{ids: ids})
}

// GetHierarchyTable implements spec.md §4.7.9's hierarchy-table side.
func GetHierarchyTable(ctx context.Context, store exmdb.Store, lg *logon.Logon, fid uint64, depth bool) (mapierr.Code, *table.Table) {
	if !lg.Owner {
		rights, err := evaluate(ctx, store, lg, fid)
		if err != nil {
			return mapierr.Error, nil
		}
		if !permission.HasAny(rights, exmdb.RightReadAny|exmdb.RightOwner) {
			return mapierr.AccessDenied, nil
		}
	}
	rows, err := store.OpenHierarchyTable(ctx, lg.Dir, fid, lg.Principal, depth)
	if err != nil {
		return mapierr.Error, nil
	}
	var flags table.Flags
	if depth {
		flags |= table.FlagDepth
	}
	return mapierr.Success, table.New(table.Hierarchy, flags, rows)
}

// ContentTableFlag is the bitmask of GetContentsTable input flags
// (spec.md §4.7.9).
type ContentTableFlag uint32

const (
	ContentAssociated          ContentTableFlag = 1 << 0
	ContentSoftDeletes         ContentTableFlag = 1 << 1
	ContentConversationMembers ContentTableFlag = 1 << 2
)

// GetContentsTable implements spec.md §4.7.9's contents-table side.
func GetContentsTable(ctx context.Context, store exmdb.Store, lg *logon.Logon, fid uint64, flags ContentTableFlag) (mapierr.Code, *table.Table) {
	if flags&ContentAssociated != 0 && flags&ContentConversationMembers != 0 {
		return mapierr.InvalidParam, nil
	}
	conversation := flags&ContentConversationMembers != 0
	if conversation {
		if lg.IsPrivate() && fid != lg.PrivateRoot {
			return mapierr.InvalidParam, nil
		}
		// Conversation tables skip the ACL check and report rows once
		// the client queries them (spec.md §4.7.9).
	} else if !lg.Owner {
		rights, err := evaluate(ctx, store, lg, fid)
		if err != nil {
			return mapierr.Error, nil
		}
		if !permission.HasAny(rights, exmdb.RightReadAny|exmdb.RightOwner) {
			return mapierr.AccessDenied, nil
		}
	}

	rows, err := store.OpenContentTable(ctx, lg.Dir, fid, lg.Principal, flags&ContentAssociated != 0, flags&ContentSoftDeletes != 0, conversation)
	if err != nil {
		return mapierr.Error, nil
	}
	var tf table.Flags
	if flags&ContentAssociated != 0 {
		tf |= table.FlagAssociated
	}
	if flags&ContentSoftDeletes != 0 {
		tf |= table.FlagSoftDeletes
	}
	if conversation {
		tf |= table.FlagConversationMembers
	}
	return mapierr.Success, table.New(table.Content, tf, rows)
}

// sliceRows is a table.RowSource materialized eagerly from a fixed id
// list, used for the permission table (ACLs are small enough that a
// live driver-side cursor buys nothing here).
type sliceRows struct {
	ids []uint64
}

func (r *sliceRows) Total(ctx context.Context) (int, error) { return len(r.ids), nil }

func (r *sliceRows) FetchRows(ctx context.Context, start, count int) ([]uint64, error) {
	if start < 0 || start >= len(r.ids) {
		return nil, nil
	}
	end := start + count
	if end > len(r.ids) {
		end = len(r.ids)
	}
	return r.ids[start:end], nil
}

func (r *sliceRows) MatchRow(ctx context.Context, start int, forward bool, restriction interface{}) (int, bool, error) {
	want, _ := restriction.(uint64)
	if forward {
		for i := start; i < len(r.ids); i++ {
			if r.ids[i] == want {
				return i, true, nil
			}
		}
		return 0, false, nil
	}
	for i := start; i >= 0 && i < len(r.ids); i-- {
		if r.ids[i] == want {
			return i, true, nil
		}
	}
	return 0, false, nil
}
