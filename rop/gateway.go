package rop

import (
	"context"
	"errors"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
	"github.com/obsidiangroup/gromox-sub002/folder"
	"github.com/obsidiangroup/gromox-sub002/mapierr"
)

// Gateway adapts a *Session to the shape net/rpc.Register requires:
// every exported method takes exactly (args, *reply) and returns an
// error. The mapierr.Code each Session verb already returns rides
// inside the reply struct; Gateway's error return is reserved for
// process-level faults the caller cannot recover from (a nil Session),
// never for protocol-level failure (spec.md §7).
type Gateway struct {
	Session *Session
}

// ErrNilSession is returned by every Gateway method when the Gateway
// was constructed without a Session.
var ErrNilSession = errors.New("rop: gateway has no session")

func (g *Gateway) session() (*Session, error) {
	if g == nil || g.Session == nil {
		return nil, ErrNilSession
	}
	return g.Session, nil
}

type OpenFolderArgs struct {
	Hin   uint32
	FID   uint64
	Flags folder.OpenFlag
}

type OpenFolderReply struct {
	Code   mapierr.Code
	Output OpenFolderOutput
}

func (g *Gateway) OpenFolder(args OpenFolderArgs, reply *OpenFolderReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Output = s.OpenFolder(context.Background(), args.Hin, args.FID, args.Flags)
	return nil
}

type CreateFolderArgs struct {
	Hin   uint32
	Input folder.CreateFolderInput
}

type CreateFolderReply struct {
	Code   mapierr.Code
	Output CreateFolderOutput
}

func (g *Gateway) CreateFolder(args CreateFolderArgs, reply *CreateFolderReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Output = s.CreateFolder(context.Background(), args.Hin, args.Input)
	return nil
}

type DeleteFolderArgs struct {
	Hin   uint32
	FID   uint64
	Flags folder.DeleteFlag
}

type DeleteFolderReply struct {
	Code    mapierr.Code
	Partial bool
}

func (g *Gateway) DeleteFolder(args DeleteFolderArgs, reply *DeleteFolderReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Partial = s.DeleteFolder(context.Background(), args.Hin, args.FID, args.Flags)
	return nil
}

type MoveCopyFolderArgs struct {
	Hsrc, Hdst uint32
	Src        uint64
	NewName    string
}

type MoveCopyFolderReply struct {
	Code   mapierr.Code
	Result folder.MoveCopyResult
}

func (g *Gateway) MoveFolder(args MoveCopyFolderArgs, reply *MoveCopyFolderReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Result = s.MoveFolder(context.Background(), args.Hsrc, args.Hdst, args.Src, args.NewName)
	return nil
}

func (g *Gateway) CopyFolder(args MoveCopyFolderArgs, reply *MoveCopyFolderReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Result = s.CopyFolder(context.Background(), args.Hsrc, args.Hdst, args.Src, args.NewName)
	return nil
}

type MoveCopyMessagesArgs struct {
	Hsrc, Hdst uint32
	IDs        []uint64
}

type MoveCopyMessagesReply struct {
	Code    mapierr.Code
	Partial bool
}

func (g *Gateway) MoveMessages(args MoveCopyMessagesArgs, reply *MoveCopyMessagesReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Partial = s.MoveMessages(context.Background(), args.Hsrc, args.Hdst, args.IDs)
	return nil
}

func (g *Gateway) CopyMessages(args MoveCopyMessagesArgs, reply *MoveCopyMessagesReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Partial = s.CopyMessages(context.Background(), args.Hsrc, args.Hdst, args.IDs)
	return nil
}

type EmptyFolderArgs struct {
	Hin  uint32
	Hard bool
}

type EmptyFolderReply struct {
	Code    mapierr.Code
	Partial bool
}

func (g *Gateway) EmptyFolder(args EmptyFolderArgs, reply *EmptyFolderReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Partial = s.EmptyFolder(context.Background(), args.Hin, args.Hard)
	return nil
}

type HardDeleteMessagesAndSubfoldersArgs struct {
	Hin uint32
}

type HardDeleteMessagesAndSubfoldersReply struct {
	Code    mapierr.Code
	Partial bool
}

func (g *Gateway) HardDeleteMessagesAndSubfolders(args HardDeleteMessagesAndSubfoldersArgs, reply *HardDeleteMessagesAndSubfoldersReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Partial = s.HardDeleteMessagesAndSubfolders(context.Background(), args.Hin)
	return nil
}

type HardDeleteMessagesArgs struct {
	Hin           uint32
	IDs           []uint64
	NotifyNonRead bool
}

type HardDeleteMessagesReply struct {
	Code   mapierr.Code
	Output folder.DeleteMessagesOutput
}

func (g *Gateway) HardDeleteMessages(args HardDeleteMessagesArgs, reply *HardDeleteMessagesReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Output = s.HardDeleteMessages(context.Background(), args.Hin, args.IDs, args.NotifyNonRead)
	return nil
}

type DeleteMessagesArgs struct {
	Hin           uint32
	IDs           []uint64
	NotifyNonRead bool
	Hard          bool
}

type DeleteMessagesReply struct {
	Code   mapierr.Code
	Output folder.DeleteMessagesOutput
}

func (g *Gateway) DeleteMessages(args DeleteMessagesArgs, reply *DeleteMessagesReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Output = s.DeleteMessages(context.Background(), args.Hin, args.IDs, args.NotifyNonRead, args.Hard)
	return nil
}

type SetSearchCriteriaArgs struct {
	Hin   uint32
	Input folder.SetSearchCriteriaInput
}

type SetSearchCriteriaReply struct {
	Code mapierr.Code
}

func (g *Gateway) SetSearchCriteria(args SetSearchCriteriaArgs, reply *SetSearchCriteriaReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code = s.SetSearchCriteria(context.Background(), args.Hin, args.Input)
	return nil
}

type GetSearchCriteriaArgs struct {
	Hin uint32
}

type GetSearchCriteriaReply struct {
	Code     mapierr.Code
	Criteria exmdb.SearchCriteria
}

func (g *Gateway) GetSearchCriteria(args GetSearchCriteriaArgs, reply *GetSearchCriteriaReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Criteria = s.GetSearchCriteria(context.Background(), args.Hin)
	return nil
}

type ModifyPermissionsArgs struct {
	Hin             uint32
	ReplaceRows     bool
	IncludeFreebusy bool
	Rows            []exmdb.PermissionRow
}

type ModifyPermissionsReply struct {
	Code mapierr.Code
}

func (g *Gateway) ModifyPermissions(args ModifyPermissionsArgs, reply *ModifyPermissionsReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code = s.ModifyPermissions(context.Background(), args.Hin, args.ReplaceRows, args.IncludeFreebusy, args.Rows)
	return nil
}

type GetPermissionsTableArgs struct {
	Hin uint32
}

type GetPermissionsTableReply struct {
	Code   mapierr.Code
	Output GetPermissionsTableOutput
}

func (g *Gateway) GetPermissionsTable(args GetPermissionsTableArgs, reply *GetPermissionsTableReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Output = s.GetPermissionsTable(context.Background(), args.Hin)
	return nil
}

type GetHierarchyTableArgs struct {
	Hin   uint32
	Depth bool
}

type GetHierarchyTableReply struct {
	Code   mapierr.Code
	Output GetHierarchyTableOutput
}

func (g *Gateway) GetHierarchyTable(args GetHierarchyTableArgs, reply *GetHierarchyTableReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Output = s.GetHierarchyTable(context.Background(), args.Hin, args.Depth)
	return nil
}

type GetContentsTableArgs struct {
	Hin   uint32
	Flags folder.ContentTableFlag
}

type GetContentsTableReply struct {
	Code   mapierr.Code
	Output GetContentsTableOutput
}

func (g *Gateway) GetContentsTable(args GetContentsTableArgs, reply *GetContentsTableReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	reply.Code, reply.Output = s.GetContentsTable(context.Background(), args.Hin, args.Flags)
	return nil
}

type ReleaseArgs struct {
	Hin uint32
}

type ReleaseReply struct{}

func (g *Gateway) Release(args ReleaseArgs, reply *ReleaseReply) error {
	s, err := g.session()
	if err != nil {
		return err
	}
	s.Release(args.Hin)
	return nil
}
