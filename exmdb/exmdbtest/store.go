// Package exmdbtest is an in-memory exmdb.Store double used by this
// module's own tests. It is not a production store driver (spec.md §1
// places the store engine out of scope); it exists only to exercise
// every rop_* verb without a real backing database.
package exmdbtest

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
	"github.com/obsidiangroup/gromox-sub002/idcodec"
)

type folderRow struct {
	id       uint64
	parent   uint64
	ftype    exmdb.FolderType
	props    exmdb.PropVals
	deleted  bool
	children []uint64 // ids of direct children, in creation order
}

type messageRow struct {
	id      uint64
	folder  uint64
	owner   string
	fai     bool
	deleted bool
	props   exmdb.PropVals
}

// Store is an in-memory, mutex-guarded exmdb.Store implementation.
type Store struct {
	mu sync.Mutex

	nextID   uint64
	nextCN   uint64
	folders  map[uint64]*folderRow
	messages map[uint64]*messageRow
	acl      map[uint64]map[string]exmdb.Rights
	search   map[uint64]exmdb.SearchCriteria

	// Receipts records DispatchNonReadReceipt calls, for test assertions.
	Receipts []exmdb.MessageBrief
}

// New returns an empty store.
func New() *Store {
	return &Store{
		nextID:   1,
		folders:  make(map[uint64]*folderRow),
		messages: make(map[uint64]*messageRow),
		acl:      make(map[uint64]map[string]exmdb.Rights),
		search:   make(map[uint64]exmdb.SearchCriteria),
	}
}

// nextLocalID allocates the next id on the local replica (spec.md §3
// "replica id 1 when owned locally"), mirroring how a real driver
// issues ids the core can round-trip through idcodec.Split.
func (s *Store) nextLocalID() uint64 {
	n := s.nextID
	s.nextID++
	return idcodec.MakeID(idcodec.ReplicaLocal, n)
}

// SeedFolder installs a folder row directly, bypassing CreateFolderByProperties.
// Useful for tests that need a pre-existing hierarchy (e.g. well-known
// folders).
func (s *Store) SeedFolder(id, parent uint64, ftype exmdb.FolderType, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[id] = &folderRow{
		id:     id,
		parent: parent,
		ftype:  ftype,
		props: exmdb.PropVals{
			{Tag: exmdb.PropTagFolderType, Value: uint32(ftype)},
			{Tag: exmdb.PropTagDisplayName, Value: name},
		},
	}
	if parent != 0 {
		if pf, ok := s.folders[parent]; ok {
			pf.children = append(pf.children, id)
		}
	}
	s.bumpNextID(id)
}

// SeedMessage installs a message row directly.
func (s *Store) SeedMessage(id, folder uint64, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[id] = &messageRow{id: id, folder: folder, owner: owner}
	s.bumpNextID(id)
}

// bumpNextID keeps the counter ahead of any id seeded directly, so
// CreateFolderByProperties never mints an id that collides with one a
// test seeded by hand. id's replica bits are ignored: only the 48-bit
// counter matters for allocation.
func (s *Store) bumpNextID(id uint64) {
	_, counter := idcodec.Split(id)
	if counter >= s.nextID {
		s.nextID = counter + 1
	}
}

// SetMessageProp sets a property directly on a seeded message.
func (s *Store) SetMessageProp(id uint64, tag exmdb.PropTag, val interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return
	}
	m.props = append(m.props, exmdb.PropVal{Tag: tag, Value: val})
}

// SetPermission installs an ACL row for (fid, user).
func (s *Store) SetPermission(dir string, fid uint64, user string, rights exmdb.Rights) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acl[fid] == nil {
		s.acl[fid] = make(map[string]exmdb.Rights)
	}
	s.acl[fid][user] = rights
}

func (s *Store) CheckFolderID(ctx context.Context, dir string, fid uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.folders[fid]
	return ok, nil
}

func (s *Store) CheckFolderDeleted(ctx context.Context, dir string, fid uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[fid]
	if !ok {
		return false, nil
	}
	return f.deleted, nil
}

func (s *Store) GetFolderProperty(ctx context.Context, dir string, cpid uint32, fid uint64, tag exmdb.PropTag) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[fid]
	if !ok {
		return nil, nil
	}
	v, _ := f.props.Get(tag)
	return v, nil
}

func (s *Store) SetFolderProperties(ctx context.Context, dir string, cpid uint32, fid uint64, vals exmdb.PropVals) ([]exmdb.PropTag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[fid]
	if !ok {
		return nil, fmt.Errorf("exmdbtest: folder %d not found", fid)
	}
	for _, pv := range vals {
		f.props = setProp(f.props, pv)
	}
	return nil, nil
}

func setProp(props exmdb.PropVals, pv exmdb.PropVal) exmdb.PropVals {
	for i := range props {
		if props[i].Tag == pv.Tag {
			props[i].Value = pv.Value
			return props
		}
	}
	return append(props, pv)
}

func (s *Store) GetFolderByName(ctx context.Context, dir string, parentFID uint64, name string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pf, ok := s.folders[parentFID]
	if !ok {
		return 0, nil
	}
	for _, cid := range pf.children {
		c := s.folders[cid]
		if c == nil || c.deleted {
			continue
		}
		if v, _ := c.props.Get(exmdb.PropTagDisplayName); v == name {
			return cid, nil
		}
	}
	return 0, nil
}

func (s *Store) AllocateCN(ctx context.Context, dir string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextCN++
	return s.nextCN, nil
}

func (s *Store) CheckFolderPermission(ctx context.Context, dir string, fid uint64, user string) (exmdb.Rights, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.acl[fid]; ok {
		if r, ok := m[user]; ok {
			return r, nil
		}
	}
	return exmdb.RightNone, nil
}

func (s *Store) CheckFolderCycle(ctx context.Context, dir string, src, dst uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := dst
	for cur != 0 {
		if cur == src {
			return true, nil
		}
		f, ok := s.folders[cur]
		if !ok {
			break
		}
		cur = f.parent
	}
	return false, nil
}

func (s *Store) CreateFolderByProperties(ctx context.Context, dir string, cpid uint32, vals exmdb.PropVals) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	parentV, _ := vals.Get(exmdb.PropTagParentFolderID)
	parent, _ := parentV.(uint64)
	ftypeV, _ := vals.Get(exmdb.PropTagFolderType)
	ftype, _ := ftypeV.(exmdb.FolderType)
	if ftype == 0 {
		if u32, ok := ftypeV.(uint32); ok {
			ftype = exmdb.FolderType(u32)
		}
	}
	id := s.nextLocalID()
	s.folders[id] = &folderRow{id: id, parent: parent, ftype: ftype, props: append(exmdb.PropVals{}, vals...)}
	if pf, ok := s.folders[parent]; ok {
		pf.children = append(pf.children, id)
	}
	return id, nil
}

func (s *Store) DeleteFolder(ctx context.Context, dir string, cpid uint32, fid uint64, hard bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[fid]
	if !ok {
		return false, nil
	}
	if hard {
		delete(s.folders, fid)
	} else {
		f.deleted = true
	}
	if pf, ok := s.folders[f.parent]; ok {
		pf.children = removeID(pf.children, fid)
	}
	return true, nil
}

func removeID(ids []uint64, target uint64) []uint64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) EmptyFolder(ctx context.Context, dir string, cpid uint32, user string, fid uint64, hard, normal, fai, sub bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.messages {
		if m.folder != fid {
			continue
		}
		if user != "" && m.owner != user {
			continue
		}
		if m.fai && !fai {
			continue
		}
		if !m.fai && !normal {
			continue
		}
		if hard {
			delete(s.messages, id)
		} else {
			m.deleted = true
		}
	}
	if sub {
		if pf, ok := s.folders[fid]; ok {
			for _, cid := range append([]uint64{}, pf.children...) {
				delete(s.folders, cid)
			}
			pf.children = nil
		}
	}
	return false, nil
}

func (s *Store) MoveCopyFolder(ctx context.Context, dir string, accountID int64, cpid uint32, guest bool, user string, srcParent, src, dst uint64, newName string, isCopy bool) (exmdb.MoveCopyFolderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cid := range s.folders[dst].children {
		c := s.folders[cid]
		if v, _ := c.props.Get(exmdb.PropTagDisplayName); v == newName {
			return exmdb.MoveCopyFolderResult{DestinationExisted: true}, nil
		}
	}
	f, ok := s.folders[src]
	if !ok {
		return exmdb.MoveCopyFolderResult{}, fmt.Errorf("exmdbtest: folder %d not found", src)
	}
	if isCopy {
		id := s.nextLocalID()
		cp := *f
		cp.id = id
		cp.parent = dst
		cp.props = append(exmdb.PropVals{}, f.props...)
		cp.props = setProp(cp.props, exmdb.PropVal{Tag: exmdb.PropTagDisplayName, Value: newName})
		s.folders[id] = &cp
		s.folders[dst].children = append(s.folders[dst].children, id)
		return exmdb.MoveCopyFolderResult{}, nil
	}
	if pf, ok := s.folders[srcParent]; ok {
		pf.children = removeID(pf.children, src)
	}
	f.parent = dst
	f.props = setProp(f.props, exmdb.PropVal{Tag: exmdb.PropTagDisplayName, Value: newName})
	s.folders[dst].children = append(s.folders[dst].children, src)
	return exmdb.MoveCopyFolderResult{}, nil
}

func (s *Store) MoveCopyMessages(ctx context.Context, dir string, accountID int64, cpid uint32, guest bool, user string, src, dst uint64, isCopy bool, ids []uint64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	partial := false
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok || m.folder != src {
			partial = true
			continue
		}
		if isCopy {
			newID := s.nextLocalID()
			cp := *m
			cp.id = newID
			cp.folder = dst
			s.messages[newID] = &cp
		} else {
			m.folder = dst
		}
	}
	return partial, nil
}

func (s *Store) DeleteMessages(ctx context.Context, dir string, accountID int64, cpid uint32, user string, fid uint64, ids []uint64, hard bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	partial := false
	for _, id := range ids {
		m, ok := s.messages[id]
		if !ok || m.folder != fid {
			partial = true
			continue
		}
		if user != "" && m.owner != user {
			partial = true
			continue
		}
		if hard {
			delete(s.messages, id)
		} else {
			m.deleted = true
		}
	}
	return partial, nil
}

func (s *Store) CheckMessageOwner(ctx context.Context, dir string, mid uint64, user string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[mid]
	return ok && m.owner == user, nil
}

func (s *Store) GetMessageProperties(ctx context.Context, dir string, mid uint64, tags []exmdb.PropTag) (exmdb.PropVals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[mid]
	if !ok {
		return nil, fmt.Errorf("exmdbtest: message %d not found", mid)
	}
	var out exmdb.PropVals
	for _, tag := range tags {
		if v, ok := m.props.Get(tag); ok {
			out = append(out, exmdb.PropVal{Tag: tag, Value: v})
		}
	}
	return out, nil
}

func (s *Store) GetMessageBrief(ctx context.Context, dir string, cpid uint32, mid uint64) (*exmdb.MessageBrief, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[mid]
	if !ok {
		return nil, fmt.Errorf("exmdbtest: message %d not found", mid)
	}
	return &exmdb.MessageBrief{MessageID: m.id}, nil
}

func (s *Store) UpdateFolderPermission(ctx context.Context, dir string, fid uint64, freebusy bool, rows []exmdb.PermissionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acl[fid] == nil {
		s.acl[fid] = make(map[string]exmdb.Rights)
	}
	for _, row := range rows {
		key := fmt.Sprintf("member:%d", row.MemberID)
		s.acl[fid][key] = row.Rights
	}
	return nil
}

func (s *Store) EmptyFolderPermission(ctx context.Context, dir string, fid uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.acl, fid)
	return nil
}

func (s *Store) GetPermissionRows(ctx context.Context, dir string, fid uint64) ([]exmdb.PermissionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.acl[fid]
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []exmdb.PermissionRow
	for _, k := range keys {
		out = append(out, exmdb.PermissionRow{Rights: m[k]})
	}
	return out, nil
}

func (s *Store) SetSearchCriteria(ctx context.Context, dir string, cpid uint32, fid uint64, sc exmdb.SearchCriteria) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, scope := range sc.ScopeFolder {
		if _, ok := s.folders[scope]; !ok {
			return false, nil
		}
	}
	sc.Status = exmdb.SearchStatusStopped
	if sc.Flags&0x2 != 0 { // SEARCH_FLAG_RESTART bit, matched against rop flags in folder pkg
		sc.Status = exmdb.SearchStatusRunning
	}
	s.search[fid] = sc
	return true, nil
}

func (s *Store) GetSearchCriteria(ctx context.Context, dir string, fid uint64) (exmdb.SearchCriteria, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, ok := s.search[fid]
	if !ok {
		return exmdb.SearchCriteria{Status: exmdb.SearchStatusNotInitialized}, nil
	}
	return sc, nil
}

func (s *Store) SumHierarchy(ctx context.Context, dir string, fid uint64, user string, depth bool) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[fid]
	if !ok {
		return 0, nil
	}
	if !depth {
		return uint32(len(f.children)), nil
	}
	var count func(uint64) uint32
	count = func(id uint64) uint32 {
		node := s.folders[id]
		if node == nil {
			return 0
		}
		n := uint32(len(node.children))
		for _, cid := range node.children {
			n += count(cid)
		}
		return n
	}
	return count(fid), nil
}

func (s *Store) SumContent(ctx context.Context, dir string, fid uint64, fai, deleted bool) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n uint32
	for _, m := range s.messages {
		if m.folder != fid {
			continue
		}
		if m.fai != fai {
			continue
		}
		if m.deleted != deleted {
			continue
		}
		n++
	}
	return n, nil
}

// DispatchNonReadReceipt implements exmdb.ReceiptDispatcher by recording
// the brief for test assertions.
func (s *Store) DispatchNonReadReceipt(ctx context.Context, dir string, brief *exmdb.MessageBrief) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Receipts = append(s.Receipts, *brief)
	return nil
}

// staticRows is an exmdb.TableRows materialized eagerly from a fixed id
// list. The real driver would keep a live cursor over its own storage;
// this fake only needs to satisfy the contract. placeholder makes Total
// report 1 until the first FetchRows, as a conversation-members table does.
type staticRows struct {
	ids         []uint64
	placeholder bool
}

func (r *staticRows) Total(ctx context.Context) (int, error) {
	if r.placeholder {
		return 1, nil
	}
	return len(r.ids), nil
}

func (r *staticRows) FetchRows(ctx context.Context, start, count int) ([]uint64, error) {
	r.placeholder = false
	if start < 0 || start >= len(r.ids) {
		return nil, nil
	}
	end := start + count
	if end > len(r.ids) {
		end = len(r.ids)
	}
	return r.ids[start:end], nil
}

func (r *staticRows) MatchRow(ctx context.Context, start int, forward bool, restriction interface{}) (int, bool, error) {
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

func (s *Store) OpenHierarchyTable(ctx context.Context, dir string, fid uint64, principal string, depth bool) (exmdb.TableRows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	var walk func(uint64)
	walk = func(id uint64) {
		f, ok := s.folders[id]
		if !ok {
			return
		}
		for _, cid := range f.children {
			ids = append(ids, cid)
			if depth {
				walk(cid)
			}
		}
	}
	walk(fid)
	return &staticRows{ids: ids}, nil
}

func (s *Store) OpenContentTable(ctx context.Context, dir string, fid uint64, principal string, fai, deleted, conversation bool) (exmdb.TableRows, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, m := range s.messages {
		if m.folder != fid || m.fai != fai || m.deleted != deleted {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &staticRows{ids: ids, placeholder: conversation}, nil
}
