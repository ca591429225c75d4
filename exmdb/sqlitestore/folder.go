package sqlitestore

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
	"github.com/obsidiangroup/gromox-sub002/idcodec"

	"crawshaw.io/sqlite"
)

// coerceUnixTime accepts either a time.Time (the core's usual shape for
// creation/modification timestamps) or a raw uint64 second count, so a
// caller can pass either without this driver rejecting it.
func coerceUnixTime(v interface{}) int64 {
	switch t := v.(type) {
	case time.Time:
		return t.Unix()
	case uint64:
		return int64(t)
	case int64:
		return t
	}
	return 0
}

func (s *Store) CheckFolderID(ctx context.Context, dir string, fid uint64) (bool, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return false, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT 1 FROM Folders WHERE FolderID = $fid;`)
	stmt.SetInt64("$fid", int64(fid))
	has, err := stmt.Step()
	stmt.Reset()
	return has, err
}

func (s *Store) CheckFolderDeleted(ctx context.Context, dir string, fid uint64) (bool, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return false, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT Deleted FROM Folders WHERE FolderID = $fid;`)
	stmt.SetInt64("$fid", int64(fid))
	has, err := stmt.Step()
	if err != nil {
		return false, err
	}
	if !has {
		stmt.Reset()
		return false, nil
	}
	deleted := stmt.GetInt64("Deleted") != 0
	stmt.Reset()
	return deleted, nil
}

func (s *Store) GetFolderProperty(ctx context.Context, dir string, cpid uint32, fid uint64, tag exmdb.PropTag) (interface{}, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT FolderType, DisplayName, Comment, CreationTime,
		LastModificationTime, ChangeNumber, ChangeKey, PredecessorChangeList,
		ParentID, HasRules, ExtraProps FROM Folders WHERE FolderID = $fid;`)
	stmt.SetInt64("$fid", int64(fid))
	has, err := stmt.Step()
	if err != nil {
		return nil, err
	}
	if !has {
		stmt.Reset()
		return nil, nil
	}

	var val interface{}
	switch tag {
	case exmdb.PropTagFolderType:
		val = exmdb.FolderType(stmt.GetInt64("FolderType"))
	case exmdb.PropTagDisplayName:
		val = stmt.GetText("DisplayName")
	case exmdb.PropTagComment:
		val = stmt.GetText("Comment")
	case exmdb.PropTagCreationTime:
		val = uint64(stmt.GetInt64("CreationTime"))
	case exmdb.PropTagLastModificationTime:
		val = uint64(stmt.GetInt64("LastModificationTime"))
	case exmdb.PropTagChangeNumber:
		val = uint64(stmt.GetInt64("ChangeNumber"))
	case exmdb.PropTagChangeKey:
		val, err = decodeB64(stmt.GetText("ChangeKey"))
	case exmdb.PropTagPredecessorChangeList:
		val, err = decodeB64(stmt.GetText("PredecessorChangeList"))
	case exmdb.PropTagParentFolderID:
		val = uint64(stmt.GetInt64("ParentID"))
	case exmdb.PropTagHasRules:
		val = stmt.GetInt64("HasRules") != 0
	default:
		extra := stmt.GetText("ExtraProps")
		stmt.Reset()
		v, _ := extraPropValue(extra, tag)
		return v, nil
	}
	stmt.Reset()
	return val, err
}

func decodeB64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

func (s *Store) SetFolderProperties(ctx context.Context, dir string, cpid uint32, fid uint64, vals exmdb.PropVals) ([]exmdb.PropTag, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer pool.Put(conn)

	var known exmdb.PropVals
	var extra exmdb.PropVals
	for _, pv := range vals {
		if isKnownFolderTag(pv.Tag) {
			known = append(known, pv)
		} else {
			extra = append(extra, pv)
		}
	}

	if len(extra) > 0 {
		stmt := conn.Prep(`SELECT ExtraProps FROM Folders WHERE FolderID = $fid;`)
		stmt.SetInt64("$fid", int64(fid))
		has, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		cur := ""
		if has {
			cur = stmt.GetText("ExtraProps")
		}
		stmt.Reset()
		merged, err := mergeExtraProps(cur, extra)
		if err != nil {
			return nil, err
		}
		u := conn.Prep(`UPDATE Folders SET ExtraProps = $extra WHERE FolderID = $fid;`)
		u.SetText("$extra", merged)
		u.SetInt64("$fid", int64(fid))
		if _, err := u.Step(); err != nil {
			return nil, err
		}
	}

	for _, pv := range known {
		col, bindErr := folderColumnFor(pv.Tag)
		if bindErr != nil {
			return nil, bindErr
		}
		text, isText, i64, isInt, isBool, boolVal := coerceFolderValue(pv)
		sqlStr := fmt.Sprintf(`UPDATE Folders SET %s = $val WHERE FolderID = $fid;`, col)
		u := conn.Prep(sqlStr)
		switch {
		case isText:
			u.SetText("$val", text)
		case isInt:
			u.SetInt64("$val", i64)
		case isBool:
			u.SetBool("$val", boolVal)
		}
		u.SetInt64("$fid", int64(fid))
		if _, err := u.Step(); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func folderColumnFor(tag exmdb.PropTag) (string, error) {
	switch tag {
	case exmdb.PropTagFolderType:
		return "FolderType", nil
	case exmdb.PropTagDisplayName:
		return "DisplayName", nil
	case exmdb.PropTagComment:
		return "Comment", nil
	case exmdb.PropTagCreationTime:
		return "CreationTime", nil
	case exmdb.PropTagLastModificationTime:
		return "LastModificationTime", nil
	case exmdb.PropTagChangeNumber:
		return "ChangeNumber", nil
	case exmdb.PropTagChangeKey:
		return "ChangeKey", nil
	case exmdb.PropTagPredecessorChangeList:
		return "PredecessorChangeList", nil
	case exmdb.PropTagParentFolderID:
		return "ParentID", nil
	case exmdb.PropTagHasRules:
		return "HasRules", nil
	}
	return "", fmt.Errorf("sqlitestore: unmapped known folder tag %#x", uint32(tag))
}

// coerceFolderValue turns a PropVal into the bind call SetFolderProperties
// should make, based on its Go type.
func coerceFolderValue(pv exmdb.PropVal) (text string, isText bool, i64 int64, isInt bool, isBool bool, boolVal bool) {
	switch v := pv.Value.(type) {
	case string:
		return v, true, 0, false, false, false
	case []byte:
		return base64.StdEncoding.EncodeToString(v), true, 0, false, false, false
	case bool:
		return "", false, 0, false, true, v
	case uint64:
		return "", false, int64(v), true, false, false
	case uint32:
		return "", false, int64(v), true, false, false
	case exmdb.FolderType:
		return "", false, int64(v), true, false, false
	case int64:
		return "", false, v, true, false, false
	case int:
		return "", false, int64(v), true, false, false
	case time.Time:
		return "", false, v.Unix(), true, false, false
	default:
		return fmt.Sprintf("%v", v), true, 0, false, false, false
	}
}

func (s *Store) GetFolderByName(ctx context.Context, dir string, parentFID uint64, name string) (uint64, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return 0, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT FolderID FROM Folders
		WHERE ParentID = $parent AND DisplayName = $name AND Deleted = 0;`)
	stmt.SetInt64("$parent", int64(parentFID))
	stmt.SetText("$name", name)
	has, err := stmt.Step()
	if err != nil {
		return 0, err
	}
	if !has {
		stmt.Reset()
		return 0, nil
	}
	id := uint64(stmt.GetInt64("FolderID"))
	stmt.Reset()
	return id, nil
}

func (s *Store) AllocateCN(ctx context.Context, dir string) (uint64, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return 0, err
	}
	defer pool.Put(conn)
	return allocateCounter(conn, "cn")
}

// allocateCounter increments and returns Counters.Value for name, as two
// statements on the same connection rather than a RETURNING clause --
// the sqlite version crawshaw.io/sqlite links predates SQLite 3.35's
// RETURNING support.
func allocateCounter(conn *sqlite.Conn, name string) (uint64, error) {
	u := conn.Prep(`UPDATE Counters SET Value = Value + 1 WHERE Name = $name;`)
	u.SetText("$name", name)
	if _, err := u.Step(); err != nil {
		return 0, err
	}
	stmt := conn.Prep(`SELECT Value FROM Counters WHERE Name = $name;`)
	stmt.SetText("$name", name)
	has, err := stmt.Step()
	if err != nil {
		return 0, err
	}
	if !has {
		stmt.Reset()
		return 0, fmt.Errorf("sqlitestore: counter %q missing", name)
	}
	n := stmt.GetInt64("Value")
	stmt.Reset()
	return uint64(n), nil
}

func (s *Store) CheckFolderCycle(ctx context.Context, dir string, src, dst uint64) (bool, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return false, err
	}
	defer pool.Put(conn)

	cur := dst
	for cur != 0 {
		if cur == src {
			return true, nil
		}
		stmt := conn.Prep(`SELECT ParentID FROM Folders WHERE FolderID = $id;`)
		stmt.SetInt64("$id", int64(cur))
		has, err := stmt.Step()
		if err != nil {
			return false, err
		}
		if !has {
			stmt.Reset()
			break
		}
		cur = uint64(stmt.GetInt64("ParentID"))
		stmt.Reset()
	}
	return false, nil
}

func (s *Store) CreateFolderByProperties(ctx context.Context, dir string, cpid uint32, vals exmdb.PropVals) (uint64, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return 0, err
	}
	defer pool.Put(conn)

	id, err := s.allocNextID(conn)
	if err != nil {
		return 0, err
	}

	var known exmdb.PropVals
	var extra exmdb.PropVals
	for _, pv := range vals {
		if isKnownFolderTag(pv.Tag) {
			known = append(known, pv)
		} else {
			extra = append(extra, pv)
		}
	}
	extraBlob, err := mergeExtraProps("", extra)
	if err != nil {
		return 0, err
	}

	var parent int64
	var ftype int64
	var name, comment string
	var ctime, mtime, cn int64
	var changeKey, pcl string
	var hasRules bool
	for _, pv := range known {
		switch pv.Tag {
		case exmdb.PropTagParentFolderID:
			if v, ok := pv.Value.(uint64); ok {
				parent = int64(v)
			}
		case exmdb.PropTagFolderType:
			switch v := pv.Value.(type) {
			case exmdb.FolderType:
				ftype = int64(v)
			case uint32:
				ftype = int64(v)
			}
		case exmdb.PropTagDisplayName:
			name, _ = pv.Value.(string)
		case exmdb.PropTagComment:
			comment, _ = pv.Value.(string)
		case exmdb.PropTagCreationTime:
			ctime = coerceUnixTime(pv.Value)
		case exmdb.PropTagLastModificationTime:
			mtime = coerceUnixTime(pv.Value)
		case exmdb.PropTagChangeNumber:
			if v, ok := pv.Value.(uint64); ok {
				cn = int64(v)
			}
		case exmdb.PropTagChangeKey:
			if v, ok := pv.Value.([]byte); ok {
				changeKey = base64.StdEncoding.EncodeToString(v)
			}
		case exmdb.PropTagPredecessorChangeList:
			if v, ok := pv.Value.([]byte); ok {
				pcl = base64.StdEncoding.EncodeToString(v)
			}
		case exmdb.PropTagHasRules:
			hasRules, _ = pv.Value.(bool)
		}
	}

	stmt := conn.Prep(`INSERT INTO Folders (
		FolderID, ParentID, FolderType, DisplayName, Comment,
		CreationTime, LastModificationTime, ChangeNumber, ChangeKey,
		PredecessorChangeList, HasRules, Deleted, ExtraProps
	) VALUES (
		$id, $parent, $ftype, $name, $comment,
		$ctime, $mtime, $cn, $changeKey,
		$pcl, $hasRules, 0, $extra
	);`)
	stmt.SetInt64("$id", int64(id))
	stmt.SetInt64("$parent", parent)
	stmt.SetInt64("$ftype", ftype)
	stmt.SetText("$name", name)
	stmt.SetText("$comment", comment)
	stmt.SetInt64("$ctime", ctime)
	stmt.SetInt64("$mtime", mtime)
	stmt.SetInt64("$cn", cn)
	stmt.SetText("$changeKey", changeKey)
	stmt.SetText("$pcl", pcl)
	stmt.SetBool("$hasRules", hasRules)
	stmt.SetText("$extra", extraBlob)
	if _, err := stmt.Step(); err != nil {
		return 0, err
	}

	return id, nil
}

func (s *Store) allocNextID(conn *sqlite.Conn) (uint64, error) {
	n, err := allocateCounter(conn, "nextid")
	if err != nil {
		return 0, err
	}
	return idcodec.MakeID(idcodec.ReplicaLocal, n), nil
}

func (s *Store) DeleteFolder(ctx context.Context, dir string, cpid uint32, fid uint64, hard bool) (bool, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return false, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT 1 FROM Folders WHERE FolderID = $fid;`)
	stmt.SetInt64("$fid", int64(fid))
	has, err := stmt.Step()
	stmt.Reset()
	if err != nil {
		return false, err
	}
	if !has {
		return false, nil
	}

	if hard {
		d := conn.Prep(`DELETE FROM Folders WHERE FolderID = $fid;`)
		d.SetInt64("$fid", int64(fid))
		if _, err := d.Step(); err != nil {
			return false, err
		}
	} else {
		u := conn.Prep(`UPDATE Folders SET Deleted = 1 WHERE FolderID = $fid;`)
		u.SetInt64("$fid", int64(fid))
		if _, err := u.Step(); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *Store) EmptyFolder(ctx context.Context, dir string, cpid uint32, user string, fid uint64, hard, normal, fai, sub bool) (bool, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return false, err
	}
	defer pool.Put(conn)

	if normal || fai {
		q := `SELECT MessageID FROM Messages WHERE FolderID = $fid`
		if user != "" {
			q += ` AND Owner = $user`
		}
		stmt := conn.Prep(q + `;`)
		stmt.SetInt64("$fid", int64(fid))
		if user != "" {
			stmt.SetText("$user", user)
		}
		var ids []int64
		for {
			has, err := stmt.Step()
			if err != nil {
				return false, err
			}
			if !has {
				break
			}
			ids = append(ids, stmt.GetInt64("MessageID"))
		}
		for _, id := range ids {
			if hard {
				d := conn.Prep(`DELETE FROM Messages WHERE MessageID = $id;`)
				d.SetInt64("$id", id)
				if _, err := d.Step(); err != nil {
					return false, err
				}
			} else {
				u := conn.Prep(`UPDATE Messages SET Deleted = 1 WHERE MessageID = $id;`)
				u.SetInt64("$id", id)
				if _, err := u.Step(); err != nil {
					return false, err
				}
			}
		}
	}

	if sub {
		if err := deleteSubtree(conn, fid, hard); err != nil {
			return false, err
		}
	}
	return false, nil
}

// deleteSubtree removes (or soft-deletes) every descendant of fid,
// depth first, so a folder is never orphaned mid-walk.
func deleteSubtree(conn *sqlite.Conn, fid uint64, hard bool) error {
	stmt := conn.Prep(`SELECT FolderID FROM Folders WHERE ParentID = $fid;`)
	stmt.SetInt64("$fid", int64(fid))
	var children []uint64
	for {
		has, err := stmt.Step()
		if err != nil {
			return err
		}
		if !has {
			break
		}
		children = append(children, uint64(stmt.GetInt64("FolderID")))
	}
	for _, cid := range children {
		if err := deleteSubtree(conn, cid, hard); err != nil {
			return err
		}
		if hard {
			d := conn.Prep(`DELETE FROM Folders WHERE FolderID = $id;`)
			d.SetInt64("$id", int64(cid))
			if _, err := d.Step(); err != nil {
				return err
			}
			md := conn.Prep(`DELETE FROM Messages WHERE FolderID = $id;`)
			md.SetInt64("$id", int64(cid))
			if _, err := md.Step(); err != nil {
				return err
			}
		} else {
			u := conn.Prep(`UPDATE Folders SET Deleted = 1 WHERE FolderID = $id;`)
			u.SetInt64("$id", int64(cid))
			if _, err := u.Step(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Store) MoveCopyFolder(ctx context.Context, dir string, accountID int64, cpid uint32, guest bool, user string, srcParent, src, dst uint64, newName string, isCopy bool) (exmdb.MoveCopyFolderResult, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return exmdb.MoveCopyFolderResult{}, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT 1 FROM Folders WHERE ParentID = $dst AND DisplayName = $name AND Deleted = 0;`)
	stmt.SetInt64("$dst", int64(dst))
	stmt.SetText("$name", newName)
	existed, err := stmt.Step()
	stmt.Reset()
	if err != nil {
		return exmdb.MoveCopyFolderResult{}, err
	}
	if existed {
		return exmdb.MoveCopyFolderResult{DestinationExisted: true}, nil
	}

	if isCopy {
		newID, err := s.allocNextID(conn)
		if err != nil {
			return exmdb.MoveCopyFolderResult{}, err
		}
		stmt := conn.Prep(`INSERT INTO Folders (
			FolderID, ParentID, FolderType, DisplayName, Comment,
			CreationTime, LastModificationTime, ChangeNumber, ChangeKey,
			PredecessorChangeList, HasRules, Deleted, ExtraProps
		)
		SELECT $newID, $dst, FolderType, $name, Comment,
			CreationTime, LastModificationTime, ChangeNumber, ChangeKey,
			PredecessorChangeList, HasRules, 0, ExtraProps
		FROM Folders WHERE FolderID = $src;`)
		stmt.SetInt64("$newID", int64(newID))
		stmt.SetInt64("$dst", int64(dst))
		stmt.SetText("$name", newName)
		stmt.SetInt64("$src", int64(src))
		if _, err := stmt.Step(); err != nil {
			return exmdb.MoveCopyFolderResult{}, err
		}
		return exmdb.MoveCopyFolderResult{}, nil
	}

	u := conn.Prep(`UPDATE Folders SET ParentID = $dst, DisplayName = $name WHERE FolderID = $src;`)
	u.SetInt64("$dst", int64(dst))
	u.SetText("$name", newName)
	u.SetInt64("$src", int64(src))
	if _, err := u.Step(); err != nil {
		return exmdb.MoveCopyFolderResult{}, err
	}
	return exmdb.MoveCopyFolderResult{}, nil
}

func (s *Store) SumHierarchy(ctx context.Context, dir string, fid uint64, user string, depth bool) (uint32, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return 0, err
	}
	defer pool.Put(conn)

	if !depth {
		stmt := conn.Prep(`SELECT COUNT(*) AS N FROM Folders WHERE ParentID = $fid AND Deleted = 0;`)
		stmt.SetInt64("$fid", int64(fid))
		if _, err := stmt.Step(); err != nil {
			return 0, err
		}
		n := stmt.GetInt64("N")
		stmt.Reset()
		return uint32(n), nil
	}
	var count func(uint64) (uint32, error)
	count = func(id uint64) (uint32, error) {
		stmt := conn.Prep(`SELECT FolderID FROM Folders WHERE ParentID = $id AND Deleted = 0;`)
		stmt.SetInt64("$id", int64(id))
		var children []uint64
		for {
			has, err := stmt.Step()
			if err != nil {
				return 0, err
			}
			if !has {
				break
			}
			children = append(children, uint64(stmt.GetInt64("FolderID")))
		}
		n := uint32(len(children))
		for _, c := range children {
			sub, err := count(c)
			if err != nil {
				return 0, err
			}
			n += sub
		}
		return n, nil
	}
	return count(fid)
}
