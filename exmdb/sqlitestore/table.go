package sqlitestore

import (
	"context"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
)

func (s *Store) SumContent(ctx context.Context, dir string, fid uint64, fai, deleted bool) (uint32, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return 0, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT COUNT(*) AS N FROM Messages WHERE FolderID = $fid AND FAI = $fai AND Deleted = $deleted;`)
	stmt.SetInt64("$fid", int64(fid))
	stmt.SetBool("$fai", fai)
	stmt.SetBool("$deleted", deleted)
	if _, err := stmt.Step(); err != nil {
		return 0, err
	}
	n := stmt.GetInt64("N")
	stmt.Reset()
	return uint32(n), nil
}

// staticRows is an exmdb.TableRows materialized eagerly from a query
// run once at open time; a production driver would keep a live cursor
// over its own storage instead, but a reference driver has no
// incremental index to maintain.
type staticRows struct {
	ids []uint64
}

func (r *staticRows) Total(ctx context.Context) (int, error) { return len(r.ids), nil }

func (r *staticRows) FetchRows(ctx context.Context, start, count int) ([]uint64, error) {
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
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer pool.Put(conn)

	var ids []uint64
	var walk func(uint64) error
	walk = func(id uint64) error {
		stmt := conn.Prep(`SELECT FolderID FROM Folders WHERE ParentID = $id AND Deleted = 0;`)
		stmt.SetInt64("$id", int64(id))
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
			ids = append(ids, cid)
			if depth {
				if err := walk(cid); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := walk(fid); err != nil {
		return nil, err
	}
	return &staticRows{ids: ids}, nil
}

func (s *Store) OpenContentTable(ctx context.Context, dir string, fid uint64, principal string, fai, deleted, conversation bool) (exmdb.TableRows, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT MessageID FROM Messages
		WHERE FolderID = $fid AND FAI = $fai AND Deleted = $deleted
		ORDER BY MessageID;`)
	stmt.SetInt64("$fid", int64(fid))
	stmt.SetBool("$fai", fai)
	stmt.SetBool("$deleted", deleted)
	var ids []uint64
	for {
		has, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		ids = append(ids, uint64(stmt.GetInt64("MessageID")))
	}
	rows := &staticRows{ids: ids}
	if conversation {
		return &conversationRows{staticRows: rows}, nil
	}
	return rows, nil
}

// conversationSentinelTotal is the row count a conversation-members
// table reports before the client has actually fetched rows. Gromox
// defers building the conversation grouping until rows are requested,
// so the initial total is a placeholder rather than zero.
const conversationSentinelTotal = 1

// conversationRows wraps staticRows so Total reports a non-zero
// sentinel until FetchRows has been called at least once, then falls
// through to the real count.
type conversationRows struct {
	*staticRows
	fetched bool
}

func (r *conversationRows) Total(ctx context.Context) (int, error) {
	if !r.fetched {
		return conversationSentinelTotal, nil
	}
	return r.staticRows.Total(ctx)
}

func (r *conversationRows) FetchRows(ctx context.Context, start, count int) ([]uint64, error) {
	r.fetched = true
	return r.staticRows.FetchRows(ctx, start, count)
}
