package sqlitestore

import (
	"context"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
)

func (s *Store) MoveCopyMessages(ctx context.Context, dir string, accountID int64, cpid uint32, guest bool, user string, src, dst uint64, isCopy bool, ids []uint64) (bool, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return false, err
	}
	defer pool.Put(conn)

	partial := false
	for _, id := range ids {
		stmt := conn.Prep(`SELECT FolderID FROM Messages WHERE MessageID = $id;`)
		stmt.SetInt64("$id", int64(id))
		has, err := stmt.Step()
		if err != nil {
			return false, err
		}
		folder := uint64(stmt.GetInt64("FolderID"))
		stmt.Reset()
		if !has || folder != src {
			partial = true
			continue
		}

		if isCopy {
			newID, err := s.allocNextID(conn)
			if err != nil {
				return false, err
			}
			c := conn.Prep(`INSERT INTO Messages (
				MessageID, FolderID, Owner, FAI, Deleted, Subject, FromAddr,
				NonReceiptNotificationRequest, Read, ExtraProps
			)
			SELECT $newID, $dst, Owner, FAI, Deleted, Subject, FromAddr,
				NonReceiptNotificationRequest, Read, ExtraProps
			FROM Messages WHERE MessageID = $id;`)
			c.SetInt64("$newID", int64(newID))
			c.SetInt64("$dst", int64(dst))
			c.SetInt64("$id", int64(id))
			if _, err := c.Step(); err != nil {
				return false, err
			}
		} else {
			u := conn.Prep(`UPDATE Messages SET FolderID = $dst WHERE MessageID = $id;`)
			u.SetInt64("$dst", int64(dst))
			u.SetInt64("$id", int64(id))
			if _, err := u.Step(); err != nil {
				return false, err
			}
		}
	}
	return partial, nil
}

func (s *Store) DeleteMessages(ctx context.Context, dir string, accountID int64, cpid uint32, user string, fid uint64, ids []uint64, hard bool) (bool, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return false, err
	}
	defer pool.Put(conn)

	partial := false
	for _, id := range ids {
		q := `SELECT FolderID, Owner FROM Messages WHERE MessageID = $id;`
		stmt := conn.Prep(q)
		stmt.SetInt64("$id", int64(id))
		has, err := stmt.Step()
		if err != nil {
			return false, err
		}
		var folder uint64
		var owner string
		if has {
			folder = uint64(stmt.GetInt64("FolderID"))
			owner = stmt.GetText("Owner")
		}
		stmt.Reset()
		if !has || folder != fid {
			partial = true
			continue
		}
		if user != "" && owner != user {
			partial = true
			continue
		}

		if hard {
			d := conn.Prep(`DELETE FROM Messages WHERE MessageID = $id;`)
			d.SetInt64("$id", int64(id))
			if _, err := d.Step(); err != nil {
				return false, err
			}
		} else {
			u := conn.Prep(`UPDATE Messages SET Deleted = 1 WHERE MessageID = $id;`)
			u.SetInt64("$id", int64(id))
			if _, err := u.Step(); err != nil {
				return false, err
			}
		}
	}
	return partial, nil
}

func (s *Store) CheckMessageOwner(ctx context.Context, dir string, mid uint64, user string) (bool, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return false, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT Owner FROM Messages WHERE MessageID = $id;`)
	stmt.SetInt64("$id", int64(mid))
	has, err := stmt.Step()
	if err != nil {
		return false, err
	}
	if !has {
		stmt.Reset()
		return false, nil
	}
	owner := stmt.GetText("Owner")
	stmt.Reset()
	return owner == user, nil
}

func (s *Store) GetMessageProperties(ctx context.Context, dir string, mid uint64, tags []exmdb.PropTag) (exmdb.PropVals, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT Subject, FromAddr, NonReceiptNotificationRequest, Read, ExtraProps
		FROM Messages WHERE MessageID = $id;`)
	stmt.SetInt64("$id", int64(mid))
	has, err := stmt.Step()
	if err != nil {
		return nil, err
	}
	if !has {
		stmt.Reset()
		return nil, nil
	}

	subject := stmt.GetText("Subject")
	from := stmt.GetText("FromAddr")
	nonReceipt := stmt.GetInt64("NonReceiptNotificationRequest") != 0
	read := stmt.GetInt64("Read") != 0
	extra := stmt.GetText("ExtraProps")
	stmt.Reset()

	var out exmdb.PropVals
	for _, tag := range tags {
		switch tag {
		case exmdb.PropTagNonReceiptNotificationRequest:
			out = append(out, exmdb.PropVal{Tag: tag, Value: nonReceipt})
		case exmdb.PropTagRead:
			out = append(out, exmdb.PropVal{Tag: tag, Value: read})
		default:
			if v, ok := extraPropValue(extra, tag); ok {
				out = append(out, exmdb.PropVal{Tag: tag, Value: v})
			} else if tag == subjectTag {
				out = append(out, exmdb.PropVal{Tag: tag, Value: subject})
			} else if tag == fromTag {
				out = append(out, exmdb.PropVal{Tag: tag, Value: from})
			}
		}
	}
	return out, nil
}

// subjectTag and fromTag are not part of the core's well-known tag set
// (spec.md treats message body/envelope tags as opaque); this driver
// still keeps Subject/FromAddr as dedicated columns for readability in
// its own storage and exposes them only if a caller happens to ask for
// these exact tag values.
const (
	subjectTag exmdb.PropTag = 0x0037001F
	fromTag    exmdb.PropTag = 0x0C1F001F
)

func (s *Store) GetMessageBrief(ctx context.Context, dir string, cpid uint32, mid uint64) (*exmdb.MessageBrief, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT Subject, FromAddr FROM Messages WHERE MessageID = $id;`)
	stmt.SetInt64("$id", int64(mid))
	has, err := stmt.Step()
	if err != nil {
		return nil, err
	}
	if !has {
		stmt.Reset()
		return nil, nil
	}
	brief := &exmdb.MessageBrief{
		MessageID: mid,
		Subject:   stmt.GetText("Subject"),
		From:      stmt.GetText("FromAddr"),
	}
	stmt.Reset()
	return brief, nil
}
