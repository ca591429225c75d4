package sqlitestore

import "context"

// CreateMessageForTest inserts a message row directly, bypassing the
// rop message-creation/streaming path (out of scope for the Store
// facade itself, spec.md §6.1) so this package's own tests can exercise
// MoveCopyMessages/DeleteMessages/GetMessageBrief/table queries without
// standing up the stream writer. Mirrors exmdbtest.Store.SeedMessage.
func (s *Store) CreateMessageForTest(ctx context.Context, dir string, fid uint64, owner string, fai bool, subject, from string) (uint64, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return 0, err
	}
	defer pool.Put(conn)

	id, err := s.allocNextID(conn)
	if err != nil {
		return 0, err
	}

	stmt := conn.Prep(`INSERT INTO Messages (MessageID, FolderID, Owner, FAI, Deleted, Subject, FromAddr)
		VALUES ($id, $fid, $owner, $fai, 0, $subject, $from);`)
	stmt.SetInt64("$id", int64(id))
	stmt.SetInt64("$fid", int64(fid))
	stmt.SetText("$owner", owner)
	stmt.SetBool("$fai", fai)
	stmt.SetText("$subject", subject)
	stmt.SetText("$from", from)
	if _, err := stmt.Step(); err != nil {
		return 0, err
	}
	return id, nil
}
