package sqlitestore

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
)

// principalFor resolves a PermissionRow's checkable identity the way
// schema.go documents: EntryID's bytes as a UTF-8 principal when
// present, else a synthetic "member:<id>" key, matching the fallback
// exmdbtest.Store.UpdateFolderPermission already uses for the same
// purpose.
func principalFor(row exmdb.PermissionRow) string {
	if len(row.EntryID) > 0 {
		return string(row.EntryID)
	}
	return fmt.Sprintf("member:%d", row.MemberID)
}

func (s *Store) UpdateFolderPermission(ctx context.Context, dir string, fid uint64, freebusy bool, rows []exmdb.PermissionRow) error {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return err
	}
	defer pool.Put(conn)

	for _, row := range rows {
		principal := principalFor(row)
		entryID := base64.StdEncoding.EncodeToString(row.EntryID)

		if row.Add {
			u := conn.Prep(`INSERT INTO Permissions (FolderID, MemberID, Principal, EntryID, Rights, FreeBusy)
				VALUES ($fid, $member, $principal, $entry, $rights, $fb)
				ON CONFLICT (FolderID, MemberID) DO UPDATE SET
					Principal = excluded.Principal,
					EntryID   = excluded.EntryID,
					Rights    = excluded.Rights,
					FreeBusy  = excluded.FreeBusy;`)
			u.SetInt64("$fid", int64(fid))
			u.SetInt64("$member", row.MemberID)
			u.SetText("$principal", principal)
			u.SetText("$entry", entryID)
			u.SetInt64("$rights", int64(row.Rights))
			u.SetBool("$fb", freebusy)
			if _, err := u.Step(); err != nil {
				return err
			}
			continue
		}

		if row.Rights == exmdb.RightNone {
			d := conn.Prep(`DELETE FROM Permissions WHERE FolderID = $fid AND MemberID = $member;`)
			d.SetInt64("$fid", int64(fid))
			d.SetInt64("$member", row.MemberID)
			if _, err := d.Step(); err != nil {
				return err
			}
			continue
		}

		u := conn.Prep(`UPDATE Permissions SET Rights = $rights, EntryID = $entry, FreeBusy = $fb
			WHERE FolderID = $fid AND MemberID = $member;`)
		u.SetInt64("$rights", int64(row.Rights))
		u.SetText("$entry", entryID)
		u.SetBool("$fb", freebusy)
		u.SetInt64("$fid", int64(fid))
		u.SetInt64("$member", row.MemberID)
		if _, err := u.Step(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) EmptyFolderPermission(ctx context.Context, dir string, fid uint64) error {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return err
	}
	defer pool.Put(conn)

	d := conn.Prep(`DELETE FROM Permissions WHERE FolderID = $fid;`)
	d.SetInt64("$fid", int64(fid))
	_, err = d.Step()
	return err
}

func (s *Store) GetPermissionRows(ctx context.Context, dir string, fid uint64) ([]exmdb.PermissionRow, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return nil, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT MemberID, EntryID, Rights FROM Permissions WHERE FolderID = $fid ORDER BY MemberID;`)
	stmt.SetInt64("$fid", int64(fid))
	var out []exmdb.PermissionRow
	for {
		has, err := stmt.Step()
		if err != nil {
			return nil, err
		}
		if !has {
			break
		}
		entry, err := decodeB64(stmt.GetText("EntryID"))
		if err != nil {
			return nil, err
		}
		out = append(out, exmdb.PermissionRow{
			MemberID: stmt.GetInt64("MemberID"),
			EntryID:  entry,
			Rights:   exmdb.Rights(stmt.GetInt64("Rights")),
		})
	}
	return out, nil
}

// CheckFolderPermission resolves user against Permissions.Principal,
// the convention schema.go documents for this reference driver.
func (s *Store) CheckFolderPermission(ctx context.Context, dir string, fid uint64, user string) (exmdb.Rights, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return exmdb.RightNone, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT Rights FROM Permissions WHERE FolderID = $fid AND Principal = $principal;`)
	stmt.SetInt64("$fid", int64(fid))
	stmt.SetText("$principal", user)
	has, err := stmt.Step()
	if err != nil {
		return exmdb.RightNone, err
	}
	if !has {
		stmt.Reset()
		return exmdb.RightNone, nil
	}
	rights := exmdb.Rights(stmt.GetInt64("Rights"))
	stmt.Reset()
	return rights, nil
}
