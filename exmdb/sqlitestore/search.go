package sqlitestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
)

func (s *Store) SetSearchCriteria(ctx context.Context, dir string, cpid uint32, fid uint64, sc exmdb.SearchCriteria) (bool, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return false, err
	}
	defer pool.Put(conn)

	for _, scope := range sc.ScopeFolder {
		stmt := conn.Prep(`SELECT 1 FROM Folders WHERE FolderID = $id;`)
		stmt.SetInt64("$id", int64(scope))
		has, err := stmt.Step()
		stmt.Reset()
		if err != nil {
			return false, err
		}
		if !has {
			return false, nil
		}
	}

	const searchFlagRestart = 0x2
	status := exmdb.SearchStatusStopped
	if sc.Flags&searchFlagRestart != 0 {
		status = exmdb.SearchStatusRunning
	}

	scopeJSON, err := json.Marshal(sc.ScopeFolder)
	if err != nil {
		return false, err
	}
	var restriction string
	if sc.Restriction != nil {
		b, err := json.Marshal(sc.Restriction)
		if err != nil {
			return false, err
		}
		restriction = string(b)
	}

	u := conn.Prep(`INSERT INTO SearchCriteria (FolderID, Flags, Restriction, ScopeFolder, Status)
		VALUES ($fid, $flags, $restriction, $scope, $status)
		ON CONFLICT (FolderID) DO UPDATE SET
			Flags       = excluded.Flags,
			Restriction = excluded.Restriction,
			ScopeFolder = excluded.ScopeFolder,
			Status      = excluded.Status;`)
	u.SetInt64("$fid", int64(fid))
	u.SetInt64("$flags", int64(sc.Flags))
	u.SetText("$restriction", restriction)
	u.SetText("$scope", string(scopeJSON))
	u.SetInt64("$status", int64(status))
	if _, err := u.Step(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GetSearchCriteria(ctx context.Context, dir string, fid uint64) (exmdb.SearchCriteria, error) {
	pool, conn, err := s.getConn(ctx, dir)
	if err != nil {
		return exmdb.SearchCriteria{}, err
	}
	defer pool.Put(conn)

	stmt := conn.Prep(`SELECT Flags, Restriction, ScopeFolder, Status FROM SearchCriteria WHERE FolderID = $fid;`)
	stmt.SetInt64("$fid", int64(fid))
	has, err := stmt.Step()
	if err != nil {
		return exmdb.SearchCriteria{}, err
	}
	if !has {
		stmt.Reset()
		return exmdb.SearchCriteria{Status: exmdb.SearchStatusNotInitialized}, nil
	}

	flags := uint32(stmt.GetInt64("Flags"))
	restrictionText := stmt.GetText("Restriction")
	scopeText := stmt.GetText("ScopeFolder")
	statusVal := stmt.GetInt64("Status")
	stmt.Reset()

	var restriction interface{}
	if restrictionText != "" {
		if err := json.Unmarshal([]byte(restrictionText), &restriction); err != nil {
			return exmdb.SearchCriteria{}, fmt.Errorf("sqlitestore: decode search restriction: %w", err)
		}
	}
	var scope []uint64
	if scopeText != "" {
		if err := json.Unmarshal([]byte(scopeText), &scope); err != nil {
			return exmdb.SearchCriteria{}, fmt.Errorf("sqlitestore: decode search scope: %w", err)
		}
	}

	return exmdb.SearchCriteria{
		Flags:       flags,
		Restriction: restriction,
		ScopeFolder: scope,
		Status:      exmdb.SearchStatus(statusVal),
	}, nil
}
