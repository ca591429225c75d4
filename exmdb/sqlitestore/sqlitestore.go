// Package sqlitestore is a reference exmdb.Store implementation
// (spec.md §4.9, "C3 test double"): not the production store engine
// (out of scope per spec.md §1), but complete enough to exercise every
// rop_* verb against a real database in this module's own tests.
//
// One sqlite database file backs each mailbox directory; Store opens
// and pools them lazily the way the teacher opens its single spilldb
// database, generalized from "one process, one database" to "one
// database per directory" since this driver serves many mailboxes.
//
// Grounded on spilldb/db/db.go (Open/Init: WAL pragma, schema script,
// sqlitex.Pool sizing) and spilldb/db/janitor.go (background reaper,
// reused here to expire soft-deleted folders/messages).
package sqlitestore

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

// Store is a directory-keyed collection of sqlite-backed mailboxes.
type Store struct {
	baseDir string

	mu       sync.Mutex
	pools    map[string]*sqlitex.Pool
	janitors map[string]*Janitor
}

// Open returns a Store rooted at baseDir; one "<baseDir>/<dir>.sqlite3"
// file is created per mailbox directory passed to its methods.
func Open(baseDir string) *Store {
	return &Store{
		baseDir:  baseDir,
		pools:    make(map[string]*sqlitex.Pool),
		janitors: make(map[string]*Janitor),
	}
}

// Close shuts down every pool and janitor this Store has opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for dir, j := range s.janitors {
		j.Shutdown(context.Background())
		delete(s.janitors, dir)
	}
	for dir, pool := range s.pools {
		if err := pool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.pools, dir)
	}
	return firstErr
}

func (s *Store) dbFile(dir string) string {
	return filepath.Join(s.baseDir, dir+".sqlite3")
}

// pool returns the (lazily opened) connection pool for dir, mirroring
// db.Open: a throwaway connection runs Init, then a pooled handle is
// returned for ongoing use.
func (s *Store) pool(dir string) (*sqlitex.Pool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pools[dir]; ok {
		return p, nil
	}

	dbfile := s.dbFile(dir)
	conn, err := sqlite.OpenConn(dbfile, 0)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: init open %s: %w", dbfile, err)
	}
	if err := initSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlitestore: init schema %s: %w", dbfile, err)
	}
	if err := conn.Close(); err != nil {
		return nil, fmt.Errorf("sqlitestore: init close %s: %w", dbfile, err)
	}

	pool, err := sqlitex.Open(dbfile, 0, 8)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open pool %s: %w", dbfile, err)
	}
	s.pools[dir] = pool

	j := NewJanitor(pool)
	s.janitors[dir] = j
	go j.Run()

	return pool, nil
}

func initSchema(conn *sqlite.Conn) error {
	if err := sqlitex.ExecTransient(conn, "PRAGMA journal_mode=WAL;", nil); err != nil {
		return err
	}
	if err := sqlitex.ExecTransient(conn, "PRAGMA cache_size = -8000;", nil); err != nil {
		return err
	}
	return sqlitex.ExecScript(conn, createSQL)
}

func (s *Store) getConn(ctx context.Context, dir string) (*sqlitex.Pool, *sqlite.Conn, error) {
	pool, err := s.pool(dir)
	if err != nil {
		return nil, nil, err
	}
	conn := pool.Get(ctx)
	if conn == nil {
		return nil, nil, context.Canceled
	}
	return pool, conn, nil
}
