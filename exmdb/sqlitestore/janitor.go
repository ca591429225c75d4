package sqlitestore

import (
	"context"
	"time"

	"crawshaw.io/sqlite/sqlitex"
)

// softDeleteExpiry is how long a soft-deleted folder (measured from its
// LastModificationTime) sits before the janitor hard-deletes it,
// standing in for spec.md §4.9's "background reaper for expired
// soft-deletes" without modeling the full gromox retention-policy store
// (out of scope per spec.md §1). Messages carry no timestamp, so a
// soft-deleted message is hard-deleted on the next sweep; the expiry
// does not apply to it.
const softDeleteExpiry = 7 * 24 * time.Hour

// Janitor periodically purges rows this driver has already marked
// Deleted but never removed, mirroring spilldb/db/janitor.go's
// ctx/cancelFn/done shutdown discipline and ticker-or-CleanNow loop.
type Janitor struct {
	Logf func(format string, v ...interface{})

	ctx      context.Context
	cancelFn func()
	done     chan struct{}

	pool     *sqlitex.Pool
	cleanNow chan struct{}
}

func NewJanitor(pool *sqlitex.Pool) *Janitor {
	ctx, cancelFn := context.WithCancel(context.Background())
	return &Janitor{
		Logf:     func(format string, v ...interface{}) {},
		ctx:      ctx,
		cancelFn: cancelFn,
		done:     make(chan struct{}),
		pool:     pool,
		cleanNow: make(chan struct{}),
	}
}

// CleanNow requests an out-of-band sweep, non-blocking if one is
// already pending.
func (j *Janitor) CleanNow() {
	select {
	case j.cleanNow <- struct{}{}:
	default:
	}
}

func (j *Janitor) Run() error {
	defer close(j.done)

	t := time.NewTicker(30 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-j.ctx.Done():
			return nil
		case <-t.C:
		case <-j.cleanNow:
		}

		if err := j.clean(); err != nil {
			if err == context.Canceled {
				return nil
			}
			return nil
		}
	}
}

func (j *Janitor) Shutdown(ctx context.Context) error {
	j.cancelFn()
	<-j.done
	return nil
}

func (j *Janitor) clean() error {
	start := time.Now()

	conn := j.pool.Get(j.ctx)
	if conn == nil {
		return context.Canceled
	}
	defer j.pool.Put(conn)

	cutoff := start.Add(-softDeleteExpiry).Unix()

	// Messages belonging to a folder about to be purged go first, so the
	// foreign association never outlives its parent row.
	if err := sqlitex.Exec(conn,
		`DELETE FROM Messages WHERE FolderID IN (SELECT FolderID FROM Folders WHERE Deleted = 1 AND LastModificationTime < ?);`,
		nil, cutoff); err != nil {
		return err
	}
	msgsRemoved := conn.Changes()

	if err := sqlitex.Exec(conn, `DELETE FROM Messages WHERE Deleted = 1;`, nil); err != nil {
		return err
	}
	msgsRemoved += conn.Changes()

	if err := sqlitex.Exec(conn,
		`DELETE FROM Folders WHERE Deleted = 1 AND LastModificationTime < ?;`, nil, cutoff); err != nil {
		return err
	}
	foldersRemoved := conn.Changes()

	j.Logf("sqlitestore janitor: cleaned in %s, folders_removed=%d msgs_removed=%d",
		time.Since(start), foldersRemoved, msgsRemoved)
	return nil
}
