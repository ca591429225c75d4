// Package table implements the table object (spec.md §3 "Table", §4.5,
// component C7): a columnar view over hierarchy/content/permissions/
// rules with cursor, restriction, sort order, and bookmarks. All heavy
// work is delegated to a driver-side table handle (RowSource below);
// this package keeps only cursor state, the live column/restriction/
// sort triple, and bookmark records (spec.md §4.5).
//
// Grounded on table_object.h (zcore variant, original_source) for the
// operation surface.
package table

import (
	"context"
	"errors"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
)

// Type identifies what a table is a view over (spec.md §3).
type Type int

const (
	Hierarchy Type = iota
	Content
	Permission
	Rule
	Attachment
	Recipient
	Container
	User
)

// Flags is the bitmask of table-open flags spec.md §3/§4.7.9 describes.
type Flags uint32

const (
	FlagDepth                 Flags = 1 << 0
	FlagAssociated            Flags = 1 << 1
	FlagSoftDeletes           Flags = 1 << 2
	FlagSuppressNotifications Flags = 1 << 3
	FlagUnicode               Flags = 1 << 4
	FlagConversationMembers   Flags = 1 << 5
	FlagDeferredErrors        Flags = 1 << 6
	FlagNoNotifications       Flags = 1 << 7
)

// RowSource is the driver-side table handle this object delegates to
// (spec.md §4.5 "All heavy work is delegated to a driver-side table
// handle").
type RowSource interface {
	Total(ctx context.Context) (int, error)
	FetchRows(ctx context.Context, start, count int) ([]uint64, error)
	// MatchRow scans from start in the given direction for a row
	// satisfying restriction, returning its index and whether one was
	// found.
	MatchRow(ctx context.Context, start int, forward bool, restriction interface{}) (index int, found bool, err error)
}

var (
	// ErrBookmarkNotFound is returned by RetrieveBookmark for an
	// unknown bookmark id.
	ErrBookmarkNotFound = errors.New("table: bookmark not found")
)

// Bookmark is a dense index into a table's row list, created with
// CreateBookmark (spec.md §4.5).
type Bookmark struct {
	row     int
	removed bool
}

// Table is the in-core table object.
type Table struct {
	Type  Type
	Flags Flags

	rows RowSource

	columns     []exmdb.PropTag
	restriction interface{}
	sortOrder   interface{}

	cursor int // 0-based row index the cursor currently sits before

	nextBookmark uint32
	bookmarks    map[uint32]*Bookmark
}

// New constructs a Table backed by rows.
func New(typ Type, flags Flags, rows RowSource) *Table {
	return &Table{
		Type:      typ,
		Flags:     flags,
		rows:      rows,
		bookmarks: make(map[uint32]*Bookmark),
	}
}

// SetColumns replaces the live column set.
func (t *Table) SetColumns(columns []exmdb.PropTag) {
	t.columns = append([]exmdb.PropTag{}, columns...)
}

// Columns returns the live column set.
func (t *Table) Columns() []exmdb.PropTag { return t.columns }

// SetRestriction replaces the live restriction.
func (t *Table) SetRestriction(restriction interface{}) {
	t.restriction = restriction
}

// SetSortOrder replaces the live sort order.
func (t *Table) SetSortOrder(sortOrder interface{}) {
	t.sortOrder = sortOrder
}

// GetTotal reports the current row count (spec.md §4.5 "get-total").
func (t *Table) GetTotal(ctx context.Context) (int, error) {
	return t.rows.Total(ctx)
}

// GetPosition reports the cursor's current 0-based row index.
func (t *Table) GetPosition() int { return t.cursor }

// SeekCurrent moves the cursor forward (positive n) or backward
// (negative n), clamping at the ends of the table (spec.md §4.5
// "seek-current (forward/backward by N with clamp at ends)"). It
// returns the number of rows actually moved.
func (t *Table) SeekCurrent(ctx context.Context, n int) (moved int, err error) {
	total, err := t.rows.Total(ctx)
	if err != nil {
		return 0, err
	}
	start := t.cursor
	next := start + n
	if next < 0 {
		next = 0
	}
	if next > total {
		next = total
	}
	t.cursor = next
	return next - start, nil
}

// QueryRows returns up to count row ids starting at the cursor,
// advancing the cursor past the rows returned (spec.md §4.5
// "query-rows (by row count against current cursor and effective
// column set)"). The column set itself is not enforced here: which
// columns are materialized per row id is the driver's concern once it
// resolves row ids into property values.
func (t *Table) QueryRows(ctx context.Context, count int) ([]uint64, error) {
	rows, err := t.rows.FetchRows(ctx, t.cursor, count)
	if err != nil {
		return nil, err
	}
	t.cursor += len(rows)
	return rows, nil
}

// MatchRow scans forward or backward from the cursor for a row
// satisfying restriction, without moving the cursor (spec.md §4.5
// "match-row (forward/backward scan satisfying a restriction)").
func (t *Table) MatchRow(ctx context.Context, forward bool, restriction interface{}) (index int, found bool, err error) {
	return t.rows.MatchRow(ctx, t.cursor, forward, restriction)
}

// CreateBookmark records the cursor's current row as a new bookmark,
// returning its id. Bookmarks are dense indices into a per-table list
// (spec.md §4.5).
func (t *Table) CreateBookmark() uint32 {
	id := t.nextBookmark
	t.nextBookmark++
	t.bookmarks[id] = &Bookmark{row: t.cursor}
	return id
}

// RemoveBookmark deletes bookmark id. Removing an unknown or already
// removed bookmark returns ErrBookmarkNotFound, and so does a later
// RetrieveBookmark or SeekToBookmark on the removed id.
func (t *Table) RemoveBookmark(id uint32) error {
	b, ok := t.bookmarks[id]
	if !ok {
		return ErrBookmarkNotFound
	}
	b.removed = true
	delete(t.bookmarks, id)
	return nil
}

// RetrieveBookmark reports bookmark id's row index and whether that row
// still exists. Retrieving a bookmark whose row has since been removed
// from the table is idempotent: it reports existed=false rather than
// erroring (spec.md §4.5 "retrieve reports existence if the bookmarked
// row was removed (idempotent)").
func (t *Table) RetrieveBookmark(ctx context.Context, id uint32) (row int, existed bool, err error) {
	b, ok := t.bookmarks[id]
	if !ok {
		return 0, false, ErrBookmarkNotFound
	}
	if b.removed {
		return b.row, false, nil
	}
	total, err := t.rows.Total(ctx)
	if err != nil {
		return 0, false, err
	}
	if b.row >= total {
		return b.row, false, nil
	}
	return b.row, true, nil
}

// SeekToBookmark moves the cursor to bookmark id's row, if it still
// exists.
func (t *Table) SeekToBookmark(ctx context.Context, id uint32) (existed bool, err error) {
	row, existed, err := t.RetrieveBookmark(ctx, id)
	if err != nil {
		return false, err
	}
	if existed {
		t.cursor = row
	}
	return existed, nil
}
