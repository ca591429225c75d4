package table_test

import (
	"context"
	"testing"

	"github.com/obsidiangroup/gromox-sub002/exmdb"
	"github.com/obsidiangroup/gromox-sub002/table"
)

type memRows struct {
	ids []uint64
}

func (m *memRows) Total(ctx context.Context) (int, error) { return len(m.ids), nil }

func (m *memRows) FetchRows(ctx context.Context, start, count int) ([]uint64, error) {
	if start >= len(m.ids) {
		return nil, nil
	}
	end := start + count
	if end > len(m.ids) {
		end = len(m.ids)
	}
	return m.ids[start:end], nil
}

// MatchRow treats restriction as a uint64 row id to search for.
func (m *memRows) MatchRow(ctx context.Context, start int, forward bool, restriction interface{}) (int, bool, error) {
	want, _ := restriction.(uint64)
	if forward {
		for i := start; i < len(m.ids); i++ {
			if m.ids[i] == want {
				return i, true, nil
			}
		}
		return 0, false, nil
	}
	for i := start; i >= 0; i-- {
		if m.ids[i] == want {
			return i, true, nil
		}
	}
	return 0, false, nil
}

func TestSeekCurrentClampsAtEnds(t *testing.T) {
	rows := &memRows{ids: []uint64{1, 2, 3, 4, 5}}
	tbl := table.New(table.Content, 0, rows)
	ctx := context.Background()

	if moved, err := tbl.SeekCurrent(ctx, -3); err != nil || moved != 0 {
		t.Fatalf("SeekCurrent(-3) from 0 = %d, %v, want 0, nil", moved, err)
	}
	if moved, err := tbl.SeekCurrent(ctx, 100); err != nil || moved != 5 {
		t.Fatalf("SeekCurrent(100) = %d, %v, want 5, nil", moved, err)
	}
	if got := tbl.GetPosition(); got != 5 {
		t.Errorf("GetPosition() = %d, want 5 (clamped at total)", got)
	}
}

func TestQueryRowsAdvancesCursor(t *testing.T) {
	rows := &memRows{ids: []uint64{10, 20, 30, 40}}
	tbl := table.New(table.Hierarchy, 0, rows)
	ctx := context.Background()

	got, err := tbl.QueryRows(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Errorf("QueryRows(2) = %v, want [10 20]", got)
	}
	if pos := tbl.GetPosition(); pos != 2 {
		t.Errorf("GetPosition() = %d, want 2", pos)
	}

	got, err = tbl.QueryRows(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 30 || got[1] != 40 {
		t.Errorf("QueryRows(10) at end = %v, want [30 40]", got)
	}

	got, err = tbl.QueryRows(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("QueryRows past end = %v, want empty", got)
	}
}

func TestMatchRowDoesNotMoveCursor(t *testing.T) {
	rows := &memRows{ids: []uint64{1, 2, 3, 4}}
	tbl := table.New(table.Content, 0, rows)
	ctx := context.Background()
	tbl.SeekCurrent(ctx, 1)

	idx, found, err := tbl.MatchRow(ctx, true, uint64(4))
	if err != nil {
		t.Fatal(err)
	}
	if !found || idx != 3 {
		t.Errorf("MatchRow forward for 4 = %d, %v, want 3, true", idx, found)
	}
	if pos := tbl.GetPosition(); pos != 1 {
		t.Errorf("GetPosition() = %d, want unchanged 1", pos)
	}
}

func TestBookmarkCreateRetrieveRemove(t *testing.T) {
	rows := &memRows{ids: []uint64{1, 2, 3}}
	tbl := table.New(table.Content, 0, rows)
	ctx := context.Background()

	tbl.SeekCurrent(ctx, 2)
	bm := tbl.CreateBookmark()

	row, existed, err := tbl.RetrieveBookmark(ctx, bm)
	if err != nil {
		t.Fatal(err)
	}
	if !existed || row != 2 {
		t.Errorf("RetrieveBookmark = %d, %v, want 2, true", row, existed)
	}

	tbl.SeekCurrent(ctx, -2)
	if ok, err := tbl.SeekToBookmark(ctx, bm); err != nil || !ok {
		t.Fatalf("SeekToBookmark = %v, %v, want true, nil", ok, err)
	}
	if pos := tbl.GetPosition(); pos != 2 {
		t.Errorf("GetPosition() after SeekToBookmark = %d, want 2", pos)
	}

	if err := tbl.RemoveBookmark(bm); err != nil {
		t.Fatal(err)
	}
	if _, _, err := tbl.RetrieveBookmark(ctx, bm); err != table.ErrBookmarkNotFound {
		t.Errorf("RetrieveBookmark after remove = %v, want ErrBookmarkNotFound", err)
	}
}

func TestRetrieveBookmarkOnRemovedRowIsIdempotent(t *testing.T) {
	rows := &memRows{ids: []uint64{1, 2, 3}}
	tbl := table.New(table.Content, 0, rows)
	ctx := context.Background()

	tbl.SeekCurrent(ctx, 3)
	bm := tbl.CreateBookmark() // bookmarked at row 3, one past current ids

	rows.ids = rows.ids[:1] // shrink table out from under the bookmark

	row, existed, err := tbl.RetrieveBookmark(ctx, bm)
	if err != nil {
		t.Fatal(err)
	}
	if existed {
		t.Errorf("RetrieveBookmark existed = true for a row beyond the shrunk total, want false")
	}
	if row != 3 {
		t.Errorf("RetrieveBookmark row = %d, want 3 (preserved even though gone)", row)
	}

	// Calling it again must not error or change the answer.
	_, existed2, err := tbl.RetrieveBookmark(ctx, bm)
	if err != nil || existed2 {
		t.Errorf("second RetrieveBookmark = %v, %v, want false, nil", existed2, err)
	}
}

func TestSetColumnsAndRestrictionAreStoredVerbatim(t *testing.T) {
	rows := &memRows{}
	tbl := table.New(table.Hierarchy, table.FlagDepth, rows)
	cols := []exmdb.PropTag{exmdb.PropTag(0x3001), exmdb.PropTag(0x0FFF)}
	tbl.SetColumns(cols)
	if got := tbl.Columns(); len(got) != 2 || got[0] != cols[0] || got[1] != cols[1] {
		t.Errorf("Columns() = %v, want %v", got, cols)
	}
}
