package idcodec_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/obsidiangroup/gromox-sub002/idcodec"
)

func TestSplitMakeRoundTrip(t *testing.T) {
	id := idcodec.MakeID(idcodec.ReplicaLocal, 0xABCDEF)
	replica, counter := idcodec.Split(id)
	if replica != idcodec.ReplicaLocal {
		t.Errorf("replica = %d, want %d", replica, idcodec.ReplicaLocal)
	}
	if counter != 0xABCDEF {
		t.Errorf("counter = %x, want %x", counter, 0xABCDEF)
	}
}

func TestFolderIDIsLocal(t *testing.T) {
	local := idcodec.FolderID(idcodec.MakeID(idcodec.ReplicaLocal, 1))
	ghost := idcodec.FolderID(idcodec.MakeID(7, 1))
	if !local.IsLocal() {
		t.Errorf("expected local folder id to report local")
	}
	if ghost.IsLocal() {
		t.Errorf("expected foreign replica id to report non-local")
	}
}

func TestChangeKeyRoundTrip(t *testing.T) {
	guid := uuid.New()
	x := idcodec.MakeXID(guid, 42)
	key := x.ChangeKey()
	if len(key) != idcodec.ChangeKeySize {
		t.Fatalf("ChangeKey() len = %d, want %d", len(key), idcodec.ChangeKeySize)
	}
	got, err := idcodec.ParseChangeKey(key)
	if err != nil {
		t.Fatal(err)
	}
	if got.GUID != guid {
		t.Errorf("guid = %v, want %v", got.GUID, guid)
	}
	if got.LocalID != x.LocalID {
		t.Errorf("local id = %v, want %v", got.LocalID, x.LocalID)
	}
}

func TestPCLAppendEachKeyOnce(t *testing.T) {
	guid := uuid.New()
	var pcl idcodec.PCL
	var err error
	var lastKey []byte
	for cn := idcodec.ChangeNumber(1); cn <= 5; cn++ {
		x := idcodec.MakeXID(guid, cn)
		lastKey = x.ChangeKey()
		pcl, err = idcodec.PCLAppend(pcl, x)
		if err != nil {
			t.Fatal(err)
		}
	}
	entries, err := pcl.Entries()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("len(entries) = %d, want 5", len(entries))
	}
	if !pcl.Contains(lastKey) {
		t.Errorf("expected pcl to contain the most recently appended change key")
	}
}

func TestPCLEntriesRejectsMisalignedLength(t *testing.T) {
	pcl := idcodec.PCL(make([]byte, idcodec.ChangeKeySize+1))
	if _, err := pcl.Entries(); err == nil {
		t.Errorf("expected error for misaligned pcl length")
	}
}
