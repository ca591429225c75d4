package handle_test

import (
	"testing"

	"github.com/obsidiangroup/gromox-sub002/handle"
)

type fakeFolder struct{ released bool }

func (f *fakeFolder) OnRelease() { f.released = true }

func TestLogonHandleIsZero(t *testing.T) {
	m := handle.New("logon-obj")
	obj, err := m.Get(handle.LogonHandle, handle.TypeLogon)
	if err != nil {
		t.Fatal(err)
	}
	if obj != "logon-obj" {
		t.Errorf("got %v, want logon-obj", obj)
	}
}

func TestGetWrongTypeAndNotFound(t *testing.T) {
	m := handle.New("logon-obj")
	if _, err := m.Get(handle.LogonHandle, handle.TypeFolder); err != handle.ErrWrongType {
		t.Errorf("err = %v, want ErrWrongType", err)
	}
	if _, err := m.Get(999, handle.TypeFolder); err != handle.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestReleaseCascades(t *testing.T) {
	m := handle.New("logon-obj")
	folder := &fakeFolder{}
	fh, err := m.Add(handle.LogonHandle, handle.TypeFolder, folder)
	if err != nil {
		t.Fatal(err)
	}
	th, err := m.Add(fh, handle.TypeTable, "table-obj")
	if err != nil {
		t.Fatal(err)
	}

	m.Release(fh)

	if _, err := m.Get(fh, handle.TypeFolder); err != handle.ErrNotFound {
		t.Errorf("folder handle err = %v, want ErrNotFound after release", err)
	}
	if _, err := m.Get(th, handle.TypeTable); err != handle.ErrNotFound {
		t.Errorf("child table handle err = %v, want ErrNotFound after parent release", err)
	}
	if !folder.released {
		t.Errorf("expected OnRelease to be called on the folder object")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	m := handle.New("logon-obj")
	fh, _ := m.Add(handle.LogonHandle, handle.TypeFolder, &fakeFolder{})
	m.Release(fh)
	m.Release(fh) // must not panic
}

func TestAddUnknownParent(t *testing.T) {
	m := handle.New("logon-obj")
	if _, err := m.Add(12345, handle.TypeFolder, "x"); err != handle.ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
