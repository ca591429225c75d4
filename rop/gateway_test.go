package rop_test

import (
	"testing"

	"github.com/obsidiangroup/gromox-sub002/handle"
	"github.com/obsidiangroup/gromox-sub002/mapierr"
	"github.com/obsidiangroup/gromox-sub002/rop"
)

func TestGatewayNilSession(t *testing.T) {
	g := &rop.Gateway{}
	var reply rop.OpenFolderReply
	err := g.OpenFolder(rop.OpenFolderArgs{Hin: handle.LogonHandle, FID: ipmSubtree}, &reply)
	if err != rop.ErrNilSession {
		t.Fatalf("err = %v, want ErrNilSession", err)
	}
}

func TestGatewayOpenFolderRoundTrip(t *testing.T) {
	_, s := newFixture()
	g := &rop.Gateway{Session: s}

	var reply rop.OpenFolderReply
	if err := g.OpenFolder(rop.OpenFolderArgs{Hin: handle.LogonHandle, FID: ipmSubtree}, &reply); err != nil {
		t.Fatalf("OpenFolder error = %v", err)
	}
	if reply.Code != mapierr.Success {
		t.Fatalf("OpenFolder code = %v", reply.Code)
	}
	if reply.Output.Handle == handle.LogonHandle {
		t.Fatalf("OpenFolder returned the reserved logon handle")
	}

	var relReply rop.ReleaseReply
	if err := g.Release(rop.ReleaseArgs{Hin: reply.Output.Handle}, &relReply); err != nil {
		t.Fatalf("Release error = %v", err)
	}
	if s.Handles.Count() != 1 {
		t.Fatalf("Count after release = %d, want 1", s.Handles.Count())
	}
}
