// Package handle implements the handle map (spec.md §3 "Handle map",
// §4.3, component C5): a per-session table from opaque 32-bit handles to
// typed objects, with parent/child linkage and cascading release.
//
// Re-architected per spec.md §9's guidance: objects are owned by the
// map (not a raw pointer graph), and object type is a tagged variant
// rather than a void* + type tag. Cascading release is a depth-first
// walk over the map's parent/child edges; there is no cyclic ownership.
package handle

import (
	"errors"
	"sync"
)

// ObjectType tags the kind of object stored behind a handle.
type ObjectType int

const (
	TypeLogon ObjectType = iota
	TypeFolder
	TypeMessage
	TypeTable
	TypeAttachment
	TypeStream
)

func (t ObjectType) String() string {
	switch t {
	case TypeLogon:
		return "Logon"
	case TypeFolder:
		return "Folder"
	case TypeMessage:
		return "Message"
	case TypeTable:
		return "Table"
	case TypeAttachment:
		return "Attachment"
	case TypeStream:
		return "Stream"
	default:
		return "ObjectType(unknown)"
	}
}

// LogonHandle is the handle reserved for the logon object (spec.md §3).
const LogonHandle uint32 = 0

var (
	// ErrNotFound is returned by Get/Release for an unknown or already
	// released handle.
	ErrNotFound = errors.New("handle: not found")
	// ErrWrongType is returned by Get when the stored object's type
	// does not match the requested type.
	ErrWrongType = errors.New("handle: wrong type")
	// ErrExhausted is returned by Add when no further handles can be
	// allocated (spec.md §7 "Resource": ServerOOM maps to this at the
	// rop layer).
	ErrExhausted = errors.New("handle: exhausted")
)

type entry struct {
	obj      interface{}
	typ      ObjectType
	parent   uint32
	children map[uint32]struct{}
}

// Releaser is implemented by objects that need to run cleanup (e.g.
// flushing a dirty stream) when their handle is released.
type Releaser interface {
	OnRelease()
}

// Map is a per-session handle table. It must not be shared between
// sessions; within a session all operations are serialized by its
// internal mutex (spec.md §5 "handle-map operations are serialized").
type Map struct {
	mu      sync.Mutex
	next    uint32
	entries map[uint32]*entry
}

// New creates a Map with the logon object installed at handle 0.
func New(logonObj interface{}) *Map {
	m := &Map{
		next:    1,
		entries: make(map[uint32]*entry),
	}
	m.entries[LogonHandle] = &entry{obj: logonObj, typ: TypeLogon, parent: LogonHandle, children: make(map[uint32]struct{})}
	return m
}

// Add installs obj as a child of parent, returning its new handle.
// parent must already exist in the map (the logon handle 0 always
// qualifies).
func (m *Map) Add(parent uint32, typ ObjectType, obj interface{}) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pe, ok := m.entries[parent]
	if !ok {
		return 0, ErrNotFound
	}
	for i := uint32(0); i < 1<<32-1; i++ {
		h := m.next
		m.next++
		if m.next == 0 {
			m.next = 1 // wrap past the reserved logon handle
		}
		if _, taken := m.entries[h]; taken || h == LogonHandle {
			continue
		}
		m.entries[h] = &entry{obj: obj, typ: typ, parent: parent, children: make(map[uint32]struct{})}
		pe.children[h] = struct{}{}
		return h, nil
	}
	return 0, ErrExhausted
}

// Get returns the object stored at handle, if its type matches want.
func (m *Map) Get(h uint32, want ObjectType) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[h]
	if !ok {
		return nil, ErrNotFound
	}
	if e.typ != want {
		return nil, ErrWrongType
	}
	return e.obj, nil
}

// GetAny returns the object and its type tag, without a type check.
// Folder verbs that accept either a Logon or a Folder handle
// (spec.md §4.7.1 OpenFolder) use this.
func (m *Map) GetAny(h uint32) (interface{}, ObjectType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[h]
	if !ok {
		return nil, 0, ErrNotFound
	}
	return e.obj, e.typ, nil
}

// Release removes handle h and every handle in its descendant subtree,
// parent first or child first order is unspecified (the tree is
// disjoint so ordering does not matter), calling OnRelease on any
// object that implements Releaser. Release is idempotent: releasing an
// already-released or unknown handle is a no-op.
func (m *Map) Release(h uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked(h)
}

func (m *Map) releaseLocked(h uint32) {
	e, ok := m.entries[h]
	if !ok {
		return
	}
	for child := range e.children {
		m.releaseLocked(child)
	}
	delete(m.entries, h)
	if pe, ok := m.entries[e.parent]; ok && e.parent != h {
		delete(pe.children, h)
	}
	if r, ok := e.obj.(Releaser); ok {
		r.OnRelease()
	}
}

// Count reports the number of live handles, including the logon handle.
// Intended for tests and diagnostics.
func (m *Map) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
