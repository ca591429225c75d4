// Package logon implements the logon object (spec.md §3 "Logon",
// component C4): the session-scoped identity a client authenticates
// into, and the permission-evaluation inputs every rop_* verb consults.
//
// Grounded on logon_object.h's check_private()/logon_mode fields, used
// throughout oxcfold.cpp/oxcperm.cpp (original_source).
package logon

import "github.com/google/uuid"

// Kind distinguishes a private-mailbox logon from a public-folder store
// logon (spec.md §3).
type Kind int

const (
	Private Kind = iota
	Public
)

func (k Kind) String() string {
	switch k {
	case Private:
		return "Private"
	case Public:
		return "Public"
	default:
		return "Kind(unknown)"
	}
}

// Logon is the authenticated mailbox session (spec.md §3). Its lifetime
// equals the client session; it is destroyed when the session's handle
// map root is released (spec.md §3 "Lifecycle summary").
type Logon struct {
	Kind      Kind
	Principal string
	Owner     bool // true when Principal owns this mailbox
	AccountID int64
	Dir       string // backing directory path, passed to every Store call
	MailboxGUID uuid.UUID

	// PrivateRoot/PrivateIPMSubtree/PublicRoot are the well-known folder
	// ids this mailbox uses for visibility-promotion and system-folder
	// checks (spec.md §4.2 rule 3, §4.7.2-5). PrivateCustom/PublicCustom
	// are the lowest non-system folder ids (spec.md §3 "Invariants").
	PrivateRoot       uint64
	PrivateIPMSubtree uint64
	PrivateCalendar   uint64
	PublicRoot        uint64
	PrivateCustom     uint64
	PublicCustom      uint64
}

// IsPrivate reports whether this is a private-mailbox logon.
func (l *Logon) IsPrivate() bool { return l.Kind == Private }

// CustomFolderThreshold returns the lowest folder id that is not a
// well-known system folder, for this logon's store kind (spec.md §3
// "Well-known folder ids below a threshold ... are system folders").
func (l *Logon) CustomFolderThreshold() uint64 {
	if l.IsPrivate() {
		return l.PrivateCustom
	}
	return l.PublicCustom
}

// New constructs a Logon. Authentication itself (binding the principal
// to a password/token) is an external collaborator's job (spec.md §1);
// by the time a Logon is constructed, the caller has already
// authenticated and decided Owner/AccountID/Dir.
func New(kind Kind, principal string, owner bool, accountID int64, dir string, mailboxGUID uuid.UUID) *Logon {
	return &Logon{
		Kind:      kind,
		Principal: principal,
		Owner:     owner,
		AccountID: accountID,
		Dir:       dir,
		MailboxGUID: mailboxGUID,
	}
}
