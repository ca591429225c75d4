package sqlitestore

// createSQL follows the teacher's createSQL layout (spilldb/db/sql.go):
// one script, CREATE TABLE IF NOT EXISTS throughout, comments noting the
// Go-side meaning of non-obvious columns. ExtraProps carries any
// PropTag this schema does not give its own column, as a JSON object
// keyed by decimal tag.
const createSQL = `
PRAGMA auto_vacuum = INCREMENTAL;

CREATE TABLE IF NOT EXISTS Counters (
	Name  TEXT PRIMARY KEY,
	Value INTEGER NOT NULL
);
INSERT OR IGNORE INTO Counters (Name, Value) VALUES ('nextid', 0);
INSERT OR IGNORE INTO Counters (Name, Value) VALUES ('cn', 0);

CREATE TABLE IF NOT EXISTS Folders (
	FolderID              INTEGER PRIMARY KEY,
	ParentID              INTEGER NOT NULL,
	FolderType            INTEGER NOT NULL,
	DisplayName           TEXT NOT NULL DEFAULT '',
	Comment               TEXT NOT NULL DEFAULT '',
	CreationTime          INTEGER NOT NULL DEFAULT 0,
	LastModificationTime  INTEGER NOT NULL DEFAULT 0,
	ChangeNumber          INTEGER NOT NULL DEFAULT 0,
	ChangeKey             TEXT, -- base64
	PredecessorChangeList TEXT, -- base64
	HasRules              BOOLEAN NOT NULL DEFAULT 0,
	Deleted               BOOLEAN NOT NULL DEFAULT 0,
	ExtraProps            TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_folders_parent ON Folders(ParentID);

CREATE TABLE IF NOT EXISTS Messages (
	MessageID                      INTEGER PRIMARY KEY,
	FolderID                       INTEGER NOT NULL,
	Owner                          TEXT NOT NULL DEFAULT '',
	FAI                            BOOLEAN NOT NULL DEFAULT 0,
	Deleted                        BOOLEAN NOT NULL DEFAULT 0,
	Subject                        TEXT NOT NULL DEFAULT '',
	FromAddr                       TEXT NOT NULL DEFAULT '',
	NonReceiptNotificationRequest  BOOLEAN NOT NULL DEFAULT 0,
	Read                           BOOLEAN NOT NULL DEFAULT 0,
	ExtraProps                     TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_messages_folder ON Messages(FolderID);

-- Permissions rows are keyed by MemberID (spec.md §4.7.8); Principal is
-- this reference driver's resolution of EntryID to a checkable identity
-- (real exmdb resolves EntryID against the directory service, which is
-- out of scope per spec.md §1 -- this driver treats EntryID as already
-- holding the UTF-8 principal name, falling back to "member:<id>" when
-- EntryID is absent, purely so CheckFolderPermission has something to
-- match against in tests).
CREATE TABLE IF NOT EXISTS Permissions (
	FolderID  INTEGER NOT NULL,
	MemberID  INTEGER NOT NULL,
	Principal TEXT NOT NULL,
	EntryID   TEXT, -- base64
	Rights    INTEGER NOT NULL,
	FreeBusy  BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (FolderID, MemberID)
);

CREATE INDEX IF NOT EXISTS idx_permissions_principal ON Permissions(FolderID, Principal);

CREATE TABLE IF NOT EXISTS SearchCriteria (
	FolderID    INTEGER PRIMARY KEY,
	Flags       INTEGER NOT NULL,
	Restriction TEXT,
	ScopeFolder TEXT NOT NULL DEFAULT '[]',
	Status      INTEGER NOT NULL
);
`
