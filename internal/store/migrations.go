package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	owner_id    TEXT NOT NULL,
	id          TEXT NOT NULL,
	type        TEXT NOT NULL,
	message     TEXT NOT NULL,
	anchor      TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'UNREAD' CHECK(status IN ('UNREAD', 'READ')),
	user_id     TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL,
	PRIMARY KEY (owner_id, id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_owner_status ON notifications(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);

CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS chat_messages (
	seq       INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id  TEXT NOT NULL,
	id        TEXT NOT NULL,
	sender    TEXT NOT NULL DEFAULT '',
	text      TEXT NOT NULL,
	sent_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_messages_owner ON chat_messages(owner_id, seq);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
