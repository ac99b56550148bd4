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

CREATE TABLE IF NOT EXISTS msg_types (
	name     TEXT PRIMARY KEY,
	renderer TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	namespace  TEXT NOT NULL DEFAULT '',
	msg_type   TEXT NOT NULL REFERENCES msg_types(name),
	payload    TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS user_notifications (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL,
	msg_id     INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
	read_at    DATETIME,
	created_at DATETIME NOT NULL,
	UNIQUE(user_id, msg_id)
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_messages_namespace ON messages(namespace);
CREATE INDEX IF NOT EXISTS idx_messages_msg_type ON messages(msg_type);
CREATE INDEX IF NOT EXISTS idx_user_notifications_user_read
	ON user_notifications(user_id, read_at);
CREATE INDEX IF NOT EXISTS idx_user_notifications_created
	ON user_notifications(created_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
