package account

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

CREATE TABLE IF NOT EXISTS accounts (
	id                TEXT PRIMARY KEY,
	email             TEXT NOT NULL,
	imap_host         TEXT NOT NULL,
	imap_port         INTEGER NOT NULL,
	username          TEXT NOT NULL,
	use_tls           INTEGER NOT NULL DEFAULT 1,
	enabled           INTEGER NOT NULL DEFAULT 1,
	poll_interval_sec INTEGER NOT NULL DEFAULT 0,
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
