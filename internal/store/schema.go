package store

const Schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	track_id TEXT NOT NULL,
	title TEXT,
	artist TEXT,
	status TEXT NOT NULL,
	score INTEGER,
	source_url TEXT,
	file_path TEXT,
	error_kind TEXT,
	error TEXT,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_jobs_track_id ON jobs(track_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);

CREATE TABLE IF NOT EXISTS cache (
	key TEXT PRIMARY KEY,
	data BLOB,
	expires_at DATETIME
);
`
