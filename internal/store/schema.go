package store

// schemaVersion is stored in PRAGMA user_version. A cache written under any
// other version is dropped and rebuilt on Open.
const schemaVersion = 2

// Sessions are keyed by the file they were parsed from: two tools may export
// sessions that share an ID.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    file_path            TEXT PRIMARY KEY,
    session_id           TEXT NOT NULL,
    agentic_tool         TEXT NOT NULL,
    parent_session_id    TEXT,
    title                TEXT,
    file_mtime_ns        INTEGER NOT NULL,
    file_size            INTEGER NOT NULL,
    parsed_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
    file_path            TEXT NOT NULL REFERENCES sessions(file_path) ON DELETE CASCADE,
    seq                  INTEGER NOT NULL,
    task_id              TEXT NOT NULL,
    created_at           TEXT,
    model                TEXT,
    usage                TEXT,
    context_window_limit INTEGER,
    PRIMARY KEY (file_path, seq)
);

CREATE TABLE IF NOT EXISTS messages (
    file_path            TEXT NOT NULL REFERENCES sessions(file_path) ON DELETE CASCADE,
    seq                  INTEGER NOT NULL,
    message_id           TEXT NOT NULL,
    task_id              TEXT,
    type                 TEXT NOT NULL,
    content              TEXT,
    created_at           TEXT,
    PRIMARY KEY (file_path, seq)
);

CREATE TABLE IF NOT EXISTS file_tracker (
    file_path            TEXT PRIMARY KEY,
    mtime_ns             INTEGER NOT NULL,
    size_bytes           INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_id ON sessions(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_tool ON sessions(agentic_tool);
`

const dropSQL = `
DROP TABLE IF EXISTS messages;
DROP TABLE IF EXISTS tasks;
DROP TABLE IF EXISTS sessions;
DROP TABLE IF EXISTS file_tracker;
`
