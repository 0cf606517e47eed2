package chunksql

// schema is applied on every Open; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS chunks (
    pk INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    task_name TEXT NOT NULL,
    heading TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    anchor TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    vector BLOB,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
    task_name, heading, content,
    content='chunks',
    content_rowid='pk'
);

CREATE TRIGGER IF NOT EXISTS chunks_ai AFTER INSERT ON chunks BEGIN
    INSERT INTO chunks_fts(rowid, task_name, heading, content)
    VALUES (new.pk, new.task_name, new.heading, new.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_ad AFTER DELETE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, task_name, heading, content)
    VALUES ('delete', old.pk, old.task_name, old.heading, old.content);
END;

CREATE TRIGGER IF NOT EXISTS chunks_au AFTER UPDATE ON chunks BEGIN
    INSERT INTO chunks_fts(chunks_fts, rowid, task_name, heading, content)
    VALUES ('delete', old.pk, old.task_name, old.heading, old.content);
    INSERT INTO chunks_fts(rowid, task_name, heading, content)
    VALUES (new.pk, new.task_name, new.heading, new.content);
END;
`
