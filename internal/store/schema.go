package store

const schema = `
CREATE TABLE IF NOT EXISTS people (
	id         UUID PRIMARY KEY,
	full_name  TEXT NOT NULL,
	name_key   TEXT NOT NULL,
	phone      TEXT,
	notes      TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- name_key is the case-folded name computed by the application.
ALTER TABLE people ADD COLUMN IF NOT EXISTS name_key TEXT;
UPDATE people SET name_key = LOWER(TRIM(full_name)) WHERE name_key IS NULL;
ALTER TABLE people ALTER COLUMN name_key SET NOT NULL;
DROP INDEX IF EXISTS idx_people_full_name;
CREATE UNIQUE INDEX IF NOT EXISTS idx_people_name_key ON people (name_key);

CREATE TABLE IF NOT EXISTS meetings (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	display_order INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS attendance_records (
	id         UUID PRIMARY KEY,
	meeting_id UUID NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
	person_id  UUID NOT NULL REFERENCES people(id) ON DELETE CASCADE,
	date       DATE NOT NULL,
	marked_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (meeting_id, person_id, date)
);

CREATE INDEX IF NOT EXISTS idx_records_meeting_date ON attendance_records (meeting_id, date);
CREATE INDEX IF NOT EXISTS idx_records_person ON attendance_records (person_id);

CREATE TABLE IF NOT EXISTS app_config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
