package store

import (
	"strings"
	"testing"
)

func TestSchemaConstraints(t *testing.T) {
	compact := strings.Join(strings.Fields(schema), " ")
	for _, want := range []string{
		"UNIQUE (meeting_id, person_id, date)",
		"name_key TEXT NOT NULL",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_people_name_key ON people (name_key)",
		"CREATE TABLE IF NOT EXISTS app_config",
	} {
		if !strings.Contains(compact, want) {
			t.Errorf("schema is missing %q", want)
		}
	}
	if strings.Count(compact, "CREATE TABLE IF NOT EXISTS") != strings.Count(compact, "CREATE TABLE") {
		t.Error("every table must be created idempotently")
	}
}
