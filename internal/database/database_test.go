package database

import (
	"database/sql"
	"testing"
)

func TestOpenRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	tables := []string{
		"areas", "instance_templates", "recurrence_rules", "recurrence_links",
		"tasks", "task_schedules", "time_blocks", "task_time_block_links",
	}
	for _, name := range tables {
		var got string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&got)
		if err != nil {
			t.Errorf("table %q missing: %v", name, err)
		}
	}
}

func TestLinkKeyIsUnique(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	seedRule(t, db, "r1")

	insert := `INSERT INTO recurrence_links (recurrence_id, occurrence_date, instance_id, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	if _, err := db.Exec(insert, "r1", "2025-01-03", "a"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := db.Exec(insert, "r1", "2025-01-03", "b"); err == nil {
		t.Error("second insert for the same (recurrence, date) should fail")
	}
	if _, err := db.Exec(insert, "r1", "2025-01-04", "c"); err != nil {
		t.Errorf("insert for another date: %v", err)
	}
}

func TestLinkRequiresRule(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	insert := `INSERT INTO recurrence_links (recurrence_id, occurrence_date, instance_id, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	if _, err := db.Exec(insert, "gone", "2025-01-03", "a"); err == nil {
		t.Error("link for an unknown rule should fail")
	}

	seedRule(t, db, "r1")
	if _, err := db.Exec(insert, "r1", "2025-01-03", "a"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Exec(`DELETE FROM recurrence_rules WHERE id = ?`, "r1"); err == nil {
		t.Error("deleting a rule that still has links should fail")
	}
}

func seedRule(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	if _, err := db.Exec(`INSERT INTO instance_templates (id, title, created_at, updated_at) VALUES (?, 'x', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, "tpl-"+id); err != nil {
		t.Fatalf("seed template: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO recurrence_rules (id, kind, template_id, rule, created_at, updated_at) VALUES (?, 'task', ?, 'FREQ=DAILY', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`, id, "tpl-"+id); err != nil {
		t.Fatalf("seed rule: %v", err)
	}
}
