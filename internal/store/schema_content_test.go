package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// The service layer assumes these constraints exist; this guards against the
// migration being edited out from under it.
func TestInitMigrationDeclaresWorkflowConstraints(t *testing.T) {
	path := filepath.Join("..", "..", "migrations", "0001_init.up.sql")
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(raw)

	for _, snippet := range []string{
		`CHECK (status IN ('open', 'frozen', 'closed'))`,
		`UNIQUE (subject_id, round_number)`,
		`CHECK (author_type IN ('client', 'architect', 'team'))`,
		`CHECK (status IN ('draft', 'sent'))`,
		`CHECK (channel IN ('client_architect', 'office'))`,
	} {
		if !strings.Contains(sql, snippet) {
			t.Errorf("0001_init.up.sql missing constraint %q", snippet)
		}
	}
}
