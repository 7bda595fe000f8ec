package schema

import (
	"strings"
	"testing"
)

func TestStatements(t *testing.T) {
	stmts := Statements()
	if len(stmts) == 0 {
		t.Fatal("expected statements")
	}
	tables := map[string]bool{}
	for _, stmt := range stmts {
		if strings.HasSuffix(stmt, ";") {
			t.Fatalf("statement should be split on ';': %q", stmt)
		}
		if strings.HasPrefix(stmt, "create table if not exists ") {
			name := strings.Fields(strings.TrimPrefix(stmt, "create table if not exists "))[0]
			tables[name] = true
		}
	}
	for _, want := range []string{"users", "conversations", "messages", "jobs", "integration_tokens"} {
		if !tables[want] {
			t.Fatalf("missing table %q in %v", want, tables)
		}
	}
}
