package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestUpsertSearchDelete(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memory.db")

	docs := []string{
		`{"filename":"AGENTS.md","doc_type":"rules","content":"always test","file_path":"AGENTS.md","embedding":[1,0,0]}`,
		`{"filename":"LUNCH.md","content":"sandwich","file_path":"LUNCH.md","embedding":[0,1,0]}`,
	}
	for _, d := range docs {
		if _, err := run(t, d, "upsert", "--db", dbPath, "--table", "system_docs"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	out, err := run(t, `{"vector":[1,0,0],"threshold":0.5,"limit":5}`,
		"search", "--db", dbPath, "--table", "system_docs")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var rows []map[string]any
	if err = json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d: %s", len(rows), out)
	}
	if rows[0]["file_path"] != "AGENTS.md" || rows[0]["content"] != "always test" {
		t.Errorf("unexpected row: %v", rows[0])
	}
	if sim, ok := rows[0]["similarity"].(float64); !ok || sim < 0.99 {
		t.Errorf("expected similarity near 1, got %v", rows[0]["similarity"])
	}
	if _, ok := rows[0]["embedding"]; ok {
		t.Error("embedding must not be echoed")
	}

	out, err = run(t, "", "delete", "--db", dbPath, "--table", "system_docs", "--file-path", "AGENTS.md")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !strings.Contains(out, `"deleted":1`) {
		t.Errorf("expected one deleted row, got %s", out)
	}

	out, err = run(t, `{"vector":[1,0,0]}`, "search", "--db", dbPath, "--table", "system_docs")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("expected empty array, got %s", out)
	}
}

func TestSearch_FlagDefaultsApply(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memory.db")
	for i, fp := range []string{"a.md", "b.md", "c.md"} {
		doc := `{"name":"cap` + string(rune('0'+i)) + `","content":"x","file_path":"` + fp + `","embedding":[1,0]}`
		if _, err := run(t, doc, "upsert", "--db", dbPath, "--table", "capabilities"); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	out, err := run(t, `{"vector":[1,0]}`, "search", "--db", dbPath, "--table", "capabilities", "--limit", "2")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var rows []map[string]any
	if err = json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected flag limit 2, got %d", len(rows))
	}
}

func TestSearch_MissingDatabase(t *testing.T) {
	_, err := run(t, `{"vector":[1]}`, "search", "--db", filepath.Join(t.TempDir(), "nope.db"), "--table", "sessions")
	if err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestSearch_BadInput(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memory.db")
	if _, err := run(t, `{"file_path":"a","content":"x","embedding":[1]}`,
		"upsert", "--db", dbPath, "--table", "sessions"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	cases := [][]string{
		{"not json", "search", "--db", dbPath, "--table", "sessions"},
		{`{"vector":[]}`, "search", "--db", dbPath, "--table", "sessions"},
		{`{"vector":[1]}`, "search", "--db", dbPath, "--table", "users"},
		{`{"vector":[1]}`, "search", "--db", dbPath},
	}
	for _, c := range cases {
		if _, err := run(t, c[0], c[1:]...); err == nil {
			t.Errorf("args %v with stdin %q: expected error", c[1:], c[0])
		}
	}
}

func TestUpsert_RequiresEmbedding(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memory.db")
	if _, err := run(t, `{"file_path":"a.md"}`, "upsert", "--db", dbPath, "--table", "sessions"); err == nil {
		t.Error("expected error without embedding")
	}
	if _, err := run(t, `{"file_path":"a.md","password":"x","embedding":[1]}`,
		"upsert", "--db", dbPath, "--table", "sessions"); err == nil {
		t.Error("expected error for unknown column")
	}
}

func TestDelete_RequiresFilePath(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "memory.db")
	if _, err := run(t, "", "delete", "--db", dbPath, "--table", "sessions"); err == nil {
		t.Error("expected error without --file-path")
	}
}
