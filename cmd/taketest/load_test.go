package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pavelanni/taketest/internal/store"
)

const singleTest = `{
  "id": "pa-1",
  "title": "Postal Assistant Mock 1",
  "durationMinutes": 45,
  "questions": [
    {"text": "Capital of India?", "options": ["Delhi", "Mumbai"], "correctAnswer": "A"},
    {"text": "2 + 2 = 4", "type": "true_false", "options": ["True", "False"], "correctAnswer": "A", "points": 2}
  ]
}`

const twoTests = `[
  {"id": "a", "title": "A", "duration_minutes": 20, "questions": [{"text": "q"}]},
  {"id": "b", "title": "B", "durationMinutes": "20", "questions": []}
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func newStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestParseTests(t *testing.T) {
	one, err := parseTests([]byte("  \n" + singleTest))
	if err != nil {
		t.Fatalf("parse single: %v", err)
	}
	if len(one) != 1 || one[0].ID != "pa-1" || len(one[0].Questions) != 2 {
		t.Errorf("unexpected single parse: %+v", one)
	}

	many, err := parseTests([]byte(twoTests))
	if err != nil {
		t.Fatalf("parse array: %v", err)
	}
	if len(many) != 2 || many[1].ID != "b" {
		t.Errorf("unexpected array parse: %+v", many)
	}

	if _, err := parseTests([]byte("{")); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestLoadTestsSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "pa.json", singleTest)

	if err := loadTests(ctx, db, []string{path}, false); err != nil {
		t.Fatalf("loadTests: %v", err)
	}
	got, err := db.GetTest(ctx, "pa-1")
	if err != nil {
		t.Fatalf("GetTest: %v", err)
	}
	if got.DurationMinutes != 45 || len(got.Questions) != 2 {
		t.Errorf("unexpected test %+v", got)
	}
	if got.Questions[1].Points != 2 || got.Questions[0].Points != 1 {
		t.Errorf("points not imported: %d, %d", got.Questions[0].Points, got.Questions[1].Points)
	}

	// A changed file is left alone without force.
	writeFile(t, dir, "pa.json", strings.Replace(singleTest, "Mock 1", "Mock 1 revised", 1))
	if err := loadTests(ctx, db, []string{path}, false); err != nil {
		t.Fatalf("loadTests changed: %v", err)
	}
	if got, _ := db.GetTest(ctx, "pa-1"); got.Title != "Postal Assistant Mock 1" {
		t.Errorf("changed file imported without force: %q", got.Title)
	}

	if err := loadTests(ctx, db, []string{path}, true); err != nil {
		t.Fatalf("loadTests force: %v", err)
	}
	if got, _ := db.GetTest(ctx, "pa-1"); got.Title != "Postal Assistant Mock 1 revised" {
		t.Errorf("forced import not applied: %q", got.Title)
	}
}

func TestLoadTestsArrayAndDurations(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	path := writeFile(t, t.TempDir(), "many.json", twoTests)

	if err := loadTests(ctx, db, []string{path}, false); err != nil {
		t.Fatalf("loadTests: %v", err)
	}
	if n, _ := db.TestCount(ctx); n != 2 {
		t.Fatalf("expected 2 tests, got %d", n)
	}
	a, err := db.GetTest(ctx, "a")
	if err != nil {
		t.Fatalf("GetTest a: %v", err)
	}
	if a.DurationMinutes != 20 {
		t.Errorf("expected snake_case duration 20, got %v", a.DurationMinutes)
	}
	b, err := db.GetTest(ctx, "b")
	if err != nil {
		t.Fatalf("GetTest b: %v", err)
	}
	if b.DurationMinutes != 60 {
		t.Errorf("expected string duration to fall back to 60, got %v", b.DurationMinutes)
	}
}

func TestLoadTestsRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	db := newStore(t)
	dir := t.TempDir()

	bad := writeFile(t, dir, "bad.json", `{"id": "x", "questions": [{"text": ""}]}`)
	err := loadTests(ctx, db, []string{bad}, false)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, field := range []string{"title", "questions[0].text"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q does not mention %s", err, field)
		}
	}
	if n, _ := db.TestCount(ctx); n != 0 {
		t.Errorf("invalid file must not be stored, got %d tests", n)
	}
	if hash, _ := db.GetImportedFileHash(ctx, bad); hash != "" {
		t.Error("invalid file must not be recorded as imported")
	}

	if err := loadTests(ctx, db, []string{filepath.Join(dir, "missing.json")}, false); err == nil {
		t.Error("expected error for missing file")
	}
}
