package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/pavelanni/taketest/internal/model"
	"github.com/pavelanni/taketest/internal/store"
	"github.com/pavelanni/taketest/internal/validate"
)

// loadTests imports test files into db. Files whose content hash matches the
// last import are skipped; changed files are re-imported only with force.
func loadTests(ctx context.Context, db *store.Store, paths []string, force bool) error {
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		hash := sha256sum(data)
		storedHash, err := db.GetImportedFileHash(ctx, path)
		if err != nil {
			return fmt.Errorf("check import status for %s: %w", path, err)
		}

		if storedHash == hash {
			slog.Info("tests file unchanged, skipping", "path", path)
			continue
		}
		if storedHash != "" && !force {
			slog.Warn("tests file changed since last import, skipping (use --force to re-import)",
				"path", path)
			continue
		}

		tests, err := parseTests(data)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for i := range tests {
			if fields := validate.Struct(&tests[i]); fields != nil {
				return fmt.Errorf("%s: test %d: %w", path, i, validate.Error(fields))
			}
		}

		for _, ti := range tests {
			t := ti.ToTest()
			if err := db.InsertTest(ctx, t); err != nil {
				return fmt.Errorf("insert test %s from %s: %w", t.ID, path, err)
			}
			slog.Info("imported test", "path", path, "test_id", t.ID,
				"questions", len(t.Questions), "duration_minutes", t.DurationMinutes)
		}

		if err := db.SetImportedFileHash(ctx, path, hash); err != nil {
			return fmt.Errorf("record import for %s: %w", path, err)
		}
	}

	return nil
}

// parseTests accepts either a single test object or an array of them.
func parseTests(data []byte) ([]model.TestImport, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var tests []model.TestImport
		if err := json.Unmarshal(trimmed, &tests); err != nil {
			return nil, err
		}
		return tests, nil
	}
	var t model.TestImport
	if err := json.Unmarshal(trimmed, &t); err != nil {
		return nil, err
	}
	return []model.TestImport{t}, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
