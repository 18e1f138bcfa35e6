package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// versionLayout is the goose timestamp prefix shared by every ledger migration.
const versionLayout = "20060102150405"

var slugUnsafeRe = regexp.MustCompile(`[^a-z0-9]+`)

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
-- +goose StatementEnd
`

// CreateSQLMigration writes an empty goose migration named
// <dir>/<version>_<slug>.sql and returns its path.
func CreateSQLMigration(dir, name string) (string, error) {
	return createSQLMigration(dir, name, time.Now().UTC())
}

func createSQLMigration(dir, name string, at time.Time) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("migrations dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir %q: %w", dir, err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", at.UTC().Format(versionLayout), slug))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("migration already exists: %s", path)
	}
	if err != nil {
		return "", fmt.Errorf("create migration %q: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, sqlTemplate, slug); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}

// migrationSlug lowercases name and collapses every run of other characters
// into one underscore.
func migrationSlug(name string) string {
	slug := slugUnsafeRe.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(slug, "_")
}
