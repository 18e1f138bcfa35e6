package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

var migrationFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

const (
	markerUp             = "-- +goose Up"
	markerDown           = "-- +goose Down"
	markerStatementBegin = "-- +goose StatementBegin"
	markerStatementEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks every .sql file in dir and reports all problems at once:
// file naming, unique versions, Up before Down, and balanced statement blocks.
func ValidateDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("migrations dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %q: %w", dir, err)
	}

	var errs error
	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		match := migrationFileRe.FindStringSubmatch(name)
		if match == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: expected <YYYYMMDDHHMMSS>_<name>.sql", name))
			continue
		}
		if prev, dup := versions[match[1]]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %s already used by %s", name, match[1], prev))
			continue
		}
		versions[match[1]] = name

		body, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		errs = multierr.Append(errs, checkMarkers(name, string(body)))
	}
	return errs
}

func checkMarkers(name, body string) error {
	up := strings.Index(body, markerUp)
	down := strings.Index(body, markerDown)
	switch {
	case up < 0:
		return fmt.Errorf("%s: missing %q", name, markerUp)
	case down < 0:
		return fmt.Errorf("%s: missing %q", name, markerDown)
	case down < up:
		return fmt.Errorf("%s: %q must come before %q", name, markerUp, markerDown)
	}
	if begins, ends := strings.Count(body, markerStatementBegin), strings.Count(body, markerStatementEnd); begins != ends {
		return fmt.Errorf("%s: %d StatementBegin markers but %d StatementEnd", name, begins, ends)
	}
	return nil
}
