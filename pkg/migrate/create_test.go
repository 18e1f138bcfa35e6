package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestMigrationSlug(t *testing.T) {
	cases := map[string]string{
		"Add Member Notes":          "add_member_notes",
		"  index: subs/period-end ": "index_subs_period_end",
		"***":                       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, migrationSlug(in), in)
	}
}

func TestCreateSQLMigrationRefusesExistingVersion(t *testing.T) {
	dir := t.TempDir()
	at := time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC)

	path, err := createSQLMigration(dir, "add tier index", at)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260601093000_add_tier_index.sql"), path)

	_, err = createSQLMigration(dir, "add tier index", at)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = createSQLMigration(dir, "!!", at)
	require.Error(t, err)
}

func TestValidateDirReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	valid := markerUp + "\n" + markerStatementBegin + "\nSELECT 1;\n" + markerStatementEnd + "\n" + markerDown + "\n"
	write("20260101000000_ok.sql", valid)
	write("20260101000000_dup.sql", valid)
	write("bad-name.sql", valid)
	write("20260102000000_reversed.sql", markerDown+"\n"+markerUp+"\n")
	write("20260103000000_unbalanced.sql", markerUp+"\n"+markerStatementBegin+"\n"+markerDown+"\n")
	write("README.md", "ignored")

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
}
