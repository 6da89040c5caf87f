package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridimport/internal/database"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const peopleCSV = "Id,First,Last\n1,Ada,Lovelace\n2,Grace,Hopper\n"

func gridProfile(t *testing.T, dir, csvPath string) string {
	t.Helper()
	return writeFile(t, dir, "people.yaml", `
source: {kind: delimited, path: `+csvPath+`}
columns:
  - {name: Id, type: Int32, allowNull: false}
  - name: Name
    type: String
    append:
      - {name: First, type: String}
      - {name: Sep, type: String, value: " "}
      - {name: Last, type: String}
`)
}

func TestRun_GridJSON(t *testing.T) {
	dir := t.TempDir()
	profile := gridProfile(t, dir, writeFile(t, dir, "people.csv", peopleCSV))

	out, err := execute(t, "", "run", profile, "-o", "json")
	require.NoError(t, err)

	var records []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &records), out)
	require.Len(t, records, 2)
	assert.Equal(t, "Ada Lovelace", records[0]["Name"])
	assert.Equal(t, "2", records[1]["Id"])
}

func TestRun_StdinTableAndCSV(t *testing.T) {
	dir := t.TempDir()
	profile := gridProfile(t, dir, filepath.Join(dir, "absent.csv"))

	out, err := execute(t, peopleCSV, "run", profile, "--file", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "Grace Hopper")
	assert.Contains(t, out, "(2 rows)")

	out, err = execute(t, peopleCSV, "run", profile, "--file", "-", "-o", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Grace Hopper")
	assert.NotContains(t, out, "(2 rows)")
}

func TestRun_DatabaseSink(t *testing.T) {
	dir := t.TempDir()
	dsn := filepath.Join(dir, "imports.db")

	db, err := database.Open(context.Background(), "sqlite", dsn, database.Options{})
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE people (id INTEGER NOT NULL, name TEXT)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	csvPath := writeFile(t, dir, "people.csv", peopleCSV)
	profile := writeFile(t, dir, "load.yaml", `
source: {kind: delimited, path: `+csvPath+`}
sink: {kind: database, table: people, truncate: true}
columns:
  - {name: Id, type: Int64, bindName: id}
  - {name: First, type: String, bindName: name}
`)

	_, err = execute(t, "", "run", profile)
	assert.ErrorContains(t, err, "needs a database")

	out, err := execute(t, "", "run", profile, "--db-driver", "sqlite", "--db-url", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "people")

	out, err = execute(t, "", "run", profile, "--db-driver", "sqlite", "--db-url", dsn, "-o", "json")
	require.NoError(t, err)
	var res struct {
		Rows     int `json:"rows"`
		Database struct {
			Inserted  int  `json:"inserted"`
			Truncated bool `json:"truncated"`
		} `json:"database"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res), out)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 2, res.Database.Inserted)
	assert.True(t, res.Database.Truncated)

	db, err = database.Open(context.Background(), "sqlite", dsn, database.Options{})
	require.NoError(t, err)
	defer db.Close()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM people").Scan(&n))
	assert.Equal(t, 2, n, "truncate keeps reruns idempotent")
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	profile := gridProfile(t, dir, "people.csv")

	out, err := execute(t, "", "check", profile, "-o", "json")
	require.NoError(t, err)
	var rows []columnRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows), out)
	require.Len(t, rows, 5)
	assert.Equal(t, columnRow{Name: "Sep", Depth: 1, Type: "String", Binding: "String", BindName: "Sep", Nullable: true, Source: `= " "`}, rows[3])
	assert.Equal(t, "appended", rows[1].Source)

	mapping := writeFile(t, dir, "fixed.yaml", "columns:\n  - {name: Code, type: String, position: 0, size: 4}\n")
	out, err = execute(t, "", "check", "--mapping", mapping)
	require.NoError(t, err)
	assert.Contains(t, out, "0+4")
	assert.Contains(t, out, "(1 columns, 1 declared)")

	_, err = execute(t, "", "check", writeFile(t, dir, "bad.yaml", "columns:\n  - {name: A, type: Widget}\n"))
	assert.Error(t, err)
}

func TestProfiles(t *testing.T) {
	dir := t.TempDir()
	gridProfile(t, dir, "people.csv")
	writeFile(t, dir, "orders.yml", "description: Open orders\ncolumns:\n  - {name: A, type: String}\n")

	out, err := execute(t, "", "profiles", dir, "-o", "json")
	require.NoError(t, err)
	var rows []profileRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows), out)
	require.Len(t, rows, 2)
	assert.Equal(t, "orders", rows[0].Name)
	assert.Equal(t, "Open orders", rows[0].Description)
	assert.Equal(t, 5, rows[1].Columns)
}

func TestUnknownOutputFormat(t *testing.T) {
	_, err := execute(t, "", "profiles", t.TempDir(), "-o", "yaml")
	assert.ErrorContains(t, err, "unknown output format")
}
