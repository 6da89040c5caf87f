package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/gridimport/internal/config"
	"github.com/JonMunkholm/gridimport/internal/core"
	"github.com/JonMunkholm/gridimport/internal/database"
	"github.com/JonMunkholm/gridimport/internal/metrics"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

const (
	gridProfile = `
name: people
description: People sample
columns:
  - {name: Id, type: Int32, allowNull: false}
  - name: Name
    type: String
    append:
      - {name: First, type: String}
      - {name: Sep, type: String, value: " "}
      - {name: Last, type: String}
`
	dbProfile = `
name: load
sink: {kind: database, table: people}
columns:
  - {name: Id, type: Int64, bindName: id, allowNull: false}
  - {name: First, type: String, bindName: name}
`
	queryProfile = `
name: export
source: {kind: query, table: people}
columns:
  - {name: id, type: Int64}
  - {name: name, type: String}
`
	peopleCSV = "Id,First,Last\n1,Ada,Lovelace\n2,Grace,Hopper\n"
)

func newTestServer(t *testing.T, keys ...string) (*Server, *database.DB) {
	t.Helper()

	db, err := database.Open(context.Background(), "sqlite", ":memory:", database.Options{MaxConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`CREATE TABLE people (id INTEGER NOT NULL, name TEXT)`)
	require.NoError(t, err)

	reg := core.NewRegistry()
	for _, doc := range []string{gridProfile, dbProfile, queryProfile} {
		p, err := core.ParseProfile(strings.NewReader(doc), "")
		require.NoError(t, err)
		require.NoError(t, reg.Register(p))
	}
	svc := core.NewService(reg, core.WithDatabase(db), core.WithLogger(quiet), core.WithMetrics(metrics.New()))

	cfg := &config.Config{
		Server: config.ServerConfig{APIKeys: keys},
		Import: config.ImportConfig{MaxFileSize: 1 << 20, PreviewRows: 20},
	}
	return NewServer(svc, cfg, quiet), db
}

func upload(t *testing.T, target, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "people.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["profiles"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestListAndGetProfile(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/profiles", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]profileSummary](t, rec)
	require.Len(t, list, 3)
	assert.Equal(t, "export", list[0].Name)
	assert.False(t, list[0].AcceptsUpload)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/profiles/PEOPLE", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[profileDetail](t, rec)
	assert.Equal(t, "People sample", detail.Description)
	assert.Equal(t, 5, detail.ColumnCount)
	require.Len(t, detail.Columns, 5)
	assert.Equal(t, columnInfo{Name: "Sep", Type: "String", AllowNull: true, Depth: 1}, detail.Columns[3])
	assert.False(t, detail.Columns[0].AllowNull)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/profiles/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "IMP004", decode[ErrorResponse](t, rec).Code)
}

func TestImport_GridSink(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, upload(t, "/api/import/people", peopleCSV))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[importResponse](t, rec)
	assert.Equal(t, 2, resp.Rows)
	assert.Nil(t, resp.Database)
	assert.Equal(t, []string{"Id", "Name", "First", "Sep", "Last"}, resp.Columns)
	assert.Equal(t, "Grace Hopper", resp.Records[1]["Name"])
}

func TestImport_DatabaseSink(t *testing.T) {
	s, db := newTestServer(t)
	rec := serve(s, upload(t, "/api/import/load", peopleCSV))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[importResponse](t, rec)
	require.NotNil(t, resp.Database)
	assert.EqualValues(t, 2, resp.Database.Inserted)
	assert.Empty(t, resp.Records)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM people").Scan(&n))
	assert.Equal(t, 2, n)

	rec = serve(s, httptest.NewRequest(http.MethodPost, "/api/import/export", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Ada", decode[importResponse](t, rec).Records[0]["name"])
}

func TestImport_Failure(t *testing.T) {
	s, db := newTestServer(t)
	rec := serve(s, upload(t, "/api/import/load", "Id,First\n1,Ada\n,Nobody\n"))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "NUL001", decode[ErrorResponse](t, rec).Code)

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM people").Scan(&n))
	assert.Zero(t, n)
}

func TestImport_QueryProfileRejectsUpload(t *testing.T) {
	s, _ := newTestServer(t)
	rec := serve(s, upload(t, "/api/import/export", peopleCSV))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "REQ001", decode[ErrorResponse](t, rec).Code)
}

func TestPreview(t *testing.T) {
	s, db := newTestServer(t)
	rec := serve(s, upload(t, "/api/preview/load?rows=1", peopleCSV))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[core.PreviewResponse](t, rec)
	assert.Equal(t, 2, resp.TotalRows)
	require.Len(t, resp.Rows, 1)
	assert.Equal(t, "Ada", resp.Rows[0]["First"])

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM people").Scan(&n))
	assert.Zero(t, n)
}

func TestImports_ListAndCancel(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/imports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/imports/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(s, httptest.NewRequest(http.MethodDelete, "/api/imports/6f1c1a4e-8d7b-4c1e-9f6a-2b3c4d5e6f70", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "IMP005", decode[ErrorResponse](t, rec).Code)
}

func TestAPIKeyRequired(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/profiles", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/profiles", nil)
	req.Header.Set("X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, serve(s, req).Code)

	assert.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
}

func TestMetrics(t *testing.T) {
	s, _ := newTestServer(t, "secret")

	for _, body := range []string{peopleCSV, "Id,First\n,Nobody\n"} {
		req := upload(t, "/api/import/load", body)
		req.Header.Set("X-API-Key", "secret")
		serve(s, req)
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.Contains(t, out, `gridimport_imports_total{outcome="success",profile="load"} 1`)
	assert.Contains(t, out, `gridimport_imports_total{outcome="failed",profile="load"} 1`)
	assert.Contains(t, out, `gridimport_import_failures_total{code="NUL001",profile="load"} 1`)
	assert.Contains(t, out, `gridimport_rows_total{profile="load"} 2`)
	assert.Contains(t, out, "gridimport_imports_active 0")
}
