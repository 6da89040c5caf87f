package core

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

// SourceKind selects the reader a profile uses.
type SourceKind string

const (
	SourceDelimited   SourceKind = "delimited"
	SourceFixed       SourceKind = "fixed"
	SourceQuery       SourceKind = "query"
	SourceSpreadsheet SourceKind = "spreadsheet"
)

// SinkKind selects the formatter a profile uses.
type SinkKind string

const (
	SinkGrid     SinkKind = "grid"
	SinkDatabase SinkKind = "database"
)

// SourceSpec configures the reader. Fields that do not apply to Kind are
// ignored.
type SourceSpec struct {
	Kind SourceKind `yaml:"kind"`
	Path string     `yaml:"path,omitempty"`

	// delimited and fixed; a WHATWG label such as windows-1252
	Encoding string `yaml:"encoding,omitempty"`

	// delimited
	Delimiter        string `yaml:"delimiter,omitempty"`
	Comment          string `yaml:"comment,omitempty"`
	NoHeader         bool   `yaml:"noHeader,omitempty"`
	HeaderSearchRows int    `yaml:"headerSearchRows,omitempty"`
	FilterColumns    bool   `yaml:"filterColumns,omitempty"`

	// fixed
	SkipLines int `yaml:"skipLines,omitempty"`

	// query
	Query string `yaml:"query,omitempty"`
	Table string `yaml:"table,omitempty"`

	// spreadsheet
	Sheet    string `yaml:"sheet,omitempty"`
	Password string `yaml:"password,omitempty"`
	RowLimit int    `yaml:"rowLimit,omitempty"`
}

// SinkSpec configures the formatter.
type SinkSpec struct {
	Kind      SinkKind `yaml:"kind"`
	Table     string   `yaml:"table,omitempty"`
	Query     string   `yaml:"query,omitempty"`
	Truncate  bool     `yaml:"truncate,omitempty"`
	PreEvent  string   `yaml:"preEvent,omitempty"`
	PostEvent string   `yaml:"postEvent,omitempty"`
}

// Profile is a named import: where rows come from, how columns are mapped,
// and where the result goes.
//
//	name: customers
//	source: {kind: delimited, path: data/customers.csv}
//	sink: {kind: database, table: customers, truncate: true}
//	columns:
//	  - {name: Id, type: Int32, allowNull: false}
//	  - {name: Email, type: String}
//
// Columns may instead live in a separate mapping document named by
// "mapping", resolved relative to the profile file.
type Profile struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Source      SourceSpec         `yaml:"source"`
	Sink        SinkSpec           `yaml:"sink"`
	Mapping     string             `yaml:"mapping,omitempty"`
	Columns     []schema.ColumnDoc `yaml:"columns,omitempty"`

	schema schema.Schema
	file   string
}

// Schema returns the built column schema.
func (p *Profile) Schema() schema.Schema { return p.schema }

// File returns the path the profile was loaded from, if any.
func (p *Profile) File() string { return p.file }

// ParseProfile decodes and validates a profile document. dir resolves a
// relative mapping path.
func ParseProfile(r io.Reader, dir string) (*Profile, error) {
	var p Profile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty profile document")
		}
		return nil, &importerr.ConfigError{Cause: err}
	}

	if err := p.build(dir); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadProfile reads the profile at path.
func LoadProfile(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &importerr.ConfigError{Source: path, Cause: err}
	}
	defer f.Close()

	p, err := ParseProfile(f, filepath.Dir(path))
	if err != nil {
		var cfgErr *importerr.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Source == "" {
			cfgErr.Source = path
		}
		return nil, err
	}
	p.file = path
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

func (p *Profile) build(dir string) error {
	if p.Source.Kind == "" {
		p.Source.Kind = SourceDelimited
	}
	if p.Sink.Kind == "" {
		p.Sink.Kind = SinkGrid
	}
	if err := p.validate(); err != nil {
		return &importerr.ConfigError{Source: p.Name, Cause: err}
	}

	switch {
	case p.Mapping != "" && len(p.Columns) > 0:
		return &importerr.ConfigError{Source: p.Name, Cause: errors.New("mapping and columns are mutually exclusive")}
	case p.Mapping != "":
		path := p.Mapping
		if !filepath.IsAbs(path) && dir != "" {
			path = filepath.Join(dir, path)
		}
		s, err := schema.ReadMappingsFile(path)
		if err != nil {
			return err
		}
		p.schema = s
	default:
		s, err := schema.MappingDoc{Columns: p.Columns}.Build()
		if err != nil {
			return err
		}
		p.schema = s
	}
	return nil
}

func (p *Profile) validate() error {
	switch p.Source.Kind {
	case SourceDelimited, SourceFixed, SourceSpreadsheet:
	case SourceQuery:
		if p.Source.Query == "" && p.Source.Table == "" {
			return errors.New("query source needs a query or table")
		}
	default:
		return fmt.Errorf("unknown source kind %q", p.Source.Kind)
	}
	if len([]rune(p.Source.Delimiter)) > 1 {
		return fmt.Errorf("delimiter %q must be a single character", p.Source.Delimiter)
	}

	switch p.Sink.Kind {
	case SinkGrid:
	case SinkDatabase:
		if p.Sink.Table == "" && p.Sink.Query == "" {
			return errors.New("database sink needs a table or query")
		}
		if p.Sink.Truncate && p.Sink.Table == "" {
			return errors.New("truncate requires a sink table")
		}
	default:
		return fmt.Errorf("unknown sink kind %q", p.Sink.Kind)
	}
	return nil
}

// NeedsDatabase reports whether running the profile requires a connection.
func (p *Profile) NeedsDatabase() bool {
	return p.Source.Kind == SourceQuery || p.Sink.Kind == SinkDatabase
}

// AcceptsUpload reports whether the source reads a file that an uploaded
// stream can replace.
func (p *Profile) AcceptsUpload() bool {
	return p.Source.Kind != SourceQuery
}
