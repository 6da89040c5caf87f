package schema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/gridimport/internal/importerr"
)

// ColumnDoc is one column element of a mapping document.
type ColumnDoc struct {
	Name          string      `yaml:"name"`
	Type          string      `yaml:"type"`
	Binding       string      `yaml:"binding,omitempty"`
	Size          *int        `yaml:"size,omitempty"`
	Position      *int        `yaml:"position,omitempty"`
	AllowNull     *bool       `yaml:"allowNull,omitempty"`
	Strict        bool        `yaml:"strict,omitempty"`
	DisplayFormat string      `yaml:"displayFormat,omitempty"`
	ParseFormat   string      `yaml:"parseFormat,omitempty"`
	BindName      string      `yaml:"bindName,omitempty"`
	Map           string      `yaml:"map,omitempty"`
	Value         *string     `yaml:"value,omitempty"`
	Append        []ColumnDoc `yaml:"append,omitempty"`
}

// MappingDoc is the declarative mapping document: a tree of column declarations.
type MappingDoc struct {
	Columns []ColumnDoc `yaml:"columns"`
}

// ReadMappings parses a mapping document (YAML, or JSON as a YAML subset)
// into a schema.
func ReadMappings(r io.Reader) (Schema, error) {
	var doc MappingDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &importerr.ConfigError{Cause: err}
	}
	return doc.Build()
}

// ReadMappingsFile parses the mapping document at path.
func ReadMappingsFile(path string) (Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &importerr.ConfigError{Source: path, Cause: err}
	}
	defer f.Close()

	s, err := ReadMappings(f)
	var cfgErr *importerr.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Source == "" {
		cfgErr.Source = path
	}
	return s, err
}

// Build converts the document into a validated schema.
func (d MappingDoc) Build() (Schema, error) {
	s := make(Schema, 0, len(d.Columns))
	for _, cd := range d.Columns {
		c, err := cd.Build()
		if err != nil {
			return nil, err
		}
		s = append(s, c)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Build converts a column element, recursing into appended columns.
func (d ColumnDoc) Build() (Column, error) {
	if d.Type == "" {
		return Column{}, &importerr.ColumnTypeError{Column: d.Name, Message: "column type is required"}
	}

	t, err := ParseType(d.Type)
	if err != nil {
		return Column{}, withColumn(err, d.Name)
	}

	c := Column{
		Name:          d.Name,
		Type:          t,
		Size:          Unset,
		Position:      Unset,
		AllowNull:     true,
		Strict:        d.Strict,
		DisplayFormat: d.DisplayFormat,
		ParseFormat:   d.ParseFormat,
		BindName:      d.BindName,
		ColumnMap:     d.Map,
	}
	if d.Binding != "" {
		if c.Binding, err = ParseType(d.Binding); err != nil {
			return Column{}, withColumn(err, d.Name)
		}
	}
	if d.Size != nil {
		c.Size = *d.Size
	}
	if d.Position != nil {
		c.Position = *d.Position
	}
	if d.AllowNull != nil {
		c.AllowNull = *d.AllowNull
	}

	if d.Value != nil {
		v, err := ResolveValue(*d.Value, c.BindingType(), c.ParseFormat)
		if err != nil {
			return Column{}, &importerr.ColumnTypeError{
				Column:   d.Name,
				TypeName: c.BindingType().String(),
				Message:  fmt.Sprintf("value %q is neither a literal nor a known token: %v", *d.Value, err),
			}
		}
		c.Value = v
	}

	for _, ad := range d.Append {
		child, err := ad.Build()
		if err != nil {
			return Column{}, err
		}
		c.Appended = append(c.Appended, child)
	}
	return c, nil
}
