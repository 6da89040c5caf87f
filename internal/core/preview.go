package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/gridimport/internal/formatter"
	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/importer"
	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/logging"
)

// DefaultPreviewRows is the sample size used when a preview asks for none.
const DefaultPreviewRows = 20

// PreviewColumn describes one grid column in a preview.
type PreviewColumn struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Appended bool   `json:"appended,omitempty"`
}

// PreviewFailure locates the error that stopped a preview.
type PreviewFailure struct {
	UserMessage
	Phase  string `json:"phase,omitempty"`
	Row    int    `json:"row,omitempty"`
	Column string `json:"column,omitempty"`
	Detail string `json:"detail"`
}

// PreviewResponse is a read-only dry run of a profile.
type PreviewResponse struct {
	Profile          string              `json:"profile"`
	Columns          []PreviewColumn     `json:"columns"`
	TotalRows        int                 `json:"totalRows"`
	Rows             []map[string]string `json:"rows"`
	Failure          *PreviewFailure     `json:"failure,omitempty"`
	ProcessingTimeMs int64               `json:"processingTimeMs"`
}

// Preview populates a grid from the profile's source without writing to the
// sink and returns the first limit formatted rows. An import failure is
// reported in the response rather than as an error.
func (s *Service) Preview(ctx context.Context, name string, src io.Reader, limit int) (*PreviewResponse, error) {
	start := time.Now()

	p, err := s.Profile(name)
	if err != nil {
		return nil, err
	}
	if p.Source.Kind == SourceQuery && s.db == nil {
		return nil, fmt.Errorf("profile %q needs a database connection", p.Name)
	}
	if limit <= 0 {
		limit = DefaultPreviewRows
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	log := logging.Attach(ctx, s.log).With("profile", p.Name, "preview", true)
	r, err := s.NewReader(p, src, log)
	if err != nil {
		return nil, err
	}

	imp := importer.New(r, p.Schema(), importer.WithLogger(log))
	g, err := importer.Import[*grid.Grid](ctx, imp, formatter.Grid{})

	resp := &PreviewResponse{Profile: p.Name, Rows: []map[string]string{}}
	if err != nil {
		resp.Failure = previewFailure(err)
	} else {
		resp.Columns = previewColumns(g)
		resp.TotalRows = g.RowCount()
		records := g.Records()
		if len(records) > limit {
			records = records[:limit]
		}
		resp.Rows = records
	}
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	return resp, nil
}

func previewColumns(g *grid.Grid) []PreviewColumn {
	out := make([]PreviewColumn, g.ColumnCount())
	for i, c := range g.Columns() {
		out[i] = PreviewColumn{Name: c.Name, Type: c.BindingType().String(), Appended: c.Appended}
	}
	return out
}

func previewFailure(err error) *PreviewFailure {
	f := &PreviewFailure{UserMessage: MapError(err), Detail: err.Error()}
	var abort *importerr.AbortError
	if errors.As(err, &abort) {
		f.Phase = abort.Phase
		f.Row = abort.Row
		f.Column = abort.Column
	}
	return f
}
