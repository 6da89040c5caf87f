package reader

import (
	"log/slog"

	"github.com/JonMunkholm/gridimport/internal/grid"
	"github.com/JonMunkholm/gridimport/internal/importerr"
	"github.com/JonMunkholm/gridimport/internal/logging"
	"github.com/JonMunkholm/gridimport/internal/schema"
)

const phaseHeaders = "reconciling headers"

// ReconcileHeaders applies the tabular header policy to every column of the
// expanded schema:
//
//   - no declared columns: the raw columns are adopted as the schema
//   - literal value: accepted
//   - ColumnMap: accepted, resolved from the same row later
//   - otherwise the raw grid is searched by name; no match is fatal unless
//     the column has appended columns, several matches resolve to the first
//
// A binding type that cannot hold every value of the declared type is
// reported as a warning only.
func ReconcileHeaders(log *slog.Logger, cols []schema.Column, raw *grid.Grid) ([]schema.Column, error) {
	return reconcile(log, cols, raw, false)
}

// reconcile runs the header policy. With positional set, columns that
// declare fixed-width geometry are accepted without a name search.
func reconcile(log *slog.Logger, cols []schema.Column, raw *grid.Grid, positional bool) ([]schema.Column, error) {
	log = logging.OrDefault(log)

	if len(cols) == 0 {
		log.Warn("no schema columns declared, adopting source columns", "columns", raw.ColumnCount())
		adopted := make([]schema.Column, 0, raw.ColumnCount())
		for _, c := range raw.Columns() {
			adopted = append(adopted, c.Column)
		}
		return adopted, nil
	}

	for _, c := range schema.Schema(cols).Expand() {
		if positional && c.HasGeometry() && !c.Value.IsSet() && !c.IsMapped() {
			log.Info("positional column", "column", c.Name, "position", c.Position, "size", c.Size)
		} else if err := reconcileColumn(log, c, raw); err != nil {
			return nil, err
		}

		if bt := c.BindingType(); !bt.AssignableFrom(c.Type) {
			log.Warn("binding type may lose data",
				"column", c.Name,
				"type", c.Type.String(),
				"binding", bt.String(),
			)
		}
	}
	return cols, nil
}

func reconcileColumn(log *slog.Logger, c schema.Column, raw *grid.Grid) error {
	switch {
	case c.Value.IsSet():
		log.Info("column uses a literal value", "column", c.Name)
		return nil
	case c.IsMapped():
		log.Warn("column is mapped, value is resolved from the same row", "column", c.Name, "map", c.ColumnMap)
		return nil
	}

	matches := raw.FindColumns(c.Name)
	switch {
	case len(matches) == 0 && len(c.Appended) == 0:
		logging.Critical(log, "column not found in source", "column", c.Name)
		return &importerr.AbortError{
			Phase:  phaseHeaders,
			Column: c.Name,
			Reason: "column not found in source",
		}
	case len(matches) == 0:
		log.Warn("column not found in source, value comes from appended columns", "column", c.Name)
	case len(matches) == 1:
		log.Info("column matched", "column", c.Name, "index", matches[0])
	default:
		log.Warn("column name is ambiguous, using first match",
			"column", c.Name,
			"matches", len(matches),
			"index", matches[0],
		)
	}
	return nil
}
