package grid

import (
	"fmt"
	"strings"
	"time"

	"github.com/JonMunkholm/gridimport/internal/schema"
)

// Format renders the cell. Priority: the cell's FormatString, the column's
// DisplayFormat, the value's default string form. A nil column skips the
// column format.
func (c Cell) Format(col *Column) string {
	switch {
	case c.FormatString != "":
		return c.FormatWith(c.FormatString)
	case col != nil && col.DisplayFormat != "":
		return c.FormatWith(col.DisplayFormat)
	}
	return schema.Stringify(c.Value)
}

// FormatWith renders the cell with an explicit format: a time layout for
// date values, a fmt verb string for everything else.
func (c Cell) FormatWith(format string) string {
	if c.Value == nil {
		return ""
	}
	switch v := c.Value.(type) {
	case time.Time:
		return v.Format(format)
	case schema.OADate:
		return v.Time().Format(format)
	}
	if !strings.Contains(format, "%") {
		return schema.Stringify(c.Value)
	}
	return fmt.Sprintf(format, c.Value)
}
