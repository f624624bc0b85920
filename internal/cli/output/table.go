package output

import (
	"fmt"
	"io"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"
	"unicode"
)

// TableFormatter renders values as aligned columns.
type TableFormatter struct {
	Wide      bool
	NoHeaders bool
}

// Format formats data as a table. It accepts a Table, a slice of
// structs, a map or a single struct; anything else falls back to JSON.
func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}

	switch t := data.(type) {
	case *Table:
		return t.render(w, f.Wide, f.NoHeaders)
	case Table:
		return t.render(w, f.Wide, f.NoHeaders)
	}

	table, ok := toTable(data, f.Wide)
	if !ok {
		return JSONFormatter{}.Format(w, data)
	}
	return table.render(w, f.Wide, f.NoHeaders)
}

// toTable reports false for values with no tabular form.
func toTable(data any, wide bool) (*Table, bool) {
	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return &Table{}, true
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return sliceToTable(v, wide), true
	case reflect.Map:
		return mapToTable(v), true
	case reflect.Struct:
		return structToTable(v), true
	}
	return nil, false
}

// column is an exported struct field shown in list output.
type column struct {
	index  int
	header string
}

func columns(t reflect.Type, wide bool) []column {
	var cols []column
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("table")
		if tag == "-" || (strings.Contains(tag, "wide") && !wide) {
			continue
		}
		cols = append(cols, column{index: i, header: strings.ToUpper(fieldName(field))})
	}
	return cols
}

// fieldName prefers the json tag, then the yaml tag, then the Go name
// converted to snake case.
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "yaml"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return toSnakeCase(f.Name)
}

func sliceToTable(v reflect.Value, wide bool) *Table {
	elemType := v.Type().Elem()
	if elemType.Kind() == reflect.Pointer {
		elemType = elemType.Elem()
	}

	table := &Table{}
	var cols []column
	switch elemType.Kind() {
	case reflect.Struct:
		cols = columns(elemType, wide)
		for _, c := range cols {
			table.Headers = append(table.Headers, c.header)
		}
	case reflect.Map:
		table.Headers = []string{"KEY", "VALUE"}
	default:
		table.Headers = []string{"VALUE"}
	}

	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i)
		if elem.Kind() == reflect.Pointer {
			if elem.IsNil() {
				continue
			}
			elem = elem.Elem()
		}

		switch elem.Kind() {
		case reflect.Struct:
			row := make([]string, 0, len(cols))
			for _, c := range cols {
				row = append(row, formatValue(elem.Field(c.index)))
			}
			table.AddRow(row...)
		case reflect.Map:
			table.Rows = append(table.Rows, mapToTable(elem).Rows...)
		default:
			table.AddRow(formatValue(elem))
		}
	}
	return table
}

// mapToTable renders a map as sorted key/value rows.
func mapToTable(v reflect.Value) *Table {
	table := &Table{Headers: []string{"KEY", "VALUE"}}
	iter := v.MapRange()
	for iter.Next() {
		table.AddRow(formatValue(iter.Key()), formatValue(iter.Value()))
	}
	slices.SortFunc(table.Rows, func(a, b []string) int { return strings.Compare(a[0], b[0]) })
	return table
}

// structToTable renders a single struct as FIELD/VALUE rows.
func structToTable(v reflect.Value) *Table {
	table := &Table{Headers: []string{"FIELD", "VALUE"}}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Tag.Get("table") == "-" {
			continue
		}
		table.AddRow(fieldName(field), formatValue(v.Field(i)))
	}
	return table
}

// formatValue renders one cell. Empty strings, collections, zero
// times and nil pointers print as "-".
func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "-"
		}
		v = v.Elem()
	}

	switch x := v.Interface().(type) {
	case time.Time:
		if x.IsZero() {
			return "-"
		}
		return x.Local().Format("2006-01-02 15:04")
	case string:
		if x == "" {
			return "-"
		}
		return x
	case fmt.Stringer:
		return x.String()
	}

	switch v.Kind() {
	case reflect.String:
		return cellOr(v.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', 2, 64)
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Slice, reflect.Array:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = formatValue(v.Index(i))
		}
		return cellOr(strings.Join(parts, ","))
	case reflect.Map:
		rows := mapToTable(v).Rows
		parts := make([]string, len(rows))
		for i, r := range rows {
			parts[i] = r[0] + "=" + r[1]
		}
		return cellOr(strings.Join(parts, ","))
	}
	return fmt.Sprint(v.Interface())
}

func cellOr(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// toSnakeCase converts a Go field name to snake_case, keeping runs of
// capitals such as ID or CPU together.
func toSnakeCase(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := unicode.IsLower(rs[i-1])
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if prevLower || (unicode.IsUpper(rs[i-1]) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// Table represents tabular data. The last WideColumns columns are only
// rendered in wide mode.
type Table struct {
	Headers     []string
	Rows        [][]string
	WideColumns int
}

// NewTable creates a table with the given headers.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// WithWide appends columns shown only in wide mode.
func (t *Table) WithWide(headers ...string) *Table {
	t.Headers = append(t.Headers, headers...)
	t.WideColumns += len(headers)
	return t
}

// Render renders every column.
func (t *Table) Render(w io.Writer) error {
	return t.render(w, true, false)
}

// RenderWide renders the table, dropping wide-only columns unless wide.
func (t *Table) RenderWide(w io.Writer, wide bool) error {
	return t.render(w, wide, false)
}

func (t *Table) render(w io.Writer, wide, noHeaders bool) error {
	limit := -1
	if !wide && len(t.Headers) > 0 {
		limit = len(t.Headers) - t.WideColumns
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	writeRow := func(cells []string) {
		if limit >= 0 && limit < len(cells) {
			cells = cells[:limit]
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	if !noHeaders && len(t.Headers) > 0 {
		writeRow(t.Headers)
	}
	for _, row := range t.Rows {
		writeRow(row)
	}
	return tw.Flush()
}

// AddRow adds a row to the table.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}
