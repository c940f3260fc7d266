package sde

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Upstream datasets are held as gota DataFrames whose columns are all
// strings. Only the literal NaN loads as NA, which reads back as nil through
// [Cell]; the other null markers stay text until the load coerces them.

// NewFrame builds a frame from raw CSV records. The first record is the
// header; its text is ignored beyond fixing the column count, and the
// columns are named col0..colN until a transform renames them by position.
func NewFrame(source string, records [][]string) (dataframe.DataFrame, error) {
	if len(records) == 0 {
		return dataframe.DataFrame{}, nil
	}

	width := len(records[0])
	header := make([]string, width)
	for i := range header {
		header[i] = fmt.Sprintf("col%d", i)
	}

	for i, rec := range records[1:] {
		if len(rec) != width {
			return dataframe.DataFrame{}, &SchemaError{
				Source: source,
				Line:   i + 2,
				Err:    fmt.Errorf("%w: expected %d columns, got %d", ErrColumnCount, width, len(rec)),
			}
		}
	}

	if len(records) == 1 {
		cols := make([]series.Series, width)
		for i, name := range header {
			cols[i] = series.New([]string{}, series.String, name)
		}
		return checked(source, dataframe.New(cols...))
	}

	named := make([][]string, 0, len(records))
	named = append(named, header)
	named = append(named, records[1:]...)

	return checked(source, dataframe.LoadRecords(named,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nil),
	))
}

// checked surfaces a DataFrame's deferred error.
func checked(source string, df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%s: %w", source, df.Err)
	}
	return df, nil
}

// Cell returns the value of an element: nil for NA, otherwise its text.
func Cell(el series.Element) any {
	if el.IsNA() {
		return nil
	}
	return el.String()
}

// Rename assigns names to the columns by position. The number of names must
// equal the number of columns; header text from the source is never consulted.
func Rename(df dataframe.DataFrame, source string, names ...string) (dataframe.DataFrame, error) {
	if df.Ncol() != len(names) {
		return dataframe.DataFrame{}, &SchemaError{
			Source: source,
			Err:    fmt.Errorf("%w: expected %d columns, got %d", ErrColumnCount, len(names), df.Ncol()),
		}
	}
	df = df.Copy()
	if err := df.SetNames(names...); err != nil {
		return dataframe.DataFrame{}, &SchemaError{Source: source, Err: err}
	}
	return df, nil
}

// Keep returns the rows whose cell in column name satisfies keep.
func Keep(df dataframe.DataFrame, name string, keep func(any) bool) (dataframe.DataFrame, error) {
	if df.Nrow() == 0 {
		return df, nil
	}
	return checked("filter", df.Filter(dataframe.F{
		Colname:    name,
		Comparator: series.CompFunc,
		Comparando: func(el series.Element) bool { return keep(Cell(el)) },
	}))
}

// Columns projects df onto the named columns, in the given order.
func Columns(df dataframe.DataFrame, names ...string) (dataframe.DataFrame, error) {
	return checked("select", df.Select(names))
}

// MapColumn replaces every cell of column name with fn's result. A nil
// result is stored as NA.
func MapColumn(df dataframe.DataFrame, name string, fn func(any) any) (dataframe.DataFrame, error) {
	col := df.Col(name)
	if col.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("map: %w", col.Err)
	}

	values := make([]any, col.Len())
	for i := range values {
		values[i] = fn(Cell(col.Elem(i)))
	}
	return checked("map", df.Mutate(series.New(values, series.String, name)))
}

// LastByKey keeps one row per value of column key, the last one seen.
func LastByKey(df dataframe.DataFrame, key string) (dataframe.DataFrame, error) {
	col := df.Col(key)
	if col.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("dedupe: %w", col.Err)
	}

	last := make(map[string]int, col.Len())
	for i := 0; i < col.Len(); i++ {
		last[col.Elem(i).String()] = i
	}
	if len(last) == col.Len() {
		return df, nil
	}

	rows := make([]int, 0, len(last))
	for i := 0; i < col.Len(); i++ {
		if last[col.Elem(i).String()] == i {
			rows = append(rows, i)
		}
	}
	return checked("dedupe", df.Subset(rows))
}

// LeftJoin returns every row of left extended with the non-key columns of
// right, matched on column on. Unmatched rows get NA right-hand cells.
// Column names must not collide apart from the key.
func LeftJoin(left, right dataframe.DataFrame, on string) (dataframe.DataFrame, error) {
	if left.Nrow() == 0 {
		return left, nil
	}
	return checked("join", left.LeftJoin(right, on))
}

// Coalesce sets column target to the value of column from wherever from is
// not null, then drops from.
func Coalesce(df dataframe.DataFrame, target, from string) (dataframe.DataFrame, error) {
	tc, fc := df.Col(target), df.Col(from)
	if tc.Err != nil || fc.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("coalesce: unknown column %q or %q", target, from)
	}

	values := make([]any, tc.Len())
	for i := range values {
		values[i] = Cell(tc.Elem(i))
		if v := Cell(fc.Elem(i)); !IsNull(v) {
			values[i] = v
		}
	}

	out, err := checked("coalesce", df.Mutate(series.New(values, series.String, target)))
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return checked("coalesce", out.Drop(from))
}
