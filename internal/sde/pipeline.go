package sde

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/JonMunkholm/sdemirror/internal/logging"
	"github.com/JonMunkholm/sdemirror/internal/store"
)

// Fetcher retrieves upstream resources.
type Fetcher interface {
	// FetchCSV returns every record of the CSV at url, header included.
	FetchCSV(ctx context.Context, url string) ([][]string, error)

	// FetchToken returns the current upstream dataset version identifier.
	FetchToken(ctx context.Context, url string) (string, error)
}

// Source is a named CSV resource.
type Source struct {
	Name string
	URL  string
}

// Input is what extract hands to transform: the pipeline's primary dataset
// plus any auxiliary datasets it declared, keyed by source name.
type Input struct {
	Primary   dataframe.DataFrame
	Auxiliary map[string]dataframe.DataFrame
}

// Aux returns the auxiliary dataset called name, or an empty frame.
func (in Input) Aux(name string) dataframe.DataFrame {
	return in.Auxiliary[name]
}

// Transformer reshapes an extracted dataset into records of the target
// table. Implementations must be pure.
type Transformer interface {
	Transform(in Input) (dataframe.DataFrame, error)
}

// TransformFunc adapts a function to Transformer.
type TransformFunc func(in Input) (dataframe.DataFrame, error)

// Transform calls f(in).
func (f TransformFunc) Transform(in Input) (dataframe.DataFrame, error) { return f(in) }

// Stats describes one pipeline execution.
type Stats struct {
	Pipeline  string
	Table     string
	Extracted int
	Loaded    int64
	Duration  time.Duration
}

// Pipeline moves one upstream entity into one mirror table.
//
// Extract and Load are shared by every pipeline; only the Transformer
// differs. A pipeline with an empty URL extracts an empty dataset.
type Pipeline struct {
	Name        string
	Table       store.Table
	URL         string
	Auxiliary   []Source
	Transformer Transformer

	fetcher Fetcher
}

// NewPipeline returns a pipeline fetching through f.
func NewPipeline(name string, table store.Table, url string, t Transformer, f Fetcher, aux ...Source) *Pipeline {
	return &Pipeline{
		Name:        name,
		Table:       table,
		URL:         url,
		Auxiliary:   aux,
		Transformer: t,
		fetcher:     f,
	}
}

// Run extracts, transforms and loads inside tx.
func (p *Pipeline) Run(ctx context.Context, tx store.Tx) (Stats, error) {
	start := time.Now()
	stats := Stats{Pipeline: p.Name, Table: p.Table.Name}
	logger := logging.WithFields(ctx, "pipeline", p.Name, "table", p.Table.Name)

	in, err := p.Extract(ctx)
	if err != nil {
		return stats, fmt.Errorf("%s extract: %w", p.Name, err)
	}
	stats.Extracted = in.Primary.Nrow()
	logger.Debug("extracted", "rows", stats.Extracted)

	out, err := p.Transform(in)
	if err != nil {
		return stats, fmt.Errorf("%s transform: %w", p.Name, err)
	}

	loaded, err := p.Load(ctx, tx, out)
	if err != nil {
		return stats, fmt.Errorf("%s load: %w", p.Name, err)
	}
	stats.Loaded = loaded
	stats.Duration = time.Since(start)

	logger.Info("pipeline complete",
		"extracted", stats.Extracted,
		"rows", stats.Loaded,
		"duration_ms", stats.Duration.Milliseconds(),
	)
	return stats, nil
}

// Extract fetches the primary and auxiliary CSV resources.
func (p *Pipeline) Extract(ctx context.Context) (Input, error) {
	in := Input{Auxiliary: make(map[string]dataframe.DataFrame, len(p.Auxiliary))}
	if p.URL == "" {
		return in, nil
	}

	primary, err := p.fetchFrame(ctx, p.Name, p.URL)
	if err != nil {
		return Input{}, err
	}
	in.Primary = primary

	for _, src := range p.Auxiliary {
		f, err := p.fetchFrame(ctx, src.Name, src.URL)
		if err != nil {
			return Input{}, err
		}
		in.Auxiliary[src.Name] = f
	}
	return in, nil
}

func (p *Pipeline) fetchFrame(ctx context.Context, name, url string) (dataframe.DataFrame, error) {
	if p.fetcher == nil {
		return dataframe.DataFrame{}, fmt.Errorf("pipeline %s has no fetcher", p.Name)
	}
	records, err := p.fetcher.FetchCSV(ctx, url)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return NewFrame(name, records)
}

// Transform applies the pipeline's Transformer.
func (p *Pipeline) Transform(in Input) (dataframe.DataFrame, error) {
	if p.Transformer == nil {
		return in.Primary, nil
	}
	return p.Transformer.Transform(in)
}

// Load replaces every row of the target table with the records of df.
// It runs inside the caller's transaction and is not atomic on its own.
func (p *Pipeline) Load(ctx context.Context, tx store.Tx, df dataframe.DataFrame) (int64, error) {
	rows, err := p.records(df)
	if err != nil {
		return 0, err
	}

	n, err := tx.Replace(ctx, p.Table, rows)
	if err != nil {
		var integrityErr *IntegrityError
		if errors.As(err, &integrityErr) {
			return 0, err
		}
		return 0, &IntegrityError{Table: p.Table.Name, Err: err}
	}
	return n, nil
}

// records orders and coerces the cells of df to the target table's columns.
func (p *Pipeline) records(df dataframe.DataFrame) ([][]any, error) {
	if df.Nrow() == 0 {
		return nil, nil
	}

	cols := p.Table.Columns
	src := make([]series.Series, len(cols))
	for i, c := range cols {
		src[i] = df.Col(c.Name)
		if src[i].Err != nil {
			return nil, &SchemaError{
				Source: p.Name,
				Err:    fmt.Errorf("transformed data has no column %q", c.Name),
			}
		}
	}

	rows := make([][]any, df.Nrow())
	for i := range rows {
		out := make([]any, len(cols))
		for j, c := range cols {
			v, err := coerce(c, Cell(src[j].Elem(i)))
			if err != nil {
				return nil, &SchemaError{
					Source: p.Name,
					Err:    fmt.Errorf("record %d column %s: %w", i+1, c.Name, err),
				}
			}
			out[j] = v
		}
		rows[i] = out
	}
	return rows, nil
}

// coerce converts a cell to the Go value stored for column c.
func coerce(c store.Column, v any) (any, error) {
	if c.Type == store.ColumnText {
		if v == nil {
			if c.Nullable {
				return nil, nil
			}
			return nil, errors.New("null value")
		}
		s := ToText(v)
		if c.NotEmpty && s == "" {
			return nil, errors.New("empty value")
		}
		return s, nil
	}

	if IsNull(v) {
		if c.Nullable {
			return nil, nil
		}
		return nil, errors.New("null value")
	}

	switch c.Type {
	case store.ColumnInt:
		return ToInt(v)
	case store.ColumnFloat:
		return ToFloat(v)
	default:
		return nil, fmt.Errorf("unsupported column type %s", c.Type)
	}
}
