package store

import "strings"

// ColumnType is the stored type of a column.
type ColumnType int

const (
	ColumnInt ColumnType = iota
	ColumnText
	ColumnFloat
)

func (t ColumnType) String() string {
	switch t {
	case ColumnInt:
		return "int"
	case ColumnText:
		return "text"
	case ColumnFloat:
		return "float"
	default:
		return "unknown"
	}
}

// Column describes one stored column.
type Column struct {
	Name       string
	Type       ColumnType
	Nullable   bool   // NULL allowed
	NotEmpty   bool   // text must be non-empty
	References string // referenced table name, keyed by its primary key
}

// Table describes one mirror table. PrimaryKey is always Columns[0].
type Table struct {
	Name    string
	Label   string
	Columns []Column
}

// PrimaryKey returns the name of the primary key column.
func (t Table) PrimaryKey() string {
	return t.Columns[0].Name
}

// ColumnNames returns the column names in storage order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Mirror tables, keyed by upstream integer ids.
var (
	Categories = Table{
		Name:  "sde_category",
		Label: "Categories",
		Columns: []Column{
			{Name: "id", Type: ColumnInt},
			{Name: "name", Type: ColumnText, NotEmpty: true},
		},
	}

	Groups = Table{
		Name:  "sde_group",
		Label: "Groups",
		Columns: []Column{
			{Name: "id", Type: ColumnInt},
			{Name: "name", Type: ColumnText},
			{Name: "category_id", Type: ColumnInt, References: "sde_category"},
		},
	}

	MarketGroups = Table{
		Name:  "sde_marketgroup",
		Label: "Market Groups",
		Columns: []Column{
			{Name: "id", Type: ColumnInt},
			{Name: "name", Type: ColumnText},
			{Name: "parent_id", Type: ColumnInt, Nullable: true, References: "sde_marketgroup"},
		},
	}

	Types = Table{
		Name:  "sde_type",
		Label: "Types",
		Columns: []Column{
			{Name: "id", Type: ColumnInt},
			{Name: "name", Type: ColumnText},
			{Name: "volume", Type: ColumnFloat},
			{Name: "group_id", Type: ColumnInt, References: "sde_group"},
			{Name: "market_group_id", Type: ColumnInt, References: "sde_marketgroup"},
		},
	}

	MetaGroups = Table{
		Name:  "sde_metagroup",
		Label: "Meta Groups",
		Columns: []Column{
			{Name: "id", Type: ColumnInt},
			{Name: "name", Type: ColumnText},
		},
	}

	MetaTypes = Table{
		Name:  "sde_metatype",
		Label: "Meta Types",
		Columns: []Column{
			{Name: "type_id", Type: ColumnInt, References: "sde_type"},
			{Name: "parent_id", Type: ColumnInt, Nullable: true, References: "sde_metatype"},
			{Name: "meta_group_id", Type: ColumnInt, References: "sde_metagroup"},
		},
	}
)

// Catalog lists the mirror tables with referenced tables first.
var Catalog = []Table{
	Categories,
	Groups,
	MarketGroups,
	Types,
	MetaGroups,
	MetaTypes,
}

// Lookup returns the catalog table with the given name.
func Lookup(name string) (Table, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range Catalog {
		if t.Name == name {
			return t, true
		}
	}
	return Table{}, false
}

// Resolve returns the catalog table with the given name, or ErrUnknownTable.
func Resolve(name string) (Table, error) {
	t, ok := Lookup(name)
	if !ok {
		return Table{}, ErrUnknownTable
	}
	return t, nil
}
