package sde

import (
	"github.com/go-gota/gota/dataframe"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

// Pipeline names. Auxiliary source names share the same namespace.
const (
	CategoryPipeline    = "category"
	GroupPipeline       = "group"
	MarketGroupPipeline = "marketgroup"
	TypePipeline        = "type"
	MetaGroupPipeline   = "metagroup"
	MetaTypePipeline    = "metatype"

	VolumeSource = "volume"
)

// Sources holds the upstream CSV locations.
type Sources struct {
	Category    string
	Group       string
	MarketGroup string
	Type        string
	Volume      string
}

// Pipelines returns every pipeline in dependency order: a table is loaded
// after the tables it references.
func Pipelines(src Sources, f Fetcher) []*Pipeline {
	return []*Pipeline{
		NewPipeline(CategoryPipeline, store.Categories, src.Category, TransformFunc(transformCategories), f),
		NewPipeline(GroupPipeline, store.Groups, src.Group, TransformFunc(transformGroups), f),
		NewPipeline(MarketGroupPipeline, store.MarketGroups, src.MarketGroup, TransformFunc(transformMarketGroups), f),
		NewPipeline(TypePipeline, store.Types, src.Type, TransformFunc(transformTypes), f,
			Source{Name: VolumeSource, URL: src.Volume}),
		NewPipeline(MetaGroupPipeline, store.MetaGroups, "", TransformFunc(identity), f),
		NewPipeline(MetaTypePipeline, store.MetaTypes, "", TransformFunc(identity), f),
	}
}

// Upstream positional layouts.
var (
	categoryColumns = []string{"id", "name", "icon", "published"}

	groupColumns = []string{
		"id", "category_id", "name", "icon", "use_base_price",
		"anchored", "anchorable", "singleton", "published",
	}

	marketGroupColumns = []string{"id", "parent_id", "name", "description", "icon", "has_types"}

	typeColumns = []string{
		"id", "group_id", "name", "mass", "volume", "capacity", "portion_size",
		"race_id", "base_price", "published", "market_group_id",
		"icon_id", "sound_id", "graphic_id",
	}

	volumeColumns = []string{"id", "volume"}
)

func published(v any) bool { return IsTrue(v) }

func hasValue(v any) bool { return !IsNull(v) }

func transformCategories(in Input) (dataframe.DataFrame, error) {
	df, err := Rename(in.Primary, CategoryPipeline, categoryColumns...)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if df, err = Keep(df, "published", published); err != nil {
		return dataframe.DataFrame{}, err
	}
	return Columns(df, "id", "name")
}

func transformGroups(in Input) (dataframe.DataFrame, error) {
	df, err := Rename(in.Primary, GroupPipeline, groupColumns...)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if df, err = Keep(df, "published", published); err != nil {
		return dataframe.DataFrame{}, err
	}
	return Columns(df, "id", "name", "category_id")
}

func transformMarketGroups(in Input) (dataframe.DataFrame, error) {
	df, err := Rename(in.Primary, MarketGroupPipeline, marketGroupColumns...)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if df, err = Columns(df, "id", "name", "parent_id"); err != nil {
		return dataframe.DataFrame{}, err
	}
	return MapColumn(df, "parent_id", func(v any) any {
		if IsNull(v) {
			return nil
		}
		return v
	})
}

func transformTypes(in Input) (dataframe.DataFrame, error) {
	df, err := Rename(in.Primary, TypePipeline, typeColumns...)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if df, err = Keep(df, "published", published); err != nil {
		return dataframe.DataFrame{}, err
	}
	if df, err = Keep(df, "market_group_id", hasValue); err != nil {
		return dataframe.DataFrame{}, err
	}
	if df, err = Columns(df, "id", "group_id", "name", "volume", "market_group_id"); err != nil {
		return dataframe.DataFrame{}, err
	}
	return correctVolumes(df, in.Aux(VolumeSource))
}

// correctVolumes replaces each type's volume with the value from the
// correction dataset when it has one. Ids are matched numerically, so
// "100" and "100.0" meet; the last correction for an id wins.
func correctVolumes(types, volumes dataframe.DataFrame) (dataframe.DataFrame, error) {
	if volumes.Ncol() == 0 || types.Nrow() == 0 {
		return types, nil
	}
	v, err := Rename(volumes, VolumeSource, "id", "volume_correct")
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	if v, err = MapColumn(v, "id", idKey); err != nil {
		return dataframe.DataFrame{}, err
	}
	if v, err = LastByKey(v, "id"); err != nil {
		return dataframe.DataFrame{}, err
	}
	if types, err = MapColumn(types, "id", idKey); err != nil {
		return dataframe.DataFrame{}, err
	}

	joined, err := LeftJoin(types, v, "id")
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return Coalesce(joined, "volume", "volume_correct")
}

func idKey(v any) any {
	if IsNull(v) {
		return nil
	}
	return joinKey(v)
}

func identity(in Input) (dataframe.DataFrame, error) {
	return in.Primary, nil
}
