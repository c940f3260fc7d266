package sde_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sdemirror/internal/sde"
	"github.com/JonMunkholm/sdemirror/internal/store"
	"github.com/JonMunkholm/sdemirror/internal/store/sqlite"
)

var testSources = sde.Sources{
	Category:    "mem://invCategories.csv",
	Group:       "mem://invGroups.csv",
	MarketGroup: "mem://invMarketGroups.csv",
	Type:        "mem://invTypes.csv",
	Volume:      "mem://invVolumes.csv",
}

const tokenURL = "mem://latest.md5"

// fakeFetcher serves canned CSV records and tokens.
type fakeFetcher struct {
	mu     sync.Mutex
	token  string
	csv    map[string][][]string
	errs   map[string]error
	counts map[string]int

	// When gate is set, the category fetch signals entered and then waits
	// for gate to close.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		token: "token-1",
		csv: map[string][][]string{
			testSources.Category: {
				{"categoryID", "categoryName", "iconID", "published"},
				{"6", "Ship", "", "1"},
				{"9", "Blueprint", "", "0"},
			},
			testSources.Group: {
				{"groupID", "categoryID", "groupName", "iconID", "useBasePrice", "anchored", "anchorable", "fittableNonSingleton", "published"},
				{"25", "6", "Frigate", "", "0", "0", "0", "0", "1"},
				{"26", "6", "Cruiser", "", "0", "0", "0", "0", "1"},
			},
			testSources.MarketGroup: {
				{"marketGroupID", "parentGroupID", "marketGroupName", "description", "iconID", "hasTypes"},
				{"7", "4", "Frigates", "", "", "1"},
				{"4", `\N`, "Ships", "", "", "0"},
			},
			testSources.Type: {
				{"typeID", "groupID", "typeName", "mass", "volume", "capacity", "portionSize", "raceID", "basePrice", "published", "marketGroupID", "iconID", "soundID", "graphicID"},
				{"100", "25", "Widget", "1000", "10.0", "0", "1", "1", "100", "1", "7", "", "", ""},
				{"101", "26", "Gizmo", "1000", "3", "0", "1", "1", "100", "1", "7", "", "", ""},
				{"102", "25", "Prototype", "1000", "1", "0", "1", "1", "100", "0", "7", "", "", ""},
				{"103", "25", "Unlisted", "1000", "1", "0", "1", "1", "100", "1", `\N`, "", "", ""},
			},
			testSources.Volume: {
				{"typeID", "volume"},
				{"100", "12.5"},
			},
		},
		errs:   map[string]error{},
		counts: map[string]int{},
	}
}

func (f *fakeFetcher) FetchCSV(ctx context.Context, url string) ([][]string, error) {
	if f.gate != nil && url == testSources.Category {
		f.entered <- struct{}{}
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[url]++
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	records, ok := f.csv[url]
	if !ok {
		return nil, &sde.NetworkError{URL: url, Status: 404}
	}
	return records, nil
}

func (f *fakeFetcher) FetchToken(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[url]; err != nil {
		return "", err
	}
	return f.token, nil
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "sde.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newUpdater(s store.Store, f sde.Fetcher) *sde.Updater {
	return sde.NewUpdater(s, f, sde.UpdaterConfig{TokenURL: tokenURL, Sources: testSources})
}

// snapshot returns every mirror table's rows keyed by table name.
func snapshot(t *testing.T, s store.Store) map[string][][]any {
	t.Helper()
	out := make(map[string][][]any, len(store.Catalog))
	for _, table := range store.Catalog {
		rows, err := s.Rows(context.Background(), table, 10000, 0)
		require.NoError(t, err)
		out[table.Name] = rows
	}
	return out
}

func TestUpdateFirstRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	res, err := newUpdater(s, newFakeFetcher()).Update(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, sde.StatusUpdated, res.Status)
	assert.Equal(t, "Static data updated", res.Message())
	assert.NotEmpty(t, res.RunID)
	require.Len(t, res.Stats, 6)

	want := map[string][][]any{
		"sde_category":    {{int64(6), "Ship"}},
		"sde_group":       {{int64(25), "Frigate", int64(6)}, {int64(26), "Cruiser", int64(6)}},
		"sde_marketgroup": {{int64(4), "Ships", nil}, {int64(7), "Frigates", int64(4)}},
		"sde_type": {
			{int64(100), "Widget", 12.5, int64(25), int64(7)},
			{int64(101), "Gizmo", 3.0, int64(26), int64(7)},
		},
		"sde_metagroup": nil,
		"sde_metatype":  nil,
	}
	if diff := cmp.Diff(want, snapshot(t, s)); diff != "" {
		t.Errorf("mirror mismatch (-want +got):\n%s", diff)
	}

	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, "token-1", v.Token)
	assert.False(t, v.Date.IsZero())

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, store.RunUpdated, runs[0].Status)
	assert.Equal(t, int64(7), runs[0].RowsLoaded)
	assert.Equal(t, "token-1", runs[0].Token)
}

func TestUpdateSkipsWhenCurrent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	f := newFakeFetcher()
	u := newUpdater(s, f)

	_, err := u.Update(ctx, false)
	require.NoError(t, err)

	res, err := u.Update(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, sde.StatusCurrent, res.Status)
	assert.Equal(t, "Static data is current", res.Message())
	assert.Equal(t, 1, f.counts[testSources.Category], "no CSV fetched when current")

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	// A new upstream token triggers a refresh.
	f.token = "token-2"
	res, err = u.Update(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, sde.StatusUpdated, res.Status)
	assert.Equal(t, 2, f.counts[testSources.Category])
}

func TestUpdateForcedIsIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	u := newUpdater(s, newFakeFetcher())

	_, err := u.Update(ctx, true)
	require.NoError(t, err)
	first := snapshot(t, s)

	res, err := u.Update(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, sde.StatusUpdated, res.Status)

	if diff := cmp.Diff(first, snapshot(t, s)); diff != "" {
		t.Errorf("second forced run changed the mirror (-first +second):\n%s", diff)
	}

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].Forced)
}

func TestUpdateFailureLeavesMirrorUntouched(t *testing.T) {
	tests := []struct {
		name     string
		breakFn  func(f *fakeFetcher)
		wantCode string
	}{
		{
			name: "network failure on a late pipeline",
			breakFn: func(f *fakeFetcher) {
				f.errs[testSources.Type] = &sde.NetworkError{URL: testSources.Type, Err: errors.New("connection reset")}
			},
			wantCode: "NET001",
		},
		{
			name: "network failure on the correction source",
			breakFn: func(f *fakeFetcher) {
				f.errs[testSources.Volume] = &sde.NetworkError{URL: testSources.Volume, Status: 502}
			},
			wantCode: "NET002",
		},
		{
			name: "column count mismatch",
			breakFn: func(f *fakeFetcher) {
				f.csv[testSources.MarketGroup] = [][]string{
					{"marketGroupID", "parentGroupID", "marketGroupName"},
					{"4", "", "Ships"},
				}
			},
			wantCode: "SCH001",
		},
		{
			name: "dangling group reference",
			breakFn: func(f *fakeFetcher) {
				f.csv[testSources.Group] = f.csv[testSources.Group][:2]
			},
			wantCode: "INT002",
		},
		{
			name: "duplicate primary key",
			breakFn: func(f *fakeFetcher) {
				f.csv[testSources.Category] = append(f.csv[testSources.Category], []string{"6", "Ship again", "", "1"})
			},
			wantCode: "INT001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openStore(t)
			ctx := context.Background()
			f := newFakeFetcher()
			u := newUpdater(s, f)

			_, err := u.Update(ctx, false)
			require.NoError(t, err)
			before := snapshot(t, s)
			beforeVersion, err := s.Version(ctx)
			require.NoError(t, err)

			f.token = "token-2"
			tt.breakFn(f)

			res, err := u.Update(ctx, false)
			require.Error(t, err)
			assert.True(t, sde.IsFatal(err), "error %v should be fatal", err)
			assert.Equal(t, tt.wantCode, sde.MapError(err).Code, "error: %v", err)
			assert.Equal(t, "token-1", res.Token)

			if diff := cmp.Diff(before, snapshot(t, s)); diff != "" {
				t.Errorf("failed run changed the mirror (-before +after):\n%s", diff)
			}
			v, err := s.Version(ctx)
			require.NoError(t, err)
			assert.Equal(t, beforeVersion, v)

			runs, err := s.Runs(ctx, 10)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, store.RunFailed, runs[0].Status)
			assert.NotEmpty(t, runs[0].Error)
			assert.Equal(t, "token-2", runs[0].Token)
		})
	}
}

func TestUpdateTokenUnreachable(t *testing.T) {
	s := openStore(t)
	f := newFakeFetcher()
	f.errs[tokenURL] = &sde.NetworkError{URL: tokenURL, Err: errors.New("no route to host")}

	_, err := newUpdater(s, f).Update(context.Background(), true)

	var netErr *sde.NetworkError
	require.ErrorAs(t, err, &netErr)

	runs, err := s.Runs(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs, "no refresh was attempted")
}

func TestRunnerHookFailureRollsBack(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	r := sde.NewRunner(s, sde.Pipelines(testSources, newFakeFetcher())...)

	_, err := r.Run(ctx, func(ctx context.Context, tx store.Tx) error {
		return fmt.Errorf("hook refused")
	})
	require.ErrorContains(t, err, "hook refused")

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	for _, c := range counts {
		assert.Zero(t, c.Rows, c.Table)
	}
}

func TestRunnerStats(t *testing.T) {
	s := openStore(t)
	r := sde.NewRunner(s, sde.Pipelines(testSources, newFakeFetcher())...)

	stats, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	got := make(map[string][2]int64, len(stats))
	for _, st := range stats {
		got[st.Pipeline] = [2]int64{int64(st.Extracted), st.Loaded}
	}
	assert.Equal(t, map[string][2]int64{
		sde.CategoryPipeline:    {2, 1},
		sde.GroupPipeline:       {2, 2},
		sde.MarketGroupPipeline: {2, 2},
		sde.TypePipeline:        {4, 2},
		sde.MetaGroupPipeline:   {0, 0},
		sde.MetaTypePipeline:    {0, 0},
	}, got)
	assert.Equal(t, int64(7), sde.TotalLoaded(stats))
}

func TestUpdateRejectsConcurrentRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	f := newFakeFetcher()
	f.gate = make(chan struct{})
	f.entered = make(chan struct{}, 1)
	u := newUpdater(s, f)

	done := make(chan error, 1)
	go func() {
		_, err := u.Update(ctx, false)
		done <- err
	}()

	<-f.entered
	assert.True(t, u.Running())

	_, err := u.Update(ctx, true)
	require.ErrorIs(t, err, sde.ErrRefreshRunning)
	assert.Equal(t, "RUN001", sde.MapError(err).Code)

	close(f.gate)
	require.NoError(t, <-done)
	require.NoError(t, u.Wait(ctx))
	assert.False(t, u.Running())

	runs, err := s.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1, "the rejected call is not a run")
}
