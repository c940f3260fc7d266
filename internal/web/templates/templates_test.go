package templates

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sdemirror/internal/store"
)

func render(t *testing.T, c templ.Component) string {
	t.Helper()
	var sb strings.Builder
	require.NoError(t, c.Render(context.Background(), &sb))
	return sb.String()
}

func TestLayoutWrapsChildren(t *testing.T) {
	html := render(t, ErrorPage("Table <x> not found", "Check the name", "TBL001"))

	assert.True(t, strings.HasPrefix(html, "<!doctype html>"))
	assert.Contains(t, html, "<title>Error - SDE mirror</title>")
	assert.Contains(t, html, "<strong>Table &lt;x&gt; not found</strong>")
	assert.Contains(t, html, `<p class="muted">Code: TBL001</p>`)
	assert.True(t, strings.HasSuffix(html, "</div></body></html>"))
}

func TestDashboardNeverRefreshed(t *testing.T) {
	html := render(t, Dashboard(DashboardData{}))

	assert.Contains(t, html, "Never refreshed")
	assert.Contains(t, html, "No refresh has run yet.")
	assert.NotContains(t, html, "A refresh is running.")
}

func TestDashboardRuns(t *testing.T) {
	started := time.Date(2026, 5, 1, 12, 30, 0, 0, time.FixedZone("x", 3600))
	html := render(t, Dashboard(DashboardData{
		Version:    store.Version{Token: `"etag"`, Date: started},
		Counts:     []store.TableCount{{Table: "sde_category", Label: "Categories", Rows: 42}},
		Runs:       []store.Run{{StartedAt: started, Status: store.RunFailed, Token: "t1", RowsLoaded: 7, Forced: true, Error: "boom <b>"}},
		Refreshing: true,
	}))

	assert.Contains(t, html, "<code>&#34;etag&#34;</code> <span class=\"muted\">2026-05-01 11:30:00 UTC</span>")
	assert.Contains(t, html, "A refresh is running.")
	assert.Contains(t, html, `<a href="/tables/sde_category">Categories</a>`)
	assert.Contains(t, html, "<td>42</td>")
	assert.Contains(t, html, `<td class="status-failed">failed</td>`)
	assert.Contains(t, html, "<td>yes</td>")
	assert.Contains(t, html, "boom &lt;b&gt;")
}

func TestTablePage(t *testing.T) {
	table, ok := store.Lookup("sde_category")
	require.True(t, ok)

	html := render(t, TablePage(TablePageData{
		Table:   table,
		Rows:    [][]any{{int64(1), "Ship"}, {int64(2), nil}},
		Page:    2,
		HasNext: true,
	}))

	assert.Contains(t, html, "<th>id</th>")
	assert.Contains(t, html, "<tr><td>1</td><td>Ship</td></tr>")
	assert.Contains(t, html, "<tr><td>2</td><td></td></tr>")
	assert.Contains(t, html, `<a href="/tables/sde_category?page=1">Previous</a>`)
	assert.Contains(t, html, `<a href="/tables/sde_category?page=3">Next</a>`)
	assert.Contains(t, html, "Page 2")
	assert.NotContains(t, html, "No rows")
}

func TestTablePageEmpty(t *testing.T) {
	table, ok := store.Lookup("sde_category")
	require.True(t, ok)

	html := render(t, TablePage(TablePageData{Table: table, Page: 1}))

	assert.Contains(t, html, `colspan="2">No rows</td>`)
	assert.NotContains(t, html, "Previous")
	assert.NotContains(t, html, "Next")
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", FormatCell(nil))
	assert.Equal(t, "12.5", FormatCell(12.5))
	assert.Equal(t, "-3", FormatCell(int64(-3)))
	assert.Equal(t, "true", FormatCell(true))
}
