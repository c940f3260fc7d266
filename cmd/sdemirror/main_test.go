package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream serves a small static data export.
type upstream struct {
	mu    sync.Mutex
	token string
	files map[string]string
}

func newUpstream(t *testing.T) (*upstream, *httptest.Server) {
	t.Helper()
	u := &upstream{
		token: "d41d8cd98f00b204e9800998ecf8427e",
		files: map[string]string{
			"/invCategories.csv": "categoryID,categoryName,iconID,published\n6,Ship,,1\n",
			"/invGroups.csv": "groupID,categoryID,groupName,iconID,useBasePrice,anchored,anchorable,fittableNonSingleton,published\n" +
				"25,6,Frigate,,0,0,0,0,1\n",
			"/invMarketGroups.csv": "marketGroupID,parentGroupID,marketGroupName,description,iconID,hasTypes\n" +
				"4,\\N,Ships,,,0\n7,4,Frigates,,,1\n",
			"/invTypes.csv": "typeID,groupID,typeName,mass,volume,capacity,portionSize,raceID,basePrice,published,marketGroupID,iconID,soundID,graphicID\n" +
				"100,25,Widget,1000,10.0,0,1,1,100,1,7,,,\n",
			"/invVolumes.csv": "typeID,volume\n100,12.5\n",
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		if r.URL.Path == "/latest.md5" {
			w.Write([]byte(u.token + "  mysql-latest.tar.bz2\n"))
			return
		}
		body, ok := u.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	t.Setenv("SDE_TOKEN_URL", srv.URL+"/latest.md5")
	t.Setenv("SDE_CATEGORY_URL", srv.URL+"/invCategories.csv")
	t.Setenv("SDE_GROUP_URL", srv.URL+"/invGroups.csv")
	t.Setenv("SDE_MARKET_GROUP_URL", srv.URL+"/invMarketGroups.csv")
	t.Setenv("SDE_TYPE_URL", srv.URL+"/invTypes.csv")
	t.Setenv("SDE_VOLUME_URL", srv.URL+"/invVolumes.csv")
	return u, srv
}

func useSQLite(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")
	t.Setenv("SDE_DB_DRIVER", "sqlite")
	t.Setenv("SDE_SQLITE_PATH", filepath.Join(t.TempDir(), "sde.db"))
	t.Setenv("LOG_LEVEL", "error")
}

func runCLI(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestUpdateThenCurrent(t *testing.T) {
	useSQLite(t)
	newUpstream(t)

	code, out, errOut := runCLI("update")
	require.Equal(t, exitSuccess, code, errOut)
	assert.True(t, strings.HasPrefix(out, "Static data updated\n"), out)
	assert.Contains(t, out, "sde_type")

	code, out, errOut = runCLI("update")
	require.Equal(t, exitSuccess, code, errOut)
	assert.Equal(t, "Static data is current\n", out)

	code, out, _ = runCLI("update", "--force")
	require.Equal(t, exitSuccess, code)
	assert.True(t, strings.HasPrefix(out, "Static data updated\n"), out)
}

func TestStatus(t *testing.T) {
	useSQLite(t)
	newUpstream(t)

	code, out, _ := runCLI("status")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, out, "Version: never refreshed")
	assert.Contains(t, out, "No refresh has run yet.")

	code, _, _ = runCLI("update")
	require.Equal(t, exitSuccess, code)

	code, out, _ = runCLI("status", "-n", "1")
	require.Equal(t, exitSuccess, code)
	assert.Contains(t, out, "d41d8cd98f00b204e9800998ecf8427e")
	assert.Contains(t, out, "Market Groups")
	assert.Contains(t, out, "updated")
}

func TestUpdateFailureKeepsDataAndExitsNonZero(t *testing.T) {
	useSQLite(t)
	up, _ := newUpstream(t)

	code, _, _ := runCLI("update")
	require.Equal(t, exitSuccess, code)

	up.mu.Lock()
	up.token = "ffffffffffffffffffffffffffffffff"
	up.files["/invTypes.csv"] = "typeID,groupID,typeName\n100,25,Widget\n"
	up.mu.Unlock()

	code, out, errOut := runCLI("update")
	assert.Equal(t, exitRefreshFailed, code)
	assert.Empty(t, out)
	assert.Contains(t, errOut, "(Code: SCH001)")

	_, out, _ = runCLI("status")
	assert.Contains(t, out, "d41d8cd98f00b204e9800998ecf8427e", "old token kept")
	assert.Contains(t, out, "failed")
}

func TestUpdateUnreachableSource(t *testing.T) {
	useSQLite(t)
	_, srv := newUpstream(t)
	srv.Close()

	code, _, errOut := runCLI("update")
	assert.Equal(t, exitRefreshFailed, code)
	assert.Contains(t, errOut, "(Code: NET001)")
}

func TestDriverFlagOverridesEnv(t *testing.T) {
	useSQLite(t)
	newUpstream(t)
	t.Setenv("SDE_DB_DRIVER", "postgres")

	code, _, errOut := runCLI("migrate")
	assert.Equal(t, exitSysError, code)
	assert.Contains(t, errOut, "DATABASE_URL")

	code, out, errOut := runCLI("--driver", "sqlite", "migrate")
	require.Equal(t, exitSuccess, code, errOut)
	assert.Equal(t, "Schema ready (sqlite)\n", out)
}

func TestVersionSkipsSetup(t *testing.T) {
	t.Setenv("SDE_DB_DRIVER", "mysql")

	code, out, _ := runCLI("version")
	require.Equal(t, exitSuccess, code)
	assert.Equal(t, "sdemirror dev\n", out)
}

func TestUnknownCommand(t *testing.T) {
	code, _, errOut := runCLI("frobnicate")
	assert.Equal(t, exitSysError, code)
	assert.Contains(t, errOut, "unknown command")
}
