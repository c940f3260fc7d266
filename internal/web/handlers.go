package web

import (
	"encoding/csv"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sdemirror/internal/logging"
	"github.com/JonMunkholm/sdemirror/internal/sde"
	"github.com/JonMunkholm/sdemirror/internal/store"
	"github.com/JonMunkholm/sdemirror/internal/web/templates"
)

const (
	// PageSize is the number of rows per table page.
	PageSize = 50

	// maxPage keeps the row offset of a page within int.
	maxPage = math.MaxInt / PageSize

	exportBatch  = 1000
	defaultRuns  = 20
	maxRuns      = 200
	dashboardRun = 10
)

// handleDashboard renders the version, table counts and recent runs.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	version, err := s.store.Version(ctx)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	counts, err := s.store.Counts(ctx)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	runs, err := s.store.Runs(ctx, dashboardRun)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	templates.Dashboard(templates.DashboardData{
		Version:    version,
		Counts:     counts,
		Runs:       runs,
		Refreshing: s.updater != nil && s.updater.Running(),
	}).Render(ctx, w)
}

// handleTableView renders one page of a mirror table.
func (s *Server) handleTableView(w http.ResponseWriter, r *http.Request) {
	table, err := store.Resolve(chi.URLParam(r, "table"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	page := min(parseIntParam(r, "page", 1), maxPage)
	rows, hasNext, err := s.page(r, table, page)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	templates.TablePage(templates.TablePageData{
		Table:   table,
		Rows:    rows,
		Page:    page,
		HasNext: hasNext,
	}).Render(r.Context(), w)
}

// page fetches one extra row to learn whether a next page exists.
func (s *Server) page(r *http.Request, table store.Table, page int) ([][]any, bool, error) {
	rows, err := s.store.Rows(r.Context(), table, PageSize+1, (page-1)*PageSize)
	if err != nil {
		return nil, false, err
	}
	if len(rows) > PageSize {
		return rows[:PageSize], true, nil
	}
	return rows, false, nil
}

// TableSummary is one entry of GET /api/tables.
type TableSummary struct {
	Name    string   `json:"name"`
	Label   string   `json:"label"`
	Columns []string `json:"columns"`
	Rows    int64    `json:"rows"`
}

// handleListTables returns every mirror table with its row count.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	out := make([]TableSummary, 0, len(counts))
	for _, c := range counts {
		table, ok := store.Lookup(c.Table)
		if !ok {
			continue
		}
		out = append(out, TableSummary{
			Name:    c.Table,
			Label:   c.Label,
			Columns: table.ColumnNames(),
			Rows:    c.Rows,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// TableRows is the body of GET /api/tables/{table}.
type TableRows struct {
	Table    string   `json:"table"`
	Columns  []string `json:"columns"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
	HasNext  bool     `json:"has_next"`
	Rows     [][]any  `json:"rows"`
}

// handleTableRows returns one page of a mirror table as JSON.
func (s *Server) handleTableRows(w http.ResponseWriter, r *http.Request) {
	table, err := store.Resolve(chi.URLParam(r, "table"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	page := min(parseIntParam(r, "page", 1), maxPage)
	rows, hasNext, err := s.page(r, table, page)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if rows == nil {
		rows = [][]any{}
	}

	writeJSON(w, http.StatusOK, TableRows{
		Table:    table.Name,
		Columns:  table.ColumnNames(),
		Page:     page,
		PageSize: PageSize,
		HasNext:  hasNext,
		Rows:     rows,
	})
}

// handleExportTable streams a whole mirror table as CSV.
func (s *Server) handleExportTable(w http.ResponseWriter, r *http.Request) {
	table, err := store.Resolve(chi.URLParam(r, "table"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	// Headers go out with the first row so a failing query still gets an
	// error response. The rows all come from one read of the table.
	var csvWriter *csv.Writer
	start := func() {
		filename := fmt.Sprintf("%s_%s.csv", table.Name, time.Now().UTC().Format("20060102_150405"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		csvWriter = csv.NewWriter(w)
		csvWriter.Write(table.ColumnNames())
	}

	record := make([]string, len(table.Columns))
	written := 0
	err = s.store.Each(r.Context(), table, func(row []any) error {
		if csvWriter == nil {
			start()
		}
		for i, cell := range row {
			record[i] = templates.FormatCell(cell)
		}
		if err := csvWriter.Write(record); err != nil {
			return err
		}
		written++
		if written%exportBatch == 0 {
			csvWriter.Flush()
			return csvWriter.Error()
		}
		return nil
	})
	if err != nil {
		if csvWriter == nil {
			s.respondError(w, r, err, http.StatusInternalServerError)
			return
		}
		// Headers are sent; the truncated body is all we can do.
		logging.FromContext(r.Context()).Error("export aborted", "table", table.Name, "rows", written, "error", err)
	}
	if csvWriter == nil {
		start()
	}
	csvWriter.Flush()
}

// VersionResponse is the body of GET /api/version.
type VersionResponse struct {
	Token      string     `json:"token"`
	Date       *time.Time `json:"date"`
	Refreshing bool       `json:"refreshing"`
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.Version(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	resp := VersionResponse{Token: v.Token, Refreshing: s.updater != nil && s.updater.Running()}
	if !v.Date.IsZero() {
		resp.Date = &v.Date
	}
	writeJSON(w, http.StatusOK, resp)
}

// RunResponse is one entry of GET /api/runs.
type RunResponse struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Token      string    `json:"token"`
	Forced     bool      `json:"forced"`
	Status     string    `json:"status"`
	RowsLoaded int64     `json:"rows_loaded"`
	Error      string    `json:"error,omitempty"`
}

// handleRuns returns the refresh log, newest first. ?limit caps the count.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", defaultRuns), maxRuns)

	runs, err := s.store.Runs(r.Context(), limit)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	out := make([]RunResponse, len(runs))
	for i, run := range runs {
		out[i] = RunResponse{
			ID:         run.ID,
			StartedAt:  run.StartedAt,
			FinishedAt: run.FinishedAt,
			Token:      run.Token,
			Forced:     run.Forced,
			Status:     string(run.Status),
			RowsLoaded: run.RowsLoaded,
			Error:      run.Error,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleRefresh starts an update in the background and answers 202.
// ?force=true refreshes even when the data is current.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.updater.Running() {
		s.respondError(w, r, sde.ErrRefreshRunning, http.StatusConflict)
		return
	}

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	logger := logging.FromContext(r.Context())

	go func() {
		res, err := s.updater.Update(s.jobs, force)
		if err != nil {
			logger.Error("requested refresh failed", "error", err, "code", sde.MapError(err).Code)
			return
		}
		logger.Info("requested refresh finished", "status", string(res.Status), "run", res.RunID)
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "forced": force})
}

// parseIntParam parses a positive integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}
