package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"github.com/cdtdelta/4n6graph/internal/aggregate"
	"github.com/cdtdelta/4n6graph/internal/config"
	"github.com/cdtdelta/4n6graph/internal/csvexport"
	"github.com/cdtdelta/4n6graph/internal/database"
	"github.com/cdtdelta/4n6graph/internal/dataset"
	"github.com/cdtdelta/4n6graph/internal/engine"
	"github.com/cdtdelta/4n6graph/internal/filter"
	"github.com/cdtdelta/4n6graph/internal/flowcsv"
	"github.com/cdtdelta/4n6graph/internal/jsonlparser"
	"github.com/cdtdelta/4n6graph/internal/model"
	"github.com/cdtdelta/4n6graph/internal/timeindex"
	"github.com/cdtdelta/4n6graph/internal/version"
)

var errNoDatabase = errors.New("no database open")

// App is the main application struct that Wails binds to the frontend.
// All exported methods become callable from JavaScript.
type App struct {
	ctx     context.Context
	cfg     *config.Config
	log     *zap.Logger
	store   database.Store
	session *engine.Session
}

// NewApp creates a new App instance.
func NewApp(cfg *config.Config, log *zap.Logger) *App {
	return &App{cfg: cfg, log: log}
}

// startup is called when the app starts. The context is saved
// so we can call runtime methods (dialogs, events, etc.)
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
}

// shutdown is called when the app is closing.
func (a *App) shutdown(ctx context.Context) {
	a.CloseDatabase()
	_ = a.log.Sync()
}

// -- File Operations --

// CloseDatabase closes the current database and returns to the welcome screen.
func (a *App) CloseDatabase() {
	if a.store != nil {
		a.store.Close()
		a.store = nil
	}
	a.session = nil
}

// OpenDatabase opens a file dialog and loads an existing SQLite database.
func (a *App) OpenDatabase() (*DBInfo, error) {
	path, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Open 4n6graph Database",
		Filters: []runtime.FileFilter{
			{DisplayName: "SQLite Database (*.db)", Pattern: "*.db"},
			{DisplayName: "All Files (*.*)", Pattern: "*.*"},
		},
	})
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, nil // user cancelled
	}

	store, err := database.OpenStore("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.install(store)
	return a.getDBInfo()
}

// OpenConfiguredDatabase connects to the database named in the config file,
// typically a shared PostgreSQL instance.
func (a *App) OpenConfiguredDatabase() (*DBInfo, error) {
	store, err := database.OpenStore(a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	a.install(store)
	return a.getDBInfo()
}

// ImportTelemetry opens a file dialog for a telemetry export, creates a new
// database, and imports the records.
func (a *App) ImportTelemetry() (*DBInfo, error) {
	srcPath, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Import Telemetry",
		Filters: []runtime.FileFilter{
			{DisplayName: "Telemetry JSONL (*.jsonl)", Pattern: "*.jsonl;*.json"},
			{DisplayName: "Flow CSV (*.csv)", Pattern: "*.csv"},
			{DisplayName: "All Files (*.*)", Pattern: "*.*"},
		},
	})
	if err != nil {
		return nil, err
	}
	if srcPath == "" {
		return nil, nil
	}

	read := func(onProgress func(int)) (*dataset.Payload, error) {
		if err := jsonlparser.ValidateFile(srcPath); err == nil {
			res, err := jsonlparser.ReadEvents(srcPath, onProgress)
			if err != nil {
				return nil, err
			}
			return res.Payload, nil
		}
		if err := flowcsv.ValidateFile(srcPath); err != nil {
			return nil, fmt.Errorf("invalid telemetry file: %w", err)
		}
		res, err := flowcsv.ReadEvents(srcPath, onProgress)
		if err != nil {
			return nil, err
		}
		return res.Payload, nil
	}

	// Ask where to save the database
	dbPath, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Save Database As",
		DefaultFilename: strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath)) + ".db",
		Filters: []runtime.FileFilter{
			{DisplayName: "SQLite Database (*.db)", Pattern: "*.db"},
		},
	})
	if err != nil {
		return nil, err
	}
	if dbPath == "" {
		return nil, nil
	}

	a.CloseDatabase()

	runtime.EventsEmit(a.ctx, "import:progress", map[string]interface{}{
		"phase": "reading", "message": "Reading telemetry...", "count": 0, "total": 0,
	})
	p, err := read(func(count int) {
		runtime.EventsEmit(a.ctx, "import:progress", map[string]interface{}{
			"phase": "reading", "message": fmt.Sprintf("Read %d records...", count), "count": count, "total": 0,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("reading telemetry: %w", err)
	}

	store, err := database.CreateStore("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	total := p.Len()
	runtime.EventsEmit(a.ctx, "import:progress", map[string]interface{}{
		"phase": "inserting", "message": "Inserting into database...", "count": 0, "total": total,
	})
	_, err = store.InsertPayload(a.ctx, p, func(count int) {
		runtime.EventsEmit(a.ctx, "import:progress", map[string]interface{}{
			"phase": "inserting", "message": fmt.Sprintf("Inserted %d of %d records...", count, total), "count": count, "total": total,
		})
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("inserting records: %w", err)
	}

	a.install(store)
	a.log.Info("import complete", zap.String("file", srcPath), zap.String("database", dbPath), zap.Int("records", total))
	runtime.EventsEmit(a.ctx, "import:progress", map[string]interface{}{
		"phase": "done", "message": fmt.Sprintf("Import complete: %d records", total), "count": total, "total": total,
	})

	return a.getDBInfo()
}

// -- Search and Window --

// GetAvailability returns the span of stored events for the date pickers.
func (a *App) GetAvailability() (model.Range, error) {
	if a.session == nil {
		return model.Range{}, errNoDatabase
	}
	return a.session.Availability(a.ctx)
}

// RunSearch loads [start, end] and returns the renderer-ready graph.
func (a *App) RunSearch(start, end int64) (*filter.Indexed, error) {
	if a.session == nil {
		return nil, errNoDatabase
	}
	if _, err := a.session.RunSearch(a.ctx, start, end); err != nil {
		if errors.Is(err, engine.ErrStaleSearch) {
			// A newer search owns the view; the frontend ignores this result.
			return nil, nil
		}
		return nil, err
	}
	return a.session.IndexedGraph(), nil
}

// SetWindow brushes a new window inside the search range.
func (a *App) SetWindow(start, end int64) (*filter.Indexed, error) {
	if a.session == nil {
		return nil, errNoDatabase
	}
	if _, err := a.session.SetWindow(start, end); err != nil {
		return nil, err
	}
	return a.session.IndexedGraph(), nil
}

// SetGranularity changes the histogram and index bucket width.
func (a *App) SetGranularity(ms int64) (*filter.Indexed, error) {
	if a.session == nil {
		return nil, errNoDatabase
	}
	if _, err := a.session.SetGranularity(ms); err != nil {
		return nil, err
	}
	return a.session.IndexedGraph(), nil
}

// GetGranularityOptions returns the bucket widths offered in the toolbar.
func (a *App) GetGranularityOptions() []int64 {
	if len(a.cfg.Analysis.GranularityOptions) > 0 {
		return a.cfg.Analysis.GranularityOptions
	}
	return engine.GranularityOptions
}

// -- Filters --

func (a *App) ToggleHiddenNodeType(name string) (*filter.Indexed, error) {
	if a.session == nil {
		return nil, errNoDatabase
	}
	t, err := model.ParseNodeType(name)
	if err != nil {
		return nil, err
	}
	a.session.ToggleHiddenNodeType(t)
	return a.session.IndexedGraph(), nil
}

func (a *App) ToggleHiddenLinkKind(name string) (*filter.Indexed, error) {
	if a.session == nil {
		return nil, errNoDatabase
	}
	k, err := model.ParseLinkKind(name)
	if err != nil {
		return nil, err
	}
	a.session.ToggleHiddenLinkKind(k)
	return a.session.IndexedGraph(), nil
}

func (a *App) ToggleHiddenHost(host string) (*filter.Indexed, error) {
	if a.session == nil {
		return nil, errNoDatabase
	}
	a.session.ToggleHiddenHost(host)
	return a.session.IndexedGraph(), nil
}

func (a *App) ToggleHiddenColorBucket(kind, color string) (*filter.Indexed, error) {
	if a.session == nil {
		return nil, errNoDatabase
	}
	k, err := model.ParseLinkKind(kind)
	if err != nil {
		return nil, err
	}
	if _, err := a.session.ToggleHiddenColorBucket(k, color); err != nil {
		return nil, err
	}
	return a.session.IndexedGraph(), nil
}

func (a *App) SetGrouping(enabled bool) (*filter.Indexed, error) {
	if a.session == nil {
		return nil, errNoDatabase
	}
	a.session.SetGrouping(enabled)
	return a.session.IndexedGraph(), nil
}

func (a *App) GetFilters() (filter.Settings, error) {
	if a.session == nil {
		return filter.Settings{}, errNoDatabase
	}
	return a.session.Filters(), nil
}

// -- Views --

// GetHistogram returns the event timeline, or only the brushed part.
func (a *App) GetHistogram(brushed bool) ([]timeindex.Bucket, error) {
	if a.session == nil {
		return nil, errNoDatabase
	}
	if brushed {
		return a.session.BrushedHistogram()
	}
	return a.session.Histogram()
}

// GetActiveHosts returns the host legend entries.
func (a *App) GetActiveHosts() []string {
	if a.session == nil {
		return []string{"localhost"}
	}
	return a.session.ActiveHosts()
}

// GetDetails describes the clicked node or link.
func (a *App) GetDetails(id string) (*engine.Details, error) {
	if a.session == nil {
		return nil, errNoDatabase
	}
	return a.session.Details(id)
}

// GetDiagnostics returns the records dropped by the last search.
func (a *App) GetDiagnostics() []aggregate.Diagnostic {
	if a.session == nil {
		return nil
	}
	return a.session.Diagnostics()
}

// ExportCSV writes the displayed links to a CSV file.
func (a *App) ExportCSV() (string, error) {
	if a.session == nil {
		return "", errNoDatabase
	}

	// Ask where to save
	savePath, err := runtime.SaveFileDialog(a.ctx, runtime.SaveDialogOptions{
		Title:           "Export Links to CSV",
		DefaultFilename: "links.csv",
		Filters: []runtime.FileFilter{
			{DisplayName: "CSV Files (*.csv)", Pattern: "*.csv"},
		},
	})
	if err != nil {
		return "", err
	}
	if savePath == "" {
		return "", nil // user cancelled
	}

	g, sc := a.session.View()
	if err := csvexport.WriteLinksFile(savePath, g, sc); err != nil {
		return "", fmt.Errorf("writing CSV: %w", err)
	}
	return fmt.Sprintf("Exported %d links to %s", len(g.Links), savePath), nil
}

// -- Internal Helpers --

// GetVersion returns the application version string.
func (a *App) GetVersion() string {
	return version.String()
}

// DBInfo contains summary info about the loaded database.
type DBInfo struct {
	Path        string      `json:"path"`
	RecordCount int64       `json:"recordCount"`
	EventCount  int64       `json:"eventCount"`
	Available   model.Range `json:"available"`
}

func (a *App) install(store database.Store) {
	a.CloseDatabase()
	a.store = store
	a.session = engine.NewSession(store,
		engine.WithLogger(a.log.With(zap.String("database", store.Path()))),
		engine.WithGranularity(a.cfg.Analysis.Granularity))
}

func (a *App) getDBInfo() (*DBInfo, error) {
	info := &DBInfo{Path: a.store.Path()}
	for _, t := range model.Tables {
		n, err := a.store.CountRows(a.ctx, t)
		if err != nil {
			return nil, err
		}
		info.RecordCount += n
		if t.Timed {
			info.EventCount += n
		}
	}

	rng, err := a.store.DataAvailability(a.ctx)
	if err != nil && !errors.Is(err, dataset.ErrNoEvents) {
		return nil, err
	}
	info.Available = rng
	return info, nil
}
