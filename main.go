package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/browser"

	"github.com/hunsao/ageset/appconfig"
	"github.com/hunsao/ageset/bundle"
	"github.com/hunsao/ageset/catalog"
	"github.com/hunsao/ageset/filter"
	"github.com/hunsao/ageset/middleware"
	"github.com/hunsao/ageset/session"
)

// -----------------------------------------------------------------------------
// Dependencies struct to hold shared dependencies
// -----------------------------------------------------------------------------
type Dependencies struct {
	Session *session.Session

	// loadMu serializes dataset loads; reads go straight to the
	// session, which is safe for concurrent use.
	loadMu sync.Mutex
}

// -----------------------------------------------------------------------------
// Dataset acquisition
// -----------------------------------------------------------------------------

// acquireArchive makes sure the bundle archive is on local disk and
// returns its path. Remote locators are downloaded into the cache
// directory and reused on the next run; local paths pass through.
func acquireArchive(ctx context.Context, cfg appconfig.Config) (string, error) {
	locator := cfg.BundleLocator
	if locator == "" {
		return "", fmt.Errorf("no bundle locator configured")
	}
	if !strings.Contains(locator, "://") {
		// Local archive path.
		if _, err := os.Stat(locator); err != nil {
			return "", fmt.Errorf("bundle archive not found: %w", err)
		}
		return locator, nil
	}

	if err := os.MkdirAll(cfg.CachePath, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	cached := filepath.Join(cfg.CachePath, bundle.ArchiveName(locator))
	if _, err := os.Stat(cached); err == nil {
		log.Printf("Using cached bundle: %s", cached)
		return cached, nil
	}

	src, err := bundle.SourceFor(locator)
	if err != nil {
		return "", err
	}
	switch s := src.(type) {
	case *bundle.S3Source:
		s.Region = cfg.S3Region
	case *bundle.HTTPSource:
		if cred, err := bundle.LoadCredential(); err == nil {
			if cred.Expired() {
				log.Println("Warning: storage credential is expired, fetching anyway")
			}
			s.Token = cred.Token
		} else if !errors.Is(err, bundle.ErrNoCredential) {
			return "", err
		}
	}

	log.Printf("Downloading bundle from %s", locator)
	if err := bundle.FetchWithRetry(ctx, src, locator, cached); err != nil {
		// Leave partial downloads in place; the next attempt resumes.
		return "", err
	}
	return cached, nil
}

// loadDataset runs the full pipeline: acquire the archive if needed,
// extract it, locate the data directory and table, and load the
// session. The previous session state survives any failure.
func loadDataset(ctx context.Context, deps *Dependencies, cfg appconfig.Config) error {
	deps.loadMu.Lock()
	defer deps.loadMu.Unlock()

	dataDir := cfg.DatasetRoot
	if dataDir == "" {
		archive, err := acquireArchive(ctx, cfg)
		if err != nil {
			return err
		}

		extractDir := filepath.Join(cfg.CachePath, "extracted")
		if err := os.RemoveAll(extractDir); err != nil {
			return fmt.Errorf("failed to clear extraction directory: %w", err)
		}
		if err := os.MkdirAll(extractDir, 0755); err != nil {
			return fmt.Errorf("failed to create extraction directory: %w", err)
		}
		log.Printf("Extracting %s", archive)
		if err := bundle.Extract(archive, extractDir); err != nil {
			return err
		}
		dataDir, err = bundle.FindDataDir(extractDir)
		if err != nil {
			return err
		}
	} else if found, err := bundle.FindDataDir(dataDir); err == nil {
		// Tolerate being pointed one level above the data directory.
		dataDir = found
	}

	tablePath, err := bundle.FindTable(dataDir)
	if err != nil {
		return err
	}

	log.Printf("Loading table %s", tablePath)
	if err := deps.Session.Load(tablePath, dataDir); err != nil {
		return err
	}
	for _, warning := range deps.Session.Warnings() {
		log.Printf("Load warning: %s", warning)
	}
	if dropped := deps.Session.Dropped(); dropped > 0 {
		log.Printf("Load dropped %d rows", dropped)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

func loadHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Use POST", http.StatusMethodNotAllowed)
			return
		}
		if err := loadDataset(r.Context(), deps, appconfig.Get()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		rows, err := deps.Session.Apply()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"records":  len(rows),
			"dropped":  deps.Session.Dropped(),
			"warnings": deps.Session.Warnings(),
		})
	}
}

type predicateRequest struct {
	Field  string   `json:"field"`
	Mode   string   `json:"mode"`
	Values []string `json:"values"`
}

type filtersRequest struct {
	Group      string             `json:"group"`
	Predicates []predicateRequest `json:"predicates"`
	Search     struct {
		Column string `json:"column"`
		Term   string `json:"term"`
	} `json:"search"`
}

func parseMode(mode string) (filter.Mode, error) {
	switch mode {
	case "equals":
		return filter.EqualsAny, nil
	case "list":
		return filter.ListContainsAny, nil
	case "keyword":
		return filter.KeywordAny, nil
	}
	return 0, fmt.Errorf("unknown predicate mode %q", mode)
}

func filtersHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Use POST", http.StatusMethodNotAllowed)
			return
		}
		var req filtersRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}

		deps.Session.Reset()
		deps.Session.SetGroup(req.Group)
		deps.Session.SetSearch(req.Search.Column, req.Search.Term)
		for _, p := range req.Predicates {
			mode, err := parseMode(p.Mode)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if err := deps.Session.SetPredicate(p.Field, mode, p.Values); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		rows, err := deps.Session.Apply()
		if err != nil {
			writeApplyError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"matches": len(rows)})
	}
}

func optionsHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Use GET", http.StatusMethodNotAllowed)
			return
		}
		field := r.URL.Query().Get("field")
		if field == "" {
			// No field: describe the filterable surface.
			cfg := deps.Session.FieldConfig()
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"groups":        deps.Session.Groups(),
				"scalarFields":  cfg.ScalarFields,
				"listFields":    cfg.ListFields,
				"keywordFields": cfg.KeywordFields,
			})
			return
		}

		opts, err := deps.Session.Options(field)
		if err != nil {
			writeApplyError(w, err)
			return
		}
		type optionJSON struct {
			Value   string `json:"value"`
			Count   int    `json:"count"`
			Display string `json:"display"`
		}
		out := make([]optionJSON, 0, len(opts))
		for _, o := range opts {
			out = append(out, optionJSON{Value: o.Value, Count: o.Count, Display: o.Display()})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}

func imagesHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Use GET", http.StatusMethodNotAllowed)
			return
		}
		rows, err := deps.Session.Apply()
		if err != nil {
			writeApplyError(w, err)
			return
		}

		pageSize := appconfig.Get().Grid.PageSize
		if v := r.URL.Query().Get("pageSize"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				pageSize = n
			}
		}
		page := 0
		if v := r.URL.Query().Get("page"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				page = n
			}
		}

		start := page * pageSize
		if start > len(rows) {
			start = len(rows)
		}
		end := start + pageSize
		if end > len(rows) {
			end = len(rows)
		}

		type itemJSON struct {
			ID       string `json:"id"`
			Group    string `json:"group"`
			Filename string `json:"filename"`
			Prompt   string `json:"prompt"`
		}
		items := make([]itemJSON, 0, end-start)
		for _, rec := range rows[start:end] {
			items = append(items, itemJSON{
				ID:       rec.ID,
				Group:    rec.Group,
				Filename: rec.ResolvedFilename,
				Prompt:   rec.Prompt,
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":    len(rows),
			"page":     page,
			"pageSize": pageSize,
			"columns":  appconfig.Get().Grid.Columns,
			"items":    items,
		})
	}
}

func mediaFileHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Use GET", http.StatusMethodNotAllowed)
			return
		}
		group := r.URL.Query().Get("group")
		name := r.URL.Query().Get("file")
		if group == "" || name == "" {
			http.Error(w, "group and file parameters are required", http.StatusBadRequest)
			return
		}

		path, err := deps.Session.ImagePath(group, name)
		if err != nil {
			if errors.Is(err, session.ErrNoImage) {
				http.NotFound(w, r)
				return
			}
			writeApplyError(w, err)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		http.ServeFile(w, r, path)
	}
}

func exportCSVHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Use GET", http.StatusMethodNotAllowed)
			return
		}
		var buf bytes.Buffer
		if err := deps.Session.ExportTable(&buf); err != nil {
			writeApplyError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="filtered_data.csv"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		_, _ = w.Write(buf.Bytes())
	}
}

func exportZipHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Use GET", http.StatusMethodNotAllowed)
			return
		}
		var buf bytes.Buffer
		report, err := deps.Session.ExportArchive(r.Context(), &buf)
		if err != nil {
			writeApplyError(w, err)
			return
		}
		for _, skip := range report.Skipped {
			log.Printf("Export skipped %s (%s): %s", skip.Filename, skip.ID, skip.Reason)
		}
		log.Printf("Export wrote %d images, skipped %d", report.Exported, len(report.Skipped))

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", `attachment; filename="filtered_images.zip"`)
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("X-Exported-Count", strconv.Itoa(report.Exported))
		w.Header().Set("X-Skipped-Count", strconv.Itoa(len(report.Skipped)))
		_, _ = w.Write(buf.Bytes())
	}
}

func healthHandler(deps *Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"loaded": deps.Session.Loaded(),
		})
	}
}

// writeApplyError maps pipeline errors onto HTTP statuses: a missing
// dataset or an unknown field is the caller's problem, anything else
// is ours.
func writeApplyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotLoaded):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, filter.ErrUnknownField):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, catalog.ErrUnknownField):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// -----------------------------------------------------------------------------
// Entry point
// -----------------------------------------------------------------------------

func main() {
	// .env carries AWS credentials and the storage bearer blob; a
	// missing file is fine.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, cfgPath, err := appconfig.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Config loaded from %s", cfgPath)

	deps := &Dependencies{
		Session: session.New(cfg.Fields, cfg.FolderMap()),
	}

	// Load in the background when a dataset location is configured so
	// the server is reachable immediately.
	if cfg.DatasetRoot != "" || cfg.BundleLocator != "" {
		go func() {
			if err := loadDataset(context.Background(), deps, cfg); err != nil {
				log.Printf("Initial dataset load failed: %v", err)
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/load", middleware.Apply(loadHandler(deps)))
	mux.HandleFunc("/api/filters", middleware.Apply(filtersHandler(deps)))
	mux.HandleFunc("/api/options", middleware.Apply(optionsHandler(deps)))
	mux.HandleFunc("/api/images", middleware.Apply(imagesHandler(deps)))
	mux.HandleFunc("/media/file", middleware.Apply(mediaFileHandler(deps)))
	mux.HandleFunc("/export/csv", middleware.Apply(exportCSVHandler(deps)))
	mux.HandleFunc("/export/zip", middleware.Apply(exportZipHandler(deps)))
	mux.HandleFunc("/health", healthHandler(deps))

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	go func() {
		log.Printf("Listening on http://%s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("ageset-server: %v", err)
		}
	}()

	if !cfg.NoBrowser {
		_ = browser.OpenURL("http://" + cfg.ListenAddr + "/health")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	} else {
		log.Println("HTTP server shutdown complete")
	}
}
