package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"go.uber.org/zap"

	"github.com/joeblew999/plat-flood/internal/api"
	apiviewer "github.com/joeblew999/plat-flood/internal/api/viewer"
	"github.com/joeblew999/plat-flood/internal/db"
	"github.com/joeblew999/plat-flood/internal/humastar"
	"github.com/joeblew999/plat-flood/internal/layers"
	"github.com/joeblew999/plat-flood/internal/mapview"
	"github.com/joeblew999/plat-flood/internal/metrics"
	"github.com/joeblew999/plat-flood/internal/service"
	"github.com/joeblew999/plat-flood/internal/templates"
	"github.com/joeblew999/plat-flood/internal/viewer"
)

//go:embed viewer.html
var viewerPage []byte

// Config holds the server configuration.
type Config struct {
	Host    string
	Port    string
	DataDir string
	// WebDir optionally overrides the embedded viewer page with
	// <WebDir>/templates/viewer.html and fragments with
	// <WebDir>/templates/fragments/*.html, and serves <WebDir>/static.
	WebDir string
	// Catalog is a YAML layer catalog; empty uses the built-in layers.
	Catalog  string
	Renderer string
	Basemap  string
	// MapKey is the MapTiler key substituted into basemap URLs.
	MapKey string
	// DataURL is the base datasets are fetched from; empty reads DataDir.
	DataURL        string
	FetchTimeout   time.Duration
	Concurrency    int
	SampleFallback bool
	History        bool
	Logger         *zap.Logger
}

// Server is the flood map HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	links    *humastar.Links
	history  *db.Store
	viewer   *viewer.Viewer
	renderer *templates.Renderer
	logger   *zap.Logger
}

// New creates a new server.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	catalog, err := service.LoadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	adapter, err := mapview.Lookup(cfg.Renderer, cfg.MapKey)
	if err != nil {
		return nil, err
	}
	renderer, err := templates.New()
	if err != nil {
		return nil, err
	}
	if cfg.WebDir != "" {
		fragmentsDir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if _, err := os.Stat(fragmentsDir); err == nil {
			if err := renderer.Reload(os.DirFS(fragmentsDir), "*.html"); err != nil {
				return nil, err
			}
			logger.Info("loaded fragment templates", zap.String("dir", fragmentsDir))
		}
	}

	base := cfg.DataURL
	if base == "" {
		base = cfg.DataDir
	}
	fetcher := layers.NewHTTPFetcher(layers.HTTPFetcherOptions{
		Base:    base,
		Timeout: cfg.FetchTimeout,
		Logger:  logger.Named("fetch"),
	})

	s := &Server{
		config:   cfg,
		mux:      http.NewServeMux(),
		links:    humastar.NewLinks(),
		renderer: renderer,
		logger:   logger,
	}

	var recorder viewer.Recorder
	if cfg.History {
		store, err := db.Open(db.Config{DataDir: cfg.DataDir, DBName: "history"})
		if err != nil {
			logger.Warn("load history disabled", zap.Error(err))
		} else {
			s.history = store
			recorder = store
		}
	}

	s.viewer, err = viewer.New(viewer.Options{
		Catalog:        catalog,
		Adapter:        adapter,
		Fetcher:        fetcher,
		Renderer:       renderer,
		Bus:            service.NewEventBus(),
		Recorder:       recorder,
		Basemap:        cfg.Basemap,
		SampleFallback: cfg.SampleFallback,
		Concurrency:    cfg.Concurrency,
		Logger:         logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	humaConfig := huma.DefaultConfig("plat-flood API", api.Version)
	humaConfig.Info.Description = "Flood-risk map of the Valencian Community: layer catalog, map documents, popups, geolocation and share links."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, s.links.Transformer())
	s.humaAPI = humago.New(s.mux, humaConfig)

	s.routes()
	s.handler = metrics.Middleware(s.mux)
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Viewer returns the map controller.
func (s *Server) Viewer() *viewer.Viewer {
	return s.viewer
}

// Load runs the initial load cycle.
func (s *Server) Load(ctx context.Context) viewer.Report {
	return s.viewer.Load(ctx)
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.viewer != nil {
		s.viewer.Cancel()
	}
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}

func (s *Server) routes() {
	// REST API
	api.RegisterRoutes(s.humaAPI, &api.Services{
		Viewer:  s.viewer,
		History: s.history,
		DataDir: s.config.DataDir,
	})

	// Datastar SSE routes for the viewer page
	apiviewer.NewEventHandler(s.viewer, s.renderer).RegisterRoutes(s.humaAPI)
	apiviewer.NewActionHandler(s.viewer, s.renderer).RegisterRoutes(s.humaAPI)

	s.links.Build(s.humaAPI)

	geojsonDir := filepath.Join(s.config.DataDir, "geojson")
	s.mux.Handle("/geojson/", http.StripPrefix("/geojson/", s.handleData(geojsonDir)))
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}
	s.mux.Handle("/metrics", metrics.Handler())

	s.mux.HandleFunc("/viewer", s.handleViewer)
	s.mux.HandleFunc("/", s.handleRoot)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.For("/health") {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "plat-flood",
		"status":  "running",
		"state":   s.viewer.State().String(),
	})
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	if s.config.WebDir != "" {
		templatePath := filepath.Join(s.config.WebDir, "templates", "viewer.html")
		if _, err := os.Stat(templatePath); err == nil {
			http.ServeFile(w, r, templatePath)
			return
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(viewerPage)
}

// handleData serves the GeoJSON datasets with CORS so the browser libraries
// can also load them directly.
func (s *Server) handleData(dir string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if filepath.Ext(r.URL.Path) == ".geojson" {
			w.Header().Set("Content-Type", "application/geo+json")
		}
		files.ServeHTTP(w, r)
	})
}
