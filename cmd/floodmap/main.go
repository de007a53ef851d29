package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-flood/internal/config"
	"github.com/joeblew999/plat-flood/internal/server"
)

// Options defines all CLI flags and env vars for the flood map server.
// Flags: --host, --port, --data-dir, --renderer, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_RENDERER, ...
type Options struct {
	Host           string `doc:"Host to bind to" default:"0.0.0.0"`
	Port           int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir        string `doc:"Directory holding geojson/ datasets and the history database" default:".data"`
	WebDir         string `doc:"Optional web/ directory overriding the built-in viewer page"`
	Catalog        string `doc:"YAML layer catalog; empty uses the built-in Valencian layers"`
	Renderer       string `doc:"Map library: maplibre or leaflet" default:"maplibre"`
	Basemap        string `doc:"Initial basemap; empty uses the renderer default"`
	MapKey         string `doc:"MapTiler API key for basemap URLs"`
	DataURL        string `doc:"Base URL datasets are fetched from; empty reads the data dir"`
	FetchTimeout   int    `doc:"Per-dataset fetch timeout in seconds" default:"10"`
	Concurrency    int    `doc:"Maximum concurrent dataset fetches" default:"8"`
	SampleFallback bool   `doc:"Show embedded sample data for datasets that fail to load"`
	History        bool   `doc:"Record load cycles in DuckDB" default:"true"`
	LogLevel       string `doc:"Log level (debug, info, warn, error)" default:"info"`
	LogEnv         string `doc:"Log format: production (JSON) or development" default:"development"`
}

func newServer(opts *Options) (*server.Server, *zap.Logger, error) {
	logger, err := config.Logger{Env: opts.LogEnv, Level: opts.LogLevel, Name: "floodmap"}.BuildLogger()
	if err != nil {
		return nil, nil, err
	}
	srv, err := server.New(server.Config{
		Host:           opts.Host,
		Port:           fmt.Sprintf("%d", opts.Port),
		DataDir:        opts.DataDir,
		WebDir:         opts.WebDir,
		Catalog:        opts.Catalog,
		Renderer:       opts.Renderer,
		Basemap:        opts.Basemap,
		MapKey:         opts.MapKey,
		DataURL:        opts.DataURL,
		FetchTimeout:   time.Duration(opts.FetchTimeout) * time.Second,
		Concurrency:    opts.Concurrency,
		SampleFallback: opts.SampleFallback,
		History:        opts.History,
		Logger:         logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return srv, logger, nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		var srv *server.Server
		var logger *zap.Logger
		var httpSrv *http.Server

		hooks.OnStart(func() {
			var err error
			srv, logger, err = newServer(opts)
			if err != nil {
				fatal("Error: %v", err)
			}
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-flood server starting...\n")
			fmt.Printf("  Server:   %s\n", baseURL)
			fmt.Printf("  Data:     %s\n", opts.DataDir)
			fmt.Printf("  Renderer: %s\n", opts.Renderer)
			fmt.Println()
			fmt.Printf("  Viewer:  %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Printf("  Metrics: %s/metrics\n", baseURL)
			fmt.Println()

			go srv.Load(context.Background())

			httpSrv = &http.Server{Addr: addr, Handler: srv}
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal("server error", zap.Error(err))
			}
		})

		hooks.OnStop(func() {
			if httpSrv == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			httpSrv.Shutdown(ctx)
		})
	})

	cli.Root().Use = "floodmap"
	cli.Root().Short = "Flood-risk map of the Valencian Community"
	cli.Root().Version = "1.0.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.History = false
			srv, _, err := newServer(opts)
			if err != nil {
				fatal("Error: %v", err)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fatal("Error marshaling spec: %v", err)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// load subcommand: run one load cycle without serving
	loadCmd := &cobra.Command{
		Use:   "load",
		Short: "Load every catalog layer once and print the per-layer outcome",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			srv, _, err := newServer(opts)
			if err != nil {
				fatal("Error: %v", err)
			}
			report := srv.Load(cmd.Context())
			srv.Close()

			useJSON, _ := cmd.Flags().GetBool("json")
			var output []byte
			if useJSON {
				output, err = json.MarshalIndent(report, "", "  ")
			} else {
				output, err = yaml.Marshal(report)
			}
			if err != nil {
				fatal("Error marshaling report: %v", err)
			}
			fmt.Println(string(output))

			if len(report.Result.Succeeded()) == 0 {
				os.Exit(1)
			}
		}),
	}
	loadCmd.Flags().Bool("json", false, "Output as JSON instead of YAML")
	cli.Root().AddCommand(loadCmd)

	cli.Run()
}
