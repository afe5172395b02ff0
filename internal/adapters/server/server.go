// Package server mounts the calendar HTTP API and MCP tools on one listener.
package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/sourcegraph/conc/pool"

	"github.com/hylla/kalend/internal/adapters/server/common"
	"github.com/hylla/kalend/internal/adapters/server/httpapi"
	"github.com/hylla/kalend/internal/adapters/server/mcpapi"
)

const (
	defaultBindAddress = "127.0.0.1:7420"
	defaultAPIEndpoint = "/api/v1"
	defaultMCPEndpoint = "/mcp"
	shutdownTimeout    = 5 * time.Second
	readHeaderTimeout  = 10 * time.Second
)

// Config selects the bind address, mount points and MCP server identity.
type Config struct {
	HTTPBind      string
	APIEndpoint   string
	MCPEndpoint   string
	ServerName    string
	ServerVersion string
	// CORSOrigins enables cross-origin requests from the listed origins; "*" allows any.
	CORSOrigins []string
}

// Dependencies are the services the transports call into.
type Dependencies struct {
	Calendar common.CalendarService
	Logger   Logger
}

// Logger receives serve lifecycle events.
type Logger interface {
	Info(msg any, keyvals ...any)
}

// NewHandler builds the root mux and returns the config with defaults applied.
func NewHandler(cfg Config, deps Dependencies) (http.Handler, Config, error) {
	if deps.Calendar == nil {
		return nil, Config{}, errors.New("calendar dependency is required")
	}
	cfg, err := withDefaults(cfg)
	if err != nil {
		return nil, Config{}, err
	}

	tools, err := mcpapi.NewHandler(mcpapi.Config{
		ServerName:    cfg.ServerName,
		ServerVersion: cfg.ServerVersion,
		EndpointPath:  cfg.MCPEndpoint,
	}, deps.Calendar)
	if err != nil {
		return nil, Config{}, fmt.Errorf("configure mcp handler: %w", err)
	}
	api := http.StripPrefix(cfg.APIEndpoint, httpapi.NewHandler(deps.Calendar))

	mux := http.NewServeMux()
	for _, probe := range []string{"/healthz", "/readyz"} {
		mux.HandleFunc(probe, writeHealthStatus)
	}
	mux.Handle(cfg.MCPEndpoint, tools)
	mux.Handle(cfg.APIEndpoint, api)
	mux.Handle(cfg.APIEndpoint+"/", api)
	if len(cfg.CORSOrigins) == 0 {
		return mux, cfg, nil
	}
	return cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", httpapi.ActorHeader, "Mcp-Session-Id"},
		ExposedHeaders: []string{"Mcp-Session-Id"},
	}).Handler(mux), cfg, nil
}

// Run listens on cfg.HTTPBind and serves until ctx is cancelled or the listener fails.
func Run(ctx context.Context, cfg Config, deps Dependencies) error {
	if ctx == nil {
		ctx = context.Background()
	}
	handler, cfg, err := NewHandler(cfg, deps)
	if err != nil {
		return fmt.Errorf("build server handler: %w", err)
	}
	listener, err := net.Listen("tcp", cfg.HTTPBind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.HTTPBind, err)
	}
	if deps.Logger != nil {
		deps.Logger.Info("serving", "addr", listener.Addr().String(), "api", cfg.APIEndpoint, "mcp", cfg.MCPEndpoint)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: readHeaderTimeout}
	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(context.Context) error {
		if err := srv.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})
	return p.Wait()
}

func withDefaults(cfg Config) (Config, error) {
	cfg.HTTPBind = cmp.Or(strings.TrimSpace(cfg.HTTPBind), defaultBindAddress)
	cfg.APIEndpoint = mountPath(cfg.APIEndpoint, defaultAPIEndpoint)
	cfg.MCPEndpoint = mountPath(cfg.MCPEndpoint, defaultMCPEndpoint)
	if cfg.APIEndpoint == cfg.MCPEndpoint {
		return Config{}, fmt.Errorf("api and mcp endpoints must differ: both %q", cfg.APIEndpoint)
	}
	cfg.ServerName = cmp.Or(strings.TrimSpace(cfg.ServerName), "kalend")
	cfg.ServerVersion = cmp.Or(strings.TrimSpace(cfg.ServerVersion), "dev")
	return cfg, nil
}

// mountPath reduces raw to "/a/b" form; empty or root paths use fallback.
func mountPath(raw, fallback string) string {
	trimmed := strings.Trim(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return fallback
	}
	return "/" + trimmed
}

func writeHealthStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
}
