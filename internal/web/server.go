// Package web serves the dashboard pages: product, brain dump and project
// lists and details, delete confirmation and the continue action.
package web

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/rs/zerolog"

	"github.com/hpungsan/quill/internal/backend"
	"github.com/hpungsan/quill/internal/ops"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Deps are the collections and stores the pages read from.
type Deps struct {
	Products     *ops.Products
	BrainDumps   *ops.BrainDumps
	Projects     *ops.Projects
	Profiles     *ops.Profiles // optional; greeting is omitted when nil
	Handoffs     *ops.Handoffs
	User         ops.UserFunc
	Connectivity *backend.Connectivity // optional; offline banner
	Logger       zerolog.Logger
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(deps Deps, version string) (http.Handler, error) {
	// Create sub-FS for templates (strip "templates/" prefix)
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}

	// Create sub-FS for static files (strip "static/" prefix)
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	renderer, err := NewRenderer(templateSub, version, deps.Logger)
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		products:   deps.Products,
		brainDumps: deps.BrainDumps,
		projects:   deps.Projects,
		profiles:   deps.Profiles,
		handoffs:   deps.Handoffs,
		user:       deps.User,
		conn:       deps.Connectivity,
		renderer:   renderer,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/products", http.StatusFound)
	})

	mux.HandleFunc("GET /products", h.HandleProducts)
	mux.HandleFunc("POST /products/refresh", h.refreshHandler("products", func(ctx context.Context) (int, error) {
		items, err := h.products.Refresh(ctx)
		return len(items), err
	}))
	mux.HandleFunc("GET /products/{source}/{id}", h.HandleProduct)
	mux.HandleFunc("GET /products/{source}/{id}/delete", h.HandleProductDeleteConfirm)
	mux.HandleFunc("POST /products/{source}/{id}/delete", h.HandleProductDelete)
	mux.HandleFunc("POST /products/{source}/{id}/continue", h.HandleProductContinue)

	mux.HandleFunc("GET /brain-dumps", h.HandleBrainDumps)
	mux.HandleFunc("POST /brain-dumps/refresh", h.refreshHandler("brain-dumps", func(ctx context.Context) (int, error) {
		items, err := h.brainDumps.Refresh(ctx)
		return len(items), err
	}))
	mux.HandleFunc("GET /brain-dumps/{id}", h.HandleBrainDump)
	mux.HandleFunc("GET /brain-dumps/{id}/delete", h.HandleBrainDumpDeleteConfirm)
	mux.HandleFunc("POST /brain-dumps/{id}/delete", h.HandleBrainDumpDelete)

	mux.HandleFunc("GET /projects", h.HandleProjects)
	mux.HandleFunc("POST /projects/refresh", h.refreshHandler("projects", func(ctx context.Context) (int, error) {
		items, err := h.projects.Refresh(ctx)
		return len(items), err
	}))
	mux.HandleFunc("GET /projects/{id}", h.HandleProject)
	mux.HandleFunc("GET /projects/{id}/compose", h.HandleProjectCompose)
	mux.HandleFunc("GET /projects/{id}/delete", h.HandleProjectDeleteConfirm)
	mux.HandleFunc("POST /projects/{id}/delete", h.HandleProjectDelete)

	// Static file server
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(staticSub)))

	handler := securityHeaders(mux)
	handler = handlers.CompressHandler(handler)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{deps.Logger}),
		handlers.PrintRecoveryStack(true),
	)(handler)
	return handler, nil
}

// NewServer creates and configures the HTTP server for the quill web UI.
func NewServer(deps Deps, version, bind string, port int) (*http.Server, error) {
	handler, err := NewHandler(deps, version)
	if err != nil {
		return nil, err
	}
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// recoveryLogger routes recovered panics into zerolog.
type recoveryLogger struct {
	log zerolog.Logger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.log.Error().Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM
// or when ctx is cancelled.
func Run(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info().Str("addr", srv.Addr).Msgf("quill UI running at http://%s", srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn().Msg("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
