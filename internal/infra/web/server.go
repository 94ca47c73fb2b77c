// Package web serves downloaded artifacts to a browser-based model viewer.
package web

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"bimcloud-demo/internal/config"
	"bimcloud-demo/internal/domain/model"
	"bimcloud-demo/internal/infra/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

//go:embed viewer.html
var viewerHTML string

var page = template.Must(template.New("viewer").Parse(viewerHTML))

// ArtifactPaths resolves a stored artifact name to a local file path.
type ArtifactPaths interface {
	Path(fileName string) (string, error)
}

// Server exposes the artifact slots of one run. Missing slots answer 404.
type Server struct {
	cfg     config.ViewerConfig
	assetID string
	slots   model.ArtifactSlots
	store   ArtifactPaths
	log     *zerolog.Logger

	stopOnce  sync.Once
	stop      chan struct{}
	readyOnce sync.Once
	ready     chan struct{}
	addr      string
}

func NewServer(cfg config.ViewerConfig, assetID string, slots model.ArtifactSlots, store ArtifactPaths, logger *zerolog.Logger) *Server {
	if slots == nil {
		slots = model.ArtifactSlots{}
	}
	l := logger.With().Str("component", "ViewerServer").Logger()
	return &Server{
		cfg:     cfg,
		assetID: assetID,
		slots:   slots,
		store:   store,
		log:     &l,
		stop:    make(chan struct{}),
		ready:   make(chan struct{}),
	}
}

// Handler builds the router. It is exported so tests can drive it through httptest.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handlePage)
	r.Get("/dependencies.js", s.handleDependencies)
	r.Get("/model.wexbim", s.handleSlot(model.SlotGeometry, "application/octet-stream"))
	r.Get("/model.json", s.handleSlot(model.SlotStructure, "application/json"))
	r.Post("/stop-server", s.handleStop)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	return r
}

// Run listens on the configured port (0 picks a free one) and blocks until the stop route is
// hit or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		s.markReady("")
		return fmt.Errorf("viewer listen: %w", err)
	}
	s.markReady(ln.Addr().String())

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	s.log.Info().Str("url", fmt.Sprintf("http://localhost:%d", port)).Msg("viewer is running")

	select {
	case <-ctx.Done():
		s.log.Info().Msg("viewer stopping: context done")
	case <-s.stop:
		s.log.Info().Msg("viewer stopping: stop requested")
	case err := <-errCh:
		return fmt.Errorf("viewer serve: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("viewer shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) markReady(addr string) {
	s.readyOnce.Do(func() {
		s.addr = addr
		close(s.ready)
	})
}

// Ready is closed once Run has either bound its listener or failed to.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr blocks until Ready and returns the bound address, or "" if the listen failed.
func (s *Server) Addr() string {
	<-s.ready
	return s.addr
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	if s.cfg.PagePath != "" {
		http.ServeFile(w, r, s.cfg.PagePath)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := page.Execute(w, struct {
		AssetID      string
		Geometry     string
		Structure    string
		Dependencies bool
	}{
		AssetID:      s.assetID,
		Geometry:     s.slots[model.SlotGeometry],
		Structure:    s.slots[model.SlotStructure],
		Dependencies: s.cfg.DependenciesPath != "",
	})
	if err != nil {
		s.log.Error().Err(err).Msg("render viewer page")
	}
}

func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	if s.cfg.DependenciesPath == "" {
		http.Error(w, "viewer dependencies not configured", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	http.ServeFile(w, r, s.cfg.DependenciesPath)
}

func (s *Server) handleSlot(slot model.Slot, contentType string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ok := s.slots.Get(slot)
		if !ok {
			http.Error(w, fmt.Sprintf("no %s artifact", slot), http.StatusNotFound)
			return
		}
		path, err := s.store.Path(name)
		if err != nil {
			s.log.Warn().Err(err).Str("slot", string(slot)).Msg("resolve artifact path")
			http.Error(w, "artifact unavailable", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentType)
		http.ServeFile(w, r, path)
	}
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("Server is closing..."))
	s.stopOnce.Do(func() { close(s.stop) })
}
