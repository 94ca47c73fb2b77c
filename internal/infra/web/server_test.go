package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"bimcloud-demo/internal/config"
	"bimcloud-demo/internal/domain/model"
	"bimcloud-demo/internal/infra/storage"

	"github.com/rs/zerolog"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

func newTestStore(t *testing.T, files map[string]string) *storage.LocalStore {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s, err := storage.NewLocalStore(dir, newTestLogger())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Routes(t *testing.T) {
	store := newTestStore(t, map[string]string{"model.wexbim": "geometry-bytes"})
	srv := NewServer(config.ViewerConfig{}, "a1", model.ArtifactSlots{model.SlotGeometry: "model.wexbim"}, store, newTestLogger())
	h := srv.Handler()

	t.Run("geometry slot served", func(t *testing.T) {
		rec := get(t, h, "/model.wexbim")
		if rec.Code != http.StatusOK || rec.Body.String() != "geometry-bytes" {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("absent structure slot is 404", func(t *testing.T) {
		if rec := get(t, h, "/model.json"); rec.Code != http.StatusNotFound {
			t.Fatalf("got %d", rec.Code)
		}
	})

	t.Run("page lists slots", func(t *testing.T) {
		rec := get(t, h, "/")
		body := rec.Body.String()
		if rec.Code != http.StatusOK || !strings.Contains(body, "model.wexbim") || !strings.Contains(body, "Asset a1") {
			t.Fatalf("got %d %q", rec.Code, body)
		}
		if strings.Contains(body, "/dependencies.js") {
			t.Fatal("dependency script must not be referenced when unconfigured")
		}
	})

	t.Run("dependencies unconfigured is 404", func(t *testing.T) {
		if rec := get(t, h, "/dependencies.js"); rec.Code != http.StatusNotFound {
			t.Fatalf("got %d", rec.Code)
		}
	})

	t.Run("health", func(t *testing.T) {
		if rec := get(t, h, "/health"); rec.Code != http.StatusOK {
			t.Fatalf("got %d", rec.Code)
		}
	})

	t.Run("stop requires POST", func(t *testing.T) {
		if rec := get(t, h, "/stop-server"); rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("got %d", rec.Code)
		}
	})
}

func TestServer_ConfiguredFiles(t *testing.T) {
	dir := t.TempDir()
	pagePath := filepath.Join(dir, "demo.html")
	depsPath := filepath.Join(dir, "index.js")
	_ = os.WriteFile(pagePath, []byte("<html>custom</html>"), 0o644)
	_ = os.WriteFile(depsPath, []byte("var Xbim = {};"), 0o644)

	srv := NewServer(config.ViewerConfig{PagePath: pagePath, DependenciesPath: depsPath}, "a1", nil, newTestStore(t, nil), newTestLogger())
	h := srv.Handler()

	if rec := get(t, h, "/"); !strings.Contains(rec.Body.String(), "custom") {
		t.Fatalf("page: %q", rec.Body.String())
	}
	rec := get(t, h, "/dependencies.js")
	if rec.Code != http.StatusOK || rec.Body.String() != "var Xbim = {};" {
		t.Fatalf("deps: %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/javascript") {
		t.Fatalf("content type: %q", ct)
	}
}

func TestServer_RunStopsOnStopRoute(t *testing.T) {
	srv := NewServer(config.ViewerConfig{Port: 0}, "a1", nil, newTestStore(t, nil), newTestLogger())

	done := make(chan error, 1)
	go func() { done <- srv.Run(context.Background()) }()

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server never became ready")
	}
	base := "http://" + srv.Addr()

	resp, err := http.Get(base + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Post(base+"/stop-server", "text/plain", nil)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(b), "closing") {
		t.Fatalf("stop body: %q", b)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after stop")
	}
}

func TestServer_RunStopsOnContext(t *testing.T) {
	srv := NewServer(config.ViewerConfig{}, "a1", nil, newTestStore(t, nil), newTestLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	<-srv.Ready()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServer_RunListenFailureReleasesWaiters(t *testing.T) {
	busy, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatal(err)
	}
	defer busy.Close()
	port := busy.Addr().(*net.TCPAddr).Port

	srv := NewServer(config.ViewerConfig{Port: port}, "a1", nil, newTestStore(t, nil), newTestLogger())
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected a listen error on an occupied port")
	}

	select {
	case <-srv.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("Ready not closed after listen failure")
	}
	if addr := srv.Addr(); addr != "" {
		t.Fatalf("Addr after listen failure: %q", addr)
	}
}
