package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"bimcloud-demo/internal/domain"
	"bimcloud-demo/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
)

func newStore(t *testing.T) *LocalStore {
	t.Helper()
	logger := zerolog.New(nil)
	s, err := NewLocalStore(t.TempDir(), &logger)
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return s
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestLocalStore_SaveWritesOneFile(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	a, err := s.Save(context.Background(), adapter.SaveRequest{
		OperationID: "o1", OperationType: "StructureConversion", FileName: "model.json",
	}, strings.NewReader(`{"ok":true}`))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.FileName != "model.json" || a.Size != 11 {
		t.Fatalf("unexpected artifact %+v", a)
	}
	if !strings.HasPrefix(a.ContentType, "application/json") {
		t.Errorf("content type: %q", a.ContentType)
	}
	b, err := os.ReadFile(filepath.Join(s.Dir(), "model.json"))
	if err != nil || string(b) != `{"ok":true}` {
		t.Fatalf("file content %q, %v", b, err)
	}
	if files := listFiles(t, s.Dir()); len(files) != 1 {
		t.Fatalf("expected exactly one file, got %v", files)
	}
}

func TestLocalStore_DefaultName(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	a, err := s.Save(context.Background(), adapter.SaveRequest{OperationID: "o1", OperationType: "WexbimGeometryConversion"}, strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if a.FileName != "downloadedAsset_WexbimGeometryConversion" {
		t.Fatalf("default name: got %q", a.FileName)
	}
}

func TestLocalStore_CollisionDisambiguatedByOperationID(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx := context.Background()
	first, err := s.Save(ctx, adapter.SaveRequest{OperationID: "o1", OperationType: "T"}, strings.NewReader("1"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Save(ctx, adapter.SaveRequest{OperationID: "o2", OperationType: "T"}, strings.NewReader("2"))
	if err != nil {
		t.Fatal(err)
	}
	if first.FileName != "downloadedAsset_T" || second.FileName != "downloadedAsset_T_o2" {
		t.Fatalf("names: %q %q", first.FileName, second.FileName)
	}

	third, err := s.Save(ctx, adapter.SaveRequest{OperationID: "o3", FileName: "model.wexbim"}, strings.NewReader("3"))
	if err != nil {
		t.Fatal(err)
	}
	fourth, err := s.Save(ctx, adapter.SaveRequest{OperationID: "o4", FileName: "model.wexbim"}, strings.NewReader("4"))
	if err != nil {
		t.Fatal(err)
	}
	if third.FileName != "model.wexbim" || fourth.FileName != "model_o4.wexbim" {
		t.Fatalf("names: %q %q", third.FileName, fourth.FileName)
	}
}

func TestLocalStore_ConcurrentSameName(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	var wg sync.WaitGroup
	names := make([]string, 8)
	for i := range names {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := s.Save(context.Background(), adapter.SaveRequest{
				OperationID: string(rune('a' + i)), OperationType: "T",
			}, strings.NewReader("x"))
			if err != nil {
				t.Errorf("Save: %v", err)
				return
			}
			names[i] = a.FileName
		}(i)
	}
	wg.Wait()
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			t.Fatalf("duplicate artifact name %q in %v", n, names)
		}
		seen[n] = true
	}
	if files := listFiles(t, s.Dir()); len(files) != len(names) {
		t.Fatalf("expected %d files, got %v", len(names), files)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalStore_FailedWriteLeavesNothing(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	if _, err := s.Save(context.Background(), adapter.SaveRequest{OperationID: "o1", FileName: "a.bin"}, failingReader{}); err == nil {
		t.Fatal("expected error")
	}
	if files := listFiles(t, s.Dir()); len(files) != 0 {
		t.Fatalf("expected no files after failure, got %v", files)
	}
	// the name is free again
	a, err := s.Save(context.Background(), adapter.SaveRequest{OperationID: "o2", FileName: "a.bin"}, strings.NewReader("ok"))
	if err != nil || a.FileName != "a.bin" {
		t.Fatalf("retry: %+v %v", a, err)
	}
}

func TestLocalStore_CanceledContext(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Save(ctx, adapter.SaveRequest{OperationID: "o1", FileName: "a.bin"}, strings.NewReader("data"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLocalStore_Path(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	if _, err := s.Path("../secret"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	p, err := s.Path("model.json")
	if err != nil || p != filepath.Join(s.Dir(), "model.json") {
		t.Fatalf("Path: %q %v", p, err)
	}
}

func TestLocalStore_ReplacesStaleFileAtomically(t *testing.T) {
	t.Parallel()
	s := newStore(t)
	stale := filepath.Join(s.Dir(), "model.wexbim")
	if err := os.WriteFile(stale, []byte("from an earlier run"), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := s.Save(context.Background(), adapter.SaveRequest{OperationID: "o1", FileName: "model.wexbim"}, strings.NewReader("fresh"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := os.ReadFile(a.Path)
	if err != nil || string(b) != "fresh" {
		t.Fatalf("content: %q %v", b, err)
	}
	info, err := os.Stat(a.Path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o400 == 0 || info.Mode().Perm()&0o002 != 0 {
		t.Fatalf("unexpected mode %v", info.Mode().Perm())
	}
	if files := listFiles(t, s.Dir()); len(files) != 1 || files[0] != "model.wexbim" {
		t.Fatalf("expected only the artifact, got %v", files)
	}
}
