package usecase

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"bimcloud-demo/internal/domain"
	"bimcloud-demo/internal/domain/model"
	"bimcloud-demo/internal/domain/ports/adapter"
	"bimcloud-demo/internal/infra/storage"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

var testCreds = adapter.Credentials{AccessToken: "tok"}

// scriptedOp replays a fixed status sequence; the last status repeats forever.
type scriptedOp struct {
	opType      string
	statuses    []model.OperationStatus
	errs        map[int]error
	disposition string
	body        string
	downloadErr error
	calls       int
	downloads   int
}

// fakeOperationAPI is an in-memory OperationAPI driven by per-operation scripts.
type fakeOperationAPI struct {
	mu  sync.Mutex
	ops map[string]*scriptedOp
}

func newFakeOperationAPI() *fakeOperationAPI {
	return &fakeOperationAPI{ops: make(map[string]*scriptedOp)}
}

func (f *fakeOperationAPI) add(id string, op *scriptedOp) *fakeOperationAPI {
	f.ops[id] = op
	return f
}

func (f *fakeOperationAPI) GetOperation(ctx context.Context, creds adapter.Credentials, assetID, operationID string) (model.Operation, error) {
	if err := ctx.Err(); err != nil {
		return model.Operation{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.ops[operationID]
	if !ok {
		return model.Operation{}, domain.ErrNotFound
	}
	idx := s.calls
	s.calls++
	if err := s.errs[idx]; err != nil {
		return model.Operation{}, err
	}
	if idx >= len(s.statuses) {
		idx = len(s.statuses) - 1
	}
	return model.Operation{ID: operationID, Type: s.opType, Status: s.statuses[idx]}, nil
}

func (f *fakeOperationAPI) GetDownloadDescriptor(ctx context.Context, creds adapter.Credentials, assetID, operationID string) (model.DownloadDescriptor, error) {
	return model.DownloadDescriptor{DownloadLink: "mem://" + operationID}, nil
}

func (f *fakeOperationAPI) Download(ctx context.Context, link string) (*adapter.Download, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.ops[strings.TrimPrefix(link, "mem://")]
	if !ok {
		return nil, errors.New("unknown link")
	}
	s.downloads++
	if s.downloadErr != nil {
		return nil, s.downloadErr
	}
	return &adapter.Download{
		Body:               io.NopCloser(strings.NewReader(s.body)),
		ContentDisposition: s.disposition,
	}, nil
}

func (f *fakeOperationAPI) calls(id string) (polls, downloads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ops[id].calls, f.ops[id].downloads
}

func newTestStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	s, err := storage.NewLocalStore(t.TempDir(), newTestLogger())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}
	return s
}

func storedFiles(t *testing.T, s *storage.LocalStore) []string {
	t.Helper()
	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatal(err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// waitForSleepers blocks until n goroutines wait on clk, failing the test after two seconds.
func waitForSleepers(t *testing.T, clk *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := clk.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d sleepers: %v", n, err)
	}
}
