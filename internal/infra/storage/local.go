// Package storage persists downloaded artifacts on the local filesystem.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bimcloud-demo/internal/domain"
	"bimcloud-demo/internal/domain/model"
	"bimcloud-demo/internal/domain/ports/adapter"
	"bimcloud-demo/internal/infra/metrics"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

var _ adapter.ArtifactStore = (*LocalStore)(nil)

// LocalStore writes artifacts into one directory. Names are claimed per operation for the
// lifetime of the store, so two operations never write the same path.
type LocalStore struct {
	dir string
	log *zerolog.Logger

	mu      sync.Mutex
	claimed map[string]string // file name -> operation id
}

func NewLocalStore(dir string, logger *zerolog.Logger) (*LocalStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	l := logger.With().Str("component", "LocalStore").Logger()
	return &LocalStore{dir: dir, log: &l, claimed: make(map[string]string)}, nil
}

func (s *LocalStore) Dir() string { return s.dir }

// Save streams body into the store. The file is written under a temporary name and atomically
// renamed once complete; on any error nothing is left behind and the name is released.
func (s *LocalStore) Save(ctx context.Context, req adapter.SaveRequest, body io.Reader) (*model.Artifact, error) {
	if req.OperationID == "" {
		return nil, fmt.Errorf("save artifact: %w: empty operation id", domain.ErrInvalidArgument)
	}
	preferred := cleanName(req.FileName)
	if preferred == "" {
		preferred = model.DefaultArtifactName(cleanName(req.OperationType))
	}
	name := s.claim(preferred, req.OperationID)
	final := filepath.Join(s.dir, name)

	pending, err := renameio.NewPendingFile(final, renameio.WithTempDir(s.dir), renameio.WithPermissions(0o644))
	if err != nil {
		s.release(name, req.OperationID)
		return nil, fmt.Errorf("save artifact: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	n, err := io.Copy(pending, &ctxReader{ctx: ctx, r: body})
	if err == nil {
		err = pending.CloseAtomicallyReplace()
	}
	if err != nil {
		s.release(name, req.OperationID)
		return nil, fmt.Errorf("save artifact %s: %w", name, err)
	}

	contentType := ""
	if mt, err := mimetype.DetectFile(final); err == nil {
		contentType = mt.String()
	}
	metrics.AddArtifactBytes(req.OperationType, n)
	s.log.Debug().Str("file", name).Int64("bytes", n).Str("content_type", contentType).Msg("artifact stored")

	return &model.Artifact{
		OperationID:   req.OperationID,
		OperationType: req.OperationType,
		FileName:      name,
		Path:          final,
		ContentType:   contentType,
		Size:          n,
	}, nil
}

// Path resolves a stored artifact name to its location. Names with directory components are
// rejected.
func (s *LocalStore) Path(fileName string) (string, error) {
	if fileName == "" || cleanName(fileName) != fileName {
		return "", fmt.Errorf("%w: invalid artifact name %q", domain.ErrInvalidArgument, fileName)
	}
	return filepath.Join(s.dir, fileName), nil
}

// claim reserves name for opID. When another operation holds it, the operation id is spliced
// in before the extension.
func (s *LocalStore) claim(name, opID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if owner, ok := s.claimed[name]; !ok || owner == opID {
		s.claimed[name] = opID
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := base + "_" + cleanName(opID) + ext
	for i := 2; ; i++ {
		if owner, ok := s.claimed[candidate]; !ok || owner == opID {
			break
		}
		candidate = fmt.Sprintf("%s_%s_%d%s", base, cleanName(opID), i, ext)
	}
	s.claimed[candidate] = opID
	return candidate
}

func (s *LocalStore) release(name, opID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed[name] == opID {
		delete(s.claimed, name)
	}
}

func cleanName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
