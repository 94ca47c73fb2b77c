package adapter

import (
	"context"
	"io"

	"bimcloud-demo/internal/domain/model"
)

// SaveRequest names the artifact being written. FileName is the preferred name; the store may
// disambiguate it with OperationID when another artifact already claimed it.
type SaveRequest struct {
	OperationID   string
	OperationType string
	FileName      string
}

// ArtifactStore persists downloaded artifacts. A failed Save leaves no file behind.
type ArtifactStore interface {
	Save(ctx context.Context, req SaveRequest, body io.Reader) (*model.Artifact, error)
	Path(fileName string) (string, error)
}
