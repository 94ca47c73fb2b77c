package adapter

import (
	"context"
	"io"
	"time"

	"bimcloud-demo/internal/domain/model"
)

// Credentials is the bearer token for one workflow run. It is passed explicitly into every
// authenticated call and is never refreshed mid-run.
type Credentials struct {
	AccessToken string
	ExpiresAt   time.Time
}

func (c Credentials) Valid() bool { return c.AccessToken != "" }

// TokenProvider exchanges client credentials for a bearer token.
type TokenProvider interface {
	Token(ctx context.Context) (Credentials, error)
}

// AssetAPI covers the sequential setup calls that precede polling.
type AssetAPI interface {
	CreateAsset(ctx context.Context, creds Credentials, fileName string, sizeInBytes int64) (model.AssetUpload, error)
	UploadSource(ctx context.Context, upload model.AssetUpload, body io.Reader, sizeInBytes int64) error
	FinishUpload(ctx context.Context, creds Credentials, upload model.AssetUpload) error
	GetAsset(ctx context.Context, creds Credentials, assetID string) (model.Asset, error)
}

// Download is an open artifact response. Callers must close Body.
type Download struct {
	Body               io.ReadCloser
	ContentDisposition string
	ContentType        string
	ContentLength      int64
}

// OperationAPI is what the poller needs from the remote service.
type OperationAPI interface {
	GetOperation(ctx context.Context, creds Credentials, assetID, operationID string) (model.Operation, error)
	GetDownloadDescriptor(ctx context.Context, creds Credentials, assetID, operationID string) (model.DownloadDescriptor, error)
	Download(ctx context.Context, link string) (*Download, error)
}
