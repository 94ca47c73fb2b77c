package bimcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bimcloud-demo/internal/config"
	"bimcloud-demo/internal/domain"
	"bimcloud-demo/internal/domain/model"
	"bimcloud-demo/internal/domain/ports/adapter"
	"bimcloud-demo/internal/infra/metrics"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

var (
	_ adapter.AssetAPI     = (*Client)(nil)
	_ adapter.OperationAPI = (*Client)(nil)
)

// Client talks to the asset-processing API. It holds no credentials; every authenticated call
// receives them explicitly.
type Client struct {
	baseURL  string
	client   *http.Client // JSON calls, bounded by the configured timeout
	transfer *http.Client // blob upload and artifact download, bounded by ctx only
	limiter  *rate.Limiter
	log      *zerolog.Logger
}

// NewClient builds a client for cfg.BaseURL. A zero RatePerSecond disables pacing.
func NewClient(cfg config.APIConfig, logger *zerolog.Logger) *Client {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	l := logger.With().Str("component", "BimCloudClient").Logger()
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		transfer: &http.Client{},
		limiter:  rate.NewLimiter(limit, burst),
		log:      &l,
	}
}

// APIError is a non-success response from the service. It unwraps to domain.ErrTransport, and
// additionally to domain.ErrNotFound for a 404.
type APIError struct {
	Call       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Call, e.StatusCode)
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Call, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() []error {
	if e.StatusCode == http.StatusNotFound {
		return []error{domain.ErrTransport, domain.ErrNotFound}
	}
	return []error{domain.ErrTransport}
}

type createAssetRequest struct {
	FileName    string `json:"fileName"`
	SizeInBytes int64  `json:"sizeInBytes"`
}

// CreateAsset announces the source file and returns the upload links for it.
func (c *Client) CreateAsset(ctx context.Context, creds adapter.Credentials, fileName string, sizeInBytes int64) (model.AssetUpload, error) {
	var out model.AssetUpload
	if fileName == "" || sizeInBytes < 0 {
		return out, fmt.Errorf("create asset: %w: file name and size are required", domain.ErrInvalidArgument)
	}
	body, err := json.Marshal(createAssetRequest{FileName: fileName, SizeInBytes: sizeInBytes})
	if err != nil {
		return out, fmt.Errorf("failed to marshal request data: %w", err)
	}
	req, err := c.newAuthRequest(ctx, creds, http.MethodPost, c.baseURL+"/api/assets", bytes.NewReader(body))
	if err != nil {
		return out, err
	}
	req.Header.Set("Content-Type", "application/json")
	if err := c.doJSON(c.client, "create_asset", req, &out); err != nil {
		return out, err
	}
	if err := out.Validate(); err != nil {
		return out, fmt.Errorf("create asset: %w", err)
	}
	return out, nil
}

// UploadSource streams the source file to the pre-authorized blob link.
func (c *Client) UploadSource(ctx context.Context, upload model.AssetUpload, body io.Reader, sizeInBytes int64) error {
	if upload.UploadLink == "" {
		return fmt.Errorf("upload source: %w: missing upload link", domain.ErrInvalidArgument)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, upload.UploadLink, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = sizeInBytes
	if sizeInBytes == 0 {
		req.Body = http.NoBody
	}
	// Azure blob storage rejects SAS uploads without an explicit blob type.
	req.Header.Set("x-ms-blob-type", "BlockBlob")

	resp, err := c.do(c.transfer, "upload_source", req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUpload, err)
	}
	drain(resp)
	c.log.Info().Int64("bytes", sizeInBytes).Msg("File uploaded successfully")
	return nil
}

// FinishUpload tells the service the blob is complete so processing can start.
func (c *Client) FinishUpload(ctx context.Context, creds adapter.Credentials, upload model.AssetUpload) error {
	if upload.FinishFileUploadLink == "" {
		return fmt.Errorf("finish upload: %w: missing finish link", domain.ErrInvalidArgument)
	}
	req, err := c.newAuthRequest(ctx, creds, http.MethodPut, upload.FinishFileUploadLink, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(c.client, "finish_upload", req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrUpload, err)
	}
	drain(resp)
	return nil
}

func (c *Client) GetAsset(ctx context.Context, creds adapter.Credentials, assetID string) (model.Asset, error) {
	var out model.Asset
	if assetID == "" {
		return out, fmt.Errorf("get asset: %w: empty asset id", domain.ErrInvalidArgument)
	}
	req, err := c.newAuthRequest(ctx, creds, http.MethodGet, c.assetURL(assetID), nil)
	if err != nil {
		return out, err
	}
	err = c.doJSON(c.client, "get_asset", req, &out)
	return out, err
}

func (c *Client) GetOperation(ctx context.Context, creds adapter.Credentials, assetID, operationID string) (model.Operation, error) {
	var out model.Operation
	req, err := c.newAuthRequest(ctx, creds, http.MethodGet, c.operationURL(assetID, operationID), nil)
	if err != nil {
		return out, err
	}
	err = c.doJSON(c.client, "get_operation", req, &out)
	return out, err
}

func (c *Client) GetDownloadDescriptor(ctx context.Context, creds adapter.Credentials, assetID, operationID string) (model.DownloadDescriptor, error) {
	var out model.DownloadDescriptor
	req, err := c.newAuthRequest(ctx, creds, http.MethodGet, c.operationURL(assetID, operationID)+"/content", nil)
	if err != nil {
		return out, err
	}
	if err := c.doJSON(c.client, "get_download_link", req, &out); err != nil {
		return out, err
	}
	if out.DownloadLink == "" {
		return out, fmt.Errorf("get_download_link: %w: response has no downloadLink", domain.ErrTransport)
	}
	return out, nil
}

// Download opens the artifact behind a download link. The link is self-authorizing, so no
// bearer token is sent.
func (c *Client) Download(ctx context.Context, link string) (*adapter.Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.do(c.transfer, "download_artifact", req)
	if err != nil {
		return nil, err
	}
	return &adapter.Download{
		Body:               resp.Body,
		ContentDisposition: resp.Header.Get("Content-Disposition"),
		ContentType:        resp.Header.Get("Content-Type"),
		ContentLength:      resp.ContentLength,
	}, nil
}

func (c *Client) assetURL(assetID string) string {
	return c.baseURL + "/api/assets/" + url.PathEscape(assetID)
}

func (c *Client) operationURL(assetID, operationID string) string {
	return c.assetURL(assetID) + "/operations/" + url.PathEscape(operationID)
}

func (c *Client) newAuthRequest(ctx context.Context, creds adapter.Credentials, method, target string, body io.Reader) (*http.Request, error) {
	if !creds.Valid() {
		return nil, fmt.Errorf("%w: no access token", domain.ErrAuthentication)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do paces, sends and classifies a request. On success the caller owns resp.Body.
func (c *Client) do(hc *http.Client, call string, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("%s: %w: %w", call, domain.ErrTransport, err)
	}
	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		metrics.ObserveAPICall(call, time.Since(start).Milliseconds(), false)
		return nil, fmt.Errorf("%s: %w: %w", call, domain.ErrTransport, err)
	}
	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	metrics.ObserveAPICall(call, time.Since(start).Milliseconds(), ok)
	if !ok {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, &APIError{Call: call, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	c.log.Trace().Str("call", call).Int("status", resp.StatusCode).Dur("duration", time.Since(start)).Msg("api call")
	return resp, nil
}

func (c *Client) doJSON(hc *http.Client, call string, req *http.Request, out any) error {
	resp, err := c.do(hc, call, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w: failed to read response body: %w", call, domain.ErrTransport, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w: failed to unmarshal response: %w, body: %s", call, domain.ErrTransport, err, truncate(body, 256))
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
