package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"bimcloud-demo/internal/domain"
	"bimcloud-demo/internal/domain/model"
	"bimcloud-demo/internal/domain/ports/adapter"
	"bimcloud-demo/internal/infra/logging"

	"github.com/rs/zerolog"
)

// RunResult is what one workflow run produced.
type RunResult struct {
	AssetID string
	Slots   model.ArtifactSlots
	Results []model.PollResult
}

// Workflow runs the sequential setup (token, asset, upload) and then hands the asset's
// operations to the aggregator. Setup errors abort before any polling starts.
type Workflow struct {
	tokens     adapter.TokenProvider
	assets     adapter.AssetAPI
	aggregator *Aggregator
	log        *zerolog.Logger
}

func NewWorkflow(tokens adapter.TokenProvider, assets adapter.AssetAPI, aggregator *Aggregator, logger *zerolog.Logger) *Workflow {
	l := logger.With().Str("component", "Workflow").Logger()
	return &Workflow{tokens: tokens, assets: assets, aggregator: aggregator, log: &l}
}

func (w *Workflow) Run(ctx context.Context, sourcePath string) (*RunResult, error) {
	log := logging.With(ctx, w.log)

	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: source file: %w", domain.ErrInvalidArgument, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: source %s is a directory", domain.ErrInvalidArgument, sourcePath)
	}

	creds, err := w.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	upload, err := w.createAndUpload(ctx, log, creds, sourcePath, info.Size())
	if err != nil {
		return nil, err
	}

	ctx = logging.WithAssetID(ctx, upload.AssetID)
	log = logging.With(ctx, w.log)

	asset, err := w.assets.GetAsset(ctx, creds, upload.AssetID)
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	if asset.ID == "" {
		asset.ID = upload.AssetID
	}
	log.Info().Int("operations", len(asset.Operations)).Msg("asset operations fetched")
	if len(asset.Operations) == 0 {
		log.Warn().Msg("asset has no operations, nothing to wait for")
	}

	slots, results := w.aggregator.Run(ctx, creds, asset.ID, asset.Operations)
	for _, r := range results {
		log.Info().Str("result", r.String()).Msg("operation complete")
	}
	return &RunResult{AssetID: asset.ID, Slots: slots, Results: results}, nil
}

func (w *Workflow) createAndUpload(ctx context.Context, log *zerolog.Logger, creds adapter.Credentials, sourcePath string, size int64) (model.AssetUpload, error) {
	defer logging.TraceDuration(log, "Workflow.createAndUpload")()

	upload, err := w.assets.CreateAsset(ctx, creds, filepath.Base(sourcePath), size)
	if err != nil {
		return upload, fmt.Errorf("create asset: %w", err)
	}
	log.Info().Str("asset_id", upload.AssetID).Int64("bytes", size).Msg("asset created")

	f, err := os.Open(sourcePath)
	if err != nil {
		return upload, fmt.Errorf("%w: open source: %w", domain.ErrInvalidArgument, err)
	}
	defer f.Close()

	if err := w.assets.UploadSource(ctx, upload, f, size); err != nil {
		return upload, err
	}
	if err := w.assets.FinishUpload(ctx, creds, upload); err != nil {
		return upload, err
	}
	log.Info().Str("asset_id", upload.AssetID).Msg("upload announced as finished")
	return upload, nil
}
