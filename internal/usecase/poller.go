package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bimcloud-demo/internal/domain"
	"bimcloud-demo/internal/domain/model"
	"bimcloud-demo/internal/domain/ports/adapter"
	"bimcloud-demo/internal/infra/bimcloud"
	"bimcloud-demo/internal/infra/clock"
	"bimcloud-demo/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ PollerUseCase = (*OperationPoller)(nil)

type PollerUseCase interface {
	// Poll drives one operation to a terminal state and, when it finished, stores its artifact.
	// It never returns an error: the outcome and any failure are carried by the result.
	Poll(ctx context.Context, creds adapter.Credentials, assetID string, op model.Operation) model.PollResult
}

type PollerOptions struct {
	Interval time.Duration
	// Timeout bounds a single Poll call on the poller's clock. Zero polls until a terminal status.
	Timeout time.Duration
	// MaxTransientErrors is how many consecutive status fetch errors are tolerated before giving
	// up. Zero fails on the first one.
	MaxTransientErrors int
}

const DefaultPollInterval = 5 * time.Second

type OperationPoller struct {
	api      adapter.OperationAPI
	store    adapter.ArtifactStore
	notifier adapter.StatusNotifier
	clock    clock.Clock
	opts     PollerOptions
	log      *zerolog.Logger
}

func NewOperationPoller(
	api adapter.OperationAPI,
	store adapter.ArtifactStore,
	notifier adapter.StatusNotifier,
	clk clock.Clock,
	opts PollerOptions,
	logger *zerolog.Logger,
) *OperationPoller {
	if clk == nil {
		clk = clock.Real()
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	l := logger.With().Str("component", "OperationPoller").Logger()
	return &OperationPoller{
		api:      api,
		store:    store,
		notifier: notifier,
		clock:    clk,
		opts:     opts,
		log:      &l,
	}
}

func (p *OperationPoller) Poll(ctx context.Context, creds adapter.Credentials, assetID string, op model.Operation) model.PollResult {
	res := model.PollResult{Operation: op}
	if assetID == "" || op.ID == "" {
		res.Outcome = model.OutcomeError
		res.Err = fmt.Errorf("poll: %w: asset id and operation id are required", domain.ErrInvalidArgument)
		return p.done(res)
	}

	var deadline time.Time
	if p.opts.Timeout > 0 {
		deadline = p.clock.Now().Add(p.opts.Timeout)
	}

	latest := op.Status
	if latest != "" {
		p.emit(ctx, assetID, op, model.EventStatusChanged, "", latest, "")
	}

	transientErrors := 0
	for {
		current, err := p.api.GetOperation(ctx, creds, assetID, op.ID)
		res.Polls++
		metrics.IncPoll(op.Type)

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return p.interrupted(ctx, assetID, res, latest, ctxErr)
			}
			transientErrors++
			// An operation the service no longer knows about will not come back.
			if transientErrors > p.opts.MaxTransientErrors || errors.Is(err, domain.ErrNotFound) {
				res.Outcome = model.OutcomeError
				res.Err = fmt.Errorf("poll operation %s: %w", op.ID, err)
				return p.done(res)
			}
			p.log.Warn().Err(err).Str("operation_id", op.ID).Int("attempt", transientErrors).Msg("status fetch failed, retrying")
		} else {
			transientErrors = 0
			if current.Type != "" {
				res.Operation.Type = current.Type
			}
			if current.Status != latest {
				p.emit(ctx, assetID, res.Operation, model.EventStatusChanged, latest, current.Status, "")
				metrics.IncTransition(res.Operation.Type, string(current.Status))
				latest = current.Status
			}
			res.Operation.Status = latest

			switch {
			case latest == model.OperationStatusFinished:
				return p.collect(ctx, creds, assetID, res)
			case latest.IsFailure():
				res.Outcome = model.OutcomeFailed
				if latest == model.OperationStatusCanceled {
					res.Outcome = model.OutcomeCanceled
				}
				res.Err = fmt.Errorf("%w: %s is %s", domain.ErrOperationFailed, res.Operation.Type, latest)
				p.emit(ctx, assetID, res.Operation, model.EventFailed, "", latest, "")
				return p.done(res)
			}
		}

		wait := p.opts.Interval
		if !deadline.IsZero() {
			remaining := deadline.Sub(p.clock.Now())
			if remaining <= 0 {
				res.Outcome = model.OutcomeTimedOut
				res.Err = fmt.Errorf("%w: %s still %s after %s", domain.ErrPollTimeout, res.Operation.Type, latest, p.opts.Timeout)
				p.emit(ctx, assetID, res.Operation, model.EventTimedOut, "", latest, "")
				return p.done(res)
			}
			if remaining < wait {
				wait = remaining
			}
		}

		select {
		case <-ctx.Done():
			return p.interrupted(ctx, assetID, res, latest, ctx.Err())
		case <-p.clock.After(wait):
		}
	}
}

// collect fetches the download descriptor for a finished operation and persists the artifact.
func (p *OperationPoller) collect(ctx context.Context, creds adapter.Credentials, assetID string, res model.PollResult) model.PollResult {
	op := res.Operation
	fail := func(err error) model.PollResult {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return p.interrupted(ctx, assetID, res, op.Status, ctxErr)
		}
		res.Outcome = model.OutcomeError
		res.Err = fmt.Errorf("download artifact for %s: %w", op.Type, err)
		return p.done(res)
	}

	desc, err := p.api.GetDownloadDescriptor(ctx, creds, assetID, op.ID)
	if err != nil {
		return fail(err)
	}
	dl, err := p.api.Download(ctx, desc.DownloadLink)
	if err != nil {
		return fail(err)
	}
	defer dl.Body.Close()

	artifact, err := p.store.Save(ctx, adapter.SaveRequest{
		OperationID:   op.ID,
		OperationType: op.Type,
		FileName:      bimcloud.FileNameFromDisposition(dl.ContentDisposition),
	}, dl.Body)
	if err != nil {
		return fail(err)
	}

	res.Outcome = model.OutcomeFinished
	res.Artifact = artifact
	p.emit(ctx, assetID, op, model.EventFinished, "", op.Status, artifact.FileName)
	return p.done(res)
}

func (p *OperationPoller) interrupted(ctx context.Context, assetID string, res model.PollResult, latest model.OperationStatus, cause error) model.PollResult {
	if errors.Is(cause, context.DeadlineExceeded) {
		res.Outcome = model.OutcomeTimedOut
		res.Err = fmt.Errorf("%w: %w", domain.ErrPollTimeout, cause)
		p.emit(context.WithoutCancel(ctx), assetID, res.Operation, model.EventTimedOut, "", latest, "")
		return p.done(res)
	}
	res.Outcome = model.OutcomeAborted
	res.Err = cause
	return p.done(res)
}

func (p *OperationPoller) done(res model.PollResult) model.PollResult {
	metrics.IncOutcome(res.Operation.Type, string(res.Outcome))
	ev := p.log.Debug()
	if res.Err != nil && res.Outcome != model.OutcomeFailed && res.Outcome != model.OutcomeCanceled {
		ev = p.log.Error().Err(res.Err)
	}
	ev.Str("operation_id", res.Operation.ID).Str("type", res.Operation.Type).
		Str("outcome", string(res.Outcome)).Int("polls", res.Polls).Msg("poll finished")
	return res
}

func (p *OperationPoller) emit(ctx context.Context, assetID string, op model.Operation, kind model.EventKind, prev, status model.OperationStatus, fileName string) {
	if p.notifier == nil {
		return
	}
	p.notifier.Notify(ctx, model.OperationEvent{
		Kind:          kind,
		AssetID:       assetID,
		OperationID:   op.ID,
		OperationType: op.Type,
		Previous:      prev,
		Status:        status,
		FileName:      fileName,
		At:            p.clock.Now(),
	})
}
