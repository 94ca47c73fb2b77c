package usecase

import (
	"context"
	"fmt"

	"bimcloud-demo/internal/domain"
	"bimcloud-demo/internal/domain/model"
	"bimcloud-demo/internal/domain/ports/adapter"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Aggregator polls every operation of an asset concurrently and classifies the artifacts.
type Aggregator struct {
	poller      PollerUseCase
	concurrency int
	log         *zerolog.Logger
}

// NewAggregator builds an aggregator. concurrency <= 0 runs one goroutine per operation.
func NewAggregator(poller PollerUseCase, concurrency int, logger *zerolog.Logger) *Aggregator {
	l := logger.With().Str("component", "Aggregator").Logger()
	return &Aggregator{poller: poller, concurrency: concurrency, log: &l}
}

// Run waits for every operation to reach an outcome. A failing branch never cancels its
// siblings. Results are returned in input order; slots hold only successfully downloaded
// artifacts of recognized types, and when two operations share a type the earlier one in
// ops wins.
func (a *Aggregator) Run(ctx context.Context, creds adapter.Credentials, assetID string, ops []model.Operation) (model.ArtifactSlots, []model.PollResult) {
	results := make([]model.PollResult, len(ops))

	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for i, op := range ops {
		i, op := i, op
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = model.PollResult{
						Operation: op,
						Outcome:   model.OutcomeError,
						Err:       fmt.Errorf("%w: poller panic: %v", domain.ErrTransport, r),
					}
				}
			}()
			results[i] = a.poller.Poll(ctx, creds, assetID, op)
			return nil
		})
	}
	_ = g.Wait()

	return a.classify(results), results
}

func (a *Aggregator) classify(results []model.PollResult) model.ArtifactSlots {
	slots := make(model.ArtifactSlots)
	for _, r := range results {
		slot, ok := model.SlotFor(r.Operation.Type)
		if !ok {
			a.log.Debug().Str("type", r.Operation.Type).Msg("unclassified operation type")
			continue
		}
		name := r.FileName()
		if name == "" {
			continue
		}
		if existing, taken := slots[slot]; taken {
			a.log.Warn().Str("slot", string(slot)).Str("kept", existing).Str("ignored", name).Msg("several artifacts for one slot")
			continue
		}
		slots[slot] = name
	}
	return slots
}
