// Package service hosts the long-running workers the pipeline starts as
// background goroutines: the verifier worker and the batch aggregator.
package service

import (
	"context"

	"github.com/pattabhia/rlvr-pdf-chat/internal/aggregator"
	"github.com/pattabhia/rlvr-pdf-chat/internal/pkg/logger"
	"github.com/pattabhia/rlvr-pdf-chat/internal/verifier"
)

// IPipelineService starts the consumers that turn published events into
// SFT/DPO records: the verifier (§4.D) and the batch aggregator (§4.E).
type IPipelineService interface {
	Start(ctx context.Context) error
}

type pipelineService struct {
	verifier   *verifier.Verifier
	aggregator *aggregator.Aggregator
	log        logger.ILogger
}

func NewPipelineService(v *verifier.Verifier, a *aggregator.Aggregator, log logger.ILogger) IPipelineService {
	return &pipelineService{verifier: v, aggregator: a, log: log}
}

// Start registers both consumers against the event bus. Consumption
// happens on the bus implementation's own goroutines; Start returns once
// both are registered.
func (s *pipelineService) Start(ctx context.Context) error {
	if err := s.aggregator.Start(ctx); err != nil {
		return err
	}
	if err := s.verifier.Start(ctx); err != nil {
		return err
	}
	s.log.Info("pipeline", "consumers started", logger.Fields{
		Details: map[string]interface{}{"consumers": []string{"aggregator", "verifier"}},
	})
	return nil
}
