package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/usecase"
)

// RenewalWorker periodically sweeps for expiring auto-renew subscriptions.
type RenewalWorker struct {
	interval  time.Duration
	window    time.Duration
	renewalUC usecase.RenewalUseCase
	log       *zerolog.Logger
}

func NewRenewalWorker(interval, window time.Duration, renewalUC usecase.RenewalUseCase, logger *zerolog.Logger) *RenewalWorker {
	l := logger.With().Str("component", "RenewalWorker").Logger()
	return &RenewalWorker{interval: interval, window: window, renewalUC: renewalUC, log: &l}
}

func (w *RenewalWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("starting renewal worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping renewal worker")
			return ctx.Err()
		case <-ticker.C:
			if err := w.renewalUC.RunOnce(ctx, w.window); err != nil {
				w.log.Error().Err(err).Msg("renewal sweep error")
			}
		}
	}
}
