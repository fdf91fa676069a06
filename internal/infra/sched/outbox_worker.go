package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/usecase"
)

// OutboxWorker is the durability guarantee behind entitlement pushes: any
// task the post-commit best-effort push missed gets retried here until sent.
type OutboxWorker struct {
	interval time.Duration
	batch    int
	syncUC   usecase.SyncUseCase
	log      *zerolog.Logger
}

func NewOutboxWorker(interval time.Duration, batch int, syncUC usecase.SyncUseCase, logger *zerolog.Logger) *OutboxWorker {
	if batch <= 0 {
		batch = 50
	}
	l := logger.With().Str("component", "OutboxWorker").Logger()
	return &OutboxWorker{interval: interval, batch: batch, syncUC: syncUC, log: &l}
}

func (w *OutboxWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("starting outbox worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping outbox worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.syncUC.DrainDue(ctx, w.batch)
			if err != nil {
				w.log.Error().Err(err).Msg("outbox drain error")
			}
			if n > 0 {
				w.log.Info().Int("sent", n).Msg("entitlement tasks pushed")
			}
		}
	}
}
