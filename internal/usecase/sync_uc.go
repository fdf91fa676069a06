package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/model"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/adapter"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/domain/ports/repository"
	"github.com/klopfront-lgtm/2GET-remnawave-tg-sub000/internal/infra/metrics"
)

const (
	syncBackoffBase = 500 * time.Millisecond
	syncBackoffMax  = 10 * time.Minute
)

// SyncUseCase drains the provisioning outbox. The panel is eventually
// consistent with local state: a failed push only reschedules the task, local
// subscription rows are never touched from here.
type SyncUseCase interface {
	// DrainDue pushes up to limit due tasks and returns how many were sent.
	DrainDue(ctx context.Context, limit int) (int, error)

	// PushTask pushes a single task, marking it sent or rescheduling it with
	// exponential backoff.
	PushTask(ctx context.Context, task *model.SyncTask) error
}

var _ SyncUseCase = (*syncUC)(nil)

type syncUC struct {
	outbox repository.OutboxRepository
	panel  adapter.ProvisioningClient
	log    *zerolog.Logger
}

func NewSyncUseCase(outbox repository.OutboxRepository, panel adapter.ProvisioningClient, logger *zerolog.Logger) *syncUC {
	l := logger.With().Str("component", "SyncUC").Logger()
	return &syncUC{outbox: outbox, panel: panel, log: &l}
}

func (u *syncUC) DrainDue(ctx context.Context, limit int) (int, error) {
	tasks, err := u.outbox.ListDue(ctx, repository.NoTX, time.Now(), limit)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, t := range tasks {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if err := u.PushTask(ctx, t); err == nil {
			sent++
		}
	}
	if backlog, err := u.outbox.CountPending(ctx, repository.NoTX); err == nil {
		metrics.SetOutboxPending(backlog)
	}
	return sent, nil
}

func (u *syncUC) PushTask(ctx context.Context, task *model.SyncTask) error {
	ent := adapter.Entitlement{
		ExpireAt:          task.ExpireAt,
		TrafficLimitBytes: task.TrafficLimitBytes,
		DeviceLimit:       task.DeviceLimit,
		Enabled:           task.Kind == model.SyncTaskUpdateEntitlement,
	}

	if err := u.panel.UpdateEntitlement(ctx, task.ProvisioningUUID, ent); err != nil {
		next := time.Now().Add(backoffAfter(task.Attempts))
		metrics.IncSyncPush("error")
		u.log.Warn().
			Err(err).
			Str("task_id", task.ID).
			Str("provisioning_uuid", task.ProvisioningUUID).
			Int("attempts", task.Attempts+1).
			Time("next_attempt", next).
			Msg("entitlement push failed, rescheduled")
		if rerr := u.outbox.Reschedule(ctx, repository.NoTX, task.ID, next, err.Error()); rerr != nil {
			u.log.Error().Err(rerr).Str("task_id", task.ID).Msg("failed to reschedule sync task")
		}
		return err
	}

	if err := u.outbox.MarkSent(ctx, repository.NoTX, task.ID); err != nil {
		// The push landed; a resend after this failure is harmless because
		// entitlement updates are absolute state, not deltas.
		u.log.Error().Err(err).Str("task_id", task.ID).Msg("failed to mark sync task sent")
		return err
	}
	metrics.IncSyncPush("ok")
	u.log.Info().
		Str("task_id", task.ID).
		Str("kind", string(task.Kind)).
		Str("provisioning_uuid", task.ProvisioningUUID).
		Msg("entitlement pushed")
	return nil
}

// backoffAfter doubles from the base per completed attempt, capped.
func backoffAfter(attempts int) time.Duration {
	d := syncBackoffBase
	for i := 0; i < attempts && d < syncBackoffMax; i++ {
		d *= 2
	}
	if d > syncBackoffMax {
		d = syncBackoffMax
	}
	return d
}
