// Package maintenance runs the background cleanup jobs the core depends on
// existing somewhere: expired refresh token rows (§4.E, rotation deletes a
// redeemed row, but a token that is never redeemed keeps its row) and expired
// invites (§5). Grounded on the teacher's internal/plugins/scheduler.go
// cron.Cron wrapping — same panic-recovery-per-job wrapping, adapted from a
// per-plugin job registry to a fixed two-job janitor.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/emberhall/ember/internal/logger"
)

// Store is the slice of db.Store the janitor needs.
type Store interface {
	DeleteExpiredRefreshTokens(ctx context.Context) (int64, error)
	DeleteExpiredInvites(ctx context.Context) (int64, error)
}

// Janitor owns a dedicated cron.Cron instance running the purge jobs.
type Janitor struct {
	cron  *cron.Cron
	store Store
}

// New builds a Janitor. refreshExpr and inviteExpr are standard 5-field cron
// expressions (e.g. "*/15 * * * *" every 15 minutes); the two jobs are
// independent and may run on different cadences.
func New(store Store, refreshExpr, inviteExpr string) (*Janitor, error) {
	j := &Janitor{
		cron:  cron.New(),
		store: store,
	}

	if _, err := j.cron.AddFunc(refreshExpr, j.wrap("purge_refresh_tokens", j.purgeRefreshTokens)); err != nil {
		return nil, err
	}
	if _, err := j.cron.AddFunc(inviteExpr, j.wrap("purge_invites", j.purgeInvites)); err != nil {
		return nil, err
	}

	return j, nil
}

// Start begins running scheduled jobs in the background. Non-blocking.
func (j *Janitor) Start() { j.cron.Start() }

// Stop cancels the schedule and waits for any in-flight job to finish.
func (j *Janitor) Stop() { <-j.cron.Stop().Done() }

func (j *Janitor) wrap(name string, job func(ctx context.Context)) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Database().Error().Interface("panic", r).Str("job", name).Msg("maintenance job panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		job(ctx)
	}
}

func (j *Janitor) purgeRefreshTokens(ctx context.Context) {
	n, err := j.store.DeleteExpiredRefreshTokens(ctx)
	if err != nil {
		logger.Database().Error().Err(err).Msg("purge expired refresh tokens failed")
		return
	}
	if n > 0 {
		logger.Database().Info().Int64("rows", n).Msg("purged expired refresh tokens")
	}
}

func (j *Janitor) purgeInvites(ctx context.Context) {
	n, err := j.store.DeleteExpiredInvites(ctx)
	if err != nil {
		logger.Database().Error().Err(err).Msg("purge expired invites failed")
		return
	}
	if n > 0 {
		logger.Database().Info().Int64("rows", n).Msg("purged expired invites")
	}
}
