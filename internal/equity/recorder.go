// Package equity implements the Equity Recorder: a periodic loop that
// snapshots every account's equity (balance + margin + unrealized P&L) into
// an append-only history table, skipping any account whose open positions
// reference a symbol with no current mark.
package equity

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreexec/marginsim/internal/accounting"
	"github.com/coreexec/marginsim/internal/pricecache"
	"github.com/coreexec/marginsim/internal/store"
	"github.com/coreexec/marginsim/internal/telemetry"
)

// Recorder runs the 60-second-default equity snapshot loop.
type Recorder struct {
	store    *store.Store
	prices   *pricecache.Cache
	interval time.Duration
	stopCh   chan struct{}
}

// New constructs a Recorder.
func New(st *store.Store, prices *pricecache.Cache, interval time.Duration) *Recorder {
	return &Recorder{
		store:    st,
		prices:   prices,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs the loop until Stop is called. It blocks, so callers run it in
// its own goroutine.
func (r *Recorder) Start() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("equity recorder started")

	for {
		select {
		case <-r.stopCh:
			log.Info().Msg("equity recorder stopped")
			return
		case <-ticker.C:
			if err := r.tick(); err != nil {
				log.Error().Err(err).Msg("equity recorder tick failed")
			}
		}
	}
}

// Stop signals the loop to exit.
func (r *Recorder) Stop() {
	close(r.stopCh)
}

// tick evaluates every account against a single consistent price snapshot
// and appends one EquityHistory row per account whose positions all have a
// known mark. Accounts with a stale or missing mark are skipped rather than
// recorded with an understated equity.
func (r *Recorder) tick() error {
	accounts, positionsByAccount, err := r.store.ListAllAccountsWithPositions()
	if err != nil {
		return err
	}

	marks := r.prices.Snapshot()
	now := time.Now()

	var rows []store.EquityHistory
	for _, account := range accounts {
		metrics := accounting.Evaluate(account, positionsByAccount[account.ID], marks)
		if !accounting.AllMarksKnown(metrics) {
			telemetry.EquitySkippedAccountsTotal.Inc()
			continue
		}

		rows = append(rows, store.EquityHistory{
			AccountID: account.ID,
			Equity:    metrics.Equity,
			Timestamp: now,
		})
	}

	if len(rows) == 0 {
		return nil
	}

	if err := r.store.DB().Create(&rows).Error; err != nil {
		return err
	}
	telemetry.EquitySnapshotsTotal.Add(float64(len(rows)))
	return nil
}
