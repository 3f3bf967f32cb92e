package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/wave-portal/pkg/db"
	"github.com/wave-portal/pkg/wave"
)

// Feed is the part of the synchronizer the reconciler drives.
type Feed interface {
	Reconcile(ctx context.Context) error
}

// Journal lists and settles submissions left pending, e.g. by a client that
// exited while a wave was being mined.
type Journal interface {
	GetPendingSubmissions(olderThan time.Duration) ([]db.Submission, error)
	SettleSubmission(txHash string, status db.SubmissionStatus, blockNumber int64, gasUsed uint64, errMsg string) error
}

type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Reconciler periodically re-checks the on-chain wave count and settles
// stale journal entries. Runs are skipped while a previous one is still busy.
type Reconciler struct {
	feed     Feed
	schedule string
	timeout  time.Duration

	journal  Journal
	receipts ReceiptReader
	staleAge time.Duration
}

func NewReconciler(feed Feed, schedule string, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Reconciler{feed: feed, schedule: schedule, timeout: timeout, staleAge: time.Minute}
}

// WithJournal enables settling of stale pending submissions.
func (r *Reconciler) WithJournal(j Journal, receipts ReceiptReader) *Reconciler {
	r.journal, r.receipts = j, receipts
	return r
}

// Run schedules Tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(r.schedule, func() { r.Tick(ctx) }); err != nil {
		return fmt.Errorf("reconcile schedule %q: %w", r.schedule, err)
	}
	c.Start()
	log.Info().Str("schedule", r.schedule).Msg("🔁 reconciler started")

	<-ctx.Done()
	<-c.Stop().Done()
	return ctx.Err()
}

// Tick runs one reconciliation pass.
func (r *Reconciler) Tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	tctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.feed.Reconcile(tctx); err != nil {
		log.Warn().Err(err).Str("kind", wave.Kind(err)).Msg("feed reconcile failed")
	}
	if r.journal != nil && r.receipts != nil {
		r.settleStale(tctx)
	}
}

func (r *Reconciler) settleStale(ctx context.Context) {
	subs, err := r.journal.GetPendingSubmissions(r.staleAge)
	if err != nil {
		log.Warn().Err(err).Msg("could not list pending submissions")
		return
	}
	for _, sub := range subs {
		if ctx.Err() != nil {
			return
		}
		receipt, err := r.receipts.TransactionReceipt(ctx, common.HexToHash(sub.TxHash))
		if errors.Is(err, ethereum.NotFound) {
			continue
		}
		if err != nil {
			log.Debug().Err(err).Str("tx", sub.TxHash).Msg("receipt lookup failed")
			continue
		}

		status, msg := db.StatusMined, ""
		if receipt.Status != types.ReceiptStatusSuccessful {
			status, msg = db.StatusReverted, "reverted"
		}
		if err := r.journal.SettleSubmission(sub.TxHash, status, receipt.BlockNumber.Int64(), receipt.GasUsed, msg); err != nil {
			log.Warn().Err(err).Str("tx", sub.TxHash).Msg("could not settle submission")
			continue
		}
		log.Info().Str("tx", sub.TxHash).Str("status", string(status)).Msg("settled stale submission")
	}
}
