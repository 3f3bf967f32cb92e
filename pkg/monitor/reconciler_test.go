package monitor

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/wave-portal/pkg/db"
	"github.com/wave-portal/pkg/wave"
)

type countingFeed struct {
	calls atomic.Int32
	err   error
}

func (f *countingFeed) Reconcile(context.Context) error {
	f.calls.Add(1)
	return f.err
}

type receiptMap map[common.Hash]*types.Receipt

func (m receiptMap) TransactionReceipt(_ context.Context, h common.Hash) (*types.Receipt, error) {
	if r, ok := m[h]; ok {
		return r, nil
	}
	return nil, ethereum.NotFound
}

func TestTickReconcilesFeed(t *testing.T) {
	f := &countingFeed{err: wave.ErrReadFailed}
	r := NewReconciler(f, "@every 1m", time.Second)
	r.Tick(context.Background())
	r.Tick(context.Background())
	require.Equal(t, int32(2), f.calls.Load())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Tick(ctx)
	require.Equal(t, int32(2), f.calls.Load())
}

func TestTickSettlesStaleSubmissions(t *testing.T) {
	store, err := db.NewStore(filepath.Join(t.TempDir(), "monitor.db"))
	require.NoError(t, err)
	defer store.Close()

	mined := common.HexToHash("0x01")
	reverted := common.HexToHash("0x02")
	unknown := common.HexToHash("0x03")
	for _, h := range []common.Hash{mined, reverted, unknown} {
		_, err := store.RecordSubmission(h.Hex(), "0xA1", "hi")
		require.NoError(t, err)
	}
	receipts := receiptMap{
		mined:    {Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(5), GasUsed: 30000},
		reverted: {Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(6), GasUsed: 40000},
	}

	r := NewReconciler(&countingFeed{}, "@every 1m", time.Second).WithJournal(store, receipts)
	r.staleAge = 0
	r.Tick(context.Background())

	for h, want := range map[common.Hash]db.SubmissionStatus{
		mined:    db.StatusMined,
		reverted: db.StatusReverted,
		unknown:  db.StatusPending,
	} {
		sub, err := store.GetSubmission(h.Hex())
		require.NoError(t, err)
		require.Equal(t, want, sub.Status, h.Hex())
	}
}

func TestRunRejectsBadSchedule(t *testing.T) {
	r := NewReconciler(&countingFeed{}, "every now and then", time.Second)
	err := r.Run(context.Background())
	require.Error(t, err)
	require.False(t, errors.Is(err, context.Canceled))
}

func TestRunTicksOnSchedule(t *testing.T) {
	f := &countingFeed{}
	r := NewReconciler(f, "@every 1s", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return f.calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
