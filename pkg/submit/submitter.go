package submit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog/log"

	"github.com/wave-portal/pkg/db"
	"github.com/wave-portal/pkg/wave"
)

// Writer sends wave(message) and waits for its receipt. *chain.Portal
// implements it.
type Writer interface {
	Wave(opts *bind.TransactOpts, message string) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Signer yields signing options for the active account.
type Signer interface {
	Transactor(ctx context.Context) (*bind.TransactOpts, error)
}

// Journal records submissions. *db.Store implements it.
type Journal interface {
	RecordSubmission(txHash, account, message string) (int64, error)
	SettleSubmission(txHash string, status db.SubmissionStatus, blockNumber int64, gasUsed uint64, errMsg string) error
}

type Result struct {
	TxHash      common.Hash
	Account     common.Address
	BlockNumber uint64
	GasUsed     uint64
}

// Submitter sends one wave at a time. Pending is true from the moment a
// non-empty message is accepted until it is mined or fails.
type Submitter struct {
	writer   Writer
	signer   Signer
	journal  Journal
	gasLimit uint64

	mu        sync.Mutex
	pending   bool
	onPending []func(bool)
}

func New(writer Writer, signer Signer, journal Journal, gasLimit uint64) *Submitter {
	return &Submitter{writer: writer, signer: signer, journal: journal, gasLimit: gasLimit}
}

// OnPending registers fn to run on every pending transition.
func (s *Submitter) OnPending(fn func(bool)) {
	s.mu.Lock()
	s.onPending = append(s.onPending, fn)
	s.mu.Unlock()
}

func (s *Submitter) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Submit validates text, sends wave(text) and waits until it is mined.
func (s *Submitter) Submit(ctx context.Context, text string) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		log.Warn().Msg("refusing to send an empty wave")
		return nil, wave.ErrEmptyMessage
	}
	if !s.begin() {
		log.Warn().Msg("wave already in flight")
		return nil, wave.ErrBusy
	}
	defer s.end()

	res, err := s.send(ctx, text)
	if err != nil {
		log.Error().Err(err).Str("kind", wave.Kind(err)).Msg("❌ wave failed")
		return nil, err
	}
	log.Info().Str("tx", res.TxHash.Hex()).Uint64("block", res.BlockNumber).Uint64("gas", res.GasUsed).Msg("✅ wave mined")
	return res, nil
}

func (s *Submitter) send(ctx context.Context, text string) (*Result, error) {
	opts, err := s.signer.Transactor(ctx)
	if err != nil {
		return nil, err
	}
	opts.GasLimit = s.gasLimit
	if opts.Context == nil {
		opts.Context = ctx
	}

	tx, err := s.writer.Wave(opts, text)
	if err != nil {
		if errors.Is(err, wave.ErrUserRejected) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: send: %v", wave.ErrTransactionFailed, err)
	}
	res := &Result{TxHash: tx.Hash(), Account: opts.From}
	log.Info().Str("tx", res.TxHash.Hex()).Str("from", wave.Abbrev(opts.From)).Msg("⛏️ mining")

	if s.journal != nil {
		if _, err := s.journal.RecordSubmission(res.TxHash.Hex(), opts.From.Hex(), text); err != nil {
			log.Warn().Err(err).Msg("could not journal submission")
		}
	}

	receipt, err := s.writer.WaitMined(ctx, tx)
	if err != nil {
		s.settle(res.TxHash, db.StatusFailed, 0, 0, err.Error())
		return nil, fmt.Errorf("%w: wait for %s: %v", wave.ErrTransactionFailed, res.TxHash.Hex(), err)
	}
	res.BlockNumber = receipt.BlockNumber.Uint64()
	res.GasUsed = receipt.GasUsed
	if receipt.Status != types.ReceiptStatusSuccessful {
		s.settle(res.TxHash, db.StatusReverted, receipt.BlockNumber.Int64(), receipt.GasUsed, "reverted")
		return nil, fmt.Errorf("%w: %s reverted in block %d", wave.ErrTransactionFailed, res.TxHash.Hex(), res.BlockNumber)
	}
	s.settle(res.TxHash, db.StatusMined, receipt.BlockNumber.Int64(), receipt.GasUsed, "")
	return res, nil
}

func (s *Submitter) settle(hash common.Hash, status db.SubmissionStatus, block int64, gas uint64, msg string) {
	if s.journal == nil {
		return
	}
	if err := s.journal.SettleSubmission(hash.Hex(), status, block, gas, msg); err != nil {
		log.Warn().Err(err).Str("tx", hash.Hex()).Msg("could not settle submission")
	}
}

func (s *Submitter) begin() bool {
	s.mu.Lock()
	if s.pending {
		s.mu.Unlock()
		return false
	}
	s.pending = true
	hooks := append([]func(bool){}, s.onPending...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(true)
	}
	return true
}

func (s *Submitter) end() {
	s.mu.Lock()
	s.pending = false
	hooks := append([]func(bool){}, s.onPending...)
	s.mu.Unlock()
	for _, fn := range hooks {
		fn(false)
	}
}
