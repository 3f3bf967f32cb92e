package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/event"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/wave-portal/pkg/config"
	"github.com/wave-portal/pkg/wave"
)

// HeaderReader pins reads to a block.
type HeaderReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Portal talks to one WavePortal deployment. Reads and writes go over the
// request/response client, the NewWave subscription over the push client.
type Portal struct {
	address  common.Address
	contract *bind.BoundContract
	watcher  *bind.BoundContract
	heads    HeaderReader
	receipts bind.DeployBackend
	chain    ChainIDReader

	closers []func()
}

// Backends groups the go-ethereum interfaces a Portal needs. *ethclient.Client
// satisfies every one of them.
type Backends struct {
	Caller     bind.ContractCaller
	Transactor bind.ContractTransactor
	Filterer   bind.ContractFilterer // push-capable filterer for WatchLogs, may be nil
	Heads      HeaderReader
	Receipts   bind.DeployBackend
	Chain      ChainIDReader
}

func New(address common.Address, b Backends) *Portal {
	p := &Portal{
		address:  address,
		contract: bind.NewBoundContract(address, parsedABI, b.Caller, b.Transactor, nil),
		heads:    b.Heads,
		receipts: b.Receipts,
		chain:    b.Chain,
	}
	if b.Filterer != nil {
		p.watcher = bind.NewBoundContract(address, parsedABI, nil, nil, b.Filterer)
	}
	return p
}

// Dial connects the request client and, when configured, a websocket client
// for the event stream.
func Dial(ctx context.Context, cfg *config.Config) (*Portal, error) {
	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", wave.ErrReadFailed, cfg.RPCURL, err)
	}
	b := Backends{Caller: rpc, Transactor: rpc, Heads: rpc, Receipts: rpc, Chain: rpc}
	closers := []func(){rpc.Close}

	if cfg.WSURL != "" {
		ws, err := ethclient.DialContext(ctx, cfg.WSURL)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.WSURL).Msg("websocket dial failed, live feed disabled")
		} else {
			b.Filterer = ws
			closers = append(closers, ws.Close)
		}
	}

	p := New(cfg.ContractAddress, b)
	p.closers = closers
	log.Info().Str("contract", cfg.ContractAddress.Hex()).Str("rpc", cfg.RPCURL).Msg("🔗 connected to node")
	return p, nil
}

func (p *Portal) Address() common.Address { return p.address }

func (p *Portal) Close() {
	for _, c := range p.closers {
		c()
	}
	p.closers = nil
}

// ChainID asks the node which chain it serves.
func (p *Portal) ChainID(ctx context.Context) (*big.Int, error) {
	if p.chain == nil {
		return nil, fmt.Errorf("%w: no chain id backend", wave.ErrReadFailed)
	}
	id, err := p.chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: chain id: %v", wave.ErrReadFailed, err)
	}
	return id, nil
}

// Snapshot reads all waves and the total count at the same block, so the two
// results describe one chain state.
func (p *Portal) Snapshot(ctx context.Context) ([]wave.Record, uint64, error) {
	var block *big.Int
	if p.heads != nil {
		head, err := p.heads.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: latest header: %v", wave.ErrReadFailed, err)
		}
		block = head.Number
	}
	opts := &bind.CallOpts{Context: ctx, BlockNumber: block}

	var (
		records []wave.Record
		total   uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o := *opts
		o.Context = gctx
		var err error
		records, err = p.AllWaves(&o)
		return err
	})
	g.Go(func() error {
		o := *opts
		o.Context = gctx
		var err error
		total, err = p.TotalWaves(&o)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	log.Debug().Stringer("block", block).Int("waves", len(records)).Uint64("total", total).Msg("snapshot read")
	return records, total, nil
}

// AllWaves calls getAllWaves.
func (p *Portal) AllWaves(opts *bind.CallOpts) ([]wave.Record, error) {
	var out []interface{}
	if err := p.contract.Call(opts, &out, methodAllWaves); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", wave.ErrReadFailed, methodAllWaves, err)
	}
	raw := *abi.ConvertType(out[0], new([]Wave)).(*[]Wave)

	records := make([]wave.Record, 0, len(raw))
	for _, w := range raw {
		rec, err := toRecord(w.Waver, w.Timestamp, w.Message)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", wave.ErrReadFailed, methodAllWaves, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// toRecord converts a wave as stored on chain. Timestamps are unix seconds
// and must fit an int64.
func toRecord(from common.Address, ts *big.Int, message string) (wave.Record, error) {
	if ts == nil || !ts.IsInt64() {
		return wave.Record{}, fmt.Errorf("timestamp %v out of range", ts)
	}
	return wave.FromChain(from, ts.Int64(), message), nil
}

// TotalWaves calls getTotalWaves.
func (p *Portal) TotalWaves(opts *bind.CallOpts) (uint64, error) {
	var out []interface{}
	if err := p.contract.Call(opts, &out, methodTotalWaves); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", wave.ErrReadFailed, methodTotalWaves, err)
	}
	total := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !total.IsUint64() {
		return 0, fmt.Errorf("%w: total %s overflows", wave.ErrReadFailed, total)
	}
	return total.Uint64(), nil
}

// LatestTotal reads the count at the chain head.
func (p *Portal) LatestTotal(ctx context.Context) (uint64, error) {
	return p.TotalWaves(&bind.CallOpts{Context: ctx})
}

// Wave sends wave(message). Gas ceiling and signer come from opts.
func (p *Portal) Wave(opts *bind.TransactOpts, message string) (*types.Transaction, error) {
	return p.contract.Transact(opts, methodWave, message)
}

// WaitMined blocks until tx has a receipt.
func (p *Portal) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	if p.receipts == nil {
		return nil, fmt.Errorf("no receipt backend")
	}
	return bind.WaitMined(ctx, p.receipts, tx)
}

// TransactionReceipt looks up a receipt without waiting. It returns
// ethereum.NotFound while the transaction is unmined.
func (p *Portal) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if p.receipts == nil {
		return nil, fmt.Errorf("no receipt backend")
	}
	return p.receipts.TransactionReceipt(ctx, hash)
}

// ParseNewWave decodes a NewWave log.
func (p *Portal) ParseNewWave(l types.Log) (*NewWave, error) {
	ev := new(NewWave)
	if err := p.contract.UnpackLog(ev, eventNewWave, l); err != nil {
		return nil, err
	}
	ev.Raw = l
	return ev, nil
}

// WatchNewWave streams decoded NewWave logs into sink until the subscription
// is closed.
func (p *Portal) WatchNewWave(opts *bind.WatchOpts, sink chan<- *NewWave) (event.Subscription, error) {
	if p.watcher == nil {
		return nil, fmt.Errorf("%w: no push transport configured", wave.ErrReadFailed)
	}
	logs, sub, err := p.watcher.WatchLogs(opts, eventNewWave)
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe %s: %v", wave.ErrReadFailed, eventNewWave, err)
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case l := <-logs:
				ev, err := p.ParseNewWave(l)
				if err != nil {
					log.Warn().Err(err).Str("tx", l.TxHash.Hex()).Msg("undecodable NewWave log")
					continue
				}
				select {
				case sink <- ev:
				case err := <-sub.Err():
					return err
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}

// SubscribeWaves adapts WatchNewWave to wave records. Logs flagged Removed by
// a reorg are dropped.
func (p *Portal) SubscribeWaves(ctx context.Context, sink chan<- wave.Record) (event.Subscription, error) {
	raw := make(chan *NewWave, 16)
	sub, err := p.WatchNewWave(&bind.WatchOpts{Context: ctx}, raw)
	if err != nil {
		return nil, err
	}
	return event.NewSubscription(func(quit <-chan struct{}) error {
		defer sub.Unsubscribe()
		for {
			select {
			case ev := <-raw:
				if ev.Raw.Removed {
					log.Debug().Str("tx", ev.Raw.TxHash.Hex()).Msg("NewWave log removed by reorg")
					continue
				}
				rec, err := toRecord(ev.From, ev.Timestamp, ev.Message)
				if err != nil {
					log.Warn().Err(err).Str("tx", ev.Raw.TxHash.Hex()).Msg("skipping NewWave log")
					continue
				}
				select {
				case sink <- rec:
				case <-quit:
					return nil
				}
			case err := <-sub.Err():
				return err
			case <-quit:
				return nil
			}
		}
	}), nil
}
