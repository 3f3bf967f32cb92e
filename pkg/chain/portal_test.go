package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/wave-portal/pkg/wave"
)

var (
	contractAddr = common.HexToAddress("0x441a46f993FD3629f08Ec6d092D85F456DCDFAB6")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type fakeCaller struct {
	waves  []Wave
	total  *big.Int
	err    error
	mu     sync.Mutex
	blocks []*big.Int
}

func (f *fakeCaller) CodeAt(ctx context.Context, account common.Address, block *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.blocks = append(f.blocks, block)
	f.mu.Unlock()
	a := ABI()
	switch {
	case bytes.Equal(call.Data[:4], a.Methods[methodAllWaves].ID):
		return a.Methods[methodAllWaves].Outputs.Pack(f.waves)
	case bytes.Equal(call.Data[:4], a.Methods[methodTotalWaves].ID):
		return a.Methods[methodTotalWaves].Outputs.Pack(f.total)
	}
	return nil, errors.New("unknown method")
}

type fakeHeads struct{ number int64 }

func (f fakeHeads) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(f.number)}, nil
}

func TestSnapshotReadsBothAtSameBlock(t *testing.T) {
	caller := &fakeCaller{
		waves: []Wave{
			{Waver: alice, Message: "hi", Timestamp: big.NewInt(100)},
			{Waver: bob, Message: "yo", Timestamp: big.NewInt(200)},
		},
		total: big.NewInt(2),
	}
	p := New(contractAddr, Backends{Caller: caller, Heads: fakeHeads{number: 42}})

	records, total, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Equal(t, []wave.Record{
		{Address: alice, Timestamp: time.Unix(100, 0).UTC(), Message: "hi"},
		{Address: bob, Timestamp: time.Unix(200, 0).UTC(), Message: "yo"},
	}, records)

	require.Len(t, caller.blocks, 2)
	for _, b := range caller.blocks {
		require.EqualValues(t, 42, b.Int64())
	}
}

func TestSnapshotWrapsReadErrors(t *testing.T) {
	p := New(contractAddr, Backends{Caller: &fakeCaller{err: errors.New("connection refused")}})

	_, _, err := p.Snapshot(context.Background())
	require.ErrorIs(t, err, wave.ErrReadFailed)
}

func TestParseNewWave(t *testing.T) {
	ev := ABI().Events[eventNewWave]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(1700000000), "gm")
	require.NoError(t, err)

	l := types.Log{
		Address: contractAddr,
		Topics:  []common.Hash{ev.ID, common.BytesToHash(alice.Bytes())},
		Data:    data,
		TxHash:  common.HexToHash("0x01"),
	}

	p := New(contractAddr, Backends{})
	got, err := p.ParseNewWave(l)
	require.NoError(t, err)
	require.Equal(t, alice, got.From)
	require.EqualValues(t, 1700000000, got.Timestamp.Int64())
	require.Equal(t, "gm", got.Message)
	require.Equal(t, l.TxHash, got.Raw.TxHash)
}

func TestParseNewWaveRejectsForeignEvent(t *testing.T) {
	p := New(contractAddr, Backends{})
	_, err := p.ParseNewWave(types.Log{Topics: []common.Hash{common.HexToHash("0xdead")}})
	require.Error(t, err)
}

func TestWatchWithoutPushTransport(t *testing.T) {
	p := New(contractAddr, Backends{})
	_, err := p.SubscribeWaves(context.Background(), make(chan wave.Record))
	require.ErrorIs(t, err, wave.ErrReadFailed)
}

type fakeChainID struct {
	id  *big.Int
	err error
}

func (f fakeChainID) ChainID(context.Context) (*big.Int, error) { return f.id, f.err }

func TestChainID(t *testing.T) {
	p := New(contractAddr, Backends{Chain: fakeChainID{id: big.NewInt(11155111)}})
	id, err := p.ChainID(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(11155111), id.Int64())

	p = New(contractAddr, Backends{Chain: fakeChainID{err: errors.New("timeout")}})
	_, err = p.ChainID(context.Background())
	require.ErrorIs(t, err, wave.ErrReadFailed)

	_, err = New(contractAddr, Backends{}).ChainID(context.Background())
	require.ErrorIs(t, err, wave.ErrReadFailed)
}

func TestSnapshotRejectsOutOfRangeTimestamp(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	caller := &fakeCaller{
		waves: []Wave{{Waver: alice, Message: "hi", Timestamp: huge}},
		total: big.NewInt(1),
	}
	p := New(contractAddr, Backends{Caller: caller, Heads: fakeHeads{number: 42}})

	_, _, err := p.Snapshot(context.Background())
	require.ErrorIs(t, err, wave.ErrReadFailed)
}

func TestToRecord(t *testing.T) {
	rec, err := toRecord(bob, big.NewInt(1700000000), "gm")
	require.NoError(t, err)
	require.Equal(t, time.Unix(1700000000, 0).UTC(), rec.Timestamp)

	_, err = toRecord(bob, new(big.Int).Lsh(big.NewInt(1), 64), "gm")
	require.Error(t, err)
	_, err = toRecord(bob, nil, "gm")
	require.Error(t, err)
}
