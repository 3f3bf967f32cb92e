package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/wave-portal/pkg/feed"
	"github.com/wave-portal/pkg/submit"
	"github.com/wave-portal/pkg/wallet"
	"github.com/wave-portal/pkg/wave"
)

var alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")

type fakeWallet struct {
	mu         sync.Mutex
	provider   bool
	authorized bool
	account    common.Address
	connected  bool
	hooks      []func(common.Address)
	connectErr error
}

func (w *fakeWallet) HasProvider() bool { return w.provider }

func (w *fakeWallet) Account() (common.Address, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.account, w.connected
}

func (w *fakeWallet) OnConnect(fn func(common.Address)) { w.hooks = append(w.hooks, fn) }

func (w *fakeWallet) activate() {
	w.mu.Lock()
	w.account, w.connected = alice, true
	w.mu.Unlock()
	for _, fn := range w.hooks {
		fn(alice)
	}
}

func (w *fakeWallet) CheckAuthorizedAccount(context.Context) (common.Address, bool) {
	if !w.authorized {
		return common.Address{}, false
	}
	w.activate()
	return alice, true
}

func (w *fakeWallet) RequestConnection(context.Context, wallet.Approver) (common.Address, error) {
	if w.connectErr != nil {
		return common.Address{}, w.connectErr
	}
	w.activate()
	return alice, nil
}

func (w *fakeWallet) Disconnect() error {
	w.mu.Lock()
	w.account, w.connected = common.Address{}, false
	w.mu.Unlock()
	return nil
}

type fakeFeed struct {
	mu      sync.Mutex
	starts  int
	loadErr error
	state   feed.State
	updates chan feed.Update
}

func newFakeFeed() *fakeFeed { return &fakeFeed{updates: make(chan feed.Update, 4)} }

func (f *fakeFeed) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.state.Ready = true
	return nil
}

func (f *fakeFeed) LoadHistory(context.Context) (feed.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.loadErr
}

func (f *fakeFeed) State() feed.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeFeed) Watch() (<-chan feed.Update, func()) { return f.updates, func() {} }

func (f *fakeFeed) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

type fakeSubmitter struct {
	err   error
	hooks []func(bool)
}

func (s *fakeSubmitter) Submit(context.Context, string) (*submit.Result, error) {
	for _, fn := range s.hooks {
		fn(true)
	}
	defer func() {
		for _, fn := range s.hooks {
			fn(false)
		}
	}()
	if s.err != nil {
		return nil, s.err
	}
	return &submit.Result{BlockNumber: 9}, nil
}

func (s *fakeSubmitter) Pending() bool { return false }
func (s *fakeSubmitter) OnPending(fn func(bool)) { s.hooks = append(s.hooks, fn) }

func TestStartWithoutProviderShowsNotice(t *testing.T) {
	f := newFakeFeed()
	a := New(&fakeWallet{}, f, &fakeSubmitter{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)

	st := a.State()
	require.False(t, st.HasProvider)
	require.Equal(t, "provider_missing", st.NoticeKind)
	require.Zero(t, f.startCount())
}

func TestRestoredSessionStartsFeedOnce(t *testing.T) {
	f := newFakeFeed()
	w := &fakeWallet{provider: true, authorized: true}
	a := New(w, f, &fakeSubmitter{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.Start(ctx)

	require.Eventually(t, func() bool { return f.startCount() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, a.Connect(ctx, wallet.StaticApprover{}))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, 1, f.startCount())

	st := a.State()
	require.True(t, st.Connected)
	require.Equal(t, alice, st.Account)
	require.True(t, st.Feed.Ready)
}

func TestConnectRejected(t *testing.T) {
	w := &fakeWallet{provider: true, connectErr: wave.ErrUserRejected}
	a := New(w, newFakeFeed(), &fakeSubmitter{})

	err := a.Connect(context.Background(), wallet.StaticApprover{})
	require.ErrorIs(t, err, wave.ErrUserRejected)
	st := a.State()
	require.False(t, st.Connected)
	require.Equal(t, "user_rejected", st.NoticeKind)
}

func TestRefreshKeepsStaleFeedOnReadError(t *testing.T) {
	f := newFakeFeed()
	f.state = feed.State{Records: []wave.Record{wave.FromChain(alice, 100, "hi")}, Total: 1, Ready: true}
	f.loadErr = wave.ErrReadFailed
	a := New(&fakeWallet{provider: true}, f, &fakeSubmitter{})

	err := a.Refresh(context.Background())
	require.ErrorIs(t, err, wave.ErrReadFailed)
	st := a.State()
	require.Equal(t, "read_error", st.NoticeKind)
	require.Len(t, st.Feed.Records, 1)
}

func TestSendSignalsChanges(t *testing.T) {
	s := &fakeSubmitter{}
	a := New(&fakeWallet{provider: true}, newFakeFeed(), s)
	changes, cancel := a.Changes()
	defer cancel()

	res, err := a.Send(context.Background(), "gm")
	require.NoError(t, err)
	require.Equal(t, uint64(9), res.BlockNumber)
	select {
	case <-changes:
	default:
		t.Fatal("expected a change signal")
	}
	require.Equal(t, "info", a.State().NoticeKind)

	s.err = errors.Join(wave.ErrTransactionFailed, errors.New("reverted"))
	_, err = a.Send(context.Background(), "gm")
	require.ErrorIs(t, err, wave.ErrTransactionFailed)
	require.Equal(t, "transaction_error", a.State().NoticeKind)
}

func TestSkipFeedKeepsFeedStoppedOnConnect(t *testing.T) {
	w := &fakeWallet{provider: true}
	f := newFakeFeed()
	a := New(w, f, nil)
	a.SkipFeed()

	require.NoError(t, a.Connect(context.Background(), wallet.StaticApprover{}))
	a.StartFeed(context.Background())
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, f.startCount())
}
