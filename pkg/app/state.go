package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/wave-portal/pkg/feed"
	"github.com/wave-portal/pkg/submit"
	"github.com/wave-portal/pkg/wallet"
	"github.com/wave-portal/pkg/wave"
)

type Wallet interface {
	HasProvider() bool
	Account() (common.Address, bool)
	OnConnect(fn func(common.Address))
	CheckAuthorizedAccount(ctx context.Context) (common.Address, bool)
	RequestConnection(ctx context.Context, approver wallet.Approver) (common.Address, error)
	Disconnect() error
}

type Feed interface {
	Start(ctx context.Context) error
	LoadHistory(ctx context.Context) (feed.State, error)
	State() feed.State
	Watch() (<-chan feed.Update, func())
}

type Submitter interface {
	Submit(ctx context.Context, text string) (*submit.Result, error)
	Pending() bool
	OnPending(fn func(bool))
}

// State is everything a view renders. It is a copy; views never mutate it.
type State struct {
	Account     common.Address `json:"account"`
	Connected   bool           `json:"connected"`
	HasProvider bool           `json:"has_provider"`
	Feed        feed.State     `json:"feed"`
	Pending     bool           `json:"pending"`
	Notice      string         `json:"notice,omitempty"`
	NoticeKind  string         `json:"notice_kind,omitempty"`
}

// App ties the wallet, the feed and the submitter together and owns the
// user-facing notice. The feed starts on the first connected account, or
// eagerly through StartFeed.
type App struct {
	wallet    Wallet
	feed      Feed
	submitter Submitter

	startOnce sync.Once

	mu         sync.Mutex
	ctx        context.Context
	notice     string
	noticeKind string

	subMu   sync.Mutex
	subs    map[int]chan struct{}
	nextSub int
}

func New(w Wallet, f Feed, s Submitter) *App {
	a := &App{wallet: w, feed: f, submitter: s, ctx: context.Background(), subs: make(map[int]chan struct{})}
	w.OnConnect(func(addr common.Address) {
		a.changed()
		a.StartFeed(a.baseContext())
	})
	if s != nil {
		s.OnPending(func(bool) { a.changed() })
	}
	return a
}

// Start restores a previously authorized session, which in turn starts the
// feed. Change notifications are forwarded until ctx is done.
func (a *App) Start(ctx context.Context) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	updates, cancel := a.feed.Watch()
	go func() {
		defer cancel()
		for {
			select {
			case _, ok := <-updates:
				if !ok {
					return
				}
				a.changed()
			case <-ctx.Done():
				return
			}
		}
	}()

	if !a.wallet.HasProvider() {
		a.setNotice(wave.ErrProviderMissing)
		return
	}
	a.wallet.CheckAuthorizedAccount(ctx)
}

// StartFeed subscribes and loads the history once, in the background.
func (a *App) StartFeed(ctx context.Context) {
	a.startOnce.Do(func() {
		go func() {
			if err := a.feed.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("initial feed load failed")
				a.setNotice(err)
			}
		}()
	})
}

// SkipFeed keeps the feed stopped for the life of the App, for one-shot
// commands that never render it.
func (a *App) SkipFeed() {
	a.startOnce.Do(func() {})
}

// Connect asks the user to approve the wallet connection.
func (a *App) Connect(ctx context.Context, approver wallet.Approver) error {
	addr, err := a.wallet.RequestConnection(ctx, approver)
	if err != nil {
		a.setNotice(err)
		return err
	}
	a.setInfo(fmt.Sprintf("Connected %s", wave.Abbrev(addr)))
	return nil
}

func (a *App) Disconnect() error {
	if err := a.wallet.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("disconnect")
		return err
	}
	a.setInfo("Disconnected")
	return nil
}

// Refresh reloads the history. A failure keeps the last known feed.
func (a *App) Refresh(ctx context.Context) error {
	a.StartFeed(ctx)
	if _, err := a.feed.LoadHistory(ctx); err != nil {
		a.setNotice(err)
		return err
	}
	a.clearNotice()
	return nil
}

// Send submits a wave and blocks until it is mined or fails.
func (a *App) Send(ctx context.Context, text string) (*submit.Result, error) {
	if a.submitter == nil {
		a.setNotice(wave.ErrProviderMissing)
		return nil, wave.ErrProviderMissing
	}
	res, err := a.submitter.Submit(ctx, text)
	if err != nil {
		a.setNotice(err)
		return nil, err
	}
	a.setInfo(fmt.Sprintf("Mined in block %d", res.BlockNumber))
	return res, nil
}

func (a *App) State() State {
	acct, connected := a.wallet.Account()
	st := State{
		Account:     acct,
		Connected:   connected,
		HasProvider: a.wallet.HasProvider(),
		Feed:        a.feed.State(),
	}
	if a.submitter != nil {
		st.Pending = a.submitter.Pending()
	}
	a.mu.Lock()
	st.Notice, st.NoticeKind = a.notice, a.noticeKind
	a.mu.Unlock()
	return st
}

// Changes signals that State may differ. Signals coalesce.
func (a *App) Changes() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	a.subMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = ch
	a.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subMu.Lock()
			delete(a.subs, id)
			a.subMu.Unlock()
		})
	}
}

func (a *App) baseContext() context.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ctx
}

func (a *App) changed() {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	for _, ch := range a.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (a *App) setNotice(err error) {
	a.mu.Lock()
	a.notice, a.noticeKind = wave.Notice(err), wave.Kind(err)
	a.mu.Unlock()
	a.changed()
}

func (a *App) setInfo(msg string) {
	a.mu.Lock()
	a.notice, a.noticeKind = msg, "info"
	a.mu.Unlock()
	a.changed()
}

func (a *App) clearNotice() {
	a.mu.Lock()
	a.notice, a.noticeKind = "", ""
	a.mu.Unlock()
	a.changed()
}
