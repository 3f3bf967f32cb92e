package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"github.com/wave-portal/pkg/db"
	"github.com/wave-portal/pkg/wave"
)

// AuthStore persists which accounts the user has already connected.
type AuthStore interface {
	Authorize(address string) error
	Revoke(address string) error
	TouchAccount(address string) error
	GetAuthorizedAccounts() ([]db.AuthorizedAccount, error)
}

// Manager tracks the active account. It is set only by an explicit
// RequestConnection or by CheckAuthorizedAccount restoring a prior session.
type Manager struct {
	provider Provider
	store    AuthStore

	mu        sync.RWMutex
	account   common.Address
	connected bool
	onConnect []func(common.Address)
}

func NewManager(provider Provider, store AuthStore) *Manager {
	return &Manager{provider: provider, store: store}
}

// HasProvider reports whether a wallet was detected.
func (m *Manager) HasProvider() bool { return m.provider != nil }

// OnConnect registers fn to run after an account becomes active.
func (m *Manager) OnConnect(fn func(common.Address)) {
	m.mu.Lock()
	m.onConnect = append(m.onConnect, fn)
	m.mu.Unlock()
}

// Account returns the active account, if any.
func (m *Manager) Account() (common.Address, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.account, m.connected
}

// CheckAuthorizedAccount restores a previously authorized account without
// prompting. It returns false when there is none.
func (m *Manager) CheckAuthorizedAccount(ctx context.Context) (common.Address, bool) {
	if m.provider == nil {
		log.Info().Msg("make sure you have a wallet!")
		return common.Address{}, false
	}
	authorized, err := m.store.GetAuthorizedAccounts()
	if err != nil {
		log.Warn().Err(err).Msg("could not read authorized accounts")
		return common.Address{}, false
	}

	held := map[common.Address]bool{}
	for _, a := range m.provider.Accounts() {
		held[a] = true
	}
	for _, a := range authorized {
		addr := common.HexToAddress(a.Address)
		if !held[addr] {
			continue
		}
		if err := m.store.TouchAccount(a.Address); err != nil {
			log.Debug().Err(err).Msg("touch account")
		}
		log.Info().Str("account", addr.Hex()).Msg("found an authorized account")
		m.activate(addr)
		return addr, true
	}
	log.Info().Msg("no authorized account found")
	return common.Address{}, false
}

// RequestConnection asks the user to grant access to the provider's first
// account.
func (m *Manager) RequestConnection(ctx context.Context, approver Approver) (common.Address, error) {
	if m.provider == nil {
		return common.Address{}, wave.ErrProviderMissing
	}
	accts := m.provider.Accounts()
	if len(accts) == 0 {
		return common.Address{}, fmt.Errorf("%w: provider holds no accounts", wave.ErrProviderMissing)
	}
	account := accts[0]

	if err := m.approve(ctx, approver, account, "connect wallet"); err != nil {
		log.Warn().Err(err).Str("account", account.Hex()).Msg("connection refused")
		return common.Address{}, err
	}

	if err := m.store.Authorize(account.Hex()); err != nil {
		log.Warn().Err(err).Msg("could not persist authorization")
	}
	log.Info().Str("account", account.Hex()).Msg("✅ connected")
	m.activate(account)
	return account, nil
}

// Disconnect clears the active account and forgets its authorization.
func (m *Manager) Disconnect() error {
	m.mu.Lock()
	account, connected := m.account, m.connected
	m.account, m.connected = common.Address{}, false
	m.mu.Unlock()

	if !connected {
		return nil
	}
	log.Info().Str("account", account.Hex()).Msg("disconnected")
	return m.store.Revoke(account.Hex())
}

// Transactor returns signing options for the active account, asking for the
// passphrase when the provider is locked.
func (m *Manager) Transactor(ctx context.Context, chainID *big.Int, approver Approver) (*bind.TransactOpts, error) {
	if m.provider == nil {
		return nil, wave.ErrProviderMissing
	}
	account, ok := m.Account()
	if !ok {
		return nil, fmt.Errorf("%w: no connected account", wave.ErrUserRejected)
	}
	if m.provider.Locked(account) {
		if err := m.approve(ctx, approver, account, "sign wave"); err != nil {
			return nil, err
		}
	}
	opts, err := m.provider.Transactor(account, chainID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", wave.ErrTransactionFailed, err)
	}
	opts.Context = ctx
	return opts, nil
}

func (m *Manager) approve(ctx context.Context, approver Approver, account common.Address, reason string) error {
	locked := m.provider.Locked(account)
	if approver == nil {
		return fmt.Errorf("%w: no approver", wave.ErrUserRejected)
	}
	approval, err := approver.Approve(ctx, Request{
		Account:         account,
		Provider:        m.provider.Name(),
		Reason:          reason,
		NeedsPassphrase: locked,
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", wave.ErrUserRejected, err)
	}
	if locked {
		if err := m.provider.Unlock(account, approval.Passphrase); err != nil {
			return fmt.Errorf("%w: unlock: %v", wave.ErrUserRejected, err)
		}
	}
	return nil
}

func (m *Manager) activate(account common.Address) {
	m.mu.Lock()
	m.account, m.connected = account, true
	hooks := append([]func(common.Address){}, m.onConnect...)
	m.mu.Unlock()

	for _, fn := range hooks {
		fn(account)
	}
}

// Signer binds the manager to a chain and an approver for the submission path.
type Signer struct {
	m        *Manager
	chainID  *big.Int
	approver Approver
}

func (m *Manager) Signer(chainID *big.Int, approver Approver) *Signer {
	return &Signer{m: m, chainID: chainID, approver: approver}
}

func (s *Signer) Transactor(ctx context.Context) (*bind.TransactOpts, error) {
	return s.m.Transactor(ctx, s.chainID, s.approver)
}
