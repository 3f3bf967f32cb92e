package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog/log"

	"github.com/wave-portal/pkg/config"
)

// Provider holds user keys and signs transactions on request. It plays the
// role a browser-injected wallet plays for a web client.
type Provider interface {
	Name() string
	// Accounts lists the accounts the provider holds, without prompting.
	Accounts() []common.Address
	// Locked reports whether signing with account needs a passphrase first.
	Locked(account common.Address) bool
	Unlock(account common.Address, passphrase string) error
	Transactor(account common.Address, chainID *big.Int) (*bind.TransactOpts, error)
}

// DetectProvider returns the configured provider, or nil when there is none.
// A missing wallet is a normal state and is not an error; a malformed key is.
func DetectProvider(cfg *config.Config) (Provider, error) {
	if cfg.WalletPrivateKey != "" {
		key, err := crypto.HexToECDSA(cfg.WalletPrivateKey)
		if err != nil {
			return nil, fmt.Errorf("WALLET_PRIVATE_KEY: %w", err)
		}
		p := NewKeyProvider(key)
		log.Info().Str("provider", p.Name()).Str("account", p.address.Hex()).Msg("👛 found wallet")
		return p, nil
	}

	if cfg.KeystoreDir != "" {
		if st, err := os.Stat(cfg.KeystoreDir); err != nil || !st.IsDir() {
			log.Warn().Str("dir", cfg.KeystoreDir).Msg("keystore directory not found")
			return nil, nil
		}
		p := NewKeystoreProvider(cfg.KeystoreDir)
		if len(p.Accounts()) == 0 {
			log.Warn().Str("dir", cfg.KeystoreDir).Msg("keystore holds no accounts")
			return nil, nil
		}
		log.Info().Str("provider", p.Name()).Int("accounts", len(p.Accounts())).Msg("👛 found wallet")
		return p, nil
	}

	log.Info().Msg("no wallet configured, make sure you set KEYSTORE_DIR or WALLET_PRIVATE_KEY")
	return nil, nil
}

// ── Keystore ────────────────────────────────────────────────

type KeystoreProvider struct {
	ks *keystore.KeyStore

	mu       sync.Mutex
	unlocked map[common.Address]bool
}

func NewKeystoreProvider(dir string) *KeystoreProvider {
	return newKeystoreProvider(keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP))
}

func newKeystoreProvider(ks *keystore.KeyStore) *KeystoreProvider {
	return &KeystoreProvider{ks: ks, unlocked: make(map[common.Address]bool)}
}

func (p *KeystoreProvider) Name() string { return "keystore" }

func (p *KeystoreProvider) Accounts() []common.Address {
	var out []common.Address
	for _, a := range p.ks.Accounts() {
		out = append(out, a.Address)
	}
	return out
}

func (p *KeystoreProvider) Locked(account common.Address) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.unlocked[account]
}

func (p *KeystoreProvider) Unlock(account common.Address, passphrase string) error {
	if err := p.ks.Unlock(accounts.Account{Address: account}, passphrase); err != nil {
		return err
	}
	p.mu.Lock()
	p.unlocked[account] = true
	p.mu.Unlock()
	return nil
}

func (p *KeystoreProvider) Transactor(account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	acct, err := p.ks.Find(accounts.Account{Address: account})
	if err != nil {
		return nil, err
	}
	return bind.NewKeyStoreTransactorWithChainID(p.ks, acct, chainID)
}

// ── Raw key (dev networks) ──────────────────────────────────

type KeyProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

func NewKeyProvider(key *ecdsa.PrivateKey) *KeyProvider {
	return &KeyProvider{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

func (p *KeyProvider) Name() string { return "private-key" }

func (p *KeyProvider) Accounts() []common.Address { return []common.Address{p.address} }

func (p *KeyProvider) Locked(common.Address) bool { return false }

func (p *KeyProvider) Unlock(common.Address, string) error { return nil }

func (p *KeyProvider) Transactor(account common.Address, chainID *big.Int) (*bind.TransactOpts, error) {
	if account != p.address {
		return nil, fmt.Errorf("account %s not held by provider", account.Hex())
	}
	return bind.NewKeyedTransactorWithChainID(p.key, chainID)
}
