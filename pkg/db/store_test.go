package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "waveportal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAuthorizationLifecycle(t *testing.T) {
	s := newTestStore(t)
	const addr = "0xAbC0000000000000000000000000000000000001"

	ok, err := s.IsAuthorized(addr)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Authorize(addr))
	require.NoError(t, s.Authorize(addr))

	ok, err = s.IsAuthorized("0xabc0000000000000000000000000000000000001")
	require.NoError(t, err)
	require.True(t, ok)

	accts, err := s.GetAuthorizedAccounts()
	require.NoError(t, err)
	require.Len(t, accts, 1)
	require.Equal(t, "0xabc0000000000000000000000000000000000001", accts[0].Address)
	require.NoError(t, s.TouchAccount(addr))

	require.NoError(t, s.Revoke(addr))
	ok, err = s.IsAuthorized(addr)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSubmissionJournal(t *testing.T) {
	s := newTestStore(t)

	_, err := s.RecordSubmission("0x01", "0xA1", "hello")
	require.NoError(t, err)
	_, err = s.RecordSubmission("0x02", "0xA1", "again")
	require.NoError(t, err)

	sub, err := s.GetSubmission("0x01")
	require.NoError(t, err)
	require.NotNil(t, sub)
	require.Equal(t, StatusPending, sub.Status)
	require.Equal(t, "0xa1", sub.Account)
	require.Nil(t, sub.SettledAt)

	require.NoError(t, s.SettleSubmission("0x01", StatusMined, 12, 41000, ""))
	require.NoError(t, s.SettleSubmission("0x02", StatusReverted, 13, 300000, "execution reverted"))
	require.Error(t, s.SettleSubmission("0x03", StatusMined, 1, 1, ""))

	sub, err = s.GetSubmission("0x01")
	require.NoError(t, err)
	require.Equal(t, StatusMined, sub.Status)
	require.EqualValues(t, 12, sub.BlockNumber)
	require.EqualValues(t, 41000, sub.GasUsed)
	require.NotNil(t, sub.SettledAt)

	missing, err := s.GetSubmission("0xff")
	require.NoError(t, err)
	require.Nil(t, missing)

	recent, err := s.GetRecentSubmissions(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, "0x02", recent[0].TxHash)

	stats, err := s.GetStats()
	require.NoError(t, err)
	require.Equal(t, 1, stats[string(StatusMined)])
	require.Equal(t, 1, stats[string(StatusReverted)])
	require.Equal(t, 0, stats["authorized_accounts"])
}

func TestPendingSubmissions(t *testing.T) {
	s := newTestStore(t)

	_, err := s.RecordSubmission("0x0a", "0xA1", "one")
	require.NoError(t, err)
	_, err = s.RecordSubmission("0x0b", "0xA1", "two")
	require.NoError(t, err)
	require.NoError(t, s.SettleSubmission("0x0b", StatusMined, 3, 21000, ""))

	pending, err := s.GetPendingSubmissions(0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "0x0a", pending[0].TxHash)

	pending, err = s.GetPendingSubmissions(time.Hour)
	require.NoError(t, err)
	require.Empty(t, pending)
}
