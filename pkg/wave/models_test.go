package wave

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestRecordIDIgnoresLocation(t *testing.T) {
	utc := FromChain(alice, 100, "hi")
	local := Record{Address: alice, Timestamp: time.Unix(100, 0).In(time.FixedZone("x", 3600)), Message: "hi"}
	require.Equal(t, utc.ID(), local.ID())
	require.NotEqual(t, utc.ID(), FromChain(bob, 100, "hi").ID())
	require.NotEqual(t, utc.ID(), FromChain(alice, 101, "hi").ID())
	require.NotEqual(t, utc.ID(), FromChain(alice, 100, "hi!").ID())
}

func TestSortNewestFirst(t *testing.T) {
	recs := []Record{
		FromChain(alice, 100, "a"),
		FromChain(bob, 300, "b"),
		FromChain(alice, 200, "c"),
		FromChain(bob, 200, "d"),
	}
	SortNewestFirst(recs)
	var got []string
	for _, r := range recs {
		got = append(got, r.Message)
	}
	require.Equal(t, []string{"b", "c", "d", "a"}, got)
}

func TestKindDistinguishesAllErrors(t *testing.T) {
	cases := map[error]string{
		ErrProviderMissing:   "provider_missing",
		ErrUserRejected:      "user_rejected",
		ErrReadFailed:        "read_error",
		ErrTransactionFailed: "transaction_error",
		ErrEmptyMessage:      "empty_message",
		ErrBusy:              "busy",
		errors.New("boom"):   "internal",
	}
	for err, want := range cases {
		wrapped := fmt.Errorf("%w: context", err)
		require.Equal(t, want, Kind(wrapped))
		require.NotEmpty(t, Notice(wrapped))
	}
	require.Empty(t, Kind(nil))
	require.Empty(t, Notice(nil))
}

func TestAbbrev(t *testing.T) {
	require.Equal(t, "0x0000...00a1", strings.ToLower(Abbrev(alice)))
}
