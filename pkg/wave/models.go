package wave

import (
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Record is one wave as observed on chain, either from the bulk read or the
// NewWave event stream.
type Record struct {
	Address   common.Address `json:"address"`
	Timestamp time.Time      `json:"timestamp"`
	Message   string         `json:"message"`
}

// ID identifies a wave across the historical read and the live stream. The
// contract exposes no event id on getAllWaves, so the triple is the identity.
type ID struct {
	Address common.Address
	Unix    int64
	Message string
}

func (r Record) ID() ID {
	return ID{Address: r.Address, Unix: r.Timestamp.Unix(), Message: r.Message}
}

func (id ID) String() string {
	return fmt.Sprintf("%s@%d:%q", id.Address.Hex(), id.Unix, id.Message)
}

// FromChain converts the contract's seconds timestamp.
func FromChain(from common.Address, unixSeconds int64, message string) Record {
	return Record{Address: from, Timestamp: time.Unix(unixSeconds, 0).UTC(), Message: message}
}

// SortNewestFirst orders records descending by timestamp, keeping the input
// order for equal timestamps.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
}

// Abbrev shortens an address for display.
func Abbrev(addr common.Address) string {
	h := addr.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}
