package chain

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// WavePortalABI is the subset of the WavePortal contract interface the client uses.
const WavePortalABI = `[
  {"anonymous":false,"inputs":[
    {"indexed":true,"internalType":"address","name":"from","type":"address"},
    {"indexed":false,"internalType":"uint256","name":"timestamp","type":"uint256"},
    {"indexed":false,"internalType":"string","name":"message","type":"string"}],
   "name":"NewWave","type":"event"},
  {"inputs":[],"name":"getAllWaves","outputs":[
    {"components":[
      {"internalType":"address","name":"waver","type":"address"},
      {"internalType":"string","name":"message","type":"string"},
      {"internalType":"uint256","name":"timestamp","type":"uint256"}],
     "internalType":"struct WavePortal.Wave[]","name":"","type":"tuple[]"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[],"name":"getTotalWaves","outputs":[
    {"internalType":"uint256","name":"","type":"uint256"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[{"internalType":"string","name":"_message","type":"string"}],
   "name":"wave","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

const (
	methodAllWaves   = "getAllWaves"
	methodTotalWaves = "getTotalWaves"
	methodWave       = "wave"
	eventNewWave     = "NewWave"
)

var parsedABI = mustParseABI()

func mustParseABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(WavePortalABI))
	if err != nil {
		panic("waveportal abi: " + err.Error())
	}
	return parsed
}

// ABI returns the parsed contract interface.
func ABI() abi.ABI { return parsedABI }

// Wave mirrors the contract's Wave struct as returned by getAllWaves.
type Wave struct {
	Waver     common.Address
	Message   string
	Timestamp *big.Int
}

// NewWave is a decoded NewWave log.
type NewWave struct {
	From      common.Address
	Timestamp *big.Int
	Message   string
	Raw       types.Log
}
