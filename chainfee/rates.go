package chainfee

import (
	"fmt"
	"math"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/btcutil"
)

const (
	// FeePerKwFloor is the lowest fee rate in sat/kw that we should use
	// for estimating transaction fees before signing. It is the
	// protocol-defined minimum relay fee expressed in the weight unit.
	FeePerKwFloor SatPerKWeight = 253

	// kwPerVByte is the number of weight units per virtual byte divided
	// into 1000, i.e. the divisor that maps a sat/kw quote to sat/vB.
	kwPerVByte = 250
)

// SatPerKVByte represents a fee rate in sat/kvB (1000 virtual bytes).
type SatPerKVByte btcutil.Amount

// FeeForVSize calculates the fee resulting from this fee rate and the given
// vsize in virtual bytes.
func (s SatPerKVByte) FeeForVSize(vSize int64) btcutil.Amount {
	return btcutil.Amount(s) * btcutil.Amount(vSize) / 1000
}

// FeePerKWeight converts the current fee rate from sat/kvB to sat/kw.
func (s SatPerKVByte) FeePerKWeight() SatPerKWeight {
	return SatPerKWeight(s / blockchain.WitnessScaleFactor)
}

// String returns a human-readable string of the fee rate.
func (s SatPerKVByte) String() string {
	return fmt.Sprintf("%v sat/kvb", int64(s))
}

// SatPerKWeight represents a fee rate in sat/kw (1000 weight units). This is
// the native unit the channel state machine and fee estimation backends
// quote in.
type SatPerKWeight btcutil.Amount

// FeeForWeight calculates the fee resulting from this fee rate and the given
// weight in weight units.
func (s SatPerKWeight) FeeForWeight(wu int64) btcutil.Amount {
	// The resulting fee is rounded down, as specified in BOLT #03.
	return btcutil.Amount(s) * btcutil.Amount(wu) / 1000
}

// FeePerKVByte converts the current fee rate from sat/kw to sat/kvB.
func (s SatPerKWeight) FeePerKVByte() SatPerKVByte {
	return SatPerKVByte(s * blockchain.WitnessScaleFactor)
}

// FeePerVByte converts the current fee rate from sat/kw to sat/vB. The floor
// rate of 253 sat/kw maps to exactly 1 sat/vB instead of going through the
// division, so that a floor quote never rounds below the relay minimum.
func (s SatPerKWeight) FeePerVByte() SatPerVByte {
	if s == FeePerKwFloor {
		return 1
	}

	return SatPerVByte(float64(s) / kwPerVByte)
}

// String returns a human-readable string of the fee rate.
func (s SatPerKWeight) String() string {
	return fmt.Sprintf("%v sat/kw", int64(s))
}

// SatPerVByte represents a fee rate in sat/vB. Unlike the kw and kvB units
// this one is fractional, since a sat/kw quote does not generally map to a
// whole number of satoshis per virtual byte.
type SatPerVByte float64

// FeePerKVByte converts the current fee rate from sat/vB to sat/kvB,
// rounding to the nearest satoshi.
func (s SatPerVByte) FeePerKVByte() SatPerKVByte {
	return SatPerKVByte(math.Round(float64(s) * 1000))
}

// String returns a human-readable string of the fee rate.
func (s SatPerVByte) String() string {
	return fmt.Sprintf("%v sat/vb", float64(s))
}
