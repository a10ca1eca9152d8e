package chanfunding

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
)

// Coin represents a spendable UTXO which is available for funding a
// transaction.
type Coin struct {
	wire.TxOut

	// OutPoint is the location of the output within the chain.
	OutPoint wire.OutPoint
}

// CoinSource is an interface that allows a caller to access a source of
// UTXOs to use when attempting to fund a transaction.
type CoinSource interface {
	// ListCoins returns all coins currently available for spending.
	ListCoins() ([]Coin, error)
}

// MemCoinSource is an in-memory CoinSource. It backs tests and the daemon
// shell until a full chain-backed wallet is wired in.
type MemCoinSource struct {
	mtx   sync.Mutex
	coins []Coin
}

// AddCoin makes the passed coin available for spending.
func (m *MemCoinSource) AddCoin(coin Coin) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.coins = append(m.coins, coin)
}

// ListCoins returns all coins currently available for spending.
//
// NOTE: Part of the CoinSource interface.
func (m *MemCoinSource) ListCoins() ([]Coin, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	coins := make([]Coin, len(m.coins))
	copy(coins, m.coins)

	return coins, nil
}

// ErrInsufficientFunds is returned when the coin source cannot cover the
// target output value plus fees.
type ErrInsufficientFunds struct {
	// Available is the total value the coin source could provide.
	Available btcutil.Amount

	// Required is the value needed to fund the transaction.
	Required btcutil.Amount
}

// Error returns a human readable description of the error.
func (e *ErrInsufficientFunds) Error() string {
	return fmt.Sprintf("insufficient funds: need %v, have %v",
		e.Required, e.Available)
}

// InputSourceError tags the error so txauthor can distinguish it from other
// input source failures.
func (e *ErrInsufficientFunds) InputSourceError() {}

// A compile-time assertion that the error satisfies txauthor's contract.
var _ txauthor.InputSourceError = (*ErrInsufficientFunds)(nil)

// constantInputSource creates an input source function that always returns
// the static set of user-selected UTXOs, consumed front to back until the
// requested target amount is covered.
func constantInputSource(coins []Coin) txauthor.InputSource {
	currentTotal := btcutil.Amount(0)
	currentInputs := make([]*wire.TxIn, 0, len(coins))
	currentScripts := make([][]byte, 0, len(coins))
	currentInputValues := make([]btcutil.Amount, 0, len(coins))

	return func(target btcutil.Amount) (btcutil.Amount, []*wire.TxIn,
		[]btcutil.Amount, [][]byte, error) {

		for currentTotal < target && len(coins) > 0 {
			coin := coins[0]
			coins = coins[1:]

			currentTotal += btcutil.Amount(coin.Value)
			currentInputs = append(
				currentInputs,
				wire.NewTxIn(&coin.OutPoint, nil, nil),
			)
			currentScripts = append(
				currentScripts, coin.PkScript,
			)
			currentInputValues = append(
				currentInputValues,
				btcutil.Amount(coin.Value),
			)
		}

		if currentTotal < target {
			return 0, nil, nil, nil, &ErrInsufficientFunds{
				Available: currentTotal,
				Required:  target,
			}
		}

		return currentTotal, currentInputs, currentInputValues,
			currentScripts, nil
	}
}
