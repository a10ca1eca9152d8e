package chanfunding

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/btcsuite/btcwallet/wallet/txsizes"

	"github.com/embernode/ember/chainfee"
)

// rbfSequence is the highest input sequence number that still signals
// opt-in replace-by-fee per BIP 125.
const rbfSequence = wire.MaxTxInSequenceNum - 2

// WalletConfig bundles the collaborators the assembler needs to build and
// sign a funding transaction.
type WalletConfig struct {
	// CoinSource provides the spendable outputs available for funding.
	CoinSource CoinSource

	// Secrets provides the keys needed to sign the selected inputs.
	Secrets txauthor.SecretsSource

	// NewChangeScript returns a script to send any change to.
	NewChangeScript func() ([]byte, error)
}

// Assembler builds, signs and finalizes the single shared transaction that
// funds all channels of a batch. One call produces one fully signed
// transaction with one output per funding obligation plus optional change.
type Assembler struct {
	cfg WalletConfig
}

// NewAssembler returns an assembler drawing on the given wallet
// collaborators.
func NewAssembler(cfg WalletConfig) *Assembler {
	return &Assembler{cfg: cfg}
}

// FundFundingTx builds a transaction paying each of the passed funding
// outputs at the given fee rate, signals RBF on all inputs, signs it with
// the wallet's default policy and returns the finalized transaction.
func (a *Assembler) FundFundingTx(outputs []*wire.TxOut,
	feeRate chainfee.SatPerVByte) (*wire.MsgTx, error) {

	// A dust funding output would make the channel unenforceable on
	// chain, so refuse to build the transaction at all.
	for _, output := range outputs {
		if txrules.IsDustOutput(output, txrules.DefaultRelayFeePerKb) {
			return nil, fmt.Errorf("funding output of %d sat is "+
				"dust", output.Value)
		}
	}

	coins, err := a.cfg.CoinSource.ListCoins()
	if err != nil {
		return nil, fmt.Errorf("unable to list coins: %w", err)
	}

	changeSource := &txauthor.ChangeSource{
		NewScript:  a.cfg.NewChangeScript,
		ScriptSize: txsizes.P2WPKHPkScriptSize,
	}

	authoredTx, err := txauthor.NewUnsignedTransaction(
		outputs, btcutil.Amount(feeRate.FeePerKVByte()),
		constantInputSource(coins), changeSource,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to fund transaction: %w", err)
	}

	// Signal RBF on every input so the fee can be bumped while the
	// transaction sits in the mempool.
	for _, txIn := range authoredTx.Tx.TxIn {
		txIn.Sequence = rbfSequence
	}

	if err := authoredTx.AddAllInputScripts(a.cfg.Secrets); err != nil {
		return nil, fmt.Errorf("unable to sign transaction: %w", err)
	}

	log.Debugf("Assembled funding transaction %v with %d outputs at %v",
		authoredTx.Tx.TxHash(), len(outputs), feeRate)

	return authoredTx.Tx, nil
}
