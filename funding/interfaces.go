package funding

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/embernode/ember/chainfee"
	"github.com/embernode/ember/events"
)

// ChannelController is the subset of the channel state machine the batcher
// drives.
type ChannelController interface {
	// OpenChannel kicks off the channel negotiation with the given peer
	// and returns the temporary channel id assigned to the pending
	// channel. On success, a FundingGenerationReady event carrying the
	// same pendingChanID is emitted on the node's event bus once the
	// negotiation reaches its funding stage.
	OpenChannel(peer *btcec.PublicKey, capacity btcutil.Amount,
		pushAmt MilliSatoshi, pendingChanID uint64,
		cfg ChannelConfig) ([32]byte, error)

	// FundingTxGenerated hands the finalized funding transaction to the
	// pending channel identified by tempChanID so it can continue past
	// its funding stage.
	//
	// NOTE: This is not idempotent and must be called exactly once per
	// temporary channel id.
	FundingTxGenerated(tempChanID [32]byte, peer *btcec.PublicKey,
		fundingTx *wire.MsgTx) error
}

// FundingWallet builds and signs the single shared transaction funding all
// channels of a batch.
type FundingWallet interface {
	// FundFundingTx builds a transaction paying each of the passed
	// outputs at the given fee rate, signs it and returns the finalized
	// transaction. Fails if the wallet cannot cover the outputs or
	// refuses to sign.
	FundFundingTx(outputs []*wire.TxOut,
		feeRate chainfee.SatPerVByte) (*wire.MsgTx, error)
}

// Debouncer is notified how many channel completions will reference a
// funding transaction, so the transaction is broadcast exactly once after
// all of them have progressed.
type Debouncer interface {
	// SetDebounce declares the number of completions expected for the
	// given transaction id.
	SetDebounce(txid chainhash.Hash, expected int)
}

// EventSource hands out fresh, independent subscriptions to the node's
// event bus.
type EventSource interface {
	// Subscribe returns a client receiving every event published from
	// this point on.
	Subscribe() (*events.Client, error)
}
