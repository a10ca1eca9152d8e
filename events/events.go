package events

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// NodeEvent is the interface implemented by all events published on a node's
// event bus. Multiple logical nodes may share one process, so every event
// carries the identity of the node it originated from.
type NodeEvent interface {
	// SourceNode returns the hex-encoded compressed public key of the
	// node that emitted the event.
	SourceNode() string
}

// FundingGenerationReady is emitted by the channel state machine once the
// initial negotiation with the counterparty has completed and the channel is
// waiting for a funding transaction that pays to OutputScript.
type FundingGenerationReady struct {
	// Node is the hex-encoded public key of the local node the pending
	// channel belongs to.
	Node string

	// UserChannelID echoes the correlation id the initiator supplied when
	// the channel open was kicked off.
	UserChannelID uint64

	// CounterpartyNodeID is the public key of the remote node the channel
	// is being opened to.
	CounterpartyNodeID *btcec.PublicKey

	// ChannelValue is the total value to be locked into the funding
	// output.
	ChannelValue btcutil.Amount

	// OutputScript is the script the funding output must pay to.
	OutputScript []byte
}

// SourceNode returns the originating node's identity.
//
// NOTE: Part of the NodeEvent interface.
func (f *FundingGenerationReady) SourceNode() string {
	return f.Node
}

// TransactionBroadcast signals that a transaction was handed to the chain
// backend for broadcast.
type TransactionBroadcast struct {
	// Node is the hex-encoded public key of the broadcasting node.
	Node string

	// TxID is the hash of the broadcast transaction.
	TxID chainhash.Hash
}

// SourceNode returns the originating node's identity.
//
// NOTE: Part of the NodeEvent interface.
func (t *TransactionBroadcast) SourceNode() string {
	return t.Node
}

// ChannelClosed signals that a channel was closed, either cooperatively or
// by force.
type ChannelClosed struct {
	// Node is the hex-encoded public key of the local node.
	Node string

	// UserChannelID is the correlation id the channel was opened with.
	UserChannelID uint64

	// Reason is a short human readable description of why the channel was
	// closed.
	Reason string
}

// SourceNode returns the originating node's identity.
//
// NOTE: Part of the NodeEvent interface.
func (c *ChannelClosed) SourceNode() string {
	return c.Node
}
