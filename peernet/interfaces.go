package peernet

import (
	"context"
	"net"

	"github.com/btcsuite/btcd/btcec/v2"
)

// PeerConnector abstracts the node's transport layer far enough for callers
// to make sure a counterparty is reachable before starting a channel
// negotiation with it.
type PeerConnector interface {
	// IsConnected returns true if an active connection to the peer with
	// the given identity key exists.
	IsConnected(pubKey *btcec.PublicKey) bool

	// Connect establishes a connection to the peer at the given address.
	// It is idempotent: connecting to an already-connected peer is a
	// no-op. A failed handshake is returned as an error.
	Connect(ctx context.Context, pubKey *btcec.PublicKey,
		addr net.Addr) error
}
