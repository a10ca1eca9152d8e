package funding

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// MilliSatoshi is one thousandth of a satoshi, the unit payment amounts are
// expressed in off chain.
type MilliSatoshi uint64

// ChannelConfig carries the per-channel negotiation overrides a request may
// specify on top of the node's defaults.
type ChannelConfig struct {
	// AnnounceChannel controls whether the channel is announced to the
	// rest of the network once it confirms.
	AnnounceChannel bool

	// MinHTLCIn is the smallest HTLC we are willing to accept over the
	// channel.
	MinHTLCIn MilliSatoshi

	// CSVDelay is the relative lock time the counterparty's commitment
	// output is encumbered by.
	CSVDelay uint16

	// MaxValueInFlight caps the total value of unsettled HTLCs over the
	// channel.
	MaxValueInFlight MilliSatoshi
}

// OpenChannelRequest describes a single channel a caller wants opened as
// part of a batch.
type OpenChannelRequest struct {
	// NodePubKey is the hex-encoded identity key of the counterparty the
	// channel is opened to.
	NodePubKey string

	// Addr optionally carries the counterparty's address, either as
	// host:port or as the full pubkey@host:port form. It is required if
	// no connection to the peer exists yet.
	Addr fn.Option[string]

	// ChannelValue is the value locked into the channel's funding
	// output.
	ChannelValue btcutil.Amount

	// PushAmt is the portion of the channel value pushed to the
	// counterparty as part of the initial commitment. Zero when
	// unspecified.
	PushAmt fn.Option[MilliSatoshi]

	// PendingChanID is the caller-supplied correlation id for this
	// request. If absent, the batcher assigns a batch-unique non-zero id
	// before any protocol call is made. Once assigned it never changes.
	PendingChanID fn.Option[uint64]

	// Config holds per-channel negotiation overrides.
	Config ChannelConfig
}

// ChannelOpenResult pairs a request with its definitive outcome. A batch
// open always produces exactly one result per request, in request order.
type ChannelOpenResult struct {
	// Request is the input request, annotated with its assigned pending
	// channel id.
	Request *OpenChannelRequest

	// TempChanID is the temporary channel identifier the channel state
	// machine assigned at initiation. Only meaningful if Err is nil.
	TempChanID [32]byte

	// Err is the request's failure, or nil if the channel reached its
	// funding stage successfully.
	Err error
}
