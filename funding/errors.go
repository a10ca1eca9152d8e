package funding

import "errors"

var (
	// ErrEmptyBatch is returned if a batch open is attempted with no
	// requests in it.
	ErrEmptyBatch = errors.New("batch contains no channel open requests")

	// ErrDuplicatePendingChanID is returned if two requests of the same
	// batch carry the same caller-supplied pending channel id.
	ErrDuplicatePendingChanID = errors.New("duplicate pending channel " +
		"id in batch")

	// ErrPeerAddrRequired is returned for a request whose counterparty
	// is not connected while the request carries no address to connect
	// to. This is a configuration error, not a retryable condition.
	ErrPeerAddrRequired = errors.New("peer is not connected and no " +
		"address was provided")

	// ErrFundingTimeout is the definitive failure of a request whose
	// initiation succeeded but whose funding negotiation never produced
	// a funding generation event before the batch wait elapsed.
	ErrFundingTimeout = errors.New("funding negotiation never completed")

	// ErrFundingTxBuild is set uniformly on every still-successful
	// request of a batch if the shared funding transaction could not be
	// built or signed. The underlying wallet error is wrapped.
	ErrFundingTxBuild = errors.New("shared funding transaction could " +
		"not be built")
)
