package funding

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/embernode/ember/chainfee"
	"github.com/embernode/ember/events"
	"github.com/embernode/ember/peernet"
)

const (
	// DefaultFundingTimeout is the default total time a batch waits for
	// its funding generation events before proceeding with whatever
	// subset arrived.
	DefaultFundingTimeout = 30 * time.Second

	// DefaultPollInterval is the default pause between two drains of the
	// event subscription while waiting for funding generation events.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultPeerPort is the port assumed for peer addresses that don't
	// specify one.
	DefaultPeerPort = "9735"

	// defaultConfTarget is the confirmation target used for the funding
	// transaction's fee estimate.
	defaultConfTarget = 6
)

// Config bundles all collaborators and tuning knobs of a Batcher.
type Config struct {
	// NodeID is the hex-encoded identity key of the local node. Events
	// on the bus are attributed to their originating node, and only
	// events of this node are correlated.
	NodeID string

	// ChannelController drives the per-channel protocol state machine.
	ChannelController ChannelController

	// PeerConnector establishes connections to counterparties.
	PeerConnector peernet.PeerConnector

	// TCPResolver resolves peer addresses. Defaults to the system
	// resolver.
	TCPResolver peernet.TCPResolver

	// Wallet builds and signs the shared funding transaction.
	Wallet FundingWallet

	// FeeEstimator quotes the chain fee rate for the funding
	// transaction.
	FeeEstimator chainfee.Estimator

	// Debouncer is told how many completions the funding transaction
	// must see before it is broadcast.
	Debouncer Debouncer

	// EventSource provides a fresh event subscription per batch.
	EventSource EventSource

	// FundingTimeout bounds the total event wait of one batch.
	FundingTimeout time.Duration

	// PollInterval is the pause between event drains during the wait.
	PollInterval time.Duration

	// Clock is the time source for the wait timeout.
	Clock clock.Clock

	// Quit is closed when the node shuts down, aborting any in-flight
	// wait.
	Quit chan struct{}
}

// Batcher opens batches of channels that share a single on-chain funding
// transaction, amortizing chain fees across all channels of a batch. It is
// long-lived: one instance serves any number of concurrent BatchOpen calls,
// each with its own private correlation state.
type Batcher struct {
	cfg *Config

	// assemblyMtx serializes the span from the fee lookup through
	// signing, so concurrent batches cannot race on the wallet's coin
	// selection. It deliberately does not cover the event wait.
	assemblyMtx sync.Mutex
}

// NewBatcher returns a Batcher backed by the given configuration, applying
// defaults for any unset tuning knob.
func NewBatcher(cfg *Config) *Batcher {
	if cfg.FundingTimeout == 0 {
		cfg.FundingTimeout = DefaultFundingTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.TCPResolver == nil {
		cfg.TCPResolver = net.ResolveTCPAddr
	}

	return &Batcher{cfg: cfg}
}

// eventFilter pairs the pending channel id a request is waiting on with the
// predicate deciding whether an event satisfies it. A filter is single-use:
// it is retired by the first event it matches.
type eventFilter struct {
	pendingChanID uint64
	match         func(events.NodeEvent) bool
}

// BatchOpen drives every request of the batch through peer connection,
// channel initiation and funding negotiation, funds all successful channels
// through one shared transaction and hands that transaction back to each
// channel's state machine. It returns exactly one result per request, in
// request order; individual failures are carried in the results and never
// abort the rest of the batch.
func (b *Batcher) BatchOpen(ctx context.Context,
	reqs []*OpenChannelRequest) ([]*ChannelOpenResult, error) {

	if len(reqs) == 0 {
		return nil, ErrEmptyBatch
	}

	if err := assignPendingChanIDs(reqs); err != nil {
		return nil, err
	}

	// Each batch correlates events through its own private
	// subscription, so concurrent batches never see each other's state.
	client, err := b.cfg.EventSource.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("unable to subscribe to events: %w",
			err)
	}
	defer client.Cancel()

	// Initiate all channels in request order, collecting one wait filter
	// per successful initiation.
	results := make([]*ChannelOpenResult, 0, len(reqs))
	filters := make([]*eventFilter, 0, len(reqs))
	for _, req := range reqs {
		pendingChanID := req.PendingChanID.UnwrapOr(0)

		tempChanID, err := b.initiateChannelOpen(ctx, req)
		if err != nil {
			log.Errorf("Unable to initiate channel to peer %v: "+
				"%v", req.NodePubKey, err)

			results = append(results, &ChannelOpenResult{
				Request: req,
				Err:     err,
			})
			continue
		}

		log.Debugf("Initiated channel with peer %v, pending id %d",
			req.NodePubKey, pendingChanID)

		filters = append(filters, &eventFilter{
			pendingChanID: pendingChanID,
			match: func(event events.NodeEvent) bool {
				ready, ok := event.(*events.FundingGenerationReady)
				if !ok {
					return false
				}

				return ready.Node == b.cfg.NodeID &&
					ready.UserChannelID == pendingChanID
			},
		})
		results = append(results, &ChannelOpenResult{
			Request:    req,
			TempChanID: tempChanID,
		})
	}

	matched := b.waitForEvents(client, filters)

	// Requests that were initiated but never produced a funding event
	// within the wait are now definitively failed.
	matchedByID := make(
		map[uint64]*events.FundingGenerationReady, len(matched),
	)
	for _, event := range matched {
		matchedByID[event.UserChannelID] = event
	}
	for _, result := range results {
		if result.Err != nil {
			continue
		}

		id := result.Request.PendingChanID.UnwrapOr(0)
		if _, ok := matchedByID[id]; !ok {
			result.Err = ErrFundingTimeout
		}
	}

	// Without any funding obligations there is nothing to build or
	// broadcast.
	if len(matched) == 0 {
		log.Warnf("No funding events matched within %v, skipping "+
			"funding transaction assembly",
			b.cfg.FundingTimeout)

		return results, nil
	}

	fundingTx, err := b.assembleFundingTx(matched)
	if err != nil {
		log.Errorf("Unable to assemble shared funding transaction: "+
			"%v", err)

		// The transaction is shared, so its failure invalidates
		// every request that was still on track. Apply one uniform
		// error kind wrapping the cause.
		for _, result := range results {
			if result.Err == nil {
				result.Err = fmt.Errorf("%w: %w",
					ErrFundingTxBuild, err)
			}
		}

		return results, nil
	}

	// Tell the broadcaster how many completions will reference the
	// transaction before dispatching any of them, so it can submit the
	// transaction exactly once when all of them have progressed.
	var numCompletions int
	for _, result := range results {
		if result.Err == nil {
			numCompletions++
		}
	}
	txid := fundingTx.TxHash()
	b.cfg.Debouncer.SetDebounce(txid, numCompletions)

	log.Infof("Funding %d channel(s) through shared transaction %v",
		numCompletions, txid)

	// Hand the transaction to each surviving channel. The same
	// transaction backs multiple channels, so every state machine gets
	// its own copy.
	for _, result := range results {
		if result.Err != nil {
			continue
		}

		id := result.Request.PendingChanID.UnwrapOr(0)
		event := matchedByID[id]

		err := b.cfg.ChannelController.FundingTxGenerated(
			result.TempChanID, event.CounterpartyNodeID,
			fundingTx.Copy(),
		)
		if err != nil {
			result.Err = fmt.Errorf("unable to complete "+
				"funding: %w", err)
		}
	}

	return results, nil
}

// initiateChannelOpen makes sure the counterparty of the request is
// connected and kicks off the channel negotiation. It has no side effects on
// shared state if it fails.
func (b *Batcher) initiateChannelOpen(ctx context.Context,
	req *OpenChannelRequest) ([32]byte, error) {

	var none [32]byte

	peerKey, err := peernet.ParsePubKey(req.NodePubKey)
	if err != nil {
		return none, err
	}

	if !b.cfg.PeerConnector.IsConnected(peerKey) {
		if req.Addr.IsNone() {
			return none, ErrPeerAddrRequired
		}

		addr, err := b.resolvePeerAddr(
			req.Addr.UnwrapOr(""), peerKey,
		)
		if err != nil {
			return none, err
		}

		err = b.cfg.PeerConnector.Connect(ctx, peerKey, addr)
		if err != nil {
			return none, fmt.Errorf("unable to connect to peer "+
				"%v@%v: %w", req.NodePubKey, addr, err)
		}
	}

	return b.cfg.ChannelController.OpenChannel(
		peerKey, req.ChannelValue, req.PushAmt.UnwrapOr(0),
		req.PendingChanID.UnwrapOr(0), req.Config,
	)
}

// resolvePeerAddr parses a request's peer address, accepting both the bare
// host:port form and the full pubkey@host:port lightning address form. An
// embedded pubkey must match the request's counterparty key.
func (b *Batcher) resolvePeerAddr(strAddr string,
	peerKey *btcec.PublicKey) (net.Addr, error) {

	if strings.Contains(strAddr, "@") {
		addrKey, addr, err := peernet.ParseLNAddressString(
			strAddr, DefaultPeerPort, b.cfg.TCPResolver,
		)
		if err != nil {
			return nil, fmt.Errorf("unable to parse peer "+
				"address: %w", err)
		}

		if !addrKey.IsEqual(peerKey) {
			return nil, fmt.Errorf("address pubkey %x does not "+
				"match request's node pubkey",
				addrKey.SerializeCompressed())
		}

		return addr, nil
	}

	addr, err := peernet.ParseAddressString(
		strAddr, DefaultPeerPort, b.cfg.TCPResolver,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to parse peer address: %w", err)
	}

	return addr, nil
}

// waitForEvents repeatedly drains all currently available events from the
// subscription and matches them against the remaining filters,
// first-match-wins. A matched filter is retired immediately, so it can
// match at most one event. The wait returns once every filter is satisfied
// or the funding timeout elapses; a partial result is a valid outcome. An
// empty filter set returns immediately without suspending.
func (b *Batcher) waitForEvents(client *events.Client,
	filters []*eventFilter) []*events.FundingGenerationReady {

	if len(filters) == 0 {
		return nil
	}

	matched := make([]*events.FundingGenerationReady, 0, len(filters))

	pollTicker := ticker.New(b.cfg.PollInterval)
	pollTicker.Resume()
	defer pollTicker.Stop()

	timeout := b.cfg.Clock.TickAfter(b.cfg.FundingTimeout)

	for {
	drain:
		for {
			select {
			case update := <-client.Updates():
				event, ok := update.(events.NodeEvent)
				if !ok {
					continue
				}

				for i, filter := range filters {
					if !filter.match(event) {
						continue
					}

					// Only funding generation events can
					// satisfy the filters built above.
					ready := event.(*events.FundingGenerationReady)
					matched = append(matched, ready)

					// Retire the filter by swapping it
					// out with the last remaining one.
					filters[i] = filters[len(filters)-1]
					filters = filters[:len(filters)-1]

					break
				}

				if len(filters) == 0 {
					return matched
				}

			default:
				break drain
			}
		}

		select {
		case <-pollTicker.Ticks():

		case <-timeout:
			log.Warnf("Funding wait timed out with %d filter(s) "+
				"unmatched", len(filters))
			return matched

		case <-b.cfg.Quit:
			return matched
		}
	}
}

// assembleFundingTx builds and signs the shared funding transaction paying
// one output per matched funding event, at the currently estimated fee
// rate. The assembly lock is held from the fee lookup through signing.
func (b *Batcher) assembleFundingTx(
	matched []*events.FundingGenerationReady) (*wire.MsgTx, error) {

	b.assemblyMtx.Lock()
	defer b.assemblyMtx.Unlock()

	feePerKw, err := b.cfg.FeeEstimator.EstimateFeePerKW(
		defaultConfTarget,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to estimate fee: %w", err)
	}
	feeRate := feePerKw.FeePerVByte()

	outputs := make([]*wire.TxOut, 0, len(matched))
	for _, event := range matched {
		outputs = append(outputs, wire.NewTxOut(
			int64(event.ChannelValue), event.OutputScript,
		))
	}

	return b.cfg.Wallet.FundFundingTx(outputs, feeRate)
}

// assignPendingChanIDs gives every request without a caller-supplied pending
// channel id a random, non-zero id that is unique within the batch, and
// rejects duplicate caller-supplied ids.
func assignPendingChanIDs(reqs []*OpenChannelRequest) error {
	used := make(map[uint64]struct{}, len(reqs))
	for _, req := range reqs {
		id := req.PendingChanID.UnwrapOr(0)
		if id == 0 {
			continue
		}

		if _, ok := used[id]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicatePendingChanID,
				id)
		}
		used[id] = struct{}{}
	}

	for _, req := range reqs {
		if req.PendingChanID.UnwrapOr(0) != 0 {
			continue
		}

		id, err := newPendingChanID(used)
		if err != nil {
			return err
		}

		used[id] = struct{}{}
		req.PendingChanID = fn.Some(id)
	}

	return nil
}

// newPendingChanID draws a random non-zero id not yet present in used.
func newPendingChanID(used map[uint64]struct{}) (uint64, error) {
	for {
		var idBytes [8]byte
		if _, err := rand.Read(idBytes[:]); err != nil {
			return 0, fmt.Errorf("error making pending channel "+
				"id: %w", err)
		}

		id := binary.BigEndian.Uint64(idBytes[:])
		if id == 0 {
			continue
		}
		if _, ok := used[id]; ok {
			continue
		}

		return id, nil
	}
}
