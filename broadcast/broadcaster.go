package broadcast

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/embernode/ember/events"
)

// TxPublisher abstracts the chain backend used to submit raw transactions to
// the network.
type TxPublisher interface {
	// PublishTransaction performs cursory validation (dust checks, etc),
	// then broadcasts the passed transaction to the network.
	PublishTransaction(tx *wire.MsgTx, label string) error
}

// EventPublisher is the slice of the node's event bus the broadcaster
// announces successful submissions on.
type EventPublisher interface {
	// SendEvent publishes the passed event to all subscribed clients.
	SendEvent(event events.NodeEvent) error
}

// debouncedTx tracks how many logical completions still reference a
// transaction before it may be published.
type debouncedTx struct {
	expected int
	seen     int
	done     bool
}

// Broadcaster submits transactions to the network while making sure that a
// transaction referenced by multiple channel completions is only published
// once, after every interested channel has progressed. Transactions without a
// registered debounce count pass straight through.
type Broadcaster struct {
	publisher TxPublisher
	bus       EventPublisher
	nodeID    string
	label     string

	mtx     sync.Mutex
	pending map[chainhash.Hash]*debouncedTx
}

// NewBroadcaster returns a broadcaster publishing through the given backend.
// Every successful submission is announced on the bus as a
// TransactionBroadcast event attributed to nodeID; a nil bus disables the
// announcements. The label is attached to every published transaction.
func NewBroadcaster(publisher TxPublisher, bus EventPublisher, nodeID,
	label string) *Broadcaster {

	return &Broadcaster{
		publisher: publisher,
		bus:       bus,
		nodeID:    nodeID,
		label:     label,
		pending:   make(map[chainhash.Hash]*debouncedTx),
	}
}

// SetDebounce declares that the transaction with the given id will be handed
// to Broadcast exactly expected times, and must be published on the last of
// those calls only. An expected count of zero removes any registration, so
// the transaction would again pass straight through.
func (b *Broadcaster) SetDebounce(txid chainhash.Hash, expected int) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if expected <= 0 {
		delete(b.pending, txid)
		return
	}

	b.pending[txid] = &debouncedTx{expected: expected}
}

// Broadcast submits the transaction to the network, honoring any debounce
// registration for its id. Calls beyond the expected count are ignored.
func (b *Broadcaster) Broadcast(tx *wire.MsgTx) error {
	txid := tx.TxHash()

	b.mtx.Lock()
	entry, ok := b.pending[txid]
	if !ok {
		b.mtx.Unlock()
		return b.publish(tx, txid)
	}

	entry.seen++
	publish := entry.seen >= entry.expected && !entry.done
	if publish {
		entry.done = true
	}
	b.mtx.Unlock()

	if !publish {
		log.Debugf("Debouncing broadcast of %v, waiting for more "+
			"completions", txid)
		return nil
	}

	log.Infof("All completions observed for %v, publishing", txid)

	return b.publish(tx, txid)
}

// publish submits the transaction through the chain backend and announces
// the submission on the event bus.
func (b *Broadcaster) publish(tx *wire.MsgTx, txid chainhash.Hash) error {
	if err := b.publisher.PublishTransaction(tx, b.label); err != nil {
		return err
	}

	if b.bus != nil {
		err := b.bus.SendEvent(&events.TransactionBroadcast{
			Node: b.nodeID,
			TxID: txid,
		})
		if err != nil {
			log.Warnf("Unable to announce broadcast of %v: %v",
				txid, err)
		}
	}

	return nil
}
