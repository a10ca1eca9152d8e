package peerdb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/kvdb"
)

var (
	// peerBucket is the top level bucket holding one serialized record
	// per known peer, keyed by the peer's compressed public key.
	peerBucket = []byte("peer-records")

	// ErrPeerNotFound is returned when no record exists for the queried
	// public key.
	ErrPeerNotFound = errors.New("peer record not found")

	// byteOrder is the ordering used for all fixed width fields.
	byteOrder = binary.BigEndian
)

// Peer is a persisted record of a node we know about, independent of whether
// a connection to it currently exists.
type Peer struct {
	// PubKey is the peer's identity key.
	PubKey *btcec.PublicKey

	// Alias is an optional free-form label for the peer.
	Alias string

	// ZeroConf indicates whether we are willing to treat channels with
	// this peer as usable before the funding transaction confirms.
	ZeroConf bool

	// CreatedAt is the time the record was first written.
	CreatedAt time.Time

	// UpdatedAt is the time the record was last written.
	UpdatedAt time.Time
}

// DB is a bolt backed store of peer records.
type DB struct {
	backend kvdb.Backend
}

// Open creates the peer database at the given path if needed and opens it.
func Open(dbPath string) (*DB, error) {
	backend, err := kvdb.Create(
		kvdb.BoltBackendName, dbPath, true, kvdb.DefaultDBTimeout,
		false,
	)
	if err != nil {
		return nil, err
	}

	err = kvdb.Update(backend, func(tx kvdb.RwTx) error {
		_, err := tx.CreateTopLevelBucket(peerBucket)
		return err
	}, func() {})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &DB{backend: backend}, nil
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.backend.Close()
}

// PutPeer writes the record for the given peer, creating it if it does not
// exist yet. The created/updated timestamps are maintained by the store: the
// creation time of an existing record is preserved, the update time is
// always set to now.
func (d *DB) PutPeer(peer *Peer) error {
	now := time.Now().Truncate(time.Second)

	return kvdb.Update(d.backend, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(peerBucket)
		key := peer.PubKey.SerializeCompressed()

		peer.CreatedAt = now
		peer.UpdatedAt = now

		// Keep the original creation stamp on overwrite.
		if existingBytes := bucket.Get(key); existingBytes != nil {
			existing, err := deserializePeer(
				bytes.NewReader(existingBytes),
			)
			if err != nil {
				return err
			}
			peer.CreatedAt = existing.CreatedAt
		}

		var b bytes.Buffer
		if err := serializePeer(&b, peer); err != nil {
			return err
		}

		return bucket.Put(key, b.Bytes())
	}, func() {})
}

// FetchPeer returns the record stored for the given public key, or
// ErrPeerNotFound if none exists.
func (d *DB) FetchPeer(pubKey *btcec.PublicKey) (*Peer, error) {
	var peer *Peer
	err := kvdb.View(d.backend, func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(peerBucket)

		peerBytes := bucket.Get(pubKey.SerializeCompressed())
		if peerBytes == nil {
			return ErrPeerNotFound
		}

		var err error
		peer, err = deserializePeer(bytes.NewReader(peerBytes))
		return err
	}, func() {
		peer = nil
	})
	if err != nil {
		return nil, err
	}

	return peer, nil
}

// ListPeers returns all stored peer records.
func (d *DB) ListPeers() ([]*Peer, error) {
	var peers []*Peer
	err := kvdb.View(d.backend, func(tx kvdb.RTx) error {
		bucket := tx.ReadBucket(peerBucket)

		return bucket.ForEach(func(_, peerBytes []byte) error {
			peer, err := deserializePeer(
				bytes.NewReader(peerBytes),
			)
			if err != nil {
				return err
			}

			peers = append(peers, peer)
			return nil
		})
	}, func() {
		peers = nil
	})
	if err != nil {
		return nil, err
	}

	return peers, nil
}

// DeletePeer removes the record for the given public key. Deleting a peer
// that does not exist is a no-op.
func (d *DB) DeletePeer(pubKey *btcec.PublicKey) error {
	return kvdb.Update(d.backend, func(tx kvdb.RwTx) error {
		bucket := tx.ReadWriteBucket(peerBucket)
		return bucket.Delete(pubKey.SerializeCompressed())
	}, func() {})
}

// serializePeer writes the record using fixed width big-endian fields and a
// length prefixed alias.
func serializePeer(w io.Writer, peer *Peer) error {
	if _, err := w.Write(peer.PubKey.SerializeCompressed()); err != nil {
		return err
	}

	var scratch [8]byte
	byteOrder.PutUint64(scratch[:], uint64(peer.CreatedAt.Unix()))
	if _, err := w.Write(scratch[:]); err != nil {
		return err
	}

	byteOrder.PutUint64(scratch[:], uint64(peer.UpdatedAt.Unix()))
	if _, err := w.Write(scratch[:]); err != nil {
		return err
	}

	var zeroConf byte
	if peer.ZeroConf {
		zeroConf = 1
	}
	if _, err := w.Write([]byte{zeroConf}); err != nil {
		return err
	}

	alias := []byte(peer.Alias)
	byteOrder.PutUint64(scratch[:], uint64(len(alias)))
	if _, err := w.Write(scratch[:]); err != nil {
		return err
	}
	_, err := w.Write(alias)

	return err
}

// deserializePeer is the inverse of serializePeer.
func deserializePeer(r io.Reader) (*Peer, error) {
	var pubKeyBytes [33]byte
	if _, err := io.ReadFull(r, pubKeyBytes[:]); err != nil {
		return nil, err
	}
	pubKey, err := btcec.ParsePubKey(pubKeyBytes[:])
	if err != nil {
		return nil, err
	}

	var scratch [8]byte
	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return nil, err
	}
	createdAt := time.Unix(int64(byteOrder.Uint64(scratch[:])), 0)

	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return nil, err
	}
	updatedAt := time.Unix(int64(byteOrder.Uint64(scratch[:])), 0)

	var zeroConf [1]byte
	if _, err := io.ReadFull(r, zeroConf[:]); err != nil {
		return nil, err
	}

	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return nil, err
	}
	alias := make([]byte, byteOrder.Uint64(scratch[:]))
	if _, err := io.ReadFull(r, alias); err != nil {
		return nil, err
	}

	return &Peer{
		PubKey:    pubKey,
		Alias:     string(alias),
		ZeroConf:  zeroConf[0] == 1,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
