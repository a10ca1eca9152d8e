package peerdb

import (
	"path/filepath"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "peers.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})

	return db
}

func testPubKey(t *testing.T) *btcec.PublicKey {
	t.Helper()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return privKey.PubKey()
}

// TestPeerCRUD exercises the full lifecycle of a peer record.
func TestPeerCRUD(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	pubKey := testPubKey(t)

	// Fetching an unknown peer fails with a distinct error.
	_, err := db.FetchPeer(pubKey)
	require.ErrorIs(t, err, ErrPeerNotFound)

	peer := &Peer{
		PubKey:   pubKey,
		Alias:    "carol",
		ZeroConf: true,
	}
	require.NoError(t, db.PutPeer(peer))
	require.False(t, peer.CreatedAt.IsZero())

	fetched, err := db.FetchPeer(pubKey)
	require.NoError(t, err)
	require.Equal(t, "carol", fetched.Alias)
	require.True(t, fetched.ZeroConf)
	require.True(t, fetched.PubKey.IsEqual(pubKey))
	require.Equal(t, peer.CreatedAt.Unix(), fetched.CreatedAt.Unix())

	// Overwriting keeps the creation stamp.
	update := &Peer{PubKey: pubKey, Alias: "carol-2"}
	require.NoError(t, db.PutPeer(update))

	fetched, err = db.FetchPeer(pubKey)
	require.NoError(t, err)
	require.Equal(t, "carol-2", fetched.Alias)
	require.False(t, fetched.ZeroConf)
	require.Equal(t, peer.CreatedAt.Unix(), fetched.CreatedAt.Unix())

	require.NoError(t, db.DeletePeer(pubKey))
	_, err = db.FetchPeer(pubKey)
	require.ErrorIs(t, err, ErrPeerNotFound)
}

// TestListPeers asserts that all stored records are returned.
func TestListPeers(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)

	const numPeers = 4
	expected := make(map[string]struct{})
	for i := 0; i < numPeers; i++ {
		pubKey := testPubKey(t)
		require.NoError(t, db.PutPeer(&Peer{PubKey: pubKey}))
		expected[string(pubKey.SerializeCompressed())] = struct{}{}
	}

	peers, err := db.ListPeers()
	require.NoError(t, err)
	require.Len(t, peers, numPeers)

	for _, peer := range peers {
		key := string(peer.PubKey.SerializeCompressed())
		require.Contains(t, expected, key)
	}
}
