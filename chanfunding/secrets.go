package chanfunding

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcwallet/wallet/txauthor"
)

// MemSecrets is an in-memory txauthor.SecretsSource over P2WPKH keys. It
// backs tests and the daemon shell until a full seed-derived keychain is
// wired in.
type MemSecrets struct {
	netParams *chaincfg.Params

	mtx  sync.Mutex
	keys map[string]*btcec.PrivateKey
}

// NewMemSecrets returns an empty secrets source for the given network.
func NewMemSecrets(netParams *chaincfg.Params) *MemSecrets {
	return &MemSecrets{
		netParams: netParams,
		keys:      make(map[string]*btcec.PrivateKey),
	}
}

// AddKey stores the private key and returns the P2WPKH address it can spend.
func (m *MemSecrets) AddKey(privKey *btcec.PrivateKey) (btcutil.Address,
	error) {

	pubKeyHash := btcutil.Hash160(privKey.PubKey().SerializeCompressed())
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		pubKeyHash, m.netParams,
	)
	if err != nil {
		return nil, err
	}

	m.mtx.Lock()
	m.keys[addr.EncodeAddress()] = privKey
	m.mtx.Unlock()

	return addr, nil
}

// NewChangeScript generates a fresh key and returns the P2WPKH script paying
// to it, for use as a txauthor change source.
func (m *MemSecrets) NewChangeScript() ([]byte, error) {
	privKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}

	addr, err := m.AddKey(privKey)
	if err != nil {
		return nil, err
	}

	return txscript.PayToAddrScript(addr)
}

// GetKey returns the private key for the given address, along with whether
// the corresponding public key is compressed.
//
// NOTE: Part of the txauthor.SecretsSource interface.
func (m *MemSecrets) GetKey(addr btcutil.Address) (*btcec.PrivateKey, bool,
	error) {

	m.mtx.Lock()
	privKey, ok := m.keys[addr.EncodeAddress()]
	m.mtx.Unlock()

	if !ok {
		return nil, false, fmt.Errorf("no key for address %v", addr)
	}

	return privKey, true, nil
}

// GetScript returns the redeem script for the given P2SH address. Only
// native segwit keys are managed here, so there are no redeem scripts to
// hand out.
//
// NOTE: Part of the txauthor.SecretsSource interface.
func (m *MemSecrets) GetScript(addr btcutil.Address) ([]byte, error) {
	return nil, fmt.Errorf("no script for address %v", addr)
}

// ChainParams returns the network the managed keys belong to.
//
// NOTE: Part of the txauthor.SecretsSource interface.
func (m *MemSecrets) ChainParams() *chaincfg.Params {
	return m.netParams
}

// A compile-time assertion that MemSecrets can sign for txauthor.
var _ txauthor.SecretsSource = (*MemSecrets)(nil)
