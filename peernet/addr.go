package peernet

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
)

// TCPResolver is a function signature that resolves an address on a given
// network.
type TCPResolver = func(network, addr string) (*net.TCPAddr, error)

// ParsePubKey parses a hex-encoded, 33-byte compressed public key into a
// verified point on the secp256k1 curve.
func ParsePubKey(pubKeyStr string) (*btcec.PublicKey, error) {
	pubKeyBytes, err := hex.DecodeString(pubKeyStr)
	if err != nil {
		return nil, fmt.Errorf("invalid node pubkey: %w", err)
	}

	if len(pubKeyBytes) != 33 {
		return nil, fmt.Errorf("invalid node pubkey: length must be "+
			"33 bytes, found %d", len(pubKeyBytes))
	}

	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid node pubkey: %w", err)
	}

	return pubKey, nil
}

// ParseAddressString converts an address in string format to a net.Addr. UDP
// is not supported because peer connections need to be reliable. We accept a
// custom function to resolve any TCP addresses so that the caller is able to
// control exactly how resolution is performed.
func ParseAddressString(strAddress string, defaultPort string,
	tcpResolver TCPResolver) (net.Addr, error) {

	var parsedNetwork, parsedAddr string

	// Addresses can either be in network://address:port format,
	// network:address:port, address:port, or just port.
	switch {
	case strings.Contains(strAddress, "://"):
		parts := strings.Split(strAddress, "://")
		parsedNetwork, parsedAddr = parts[0], parts[1]

	case strings.Contains(strAddress, ":"):
		parts := strings.Split(strAddress, ":")
		parsedNetwork = parts[0]
		parsedAddr = strings.Join(parts[1:], ":")
	}

	switch parsedNetwork {
	case "tcp", "tcp4", "tcp6":
		return tcpResolver(
			parsedNetwork, verifyPort(parsedAddr, defaultPort),
		)

	case "ip", "ip4", "ip6", "udp", "udp4", "udp6", "unix", "unixgram",
		"unixpacket":

		return nil, fmt.Errorf("only TCP addresses are supported: %s",
			parsedAddr)

	default:
		// Apply the default port, or use the localhost short circuit
		// for a bare port.
		addrWithPort := verifyPort(strAddress, defaultPort)

		return tcpResolver("tcp", addrWithPort)
	}
}

// ParseLNAddressString converts a string of the form <pubkey>@<addr> into a
// verified public key and a resolved network address. The <pubkey> must be
// presented in hex and result in a 33-byte compressed public key that lies
// on the secp256k1 curve. If no port is specified, the defaultPort is used.
func ParseLNAddressString(strAddress string, defaultPort string,
	tcpResolver TCPResolver) (*btcec.PublicKey, net.Addr, error) {

	// Split the address string around the @ sign.
	parts := strings.Split(strAddress, "@")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid lightning address %s: "+
			"must be of the form <pubkey-hex>@<addr>", strAddress)
	}

	pubKey, err := ParsePubKey(parts[0])
	if err != nil {
		return nil, nil, err
	}

	addr, err := ParseAddressString(parts[1], defaultPort, tcpResolver)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid lightning address: %w",
			err)
	}

	return pubKey, addr, nil
}

// verifyPort makes sure that an address string has both a host and a port.
// If there is no port found, the default port is appended. If the address is
// just a port, then we'll assume that the user is using the short cut to
// specify a localhost:port address.
func verifyPort(address string, defaultPort string) string {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		// If the address itself is just an integer, then we'll assume
		// that we're mapping this directly to a localhost:port pair.
		if _, err := strconv.Atoi(address); err == nil {
			return net.JoinHostPort("localhost", address)
		}

		// Otherwise, we'll assume that the address just failed to
		// attach its own port, so we'll use the default port. In the
		// case of IPv6 addresses, if the host is already surrounded
		// by brackets, then we'll avoid using the JoinHostPort
		// function, since it will always add a pair of brackets.
		if strings.HasPrefix(address, "[") {
			return address + ":" + defaultPort
		}
		return net.JoinHostPort(address, defaultPort)
	}

	// In the case that both the host and port are empty, we'll use the
	// default port.
	if host == "" && port == "" {
		return ":" + defaultPort
	}

	return address
}
