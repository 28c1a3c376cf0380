package network

import (
	"errors"
	"sort"

	"github.com/studiowebux/rulesetcheck/internal/types"
)

const (
	// MainnetID selects the production deployment
	MainnetID = "137"
	// TestnetID selects the test deployment
	TestnetID = "80001"
)

var (
	// Mainnet holds the production endpoints
	Mainnet = types.EndpointSet{
		HTTPBase: "https://api.credenza.online",
		WSBase:   "wss://ws.credenza.online",
	}

	// Testnet holds the test endpoints
	Testnet = types.EndpointSet{
		HTTPBase: "https://api.testnets.credenza.online",
		WSBase:   "wss://ws.testnets.credenza.online",
	}

	table = map[string]types.EndpointSet{
		MainnetID: Mainnet,
		TestnetID: Testnet,
	}
)

// ErrUnsupportedNetwork matches any UnsupportedNetworkError
var ErrUnsupportedNetwork = errors.New("unsupported network")

// UnsupportedNetworkError reports a network id missing from the endpoint table
type UnsupportedNetworkError struct {
	NetworkID string
}

func (e *UnsupportedNetworkError) Error() string {
	return "Unsupported chainId: " + e.NetworkID
}

func (e *UnsupportedNetworkError) Is(target error) bool {
	return target == ErrUnsupportedNetwork
}

// Resolve returns the endpoints of a network id
func Resolve(networkID string) (types.EndpointSet, error) {
	endpoints, ok := table[networkID]
	if !ok {
		return types.EndpointSet{}, &UnsupportedNetworkError{NetworkID: networkID}
	}
	return endpoints, nil
}

// IDs returns the supported network ids in ascending order
func IDs() []string {
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Name returns a short label for a supported network id
func Name(networkID string) string {
	switch networkID {
	case MainnetID:
		return "mainnet"
	case TestnetID:
		return "testnet"
	default:
		return ""
	}
}
