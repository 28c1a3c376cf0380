package network

import (
	"errors"
	"strings"
	"testing"
)

func TestResolve_SupportedNetworks(t *testing.T) {
	tests := []struct {
		networkID string
		wantHTTP  string
		wantWS    string
	}{
		{"137", "https://api.credenza.online", "wss://ws.credenza.online"},
		{"80001", "https://api.testnets.credenza.online", "wss://ws.testnets.credenza.online"},
	}

	for _, tt := range tests {
		t.Run(tt.networkID, func(t *testing.T) {
			endpoints, err := Resolve(tt.networkID)
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if endpoints.HTTPBase != tt.wantHTTP {
				t.Errorf("Expected HTTP base %q, got %q", tt.wantHTTP, endpoints.HTTPBase)
			}
			if endpoints.WSBase != tt.wantWS {
				t.Errorf("Expected WS base %q, got %q", tt.wantWS, endpoints.WSBase)
			}
		})
	}
}

func TestResolve_UnsupportedNetworkNamesID(t *testing.T) {
	for _, id := range []string{"", "1", "5", "138", "8000", "800010", " 137", "mainnet"} {
		t.Run(id, func(t *testing.T) {
			_, err := Resolve(id)
			if err == nil {
				t.Fatalf("Expected error for network %q", id)
			}
			if !errors.Is(err, ErrUnsupportedNetwork) {
				t.Errorf("Expected ErrUnsupportedNetwork, got: %v", err)
			}

			var unsupported *UnsupportedNetworkError
			if !errors.As(err, &unsupported) {
				t.Fatalf("Expected *UnsupportedNetworkError, got %T", err)
			}
			if unsupported.NetworkID != id {
				t.Errorf("Expected network id %q, got %q", id, unsupported.NetworkID)
			}
			if err.Error() != "Unsupported chainId: "+id {
				t.Errorf("Unexpected message: %s", err.Error())
			}
		})
	}
}

func TestResolver_Overrides(t *testing.T) {
	r := &Resolver{HTTPBase: "http://127.0.0.1:9000"}

	endpoints, err := r.Resolve(TestnetID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if endpoints.HTTPBase != "http://127.0.0.1:9000" {
		t.Errorf("Expected overridden HTTP base, got %q", endpoints.HTTPBase)
	}
	if endpoints.WSBase != Testnet.WSBase {
		t.Errorf("Expected table WS base, got %q", endpoints.WSBase)
	}

	if _, err := r.Resolve("1"); !errors.Is(err, ErrUnsupportedNetwork) {
		t.Errorf("Expected overrides to keep unsupported ids failing, got: %v", err)
	}
}

func TestResolver_Nil(t *testing.T) {
	var r *Resolver
	endpoints, err := r.Resolve(MainnetID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if endpoints != Mainnet {
		t.Errorf("Expected mainnet endpoints, got %+v", endpoints)
	}
}

func TestIDs(t *testing.T) {
	got := strings.Join(IDs(), ",")
	if got != "137,80001" {
		t.Errorf("Expected 137,80001, got %s", got)
	}
	if Name("137") != "mainnet" || Name("80001") != "testnet" || Name("1") != "" {
		t.Error("Unexpected network names")
	}
}
