// Package network defines the two ledger environments the bridge can talk to.
package network

import (
	"fmt"
	"strings"
)

// Endpoint identifies one ledger environment and the services bound to it.
// Values are only obtained through Mainnet, Testnet or Parse.
type Endpoint struct {
	name      string
	mirrorURL string
	apiURL    string
}

var (
	// Mainnet is the production environment.
	Mainnet = Endpoint{
		name:      "mainnet",
		mirrorURL: "https://mainnet-public.mirrornode.hedera.com",
		apiURL:    "https://rest.prod.bladewallet.io/openapi/v7",
	}

	// Testnet is the test environment.
	Testnet = Endpoint{
		name:      "testnet",
		mirrorURL: "https://testnet.mirrornode.hedera.com",
		apiURL:    "https://rest.ci.bladewallet.io/openapi/v7",
	}
)

// Parse returns the endpoint for a network name ("mainnet" or "testnet").
func Parse(name string) (Endpoint, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Mainnet.name:
		return Mainnet, nil
	case Testnet.name:
		return Testnet, nil
	default:
		return Endpoint{}, fmt.Errorf("invalid network %q: must be 'mainnet' or 'testnet'", name)
	}
}

// Name returns the lowercase network name.
func (e Endpoint) Name() string { return e.name }

// MirrorURL returns the mirror node base URL, without a trailing slash.
func (e Endpoint) MirrorURL() string { return e.mirrorURL }

// APIURL returns the primary API base URL, without a trailing slash.
func (e Endpoint) APIURL() string { return e.apiURL }

// Header returns the value sent in the X-NETWORK header.
func (e Endpoint) Header() string {
	if e.name == "" {
		return ""
	}
	return strings.ToUpper(e.name[:1]) + e.name[1:]
}

// IsZero reports whether e was never assigned a network.
func (e Endpoint) IsZero() bool { return e.name == "" }

func (e Endpoint) String() string { return e.name }
