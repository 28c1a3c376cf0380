package network

import "github.com/studiowebux/rulesetcheck/internal/types"

// Resolver resolves network ids through the fixed table and applies
// optional base URL overrides, e.g. to point a profile at a staging host.
// Overrides never make an unsupported id resolvable.
type Resolver struct {
	HTTPBase string
	WSBase   string
}

// Resolve returns the endpoints for networkID with overrides applied
func (r *Resolver) Resolve(networkID string) (types.EndpointSet, error) {
	endpoints, err := Resolve(networkID)
	if err != nil {
		return types.EndpointSet{}, err
	}
	if r == nil {
		return endpoints, nil
	}
	if r.HTTPBase != "" {
		endpoints.HTTPBase = r.HTTPBase
	}
	if r.WSBase != "" {
		endpoints.WSBase = r.WSBase
	}
	return endpoints, nil
}
