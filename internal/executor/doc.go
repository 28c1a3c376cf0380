/*
Package executor validates scanned identifiers against a remote ruleset
service over HTTP or WebSocket.

# Overview

Both transports implement Validator and take the same ValidationRequest:
  - HTTPValidator issues one authenticated POST per call
  - WSValidator opens a fresh connection per call, sends a correlated
    envelope and waits for the matching response

Network ids are resolved through network.Resolver before any I/O, so an
unsupported id never opens a socket.

# HTTP

	POST {httpBase}/discounts/rulesets/validate
	Content-Type: application/json
	Authorization: Basic base64(clientId:clientSecret)

	{"ruleSetId": "...", "passportId": "..."}

A 2xx answer yields the body verbatim. Any other status yields a nil
Result and a nil error, unless StrictStatus is set, in which case an
*HTTPStatusError is returned.

# WebSocket

The validator moves through these states:

	connecting -> open -> awaiting-match -> matched | errored | protocol-error | timed-out -> closed

Inbound frames whose credenzaRequestId differs from the one sent are
discarded. A frame that is not JSON fails the call with ErrWsProtocol, a
transport failure with ErrWsConnection, and an expired deadline with
ErrTimeout. The connection is closed exactly once on every path, and the
listener goroutine exits with the call.

# Example Usage

	v, err := executor.New(types.TransportWS, executor.Options{
		ConnectTimeout:  5 * time.Second,
		ResponseTimeout: 10 * time.Second,
	})
	if err != nil {
		return err
	}

	result, err := v.Validate(ctx, &types.ValidationRequest{
		NetworkID:    "80001",
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RulesetID:    "vip-2024",
		ScannedID:    scanned,
	})

# Thread Safety

Validators hold no per-call state and are safe to use concurrently.
Each WebSocket call owns its connection; nothing is pooled.
*/
package executor
