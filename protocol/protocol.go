// Package protocol defines the JSON-RPC 1.1 dialect spoken by the
// UserAndJobState service and the catalog of methods it exposes.
//
// Every call is a single HTTP POST carrying one envelope and answered by one
// envelope:
//
//	client                                   UserAndJobState
//	  │  POST {"params":[...],                      │
//	  │        "method":"UserAndJobState.get_state",│
//	  │        "version":"1.1","id":"83920174"}     │
//	  │ ──────────────────────────────────────────► │
//	  │  200 {"result":[v0, v1, ...]}               │
//	  │  500 {"error":{...}}                        │
//	  │ ◄────────────────────────────────────────── │
//
// The number of values in "result" is fixed per method (its return arity),
// which is why the catalog carries it.
package protocol

import (
	"fmt"
	"strings"
)

const (
	// Version is the JSON-RPC version tag sent in every envelope.
	Version = "1.1"

	// ServiceName prefixes every method name on the wire.
	ServiceName = "UserAndJobState"

	// DefaultURL is used when a client is configured without an endpoint.
	DefaultURL = "https://kbase.us/services/userandjobstate/"

	// AuthorizationHeader carries the raw token, no scheme prefix.
	AuthorizationHeader = "Authorization"

	// ContentType of request bodies.
	ContentType = "application/json"
)

// Status classes reported with call failures. They mirror the codes the
// service's generated clients have always used.
const (
	StatusRequestFailed     = 500 // transport failed or server returned an error
	StatusMalformedResponse = 503 // transport succeeded, body was not a valid envelope
)

// QualifiedName returns the wire name of a method, e.g. "UserAndJobState.ver".
// Names that are already qualified are returned unchanged.
func QualifiedName(method string) string {
	if strings.HasPrefix(method, ServiceName+".") {
		return method
	}
	return ServiceName + "." + method
}

// ShortName strips the service prefix from a wire method name.
func ShortName(method string) string {
	return strings.TrimPrefix(method, ServiceName+".")
}

// SplitMethod splits "Service.method" into its two parts.
func SplitMethod(serviceMethod string) (service, method string, err error) {
	split := strings.Split(serviceMethod, ".")
	if len(split) != 2 || split[0] == "" || split[1] == "" {
		return "", "", fmt.Errorf("invalid service method format: %q", serviceMethod)
	}
	return split[0], split[1], nil
}
