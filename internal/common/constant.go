// Package common contains shared constants, sentinel errors and error types
// used by the lifedash client and the reference record service.
package common

const (
	// AccessTokenHeaderName is the gRPC metadata key carrying the bearer token.
	AccessTokenHeaderName = "access_token"

	// AuthorizationHeader carries "Bearer <token>" on the realtime WebSocket
	// handshake.
	AuthorizationHeader = "Authorization"

	BearerPrefix = "Bearer "
)
