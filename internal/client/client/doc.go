// Package client is the remote entry store: the lifedash side of the
// EntryService gRPC contract.
//
// # Overview
//
// Client is the transport-agnostic contract the sync engine depends on:
// List, Create, Update and Delete of entries, plus the principal derived
// from the configured bearer token. GRPCClient implements it over gRPC with
// the JSON codec from package rpc, injects the token through a unary
// interceptor and maps gRPC status codes to the sentinel errors of package
// common.
//
// # Error Handling
//
//   - common.ErrAuthRequired: no token, or the server rejected it.
//   - common.ErrNotFound: the entry does not exist for this owner.
//   - *common.RemoteError (matches common.ErrRemoteFailure): everything else;
//     transport failures additionally match common.ErrUnavailable.
//
// Reads without a token are not errors: List returns an empty slice so an
// unauthenticated UI simply shows cached data.
//
// # Concurrency
//
// GRPCClient is safe for concurrent use; the token may be replaced at any time
// with SetToken and applies to calls started afterwards.
package client
